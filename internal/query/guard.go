package query

import (
	"strings"

	"github.com/codegraph-io/codegraph/internal/cypher"
)

// mutationKeywords are the write-clause keywords the ad-hoc tool must never
// execute; DETACH is only forbidden when paired with DELETE, the rest are
// forbidden standalone.
var mutationKeywords = map[string]bool{
	"CREATE": true,
	"MERGE":  true,
	"DELETE": true,
	"SET":    true,
	"REMOVE": true,
	"DROP":   true,
}

// checkAdHocQuery rejects any query containing a mutation keyword as a
// whole token (not a substring match, so a property named e.g. "created_at"
// is untouched). It reuses the tokenizer written for the store's own Cypher
// subset rather than a hand-rolled regex, since that tokenizer already
// knows how to skip over string/number literals and comments correctly.
// Returns a non-nil warning string when the query has no LIMIT clause
// (non-fatal per spec.md §4.5) and a non-nil *toolErr when a mutation
// keyword is present.
func checkAdHocQuery(q string) (warning string, err *toolErr) {
	if strings.TrimSpace(q) == "" {
		return "", invalidArgs("query must not be empty")
	}

	tokens, lexErr := cypher.Lex(q)
	if lexErr != nil {
		return "", invalidArgs("query could not be parsed: " + lexErr.Error())
	}

	hasLimit := false
	for _, tok := range tokens {
		if tok.Type == cypher.TokLimit {
			hasLimit = true
		}
		if tok.Type != cypher.TokIdent {
			continue
		}
		upper := strings.ToUpper(tok.Value)
		if mutationKeywords[upper] {
			return "", forbidden("query contains forbidden mutation keyword: " + upper)
		}
	}

	if !hasLimit {
		return "query has no LIMIT clause; results will be capped at the ad-hoc default", nil
	}
	return "", nil
}
