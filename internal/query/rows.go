package query

import (
	"sort"

	"github.com/codegraph-io/codegraph/internal/graph"
)

// nodeResult is one row of a structural query result: a reached node plus
// its hop distance from the query's anchor.
type nodeResult struct {
	QualifiedName string `json:"qualified_name"`
	Label         string `json:"label"`
	Depth         int    `json:"depth"`
}

func rowToNodeResult(r graph.Row) nodeResult {
	qn, _ := r["qualified_name"].(string)
	label, _ := r["label"].(string)
	depth, _ := r["depth"].(int)
	return nodeResult{QualifiedName: qn, Label: label, Depth: depth}
}

func rowsToNodeResults(rows []graph.Row) []nodeResult {
	out := make([]nodeResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToNodeResult(r))
	}
	return out
}

// dedupeMinDepth keeps, for each qualified name, only the row with the
// smallest depth, per spec.md §4.5's tie-break rule.
func dedupeMinDepth(results []nodeResult) []nodeResult {
	best := make(map[string]nodeResult, len(results))
	for _, r := range results {
		if existing, ok := best[r.QualifiedName]; !ok || r.Depth < existing.Depth {
			best[r.QualifiedName] = r
		}
	}
	out := make([]nodeResult, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	return out
}

// orderByDepthThenQN applies the default ordering: (depth asc, qualified_name asc).
func orderByDepthThenQN(results []nodeResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Depth != results[j].Depth {
			return results[i].Depth < results[j].Depth
		}
		return results[i].QualifiedName < results[j].QualifiedName
	})
}

// truncation describes the envelope meta fields spec.md §4.5 requires when
// a result set is capped.
type truncation struct {
	Truncated  bool `json:"truncated"`
	TotalCount int  `json:"total_count"`
	ShownCount int  `json:"shown_count"`
}

// truncate caps results to limit, returning the capped slice and the
// truncation descriptor for the envelope's meta.
func truncate[T any](results []T, limit int) ([]T, truncation) {
	total := len(results)
	if total <= limit {
		return results, truncation{Truncated: false, TotalCount: total, ShownCount: total}
	}
	return results[:limit], truncation{Truncated: true, TotalCount: total, ShownCount: limit}
}

const (
	prebuiltDefaultLimit = 100
	adHocDefaultLimit    = 50
)
