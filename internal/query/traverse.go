package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/codegraph-io/codegraph/internal/graph"
)

// GraphReader is the read-only slice of the Graph Writer's public contract
// the query tools depend on, letting tests inject graph.FakeExecutor-backed
// writers without pulling in the full batching/flush surface.
type GraphReader interface {
	Read(ctx context.Context, query string, params map[string]any) ([]graph.Row, error)
}

// resolveLabel finds the node label for a qualified name within project,
// returning a *toolErr(NODE_NOT_FOUND) when nothing matches.
func resolveLabel(ctx context.Context, reader GraphReader, project, qn string) (string, *toolErr) {
	rows, err := reader.Read(ctx, `
MATCH (n {project: $project, qualified_name: $qn})
RETURN labels(n)[0] AS label, n.qualified_name AS qualified_name
LIMIT 1`, map[string]any{
		"project":      project,
		"qn":           qn,
		"__lookup_qn":  qn,
	})
	if err != nil {
		return "", executionErr("graph read failed: " + err.Error())
	}
	if len(rows) == 0 {
		return "", notFound(
			fmt.Sprintf("no node found for qualified_name %q", qn),
			"most likely causes: unindexed repo, wrong qualified-name shape, or case mismatch",
		)
	}
	label, _ := rows[0]["label"].(string)
	return label, nil
}

// direction constants for traverse, matching the fake executor's __trav_direction values.
const (
	dirOut  = "out"
	dirIn   = "in"
	dirBoth = "both"
)

// traverse runs a variable-length-path traversal from (label, qn) across
// relTypes up to maxDepth hops in the given direction, returning one row
// per reached node tagged with its minimum hop distance, plus whether any
// edge on a returned path carries the "ambiguous" property pass 2 sets on
// CALLS edges emitted by the dynamic-dispatch over-approximation (spec.md
// §9 / SPEC_FULL.md §9's `notes:["may include candidates"]` requirement).
// The Cypher text is the real statement a production Memgraph connection
// executes; the __trav_* parameters are additional inert bind values that
// let graph.FakeExecutor interpret the same call against its in-memory
// graph for tests, without needing a second code path.
func traverse(ctx context.Context, reader GraphReader, project, label, qn string, relTypes []string, direction string, maxDepth int) ([]nodeResult, bool, *toolErr) {
	pattern := "-[:" + strings.Join(relTypes, "|") + fmt.Sprintf("*1..%d]-", maxDepth)
	switch direction {
	case dirOut:
		pattern = "-[:" + strings.Join(relTypes, "|") + fmt.Sprintf("*1..%d]->", maxDepth)
	case dirIn:
		pattern = "<-[:" + strings.Join(relTypes, "|") + fmt.Sprintf("*1..%d]-", maxDepth)
	}

	q := fmt.Sprintf(`
MATCH (start:%s {project: $project, qualified_name: $qn})
MATCH p = (start)%s(reached)
RETURN DISTINCT reached.qualified_name AS qualified_name, labels(reached)[0] AS label, length(p) AS depth,
       any(r IN relationships(p) WHERE r.ambiguous = true) AS ambiguous
ORDER BY depth ASC, qualified_name ASC`, label, pattern)

	rows, err := reader.Read(ctx, q, map[string]any{
		"project":             project,
		"qn":                  qn,
		"__trav_start_label":  label,
		"__trav_start_qn":     qn,
		"__trav_rel_types":    relTypes,
		"__trav_direction":    direction,
		"__trav_max_depth":    maxDepth,
	})
	if err != nil {
		return nil, false, executionErr("graph read failed: " + err.Error())
	}
	ambiguous := false
	for _, r := range rows {
		if a, _ := r["ambiguous"].(bool); a {
			ambiguous = true
			break
		}
	}
	results := dedupeMinDepth(rowsToNodeResults(rows))
	orderByDepthThenQN(results)
	return results, ambiguous, nil
}

// pathEdge is one hop of a traversal path, returned when a tool's
// include_paths argument is set.
type pathEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

// traverseEdges runs the same traversal as traverse but returns the
// distinct edges visited along the way, for tools whose include_paths
// argument asks for the path shape rather than just the reached node set.
func traverseEdges(ctx context.Context, reader GraphReader, project, label, qn string, relTypes []string, direction string, maxDepth int) ([]pathEdge, *toolErr) {
	pattern := "-[:" + strings.Join(relTypes, "|") + fmt.Sprintf("*1..%d]-", maxDepth)
	switch direction {
	case dirOut:
		pattern = "-[:" + strings.Join(relTypes, "|") + fmt.Sprintf("*1..%d]->", maxDepth)
	case dirIn:
		pattern = "<-[:" + strings.Join(relTypes, "|") + fmt.Sprintf("*1..%d]-", maxDepth)
	}

	q := fmt.Sprintf(`
MATCH (start:%s {project: $project, qualified_name: $qn})
MATCH p = (start)%s(reached)
UNWIND relationships(p) AS rel
RETURN DISTINCT startNode(rel).qualified_name AS from_qn, endNode(rel).qualified_name AS to_qn, type(rel) AS type`, label, pattern)

	rows, err := reader.Read(ctx, q, map[string]any{
		"project":            project,
		"qn":                 qn,
		"__trav_start_label": label,
		"__trav_start_qn":    qn,
		"__trav_rel_types":   relTypes,
		"__trav_direction":   direction,
		"__trav_max_depth":   maxDepth,
		"__trav_want_edges":  true,
	})
	if err != nil {
		return nil, executionErr("graph read failed: " + err.Error())
	}
	out := make([]pathEdge, 0, len(rows))
	for _, r := range rows {
		from, _ := r["from_qn"].(string)
		to, _ := r["to_qn"].(string)
		typ, _ := r["type"].(string)
		out = append(out, pathEdge{From: from, To: to, Type: typ})
	}
	return out, nil
}
