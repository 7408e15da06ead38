package ingest

import (
	"context"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codegraph-io/codegraph/internal/graph"
	"github.com/codegraph-io/codegraph/internal/lang"
	"github.com/codegraph-io/codegraph/internal/parser"
	"github.com/codegraph-io/codegraph/internal/resolver"
)

// callEdge is one resolved (or external-promoted) CALLS edge candidate
// discovered while re-walking a function or method body in pass 2.
type callEdge struct {
	FromQN    string
	FromLabel string
	ToQN      string
	ToLabel   string
	External  string // non-empty for an ExternalPackage target
	Ambiguous bool   // set when resolution fell back to the dynamic-dispatch over-approximation
}

// parsePass2 re-walks every function/method body recorded in pass 1 and
// resolves each call expression against the now-complete symbol table. Safe
// to parallelize: the table is read-only from this point on.
func parsePass2(ctx context.Context, results []*fileResult, table *resolver.Table) ([]callEdge, []Diagnostic) {
	type perFile struct {
		edges []callEdge
	}
	out := make([]perFile, len(results))

	_ = runBounded(ctx, len(results), func(i int) error {
		r := results[i]
		spec := lang.ForLanguage(r.Language)
		if spec == nil {
			return nil
		}
		var edges []callEdge
		for _, s := range r.Symbols {
			if s.Node == nil || (s.Label != "Function" && s.Label != "Method") {
				continue
			}
			edges = append(edges, resolveCallsInBody(s, spec, r, table)...)
		}
		out[i].edges = edges
		return nil
	})

	var all []callEdge
	for _, pf := range out {
		all = append(all, pf.edges...)
	}
	return all, nil
}

// resolveCallsInBody walks a single function/method's own AST subtree for
// call-expression nodes and resolves each callee text against the table.
func resolveCallsInBody(s symbolSpec, spec *lang.LanguageSpec, r *fileResult, table *resolver.Table) []callEdge {
	locals := collectLocals(s.Node, r.Source)

	var edges []callEdge
	parser.Walk(s.Node, func(n *tree_sitter.Node) bool {
		if n == s.Node {
			return true
		}
		if !contains(spec.CallNodeTypes, n.Kind()) {
			return true
		}
		callee := callExpressionText(n, r.Source)
		if callee == "" {
			return true
		}

		res := table.Resolve(callee, resolver.Context{
			ModuleQN:     r.ModuleQN,
			OwnerClassQN: s.OwnerClassQN,
			Locals:       locals,
		})

		if len(res.QualifiedNames) > 0 {
			for _, toQN := range res.QualifiedNames {
				edges = append(edges, callEdge{
					FromQN: s.QN, FromLabel: s.Label,
					ToQN: toQN, ToLabel: res.Label,
					Ambiguous: res.Ambiguous,
				})
			}
		} else if res.ExternalName != "" {
			table.PromoteExternal(res.ExternalName)
			edges = append(edges, callEdge{
				FromQN: s.QN, FromLabel: s.Label,
				External: res.ExternalName,
			})
		}
		return true
	})
	return edges
}

// callExpressionText extracts the callee expression text from a call node,
// preferring the grammar's "function" field and falling back to the node's
// first child (covers grammars that don't expose a named field for it).
func callExpressionText(n *tree_sitter.Node, source []byte) string {
	target := n.ChildByFieldName("function")
	if target == nil {
		target = n.ChildByFieldName("method")
	}
	if target == nil && n.NamedChildCount() > 0 {
		target = n.NamedChild(0)
	}
	if target == nil {
		return ""
	}
	text := parser.NodeText(target, source)
	return strings.TrimSpace(text)
}

// collectLocals returns the set of parameter names bound in a function or
// method's own signature, used to suppress resolving a call on a locally
// shadowed name as a project symbol reference.
func collectLocals(fn *tree_sitter.Node, source []byte) map[string]bool {
	locals := make(map[string]bool)
	params := fn.ChildByFieldName("parameters")
	if params == nil {
		return locals
	}
	parser.Walk(params, func(n *tree_sitter.Node) bool {
		if strings.Contains(n.Kind(), "identifier") {
			if name := parser.NodeText(n, source); name != "" {
				locals[name] = true
			}
		}
		return true
	})
	return locals
}

// writeCalls emits CALLS edges for every resolved candidate and, for every
// external promotion, an ExternalPackage node plus a CALLS edge to it,
// deduplicating identical edges across bodies.
func writeCalls(ctx context.Context, w *graph.Writer, edges []callEdge) error {
	seen := make(map[string]bool)
	for _, e := range edges {
		if e.External != "" {
			key := e.FromQN + "|EXT|" + e.External
			if seen[key] {
				continue
			}
			seen[key] = true
			if err := w.UpsertNode(ctx, "ExternalPackage", e.External, map[string]any{"name": e.External}); err != nil {
				return err
			}
			if err := w.UpsertEdge(ctx,
				graph.NodeRef{Label: e.FromLabel, QualifiedName: e.FromQN}, "CALLS",
				graph.NodeRef{Label: "ExternalPackage", QualifiedName: e.External}, nil); err != nil {
				return err
			}
			continue
		}

		key := e.FromQN + "|" + e.ToQN
		if seen[key] {
			continue
		}
		seen[key] = true
		var props map[string]any
		if e.Ambiguous {
			props = map[string]any{"ambiguous": true}
		}
		if err := w.UpsertEdge(ctx,
			graph.NodeRef{Label: e.FromLabel, QualifiedName: e.FromQN}, "CALLS",
			graph.NodeRef{Label: e.ToLabel, QualifiedName: e.ToQN}, props); err != nil {
			return err
		}
	}
	return nil
}
