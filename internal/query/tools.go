package query

import (
	"context"
	"strings"
)

// handlerFunc is the shape every tool implements: parse+validate args,
// run the traversal, and return its payload plus any extra envelope meta
// (truncation descriptors, ambiguity notes) the registry should merge in
// alongside the timing it adds itself.
type handlerFunc func(ctx context.Context, reader GraphReader, project string, args map[string]any) (any, map[string]any, *toolErr)

// callersResult is the callers tool's response payload.
type callersResult struct {
	QualifiedName string       `json:"qualified_name"`
	Callers       []nodeResult `json:"callers"`
	Paths         []pathEdge   `json:"paths,omitempty"`
}

func handleCallers(ctx context.Context, reader GraphReader, project string, args map[string]any) (any, map[string]any, *toolErr) {
	qn, terr := requireString(args, "qn")
	if terr != nil {
		return nil, nil, terr
	}
	maxDepth, terr := clampDepth(args, 3, 1, 5)
	if terr != nil {
		return nil, nil, terr
	}
	label, terr := resolveLabel(ctx, reader, project, qn)
	if terr != nil {
		return nil, nil, terr
	}

	results, ambiguous, terr := traverse(ctx, reader, project, label, qn, []string{"CALLS"}, dirIn, maxDepth)
	if terr != nil {
		return nil, nil, terr
	}
	results, trunc := truncate(results, prebuiltDefaultLimit)

	out := callersResult{QualifiedName: qn, Callers: results}
	if getBoolArg(args, "include_paths") {
		paths, terr := traverseEdges(ctx, reader, project, label, qn, []string{"CALLS"}, dirIn, maxDepth)
		if terr != nil {
			return nil, nil, terr
		}
		out.Paths = paths
	}
	meta := truncMeta(trunc)
	if ambiguous {
		meta = addNote(meta, "may include candidates")
	}
	return out, meta, nil
}

// hierarchyResult is the hierarchy tool's response payload.
type hierarchyResult struct {
	QualifiedName string       `json:"qualified_name"`
	Direction     string       `json:"direction"`
	Ancestors     []nodeResult `json:"ancestors,omitempty"`
	Descendants   []nodeResult `json:"descendants,omitempty"`
}

func handleHierarchy(ctx context.Context, reader GraphReader, project string, args map[string]any) (any, map[string]any, *toolErr) {
	qn, terr := requireString(args, "qn")
	if terr != nil {
		return nil, nil, terr
	}
	direction, terr := oneOf(args, "direction", "up", "up", "down", "both")
	if terr != nil {
		return nil, nil, terr
	}
	maxDepth, terr := clampDepth(args, 5, 1, 10)
	if terr != nil {
		return nil, nil, terr
	}
	label, terr := resolveLabel(ctx, reader, project, qn)
	if terr != nil {
		return nil, nil, terr
	}

	out := hierarchyResult{QualifiedName: qn, Direction: direction}
	var ancestorsTrunc, descendantsTrunc truncation
	var warnings []string

	// "up" (ancestors, the classes qn inherits from) follows INHERITS
	// forward; "down" (descendants, subclasses of qn) follows it in
	// reverse. The *1..maxDepth bound keeps a cycle from looping the
	// traversal forever and dedupeMinDepth collapses the reached-node listing
	// to one shortest-depth entry per node, but spec.md §8 scenario 3 additionally requires the cycle
	// itself to be surfaced — cycleWarning walks the same edges separately
	// to find and report it.
	if direction == "up" || direction == "both" {
		ancestors, _, terr := traverse(ctx, reader, project, label, qn, []string{"INHERITS"}, dirOut, maxDepth)
		if terr != nil {
			return nil, nil, terr
		}
		edges, terr := traverseEdges(ctx, reader, project, label, qn, []string{"INHERITS"}, dirOut, maxDepth)
		if terr != nil {
			return nil, nil, terr
		}
		if w := cycleWarning(edges, qn, false); w != "" {
			warnings = append(warnings, w)
		}
		ancestors, ancestorsTrunc = truncate(ancestors, prebuiltDefaultLimit)
		out.Ancestors = ancestors
	}
	if direction == "down" || direction == "both" {
		descendants, _, terr := traverse(ctx, reader, project, label, qn, []string{"INHERITS"}, dirIn, maxDepth)
		if terr != nil {
			return nil, nil, terr
		}
		edges, terr := traverseEdges(ctx, reader, project, label, qn, []string{"INHERITS"}, dirIn, maxDepth)
		if terr != nil {
			return nil, nil, terr
		}
		if w := cycleWarning(edges, qn, true); w != "" {
			warnings = append(warnings, w)
		}
		descendants, descendantsTrunc = truncate(descendants, prebuiltDefaultLimit)
		out.Descendants = descendants
	}

	var meta map[string]any
	if m := truncMeta(ancestorsTrunc); m != nil {
		meta = map[string]any{"ancestors": m}
	}
	if m := truncMeta(descendantsTrunc); m != nil {
		if meta == nil {
			meta = map[string]any{}
		}
		meta["descendants"] = m
	}
	if len(warnings) > 0 {
		if meta == nil {
			meta = map[string]any{}
		}
		meta["warnings"] = dedupeStrings(warnings)
	}
	return out, meta, nil
}

// cycleWarning looks for a node revisited while walking edges in the
// direction a hierarchy traversal discovered them, returning a
// "cycle: A→B→A"-shaped warning string (spec.md §8 scenario 3), or "" when
// no cycle is present in the (possibly depth-truncated) edge set. reverse
// selects which endpoint of each INHERITS edge to walk towards: false for
// "up" (qn inherits-from edges point away from qn), true for "down"
// (subclasses point an INHERITS edge back at qn, so descendants walk the
// edges in reverse).
func cycleWarning(edges []pathEdge, start string, reverse bool) string {
	adj := map[string][]string{}
	for _, e := range edges {
		if reverse {
			adj[e.To] = append(adj[e.To], e.From)
		} else {
			adj[e.From] = append(adj[e.From], e.To)
		}
	}
	path := findCyclePath(start, adj)
	if path == nil {
		return ""
	}
	names := make([]string, len(path))
	for i, qn := range path {
		names[i] = shortName(qn)
	}
	return "cycle: " + strings.Join(names, "→")
}

// findCyclePath runs a DFS from start and returns the path (inclusive of
// the repeated node) the moment it revisits a node already on the current
// stack, or nil if the walk terminates without one.
func findCyclePath(start string, adj map[string][]string) []string {
	var path []string
	onStack := map[string]bool{}
	var dfs func(node string) []string
	dfs = func(node string) []string {
		if onStack[node] {
			return append(append([]string(nil), path...), node)
		}
		onStack[node] = true
		path = append(path, node)
		for _, next := range adj[node] {
			if found := dfs(next); found != nil {
				return found
			}
		}
		path = path[:len(path)-1]
		onStack[node] = false
		return nil
	}
	return dfs(start)
}

// shortName drops a qualified name's module/package prefix for readable
// cycle-warning text.
func shortName(qn string) string {
	if idx := strings.LastIndex(qn, "."); idx >= 0 {
		return qn[idx+1:]
	}
	return qn
}

// dedupeStrings removes duplicate entries while preserving first-seen order,
// for when "up" and "down" walks of a "both" hierarchy query surface the
// same cycle from each side.
func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// dependenciesResult is the dependencies tool's response payload.
type dependenciesResult struct {
	QualifiedName string       `json:"qualified_name"`
	Kind          string       `json:"kind"`
	Dependencies  []nodeResult `json:"dependencies"`
}

func handleDependencies(ctx context.Context, reader GraphReader, project string, args map[string]any) (any, map[string]any, *toolErr) {
	qn, terr := requireString(args, "qn")
	if terr != nil {
		return nil, nil, terr
	}
	kind, terr := oneOf(args, "kind", "all", "imports", "calls", "all")
	if terr != nil {
		return nil, nil, terr
	}
	label, terr := resolveLabel(ctx, reader, project, qn)
	if terr != nil {
		return nil, nil, terr
	}

	maxDepth := 1
	if getBoolArg(args, "transitive") {
		maxDepth = 3
	}

	var relTypes []string
	switch kind {
	case "imports":
		relTypes = []string{"IMPORTS"}
	case "calls":
		relTypes = []string{"CALLS"}
	default:
		relTypes = []string{"IMPORTS", "CALLS"}
	}

	deps, ambiguous, terr := traverse(ctx, reader, project, label, qn, relTypes, dirOut, maxDepth)
	if terr != nil {
		return nil, nil, terr
	}
	deps, trunc := truncate(deps, prebuiltDefaultLimit)
	meta := truncMeta(trunc)
	if ambiguous {
		meta = addNote(meta, "may include candidates")
	}
	return dependenciesResult{QualifiedName: qn, Kind: kind, Dependencies: deps}, meta, nil
}

// implementationsResult is the implementations tool's response payload.
type implementationsResult struct {
	QualifiedName   string       `json:"qualified_name"`
	Implementations []nodeResult `json:"implementations"`
}

func handleImplementations(ctx context.Context, reader GraphReader, project string, args map[string]any) (any, map[string]any, *toolErr) {
	qn, terr := requireString(args, "qn")
	if terr != nil {
		return nil, nil, terr
	}
	label, terr := resolveLabel(ctx, reader, project, qn)
	if terr != nil {
		return nil, nil, terr
	}

	maxDepth := 1
	if getBoolArg(args, "include_indirect") {
		maxDepth = 10
	}

	results, _, terr := traverse(ctx, reader, project, label, qn, []string{"IMPLEMENTS", "INHERITS"}, dirIn, maxDepth)
	if terr != nil {
		return nil, nil, terr
	}
	results, trunc := truncate(results, prebuiltDefaultLimit)
	return implementationsResult{QualifiedName: qn, Implementations: results}, truncMeta(trunc), nil
}

// exportEntry is one row of a module_exports result, ordered by (kind, name)
// per spec.md §4.5's tool-specific override of the default ordering.
type exportEntry struct {
	Name          string `json:"name"`
	QualifiedName string `json:"qualified_name"`
	Kind          string `json:"kind"`
}

func handleModuleExports(ctx context.Context, reader GraphReader, project string, args map[string]any) (any, map[string]any, *toolErr) {
	moduleQN, terr := requireString(args, "module_qn")
	if terr != nil {
		return nil, nil, terr
	}
	includePrivate := getBoolArg(args, "include_private")

	results, _, terr := traverse(ctx, reader, project, "Module", moduleQN, []string{"DEFINES"}, dirOut, 1)
	if terr != nil {
		return nil, nil, terr
	}

	entries := make([]exportEntry, 0, len(results))
	for _, r := range results {
		name := r.QualifiedName
		if idx := strings.LastIndex(name, "."); idx >= 0 {
			name = name[idx+1:]
		}
		if !includePrivate && strings.HasPrefix(name, "_") {
			continue
		}
		entries = append(entries, exportEntry{Name: name, QualifiedName: r.QualifiedName, Kind: r.Label})
	}
	sortExports(entries)
	entries, trunc := truncate(entries, prebuiltDefaultLimit)
	return map[string]any{"module_qn": moduleQN, "exports": entries}, truncMeta(trunc), nil
}

// sortExports applies an insertion sort over (kind, name); the export lists
// this runs over are module-sized, never large enough to need anything
// fancier.
func sortExports(entries []exportEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0; j-- {
			a, b := entries[j-1], entries[j]
			if a.Kind > b.Kind || (a.Kind == b.Kind && a.Name > b.Name) {
				entries[j-1], entries[j] = entries[j], entries[j-1]
			} else {
				break
			}
		}
	}
}

// callGraphResult is the call_graph tool's response payload.
type callGraphResult struct {
	EntryQN string       `json:"entry_qn"`
	Nodes   []nodeResult `json:"nodes"`
	Edges   []pathEdge   `json:"edges"`
}

func handleCallGraph(ctx context.Context, reader GraphReader, project string, args map[string]any) (any, map[string]any, *toolErr) {
	entryQN, terr := requireString(args, "entry_qn")
	if terr != nil {
		return nil, nil, terr
	}
	maxDepth, terr := clampDepth(args, 3, 1, 5)
	if terr != nil {
		return nil, nil, terr
	}
	maxNodes := getIntArg(args, "max_nodes", 100)
	if maxNodes < 1 || maxNodes > 100 {
		return nil, nil, invalidArgs("max_nodes must be in [1,100]")
	}

	label, terr := resolveLabel(ctx, reader, project, entryQN)
	if terr != nil {
		return nil, nil, terr
	}

	nodes, ambiguous, terr := traverse(ctx, reader, project, label, entryQN, []string{"CALLS"}, dirOut, maxDepth)
	if terr != nil {
		return nil, nil, terr
	}
	nodes, trunc := truncate(nodes, maxNodes)

	edges, terr := traverseEdges(ctx, reader, project, label, entryQN, []string{"CALLS"}, dirOut, maxDepth)
	if terr != nil {
		return nil, nil, terr
	}
	if trunc.Truncated {
		kept := make(map[string]bool, len(nodes)+1)
		kept[entryQN] = true
		for _, n := range nodes {
			kept[n.QualifiedName] = true
		}
		filtered := edges[:0]
		for _, e := range edges {
			if kept[e.From] && kept[e.To] {
				filtered = append(filtered, e)
			}
		}
		edges = filtered
	}

	meta := truncMeta(trunc)
	if ambiguous {
		meta = addNote(meta, "may include candidates")
	}
	return callGraphResult{EntryQN: entryQN, Nodes: nodes, Edges: edges}, meta, nil
}

func handleAdHoc(ctx context.Context, reader GraphReader, project string, args map[string]any) (any, map[string]any, *toolErr) {
	q, terr := requireString(args, "query")
	if terr != nil {
		return nil, nil, terr
	}
	warning, terr := checkAdHocQuery(q)
	if terr != nil {
		return nil, nil, terr
	}

	limit := getIntArg(args, "limit", adHocDefaultLimit)
	if limit < 1 || limit > 1000 {
		return nil, nil, invalidArgs("limit must be in [1,1000]")
	}

	params := map[string]any{"project": project}
	if raw, ok := args["params"].(map[string]any); ok {
		for k, v := range raw {
			switch v.(type) {
			case string, float64, bool, nil:
				params[k] = v
			default:
				return nil, nil, invalidArgs("params must contain only primitive JSON values (string, number, bool, null)")
			}
		}
	}

	rows, err := reader.Read(ctx, q, params)
	if err != nil {
		return nil, nil, executionErr("ad-hoc query failed: " + err.Error())
	}

	rows, trunc := truncate(rows, limit)
	meta := truncMeta(trunc)
	if warning != "" {
		if meta == nil {
			meta = map[string]any{}
		}
		meta["warning"] = warning
	}
	return map[string]any{"rows": rows}, meta, nil
}

// addNote appends a note to meta's "notes" list, initializing meta and the
// list as needed, used to flag results that include candidates from the
// dynamic-dispatch over-approximation (spec.md §9: "may include candidates").
func addNote(meta map[string]any, note string) map[string]any {
	if meta == nil {
		meta = map[string]any{}
	}
	notes, _ := meta["notes"].([]string)
	for _, n := range notes {
		if n == note {
			return meta
		}
	}
	meta["notes"] = append(notes, note)
	return meta
}

// truncMeta renders a truncation descriptor into envelope meta fields, or
// nil when nothing was truncated away.
func truncMeta(t truncation) map[string]any {
	if !t.Truncated {
		return nil
	}
	return map[string]any{
		"truncated":   true,
		"total_count": t.TotalCount,
		"shown_count": t.ShownCount,
		"hint":        "refine your query (narrower qn, smaller max_depth, or an explicit limit) to see more results",
	}
}
