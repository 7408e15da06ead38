package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codegraph-io/codegraph/internal/graph"
)

func newReader() (*graph.FakeExecutor, *graph.Writer) {
	fake := graph.NewFakeExecutor()
	w := graph.NewWriter(fake, graph.Config{BatchSize: 1000}, "proj")
	return fake, w
}

func TestCallersFindsDirectAndTransitiveCallers(t *testing.T) {
	fake, w := newReader()
	fake.SeedNode("Function", "proj.a.funcA", nil)
	fake.SeedNode("Function", "proj.a.funcB", nil)
	fake.SeedNode("Function", "proj.a.funcC", nil)
	fake.SeedEdge("Function", "proj.a.funcA", "CALLS", "Function", "proj.a.funcB", nil)
	fake.SeedEdge("Function", "proj.a.funcB", "CALLS", "Function", "proj.a.funcC", nil)

	reg := NewRegistry(w)
	env := reg.Call(context.Background(), "proj", "", "callers", map[string]any{
		"qn": "proj.a.funcC", "max_depth": float64(5),
	})

	require.True(t, env.Success)
	result, ok := env.Data.(callersResult)
	require.True(t, ok)
	require.Len(t, result.Callers, 2)
	require.Equal(t, "proj.a.funcB", result.Callers[0].QualifiedName)
	require.Equal(t, 1, result.Callers[0].Depth)
	require.Equal(t, "proj.a.funcA", result.Callers[1].QualifiedName)
	require.Equal(t, 2, result.Callers[1].Depth)
}

func TestCallersRejectsDepthOutOfRange(t *testing.T) {
	_, w := newReader()
	reg := NewRegistry(w)
	env := reg.Call(context.Background(), "proj", "", "callers", map[string]any{
		"qn": "proj.a.funcC", "max_depth": float64(9),
	})

	require.False(t, env.Success)
	require.Equal(t, ErrInvalidArguments, env.Code)
}

func TestCallersUnknownNodeReturnsNodeNotFound(t *testing.T) {
	_, w := newReader()
	reg := NewRegistry(w)
	env := reg.Call(context.Background(), "proj", "", "callers", map[string]any{
		"qn": "proj.a.doesNotExist",
	})

	require.False(t, env.Success)
	require.Equal(t, ErrNodeNotFound, env.Code)
	require.Contains(t, env.Error, "unindexed repo")
}

func TestHierarchyBothDirections(t *testing.T) {
	fake, w := newReader()
	fake.SeedNode("Class", "proj.m.Base", nil)
	fake.SeedNode("Class", "proj.m.Child", nil)
	fake.SeedNode("Class", "proj.m.Grandchild", nil)
	fake.SeedEdge("Class", "proj.m.Child", "INHERITS", "Class", "proj.m.Base", nil)
	fake.SeedEdge("Class", "proj.m.Grandchild", "INHERITS", "Class", "proj.m.Child", nil)

	reg := NewRegistry(w)
	env := reg.Call(context.Background(), "proj", "", "hierarchy", map[string]any{
		"qn": "proj.m.Child", "direction": "both",
	})

	require.True(t, env.Success)
	result := env.Data.(hierarchyResult)
	require.Len(t, result.Ancestors, 1)
	require.Equal(t, "proj.m.Base", result.Ancestors[0].QualifiedName)
	require.Len(t, result.Descendants, 1)
	require.Equal(t, "proj.m.Grandchild", result.Descendants[0].QualifiedName)
}

func TestHierarchyReportsInheritanceCycle(t *testing.T) {
	fake, w := newReader()
	fake.SeedNode("Class", "proj.m.A", nil)
	fake.SeedNode("Class", "proj.m.B", nil)
	fake.SeedEdge("Class", "proj.m.A", "INHERITS", "Class", "proj.m.B", nil)
	fake.SeedEdge("Class", "proj.m.B", "INHERITS", "Class", "proj.m.A", nil)

	reg := NewRegistry(w)
	env := reg.Call(context.Background(), "proj", "", "hierarchy", map[string]any{
		"qn": "proj.m.A", "direction": "up",
	})

	require.True(t, env.Success)
	warnings, ok := env.Meta["warnings"].([]string)
	require.True(t, ok, "expected meta[\"warnings\"] to be set, got %#v", env.Meta["warnings"])
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0], "cycle: A")
}

func TestCallersFlagsAmbiguousCandidatesInNotes(t *testing.T) {
	fake, w := newReader()
	fake.SeedNode("Function", "proj.a.dispatch", nil)
	fake.SeedNode("Method", "proj.m.Foo.run", nil)
	fake.SeedEdge("Function", "proj.a.dispatch", "CALLS", "Method", "proj.m.Foo.run",
		map[string]any{"ambiguous": true})

	reg := NewRegistry(w)
	env := reg.Call(context.Background(), "proj", "", "callers", map[string]any{
		"qn": "proj.m.Foo.run",
	})

	require.True(t, env.Success)
	notes, ok := env.Meta["notes"].([]string)
	require.True(t, ok, "expected meta[\"notes\"] to be set, got %#v", env.Meta["notes"])
	require.Contains(t, notes, "may include candidates")
}

func TestImplementationsIncludesIndirect(t *testing.T) {
	fake, w := newReader()
	fake.SeedNode("Interface", "proj.m.Shape", nil)
	fake.SeedNode("Class", "proj.m.Polygon", nil)
	fake.SeedNode("Class", "proj.m.Square", nil)
	fake.SeedEdge("Class", "proj.m.Polygon", "IMPLEMENTS", "Interface", "proj.m.Shape", nil)
	fake.SeedEdge("Class", "proj.m.Square", "INHERITS", "Class", "proj.m.Polygon", nil)

	reg := NewRegistry(w)
	direct := reg.Call(context.Background(), "proj", "", "implementations", map[string]any{
		"qn": "proj.m.Shape",
	})
	require.True(t, direct.Success)
	directResult := direct.Data.(implementationsResult)
	require.Len(t, directResult.Implementations, 1)

	indirect := reg.Call(context.Background(), "proj", "", "implementations", map[string]any{
		"qn": "proj.m.Shape", "include_indirect": true,
	})
	require.True(t, indirect.Success)
	indirectResult := indirect.Data.(implementationsResult)
	require.Len(t, indirectResult.Implementations, 2)
}

func TestModuleExportsFiltersPrivateByDefault(t *testing.T) {
	fake, w := newReader()
	fake.SeedNode("Module", "proj.m", nil)
	fake.SeedNode("Function", "proj.m.public_fn", nil)
	fake.SeedNode("Function", "proj.m._private_fn", nil)
	fake.SeedEdge("Module", "proj.m", "DEFINES", "Function", "proj.m.public_fn", nil)
	fake.SeedEdge("Module", "proj.m", "DEFINES", "Function", "proj.m._private_fn", nil)

	reg := NewRegistry(w)
	env := reg.Call(context.Background(), "proj", "", "module_exports", map[string]any{
		"module_qn": "proj.m",
	})
	require.True(t, env.Success)
	data := env.Data.(map[string]any)
	exports := data["exports"].([]exportEntry)
	require.Len(t, exports, 1)
	require.Equal(t, "public_fn", exports[0].Name)

	withPrivate := reg.Call(context.Background(), "proj", "", "module_exports", map[string]any{
		"module_qn": "proj.m", "include_private": true,
	})
	require.True(t, withPrivate.Success)
	data2 := withPrivate.Data.(map[string]any)
	require.Len(t, data2["exports"].([]exportEntry), 2)
}

func TestCallGraphBuildsReachableSet(t *testing.T) {
	fake, w := newReader()
	fake.SeedNode("Function", "proj.a.main", nil)
	fake.SeedNode("Function", "proj.a.helper", nil)
	fake.SeedEdge("Function", "proj.a.main", "CALLS", "Function", "proj.a.helper", nil)

	reg := NewRegistry(w)
	env := reg.Call(context.Background(), "proj", "", "call_graph", map[string]any{
		"entry_qn": "proj.a.main",
	})
	require.True(t, env.Success)
	result := env.Data.(callGraphResult)
	require.Len(t, result.Nodes, 1)
	require.Len(t, result.Edges, 1)
	require.Equal(t, "proj.a.main", result.Edges[0].From)
	require.Equal(t, "proj.a.helper", result.Edges[0].To)
}

func TestAdHocRejectsMutationKeyword(t *testing.T) {
	_, w := newReader()
	reg := NewRegistry(w)
	env := reg.Call(context.Background(), "proj", "", "ad_hoc", map[string]any{
		"query": "MATCH (n) DETACH DELETE n",
	})
	require.False(t, env.Success)
	require.Equal(t, ErrForbiddenOperation, env.Code)
}

func TestAdHocRejectsEmptyQuery(t *testing.T) {
	_, w := newReader()
	reg := NewRegistry(w)
	env := reg.Call(context.Background(), "proj", "", "ad_hoc", map[string]any{"query": "   "})
	require.False(t, env.Success)
	require.Equal(t, ErrInvalidArguments, env.Code)
}

func TestAdHocWarnsWhenLimitMissing(t *testing.T) {
	_, w := newReader()
	reg := NewRegistry(w)
	env := reg.Call(context.Background(), "proj", "", "ad_hoc", map[string]any{
		"query": "MATCH (n) RETURN n",
	})
	require.True(t, env.Success)
	require.Contains(t, env.Meta["warning"], "LIMIT")
}

func TestUnknownToolReturnsToolNotFound(t *testing.T) {
	_, w := newReader()
	reg := NewRegistry(w)
	env := reg.Call(context.Background(), "proj", "", "not_a_real_tool", nil)
	require.False(t, env.Success)
	require.Equal(t, ErrToolNotFound, env.Code)
}
