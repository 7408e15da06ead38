package resolver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveModuleScope(t *testing.T) {
	tbl := New()
	tbl.RegisterSymbol("proj.m.b", "Function")

	res := tbl.Resolve("b", Context{ModuleQN: "proj.m"})
	require.Equal(t, []string{"proj.m.b"}, res.QualifiedNames)
	require.Equal(t, "Function", res.Label)
}

func TestResolveViaImportAlias(t *testing.T) {
	tbl := New()
	tbl.RegisterSymbol("proj.pkg.Helper", "Function")
	tbl.RegisterImportAlias("proj.m", "h", "proj.pkg.Helper")

	res := tbl.Resolve("h", Context{ModuleQN: "proj.m"})
	require.Equal(t, []string{"proj.pkg.Helper"}, res.QualifiedNames)
}

func TestResolveQualifiedImport(t *testing.T) {
	tbl := New()
	tbl.RegisterSymbol("proj.pkg.Func", "Function")
	tbl.RegisterImportAlias("proj.m", "pkg", "proj.pkg")

	res := tbl.Resolve("pkg.Func", Context{ModuleQN: "proj.m"})
	require.Equal(t, []string{"proj.pkg.Func"}, res.QualifiedNames)
}

func TestResolveInheritedScopeViaMRO(t *testing.T) {
	tbl := New()
	tbl.RegisterSymbol("proj.m.Base", "Class")
	tbl.RegisterSymbol("proj.m.Base.greet", "Method")
	tbl.RegisterClass("proj.m.Base", nil, []string{"greet"})
	tbl.RegisterSymbol("proj.m.Child", "Class")
	tbl.RegisterClass("proj.m.Child", []string{"Base"}, nil)

	res := tbl.Resolve("self.greet", Context{ModuleQN: "proj.m", OwnerClassQN: "proj.m.Child"})
	require.Equal(t, []string{"proj.m.Base.greet"}, res.QualifiedNames)
}

func TestResolveWildcardImport(t *testing.T) {
	tbl := New()
	tbl.RegisterModule("proj.utils", "utils.py", map[string]string{"helper": "proj.utils.helper"})
	tbl.RegisterSymbol("proj.utils.helper", "Function")
	tbl.RegisterWildcardImport("proj.m", "proj.utils")

	res := tbl.Resolve("helper", Context{ModuleQN: "proj.m"})
	require.Equal(t, []string{"proj.utils.helper"}, res.QualifiedNames)
}

func TestResolveFallsBackToExternalPackage(t *testing.T) {
	tbl := New()
	res := tbl.Resolve("requests.get", Context{ModuleQN: "proj.m"})
	require.Empty(t, res.QualifiedNames)
	require.Equal(t, "requests", res.ExternalName)
}

func TestResolveLocalScopeShadowsModule(t *testing.T) {
	tbl := New()
	tbl.RegisterSymbol("proj.m.handler", "Function")

	res := tbl.Resolve("handler", Context{ModuleQN: "proj.m", Locals: map[string]bool{"handler": true}})
	require.Empty(t, res.QualifiedNames)
	require.Empty(t, res.ExternalName)
}

func TestResolveDottedCallOnLocalFallsBackToOverApproximation(t *testing.T) {
	tbl := New()
	tbl.RegisterSymbol("proj.m.Foo.run", "Method")
	tbl.RegisterClass("proj.m.Foo", nil, []string{"run"})
	tbl.RegisterSymbol("proj.m.Bar.run", "Method")
	tbl.RegisterClass("proj.m.Bar", nil, []string{"run"})

	res := tbl.Resolve("x.run", Context{
		ModuleQN: "proj.m",
		Locals:   map[string]bool{"x": true},
	})
	require.ElementsMatch(t, []string{"proj.m.Foo.run", "proj.m.Bar.run"}, res.QualifiedNames)
	require.True(t, res.Ambiguous)
	require.Equal(t, "Method", res.Label)
}

func TestResolveDottedCallOnLocalWithNoCandidatesProducesNoEdge(t *testing.T) {
	tbl := New()
	res := tbl.Resolve("x.run", Context{
		ModuleQN: "proj.m",
		Locals:   map[string]bool{"x": true},
	})
	require.Empty(t, res.QualifiedNames)
	require.Empty(t, res.ExternalName)
	require.False(t, res.Ambiguous)
}

func TestResolveBareCallOnLocalProducesNoEdge(t *testing.T) {
	tbl := New()
	tbl.RegisterSymbol("run", "Function")

	res := tbl.Resolve("x", Context{
		ModuleQN: "proj.m",
		Locals:   map[string]bool{"x": true},
	})
	require.Empty(t, res.QualifiedNames)
	require.Empty(t, res.ExternalName)
	require.False(t, res.Ambiguous)
}

func TestCandidatesForSimpleNameExcludesNonMethods(t *testing.T) {
	tbl := New()
	tbl.RegisterSymbol("proj.m.run", "Function")
	tbl.RegisterSymbol("proj.m.Foo.run", "Method")
	tbl.RegisterClass("proj.m.Foo", nil, []string{"run"})

	require.Equal(t, []string{"proj.m.Foo.run"}, tbl.CandidatesForSimpleName("run"))
}

func TestMROCycleGuard(t *testing.T) {
	tbl := New()
	tbl.RegisterClass("proj.m.A", []string{"B"}, nil)
	tbl.RegisterClass("proj.m.B", []string{"A"}, nil)
	// Resolve "B" as a same-module base reference.
	tbl.RegisterSymbol("proj.m.A", "Class")
	tbl.RegisterSymbol("proj.m.B", "Class")

	mro := tbl.MRO("proj.m.A")
	require.NotEmpty(t, mro)
	require.Equal(t, "proj.m.A", mro[0])
	// Must terminate and must not repeat A.
	seen := map[string]int{}
	for _, qn := range mro {
		seen[qn]++
	}
	require.LessOrEqual(t, seen["proj.m.A"], 1)
}
