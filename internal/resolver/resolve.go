package resolver

import "strings"

// Context carries the syntactic scope of a call site: the module it
// appears in, the class owning the enclosing method (empty for free
// functions), and the set of local names bound in the enclosing scope
// (parameters, local variables) that shadow module-level lookup.
type Context struct {
	ModuleQN     string
	OwnerClassQN string
	Locals       map[string]bool
}

// Result is the outcome of resolving one call-site candidate text. Multiple
// qualified names mean the call target is ambiguous (e.g. same-named
// methods on unrelated classes) — per the over-approximation rule in
// SPEC_FULL.md §9, the ingester emits one CALLS edge per candidate.
type Result struct {
	QualifiedNames []string
	Label          string
	ExternalName   string // set when resolution fell back to ExternalPackage
	Ambiguous      bool   // set when QualifiedNames came from the dynamic-dispatch over-approximation
}

// Resolve implements the six-step resolution order from SPEC_FULL.md §4.2:
// local scope, module scope, import map, MRO-ordered inherited scope,
// wildcard-import union-of-exports, and ExternalPackage fallback.
func (t *Table) Resolve(calleeName string, ctx Context) Result {
	prefix, suffix, hasSuffix := splitCall(calleeName)

	// 1. Local scope: a bare call on a locally-bound name (`x()`) is not a
	// project symbol reference the resolver can follow syntactically, and
	// produces no edge. A dotted call on one (`x.foo()`) still names a
	// method simple name worth resolving: since the receiver's static class
	// can't be inferred, SPEC_FULL.md §9's dynamic-dispatch over-
	// approximation applies — emit a candidate edge to every method sharing
	// that simple name in the project, flagged ambiguous, instead of
	// silently dropping the call.
	if ctx.Locals != nil && ctx.Locals[prefix] && prefix != "self" && prefix != "this" {
		if hasSuffix {
			if candidates := t.CandidatesForSimpleName(suffix); len(candidates) > 0 {
				return Result{QualifiedNames: candidates, Label: "Method", Ambiguous: true}
			}
		}
		return Result{}
	}

	// 2. Module-level definitions of the containing module.
	if qn, label, ok := t.lookupExact(ctx.ModuleQN + "." + calleeName); ok {
		return Result{QualifiedNames: []string{qn}, Label: label}
	}
	if hasSuffix {
		if qn, label, ok := t.lookupExact(ctx.ModuleQN + "." + suffix); ok {
			return Result{QualifiedNames: []string{qn}, Label: label}
		}
	}

	// 3. Module imports, dotted-prefix longest match.
	if res, ok := t.resolveViaImports(prefix, suffix, hasSuffix, ctx); ok {
		return res
	}

	// 4. Inherited scope: MRO of the owning class for bare/self-qualified
	// method calls.
	if ctx.OwnerClassQN != "" && (prefix == "self" || prefix == "this" || !hasSuffix) {
		name := calleeName
		if hasSuffix {
			name = suffix
		}
		if res, ok := t.resolveViaMRO(ctx.OwnerClassQN, name); ok {
			return res
		}
	}

	// 5. Wildcard imports: union of declared exports.
	if res, ok := t.resolveViaWildcards(ctx.ModuleQN, calleeName, suffix, hasSuffix); ok {
		return res
	}

	// 6. Promote to ExternalPackage.
	return Result{ExternalName: prefix}
}

func (t *Table) lookupExact(qn string) (string, string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	label, ok := t.exact[qn]
	return qn, label, ok
}

func (t *Table) resolveViaImports(prefix, suffix string, hasSuffix bool, ctx Context) (Result, bool) {
	t.mu.RLock()
	aliases := t.importAliases[ctx.ModuleQN]
	t.mu.RUnlock()
	if aliases == nil {
		return Result{}, false
	}

	target, ok := aliases[prefix]
	if !ok {
		return Result{}, false
	}

	candidate := target
	if hasSuffix {
		candidate = target + "." + suffix
	}
	if label, ok := t.Label(candidate); ok {
		return Result{QualifiedNames: []string{candidate}, Label: label}, true
	}

	if hasSuffix {
		t.mu.RLock()
		for qn, label := range t.exact {
			if strings.HasPrefix(qn, target+".") && strings.HasSuffix(qn, "."+suffix) {
				t.mu.RUnlock()
				return Result{QualifiedNames: []string{qn}, Label: label}, true
			}
		}
		t.mu.RUnlock()
	}

	// Import resolved to a known ExternalPackage sink.
	return Result{ExternalName: target}, true
}

func (t *Table) resolveViaMRO(ownerClassQN, methodName string) (Result, bool) {
	mro := t.MRO(ownerClassQN)
	for _, classQN := range mro {
		t.mu.RLock()
		info, ok := t.classes[classQN]
		t.mu.RUnlock()
		if !ok || !info.Methods[methodName] {
			continue
		}
		candidate := classQN + "." + methodName
		if label, ok := t.Label(candidate); ok {
			return Result{QualifiedNames: []string{candidate}, Label: label}, true
		}
	}
	return Result{}, false
}

func (t *Table) resolveViaWildcards(moduleQN, calleeName, suffix string, hasSuffix bool) (Result, bool) {
	t.mu.RLock()
	sources := append([]string(nil), t.wildcardFrom[moduleQN]...)
	t.mu.RUnlock()
	if len(sources) == 0 {
		return Result{}, false
	}

	name := calleeName
	if hasSuffix {
		name = suffix
	}

	var matches []string
	var label string
	for _, src := range sources {
		t.mu.RLock()
		mod := t.modules[src]
		t.mu.RUnlock()
		if mod == nil {
			continue
		}
		if qn, ok := mod.Exports[name]; ok {
			if l, ok := t.Label(qn); ok {
				matches = append(matches, qn)
				label = l
			}
		}
	}
	if len(matches) == 0 {
		return Result{}, false
	}
	return Result{QualifiedNames: matches, Label: label}, true
}

// splitCall separates a dotted call-site expression ("pkg.Func",
// "self.method", "Func") into its leading identifier and the remaining
// dotted suffix, if any.
func splitCall(calleeName string) (prefix, suffix string, hasSuffix bool) {
	idx := strings.Index(calleeName, ".")
	if idx < 0 {
		return calleeName, "", false
	}
	return calleeName[:idx], calleeName[idx+1:], true
}

// CandidatesForSimpleName returns every Method-labeled qualified name
// sharing a simple name, used by the dynamic-dispatch over-approximation:
// when a receiver's static class cannot be inferred, candidate edges go to
// all methods with the matching simple name in the project.
func (t *Table) CandidatesForSimpleName(name string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []string
	for _, qn := range t.byName[name] {
		if t.exact[qn] == "Method" {
			out = append(out, qn)
		}
	}
	return out
}

// PromoteExternal records that name was referenced but never resolved to a
// project-local symbol, satisfying the external-package-closure invariant.
func (t *Table) PromoteExternal(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.externalPackages[name] = true
}

// ExternalPackages returns every top-level name promoted to ExternalPackage.
func (t *Table) ExternalPackages() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.externalPackages))
	for name := range t.externalPackages {
		out = append(out, name)
	}
	return out
}
