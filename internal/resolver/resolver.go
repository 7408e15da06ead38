// Package resolver implements the per-project symbol table described in
// SPEC_FULL.md §4.2: it turns syntactic references into the qualified names
// of graph entities, handling local/module/import/inheritance lookup,
// wildcard-import unions, and ExternalPackage fallback.
package resolver

import (
	"strings"
	"sync"
)

// ModuleInfo is the resolver's per-module record: its path and its declared
// exports (local name -> qualified name). Import aliases are kept separately
// in Table.importAliases.
type ModuleInfo struct {
	Path    string
	Exports map[string]string // local name -> qualified name
}

// ClassInfo is the resolver's per-class record: its base-class references
// (as written in source, not yet resolved) and its declared method names.
type ClassInfo struct {
	QualifiedName string
	Bases         []string // unresolved source text or already-resolved QNs
	Methods       map[string]bool
}

// Table is the per-project symbol table. It is built during pass 1 (writes
// serialized through the ingester's single driver task) and read during
// pass 2 (safe to share across parallel file workers once sealed).
type Table struct {
	mu sync.RWMutex

	// exact maps qualified_name -> label for every registered symbol
	// (Module, Class, Interface, Function, Method).
	exact map[string]string
	// byName maps simple name -> []qualified_name for fallback lookup.
	byName map[string][]string

	modules       map[string]*ModuleInfo          // module QN -> info
	importAliases map[string]map[string]string    // module QN -> local name -> target QN
	wildcardFrom  map[string][]string             // module QN -> list of modules wildcard-imported
	classes       map[string]*ClassInfo           // class QN -> info

	externalPackages map[string]bool

	mroCache map[string][]string
}

// New creates an empty, per-project symbol table.
func New() *Table {
	return &Table{
		exact:            make(map[string]string),
		byName:           make(map[string][]string),
		modules:          make(map[string]*ModuleInfo),
		importAliases:    make(map[string]map[string]string),
		wildcardFrom:     make(map[string][]string),
		classes:          make(map[string]*ClassInfo),
		externalPackages: make(map[string]bool),
		mroCache:         make(map[string][]string),
	}
}

// RegisterModule records a module's declared exports.
func (t *Table) RegisterModule(qn, path string, exports map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.modules[qn] = &ModuleInfo{Path: path, Exports: exports}
}

// RegisterSymbol indexes a definition (Module, Class, Interface, Function,
// or Method) by its qualified name and simple name.
func (t *Table) RegisterSymbol(qualifiedName, label string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.exact[qualifiedName] = label
	simple := simpleName(qualifiedName)
	for _, existing := range t.byName[simple] {
		if existing == qualifiedName {
			return
		}
	}
	t.byName[simple] = append(t.byName[simple], qualifiedName)
}

// RegisterClass records a class's (unresolved) base references and method
// set, used by MRO computation and inherited-scope lookup.
func (t *Table) RegisterClass(qn string, bases []string, methods []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ms := make(map[string]bool, len(methods))
	for _, m := range methods {
		ms[m] = true
	}
	t.classes[qn] = &ClassInfo{QualifiedName: qn, Bases: bases, Methods: ms}
}

// RegisterImportAlias binds a local name, in a module, to a target qualified
// name (project-local module/symbol or an ExternalPackage QN).
func (t *Table) RegisterImportAlias(moduleQN, localName, targetQN string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.importAliases[moduleQN] == nil {
		t.importAliases[moduleQN] = make(map[string]string)
	}
	t.importAliases[moduleQN][localName] = targetQN
}

// RegisterWildcardImport records that moduleQN did `from sourceQN import *`.
func (t *Table) RegisterWildcardImport(moduleQN, sourceQN string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.wildcardFrom[moduleQN] = append(t.wildcardFrom[moduleQN], sourceQN)
}

// Exists reports whether a qualified name is a known project symbol.
func (t *Table) Exists(qn string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.exact[qn]
	return ok
}

// Label returns the node label registered for a qualified name, if any.
func (t *Table) Label(qn string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	l, ok := t.exact[qn]
	return l, ok
}

func simpleName(qn string) string {
	if idx := strings.LastIndex(qn, "."); idx >= 0 {
		return qn[idx+1:]
	}
	return qn
}
