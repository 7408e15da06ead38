package ingest

import (
	"context"
	"strings"

	"github.com/codegraph-io/codegraph/internal/graph"
	"github.com/codegraph-io/codegraph/internal/resolver"
)

// writeDefinitions populates the symbol table from every parsed file's
// structural symbols, then writes the Class/Function/Method/Module nodes and
// their DEFINES/DEFINES_METHOD/IMPORTS/INHERITS/IMPLEMENTS edges. Registering
// the whole table before resolving any INHERITS/IMPLEMENTS reference lets a
// class inherit from a base declared in a file processed later.
func writeDefinitions(ctx context.Context, w *graph.Writer, table *resolver.Table, results []*fileResult) error {
	for _, r := range results {
		exports := make(map[string]string)
		for _, s := range r.Symbols {
			if s.ParentQN == r.ModuleQN {
				exports[s.Name] = s.QN
			}
			table.RegisterSymbol(s.QN, s.Label)
		}
		table.RegisterModule(r.ModuleQN, r.File.RelPath, exports)

		for classQN, methods := range r.ClassMethods {
			table.RegisterClass(classQN, r.ClassBases[classQN], methods)
		}
		for classQN, bases := range r.ClassBases {
			if _, ok := r.ClassMethods[classQN]; !ok {
				table.RegisterClass(classQN, bases, nil)
			}
		}
		for local, target := range r.ImportAliases {
			table.RegisterImportAlias(r.ModuleQN, local, target)
		}
		for _, src := range r.Wildcards {
			table.RegisterWildcardImport(r.ModuleQN, src)
		}
	}

	for _, r := range results {
		for _, s := range r.Symbols {
			props := map[string]any{"name": s.Name, "file_path": s.FilePath}
			if s.StartLine > 0 {
				props["start_line"] = s.StartLine
				props["end_line"] = s.EndLine
			}
			if err := w.UpsertNode(ctx, s.Label, s.QN, props); err != nil {
				return err
			}
			if err := w.UpsertEdge(ctx,
				graph.NodeRef{Label: s.ParentLabel, QualifiedName: s.ParentQN}, s.EdgeType,
				graph.NodeRef{Label: s.Label, QualifiedName: s.QN}, nil); err != nil {
				return err
			}
		}

		if err := writeImports(ctx, w, table, r); err != nil {
			return err
		}
		if err := writeInherits(ctx, w, table, r); err != nil {
			return err
		}
	}

	if err := writeImplements(ctx, w, results); err != nil {
		return err
	}
	return nil
}

// writeImports emits an IMPORTS edge from a file's Module to each distinct
// import target: a project Module when the alias resolves to one, else an
// ExternalPackage (created on demand, satisfying the external-package
// closure invariant).
func writeImports(ctx context.Context, w *graph.Writer, table *resolver.Table, r *fileResult) error {
	seen := make(map[string]bool)
	targets := make(map[string]bool)
	for _, target := range r.ImportAliases {
		targets[target] = true
	}
	for _, target := range r.Wildcards {
		targets[target] = true
	}

	for target := range targets {
		moduleTarget := target
		if idx := strings.LastIndex(target, "."); idx >= 0 {
			if table.Exists(target) {
				moduleTarget = target[:idx]
			}
		}
		if seen[moduleTarget] {
			continue
		}
		seen[moduleTarget] = true

		if label, ok := table.Label(moduleTarget); ok && label == "Module" {
			if err := w.UpsertEdge(ctx,
				graph.NodeRef{Label: "Module", QualifiedName: r.ModuleQN}, "IMPORTS",
				graph.NodeRef{Label: "Module", QualifiedName: moduleTarget}, nil); err != nil {
				return err
			}
			continue
		}

		extName := moduleTarget
		if !looksLikeProjectPath(extName, r.ModuleQN) {
			if err := w.UpsertNode(ctx, "ExternalPackage", extName, map[string]any{"name": extName}); err != nil {
				return err
			}
			if err := w.UpsertEdge(ctx,
				graph.NodeRef{Label: "Module", QualifiedName: r.ModuleQN}, "IMPORTS",
				graph.NodeRef{Label: "ExternalPackage", QualifiedName: extName}, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// looksLikeProjectPath is a best-effort guard against promoting an
// unresolved project-internal path (a typo, or a module ingested later in
// this same run under a name we haven't registered yet) to ExternalPackage;
// it only suppresses promotion when the target shares this file's project
// prefix.
func looksLikeProjectPath(target, moduleQN string) bool {
	idx := strings.Index(moduleQN, ".")
	if idx < 0 {
		return false
	}
	return strings.HasPrefix(target, moduleQN[:idx]+".")
}

// writeInherits resolves each class's recorded base references against the
// table and emits an INHERITS edge per resolved base, skipping references
// that resolve only to an ExternalPackage (an unexported third-party base we
// cannot model further).
func writeInherits(ctx context.Context, w *graph.Writer, table *resolver.Table, r *fileResult) error {
	for classQN, bases := range r.ClassBases {
		for _, base := range bases {
			res := table.Resolve(base, resolver.Context{ModuleQN: r.ModuleQN})
			for _, baseQN := range res.QualifiedNames {
				label, _ := table.Label(baseQN)
				if label == "" {
					label = "Class"
				}
				if err := w.UpsertEdge(ctx,
					graph.NodeRef{Label: classLabelForQN(table, classQN), QualifiedName: classQN}, "INHERITS",
					graph.NodeRef{Label: label, QualifiedName: baseQN}, nil); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func classLabelForQN(table *resolver.Table, qn string) string {
	if label, ok := table.Label(qn); ok {
		return label
	}
	return "Class"
}

// writeImplements detects Go structural interface satisfaction: a struct
// implements an interface when it defines every method the interface
// declares. This mirrors the teacher's Go-specific implements pass, adapted
// to work off in-memory fileResults instead of a queryable store.
func writeImplements(ctx context.Context, w *graph.Writer, results []*fileResult) error {
	type ifaceInfo struct {
		qn      string
		methods []string
	}
	var ifaces []ifaceInfo
	structMethods := make(map[string]map[string]bool) // struct QN -> method set

	for _, r := range results {
		if r.Language != "go" {
			continue
		}
		for _, s := range r.Symbols {
			if s.Label != "Interface" {
				continue
			}
			ifaces = append(ifaces, ifaceInfo{qn: s.QN, methods: r.ClassMethods[s.QN]})
		}
		for classQN, methods := range r.ClassMethods {
			isIface := false
			for _, s := range r.Symbols {
				if s.QN == classQN && s.Label == "Interface" {
					isIface = true
					break
				}
			}
			if isIface {
				continue
			}
			set := structMethods[classQN]
			if set == nil {
				set = make(map[string]bool)
				structMethods[classQN] = set
			}
			for _, m := range methods {
				set[m] = true
			}
		}
	}

	for _, iface := range ifaces {
		if len(iface.methods) == 0 {
			continue
		}
		for structQN, methodSet := range structMethods {
			if structQN == iface.qn {
				continue
			}
			if !satisfiesAll(iface.methods, methodSet) {
				continue
			}
			if err := w.UpsertEdge(ctx,
				graph.NodeRef{Label: "Class", QualifiedName: structQN}, "IMPLEMENTS",
				graph.NodeRef{Label: "Interface", QualifiedName: iface.qn}, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func satisfiesAll(required []string, have map[string]bool) bool {
	for _, m := range required {
		if !have[m] {
			return false
		}
	}
	return true
}
