package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/codegraph-io/codegraph/internal/discover"
	"github.com/codegraph-io/codegraph/internal/fqn"
	"github.com/codegraph-io/codegraph/internal/graph"
	"github.com/codegraph-io/codegraph/internal/lang"
)

// dirNode is one Package or Folder node plus its CONTAINS parent.
type dirNode struct {
	qn          string
	label       string // "Package" or "Folder"
	name        string
	parentQN    string
	parentLabel string
}

// fileNode is a File node plus its CONTAINS parent directory.
type fileNode struct {
	qn          string
	name        string
	ext         string
	parentQN    string
	parentLabel string
}

// containmentTree is the full Project/Package/Folder/File structure for a
// discovered file set, built once before any per-file parsing begins.
type containmentTree struct {
	project string
	dirs    []dirNode
	files   []fileNode
}

// buildContainment classifies every directory between the repo root and a
// discovered file as a Package (it holds one of some language's package
// indicators, e.g. __init__.py, go.mod, Cargo.toml) or a plain Folder, and
// builds the CONTAINS chain from Project down to each File.
func buildContainment(repoPath string, files []discover.FileInfo, project string) containmentTree {
	tree := containmentTree{project: project}

	labels := make(map[string]string) // relDir -> label, "" for project root
	labels[""] = "Project"

	seen := make(map[string]bool)
	for _, f := range files {
		dir := filepath.Dir(f.RelPath)
		if dir == "." {
			dir = ""
		}
		registerDirChain(&tree, repoPath, project, dir, seen, labels)

		parentQN, parentLabel := project, "Project"
		if dir != "" {
			parentQN = fqn.FolderQN(project, dir)
			parentLabel = labels[dir]
		}
		tree.files = append(tree.files, fileNode{
			qn:          fqn.ModuleQN(project, f.RelPath),
			name:        filepath.Base(f.RelPath),
			ext:         filepath.Ext(f.RelPath),
			parentQN:    parentQN,
			parentLabel: parentLabel,
		})
	}

	sort.Slice(tree.dirs, func(i, j int) bool { return tree.dirs[i].qn < tree.dirs[j].qn })
	return tree
}

func registerDirChain(tree *containmentTree, repoPath, project, dir string, seen map[string]bool, labels map[string]string) {
	if dir == "" || seen[dir] {
		return
	}

	parent := filepath.Dir(dir)
	if parent == "." {
		parent = ""
	}
	registerDirChain(tree, repoPath, project, parent, seen, labels)

	parentQN, parentLabel := project, "Project"
	if parent != "" {
		parentQN = fqn.FolderQN(project, parent)
		parentLabel = labels[parent]
	}

	label := "Folder"
	if isPackageDir(filepath.Join(repoPath, dir)) {
		label = "Package"
	}
	labels[dir] = label

	tree.dirs = append(tree.dirs, dirNode{
		qn:          fqn.FolderQN(project, dir),
		label:       label,
		name:        filepath.Base(dir),
		parentQN:    parentQN,
		parentLabel: parentLabel,
	})
	seen[dir] = true
}

// isPackageDir checks filesystem presence of any registered language's
// package indicator inside an absolute directory path.
func isPackageDir(absDir string) bool {
	for _, l := range lang.AllLanguages() {
		spec := lang.ForLanguage(l)
		if spec == nil {
			continue
		}
		for _, indicator := range spec.PackageIndicators {
			if strings.ContainsAny(indicator, "*?[") {
				if matches, _ := filepath.Glob(filepath.Join(absDir, indicator)); len(matches) > 0 {
					return true
				}
				continue
			}
			if _, err := os.Stat(filepath.Join(absDir, indicator)); err == nil {
				return true
			}
		}
	}
	return false
}

func writeContainment(ctx context.Context, w *graph.Writer, tree containmentTree) error {
	for _, d := range tree.dirs {
		if err := w.UpsertNode(ctx, d.label, d.qn, map[string]any{"name": d.name}); err != nil {
			return err
		}
		if err := w.UpsertEdge(ctx,
			graph.NodeRef{Label: d.parentLabel, QualifiedName: d.parentQN}, "CONTAINS",
			graph.NodeRef{Label: d.label, QualifiedName: d.qn}, nil); err != nil {
			return err
		}
	}

	for _, f := range tree.files {
		if err := w.UpsertNode(ctx, "File", f.qn, map[string]any{"name": f.name, "extension": f.ext}); err != nil {
			return err
		}
		if err := w.UpsertEdge(ctx,
			graph.NodeRef{Label: f.parentLabel, QualifiedName: f.parentQN}, "CONTAINS",
			graph.NodeRef{Label: "File", QualifiedName: f.qn}, nil); err != nil {
			return err
		}
	}
	return nil
}
