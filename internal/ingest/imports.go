package ingest

import (
	"path/filepath"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codegraph-io/codegraph/internal/fqn"
	"github.com/codegraph-io/codegraph/internal/lang"
	"github.com/codegraph-io/codegraph/internal/parser"
)

// parseImports extracts a file's import aliases and wildcard imports. Only
// Go and Python are handled, matching the teacher's own import resolution
// scope; other languages resolve calls via module/MRO/ExternalPackage steps
// alone, with no import-alias step.
func parseImports(root *tree_sitter.Node, source []byte, language lang.Language, projectName, relPath string) (map[string]string, []string) {
	switch language {
	case lang.Go:
		return parseGoImports(root, source, projectName), nil
	case lang.Python:
		return parsePythonImports(root, source, projectName, relPath)
	default:
		return nil, nil
	}
}

// parseGoImports extracts Go import declarations: localName -> resolved QN
// (project-internal dotted path) or external package path.
func parseGoImports(root *tree_sitter.Node, source []byte, projectName string) map[string]string {
	imports := make(map[string]string)

	parser.Walk(root, func(node *tree_sitter.Node) bool {
		if node.Kind() != "import_declaration" {
			return true
		}
		processGoImportDecl(node, source, projectName, imports)
		return false
	})

	return imports
}

func processGoImportDecl(node *tree_sitter.Node, source []byte, projectName string, imports map[string]string) {
	parser.Walk(node, func(child *tree_sitter.Node) bool {
		if child.Kind() != "import_spec" {
			return true
		}

		pathNode := child.ChildByFieldName("path")
		if pathNode == nil {
			return false
		}

		importPath := stripQuotes(parser.NodeText(pathNode, source))
		if importPath == "" {
			return false
		}

		localName := lastPathSegment(importPath)
		if nameNode := child.ChildByFieldName("name"); nameNode != nil {
			if alias := parser.NodeText(nameNode, source); alias != "" && alias != "." && alias != "_" {
				localName = alias
			}
		}

		imports[localName] = resolveGoImportPath(importPath, projectName)
		return false
	})
}

// resolveGoImportPath converts a Go import path to a project-internal QN
// when the path contains the project name as a segment, else leaves it as
// a dotted external-package name ("net/http" -> "net.http").
func resolveGoImportPath(importPath, projectName string) string {
	parts := strings.Split(importPath, "/")
	for i, part := range parts {
		if part == projectName {
			return strings.Join(parts[i:], ".")
		}
	}
	return strings.Join(parts, ".")
}

// parsePythonImports extracts "import X [as Y]" and "from X import Y [as Z]"
// statements, returning alias assignments and any wildcard ("from X import
// *") targets.
func parsePythonImports(root *tree_sitter.Node, source []byte, projectName, relPath string) (map[string]string, []string) {
	imports := make(map[string]string)
	var wildcards []string

	parser.Walk(root, func(node *tree_sitter.Node) bool {
		switch node.Kind() {
		case "import_statement":
			processPythonImport(node, source, projectName, imports)
			return false
		case "import_from_statement":
			w := processPythonFromImport(node, source, projectName, relPath, imports)
			if w != "" {
				wildcards = append(wildcards, w)
			}
			return false
		}
		return true
	})

	return imports, wildcards
}

func processPythonImport(node *tree_sitter.Node, source []byte, projectName string, imports map[string]string) {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "dotted_name":
			name := parser.NodeText(child, source)
			imports[lastDotSegment(name)] = resolvePythonModule(name, projectName)
		case "aliased_import":
			nameNode := child.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			name := parser.NodeText(nameNode, source)
			localName := lastDotSegment(name)
			if aliasNode := child.ChildByFieldName("alias"); aliasNode != nil {
				localName = parser.NodeText(aliasNode, source)
			}
			imports[localName] = resolvePythonModule(name, projectName)
		}
	}
}

// processPythonFromImport handles "from X import Y[, Z][ as W]" and returns
// a non-empty wildcard module QN when the statement is "from X import *".
func processPythonFromImport(node *tree_sitter.Node, source []byte, projectName, relPath string, imports map[string]string) string {
	moduleNode := node.ChildByFieldName("module_name")
	var modulePath string
	isRelative := false

	if moduleNode != nil {
		modulePath = parser.NodeText(moduleNode, source)
		isRelative = strings.HasPrefix(modulePath, ".")
	} else if strings.HasPrefix(parser.NodeText(node, source), "from .") {
		isRelative = true
		modulePath = "."
	}

	var baseModule string
	if isRelative {
		baseModule = resolveRelativePythonImport(modulePath, relPath, projectName)
	} else {
		baseModule = resolvePythonModule(modulePath, projectName)
	}

	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "wildcard_import":
			return baseModule
		case "dotted_name":
			name := parser.NodeText(child, source)
			if name == modulePath {
				continue
			}
			localName := lastDotSegment(name)
			if baseModule != "" {
				imports[localName] = baseModule + "." + name
			} else {
				imports[localName] = name
			}
		case "aliased_import":
			nameNode := child.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			name := parser.NodeText(nameNode, source)
			localName := lastDotSegment(name)
			if aliasNode := child.ChildByFieldName("alias"); aliasNode != nil {
				localName = parser.NodeText(aliasNode, source)
			}
			if baseModule != "" {
				imports[localName] = baseModule + "." + name
			} else {
				imports[localName] = name
			}
		}
	}
	return ""
}

// resolvePythonModule converts a Python module path to a project QN.
func resolvePythonModule(modulePath, projectName string) string {
	if modulePath == "" {
		return projectName
	}
	return projectName + "." + modulePath
}

// resolveRelativePythonImport resolves "from . import X" / "from ..pkg
// import X" relative to the importing file's own directory.
func resolveRelativePythonImport(modulePath, relPath, projectName string) string {
	dots := 0
	for _, ch := range modulePath {
		if ch != '.' {
			break
		}
		dots++
	}
	remainder := strings.TrimLeft(modulePath, ".")

	dir := filepath.Dir(relPath)
	for i := 1; i < dots; i++ {
		dir = filepath.Dir(dir)
	}

	baseQN := fqn.FolderQN(projectName, dir)
	if dir == "." || dir == "" {
		baseQN = projectName
	}

	if remainder != "" {
		return baseQN + "." + remainder
	}
	return baseQN
}

func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '`' && s[len(s)-1] == '`') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func lastPathSegment(path string) string {
	parts := strings.Split(path, "/")
	return parts[len(parts)-1]
}

func lastDotSegment(name string) string {
	parts := strings.Split(name, ".")
	return parts[len(parts)-1]
}
