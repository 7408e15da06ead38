package ingest

import (
	"bytes"
	"context"
	"fmt"
	"os"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codegraph-io/codegraph/internal/discover"
	"github.com/codegraph-io/codegraph/internal/fqn"
	"github.com/codegraph-io/codegraph/internal/lang"
	"github.com/codegraph-io/codegraph/internal/parser"
)

// symbolSpec is one node pass 1 discovered, plus the CONTAINS/DEFINES-style
// edge that attaches it to its parent.
type symbolSpec struct {
	Label       string
	QN          string
	Name        string
	FilePath    string
	StartLine   int
	EndLine     int
	Props       map[string]any
	ParentQN    string
	ParentLabel string
	EdgeType    string

	// Node is the function/method's own AST node, kept so pass 2 can re-walk
	// its body for call resolution without reparsing. Nil for Module/Class.
	Node *tree_sitter.Node
	// OwnerClassQN is set for Method symbols to the enclosing class's QN, so
	// pass 2 can resolve "self."/MRO-based calls.
	OwnerClassQN string
}

// fileResult is everything pass 1 extracted from a single source file.
type fileResult struct {
	File          discover.FileInfo
	ModuleQN      string
	Language      lang.Language
	Tree          *tree_sitter.Tree
	Source        []byte
	Symbols       []symbolSpec
	ClassBases    map[string][]string // class QN -> raw base-reference text
	ClassMethods  map[string][]string // class QN -> simple method names
	ImportAliases map[string]string   // local name -> target QN (or ExternalPackage name)
	Wildcards     []string            // module QNs wildcard-imported into this file
}

// parsePass1 parses every discovered file concurrently (pure CPU work, no
// shared mutable state) and returns one fileResult per file that parsed
// successfully, skipping and diagnosing the rest. Order of the results
// slice matches no particular order; callers must not assume file order.
func parsePass1(ctx context.Context, files []discover.FileInfo, project string) ([]*fileResult, []Diagnostic) {
	results := make([]*fileResult, len(files))
	errs := make([]error, len(files))

	_ = runBounded(ctx, len(files), func(i int) error {
		f := files[i]
		spec := lang.ForLanguage(f.Language)
		if spec == nil {
			return nil // unsupported/ignored extension (e.g. JSON): skip, not fatal
		}

		source, err := readSource(f.Path)
		if err != nil {
			errs[i] = fmt.Errorf("read: %w", err)
			return nil
		}

		tree, err := parser.Parse(f.Language, source)
		if err != nil {
			errs[i] = fmt.Errorf("parse: %w", err)
			return nil
		}

		result := extractFile(f, spec, tree, source, project)
		results[i] = result
		return nil
	})

	var out []*fileResult
	var diags []Diagnostic
	for i, r := range results {
		if errs[i] != nil {
			diags = append(diags, Diagnostic{Path: files[i].RelPath, Err: errs[i].Error()})
			continue
		}
		if r != nil {
			out = append(out, r)
		}
	}
	return out, diags
}

func readSource(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF}), nil
}

func extractFile(f discover.FileInfo, spec *lang.LanguageSpec, tree *tree_sitter.Tree, source []byte, project string) *fileResult {
	moduleQN := fqn.ModuleQN(project, f.RelPath)
	fileQN := moduleQN // File and Module share a qualified name in this model and differ only by label.

	result := &fileResult{
		File:          f,
		ModuleQN:      moduleQN,
		Language:      f.Language,
		Tree:          tree,
		Source:        source,
		ClassBases:    make(map[string][]string),
		ClassMethods:  make(map[string][]string),
		ImportAliases: make(map[string]string),
	}

	result.Symbols = append(result.Symbols, symbolSpec{
		Label: "Module", QN: moduleQN, Name: f.RelPath, FilePath: f.RelPath,
		ParentQN: fileQN, ParentLabel: "File", EdgeType: "CONTAINS",
	})

	root := tree.RootNode()
	walkDefinitions(root, root, spec, source, moduleQN, "", result)

	aliases, wildcards := parseImports(root, source, f.Language, project, f.RelPath)
	result.ImportAliases = aliases
	result.Wildcards = wildcards

	return result
}

// walkDefinitions recursively classifies Class and Function/Method nodes.
// currentClassQN is non-empty while descending through a class body, so
// nested functions are recorded as Methods rather than top-level Functions.
func walkDefinitions(node, root *tree_sitter.Node, spec *lang.LanguageSpec, source []byte, moduleQN, currentClassQN string, result *fileResult) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		kind := child.Kind()

		switch {
		case contains(spec.ClassNodeTypes, kind):
			name := nodeName(child, source)
			if name == "" {
				walkDefinitions(child, root, spec, source, moduleQN, currentClassQN, result)
				continue
			}
			classQN := moduleQN + "." + name
			label := classKindLabel(spec, child)
			start, end := nodeLines(child)

			result.Symbols = append(result.Symbols, symbolSpec{
				Label: label, QN: classQN, Name: name, FilePath: result.File.RelPath,
				StartLine: start, EndLine: end,
				ParentQN: moduleQN, ParentLabel: "Module", EdgeType: "DEFINES",
			})
			result.ClassBases[classQN] = genericBaseClasses(child, source)

			walkDefinitions(child, root, spec, source, moduleQN, classQN, result)

		case contains(spec.FunctionNodeTypes, kind):
			name := nodeName(child, source)
			if name == "" {
				walkDefinitions(child, root, spec, source, moduleQN, currentClassQN, result)
				continue
			}
			start, end := nodeLines(child)

			ownerClassQN := currentClassQN
			if ownerClassQN == "" && spec.Language == lang.Go {
				if recv := goReceiverType(child, source); recv != "" {
					ownerClassQN = moduleQN + "." + recv
				}
			}

			if ownerClassQN != "" {
				qn := ownerClassQN + "." + name
				result.Symbols = append(result.Symbols, symbolSpec{
					Label: "Method", QN: qn, Name: name, FilePath: result.File.RelPath,
					StartLine: start, EndLine: end,
					ParentQN: ownerClassQN, ParentLabel: classLabelFor(result, ownerClassQN), EdgeType: "DEFINES_METHOD",
					Node: child, OwnerClassQN: ownerClassQN,
				})
				result.ClassMethods[ownerClassQN] = append(result.ClassMethods[ownerClassQN], name)
			} else {
				qn := moduleQN + "." + name
				result.Symbols = append(result.Symbols, symbolSpec{
					Label: "Function", QN: qn, Name: name, FilePath: result.File.RelPath,
					StartLine: start, EndLine: end,
					ParentQN: moduleQN, ParentLabel: "Module", EdgeType: "DEFINES",
					Node: child,
				})
			}
			// Do not descend into the function body during the definitions
			// walk; call resolution re-walks bodies in pass 2.

		default:
			walkDefinitions(child, root, spec, source, moduleQN, currentClassQN, result)
		}
	}
}

// classLabelFor looks up the label already recorded for a class QN within
// this file (Class vs Interface), defaulting to Class for a Go receiver
// whose type_spec wasn't seen (e.g. an embedded/anonymous type).
func classLabelFor(result *fileResult, classQN string) string {
	for _, s := range result.Symbols {
		if s.QN == classQN && (s.Label == "Class" || s.Label == "Interface") {
			return s.Label
		}
	}
	return "Class"
}

func classKindLabel(spec *lang.LanguageSpec, node *tree_sitter.Node) string {
	if spec.Language == lang.Go && node.Kind() == "type_spec" {
		switch goTypeSpecKind(node) {
		case "interface":
			return "Interface"
		default:
			return "Class"
		}
	}
	return "Class"
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
