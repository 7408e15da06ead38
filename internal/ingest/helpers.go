package ingest

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codegraph-io/codegraph/internal/parser"
)

// nodeName extracts a definition node's identifier: the "name" field when
// the grammar exposes one, else the first identifier-shaped child.
func nodeName(node *tree_sitter.Node, source []byte) string {
	if n := node.ChildByFieldName("name"); n != nil {
		return parser.NodeText(n, source)
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		if strings.Contains(child.Kind(), "identifier") {
			return parser.NodeText(child, source)
		}
	}
	return ""
}

func nodeLines(node *tree_sitter.Node) (start, end int) {
	return int(node.StartPosition().Row) + 1, int(node.EndPosition().Row) + 1
}

// heritageKinds are tree-sitter node kinds across the grammar pack whose
// subtree holds a class's base-type references.
var heritageKinds = map[string]bool{
	"superclasses":     true, // Python's field name; genericBaseClasses also matches the field itself
	"class_heritage":   true, // JavaScript/TypeScript
	"extends_clause":   true,
	"implements_clause": true,
	"base_class_clause": true, // C++
	"base_list":         true, // C#
	"superclass":        true, // Java/PHP
	"interfaces":        true, // Java
	"trait_list":        true, // PHP
}

// genericBaseClasses scans a class-like node's immediate subtree for
// heritage clauses and collects the identifier text of each base reference.
// It is a best-effort, grammar-agnostic substitute for the teacher's
// per-language extractBaseClasses special cases.
func genericBaseClasses(node *tree_sitter.Node, source []byte) []string {
	var bases []string
	seen := make(map[string]bool)
	// Python puts its base list in an argument_list under the "superclasses"
	// field, so that node is matched by position rather than by kind.
	superclasses := node.ChildByFieldName("superclasses")

	parser.Walk(node, func(n *tree_sitter.Node) bool {
		if n == node {
			return true
		}
		isSuperclasses := superclasses != nil && n.Kind() == superclasses.Kind() &&
			n.StartByte() == superclasses.StartByte() && n.EndByte() == superclasses.EndByte()
		if !heritageKinds[n.Kind()] && !isSuperclasses {
			// Keep descending only through the class's direct syntax, not
			// into nested class/function bodies.
			return !strings.Contains(n.Kind(), "body") && !strings.Contains(n.Kind(), "block")
		}
		parser.Walk(n, func(leaf *tree_sitter.Node) bool {
			if strings.Contains(leaf.Kind(), "identifier") {
				name := parser.NodeText(leaf, source)
				if name != "" && !seen[name] {
					seen[name] = true
					bases = append(bases, name)
				}
			}
			return true
		})
		return false
	})
	return bases
}

// goReceiverType returns the receiver's bare type name for a Go
// method_declaration node ("(h *Handlers)" -> "Handlers"), or "" if the
// node has no receiver (a plain function).
func goReceiverType(node *tree_sitter.Node, source []byte) string {
	recv := node.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	var typeName string
	parser.Walk(recv, func(n *tree_sitter.Node) bool {
		if n.Kind() == "type_identifier" {
			typeName = parser.NodeText(n, source)
			return false
		}
		return true
	})
	return typeName
}

// goTypeSpecKind classifies a Go type_spec node's underlying type.
func goTypeSpecKind(node *tree_sitter.Node) string {
	typeNode := node.ChildByFieldName("type")
	if typeNode == nil {
		return "alias"
	}
	switch typeNode.Kind() {
	case "interface_type":
		return "interface"
	case "struct_type":
		return "struct"
	default:
		return "alias"
	}
}
