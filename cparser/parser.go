// Package cparser parses neutralized Pro*C source with the tree-sitter C
// grammar and extracts function records. Functions the grammar cannot
// represent (the legacy begin/end form) are recovered by a textual fallback
// scanner; those records carry no AST node.
package cparser

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
)

// FunctionInfo describes one function found in the parsed source. Node is a
// non-owning reference into the current parse tree; it is nil for functions
// found by the textual fallback and is valid only until the next Parse call.
type FunctionInfo struct {
	Name       string
	StartLine  int
	EndLine    int
	Node       *sitter.Node
	Parameters []string
	ReturnType string
}

// LineCount returns the inclusive line span of the function.
func (f FunctionInfo) LineCount() int {
	return f.EndLine - f.StartLine + 1
}

// SyntaxTree wraps a tree-sitter C parser. A Parse call discards the
// previous tree and any cached function list; callers must not hold
// FunctionInfo values across parses.
type SyntaxTree struct {
	parser *sitter.Parser
	tree   *sitter.Tree
	source []byte
}

// New creates a SyntaxTree with the C grammar loaded.
func New() *SyntaxTree {
	p := sitter.NewParser()
	p.SetLanguage(c.GetLanguage())
	return &SyntaxTree{parser: p}
}

// Parse parses source, replacing any previous tree.
func (t *SyntaxTree) Parse(ctx context.Context, source string) error {
	if t.tree != nil {
		t.tree.Close()
		t.tree = nil
	}
	t.source = []byte(source)

	tree, err := t.parser.ParseCtx(ctx, nil, t.source)
	if err != nil {
		return fmt.Errorf("parse source: %w", err)
	}
	t.tree = tree
	return nil
}

// Close releases the current tree.
func (t *SyntaxTree) Close() {
	if t.tree != nil {
		t.tree.Close()
		t.tree = nil
	}
}

// RootNode returns the root of the current tree, or nil before Parse.
func (t *SyntaxTree) RootNode() *sitter.Node {
	if t.tree == nil {
		return nil
	}
	return t.tree.RootNode()
}

// HasErrors reports whether any error or missing node exists anywhere in
// the tree. A tree with errors is still usable; extraction is best-effort.
func (t *SyntaxTree) HasErrors() bool {
	if t.tree == nil {
		return true
	}
	return hasErrorNodes(t.tree.RootNode())
}

func hasErrorNodes(node *sitter.Node) bool {
	if node.Type() == "ERROR" || node.IsMissing() {
		return true
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if hasErrorNodes(node.Child(i)) {
			return true
		}
	}
	return false
}

// NodeText extracts the source text for a node. Byte offsets keep this
// correct for multi-byte input.
func (t *SyntaxTree) NodeText(node *sitter.Node) string {
	return string(t.source[node.StartByte():node.EndByte()])
}

// Functions returns every function definition: grammar-detected ones first,
// then textual-fallback ones whose names are not already taken.
func (t *SyntaxTree) Functions() []FunctionInfo {
	if t.tree == nil {
		return nil
	}

	var functions []FunctionInfo
	t.findFunctions(t.tree.RootNode(), &functions)

	seen := make(map[string]bool, len(functions))
	for _, f := range functions {
		seen[f.Name] = true
	}
	for _, f := range scanLegacyFunctions(string(t.source)) {
		if !seen[f.Name] {
			seen[f.Name] = true
			functions = append(functions, f)
		}
	}
	return functions
}

func (t *SyntaxTree) findFunctions(node *sitter.Node, out *[]FunctionInfo) {
	if node.Type() == "function_definition" {
		if fn, ok := t.extractFunction(node); ok {
			*out = append(*out, fn)
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		t.findFunctions(node.Child(i), out)
	}
}

func (t *SyntaxTree) extractFunction(node *sitter.Node) (FunctionInfo, bool) {
	var (
		name       string
		returnType = "void"
		params     []string
		declarator *sitter.Node
	)

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "function_declarator":
			declarator = child
		case "pointer_declarator":
			// Pointer-returning function: the declarator is wrapped.
			for j := 0; j < int(child.ChildCount()); j++ {
				if sub := child.Child(j); sub.Type() == "function_declarator" {
					declarator = sub
					break
				}
			}
		case "primitive_type", "type_identifier", "sized_type_specifier":
			returnType = t.NodeText(child)
		}
	}

	if declarator != nil {
		for i := 0; i < int(declarator.ChildCount()); i++ {
			child := declarator.Child(i)
			switch child.Type() {
			case "identifier":
				name = t.NodeText(child)
			case "parameter_list":
				params = t.extractParameters(child)
			}
		}
	}

	if name == "" {
		name = t.findFunctionName(node)
	}
	if name == "" {
		return FunctionInfo{}, false
	}

	return FunctionInfo{
		Name:       name,
		StartLine:  int(node.StartPoint().Row) + 1,
		EndLine:    int(node.EndPoint().Row) + 1,
		Node:       node,
		Parameters: params,
		ReturnType: returnType,
	}, true
}

// findFunctionName handles declarators hidden behind pointer or
// parenthesized wrappers.
func (t *SyntaxTree) findFunctionName(node *sitter.Node) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "function_declarator":
			for j := 0; j < int(child.ChildCount()); j++ {
				if sub := child.Child(j); sub.Type() == "identifier" {
					return t.NodeText(sub)
				}
			}
		case "pointer_declarator", "parenthesized_declarator":
			if name := t.findFunctionName(child); name != "" {
				return name
			}
		}
	}
	return ""
}

func (t *SyntaxTree) extractParameters(paramList *sitter.Node) []string {
	var params []string
	for i := 0; i < int(paramList.ChildCount()); i++ {
		child := paramList.Child(i)
		if child.Type() != "parameter_declaration" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			sub := child.Child(j)
			switch sub.Type() {
			case "identifier":
				params = append(params, t.NodeText(sub))
			case "pointer_declarator":
				for k := 0; k < int(sub.ChildCount()); k++ {
					if s := sub.Child(k); s.Type() == "identifier" {
						params = append(params, t.NodeText(s))
					}
				}
			}
		}
	}
	return params
}

// Walk calls fn for node and every descendant, depth-first.
func Walk(node *sitter.Node, fn func(*sitter.Node)) {
	if node == nil {
		return
	}
	fn(node)
	for i := 0; i < int(node.ChildCount()); i++ {
		Walk(node.Child(i), fn)
	}
}

// FindNodes returns all descendants of root (inclusive) with the given type.
func FindNodes(root *sitter.Node, nodeType string) []*sitter.Node {
	var nodes []*sitter.Node
	Walk(root, func(n *sitter.Node) {
		if n.Type() == nodeType {
			nodes = append(nodes, n)
		}
	})
	return nodes
}

// LineCount returns the number of lines in the parsed source.
func (t *SyntaxTree) LineCount() int {
	if len(t.source) == 0 {
		return 0
	}
	return strings.Count(string(t.source), "\n") + 1
}

// NonEmptyLineCount returns the number of lines with non-blank content.
func (t *SyntaxTree) NonEmptyLineCount() int {
	if len(t.source) == 0 {
		return 0
	}
	count := 0
	for _, line := range strings.Split(string(t.source), "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count
}
