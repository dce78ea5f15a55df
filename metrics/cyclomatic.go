// Package metrics computes per-function complexity measures over the AST
// produced by cparser: McCabe cyclomatic complexity, SonarSource-style
// cognitive complexity and Halstead software-science metrics. Engines are
// independent of each other and keep per-instance caches only; use one set
// of engines per parsed file.
package metrics

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/procsight/procsight/cparser"
)

// branchingNodes are node kinds that open an extra execution path.
var branchingNodes = map[string]bool{
	"if_statement":           true,
	"while_statement":        true,
	"for_statement":          true,
	"do_statement":           true,
	"case_statement":         true,
	"conditional_expression": true,
	"catch_clause":           true,
}

// CyclomaticDetails breaks a cyclomatic score down by contributor.
type CyclomaticDetails struct {
	IfCount         int `json:"if_count"`
	LoopCount       int `json:"loop_count"`
	CaseCount       int `json:"case_count"`
	TernaryCount    int `json:"ternary_count"`
	LogicalAndCount int `json:"logical_and_count"`
	LogicalOrCount  int `json:"logical_or_count"`
	Total           int `json:"total"`
}

// CyclomaticEngine computes McCabe complexity: 1 + decision points.
type CyclomaticEngine struct {
	tree *cparser.SyntaxTree

	// Keyed by function name, not span: two same-named functions share a
	// cached result. Kept for compatibility with observed behavior.
	cache map[string]int
}

// NewCyclomaticEngine creates an engine bound to a parsed tree.
func NewCyclomaticEngine(tree *cparser.SyntaxTree) *CyclomaticEngine {
	return &CyclomaticEngine{tree: tree, cache: make(map[string]int)}
}

// Calculate returns the cyclomatic complexity of a function, minimum 1.
// Functions without an AST node score exactly 1.
func (e *CyclomaticEngine) Calculate(fn cparser.FunctionInfo) int {
	if v, ok := e.cache[fn.Name]; ok {
		return v
	}

	complexity := 1
	if fn.Node == nil {
		e.cache[fn.Name] = complexity
		return complexity
	}

	cparser.Walk(fn.Node, func(node *sitter.Node) {
		if branchingNodes[node.Type()] {
			complexity++
		}
		if node.Type() == "binary_expression" {
			if op := e.logicalOperator(node); op != "" {
				complexity++
			}
		}
	})

	e.cache[fn.Name] = complexity
	return complexity
}

// CalculateAll computes complexity for every function in the tree.
func (e *CyclomaticEngine) CalculateAll() map[string]int {
	results := make(map[string]int)
	for _, fn := range e.tree.Functions() {
		results[fn.Name] = e.Calculate(fn)
	}
	return results
}

// Details returns the per-contributor breakdown for a function.
func (e *CyclomaticEngine) Details(fn cparser.FunctionInfo) CyclomaticDetails {
	var d CyclomaticDetails
	if fn.Node == nil {
		d.Total = e.Calculate(fn)
		return d
	}

	cparser.Walk(fn.Node, func(node *sitter.Node) {
		switch node.Type() {
		case "if_statement":
			d.IfCount++
		case "while_statement", "for_statement", "do_statement":
			d.LoopCount++
		case "case_statement":
			d.CaseCount++
		case "conditional_expression":
			d.TernaryCount++
		case "binary_expression":
			switch e.logicalOperator(node) {
			case "&&":
				d.LogicalAndCount++
			case "||":
				d.LogicalOrCount++
			}
		}
	})

	d.Total = e.Calculate(fn)
	return d
}

// logicalOperator returns "&&" or "||" when the binary expression uses one.
func (e *CyclomaticEngine) logicalOperator(node *sitter.Node) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "binary_expression" {
			continue
		}
		text := e.tree.NodeText(child)
		if text == "&&" || text == "||" {
			return text
		}
	}
	return ""
}
