package metrics

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/procsight/procsight/cparser"
)

// nestingStructures increment complexity and deepen the nesting level for
// their body.
var nestingStructures = map[string]bool{
	"if_statement":           true,
	"while_statement":        true,
	"for_statement":          true,
	"do_statement":           true,
	"switch_statement":       true,
	"conditional_expression": true,
}

var jumpStatements = map[string]bool{
	"break_statement":    true,
	"continue_statement": true,
}

// CognitiveDetails breaks a cognitive score down by contributor.
type CognitiveDetails struct {
	IfCount          int `json:"if_count"`
	LoopCount        int `json:"loop_count"`
	SwitchCount      int `json:"switch_count"`
	CaseCount        int `json:"case_count"`
	TernaryCount     int `json:"ternary_count"`
	ElseCount        int `json:"else_count"`
	GotoCount        int `json:"goto_count"`
	LabeledJumpCount int `json:"labeled_jump_count"`
	LogicalSequences int `json:"logical_sequences"`
	MaxNesting       int `json:"max_nesting"`
	NestingPenalty   int `json:"nesting_penalty"`
	Total            int `json:"total"`
}

// CognitiveEngine computes cognitive complexity following the SonarSource
// rules: control structures cost 1 plus their nesting level, else and case
// cost a flat 1, else-if chains do not deepen nesting, and each run of
// identical logical operators costs 1.
type CognitiveEngine struct {
	tree *cparser.SyntaxTree

	// Keyed by function name; see CyclomaticEngine.cache.
	cache map[string]int
}

// NewCognitiveEngine creates an engine bound to a parsed tree.
func NewCognitiveEngine(tree *cparser.SyntaxTree) *CognitiveEngine {
	return &CognitiveEngine{tree: tree, cache: make(map[string]int)}
}

// Calculate returns the cognitive complexity of a function, minimum 0.
// Functions without an AST node score 0.
func (e *CognitiveEngine) Calculate(fn cparser.FunctionInfo) int {
	if v, ok := e.cache[fn.Name]; ok {
		return v
	}

	complexity := 0
	if body := functionBody(fn.Node); body != nil {
		complexity = e.walk(body, 0)
	}

	e.cache[fn.Name] = complexity
	return complexity
}

// CalculateAll computes complexity for every function in the tree.
func (e *CognitiveEngine) CalculateAll() map[string]int {
	results := make(map[string]int)
	for _, fn := range e.tree.Functions() {
		results[fn.Name] = e.Calculate(fn)
	}
	return results
}

func functionBody(node *sitter.Node) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if child := node.Child(i); child.Type() == "compound_statement" {
			return child
		}
	}
	return nil
}

func (e *CognitiveEngine) walk(node *sitter.Node, nesting int) int {
	complexity := 0

	switch {
	case nestingStructures[node.Type()]:
		complexity += 1 + nesting

		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			switch child.Type() {
			case "compound_statement":
				// The structure's own body nests one deeper.
				complexity += e.walk(child, nesting+1)
			case "else_clause":
				// else costs 1 flat; its content nests deeper except for a
				// chained if, which stays at the current level.
				complexity++
				for j := 0; j < int(child.ChildCount()); j++ {
					sub := child.Child(j)
					switch sub.Type() {
					case "compound_statement":
						complexity += e.walk(sub, nesting+1)
					case "if_statement":
						complexity += e.walk(sub, nesting)
					default:
						complexity += e.walk(sub, nesting+1)
					}
				}
			case "if_statement":
				// else-if chain: same nesting level.
				complexity += e.walk(child, nesting)
			default:
				complexity += e.walk(child, nesting)
			}
		}

	case node.Type() == "case_statement":
		complexity++
		for i := 0; i < int(node.ChildCount()); i++ {
			complexity += e.walk(node.Child(i), nesting)
		}

	case node.Type() == "goto_statement":
		complexity++

	case jumpStatements[node.Type()]:
		if e.hasLabel(node) {
			complexity++
		}

	case node.Type() == "binary_expression":
		// The whole operator sequence is scored at once; the interior is
		// not recursed into again.
		complexity += e.countLogicalSequences(node)

	default:
		for i := 0; i < int(node.ChildCount()); i++ {
			complexity += e.walk(node.Child(i), nesting)
		}
	}

	return complexity
}

func (e *CognitiveEngine) hasLabel(node *sitter.Node) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		t := node.Child(i).Type()
		if t == "statement_identifier" || t == "identifier" {
			return true
		}
	}
	return false
}

// countLogicalSequences scores a logical expression as 1 plus the number of
// operator changes in its left-to-right &&/|| sequence, or 0 when the
// expression has no logical operators.
func (e *CognitiveEngine) countLogicalSequences(node *sitter.Node) int {
	operators := e.collectLogicalOperators(node)
	if len(operators) == 0 {
		return 0
	}

	sequences := 1
	for i := 1; i < len(operators); i++ {
		if operators[i] != operators[i-1] {
			sequences++
		}
	}
	return sequences
}

// collectLogicalOperators splices the nested binary sub-expressions of node
// into one in-order operator list. Parenthesized groups are opaque: the
// operators inside (a && b) are not collected, so (a && b) || c scores a
// single sequence. Kept as-is to preserve established scores.
func (e *CognitiveEngine) collectLogicalOperators(node *sitter.Node) []string {
	if node.Type() != "binary_expression" {
		return nil
	}

	var (
		op          string
		left, right *sitter.Node
	)
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		text := e.tree.NodeText(child)
		if text == "&&" || text == "||" {
			op = text
		} else if child.Type() == "binary_expression" && left == nil {
			left = child
		} else if child.Type() == "binary_expression" {
			right = child
		}
	}

	var operators []string
	if left != nil {
		operators = append(operators, e.collectLogicalOperators(left)...)
	}
	if op != "" {
		operators = append(operators, op)
	}
	if right != nil {
		operators = append(operators, e.collectLogicalOperators(right)...)
	}
	return operators
}

// Details returns the per-contributor breakdown for a function. Functions
// without an AST node yield an all-zero result.
func (e *CognitiveEngine) Details(fn cparser.FunctionInfo) CognitiveDetails {
	var d CognitiveDetails
	if body := functionBody(fn.Node); body != nil {
		e.collectDetails(body, 0, &d)
	}
	d.Total = e.Calculate(fn)
	return d
}

func (e *CognitiveEngine) collectDetails(node *sitter.Node, nesting int, d *CognitiveDetails) {
	if nesting > d.MaxNesting {
		d.MaxNesting = nesting
	}

	next := nesting
	switch node.Type() {
	case "if_statement":
		d.IfCount++
		d.NestingPenalty += nesting
		next = nesting + 1
	case "while_statement", "for_statement", "do_statement":
		d.LoopCount++
		d.NestingPenalty += nesting
		next = nesting + 1
	case "switch_statement":
		d.SwitchCount++
		d.NestingPenalty += nesting
		next = nesting + 1
	case "conditional_expression":
		d.TernaryCount++
		d.NestingPenalty += nesting
		next = nesting + 1
	case "case_statement":
		d.CaseCount++
	case "else_clause":
		d.ElseCount++
	case "goto_statement":
		d.GotoCount++
	case "binary_expression":
		d.LogicalSequences += e.countLogicalSequences(node)
		return
	default:
		if jumpStatements[node.Type()] && e.hasLabel(node) {
			d.LabeledJumpCount++
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		e.collectDetails(node.Child(i), next, d)
	}
}
