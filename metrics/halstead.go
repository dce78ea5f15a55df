package metrics

import (
	"math"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/procsight/procsight/cparser"
)

// symbolicOperators is the fixed token vocabulary an expression node may
// contribute as its operator.
var symbolicOperators = map[string]bool{
	"+": true, "-": true, "*": true, "/": true, "%": true,
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"&=": true, "|=": true, "^=": true, "<<=": true, ">>=": true,
	"==": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true,
	"&&": true, "||": true, "!": true,
	"&": true, "|": true, "^": true, "~": true, "<<": true, ">>": true,
	"++": true, "--": true,
	"->": true, ".": true,
	"?": true, ":": true,
	",": true,
	"sizeof": true,
}

// keywordOperators count as operators wherever their exact text occurs.
var keywordOperators = map[string]bool{
	"if": true, "else": true, "for": true, "while": true, "do": true,
	"switch": true, "case": true, "default": true,
	"break": true, "continue": true, "return": true, "goto": true,
	"struct": true, "union": true, "enum": true, "typedef": true,
}

// HalsteadMetrics holds the four raw Halstead counts plus the operator and
// operand multisets they were derived from. All derived values are computed
// on demand and defined to be 0 on degenerate input.
type HalsteadMetrics struct {
	UniqueOperators int `json:"unique_operators"`
	UniqueOperands  int `json:"unique_operands"`
	TotalOperators  int `json:"total_operators"`
	TotalOperands   int `json:"total_operands"`

	Operators map[string]int `json:"-"`
	Operands  map[string]int `json:"-"`
}

// Vocabulary is n = n1 + n2.
func (m HalsteadMetrics) Vocabulary() int {
	return m.UniqueOperators + m.UniqueOperands
}

// Length is N = N1 + N2.
func (m HalsteadMetrics) Length() int {
	return m.TotalOperators + m.TotalOperands
}

// CalculatedLength is the estimated length n1*log2(n1) + n2*log2(n2).
func (m HalsteadMetrics) CalculatedLength() float64 {
	if m.UniqueOperators == 0 || m.UniqueOperands == 0 {
		return 0
	}
	return float64(m.UniqueOperators)*math.Log2(float64(m.UniqueOperators)) +
		float64(m.UniqueOperands)*math.Log2(float64(m.UniqueOperands))
}

// Volume is V = N * log2(n).
func (m HalsteadMetrics) Volume() float64 {
	if m.Vocabulary() == 0 {
		return 0
	}
	return float64(m.Length()) * math.Log2(float64(m.Vocabulary()))
}

// Difficulty is D = (n1/2) * (N2/n2).
func (m HalsteadMetrics) Difficulty() float64 {
	if m.UniqueOperands == 0 {
		return 0
	}
	return float64(m.UniqueOperators) / 2 * float64(m.TotalOperands) / float64(m.UniqueOperands)
}

// Effort is E = D * V.
func (m HalsteadMetrics) Effort() float64 {
	return m.Difficulty() * m.Volume()
}

// TimeSeconds is Halstead's implementation-time estimate T = E / 18.
func (m HalsteadMetrics) TimeSeconds() float64 {
	return m.Effort() / 18
}

// TimeMinutes is TimeSeconds expressed in minutes.
func (m HalsteadMetrics) TimeMinutes() float64 {
	return m.TimeSeconds() / 60
}

// BugsEstimate is B = V / 3000.
func (m HalsteadMetrics) BugsEstimate() float64 {
	return m.Volume() / 3000
}

// HalsteadReport is the serializable form of HalsteadMetrics with every
// derived value materialized.
type HalsteadReport struct {
	UniqueOperators  int     `json:"unique_operators"`
	UniqueOperands   int     `json:"unique_operands"`
	TotalOperators   int     `json:"total_operators"`
	TotalOperands    int     `json:"total_operands"`
	Vocabulary       int     `json:"vocabulary"`
	Length           int     `json:"length"`
	CalculatedLength float64 `json:"calculated_length"`
	Volume           float64 `json:"volume"`
	Difficulty       float64 `json:"difficulty"`
	Effort           float64 `json:"effort"`
	TimeSeconds      float64 `json:"time_seconds"`
	TimeMinutes      float64 `json:"time_minutes"`
	BugsEstimate     float64 `json:"bugs_estimate"`
}

// Report materializes the derived values for serialization.
func (m HalsteadMetrics) Report() HalsteadReport {
	return HalsteadReport{
		UniqueOperators:  m.UniqueOperators,
		UniqueOperands:   m.UniqueOperands,
		TotalOperators:   m.TotalOperators,
		TotalOperands:    m.TotalOperands,
		Vocabulary:       m.Vocabulary(),
		Length:           m.Length(),
		CalculatedLength: m.CalculatedLength(),
		Volume:           m.Volume(),
		Difficulty:       m.Difficulty(),
		Effort:           m.Effort(),
		TimeSeconds:      m.TimeSeconds(),
		TimeMinutes:      m.TimeMinutes(),
		BugsEstimate:     m.BugsEstimate(),
	}
}

// HalsteadEngine counts operators and operands over a function subtree.
type HalsteadEngine struct {
	tree *cparser.SyntaxTree

	// Keyed by function name; see CyclomaticEngine.cache.
	cache map[string]HalsteadMetrics
}

// NewHalsteadEngine creates an engine bound to a parsed tree.
func NewHalsteadEngine(tree *cparser.SyntaxTree) *HalsteadEngine {
	return &HalsteadEngine{tree: tree, cache: make(map[string]HalsteadMetrics)}
}

// Calculate returns the Halstead metrics for a function. Functions without
// an AST node yield all-zero counts.
func (e *HalsteadEngine) Calculate(fn cparser.FunctionInfo) HalsteadMetrics {
	if m, ok := e.cache[fn.Name]; ok {
		return m
	}

	metrics := HalsteadMetrics{
		Operators: make(map[string]int),
		Operands:  make(map[string]int),
	}

	if fn.Node != nil {
		e.collect(fn.Node, metrics.Operators, metrics.Operands)

		metrics.UniqueOperators = len(metrics.Operators)
		metrics.UniqueOperands = len(metrics.Operands)
		for _, c := range metrics.Operators {
			metrics.TotalOperators += c
		}
		for _, c := range metrics.Operands {
			metrics.TotalOperands += c
		}
	}

	e.cache[fn.Name] = metrics
	return metrics
}

// CalculateAll computes metrics for every function in the tree.
func (e *HalsteadEngine) CalculateAll() map[string]HalsteadMetrics {
	results := make(map[string]HalsteadMetrics)
	for _, fn := range e.tree.Functions() {
		results[fn.Name] = e.Calculate(fn)
	}
	return results
}

func (e *HalsteadEngine) collect(node *sitter.Node, operators, operands map[string]int) {
	text := e.tree.NodeText(node)

	if op, ok := e.representativeOperator(node); ok {
		operators[op]++
	}

	if keywordOperators[text] {
		operators[text]++
	}

	switch node.Type() {
	case "identifier":
		// Callee identifiers are operators; every other identifier is an
		// operand.
		parent := node.Parent()
		if parent != nil && parent.Type() == "call_expression" && isFirstChild(parent, node) {
			operators[text]++
		} else {
			operands[text]++
		}
	case "number_literal", "char_literal":
		operands[text]++
	case "string_literal":
		// All string literals collapse into one operand key; only the
		// occurrence count matters.
		operands["<string>"]++
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		e.collect(node.Child(i), operators, operands)
	}
}

func isFirstChild(parent, node *sitter.Node) bool {
	first := parent.Child(0)
	return first != nil &&
		first.StartByte() == node.StartByte() &&
		first.EndByte() == node.EndByte()
}

// representativeOperator maps an operator-shaped node kind to the single
// token counted for that occurrence.
func (e *HalsteadEngine) representativeOperator(node *sitter.Node) (string, bool) {
	switch node.Type() {
	case "binary_expression":
		for i := 0; i < int(node.ChildCount()); i++ {
			if text := e.tree.NodeText(node.Child(i)); symbolicOperators[text] {
				return text, true
			}
		}
	case "unary_expression":
		for i := 0; i < int(node.ChildCount()); i++ {
			switch text := e.tree.NodeText(node.Child(i)); text {
			case "!", "~", "-", "+", "*", "&", "++", "--":
				return text, true
			}
		}
	case "assignment_expression":
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			if text := e.tree.NodeText(child); !child.IsNamed() && symbolicOperators[text] {
				return text, true
			}
		}
	case "update_expression":
		if strings.Contains(e.tree.NodeText(node), "++") {
			return "++", true
		}
		return "--", true
	case "pointer_expression":
		return "->", true
	case "field_expression":
		if strings.Contains(e.tree.NodeText(node), ".") {
			return ".", true
		}
		return "->", true
	case "subscript_expression":
		return "[]", true
	case "call_expression":
		return "()", true
	case "conditional_expression":
		return "?:", true
	case "sizeof_expression":
		return "sizeof", true
	case "cast_expression":
		return "(cast)", true
	}
	return "", false
}
