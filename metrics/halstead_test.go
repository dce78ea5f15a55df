package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procsight/procsight/cparser"
)

func TestHalsteadEngine_AddFunction(t *testing.T) {
	tree, fn := parseOne(t, "int add(int a, int b) { return a + b; }")

	m := NewHalsteadEngine(tree).Calculate(fn)

	assert.GreaterOrEqual(t, m.UniqueOperands, 2, "a and b are distinct operands")
	assert.Greater(t, m.TotalOperators, 0)
	assert.Equal(t, m.UniqueOperators+m.UniqueOperands, m.Vocabulary())
	assert.Equal(t, m.TotalOperators+m.TotalOperands, m.Length())
	assert.Greater(t, m.Volume(), 0.0)
}

func TestHalsteadEngine_Identities(t *testing.T) {
	tree, fn := parseOne(t, wrapBody(`int x = 1;
int y = x * 2;
if (x > y && y != 0) {
    x = y / 2;
}`))

	m := NewHalsteadEngine(tree).Calculate(fn)

	assert.Equal(t, m.UniqueOperators+m.UniqueOperands, m.Vocabulary())
	assert.Equal(t, m.TotalOperators+m.TotalOperands, m.Length())
	assert.Equal(t, len(m.Operators), m.UniqueOperators)
	assert.Equal(t, len(m.Operands), m.UniqueOperands)
}

func TestHalsteadEngine_StringLiteralsCollapse(t *testing.T) {
	tree, fn := parseOne(t, wrapBody(`use("first");
use("second");
use("third");`))

	m := NewHalsteadEngine(tree).Calculate(fn)

	require.Contains(t, m.Operands, "<string>")
	assert.Equal(t, 3, m.Operands["<string>"])
	assert.NotContains(t, m.Operands, `"first"`)
}

func TestHalsteadEngine_CalleeIsOperator(t *testing.T) {
	tree, fn := parseOne(t, wrapBody("process(data);"))

	m := NewHalsteadEngine(tree).Calculate(fn)

	assert.Contains(t, m.Operators, "process")
	assert.Contains(t, m.Operators, "()")
	assert.Contains(t, m.Operands, "data")
	assert.NotContains(t, m.Operands, "process")
}

func TestHalsteadEngine_KeywordOperators(t *testing.T) {
	tree, fn := parseOne(t, wrapBody(`if (1) {
    return;
}`))

	m := NewHalsteadEngine(tree).Calculate(fn)

	assert.Contains(t, m.Operators, "if")
	assert.Contains(t, m.Operators, "return")
}

func TestHalsteadEngine_NoASTNode(t *testing.T) {
	tree, _ := parseOne(t, "void f(void) { }")

	legacy := cparser.FunctionInfo{Name: "legacy"}
	m := NewHalsteadEngine(tree).Calculate(legacy)

	assert.Zero(t, m.UniqueOperators)
	assert.Zero(t, m.UniqueOperands)
	assert.Zero(t, m.Vocabulary())
	assert.Zero(t, m.Volume())
	assert.Zero(t, m.Difficulty())
	assert.Zero(t, m.Effort())
	assert.Zero(t, m.BugsEstimate())
}

func TestHalsteadEngine_DerivedMetrics(t *testing.T) {
	tree, fn := parseOne(t, "int add(int a, int b) { return a + b; }")

	m := NewHalsteadEngine(tree).Calculate(fn)

	assert.InDelta(t, m.Difficulty()*m.Volume(), m.Effort(), 1e-9)
	assert.InDelta(t, m.Effort()/18, m.TimeSeconds(), 1e-9)
	assert.InDelta(t, m.TimeSeconds()/60, m.TimeMinutes(), 1e-9)
	assert.InDelta(t, m.Volume()/3000, m.BugsEstimate(), 1e-9)
}

func TestHalsteadEngine_Memoized(t *testing.T) {
	tree, fn := parseOne(t, "int add(int a, int b) { return a + b; }")

	engine := NewHalsteadEngine(tree)
	first := engine.Calculate(fn)
	second := engine.Calculate(fn)

	assert.Equal(t, first.TotalOperators, second.TotalOperators)
	assert.Equal(t, first.TotalOperands, second.TotalOperands)
}

func TestHalsteadReport_Materializes(t *testing.T) {
	tree, fn := parseOne(t, "int add(int a, int b) { return a + b; }")

	m := NewHalsteadEngine(tree).Calculate(fn)
	r := m.Report()

	assert.Equal(t, m.Vocabulary(), r.Vocabulary)
	assert.Equal(t, m.Length(), r.Length)
	assert.InDelta(t, m.Volume(), r.Volume, 1e-9)
	assert.InDelta(t, m.BugsEstimate(), r.BugsEstimate, 1e-9)
}
