package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procsight/procsight/cparser"
)

func TestCyclomaticEngine_NoBranches(t *testing.T) {
	tree, fn := parseOne(t, wrapBody("int x = 1;\nx = x + 2;"))

	assert.Equal(t, 1, NewCyclomaticEngine(tree).Calculate(fn))
}

func TestCyclomaticEngine_IndependentIfs(t *testing.T) {
	tree, fn := parseOne(t, wrapBody(`if (1) { }
if (2) { }
if (3) { }`))

	assert.Equal(t, 4, NewCyclomaticEngine(tree).Calculate(fn))
}

func TestCyclomaticEngine_AllBranchKinds(t *testing.T) {
	tree, fn := parseOne(t, wrapBody(`if (1) { }
while (2) { }
for (;;) { break; }
do { } while (3);
int x = 4 ? 1 : 0;`))

	// 1 + if + while + for + do + ternary.
	assert.Equal(t, 6, NewCyclomaticEngine(tree).Calculate(fn))
}

func TestCyclomaticEngine_SwitchCases(t *testing.T) {
	tree, fn := parseOne(t, wrapBody(`switch (1) {
case 1: break;
case 2: break;
default: break;
}`))

	// switch itself does not count, each case label does; default is not a
	// case_statement branch point in the grammar's case kind set.
	engine := NewCyclomaticEngine(tree)
	details := engine.Details(fn)
	assert.Equal(t, engine.Calculate(fn), details.Total)
	assert.GreaterOrEqual(t, details.CaseCount, 2)
}

func TestCyclomaticEngine_LogicalOperators(t *testing.T) {
	tree, fn := parseOne(t, wrapBody("if (1 && 2 || 3) { }"))

	// 1 + if + two logical operators.
	assert.Equal(t, 4, NewCyclomaticEngine(tree).Calculate(fn))
}

func TestCyclomaticEngine_NoASTNode(t *testing.T) {
	tree, _ := parseOne(t, "void f(void) { }")

	legacy := cparser.FunctionInfo{Name: "legacy", StartLine: 1, EndLine: 3}
	assert.Equal(t, 1, NewCyclomaticEngine(tree).Calculate(legacy))
}

func TestCyclomaticEngine_Memoized(t *testing.T) {
	tree, fn := parseOne(t, wrapBody("if (1) { }"))

	engine := NewCyclomaticEngine(tree)
	first := engine.Calculate(fn)
	assert.Equal(t, first, engine.Calculate(fn))
	assert.Equal(t, first, engine.Calculate(fn))
}

func TestCyclomaticEngine_CalculateAll(t *testing.T) {
	tree := cparser.New()
	t.Cleanup(tree.Close)
	source := `int a(void) { if (1) { } return 0; }
int b(void) { return 0; }`
	require.NoError(t, tree.Parse(context.Background(), source))

	results := NewCyclomaticEngine(tree).CalculateAll()
	assert.Equal(t, 2, results["a"])
	assert.Equal(t, 1, results["b"])
}
