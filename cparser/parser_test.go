package cparser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, source string) *SyntaxTree {
	t.Helper()
	tree := New()
	t.Cleanup(tree.Close)
	require.NoError(t, tree.Parse(context.Background(), source))
	return tree
}

func functionByName(t *testing.T, functions []FunctionInfo, name string) FunctionInfo {
	t.Helper()
	for _, f := range functions {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("function %q not found", name)
	return FunctionInfo{}
}

func TestSyntaxTree_Functions_Simple(t *testing.T) {
	tree := parse(t, `int add(int a, int b) {
    return a + b;
}`)

	functions := tree.Functions()
	require.Len(t, functions, 1)

	fn := functions[0]
	assert.Equal(t, "add", fn.Name)
	assert.Equal(t, 1, fn.StartLine)
	assert.Equal(t, 3, fn.EndLine)
	assert.Equal(t, 3, fn.LineCount())
	assert.Equal(t, "int", fn.ReturnType)
	assert.Equal(t, []string{"a", "b"}, fn.Parameters)
	assert.NotNil(t, fn.Node)
}

func TestSyntaxTree_Functions_PointerReturn(t *testing.T) {
	tree := parse(t, `char *get_name(int id) {
    return 0;
}`)

	functions := tree.Functions()
	require.Len(t, functions, 1)
	assert.Equal(t, "get_name", functions[0].Name)
	assert.Equal(t, "char", functions[0].ReturnType)
}

func TestSyntaxTree_Functions_PointerParameter(t *testing.T) {
	tree := parse(t, `void copy(char *dst, const char *src) {
}`)

	functions := tree.Functions()
	require.Len(t, functions, 1)
	assert.Equal(t, []string{"dst", "src"}, functions[0].Parameters)
}

func TestSyntaxTree_Functions_MultipleDefinitions(t *testing.T) {
	tree := parse(t, `int first(void) { return 1; }

int second(void) { return 2; }

static void third(int x) { }`)

	functions := tree.Functions()
	require.Len(t, functions, 3)
	assert.Equal(t, "first", functions[0].Name)
	assert.Equal(t, "second", functions[1].Name)
	assert.Equal(t, "third", functions[2].Name)
}

func TestSyntaxTree_HasErrors(t *testing.T) {
	valid := parse(t, "int main(void) { return 0; }")
	assert.False(t, valid.HasErrors())

	broken := parse(t, "int main(void) { return 0;")
	assert.True(t, broken.HasErrors())
}

func TestSyntaxTree_Parse_DiscardsPreviousTree(t *testing.T) {
	tree := parse(t, "int one(void) { return 1; }")
	require.Len(t, tree.Functions(), 1)

	require.NoError(t, tree.Parse(context.Background(), "int two(void) { return 2; }"))
	functions := tree.Functions()
	require.Len(t, functions, 1)
	assert.Equal(t, "two", functions[0].Name)
}

func TestSyntaxTree_LineCounts(t *testing.T) {
	tree := parse(t, "int x;\n\nint y;\n")

	assert.Equal(t, 4, tree.LineCount())
	assert.Equal(t, 2, tree.NonEmptyLineCount())
}

func TestSyntaxTree_Functions_LegacyBeginEnd(t *testing.T) {
	tree := parse(t, `VOID f()
begin
    int x = 1;
end
`)

	functions := tree.Functions()
	require.Len(t, functions, 1)

	fn := functions[0]
	assert.Equal(t, "f", fn.Name)
	assert.Equal(t, "void", fn.ReturnType)
	assert.Equal(t, 1, fn.StartLine)
	assert.Equal(t, 4, fn.EndLine)
	assert.Nil(t, fn.Node)
}

func TestSyntaxTree_Functions_LegacySameLineBegin(t *testing.T) {
	tree := parse(t, `INT compute(int a) begin
    return;
end
`)

	fn := functionByName(t, tree.Functions(), "compute")
	assert.Equal(t, "int", fn.ReturnType)
	assert.Equal(t, 1, fn.StartLine)
	assert.Equal(t, 3, fn.EndLine)
}

func TestSyntaxTree_Functions_LegacyNestedBeginEnd(t *testing.T) {
	tree := parse(t, `VOID outer()
begin
    begin
        int x = 1;
    end
end
`)

	fn := functionByName(t, tree.Functions(), "outer")
	assert.Equal(t, 6, fn.EndLine)
}

func TestSyntaxTree_Functions_LegacyBeginOutsideWindow(t *testing.T) {
	// begin appears more than five lines after the declaration.
	tree := parse(t, `VOID late()




/* gap */

begin
end
`)

	for _, fn := range tree.Functions() {
		assert.NotEqual(t, "late", fn.Name)
	}
}

func TestSyntaxTree_Functions_LegacyUnbalancedDropped(t *testing.T) {
	tree := parse(t, `VOID broken()
begin
    begin
end
`)

	for _, fn := range tree.Functions() {
		assert.NotEqual(t, "broken", fn.Name)
	}
}

func TestSyntaxTree_Functions_LegacyParameters(t *testing.T) {
	tree := parse(t, `INT sum(int a, int b)
begin
end
`)

	fn := functionByName(t, tree.Functions(), "sum")
	assert.Equal(t, []string{"a", "b"}, fn.Parameters)
}

func TestSyntaxTree_Functions_LegacyVoidParameterSuppressed(t *testing.T) {
	tree := parse(t, `VOID noargs(void)
begin
end
`)

	fn := functionByName(t, tree.Functions(), "noargs")
	assert.Empty(t, fn.Parameters)
}

func TestSyntaxTree_Functions_LegacyCommentedBeginIgnored(t *testing.T) {
	tree := parse(t, `VOID commented()
begin
    /* begin */
    // begin
end
`)

	fn := functionByName(t, tree.Functions(), "commented")
	assert.Equal(t, 5, fn.EndLine)
}

func TestSyntaxTree_Functions_GrammarWinsOverFallback(t *testing.T) {
	// A grammar-detected function suppresses a same-named fallback
	// candidate.
	tree := parse(t, `int f(void) { return 0; }

VOID f()
begin
end
`)

	count := 0
	for _, fn := range tree.Functions() {
		if fn.Name == "f" {
			count++
			assert.NotNil(t, fn.Node)
		}
	}
	assert.Equal(t, 1, count)
}

func TestFindNodes(t *testing.T) {
	tree := parse(t, `void f(void) {
    if (1) { }
    if (2) { }
}`)

	nodes := FindNodes(tree.RootNode(), "if_statement")
	assert.Len(t, nodes, 2)
}
