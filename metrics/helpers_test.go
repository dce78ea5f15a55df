package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/procsight/procsight/cparser"
)

// parseOne parses source and returns the tree plus its single function.
func parseOne(t *testing.T, source string) (*cparser.SyntaxTree, cparser.FunctionInfo) {
	t.Helper()
	tree := cparser.New()
	t.Cleanup(tree.Close)
	require.NoError(t, tree.Parse(context.Background(), source))

	functions := tree.Functions()
	require.Len(t, functions, 1)
	return tree, functions[0]
}

func wrapBody(body string) string {
	return "void f(void) {\n" + body + "\n}"
}
