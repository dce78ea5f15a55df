package memsafe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issuesOfType(result *Result, issueType IssueType) []Issue {
	var out []Issue
	for _, issue := range result.Issues {
		if issue.Type == issueType {
			out = append(out, issue)
		}
	}
	return out
}

func TestAnalyzer_Analyze_CleanAllocation(t *testing.T) {
	a := NewAnalyzer()

	source := `void run(void) {
    char *buf = malloc(100);
    if (buf == NULL) {
        return;
    }
    free(buf);
    buf = NULL;
}`

	result := a.Analyze(source)

	require.Len(t, result.Allocations, 1)
	alloc := result.Allocations[0]
	assert.Equal(t, "buf", alloc.Variable)
	assert.Equal(t, "malloc", alloc.Function)
	assert.True(t, alloc.HasNullCheck)
	assert.True(t, alloc.HasFree)
	assert.Empty(t, result.Issues)
}

func TestAnalyzer_Analyze_AllocationWithoutNullCheck(t *testing.T) {
	a := NewAnalyzer()

	source := `void run(void) {
    char *buf = malloc(100);
    buf[0] = 'x';
    free(buf);
    buf = NULL;
}`

	result := a.Analyze(source)

	unchecked := issuesOfType(result, IssueAllocUnchecked)
	require.Len(t, unchecked, 1)
	assert.Equal(t, SeverityError, unchecked[0].Severity)
	assert.Equal(t, 2, unchecked[0].LineNumber)
}

func TestAnalyzer_Analyze_AllocationWithoutFree(t *testing.T) {
	a := NewAnalyzer()

	source := `void run(void) {
    char *leak = strdup("text");
    if (leak == NULL) return;
}`

	result := a.Analyze(source)

	leaks := issuesOfType(result, IssueAllocNoFree)
	require.Len(t, leaks, 1)
	assert.Contains(t, leaks[0].Message, "strdup")
	assert.Contains(t, leaks[0].Message, "leak")
}

func TestAnalyzer_Analyze_FreeWithoutNullReset(t *testing.T) {
	a := NewAnalyzer()

	source := `void run(void) {
    char *p = malloc(10);
    if (!p) return;
    free(p);
    return;
}`

	result := a.Analyze(source)

	dangling := issuesOfType(result, IssueFreeNoNull)
	require.Len(t, dangling, 1)
	assert.Equal(t, 4, dangling[0].LineNumber)
	assert.Contains(t, dangling[0].Recommendation, "p = NULL;")
}

func TestAnalyzer_Analyze_GetsIsCritical(t *testing.T) {
	a := NewAnalyzer()

	result := a.Analyze(`void run(char *buf) {
    gets(buf);
}`)

	overflow := issuesOfType(result, IssueBufferOverflow)
	require.Len(t, overflow, 1)
	assert.Equal(t, SeverityCritical, overflow[0].Severity)
	assert.Contains(t, overflow[0].Recommendation, "fgets")
	assert.Equal(t, 1, result.DangerousCalls)
}

func TestAnalyzer_Analyze_DangerousStringFunctions(t *testing.T) {
	a := NewAnalyzer()

	result := a.Analyze(`void run(char *dst, char *src) {
    strcpy(dst, src);
    sprintf(dst, "%s", src);
}`)

	dangerous := issuesOfType(result, IssueDangerousFunction)
	assert.Len(t, dangerous, 2)
	assert.Equal(t, 2, result.DangerousCalls)
	assert.Equal(t, 2, result.CountBySeverity(SeverityWarning))
}

func TestAnalyzer_Analyze_SizeofOnPointer(t *testing.T) {
	a := NewAnalyzer()

	source := `void run(void) {
    struct user *u;
    u = malloc(sizeof(u));
    if (!u) return;
    free(u);
    u = NULL;
}`

	result := a.Analyze(source)

	sizeofIssues := issuesOfType(result, IssueSizeofPointer)
	require.Len(t, sizeofIssues, 1)
	assert.Equal(t, SeverityError, sizeofIssues[0].Severity)
	assert.Contains(t, sizeofIssues[0].Recommendation, "sizeof(*u)")
}

func TestAnalyzer_Analyze_DeterministicOrdering(t *testing.T) {
	source := `void run(void) {
    char *a = malloc(10);
    char *b = malloc(20);
    char *c = malloc(30);
    gets(a);
    strcpy(b, c);
}`

	first := NewAnalyzer().Analyze(source)

	var vars []string
	for _, alloc := range first.Allocations {
		vars = append(vars, alloc.Variable)
	}
	assert.Equal(t, []string{"a", "b", "c"}, vars)

	for i := 0; i < 50; i++ {
		again := NewAnalyzer().Analyze(source)
		require.Equal(t, first.Issues, again.Issues)
		require.Equal(t, first.Allocations, again.Allocations)
	}
}

func TestAnalyzer_Analyze_SizeofOnNonPointerAccepted(t *testing.T) {
	a := NewAnalyzer()

	source := `void run(void) {
    struct user u2;
    struct user *p;
    p = malloc(sizeof(u2));
    if (!p) return;
    free(p);
    p = NULL;
}`

	result := a.Analyze(source)
	assert.Empty(t, issuesOfType(result, IssueSizeofPointer))
}
