package cursors

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

func TestAnalyzer_Analyze_WellFormedCursor(t *testing.T) {
	a := NewAnalyzer()

	source := `EXEC SQL DECLARE emp_cur CURSOR FOR SELECT id FROM emp;
void run(void) {
    EXEC SQL OPEN emp_cur;
    EXEC SQL FETCH emp_cur INTO :id;
    if (sqlca.sqlcode != 0) { }
    EXEC SQL CLOSE emp_cur;
}`

	result := a.Analyze(source)

	require.Len(t, result.Cursors, 1)
	c := result.Cursors[0]
	assert.Equal(t, "emp_cur", c.Name)
	assert.Equal(t, 1, c.DeclareLine)
	assert.Len(t, c.OpenLines, 1)
	assert.Len(t, c.FetchLines, 1)
	assert.Len(t, c.CloseLines, 1)
	assert.False(t, c.IsDynamic)
	assert.Empty(t, result.Issues)
}

func TestAnalyzer_Analyze_UnclosedCursor(t *testing.T) {
	a := NewAnalyzer()

	source := `EXEC SQL DECLARE c1 CURSOR FOR SELECT id FROM t;
void run(void) {
    EXEC SQL OPEN c1;
    EXEC SQL FETCH c1 INTO :id;
    if (sqlca.sqlcode != 0) { }
}`

	result := a.Analyze(source)

	unclosed := issuesOfType(result, IssueUnclosedCursor)
	require.Len(t, unclosed, 1)
	assert.Equal(t, "c1", unclosed[0].CursorName)
	assert.Equal(t, "warning", unclosed[0].Severity)
}

func TestAnalyzer_Analyze_ReopenWithoutClose(t *testing.T) {
	a := NewAnalyzer()

	source := `EXEC SQL DECLARE c1 CURSOR FOR SELECT id FROM t;
void run(void) {
    EXEC SQL OPEN c1;
    EXEC SQL OPEN c1;
    EXEC SQL CLOSE c1;
}`

	result := a.Analyze(source)

	reopen := issuesOfType(result, IssueReopenNoClose)
	require.Len(t, reopen, 1)
	assert.Equal(t, "c1", reopen[0].CursorName)
}

func TestAnalyzer_Analyze_NestedCursorInFetchLoop(t *testing.T) {
	a := NewAnalyzer()

	source := `EXEC SQL DECLARE outer_cur CURSOR FOR SELECT id FROM dept;
EXEC SQL DECLARE inner_cur CURSOR FOR SELECT id FROM emp;
void run(void) {
    EXEC SQL OPEN outer_cur;
    while (1) {
        EXEC SQL FETCH outer_cur INTO :dept_id;
        if (sqlca.sqlcode != 0) break;
        EXEC SQL OPEN inner_cur;
        EXEC SQL FETCH inner_cur INTO :emp_id;
        if (sqlca.sqlcode != 0) { }
        EXEC SQL CLOSE inner_cur;
    }
    EXEC SQL CLOSE outer_cur;
}`

	result := a.Analyze(source)

	nested := issuesOfType(result, IssueNestedCursor)
	require.NotEmpty(t, nested)
	assert.Equal(t, "inner_cur", nested[0].CursorName)
	assert.Equal(t, "error", nested[0].Severity)
	assert.Greater(t, result.NestedCursorCount, 0)
}

func TestAnalyzer_Analyze_FetchWithoutCheck(t *testing.T) {
	a := NewAnalyzer()

	source := `EXEC SQL DECLARE c1 CURSOR FOR SELECT id FROM t;
void run(void) {
    EXEC SQL OPEN c1;
    EXEC SQL FETCH c1 INTO :id;
    printf("%d", id);
    EXEC SQL CLOSE c1;
}`

	result := a.Analyze(source)

	unchecked := issuesOfType(result, IssueFetchWithoutCheck)
	require.NotEmpty(t, unchecked)
	assert.Equal(t, "c1", unchecked[0].CursorName)
	assert.Equal(t, "info", unchecked[0].Severity)
}

func TestAnalyzer_Analyze_DynamicCursorViaPrepare(t *testing.T) {
	a := NewAnalyzer()

	source := `void run(char *stmt) {
    EXEC SQL PREPARE s1 FROM :stmt;
    EXEC SQL DECLARE dyn_cur CURSOR FOR s1;
    EXEC SQL OPEN dyn_cur;
    EXEC SQL CLOSE dyn_cur;
}`

	result := a.Analyze(source)

	var dyn *CursorInfo
	for i := range result.Cursors {
		if result.Cursors[i].Name == "dyn_cur" {
			dyn = &result.Cursors[i]
		}
	}
	require.NotNil(t, dyn)
	assert.True(t, dyn.IsDynamic)
}

func TestAnalyzer_Analyze_DeterministicOrdering(t *testing.T) {
	source := `EXEC SQL DECLARE c1 CURSOR FOR SELECT id FROM t1;
EXEC SQL DECLARE c2 CURSOR FOR SELECT id FROM t2;
EXEC SQL DECLARE c3 CURSOR FOR SELECT id FROM t3;
EXEC SQL DECLARE c4 CURSOR FOR SELECT id FROM t4;
EXEC SQL DECLARE c5 CURSOR FOR SELECT id FROM t5;
void run(void) {
    EXEC SQL OPEN c1;
    EXEC SQL OPEN c2;
    EXEC SQL OPEN c3;
    EXEC SQL OPEN c4;
    EXEC SQL OPEN c5;
}`

	first := NewAnalyzer().Analyze(source)

	var names []string
	for _, c := range first.Cursors {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"c1", "c2", "c3", "c4", "c5"}, names)

	for i := 0; i < 50; i++ {
		again := NewAnalyzer().Analyze(source)
		require.Equal(t, first.Cursors, again.Cursors)
		require.Equal(t, first.Issues, again.Issues)
	}
}

func TestResult_IssuesBySeverity(t *testing.T) {
	r := &Result{Issues: []Issue{
		{Severity: "error"},
		{Severity: "warning"},
		{Severity: "warning"},
	}}

	counts := r.IssuesBySeverity()
	assert.Equal(t, 1, counts["error"])
	assert.Equal(t, 2, counts["warning"])
	assert.Equal(t, 0, counts["info"])
}
