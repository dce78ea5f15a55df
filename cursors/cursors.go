// Package cursors inspects the SQL cursor lifecycle in Pro*C source:
// declarations, open/fetch/close pairing, cursors opened inside another
// cursor's fetch loop, and fetches with no SQLCODE check. Detection is
// textual with fixed-size windows; it runs on the original source, not the
// neutralized text.
package cursors

import (
	"fmt"
	"regexp"
	"strings"
)

// IssueType classifies a cursor finding.
type IssueType string

const (
	IssueNestedCursor      IssueType = "nested_cursor"
	IssueUnclosedCursor    IssueType = "unclosed_cursor"
	IssueFetchWithoutCheck IssueType = "fetch_no_check"
	IssueReopenNoClose     IssueType = "reopen_no_close"
)

// CursorInfo tracks one declared cursor and the lines of its operations.
type CursorInfo struct {
	Name        string `json:"name"`
	DeclareLine int    `json:"declare_line"`
	SelectStmt  string `json:"-"`
	IsDynamic   bool   `json:"is_dynamic"`

	OpenLines  []int `json:"open_lines"`
	FetchLines []int `json:"-"`
	CloseLines []int `json:"close_lines"`
}

// Issue is one cursor problem found in the source.
type Issue struct {
	CursorName string    `json:"cursor_name"`
	Type       IssueType `json:"issue_type"`
	LineNumber int       `json:"line_number"`
	Message    string    `json:"message"`
	Severity   string    `json:"severity"`
}

// Result holds all cursors and issues found in one file.
type Result struct {
	Cursors           []CursorInfo `json:"cursors"`
	Issues            []Issue      `json:"issues"`
	NestedCursorCount int          `json:"nested_cursor_count"`
}

// IssuesBySeverity counts issues per severity bucket.
func (r *Result) IssuesBySeverity() map[string]int {
	counts := map[string]int{"error": 0, "warning": 0, "info": 0}
	for _, issue := range r.Issues {
		counts[issue.Severity]++
	}
	return counts
}

var (
	declareCursor = regexp.MustCompile(`(?is)EXEC\s+SQL\s+DECLARE\s+(\w+)\s+CURSOR\s+FOR\s+(.*?);`)
	openCursor    = regexp.MustCompile(`(?i)EXEC\s+SQL\s+OPEN\s+(\w+)`)
	fetchCursor   = regexp.MustCompile(`(?i)EXEC\s+SQL\s+FETCH\s+(\w+)`)
	closeCursor   = regexp.MustCompile(`(?i)EXEC\s+SQL\s+CLOSE\s+(\w+)`)

	prepareStmt    = regexp.MustCompile(`(?i)EXEC\s+SQL\s+PREPARE\s+(\w+)\s+FROM`)
	declareDynamic = regexp.MustCompile(`(?i)EXEC\s+SQL\s+DECLARE\s+(\w+)\s+CURSOR\s+FOR\s+(\w+)`)

	loopPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bwhile\s*\(`),
		regexp.MustCompile(`(?i)\bfor\s*\(`),
		regexp.MustCompile(`(?i)\bdo\s*\{`),
	}

	sqlcodeCheck = regexp.MustCompile(`(?i)(sqlca\.sqlcode|SQLCODE)\s*(==|!=|<|>|<=|>=)`)
	execSQLHead  = regexp.MustCompile(`(?i)EXEC\s+SQL`)
)

// loopSearchWindow bounds how far back the enclosing-loop search looks from
// a FETCH position.
const loopSearchWindow = 2000

// fetchCheckWindow bounds how far after a FETCH a SQLCODE check may appear.
const fetchCheckWindow = 300

// Analyzer detects cursor lifecycle problems.
type Analyzer struct {
	cursorMap map[string]*CursorInfo
	// cursorOrder keeps declaration order so results are stable across runs.
	cursorOrder []string
	prepared    map[string]bool
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze scans the source for cursor declarations, their operations and
// the issues listed in the package documentation.
func (a *Analyzer) Analyze(source string) *Result {
	result := &Result{}
	a.cursorMap = make(map[string]*CursorInfo)
	a.cursorOrder = nil
	a.prepared = make(map[string]bool)

	a.findPreparedStatements(source)
	a.findDeclarations(source)
	a.findOperations(source)
	a.analyzeIssues(source, result)

	for _, name := range a.cursorOrder {
		result.Cursors = append(result.Cursors, *a.cursorMap[name])
	}
	return result
}

func (a *Analyzer) addCursor(name string, c *CursorInfo) {
	if _, ok := a.cursorMap[name]; !ok {
		a.cursorOrder = append(a.cursorOrder, name)
	}
	a.cursorMap[name] = c
}

func lineAt(source string, pos int) int {
	return strings.Count(source[:pos], "\n") + 1
}

func (a *Analyzer) findPreparedStatements(source string) {
	for _, m := range prepareStmt.FindAllStringSubmatch(source, -1) {
		a.prepared[strings.ToLower(m[1])] = true
	}
}

func (a *Analyzer) findDeclarations(source string) {
	for _, m := range declareCursor.FindAllStringSubmatchIndex(source, -1) {
		name := strings.ToLower(source[m[2]:m[3]])
		a.addCursor(name, &CursorInfo{
			Name:        name,
			DeclareLine: lineAt(source, m[0]),
			SelectStmt:  strings.TrimSpace(source[m[4]:m[5]]),
		})
	}

	for _, m := range declareDynamic.FindAllStringSubmatchIndex(source, -1) {
		name := strings.ToLower(source[m[2]:m[3]])
		stmt := strings.ToLower(source[m[4]:m[5]])
		if a.prepared[stmt] {
			a.addCursor(name, &CursorInfo{
				Name:        name,
				DeclareLine: lineAt(source, m[0]),
				IsDynamic:   true,
			})
		}
	}
}

func (a *Analyzer) findOperations(source string) {
	record := func(pattern *regexp.Regexp, add func(*CursorInfo, int)) {
		for _, m := range pattern.FindAllStringSubmatchIndex(source, -1) {
			name := strings.ToLower(source[m[2]:m[3]])
			if c, ok := a.cursorMap[name]; ok {
				add(c, lineAt(source, m[0]))
			}
		}
	}

	record(openCursor, func(c *CursorInfo, line int) { c.OpenLines = append(c.OpenLines, line) })
	record(fetchCursor, func(c *CursorInfo, line int) { c.FetchLines = append(c.FetchLines, line) })
	record(closeCursor, func(c *CursorInfo, line int) { c.CloseLines = append(c.CloseLines, line) })
}

func (a *Analyzer) analyzeIssues(source string, result *Result) {
	for _, name := range a.cursorOrder {
		c := a.cursorMap[name]
		if len(c.OpenLines) > 0 && len(c.CloseLines) == 0 {
			result.Issues = append(result.Issues, Issue{
				CursorName: name,
				Type:       IssueUnclosedCursor,
				LineNumber: c.OpenLines[0],
				Message:    fmt.Sprintf("cursor %q opened at line %d but never closed", name, c.OpenLines[0]),
				Severity:   "warning",
			})
		}

		if len(c.OpenLines) > len(c.CloseLines) {
			result.Issues = append(result.Issues, Issue{
				CursorName: name,
				Type:       IssueReopenNoClose,
				LineNumber: c.OpenLines[len(c.OpenLines)-1],
				Message:    fmt.Sprintf("cursor %q: %d OPEN for %d CLOSE", name, len(c.OpenLines), len(c.CloseLines)),
				Severity:   "warning",
			})
		}
	}

	a.detectNestedCursors(source, result)
	a.detectUncheckedFetch(source, result)
}

// detectNestedCursors flags cursors opened inside another cursor's fetch
// loop, a classic Pro*C performance problem.
func (a *Analyzer) detectNestedCursors(source string, result *Result) {
	for _, m := range fetchCursor.FindAllStringSubmatchIndex(source, -1) {
		outer := strings.ToLower(source[m[2]:m[3]])

		loopStart, loopEnd, ok := enclosingLoop(source, m[0])
		if !ok {
			continue
		}

		loopContent := source[loopStart:loopEnd]
		for _, om := range openCursor.FindAllStringSubmatchIndex(loopContent, -1) {
			inner := strings.ToLower(loopContent[om[2]:om[3]])
			if inner == outer {
				continue
			}
			line := lineAt(source, loopStart+om[0])
			result.Issues = append(result.Issues, Issue{
				CursorName: inner,
				Type:       IssueNestedCursor,
				LineNumber: line,
				Message:    fmt.Sprintf("cursor %q opened inside the fetch loop of %q", inner, outer),
				Severity:   "error",
			})
			result.NestedCursorCount++
		}
	}
}

// enclosingLoop finds the loop construct surrounding pos by looking back a
// bounded window for the nearest loop keyword, then balancing braces
// forward to its end.
func enclosingLoop(source string, pos int) (int, int, bool) {
	searchStart := pos - loopSearchWindow
	if searchStart < 0 {
		searchStart = 0
	}
	preceding := source[searchStart:pos]

	best := -1
	for _, pattern := range loopPatterns {
		for _, m := range pattern.FindAllStringIndex(preceding, -1) {
			if m[0] > best {
				best = m[0]
			}
		}
	}
	if best < 0 {
		return 0, 0, false
	}

	loopStart := searchStart + best
	depth := 0
	inLoop := false
	loopEnd := len(source)
	for i := loopStart; i < len(source); i++ {
		switch source[i] {
		case '{':
			depth++
			inLoop = true
		case '}':
			depth--
			if inLoop && depth == 0 {
				return loopStart, i, true
			}
		}
	}
	return loopStart, loopEnd, true
}

// detectUncheckedFetch flags FETCH statements not followed by a SQLCODE
// test within a short window, or followed by another EXEC SQL first.
func (a *Analyzer) detectUncheckedFetch(source string, result *Result) {
	for _, m := range fetchCursor.FindAllStringSubmatchIndex(source, -1) {
		name := strings.ToLower(source[m[2]:m[3]])
		line := lineAt(source, m[0])

		end := m[1] + fetchCheckWindow
		if end > len(source) {
			end = len(source)
		}
		following := source[m[1]:end]

		check := sqlcodeCheck.FindStringIndex(following)
		nextExec := execSQLHead.FindStringIndex(following)

		switch {
		case check == nil:
			result.Issues = append(result.Issues, Issue{
				CursorName: name,
				Type:       IssueFetchWithoutCheck,
				LineNumber: line,
				Message:    fmt.Sprintf("FETCH on %q without SQLCODE check", name),
				Severity:   "info",
			})
		case nextExec != nil && nextExec[0] < check[0]:
			result.Issues = append(result.Issues, Issue{
				CursorName: name,
				Type:       IssueFetchWithoutCheck,
				LineNumber: line,
				Message:    fmt.Sprintf("FETCH on %q: SQLCODE check may come too late", name),
				Severity:   "info",
			})
		}
	}
}
