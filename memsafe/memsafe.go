// Package memsafe applies textual memory-safety heuristics to C/Pro*C
// source: allocations without NULL checks or matching free, free without a
// NULL reset, calls to dangerous string functions, and sizeof applied to a
// pointer inside an allocation.
package memsafe

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// IssueType classifies a memory finding.
type IssueType string

const (
	IssueAllocUnchecked    IssueType = "malloc_unchecked"
	IssueAllocNoFree       IssueType = "malloc_no_free"
	IssueFreeNoNull        IssueType = "free_no_null"
	IssueBufferOverflow    IssueType = "buffer_overflow"
	IssueDangerousFunction IssueType = "dangerous_function"
	IssueSizeofPointer     IssueType = "sizeof_pointer"
)

// Severity levels, most severe first.
const (
	SeverityCritical = "critical"
	SeverityError    = "error"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Issue is one memory problem found in the source.
type Issue struct {
	Type           IssueType `json:"type"`
	Severity       string    `json:"severity"`
	LineNumber     int       `json:"line_number"`
	Message        string    `json:"message"`
	CodeSnippet    string    `json:"code_snippet"`
	Recommendation string    `json:"recommendation"`
}

// Allocation tracks one heap allocation and what the source does with it.
type Allocation struct {
	Variable     string
	LineNumber   int
	Function     string
	HasNullCheck bool
	HasFree      bool
	FreeLine     int
}

// Result holds all findings for one file.
type Result struct {
	Issues         []Issue      `json:"issues"`
	Allocations    []Allocation `json:"-"`
	DangerousCalls int          `json:"dangerous_calls_count"`
}

// CountBySeverity returns the number of issues at the given severity.
func (r *Result) CountBySeverity(severity string) int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Severity == severity {
			n++
		}
	}
	return n
}

type dangerousFunc struct {
	replacement string
	severity    string
	reason      string
}

// dangerousFunctions maps known-unsafe calls to their replacement and why.
var dangerousFunctions = map[string]dangerousFunc{
	"gets":     {"fgets", SeverityCritical, "gets() cannot bound its read, overflow is guaranteed"},
	"strcpy":   {"strncpy/strlcpy", SeverityWarning, "strcpy() does not bound the destination buffer"},
	"strcat":   {"strncat/strlcat", SeverityWarning, "strcat() does not bound the destination buffer"},
	"sprintf":  {"snprintf", SeverityWarning, "sprintf() does not bound the destination buffer"},
	"vsprintf": {"vsnprintf", SeverityWarning, "vsprintf() does not bound the destination buffer"},
	"scanf":    {"fgets+sscanf", SeverityWarning, "scanf() with %s can overflow"},
	"fscanf":   {"fgets+sscanf", SeverityInfo, "fscanf() with %s can overflow"},
	"getwd":    {"getcwd", SeverityWarning, "getwd() is deprecated and unsafe"},
	"mktemp":   {"mkstemp", SeverityWarning, "mktemp() has race conditions"},
	"tempnam":  {"mkstemp", SeverityWarning, "tempnam() has race conditions"},
	"tmpnam":   {"mkstemp", SeverityWarning, "tmpnam() has race conditions"},
}

var (
	allocPattern = regexp.MustCompile(
		`(?i)(\w+)\s*=\s*\(?\s*\w*\s*\*?\s*\)?\s*(malloc|calloc|realloc|strdup|strndup)\s*\(`)
	freePattern       = regexp.MustCompile(`\bfree\s*\(\s*(\w+)\s*\)`)
	nullAssignPattern = regexp.MustCompile(`(\w+)\s*=\s*NULL\s*;`)

	nullCheckPatterns = []*regexp.Regexp{
		regexp.MustCompile(`if\s*\(\s*(\w+)\s*==\s*NULL\s*\)`),
		regexp.MustCompile(`if\s*\(\s*NULL\s*==\s*(\w+)\s*\)`),
		regexp.MustCompile(`if\s*\(\s*!\s*(\w+)\s*\)`),
		regexp.MustCompile(`if\s*\(\s*(\w+)\s*\)`),
	}

	sizeofAllocPattern = regexp.MustCompile(`(?i)(malloc|calloc)\s*\([^)]*sizeof\s*\(\s*(\w+)\s*\)\s*\)`)
)

// nullCheckWindow bounds how far after an allocation a NULL check may
// appear; nullResetWindow does the same for `p = NULL;` after free().
const (
	nullCheckWindow = 300
	nullResetWindow = 100
)

// Analyzer detects memory-safety problems.
type Analyzer struct {
	lines       []string
	allocations map[string]*Allocation
	// allocOrder keeps first-seen order so results are stable across runs.
	allocOrder []string
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze scans the source and returns all findings.
func (a *Analyzer) Analyze(source string) *Result {
	result := &Result{}
	a.lines = strings.Split(source, "\n")
	a.allocations = make(map[string]*Allocation)
	a.allocOrder = nil

	a.findAllocations(source)
	a.findFrees(source, result)
	a.checkNullVerifications(source, result)
	a.findDangerousFunctions(source, result)
	a.checkSizeofPointer(source, result)
	a.reportUnfreed(result)

	for _, variable := range a.allocOrder {
		result.Allocations = append(result.Allocations, *a.allocations[variable])
	}
	return result
}

func lineAt(source string, pos int) int {
	return strings.Count(source[:pos], "\n") + 1
}

func (a *Analyzer) lineText(lineNum int) string {
	if lineNum > 0 && lineNum <= len(a.lines) {
		return strings.TrimSpace(a.lines[lineNum-1])
	}
	return ""
}

func (a *Analyzer) findAllocations(source string) {
	for _, m := range allocPattern.FindAllStringSubmatchIndex(source, -1) {
		variable := source[m[2]:m[3]]
		if _, ok := a.allocations[variable]; !ok {
			a.allocOrder = append(a.allocOrder, variable)
		}
		a.allocations[variable] = &Allocation{
			Variable:   variable,
			LineNumber: lineAt(source, m[0]),
			Function:   strings.ToLower(source[m[4]:m[5]]),
		}
	}
}

func (a *Analyzer) findFrees(source string, result *Result) {
	for _, m := range freePattern.FindAllStringSubmatchIndex(source, -1) {
		variable := source[m[2]:m[3]]
		line := lineAt(source, m[0])

		if alloc, ok := a.allocations[variable]; ok {
			alloc.HasFree = true
			alloc.FreeLine = line
		}

		end := m[1] + nullResetWindow
		if end > len(source) {
			end = len(source)
		}
		reset := nullAssignPattern.FindStringSubmatch(source[m[1]:end])
		if reset != nil && reset[1] == variable {
			continue
		}

		result.Issues = append(result.Issues, Issue{
			Type:           IssueFreeNoNull,
			Severity:       SeverityWarning,
			LineNumber:     line,
			Message:        fmt.Sprintf("free(%s) without NULL reset, dangling pointer risk", variable),
			CodeSnippet:    a.lineText(line),
			Recommendation: fmt.Sprintf("add '%s = NULL;' after free()", variable),
		})
	}
}

func (a *Analyzer) checkNullVerifications(source string, result *Result) {
	for _, variable := range a.allocOrder {
		alloc := a.allocations[variable]
		pos := positionOfLine(source, alloc.LineNumber)
		end := pos + nullCheckWindow
		if end > len(source) {
			end = len(source)
		}
		window := source[pos:end]

		for _, pattern := range nullCheckPatterns {
			if m := pattern.FindStringSubmatch(window); m != nil && m[1] == variable {
				alloc.HasNullCheck = true
				break
			}
		}

		if !alloc.HasNullCheck {
			result.Issues = append(result.Issues, Issue{
				Type:           IssueAllocUnchecked,
				Severity:       SeverityError,
				LineNumber:     alloc.LineNumber,
				Message:        fmt.Sprintf("%s() without NULL check, crash if the allocation fails", alloc.Function),
				CodeSnippet:    a.lineText(alloc.LineNumber),
				Recommendation: fmt.Sprintf("add: if (%s == NULL) { /* handle error */ }", variable),
			})
		}
	}
}

func positionOfLine(source string, lineNum int) int {
	pos := 0
	for i, line := range strings.Split(source, "\n") {
		if i >= lineNum-1 {
			break
		}
		pos += len(line) + 1
	}
	return pos
}

func (a *Analyzer) findDangerousFunctions(source string, result *Result) {
	names := make([]string, 0, len(dangerousFunctions))
	for name := range dangerousFunctions {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		info := dangerousFunctions[name]
		pattern := regexp.MustCompile(`(?i)\b` + name + `\s*\(`)
		for _, m := range pattern.FindAllStringIndex(source, -1) {
			line := lineAt(source, m[0])

			issueType := IssueDangerousFunction
			if info.severity == SeverityCritical {
				issueType = IssueBufferOverflow
			}

			result.Issues = append(result.Issues, Issue{
				Type:           issueType,
				Severity:       info.severity,
				LineNumber:     line,
				Message:        fmt.Sprintf("call to %s(): %s", name, info.reason),
				CodeSnippet:    a.lineText(line),
				Recommendation: fmt.Sprintf("use %s instead", info.replacement),
			})
			result.DangerousCalls++
		}
	}
}

// checkSizeofPointer flags malloc(sizeof(p)) where p was declared as a
// pointer, which allocates only the pointer's own size.
func (a *Analyzer) checkSizeofPointer(source string, result *Result) {
	for _, m := range sizeofAllocPattern.FindAllStringSubmatchIndex(source, -1) {
		variable := source[m[4]:m[5]]
		line := lineAt(source, m[0])

		declPattern := regexp.MustCompile(`\b\w+\s*\*+\s*` + variable + `\b`)
		if !declPattern.MatchString(source[:m[0]]) {
			continue
		}

		result.Issues = append(result.Issues, Issue{
			Type:           IssueSizeofPointer,
			Severity:       SeverityError,
			LineNumber:     line,
			Message:        fmt.Sprintf("sizeof(%s) on a pointer allocates only the pointer size", variable),
			CodeSnippet:    a.lineText(line),
			Recommendation: fmt.Sprintf("use sizeof(*%s) or sizeof(type)", variable),
		})
	}
}

func (a *Analyzer) reportUnfreed(result *Result) {
	for _, variable := range a.allocOrder {
		alloc := a.allocations[variable]
		if alloc.HasFree {
			continue
		}
		result.Issues = append(result.Issues, Issue{
			Type:           IssueAllocNoFree,
			Severity:       SeverityWarning,
			LineNumber:     alloc.LineNumber,
			Message:        fmt.Sprintf("%s(%s) without a matching free(), potential leak", alloc.Function, variable),
			CodeSnippet:    a.lineText(alloc.LineNumber),
			Recommendation: fmt.Sprintf("free(%s) when the memory is no longer needed", variable),
		})
	}
}
