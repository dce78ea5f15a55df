// Package comments extracts TODO/FIXME annotations and module header
// metadata from Pro*C source, and aggregates per-file module records into a
// project inventory.
package comments

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Priority buckets for annotation tags.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// todoTags maps recognized annotation tags to their priority.
var todoTags = map[string]string{
	"FIXME":      PriorityHigh,
	"BUG":        PriorityHigh,
	"XXX":        PriorityHigh,
	"HACK":       PriorityMedium,
	"TODO":       PriorityMedium,
	"NOTE":       PriorityLow,
	"WARNING":    PriorityMedium,
	"WARN":       PriorityMedium,
	"OPTIMIZE":   PriorityLow,
	"REVIEW":     PriorityMedium,
	"DEPRECATED": PriorityHigh,
}

var (
	singleLineComment = regexp.MustCompile(`(?m)//(.*)$`)
	multiLineComment  = regexp.MustCompile(`(?s)/\*(.*?)\*/`)

	todoPattern = regexp.MustCompile(
		`(?im)\b(FIXME|BUG|XXX|HACK|TODO|NOTE|WARNING|WARN|OPTIMIZE|REVIEW|DEPRECATED)\b[:\s]*(.*)$`)

	includePattern    = regexp.MustCompile(`#include\s*[<"]([^>"]+)[>"]`)
	execSQLInclude    = regexp.MustCompile(`(?i)EXEC\s+SQL\s+INCLUDE\s+(\w+)`)
	leadingAsterisks  = regexp.MustCompile(`^\s*\*?\s*`)
	asteriskRunPrefix = regexp.MustCompile(`^\*+\s*`)
)

// headerPatterns extract module header metadata fields from the first
// comment block of a file.
var headerPatterns = map[string][]*regexp.Regexp{
	"title": {
		regexp.MustCompile(`(?im)^\s*\*?\s*(?:Module|File|Program)\s*:\s*(.+)$`),
	},
	"description": {
		regexp.MustCompile(`(?im)^\s*\*?\s*(?:Description|Desc|Purpose)\s*:\s*(.+)$`),
	},
	"author": {
		regexp.MustCompile(`(?im)^\s*\*?\s*(?:Author|Created by)\s*:\s*(.+)$`),
	},
	"date": {
		regexp.MustCompile(`(?im)^\s*\*?\s*(?:Date|Created|Modified)\s*:\s*(.+)$`),
	},
	"version": {
		regexp.MustCompile(`(?im)^\s*\*?\s*(?:Version|Ver|Rev|Revision)\s*:\s*(.+)$`),
	},
}

// TodoItem is one annotation found in a comment.
type TodoItem struct {
	Tag        string `json:"tag"`
	Message    string `json:"message"`
	LineNumber int    `json:"line_number"`
	Priority   string `json:"priority"`
	Context    string `json:"context"`
}

// ModuleInfo is the header metadata and dependency list of one file.
type ModuleInfo struct {
	Filepath  string `json:"filepath"`
	Filename  string `json:"filename"`
	Directory string `json:"directory"`

	Title       string `json:"title"`
	Description string `json:"description"`
	Author      string `json:"author"`
	Date        string `json:"date"`
	Version     string `json:"version"`

	Includes        []string `json:"includes"`
	ExecSQLIncludes []string `json:"exec_sql_includes"`
}

// Analyzer scans comment text for annotations and header metadata.
type Analyzer struct{}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze extracts the annotations and module record for one source file.
func (a *Analyzer) Analyze(source, path string) ([]TodoItem, ModuleInfo) {
	if path == "" {
		path = "unknown.pc"
	}

	info := ModuleInfo{
		Filepath:  path,
		Filename:  filepath.Base(path),
		Directory: filepath.Base(filepath.Dir(path)),
	}
	if info.Directory == "." {
		info.Directory = ""
	}

	lines := strings.Split(source, "\n")

	var todos []TodoItem
	for _, c := range extractComments(source) {
		todos = append(todos, findTodos(c.text, c.line, lines)...)
	}

	analyzeHeader(source, &info)
	findIncludes(source, &info)

	return todos, info
}

type comment struct {
	text string
	line int
}

func extractComments(source string) []comment {
	var comments []comment
	for _, m := range multiLineComment.FindAllStringSubmatchIndex(source, -1) {
		comments = append(comments, comment{
			text: source[m[2]:m[3]],
			line: strings.Count(source[:m[0]], "\n") + 1,
		})
	}
	for _, m := range singleLineComment.FindAllStringSubmatchIndex(source, -1) {
		comments = append(comments, comment{
			text: source[m[2]:m[3]],
			line: strings.Count(source[:m[0]], "\n") + 1,
		})
	}
	return comments
}

func findTodos(text string, startLine int, allLines []string) []TodoItem {
	var todos []TodoItem
	for _, m := range todoPattern.FindAllStringSubmatchIndex(text, -1) {
		tag := strings.ToUpper(text[m[2]:m[3]])
		message := strings.TrimSpace(text[m[4]:m[5]])
		lineNum := startLine + strings.Count(text[:m[0]], "\n")

		context := ""
		if lineNum > 0 && lineNum <= len(allLines) {
			context = strings.TrimSpace(allLines[lineNum-1])
		}

		priority, ok := todoTags[tag]
		if !ok {
			priority = PriorityLow
		}

		todos = append(todos, TodoItem{
			Tag:        tag,
			Message:    message,
			LineNumber: lineNum,
			Priority:   priority,
			Context:    context,
		})
	}
	return todos
}

func analyzeHeader(source string, info *ModuleInfo) {
	headerText := leadingCommentBlock(source)
	if headerText == "" {
		return
	}

	for field, patterns := range headerPatterns {
		for _, p := range patterns {
			if m := p.FindStringSubmatch(headerText); m != nil {
				value := asteriskRunPrefix.ReplaceAllString(strings.TrimSpace(m[1]), "")
				switch field {
				case "title":
					info.Title = value
				case "description":
					info.Description = value
				case "author":
					info.Author = value
				case "date":
					info.Date = value
				case "version":
					info.Version = value
				}
				break
			}
		}
	}

	// Fall back to the first meaningful header line as the title.
	if info.Title == "" {
		for _, line := range strings.Split(headerText, "\n") {
			clean := strings.TrimSpace(leadingAsterisks.ReplaceAllString(line, ""))
			if len(clean) > 3 {
				info.Title = clean
				break
			}
		}
	}
}

// leadingCommentBlock returns the text of the file's opening comment,
// either a /* */ block or a run of // lines.
func leadingCommentBlock(source string) string {
	trimmed := strings.TrimLeft(source, " \t\r\n")
	if strings.HasPrefix(trimmed, "/*") {
		if end := strings.Index(trimmed, "*/"); end >= 0 {
			return trimmed[2:end]
		}
		return ""
	}

	var headerLines []string
	for _, line := range strings.Split(source, "\n") {
		stripped := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(stripped, "//"):
			headerLines = append(headerLines, strings.TrimSpace(stripped[2:]))
		case stripped == "" || strings.HasPrefix(stripped, "#"):
			continue
		default:
			return strings.Join(headerLines, "\n")
		}
	}
	return strings.Join(headerLines, "\n")
}

func findIncludes(source string, info *ModuleInfo) {
	seen := make(map[string]bool)
	for _, m := range includePattern.FindAllStringSubmatch(source, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			info.Includes = append(info.Includes, m[1])
		}
	}

	seenSQL := make(map[string]bool)
	for _, m := range execSQLInclude.FindAllStringSubmatch(source, -1) {
		if !seenSQL[m[1]] {
			seenSQL[m[1]] = true
			info.ExecSQLIncludes = append(info.ExecSQLIncludes, m[1])
		}
	}
}

// Inventory aggregates ModuleInfo records across a project, grouped by
// directory.
type Inventory struct {
	Modules     map[string]ModuleInfo   `json:"modules"`
	ByDirectory map[string][]ModuleInfo `json:"by_directory"`
}

// NewInventory creates an empty Inventory.
func NewInventory() *Inventory {
	return &Inventory{
		Modules:     make(map[string]ModuleInfo),
		ByDirectory: make(map[string][]ModuleInfo),
	}
}

// Add records one module.
func (inv *Inventory) Add(info ModuleInfo) {
	inv.Modules[info.Filepath] = info

	dir := info.Directory
	if dir == "" {
		dir = "<root>"
	}
	inv.ByDirectory[dir] = append(inv.ByDirectory[dir], info)
}

// Summary describes the inventory's shape.
type Summary struct {
	TotalModules        int            `json:"total_modules"`
	Directories         []string       `json:"directories"`
	ModulesPerDirectory map[string]int `json:"modules_per_directory"`
}

// Summarize returns counts per directory.
func (inv *Inventory) Summarize() Summary {
	s := Summary{
		TotalModules:        len(inv.Modules),
		ModulesPerDirectory: make(map[string]int),
	}
	for dir, mods := range inv.ByDirectory {
		s.Directories = append(s.Directories, dir)
		s.ModulesPerDirectory[dir] = len(mods)
	}
	return s
}
