package report

import (
	"fmt"
	"strings"

	"github.com/procsight/procsight/analyzer"
)

// MarkdownFormatter renders the report as GitHub-flavored Markdown.
type MarkdownFormatter struct {
	version string
}

// NewMarkdownFormatter creates a MarkdownFormatter.
func NewMarkdownFormatter(version string) *MarkdownFormatter {
	return &MarkdownFormatter{version: version}
}

// Format renders the report.
func (f *MarkdownFormatter) Format(r *analyzer.AnalysisReport) (string, error) {
	meta := NewMetadata(f.version)

	var b strings.Builder
	f.writeHeader(&b, meta)
	f.writeSummary(&b, r)
	f.writeFiles(&b, r)
	f.writeTodos(&b, r)
	f.writeCursorIssues(&b, r)
	f.writeMemoryIssues(&b, r)
	return b.String(), nil
}

func (f *MarkdownFormatter) writeHeader(b *strings.Builder, meta Metadata) {
	fmt.Fprintf(b, "# Pro*C Analysis Report\n\n")
	fmt.Fprintf(b, "Generated by %s %s on %s (run `%s`)\n\n",
		meta.Tool, meta.Version, meta.GeneratedAt.Format("2006-01-02 15:04:05 MST"), meta.RunID)
}

func (f *MarkdownFormatter) writeSummary(b *strings.Builder, r *analyzer.AnalysisReport) {
	s := Summarize(r)
	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Value |\n|--------|-------|\n")
	fmt.Fprintf(b, "| Files analyzed | %d |\n", s.TotalFiles)
	fmt.Fprintf(b, "| Functions | %d |\n", s.TotalFunctions)
	fmt.Fprintf(b, "| Lines | %d |\n", s.TotalLines)
	fmt.Fprintf(b, "| SQL blocks | %d |\n", s.TotalSQLBlocks)
	fmt.Fprintf(b, "| Avg cyclomatic complexity | %.2f |\n", s.AvgCyclomatic)
	fmt.Fprintf(b, "| Avg cognitive complexity | %.2f |\n", s.AvgCognitive)
	fmt.Fprintf(b, "| TODO/FIXME annotations | %d |\n", s.TotalTodos)
	fmt.Fprintf(b, "| Cursor issues | %d |\n", s.TotalCursorIssues)
	fmt.Fprintf(b, "| Memory issues | %d |\n", s.TotalMemoryIssues)
	b.WriteString("\n")
}

func (f *MarkdownFormatter) writeFiles(b *strings.Builder, r *analyzer.AnalysisReport) {
	if len(r.Files) == 0 {
		return
	}
	b.WriteString("## Files\n\n")

	for i := range r.Files {
		fm := &r.Files[i]
		fmt.Fprintf(b, "### %s\n\n", fm.Filepath)

		if fm.ParseErrors {
			if fm.ErrorMessage != "" {
				fmt.Fprintf(b, "> Analysis error: %s\n\n", fm.ErrorMessage)
			} else {
				b.WriteString("> Source contains syntax errors; metrics are best-effort.\n\n")
			}
		}

		fmt.Fprintf(b, "%d lines (%d non-empty), %d functions, %d SQL blocks\n\n",
			fm.TotalLines, fm.NonEmptyLines, fm.FunctionCount(), fm.SQLStatistics.TotalBlocks)

		if len(fm.Functions) == 0 {
			continue
		}
		b.WriteString("| Function | Lines | Cyclomatic | Cognitive | SQL | Params |\n")
		b.WriteString("|----------|-------|------------|-----------|-----|--------|\n")
		for _, fn := range fm.Functions {
			fmt.Fprintf(b, "| `%s` | %d-%d | %d | %d | %d | %d |\n",
				fn.Name, fn.StartLine, fn.EndLine, fn.Cyclomatic, fn.Cognitive,
				fn.SQLBlockCount, fn.ParameterCount)
		}
		b.WriteString("\n")
	}
}

func (f *MarkdownFormatter) writeTodos(b *strings.Builder, r *analyzer.AnalysisReport) {
	if r.TotalTodos() == 0 {
		return
	}
	b.WriteString("## Annotations\n\n")
	b.WriteString("| File | Line | Tag | Priority | Message |\n")
	b.WriteString("|------|------|-----|----------|--------|\n")
	for i := range r.Files {
		for _, t := range r.Files[i].Todos {
			fmt.Fprintf(b, "| %s | %d | %s | %s | %s |\n",
				r.Files[i].Filepath, t.LineNumber, t.Tag, t.Priority, escapePipes(t.Message))
		}
	}
	b.WriteString("\n")
}

func (f *MarkdownFormatter) writeCursorIssues(b *strings.Builder, r *analyzer.AnalysisReport) {
	if r.TotalCursorIssues() == 0 {
		return
	}
	b.WriteString("## Cursor Issues\n\n")
	b.WriteString("| File | Line | Severity | Cursor | Message |\n")
	b.WriteString("|------|------|----------|--------|--------|\n")
	for i := range r.Files {
		ca := r.Files[i].CursorAnalysis
		if ca == nil {
			continue
		}
		for _, issue := range ca.Issues {
			fmt.Fprintf(b, "| %s | %d | %s | %s | %s |\n",
				r.Files[i].Filepath, issue.LineNumber, issue.Severity,
				issue.CursorName, escapePipes(issue.Message))
		}
	}
	b.WriteString("\n")
}

func (f *MarkdownFormatter) writeMemoryIssues(b *strings.Builder, r *analyzer.AnalysisReport) {
	if r.TotalMemoryIssues() == 0 {
		return
	}
	b.WriteString("## Memory Issues\n\n")
	b.WriteString("| File | Line | Severity | Message | Recommendation |\n")
	b.WriteString("|------|------|----------|---------|----------------|\n")
	for i := range r.Files {
		ma := r.Files[i].MemoryAnalysis
		if ma == nil {
			continue
		}
		for _, issue := range ma.Issues {
			fmt.Fprintf(b, "| %s | %d | %s | %s | %s |\n",
				r.Files[i].Filepath, issue.LineNumber, issue.Severity,
				escapePipes(issue.Message), escapePipes(issue.Recommendation))
		}
	}
	b.WriteString("\n")
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
