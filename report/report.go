// Package report renders analysis reports as JSON, Markdown, HTML or CSV.
package report

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/procsight/procsight/analyzer"
)

// ToolName identifies the generator in report metadata.
const ToolName = "procsight"

// Formatter renders a full analysis report as text.
type Formatter interface {
	Format(report *analyzer.AnalysisReport) (string, error)
}

// Metadata stamps a report with its provenance. RunID is unique per
// generated report.
type Metadata struct {
	Tool        string    `json:"tool"`
	Version     string    `json:"version"`
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
}

// NewMetadata creates report metadata with a fresh run ID.
func NewMetadata(version string) Metadata {
	return Metadata{
		Tool:        ToolName,
		Version:     version,
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
	}
}

// Summary is the project-level aggregate block of a report.
type Summary struct {
	TotalFiles        int     `json:"total_files"`
	TotalFunctions    int     `json:"total_functions"`
	TotalLines        int     `json:"total_lines"`
	TotalSQLBlocks    int     `json:"total_sql_blocks"`
	AvgCyclomatic     float64 `json:"avg_cyclomatic"`
	AvgCognitive      float64 `json:"avg_cognitive"`
	TotalTodos        int     `json:"total_todos"`
	TotalCursorIssues int     `json:"total_cursor_issues"`
	TotalMemoryIssues int     `json:"total_memory_issues"`
}

// Summarize computes the aggregate block for a report.
func Summarize(r *analyzer.AnalysisReport) Summary {
	return Summary{
		TotalFiles:        r.TotalFiles(),
		TotalFunctions:    r.TotalFunctions(),
		TotalLines:        r.TotalLines(),
		TotalSQLBlocks:    r.TotalSQLBlocks(),
		AvgCyclomatic:     r.AvgCyclomatic(),
		AvgCognitive:      r.AvgCognitive(),
		TotalTodos:        r.TotalTodos(),
		TotalCursorIssues: r.TotalCursorIssues(),
		TotalMemoryIssues: r.TotalMemoryIssues(),
	}
}

// New returns the formatter for a format name: json, markdown, html or csv.
func New(format, version string) (Formatter, error) {
	switch format {
	case "json":
		return NewJSONFormatter(version), nil
	case "markdown":
		return NewMarkdownFormatter(version), nil
	case "html":
		return NewHTMLFormatter(version), nil
	case "csv":
		return NewCSVFormatter(), nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

// Save renders a report and writes it to path.
func Save(f Formatter, r *analyzer.AnalysisReport, path string) error {
	text, err := f.Format(r)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
