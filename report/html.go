package report

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/procsight/procsight/analyzer"
)

// HTMLFormatter renders the report as a standalone HTML page.
type HTMLFormatter struct {
	version string
	tmpl    *template.Template
}

// NewHTMLFormatter creates an HTMLFormatter.
func NewHTMLFormatter(version string) *HTMLFormatter {
	return &HTMLFormatter{
		version: version,
		tmpl:    template.Must(template.New("report").Parse(htmlTemplate)),
	}
}

type htmlData struct {
	Metadata Metadata
	Summary  Summary
	Files    []analyzer.FileMetrics
}

// Format renders the report.
func (f *HTMLFormatter) Format(r *analyzer.AnalysisReport) (string, error) {
	data := htmlData{
		Metadata: NewMetadata(f.version),
		Summary:  Summarize(r),
		Files:    r.Files,
	}

	var b strings.Builder
	if err := f.tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render html report: %w", err)
	}
	return b.String(), nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Pro*C Analysis Report</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2em auto; max-width: 70em; color: #222; }
h1, h2, h3 { color: #1a3c5e; }
table { border-collapse: collapse; margin: 1em 0; width: 100%; }
th, td { border: 1px solid #cbd5e0; padding: 0.4em 0.8em; text-align: left; }
th { background: #edf2f7; }
code { background: #f4f4f4; padding: 0.1em 0.3em; border-radius: 3px; }
.meta { color: #666; font-size: 0.85em; }
.error { color: #b00020; }
.severity-critical { color: #b00020; font-weight: bold; }
.severity-error { color: #c53030; }
.severity-warning { color: #b7791f; }
.severity-info { color: #2b6cb0; }
</style>
</head>
<body>
<h1>Pro*C Analysis Report</h1>
<p class="meta">Generated by {{.Metadata.Tool}} {{.Metadata.Version}} on {{.Metadata.GeneratedAt.Format "2006-01-02 15:04:05 MST"}} &mdash; run {{.Metadata.RunID}}</p>

<h2>Summary</h2>
<table>
<tr><th>Metric</th><th>Value</th></tr>
<tr><td>Files analyzed</td><td>{{.Summary.TotalFiles}}</td></tr>
<tr><td>Functions</td><td>{{.Summary.TotalFunctions}}</td></tr>
<tr><td>Lines</td><td>{{.Summary.TotalLines}}</td></tr>
<tr><td>SQL blocks</td><td>{{.Summary.TotalSQLBlocks}}</td></tr>
<tr><td>Avg cyclomatic complexity</td><td>{{printf "%.2f" .Summary.AvgCyclomatic}}</td></tr>
<tr><td>Avg cognitive complexity</td><td>{{printf "%.2f" .Summary.AvgCognitive}}</td></tr>
<tr><td>TODO/FIXME annotations</td><td>{{.Summary.TotalTodos}}</td></tr>
<tr><td>Cursor issues</td><td>{{.Summary.TotalCursorIssues}}</td></tr>
<tr><td>Memory issues</td><td>{{.Summary.TotalMemoryIssues}}</td></tr>
</table>

{{range .Files}}
<h2>{{.Filepath}}</h2>
{{if .ParseErrors}}<p class="error">{{if .ErrorMessage}}{{.ErrorMessage}}{{else}}Source contains syntax errors; metrics are best-effort.{{end}}</p>{{end}}
<p>{{.TotalLines}} lines ({{.NonEmptyLines}} non-empty), {{len .Functions}} functions, {{.SQLStatistics.TotalBlocks}} SQL blocks</p>

{{if .Functions}}
<h3>Functions</h3>
<table>
<tr><th>Function</th><th>Lines</th><th>Cyclomatic</th><th>Cognitive</th><th>SQL</th><th>Params</th><th>Return</th></tr>
{{range .Functions}}
<tr><td><code>{{.Name}}</code></td><td>{{.StartLine}}&ndash;{{.EndLine}}</td><td>{{.Cyclomatic}}</td><td>{{.Cognitive}}</td><td>{{.SQLBlockCount}}</td><td>{{.ParameterCount}}</td><td><code>{{.ReturnType}}</code></td></tr>
{{end}}
</table>
{{end}}

{{if .Todos}}
<h3>Annotations</h3>
<table>
<tr><th>Line</th><th>Tag</th><th>Priority</th><th>Message</th></tr>
{{range .Todos}}
<tr><td>{{.LineNumber}}</td><td>{{.Tag}}</td><td>{{.Priority}}</td><td>{{.Message}}</td></tr>
{{end}}
</table>
{{end}}

{{with .CursorAnalysis}}{{if .Issues}}
<h3>Cursor issues</h3>
<table>
<tr><th>Line</th><th>Severity</th><th>Cursor</th><th>Message</th></tr>
{{range .Issues}}
<tr><td>{{.LineNumber}}</td><td class="severity-{{.Severity}}">{{.Severity}}</td><td><code>{{.CursorName}}</code></td><td>{{.Message}}</td></tr>
{{end}}
</table>
{{end}}{{end}}

{{with .MemoryAnalysis}}{{if .Issues}}
<h3>Memory issues</h3>
<table>
<tr><th>Line</th><th>Severity</th><th>Message</th><th>Recommendation</th></tr>
{{range .Issues}}
<tr><td>{{.LineNumber}}</td><td class="severity-{{.Severity}}">{{.Severity}}</td><td>{{.Message}}</td><td>{{.Recommendation}}</td></tr>
{{end}}
</table>
{{end}}{{end}}
{{end}}

</body>
</html>
`
