// Package analyzer orchestrates the full per-file pipeline: SQL
// neutralization, C parsing, complexity metrics, and the supplementary
// comment, cursor and memory analyses. It aggregates results into file and
// project level reports.
package analyzer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/procsight/procsight/comments"
	"github.com/procsight/procsight/cparser"
	"github.com/procsight/procsight/cursors"
	"github.com/procsight/procsight/memsafe"
	"github.com/procsight/procsight/metrics"
	"github.com/procsight/procsight/neutralizer"
)

// Options selects which analyses run beyond the core complexity metrics.
type Options struct {
	Halstead bool
	Todos    bool
	Cursors  bool
	Memory   bool
}

// DefaultOptions enables everything.
func DefaultOptions() Options {
	return Options{Halstead: true, Todos: true, Cursors: true, Memory: true}
}

// ProgressFunc is called once per file during multi-file analysis.
type ProgressFunc func(path string, current, total int)

// FunctionMetrics holds the computed metrics of one function.
type FunctionMetrics struct {
	Name           string                  `json:"name"`
	StartLine      int                     `json:"start_line"`
	EndLine        int                     `json:"end_line"`
	LineCount      int                     `json:"line_count"`
	Cyclomatic     int                     `json:"cyclomatic_complexity"`
	Cognitive      int                     `json:"cognitive_complexity"`
	SQLBlockCount  int                     `json:"sql_blocks_count"`
	ParameterCount int                     `json:"parameters_count"`
	ReturnType     string                  `json:"return_type"`
	Halstead       *metrics.HalsteadReport `json:"halstead,omitempty"`
}

// SQLStatistics summarizes the embedded SQL found in one file.
type SQLStatistics struct {
	TotalBlocks int            `json:"total_blocks"`
	ByKind      map[string]int `json:"by_kind"`
}

// FileMetrics holds everything computed for one source file. ParseErrors is
// advisory: metrics are still populated best-effort when the tree has
// errors, so malformed input never aborts an analysis run.
type FileMetrics struct {
	Filepath      string            `json:"filepath"`
	TotalLines    int               `json:"total_lines"`
	NonEmptyLines int               `json:"non_empty_lines"`
	Functions     []FunctionMetrics `json:"functions"`
	SQLStatistics SQLStatistics     `json:"sql_statistics"`
	ParseErrors   bool              `json:"parse_errors"`
	ErrorMessage  string            `json:"error_message,omitempty"`

	ModuleInfo     *comments.ModuleInfo `json:"module_info,omitempty"`
	Todos          []comments.TodoItem  `json:"todos,omitempty"`
	CursorAnalysis *cursors.Result      `json:"cursor_analysis,omitempty"`
	MemoryAnalysis *memsafe.Result      `json:"memory_analysis,omitempty"`
}

// FunctionCount returns the number of functions found.
func (m *FileMetrics) FunctionCount() int {
	return len(m.Functions)
}

// AvgCyclomatic returns the mean cyclomatic complexity, 0 with no functions.
func (m *FileMetrics) AvgCyclomatic() float64 {
	if len(m.Functions) == 0 {
		return 0
	}
	sum := 0
	for _, f := range m.Functions {
		sum += f.Cyclomatic
	}
	return float64(sum) / float64(len(m.Functions))
}

// AvgCognitive returns the mean cognitive complexity, 0 with no functions.
func (m *FileMetrics) AvgCognitive() float64 {
	if len(m.Functions) == 0 {
		return 0
	}
	sum := 0
	for _, f := range m.Functions {
		sum += f.Cognitive
	}
	return float64(sum) / float64(len(m.Functions))
}

// MaxCyclomatic returns the highest cyclomatic complexity in the file.
func (m *FileMetrics) MaxCyclomatic() int {
	max := 0
	for _, f := range m.Functions {
		if f.Cyclomatic > max {
			max = f.Cyclomatic
		}
	}
	return max
}

// MaxCognitive returns the highest cognitive complexity in the file.
func (m *FileMetrics) MaxCognitive() int {
	max := 0
	for _, f := range m.Functions {
		if f.Cognitive > max {
			max = f.Cognitive
		}
	}
	return max
}

// TodoCount returns the number of comment annotations found.
func (m *FileMetrics) TodoCount() int {
	return len(m.Todos)
}

// CursorIssueCount returns the number of cursor issues found.
func (m *FileMetrics) CursorIssueCount() int {
	if m.CursorAnalysis == nil {
		return 0
	}
	return len(m.CursorAnalysis.Issues)
}

// MemoryIssueCount returns the number of memory issues found.
func (m *FileMetrics) MemoryIssueCount() int {
	if m.MemoryAnalysis == nil {
		return 0
	}
	return len(m.MemoryAnalysis.Issues)
}

// AnalysisReport aggregates FileMetrics across an analysis run.
type AnalysisReport struct {
	Files           []FileMetrics       `json:"files"`
	ModuleInventory *comments.Inventory `json:"module_inventory,omitempty"`
}

// TotalFiles returns the number of analyzed files.
func (r *AnalysisReport) TotalFiles() int { return len(r.Files) }

// TotalFunctions returns the number of functions across all files.
func (r *AnalysisReport) TotalFunctions() int {
	n := 0
	for i := range r.Files {
		n += r.Files[i].FunctionCount()
	}
	return n
}

// TotalLines returns the line total across all files.
func (r *AnalysisReport) TotalLines() int {
	n := 0
	for i := range r.Files {
		n += r.Files[i].TotalLines
	}
	return n
}

// TotalSQLBlocks returns the embedded-SQL block total across all files.
func (r *AnalysisReport) TotalSQLBlocks() int {
	n := 0
	for i := range r.Files {
		n += r.Files[i].SQLStatistics.TotalBlocks
	}
	return n
}

// TotalTodos returns the annotation total across all files.
func (r *AnalysisReport) TotalTodos() int {
	n := 0
	for i := range r.Files {
		n += r.Files[i].TodoCount()
	}
	return n
}

// TotalCursorIssues returns the cursor issue total across all files.
func (r *AnalysisReport) TotalCursorIssues() int {
	n := 0
	for i := range r.Files {
		n += r.Files[i].CursorIssueCount()
	}
	return n
}

// TotalMemoryIssues returns the memory issue total across all files.
func (r *AnalysisReport) TotalMemoryIssues() int {
	n := 0
	for i := range r.Files {
		n += r.Files[i].MemoryIssueCount()
	}
	return n
}

// AvgCyclomatic returns the mean cyclomatic complexity over all functions.
func (r *AnalysisReport) AvgCyclomatic() float64 {
	sum, count := 0, 0
	for i := range r.Files {
		for _, f := range r.Files[i].Functions {
			sum += f.Cyclomatic
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return float64(sum) / float64(count)
}

// AvgCognitive returns the mean cognitive complexity over all functions.
func (r *AnalysisReport) AvgCognitive() float64 {
	sum, count := 0, 0
	for i := range r.Files {
		for _, f := range r.Files[i].Functions {
			sum += f.Cognitive
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return float64(sum) / float64(count)
}

// FlaggedFunction is a function exceeding a complexity threshold, paired
// with its file.
type FlaggedFunction struct {
	Filepath string
	Function FunctionMetrics
}

// HighComplexityFunctions returns every function exceeding either threshold.
func (r *AnalysisReport) HighComplexityFunctions(cyclo, cognitive int) []FlaggedFunction {
	var flagged []FlaggedFunction
	for i := range r.Files {
		for _, f := range r.Files[i].Functions {
			if f.Cyclomatic > cyclo || f.Cognitive > cognitive {
				flagged = append(flagged, FlaggedFunction{Filepath: r.Files[i].Filepath, Function: f})
			}
		}
	}
	return flagged
}

// Analyzer runs the analysis pipeline. It is not safe for concurrent use;
// create one per goroutine.
type Analyzer struct {
	opts      Options
	logger    *slog.Logger
	parser    *cparser.SyntaxTree
	inventory *comments.Inventory
}

// New creates an Analyzer with the given options.
func New(opts Options, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		opts:      opts,
		logger:    logger,
		parser:    cparser.New(),
		inventory: comments.NewInventory(),
	}
}

// Close releases the underlying parser resources.
func (a *Analyzer) Close() {
	a.parser.Close()
}

// AnalyzeSource analyzes Pro*C source text. The filepath is used only for
// reporting; pass "" for anonymous input.
func (a *Analyzer) AnalyzeSource(ctx context.Context, source, path string) FileMetrics {
	if path == "" {
		path = "<source>"
	}

	fm := FileMetrics{
		Filepath:      path,
		TotalLines:    strings.Count(source, "\n") + 1,
		NonEmptyLines: countNonEmpty(source),
	}

	neut := neutralizer.New()
	processed, sqlBlocks := neut.Neutralize(source)
	total, byKind := neut.Statistics()
	fm.SQLStatistics = SQLStatistics{TotalBlocks: total, ByKind: kindCounts(byKind)}

	if err := a.parser.Parse(ctx, processed); err != nil {
		fm.ParseErrors = true
		fm.ErrorMessage = fmt.Sprintf("parse: %v", err)
		return fm
	}
	fm.ParseErrors = a.parser.HasErrors()

	// Engines are bound to this parse; fresh instances per file keep the
	// name-keyed memo caches from leaking across files.
	cyclo := metrics.NewCyclomaticEngine(a.parser)
	cognitive := metrics.NewCognitiveEngine(a.parser)
	var halstead *metrics.HalsteadEngine
	if a.opts.Halstead {
		halstead = metrics.NewHalsteadEngine(a.parser)
	}

	for _, fn := range a.parser.Functions() {
		fm.Functions = append(fm.Functions, a.functionMetrics(fn, sqlBlocks, cyclo, cognitive, halstead))
	}

	a.analyzeSupplementary(source, path, &fm)

	a.logger.Debug("analyzed source",
		"path", path,
		"functions", fm.FunctionCount(),
		"sql_blocks", total,
		"parse_errors", fm.ParseErrors)

	return fm
}

func (a *Analyzer) functionMetrics(
	fn cparser.FunctionInfo,
	sqlBlocks []neutralizer.ExecSqlBlock,
	cyclo *metrics.CyclomaticEngine,
	cognitive *metrics.CognitiveEngine,
	halstead *metrics.HalsteadEngine,
) FunctionMetrics {
	inFunction := 0
	for _, b := range sqlBlocks {
		if fn.StartLine <= b.LineNumber && b.LineNumber <= fn.EndLine {
			inFunction++
		}
	}

	fmx := FunctionMetrics{
		Name:           fn.Name,
		StartLine:      fn.StartLine,
		EndLine:        fn.EndLine,
		LineCount:      fn.LineCount(),
		Cyclomatic:     cyclo.Calculate(fn),
		Cognitive:      cognitive.Calculate(fn),
		SQLBlockCount:  inFunction,
		ParameterCount: len(fn.Parameters),
		ReturnType:     fn.ReturnType,
	}

	if halstead != nil {
		report := halstead.Calculate(fn).Report()
		fmx.Halstead = &report
	}
	return fmx
}

// analyzeSupplementary runs the comment, cursor and memory analyses on the
// original (non-neutralized) source.
func (a *Analyzer) analyzeSupplementary(source, path string, fm *FileMetrics) {
	if a.opts.Todos {
		todos, info := comments.NewAnalyzer().Analyze(source, path)
		fm.Todos = todos
		fm.ModuleInfo = &info
		a.inventory.Add(info)
	}
	if a.opts.Cursors {
		fm.CursorAnalysis = cursors.NewAnalyzer().Analyze(source)
	}
	if a.opts.Memory {
		fm.MemoryAnalysis = memsafe.NewAnalyzer().Analyze(source)
	}
}

// AnalyzeFile reads and analyzes one file. Read failures are reported
// through FileMetrics rather than an error so batch runs keep going.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) FileMetrics {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileMetrics{
			Filepath:     path,
			ParseErrors:  true,
			ErrorMessage: fmt.Sprintf("read file: %v", err),
		}
	}
	return a.AnalyzeSource(ctx, string(data), path)
}

// AnalyzeDirectory analyzes every file under dir matching pattern. Pattern
// is a doublestar glob relative to dir; with recursive set, a plain pattern
// like "*.pc" is widened to "**/*.pc".
func (a *Analyzer) AnalyzeDirectory(
	ctx context.Context,
	dir, pattern string,
	recursive bool,
	progress ProgressFunc,
) (*AnalysisReport, error) {
	if pattern == "" {
		pattern = "*.pc"
	}
	if recursive && !strings.Contains(pattern, "**") {
		pattern = "**/" + pattern
	}

	fsys := os.DirFS(dir)
	matches, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q in %s: %w", pattern, dir, err)
	}

	var files []string
	for _, m := range matches {
		info, err := fs.Stat(fsys, m)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, filepath.Join(dir, m))
	}
	sort.Strings(files)

	return a.analyzeList(ctx, files, progress)
}

// AnalyzeFiles analyzes an explicit list of files.
func (a *Analyzer) AnalyzeFiles(ctx context.Context, paths []string, progress ProgressFunc) (*AnalysisReport, error) {
	return a.analyzeList(ctx, paths, progress)
}

func (a *Analyzer) analyzeList(ctx context.Context, paths []string, progress ProgressFunc) (*AnalysisReport, error) {
	// Each run gets a fresh inventory.
	a.inventory = comments.NewInventory()

	report := &AnalysisReport{}
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if progress != nil {
			progress(path, i+1, len(paths))
		}
		report.Files = append(report.Files, a.AnalyzeFile(ctx, path))
	}

	if a.opts.Todos {
		report.ModuleInventory = a.inventory
	}

	a.logger.Info("analysis complete",
		"files", report.TotalFiles(),
		"functions", report.TotalFunctions(),
		"sql_blocks", report.TotalSQLBlocks())

	return report, nil
}

func countNonEmpty(source string) int {
	count := 0
	for _, line := range strings.Split(source, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count
}

func kindCounts(byKind map[neutralizer.SQLKind]int) map[string]int {
	out := make(map[string]int, len(byKind))
	for k, v := range byKind {
		out[string(k)] = v
	}
	return out
}
