// Package main provides the procsight binary entry point.
// Procsight is a static analyzer for Pro*C (embedded SQL in C) source that
// computes per-function complexity metrics and code-quality findings.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/procsight/procsight/analyzer"
	"github.com/procsight/procsight/config"
	"github.com/procsight/procsight/neutralizer"
	"github.com/procsight/procsight/report"
)

const (
	Version = "0.1.0"
	appName = "procsight"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type cliOptions struct {
	configPath string
	logLevel   string

	format     string
	outputPath string
	pattern    string
	recursive  bool

	noHalstead bool
	noTodos    bool
	noCursors  bool
	noMemory   bool
}

func rootCmd() *cobra.Command {
	opts := &cliOptions{}

	cmd := &cobra.Command{
		Use:   appName + " [path]",
		Short: "Static analyzer for Pro*C source",
		Long: `Procsight analyzes Pro*C (embedded SQL in C) source files and computes
per-function complexity metrics: cyclomatic, cognitive and Halstead.

It also reports TODO/FIXME annotations, SQL cursor lifecycle problems,
memory-safety findings and a per-directory module inventory. Reports render
as JSON, Markdown, HTML or CSV.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), opts, argOrDot(args))
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	pf.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&opts.pattern, "pattern", "", "File glob pattern (default *.pc)")
	pf.BoolVar(&opts.recursive, "recursive", true, "Search subdirectories")
	pf.BoolVar(&opts.noHalstead, "no-halstead", false, "Disable Halstead metrics")
	pf.BoolVar(&opts.noTodos, "no-todos", false, "Disable comment annotation extraction")
	pf.BoolVar(&opts.noCursors, "no-cursors", false, "Disable cursor lifecycle analysis")
	pf.BoolVar(&opts.noMemory, "no-memory", false, "Disable memory-safety analysis")

	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "Report format (json, markdown, html, csv)")
	cmd.Flags().StringVarP(&opts.outputPath, "output", "o", "", "Write the report to a file instead of stdout")

	cmd.AddCommand(
		analyzeCmd(opts),
		todosCmd(opts),
		securityCmd(opts),
		inventoryCmd(opts),
		preprocessCmd(opts),
		watchCmd(opts),
		versionCmd(),
	)

	return cmd
}

func analyzeCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [path]",
		Short: "Analyze a file or directory and render a report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), opts, argOrDot(args))
		},
	}
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "Report format (json, markdown, html, csv)")
	cmd.Flags().StringVarP(&opts.outputPath, "output", "o", "", "Write the report to a file instead of stdout")
	return cmd
}

func todosCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "todos [path]",
		Short: "List TODO/FIXME annotations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, _, err := analyze(cmd.Context(), opts, argOrDot(args))
			if err != nil {
				return err
			}
			for i := range rep.Files {
				for _, t := range rep.Files[i].Todos {
					fmt.Printf("%s:%d [%s/%s] %s\n",
						rep.Files[i].Filepath, t.LineNumber, t.Tag, t.Priority, t.Message)
				}
			}
			fmt.Printf("\n%d annotations in %d files\n", rep.TotalTodos(), rep.TotalFiles())
			return nil
		},
	}
}

func securityCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "security [path]",
		Short: "List cursor and memory-safety findings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, _, err := analyze(cmd.Context(), opts, argOrDot(args))
			if err != nil {
				return err
			}
			for i := range rep.Files {
				fm := &rep.Files[i]
				if fm.CursorAnalysis != nil {
					for _, issue := range fm.CursorAnalysis.Issues {
						fmt.Printf("%s:%d [%s] cursor %s: %s\n",
							fm.Filepath, issue.LineNumber, issue.Severity, issue.CursorName, issue.Message)
					}
				}
				if fm.MemoryAnalysis != nil {
					for _, issue := range fm.MemoryAnalysis.Issues {
						fmt.Printf("%s:%d [%s] %s (%s)\n",
							fm.Filepath, issue.LineNumber, issue.Severity, issue.Message, issue.Recommendation)
					}
				}
			}
			fmt.Printf("\n%d cursor issues, %d memory issues in %d files\n",
				rep.TotalCursorIssues(), rep.TotalMemoryIssues(), rep.TotalFiles())
			return nil
		},
	}
}

func inventoryCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inventory [path]",
		Short: "Summarize module headers by directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, _, err := analyze(cmd.Context(), opts, argOrDot(args))
			if err != nil {
				return err
			}
			if rep.ModuleInventory == nil {
				fmt.Println("No module inventory (annotation extraction disabled)")
				return nil
			}
			summary := rep.ModuleInventory.Summarize()
			fmt.Printf("%d modules\n\n", summary.TotalModules)
			for dir, mods := range rep.ModuleInventory.ByDirectory {
				fmt.Printf("%s/ (%d)\n", dir, len(mods))
				for _, m := range mods {
					title := m.Title
					if title == "" {
						title = "(no header)"
					}
					fmt.Printf("  %-30s %s\n", m.Filename, title)
				}
			}
			return nil
		},
	}
}

func preprocessCmd(opts *cliOptions) *cobra.Command {
	var showBlocks bool
	cmd := &cobra.Command{
		Use:   "preprocess <file>",
		Short: "Print the SQL-neutralized source of one file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read file: %w", err)
			}

			neut := neutralizer.New()
			processed, blocks := neut.Neutralize(string(data))

			if showBlocks {
				total, byKind := neut.Statistics()
				fmt.Fprintf(os.Stderr, "%d SQL blocks\n", total)
				for kind, count := range byKind {
					fmt.Fprintf(os.Stderr, "  %-16s %d\n", kind, count)
				}
				for _, b := range blocks {
					fmt.Fprintf(os.Stderr, "  line %d: %s\n", b.LineNumber, firstLine(b.Content))
				}
			}

			fmt.Print(processed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&showBlocks, "blocks", false, "Print block statistics to stderr")
	return cmd
}

func watchCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [path]",
		Short: "Watch a directory and re-analyze changed files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, _, err := setup(opts)
			if err != nil {
				return err
			}

			root, err := filepath.Abs(argOrDot(args))
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}

			watcher, err := analyzer.NewWatcher(analyzer.WatcherConfig{
				Root:    root,
				Options: analysisOptions(opts),
				Logger:  logger,
			})
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			initial, err := watcher.IndexDirectory(ctx)
			if err != nil {
				return fmt.Errorf("initial index: %w", err)
			}
			logger.Info("initial index complete",
				"files", initial.TotalFiles(),
				"functions", initial.TotalFunctions())

			if err := watcher.Start(ctx); err != nil {
				return fmt.Errorf("start watcher: %w", err)
			}

			for {
				select {
				case <-ctx.Done():
					return watcher.Stop()
				case event := <-watcher.Events():
					if event.Metrics == nil {
						logger.Info("file removed", "path", event.Path)
						continue
					}
					logger.Info("file analyzed",
						"path", event.Path,
						"op", event.Operation,
						"functions", event.Metrics.FunctionCount(),
						"max_cyclomatic", event.Metrics.MaxCyclomatic(),
						"sql_blocks", event.Metrics.SQLStatistics.TotalBlocks)
				}
			}
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", appName, Version)
		},
	}
}

// setup configures logging and loads the layered configuration.
func setup(opts *cliOptions) (*slog.Logger, *config.Config, error) {
	level := slog.LevelInfo
	switch strings.ToLower(opts.logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	var cfg *config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.LoadFromFile(opts.configPath)
		if err == nil {
			err = cfg.Validate()
		}
	} else {
		cfg, err = config.NewLoader(logger).Load()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	// Flags override config.
	if opts.pattern == "" {
		opts.pattern = cfg.Files.Pattern
	}
	if opts.format == "" {
		opts.format = cfg.Output.Format
	}
	if opts.outputPath == "" {
		opts.outputPath = cfg.Output.Path
	}
	if !cfg.Analysis.Halstead {
		opts.noHalstead = true
	}
	if !cfg.Analysis.Todos {
		opts.noTodos = true
	}
	if !cfg.Analysis.Cursors {
		opts.noCursors = true
	}
	if !cfg.Analysis.Memory {
		opts.noMemory = true
	}

	return logger, cfg, nil
}

func analysisOptions(opts *cliOptions) analyzer.Options {
	return analyzer.Options{
		Halstead: !opts.noHalstead,
		Todos:    !opts.noTodos,
		Cursors:  !opts.noCursors,
		Memory:   !opts.noMemory,
	}
}

// analyze runs the pipeline on a file or directory path.
func analyze(ctx context.Context, opts *cliOptions, path string) (*analyzer.AnalysisReport, *config.Config, error) {
	logger, cfg, err := setup(opts)
	if err != nil {
		return nil, nil, err
	}

	a := analyzer.New(analysisOptions(opts), logger)
	defer a.Close()

	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("stat path: %w", err)
	}

	progress := func(p string, current, total int) {
		logger.Debug("analyzing", "path", p, "current", current, "total", total)
	}

	var rep *analyzer.AnalysisReport
	if info.IsDir() {
		rep, err = a.AnalyzeDirectory(ctx, path, opts.pattern, opts.recursive, progress)
	} else {
		rep, err = a.AnalyzeFiles(ctx, []string{path}, progress)
	}
	if err != nil {
		return nil, nil, err
	}
	return rep, cfg, nil
}

func runAnalyze(ctx context.Context, opts *cliOptions, path string) error {
	rep, _, err := analyze(ctx, opts, path)
	if err != nil {
		return err
	}

	formatter, err := report.New(opts.format, Version)
	if err != nil {
		return err
	}

	if opts.outputPath != "" {
		if err := report.Save(formatter, rep, opts.outputPath); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Report written to %s\n", opts.outputPath)
		return nil
	}

	text, err := formatter.Format(rep)
	if err != nil {
		return err
	}
	fmt.Println(text)
	return nil
}

func argOrDot(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i]) + " ..."
	}
	return strings.TrimSpace(s)
}
