package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	// Root is the directory to watch.
	Root string

	// Extensions are the file suffixes to analyze. Defaults to .pc and .pch.
	Extensions []string

	// DebounceDelay is how long to wait for more changes before processing.
	DebounceDelay time.Duration

	// Options select which analyses run on changed files.
	Options Options

	// Logger for watch events.
	Logger *slog.Logger
}

// WatchOperation indicates the type of file operation.
type WatchOperation string

const (
	OpCreate WatchOperation = "create"
	OpModify WatchOperation = "modify"
	OpDelete WatchOperation = "delete"
)

// WatchEvent carries one file change with its fresh analysis. Metrics is
// nil for delete operations.
type WatchEvent struct {
	Path      string
	Operation WatchOperation
	Metrics   *FileMetrics
}

// Watcher watches a directory tree and re-analyzes changed Pro*C files.
type Watcher struct {
	config   WatcherConfig
	analyzer *Analyzer
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	// Debouncing: collect changes before processing.
	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op

	// Content hashes suppress events for touch-only writes.
	hashMu sync.RWMutex
	hashes map[string]string

	events  chan WatchEvent
	started bool
	// done is closed when the event loop exits; events is only closed
	// after that, so a flush in progress can never send on a closed channel.
	done chan struct{}
}

// NewWatcher creates a Watcher.
func NewWatcher(config WatcherConfig) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.DebounceDelay == 0 {
		config.DebounceDelay = 200 * time.Millisecond
	}
	if len(config.Extensions) == 0 {
		config.Extensions = []string{".pc", ".pch"}
	}

	return &Watcher{
		config:   config,
		analyzer: New(config.Options, logger),
		watcher:  fsw,
		logger:   logger,
		pending:  make(map[string]fsnotify.Op),
		hashes:   make(map[string]string),
		events:   make(chan WatchEvent, 100),
		done:     make(chan struct{}),
	}, nil
}

// Events returns the channel of watch events.
func (w *Watcher) Events() <-chan WatchEvent {
	return w.events
}

// Start begins watching. It returns after the watches are registered; the
// event loop runs until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addWatchesRecursive(w.config.Root); err != nil {
		return err
	}

	w.started = true
	go func() {
		defer close(w.done)
		w.processEvents(ctx)
	}()

	w.logger.Info("watcher started",
		"root", w.config.Root,
		"debounce", w.config.DebounceDelay)
	return nil
}

// Stop stops the watcher, waits for the event loop to exit and then closes
// the event channel.
func (w *Watcher) Stop() error {
	err := w.watcher.Close()
	if w.started {
		<-w.done
	}
	close(w.events)
	w.analyzer.Close()
	return err
}

func (w *Watcher) addWatchesRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if strings.HasPrefix(filepath.Base(path), ".") && path != root {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	ticker := time.NewTicker(w.config.DebounceDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	path := event.Name

	if !w.watched(path) {
		// New directories need their own watch.
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				if err := w.watcher.Add(path); err != nil {
					w.logger.Warn("failed to watch new directory", "path", path, "error", err)
				}
			}
		}
		return
	}

	w.pendingMu.Lock()
	w.pending[path] = event.Op
	w.pendingMu.Unlock()

	w.logger.Debug("file change detected", "path", path, "op", event.Op.String())
}

func (w *Watcher) watched(path string) bool {
	for _, ext := range w.config.Extensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func (w *Watcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	toProcess := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	for path, op := range toProcess {
		select {
		case <-ctx.Done():
			return
		default:
		}

		relPath, err := filepath.Rel(w.config.Root, path)
		if err != nil {
			relPath = path
		}

		if op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
			w.dropHash(relPath)
			w.sendEvent(WatchEvent{Path: relPath, Operation: OpDelete})
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				w.dropHash(relPath)
				w.sendEvent(WatchEvent{Path: relPath, Operation: OpDelete})
			} else {
				w.logger.Warn("failed to read changed file", "path", path, "error", err)
			}
			continue
		}

		sum := sha256.Sum256(data)
		hash := hex.EncodeToString(sum[:])

		w.hashMu.RLock()
		oldHash, hadHash := w.hashes[relPath]
		w.hashMu.RUnlock()
		if hadHash && oldHash == hash {
			continue
		}

		w.hashMu.Lock()
		w.hashes[relPath] = hash
		w.hashMu.Unlock()

		metrics := w.analyzer.AnalyzeSource(ctx, string(data), path)

		operation := OpModify
		if op.Has(fsnotify.Create) || !hadHash {
			operation = OpCreate
		}
		w.sendEvent(WatchEvent{Path: relPath, Operation: operation, Metrics: &metrics})
	}
}

func (w *Watcher) dropHash(relPath string) {
	w.hashMu.Lock()
	delete(w.hashes, relPath)
	w.hashMu.Unlock()
}

func (w *Watcher) sendEvent(event WatchEvent) {
	select {
	case w.events <- event:
		w.logger.Debug("sent watch event", "path", event.Path, "op", event.Operation)
	default:
		w.logger.Warn("event channel full, dropping event", "path", event.Path)
	}
}

// IndexDirectory analyzes all matching files once and primes the hash cache
// so the first watch cycle only reports real changes.
func (w *Watcher) IndexDirectory(ctx context.Context) (*AnalysisReport, error) {
	report, err := w.analyzer.AnalyzeDirectory(ctx, w.config.Root, "*.pc", true, nil)
	if err != nil {
		return nil, err
	}

	for i := range report.Files {
		path := report.Files[i].Filepath
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		relPath, err := filepath.Rel(w.config.Root, path)
		if err != nil {
			relPath = path
		}
		sum := sha256.Sum256(data)
		w.hashMu.Lock()
		w.hashes[relPath] = hex.EncodeToString(sum[:])
		w.hashMu.Unlock()
	}

	return report, nil
}
