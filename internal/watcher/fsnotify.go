package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kensakudev/kensaku/internal/gitignore"
)

// FSWatcher is the fsnotify-backed Watcher. Every directory under the root
// is registered individually (fsnotify has no recursive mode), and new
// directories are added as they appear.
type FSWatcher struct {
	notifier  *fsnotify.Watcher
	debouncer *Debouncer
	ignore    *gitignore.Matcher
	events    chan []FileEvent
	errors    chan error
	stopCh    chan struct{}
	rootPath  string
	opts      Options
	mu        sync.RWMutex
	stopped   bool
	dropped   atomic.Uint64
}

var _ Watcher = (*FSWatcher)(nil)

// NewFSWatcher creates a watcher with the given options.
func NewFSWatcher(opts Options) (*FSWatcher, error) {
	opts = opts.WithDefaults()

	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	return &FSWatcher{
		notifier:  notifier,
		debouncer: NewDebouncer(opts.DebounceWindow),
		ignore:    gitignore.New(),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
		opts:      opts,
	}, nil
}

// Start watches path recursively until Stop or ctx cancellation.
func (w *FSWatcher) Start(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve watch root: %w", err)
	}
	w.rootPath = absPath

	w.reloadIgnoreRules()

	if err := w.addRecursive(absPath); err != nil {
		return fmt.Errorf("register directories: %w", err)
	}

	go w.forwardBatches(ctx)

	slog.Info("watcher started", slog.String("root", absPath))

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.notifier.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.notifier.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

// handleEvent filters and converts one raw fsnotify event.
func (w *FSWatcher) handleEvent(event fsnotify.Event) {
	relPath, err := filepath.Rel(w.rootPath, event.Name)
	if err != nil {
		relPath = event.Name
	}

	isDir := false
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
	}

	if w.shouldIgnore(relPath, isDir) {
		return
	}

	// A .gitignore edit changes which files are eligible, so the consumer
	// reconciles the whole root rather than one file.
	if filepath.Base(event.Name) == ".gitignore" {
		w.reloadIgnoreRules()
		w.debouncer.Add(FileEvent{
			Path:      relPath,
			Operation: OpGitignoreChange,
			Timestamp: time.Now(),
		})
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
		if isDir {
			// Register the new directory tree; files created inside it
			// before registration completes surface on the next write.
			if err := w.addRecursive(event.Name); err != nil {
				w.emitError(err)
			}
		}
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		// Chmod and unknown ops carry no content change.
		return
	}

	w.debouncer.Add(FileEvent{
		Path:      relPath,
		Operation: op,
		IsDir:     isDir,
		Timestamp: time.Now(),
	})
}

// forwardBatches moves debounced batches onto the public channel.
func (w *FSWatcher) forwardBatches(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			if len(batch) == 0 {
				continue
			}
			w.emitBatch(batch)
		}
	}
}

// addRecursive registers root and every non-ignored directory under it.
func (w *FSWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		relPath, _ := filepath.Rel(w.rootPath, path)
		if relPath == "." {
			return w.notifier.Add(path)
		}
		if w.shouldIgnore(relPath, true) {
			return filepath.SkipDir
		}
		return w.notifier.Add(path)
	})
}

// shouldIgnore reports whether a path is outside the watch scope.
func (w *FSWatcher) shouldIgnore(relPath string, isDir bool) bool {
	if relPath == "." || relPath == "" {
		return true
	}
	if relPath == ".git" || strings.HasPrefix(relPath, ".git"+string(filepath.Separator)) {
		return true
	}
	if relPath == ".kensaku" || strings.HasPrefix(relPath, ".kensaku"+string(filepath.Separator)) {
		return true
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.ignore.Match(filepath.ToSlash(relPath), isDir)
}

// reloadIgnoreRules rebuilds the matcher from the root's .gitignore files
// plus any configured extra patterns.
func (w *FSWatcher) reloadIgnoreRules() {
	matcher := gitignore.New()
	for _, pattern := range w.opts.IgnorePatterns {
		matcher.AddPattern(pattern)
	}

	rootIgnore := filepath.Join(w.rootPath, ".gitignore")
	if err := matcher.AddFromFile(rootIgnore, ""); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .gitignore",
			slog.String("path", rootIgnore),
			slog.String("error", err.Error()))
	}

	_ = filepath.WalkDir(w.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if d.Name() == ".gitignore" && path != rootIgnore {
			base, _ := filepath.Rel(w.rootPath, filepath.Dir(path))
			if err := matcher.AddFromFile(path, filepath.ToSlash(base)); err != nil {
				slog.Warn("failed to load nested .gitignore",
					slog.String("path", path),
					slog.String("error", err.Error()))
			}
		}
		return nil
	})

	w.mu.Lock()
	w.ignore = matcher
	w.mu.Unlock()
}

// emitBatch sends a batch without blocking the event loop.
func (w *FSWatcher) emitBatch(batch []FileEvent) {
	w.mu.RLock()
	stopped := w.stopped
	w.mu.RUnlock()
	if stopped {
		return
	}

	select {
	case w.events <- batch:
	default:
		count := w.dropped.Add(1)
		slog.Warn("watch event buffer full, dropping batch",
			slog.Int("batch_size", len(batch)),
			slog.Uint64("dropped_batches", count))
	}
}

func (w *FSWatcher) emitError(err error) {
	w.mu.RLock()
	stopped := w.stopped
	w.mu.RUnlock()
	if stopped {
		return
	}

	select {
	case w.errors <- err:
	default:
	}
}

// DroppedBatches returns how many batches were lost to a full buffer.
func (w *FSWatcher) DroppedBatches() uint64 {
	return w.dropped.Load()
}

// RootPath returns the watched root.
func (w *FSWatcher) RootPath() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.rootPath
}

// Stop stops the watcher and closes its channels.
func (w *FSWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)

	w.debouncer.Stop()
	_ = w.notifier.Close()

	close(w.events)
	close(w.errors)
	return nil
}

// Events returns the channel of debounced event batches.
func (w *FSWatcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns the channel of non-fatal errors.
func (w *FSWatcher) Errors() <-chan error {
	return w.errors
}
