// Package indexer runs the scan-tokenize-replace pipeline that builds the
// full-text index for a directory root.
package indexer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kensakudev/kensaku/internal/config"
	kerrors "github.com/kensakudev/kensaku/internal/errors"
	"github.com/kensakudev/kensaku/internal/scanner"
	"github.com/kensakudev/kensaku/internal/store"
	"github.com/kensakudev/kensaku/internal/tokenizer"
	"github.com/kensakudev/kensaku/internal/ui"
)

// Dependencies contains the injected collaborators for an Indexer.
type Dependencies struct {
	// Config is the loaded configuration (required).
	Config *config.Config

	// Tokenizer is the shared morphological analyzer (required).
	// The same instance must serve indexing and queries.
	Tokenizer *tokenizer.Tokenizer

	// Store is the index backend (required).
	Store store.Store

	// Scanner discovers eligible files (required).
	Scanner *scanner.Scanner

	// Renderer for progress display (optional, defaults to silent).
	Renderer ui.Renderer
}

// Indexer builds and maintains the document index.
type Indexer struct {
	cfg       *config.Config
	tokenizer *tokenizer.Tokenizer
	store     store.Store
	scanner   *scanner.Scanner
	renderer  ui.Renderer
}

// New creates an Indexer with injected dependencies.
func New(deps Dependencies) (*Indexer, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Tokenizer == nil {
		return nil, fmt.Errorf("tokenizer is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Scanner == nil {
		return nil, fmt.Errorf("scanner is required")
	}

	renderer := deps.Renderer
	if renderer == nil {
		renderer = ui.NewPlainRenderer(ui.NewConfig(io.Discard))
	}

	return &Indexer{
		cfg:       deps.Config,
		tokenizer: deps.Tokenizer,
		store:     deps.Store,
		scanner:   deps.Scanner,
		renderer:  renderer,
	}, nil
}

// FileFailure records a file that could not be indexed.
type FileFailure struct {
	Path   string
	Reason string
}

// Report contains the outcome of an indexing run.
type Report struct {
	// Root is the absolute root path that was indexed.
	Root string

	// Indexed is the number of documents written.
	Indexed int

	// Skipped counts files dropped by read or tokenization failures.
	Skipped int

	// TotalTokens is the sum of token counts across indexed documents.
	TotalTokens int64

	// Failures lists per-file skip reasons.
	Failures []FileFailure

	// Duration is the total run time.
	Duration time.Duration
}

// stageTiming tracks duration for each stage of a run.
type stageTiming struct {
	scan     time.Duration
	tokenize time.Duration
	index    time.Duration
}

// IndexDirectory scans rootPath and atomically replaces every previously
// indexed entry under it with the freshly tokenized set. Prior entries for
// the root are cleared even when the directory is now empty.
func (ix *Indexer) IndexDirectory(ctx context.Context, rootPath string) (*Report, error) {
	startTime := time.Now()
	var timing stageTiming

	root, err := ix.validateRoot(rootPath)
	if err != nil {
		return nil, err
	}

	// Stage 1: discover files.
	scanStart := time.Now()
	files, err := ix.scanFiles(ctx, root)
	if err != nil {
		return nil, err
	}
	timing.scan = time.Since(scanStart)

	// Stage 2: read and tokenize with a bounded worker pool.
	tokStart := time.Now()
	docs, failures, err := ix.tokenizeFiles(ctx, root, files)
	if err != nil {
		return nil, err
	}
	timing.tokenize = time.Since(tokStart)

	// Stage 3: atomic replace under the cross-process lock.
	indexStart := time.Now()
	ix.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageIndexing,
		Message: "Writing index...",
	})

	lock := newIndexLock(ix.cfg.Index.DataDir)
	if err := lock.Acquire(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = lock.Release() }()

	if err := ix.store.ReplaceRoot(ctx, root, docs); err != nil {
		return nil, err
	}
	if err := ix.store.Save(); err != nil {
		return nil, err
	}
	timing.index = time.Since(indexStart)

	var totalTokens int64
	for _, d := range docs {
		totalTokens += int64(d.TokenCount)
	}

	duration := time.Since(startTime)
	ix.renderer.Complete(ui.CompletionStats{
		Files:    len(docs),
		Tokens:   totalTokens,
		Skipped:  len(failures),
		Duration: duration,
		Warnings: len(failures),
		Backend:  ix.cfg.Search.Backend,
		Stages: ui.StageTimings{
			Scan:     timing.scan,
			Tokenize: timing.tokenize,
			Index:    timing.index,
		},
	})

	slog.Info("index_complete",
		slog.String("root", root),
		slog.Int("files", len(docs)),
		slog.Int("skipped", len(failures)),
		slog.Int64("tokens", totalTokens),
		slog.Int64("duration_ms", duration.Milliseconds()),
		slog.Int64("duration_scan_ms", timing.scan.Milliseconds()),
		slog.Int64("duration_tokenize_ms", timing.tokenize.Milliseconds()),
		slog.Int64("duration_index_ms", timing.index.Milliseconds()),
		slog.String("backend", ix.cfg.Search.Backend))

	return &Report{
		Root:        root,
		Indexed:     len(docs),
		Skipped:     len(failures),
		TotalTokens: totalTokens,
		Failures:    failures,
		Duration:    duration,
	}, nil
}

// validateRoot absolutizes and checks the target directory.
func (ix *Indexer) validateRoot(rootPath string) (string, error) {
	root, err := filepath.Abs(rootPath)
	if err != nil {
		return "", kerrors.ValidationError(fmt.Sprintf("invalid path: %s", rootPath))
	}

	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return "", kerrors.NotFound(root, err)
		}
		if os.IsPermission(err) {
			return "", kerrors.PermissionDenied(root, err)
		}
		return "", kerrors.New(kerrors.ErrCodeFileRead, fmt.Sprintf("cannot stat %s", root), err)
	}
	if !info.IsDir() {
		return "", kerrors.NotADirectory(root)
	}

	// Readability check up front so the failure is a clean error instead
	// of an empty index.
	f, err := os.Open(root)
	if err != nil {
		if os.IsPermission(err) {
			return "", kerrors.PermissionDenied(root, err)
		}
		return "", kerrors.New(kerrors.ErrCodeFileRead, fmt.Sprintf("cannot open %s", root), err)
	}
	_ = f.Close()

	return root, nil
}

// scanFiles enumerates eligible files under root.
func (ix *Indexer) scanFiles(ctx context.Context, root string) ([]*scanner.FileInfo, error) {
	ix.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageScanning,
		Message: fmt.Sprintf("Scanning %s...", root),
	})
	slog.Info("index_scan_started", slog.String("root", root))

	results, err := ix.scanner.Scan(ctx, &scanner.ScanOptions{
		RootDir:           root,
		IncludeExtensions: ix.cfg.Index.IncludeExtensions,
		ExcludePatterns:   ix.cfg.Index.Exclude,
		RespectGitignore:  ix.cfg.Index.RespectGitignore,
		IncludeHidden:     ix.cfg.Index.IncludeHidden,
		FollowSymlinks:    ix.cfg.Index.FollowSymlinks,
		MaxFileSize:       int64(ix.cfg.Index.MaxFileSizeMB) * 1024 * 1024,
		Workers:           ix.cfg.EffectiveWorkers(),
	})
	if err != nil {
		return nil, err
	}

	var files []*scanner.FileInfo
	for result := range results {
		if result.Error != nil {
			ix.renderer.AddError(ui.ErrorEvent{Err: result.Error, IsWarn: true})
			continue
		}
		files = append(files, result.File)
	}

	slog.Info("index_scan_complete", slog.Int("files", len(files)))
	return files, nil
}

// tokenizeFiles reads and tokenizes files on a bounded pool, returning the
// document set sorted by path plus per-file failures.
func (ix *Indexer) tokenizeFiles(ctx context.Context, root string, files []*scanner.FileInfo) ([]*store.Document, []FileFailure, error) {
	total := len(files)
	ix.renderer.UpdateProgress(ui.ProgressEvent{
		Stage: ui.StageTokenizing,
		Total: total,
	})

	var (
		mu       sync.Mutex
		docs     []*store.Document
		failures []FileFailure
		done     int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.cfg.EffectiveWorkers())

	for _, file := range files {
		file := file
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			doc, err := ix.buildDocument(file.AbsPath, root, file.Size, file.ModTime)

			mu.Lock()
			defer mu.Unlock()
			done++
			ix.renderer.UpdateProgress(ui.ProgressEvent{
				Stage:       ui.StageTokenizing,
				Current:     done,
				Total:       total,
				CurrentFile: file.Path,
			})

			if err != nil {
				failures = append(failures, FileFailure{Path: file.AbsPath, Reason: err.Error()})
				ix.renderer.AddError(ui.ErrorEvent{File: file.Path, Err: err, IsWarn: true})
				slog.Warn("file skipped",
					slog.String("path", file.AbsPath),
					slog.String("error", err.Error()))
				return nil
			}

			docs = append(docs, doc)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	sort.Slice(failures, func(i, j int) bool { return failures[i].Path < failures[j].Path })

	return docs, failures, nil
}

// buildDocument reads and tokenizes one file into a store document.
func (ix *Indexer) buildDocument(absPath, root string, size int64, modTime time.Time) (*store.Document, error) {
	content, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsPermission(err) {
			return nil, kerrors.PermissionDenied(absPath, err)
		}
		return nil, kerrors.New(kerrors.ErrCodeFileRead, "failed to read file", err)
	}

	tokens, err := ix.tokenizer.Tokenize(string(content))
	if err != nil {
		return nil, err
	}

	return &store.Document{
		Path:         absPath,
		RootPath:     root,
		Content:      tokenizer.JoinSurfaces(tokens),
		Terms:        tokenizer.JoinTerms(tokens),
		TokenOffsets: tokenizer.PackOffsets(tokens),
		SizeBytes:    size,
		ModTime:      modTime,
		TokenCount:   len(tokens),
	}, nil
}

// UpdateAction describes what UpdateFile did.
type UpdateAction int

const (
	// ActionUpdated means the document was tokenized and upserted.
	ActionUpdated UpdateAction = iota
	// ActionDeleted means the document entry was removed.
	ActionDeleted
	// ActionSkipped means the file is not eligible for indexing.
	ActionSkipped
)

// String returns the action name.
func (a UpdateAction) String() string {
	switch a {
	case ActionUpdated:
		return "updated"
	case ActionDeleted:
		return "deleted"
	case ActionSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// UpdateFile refreshes a single file's index entry. A missing file removes
// its entry; an existing eligible file is retokenized and upserted under its
// recorded root. rootHint supplies the root for files not yet indexed (the
// watcher passes it for newly created files); without a hint, a never-indexed
// path is a NotFound error.
func (ix *Indexer) UpdateFile(ctx context.Context, path, rootHint string) (UpdateAction, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return ActionSkipped, kerrors.ValidationError(fmt.Sprintf("invalid path: %s", path))
	}

	info, err := os.Lstat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			existed, derr := ix.store.DeleteDocument(ctx, absPath)
			if derr != nil {
				return ActionSkipped, derr
			}
			if !existed {
				return ActionSkipped, kerrors.FileNotIndexed(absPath)
			}
			slog.Info("file removed from index", slog.String("path", absPath))
			return ActionDeleted, nil
		}
		if os.IsPermission(err) {
			return ActionSkipped, kerrors.PermissionDenied(absPath, err)
		}
		return ActionSkipped, kerrors.New(kerrors.ErrCodeFileRead, "failed to stat file", err)
	}

	// Symlinks are never indexed.
	if info.Mode()&os.ModeSymlink != 0 && !ix.cfg.Index.FollowSymlinks {
		return ActionSkipped, nil
	}
	if info.IsDir() {
		return ActionSkipped, nil
	}

	root, found, err := ix.store.RootForPath(ctx, absPath)
	if err != nil {
		return ActionSkipped, err
	}
	if !found {
		if rootHint == "" {
			return ActionSkipped, kerrors.FileNotIndexed(absPath)
		}
		root, err = filepath.Abs(rootHint)
		if err != nil {
			return ActionSkipped, kerrors.ValidationError(fmt.Sprintf("invalid root: %s", rootHint))
		}
	}

	if !ix.eligible(absPath, info.Size()) {
		return ActionSkipped, nil
	}

	doc, err := ix.buildDocument(absPath, root, info.Size(), info.ModTime())
	if err != nil {
		return ActionSkipped, err
	}

	if err := ix.store.UpsertDocument(ctx, doc); err != nil {
		return ActionSkipped, err
	}

	slog.Debug("file reindexed",
		slog.String("path", absPath),
		slog.Int("tokens", doc.TokenCount))
	return ActionUpdated, nil
}

// DeleteRoot removes every entry indexed under rootPath, returning the
// number of documents removed.
func (ix *Indexer) DeleteRoot(ctx context.Context, rootPath string) (int, error) {
	root, err := filepath.Abs(rootPath)
	if err != nil {
		return 0, kerrors.ValidationError(fmt.Sprintf("invalid path: %s", rootPath))
	}

	lock := newIndexLock(ix.cfg.Index.DataDir)
	if err := lock.Acquire(ctx); err != nil {
		return 0, err
	}
	defer func() { _ = lock.Release() }()

	n, err := ix.store.DeleteRoot(ctx, root)
	if err != nil {
		return 0, err
	}
	if err := ix.store.Save(); err != nil {
		return n, err
	}

	slog.Info("root deleted", slog.String("root", root), slog.Int("documents", n))
	return n, nil
}

// eligible applies the single-file version of the scanner's rules: extension
// allow-list, size cap, and binary sniff.
func (ix *Indexer) eligible(absPath string, size int64) bool {
	ext := strings.ToLower(filepath.Ext(absPath))
	if len(ix.cfg.Index.IncludeExtensions) > 0 {
		match := false
		for _, allowed := range ix.cfg.Index.IncludeExtensions {
			if strings.EqualFold(allowed, ext) {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}

	maxSize := int64(ix.cfg.Index.MaxFileSizeMB) * 1024 * 1024
	if maxSize <= 0 {
		maxSize = scanner.DefaultMaxFileSize
	}
	if size > maxSize {
		return false
	}

	return !isBinaryFile(absPath)
}

// isBinaryFile sniffs the first 512 bytes for a NUL byte.
func isBinaryFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return false
	}

	return bytes.IndexByte(buf[:n], 0) >= 0
}
