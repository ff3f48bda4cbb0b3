package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	kerrors "github.com/kensakudev/kensaku/internal/errors"
	"github.com/kensakudev/kensaku/internal/indexer"
	"github.com/kensakudev/kensaku/internal/scanner"
)

// Service consumes debounced event batches for one root and keeps the index
// current: creates and modifications retokenize single files, deletions
// remove entries, and .gitignore changes reindex the whole root.
type Service struct {
	indexer *indexer.Indexer
	scanner *scanner.Scanner
	watcher Watcher
	root    string

	mu    sync.Mutex
	stats ServiceStats
}

// ServiceStats counts what the service has applied so far.
type ServiceStats struct {
	Updated   int
	Deleted   int
	Skipped   int
	Failed    int
	Reindexes int
}

// ServiceDeps are the collaborators a Service needs.
type ServiceDeps struct {
	Indexer *indexer.Indexer
	Scanner *scanner.Scanner
	Watcher Watcher
	Root    string
}

// NewService creates a Service for the given root.
func NewService(deps ServiceDeps) (*Service, error) {
	if deps.Indexer == nil {
		return nil, fmt.Errorf("indexer is required")
	}
	if deps.Scanner == nil {
		return nil, fmt.Errorf("scanner is required")
	}
	if deps.Watcher == nil {
		return nil, fmt.Errorf("watcher is required")
	}
	if deps.Root == "" {
		return nil, fmt.Errorf("root is required")
	}

	root, err := filepath.Abs(deps.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	return &Service{
		indexer: deps.Indexer,
		scanner: deps.Scanner,
		watcher: deps.Watcher,
		root:    root,
	}, nil
}

// Root returns the absolute root this service maintains.
func (s *Service) Root() string {
	return s.root
}

// Run starts the watcher and applies event batches until ctx is cancelled
// or the watcher stops. The initial full index of the root is the caller's
// job; Run only keeps an existing index current.
func (s *Service) Run(ctx context.Context) error {
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- s.watcher.Start(ctx, s.root)
	}()

	events := s.watcher.Events()
	errs := s.watcher.Errors()

	for {
		select {
		case <-ctx.Done():
			_ = s.watcher.Stop()
			<-watchErr
			return ctx.Err()
		case err := <-watchErr:
			if err != nil && ctx.Err() == nil {
				return fmt.Errorf("watcher stopped: %w", err)
			}
			return err
		case batch, ok := <-events:
			if !ok {
				err := <-watchErr
				if err == nil {
					err = ctx.Err()
				}
				return err
			}
			s.applyBatch(ctx, batch)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

// applyBatch translates one debounced batch into index operations. A
// gitignore change anywhere in the batch supersedes the per-file work: the
// full reindex already reconciles every path under the root.
func (s *Service) applyBatch(ctx context.Context, batch []FileEvent) {
	for _, ev := range batch {
		if ev.Operation == OpGitignoreChange {
			s.reindexRoot(ctx)
			return
		}
	}

	for _, ev := range batch {
		if ctx.Err() != nil {
			return
		}
		s.applyEvent(ctx, ev)
	}
}

func (s *Service) applyEvent(ctx context.Context, ev FileEvent) {
	absPath := filepath.Join(s.root, ev.Path)

	switch ev.Operation {
	case OpCreate, OpModify:
		if ev.IsDir {
			// New directories surface through their files.
			return
		}
		action, err := s.indexer.UpdateFile(ctx, absPath, s.root)
		s.recordUpdate(absPath, action, err)

	case OpDelete, OpRename:
		// The file is gone either way; UpdateFile removes its entry.
		action, err := s.indexer.UpdateFile(ctx, absPath, "")
		if kerrors.GetCode(err) == kerrors.ErrCodeFileNotIndexed {
			// Deleting something that was never indexed is a no-op.
			s.bump(func(st *ServiceStats) { st.Skipped++ })
			return
		}
		s.recordUpdate(absPath, action, err)
	}
}

func (s *Service) recordUpdate(path string, action indexer.UpdateAction, err error) {
	if err != nil {
		s.bump(func(st *ServiceStats) { st.Failed++ })
		slog.Warn("file update failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return
	}

	switch action {
	case indexer.ActionUpdated:
		s.bump(func(st *ServiceStats) { st.Updated++ })
	case indexer.ActionDeleted:
		s.bump(func(st *ServiceStats) { st.Deleted++ })
	default:
		s.bump(func(st *ServiceStats) { st.Skipped++ })
	}
	slog.Debug("watch update applied",
		slog.String("path", path),
		slog.String("action", action.String()))
}

// reindexRoot rebuilds the whole root after ignore rules changed.
func (s *Service) reindexRoot(ctx context.Context) {
	s.scanner.InvalidateGitignoreCache()

	report, err := s.indexer.IndexDirectory(ctx, s.root)
	if err != nil {
		s.bump(func(st *ServiceStats) { st.Failed++ })
		slog.Warn("gitignore reconcile failed",
			slog.String("root", s.root),
			slog.String("error", err.Error()))
		return
	}

	s.bump(func(st *ServiceStats) { st.Reindexes++ })
	slog.Info("root reindexed after gitignore change",
		slog.String("root", s.root),
		slog.Int("files", report.Indexed))
}

func (s *Service) bump(fn func(*ServiceStats)) {
	s.mu.Lock()
	fn(&s.stats)
	s.mu.Unlock()
}

// Stats returns a copy of the counters.
func (s *Service) Stats() ServiceStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
