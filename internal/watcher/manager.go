package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/kensakudev/kensaku/internal/indexer"
	"github.com/kensakudev/kensaku/internal/scanner"
)

// Manager runs background watch services, one per root. Watching a root
// that is already watched replaces the previous watch.
type Manager struct {
	indexer *indexer.Indexer
	scanner *scanner.Scanner
	opts    Options

	mu      sync.Mutex
	watches map[string]*watchHandle
}

type watchHandle struct {
	service *Service
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewManager creates a Manager sharing one indexer and scanner across roots.
func NewManager(ix *indexer.Indexer, sc *scanner.Scanner, opts Options) *Manager {
	return &Manager{
		indexer: ix,
		scanner: sc,
		opts:    opts.WithDefaults(),
		watches: make(map[string]*watchHandle),
	}
}

// Watch starts a background watch for root, replacing any existing watch
// for the same root. The watch runs until Stop, StopAll, or ctx is done.
func (m *Manager) Watch(ctx context.Context, root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}

	w, err := NewFSWatcher(m.opts)
	if err != nil {
		return err
	}

	svc, err := NewService(ServiceDeps{
		Indexer: m.indexer,
		Scanner: m.scanner,
		Watcher: w,
		Root:    absRoot,
	})
	if err != nil {
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	handle := &watchHandle{
		service: svc,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	m.mu.Lock()
	prev := m.watches[absRoot]
	m.watches[absRoot] = handle
	m.mu.Unlock()

	if prev != nil {
		prev.cancel()
		<-prev.done
		slog.Info("replaced existing watch", slog.String("root", absRoot))
	}

	go func() {
		defer close(handle.done)
		if err := svc.Run(watchCtx); err != nil && watchCtx.Err() == nil {
			slog.Error("watch terminated",
				slog.String("root", absRoot),
				slog.String("error", err.Error()))
		}
		m.mu.Lock()
		if m.watches[absRoot] == handle {
			delete(m.watches, absRoot)
		}
		m.mu.Unlock()
	}()

	return nil
}

// Stop cancels the watch for root, if any. Reports whether one existed.
func (m *Manager) Stop(root string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}

	m.mu.Lock()
	handle, ok := m.watches[absRoot]
	if ok {
		delete(m.watches, absRoot)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	handle.cancel()
	<-handle.done
	return true
}

// StopAll cancels every active watch and waits for them to finish.
func (m *Manager) StopAll() {
	m.mu.Lock()
	handles := make([]*watchHandle, 0, len(m.watches))
	for _, h := range m.watches {
		handles = append(handles, h)
	}
	m.watches = make(map[string]*watchHandle)
	m.mu.Unlock()

	for _, h := range handles {
		h.cancel()
		<-h.done
	}
}

// Active returns the sorted roots currently under watch.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	roots := make([]string, 0, len(m.watches))
	for root := range m.watches {
		roots = append(roots, root)
	}
	sort.Strings(roots)
	return roots
}
