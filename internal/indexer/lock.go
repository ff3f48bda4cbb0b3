package indexer

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	kerrors "github.com/kensakudev/kensaku/internal/errors"
)

// lockRetryDelay is the poll interval while waiting for the replace lock.
const lockRetryDelay = 100 * time.Millisecond

// indexLock serializes whole-root index rebuilds across processes.
// The lock file lives next to the index artifacts in the data directory.
type indexLock struct {
	flock  *flock.Flock
	locked bool
}

func newIndexLock(dataDir string) *indexLock {
	return &indexLock{
		flock: flock.New(filepath.Join(dataDir, "index.lock")),
	}
}

// Acquire blocks until the lock is held or ctx is cancelled.
func (l *indexLock) Acquire(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.flock.Path()), 0o755); err != nil {
		return kerrors.StorageError("failed to create lock directory", err)
	}

	acquired, err := l.flock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return kerrors.StorageError("failed to acquire index lock", err)
	}
	if !acquired {
		return kerrors.StorageError("index lock unavailable", nil)
	}

	l.locked = true
	return nil
}

// Release drops the lock. Safe to call when not held.
func (l *indexLock) Release() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return kerrors.StorageError("failed to release index lock", err)
	}
	return nil
}
