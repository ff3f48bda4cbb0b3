package store

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Backend identifies a full-text index backend.
type Backend string

const (
	// BackendSQLite uses SQLite FTS5 (default). WAL mode allows
	// concurrent multi-process access.
	BackendSQLite Backend = "sqlite"

	// BackendBleve uses Bleve v2. BoltDB holds an exclusive lock, so a
	// Bleve index serves a single process.
	BackendBleve Backend = "bleve"
)

// Open creates or opens a Store of the given backend under dataDir. An
// empty dataDir creates an in-memory store for testing.
func Open(backend string, dataDir string) (Store, error) {
	switch Backend(backend) {
	case BackendSQLite, "":
		var path string
		if dataDir != "" {
			path = filepath.Join(dataDir, "index.db")
		}
		return NewSQLiteStore(path)

	case BackendBleve:
		var path string
		if dataDir != "" {
			path = filepath.Join(dataDir, "index.bleve")
		}
		return NewBleveStore(path)

	default:
		return nil, fmt.Errorf("unknown backend: %s (valid options: sqlite, bleve)", backend)
	}
}

// DetectBackend reports which backend an existing index in dataDir uses,
// or "" when no index exists. Lets a configured backend switch defer to
// what is already on disk instead of silently starting empty.
func DetectBackend(dataDir string) Backend {
	if fileExists(filepath.Join(dataDir, "index.db")) {
		return BackendSQLite
	}
	if dirExists(filepath.Join(dataDir, "index.bleve")) {
		return BackendBleve
	}
	return ""
}

// IndexPath returns the index file or directory for a backend.
func IndexPath(dataDir, backend string) string {
	if Backend(backend) == BackendBleve {
		return filepath.Join(dataDir, "index.bleve")
	}
	return filepath.Join(dataDir, "index.db")
}

// ArtifactSize returns the on-disk bytes of the index artifact: a single
// file for SQLite, a directory tree for Bleve. Zero when no index exists.
func ArtifactSize(dataDir, backend string) int64 {
	if dataDir == "" {
		return 0
	}

	path := IndexPath(dataDir, backend)
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	if !info.IsDir() {
		return info.Size()
	}

	var total int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			total += fi.Size()
		}
		return nil
	})
	return total
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
