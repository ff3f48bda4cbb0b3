// Package watcher provides recursive file system watching with event
// debouncing. Raw fsnotify events are coalesced per path inside a debounce
// window and emitted as batches, which the Service translates into
// single-file index updates.
package watcher

import (
	"context"
	"time"
)

// Operation classifies a file system event.
type Operation int

const (
	// OpCreate indicates a new file or directory appeared.
	OpCreate Operation = iota
	// OpModify indicates an existing file changed.
	OpModify
	// OpDelete indicates a file or directory was removed.
	OpDelete
	// OpRename indicates a file or directory moved away. fsnotify reports
	// only the old path, so this behaves like a delete for that path.
	OpRename
	// OpGitignoreChange indicates a .gitignore file changed. The root must
	// be reindexed to pick up newly ignored or unignored files.
	OpGitignoreChange
)

// String returns the operation name.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	case OpGitignoreChange:
		return "GITIGNORE_CHANGE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is a single debounced file system event. Path is relative to
// the watched root.
type FileEvent struct {
	Path      string
	Operation Operation
	IsDir     bool
	Timestamp time.Time
}

// Watcher watches a directory tree and reports batched, debounced events.
type Watcher interface {
	// Start begins watching path recursively. It blocks until Stop is
	// called or ctx is cancelled.
	Start(ctx context.Context, path string) error

	// Stop stops the watcher and closes the event channels. Safe to call
	// more than once.
	Stop() error

	// Events returns the channel of debounced event batches. Closed when
	// the watcher stops.
	Events() <-chan []FileEvent

	// Errors returns the channel of non-fatal watcher errors. Closed when
	// the watcher stops.
	Errors() <-chan error
}

// Options configures watcher behavior.
type Options struct {
	// DebounceWindow is how long to coalesce events before emitting a
	// batch. Default 500ms (config watch.debounce_ms).
	DebounceWindow time.Duration

	// EventBufferSize is the capacity of the batch channel. Default 1000.
	EventBufferSize int

	// IgnorePatterns are extra gitignore-syntax patterns applied on top of
	// the root's .gitignore files.
	IgnorePatterns []string
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  500 * time.Millisecond,
		EventBufferSize: 1000,
	}
}

// WithDefaults fills zero-valued fields from DefaultOptions.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow == 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}
