// Package scanner discovers indexable document files under a directory,
// honoring the extension allow-list, exclusion patterns, .gitignore rules,
// and sensitive file patterns.
package scanner

import "time"

// FileInfo contains metadata about a discovered file.
type FileInfo struct {
	Path    string    // Relative path from the scan root
	AbsPath string    // Absolute path
	Size    int64     // File size in bytes
	ModTime time.Time // Last modification time
}

// ScanOptions configures the scanner behavior.
type ScanOptions struct {
	// RootDir is the directory to scan.
	RootDir string

	// IncludeExtensions is the allow-list of extensions (with leading dot).
	// Empty means every non-binary file passes.
	IncludeExtensions []string

	// ExcludePatterns specifies glob patterns to exclude.
	ExcludePatterns []string

	// RespectGitignore enables .gitignore parsing, including nested files.
	RespectGitignore bool

	// IncludeHidden includes dotfiles and dot-directories.
	IncludeHidden bool

	// FollowSymlinks enables following symbolic links.
	FollowSymlinks bool

	// MaxFileSize is the maximum file size in bytes (0 = 4MB default).
	MaxFileSize int64

	// Workers sizes the result channel buffer (0 = NumCPU).
	Workers int
}

// ScanResult is streamed from the scanner channel.
type ScanResult struct {
	File  *FileInfo
	Error error
}

// DefaultMaxFileSize is the default maximum file size (4MB).
const DefaultMaxFileSize = 4 * 1024 * 1024
