// Package store persists tokenized documents and serves ranked full-text
// queries over them. Two backends implement the same contract: SQLite FTS5
// (default) and Bleve.
//
// Documents are stored twice over: the content column holds space-joined
// surface forms for display, and the terms column holds space-joined base
// forms, which is the only thing indexed and matched. A query for 走る
// therefore finds a document containing 走った.
package store

import (
	"context"
	"time"
)

// Highlight markers wrapped around matched tokens in snippets.
const (
	HighlightStart = "<b>"
	HighlightEnd   = "</b>"
)

// Document is a tokenized file ready for indexing.
type Document struct {
	// Path is the absolute file path, the document's identity.
	Path string
	// RootPath is the absolute indexed directory this file belongs to.
	RootPath string
	// Content is the space-joined surface forms, used for snippets.
	Content string
	// Terms is the space-joined base forms, the indexed text.
	Terms string
	// TokenOffsets is the packed byte offset of each token in the
	// original file (tokenizer.PackOffsets).
	TokenOffsets []byte
	// SizeBytes and ModTime are file metadata at index time.
	SizeBytes int64
	ModTime   time.Time
	// TokenCount is the number of tokens in the document.
	TokenCount int
}

// Query is a tokenized search request.
type Query struct {
	// Terms are the base forms to match. All must appear (AND).
	Terms []string
	// Limit caps the number of results. Zero means the store default.
	Limit int
	// PathPrefix, when set, restricts results to files under that
	// directory.
	PathPrefix string
	// Extensions, when set, restricts results to files with one of
	// these extensions (with leading dot).
	Extensions []string
	// SnippetTokens is the context window size in tokens.
	SnippetTokens int
}

// Result is a single ranked hit.
type Result struct {
	Path     string
	RootPath string
	// Score is relevance, higher is better.
	Score float64
	// Snippet is display text around the first match, with matched
	// tokens wrapped in HighlightStart/HighlightEnd.
	Snippet string
	// MatchOffset is the byte offset in the original file of the first
	// matched token, -1 when unknown.
	MatchOffset int
}

// IndexStats summarizes index contents.
type IndexStats struct {
	DocumentCount int
	TotalTokens   int64
	// RootCounts maps each indexed root to its document count.
	RootCounts map[string]int
}

// Store is the persistence contract shared by both backends.
// Implementations are safe for concurrent use.
type Store interface {
	// ReplaceRoot atomically replaces every document under root with
	// docs. Paths in docs that were previously indexed under a
	// different root move to this one.
	ReplaceRoot(ctx context.Context, root string, docs []*Document) error

	// DeleteRoot removes all documents under root, returning how many
	// were removed.
	DeleteRoot(ctx context.Context, root string) (int, error)

	// UpsertDocument inserts or replaces a single document.
	UpsertDocument(ctx context.Context, doc *Document) error

	// DeleteDocument removes one document by path. Returns false when
	// the path was not indexed.
	DeleteDocument(ctx context.Context, path string) (bool, error)

	// RootForPath returns the root a path is indexed under.
	RootForPath(ctx context.Context, path string) (string, bool, error)

	// Search returns ranked hits for the query, best first.
	Search(ctx context.Context, q *Query) ([]*Result, error)

	// ListPaths returns a page of indexed paths in lexical order plus
	// the total count.
	ListPaths(ctx context.Context, limit, offset int) ([]string, int, error)

	// AllPaths returns every indexed path.
	AllPaths(ctx context.Context) ([]string, error)

	// Stats summarizes the index.
	Stats(ctx context.Context) (*IndexStats, error)

	// Save flushes pending state to disk.
	Save() error

	Close() error
}
