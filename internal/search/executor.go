// Package search executes ranked queries against the index, sharing the
// tokenizer instance with the indexing path so query terms normalize the
// same way indexed text did.
package search

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kensakudev/kensaku/internal/config"
	"github.com/kensakudev/kensaku/internal/store"
	"github.com/kensakudev/kensaku/internal/telemetry"
	"github.com/kensakudev/kensaku/internal/tokenizer"
)

// Options shapes a single search request.
type Options struct {
	// Limit is the maximum result count. Zero means the configured
	// default; values above the ceiling are clamped.
	Limit int

	// PathPrefix restricts results to files under a directory.
	PathPrefix string

	// Extensions restricts results by file extension (with or without
	// the leading dot).
	Extensions []string
}

// Result is one search hit.
type Result struct {
	// Path is the absolute file path.
	Path string

	// Line is the 1-based line of the first matched term, falling back
	// to 1 when the file cannot be read.
	Line int

	// Snippet is the highlighted context window.
	Snippet string

	// Score is the relevance score (higher is better).
	Score float64
}

// Executor runs queries against the store.
type Executor struct {
	cfg       *config.Config
	tokenizer *tokenizer.Tokenizer
	store     store.Store
	metrics   *telemetry.QueryMetrics
}

// NewExecutor creates an Executor. metrics may be nil to disable telemetry.
func NewExecutor(cfg *config.Config, tok *tokenizer.Tokenizer, s store.Store, metrics *telemetry.QueryMetrics) *Executor {
	return &Executor{
		cfg:       cfg,
		tokenizer: tok,
		store:     s,
		metrics:   metrics,
	}
}

// Search tokenizes rawQuery and returns ranked results. All query terms
// must match (implicit AND). The result slice is never nil.
func (e *Executor) Search(ctx context.Context, rawQuery string, opts Options) ([]Result, error) {
	start := time.Now()

	tokens, err := e.tokenizer.Tokenize(rawQuery)
	if err != nil {
		return nil, err
	}
	terms := tokenizer.Terms(tokens)

	if len(terms) == 0 {
		e.record(rawQuery, terms, 0, time.Since(start))
		return []Result{}, nil
	}

	limit := e.clampLimit(opts.Limit)

	hits, err := e.store.Search(ctx, &store.Query{
		Terms:         terms,
		Limit:         limit,
		PathPrefix:    opts.PathPrefix,
		Extensions:    normalizeExtensions(opts.Extensions),
		SnippetTokens: e.cfg.Search.SnippetTokens,
	})
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, Result{
			Path:    hit.Path,
			Line:    resolveLine(hit.Path, hit.MatchOffset),
			Snippet: hit.Snippet,
			Score:   hit.Score,
		})
	}

	elapsed := time.Since(start)
	e.record(rawQuery, terms, len(results), elapsed)

	slog.Debug("search executed",
		slog.String("query", rawQuery),
		slog.Int("terms", len(terms)),
		slog.Int("results", len(results)),
		slog.Int64("latency_ms", elapsed.Milliseconds()))

	return results, nil
}

// clampLimit applies the configured default and ceiling.
func (e *Executor) clampLimit(limit int) int {
	if limit <= 0 {
		return e.cfg.Search.DefaultLimit
	}
	if limit > e.cfg.Search.MaxLimit {
		return e.cfg.Search.MaxLimit
	}
	return limit
}

// normalizeExtensions lowercases and ensures a leading dot.
func normalizeExtensions(exts []string) []string {
	if len(exts) == 0 {
		return nil
	}
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

// resolveLine maps a byte offset in a file to its 1-based line number by
// counting newlines in the prefix. Unreadable files or unknown offsets
// resolve to line 1.
func resolveLine(path string, offset int) int {
	if offset <= 0 {
		return 1
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return 1
	}
	if offset > len(content) {
		offset = len(content)
	}

	return bytes.Count(content[:offset], []byte{'\n'}) + 1
}

func (e *Executor) record(query string, terms []string, results int, latency time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.Record(telemetry.QueryEvent{
		Query:       query,
		Terms:       terms,
		ResultCount: results,
		Latency:     latency,
		Timestamp:   time.Now(),
	})
}
