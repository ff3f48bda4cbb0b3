// Package preflight validates that kensaku can run on this machine: the
// data directory is writable, the tokenizer dictionary loads, and the
// storage backend round-trips a document. The doctor command runs these.
package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kensakudev/kensaku/internal/config"
	"github.com/kensakudev/kensaku/internal/store"
	"github.com/kensakudev/kensaku/internal/tokenizer"
)

// CheckStatus is the outcome of one preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical problem.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the status name.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical reports whether a required check failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Checker runs the preflight checks.
type Checker struct {
	cfg     *config.Config
	verbose bool
	output  io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose enables detail lines in the printed report.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) { c.verbose = verbose }
}

// WithOutput sets the report writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) { c.output = w }
}

// New creates a Checker for the given configuration.
func New(cfg *config.Config, opts ...Option) *Checker {
	c := &Checker{
		cfg:    cfg,
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check and returns the results in order.
func (c *Checker) RunAll(ctx context.Context) []CheckResult {
	return []CheckResult{
		c.CheckDataDirWritable(),
		c.CheckDictionary(),
		c.CheckStorageRoundTrip(ctx),
		c.CheckStoreConsistency(ctx),
	}
}

// HasCriticalFailures reports whether any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus condenses results into ready / ready_with_warnings / failed.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	for _, r := range results {
		if r.IsCritical() {
			return "failed"
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			hasWarnings = true
		}
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults writes the human-readable report.
func (c *Checker) PrintResults(results []CheckResult) {
	fmt.Fprintln(c.output, "Kensaku System Check")
	fmt.Fprintln(c.output, "====================")
	fmt.Fprintln(c.output)

	for _, r := range results {
		fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			fmt.Fprintf(c.output, "      %s\n", r.Details)
		}
	}

	fmt.Fprintln(c.output)
	fmt.Fprintf(c.output, "Status: %s\n", c.SummaryStatus(results))
}

// CheckDataDirWritable verifies the data dir exists (creating it if needed)
// and accepts file writes.
func (c *Checker) CheckDataDirWritable() CheckResult {
	result := CheckResult{
		Name:     "data_dir_writable",
		Required: true,
	}

	dataDir := c.cfg.Index.DataDir
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s: %v", dataDir, err)
		return result
	}

	probe := filepath.Join(dataDir, ".preflight-probe")
	f, err := os.Create(probe)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot write to %s: %v", dataDir, err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(probe)

	result.Status = StatusPass
	result.Message = "OK"
	result.Details = dataDir
	return result
}

// CheckDictionary loads the morphological dictionary and tokenizes a
// known phrase.
func (c *Checker) CheckDictionary() CheckResult {
	result := CheckResult{
		Name:     "tokenizer_dictionary",
		Required: true,
	}

	start := time.Now()
	tok, err := tokenizer.New()
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("dictionary failed to load: %v", err)
		return result
	}

	tokens, err := tok.Tokenize("吾輩は猫である")
	if err != nil || len(tokens) == 0 {
		result.Status = StatusFail
		result.Message = "dictionary loaded but tokenization produced no tokens"
		return result
	}

	result.Status = StatusPass
	result.Message = "OK"
	result.Details = fmt.Sprintf("loaded in %s, %d tokens from probe phrase",
		time.Since(start).Round(time.Millisecond), len(tokens))
	return result
}

// CheckStorageRoundTrip opens a throwaway store of the configured backend
// and verifies upsert, search, and delete work.
func (c *Checker) CheckStorageRoundTrip(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:     "storage_roundtrip",
		Required: true,
	}

	tmpDir, err := os.MkdirTemp("", "kensaku-preflight-*")
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create temp dir: %v", err)
		return result
	}
	defer os.RemoveAll(tmpDir)

	s, err := store.Open(c.cfg.Search.Backend, tmpDir)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s backend failed to open: %v", c.cfg.Search.Backend, err)
		return result
	}
	defer s.Close()

	doc := &store.Document{
		Path:     filepath.Join(tmpDir, "probe.txt"),
		RootPath: tmpDir,
		Content:  "検索 し ます",
		Terms:    "検索 する ます",
		ModTime:  time.Now(),
	}
	if err := s.UpsertDocument(ctx, doc); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("upsert failed: %v", err)
		return result
	}

	hits, err := s.Search(ctx, &store.Query{Terms: []string{"検索"}, Limit: 1})
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("search failed: %v", err)
		return result
	}
	if len(hits) != 1 {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("round-trip lost the document (%d hits)", len(hits))
		return result
	}

	if _, err := s.DeleteDocument(ctx, doc.Path); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("delete failed: %v", err)
		return result
	}

	result.Status = StatusPass
	result.Message = "OK"
	result.Details = fmt.Sprintf("backend %s", c.cfg.Search.Backend)
	return result
}

// CheckStoreConsistency opens the real index, if one exists, and compares
// the document count against the path listing. A mismatch means the
// content and metadata tables have drifted.
func (c *Checker) CheckStoreConsistency(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:     "store_consistency",
		Required: false,
	}

	dataDir := c.cfg.Index.DataDir
	backend := store.DetectBackend(dataDir)
	if !indexExists(dataDir, string(backend)) {
		result.Status = StatusPass
		result.Message = "no index yet"
		return result
	}

	s, err := store.Open(string(backend), dataDir)
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("existing index failed to open: %v", err)
		return result
	}
	defer s.Close()

	stats, err := s.Stats(ctx)
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("stats failed: %v", err)
		return result
	}
	paths, err := s.AllPaths(ctx)
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("path listing failed: %v", err)
		return result
	}

	if stats.DocumentCount != len(paths) {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("document count %d does not match path count %d; reindex to repair",
			stats.DocumentCount, len(paths))
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("OK (%d documents)", stats.DocumentCount)
	return result
}

func indexExists(dataDir, backend string) bool {
	_, err := os.Stat(store.IndexPath(dataDir, backend))
	return err == nil
}
