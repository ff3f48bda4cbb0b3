package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kensakudev/kensaku/internal/config"
	"github.com/kensakudev/kensaku/internal/indexer"
	"github.com/kensakudev/kensaku/internal/search"
	"github.com/kensakudev/kensaku/internal/store"
	"github.com/kensakudev/kensaku/internal/telemetry"
	"github.com/kensakudev/kensaku/internal/watcher"
	"github.com/kensakudev/kensaku/pkg/version"
)

// Server exposes the index and search engine over MCP.
//
// Protocol discipline: stdout carries JSON-RPC exclusively, so the server
// never prints; all diagnostics go through slog, which serve mode routes to
// the log file.
type Server struct {
	mcp      *mcp.Server
	config   *config.Config
	indexer  *indexer.Indexer
	executor *search.Executor
	store    store.Store
	metrics  *telemetry.QueryMetrics
	watches  *watcher.Manager
	logger   *slog.Logger
}

// Dependencies are the collaborators a Server needs. Metrics and Watches
// are optional; the corresponding tools degrade gracefully without them.
type Dependencies struct {
	Config   *config.Config
	Indexer  *indexer.Indexer
	Executor *search.Executor
	Store    store.Store
	Metrics  *telemetry.QueryMetrics
	Watches  *watcher.Manager
}

// NewServer creates the MCP server and registers all tools.
func NewServer(deps Dependencies) (*Server, error) {
	if deps.Config == nil {
		return nil, errors.New("config is required")
	}
	if deps.Indexer == nil {
		return nil, errors.New("indexer is required")
	}
	if deps.Executor == nil {
		return nil, errors.New("search executor is required")
	}
	if deps.Store == nil {
		return nil, errors.New("store is required")
	}

	s := &Server{
		config:   deps.Config,
		indexer:  deps.Indexer,
		executor: deps.Executor,
		store:    deps.Store,
		metrics:  deps.Metrics,
		watches:  deps.Watches,
		logger:   slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "kensaku",
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Serve runs the server over the given transport until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("server_start",
		slog.String("transport", transport),
		slog.String("version", version.Version))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("server_stopped", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("server_stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// IndexDirectoryInput is the input schema for index_directory.
type IndexDirectoryInput struct {
	RootPath string `json:"root_path" jsonschema:"absolute or relative path of the directory to index"`
}

// IndexDirectoryOutput reports an indexing run.
type IndexDirectoryOutput struct {
	Message      string `json:"message" jsonschema:"human-readable summary"`
	FilesIndexed int    `json:"files_indexed" jsonschema:"number of documents written"`
	FilesSkipped int    `json:"files_skipped" jsonschema:"number of files skipped"`
}

// SearchDocumentsInput is the input schema for search_documents.
type SearchDocumentsInput struct {
	Query      string   `json:"query" jsonschema:"Japanese (or mixed) text to search for"`
	Limit      int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 5, max 50"`
	PathFilter string   `json:"path_filter,omitempty" jsonschema:"restrict results to files under this directory"`
	Extensions []string `json:"extensions,omitempty" jsonschema:"restrict results to these file extensions, e.g. [\".md\", \".txt\"]"`
}

// SearchDocumentsOutput carries ranked hits.
type SearchDocumentsOutput struct {
	Results []SearchResultOutput `json:"results" jsonschema:"ranked search results, best first"`
}

// SearchResultOutput is one ranked hit.
type SearchResultOutput struct {
	FilePath string  `json:"file_path" jsonschema:"absolute path of the matched file"`
	Line     int     `json:"line" jsonschema:"1-based line of the first matched term"`
	Snippet  string  `json:"snippet" jsonschema:"context around the match with <b> highlight markers"`
	Score    float64 `json:"score" jsonschema:"relevance score, higher is better"`
}

// DeleteIndexInput is the input schema for delete_index.
type DeleteIndexInput struct {
	RootPath string `json:"root_path" jsonschema:"directory whose index entries should be removed"`
}

// DeleteIndexOutput reports a root removal.
type DeleteIndexOutput struct {
	Message string `json:"message" jsonschema:"human-readable summary"`
	Removed int    `json:"removed" jsonschema:"number of entries removed"`
}

// ListIndexedFilesInput is the input schema for list_indexed_files.
type ListIndexedFilesInput struct {
	Limit  int `json:"limit,omitempty" jsonschema:"page size, default 100"`
	Offset int `json:"offset,omitempty" jsonschema:"number of paths to skip"`
}

// ListIndexedFilesOutput is one page of indexed paths.
type ListIndexedFilesOutput struct {
	Paths []string `json:"paths" jsonschema:"indexed file paths in lexicographic order"`
	Total int      `json:"total" jsonschema:"total number of indexed files"`
}

// UpdateFileInput is the input schema for update_file.
type UpdateFileInput struct {
	FilePath string `json:"file_path" jsonschema:"file to refresh in the index; a deleted file is removed"`
}

// UpdateFileOutput reports a single-file update.
type UpdateFileOutput struct {
	Message string `json:"message" jsonschema:"human-readable summary"`
	Action  string `json:"action" jsonschema:"updated, deleted, or skipped"`
}

// WatchDirectoryInput is the input schema for watch_directory.
type WatchDirectoryInput struct {
	RootPath string `json:"root_path" jsonschema:"directory to watch for changes"`
}

// WatchDirectoryOutput reports a started watch.
type WatchDirectoryOutput struct {
	Message string `json:"message" jsonschema:"human-readable summary"`
}

// IndexStatsInput is the (empty) input schema for index_stats.
type IndexStatsInput struct{}

// IndexStatsOutput summarizes the index and query telemetry.
type IndexStatsOutput struct {
	DocumentCount int            `json:"document_count" jsonschema:"total indexed documents"`
	TotalTokens   int64          `json:"total_tokens" jsonschema:"total tokens across all documents"`
	RootCounts    map[string]int `json:"root_counts" jsonschema:"documents per indexed root"`
	Backend       string         `json:"backend" jsonschema:"active storage backend"`
	IndexBytes    int64          `json:"index_bytes" jsonschema:"on-disk size of the index artifact"`
	WatchedRoots  []string       `json:"watched_roots,omitempty" jsonschema:"roots with an active watch"`
	Queries       *QueryStats    `json:"queries,omitempty" jsonschema:"query telemetry since startup"`
}

// QueryStats is the telemetry slice of index_stats.
type QueryStats struct {
	Total             int64            `json:"total" jsonschema:"queries executed"`
	ZeroResults       int64            `json:"zero_results" jsonschema:"queries returning nothing"`
	ExactRepeats      int64            `json:"exact_repeats" jsonschema:"queries repeated verbatim"`
	LatencyBuckets    map[string]int64 `json:"latency_buckets" jsonschema:"query count per latency bucket"`
	TopTerms          []TermStat       `json:"top_terms,omitempty" jsonschema:"most frequent query terms"`
	RecentZeroResults []string         `json:"recent_zero_results,omitempty" jsonschema:"recent queries with no hits"`
}

// TermStat is one entry of QueryStats.TopTerms.
type TermStat struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_directory",
		Description: "Index every eligible text file under a directory for Japanese full-text search. Replaces any previous index entries for that directory.",
	}, s.handleIndexDirectory)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_documents",
		Description: "Search indexed documents with Japanese morphological analysis. Conjugated forms match their base form (走った matches 走る) and vice versa. Returns ranked results with highlighted snippets and line numbers.",
	}, s.handleSearchDocuments)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "delete_index",
		Description: "Remove all index entries for a directory.",
	}, s.handleDeleteIndex)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_indexed_files",
		Description: "List indexed file paths in lexicographic order, paginated.",
	}, s.handleListIndexedFiles)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "update_file",
		Description: "Refresh a single file in the index. A modified file is retokenized, a deleted file's entry is removed.",
	}, s.handleUpdateFile)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "watch_directory",
		Description: "Start a background watch on an indexed directory. File changes are applied to the index automatically until the server stops.",
	}, s.handleWatchDirectory)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_stats",
		Description: "Report index contents and query telemetry: document and root counts, backend, latency distribution, frequent terms.",
	}, s.handleIndexStats)

	s.logger.Info("tools_registered", slog.Int("count", 7))
}

func (s *Server) handleIndexDirectory(ctx context.Context, _ *mcp.CallToolRequest, input IndexDirectoryInput) (
	*mcp.CallToolResult, IndexDirectoryOutput, error,
) {
	if strings.TrimSpace(input.RootPath) == "" {
		return nil, IndexDirectoryOutput{}, NewInvalidParamsError("root_path is required")
	}

	start := time.Now()
	requestID := newRequestID()
	s.logger.Info("index_directory_start",
		slog.String("request_id", requestID),
		slog.String("root", input.RootPath))

	report, err := s.indexer.IndexDirectory(ctx, input.RootPath)
	if err != nil {
		s.logger.Error("index_directory_failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return nil, IndexDirectoryOutput{}, MapError(err)
	}

	s.logger.Info("index_directory_done",
		slog.String("request_id", requestID),
		slog.Int("indexed", report.Indexed),
		slog.Int("skipped", report.Skipped),
		slog.Duration("duration", time.Since(start)))

	return nil, IndexDirectoryOutput{
		Message:      FormatIndexReport(report),
		FilesIndexed: report.Indexed,
		FilesSkipped: report.Skipped,
	}, nil
}

func (s *Server) handleSearchDocuments(ctx context.Context, _ *mcp.CallToolRequest, input SearchDocumentsInput) (
	*mcp.CallToolResult, SearchDocumentsOutput, error,
) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchDocumentsOutput{}, NewInvalidParamsError("query is required and must be non-empty")
	}

	start := time.Now()
	requestID := newRequestID()
	s.logger.Info("search_start",
		slog.String("request_id", requestID),
		slog.String("query", input.Query),
		slog.Int("limit", input.Limit))

	results, err := s.executor.Search(ctx, input.Query, search.Options{
		Limit:      input.Limit,
		PathPrefix: input.PathFilter,
		Extensions: input.Extensions,
	})
	if err != nil {
		s.logger.Error("search_failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return nil, SearchDocumentsOutput{}, MapError(err)
	}

	s.logger.Info("search_done",
		slog.String("request_id", requestID),
		slog.Int("results", len(results)),
		slog.Duration("duration", time.Since(start)))

	output := SearchDocumentsOutput{
		Results: make([]SearchResultOutput, 0, len(results)),
	}
	for _, r := range results {
		output.Results = append(output.Results, SearchResultOutput{
			FilePath: r.Path,
			Line:     r.Line,
			Snippet:  r.Snippet,
			Score:    r.Score,
		})
	}

	return textResult(FormatSearchResults(input.Query, results)), output, nil
}

func (s *Server) handleDeleteIndex(ctx context.Context, _ *mcp.CallToolRequest, input DeleteIndexInput) (
	*mcp.CallToolResult, DeleteIndexOutput, error,
) {
	if strings.TrimSpace(input.RootPath) == "" {
		return nil, DeleteIndexOutput{}, NewInvalidParamsError("root_path is required")
	}

	requestID := newRequestID()
	removed, err := s.indexer.DeleteRoot(ctx, input.RootPath)
	if err != nil {
		s.logger.Error("delete_index_failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return nil, DeleteIndexOutput{}, MapError(err)
	}

	root, _ := filepath.Abs(input.RootPath)
	s.logger.Info("delete_index_done",
		slog.String("request_id", requestID),
		slog.String("root", root),
		slog.Int("removed", removed))

	return nil, DeleteIndexOutput{
		Message: FormatDeleteResult(root, removed),
		Removed: removed,
	}, nil
}

func (s *Server) handleListIndexedFiles(ctx context.Context, _ *mcp.CallToolRequest, input ListIndexedFilesInput) (
	*mcp.CallToolResult, ListIndexedFilesOutput, error,
) {
	limit := input.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}

	paths, total, err := s.store.ListPaths(ctx, limit, offset)
	if err != nil {
		return nil, ListIndexedFilesOutput{}, MapError(err)
	}
	if paths == nil {
		paths = []string{}
	}

	return nil, ListIndexedFilesOutput{Paths: paths, Total: total}, nil
}

func (s *Server) handleUpdateFile(ctx context.Context, _ *mcp.CallToolRequest, input UpdateFileInput) (
	*mcp.CallToolResult, UpdateFileOutput, error,
) {
	if strings.TrimSpace(input.FilePath) == "" {
		return nil, UpdateFileOutput{}, NewInvalidParamsError("file_path is required")
	}

	requestID := newRequestID()
	action, err := s.indexer.UpdateFile(ctx, input.FilePath, "")
	if err != nil {
		s.logger.Error("update_file_failed",
			slog.String("request_id", requestID),
			slog.String("path", input.FilePath),
			slog.String("error", err.Error()))
		return nil, UpdateFileOutput{}, MapError(err)
	}

	path, _ := filepath.Abs(input.FilePath)
	s.logger.Info("update_file_done",
		slog.String("request_id", requestID),
		slog.String("path", path),
		slog.String("action", action.String()))

	return nil, UpdateFileOutput{
		Message: FormatUpdateResult(path, action),
		Action:  action.String(),
	}, nil
}

func (s *Server) handleWatchDirectory(ctx context.Context, _ *mcp.CallToolRequest, input WatchDirectoryInput) (
	*mcp.CallToolResult, WatchDirectoryOutput, error,
) {
	if strings.TrimSpace(input.RootPath) == "" {
		return nil, WatchDirectoryOutput{}, NewInvalidParamsError("root_path is required")
	}
	if s.watches == nil {
		return nil, WatchDirectoryOutput{}, &MCPError{
			Code:    ErrCodeInternal,
			Message: "Watching is not available in this server mode.",
		}
	}

	root, err := filepath.Abs(input.RootPath)
	if err != nil {
		return nil, WatchDirectoryOutput{}, NewInvalidParamsError("invalid root_path")
	}

	// The watch outlives this request; it is bound to the server, not ctx.
	if err := s.watches.Watch(context.WithoutCancel(ctx), root); err != nil {
		return nil, WatchDirectoryOutput{}, MapError(err)
	}

	s.logger.Info("watch_directory_started", slog.String("root", root))
	return nil, WatchDirectoryOutput{
		Message: fmt.Sprintf("Watching %s. Changes will be applied to the index automatically.", root),
	}, nil
}

func (s *Server) handleIndexStats(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatsInput) (
	*mcp.CallToolResult, *IndexStatsOutput, error,
) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, nil, MapError(err)
	}

	output := &IndexStatsOutput{
		DocumentCount: stats.DocumentCount,
		TotalTokens:   stats.TotalTokens,
		RootCounts:    stats.RootCounts,
		Backend:       s.config.Search.Backend,
		IndexBytes:    store.ArtifactSize(s.config.Index.DataDir, s.config.Search.Backend),
	}
	if s.watches != nil {
		output.WatchedRoots = s.watches.Active()
	}
	if s.metrics != nil {
		output.Queries = buildQueryStats(s.metrics.Snapshot())
	}

	return nil, output, nil
}

func buildQueryStats(snap *telemetry.Snapshot) *QueryStats {
	qs := &QueryStats{
		Total:          snap.TotalQueries,
		ZeroResults:    snap.ZeroResultCount,
		ExactRepeats:   snap.ExactRepeatCount,
		LatencyBuckets: make(map[string]int64, len(snap.LatencyDistribution)),
	}
	for bucket, count := range snap.LatencyDistribution {
		qs.LatencyBuckets[string(bucket)] = count
	}
	for _, tc := range snap.TopTerms {
		qs.TopTerms = append(qs.TopTerms, TermStat{Term: tc.Term, Count: tc.Count})
	}
	qs.RecentZeroResults = append(qs.RecentZeroResults, snap.ZeroResultQueries...)
	return qs
}

// textResult wraps a markdown string as tool call content.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// newRequestID creates a short unique ID for log correlation.
func newRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
