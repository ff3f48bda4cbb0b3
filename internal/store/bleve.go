package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/whitespace"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"

	kerrors "github.com/kensakudev/kensaku/internal/errors"
	"github.com/kensakudev/kensaku/internal/tokenizer"
)

// pretokenizedAnalyzerName splits on whitespace only: documents arrive
// already tokenized by kagome, so the analyzer must not re-segment them.
const pretokenizedAnalyzerName = "pretokenized"

// BleveStore implements Store on Bleve v2.
type BleveStore struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

var _ Store = (*BleveStore)(nil)

// bleveDocument is the indexed document shape. Terms is the only analyzed
// field; everything else is stored for retrieval.
type bleveDocument struct {
	Root    string  `json:"root"`
	Content string  `json:"content"`
	Terms   string  `json:"terms"`
	Offsets string  `json:"offsets"` // base64 of packed token offsets
	Size    float64 `json:"size"`
	Mtime   float64 `json:"mtime"`
	Tokens  float64 `json:"tokens"`
}

// validateBleveIntegrity checks an index directory before opening it.
func validateBleveIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // will be created
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}

	return nil
}

func isBleveCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// NewBleveStore opens (or creates) a Bleve index at path. An empty path
// creates an in-memory store for testing. A corrupted index is cleared and
// recreated; the previous contents need reindexing.
func NewBleveStore(path string) (*BleveStore, error) {
	indexMapping, err := createBleveMapping()
	if err != nil {
		return nil, kerrors.StorageError("failed to create index mapping", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		dir := filepath.Dir(path)
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return nil, kerrors.StorageError(fmt.Sprintf("failed to create directory %s", dir), mkErr)
		}

		if validErr := validateBleveIntegrity(path); validErr != nil {
			slog.Warn("bleve index corrupted, clearing",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, kerrors.New(kerrors.ErrCodeCorruptIndex,
					fmt.Sprintf("index corrupted at %s and cannot be removed", path), removeErr)
			}
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil && isBleveCorruptionError(err) {
			slog.Warn("bleve index open failed, clearing",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, kerrors.New(kerrors.ErrCodeCorruptIndex,
					fmt.Sprintf("index corrupted at %s and cannot be cleared", path), removeErr)
			}
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, kerrors.StorageError("failed to open bleve index", err)
	}

	return &BleveStore{index: idx, path: path}, nil
}

func createBleveMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(pretokenizedAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": whitespace.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add analyzer: %w", err)
	}

	termsField := bleve.NewTextFieldMapping()
	termsField.Analyzer = pretokenizedAnalyzerName
	termsField.Store = false
	termsField.IncludeTermVectors = true // needed for match positions
	termsField.IncludeInAll = false

	rootField := bleve.NewTextFieldMapping()
	rootField.Analyzer = keyword.Name
	rootField.Store = true
	rootField.IncludeInAll = false

	storedOnly := bleve.NewTextFieldMapping()
	storedOnly.Store = true
	storedOnly.Index = false
	storedOnly.IncludeInAll = false

	numericStored := bleve.NewNumericFieldMapping()
	numericStored.Store = true
	numericStored.Index = false
	numericStored.IncludeInAll = false

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("terms", termsField)
	docMapping.AddFieldMappingsAt("root", rootField)
	docMapping.AddFieldMappingsAt("content", storedOnly)
	docMapping.AddFieldMappingsAt("offsets", storedOnly)
	docMapping.AddFieldMappingsAt("size", numericStored)
	docMapping.AddFieldMappingsAt("mtime", numericStored)
	docMapping.AddFieldMappingsAt("tokens", numericStored)

	indexMapping.DefaultMapping = docMapping
	return indexMapping, nil
}

func toBleveDocument(doc *Document) bleveDocument {
	return bleveDocument{
		Root:    doc.RootPath,
		Content: doc.Content,
		Terms:   doc.Terms,
		Offsets: base64.StdEncoding.EncodeToString(doc.TokenOffsets),
		Size:    float64(doc.SizeBytes),
		Mtime:   float64(doc.ModTime.Unix()),
		Tokens:  float64(doc.TokenCount),
	}
}

// ReplaceRoot swaps the document set for a root in a single batch.
func (b *BleveStore) ReplaceRoot(ctx context.Context, root string, docs []*Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return kerrors.New(kerrors.ErrCodeIndexClosed, "index is closed", nil)
	}

	existing, err := b.pathsForRoot(ctx, root)
	if err != nil {
		return err
	}

	batch := b.index.NewBatch()
	for _, path := range existing {
		batch.Delete(path)
	}
	for _, doc := range docs {
		if err := batch.Index(doc.Path, toBleveDocument(doc)); err != nil {
			return kerrors.StorageError(fmt.Sprintf("failed to index %s", doc.Path), err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return kerrors.StorageError("failed to execute batch", err)
	}
	return nil
}

// pathsForRoot lists document IDs indexed under root. Callers hold the lock.
func (b *BleveStore) pathsForRoot(ctx context.Context, root string) ([]string, error) {
	docCount, _ := b.index.DocCount()
	if docCount == 0 {
		return nil, nil
	}

	q := bleve.NewTermQuery(root)
	q.SetField("root")

	req := bleve.NewSearchRequest(q)
	req.Size = int(docCount)

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, kerrors.StorageError("failed to list root documents", err)
	}

	paths := make([]string, len(result.Hits))
	for i, hit := range result.Hits {
		paths[i] = hit.ID
	}
	return paths, nil
}

// DeleteRoot removes every document under root.
func (b *BleveStore) DeleteRoot(ctx context.Context, root string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, kerrors.New(kerrors.ErrCodeIndexClosed, "index is closed", nil)
	}

	paths, err := b.pathsForRoot(ctx, root)
	if err != nil {
		return 0, err
	}
	if len(paths) == 0 {
		return 0, nil
	}

	batch := b.index.NewBatch()
	for _, path := range paths {
		batch.Delete(path)
	}
	if err := b.index.Batch(batch); err != nil {
		return 0, kerrors.StorageError("failed to delete root", err)
	}
	return len(paths), nil
}

// UpsertDocument inserts or replaces one document; Bleve's Index replaces
// by ID.
func (b *BleveStore) UpsertDocument(ctx context.Context, doc *Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return kerrors.New(kerrors.ErrCodeIndexClosed, "index is closed", nil)
	}

	if err := b.index.Index(doc.Path, toBleveDocument(doc)); err != nil {
		return kerrors.StorageError(fmt.Sprintf("failed to index %s", doc.Path), err)
	}
	return nil
}

// DeleteDocument removes one document by path.
func (b *BleveStore) DeleteDocument(ctx context.Context, path string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false, kerrors.New(kerrors.ErrCodeIndexClosed, "index is closed", nil)
	}

	_, found, err := b.rootForPathLocked(ctx, path)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	if err := b.index.Delete(path); err != nil {
		return false, kerrors.StorageError("failed to delete document", err)
	}
	return true, nil
}

// RootForPath returns the root a path is indexed under.
func (b *BleveStore) RootForPath(ctx context.Context, path string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return "", false, kerrors.New(kerrors.ErrCodeIndexClosed, "index is closed", nil)
	}
	return b.rootForPathLocked(ctx, path)
}

func (b *BleveStore) rootForPathLocked(ctx context.Context, path string) (string, bool, error) {
	q := bleve.NewDocIDQuery([]string{path})
	req := bleve.NewSearchRequest(q)
	req.Size = 1
	req.Fields = []string{"root"}

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return "", false, kerrors.StorageError("failed to look up path", err)
	}
	if len(result.Hits) == 0 {
		return "", false, nil
	}

	root, _ := result.Hits[0].Fields["root"].(string)
	return root, true, nil
}

// Search runs a conjunction of term queries over base forms and rebuilds
// snippets from the stored surface forms. Path and extension filters are
// applied after scoring, so the request over-fetches when they are set.
func (b *BleveStore) Search(ctx context.Context, q *Query) ([]*Result, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, kerrors.New(kerrors.ErrCodeIndexClosed, "index is closed", nil)
	}

	if len(q.Terms) == 0 {
		return []*Result{}, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	conjuncts := make([]query.Query, 0, len(q.Terms))
	for _, term := range q.Terms {
		tq := bleve.NewTermQuery(term)
		tq.SetField("terms")
		conjuncts = append(conjuncts, tq)
	}
	conj := bleve.NewConjunctionQuery(conjuncts...)

	fetchLimit := limit
	filtered := q.PathPrefix != "" || len(q.Extensions) > 0
	if filtered {
		fetchLimit = limit * 20
		if fetchLimit > 500 {
			fetchLimit = 500
		}
	}

	req := bleve.NewSearchRequest(conj)
	req.Size = fetchLimit
	req.Fields = []string{"root", "content", "offsets"}
	req.IncludeLocations = true

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, kerrors.StorageError("search failed", err)
	}

	results := make([]*Result, 0, len(result.Hits))
	for _, hit := range result.Hits {
		if filtered && !matchesFilters(hit.ID, q) {
			continue
		}

		root, _ := hit.Fields["root"].(string)
		content, _ := hit.Fields["content"].(string)
		offsetsB64, _ := hit.Fields["offsets"].(string)

		matched := bleveMatchedIndices(hit)

		var surfaces []string
		if content != "" {
			surfaces = strings.Split(content, " ")
		}
		snippet, firstIdx := buildSnippet(surfaces, matched, q.SnippetTokens)

		matchOffset := -1
		if firstIdx >= 0 {
			if blob, decErr := base64.StdEncoding.DecodeString(offsetsB64); decErr == nil {
				offsets := tokenizer.UnpackOffsets(blob)
				if firstIdx < len(offsets) {
					matchOffset = offsets[firstIdx]
				}
			}
		}

		results = append(results, &Result{
			Path:        hit.ID,
			RootPath:    root,
			Score:       hit.Score,
			Snippet:     snippet,
			MatchOffset: matchOffset,
		})
		if len(results) == limit {
			break
		}
	}

	return results, nil
}

func matchesFilters(path string, q *Query) bool {
	if q.PathPrefix != "" {
		if path != q.PathPrefix && !strings.HasPrefix(path, q.PathPrefix+string(filepath.Separator)) {
			return false
		}
	}
	if len(q.Extensions) > 0 {
		ok := false
		for _, ext := range q.Extensions {
			if strings.HasSuffix(path, ext) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// bleveMatchedIndices converts term locations to zero-based token indices.
// Positions refer to tokens in the whitespace-split terms field, which line
// up one-to-one with the surface tokens.
func bleveMatchedIndices(hit *search.DocumentMatch) []int {
	var matched []int
	for _, termLocs := range hit.Locations {
		for _, locs := range termLocs {
			for _, loc := range locs {
				if loc.Pos > 0 {
					matched = append(matched, int(loc.Pos)-1)
				}
			}
		}
	}
	return matched
}

// ListPaths returns a lexically ordered page of indexed paths plus the
// total count.
func (b *BleveStore) ListPaths(ctx context.Context, limit, offset int) ([]string, int, error) {
	all, err := b.AllPaths(ctx)
	if err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	total := len(all)
	if offset >= total {
		return []string{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// AllPaths returns every indexed path in lexical order.
func (b *BleveStore) AllPaths(ctx context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, kerrors.New(kerrors.ErrCodeIndexClosed, "index is closed", nil)
	}

	docCount, _ := b.index.DocCount()
	if docCount == 0 {
		return nil, nil
	}

	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(docCount)
	req.SortBy([]string{"_id"})

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, kerrors.StorageError("failed to list paths", err)
	}

	paths := make([]string, len(result.Hits))
	for i, hit := range result.Hits {
		paths[i] = hit.ID
	}
	return paths, nil
}

// Stats summarizes index contents.
func (b *BleveStore) Stats(ctx context.Context) (*IndexStats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, kerrors.New(kerrors.ErrCodeIndexClosed, "index is closed", nil)
	}

	stats := &IndexStats{RootCounts: make(map[string]int)}

	docCount, _ := b.index.DocCount()
	stats.DocumentCount = int(docCount)
	if docCount == 0 {
		return stats, nil
	}

	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(docCount)
	req.Fields = []string{"root", "tokens"}

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, kerrors.StorageError("failed to compute stats", err)
	}

	for _, hit := range result.Hits {
		if root, ok := hit.Fields["root"].(string); ok {
			stats.RootCounts[root]++
		}
		if tokens, ok := hit.Fields["tokens"].(float64); ok {
			stats.TotalTokens += int64(tokens)
		}
	}

	return stats, nil
}

// Save is a no-op: Bleve persists on every batch.
func (b *BleveStore) Save() error {
	return nil
}

// Close closes the index. Idempotent.
func (b *BleveStore) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	if b.index != nil {
		return b.index.Close()
	}
	return nil
}
