package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO

	kerrors "github.com/kensakudev/kensaku/internal/errors"
	"github.com/kensakudev/kensaku/internal/tokenizer"
)

// Highlight marker bytes used internally with FTS5's highlight() before
// the snippet is rebuilt from surface forms.
const (
	ftsMarkStart = byte(0x02)
	ftsMarkEnd   = byte(0x03)
)

// SQLiteStore implements Store on SQLite FTS5. WAL mode allows readers
// while a write transaction is open, and a single connection serializes
// writers.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var _ Store = (*SQLiteStore)(nil)

// validateIntegrity checks an existing database before opening it for real.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // will be created
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master
                       WHERE type='table' AND name='documents'`).Scan(&count)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("FTS5 table 'documents' missing")
	}

	return nil
}

// NewSQLiteStore opens (or creates) an index database at path. An empty
// path creates an in-memory store for testing. A corrupted database is
// cleared and recreated; the previous contents need reindexing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, kerrors.StorageError(fmt.Sprintf("failed to create directory %s", dir), err)
		}

		if validErr := validateIntegrity(path); validErr != nil {
			slog.Warn("index database corrupted, clearing",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, kerrors.New(kerrors.ErrCodeCorruptIndex,
					fmt.Sprintf("index corrupted at %s and cannot be removed", path), removeErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
		}

		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, kerrors.StorageError("failed to open index database", err)
	}

	// Single writer connection avoids SQLITE_BUSY between our own
	// goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// modernc.org/sqlite ignores some DSN params; set pragmas explicitly.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, kerrors.StorageError("failed to set pragma", err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, kerrors.StorageError("failed to initialize schema", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	-- terms is the only indexed column: space-joined base forms.
	-- path, root_path and content are stored for retrieval only.
	CREATE VIRTUAL TABLE IF NOT EXISTS documents USING fts5(
		path UNINDEXED,
		root_path UNINDEXED,
		content UNINDEXED,
		terms,
		tokenize='unicode61'
	);

	CREATE TABLE IF NOT EXISTS documents_meta (
		path          TEXT PRIMARY KEY,
		root_path     TEXT NOT NULL,
		token_offsets BLOB,
		size_bytes    INTEGER NOT NULL DEFAULT 0,
		mtime_unix    INTEGER NOT NULL DEFAULT 0,
		token_count   INTEGER NOT NULL DEFAULT 0,
		indexed_at    INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_meta_root ON documents_meta(root_path);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := s.db.Exec(schema)
	return err
}

// ReplaceRoot swaps the whole document set for a root in one transaction.
// A crash mid-replace leaves the previous index intact.
func (s *SQLiteStore) ReplaceRoot(ctx context.Context, root string, docs []*Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return kerrors.New(kerrors.ErrCodeIndexClosed, "index is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return kerrors.StorageError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Drop everything previously under this root.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM documents WHERE path IN (SELECT path FROM documents_meta WHERE root_path = ?)`, root); err != nil {
		return kerrors.StorageError("failed to clear root documents", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM documents_meta WHERE root_path = ?`, root); err != nil {
		return kerrors.StorageError("failed to clear root metadata", err)
	}

	if err := insertDocs(ctx, tx, docs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return kerrors.StorageError("failed to commit replace", err)
	}
	return nil
}

// insertDocs inserts docs inside tx, displacing any colliding paths first.
func insertDocs(ctx context.Context, tx *sql.Tx, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	delDoc, err := tx.PrepareContext(ctx, `DELETE FROM documents WHERE path = ?`)
	if err != nil {
		return kerrors.StorageError("failed to prepare delete", err)
	}
	defer delDoc.Close()

	delMeta, err := tx.PrepareContext(ctx, `DELETE FROM documents_meta WHERE path = ?`)
	if err != nil {
		return kerrors.StorageError("failed to prepare meta delete", err)
	}
	defer delMeta.Close()

	// FTS5 virtual tables don't support REPLACE, hence delete-then-insert.
	insDoc, err := tx.PrepareContext(ctx,
		`INSERT INTO documents(path, root_path, content, terms) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return kerrors.StorageError("failed to prepare insert", err)
	}
	defer insDoc.Close()

	insMeta, err := tx.PrepareContext(ctx,
		`INSERT INTO documents_meta(path, root_path, token_offsets, size_bytes, mtime_unix, token_count, indexed_at)
		 VALUES (?, ?, ?, ?, ?, ?, strftime('%s','now'))`)
	if err != nil {
		return kerrors.StorageError("failed to prepare meta insert", err)
	}
	defer insMeta.Close()

	for _, doc := range docs {
		if _, err := delDoc.ExecContext(ctx, doc.Path); err != nil {
			return kerrors.StorageError(fmt.Sprintf("failed to displace %s", doc.Path), err)
		}
		if _, err := delMeta.ExecContext(ctx, doc.Path); err != nil {
			return kerrors.StorageError(fmt.Sprintf("failed to displace meta %s", doc.Path), err)
		}
		if _, err := insDoc.ExecContext(ctx, doc.Path, doc.RootPath, doc.Content, doc.Terms); err != nil {
			return kerrors.StorageError(fmt.Sprintf("failed to index %s", doc.Path), err)
		}
		if _, err := insMeta.ExecContext(ctx, doc.Path, doc.RootPath, doc.TokenOffsets,
			doc.SizeBytes, doc.ModTime.Unix(), doc.TokenCount); err != nil {
			return kerrors.StorageError(fmt.Sprintf("failed to store metadata for %s", doc.Path), err)
		}
	}

	return nil
}

// DeleteRoot removes every document under root.
func (s *SQLiteStore) DeleteRoot(ctx context.Context, root string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, kerrors.New(kerrors.ErrCodeIndexClosed, "index is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, kerrors.StorageError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM documents WHERE path IN (SELECT path FROM documents_meta WHERE root_path = ?)`, root); err != nil {
		return 0, kerrors.StorageError("failed to delete root documents", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM documents_meta WHERE root_path = ?`, root)
	if err != nil {
		return 0, kerrors.StorageError("failed to delete root metadata", err)
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, kerrors.StorageError("failed to commit delete", err)
	}
	return int(n), nil
}

// UpsertDocument inserts or replaces a single document.
func (s *SQLiteStore) UpsertDocument(ctx context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return kerrors.New(kerrors.ErrCodeIndexClosed, "index is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return kerrors.StorageError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertDocs(ctx, tx, []*Document{doc}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return kerrors.StorageError("failed to commit upsert", err)
	}
	return nil
}

// DeleteDocument removes one document. Returns false when the path was not
// indexed.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, kerrors.New(kerrors.ErrCodeIndexClosed, "index is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, kerrors.StorageError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, path); err != nil {
		return false, kerrors.StorageError("failed to delete document", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM documents_meta WHERE path = ?`, path)
	if err != nil {
		return false, kerrors.StorageError("failed to delete metadata", err)
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return false, kerrors.StorageError("failed to commit delete", err)
	}
	return n > 0, nil
}

// RootForPath returns the root a path is indexed under.
func (s *SQLiteStore) RootForPath(ctx context.Context, path string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", false, kerrors.New(kerrors.ErrCodeIndexClosed, "index is closed", nil)
	}

	var root string
	err := s.db.QueryRowContext(ctx,
		`SELECT root_path FROM documents_meta WHERE path = ?`, path).Scan(&root)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, kerrors.StorageError("failed to look up path", err)
	}
	return root, true, nil
}

// Search runs an FTS5 MATCH over base-form terms and rebuilds display
// snippets from the stored surface forms.
func (s *SQLiteStore) Search(ctx context.Context, q *Query) ([]*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, kerrors.New(kerrors.ErrCodeIndexClosed, "index is closed", nil)
	}

	if len(q.Terms) == 0 {
		return []*Result{}, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	match := buildMatchExpr(q.Terms)

	sqlQuery := `
		SELECT documents.path, documents.root_path, documents.content,
		       bm25(documents) AS score,
		       highlight(documents, 3, char(2), char(3)) AS hl,
		       m.token_offsets
		FROM documents
		JOIN documents_meta m ON m.path = documents.path
		WHERE documents MATCH ?`
	args := []any{match}

	if q.PathPrefix != "" {
		sqlQuery += ` AND (documents.path = ? OR documents.path LIKE ?)`
		args = append(args, q.PathPrefix, q.PathPrefix+string(filepath.Separator)+"%")
	}
	if len(q.Extensions) > 0 {
		conds := make([]string, len(q.Extensions))
		for i, ext := range q.Extensions {
			conds[i] = "documents.path LIKE ?"
			args = append(args, "%"+ext)
		}
		sqlQuery += ` AND (` + strings.Join(conds, " OR ") + `)`
	}

	sqlQuery += ` ORDER BY score LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		// FTS5 rejects queries it can't parse; treat those as no results.
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return []*Result{}, nil
		}
		return nil, kerrors.StorageError("search failed", err)
	}
	defer rows.Close()

	var results []*Result
	for rows.Next() {
		var (
			path, root, content, hl string
			score                   float64
			offsetsBlob             []byte
		)
		if err := rows.Scan(&path, &root, &content, &score, &hl, &offsetsBlob); err != nil {
			return nil, kerrors.StorageError("failed to scan result", err)
		}

		matched := matchedTokenIndices(hl, ftsMarkStart, ftsMarkEnd)

		var surfaces []string
		if content != "" {
			surfaces = strings.Split(content, " ")
		}
		snippet, firstIdx := buildSnippet(surfaces, matched, q.SnippetTokens)

		matchOffset := -1
		if firstIdx >= 0 {
			offsets := tokenizer.UnpackOffsets(offsetsBlob)
			if firstIdx < len(offsets) {
				matchOffset = offsets[firstIdx]
			}
		}

		results = append(results, &Result{
			Path:     path,
			RootPath: root,
			// bm25() is negative, lower is better; negate so higher wins.
			Score:       -score,
			Snippet:     snippet,
			MatchOffset: matchOffset,
		})
	}

	if results == nil {
		results = []*Result{}
	}
	return results, rows.Err()
}

// buildMatchExpr quotes each term for FTS5 so query syntax characters in
// user input are literal. Space-joined terms AND together.
func buildMatchExpr(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

// ListPaths returns a lexically ordered page of indexed paths plus the
// total count.
func (s *SQLiteStore) ListPaths(ctx context.Context, limit, offset int) ([]string, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, 0, kerrors.New(kerrors.ErrCodeIndexClosed, "index is closed", nil)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents_meta`).Scan(&total); err != nil {
		return nil, 0, kerrors.StorageError("failed to count documents", err)
	}

	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT path FROM documents_meta ORDER BY path LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, kerrors.StorageError("failed to list paths", err)
	}
	defer rows.Close()

	paths := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, 0, kerrors.StorageError("failed to scan path", err)
		}
		paths = append(paths, p)
	}

	return paths, total, rows.Err()
}

// AllPaths returns every indexed path.
func (s *SQLiteStore) AllPaths(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, kerrors.New(kerrors.ErrCodeIndexClosed, "index is closed", nil)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT path FROM documents_meta ORDER BY path`)
	if err != nil {
		return nil, kerrors.StorageError("failed to list paths", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, kerrors.StorageError("failed to scan path", err)
		}
		paths = append(paths, p)
	}

	return paths, rows.Err()
}

// Stats summarizes index contents.
func (s *SQLiteStore) Stats(ctx context.Context) (*IndexStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, kerrors.New(kerrors.ErrCodeIndexClosed, "index is closed", nil)
	}

	stats := &IndexStats{RootCounts: make(map[string]int)}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(token_count), 0) FROM documents_meta`).
		Scan(&stats.DocumentCount, &stats.TotalTokens)
	if err != nil {
		return nil, kerrors.StorageError("failed to compute stats", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT root_path, COUNT(*) FROM documents_meta GROUP BY root_path`)
	if err != nil {
		return nil, kerrors.StorageError("failed to compute root counts", err)
	}
	defer rows.Close()

	for rows.Next() {
		var root string
		var n int
		if err := rows.Scan(&root, &n); err != nil {
			return nil, kerrors.StorageError("failed to scan root count", err)
		}
		stats.RootCounts[root] = n
	}

	return stats, rows.Err()
}

// Save forces a WAL checkpoint so everything lands in the main database.
func (s *SQLiteStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return kerrors.New(kerrors.ErrCodeIndexClosed, "index is closed", nil)
	}

	_, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	if err != nil {
		return kerrors.StorageError("failed to checkpoint", err)
	}
	return nil
}

// Close checkpoints and closes the database. Idempotent.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}
