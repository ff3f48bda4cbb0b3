package store

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kensakudev/kensaku/internal/tokenizer"
)

var testTokenizer *tokenizer.Tokenizer

func getTokenizer(t *testing.T) *tokenizer.Tokenizer {
	t.Helper()
	if testTokenizer == nil {
		tk, err := tokenizer.New()
		require.NoError(t, err)
		testTokenizer = tk
	}
	return testTokenizer
}

// makeDoc tokenizes text the way the indexer would.
func makeDoc(t *testing.T, path, root, text string) *Document {
	t.Helper()
	tokens, err := getTokenizer(t).Tokenize(text)
	require.NoError(t, err)

	return &Document{
		Path:         path,
		RootPath:     root,
		Content:      tokenizer.JoinSurfaces(tokens),
		Terms:        tokenizer.JoinTerms(tokens),
		TokenOffsets: tokenizer.PackOffsets(tokens),
		SizeBytes:    int64(len(text)),
		ModTime:      time.Now(),
		TokenCount:   len(tokens),
	}
}

// eachBackend runs a subtest against a fresh in-memory store of each
// backend.
func eachBackend(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()

	backends := map[string]func(t *testing.T) Store{
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore("")
			require.NoError(t, err)
			return s
		},
		"bleve": func(t *testing.T) Store {
			s, err := NewBleveStore("")
			require.NoError(t, err)
			return s
		},
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer func() { _ = s.Close() }()
			fn(t, s)
		})
	}
}

func TestSearch_SurfaceQueryMatches(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		doc := makeDoc(t, "/docs/wagahai.txt", "/docs", "吾輩は猫である。名前はまだ無い。")
		require.NoError(t, s.ReplaceRoot(ctx, "/docs", []*Document{doc}))

		results, err := s.Search(ctx, &Query{Terms: []string{"猫"}, Limit: 5})
		require.NoError(t, err)
		require.Len(t, results, 1)

		assert.Equal(t, "/docs/wagahai.txt", results[0].Path)
		assert.Equal(t, "/docs", results[0].RootPath)
		assert.Contains(t, results[0].Snippet, HighlightStart+"猫"+HighlightEnd)
		assert.Greater(t, results[0].Score, 0.0)
	})
}

func TestSearch_BaseFormMatchesConjugated(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		// Document contains 走った; the stored terms hold the base form 走る.
		doc := makeDoc(t, "/docs/run.txt", "/docs", "猫が庭を走った")
		require.NoError(t, s.ReplaceRoot(ctx, "/docs", []*Document{doc}))

		results, err := s.Search(ctx, &Query{Terms: []string{"走る"}, Limit: 5})
		require.NoError(t, err)
		require.Len(t, results, 1)
		// The snippet shows the surface form as written.
		assert.Contains(t, results[0].Snippet, "走っ")
	})
}

func TestSearch_AllTermsRequired(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		docs := []*Document{
			makeDoc(t, "/docs/both.txt", "/docs", "猫と犬が好きです"),
			makeDoc(t, "/docs/cat.txt", "/docs", "猫が好きです"),
		}
		require.NoError(t, s.ReplaceRoot(ctx, "/docs", docs))

		results, err := s.Search(ctx, &Query{Terms: []string{"猫", "犬"}, Limit: 5})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "/docs/both.txt", results[0].Path)
	})
}

func TestSearch_RankingByFrequency(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		docs := []*Document{
			makeDoc(t, "/docs/once.txt", "/docs", "猫がいる。犬もいる。鳥もいる。魚もいる。"),
			makeDoc(t, "/docs/many.txt", "/docs", "猫と猫と猫。猫だらけの部屋。"),
		}
		require.NoError(t, s.ReplaceRoot(ctx, "/docs", docs))

		results, err := s.Search(ctx, &Query{Terms: []string{"猫"}, Limit: 5})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "/docs/many.txt", results[0].Path,
			"document mentioning the term more should rank first")
	})
}

func TestSearch_Limit(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		docs := []*Document{
			makeDoc(t, "/docs/a.txt", "/docs", "猫の話"),
			makeDoc(t, "/docs/b.txt", "/docs", "猫の本"),
			makeDoc(t, "/docs/c.txt", "/docs", "猫の絵"),
		}
		require.NoError(t, s.ReplaceRoot(ctx, "/docs", docs))

		results, err := s.Search(ctx, &Query{Terms: []string{"猫"}, Limit: 2})
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})
}

func TestSearch_PathPrefixFilter(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		docs := []*Document{
			makeDoc(t, "/docs/guides/a.txt", "/docs", "猫の飼い方"),
			makeDoc(t, "/docs/notes/b.txt", "/docs", "猫の観察記録"),
		}
		require.NoError(t, s.ReplaceRoot(ctx, "/docs", docs))

		results, err := s.Search(ctx, &Query{
			Terms:      []string{"猫"},
			Limit:      5,
			PathPrefix: "/docs/guides",
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "/docs/guides/a.txt", results[0].Path)
	})
}

func TestSearch_ExtensionsFilter(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		docs := []*Document{
			makeDoc(t, "/docs/a.md", "/docs", "猫のマークダウン"),
			makeDoc(t, "/docs/b.txt", "/docs", "猫のテキスト"),
		}
		require.NoError(t, s.ReplaceRoot(ctx, "/docs", docs))

		results, err := s.Search(ctx, &Query{
			Terms:      []string{"猫"},
			Limit:      5,
			Extensions: []string{".md"},
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "/docs/a.md", results[0].Path)
	})
}

func TestSearch_EmptyTerms(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		results, err := s.Search(ctx, &Query{Terms: nil, Limit: 5})
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestSearch_NoMatch(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		doc := makeDoc(t, "/docs/a.txt", "/docs", "犬の話")
		require.NoError(t, s.ReplaceRoot(ctx, "/docs", []*Document{doc}))

		results, err := s.Search(ctx, &Query{Terms: []string{"宇宙"}, Limit: 5})
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestSearch_MatchOffset(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		text := "吾輩は猫である"
		doc := makeDoc(t, "/docs/w.txt", "/docs", text)
		require.NoError(t, s.ReplaceRoot(ctx, "/docs", []*Document{doc}))

		results, err := s.Search(ctx, &Query{Terms: []string{"猫"}, Limit: 5})
		require.NoError(t, err)
		require.Len(t, results, 1)

		offset := results[0].MatchOffset
		require.GreaterOrEqual(t, offset, 0)
		assert.Equal(t, "猫", text[offset:offset+len("猫")])
	})
}

func TestReplaceRoot_RemovesStale(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		old := makeDoc(t, "/docs/old.txt", "/docs", "猫の古い記録")
		require.NoError(t, s.ReplaceRoot(ctx, "/docs", []*Document{old}))

		fresh := makeDoc(t, "/docs/new.txt", "/docs", "猫の新しい記録")
		require.NoError(t, s.ReplaceRoot(ctx, "/docs", []*Document{fresh}))

		paths, err := s.AllPaths(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"/docs/new.txt"}, paths)
	})
}

func TestReplaceRoot_CrossRootIsolation(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		a := makeDoc(t, "/a/doc.txt", "/a", "猫の話")
		b := makeDoc(t, "/b/doc.txt", "/b", "猫の話")
		require.NoError(t, s.ReplaceRoot(ctx, "/a", []*Document{a}))
		require.NoError(t, s.ReplaceRoot(ctx, "/b", []*Document{b}))

		// Reindexing /a must not disturb /b.
		require.NoError(t, s.ReplaceRoot(ctx, "/a", nil))

		paths, err := s.AllPaths(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"/b/doc.txt"}, paths)
	})
}

func TestReplaceRoot_PathMovesBetweenRoots(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		doc := makeDoc(t, "/outer/inner/doc.txt", "/outer", "猫")
		require.NoError(t, s.ReplaceRoot(ctx, "/outer", []*Document{doc}))

		// The same file reindexed under a narrower root replaces the old row.
		moved := makeDoc(t, "/outer/inner/doc.txt", "/outer/inner", "猫")
		require.NoError(t, s.ReplaceRoot(ctx, "/outer/inner", []*Document{moved}))

		root, found, err := s.RootForPath(ctx, "/outer/inner/doc.txt")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "/outer/inner", root)

		paths, err := s.AllPaths(ctx)
		require.NoError(t, err)
		assert.Len(t, paths, 1)
	})
}

func TestDeleteRoot(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		docs := []*Document{
			makeDoc(t, "/docs/a.txt", "/docs", "猫"),
			makeDoc(t, "/docs/b.txt", "/docs", "犬"),
		}
		require.NoError(t, s.ReplaceRoot(ctx, "/docs", docs))
		require.NoError(t, s.ReplaceRoot(ctx, "/other", []*Document{
			makeDoc(t, "/other/c.txt", "/other", "鳥"),
		}))

		n, err := s.DeleteRoot(ctx, "/docs")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		paths, err := s.AllPaths(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"/other/c.txt"}, paths)
	})
}

func TestDeleteRoot_Missing(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		n, err := s.DeleteRoot(context.Background(), "/nowhere")
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})
}

func TestUpsertAndDeleteDocument(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		doc := makeDoc(t, "/docs/a.txt", "/docs", "猫の話")
		require.NoError(t, s.UpsertDocument(ctx, doc))

		// Update in place.
		updated := makeDoc(t, "/docs/a.txt", "/docs", "犬の話")
		require.NoError(t, s.UpsertDocument(ctx, updated))

		results, err := s.Search(ctx, &Query{Terms: []string{"猫"}, Limit: 5})
		require.NoError(t, err)
		assert.Empty(t, results, "old content must be gone after upsert")

		results, err = s.Search(ctx, &Query{Terms: []string{"犬"}, Limit: 5})
		require.NoError(t, err)
		assert.Len(t, results, 1)

		ok, err := s.DeleteDocument(ctx, "/docs/a.txt")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.DeleteDocument(ctx, "/docs/a.txt")
		require.NoError(t, err)
		assert.False(t, ok, "second delete reports not found")
	})
}

func TestRootForPath(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		doc := makeDoc(t, "/docs/a.txt", "/docs", "猫")
		require.NoError(t, s.UpsertDocument(ctx, doc))

		root, found, err := s.RootForPath(ctx, "/docs/a.txt")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "/docs", root)

		_, found, err = s.RootForPath(ctx, "/docs/missing.txt")
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestListPaths_Pagination(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		docs := []*Document{
			makeDoc(t, "/docs/a.txt", "/docs", "一"),
			makeDoc(t, "/docs/b.txt", "/docs", "二"),
			makeDoc(t, "/docs/c.txt", "/docs", "三"),
		}
		require.NoError(t, s.ReplaceRoot(ctx, "/docs", docs))

		page, total, err := s.ListPaths(ctx, 2, 0)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Equal(t, []string{"/docs/a.txt", "/docs/b.txt"}, page)

		page, total, err = s.ListPaths(ctx, 2, 2)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Equal(t, []string{"/docs/c.txt"}, page)

		page, _, err = s.ListPaths(ctx, 2, 10)
		require.NoError(t, err)
		assert.Empty(t, page)
	})
}

func TestStats(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.ReplaceRoot(ctx, "/a", []*Document{
			makeDoc(t, "/a/1.txt", "/a", "猫の話"),
			makeDoc(t, "/a/2.txt", "/a", "犬の話"),
		}))
		require.NoError(t, s.ReplaceRoot(ctx, "/b", []*Document{
			makeDoc(t, "/b/1.txt", "/b", "鳥の話"),
		}))

		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.DocumentCount)
		assert.Equal(t, 2, stats.RootCounts["/a"])
		assert.Equal(t, 1, stats.RootCounts["/b"])
		assert.Greater(t, stats.TotalTokens, int64(0))
	})
}

func TestClose_Idempotent(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		require.NoError(t, s.Close())
		require.NoError(t, s.Close())

		_, err := s.Search(context.Background(), &Query{Terms: []string{"猫"}})
		assert.Error(t, err)
	})
}

func TestSearch_QuerySyntaxIsLiteral(t *testing.T) {
	eachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		doc := makeDoc(t, "/docs/a.txt", "/docs", "猫の話")
		require.NoError(t, s.ReplaceRoot(ctx, "/docs", []*Document{doc}))

		// FTS5 operators in query terms must not be interpreted.
		for _, term := range []string{`"`, `AND`, `cat OR dog`, `*`} {
			results, err := s.Search(ctx, &Query{Terms: []string{term}, Limit: 5})
			require.NoError(t, err, "term %q", term)
			assert.Empty(t, results, "term %q", term)
		}
	})
}

func TestBuildMatchExpr(t *testing.T) {
	assert.Equal(t, `"猫"`, buildMatchExpr([]string{"猫"}))
	assert.Equal(t, `"猫" "犬"`, buildMatchExpr([]string{"猫", "犬"}))
	assert.Equal(t, `"a""b"`, buildMatchExpr([]string{`a"b`}))
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewSQLiteStore(dir + "/index.db")
	require.NoError(t, err)
	require.NoError(t, s.ReplaceRoot(ctx, "/docs", []*Document{
		makeDoc(t, "/docs/a.txt", "/docs", "吾輩は猫である"),
	}))
	require.NoError(t, s.Save())
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(dir + "/index.db")
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	results, err := reopened.Search(ctx, &Query{Terms: []string{"猫"}, Limit: 5})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSQLiteStore_ClearsCorruptDatabase(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/index.db"
	require.NoError(t, writeGarbage(path))

	s, err := NewSQLiteStore(path)
	require.NoError(t, err, "corrupt database should be cleared, not fatal")
	defer func() { _ = s.Close() }()

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.DocumentCount)
}

func writeGarbage(path string) error {
	return os.WriteFile(path, []byte(strings.Repeat("not a database", 100)), 0o644)
}
