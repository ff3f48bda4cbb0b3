package scanner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func collect(t *testing.T, s *Scanner, opts *ScanOptions) []string {
	t.Helper()
	results, err := s.Scan(context.Background(), opts)
	require.NoError(t, err)

	var paths []string
	for r := range results {
		require.NoError(t, r.Error)
		paths = append(paths, filepath.ToSlash(r.File.Path))
	}
	return paths
}

func TestScan_ExtensionAllowList(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "notes.md", "# メモ")
	writeFile(t, root, "report.txt", "報告書")
	writeFile(t, root, "main.go", "package main")
	writeFile(t, root, "image.png", "not really an image")

	s, err := New()
	require.NoError(t, err)

	paths := collect(t, s, &ScanOptions{
		RootDir:           root,
		IncludeExtensions: []string{".md", ".txt"},
	})

	assert.ElementsMatch(t, []string{"notes.md", "report.txt"}, paths)
}

func TestScan_HiddenSkipped(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "visible.md", "ok")
	writeFile(t, root, ".hidden.md", "no")
	writeFile(t, root, ".config/deep.md", "no")

	s, err := New()
	require.NoError(t, err)

	paths := collect(t, s, &ScanOptions{RootDir: root, IncludeExtensions: []string{".md"}})
	assert.Equal(t, []string{"visible.md"}, paths)

	withHidden := collect(t, s, &ScanOptions{
		RootDir:           root,
		IncludeExtensions: []string{".md"},
		IncludeHidden:     true,
	})
	assert.ElementsMatch(t, []string{"visible.md", ".hidden.md", ".config/deep.md"}, withHidden)
}

func TestScan_DefaultExcludeDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/guide.md", "ok")
	writeFile(t, root, "node_modules/pkg/readme.md", "no")
	writeFile(t, root, "sub/vendor/lib/doc.md", "no")

	s, err := New()
	require.NoError(t, err)

	paths := collect(t, s, &ScanOptions{RootDir: root, IncludeExtensions: []string{".md"}})
	assert.Equal(t, []string{"docs/guide.md"}, paths)
}

func TestScan_CustomExcludePatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.md", "ok")
	writeFile(t, root, "drafts/wip.md", "no")
	writeFile(t, root, "old.bak.md", "no")

	s, err := New()
	require.NoError(t, err)

	paths := collect(t, s, &ScanOptions{
		RootDir:           root,
		IncludeExtensions: []string{".md"},
		ExcludePatterns:   []string{"drafts/**", "*.bak.md"},
	})
	assert.Equal(t, []string{"keep.md"}, paths)
}

func TestScan_Gitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "*.tmp.md\nscratch/\n")
	writeFile(t, root, "keep.md", "ok")
	writeFile(t, root, "draft.tmp.md", "no")
	writeFile(t, root, "scratch/note.md", "no")

	s, err := New()
	require.NoError(t, err)

	paths := collect(t, s, &ScanOptions{
		RootDir:           root,
		IncludeExtensions: []string{".md"},
		RespectGitignore:  true,
	})
	assert.Equal(t, []string{"keep.md"}, paths)
}

func TestScan_NestedGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "sub/.gitignore", "local.md\n")
	writeFile(t, root, "sub/local.md", "no")
	writeFile(t, root, "sub/keep.md", "ok")
	writeFile(t, root, "local.md", "ok, only ignored under sub/")

	s, err := New()
	require.NoError(t, err)

	paths := collect(t, s, &ScanOptions{
		RootDir:           root,
		IncludeExtensions: []string{".md"},
		RespectGitignore:  true,
	})
	assert.ElementsMatch(t, []string{"sub/keep.md", "local.md"}, paths)
}

func TestScan_GitignoreDisabled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "*.md\n")
	writeFile(t, root, "doc.md", "ok")

	s, err := New()
	require.NoError(t, err)

	paths := collect(t, s, &ScanOptions{RootDir: root, IncludeExtensions: []string{".md"}})
	assert.Equal(t, []string{"doc.md"}, paths)
}

func TestScan_BinarySkipped(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "text.txt", "plain text")
	binPath := filepath.Join(root, "blob.txt")
	require.NoError(t, os.WriteFile(binPath, []byte{'a', 0x00, 'b'}, 0o644))

	s, err := New()
	require.NoError(t, err)

	paths := collect(t, s, &ScanOptions{RootDir: root, IncludeExtensions: []string{".txt"}})
	assert.Equal(t, []string{"text.txt"}, paths)
}

func TestScan_SizeCap(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "small.txt", "ok")
	writeFile(t, root, "big.txt", strings.Repeat("長い文章です。", 100))

	s, err := New()
	require.NoError(t, err)

	paths := collect(t, s, &ScanOptions{
		RootDir:           root,
		IncludeExtensions: []string{".txt"},
		MaxFileSize:       100,
	})
	assert.Equal(t, []string{"small.txt"}, paths)
}

func TestScan_SensitiveFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "notes.txt", "ok")
	writeFile(t, root, "credentials.txt", "secret")
	writeFile(t, root, "passwords.txt", "secret")

	s, err := New()
	require.NoError(t, err)

	paths := collect(t, s, &ScanOptions{RootDir: root, IncludeExtensions: []string{".txt"}})
	assert.Equal(t, []string{"notes.txt"}, paths)
}

func TestScan_SymlinksNotFollowed(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	writeFile(t, outside, "target.md", "outside")
	writeFile(t, root, "real.md", "ok")

	link := filepath.Join(root, "link.md")
	if err := os.Symlink(filepath.Join(outside, "target.md"), link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	s, err := New()
	require.NoError(t, err)

	paths := collect(t, s, &ScanOptions{RootDir: root, IncludeExtensions: []string{".md"}})
	assert.Equal(t, []string{"real.md"}, paths)
}

func TestScan_NotADirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "file.md", "x")

	s, err := New()
	require.NoError(t, err)

	_, err = s.Scan(context.Background(), &ScanOptions{RootDir: filepath.Join(root, "file.md")})
	assert.Error(t, err)
}

func TestScan_MissingRoot(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	_, err = s.Scan(context.Background(), &ScanOptions{RootDir: filepath.Join(t.TempDir(), "nope")})
	assert.Error(t, err)
}

func TestMatchesExtension(t *testing.T) {
	assert.True(t, matchesExtension("a/b/doc.md", []string{".md"}))
	assert.True(t, matchesExtension("DOC.MD", []string{".md"}))
	assert.False(t, matchesExtension("main.go", []string{".md", ".txt"}))
	assert.True(t, matchesExtension("anything.xyz", nil), "empty allow-list admits everything")
}
