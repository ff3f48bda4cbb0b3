package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "sqlite", cfg.Search.Backend)
	assert.Equal(t, 5, cfg.Search.DefaultLimit)
	assert.Equal(t, 50, cfg.Search.MaxLimit)
	assert.Equal(t, 64, cfg.Search.SnippetTokens)
	assert.Equal(t, 4, cfg.Index.MaxFileSizeMB)
	assert.True(t, cfg.Index.RespectGitignore)
	assert.False(t, cfg.Index.IncludeHidden)
	assert.Equal(t, 500, cfg.Watch.DebounceMS)
	assert.Contains(t, cfg.Index.IncludeExtensions, ".md")
	assert.Contains(t, cfg.Index.IncludeExtensions, ".txt")
	assert.NotContains(t, cfg.Index.IncludeExtensions, ".go")

	require.NoError(t, cfg.Validate())
}

func TestLoad_NoConfigFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Search.Backend)
	assert.Equal(t, 5, cfg.Search.DefaultLimit)
}

func TestLoad_ProjectConfig(t *testing.T) {
	dir := t.TempDir()
	content := `version: 1
index:
  max_file_size_mb: 8
  include_extensions: [".md", ".txt"]
search:
  backend: bleve
  default_limit: 10
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".kensaku.yaml"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "bleve", cfg.Search.Backend)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, 8, cfg.Index.MaxFileSizeMB)
	assert.Equal(t, []string{".md", ".txt"}, cfg.Index.IncludeExtensions)
	// Unset keys keep their defaults.
	assert.Equal(t, 50, cfg.Search.MaxLimit)
	assert.Equal(t, 500, cfg.Watch.DebounceMS)
}

func TestLoad_YmlFallback(t *testing.T) {
	dir := t.TempDir()
	content := "search:\n  default_limit: 7\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".kensaku.yml"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Search.DefaultLimit)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	content := "search:\n  backend: sqlite\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".kensaku.yaml"), []byte(content), 0o644))

	t.Setenv("KENSAKU_BACKEND", "bleve")
	t.Setenv("KENSAKU_DEFAULT_LIMIT", "3")
	t.Setenv("KENSAKU_DATA_DIR", "/tmp/kensaku-test-data")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "bleve", cfg.Search.Backend)
	assert.Equal(t, 3, cfg.Search.DefaultLimit)
	assert.Equal(t, "/tmp/kensaku-test-data", cfg.Index.DataDir)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".kensaku.yaml"), []byte("search: [not a map"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad backend", func(c *Config) { c.Search.Backend = "elasticsearch" }},
		{"zero file size", func(c *Config) { c.Index.MaxFileSizeMB = 0 }},
		{"negative workers", func(c *Config) { c.Index.Workers = -1 }},
		{"zero default limit", func(c *Config) { c.Search.DefaultLimit = 0 }},
		{"max below default", func(c *Config) { c.Search.MaxLimit = 2 }},
		{"zero snippet tokens", func(c *Config) { c.Search.SnippetTokens = 0 }},
		{"negative debounce", func(c *Config) { c.Watch.DebounceMS = -1 }},
		{"bad transport", func(c *Config) { c.Server.Transport = "sse" }},
		{"bad log level", func(c *Config) { c.Server.LogLevel = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEffectiveWorkers(t *testing.T) {
	cfg := NewConfig()

	cfg.Index.Workers = 3
	assert.Equal(t, 3, cfg.EffectiveWorkers())

	cfg.Index.Workers = 0
	n := cfg.EffectiveWorkers()
	assert.Greater(t, n, 0)
	assert.LessOrEqual(t, n, 8)
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	nested := filepath.Join(root, "docs", "guides")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := FindProjectRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, found)
}

func TestFindProjectRoot_ConfigMarker(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".kensaku.yaml"), []byte("version: 1\n"), 0o644))
	nested := filepath.Join(root, "sub")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := FindProjectRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, found)
}

func TestWriteYAML_Roundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".kensaku.yaml")

	cfg := NewConfig()
	cfg.Search.DefaultLimit = 12
	require.NoError(t, cfg.WriteYAML(path))

	loaded := NewConfig()
	require.NoError(t, loaded.loadYAML(path))
	assert.Equal(t, 12, loaded.Search.DefaultLimit)
}
