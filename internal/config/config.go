// Package config loads and validates kensaku configuration from YAML files
// and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete kensaku configuration.
type Config struct {
	Version int          `yaml:"version" json:"version"`
	Index   IndexConfig  `yaml:"index" json:"index"`
	Search  SearchConfig `yaml:"search" json:"search"`
	Watch   WatchConfig  `yaml:"watch" json:"watch"`
	Server  ServerConfig `yaml:"server" json:"server"`
}

// IndexConfig configures what gets indexed and where the index lives.
type IndexConfig struct {
	// DataDir is where index databases are stored. Defaults to ~/.kensaku.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// IncludeExtensions is the allow-list of file extensions to index.
	IncludeExtensions []string `yaml:"include_extensions" json:"include_extensions"`

	// Exclude lists glob patterns for paths to skip.
	Exclude []string `yaml:"exclude" json:"exclude"`

	// MaxFileSizeMB caps the size of files eligible for indexing.
	MaxFileSizeMB int `yaml:"max_file_size_mb" json:"max_file_size_mb"`

	// FollowSymlinks controls whether symlinked files and directories
	// are followed during scanning.
	FollowSymlinks bool `yaml:"follow_symlinks" json:"follow_symlinks"`

	// RespectGitignore honors .gitignore files found during scanning.
	RespectGitignore bool `yaml:"respect_gitignore" json:"respect_gitignore"`

	// IncludeHidden includes dotfiles and dot-directories.
	IncludeHidden bool `yaml:"include_hidden" json:"include_hidden"`

	// Workers is the tokenization worker count. 0 means NumCPU capped at 8.
	Workers int `yaml:"workers" json:"workers"`
}

// SearchConfig configures the search backend and result shaping.
type SearchConfig struct {
	// Backend selects the full-text index backend: "sqlite" or "bleve".
	Backend string `yaml:"backend" json:"backend"`

	// DefaultLimit is the result count when a query specifies none.
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`

	// MaxLimit is the ceiling any request is clamped to.
	MaxLimit int `yaml:"max_limit" json:"max_limit"`

	// SnippetTokens is the number of context tokens around a match.
	SnippetTokens int `yaml:"snippet_tokens" json:"snippet_tokens"`
}

// WatchConfig configures the file watcher.
type WatchConfig struct {
	// DebounceMS is the event coalescing window in milliseconds.
	DebounceMS int `yaml:"debounce_ms" json:"debounce_ms"`
}

// Debounce returns the coalescing window as a duration.
func (w WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMS) * time.Millisecond
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// defaultIncludeExtensions covers prose and structured-text formats.
// Source code and binaries are out of scope for a document index.
var defaultIncludeExtensions = []string{
	".txt", ".text", ".md", ".markdown", ".rst", ".org", ".adoc",
	".csv", ".tsv", ".log",
	".json", ".yaml", ".yml", ".toml", ".xml",
	".html", ".htm", ".tex",
}

// defaultExcludePatterns are always excluded.
var defaultExcludePatterns = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/target/**",
}

// NewConfig creates a Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Index: IndexConfig{
			DataDir:           DefaultDataDir(),
			IncludeExtensions: defaultIncludeExtensions,
			Exclude:           defaultExcludePatterns,
			MaxFileSizeMB:     4,
			FollowSymlinks:    false,
			RespectGitignore:  true,
			IncludeHidden:     false,
			Workers:           0,
		},
		Search: SearchConfig{
			Backend:       "sqlite",
			DefaultLimit:  5,
			MaxLimit:      50,
			SnippetTokens: 64,
		},
		Watch: WatchConfig{
			DebounceMS: 500,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

// DefaultDataDir returns the default index data directory (~/.kensaku).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".kensaku")
	}
	return filepath.Join(home, ".kensaku")
}

// EffectiveWorkers resolves the worker count: explicit value, or NumCPU
// capped at 8.
func (c *Config) EffectiveWorkers() int {
	if c.Index.Workers > 0 {
		return c.Index.Workers
	}
	n := runtime.NumCPU()
	if n > 8 {
		n = 8
	}
	return n
}

// GetUserConfigPath returns the path to the user configuration file,
// following the XDG Base Directory layout.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "kensaku", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "kensaku", "config.yaml")
	}
	return filepath.Join(home, ".config", "kensaku", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// Load loads configuration for the given directory, applying sources in
// order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/kensaku/config.yaml)
//  3. Project config (.kensaku.yaml in dir)
//  4. Environment variables (KENSAKU_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, err
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile tries .kensaku.yaml then .kensaku.yml in dir.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".kensaku.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".kensaku.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine, defaults apply.
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Index.DataDir != "" {
		c.Index.DataDir = other.Index.DataDir
	}
	if len(other.Index.IncludeExtensions) > 0 {
		c.Index.IncludeExtensions = other.Index.IncludeExtensions
	}
	if len(other.Index.Exclude) > 0 {
		// Extend the defaults rather than replace them.
		c.Index.Exclude = append(c.Index.Exclude, other.Index.Exclude...)
	}
	if other.Index.MaxFileSizeMB != 0 {
		c.Index.MaxFileSizeMB = other.Index.MaxFileSizeMB
	}
	if other.Index.FollowSymlinks {
		c.Index.FollowSymlinks = true
	}
	if other.Index.IncludeHidden {
		c.Index.IncludeHidden = true
	}
	if other.Index.Workers != 0 {
		c.Index.Workers = other.Index.Workers
	}

	if other.Search.Backend != "" {
		c.Search.Backend = other.Search.Backend
	}
	if other.Search.DefaultLimit != 0 {
		c.Search.DefaultLimit = other.Search.DefaultLimit
	}
	if other.Search.MaxLimit != 0 {
		c.Search.MaxLimit = other.Search.MaxLimit
	}
	if other.Search.SnippetTokens != 0 {
		c.Search.SnippetTokens = other.Search.SnippetTokens
	}

	if other.Watch.DebounceMS != 0 {
		c.Watch.DebounceMS = other.Watch.DebounceMS
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies KENSAKU_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("KENSAKU_DATA_DIR"); v != "" {
		c.Index.DataDir = v
	}
	if v := os.Getenv("KENSAKU_BACKEND"); v != "" {
		c.Search.Backend = v
	}
	if v := os.Getenv("KENSAKU_MAX_FILE_SIZE_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Index.MaxFileSizeMB = n
		}
	}
	if v := os.Getenv("KENSAKU_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Index.Workers = n
		}
	}
	if v := os.Getenv("KENSAKU_DEFAULT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.DefaultLimit = n
		}
	}
	if v := os.Getenv("KENSAKU_MAX_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.MaxLimit = n
		}
	}
	if v := os.Getenv("KENSAKU_RESPECT_GITIGNORE"); v != "" {
		c.Index.RespectGitignore = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("KENSAKU_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("KENSAKU_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
}

// FindProjectRoot finds the project root by walking up from startDir looking
// for a .git directory or a .kensaku.yaml/.yml file.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}
		if fileExists(filepath.Join(currentDir, ".kensaku.yaml")) ||
			fileExists(filepath.Join(currentDir, ".kensaku.yml")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validBackends := map[string]bool{"sqlite": true, "bleve": true}
	if !validBackends[strings.ToLower(c.Search.Backend)] {
		return fmt.Errorf("search.backend must be 'sqlite' or 'bleve', got %s", c.Search.Backend)
	}

	if c.Index.MaxFileSizeMB <= 0 {
		return fmt.Errorf("index.max_file_size_mb must be positive, got %d", c.Index.MaxFileSizeMB)
	}
	if c.Index.Workers < 0 {
		return fmt.Errorf("index.workers must be non-negative, got %d", c.Index.Workers)
	}

	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("search.default_limit must be positive, got %d", c.Search.DefaultLimit)
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("search.max_limit (%d) must be >= search.default_limit (%d)",
			c.Search.MaxLimit, c.Search.DefaultLimit)
	}
	if c.Search.SnippetTokens <= 0 {
		return fmt.Errorf("search.snippet_tokens must be positive, got %d", c.Search.SnippetTokens)
	}

	if c.Watch.DebounceMS < 0 {
		return fmt.Errorf("watch.debounce_ms must be non-negative, got %d", c.Watch.DebounceMS)
	}

	validTransports := map[string]bool{"stdio": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'stdio', got %s", c.Server.Transport)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
