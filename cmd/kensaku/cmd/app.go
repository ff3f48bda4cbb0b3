package cmd

import (
	"os"

	"github.com/kensakudev/kensaku/internal/config"
	"github.com/kensakudev/kensaku/internal/indexer"
	"github.com/kensakudev/kensaku/internal/scanner"
	"github.com/kensakudev/kensaku/internal/search"
	"github.com/kensakudev/kensaku/internal/store"
	"github.com/kensakudev/kensaku/internal/telemetry"
	"github.com/kensakudev/kensaku/internal/tokenizer"
	"github.com/kensakudev/kensaku/internal/ui"
)

// app bundles the wired collaborators a command needs: config, store,
// tokenizer, indexer, executor. Built once per command invocation.
type app struct {
	cfg      *config.Config
	store    store.Store
	tok      *tokenizer.Tokenizer
	scanner  *scanner.Scanner
	indexer  *indexer.Indexer
	executor *search.Executor
	metrics  *telemetry.QueryMetrics
}

// loadConfig loads the merged configuration for the enclosing project.
func loadConfig() (*config.Config, error) {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}
	return config.Load(root)
}

// newApp wires the full pipeline. A nil renderer keeps indexing silent.
// An existing index takes precedence over the configured backend so a
// config edit never silently starts from an empty index.
func newApp(cfg *config.Config, renderer ui.Renderer) (*app, error) {
	backend := cfg.Search.Backend
	if detected := store.DetectBackend(cfg.Index.DataDir); detected != "" {
		backend = string(detected)
	}

	st, err := store.Open(backend, cfg.Index.DataDir)
	if err != nil {
		return nil, err
	}

	tok, err := tokenizer.New()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	sc, err := scanner.New()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	ix, err := indexer.New(indexer.Dependencies{
		Config:    cfg,
		Tokenizer: tok,
		Store:     st,
		Scanner:   sc,
		Renderer:  renderer,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	metrics := telemetry.NewQueryMetrics()

	return &app{
		cfg:      cfg,
		store:    st,
		tok:      tok,
		scanner:  sc,
		indexer:  ix,
		executor: search.NewExecutor(cfg, tok, st, metrics),
		metrics:  metrics,
	}, nil
}

func (a *app) Close() {
	_ = a.store.Close()
}
