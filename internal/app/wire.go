// Package app builds the categorizer, stores and pipeline collaborators
// described by a config.Config. Command binaries share it.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dvloznov/spend-insights/internal/categorizer"
	"github.com/dvloznov/spend-insights/internal/config"
	"github.com/dvloznov/spend-insights/internal/gcsuploader"
	infraBQ "github.com/dvloznov/spend-insights/internal/infra/bigquery"
	"github.com/dvloznov/spend-insights/internal/logger"
	"github.com/dvloznov/spend-insights/internal/pipeline"
	"github.com/dvloznov/spend-insights/internal/rewards"
	"github.com/dvloznov/spend-insights/internal/rewards/inmemory"
	"github.com/dvloznov/spend-insights/internal/rewards/sqlite"
)

// Services holds the long-lived collaborators for one process.
type Services struct {
	Config      config.Config
	Categorizer *categorizer.Categorizer
	Ledger      *rewards.Ledger

	// BigQuery is nil unless bigquery.project_id is set.
	BigQuery *infraBQ.Repository

	closers []func() error
}

// New wires Services from cfg. Call Close when done.
func New(ctx context.Context, cfg config.Config) (*Services, error) {
	s := &Services{Config: cfg}

	if cfg.BigQuery.ProjectID != "" {
		repo, err := infraBQ.NewRepository(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.Dataset)
		if err != nil {
			return nil, fmt.Errorf("app.New: %w", err)
		}
		s.BigQuery = repo
		s.closers = append(s.closers, repo.Close)
	}

	cat, err := NewCategorizer(ctx, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Categorizer = cat

	store, err := s.rewardStore(cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Ledger = rewards.NewLedger(store, rewards.WithCurrencySymbol(cfg.Rewards.CurrencySymbol))

	return s, nil
}

// NewCategorizer builds a categorizer from the configured rules table and
// entity recognizer.
func NewCategorizer(ctx context.Context, cfg config.Config) (*categorizer.Categorizer, error) {
	rules := categorizer.DefaultRules()
	if cfg.Categorizer.RulesFile != "" {
		loaded, err := categorizer.LoadRules(cfg.Categorizer.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("NewCategorizer: %w", err)
		}
		rules = loaded
	}

	var recognizer categorizer.EntityRecognizer = categorizer.NoopRecognizer{}
	if cfg.Categorizer.Recognizer == "gemini" {
		apiKey := cfg.Gemini.ResolvedAPIKey()
		if apiKey == "" {
			log := logger.FromContext(ctx)
			log.Warn().
				Str("env", cfg.Gemini.APIKeyEnv).
				Msg("gemini recognizer requested without an API key, falling back to keyword rules only")
		} else {
			g, err := categorizer.NewGeminiRecognizer(ctx, apiKey, cfg.Gemini.Model)
			if err != nil {
				return nil, fmt.Errorf("NewCategorizer: %w", err)
			}
			recognizer = g
		}
	}

	return categorizer.New(rules, recognizer,
		categorizer.WithFallbackTimeout(cfg.Categorizer.FallbackTimeout),
		categorizer.WithConcurrency(cfg.Categorizer.Concurrency),
	), nil
}

func (s *Services) rewardStore(cfg config.Config) (rewards.Store, error) {
	switch cfg.Rewards.Store {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Rewards.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("creating rewards database directory: %w", err)
		}
		db, err := sqlite.Open(cfg.Rewards.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening rewards database: %w", err)
		}
		s.closers = append(s.closers, db.Close)
		return sqlite.NewStore(db), nil
	case "bigquery":
		if s.BigQuery == nil {
			return nil, fmt.Errorf("rewards store bigquery needs bigquery.project_id")
		}
		return s.BigQuery.RewardStore(), nil
	default:
		return inmemory.NewStore(), nil
	}
}

// PipelineDeps returns the analysis pipeline collaborators. BigQuery source
// and report sink are wired only when a project is configured.
func (s *Services) PipelineDeps() pipeline.Deps {
	deps := pipeline.Deps{
		Categorizer: s.Categorizer,
		Storage:     gcsuploader.NewGCSStorageService(),
	}
	if s.BigQuery != nil {
		deps.Source = s.BigQuery
		deps.Sink = s.BigQuery
		deps.Store = s.BigQuery
	}
	return deps
}

// Close releases every resource opened by New, last opened first.
func (s *Services) Close() error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}
