// Package config loads runtime settings from defaults, an optional config
// file and SPEND_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Log         LogConfig         `mapstructure:"log"`
	Categorizer CategorizerConfig `mapstructure:"categorizer"`
	Gemini      GeminiConfig      `mapstructure:"gemini"`
	Rewards     RewardsConfig     `mapstructure:"rewards"`
	BigQuery    BigQueryConfig    `mapstructure:"bigquery"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Jobs        JobsConfig        `mapstructure:"jobs"`
}

// LogConfig selects log verbosity and output format ("console" or "json").
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CategorizerConfig controls keyword rules and the entity-recognition fallback.
type CategorizerConfig struct {
	// RulesFile points at a YAML rules table; empty means the built-in table.
	RulesFile       string        `mapstructure:"rules_file"`
	Recognizer      string        `mapstructure:"recognizer"` // "gemini" or "none"
	FallbackTimeout time.Duration `mapstructure:"fallback_timeout"`
	Concurrency     int           `mapstructure:"concurrency"`
}

// GeminiConfig holds model settings for the entity recognizer.
type GeminiConfig struct {
	APIKeyEnv string `mapstructure:"api_key_env"`
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
}

// RewardsConfig selects the ledger store.
type RewardsConfig struct {
	Store          string `mapstructure:"store"` // "memory", "sqlite" or "bigquery"
	SQLitePath     string `mapstructure:"sqlite_path"`
	CurrencySymbol string `mapstructure:"currency_symbol"`
}

// BigQueryConfig identifies the dataset holding ledger and report tables.
type BigQueryConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Dataset   string `mapstructure:"dataset"`
}

// StorageConfig holds Cloud Storage settings.
type StorageConfig struct {
	Bucket string `mapstructure:"bucket"`
}

// JobsConfig sizes the in-memory analysis queue.
type JobsConfig struct {
	Workers    int `mapstructure:"workers"`
	BufferSize int `mapstructure:"buffer_size"`
	MaxRetries int `mapstructure:"max_retries"`
}

// ResolvedAPIKey returns the explicit API key or, failing that, the value of
// the configured environment variable.
func (g GeminiConfig) ResolvedAPIKey() string {
	if g.APIKey != "" {
		return g.APIKey
	}
	if g.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(g.APIKeyEnv)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("categorizer.rules_file", "")
	v.SetDefault("categorizer.recognizer", "none")
	v.SetDefault("categorizer.fallback_timeout", 5*time.Second)
	v.SetDefault("categorizer.concurrency", 4)

	v.SetDefault("gemini.api_key_env", "GEMINI_API_KEY")
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")

	v.SetDefault("rewards.store", "sqlite")
	v.SetDefault("rewards.sqlite_path", filepath.Join(os.Getenv("HOME"), ".local", "share", "spend-insights", "rewards.db"))
	v.SetDefault("rewards.currency_symbol", "₹")

	v.SetDefault("bigquery.project_id", "")
	v.SetDefault("bigquery.dataset", "finance")

	v.SetDefault("storage.bucket", "")

	v.SetDefault("jobs.workers", 5)
	v.SetDefault("jobs.buffer_size", 100)
	v.SetDefault("jobs.max_retries", 3)
}

// Load reads configuration from file and env. Env var overrides use prefix SPEND_,
// e.g. SPEND_REWARDS_STORE=sqlite. SPEND_CONFIG points at an explicit config file.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	cfgPath := os.Getenv("SPEND_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigType("toml")
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "spend-insights"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("SPEND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// An explicitly requested file must exist; the default location is optional.
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects settings the rest of the program cannot work with.
func (c Config) Validate() error {
	switch c.Rewards.Store {
	case "memory", "sqlite", "bigquery":
	default:
		return fmt.Errorf("config: unknown rewards.store %q (want memory, sqlite or bigquery)", c.Rewards.Store)
	}
	switch c.Categorizer.Recognizer {
	case "none", "gemini":
	default:
		return fmt.Errorf("config: unknown categorizer.recognizer %q (want none or gemini)", c.Categorizer.Recognizer)
	}
	if c.Rewards.Store == "bigquery" && c.BigQuery.ProjectID == "" {
		return fmt.Errorf("config: bigquery.project_id is required when rewards.store is bigquery")
	}
	if c.Categorizer.Concurrency < 1 {
		return fmt.Errorf("config: categorizer.concurrency must be at least 1")
	}
	if c.Jobs.Workers < 1 {
		return fmt.Errorf("config: jobs.workers must be at least 1")
	}
	return nil
}
