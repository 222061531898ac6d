// Package config loads pipeline configuration from the environment, with a
// best-effort .env file for local development.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	// Paths
	SourcePath string `envconfig:"SOURCE_PATH" default:"data/prompt-patterns.json"`
	OutputDir  string `envconfig:"OUTPUT_DIR" default:"embeddings"`

	// Provider
	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-large"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"3072"`

	// Resilience
	MinCallIntervalMs int `envconfig:"MIN_CALL_INTERVAL_MS" default:"100"`
	MaxRetryAttempts  int `envconfig:"MAX_RETRY_ATTEMPTS" default:"3"`
	BreakerThreshold  int `envconfig:"BREAKER_THRESHOLD" default:"5"`

	// Pipeline
	Workers   int `envconfig:"WORKERS" default:"1"`
	CacheSize int `envconfig:"EMBED_CACHE_SIZE" default:"10000"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads configuration from the environment. A .env file in the
// working directory is honored when present; shell variables win.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.SourcePath == "" {
		return fmt.Errorf("%w: SOURCE_PATH", ErrInvalidConfig)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("%w: OUTPUT_DIR", ErrInvalidConfig)
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("%w: EMBEDDING_DIMENSIONS must be positive", ErrInvalidConfig)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: WORKERS must be at least 1", ErrInvalidConfig)
	}
	if c.MinCallIntervalMs < 0 {
		return fmt.Errorf("%w: MIN_CALL_INTERVAL_MS cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// MinCallInterval returns the rate limiter's minimum inter-call interval.
func (c *Config) MinCallInterval() time.Duration {
	return time.Duration(c.MinCallIntervalMs) * time.Millisecond
}

// SlogLevel maps the configured level string onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
