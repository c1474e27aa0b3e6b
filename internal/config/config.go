// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Upstream timeout and retry bounds.
const (
	MinUpstreamTimeout = 5 * time.Second
	MaxUpstreamTimeout = 10 * time.Second
	MaxUpstreamRetries = 3
)

// Config is the process configuration. Every field maps to one env var.
type Config struct {
	// Upstream market data provider.
	UpstreamURL       string        `env:"LIVECOIN_API_URL,default=https://api.livecoinwatch.com"`
	UpstreamAPIKey    string        `env:"LIVECOIN_API_KEY"`
	UpstreamTimeout   time.Duration `env:"LIVECOIN_TIMEOUT,default=8s"`
	UpstreamRetries   int           `env:"LIVECOIN_RETRIES,default=2"`
	UpstreamRateLimit float64       `env:"LIVECOIN_RATE_LIMIT,default=5"`
	UpstreamRateBurst int           `env:"LIVECOIN_RATE_BURST,default=5"`

	// Storage.
	RedisURL      string `env:"REDIS_URL"`
	PostgresDSN   string `env:"POSTGRES_DSN"`
	ClickHouseDSN string `env:"CLICKHOUSE_DSN"`
	UseMemory     bool   `env:"USE_MEMORY,default=false"`

	// HTTP surface.
	HTTPAddr       string        `env:"HTTP_ADDR,default=:8080"`
	StreamInterval time.Duration `env:"CHART_STREAM_INTERVAL,default=60s"`

	// Logging.
	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=text"`
}

// LoadEnvFile loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads envFile (if present) and decodes the environment into a Config.
func Load(envFile string) (*Config, error) {
	if err := LoadEnvFile(envFile); err != nil {
		return nil, err
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode env: %w", err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Normalize clamps upstream timeout and retries into their allowed ranges.
func (c *Config) Normalize() {
	if c.UpstreamTimeout < MinUpstreamTimeout {
		c.UpstreamTimeout = MinUpstreamTimeout
	}
	if c.UpstreamTimeout > MaxUpstreamTimeout {
		c.UpstreamTimeout = MaxUpstreamTimeout
	}
	if c.UpstreamRetries < 0 {
		c.UpstreamRetries = 0
	}
	if c.UpstreamRetries > MaxUpstreamRetries {
		c.UpstreamRetries = MaxUpstreamRetries
	}
	if c.StreamInterval <= 0 {
		c.StreamInterval = 60 * time.Second
	}
}

// Validate checks that required settings are present for the chosen mode.
func (c *Config) Validate() error {
	if c.UpstreamAPIKey == "" {
		return errors.New("LIVECOIN_API_KEY is required")
	}
	if !c.UseMemory && c.PostgresDSN == "" {
		return errors.New("POSTGRES_DSN is required (set USE_MEMORY=true for in-memory storage)")
	}
	return nil
}
