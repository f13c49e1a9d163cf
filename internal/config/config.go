package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all configuration for the podmint CLI and workers.
type Config struct {
	DatabaseURL string `env:"PODMINT_DATABASE_URL" envDefault:"postgres://localhost:5432/podmint?sslmode=disable"`
	RedisURL    string `env:"PODMINT_REDIS_URL" envDefault:"redis://localhost:6379/0"`

	// DeltaMin is the Layer A novelty bar.
	DeltaMin float64 `env:"PODMINT_DELTA_MIN" envDefault:"0.1"`

	// Workers sizes the allocation consumer pool.
	Workers int `env:"PODMINT_WORKERS" envDefault:"4"`
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
