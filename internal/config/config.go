// Package config loads and validates the process configuration from the
// environment.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	// TickInterval drives UI countdown refresh. It is never load-bearing
	// for correctness; countdowns derive from stored timestamps.
	TickInterval time.Duration `env:"TICK_INTERVAL" default:"1s"`

	SettingsCacheTTL time.Duration `env:"SETTINGS_CACHE_TTL" default:"30s"`

	MaxSurfaceConnections int `env:"MAX_SURFACE_CONNECTIONS" default:"1000"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := map[string]string{
		"DATABASE_URL": cfg.DatabaseURL,
		"REDIS_URL":    cfg.RedisURL,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if cfg.TickInterval < 100*time.Millisecond {
		return fmt.Errorf("TICK_INTERVAL must be at least 100ms, got %s", cfg.TickInterval)
	}

	return nil
}
