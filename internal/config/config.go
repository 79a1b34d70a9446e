package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

type Config struct {
	Port                 string        `env:"PORT" envDefault:"8080"`
	Environment          string        `env:"ENVIRONMENT" envDefault:"development"`
	LogLevelName         string        `env:"LOG_LEVEL" envDefault:"info"`
	ContentDir           string        `env:"CONTENT_DIR" envDefault:"data"`
	StoreBackend         string        `env:"STORE_BACKEND" envDefault:"memory"`
	RedisURL             string        `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	SQLitePath           string        `env:"SQLITE_PATH" envDefault:"heartline.db"`
	AutosaveInterval     time.Duration `env:"AUTOSAVE_INTERVAL" envDefault:"5m"`
	MaxSaveSlots         int           `env:"MAX_SAVE_SLOTS" envDefault:"20"`
	MaxDailyInteractions int           `env:"MAX_DAILY_INTERACTIONS" envDefault:"3"`
	PlayerName           string        `env:"PLAYER_NAME" envDefault:"Player"`

	LogLevel slog.Level
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first when present; real environment
// variables win over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.LogLevelName)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values the env parser cannot.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendRedis, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.MaxSaveSlots < 2 {
		return fmt.Errorf("MAX_SAVE_SLOTS must be at least 2, got %d", c.MaxSaveSlots)
	}
	if c.MaxDailyInteractions < 0 {
		return fmt.Errorf("MAX_DAILY_INTERACTIONS must not be negative, got %d", c.MaxDailyInteractions)
	}
	if c.AutosaveInterval < 0 {
		return fmt.Errorf("AUTOSAVE_INTERVAL must not be negative, got %s", c.AutosaveInterval)
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
