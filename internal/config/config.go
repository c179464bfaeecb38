// Package config loads process settings from an optional YAML file and the environment.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type (
	Config struct {
		HTTP      HTTPConfig      `yaml:"http"`
		Log       LogConfig       `yaml:"log"`
		Database  DatabaseConfig  `yaml:"database"`
		RateLimit RateLimitConfig `yaml:"rate_limit"`
	}

	HTTPConfig struct {
		Port              string        `yaml:"port" env:"PORT" env-default:"8080"`
		ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"HTTP_READ_HEADER_TIMEOUT" env-default:"10s"`
		IdleTimeout       time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"120s"`
		ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
	}

	// LogConfig selects the level and the handlers. Format "both" writes
	// text to stdout and JSON to stderr.
	LogConfig struct {
		Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
		Format string `yaml:"format" env:"LOG_FORMAT" env-default:"both"`
	}

	DatabaseConfig struct {
		Driver      string        `yaml:"driver" env:"DATABASE_DRIVER" env-default:"sqlite"`
		Path        string        `yaml:"path" env:"DATABASE_PATH" env-default:"portfolio-users.db"`
		URL         string        `yaml:"url" env:"DATABASE_URL"`
		MaxConns    int32         `yaml:"max_conns" env:"DB_MAX_CONNS" env-default:"10"`
		ConnTimeout time.Duration `yaml:"conn_timeout" env:"DB_CONN_TIMEOUT" env-default:"5s"`
	}

	// RateLimitConfig bounds write requests per client IP.
	RateLimitConfig struct {
		RequestsPerSecond float64 `yaml:"requests_per_second" env:"RATE_LIMIT_RPS" env-default:"5"`
		Burst             float64 `yaml:"burst" env:"RATE_LIMIT_BURST" env-default:"20"`
	}
)

// Load reads the YAML file named by CONFIG_PATH when set, then applies
// environment overrides and defaults. The result is validated.
func Load() (*Config, error) {
	cfg := &Config{}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the process cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q (expected %s or %s)", c.Database.Driver, DriverSQLite, DriverPostgres)
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json", "both":
	default:
		return fmt.Errorf("unknown log format %q (expected text, json or both)", c.Log.Format)
	}

	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 1 {
		return fmt.Errorf("rate limit needs requests_per_second >= 0 and burst >= 1")
	}
	return nil
}

// NewLogger builds the process logger described by c.
func (c LogConfig) NewLogger(stdout, stderr io.Writer) *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	switch c.Format {
	case "text":
		return slog.New(slog.NewTextHandler(stdout, opts))
	case "json":
		return slog.New(slog.NewJSONHandler(stderr, opts))
	}
	return slog.New(slog.NewMultiHandler(
		slog.NewTextHandler(stdout, opts),
		slog.NewJSONHandler(stderr, opts),
	))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
