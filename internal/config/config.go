// Package config provides environment-driven configuration for the fluxtrace server.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Secret wraps a sensitive string to prevent accidental logging or marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Config holds all application configuration values.
type Config struct {
	DatabaseURL     Secret
	GraphFile       string
	Port            string
	ListenHost      string
	MetricsPort     string
	LogLevel        string
	CORSOrigins     []string
	APIKey          Secret
	DBMaxConns      int
	StartCategory   string
	TraceMaxDepth   int
	TraceMaxResults int
	TraceTimeout    time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:   Secret(envOrDefault("DATABASE_URL", "")),
		GraphFile:     envOrDefault("GRAPH_FILE", ""),
		Port:          envOrDefault("PORT", "3040"),
		ListenHost:    envOrDefault("LISTEN_HOST", "127.0.0.1"),
		MetricsPort:   envOrDefault("METRICS_PORT", "9092"),
		LogLevel:      envOrDefault("LOG_LEVEL", "info"),
		APIKey:        Secret(envOrDefault("API_KEY", "")),
		StartCategory: envOrDefault("START_CATEGORY", "Address"),
	}

	var err error

	if cfg.DBMaxConns, err = envInt("DB_MAX_CONNS", 10, 1, 100); err != nil {
		return nil, err
	}

	if cfg.TraceMaxDepth, err = envInt("TRACE_MAX_DEPTH", 64, 1, 1024); err != nil {
		return nil, err
	}

	if cfg.TraceMaxResults, err = envInt("TRACE_MAX_RESULTS", 10000, 1, 1_000_000); err != nil {
		return nil, err
	}

	timeout, err := time.ParseDuration(envOrDefault("TRACE_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("TRACE_TIMEOUT must be a Go duration: %w", err)
	}
	cfg.TraceTimeout = timeout

	origins := envOrDefault("CORS_ORIGINS", "http://localhost:3002")
	cfg.CORSOrigins = strings.Split(origins, ",")

	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Addr returns the listen address in host:port format.
func (c *Config) Addr() string {
	return c.ListenHost + ":" + c.Port
}

// MetricsAddr returns the metrics listen address in host:port format.
func (c *Config) MetricsAddr() string {
	return c.ListenHost + ":" + c.MetricsPort
}

// UsesDatabase reports whether the graph is served from Postgres rather
// than from GRAPH_FILE.
func (c *Config) UsesDatabase() bool {
	return c.DatabaseURL.Value() != ""
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func envInt(key string, fallback, lo, hi int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || v > hi {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", key, lo, hi)
	}

	return v, nil
}
