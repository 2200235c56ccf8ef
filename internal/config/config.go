// Package config centralizes the handful of environment variables the
// core ingestion path consumes. Tunables that aren't environment-driven
// (timeouts, channel bounds, retry ceilings, wanted collections) live as
// plain structs with documented defaults next to the code that uses them
// (see firehose.DefaultConfig), not here.
package config

import "os"

// Config holds the environment-sourced settings shared across the
// indexer's binaries.
type Config struct {
	// CursorFile is the bbolt database path backing the persisted cursor.
	CursorFile string
	// DatabaseURL is a postgres DSN. Empty means "use the embedded sqlite
	// store", which is the default for local development and tests.
	DatabaseURL string
	// RedisURL is the CAR-import job queue's Redis connection string.
	RedisURL string
	// AppHost is the app-view base URL internal/identity.Resolver uses
	// for handle resolution. Host is passed through for deployments that
	// front this process with a reverse proxy; the ingestion path itself
	// does not read it.
	AppHost string
	Host    string
	// LogLevel/LogFormat configure internal/logging.
	LogLevel  string
	LogFormat string
	// MetricsAddr is the listen address for the Prometheus /metrics
	// endpoint.
	MetricsAddr string
	// OTLPEndpoint configures internal/tracing; empty disables exporting.
	OTLPEndpoint string
}

// FromEnv reads Config from the process environment, applying the
// defaults documented in SPEC_FULL.md §6.
func FromEnv() Config {
	return Config{
		CursorFile:   getenv("CURSOR_FILE", "./cursor.db"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RedisURL:     getenv("REDIS_URL", "redis://127.0.0.1:6379"),
		AppHost:      os.Getenv("APP_HOST"),
		Host:         os.Getenv("HOST"),
		LogLevel:     getenv("LOG_LEVEL", "info"),
		LogFormat:    os.Getenv("LOG_FORMAT"),
		MetricsAddr:  getenv("METRICS_ADDR", ":9090"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
