// Package config provides centralized configuration management for the import service.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Import   ImportConfig
	Storage  StorageConfig
	Queue    QueueConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including draining running imports (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Required unless both storage and executor avoid Postgres.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ImportConfig holds spreadsheet import settings.
type ImportConfig struct {
	// MaxFileSize is the maximum allowed workbook size in bytes (default: 25MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"26214400"`

	// MaxConcurrent is the maximum number of imports running at once (default: 4)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a queued job waits for a run slot (default: 5m)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"5m"`

	// CommandTimeout bounds each command sent to the executor (default: 1m)
	CommandTimeout time.Duration `env:"IMPORT_COMMAND_TIMEOUT" default:"1m"`

	// DefaultLocale is used when an upload does not name one (default: en)
	DefaultLocale string `env:"IMPORT_DEFAULT_LOCALE" default:"en"`

	// DefaultDateFormat is used when an upload does not name one
	DefaultDateFormat string `env:"IMPORT_DEFAULT_DATE_FORMAT" default:"dd MMMM yyyy"`

	// Executor selects where commands go: postgres or dryrun (default: postgres)
	Executor string `env:"IMPORT_EXECUTOR" default:"postgres"`
}

// StorageConfig selects the document store.
type StorageConfig struct {
	// Backend is one of postgres, gcs, memory (default: postgres)
	Backend string `env:"STORAGE_BACKEND" default:"postgres"`

	// Bucket is the GCS bucket holding uploaded workbooks
	Bucket string `env:"GCS_BUCKET"`

	// Prefix is prepended to GCS object names (default: imports/)
	Prefix string `env:"GCS_PREFIX" default:"imports/"`
}

// QueueConfig selects how import jobs reach the runner.
type QueueConfig struct {
	// Backend is local (in-process) or redis (default: local)
	Backend string `env:"QUEUE_BACKEND" default:"local"`

	// RedisAddr is the Redis host:port (default: localhost:6379)
	RedisAddr string `env:"REDIS_ADDR" default:"localhost:6379"`

	// RedisPassword is the optional Redis password
	RedisPassword string `env:"REDIS_PASSWORD"`

	// RedisDB is the Redis logical database (default: 0)
	RedisDB int `env:"REDIS_DB" default:"0"`

	// Stream is the Redis stream carrying import requests
	Stream string `env:"QUEUE_STREAM" default:"imports.requested"`

	// Group is the consumer group name
	Group string `env:"QUEUE_GROUP" default:"import-runners"`

	// Consumer identifies this process within the group; defaults to the hostname
	Consumer string `env:"QUEUE_CONSUMER"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for upload endpoints (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`

	// File, when set, additionally receives JSON logs
	File string `env:"LOG_FILE"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// NeedsDatabase reports whether any configured component talks to Postgres.
func (c *Config) NeedsDatabase() bool {
	return c.Storage.Backend == "postgres" || c.Import.Executor == "postgres"
}
