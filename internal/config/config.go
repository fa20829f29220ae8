// Package config provides centralized configuration management for the console.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Store drivers.
const (
	DriverREST     = "rest"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Database DatabaseConfig
	Grid     GridConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Audit    AuditConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is 0 by default so the SSE state stream is not cut off.
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including waiting for
	// in-flight grid writes (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for API requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// StoreConfig selects and configures the remote store the grid talks to.
type StoreConfig struct {
	// Driver is one of rest, postgres, memory (default: memory)
	Driver string `env:"STORE_DRIVER" default:"memory"`

	// BaseURL is the platform table API root, e.g. https://host/api
	BaseURL string `env:"STORE_BASE_URL" envAlt:"API_BASE_URL"`

	// Token is the bearer token sent to the platform API
	Token string `env:"STORE_TOKEN" envAlt:"API_TOKEN"`

	// Timeout bounds a single store request (default: 15s)
	Timeout time.Duration `env:"STORE_TIMEOUT" default:"15s"`

	// RequestsPerSecond paces outgoing API calls; 0 disables pacing
	RequestsPerSecond float64 `env:"STORE_REQUESTS_PER_SECOND" default:"0"`

	Burst int `env:"STORE_BURST" default:"5"`
}

// DatabaseConfig holds PostgreSQL settings for the postgres driver and the
// audit log.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// Schema holds the grid's tables (default: public)
	Schema string `env:"DB_SCHEMA" default:"public"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// GridConfig holds data grid settings.
type GridConfig struct {
	// SchemaFile is an optional YAML file of extra table schemas
	SchemaFile string `env:"GRID_SCHEMA_FILE"`

	// DeleteConfirmTTL is how long a delete confirmation stays valid (default: 2m)
	DeleteConfirmTTL time.Duration `env:"GRID_DELETE_CONFIRM_TTL" default:"2m"`

	// SessionIdleTimeout drops browser grid sessions after inactivity (default: 30m)
	SessionIdleTimeout time.Duration `env:"GRID_SESSION_IDLE_TIMEOUT" default:"30m"`

	// SeedDemo fills the memory store with sample rows (default: true)
	SeedDemo bool `env:"GRID_SEED_DEMO" default:"true"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// MutationLimit is requests per minute for write endpoints (default: 30)
	MutationLimit int `env:"RATE_LIMIT_MUTATIONS" default:"30"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// SecureCookies marks the grid session cookie Secure (default: false)
	SecureCookies bool `env:"SECURITY_SECURE_COOKIES" default:"false"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// AuditConfig holds mutation audit settings. Entries go to PostgreSQL when
// DATABASE_URL is set and to the log otherwise.
type AuditConfig struct {
	Enabled bool `env:"AUDIT_ENABLED" default:"true"`

	// RetentionDays is days to keep audit entries (default: 90)
	RetentionDays int `env:"AUDIT_RETENTION_DAYS" default:"90"`

	// CheckInterval is how often the retention job runs (default: 24h)
	CheckInterval time.Duration `env:"AUDIT_CHECK_INTERVAL" default:"24h"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// UsesDatabase reports whether a PostgreSQL pool is needed.
func (c *Config) UsesDatabase() bool {
	return c.Store.Driver == DriverPostgres || c.Database.URL != ""
}
