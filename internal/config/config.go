// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults,
// optionally overlaid on a YAML file, and validates all settings on startup to
// fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// Every setting can be configured via environment variables; CONFIG_FILE
// may point at a YAML file with the same settings (env wins).
type Config struct {
	Sync     SyncConfig      `yaml:"sync"`
	Fetch    FetchConfig     `yaml:"fetch"`
	Server   ServerConfig    `yaml:"server"`
	Rate     RateLimitConfig `yaml:"rate_limit"`
	Security SecurityConfig  `yaml:"security"`
	Logging  LoggingConfig   `yaml:"logging"`

	// File is the YAML overlay that was applied, if any.
	File string `yaml:"-"`
}

// SyncConfig describes the shared workbook and how often it is pulled.
type SyncConfig struct {
	// FileURL is the cloud share link of the workbook (required)
	FileURL string `env:"ONEDRIVE_FILE_URL" envAlt:"SHARE_URL" required:"true" yaml:"file_url"`

	// IntervalSeconds is the time between sync cycles (default: 3600)
	IntervalSeconds int `env:"SYNC_INTERVAL" default:"3600" yaml:"interval_seconds"`

	// FileName is the logical workbook name, used in diagnostics and as the export name
	FileName string `env:"SUMMARY_EXCEL" default:"★26SS MLB 생산스케쥴_DASHBOARD_V2.xlsx" yaml:"file_name"`

	// QuantitySheet names the quantity-basis sheet (default: 수량 기준)
	QuantitySheet string `env:"SUMMARY_SHEET" default:"수량 기준" yaml:"quantity_sheet"`

	// StyleSheet names the style-count sheet; set it empty to disable that basis
	StyleSheet string `env:"SUMMARY_STYLE_SHEET" default:"스타일수 기준" allowEmpty:"true" yaml:"style_sheet"`

	// CurrentWeek pins the current week number (default: 0 = detect)
	CurrentWeek int `env:"SUMMARY_CURRENT_WEEK" default:"0" yaml:"current_week"`
}

// FetchConfig holds download settings.
type FetchConfig struct {
	// Timeout bounds a single download attempt (default: 60s)
	Timeout time.Duration `env:"FETCH_TIMEOUT" default:"60s" yaml:"timeout"`

	// MaxAttempts is the total number of tries per cycle (default: 3)
	MaxAttempts int `env:"FETCH_MAX_ATTEMPTS" default:"3" yaml:"max_attempts"`

	// BaseBackoff is the first retry delay, doubled per attempt (default: 1s)
	BaseBackoff time.Duration `env:"FETCH_BASE_BACKOFF" default:"1s" yaml:"base_backoff"`

	// MaxBackoff caps the retry delay (default: 30s)
	MaxBackoff time.Duration `env:"FETCH_MAX_BACKOFF" default:"30s" yaml:"max_backoff"`

	// MaxBytes is the largest workbook accepted (default: 50MB)
	MaxBytes int64 `env:"FETCH_MAX_BYTES" default:"52428800" yaml:"max_bytes"`

	// UserAgent is sent with every request
	UserAgent string `env:"FETCH_USER_AGENT" default:"proddash-sync/1.0" yaml:"user_agent"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0" yaml:"host"`

	// Port is the port to listen on (default: 8000)
	Port int `env:"SERVER_PORT" default:"8000" yaml:"port"`

	// ReadTimeout is the maximum duration for reading the request (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing the response (default: 30s).
	// Waiting refresh requests extend their own deadline.
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s" yaml:"write_timeout"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s" yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s" yaml:"shutdown_timeout"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s" yaml:"request_timeout"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled"`

	// RequestsPerMinute is the default rate limit per IP (default: 120)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120" yaml:"requests_per_minute"`

	// RefreshLimit is requests per minute for the refresh endpoint (default: 6)
	RefreshLimit int `env:"RATE_LIMIT_REFRESH" default:"6" yaml:"refresh"`

	// MaxRefreshWaiters bounds clients blocked on refresh?wait=true (default: 8)
	MaxRefreshWaiters int `env:"REFRESH_MAX_WAITERS" default:"8" yaml:"max_refresh_waiters"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// Password gates every /api route (required)
	Password string `env:"DASHBOARD_PASSWORD" required:"true" yaml:"password"`

	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES" yaml:"trusted_proxies"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true" yaml:"enable_csp"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info" yaml:"level"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text" yaml:"format"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Interval returns the time between sync cycles.
func (c *SyncConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}
