// Package config provides configuration management for the article intake service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Config holds all configuration for the article intake service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings for draft persistence.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Upstream contains content-backend client settings.
	Upstream UpstreamConfig `mapstructure:"upstream"`
	// Tracker contains processing-status polling settings.
	Tracker TrackerConfig `mapstructure:"tracker"`
	// Upload contains file acceptance settings.
	Upload UploadConfig `mapstructure:"upload"`
	// Drafts contains draft retention settings.
	Drafts DraftsConfig `mapstructure:"drafts"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (use environment variable in production).
	Password string `mapstructure:"password"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	// Default is "require" for production security. Use "disable" only for local development.
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool (default: 25).
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open (default: 5).
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup (default: false).
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
}

// UpstreamConfig holds content-backend client settings.
type UpstreamConfig struct {
	// BaseURL is the content backend API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the timeout for backend calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// BurstSize is the burst size for the rate limiter.
	BurstSize int `mapstructure:"burst_size"`
	// MaxRetries is the maximum number of retries for failed calls.
	MaxRetries int `mapstructure:"max_retries"`
	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// UserAgent is the User-Agent header for backend calls.
	UserAgent string `mapstructure:"user_agent"`
	// APIKey authenticates backend calls (use environment variable in production).
	// Empty disables authentication.
	APIKey string `mapstructure:"api_key"`
	// APIKeyHeader is the header name the API key is sent under.
	APIKeyHeader string `mapstructure:"api_key_header"`
}

// TrackerConfig holds processing-status polling settings.
type TrackerConfig struct {
	// PollInterval is the delay between status polls for a file.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// MaxAttempts is the number of polls before a file is marked failed.
	MaxAttempts int `mapstructure:"max_attempts"`
}

// UploadConfig holds file acceptance settings.
type UploadConfig struct {
	// MaxFileSize is the maximum accepted content file size in bytes.
	MaxFileSize int64 `mapstructure:"max_file_size"`
	// MaxCoverImageSize is the maximum accepted cover image size in bytes.
	MaxCoverImageSize int64 `mapstructure:"max_cover_image_size"`
	// AcceptedMIMEType is the only content type accepted for article files.
	AcceptedMIMEType string `mapstructure:"accepted_mime_type"`
	// MaxBatchFiles is the maximum number of files per upload request.
	MaxBatchFiles int `mapstructure:"max_batch_files"`
}

// DraftsConfig holds draft retention settings.
type DraftsConfig struct {
	// Retention is how long an untouched draft is kept before the sweep
	// abandons its session.
	Retention time.Duration `mapstructure:"retention"`
	// SweepInterval is the delay between sweep runs.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("ARTICLEINTAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/article-intake-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "articleintake")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "article_intake_service")
	// Default to "require" for production security. Use ARTICLEINTAKE_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Upstream content-backend defaults
	v.SetDefault("upstream.base_url", "http://localhost:9000/api")
	v.SetDefault("upstream.timeout", "30s")
	v.SetDefault("upstream.rate_limit", 10.0)
	v.SetDefault("upstream.burst_size", 20)
	v.SetDefault("upstream.max_retries", 3)
	v.SetDefault("upstream.retry_delay", "1s")
	v.SetDefault("upstream.user_agent", "article-intake-service/1.0")
	v.SetDefault("upstream.api_key", "")
	v.SetDefault("upstream.api_key_header", "X-API-Key")

	// Tracker defaults
	v.SetDefault("tracker.poll_interval", "2s")
	v.SetDefault("tracker.max_attempts", 30)

	// Upload defaults
	v.SetDefault("upload.max_file_size", 104857600) // 100 MiB
	v.SetDefault("upload.max_cover_image_size", 2097152)
	v.SetDefault("upload.accepted_mime_type", "application/pdf")
	v.SetDefault("upload.max_batch_files", 20)

	// Draft retention defaults
	v.SetDefault("drafts.retention", "72h")
	v.SetDefault("drafts.sweep_interval", "1h")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}

	// Validate database config
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate upstream config
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream base_url is required")
	}
	if _, err := url.Parse(c.Upstream.BaseURL); err != nil {
		return fmt.Errorf("invalid upstream base_url: %w", err)
	}
	if c.Upstream.RateLimit <= 0 {
		return fmt.Errorf("upstream rate_limit must be positive")
	}
	if c.Upstream.MaxRetries < 0 {
		return fmt.Errorf("upstream max_retries must not be negative")
	}

	// Validate tracker config
	if c.Tracker.PollInterval <= 0 {
		return fmt.Errorf("tracker poll_interval must be positive")
	}
	if c.Tracker.MaxAttempts <= 0 {
		return fmt.Errorf("tracker max_attempts must be positive")
	}

	// Validate upload config
	if c.Upload.MaxFileSize <= 0 {
		return fmt.Errorf("upload max_file_size must be positive")
	}
	if c.Upload.MaxCoverImageSize <= 0 {
		return fmt.Errorf("upload max_cover_image_size must be positive")
	}
	if c.Upload.AcceptedMIMEType == "" {
		return fmt.Errorf("upload accepted_mime_type is required")
	}

	// Validate draft retention config
	if c.Drafts.Retention <= 0 {
		return fmt.Errorf("drafts retention must be positive")
	}
	if c.Drafts.SweepInterval <= 0 {
		return fmt.Errorf("drafts sweep_interval must be positive")
	}

	return nil
}
