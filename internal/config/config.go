// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.kbsync/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - Catalog: PostgreSQL connection for the audit catalog (see storage.go)
//   - Engine: worker concurrency, timeouts, backoff, queue depth, cancel grace
//   - Logging: minimum level and output format
//
// KB-level source_config/rag_config blobs are NOT part of this struct — they live in the
// catalog as untyped JSON and are decoded/validated per adapter (see schema.go).
//
// Security: the catalog password is never logged; config directory uses 0750 permissions.
// Validation: range checks in validation.go with clear error messages.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidPoolSize indicates a catalog pool min/max connection setting is invalid.
	ErrInvalidPoolSize = errors.New("invalid catalog pool size")

	// ErrInvalidWorkerCount indicates the source worker concurrency is out of range.
	ErrInvalidWorkerCount = errors.New("invalid worker count")

	// ErrInvalidQueueDepth indicates the classification queue depth is out of range.
	ErrInvalidQueueDepth = errors.New("invalid queue depth")

	// ErrInvalidTimeout indicates a duration setting is zero or negative.
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrInvalidLogLevel indicates the configured log level string is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
)

// Defaults for engine-wide concurrency, timeout, and backoff behavior (spec §5).
const (
	// DefaultSourceWorkers is the per-source worker pool size.
	DefaultSourceWorkers = 8

	// DefaultClassificationQueueDepth bounds the backpressure channel between the
	// Change Detector and the File Processor worker pool.
	DefaultClassificationQueueDepth = 256

	// DefaultFileOperationTimeout bounds a single file's fetch+hash+upload pipeline.
	DefaultFileOperationTimeout = 60 * time.Second

	// DefaultCancelGrace is how long the orchestrator waits for in-flight workers to
	// finish after a cancellation signal before it force-abandons them.
	DefaultCancelGrace = 5 * time.Second

	// DefaultMtimeTolerance is the allowed clock-skew window when comparing source
	// modification times against the last sync, used as a pre-filter before hashing.
	DefaultMtimeTolerance = 2 * time.Second

	// DefaultCatalogPoolMinConns is the minimum pgxpool connection count.
	DefaultCatalogPoolMinConns = 10

	// DefaultCatalogPoolMaxConns is the maximum pgxpool connection count.
	DefaultCatalogPoolMaxConns = 20

	// DefaultRetryAttempts is the number of attempts the File Processor makes per file
	// before recording a permanent error, including the first try.
	DefaultRetryAttempts = 3

	// DefaultRetryInitialInterval is the backoff.ExponentialBackOff starting interval.
	DefaultRetryInitialInterval = 200 * time.Millisecond

	// DefaultRetryMaxInterval caps the exponential backoff growth.
	DefaultRetryMaxInterval = 3200 * time.Millisecond
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, tokens), update MarshalJSON.
type Config struct {
	// Logging configuration
	LogLevel string `mapstructure:"log_level" json:"log_level"` // "debug", "info", "warn", "error"
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`

	// Catalog storage configuration (see storage.go for helper methods)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	CatalogPoolMinConns int32 `mapstructure:"catalog_pool_min_conns" json:"catalog_pool_min_conns"`
	CatalogPoolMaxConns int32 `mapstructure:"catalog_pool_max_conns" json:"catalog_pool_max_conns"`

	// Engine concurrency/timeout/backoff configuration (spec §5)
	SourceWorkers             int           `mapstructure:"source_workers" json:"source_workers"`
	ClassificationQueueDepth  int           `mapstructure:"classification_queue_depth" json:"classification_queue_depth"`
	FileOperationTimeout      time.Duration `mapstructure:"file_operation_timeout" json:"file_operation_timeout"`
	CancelGrace               time.Duration `mapstructure:"cancel_grace" json:"cancel_grace"`
	MtimeTolerance            time.Duration `mapstructure:"mtime_tolerance" json:"mtime_tolerance"`
	RetryAttempts             int           `mapstructure:"retry_attempts" json:"retry_attempts"`
	RetryInitialInterval      time.Duration `mapstructure:"retry_initial_interval" json:"retry_initial_interval"`
	RetryMaxInterval          time.Duration `mapstructure:"retry_max_interval" json:"retry_max_interval"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	// Configuration directory: ~/.kbsync/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".kbsync")

	// Ensure directory exists (use 0750 permission for better security)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	// Configure Viper
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	// Set default values
	setDefaults()

	// Bind environment variables
	bindEnvVariables()

	// Read configuration file (if exists)
	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	// Use Unmarshal to automatically map to struct (type-safe)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Parse DATABASE_URL if set (highest priority for PostgreSQL config)
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_json", false)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "kbsync")
	viper.SetDefault("postgres_password", "kbsync_dev_password")
	viper.SetDefault("postgres_db_name", "kbsync")
	viper.SetDefault("postgres_ssl_mode", "disable")

	viper.SetDefault("catalog_pool_min_conns", DefaultCatalogPoolMinConns)
	viper.SetDefault("catalog_pool_max_conns", DefaultCatalogPoolMaxConns)

	viper.SetDefault("source_workers", DefaultSourceWorkers)
	viper.SetDefault("classification_queue_depth", DefaultClassificationQueueDepth)
	viper.SetDefault("file_operation_timeout", DefaultFileOperationTimeout)
	viper.SetDefault("cancel_grace", DefaultCancelGrace)
	viper.SetDefault("mtime_tolerance", DefaultMtimeTolerance)
	viper.SetDefault("retry_attempts", DefaultRetryAttempts)
	viper.SetDefault("retry_initial_interval", DefaultRetryInitialInterval)
	viper.SetDefault("retry_max_interval", DefaultRetryMaxInterval)
}

// bindEnvVariables binds environment variable overrides explicitly.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	// If this panics, it's a BUG in our code, not a runtime error
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("log_level", "KBSYNC_LOG_LEVEL")
	mustBind("log_json", "KBSYNC_LOG_JSON")

	mustBind("postgres_host", "KBSYNC_POSTGRES_HOST")
	mustBind("postgres_port", "KBSYNC_POSTGRES_PORT")
	mustBind("postgres_user", "KBSYNC_POSTGRES_USER")
	mustBind("postgres_password", "KBSYNC_POSTGRES_PASSWORD")
	mustBind("postgres_db_name", "KBSYNC_POSTGRES_DB_NAME")
	mustBind("postgres_ssl_mode", "KBSYNC_POSTGRES_SSL_MODE")

	mustBind("source_workers", "KBSYNC_SOURCE_WORKERS")
	// NOTE: DATABASE_URL is handled separately by parseDatabaseURL, not via Viper,
	// because it decomposes into five fields rather than mapping to one key.
}

// maskedValue is the placeholder for masked sensitive data.
// Using ████████ (full-width blocks U+2588) to avoid substring matching
// Previous attempts:
// - "****" failed: passwords with "*" leaked
// - "[REDACTED]" failed: passwords with "A", "D", "E", etc. leaked
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Shows first 2 and last 2 characters, masks the rest.
// SECURITY: For secrets <=8 chars, fully masks to prevent substring attacks.
// For longer secrets, shows partial chars with unique separator.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	prefix := make([]byte, 2)
	suffix := make([]byte, 2)
	copy(prefix, s[:2])
	copy(suffix, s[len(s)-2:])
	return string(prefix) + "<" + maskedValue + ">" + string(suffix)
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - PostgresPassword
//
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
