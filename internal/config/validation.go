package config

import (
	"fmt"
	"log/slog"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validatePostgres(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}

	return nil
}

func (c *Config) validateLogging() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("%w: %q, must be one of debug/info/warn/error", ErrInvalidLogLevel, c.LogLevel)
	}
}

func (c *Config) validatePostgres() error {
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set in config.yaml", ErrInvalidPostgresPassword)
	}

	// CRITICAL: Warn if using default dev password (but don't block - user might be in dev)
	if c.PostgresPassword == "kbsync_dev_password" {
		slog.Warn("using default development password for PostgreSQL",
			"warning", "change postgres_password in config.yaml for production deployments")
	}

	if len(c.PostgresPassword) < 8 {
		return fmt.Errorf("%w: postgres_password must be at least 8 characters (got %d)",
			ErrInvalidPostgresPassword, len(c.PostgresPassword))
	}

	// Modern SSL modes only - exclude deprecated allow/prefer (MITM vulnerable)
	// Reference: https://www.postgresql.org/docs/current/libpq-ssl.html
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if c.PostgresSSLMode == "" {
		return fmt.Errorf("%w: postgres_ssl_mode is empty (should have default from setDefaults)",
			ErrInvalidPostgresSSLMode)
	}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v\n"+
			"Note: 'allow' and 'prefer' modes are deprecated (vulnerable to MITM attacks)",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	if c.CatalogPoolMinConns < 1 {
		return fmt.Errorf("%w: catalog_pool_min_conns must be at least 1, got %d", ErrInvalidPoolSize, c.CatalogPoolMinConns)
	}
	if c.CatalogPoolMaxConns < c.CatalogPoolMinConns {
		return fmt.Errorf("%w: catalog_pool_max_conns (%d) must be >= catalog_pool_min_conns (%d)",
			ErrInvalidPoolSize, c.CatalogPoolMaxConns, c.CatalogPoolMinConns)
	}

	return nil
}

func (c *Config) validateEngine() error {
	if c.SourceWorkers < 1 || c.SourceWorkers > 256 {
		return fmt.Errorf("%w: source_workers must be between 1 and 256, got %d", ErrInvalidWorkerCount, c.SourceWorkers)
	}

	if c.ClassificationQueueDepth < 1 {
		return fmt.Errorf("%w: classification_queue_depth must be at least 1, got %d",
			ErrInvalidQueueDepth, c.ClassificationQueueDepth)
	}

	if c.FileOperationTimeout <= 0 {
		return fmt.Errorf("%w: file_operation_timeout must be positive, got %s", ErrInvalidTimeout, c.FileOperationTimeout)
	}
	if c.CancelGrace <= 0 {
		return fmt.Errorf("%w: cancel_grace must be positive, got %s", ErrInvalidTimeout, c.CancelGrace)
	}
	if c.MtimeTolerance < 0 {
		return fmt.Errorf("%w: mtime_tolerance cannot be negative, got %s", ErrInvalidTimeout, c.MtimeTolerance)
	}

	if c.RetryAttempts < 1 {
		return fmt.Errorf("%w: retry_attempts must be at least 1, got %d", ErrInvalidWorkerCount, c.RetryAttempts)
	}
	if c.RetryInitialInterval <= 0 {
		return fmt.Errorf("%w: retry_initial_interval must be positive, got %s", ErrInvalidTimeout, c.RetryInitialInterval)
	}
	if c.RetryMaxInterval < c.RetryInitialInterval {
		return fmt.Errorf("%w: retry_max_interval (%s) must be >= retry_initial_interval (%s)",
			ErrInvalidTimeout, c.RetryMaxInterval, c.RetryInitialInterval)
	}

	return nil
}
