package config

import (
	"errors"
	"testing"
	"time"
)

// validConfig returns a Config with all required fields set to valid values.
func validConfig() *Config {
	return &Config{
		LogLevel:                 "info",
		PostgresHost:             "localhost",
		PostgresPort:             5432,
		PostgresUser:             "kbsync",
		PostgresPassword:         "test_password",
		PostgresDBName:           "kbsync",
		PostgresSSLMode:          "disable",
		CatalogPoolMinConns:      DefaultCatalogPoolMinConns,
		CatalogPoolMaxConns:      DefaultCatalogPoolMaxConns,
		SourceWorkers:            DefaultSourceWorkers,
		ClassificationQueueDepth: DefaultClassificationQueueDepth,
		FileOperationTimeout:     DefaultFileOperationTimeout,
		CancelGrace:              DefaultCancelGrace,
		MtimeTolerance:           DefaultMtimeTolerance,
		RetryAttempts:            DefaultRetryAttempts,
		RetryInitialInterval:     DefaultRetryInitialInterval,
		RetryMaxInterval:         DefaultRetryMaxInterval,
	}
}

func TestValidateSuccess(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error with valid config: %v", err)
	}
}

func TestValidateNilConfig(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("Validate() error = %v, want ErrConfigNil", err)
	}
}

func TestValidateLogLevel(t *testing.T) {
	tests := []struct {
		level   string
		wantErr bool
	}{
		{"debug", false},
		{"info", false},
		{"warn", false},
		{"error", false},
		{"", true},
		{"trace", true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := validConfig()
			cfg.LogLevel = tt.level

			err := cfg.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidLogLevel) {
				t.Errorf("expected ErrInvalidLogLevel for %q, got %v", tt.level, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for %q: %v", tt.level, err)
			}
		})
	}
}

func TestValidatePostgresHost(t *testing.T) {
	cfg := validConfig()
	cfg.PostgresHost = ""

	if err := cfg.Validate(); !errors.Is(err, ErrInvalidPostgresHost) {
		t.Errorf("error should be ErrInvalidPostgresHost, got: %v", err)
	}
}

func TestValidatePostgresPort(t *testing.T) {
	tests := []struct {
		name    string
		port    int
		wantErr bool
	}{
		{"valid min", 1, false},
		{"valid standard", 5432, false},
		{"valid max", 65535, false},
		{"invalid zero", 0, true},
		{"invalid negative", -1, true},
		{"invalid too high", 65536, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.PostgresPort = tt.port

			err := cfg.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidPostgresPort) {
				t.Errorf("expected ErrInvalidPostgresPort for port %d, got %v", tt.port, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for port %d: %v", tt.port, err)
			}
		})
	}
}

func TestValidatePostgresDBName(t *testing.T) {
	cfg := validConfig()
	cfg.PostgresDBName = ""

	if err := cfg.Validate(); !errors.Is(err, ErrInvalidPostgresDBName) {
		t.Errorf("error should be ErrInvalidPostgresDBName, got: %v", err)
	}
}

func TestValidatePostgresPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid password", "securepass123", false},
		{"empty password", "", true},
		{"too short 1 char", "a", true},
		{"too short 7 chars", "1234567", true},
		{"exactly 8 chars", "12345678", false},
		{"default dev password (warns, does not block)", "kbsync_dev_password", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.PostgresPassword = tt.password

			err := cfg.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidPostgresPassword) {
				t.Errorf("expected ErrInvalidPostgresPassword for %q, got %v", tt.password, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for password %q: %v", tt.password, err)
			}
		})
	}
}

func TestValidatePostgresSSLMode(t *testing.T) {
	tests := []struct {
		name    string
		sslMode string
		wantErr bool
	}{
		{"valid disable", "disable", false},
		{"valid require", "require", false},
		{"valid verify-ca", "verify-ca", false},
		{"valid verify-full", "verify-full", false},
		{"invalid empty", "", true},
		{"invalid mode", "invalid", true},
		{"deprecated allow", "allow", true},
		{"deprecated prefer", "prefer", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.PostgresSSLMode = tt.sslMode

			err := cfg.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidPostgresSSLMode) {
				t.Errorf("expected ErrInvalidPostgresSSLMode for %q, got %v", tt.sslMode, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for SSL mode %q: %v", tt.sslMode, err)
			}
		})
	}
}

func TestValidatePoolSize(t *testing.T) {
	cfg := validConfig()
	cfg.CatalogPoolMinConns = 0
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidPoolSize) {
		t.Errorf("expected ErrInvalidPoolSize for zero min conns, got %v", err)
	}

	cfg = validConfig()
	cfg.CatalogPoolMaxConns = cfg.CatalogPoolMinConns - 1
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidPoolSize) {
		t.Errorf("expected ErrInvalidPoolSize when max < min, got %v", err)
	}
}

func TestValidateSourceWorkers(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		wantErr bool
	}{
		{"valid", 8, false},
		{"zero", 0, true},
		{"negative", -1, true},
		{"too many", 257, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.SourceWorkers = tt.workers

			err := cfg.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidWorkerCount) {
				t.Errorf("expected ErrInvalidWorkerCount for %d, got %v", tt.workers, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for workers %d: %v", tt.workers, err)
			}
		})
	}
}

func TestValidateQueueDepth(t *testing.T) {
	cfg := validConfig()
	cfg.ClassificationQueueDepth = 0
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidQueueDepth) {
		t.Errorf("expected ErrInvalidQueueDepth for zero, got %v", err)
	}
}

func TestValidateTimeouts(t *testing.T) {
	cfg := validConfig()
	cfg.FileOperationTimeout = 0
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidTimeout) {
		t.Errorf("expected ErrInvalidTimeout for zero file_operation_timeout, got %v", err)
	}

	cfg = validConfig()
	cfg.CancelGrace = -1 * time.Second
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidTimeout) {
		t.Errorf("expected ErrInvalidTimeout for negative cancel_grace, got %v", err)
	}

	cfg = validConfig()
	cfg.RetryMaxInterval = cfg.RetryInitialInterval - time.Millisecond
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidTimeout) {
		t.Errorf("expected ErrInvalidTimeout when retry_max_interval < retry_initial_interval, got %v", err)
	}
}

// BenchmarkValidate benchmarks configuration validation.
func BenchmarkValidate(b *testing.B) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		b.Fatalf("Validate() unexpected error: %v", err)
	}

	b.ResetTimer()
	for b.Loop() {
		_ = cfg.Validate()
	}
}
