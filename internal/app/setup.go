package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kbsync/kbsync/db"
	"github.com/kbsync/kbsync/internal/catalog"
	"github.com/kbsync/kbsync/internal/config"
	"github.com/kbsync/kbsync/internal/engine"
	"github.com/kbsync/kbsync/internal/log"
)

// Setup creates and initializes the application: it applies migrations, opens
// the catalog connection pool, and compiles in the source/RAG adapter
// registries. Call Close() to release the pool.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	logger := provideLogger(cfg)

	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool
	a.Repo = catalog.NewRepository(pool, logger.With("component", "catalog"))

	a.SourceRegistry = provideSourceRegistry()
	a.RAGRegistry = provideRAGRegistry()
	a.EngineConfig = provideEngineConfig(cfg)

	_, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	return a, nil
}

// provideLogger builds the application's root logger from cfg (spec SPEC_FULL
// §10.1): text or JSON per LogJSON, level parsed from LogLevel (already
// validated by config.Validate).
func provideLogger(cfg *config.Config) log.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return log.New(log.Config{Level: level, JSON: cfg.LogJSON})
}

// provideDBPool runs migrations, then opens a pgxpool sized per cfg
// (SPEC_FULL §10.3: CatalogPoolMinConns/MaxConns).
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("app: running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("app: parsing connection config: %w", err)
	}

	poolCfg.MinConns = cfg.CatalogPoolMinConns
	poolCfg.MaxConns = cfg.CatalogPoolMaxConns
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("app: creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("app: pinging database: %w", err)
	}

	return pool, nil
}

// provideEngineConfig translates cfg's engine-tuning fields into an
// engine.OrchestratorConfig (SPEC_FULL §10.3/spec §5).
func provideEngineConfig(cfg *config.Config) engine.OrchestratorConfig {
	return engine.OrchestratorConfig{
		Workers:        cfg.SourceWorkers,
		QueueDepth:     cfg.ClassificationQueueDepth,
		FileTimeout:    cfg.FileOperationTimeout,
		CancelGrace:    cfg.CancelGrace,
		MtimeTolerance: cfg.MtimeTolerance,
		Retry: engine.RetryPolicy{
			MaxAttempts:     cfg.RetryAttempts,
			InitialInterval: cfg.RetryInitialInterval,
			MaxInterval:     cfg.RetryMaxInterval,
		},
	}
}
