// Package app wires together the catalog repository, the source/RAG adapter
// registries, and the sync engine into one long-lived container that cmd/
// constructs once per process invocation.
package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kbsync/kbsync/internal/catalog"
	"github.com/kbsync/kbsync/internal/config"
	"github.com/kbsync/kbsync/internal/engine"
	"github.com/kbsync/kbsync/internal/log"
	"github.com/kbsync/kbsync/internal/ragsink"
	"github.com/kbsync/kbsync/internal/source"
)

// App is the core application container: one catalog connection pool, the
// compiled-in adapter registries, and the engine-wide concurrency/retry
// defaults every Orchestrator/Driver this process builds shares.
type App struct {
	Config *config.Config

	DBPool         *pgxpool.Pool
	Repo           *catalog.Repository
	SourceRegistry *source.Registry
	RAGRegistry    *ragsink.Registry
	EngineConfig   engine.OrchestratorConfig
	Logger         log.Logger

	cancel context.CancelFunc
}

// Close releases the database pool and cancels the context Setup derived from
// its ctx argument (Setup keeps only that context's cancel function).
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.cancel != nil {
		a.cancel()
	}

	if a.DBPool != nil {
		a.DBPool.Close()
		if a.Logger != nil {
			a.Logger.Info("database pool closed")
		}
	}

	return nil
}

// Orchestrator builds a single-source Orchestrator bound to src/rag under
// this App's engine defaults and logger.
func (a *App) Orchestrator(src source.Adapter, rag ragsink.Adapter, scanMode bool) *engine.Orchestrator {
	return engine.NewOrchestrator(a.Repo, src, rag, a.EngineConfig, scanMode, a.Logger)
}

// Driver builds a Multi-Source Driver under this App's registries, engine
// defaults, and logger.
func (a *App) Driver(scanMode bool) *engine.Driver {
	return engine.NewDriver(a.Repo, a.SourceRegistry, a.RAGRegistry, a.EngineConfig, scanMode, a.Logger)
}

// BuildSourceAdapter resolves and constructs the source.Adapter for a
// KnowledgeBase's source_type_tag/source_config, or a SourceDefinition's.
func (a *App) BuildSourceAdapter(tag string, cfg map[string]any) (source.Adapter, error) {
	return a.SourceRegistry.New(tag, cfg)
}

// BuildRAGAdapter resolves and constructs the ragsink.Adapter for a
// KnowledgeBase's rag_type_tag/rag_config.
func (a *App) BuildRAGAdapter(tag string, cfg map[string]any) (ragsink.Adapter, error) {
	return a.RAGRegistry.New(tag, cfg)
}
