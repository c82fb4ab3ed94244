package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kbsync/kbsync/internal/catalog"
	"github.com/kbsync/kbsync/internal/ragsink"
	"github.com/kbsync/kbsync/internal/source"
)

// SourceStat is the per-source outcome the Multi-Source Driver records in
// multi_source_sync_run.source_stats (spec §4.9/§6).
type SourceStat struct {
	Counters  Counters `json:"counters"`
	SyncRunID int64    `json:"sync_run_id"`
	Error     string   `json:"error,omitempty"`
}

// DriverRunOptions selects which of a MultiSourceKnowledgeBase's
// SourceDefinitions participate in a run (spec §4.9). Selected is consulted
// only when SyncMode is selective, where an empty Selected leaves no source to
// run; the other modes run every enabled source.
type DriverRunOptions struct {
	SyncMode string // catalog.SyncModeParallel | Sequential | Selective
	Selected []string
}

// Driver implements component I, the Multi-Source Driver: it fans a
// MultiSourceSyncRun out across each enabled SourceDefinition's own
// Orchestrator run, aggregates their counters, and persists one
// MultiSourceSyncRun row through the schema-bridge KnowledgeBase (spec §4.9).
type Driver struct {
	Repo          *catalog.Repository
	SourceRegistry *source.Registry
	RAGRegistry   *ragsink.Registry
	Config        OrchestratorConfig
	Logger        *slog.Logger
	ScanMode      bool
}

// NewDriver builds a Driver. A nil logger installs slog.Default.
func NewDriver(repo *catalog.Repository, sourceReg *source.Registry, ragReg *ragsink.Registry, cfg OrchestratorConfig, scanMode bool, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		Repo:           repo,
		SourceRegistry: sourceReg,
		RAGRegistry:    ragReg,
		Config:         cfg.withDefaults(),
		ScanMode:       scanMode,
		Logger:         logger,
	}
}

// Run executes one MultiSourceSyncRun against kb, per opts.
func (d *Driver) Run(ctx context.Context, kb *catalog.MultiSourceKnowledgeBase, opts DriverRunOptions) (Counters, int64, error) {
	defs, err := d.Repo.ListSourceDefinitions(ctx, kb.ID)
	if err != nil {
		return Counters{}, 0, fmt.Errorf("engine: list source definitions for %q: %w", kb.Name, err)
	}

	active, err := selectSources(defs, opts)
	if err != nil {
		return Counters{}, 0, err
	}
	if len(active) == 0 {
		return Counters{}, 0, ErrNoEnabledSources
	}

	rag, err := d.RAGRegistry.New(kb.RAGTypeTag, kb.RAGConfig)
	if err != nil {
		return Counters{}, 0, fmt.Errorf("engine: build rag adapter for %q: %w", kb.Name, err)
	}

	bridgeKBID, err := d.Repo.ResolveCompatibleKBID(ctx, kb)
	if err != nil {
		return Counters{}, 0, fmt.Errorf("engine: resolve schema bridge for %q: %w", kb.Name, err)
	}

	startStatus := catalog.SyncStatusRunning
	if d.ScanMode {
		startStatus = catalog.SyncStatusScanRunning
	}
	multiRunID, err := d.Repo.CreateMultiSourceSyncRun(ctx, kb.ID, startStatus, opts.SyncMode)
	if err != nil {
		return Counters{}, 0, fmt.Errorf("engine: create multi-source sync run for %q: %w", kb.Name, err)
	}

	stats, total, runErr := d.runSources(ctx, active, rag, bridgeKBID, opts.SyncMode)

	finalStatus := catalog.SyncStatusCompleted
	if d.ScanMode {
		finalStatus = catalog.SyncStatusScanCompleted
	}
	errMsg := ""
	if runErr != nil {
		finalStatus = catalog.SyncStatusFailed
		if d.ScanMode {
			finalStatus = catalog.SyncStatusScanFailed
		}
		errMsg = runErr.Error()
	}

	processed := make([]string, 0, len(active))
	for _, sd := range active {
		processed = append(processed, sd.SourceID)
	}
	sort.Strings(processed)

	statsByID := make(map[string]any, len(stats))
	for id, s := range stats {
		statsByID[id] = s
	}

	if finalizeErr := d.Repo.FinalizeMultiSourceSyncRun(ctx, multiRunID, total.toCatalog(), finalStatus, errMsg, processed, statsByID); finalizeErr != nil {
		if runErr != nil {
			return total, multiRunID, fmt.Errorf("%w (also failed to finalize: %v)", runErr, finalizeErr)
		}
		return total, multiRunID, fmt.Errorf("engine: finalize multi-source sync run %d: %w", multiRunID, finalizeErr)
	}

	return total, multiRunID, runErr
}

func selectSources(defs []catalog.SourceDefinition, opts DriverRunOptions) ([]catalog.SourceDefinition, error) {
	if opts.SyncMode != catalog.SyncModeSelective {
		var active []catalog.SourceDefinition
		for _, sd := range defs {
			if sd.Enabled {
				active = append(active, sd)
			}
		}
		return active, nil
	}

	byID := make(map[string]catalog.SourceDefinition, len(defs))
	for _, sd := range defs {
		byID[sd.SourceID] = sd
	}

	var active []catalog.SourceDefinition
	for _, id := range opts.Selected {
		sd, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSource, id)
		}
		if sd.Enabled {
			active = append(active, sd)
		}
	}
	return active, nil
}

// runSources runs one Orchestrator per SourceDefinition, either all at once
// (parallel) or one at a time (sequential/selective, spec §4.9: selective
// still executes its chosen subset sequentially, since it exists to bound
// *which* sources run, not to change concurrency).
func (d *Driver) runSources(ctx context.Context, defs []catalog.SourceDefinition, rag ragsink.Adapter, bridgeKBID int64, syncMode string) (map[string]SourceStat, Counters, error) {
	stats := make(map[string]SourceStat, len(defs))
	var total Counters
	var mu sync.Mutex
	var firstErr error

	run := func(sd catalog.SourceDefinition) {
		stat, counters, err := d.runOneSource(ctx, sd, rag, bridgeKBID)
		mu.Lock()
		defer mu.Unlock()
		stats[sd.SourceID] = stat
		total.Add(counters)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if syncMode == catalog.SyncModeParallel {
		g, _ := errgroup.WithContext(ctx)
		for _, sd := range defs {
			sd := sd
			g.Go(func() error {
				run(sd)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, sd := range defs {
			run(sd)
		}
	}

	if firstErr != nil {
		return stats, total, fmt.Errorf("%w: %v", ErrSourceFailed, firstErr)
	}
	return stats, total, nil
}

func (d *Driver) runOneSource(ctx context.Context, sd catalog.SourceDefinition, rag ragsink.Adapter, bridgeKBID int64) (SourceStat, Counters, error) {
	adapter, err := d.SourceRegistry.New(sd.SourceTypeTag, sd.SourceConfig)
	if err != nil {
		return SourceStat{Error: err.Error()}, Counters{}, fmt.Errorf("source %q: %w", sd.SourceID, err)
	}

	orch := NewOrchestrator(d.Repo, adapter, rag, d.Config, d.ScanMode, d.Logger)
	orch.MultiSourceKBID = bridgeKBID
	orch.SourceType = sd.SourceTypeTag

	// kbName is unused when MultiSourceKBID is set (the orchestrator scopes
	// its latest-record lookup via LatestRecordsBySource instead), so any
	// stable label works here; sd.SourceID keeps log lines readable.
	counters, syncRunID, err := orch.Run(ctx, bridgeKBID, sd.SourceID, sd.SourceID)

	stat := SourceStat{Counters: counters, SyncRunID: syncRunID}
	if err != nil {
		stat.Error = err.Error()
		return stat, counters, fmt.Errorf("source %q: %w", sd.SourceID, err)
	}
	return stat, counters, nil
}
