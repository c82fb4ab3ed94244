package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kbsync/kbsync/internal/catalog"
	"github.com/kbsync/kbsync/internal/ragsink"
	"github.com/kbsync/kbsync/internal/source"
)

// OrchestratorConfig bounds one Orchestrator's concurrency and timeout
// behavior (spec §4.8/§5). Zero fields take the package defaults.
type OrchestratorConfig struct {
	Workers         int
	QueueDepth      int
	FileTimeout     time.Duration
	CancelGrace     time.Duration
	MtimeTolerance  time.Duration
	Retry           RetryPolicy
}

// DefaultOrchestratorConfig mirrors config.Default* (spec §5): 8 workers, a
// 256-deep classification queue, 60s per-file timeout, a 5s cancellation
// grace window, and a ±2s mtime tolerance.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		Workers:        8,
		QueueDepth:     256,
		FileTimeout:    60 * time.Second,
		CancelGrace:    5 * time.Second,
		MtimeTolerance: 2 * time.Second,
		Retry: RetryPolicy{
			MaxAttempts:     3,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     3200 * time.Millisecond,
		},
	}
}

func (c OrchestratorConfig) withDefaults() OrchestratorConfig {
	d := DefaultOrchestratorConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = d.QueueDepth
	}
	if c.FileTimeout <= 0 {
		c.FileTimeout = d.FileTimeout
	}
	if c.CancelGrace <= 0 {
		c.CancelGrace = d.CancelGrace
	}
	if c.MtimeTolerance <= 0 {
		c.MtimeTolerance = d.MtimeTolerance
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry = d.Retry
	}
	return c
}

// Orchestrator drives one SyncRun to completion for a single-source
// KnowledgeBase: it lists (full or delta), classifies against the catalog's
// latest-record map, fans classifications out to a bounded worker pool of
// Processors, and finalizes the run with accumulated counters (component H,
// spec §4.8).
//
// State machine: INIT -> LISTING -> CLASSIFYING -> PROCESSING -> FINALIZING
// -> DONE | FAILED.
type Orchestrator struct {
	Repo     *catalog.Repository
	Source   source.Adapter
	RAG      ragsink.Adapter
	Config   OrchestratorConfig
	Logger   *slog.Logger
	ScanMode bool

	// SourceType, when set, is stamped onto every FileRecord this Orchestrator
	// writes and is the "source_type" half of the multi-source attribution
	// columns (spec §6). Used by the Multi-Source Driver; a single-source
	// KnowledgeBase run leaves this empty.
	SourceType string

	// MultiSourceKBID, when non-zero, scopes the latest-record lookup to
	// records previously written for the same (kbID, sourceID) pair via
	// Repository.LatestRecordsBySource instead of LatestRecordsByKB, since
	// several SourceDefinitions share one schema-bridge KnowledgeBase (spec
	// §4.9). Set by the Multi-Source Driver; zero for single-source runs.
	MultiSourceKBID int64

	clock clock
}

// NewOrchestrator builds an Orchestrator. A nil logger installs slog.Default.
func NewOrchestrator(repo *catalog.Repository, src source.Adapter, rag ragsink.Adapter, cfg OrchestratorConfig, scanMode bool, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		Repo:     repo,
		Source:   src,
		RAG:      rag,
		Config:   cfg.withDefaults(),
		Logger:   logger,
		ScanMode: scanMode,
	}
}

// Run executes one full sync against kbName, keying delta tokens under
// sourceID (typically the KnowledgeBase name itself for single-source runs).
// It returns the terminal Counters and the SyncRun's id regardless of
// whether the run succeeded; err is non-nil only when the run itself failed
// (listing failure, catalog failure, or cancellation), never for individual
// per-file errors, which are captured as FileRecord rows instead.
func (o *Orchestrator) Run(ctx context.Context, kbID int64, kbName, sourceID string) (Counters, int64, error) {
	startStatus := catalog.SyncStatusRunning
	if o.ScanMode {
		startStatus = catalog.SyncStatusScanRunning
	}

	syncRunID, err := o.Repo.CreateSyncRun(ctx, kbID, startStatus)
	if err != nil {
		return Counters{}, 0, fmt.Errorf("engine: create sync run: %w", err)
	}

	counters, runErr := o.runInner(ctx, kbName, sourceID, syncRunID)

	finalStatus := catalog.SyncStatusCompleted
	if o.ScanMode {
		finalStatus = catalog.SyncStatusScanCompleted
	}
	errMsg := ""
	if runErr != nil {
		finalStatus = catalog.SyncStatusFailed
		if o.ScanMode {
			finalStatus = catalog.SyncStatusScanFailed
		}
		errMsg = runErr.Error()
	}

	if finalizeErr := o.Repo.FinalizeSyncRun(ctx, syncRunID, counters.toCatalog(), finalStatus, errMsg, nil); finalizeErr != nil {
		if runErr != nil {
			return counters, syncRunID, fmt.Errorf("%w (also failed to finalize: %v)", runErr, finalizeErr)
		}
		return counters, syncRunID, fmt.Errorf("engine: finalize sync run %d: %w", syncRunID, finalizeErr)
	}

	return counters, syncRunID, runErr
}

func (o *Orchestrator) runInner(ctx context.Context, kbName, sourceID string, syncRunID int64) (Counters, error) {
	// LISTING
	dtm := &deltaTokenManager{repo: o.Repo}
	listing, driveID, nextToken, err := dtm.listing(ctx, sourceID, o.Source)
	if err != nil {
		return Counters{}, fmt.Errorf("engine: listing: %w", err)
	}

	// CLASSIFYING
	var latest map[string]catalog.FileRecord
	if o.MultiSourceKBID != 0 {
		latest, err = o.Repo.LatestRecordsBySource(ctx, o.MultiSourceKBID, sourceID)
	} else {
		latest, err = o.Repo.LatestRecordsByKB(ctx, kbName)
	}
	if err != nil {
		return Counters{}, fmt.Errorf("engine: load latest records: %w", err)
	}

	detector := NewDetector(o.Config.MtimeTolerance)
	classifications := detector.Detect(listing, latest)

	// PROCESSING
	processor := NewProcessor(kbName, o.Source, o.RAG, o.Config.Retry, o.ScanMode, o.Logger)
	counters, procErr := o.process(ctx, processor, classifications, syncRunID, sourceID)

	// FINALIZING: persist the new delta token only on a clean run, so a
	// failed/cancelled run is retried from the same cursor next time.
	if procErr == nil {
		if saveErr := dtm.save(ctx, sourceID, "", driveID, nextToken); saveErr != nil {
			o.Logger.Warn("failed to save delta token", "source_id", sourceID, "drive_id", driveID, "error", saveErr)
		}
	}

	return counters, procErr
}

// process fans classifications out to a bounded worker pool with
// backpressure (spec §5: default 256-deep queue, 8 workers), enforcing a
// per-file timeout and, on cancellation, a grace window for in-flight work
// before abandoning the rest.
func (o *Orchestrator) process(ctx context.Context, processor *Processor, classifications []Classification, syncRunID int64, sourceID string) (Counters, error) {
	queue := make(chan Classification, o.Config.QueueDepth)

	var mu sync.Mutex
	var total Counters
	var firstErr error

	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < o.Config.Workers; i++ {
		g.Go(func() error {
			for c := range queue {
				_, counters, err := o.processOne(gctx, processor, c, syncRunID, sourceID)
				mu.Lock()
				total.Add(counters)
				if err != nil && firstErr == nil && !errors.Is(err, context.Canceled) {
					firstErr = err
				}
				mu.Unlock()
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(queue)
		for _, c := range classifications {
			select {
			case queue <- c:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	waitErr := o.waitWithGrace(ctx, g)

	mu.Lock()
	defer mu.Unlock()
	if firstErr != nil {
		return total, firstErr
	}
	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		return total, waitErr
	}
	if ctx.Err() != nil {
		return total, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	}
	return total, nil
}

// waitWithGrace waits for the worker group, but if the parent ctx is
// cancelled it allows CancelGrace extra time for in-flight workers to finish
// their current file before the group's own context (derived from ctx) force
// -stops them.
func (o *Orchestrator) waitWithGrace(ctx context.Context, g *errgroup.Group) error {
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		select {
		case err := <-done:
			return err
		case <-time.After(o.Config.CancelGrace):
			return ctx.Err()
		}
	}
}

func (o *Orchestrator) processOne(ctx context.Context, processor *Processor, c Classification, syncRunID int64, sourceID string) (Outcome, Counters, error) {
	fileCtx, cancel := context.WithTimeout(ctx, o.Config.FileTimeout)
	defer cancel()

	outcome, err := processor.Process(fileCtx, c)
	if err != nil {
		return Outcome{}, Counters{}, err
	}

	outcome.Record.SyncRunID = syncRunID
	if o.MultiSourceKBID != 0 {
		outcome.Record.SourceID = sourceID
		outcome.Record.SourceType = o.SourceType
	}
	if insertErr := o.Repo.InsertFileRecord(ctx, &outcome.Record); insertErr != nil {
		return outcome, Counters{}, fmt.Errorf("engine: insert file record for %q: %w", c.OriginalURI, insertErr)
	}

	return outcome, countersFor(c, outcome), nil
}

// countersFor derives the Total/New/Modified/Deleted/Errors counters for one
// processed classification. The written record's Status is authoritative
// except in scan mode, where New/Modified/Unchanged all collapse to
// "scanned" (spec §4.10) and the original Classification.Change is consulted
// instead; a hash-verified downgrade from tentative MODIFIED to UNCHANGED
// (spec §4.6) is still reflected correctly since it changes Status, not
// Change.
//
// Total counts only classifications the current listing actually produced
// (c.FromListing): a DELETED classification synthesized by diffing the
// catalog against a listing that no longer mentions the URI at all still
// increments Deleted, but not Total (spec §8 scenario S3: total = size of
// the listing).
func countersFor(c Classification, o Outcome) Counters {
	var counters Counters
	if c.FromListing {
		counters.Total = 1
	}

	status := o.Record.Status
	if status == catalog.FileStatusScanned {
		switch c.Change {
		case ChangeNew:
			status = catalog.FileStatusNew
		case ChangeModified:
			status = catalog.FileStatusModified
			if !c.SizeDecided && c.Existing != nil && o.Record.FileHash == c.Existing.FileHash {
				status = catalog.FileStatusUnchanged
			}
		case ChangeDeleted:
			status = catalog.FileStatusDeleted
		default:
			status = catalog.FileStatusUnchanged
		}
	}

	switch status {
	case catalog.FileStatusNew:
		counters.New = 1
	case catalog.FileStatusModified:
		counters.Modified = 1
	case catalog.FileStatusDeleted:
		counters.Deleted = 1
	case catalog.FileStatusError, catalog.FileStatusScanError:
		counters.Errors = 1
	}
	return counters
}
