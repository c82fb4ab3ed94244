package engine

import "errors"

// Sentinel errors for structural/run-fatal failures (spec §7): these abort the
// enclosing SyncRun or MultiSourceSyncRun rather than being downgraded to a
// per-file FileRecord.
var (
	// ErrCancelled indicates the run was cancelled via its context before
	// reaching a terminal state.
	ErrCancelled = errors.New("engine: sync run cancelled")

	// ErrNoEnabledSources indicates a multi-source sync was asked to run with
	// zero enabled (or zero selected, in selective mode) SourceDefinitions.
	ErrNoEnabledSources = errors.New("engine: no enabled sources to sync")

	// ErrUnknownSource indicates a selective sync named a source_id that is
	// not defined on the KnowledgeBase.
	ErrUnknownSource = errors.New("engine: unknown source id")

	// ErrSourceFailed wraps the first source-level failure encountered during
	// a multi-source run, for the driver's own returned error; individual
	// source failures are also recorded in per-source stats and do not stop
	// other sources from running.
	ErrSourceFailed = errors.New("engine: one or more sources failed")
)
