// Package engine implements the Change Detector, File Processor, Sync-Run
// Orchestrator, Multi-Source Driver, and Scan Mode: the components that turn a
// source listing and a catalog of prior FileRecords into new FileRecords and
// RAG Adapter calls (spec §4.5-§4.10).
package engine

import (
	"time"

	"github.com/kbsync/kbsync/internal/catalog"
	"github.com/kbsync/kbsync/internal/source"
)

// SyncRunCounters is catalog.SyncRunCounters, aliased into the engine package.
// Orchestrator.Run itself reports engine Counters, which Counters.toCatalog
// converts to this type for persistence.
type SyncRunCounters = catalog.SyncRunCounters

// ChangeType is the per-URI classification the Change Detector assigns.
type ChangeType string

const (
	ChangeNew       ChangeType = "new"
	ChangeModified  ChangeType = "modified"
	ChangeUnchanged ChangeType = "unchanged"
	ChangeDeleted   ChangeType = "deleted"
)

// Classification is one URI's change-detection result (spec §4.5): the
// descriptor that produced it (nil for a pure DELETED classification, where
// the URI is absent from the listing), the prior record if one exists, and
// whether the size pre-filter already settled the hash question.
type Classification struct {
	OriginalURI string
	Change      ChangeType

	// Descriptor is the listing entry for this URI, nil when Change ==
	// ChangeDeleted (the URI is no longer present in the source).
	Descriptor *source.Descriptor

	// Existing is the prior latest FileRecord for this URI, nil for a
	// first-ever appearance.
	Existing *catalog.FileRecord

	// SizeDecided is true when the size pre-filter already classified this as
	// MODIFIED (spec §4.5 step 3): the processor still hashes the fetched
	// bytes for the record but does not attempt to downgrade to UNCHANGED on a
	// hash match, since the size mismatch already proves a change.
	SizeDecided bool

	// Restoration is true when Change == ChangeNew because the prior record's
	// status was deleted (spec §4.5 step 2): the processor must reuse
	// Existing.UUIDFilename rather than minting a fresh one.
	Restoration bool

	// FromListing is true when this classification corresponds to an entry the
	// current source listing actually reported (including a DeltaList
	// tombstone), false when it was synthesized by diffing the catalog against
	// a listing that no longer mentions the URI at all (spec §4.5 step 4).
	// Counters.Total counts only FromListing classifications (spec §8 scenario
	// S3: total = size of the listing, not size(listing) + synthesized
	// deletions).
	FromListing bool
}

// Outcome is what the File Processor did for one Classification: the
// FileRecord it wrote (or attempted to write) and whether a RAG Adapter call
// actually occurred, for counters and tests that assert on upload/update counts.
type Outcome struct {
	Record       catalog.FileRecord
	Uploaded     bool
	Updated      bool
	Deleted      bool
	FetchSkipped bool
}

// Counters accumulates the totals a SyncRun or MultiSourceSyncRun reports.
// Spec §4.4/§6: total/new/modified/deleted/errors. "Total" counts the
// classifications produced by entries of the current listing (FromListing);
// a deletion synthesized from the catalog adds to Deleted but not to Total
// (spec §8 S3: total=2 for a two-file listing with one modified and one
// unchanged file, while the third, deleted file only adds to Deleted).
type Counters struct {
	Total    int
	New      int
	Modified int
	Deleted  int
	Errors   int
}

// Add folds other into c, keeping counters monotonic within a run (spec §5).
func (c *Counters) Add(other Counters) {
	c.Total += other.Total
	c.New += other.New
	c.Modified += other.Modified
	c.Deleted += other.Deleted
	c.Errors += other.Errors
}

func (c Counters) toCatalog() catalog.SyncRunCounters {
	return catalog.SyncRunCounters{
		TotalFiles:    c.Total,
		NewFiles:      c.New,
		ModifiedFiles: c.Modified,
		DeletedFiles:  c.Deleted,
	}
}

// clock lets tests substitute a fixed time source; production code uses
// time.Now via the zero value.
type clock func() time.Time

func (c clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}
