package engine

import (
	"time"

	"github.com/kbsync/kbsync/internal/catalog"
	"github.com/kbsync/kbsync/internal/source"
)

// Detector implements the per-URI classification rules of spec §4.5: given a
// source listing and the catalog's latest-record-per-URI map, it decides which
// URIs are NEW, MODIFIED (tentative or size-decided), UNCHANGED, or DELETED,
// applying the size and mtime pre-filters before any byte is fetched.
type Detector struct {
	// MtimeTolerance is the allowed clock-skew window when comparing a
	// listing's source_modified_at against the stored value (spec §9: default
	// ±2s, never loosened without evidence).
	MtimeTolerance time.Duration
}

// NewDetector builds a Detector with the given mtime tolerance.
func NewDetector(mtimeTolerance time.Duration) *Detector {
	return &Detector{MtimeTolerance: mtimeTolerance}
}

// Detect classifies every URI in listing against latest (the output of
// catalog.Repository.LatestRecordsByKB), plus every URI present in latest with
// a live status that listing no longer reports (spec §4.5 step 4: DELETED,
// unless already deleted).
func (d *Detector) Detect(listing []source.Descriptor, latest map[string]catalog.FileRecord) []Classification {
	seen := make(map[string]struct{}, len(listing))
	classifications := make([]Classification, 0, len(listing))

	for i := range listing {
		desc := listing[i]
		seen[desc.OriginalURI] = struct{}{}

		if desc.Tombstone {
			classifications = append(classifications, d.classifyTombstone(desc, latest)...)
			continue
		}

		classifications = append(classifications, d.classifyPresent(desc, latest))
	}

	for uri, rec := range latest {
		if _, present := seen[uri]; present {
			continue
		}
		if rec.Status == catalog.FileStatusDeleted {
			// Already deleted and still absent: no-op, spec §4.5 step 4 /
			// testable property 4 (delete suppression).
			continue
		}
		existing := rec
		classifications = append(classifications, Classification{
			OriginalURI: uri,
			Change:      ChangeDeleted,
			Existing:    &existing,
		})
	}

	return classifications
}

// classifyTombstone handles a DeltaList-reported deletion signal the same way
// the absent-from-listing path does: DELETED unless already deleted.
func (d *Detector) classifyTombstone(desc source.Descriptor, latest map[string]catalog.FileRecord) []Classification {
	rec, ok := latest[desc.OriginalURI]
	if !ok || rec.Status == catalog.FileStatusDeleted {
		return nil
	}
	existing := rec
	return []Classification{{
		OriginalURI: desc.OriginalURI,
		Change:      ChangeDeleted,
		Existing:    &existing,
		FromListing: true,
	}}
}

func (d *Detector) classifyPresent(desc source.Descriptor, latest map[string]catalog.FileRecord) Classification {
	descCopy := desc

	rec, ok := latest[desc.OriginalURI]
	if !ok {
		// Step 1: never seen before.
		return Classification{OriginalURI: desc.OriginalURI, Change: ChangeNew, Descriptor: &descCopy, FromListing: true}
	}

	existing := rec

	if rec.Status == catalog.FileStatusDeleted {
		// Step 2: restoration — NEW, but the processor must reuse the prior
		// uuid_filename (spec §4.5 step 2, testable property 5).
		return Classification{
			OriginalURI: desc.OriginalURI,
			Change:      ChangeNew,
			Descriptor:  &descCopy,
			Existing:    &existing,
			Restoration: true,
			FromListing: true,
		}
	}

	// Step 3: size pre-filter.
	if desc.Size != rec.FileSize {
		return Classification{
			OriginalURI: desc.OriginalURI,
			Change:      ChangeModified,
			Descriptor:  &descCopy,
			Existing:    &existing,
			SizeDecided: true,
			FromListing: true,
		}
	}

	// Mtime pre-filter: both sides known and within tolerance => UNCHANGED.
	if desc.SourceModifiedAt != nil && rec.SourceModifiedAt != nil {
		delta := desc.SourceModifiedAt.Sub(*rec.SourceModifiedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta <= d.MtimeTolerance {
			return Classification{
				OriginalURI: desc.OriginalURI,
				Change:      ChangeUnchanged,
				Descriptor:  &descCopy,
				Existing:    &existing,
				FromListing: true,
			}
		}
	}

	// Tentative MODIFIED: processor fetches, hashes, and may downgrade to
	// UNCHANGED on a hash match (spec §4.5 step 3 "otherwise", testable
	// property 8).
	return Classification{
		OriginalURI: desc.OriginalURI,
		Change:      ChangeModified,
		Descriptor:  &descCopy,
		Existing:    &existing,
		FromListing: true,
	}
}
