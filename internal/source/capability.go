// Package source defines the capability contract every source adapter implements
// (local filesystem, SharePoint, OneDrive, or a composite of several), plus the
// config-driven filename filter pipeline applied uniformly across adapters.
package source

import (
	"context"
	"errors"
	"io"
	"time"
)

// Sentinel errors a source adapter surfaces to the engine. The engine downgrades
// these to a per-file error FileRecord rather than aborting the whole sync run.
var (
	// ErrSourceUnavailable indicates an authentication or transport failure talking
	// to the source.
	ErrSourceUnavailable = errors.New("source: unavailable")

	// ErrNotFound indicates a URI requested for Fetch no longer exists (typically
	// deleted between listing and fetch). It is not retried; the File Processor
	// records it as an error FileRecord like any other fetch failure and does not
	// classify the URI as deleted.
	ErrNotFound = errors.New("source: not found")

	// ErrTransient indicates a retryable failure; callers should retry with backoff.
	ErrTransient = errors.New("source: transient error")
)

// Descriptor is one file as seen by a source listing, before content has been
// fetched.
type Descriptor struct {
	OriginalURI      string
	Size             int64
	ContentType      string
	SourceCreatedAt  *time.Time
	SourceModifiedAt *time.Time
	// Tombstone marks this descriptor as a deletion signal from a DeltaList call.
	// Never set by List.
	Tombstone bool
}

// Content is the result of a Fetch call: the byte stream plus the source's
// authoritative size and timestamps, which may differ slightly from what a prior
// List call reported.
type Content struct {
	Reader           io.ReadCloser
	Size             int64
	ContentType      string
	SourceCreatedAt  *time.Time
	SourceModifiedAt *time.Time
}

// Adapter is the capability contract every source implements.
type Adapter interface {
	// List produces the set of file descriptors currently visible in the source,
	// after the configured include/exclude filters have been applied.
	List(ctx context.Context) ([]Descriptor, error)

	// Fetch returns the named file's content. Returns ErrNotFound if the URI no
	// longer exists.
	Fetch(ctx context.Context, originalURI string) (*Content, error)
}

// DeltaCapable is implemented by Graph-like sources that can return an incremental
// listing since a previously saved cursor.
type DeltaCapable interface {
	Adapter

	// DeltaList returns descriptors changed since token (nil/empty token means
	// "from the beginning") plus the cursor to save for the next call. Descriptors
	// with Tombstone set represent deletions.
	DeltaList(ctx context.Context, token string) (descriptors []Descriptor, nextToken string, err error)
}

// DriveIdentifiable is implemented by DeltaCapable adapters that are backed by
// a specific drive_id, the second half of the Delta-Token Manager's
// (source_id, drive_id) key (spec §4.7). An adapter without a natural
// drive_id (e.g. localfs) does not implement this; the orchestrator falls
// back to a fixed drive_id of "default" for such adapters if they otherwise
// report DeltaCapable (which, in practice, only Graph-backed adapters do).
type DriveIdentifiable interface {
	DriveID(ctx context.Context) (string, error)
}
