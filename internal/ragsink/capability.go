// Package ragsink defines the capability contract every RAG backend adapter
// implements (in-memory mock, local file system, Azure Blob), plus the registry
// that maps a rag_type_tag to the adapter it constructs.
package ragsink

import (
	"context"
	"errors"
	"io"
)

// Sentinel errors a RAG adapter surfaces to the engine. The engine downgrades
// these to a per-file error FileRecord rather than aborting the whole sync run,
// except where noted.
var (
	// ErrAdapterUnavailable indicates a transport or authentication failure
	// talking to the RAG backend.
	ErrAdapterUnavailable = errors.New("ragsink: adapter unavailable")

	// ErrConflict indicates an Update was attempted against a rag_uri the backend
	// does not recognize (spec §9: RAG Update on a non-existent rag_uri is treated
	// as a conflict, not silently re-uploaded).
	ErrConflict = errors.New("ragsink: conflict")

	// ErrTransient indicates a retryable failure; callers should retry with backoff.
	ErrTransient = errors.New("ragsink: transient error")

	// ErrNotFound indicates the requested rag_uri does not exist. Non-fatal for
	// Delete (spec §4.2: "NotFound is non-fatal").
	ErrNotFound = errors.New("ragsink: not found")
)

// Metadata is the set of descriptive tags the engine attaches to an artifact on
// Upload/Update, and that List/Get return back.
type Metadata map[string]string

// ArtifactInfo describes one artifact as returned by List or Get.
type ArtifactInfo struct {
	RAGURI   string
	Size     int64
	Metadata Metadata
}

// Adapter is the capability contract every RAG backend implements.
//
// Upload must be idempotent under a stable filename: uploading the same filename
// twice overwrites rather than erroring or duplicating (spec §4.2). Implementations
// must be safe for concurrent calls under distinct filenames/rag_uris; the engine
// guarantees no two workers ever call Upload/Update/Delete for the same rag_uri
// concurrently.
type Adapter interface {
	// Upload creates a new artifact from content, named filename (the
	// UUID-based name from fingerprint.NewUUIDFilename), tagged with metadata.
	// Returns the backend-assigned rag_uri.
	Upload(ctx context.Context, content io.Reader, filename string, metadata Metadata) (ragURI string, err error)

	// Update overwrites the artifact addressed by ragURI in place.
	Update(ctx context.Context, ragURI string, content io.Reader, metadata Metadata) error

	// Delete best-effort removes the artifact addressed by ragURI. Returns
	// ErrNotFound if it does not exist; callers treat that as non-fatal.
	Delete(ctx context.Context, ragURI string) error

	// List enumerates artifacts whose rag_uri begins with prefix (empty prefix
	// lists everything). Used for reconciliation and the connectivity check.
	List(ctx context.Context, prefix string) ([]ArtifactInfo, error)

	// Get returns the metadata for a single artifact, or ErrNotFound.
	Get(ctx context.Context, ragURI string) (*ArtifactInfo, error)
}
