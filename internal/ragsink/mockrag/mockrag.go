// Package mockrag implements the RAG type "mock": an in-memory sink used by the
// engine's own test suite and by operators running a dry KB for smoke tests. It
// carries no configuration and no durability — restarting the process loses
// everything it holds.
package mockrag

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/kbsync/kbsync/internal/ragsink"
)

// Adapter is an in-memory ragsink.Adapter. Safe for concurrent use.
type Adapter struct {
	mu        sync.Mutex
	artifacts map[string]entry
	seq       int
}

type entry struct {
	content  []byte
	metadata ragsink.Metadata
}

// New constructs an empty Adapter. config is accepted (and ignored) so it can be
// registered under rag_type_tag "mock" with the same Factory signature as every
// other backend.
func New(config map[string]any) (*Adapter, error) {
	return &Adapter{artifacts: make(map[string]entry)}, nil
}

// Upload stores content under a freshly minted rag_uri derived from filename.
func (a *Adapter) Upload(ctx context.Context, content io.Reader, filename string, metadata ragsink.Metadata) (string, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	ragURI := "mock://" + filename

	a.artifacts[ragURI] = entry{content: data, metadata: cloneMetadata(metadata)}
	return ragURI, nil
}

// Update overwrites the artifact at ragURI. Returns ErrConflict if it does not
// already exist, mirroring the reference RAG-update-on-missing-uri semantics
// (spec §9).
func (a *Adapter) Update(ctx context.Context, ragURI string, content io.Reader, metadata ragsink.Metadata) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.artifacts[ragURI]; !ok {
		return ragsink.ErrConflict
	}
	a.artifacts[ragURI] = entry{content: data, metadata: cloneMetadata(metadata)}
	return nil
}

// Delete removes the artifact at ragURI. Returns ErrNotFound if absent.
func (a *Adapter) Delete(ctx context.Context, ragURI string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.artifacts[ragURI]; !ok {
		return ragsink.ErrNotFound
	}
	delete(a.artifacts, ragURI)
	return nil
}

// List enumerates artifacts whose rag_uri starts with prefix, sorted by rag_uri
// for deterministic test output.
func (a *Adapter) List(ctx context.Context, prefix string) ([]ragsink.ArtifactInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []ragsink.ArtifactInfo
	for uri, e := range a.artifacts {
		if prefix != "" && !strings.HasPrefix(uri, prefix) {
			continue
		}
		out = append(out, ragsink.ArtifactInfo{
			RAGURI:   uri,
			Size:     int64(len(e.content)),
			Metadata: cloneMetadata(e.metadata),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RAGURI < out[j].RAGURI })
	return out, nil
}

// Get returns the metadata for ragURI, or ErrNotFound.
func (a *Adapter) Get(ctx context.Context, ragURI string) (*ragsink.ArtifactInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.artifacts[ragURI]
	if !ok {
		return nil, ragsink.ErrNotFound
	}
	return &ragsink.ArtifactInfo{RAGURI: ragURI, Size: int64(len(e.content)), Metadata: cloneMetadata(e.metadata)}, nil
}

// Content returns the raw bytes stored at ragURI, for tests that need to assert
// on what was actually uploaded rather than just that an Upload happened.
func (a *Adapter) Content(ragURI string) ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.artifacts[ragURI]
	if !ok {
		return nil, false
	}
	return bytes.Clone(e.content), true
}

// Len reports how many artifacts are currently stored.
func (a *Adapter) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.artifacts)
}

func cloneMetadata(m ragsink.Metadata) ragsink.Metadata {
	if m == nil {
		return ragsink.Metadata{}
	}
	out := make(ragsink.Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
