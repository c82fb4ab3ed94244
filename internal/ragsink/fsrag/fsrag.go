// Package fsrag implements the RAG type "file_system_storage": artifacts are
// written as plain files under a configured storage root, with a sidecar
// metadata file per artifact. It is the on-disk analog of mockrag, usable as a
// durable single-node RAG backend without any cloud dependency.
//
// Each artifact is identified by its uuid_filename, matching the
// (SessionID, Filename)-keyed identity the teacher's artifact store used for
// Canvas artifacts — here the "session" dimension collapses to a single
// per-KB directory, since a uuid_filename is already globally unique.
package fsrag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/kbsync/kbsync/internal/ragsink"
)

// MetadataFormat selects the sidecar file's serialization.
type MetadataFormat string

const (
	MetadataFormatJSON MetadataFormat = "json"
	MetadataFormatYAML MetadataFormat = "yaml"
)

// Config is the decoded rag_config blob for rag_type_tag "file_system_storage".
type Config struct {
	StoragePath        string         `mapstructure:"storage_path" json:"storage_path"`
	RootPath           string         `mapstructure:"root_path" json:"root_path"` // alias for StoragePath
	KBName             string         `mapstructure:"kb_name" json:"kb_name"`
	CreateDirs         bool           `mapstructure:"create_dirs" json:"create_dirs"`
	PreserveStructure  bool           `mapstructure:"preserve_structure" json:"preserve_structure"`
	MetadataFormat     MetadataFormat `mapstructure:"metadata_format" json:"metadata_format"`
}

// ErrInvalidFilename mirrors the teacher artifact store's filename validation:
// a uuid_filename must never carry path separators or traversal segments, since
// it is joined directly onto the storage root.
var ErrInvalidFilename = errors.New("fsrag: invalid filename")

// ValidateFilename checks that name is safe to join onto the storage root: no
// path separators, no traversal, non-empty, bounded length.
func ValidateFilename(name string) error {
	if name == "" || len(name) > 255 {
		return ErrInvalidFilename
	}
	for _, c := range name {
		if c == '/' || c == '\\' || c == 0 {
			return ErrInvalidFilename
		}
	}
	if name == "." || name == ".." {
		return ErrInvalidFilename
	}
	return nil
}

// Adapter persists artifacts as files under root, with a sidecar metadata file
// per artifact guarded by a flock-based file lock so concurrent workers never
// interleave writes to the same uuid_filename.
type Adapter struct {
	root           string
	metadataFormat MetadataFormat
}

// New validates cfg and returns an Adapter rooted at its storage path, creating
// the directory tree if CreateDirs is set.
func New(cfg Config) (*Adapter, error) {
	root := cfg.StoragePath
	if root == "" {
		root = cfg.RootPath
	}
	if root == "" {
		return nil, fmt.Errorf("fsrag: storage_path (or root_path) is required")
	}

	format := cfg.MetadataFormat
	if format == "" {
		format = MetadataFormatJSON
	}
	if format != MetadataFormatJSON && format != MetadataFormatYAML {
		return nil, fmt.Errorf("fsrag: unrecognized metadata_format %q", format)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("fsrag: resolve storage_path %q: %w", root, err)
	}

	if cfg.CreateDirs {
		if err := os.MkdirAll(absRoot, 0o750); err != nil {
			return nil, fmt.Errorf("fsrag: create storage_path %q: %w", root, err)
		}
	} else if info, err := os.Stat(absRoot); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("fsrag: storage_path %q does not exist (set create_dirs: true)", root)
	}

	return &Adapter{root: absRoot, metadataFormat: format}, nil
}

func (a *Adapter) contentPath(filename string) string  { return filepath.Join(a.root, filename) }
func (a *Adapter) metaPath(filename string) string      { return filepath.Join(a.root, filename+".meta") }
func (a *Adapter) lockPath(filename string) string      { return filepath.Join(a.root, "."+filename+".lock") }

// Upload writes content and its metadata sidecar to filename, overwriting
// whatever was already there — Upload is idempotent under a stable filename
// per the RAG Adapter contract (spec §4.2).
func (a *Adapter) Upload(ctx context.Context, content io.Reader, filename string, metadata ragsink.Metadata) (string, error) {
	if err := ValidateFilename(filename); err != nil {
		return "", err
	}

	lock := flock.New(a.lockPath(filename))
	if err := lock.Lock(); err != nil {
		return "", fmt.Errorf("%w: lock %q: %v", ragsink.ErrAdapterUnavailable, filename, err)
	}
	defer lock.Unlock()

	if err := a.writeContent(filename, content); err != nil {
		return "", err
	}
	if err := a.writeMetadata(filename, metadata); err != nil {
		return "", err
	}
	return filename, nil
}

// Update overwrites the artifact at ragURI. Returns ErrConflict if ragURI does
// not refer to an existing artifact (spec §9 reference behavior).
func (a *Adapter) Update(ctx context.Context, ragURI string, content io.Reader, metadata ragsink.Metadata) error {
	if err := ValidateFilename(ragURI); err != nil {
		return err
	}

	lock := flock.New(a.lockPath(ragURI))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("%w: lock %q: %v", ragsink.ErrAdapterUnavailable, ragURI, err)
	}
	defer lock.Unlock()

	if _, err := os.Stat(a.contentPath(ragURI)); err != nil {
		if os.IsNotExist(err) {
			return ragsink.ErrConflict
		}
		return fmt.Errorf("%w: stat %q: %v", ragsink.ErrAdapterUnavailable, ragURI, err)
	}

	if err := a.writeContent(ragURI, content); err != nil {
		return err
	}
	return a.writeMetadata(ragURI, metadata)
}

// Delete removes the artifact and its metadata sidecar. Returns ErrNotFound if
// the content file does not exist; non-fatal per spec §4.2.
func (a *Adapter) Delete(ctx context.Context, ragURI string) error {
	if err := ValidateFilename(ragURI); err != nil {
		return err
	}

	lock := flock.New(a.lockPath(ragURI))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("%w: lock %q: %v", ragsink.ErrAdapterUnavailable, ragURI, err)
	}
	defer lock.Unlock()

	if err := os.Remove(a.contentPath(ragURI)); err != nil {
		if os.IsNotExist(err) {
			return ragsink.ErrNotFound
		}
		return fmt.Errorf("%w: remove %q: %v", ragsink.ErrAdapterUnavailable, ragURI, err)
	}
	_ = os.Remove(a.metaPath(ragURI))
	_ = os.Remove(a.lockPath(ragURI))
	return nil
}

// List enumerates every artifact whose filename starts with prefix.
func (a *Adapter) List(ctx context.Context, prefix string) ([]ragsink.ArtifactInfo, error) {
	entries, err := os.ReadDir(a.root)
	if err != nil {
		return nil, fmt.Errorf("%w: read storage root: %v", ragsink.ErrAdapterUnavailable, err)
	}

	var out []ragsink.ArtifactInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasSuffix(name, ".meta") || strings.HasSuffix(name, ".lock") || strings.HasPrefix(name, ".") {
			continue
		}
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		md, _ := a.readMetadata(name)
		out = append(out, ragsink.ArtifactInfo{RAGURI: name, Size: info.Size(), Metadata: md})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RAGURI < out[j].RAGURI })
	return out, nil
}

// Get returns the metadata for ragURI, or ErrNotFound.
func (a *Adapter) Get(ctx context.Context, ragURI string) (*ragsink.ArtifactInfo, error) {
	if err := ValidateFilename(ragURI); err != nil {
		return nil, err
	}

	info, err := os.Stat(a.contentPath(ragURI))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ragsink.ErrNotFound
		}
		return nil, fmt.Errorf("%w: stat %q: %v", ragsink.ErrAdapterUnavailable, ragURI, err)
	}

	md, err := a.readMetadata(ragURI)
	if err != nil {
		return nil, err
	}
	return &ragsink.ArtifactInfo{RAGURI: ragURI, Size: info.Size(), Metadata: md}, nil
}

func (a *Adapter) writeContent(filename string, content io.Reader) error {
	f, err := os.OpenFile(a.contentPath(filename), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("%w: open %q: %v", ragsink.ErrAdapterUnavailable, filename, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, content); err != nil {
		return fmt.Errorf("%w: write %q: %v", ragsink.ErrAdapterUnavailable, filename, err)
	}
	return nil
}

func (a *Adapter) writeMetadata(filename string, metadata ragsink.Metadata) error {
	if metadata == nil {
		metadata = ragsink.Metadata{}
	}

	var data []byte
	var err error
	if a.metadataFormat == MetadataFormatYAML {
		data, err = yaml.Marshal(metadata)
	} else {
		data, err = json.MarshalIndent(metadata, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("fsrag: marshal metadata for %q: %w", filename, err)
	}

	if err := os.WriteFile(a.metaPath(filename), data, 0o640); err != nil {
		return fmt.Errorf("%w: write metadata for %q: %v", ragsink.ErrAdapterUnavailable, filename, err)
	}
	return nil
}

func (a *Adapter) readMetadata(filename string) (ragsink.Metadata, error) {
	data, err := os.ReadFile(a.metaPath(filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ragsink.Metadata{}, nil
		}
		return nil, fmt.Errorf("%w: read metadata for %q: %v", ragsink.ErrAdapterUnavailable, filename, err)
	}

	md := ragsink.Metadata{}
	if a.metadataFormat == MetadataFormatYAML {
		err = yaml.Unmarshal(data, &md)
	} else {
		err = json.Unmarshal(data, &md)
	}
	if err != nil {
		return nil, fmt.Errorf("fsrag: unmarshal metadata for %q: %w", filename, err)
	}
	return md, nil
}
