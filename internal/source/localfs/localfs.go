// Package localfs implements the file_system source adapter: it walks a confined
// root directory on local disk and serves file content straight off the
// filesystem.
package localfs

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/kbsync/kbsync/internal/source"
	"github.com/kbsync/kbsync/internal/source/filter"
)

// Config is the decoded source_config blob for source_type_tag "file_system".
type Config struct {
	RootPath          string   `mapstructure:"root_path" json:"root_path"`
	IncludePatterns   []string `mapstructure:"include_patterns" json:"include_patterns"`
	ExcludePatterns   []string `mapstructure:"exclude_patterns" json:"exclude_patterns"`
	IncludeExtensions []string `mapstructure:"include_extensions" json:"include_extensions"`
	ExcludeExtensions []string `mapstructure:"exclude_extensions" json:"exclude_extensions"`
}

// Adapter walks rootPath confined to its own subtree: no configured path segment
// may escape rootPath via ".." traversal or a symlink pointing outside it.
type Adapter struct {
	rootPath string
	filter   *filter.Filter
}

// New validates cfg and returns a confined Adapter rooted at cfg.RootPath.
func New(cfg Config) (*Adapter, error) {
	if cfg.RootPath == "" {
		return nil, fmt.Errorf("localfs: root_path is required")
	}

	absRoot, err := filepath.Abs(cfg.RootPath)
	if err != nil {
		return nil, fmt.Errorf("localfs: resolve root_path %q: %w", cfg.RootPath, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("localfs: root_path %q: %w", cfg.RootPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("localfs: root_path %q is not a directory", cfg.RootPath)
	}

	f, err := filter.New(filter.Config{
		IncludePatterns:   cfg.IncludePatterns,
		ExcludePatterns:   cfg.ExcludePatterns,
		IncludeExtensions: cfg.IncludeExtensions,
		ExcludeExtensions: cfg.ExcludeExtensions,
	})
	if err != nil {
		return nil, fmt.Errorf("localfs: %w", err)
	}

	return &Adapter{rootPath: absRoot, filter: f}, nil
}

// List walks the confined root and returns every file that survives the filter
// pipeline. original_uri is the path relative to root_path, normalized via
// source.NormalizeURI.
func (a *Adapter) List(ctx context.Context) ([]source.Descriptor, error) {
	var descriptors []source.Descriptor

	err := filepath.WalkDir(a.rootPath, func(walkPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(a.rootPath, walkPath)
		if err != nil {
			return fmt.Errorf("localfs: relativize %q: %w", walkPath, err)
		}
		relPath = filepath.ToSlash(relPath)

		if !a.filter.Allow(relPath) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("localfs: stat %q: %w", walkPath, err)
		}

		modTime := info.ModTime()
		descriptors = append(descriptors, source.Descriptor{
			OriginalURI:      source.NormalizeURI(relPath),
			Size:             info.Size(),
			ContentType:      guessContentType(relPath),
			SourceModifiedAt: &modTime,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walk %q: %v", source.ErrSourceUnavailable, a.rootPath, err)
	}

	return descriptors, nil
}

// Fetch opens originalURI (relative to root_path) and returns its content,
// confined to the configured root.
func (a *Adapter) Fetch(ctx context.Context, originalURI string) (*source.Content, error) {
	absPath, err := a.resolve(originalURI)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, source.ErrNotFound
		}
		return nil, fmt.Errorf("%w: open %q: %v", source.ErrSourceUnavailable, originalURI, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: stat %q: %v", source.ErrSourceUnavailable, originalURI, err)
	}

	modTime := info.ModTime()
	return &source.Content{
		Reader:           f,
		Size:             info.Size(),
		ContentType:      guessContentType(originalURI),
		SourceModifiedAt: &modTime,
	}, nil
}

// resolve turns originalURI into an absolute path guaranteed to live inside
// a.rootPath, rejecting traversal through ".." segments or symlinks that escape it.
func (a *Adapter) resolve(originalURI string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(originalURI))
	if cleaned == "." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) || cleaned == ".." {
		return "", fmt.Errorf("localfs: invalid uri %q", originalURI)
	}

	absPath := filepath.Join(a.rootPath, cleaned)
	rootWithSep := a.rootPath + string(filepath.Separator)
	if !strings.HasPrefix(absPath+string(filepath.Separator), rootWithSep) {
		return "", fmt.Errorf("localfs: uri %q escapes root_path", originalURI)
	}

	if real, err := filepath.EvalSymlinks(absPath); err == nil {
		if !strings.HasPrefix(real+string(filepath.Separator), rootWithSep) && real != a.rootPath {
			return "", fmt.Errorf("localfs: uri %q resolves outside root_path via symlink", originalURI)
		}
		return real, nil
	}

	return absPath, nil
}

func guessContentType(relPath string) string {
	ext := filepath.Ext(relPath)
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
