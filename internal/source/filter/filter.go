// Package filter implements the config-driven filename filter pipeline every
// source adapter applies to a listing before returning it to the engine.
package filter

import (
	"fmt"
	"path"
	"strings"

	"github.com/gobwas/glob"
)

// Config mirrors the filter keys accepted in a source's source_config JSONB blob.
type Config struct {
	IncludePatterns   []string `mapstructure:"include_patterns" json:"include_patterns"`
	ExcludePatterns   []string `mapstructure:"exclude_patterns" json:"exclude_patterns"`
	IncludeExtensions []string `mapstructure:"include_extensions" json:"include_extensions"`
	ExcludeExtensions []string `mapstructure:"exclude_extensions" json:"exclude_extensions"`
}

// Filter applies the pipeline exclude-ext -> include-ext -> exclude-pattern ->
// include-pattern to a relative file path. The zero value (via New with an empty
// Config) allows everything through.
type Filter struct {
	includeExtensions map[string]struct{}
	excludeExtensions map[string]struct{}
	includePatterns   []glob.Glob
	excludePatterns   []glob.Glob
}

// New compiles cfg into a Filter. Pattern compilation errors are returned
// immediately so a bad config fails at adapter construction, not mid-listing.
func New(cfg Config) (*Filter, error) {
	f := &Filter{
		includeExtensions: normalizeExtensions(cfg.IncludeExtensions),
		excludeExtensions: normalizeExtensions(cfg.ExcludeExtensions),
	}

	var err error
	if f.includePatterns, err = compilePatterns(cfg.IncludePatterns); err != nil {
		return nil, fmt.Errorf("filter: compile include_patterns: %w", err)
	}
	if f.excludePatterns, err = compilePatterns(cfg.ExcludePatterns); err != nil {
		return nil, fmt.Errorf("filter: compile exclude_patterns: %w", err)
	}
	return f, nil
}

// Allow reports whether relPath survives the full pipeline: exclude-ext,
// include-ext (whitelist when non-empty), exclude-pattern, include-pattern (when
// non-empty, relPath must match at least one).
func (f *Filter) Allow(relPath string) bool {
	ext := normalizeExtension(path.Ext(relPath))

	if len(f.excludeExtensions) > 0 {
		if _, excluded := f.excludeExtensions[ext]; excluded {
			return false
		}
	}

	if len(f.includeExtensions) > 0 {
		if _, included := f.includeExtensions[ext]; !included {
			return false
		}
	}

	for _, g := range f.excludePatterns {
		if g.Match(relPath) {
			return false
		}
	}

	if len(f.includePatterns) > 0 {
		for _, g := range f.includePatterns {
			if g.Match(relPath) {
				return true
			}
		}
		return false
	}

	return true
}

// Apply compiles cfg and evaluates relPath in one call. Adapters that filter many
// paths against the same Config should call New once and reuse the Filter instead.
func Apply(cfg Config, relPath string) (bool, error) {
	f, err := New(cfg)
	if err != nil {
		return false, err
	}
	return f.Allow(relPath), nil
}

func compilePatterns(patterns []string) ([]glob.Glob, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		compiled = append(compiled, g)
	}
	return compiled, nil
}

func normalizeExtensions(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		set[normalizeExtension(e)] = struct{}{}
	}
	return set
}

// normalizeExtension lowercases ext and ensures it carries a leading dot, so
// ".PDF", "PDF", and "pdf" all compare equal.
func normalizeExtension(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
