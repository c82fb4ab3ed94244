package localfs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kbsync/kbsync/internal/source"
)

func writeFile(t *testing.T, dir, relPath, content string) {
	t.Helper()
	full := filepath.Join(dir, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
}

func TestNew_RejectsMissingRoot(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{RootPath: filepath.Join(t.TempDir(), "does-not-exist")}); err == nil {
		t.Fatal("expected error for missing root_path")
	}
}

func TestAdapter_List_AppliesFilters(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "docs/readme.md", "hello")
	writeFile(t, dir, "docs/scratch.tmp", "ignored")
	writeFile(t, dir, "other/notes.md", "ignored too")

	a, err := New(Config{
		RootPath:        dir,
		IncludePatterns: []string{"docs/**"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	descriptors, err := a.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if len(descriptors) != 2 {
		t.Fatalf("expected 2 files under docs/, got %d: %+v", len(descriptors), descriptors)
	}
	uris := map[string]bool{}
	for _, d := range descriptors {
		uris[d.OriginalURI] = true
	}
	if !uris["docs/readme.md"] || !uris["docs/scratch.tmp"] {
		t.Errorf("unexpected descriptor set: %v", uris)
	}
}

func TestAdapter_Fetch_ReturnsContent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "readme.md", "hello world")

	a, err := New(Config{RootPath: dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	content, err := a.Fetch(context.Background(), "readme.md")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	defer content.Reader.Close()

	if content.Size != int64(len("hello world")) {
		t.Errorf("Size = %d, want %d", content.Size, len("hello world"))
	}
}

func TestAdapter_Fetch_NotFound(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a, err := New(Config{RootPath: dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = a.Fetch(context.Background(), "missing.md")
	if !errors.Is(err, source.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAdapter_Fetch_RejectsPathTraversal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "inside.txt", "safe")
	// Sibling file outside the configured root, which a traversal attempt targets.
	writeFile(t, filepath.Dir(dir), "outside.txt", "secret")

	a, err := New(Config{RootPath: dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := a.Fetch(context.Background(), "../outside.txt"); err == nil {
		t.Fatal("expected traversal attempt to be rejected")
	}
}
