package fingerprint

import (
	"bytes"
	"strings"
	"testing"
)

func TestHash(t *testing.T) {
	t.Parallel()

	got := Hash([]byte("hello world"))

	if len(got) != 64 {
		t.Fatalf("Hash length = %d, want 64 hex chars", len(got))
	}
	if got != Hash([]byte("hello world")) {
		t.Fatal("Hash is not deterministic for identical input")
	}
	if got == Hash([]byte("hello world!")) {
		t.Fatal("Hash collided for different input")
	}
}

func TestHash_Empty(t *testing.T) {
	t.Parallel()

	got := Hash(nil)
	if got != Hash([]byte{}) {
		t.Fatal("Hash(nil) should equal Hash of empty slice")
	}
	if len(got) != 64 {
		t.Fatalf("Hash length = %d, want 64", len(got))
	}
}

func TestHashReader_MatchesHash(t *testing.T) {
	t.Parallel()

	content := []byte("the quick brown fox jumps over the lazy dog")

	fromBytes := Hash(content)
	fromReader, err := HashReader(bytes.NewReader(content))
	if err != nil {
		t.Fatalf("HashReader returned error: %v", err)
	}

	if fromBytes != fromReader {
		t.Fatalf("HashReader = %q, want %q (must match Hash for same content)", fromReader, fromBytes)
	}
}

func TestNewUUIDFilename_PreservesLowercasedExtension(t *testing.T) {
	t.Parallel()

	cases := []struct {
		uri     string
		wantExt string
	}{
		{"reports/Q1-summary.PDF", ".pdf"},
		{"notes.md", ".md"},
		{"archive.tar.gz", ".gz"},
		{"README", ""},
		{"sharepoint://site/docs/Budget.XLSX", ".xlsx"},
	}

	for _, c := range cases {
		got := NewUUIDFilename(c.uri)
		if !strings.HasSuffix(got, c.wantExt) {
			t.Errorf("NewUUIDFilename(%q) = %q, want suffix %q", c.uri, got, c.wantExt)
		}
		if c.wantExt == "" && strings.Contains(got, ".") {
			t.Errorf("NewUUIDFilename(%q) = %q, want no extension", c.uri, got)
		}
	}
}

func TestNewUUIDFilename_UniquePerCall(t *testing.T) {
	t.Parallel()

	a := NewUUIDFilename("file.txt")
	b := NewUUIDFilename("file.txt")
	if a == b {
		t.Fatal("NewUUIDFilename produced the same identifier twice for the same URI")
	}
}
