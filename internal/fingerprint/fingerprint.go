// Package fingerprint provides content hashing and stable identifier generation
// for files moving through the sync engine.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Hash computes the content hash used for change detection (spec §4.6). SHA-256 is the
// only algorithm ever produced; the hex string is what gets stored as FileRecord.file_hash.
func Hash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// HashReader computes the content hash while streaming, avoiding a second buffer copy
// for large files fetched from a Source Adapter.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// NewUUIDFilename mints a fresh stable identifier for a file's first appearance:
// a random UUIDv4 followed by the original file's extension, lowercased with its
// leading dot (spec §4.3). If originalURI has no extension, the filename has none either.
func NewUUIDFilename(originalURI string) string {
	ext := strings.ToLower(path.Ext(originalURI))
	return uuid.New().String() + ext
}
