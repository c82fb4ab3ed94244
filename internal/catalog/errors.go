package catalog

import (
	"errors"
	"regexp"
)

// Sentinel errors for catalog operations. These abort the enclosing sync run rather
// than being downgraded to a per-file FileRecord — check with errors.Is().
var (
	// ErrKBNotFound indicates the named KnowledgeBase or MultiSourceKnowledgeBase
	// does not exist.
	ErrKBNotFound = errors.New("catalog: knowledge base not found")

	// ErrKBNameConflict indicates a KnowledgeBase or MultiSourceKnowledgeBase with
	// that name already exists.
	ErrKBNameConflict = errors.New("catalog: knowledge base name already in use")

	// ErrSyncRunNotFound indicates the requested SyncRun or MultiSourceSyncRun does
	// not exist.
	ErrSyncRunNotFound = errors.New("catalog: sync run not found")

	// ErrSchemaBridgeFailed indicates the Multi-Source Driver could not resolve or
	// create a compatible single-source KnowledgeBase to bridge a
	// MultiSourceSyncRun's FileRecords through.
	ErrSchemaBridgeFailed = errors.New("catalog: could not resolve a compatible knowledge base for schema bridging")

	// ErrCancelled indicates the sync run was cancelled before it reached a
	// terminal state.
	ErrCancelled = errors.New("catalog: sync run cancelled")

	// ErrInvalidSourceID indicates a source_id fails the source_id format check.
	ErrInvalidSourceID = errors.New("catalog: invalid source id")

	// ErrDuplicateSourceID indicates a source_id already exists within its
	// MultiSourceKnowledgeBase.
	ErrDuplicateSourceID = errors.New("catalog: duplicate source id within knowledge base")
)

// sourceIDPattern mirrors the source_definition_source_id_format CHECK constraint.
var sourceIDPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidateSourceID reports whether id is an acceptable SourceDefinition.SourceID:
// non-empty and composed only of letters, digits, and underscores.
func ValidateSourceID(id string) error {
	if !sourceIDPattern.MatchString(id) {
		return ErrInvalidSourceID
	}
	return nil
}
