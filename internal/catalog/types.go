// Package catalog persists the auditable record of every knowledge base, sync run,
// and file the engine has ever seen. It is the source of truth the Change Detector
// consults before touching a RAG Adapter.
package catalog

import "time"

// Sync run and file record status constants. These match the CHECK constraints on
// sync_run.status, multi_source_sync_run.status, and file_record.status exactly.
const (
	SyncStatusRunning       = "running"
	SyncStatusCompleted     = "completed"
	SyncStatusFailed        = "failed"
	SyncStatusScanRunning   = "scan_running"
	SyncStatusScanCompleted = "scan_completed"
	SyncStatusScanFailed    = "scan_failed"
)

const (
	FileStatusNew       = "new"
	FileStatusModified  = "modified"
	FileStatusUnchanged = "unchanged"
	FileStatusDeleted   = "deleted"
	FileStatusError     = "error"
	FileStatusScanned   = "scanned"
	FileStatusScanError = "scan_error"
)

// Multi-source sync mode constants, matching multi_source_sync_run.sync_mode.
const (
	SyncModeParallel    = "parallel"
	SyncModeSequential  = "sequential"
	SyncModeSelective   = "selective"
	SyncModeIncremental = "incremental"
)

// PlaceholderSourceTypeTag marks a knowledge_base row created solely to satisfy the
// single-source foreign key that multi_source_sync_run rows are bridged through when
// no naturally compatible knowledge base exists (see ResolveCompatibleKBID).
const PlaceholderSourceTypeTag = "multi_source_placeholder"

// KnowledgeBase is a single-source sync target: one source adapter feeding one RAG
// adapter, addressed by a unique name.
type KnowledgeBase struct {
	ID            int64
	Name          string
	SourceTypeTag string
	SourceConfig  map[string]any
	RAGTypeTag    string
	RAGConfig     map[string]any
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// MultiSourceKnowledgeBase fans multiple named SourceDefinitions into a single RAG
// adapter, with a shared file-organization and sync-strategy policy.
type MultiSourceKnowledgeBase struct {
	ID               int64
	Name             string
	RAGTypeTag       string
	RAGConfig        map[string]any
	FileOrganization map[string]any
	SyncStrategy     map[string]any
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SourceDefinition is one named source feeding a MultiSourceKnowledgeBase.
type SourceDefinition struct {
	ID              int64
	MultiSourceKBID int64
	SourceID        string
	SourceTypeTag   string
	SourceConfig    map[string]any
	Enabled         bool
}

// SyncRun records one execution of the engine against a single-source KnowledgeBase,
// including scan-mode executions (status prefixed scan_).
type SyncRun struct {
	ID              int64
	KnowledgeBaseID int64
	StartTime       time.Time
	EndTime         *time.Time
	Status          string
	TotalFiles      int
	NewFiles        int
	ModifiedFiles   int
	DeletedFiles    int
	ErrorMessage    string
}

// MultiSourceSyncRun records one execution of the Multi-Source Driver against a
// MultiSourceKnowledgeBase.
type MultiSourceSyncRun struct {
	ID               int64
	MultiSourceKBID  int64
	StartTime        time.Time
	EndTime          *time.Time
	Status           string
	TotalFiles       int
	NewFiles         int
	ModifiedFiles    int
	DeletedFiles     int
	ErrorMessage     string
	SyncMode         string
	SourcesProcessed []string
	SourceStats      map[string]any
}

// FileRecord is the audit trail entry for a single file observed during a SyncRun:
// its identifiers, its classification, and (for source-attributed files, i.e. those
// coming through a MultiSourceKnowledgeBase) which source produced it.
type FileRecord struct {
	ID               int64
	SyncRunID        int64
	OriginalURI      string
	RAGURI           string
	FileHash         string
	UUIDFilename     string
	UploadTime       time.Time
	FileSize         int64
	Status           string
	ErrorMessage     string
	SourceID         string
	SourceType       string
	SourcePath       string
	ContentType      string
	SourceMetadata   map[string]any
	SourceCreatedAt  *time.Time
	SourceModifiedAt *time.Time
	Tags             []string
}

// DeltaToken is the saved cursor for a Graph-API-backed source's incremental delta
// query, keyed by (SourceID, DriveID).
type DeltaToken struct {
	ID           int64
	SourceID     string
	SourceType   string
	DriveID      string
	DeltaToken   string
	LastSyncTime *time.Time
}
