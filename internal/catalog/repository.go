package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgx operations the Repository needs. Defined by the
// consumer rather than the provider, so tests can substitute a pgx.Tx or a fake.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists KnowledgeBases, sync runs, and FileRecords against Postgres.
//
// Repository is safe for concurrent use by multiple goroutines.
type Repository struct {
	querier Querier
	pool    *pgxpool.Pool // used for transactional operations; nil is acceptable in tests
	logger  *slog.Logger
}

// NewRepository creates a Repository backed by pool. Passing a nil logger installs
// slog.Default().
func NewRepository(pool *pgxpool.Pool, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{querier: pool, pool: pool, logger: logger}
}

func marshalJSONB(v map[string]any) ([]byte, error) {
	if v == nil {
		v = map[string]any{}
	}
	return json.Marshal(v)
}

func unmarshalJSONB(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return map[string]any{}, nil
	}
	var v map[string]any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// --- KnowledgeBase ---------------------------------------------------------

// GetKnowledgeBaseByName retrieves a single-source KnowledgeBase by its unique name.
func (r *Repository) GetKnowledgeBaseByName(ctx context.Context, name string) (*KnowledgeBase, error) {
	row := r.querier.QueryRow(ctx, `
		SELECT id, name, source_type_tag, source_config, rag_type_tag, rag_config, created_at, updated_at
		FROM knowledge_base WHERE name = $1`, name)

	var kb KnowledgeBase
	var sourceConfig, ragConfig []byte
	if err := row.Scan(&kb.ID, &kb.Name, &kb.SourceTypeTag, &sourceConfig, &kb.RAGTypeTag, &ragConfig,
		&kb.CreatedAt, &kb.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKBNotFound
		}
		return nil, fmt.Errorf("catalog: get knowledge base %q: %w", name, err)
	}

	var err error
	if kb.SourceConfig, err = unmarshalJSONB(sourceConfig); err != nil {
		return nil, fmt.Errorf("catalog: unmarshal source_config for %q: %w", name, err)
	}
	if kb.RAGConfig, err = unmarshalJSONB(ragConfig); err != nil {
		return nil, fmt.Errorf("catalog: unmarshal rag_config for %q: %w", name, err)
	}
	return &kb, nil
}

// GetKnowledgeBaseByID retrieves a single-source KnowledgeBase by primary key.
func (r *Repository) GetKnowledgeBaseByID(ctx context.Context, id int64) (*KnowledgeBase, error) {
	row := r.querier.QueryRow(ctx, `
		SELECT id, name, source_type_tag, source_config, rag_type_tag, rag_config, created_at, updated_at
		FROM knowledge_base WHERE id = $1`, id)

	var kb KnowledgeBase
	var sourceConfig, ragConfig []byte
	if err := row.Scan(&kb.ID, &kb.Name, &kb.SourceTypeTag, &sourceConfig, &kb.RAGTypeTag, &ragConfig,
		&kb.CreatedAt, &kb.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKBNotFound
		}
		return nil, fmt.Errorf("catalog: get knowledge base %d: %w", id, err)
	}

	var err error
	if kb.SourceConfig, err = unmarshalJSONB(sourceConfig); err != nil {
		return nil, fmt.Errorf("catalog: unmarshal source_config: %w", err)
	}
	if kb.RAGConfig, err = unmarshalJSONB(ragConfig); err != nil {
		return nil, fmt.Errorf("catalog: unmarshal rag_config: %w", err)
	}
	return &kb, nil
}

// CreateKnowledgeBase inserts a new single-source KnowledgeBase.
func (r *Repository) CreateKnowledgeBase(ctx context.Context, kb KnowledgeBase) (*KnowledgeBase, error) {
	sourceConfig, err := marshalJSONB(kb.SourceConfig)
	if err != nil {
		return nil, fmt.Errorf("catalog: marshal source_config: %w", err)
	}
	ragConfig, err := marshalJSONB(kb.RAGConfig)
	if err != nil {
		return nil, fmt.Errorf("catalog: marshal rag_config: %w", err)
	}

	row := r.querier.QueryRow(ctx, `
		INSERT INTO knowledge_base (name, source_type_tag, source_config, rag_type_tag, rag_config)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		kb.Name, kb.SourceTypeTag, sourceConfig, kb.RAGTypeTag, ragConfig)

	if err := row.Scan(&kb.ID, &kb.CreatedAt, &kb.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrKBNameConflict
		}
		return nil, fmt.Errorf("catalog: create knowledge base %q: %w", kb.Name, err)
	}

	r.logger.Debug("created knowledge base", "id", kb.ID, "name", kb.Name)
	return &kb, nil
}

// --- MultiSourceKnowledgeBase and SourceDefinition -------------------------

// GetMultiSourceKBByName retrieves a MultiSourceKnowledgeBase by its unique name.
func (r *Repository) GetMultiSourceKBByName(ctx context.Context, name string) (*MultiSourceKnowledgeBase, error) {
	row := r.querier.QueryRow(ctx, `
		SELECT id, name, rag_type_tag, rag_config, file_organization, sync_strategy, created_at, updated_at
		FROM multi_source_knowledge_base WHERE name = $1`, name)

	var kb MultiSourceKnowledgeBase
	var ragConfig, fileOrg, syncStrategy []byte
	if err := row.Scan(&kb.ID, &kb.Name, &kb.RAGTypeTag, &ragConfig, &fileOrg, &syncStrategy,
		&kb.CreatedAt, &kb.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKBNotFound
		}
		return nil, fmt.Errorf("catalog: get multi-source knowledge base %q: %w", name, err)
	}

	var err error
	if kb.RAGConfig, err = unmarshalJSONB(ragConfig); err != nil {
		return nil, err
	}
	if kb.FileOrganization, err = unmarshalJSONB(fileOrg); err != nil {
		return nil, err
	}
	if kb.SyncStrategy, err = unmarshalJSONB(syncStrategy); err != nil {
		return nil, err
	}
	return &kb, nil
}

// ListSourceDefinitions returns all SourceDefinitions belonging to a
// MultiSourceKnowledgeBase, enabled ones first by insertion order is not guaranteed;
// callers that need a stable order should sort by SourceID.
func (r *Repository) ListSourceDefinitions(ctx context.Context, multiSourceKBID int64) ([]SourceDefinition, error) {
	rows, err := r.querier.Query(ctx, `
		SELECT id, multi_source_kb_id, source_id, source_type_tag, source_config, enabled
		FROM source_definition WHERE multi_source_kb_id = $1`, multiSourceKBID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list source definitions for kb %d: %w", multiSourceKBID, err)
	}
	defer rows.Close()

	var defs []SourceDefinition
	for rows.Next() {
		var sd SourceDefinition
		var config []byte
		if err := rows.Scan(&sd.ID, &sd.MultiSourceKBID, &sd.SourceID, &sd.SourceTypeTag, &config, &sd.Enabled); err != nil {
			return nil, fmt.Errorf("catalog: scan source definition: %w", err)
		}
		if sd.SourceConfig, err = unmarshalJSONB(config); err != nil {
			return nil, fmt.Errorf("catalog: unmarshal source_config for %q: %w", sd.SourceID, err)
		}
		defs = append(defs, sd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate source definitions: %w", err)
	}
	return defs, nil
}

// --- SyncRun -----------------------------------------------------------

// CreateSyncRun starts a new SyncRun for the given KnowledgeBase, in status
// running (or scanRunning for scan mode), and returns its assigned id.
func (r *Repository) CreateSyncRun(ctx context.Context, kbID int64, status string) (int64, error) {
	var id int64
	row := r.querier.QueryRow(ctx, `
		INSERT INTO sync_run (knowledge_base_id, status) VALUES ($1, $2) RETURNING id`,
		kbID, status)
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("catalog: create sync run for kb %d: %w", kbID, err)
	}
	r.logger.Debug("created sync run", "id", id, "knowledge_base_id", kbID, "status", status)
	return id, nil
}

// SyncRunCounters holds the running totals the orchestrator accumulates across a run.
type SyncRunCounters struct {
	TotalFiles    int
	NewFiles      int
	ModifiedFiles int
	DeletedFiles  int
}

// FinalizeSyncRun atomically applies the final counters, terminal status, end time,
// and error message (if any) to a SyncRun. Per the catalog's transactional
// requirement, any buffered FileRecord inserts that have not yet been flushed must be
// passed in pendingRecords so they commit alongside the status transition.
func (r *Repository) FinalizeSyncRun(ctx context.Context, syncRunID int64, counters SyncRunCounters, status, errMsg string, pendingRecords []FileRecord) error {
	if r.pool == nil {
		return r.finalizeSyncRunTx(ctx, r.querier, syncRunID, counters, status, errMsg, pendingRecords)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("catalog: begin finalize transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			r.logger.Debug("finalize sync run rollback", "error", err)
		}
	}()

	if err := r.finalizeSyncRunTx(ctx, tx, syncRunID, counters, status, errMsg, pendingRecords); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("catalog: commit finalize transaction: %w", err)
	}
	return nil
}

func (r *Repository) finalizeSyncRunTx(ctx context.Context, q Querier, syncRunID int64, counters SyncRunCounters, status, errMsg string, pendingRecords []FileRecord) error {
	for i := range pendingRecords {
		pendingRecords[i].SyncRunID = syncRunID
		if err := r.insertFileRecordTx(ctx, q, &pendingRecords[i]); err != nil {
			return fmt.Errorf("catalog: flush pending file record %d: %w", i, err)
		}
	}

	var errPtr *string
	if errMsg != "" {
		errPtr = &errMsg
	}

	tag, err := q.Exec(ctx, `
		UPDATE sync_run
		SET end_time = now(), status = $1, total_files = $2, new_files = $3,
		    modified_files = $4, deleted_files = $5, error_message = $6
		WHERE id = $7`,
		status, counters.TotalFiles, counters.NewFiles, counters.ModifiedFiles, counters.DeletedFiles, errPtr, syncRunID)
	if err != nil {
		return fmt.Errorf("catalog: finalize sync run %d: %w", syncRunID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSyncRunNotFound
	}
	return nil
}

// GetLatestSyncRun returns the most recently started SyncRun for a KnowledgeBase.
func (r *Repository) GetLatestSyncRun(ctx context.Context, kbID int64) (*SyncRun, error) {
	row := r.querier.QueryRow(ctx, `
		SELECT id, knowledge_base_id, start_time, end_time, status, total_files,
		       new_files, modified_files, deleted_files, error_message
		FROM sync_run WHERE knowledge_base_id = $1 ORDER BY start_time DESC LIMIT 1`, kbID)

	var sr SyncRun
	var errMsg *string
	if err := row.Scan(&sr.ID, &sr.KnowledgeBaseID, &sr.StartTime, &sr.EndTime, &sr.Status,
		&sr.TotalFiles, &sr.NewFiles, &sr.ModifiedFiles, &sr.DeletedFiles, &errMsg); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSyncRunNotFound
		}
		return nil, fmt.Errorf("catalog: get latest sync run for kb %d: %w", kbID, err)
	}
	if errMsg != nil {
		sr.ErrorMessage = *errMsg
	}
	return &sr, nil
}

// --- FileRecord ----------------------------------------------------------

// InsertFileRecord writes a single FileRecord immediately (outside of a finalize
// transaction); used for steady-state per-file writes during a run, as opposed to
// the final buffered batch FinalizeSyncRun flushes.
func (r *Repository) InsertFileRecord(ctx context.Context, rec *FileRecord) error {
	return r.insertFileRecordTx(ctx, r.querier, rec)
}

func (r *Repository) insertFileRecordTx(ctx context.Context, q Querier, rec *FileRecord) error {
	metadata, err := marshalJSONB(rec.SourceMetadata)
	if err != nil {
		return fmt.Errorf("catalog: marshal source_metadata: %w", err)
	}

	var errMsg, sourceID, sourceType, sourcePath, contentType *string
	if rec.ErrorMessage != "" {
		errMsg = &rec.ErrorMessage
	}
	if rec.SourceID != "" {
		sourceID = &rec.SourceID
	}
	if rec.SourceType != "" {
		sourceType = &rec.SourceType
	}
	if rec.SourcePath != "" {
		sourcePath = &rec.SourcePath
	}
	if rec.ContentType != "" {
		contentType = &rec.ContentType
	}

	var fileHash *string
	if rec.FileHash != "" {
		fileHash = &rec.FileHash
	}

	row := q.QueryRow(ctx, `
		INSERT INTO file_record (
			sync_run_id, original_uri, rag_uri, file_hash, uuid_filename, file_size,
			status, error_message, source_id, source_type, source_path, content_type,
			source_metadata, source_created_at, source_modified_at, tags
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING id, upload_time`,
		rec.SyncRunID, rec.OriginalURI, rec.RAGURI, fileHash, rec.UUIDFilename, rec.FileSize,
		rec.Status, errMsg, sourceID, sourceType, sourcePath, contentType,
		metadata, toTimestamptz(rec.SourceCreatedAt), toTimestamptz(rec.SourceModifiedAt), rec.Tags)

	if err := row.Scan(&rec.ID, &rec.UploadTime); err != nil {
		return fmt.Errorf("catalog: insert file record for %q: %w", rec.OriginalURI, err)
	}
	return nil
}

// LatestRecordsByKB returns, for each original_uri ever seen under kbName, the
// FileRecord from the SyncRun with the latest start_time (across all of that
// KnowledgeBase's SyncRuns), keyed by original_uri. "Latest" is ordered by the
// owning SyncRun's start_time, not by the FileRecord's own upload_time: with a
// bounded worker pool and a cancellation grace window, a later-started run's
// early inserts can be timestamped before a previous run's grace-window
// insert, so ordering by upload_time would pick the wrong row (spec's
// ordering-guarantees invariant). This is the map the Change Detector diffs a
// new listing against.
func (r *Repository) LatestRecordsByKB(ctx context.Context, kbName string) (map[string]FileRecord, error) {
	rows, err := r.querier.Query(ctx, `
		SELECT DISTINCT ON (fr.original_uri)
			fr.id, fr.sync_run_id, fr.original_uri, fr.rag_uri, fr.file_hash, fr.uuid_filename,
			fr.upload_time, fr.file_size, fr.status, fr.error_message, fr.source_id,
			fr.source_type, fr.source_path, fr.content_type, fr.source_metadata,
			fr.source_created_at, fr.source_modified_at, fr.tags
		FROM file_record fr
		JOIN sync_run sr ON sr.id = fr.sync_run_id
		WHERE sr.knowledge_base_id = (SELECT id FROM knowledge_base WHERE name = $1)
		ORDER BY fr.original_uri, sr.start_time DESC, fr.id DESC`, kbName)
	if err != nil {
		return nil, fmt.Errorf("catalog: latest records for %q: %w", kbName, err)
	}
	defer rows.Close()

	result := make(map[string]FileRecord)
	for rows.Next() {
		rec, err := scanFileRecord(rows)
		if err != nil {
			return nil, err
		}
		result[rec.OriginalURI] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate latest records: %w", err)
	}
	return result, nil
}

// LatestRecordsBySource returns, for each original_uri ever seen from sourceID
// within the KnowledgeBase kbID, the most recent FileRecord, keyed by
// original_uri. This is the multi-source analog of LatestRecordsByKB: several
// SourceDefinitions share one schema-bridge KnowledgeBase (see
// ResolveCompatibleKBID), so their FileRecords must be disambiguated by
// source_id rather than by knowledge_base_id alone.
func (r *Repository) LatestRecordsBySource(ctx context.Context, kbID int64, sourceID string) (map[string]FileRecord, error) {
	rows, err := r.querier.Query(ctx, `
		SELECT DISTINCT ON (fr.original_uri)
			fr.id, fr.sync_run_id, fr.original_uri, fr.rag_uri, fr.file_hash, fr.uuid_filename,
			fr.upload_time, fr.file_size, fr.status, fr.error_message, fr.source_id,
			fr.source_type, fr.source_path, fr.content_type, fr.source_metadata,
			fr.source_created_at, fr.source_modified_at, fr.tags
		FROM file_record fr
		JOIN sync_run sr ON sr.id = fr.sync_run_id
		WHERE sr.knowledge_base_id = $1 AND fr.source_id = $2
		ORDER BY fr.original_uri, sr.start_time DESC, fr.id DESC`, kbID, sourceID)
	if err != nil {
		return nil, fmt.Errorf("catalog: latest records for source %q: %w", sourceID, err)
	}
	defer rows.Close()

	result := make(map[string]FileRecord)
	for rows.Next() {
		rec, err := scanFileRecord(rows)
		if err != nil {
			return nil, err
		}
		result[rec.OriginalURI] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate latest records for source %q: %w", sourceID, err)
	}
	return result, nil
}

// RecordsByURI returns every FileRecord ever written for originalURI within
// KnowledgeBase kbID, newest first — the full history for one file.
func (r *Repository) RecordsByURI(ctx context.Context, kbID int64, originalURI string) ([]FileRecord, error) {
	rows, err := r.querier.Query(ctx, `
		SELECT fr.id, fr.sync_run_id, fr.original_uri, fr.rag_uri, fr.file_hash, fr.uuid_filename,
		       fr.upload_time, fr.file_size, fr.status, fr.error_message, fr.source_id,
		       fr.source_type, fr.source_path, fr.content_type, fr.source_metadata,
		       fr.source_created_at, fr.source_modified_at, fr.tags
		FROM file_record fr
		JOIN sync_run sr ON sr.id = fr.sync_run_id
		WHERE sr.knowledge_base_id = $1 AND fr.original_uri = $2
		ORDER BY sr.start_time DESC, fr.id DESC`, kbID, originalURI)
	if err != nil {
		return nil, fmt.Errorf("catalog: records for uri %q: %w", originalURI, err)
	}
	defer rows.Close()

	var records []FileRecord
	for rows.Next() {
		rec, err := scanFileRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanFileRecord(rows pgx.Rows) (FileRecord, error) {
	var rec FileRecord
	var fileHash, errMsg, sourceID, sourceType, sourcePath, contentType *string
	var metadata []byte
	var sourceCreatedAt, sourceModifiedAt pgtype.Timestamptz

	if err := rows.Scan(&rec.ID, &rec.SyncRunID, &rec.OriginalURI, &rec.RAGURI, &fileHash, &rec.UUIDFilename,
		&rec.UploadTime, &rec.FileSize, &rec.Status, &errMsg, &sourceID, &sourceType, &sourcePath,
		&contentType, &metadata, &sourceCreatedAt, &sourceModifiedAt, &rec.Tags); err != nil {
		return FileRecord{}, fmt.Errorf("catalog: scan file record: %w", err)
	}

	if fileHash != nil {
		rec.FileHash = *fileHash
	}
	if errMsg != nil {
		rec.ErrorMessage = *errMsg
	}
	if sourceID != nil {
		rec.SourceID = *sourceID
	}
	if sourceType != nil {
		rec.SourceType = *sourceType
	}
	if sourcePath != nil {
		rec.SourcePath = *sourcePath
	}
	if contentType != nil {
		rec.ContentType = *contentType
	}
	if sourceCreatedAt.Valid {
		rec.SourceCreatedAt = &sourceCreatedAt.Time
	}
	if sourceModifiedAt.Valid {
		rec.SourceModifiedAt = &sourceModifiedAt.Time
	}

	meta, err := unmarshalJSONB(metadata)
	if err != nil {
		return FileRecord{}, fmt.Errorf("catalog: unmarshal source_metadata for %q: %w", rec.OriginalURI, err)
	}
	rec.SourceMetadata = meta

	return rec, nil
}

func toTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

// --- Delta tokens ----------------------------------------------------------

// GetDeltaToken returns the saved delta cursor for (sourceID, driveID), or
// ("", nil) if none has been saved yet.
func (r *Repository) GetDeltaToken(ctx context.Context, sourceID, driveID string) (string, error) {
	row := r.querier.QueryRow(ctx, `
		SELECT delta_token FROM delta_sync_tokens WHERE source_id = $1 AND drive_id = $2`,
		sourceID, driveID)

	var token *string
	if err := row.Scan(&token); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("catalog: get delta token for %q/%q: %w", sourceID, driveID, err)
	}
	if token == nil {
		return "", nil
	}
	return *token, nil
}

// SaveDeltaToken upserts the delta cursor for (sourceID, driveID).
func (r *Repository) SaveDeltaToken(ctx context.Context, sourceID, sourceType, driveID, token string) error {
	_, err := r.querier.Exec(ctx, `
		INSERT INTO delta_sync_tokens (source_id, source_type, drive_id, delta_token, last_sync_time)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (source_id, drive_id)
		DO UPDATE SET delta_token = EXCLUDED.delta_token, last_sync_time = EXCLUDED.last_sync_time,
		              source_type = EXCLUDED.source_type`,
		sourceID, sourceType, driveID, token)
	if err != nil {
		return fmt.Errorf("catalog: save delta token for %q/%q: %w", sourceID, driveID, err)
	}
	return nil
}

// ClearDeltaToken removes the saved delta cursor for (sourceID, driveID), forcing
// the next sync to fall back to a full listing.
func (r *Repository) ClearDeltaToken(ctx context.Context, sourceID, driveID string) error {
	_, err := r.querier.Exec(ctx, `
		DELETE FROM delta_sync_tokens WHERE source_id = $1 AND drive_id = $2`, sourceID, driveID)
	if err != nil {
		return fmt.Errorf("catalog: clear delta token for %q/%q: %w", sourceID, driveID, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
