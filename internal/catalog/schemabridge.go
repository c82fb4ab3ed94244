package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ResolveCompatibleKBID finds or creates the single-source KnowledgeBase that a
// MultiSourceSyncRun's FileRecords are attributed through, since file_record.sync_run_id
// references sync_run (the single-source table) and never multi_source_sync_run
// directly.
//
// It first looks for an existing knowledge_base row named "<multiKB.Name>_%" (a
// KnowledgeBase created for a single source that has since been folded into the
// multi-source KB under the same name prefix). If none exists, it creates the
// placeholder KnowledgeBase spec §4.9 specifies: named "<multiKB.Name>_placeholder",
// carrying the multi-source KB's own rag-type/rag-config (so the placeholder queries
// correctly if ever addressed directly), and a source-config of
// {placeholder: true, multi_source_kb_id: <multiKB.ID>} linking it back. It exists
// purely to anchor sync_run rows and is never itself fed by a Source Adapter.
func (r *Repository) ResolveCompatibleKBID(ctx context.Context, multiKB *MultiSourceKnowledgeBase) (int64, error) {
	row := r.querier.QueryRow(ctx, `
		SELECT id FROM knowledge_base WHERE name LIKE $1 ORDER BY id ASC LIMIT 1`,
		multiKB.Name+"_%")

	var id int64
	err := row.Scan(&id)
	switch {
	case err == nil:
		return id, nil
	case errors.Is(err, pgx.ErrNoRows):
		return r.createBridgeKB(ctx, multiKB)
	default:
		return 0, fmt.Errorf("%w: lookup compatible kb for %q: %v", ErrSchemaBridgeFailed, multiKB.Name, err)
	}
}

func (r *Repository) createBridgeKB(ctx context.Context, multiKB *MultiSourceKnowledgeBase) (int64, error) {
	name := multiKB.Name + "_placeholder"

	kb, err := r.CreateKnowledgeBase(ctx, KnowledgeBase{
		Name:          name,
		SourceTypeTag: PlaceholderSourceTypeTag,
		SourceConfig: map[string]any{
			"placeholder":        true,
			"multi_source_kb_id": multiKB.ID,
		},
		RAGTypeTag: multiKB.RAGTypeTag,
		RAGConfig:  multiKB.RAGConfig,
	})
	if err == nil {
		r.logger.Debug("created schema-bridge knowledge base", "name", name, "id", kb.ID)
		return kb.ID, nil
	}

	if !errors.Is(err, ErrKBNameConflict) {
		return 0, fmt.Errorf("%w: create bridge kb %q: %v", ErrSchemaBridgeFailed, name, err)
	}

	// Lost a race with another run creating the same bridge; fetch what won.
	existing, getErr := r.GetKnowledgeBaseByName(ctx, name)
	if getErr != nil {
		return 0, fmt.Errorf("%w: bridge kb %q conflicted but cannot be read back: %v", ErrSchemaBridgeFailed, name, getErr)
	}
	return existing.ID, nil
}

// CreateMultiSourceSyncRun starts a new MultiSourceSyncRun in status running (or
// scanRunning for scan mode) and returns its assigned id.
func (r *Repository) CreateMultiSourceSyncRun(ctx context.Context, multiKBID int64, status, syncMode string) (int64, error) {
	var id int64
	row := r.querier.QueryRow(ctx, `
		INSERT INTO multi_source_sync_run (multi_source_kb_id, status, sync_mode)
		VALUES ($1, $2, $3) RETURNING id`,
		multiKBID, status, syncMode)
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("catalog: create multi-source sync run for kb %d: %w", multiKBID, err)
	}
	return id, nil
}

// FinalizeMultiSourceSyncRun applies the final aggregate counters, terminal status,
// per-source stats, and processed-source list to a MultiSourceSyncRun.
func (r *Repository) FinalizeMultiSourceSyncRun(ctx context.Context, multiSyncRunID int64, counters SyncRunCounters, status, errMsg string, sourcesProcessed []string, sourceStats map[string]any) error {
	stats, err := marshalJSONB(sourceStats)
	if err != nil {
		return fmt.Errorf("catalog: marshal source_stats: %w", err)
	}

	var errPtr *string
	if errMsg != "" {
		errPtr = &errMsg
	}

	tag, err := r.querier.Exec(ctx, `
		UPDATE multi_source_sync_run
		SET end_time = now(), status = $1, total_files = $2, new_files = $3,
		    modified_files = $4, deleted_files = $5, error_message = $6,
		    sources_processed = $7, source_stats = $8
		WHERE id = $9`,
		status, counters.TotalFiles, counters.NewFiles, counters.ModifiedFiles, counters.DeletedFiles,
		errPtr, sourcesProcessed, stats, multiSyncRunID)
	if err != nil {
		return fmt.Errorf("catalog: finalize multi-source sync run %d: %w", multiSyncRunID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSyncRunNotFound
	}
	return nil
}
