package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ListSyncRuns returns the most recent limit SyncRuns for a KnowledgeBase, newest
// first. Used by the status command.
func (r *Repository) ListSyncRuns(ctx context.Context, kbID int64, limit int) ([]SyncRun, error) {
	rows, err := r.querier.Query(ctx, `
		SELECT id, knowledge_base_id, start_time, end_time, status, total_files,
		       new_files, modified_files, deleted_files, error_message
		FROM sync_run WHERE knowledge_base_id = $1 ORDER BY start_time DESC LIMIT $2`,
		kbID, limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: list sync runs for kb %d: %w", kbID, err)
	}
	defer rows.Close()

	var runs []SyncRun
	for rows.Next() {
		var sr SyncRun
		var errMsg *string
		if err := rows.Scan(&sr.ID, &sr.KnowledgeBaseID, &sr.StartTime, &sr.EndTime, &sr.Status,
			&sr.TotalFiles, &sr.NewFiles, &sr.ModifiedFiles, &sr.DeletedFiles, &errMsg); err != nil {
			return nil, fmt.Errorf("catalog: scan sync run row: %w", err)
		}
		if errMsg != nil {
			sr.ErrorMessage = *errMsg
		}
		runs = append(runs, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: list sync runs for kb %d: %w", kbID, err)
	}
	return runs, nil
}

// ListSyncRunsSince returns every SyncRun for kbID that started at or after since,
// newest first. Used by the analytics command's --since window.
func (r *Repository) ListSyncRunsSince(ctx context.Context, kbID int64, since time.Time) ([]SyncRun, error) {
	rows, err := r.querier.Query(ctx, `
		SELECT id, knowledge_base_id, start_time, end_time, status, total_files,
		       new_files, modified_files, deleted_files, error_message
		FROM sync_run WHERE knowledge_base_id = $1 AND start_time >= $2 ORDER BY start_time DESC`,
		kbID, since)
	if err != nil {
		return nil, fmt.Errorf("catalog: list sync runs for kb %d since %s: %w", kbID, since, err)
	}
	defer rows.Close()

	var runs []SyncRun
	for rows.Next() {
		var sr SyncRun
		var errMsg *string
		if err := rows.Scan(&sr.ID, &sr.KnowledgeBaseID, &sr.StartTime, &sr.EndTime, &sr.Status,
			&sr.TotalFiles, &sr.NewFiles, &sr.ModifiedFiles, &sr.DeletedFiles, &errMsg); err != nil {
			return nil, fmt.Errorf("catalog: scan sync run row: %w", err)
		}
		if errMsg != nil {
			sr.ErrorMessage = *errMsg
		}
		runs = append(runs, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: list sync runs for kb %d since %s: %w", kbID, since, err)
	}
	return runs, nil
}

// RunStatistics summarizes a window of SyncRuns: throughput, error rate, and
// duration, the aggregate view the analytics command reports (spec SPEC_FULL §12
// item 2).
type RunStatistics struct {
	RunCount        int
	CompletedCount  int
	FailedCount     int
	TotalFiles      int
	NewFiles        int
	ModifiedFiles   int
	DeletedFiles    int
	AverageDuration time.Duration
	FilesPerSecond  float64
	ErrorRate       float64
}

// ComputeRunStatistics aggregates runs into a RunStatistics. Pure function over
// already-fetched rows so it can be unit tested without a database.
func ComputeRunStatistics(runs []SyncRun) RunStatistics {
	var stats RunStatistics
	stats.RunCount = len(runs)

	var totalDuration time.Duration
	var timedRuns int

	for _, run := range runs {
		switch run.Status {
		case SyncStatusCompleted, SyncStatusScanCompleted:
			stats.CompletedCount++
		case SyncStatusFailed, SyncStatusScanFailed:
			stats.FailedCount++
		}

		stats.TotalFiles += run.TotalFiles
		stats.NewFiles += run.NewFiles
		stats.ModifiedFiles += run.ModifiedFiles
		stats.DeletedFiles += run.DeletedFiles

		if run.EndTime != nil {
			totalDuration += run.EndTime.Sub(run.StartTime)
			timedRuns++
		}
	}

	if timedRuns > 0 {
		stats.AverageDuration = totalDuration / time.Duration(timedRuns)
	}
	if totalDuration > 0 {
		stats.FilesPerSecond = float64(stats.TotalFiles) / totalDuration.Seconds()
	}
	if stats.RunCount > 0 {
		stats.ErrorRate = float64(stats.FailedCount) / float64(stats.RunCount)
	}

	return stats
}

// LatestSyncRunOrNil is GetLatestSyncRun without the ErrSyncRunNotFound case:
// convenient for callers (the info command) that want to render "no runs
// yet" rather than handle an error.
func (r *Repository) LatestSyncRunOrNil(ctx context.Context, kbID int64) (*SyncRun, error) {
	sr, err := r.GetLatestSyncRun(ctx, kbID)
	if err != nil {
		if errors.Is(err, ErrSyncRunNotFound) || errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return sr, nil
}
