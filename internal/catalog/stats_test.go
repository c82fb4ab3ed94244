package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeRunStatistics_Empty(t *testing.T) {
	stats := ComputeRunStatistics(nil)

	assert.Equal(t, 0, stats.RunCount)
	assert.Zero(t, stats.AverageDuration)
	assert.Zero(t, stats.FilesPerSecond)
	assert.Zero(t, stats.ErrorRate)
}

func TestComputeRunStatistics_AllCompleted(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(10 * time.Second)
	runs := []SyncRun{
		{Status: SyncStatusCompleted, TotalFiles: 100, NewFiles: 40, ModifiedFiles: 10, DeletedFiles: 5, StartTime: start, EndTime: &end},
		{Status: SyncStatusCompleted, TotalFiles: 50, NewFiles: 20, ModifiedFiles: 5, DeletedFiles: 0, StartTime: start, EndTime: &end},
	}

	stats := ComputeRunStatistics(runs)

	assert.Equal(t, 2, stats.RunCount)
	assert.Equal(t, 2, stats.CompletedCount)
	assert.Equal(t, 0, stats.FailedCount)
	assert.Equal(t, 150, stats.TotalFiles)
	assert.Equal(t, 60, stats.NewFiles)
	assert.Equal(t, 15, stats.ModifiedFiles)
	assert.Equal(t, 5, stats.DeletedFiles)
	assert.Equal(t, 10*time.Second, stats.AverageDuration)
	assert.Equal(t, 0.0, stats.ErrorRate)
	assert.InDelta(t, 7.5, stats.FilesPerSecond, 0.001)
}

func TestComputeRunStatistics_MixedFailedAndScanStatuses(t *testing.T) {
	runs := []SyncRun{
		{Status: SyncStatusCompleted},
		{Status: SyncStatusFailed},
		{Status: SyncStatusScanCompleted},
		{Status: SyncStatusScanFailed},
		{Status: SyncStatusRunning},
	}

	stats := ComputeRunStatistics(runs)

	assert.Equal(t, 5, stats.RunCount)
	assert.Equal(t, 2, stats.CompletedCount)
	assert.Equal(t, 2, stats.FailedCount)
	assert.InDelta(t, 0.4, stats.ErrorRate, 0.001)
}

func TestComputeRunStatistics_UntimedRunsExcludedFromDurationButNotCounts(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(4 * time.Second)
	runs := []SyncRun{
		{Status: SyncStatusRunning, TotalFiles: 10, StartTime: start, EndTime: nil},
		{Status: SyncStatusCompleted, TotalFiles: 20, StartTime: start, EndTime: &end},
	}

	stats := ComputeRunStatistics(runs)

	assert.Equal(t, 2, stats.RunCount)
	assert.Equal(t, 30, stats.TotalFiles)
	assert.Equal(t, 4*time.Second, stats.AverageDuration)
}
