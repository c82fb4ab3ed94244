package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kbsync/kbsync/internal/catalog"
)

func TestCountersFor_NormalStatuses(t *testing.T) {
	tests := []struct {
		name   string
		change ChangeType
		status string
		want   Counters
	}{
		{"new", ChangeNew, catalog.FileStatusNew, Counters{Total: 1, New: 1}},
		{"modified", ChangeModified, catalog.FileStatusModified, Counters{Total: 1, Modified: 1}},
		{"deleted", ChangeDeleted, catalog.FileStatusDeleted, Counters{Total: 1, Deleted: 1}},
		{"unchanged", ChangeUnchanged, catalog.FileStatusUnchanged, Counters{Total: 1}},
		{"error", ChangeNew, catalog.FileStatusError, Counters{Total: 1, Errors: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := countersFor(Classification{Change: tt.change, FromListing: true}, Outcome{Record: catalog.FileRecord{Status: tt.status}})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCountersFor_SynthesizedDeletionCountsDeletedButNotTotal(t *testing.T) {
	got := countersFor(Classification{Change: ChangeDeleted, FromListing: false},
		Outcome{Record: catalog.FileRecord{Status: catalog.FileStatusDeleted}})
	assert.Equal(t, Counters{Deleted: 1}, got)
}

func TestCountersFor_ScanModeCollapsesToOriginalChange(t *testing.T) {
	tests := []struct {
		name   string
		change ChangeType
		want   Counters
	}{
		{"new", ChangeNew, Counters{Total: 1, New: 1}},
		{"modified", ChangeModified, Counters{Total: 1, Modified: 1}},
		{"deleted", ChangeDeleted, Counters{Total: 1, Deleted: 1}},
		{"unchanged", ChangeUnchanged, Counters{Total: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := countersFor(Classification{Change: tt.change, FromListing: true}, Outcome{Record: catalog.FileRecord{Status: catalog.FileStatusScanned}})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCountersFor_ScanErrorCounts(t *testing.T) {
	got := countersFor(Classification{Change: ChangeNew, FromListing: true}, Outcome{Record: catalog.FileRecord{Status: catalog.FileStatusScanError}})
	assert.Equal(t, Counters{Total: 1, Errors: 1}, got)
}

func TestOrchestratorConfig_WithDefaultsFillsZeroFields(t *testing.T) {
	cfg := OrchestratorConfig{}.withDefaults()

	assert.Equal(t, DefaultOrchestratorConfig(), cfg)
}

func TestOrchestratorConfig_WithDefaultsPreservesSetFields(t *testing.T) {
	cfg := OrchestratorConfig{Workers: 2}.withDefaults()

	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, DefaultOrchestratorConfig().QueueDepth, cfg.QueueDepth)
}
