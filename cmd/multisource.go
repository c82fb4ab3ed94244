package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kbsync/kbsync/internal/app"
	"github.com/kbsync/kbsync/internal/catalog"
	"github.com/kbsync/kbsync/internal/engine"
)

var (
	multiSourceSyncMode   string
	multiSourceSourcesCSV string
	multiSourceScanMode   bool
)

var multiSourceCmd = &cobra.Command{
	Use:   "multi-source",
	Short: "Operate on multi-source knowledge bases",
}

var syncMultiKBCmd = &cobra.Command{
	Use:   "sync-multi-kb <name>",
	Short: "Run a sync for a multi-source knowledge base, fanning out across its source definitions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			return runSyncMultiKB(ctx, a, args[0])
		})
	},
}

func init() {
	syncMultiKBCmd.Flags().StringVar(&multiSourceSyncMode, "sync-mode", catalog.SyncModeParallel,
		"sync mode: parallel, sequential, or selective")
	syncMultiKBCmd.Flags().StringVar(&multiSourceSourcesCSV, "sources", "",
		"comma-separated source_ids to run (required, and only meaningful, for --sync-mode selective)")
	syncMultiKBCmd.Flags().BoolVar(&multiSourceScanMode, "scan", false,
		"dry-run: classify and record without touching the RAG adapter")

	multiSourceCmd.AddCommand(syncMultiKBCmd)
	rootCmd.AddCommand(multiSourceCmd)
}

// parseMultiSourceFlags validates syncMode and splits sourcesCSV into a
// selected-source list, independent of cobra/app wiring so it can be unit
// tested directly.
func parseMultiSourceFlags(syncMode, sourcesCSV string) ([]string, error) {
	switch syncMode {
	case catalog.SyncModeParallel, catalog.SyncModeSequential, catalog.SyncModeSelective:
	default:
		return nil, fmt.Errorf("multi-source sync-multi-kb: invalid --sync-mode %q (want parallel, sequential, or selective)", syncMode)
	}

	var selected []string
	if sourcesCSV != "" {
		for _, s := range strings.Split(sourcesCSV, ",") {
			if s = strings.TrimSpace(s); s != "" {
				selected = append(selected, s)
			}
		}
	}
	if syncMode == catalog.SyncModeSelective && len(selected) == 0 {
		return nil, fmt.Errorf("multi-source sync-multi-kb: --sync-mode selective requires --sources")
	}
	return selected, nil
}

func runSyncMultiKB(ctx context.Context, a *app.App, name string) error {
	selected, err := parseMultiSourceFlags(multiSourceSyncMode, multiSourceSourcesCSV)
	if err != nil {
		return err
	}

	kb, err := a.Repo.GetMultiSourceKBByName(ctx, name)
	if err != nil {
		return fmt.Errorf("multi-source sync-multi-kb: knowledge base %q: %w", name, err)
	}

	driver := a.Driver(multiSourceScanMode)
	counters, multiRunID, err := driver.Run(ctx, kb, engine.DriverRunOptions{
		SyncMode: multiSourceSyncMode,
		Selected: selected,
	})

	printSummary(fmt.Sprintf("multi-source sync %s (run #%d, mode=%s)", name, multiRunID, multiSourceSyncMode),
		counters.Total, counters.New, counters.Modified, counters.Deleted)

	if err != nil {
		return fmt.Errorf("multi-source sync-multi-kb %q: %w", name, err)
	}
	return nil
}
