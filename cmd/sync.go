package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbsync/kbsync/internal/app"
)

var syncKBName string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync for a single-source knowledge base",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			return runSync(ctx, a, syncKBName)
		})
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncKBName, "kb-name", "", "name of the knowledge base to sync (required)")
	_ = syncCmd.MarkFlagRequired("kb-name")
	rootCmd.AddCommand(syncCmd)
}

func runSync(ctx context.Context, a *app.App, kbName string) error {
	kb, err := a.Repo.GetKnowledgeBaseByName(ctx, kbName)
	if err != nil {
		return fmt.Errorf("sync: knowledge base %q: %w", kbName, err)
	}

	src, err := a.BuildSourceAdapter(kb.SourceTypeTag, kb.SourceConfig)
	if err != nil {
		return fmt.Errorf("sync: building source adapter for %q: %w", kbName, err)
	}
	rag, err := a.BuildRAGAdapter(kb.RAGTypeTag, kb.RAGConfig)
	if err != nil {
		return fmt.Errorf("sync: building rag adapter for %q: %w", kbName, err)
	}

	orch := a.Orchestrator(src, rag, false)
	counters, syncRunID, err := orch.Run(ctx, kb.ID, kb.Name, kb.Name)

	printSummary(fmt.Sprintf("sync %s (run #%d)", kbName, syncRunID),
		counters.Total, counters.New, counters.Modified, counters.Deleted)

	if err != nil {
		return fmt.Errorf("sync %q: %w", kbName, err)
	}
	return nil
}
