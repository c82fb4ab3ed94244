package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbsync/kbsync/internal/app"
	"github.com/kbsync/kbsync/internal/catalog"
)

var analyticsSince time.Duration

var analyticsCmd = &cobra.Command{
	Use:   "analytics <kb>",
	Short: "Aggregate recent sync runs into throughput and error-rate statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			return runAnalytics(ctx, a, args[0], analyticsSince)
		})
	},
}

func init() {
	analyticsCmd.Flags().DurationVar(&analyticsSince, "since", 7*24*time.Hour,
		"only consider runs that started within this duration of now")
	rootCmd.AddCommand(analyticsCmd)
}

func runAnalytics(ctx context.Context, a *app.App, kbName string, since time.Duration) error {
	kb, err := a.Repo.GetKnowledgeBaseByName(ctx, kbName)
	if err != nil {
		return fmt.Errorf("analytics: knowledge base %q: %w", kbName, err)
	}

	runs, err := a.Repo.ListSyncRunsSince(ctx, kb.ID, time.Now().Add(-since))
	if err != nil {
		return fmt.Errorf("analytics: loading runs for %q: %w", kbName, err)
	}

	stats := catalog.ComputeRunStatistics(runs)

	md := fmt.Sprintf(`# analytics: %s (last %s)

| metric | value |
| --- | --- |
| runs | %d |
| completed | %d |
| failed | %d |
| total files | %d |
| new | %d |
| modified | %d |
| deleted | %d |
| avg duration | %s |
| files/sec | %.2f |
| error rate | %.1f%% |
`, kbName, since, stats.RunCount, stats.CompletedCount, stats.FailedCount,
		stats.TotalFiles, stats.NewFiles, stats.ModifiedFiles, stats.DeletedFiles,
		stats.AverageDuration, stats.FilesPerSecond, stats.ErrorRate*100)
	fmt.Println(renderMarkdown(md))

	return nil
}
