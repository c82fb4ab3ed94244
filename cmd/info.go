package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbsync/kbsync/internal/app"
)

var infoCmd = &cobra.Command{
	Use:   "info <kb>",
	Short: "Print a knowledge base's configuration snapshot (secrets redacted)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			return runInfo(ctx, a, args[0])
		})
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(ctx context.Context, a *app.App, kbName string) error {
	kb, err := a.Repo.GetKnowledgeBaseByName(ctx, kbName)
	if err != nil {
		return fmt.Errorf("info: knowledge base %q: %w", kbName, err)
	}

	latest, err := a.Repo.LatestSyncRunOrNil(ctx, kb.ID)
	if err != nil {
		return fmt.Errorf("info: last run for %q: %w", kbName, err)
	}

	lastRun := "never synced"
	if latest != nil {
		lastRun = fmt.Sprintf("#%d %s at %s", latest.ID, latest.Status, latest.StartTime.Format("2006-01-02 15:04:05"))
	}

	md := fmt.Sprintf(`# %s

| field | value |
| --- | --- |
| source type | %s |
| rag type | %s |
| created | %s |
| updated | %s |
| last run | %s |
`, kb.Name, kb.SourceTypeTag, kb.RAGTypeTag,
		kb.CreatedAt.Format("2006-01-02 15:04:05"), kb.UpdatedAt.Format("2006-01-02 15:04:05"), lastRun)
	fmt.Println(renderMarkdown(md))

	return printRedactedConfig(kb.SourceConfig, kb.RAGConfig)
}
