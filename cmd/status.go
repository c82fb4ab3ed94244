package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbsync/kbsync/internal/app"
	"github.com/kbsync/kbsync/internal/catalog"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status <kb>",
	Short: "List recent sync runs for a knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			return runStatus(ctx, a, args[0], statusLimit)
		})
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "maximum number of recent runs to list")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(ctx context.Context, a *app.App, kbName string, limit int) error {
	kb, err := a.Repo.GetKnowledgeBaseByName(ctx, kbName)
	if err != nil {
		return fmt.Errorf("status: knowledge base %q: %w", kbName, err)
	}

	runs, err := a.Repo.ListSyncRuns(ctx, kb.ID, limit)
	if err != nil {
		return fmt.Errorf("status: listing runs for %q: %w", kbName, err)
	}

	header := []string{"id", "status", "start_time", "duration", "total", "new", "modified", "deleted", "error"}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		duration := "running"
		if run.EndTime != nil {
			duration = run.EndTime.Sub(run.StartTime).String()
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", run.ID),
			run.Status,
			run.StartTime.Format("2006-01-02 15:04:05"),
			duration,
			fmt.Sprintf("%d", run.TotalFiles),
			fmt.Sprintf("%d", run.NewFiles),
			fmt.Sprintf("%d", run.ModifiedFiles),
			fmt.Sprintf("%d", run.DeletedFiles),
			run.ErrorMessage,
		})
	}

	md := fmt.Sprintf("# %s\n\nsource: `%s`  \nrag: `%s`\n\n%s",
		kbName, kb.SourceTypeTag, kb.RAGTypeTag, markdownTable(header, rows))
	fmt.Println(renderMarkdown(md))

	return printRedactedConfig(kb.SourceConfig, kb.RAGConfig)
}

// printRedactedConfig prints a knowledge base's source_config/rag_config with
// secrets masked (SPEC_FULL §12 item 3), shared by status and info so an
// operator can sanity-check configuration without a separate command.
func printRedactedConfig(sourceConfig, ragConfig map[string]any) error {
	sourceJSON, err := json.MarshalIndent(catalog.RedactedConfig(sourceConfig), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal source_config: %w", err)
	}
	ragJSON, err := json.MarshalIndent(catalog.RedactedConfig(ragConfig), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal rag_config: %w", err)
	}

	md := fmt.Sprintf("## Configuration\n\n**source_config**\n```json\n%s\n```\n\n**rag_config**\n```json\n%s\n```",
		sourceJSON, ragJSON)
	fmt.Println(renderMarkdown(md))
	return nil
}
