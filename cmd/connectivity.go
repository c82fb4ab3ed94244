package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbsync/kbsync/internal/app"
	"github.com/kbsync/kbsync/internal/engine"
)

var connectivityCmd = &cobra.Command{
	Use:   "connectivity <kb>",
	Short: "Probe a knowledge base's source and RAG adapters without performing a sync",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			return runConnectivity(ctx, a, args[0])
		})
	},
}

func init() {
	rootCmd.AddCommand(connectivityCmd)
}

func runConnectivity(ctx context.Context, a *app.App, kbName string) error {
	kb, err := a.Repo.GetKnowledgeBaseByName(ctx, kbName)
	if err != nil {
		return fmt.Errorf("connectivity: knowledge base %q: %w", kbName, err)
	}

	src, err := a.BuildSourceAdapter(kb.SourceTypeTag, kb.SourceConfig)
	if err != nil {
		return fmt.Errorf("connectivity: building source adapter for %q: %w", kbName, err)
	}
	rag, err := a.BuildRAGAdapter(kb.RAGTypeTag, kb.RAGConfig)
	if err != nil {
		return fmt.Errorf("connectivity: building rag adapter for %q: %w", kbName, err)
	}

	report := engine.CheckConnectivity(ctx, src, rag)

	row := func(label string, ok bool, latency, errMsg string) []string {
		status := "ok"
		if !ok {
			status = "unreachable"
		}
		return []string{label, status, latency, errMsg}
	}

	rows := [][]string{
		row("source ("+kb.SourceTypeTag+")", report.SourceReachable, report.SourceLatency.String(), report.SourceError),
		row("rag ("+kb.RAGTypeTag+")", report.RAGReachable, report.RAGLatency.String(), report.RAGError),
	}

	md := fmt.Sprintf("# connectivity: %s\n\n%s", kbName,
		markdownTable([]string{"component", "status", "latency", "error"}, rows))
	fmt.Println(renderMarkdown(md))

	if !report.OK() {
		return fmt.Errorf("connectivity %q: one or more components unreachable", kbName)
	}
	return nil
}
