package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

// renderMarkdown converts markdown to styled terminal output, the way the
// teacher's internal/tui.markdownRenderer does, degrading gracefully to the
// raw markdown if glamour can't construct a renderer (non-tty output, width
// detection failure) or fails to render.
func renderMarkdown(markdown string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return markdown
	}

	rendered, err := r.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimSuffix(rendered, "\n")
}

// markdownTable renders a simple GFM table from a header row and data rows.
func markdownTable(header []string, rows [][]string) string {
	var b strings.Builder
	b.WriteString("| ")
	b.WriteString(strings.Join(header, " | "))
	b.WriteString(" |\n|")
	for range header {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, row := range rows {
		b.WriteString("| ")
		b.WriteString(strings.Join(row, " | "))
		b.WriteString(" |\n")
	}
	return b.String()
}

// printSummary prints the final counts table every sync/scan/multi-source
// command reports: total, new, modified and deleted. Unchanged files and
// per-file errors have no column of their own; total includes both, and
// errors are visible as FileRecord rows with status=error (spec §6).
func printSummary(label string, total, new_, modified, deleted int) {
	md := fmt.Sprintf("## %s\n\n%s", label, markdownTable(
		[]string{"total", "new", "modified", "deleted"},
		[][]string{{
			fmt.Sprintf("%d", total),
			fmt.Sprintf("%d", new_),
			fmt.Sprintf("%d", modified),
			fmt.Sprintf("%d", deleted),
		}},
	))
	fmt.Println(renderMarkdown(md))
}
