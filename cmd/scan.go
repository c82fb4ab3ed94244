package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kbsync/kbsync/internal/app"
	"github.com/kbsync/kbsync/internal/catalog"
	"github.com/kbsync/kbsync/internal/source/localfs"
)

var (
	scanKBName string
	scanPath   string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Dry-run a sync: classify and record files without touching the RAG adapter",
	RunE: func(cmd *cobra.Command, args []string) error {
		if (scanKBName == "") == (scanPath == "") {
			return fmt.Errorf("scan: exactly one of --kb-name or --path is required")
		}
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			if scanKBName != "" {
				return runScanKB(ctx, a, scanKBName)
			}
			return runScanPath(ctx, a, scanPath)
		})
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanKBName, "kb-name", "", "name of a registered knowledge base to scan")
	scanCmd.Flags().StringVar(&scanPath, "path", "", "ad-hoc local filesystem path to scan (no knowledge base registration required)")
	rootCmd.AddCommand(scanCmd)
}

func runScanKB(ctx context.Context, a *app.App, kbName string) error {
	kb, err := a.Repo.GetKnowledgeBaseByName(ctx, kbName)
	if err != nil {
		return fmt.Errorf("scan: knowledge base %q: %w", kbName, err)
	}

	src, err := a.BuildSourceAdapter(kb.SourceTypeTag, kb.SourceConfig)
	if err != nil {
		return fmt.Errorf("scan: building source adapter for %q: %w", kbName, err)
	}

	orch := a.Orchestrator(src, nil, true)
	counters, syncRunID, err := orch.Run(ctx, kb.ID, kb.Name, kb.Name)

	printSummary(fmt.Sprintf("scan %s (run #%d)", kbName, syncRunID),
		counters.Total, counters.New, counters.Modified, counters.Deleted)

	if err != nil {
		return fmt.Errorf("scan %q: %w", kbName, err)
	}
	return nil
}

// scanKBNameForPath derives a stable, readable knowledge_base.name for an
// ad-hoc --path scan: the directory's base name, sanitized to the characters
// the catalog's naming convention tolerates, prefixed so it cannot collide
// with a KB a user registered directly.
func scanKBNameForPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	base := filepath.Base(abs)
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return "scan_path_" + b.String()
}

// runScanPath scans a raw filesystem path that may not correspond to any
// registered knowledge base. Scan mode never calls the RAG adapter, so a
// placeholder KnowledgeBase (mirroring the schema-bridge placeholder pattern
// in catalog.ResolveCompatibleKBID) is found-or-created purely to anchor the
// sync_run foreign key; it is never fed through a real RAG adapter.
func runScanPath(ctx context.Context, a *app.App, path string) error {
	name := scanKBNameForPath(path)

	kb, err := a.Repo.GetKnowledgeBaseByName(ctx, name)
	if err != nil {
		if !errors.Is(err, catalog.ErrKBNotFound) {
			return fmt.Errorf("scan: looking up %q: %w", name, err)
		}
		kb, err = a.Repo.CreateKnowledgeBase(ctx, catalog.KnowledgeBase{
			Name:          name,
			SourceTypeTag: "file_system",
			SourceConfig:  map[string]any{"root_path": path},
			RAGTypeTag:    catalog.PlaceholderSourceTypeTag,
			RAGConfig:     map[string]any{},
		})
		if err != nil {
			return fmt.Errorf("scan: registering ad-hoc path %q: %w", path, err)
		}
	}

	src, err := localfs.New(localfs.Config{RootPath: path})
	if err != nil {
		return fmt.Errorf("scan: building file_system adapter for %q: %w", path, err)
	}

	orch := a.Orchestrator(src, nil, true)
	counters, syncRunID, err := orch.Run(ctx, kb.ID, kb.Name, kb.Name)

	printSummary(fmt.Sprintf("scan %s (run #%d)", path, syncRunID),
		counters.Total, counters.New, counters.Modified, counters.Deleted)

	if err != nil {
		return fmt.Errorf("scan %q: %w", path, err)
	}
	return nil
}
