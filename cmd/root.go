// Package cmd provides the kbsyncd CLI commands.
//
// Commands:
//   - sync: run one sync for a single-source knowledge base
//   - scan: a non-mutating dry run over a knowledge base or an ad-hoc path
//   - multi-source sync-multi-kb: fan a multi-source knowledge base's sync
//     out across its source definitions
//   - status: list recent sync runs for a knowledge base
//   - info: print a knowledge base's configuration (secrets redacted)
//   - connectivity: probe a knowledge base's source and RAG adapters
//   - analytics: aggregate recent sync runs into throughput/error statistics
//
// Every command loads configuration, wires the application via app.Setup,
// and tears it down on exit; signal handling (SIGINT/SIGTERM) cancels the
// command's context so an in-flight sync gets its cancellation grace window
// instead of being killed outright.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "kbsyncd",
	Short: "Synchronize heterogeneous sources into a RAG backend with an auditable catalog",
	Long: `kbsyncd keeps a RAG backend's artifacts in sync with one or more upstream
sources (local filesystem, SharePoint, OneDrive, or a mix), recording every
file it touches in a Postgres catalog so every run is auditable and
incremental.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
