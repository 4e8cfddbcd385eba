// Package cli implements the command surface for the orchestrator: `run
// all` and `run one`.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the top-level command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "adsetl",
		Short: "adsetl - multi-platform social advertising ETL orchestrator",
		Long: `adsetl coordinates per-platform extraction pipelines and loads the
results into the analytical warehouse under configurable load-mode
semantics (append, replace, upsert, increment).`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.AddCommand(NewRunCmd())

	return rootCmd
}
