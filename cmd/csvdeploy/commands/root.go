package commands

import (
	"github.com/spf13/cobra"
)

// Root returns the root cobra command with all subcommands attached.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "csvdeploy",
		Short: "Ship CSV data to blob storage and a SQL database",
		Long:  "csvdeploy uploads CSV files to Azure Blob Storage, loads them into a SQL table, checks database health and writes release notes from a shared deployment log.",
	}

	cmd.AddCommand(initCmd())
	cmd.AddCommand(Upload())
	cmd.AddCommand(Load())
	cmd.AddCommand(ReleaseNote())
	cmd.AddCommand(HealthCheck())
	cmd.AddCommand(historyCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}
