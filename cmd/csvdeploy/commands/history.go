package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show the entries of the deployment log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}

			entries, err := openLog(cfg, logger).History()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No deployments recorded in %s.\n", cfg.Paths.LogFile)
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "#\tKIND\tCOUNT\tTIMESTAMP\tRUN")
			for _, e := range entries {
				ts, run := e.Timestamp, e.RunID
				if ts == "" {
					ts = "-"
				}
				if run == "" {
					run = "-"
				}
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", e.Index, e.Kind, e.Count, ts, run)
			}
			return w.Flush()
		},
	}
}
