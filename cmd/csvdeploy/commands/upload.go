package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/ecairns22/csvdeploy/internal/deploylog"
	"github.com/ecairns22/csvdeploy/internal/uploader"
)

// Upload returns the command that pushes local CSV files to blob storage.
func Upload() *cobra.Command {
	return quiet(&cobra.Command{
		Use:   "upload",
		Short: "Upload CSV files from the data directory to blob storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			if err := cfg.RequireDataStorage(); err != nil {
				return err
			}

			store, err := newBlobStore(cfg, cfg.Storage.SASToken)
			if err != nil {
				return err
			}

			u := uploader.New(store, cfg.Storage.DataContainer, openLog(cfg, logger), logger)
			// Other runtime failures are logged by the uploader and do not fail the step.
			if _, err := u.Run(cmd.Context(), cfg.Paths.DataDir); errors.Is(err, deploylog.ErrNotRecorded) {
				return err
			}
			return nil
		},
	})
}
