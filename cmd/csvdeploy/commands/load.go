package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/ecairns22/csvdeploy/internal/db"
	"github.com/ecairns22/csvdeploy/internal/deploylog"
	"github.com/ecairns22/csvdeploy/internal/loader"
)

// Load returns the command that copies CSV blobs into the database.
func Load() *cobra.Command {
	return quiet(&cobra.Command{
		Use:   "load",
		Short: "Insert rows from CSV blobs into the database table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			if err := cfg.RequireDataStorage(); err != nil {
				return err
			}
			if err := cfg.RequireDatabase(); err != nil {
				return err
			}
			if err := db.ValidateTableName(cfg.Database.Table); err != nil {
				return err
			}

			store, err := newBlobStore(cfg, cfg.Storage.SASToken)
			if err != nil {
				return err
			}
			open := func() (loader.Inserter, error) {
				m, err := openDatabase(cfg)
				if err != nil {
					return nil, err
				}
				return m, nil
			}

			l := loader.New(store, cfg.Storage.DataContainer, open, cfg.Database.Table, openLog(cfg, logger), logger)
			// Other runtime failures are logged by the loader and do not fail the step.
			if _, err := l.Run(cmd.Context()); errors.Is(err, deploylog.ErrNotRecorded) {
				return err
			}
			return nil
		},
	})
}
