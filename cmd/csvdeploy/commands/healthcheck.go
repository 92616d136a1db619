package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/ecairns22/csvdeploy/internal/db"
	"github.com/ecairns22/csvdeploy/internal/health"
)

// ErrUnhealthy is returned when the database probe fails; binaries exit 1.
var ErrUnhealthy = errors.New("database health check failed")

// HealthCheck returns the command that probes the database once.
func HealthCheck() *cobra.Command {
	return quiet(&cobra.Command{
		Use:     "healthcheck",
		Aliases: []string{"smoke-test"},
		Short:   "Check that the database accepts connections and answers SELECT 1",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			if err := cfg.RequireDatabase(); err != nil {
				return err
			}

			m, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer m.Close()

			addr := db.TargetFromConfig(cfg).Address()
			c := health.New(m, addr, cfg.Database.ConnectTimeout(), logger)
			if err := c.Run(cmd.Context()); err != nil {
				return ErrUnhealthy
			}
			return nil
		},
	})
}
