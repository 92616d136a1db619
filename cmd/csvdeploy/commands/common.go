package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ecairns22/csvdeploy/internal/blobstore"
	"github.com/ecairns22/csvdeploy/internal/config"
	"github.com/ecairns22/csvdeploy/internal/db"
	"github.com/ecairns22/csvdeploy/internal/deploylog"
	ghclient "github.com/ecairns22/csvdeploy/internal/github"
	"github.com/ecairns22/csvdeploy/internal/logging"
	"github.com/ecairns22/csvdeploy/internal/releasenote"
)

// Factories are package variables so tests can swap in fakes.
var (
	newBlobStore = func(cfg *config.Config, sasToken string) (blobstore.Store, error) {
		return blobstore.NewAzure(blobstore.AzureOptions{
			AccountURL:       cfg.Storage.AccountURL,
			SASToken:         sasToken,
			ConnectionString: cfg.Storage.ConnectionString,
		})
	}
	openDatabase = func(cfg *config.Config) (*db.Manager, error) {
		return db.NewFromConfig(cfg)
	}
	newReleasePublisher = func(cfg *config.Config) (releasenote.ReleasePublisher, error) {
		return ghclient.New(cfg.GitHub.Token, cfg.GitHub.Repository)
	}
)

// setup loads configuration and builds the command's logger.
func setup(cmd *cobra.Command) (*config.Config, *log.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, logging.New(cmd.OutOrStdout()), nil
}

func openLog(cfg *config.Config, logger log.FieldLogger) *deploylog.Store {
	return deploylog.New(cfg.Paths.LogFile, logger)
}

// quiet stops cobra from printing usage on runtime errors.
func quiet(cmd *cobra.Command) *cobra.Command {
	cmd.SilenceUsage = true
	return cmd
}

// Execute runs cmd until it finishes or the process is interrupted and
// returns the exit status: 0 on success, 1 on any returned error.
func Execute(cmd *cobra.Command) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.SilenceErrors = true
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	}
	return exitCode(err)
}

// exitCode maps a command result to a process exit status.
func exitCode(err error) int {
	if err != nil {
		return 1
	}
	return 0
}
