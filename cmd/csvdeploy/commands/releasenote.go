package commands

import (
	"github.com/spf13/cobra"

	"github.com/ecairns22/csvdeploy/internal/releasenote"
)

// ReleaseNote returns the command that summarizes the latest deployment.
func ReleaseNote() *cobra.Command {
	return quiet(&cobra.Command{
		Use:   "release-note",
		Short: "Generate a release note from the deployment log and upload it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			if err := cfg.RequireReleaseNoteStorage(); err != nil {
				return err
			}

			store, err := newBlobStore(cfg, cfg.Storage.ReleaseNoteSASToken)
			if err != nil {
				return err
			}

			g := releasenote.New(openLog(cfg, logger), store, cfg.Storage.ReleaseNotesContainer, cfg.Paths.NotesDir, logger)
			if cfg.GitHub.Enabled() {
				pub, err := newReleasePublisher(cfg)
				if err != nil {
					return err
				}
				g.WithRelease(pub, cfg.GitHub.ReleaseTag)
			}

			// Failures are logged by the generator; the local note is kept either way.
			g.Run(cmd.Context())
			return nil
		},
	})
}
