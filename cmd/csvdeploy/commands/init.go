package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ecairns22/csvdeploy/internal/config"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a config template and create the working directories",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()

	configPath := config.DefaultPath()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := os.WriteFile(configPath, []byte(config.TemplateConfig()), 0600); err != nil {
			return fmt.Errorf("writing config template: %w", err)
		}
		fmt.Fprintf(w, "  wrote config template to %s\n", configPath)
		fmt.Fprintf(w, "\nEdit %s with your settings, then run 'csvdeploy init' again.\n", configPath)
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	fmt.Fprintf(w, "  config loaded from %s\n", configPath)

	for _, d := range []string{cfg.Paths.DataDir, cfg.Paths.NotesDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
		fmt.Fprintf(w, "  directory %s\n", d)
	}

	checks := []struct {
		name string
		err  error
	}{
		{"data storage", cfg.RequireDataStorage()},
		{"release-note storage", cfg.RequireReleaseNoteStorage()},
		{"database", cfg.RequireDatabase()},
	}
	for _, c := range checks {
		if c.err != nil {
			fmt.Fprintf(w, "  %s: MISSING (%v)\n", c.name, c.err)
			continue
		}
		fmt.Fprintf(w, "  %s: OK\n", c.name)
	}

	fmt.Fprintf(w, "\nRun 'csvdeploy healthcheck' to test the database connection.\n")
	return nil
}
