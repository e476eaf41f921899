// Package cli defines the annotator command line. Running without a
// subcommand starts the HTTP server.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrlokans/annotator/internal/config"
)

// RootCommand creates and returns the root command.
func RootCommand(cfg *config.Config, version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "annotator",
		Short:         "Image labeling dataset service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfg.Database.Path, "db", cfg.Database.Path, "Path to the SQLite database (env DATABASE_PATH)")
	rootCmd.PersistentFlags().StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "Log level: debug, info, warn, error")

	serveCmd := serveCommand(cfg, version)
	rootCmd.RunE = serveCmd.RunE

	rootCmd.AddCommand(
		serveCmd,
		importCommand(cfg),
		exportCommand(cfg),
		createUserCommand(cfg),
		cleanupLabelsCommand(cfg),
	)

	return rootCmd
}
