// Package cmd wires the CLI surface: an interactive chat REPL, the HTTP
// server, document ingestion, and session management.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/devsharma/sakhi/internal/config"
	"github.com/devsharma/sakhi/internal/log"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "sakhi",
	Short: "Sakhi - a retrieval-augmented chat companion",
	Long: `Sakhi is a retrieval-augmented chat companion. It answers in a
friendly Hinglish voice, grounding replies in documents you have ingested
into its knowledge base.

Running sakhi without arguments starts an interactive chat.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// loadConfig loads and validates configuration and builds the logger the
// subcommands share.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})
	slog.SetDefault(logger)

	return cfg, logger, nil
}
