package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/devsharma/sakhi/internal/app"
	"github.com/devsharma/sakhi/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Ingest documents into the knowledge base",
	Long: `Ingest splits each file into overlapping chunks, embeds the chunks,
and writes them to the vector index. A partial failure reports exactly which
chunks were not indexed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd.Context(), args)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(parent context.Context, paths []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	var failed bool
	for _, path := range paths {
		count, err := a.Ingestor.IngestFile(ctx, path)
		if err != nil {
			failed = true
			var partial *ingest.IngestionError
			if errors.As(err, &partial) {
				fmt.Printf("%s: indexed %d chunks, %d failed (chunk indices %v)\n",
					path, count, len(partial.Failed), partial.Failed)
				continue
			}
			fmt.Printf("%s: %v\n", path, err)
			continue
		}
		fmt.Printf("%s: indexed %d chunks\n", path, count)
	}

	if failed {
		return errors.New("ingestion incomplete")
	}
	return nil
}
