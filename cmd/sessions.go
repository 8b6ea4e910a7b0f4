package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/devsharma/sakhi/internal/database"
	"github.com/devsharma/sakhi/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage saved chat sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSessionStore(cmd.Context(), func(ctx context.Context, store *session.Store) error {
			sessions, err := store.ListSessions(ctx)
			if err != nil {
				return fmt.Errorf("listing sessions: %w", err)
			}
			if len(sessions) == 0 {
				fmt.Println("No saved sessions.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tUPDATED")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\n",
					s.ID, s.Title, s.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		})
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid session id %q", args[0])
		}
		return withSessionStore(cmd.Context(), func(ctx context.Context, store *session.Store) error {
			if err := store.DeleteSession(ctx, id); err != nil {
				return fmt.Errorf("deleting session: %w", err)
			}
			fmt.Println("Deleted.")
			return nil
		})
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

// withSessionStore opens the local session database just long enough to run
// fn. Session commands never need the model or the vector index.
func withSessionStore(ctx context.Context, fn func(context.Context, *session.Store) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.Open(cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("opening session database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Warn("closing session database", "error", closeErr)
		}
	}()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrating session database: %w", err)
	}

	return fn(ctx, session.NewStore(db, logger))
}
