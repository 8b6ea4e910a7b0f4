package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/devsharma/sakhi/internal/app"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

// runChat runs the terminal REPL. Each line is one conversation turn;
// denylisted input short-circuits to the canned reply without touching the
// pipeline, same as the HTTP surface.
func runChat(parent context.Context) error {
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

	sess, err := a.Sessions.CreateSession(ctx, "Terminal chat")
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	fmt.Println("sakhi is ready. Type your message, or 'exit' to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("reading input: %w", err)
			}
			fmt.Println()
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			fmt.Println("Bye! Phir milte hain.")
			return nil
		}

		if reply, blocked := a.Filter.Screen(line); blocked {
			fmt.Println(reply)
			continue
		}

		answer, err := a.Pipeline.Respond(ctx, sess.ID, line)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("turn failed", "error", err)
			fmt.Println("Something went wrong, try again.")
			continue
		}
		fmt.Println(answer)
	}
}
