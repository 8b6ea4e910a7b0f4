package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/devsharma/sakhi/internal/session"
)

// rewriterInstruction asks the model for a retrieval-ready query and
// nothing else. Keeping it terse reduces the chance of chatty output.
const rewriterInstruction = `You rewrite the user's latest message into a standalone search query.
Use the conversation so far to resolve pronouns and implicit references.
Respond with the rewritten query only, no quotes, no explanation.
If the message is already self-contained, return it unchanged.`

// Rewriter turns a context-dependent user utterance into a standalone
// query suitable for retrieval. It either succeeds with a rewritten query
// or fails loudly; it never silently passes the raw utterance through when
// the backend misbehaves.
type Rewriter struct {
	completer Completer
	timeout   time.Duration
	logger    *slog.Logger
}

// NewRewriter builds a rewriter over the given completer. timeout bounds
// each rewrite call; zero means no per-call deadline.
func NewRewriter(completer Completer, timeout time.Duration, logger *slog.Logger) (*Rewriter, error) {
	if completer == nil {
		return nil, fmt.Errorf("new rewriter: %w", ErrUnavailable)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Rewriter{completer: completer, timeout: timeout, logger: logger}, nil
}

// Rewrite produces a standalone query from the conversation history and the
// latest utterance. With no history the utterance already stands alone, so
// it is returned as-is without a model call.
func (r *Rewriter) Rewrite(ctx context.Context, history []session.Turn, utterance string) (string, error) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return "", fmt.Errorf("rewrite: empty utterance: %w", ErrMalformedResponse)
	}
	if len(history) == 0 {
		return utterance, nil
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	rewritten, err := r.completer.Complete(ctx, CompletionRequest{
		System:  rewriterInstruction,
		History: history,
		Prompt:  utterance,
	})
	if err != nil {
		return "", fmt.Errorf("rewrite: %w", err)
	}

	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return "", fmt.Errorf("rewrite: empty query from model: %w", ErrMalformedResponse)
	}

	if rewritten != utterance {
		r.logger.Debug("rewrote query", "original", utterance, "rewritten", rewritten)
	}
	return rewritten, nil
}
