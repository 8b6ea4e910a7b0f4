package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/devsharma/sakhi/internal/session"
)

// contextSeparator joins retrieved passages inside the system instruction.
// Passages keep their retrieval order; the model sees the best match first.
const contextSeparator = "\n\n---\n\n"

// Generator produces the assistant's reply from the persona, the retrieved
// passages, and the conversation history.
type Generator struct {
	completer Completer
	persona   string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewGenerator builds a generator. persona is prepended to every system
// instruction; timeout bounds each call, zero disables the deadline.
func NewGenerator(completer Completer, persona string, timeout time.Duration, logger *slog.Logger) (*Generator, error) {
	if completer == nil {
		return nil, fmt.Errorf("new generator: %w", ErrUnavailable)
	}
	if strings.TrimSpace(persona) == "" {
		return nil, fmt.Errorf("new generator: persona is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{completer: completer, persona: persona, timeout: timeout, logger: logger}, nil
}

// Generate answers the utterance. passages must already be in retrieval
// order. An empty payload from the backend yields FallbackResponse rather
// than an error, so the conversation never shows a blank assistant turn.
func (g *Generator) Generate(ctx context.Context, history []session.Turn, passages []string, utterance string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	reply, err := g.completer.Complete(ctx, CompletionRequest{
		System:  g.systemInstruction(passages),
		History: history,
		Prompt:  utterance,
	})
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		g.logger.Warn("empty completion payload, using fallback response")
		return FallbackResponse, nil
	}
	return reply, nil
}

// systemInstruction assembles the persona and the retrieved context block.
// With no passages the persona stands alone and the model answers from the
// conversation only.
func (g *Generator) systemInstruction(passages []string) string {
	if len(passages) == 0 {
		return g.persona
	}

	var b strings.Builder
	b.WriteString(g.persona)
	b.WriteString("\n\nUse the following context to answer when it is relevant:\n\n")
	b.WriteString(strings.Join(passages, contextSeparator))
	return b.String()
}
