package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/devsharma/sakhi/internal/session"
)

// CompletionRequest carries everything a single model call needs. History
// is replayed in order before the prompt; System sets the instruction for
// the whole call.
type CompletionRequest struct {
	System  string
	History []session.Turn
	Prompt  string
}

// Completer produces one text completion per call. The rewriter and
// generator depend on this interface, not on a concrete backend, so tests
// run against in-memory stubs.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// RetryConfig configures retry behavior for completion calls.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns sensible defaults for LLM API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retryablePatterns groups error substrings by category.
// Matched case-insensitively against err.Error().
//
// NOTE: This uses string matching because Genkit and LLM provider SDKs
// do not expose typed/sentinel errors for transient failures.
var retryablePatterns = [][]string{
	{"rate limit", "quota exceeded", "429"},      // rate limiting
	{"500", "502", "503", "504", "unavailable"},  // transient server errors
	{"connection reset", "timeout", "temporary"}, // network errors
}

func retryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	for _, group := range retryablePatterns {
		if containsAny(errStr, group...) {
			return true
		}
	}
	return false
}

func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// GenkitCompleter is the production Completer backed by a Genkit model.
// Each attempt passes through the rate limiter; transient failures retry
// with exponential backoff.
type GenkitCompleter struct {
	g           *genkit.Genkit
	modelName   string
	retryConfig RetryConfig
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// NewGenkitCompleter builds a completer for the given fully qualified model
// name (for example "googleai/gemini-2.5-flash"). A nil limiter disables
// rate limiting.
func NewGenkitCompleter(g *genkit.Genkit, modelName string, retry RetryConfig, limiter *rate.Limiter, logger *slog.Logger) (*GenkitCompleter, error) {
	if g == nil {
		return nil, fmt.Errorf("new completer: %w", ErrUnavailable)
	}
	if modelName == "" {
		return nil, errors.New("new completer: model name is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GenkitCompleter{
		g:           g,
		modelName:   modelName,
		retryConfig: retry,
		rateLimiter: limiter,
		logger:      logger,
	}, nil
}

// Complete runs one generation and returns the model's text.
func (c *GenkitCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	messages := make([]*ai.Message, 0, len(req.History)+1)
	for _, turn := range req.History {
		switch turn.Role {
		case session.RoleAssistant:
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(turn.Content)))
		default:
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(turn.Content)))
		}
	}
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(req.Prompt)))

	opts := []ai.GenerateOption{
		ai.WithModelName(c.modelName),
		ai.WithMessages(messages...),
	}
	if req.System != "" {
		opts = append(opts, ai.WithSystem(req.System))
	}

	resp, err := c.generateWithRetry(ctx, opts)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// generateWithRetry executes generation with exponential backoff retry.
// Rate limits each attempt, not just the first.
func (c *GenkitCompleter) generateWithRetry(ctx context.Context, opts []ai.GenerateOption) (*ai.ModelResponse, error) {
	var lastErr error
	delay := c.retryConfig.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		if c.rateLimiter != nil {
			if err := c.rateLimiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := genkit.Generate(ctx, c.g, opts...)
		if err == nil {
			c.logger.Debug("generation succeeded",
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return resp, nil
		}

		lastErr = err

		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("generate: %w: %w", ErrTimeout, err)
		}
		if !retryableError(err) {
			return nil, fmt.Errorf("generate: %w", err)
		}
		if attempt == c.retryConfig.MaxRetries {
			break
		}

		c.logger.Debug("retrying after error",
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, c.retryConfig.MaxInterval)
		}
	}

	return nil, fmt.Errorf("generate after %d retries (elapsed: %v): %w: %w",
		c.retryConfig.MaxRetries, time.Since(start), ErrUnavailable, lastErr)
}
