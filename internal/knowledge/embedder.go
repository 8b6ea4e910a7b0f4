package knowledge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
)

// Embedder wraps a Genkit ai.Embedder with a fixed configured dimension and
// an independent call timeout. Every returned vector is validated against the
// configured dimension; a mismatch is a hard failure, never a silent
// truncation.
//
// Embedder is safe for concurrent use by multiple goroutines.
type Embedder struct {
	embedder  ai.Embedder
	dimension int
	timeout   time.Duration
}

// NewEmbedder creates an Embedder with the given dimension and timeout.
// Returns ErrUnavailable from every call if embedder is nil, so callers can
// treat an unconfigured capability as a typed result rather than a panic.
func NewEmbedder(embedder ai.Embedder, dimension int, timeout time.Duration) *Embedder {
	return &Embedder{
		embedder:  embedder,
		dimension: dimension,
		timeout:   timeout,
	}
}

// Dimension returns the configured vector dimension.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// Embed generates the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embedding vectors for multiple texts in one call.
// The result has exactly one vector per input text, in input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.embedder == nil {
		return nil, fmt.Errorf("embedder not configured: %w", ErrUnavailable)
	}
	if len(texts) == 0 {
		return nil, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	docs := make([]*ai.Document, len(texts))
	for i, text := range texts {
		docs[i] = ai.DocumentFromText(text, nil)
	}

	resp, err := e.embedder.Embed(callCtx, &ai.EmbedRequest{Input: docs})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("embedding after %v: %w", e.timeout, ErrTimeout)
		}
		return nil, fmt.Errorf("generating embeddings: %w", err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts",
			ErrEmptyEmbedding, len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Embedding) == 0 {
			return nil, fmt.Errorf("%w: text %d", ErrEmptyEmbedding, i)
		}
		if len(emb.Embedding) != e.dimension {
			return nil, fmt.Errorf("%w: embedder returned %d dimensions, configured %d",
				ErrDimensionMismatch, len(emb.Embedding), e.dimension)
		}
		vectors[i] = emb.Embedding
	}

	return vectors, nil
}
