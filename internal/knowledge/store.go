package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Store combines the embedding capability and the vector index into a single
// search surface. It embeds query text, validates dimensions before the index
// lookup, and maps raw hits into Results preserving the index's returned
// order (the index is assumed relevance-sorted; Store does not re-sort).
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	embedder     *Embedder
	index        Index
	queryTimeout time.Duration
	logger       *slog.Logger
}

// NewStore creates a Store over an embedder and an index.
//
// The embedder's configured dimension must match the index's dimension; the
// mismatch is reported on first use rather than at construction so callers
// can assemble components before the index is reachable.
func NewStore(embedder *Embedder, index Index, queryTimeout time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		embedder:     embedder,
		index:        index,
		queryTimeout: queryTimeout,
		logger:       logger,
	}
}

// Add embeds text and upserts a single entry under the given ID.
// The metadata map is extended with the original text under MetadataTextKey.
func (s *Store) Add(ctx context.Context, id, text string, metadata map[string]string) error {
	if err := s.checkDimensions(); err != nil {
		return err
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embedding %q: %w", id, err)
	}

	entryMetadata := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		entryMetadata[k] = v
	}
	entryMetadata[MetadataTextKey] = text

	if err := s.index.Upsert(ctx, []Entry{{ID: id, Vector: vector, Metadata: entryMetadata}}); err != nil {
		return fmt.Errorf("upserting %q: %w", id, err)
	}

	s.logger.Debug("added entry", "id", id, "text_length", len(text))
	return nil
}

// Search embeds the query and performs a top-K similarity lookup.
//
// Dimension mismatches are detected before any index call: the configured
// embedder and index dimensions are compared first (cheap, zero network), and
// the embedded vector is validated again by the index implementation. Zero
// matches is a valid outcome and yields an empty slice, not an error.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	if err := s.checkDimensions(); err != nil {
		return nil, err
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	results, err := s.index.Query(queryCtx, vector, cfg.topK, cfg.filter)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	s.logger.Debug("search completed", "query_length", len(query), "top_k", cfg.topK, "hits", len(results))
	return results, nil
}

// checkDimensions fails fast when the embedder and index disagree on the
// vector dimension, before any embedding or index call is issued.
func (s *Store) checkDimensions() error {
	if got, want := s.embedder.Dimension(), s.index.Dimension(); got != want {
		return fmt.Errorf("%w: embedder configured for %d dimensions, index for %d",
			ErrDimensionMismatch, got, want)
	}
	return nil
}
