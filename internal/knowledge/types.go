package knowledge

import "errors"

// MetadataTextKey is the metadata key holding the original chunk text.
// Every Entry written to an Index carries it; Query results surface it as
// Result.Text.
const MetadataTextKey = "text"

// Sentinel errors for knowledge operations.
// Checked with errors.Is(); wrapped with fmt.Errorf("%w: ...") for context.
var (
	// ErrDimensionMismatch indicates a vector's dimension does not match the
	// index's configured dimension. Detected before any network call.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrTimeout indicates an external call exceeded its configured timeout.
	ErrTimeout = errors.New("external service timeout")

	// ErrUnavailable indicates the capability is not configured or reachable.
	ErrUnavailable = errors.New("external service unavailable")

	// ErrEmptyEmbedding indicates the embedding capability returned no vector.
	ErrEmptyEmbedding = errors.New("empty embedding returned")
)

// Entry is one indexed chunk: identifier, embedding vector, and metadata.
// Entries are owned by the vector index; created by ingestion, read-only to
// retrieval. Metadata must contain at least MetadataTextKey.
type Entry struct {
	ID       string
	Vector   []float32
	Metadata map[string]string
}

// Result is a single retrieval hit, ordered by the index's relevance ranking.
// Results are ephemeral: constructed per query, never persisted.
type Result struct {
	ID       string
	Text     string
	Score    float32 // Cosine similarity (1.0 = identical direction)
	Rank     int     // 0-based position in the index's returned order
	Metadata map[string]string
}

// SearchOption configures search behavior using the functional options pattern.
type SearchOption func(*searchConfig)

// searchConfig holds internal search configuration.
type searchConfig struct {
	topK   int
	filter map[string]string
}

// WithTopK sets the maximum number of results to return.
// Default is 3 if not specified.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithFilter adds a metadata filter to restrict search results.
// Multiple calls add additional filters (AND logic).
func WithFilter(key, value string) SearchOption {
	return func(c *searchConfig) {
		if c.filter == nil {
			c.filter = make(map[string]string)
		}
		c.filter[key] = value
	}
}

// buildSearchConfig applies search options and returns the final configuration.
func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK: 3, // Default
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
