package knowledge

import "context"

// Index is the external vector-index capability.
//
// Upsert writes entries (insert or replace by ID); Query performs a top-K
// nearest-neighbor lookup and returns matches in the index's relevance order
// (highest similarity first). An empty result is a valid, non-error outcome.
//
// Implementations must reject vectors whose length differs from Dimension()
// with ErrDimensionMismatch before issuing any network or storage call.
type Index interface {
	Upsert(ctx context.Context, entries []Entry) error
	Query(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]Result, error)
	Dimension() int
}
