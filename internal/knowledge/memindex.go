package knowledge

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is a brute-force in-memory implementation of Index using cosine
// similarity. It backs tests and index-free runs; semantics match PGIndex,
// including dimension validation and relevance-ordered results.
//
// MemoryIndex is safe for concurrent use by multiple goroutines.
type MemoryIndex struct {
	mu        sync.RWMutex
	dimension int
	entries   []Entry
	byID      map[string]int
}

// NewMemoryIndex creates an empty MemoryIndex with the given dimension.
func NewMemoryIndex(dimension int) *MemoryIndex {
	return &MemoryIndex{
		dimension: dimension,
		byID:      make(map[string]int),
	}
}

// Dimension returns the configured vector dimension.
func (idx *MemoryIndex) Dimension() int {
	return idx.dimension
}

// Upsert inserts or replaces entries by ID.
func (idx *MemoryIndex) Upsert(_ context.Context, entries []Entry) error {
	for i, entry := range entries {
		if len(entry.Vector) != idx.dimension {
			return fmt.Errorf("%w: entry %d has %d dimensions, index configured for %d",
				ErrDimensionMismatch, i, len(entry.Vector), idx.dimension)
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, entry := range entries {
		if pos, ok := idx.byID[entry.ID]; ok {
			idx.entries[pos] = entry
			continue
		}
		idx.byID[entry.ID] = len(idx.entries)
		idx.entries = append(idx.entries, entry)
	}
	return nil
}

// Query returns the topK entries most similar to vector, highest first.
// An empty index yields an empty result, not an error.
func (idx *MemoryIndex) Query(_ context.Context, vector []float32, topK int, filter map[string]string) ([]Result, error) {
	if len(vector) != idx.dimension {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, index configured for %d",
			ErrDimensionMismatch, len(vector), idx.dimension)
	}
	if topK <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var results []Result
	for _, entry := range idx.entries {
		if !matchesFilter(entry.Metadata, filter) {
			continue
		}
		results = append(results, Result{
			ID:       entry.ID,
			Text:     entry.Metadata[MetadataTextKey],
			Score:    cosineSimilarity(entry.Vector, vector),
			Metadata: entry.Metadata,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	for i := range results {
		results[i].Rank = i
	}
	return results, nil
}

// Len returns the number of stored entries.
func (idx *MemoryIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// matchesFilter reports whether metadata contains every filter pair.
func matchesFilter(metadata, filter map[string]string) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

// cosineSimilarity computes the cosine similarity of two equal-length vectors.
// Zero vectors yield a similarity of 0.
func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
