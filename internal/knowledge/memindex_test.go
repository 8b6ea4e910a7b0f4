package knowledge

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryIndex_SelfRetrieval(t *testing.T) {
	idx := NewMemoryIndex(3)
	ctx := context.Background()

	entries := []Entry{
		{ID: "a", Vector: []float32{1, 0, 0}, Metadata: map[string]string{MetadataTextKey: "alpha"}},
		{ID: "b", Vector: []float32{0, 1, 0}, Metadata: map[string]string{MetadataTextKey: "beta"}},
		{ID: "c", Vector: []float32{0, 0, 1}, Metadata: map[string]string{MetadataTextKey: "gamma"}},
	}
	if err := idx.Upsert(ctx, entries); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	// Querying with an entry's own vector must return that entry first with
	// similarity ~1.0.
	results, err := idx.Query(ctx, []float32{0, 1, 0}, 3, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].ID != "b" {
		t.Fatalf("expected self-match first, got %q", results[0].ID)
	}
	if results[0].Score < 0.999 {
		t.Fatalf("expected self-similarity ~1.0, got %f", results[0].Score)
	}
	if results[0].Text != "beta" {
		t.Fatalf("expected text from metadata, got %q", results[0].Text)
	}
	for i, res := range results {
		if res.Rank != i {
			t.Errorf("result %d has rank %d", i, res.Rank)
		}
	}
}

func TestMemoryIndex_TopK(t *testing.T) {
	idx := NewMemoryIndex(2)
	ctx := context.Background()

	for _, e := range []Entry{
		{ID: "a", Vector: []float32{1, 0}},
		{ID: "b", Vector: []float32{0.9, 0.1}},
		{ID: "c", Vector: []float32{0, 1}},
	} {
		if err := idx.Upsert(ctx, []Entry{e}); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	results, err := idx.Query(ctx, []float32{1, 0}, 2, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" || results[1].ID != "b" {
		t.Fatalf("expected [a b], got [%s %s]", results[0].ID, results[1].ID)
	}
}

func TestMemoryIndex_EmptyIndex(t *testing.T) {
	idx := NewMemoryIndex(3)

	results, err := idx.Query(context.Background(), []float32{1, 0, 0}, 5, nil)
	if err != nil {
		t.Fatalf("empty index must not error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	idx := NewMemoryIndex(3)
	ctx := context.Background()

	err := idx.Upsert(ctx, []Entry{{ID: "a", Vector: []float32{1, 0}}})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch on upsert, got %v", err)
	}

	_, err = idx.Query(ctx, []float32{1, 0}, 3, nil)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch on query, got %v", err)
	}
}

func TestMemoryIndex_UpsertReplaces(t *testing.T) {
	idx := NewMemoryIndex(2)
	ctx := context.Background()

	if err := idx.Upsert(ctx, []Entry{{ID: "a", Vector: []float32{1, 0}, Metadata: map[string]string{MetadataTextKey: "old"}}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := idx.Upsert(ctx, []Entry{{ID: "a", Vector: []float32{1, 0}, Metadata: map[string]string{MetadataTextKey: "new"}}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if idx.Len() != 1 {
		t.Fatalf("expected 1 entry after replace, got %d", idx.Len())
	}
	results, err := idx.Query(ctx, []float32{1, 0}, 1, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if results[0].Text != "new" {
		t.Fatalf("expected replaced entry, got %q", results[0].Text)
	}
}

func TestMemoryIndex_Filter(t *testing.T) {
	idx := NewMemoryIndex(2)
	ctx := context.Background()

	entries := []Entry{
		{ID: "a", Vector: []float32{1, 0}, Metadata: map[string]string{"source_type": "file"}},
		{ID: "b", Vector: []float32{1, 0}, Metadata: map[string]string{"source_type": "document"}},
	}
	if err := idx.Upsert(ctx, entries); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := idx.Query(ctx, []float32{1, 0}, 5, map[string]string{"source_type": "file"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 || results[0].ID != "a" {
		t.Fatalf("expected only the filtered entry, got %v", results)
	}
}
