// Package ingest implements the offline document-ingestion pipeline: load a
// source document, split it into overlapping chunks, embed each chunk, and
// upsert the results into the vector index with bounded concurrency.
package ingest

import (
	"errors"
	"fmt"
)

// Chunk is a contiguous substring of a source document, the unit of
// embedding and retrieval.
type Chunk struct {
	Text   string
	Offset int // Rune offset of the chunk's start in the document
	Index  int // 0-based sequence index
}

// ErrInvalidSplit indicates inconsistent chunk size/overlap parameters.
var ErrInvalidSplit = errors.New("invalid split parameters")

// Splitter splits text into overlapping chunks using a deterministic sliding
// window over runes. Consecutive chunks share exactly Overlap runes, so
// concatenating chunks with the leading Overlap runes of each subsequent
// chunk removed reconstructs the document, and for a document of L runes the
// chunk count is ceil((L - Overlap) / (Size - Overlap)).
//
// Windows are measured in runes, never bytes, so a chunk boundary can never
// land inside a UTF-8 code point.
type Splitter struct {
	Size    int // Maximum chunk length in runes
	Overlap int // Shared runes between consecutive chunks; must be < Size
}

// NewSplitter creates a Splitter after validating that 0 <= overlap < size.
// Overlap strictly less than size guarantees forward progress.
func NewSplitter(size, overlap int) (*Splitter, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", ErrInvalidSplit, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap must be in [0, size), got overlap=%d size=%d",
			ErrInvalidSplit, overlap, size)
	}
	return &Splitter{Size: size, Overlap: overlap}, nil
}

// Split returns the document's chunks in order. An empty document yields no
// chunks. The final chunk is always longer than Overlap, so overlap removal
// during reconstruction never consumes an entire chunk.
func (s *Splitter) Split(text string) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	stride := s.Size - s.Overlap
	var chunks []Chunk
	for start := 0; start < len(runes); start += stride {
		end := min(start+s.Size, len(runes))
		chunks = append(chunks, Chunk{
			Text:   string(runes[start:end]),
			Offset: start,
			Index:  len(chunks),
		})
		if end == len(runes) {
			break
		}
	}
	return chunks
}
