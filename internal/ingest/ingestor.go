package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/devsharma/sakhi/internal/knowledge"
)

// Source type values recorded in entry metadata.
const (
	// SourceTypeFile marks entries ingested from a local file.
	SourceTypeFile = "file"

	// SourceTypeDocument marks entries ingested from raw text.
	SourceTypeDocument = "document"
)

// retryBaseDelay is the backoff unit between per-chunk retry attempts.
const retryBaseDelay = 200 * time.Millisecond

// IngestionError reports which chunks failed after all retry attempts.
// The run writes no further entries for failed chunks; callers get the full
// failed index list instead of a silent partial index.
type IngestionError struct {
	Failed []int   // Failed chunk indices, ascending
	Errs   []error // Last error per failed chunk, parallel to Failed
}

// Error implements the error interface.
func (e *IngestionError) Error() string {
	parts := make([]string, len(e.Failed))
	for i, idx := range e.Failed {
		parts[i] = fmt.Sprintf("%d", idx)
	}
	return fmt.Sprintf("ingestion failed for %d chunk(s): indices [%s]",
		len(e.Failed), strings.Join(parts, ", "))
}

// Unwrap exposes the underlying chunk errors for errors.Is/errors.As.
func (e *IngestionError) Unwrap() []error {
	return e.Errs
}

// Config contains all required parameters for an Ingestor.
type Config struct {
	Embedder    *knowledge.Embedder
	Index       knowledge.Index
	Splitter    *Splitter
	Concurrency int // Max concurrent embed+upsert workers; default 5
	Retries     int // Retry attempts per chunk after the first failure; default 2
	Logger      *slog.Logger
}

// Ingestor runs the chunk → embed → upsert pipeline for one document at a
// time. Embedding and upserting fan out across chunks with a bounded number
// of workers so the external services are never overwhelmed; this is the only
// concurrent fan-out in the system and exists purely for throughput.
type Ingestor struct {
	embedder    *knowledge.Embedder
	index       knowledge.Index
	splitter    *Splitter
	concurrency int
	retries     int
	logger      *slog.Logger
}

// New creates an Ingestor. Embedder, Index, and Splitter are required.
func New(cfg Config) (*Ingestor, error) {
	if cfg.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if cfg.Index == nil {
		return nil, errors.New("index is required")
	}
	if cfg.Splitter == nil {
		return nil, errors.New("splitter is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.Retries < 0 {
		cfg.Retries = 2
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Ingestor{
		embedder:    cfg.Embedder,
		index:       cfg.Index,
		splitter:    cfg.Splitter,
		concurrency: cfg.Concurrency,
		retries:     cfg.Retries,
		logger:      cfg.Logger,
	}, nil
}

// Ingest splits text into chunks, embeds each chunk, and upserts one entry
// per chunk. It returns the number of entries written.
//
// Failure policy: a chunk that fails embedding or upserting is retried up to
// the configured count; if any chunk still fails, the remaining chunks are
// still processed and the run returns an *IngestionError enumerating every
// failed chunk index. There is no silent partial success.
func (ing *Ingestor) Ingest(ctx context.Context, docID, text string, metadata map[string]string) (int, error) {
	chunks := ing.splitter.Split(text)
	if len(chunks) == 0 {
		return 0, nil
	}

	ing.logger.Info("ingesting document",
		"doc_id", docID, "chunks", len(chunks), "concurrency", ing.concurrency)

	var (
		mu     sync.Mutex
		failed []int
		errs   = make(map[int]error)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ing.concurrency)

	for _, chunk := range chunks {
		g.Go(func() error {
			if err := ing.ingestChunk(gctx, docID, chunk, metadata); err != nil {
				mu.Lock()
				failed = append(failed, chunk.Index)
				errs[chunk.Index] = err
				mu.Unlock()
				ing.logger.Warn("chunk failed after retries",
					"doc_id", docID, "chunk", chunk.Index, "error", err)
			}
			// Failures are collected, not returned: one bad chunk must not
			// cancel the siblings before they get their retry attempts.
			return nil
		})
	}

	// Workers only return nil; Wait surfaces context cancellation.
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("ingesting %q: %w", docID, err)
	}

	if len(failed) > 0 {
		sort.Ints(failed)
		ingErr := &IngestionError{Failed: failed}
		for _, idx := range failed {
			ingErr.Errs = append(ingErr.Errs, errs[idx])
		}
		return len(chunks) - len(failed), ingErr
	}

	ing.logger.Info("ingestion complete", "doc_id", docID, "entries", len(chunks))
	return len(chunks), nil
}

// IngestFile reads a file and ingests its content with file metadata.
func (ing *Ingestor) IngestFile(ctx context.Context, path string) (int, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("resolving path: %w", err)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return 0, fmt.Errorf("reading file: %w", err)
	}

	metadata := map[string]string{
		"source_type": SourceTypeFile,
		"file_path":   absPath,
		"file_name":   filepath.Base(absPath),
		"indexed_at":  time.Now().Format(time.RFC3339),
	}
	return ing.Ingest(ctx, DocID(absPath), string(content), metadata)
}

// ingestChunk embeds and upserts one chunk with bounded retries.
func (ing *Ingestor) ingestChunk(ctx context.Context, docID string, chunk Chunk, metadata map[string]string) error {
	entryMetadata := make(map[string]string, len(metadata)+3)
	for k, v := range metadata {
		entryMetadata[k] = v
	}
	entryMetadata[knowledge.MetadataTextKey] = chunk.Text
	entryMetadata["chunk_index"] = fmt.Sprintf("%d", chunk.Index)
	entryMetadata["chunk_offset"] = fmt.Sprintf("%d", chunk.Offset)

	entryID := fmt.Sprintf("%s_%04d", docID, chunk.Index)

	var lastErr error
	for attempt := 0; attempt <= ing.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("canceled during retry: %w", ctx.Err())
			case <-time.After(retryBaseDelay * time.Duration(attempt)):
			}
		}

		vector, err := ing.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			lastErr = fmt.Errorf("embedding chunk %d: %w", chunk.Index, err)
			continue
		}

		err = ing.index.Upsert(ctx, []knowledge.Entry{{
			ID:       entryID,
			Vector:   vector,
			Metadata: entryMetadata,
		}})
		if err != nil {
			lastErr = fmt.Errorf("upserting chunk %d: %w", chunk.Index, err)
			continue
		}

		return nil
	}
	return lastErr
}

// DocID derives a stable document ID from a source identifier (typically an
// absolute file path).
func DocID(source string) string {
	hash := sha256.Sum256([]byte(source))
	return "doc_" + hex.EncodeToString(hash[:16])
}
