package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PGIndex is the PostgreSQL + pgvector implementation of Index.
// Entries live in the documents table (see db/migrations); similarity is
// cosine distance via the <=> operator.
//
// PGIndex is safe for concurrent use by multiple goroutines.
type PGIndex struct {
	pool      *pgxpool.Pool
	dimension int
	logger    *slog.Logger
}

// NewPGIndex creates a PGIndex over the given connection pool.
// dimension must match the vector(N) column in the documents table.
func NewPGIndex(pool *pgxpool.Pool, dimension int, logger *slog.Logger) *PGIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &PGIndex{
		pool:      pool,
		dimension: dimension,
		logger:    logger,
	}
}

// Dimension returns the configured vector dimension.
func (idx *PGIndex) Dimension() int {
	return idx.dimension
}

// Upsert writes entries in a single transaction.
// Existing entries with the same ID are replaced (ON CONFLICT DO UPDATE).
func (idx *PGIndex) Upsert(ctx context.Context, entries []Entry) error {
	if idx.pool == nil {
		return fmt.Errorf("vector index not configured: %w", ErrUnavailable)
	}
	if len(entries) == 0 {
		return nil
	}

	for i, entry := range entries {
		if len(entry.Vector) != idx.dimension {
			return fmt.Errorf("%w: entry %d has %d dimensions, index configured for %d",
				ErrDimensionMismatch, i, len(entry.Vector), idx.dimension)
		}
	}

	tx, err := idx.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning upsert transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, entry := range entries {
		metadataJSON, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for %q: %w", entry.ID, err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO documents (id, content, embedding, metadata)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE
			 SET content = EXCLUDED.content,
			     embedding = EXCLUDED.embedding,
			     metadata = EXCLUDED.metadata`,
			entry.ID,
			entry.Metadata[MetadataTextKey],
			pgvector.NewVector(entry.Vector),
			metadataJSON,
		)
		if err != nil {
			return fmt.Errorf("upserting entry %q: %w", entry.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing upsert: %w", err)
	}

	idx.logger.Debug("upserted entries", "count", len(entries))
	return nil
}

// Query performs a top-K cosine similarity search.
// The vector's dimension is validated before the query is issued. Results are
// returned in the database's relevance order; no re-sorting happens here.
func (idx *PGIndex) Query(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]Result, error) {
	if idx.pool == nil {
		return nil, fmt.Errorf("vector index not configured: %w", ErrUnavailable)
	}
	if len(vector) != idx.dimension {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, index configured for %d",
			ErrDimensionMismatch, len(vector), idx.dimension)
	}
	if topK <= 0 {
		return nil, nil
	}

	queryVector := pgvector.NewVector(vector)

	var rows pgx.Rows
	var err error
	if len(filter) > 0 {
		// filterJSON is always produced by json.Marshal, never raw user input;
		// the JSONB @> operator with a bind parameter is injection-safe.
		filterJSON, marshalErr := json.Marshal(filter)
		if marshalErr != nil {
			return nil, fmt.Errorf("marshaling filter: %w", marshalErr)
		}
		rows, err = idx.pool.Query(ctx,
			`SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity
			 FROM documents
			 WHERE metadata @> $2
			 ORDER BY embedding <=> $1
			 LIMIT $3`,
			queryVector, filterJSON, topK)
	} else {
		rows, err = idx.pool.Query(ctx,
			`SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity
			 FROM documents
			 ORDER BY embedding <=> $1
			 LIMIT $2`,
			queryVector, topK)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("vector search: %w", ErrTimeout)
		}
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			r            Result
			metadataJSON []byte
		)
		if err := rows.Scan(&r.ID, &r.Text, &metadataJSON, &r.Score); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &r.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshaling metadata for %q: %w", r.ID, err)
			}
		}
		r.Rank = len(results)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}

	return results, nil
}
