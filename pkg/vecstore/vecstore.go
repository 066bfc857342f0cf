// Package vecstore is the SQLite vector store adapter. Embeddings live in
// named spaces keyed by (definition, object id); search is a linear scan with
// cosine similarity, which is exact and fast enough for embedded datasets.
package vecstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/triadstore/triad/internal/encoding"
	"github.com/triadstore/triad/pkg/query"
)

var (
	// ErrNoEmbedder is returned when a text search arrives and no embedder
	// is configured.
	ErrNoEmbedder = errors.New("no embedder configured for text search")

	// ErrNotFound is returned when an embedding does not exist.
	ErrNotFound = errors.New("embedding not found")
)

const paramChunkSize = 500

// Embedder turns text into a query vector. Implementations typically call an
// embedding model; tests use a deterministic stub.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbedderFunc adapts a function to the Embedder interface.
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

// Embed implements Embedder.
func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// Store provides vector access over a shared database handle.
type Store struct {
	db       *sql.DB
	embedder Embedder
}

// Option configures a Store.
type Option func(*Store)

// WithEmbedder sets the embedder used to resolve text searches.
func WithEmbedder(e Embedder) Option {
	return func(s *Store) { s.embedder = e }
}

// New creates a vector store over an open database handle.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init creates the embeddings table and its indexes.
func (s *Store) Init(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS embeddings (
		definition TEXT NOT NULL,
		object_id TEXT NOT NULL,
		vector BLOB NOT NULL,
		PRIMARY KEY (definition, object_id)
	);

	CREATE INDEX IF NOT EXISTS idx_embeddings_definition ON embeddings(definition);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create embeddings table: %w", err)
	}
	return nil
}

// UpsertEmbedding stores or replaces one object's vector in a named space.
func (s *Store) UpsertEmbedding(ctx context.Context, definition, objectID string, vector []float32) error {
	if definition == "" || objectID == "" {
		return fmt.Errorf("embedding requires a definition and an object id")
	}
	if err := encoding.ValidateVector(vector); err != nil {
		return fmt.Errorf("embedding %s/%s: %w", definition, objectID, err)
	}

	blob, err := encoding.EncodeVector(vector)
	if err != nil {
		return fmt.Errorf("embedding %s/%s: %w", definition, objectID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO embeddings (definition, object_id, vector)
		VALUES (?, ?, ?)
		ON CONFLICT(definition, object_id) DO UPDATE SET vector = excluded.vector
	`, definition, objectID, blob)
	if err != nil {
		return fmt.Errorf("upsert embedding %s/%s: %w", definition, objectID, err)
	}
	return nil
}

// DeleteEmbedding removes one object's vector from a named space.
func (s *Store) DeleteEmbedding(ctx context.Context, definition, objectID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM embeddings WHERE definition = ? AND object_id = ?`, definition, objectID)
	if err != nil {
		return fmt.Errorf("delete embedding %s/%s: %w", definition, objectID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("embedding %s/%s: %w", definition, objectID, ErrNotFound)
	}
	return nil
}

// DeleteObjectEmbeddings removes an object's vectors from every space.
func (s *Store) DeleteObjectEmbeddings(ctx context.Context, objectID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM embeddings WHERE object_id = ?`, objectID); err != nil {
		return fmt.Errorf("delete embeddings for %q: %w", objectID, err)
	}
	return nil
}

// scored pairs an object id with its similarity to the query vector.
type scored struct {
	id    string
	score float64
}

// SearchIDs returns the ids of the top-K objects nearest to the search's
// query vector, restricted to restrictTo when non-nil and cut off at the
// search's threshold when positive. Text searches are resolved through the
// configured embedder first.
func (s *Store) SearchIDs(ctx context.Context, search *query.EmbeddingSearchClause, restrictTo query.IDSet) (query.IDSet, error) {
	if restrictTo != nil && len(restrictTo) == 0 {
		return query.IDSet{}, nil
	}

	queryVec := search.Vector
	if len(queryVec) == 0 {
		if search.Text == "" {
			return nil, fmt.Errorf("search in %q: no query vector or text", search.Definition)
		}
		if s.embedder == nil {
			return nil, fmt.Errorf("search in %q: %w", search.Definition, ErrNoEmbedder)
		}
		embedded, err := s.embedder.Embed(ctx, search.Text)
		if err != nil {
			return nil, fmt.Errorf("embed query text: %w", err)
		}
		queryVec = embedded
	}
	if err := encoding.ValidateVector(queryVec); err != nil {
		return nil, fmt.Errorf("search in %q: %w", search.Definition, err)
	}

	matches, err := s.scan(ctx, search.Definition, queryVec, restrictTo, search.Threshold)
	if err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].id < matches[j].id
	})
	if search.Limit > 0 && len(matches) > search.Limit {
		matches = matches[:search.Limit]
	}

	ids := query.IDSet{}
	for _, m := range matches {
		ids.Add(m.id)
	}
	return ids, nil
}

// scan reads candidate vectors and scores them against the query vector.
// Restricted scans chunk the id list below the SQLite parameter cap.
func (s *Store) scan(ctx context.Context, definition string, queryVec []float32, restrictTo query.IDSet, threshold float64) ([]scored, error) {
	if restrictTo == nil {
		return s.scanRows(ctx, queryVec, threshold,
			`SELECT object_id, vector FROM embeddings WHERE definition = ?`, []any{definition})
	}

	var matches []scored
	ids := restrictTo.Sorted()
	for start := 0; start < len(ids); start += paramChunkSize {
		end := min(start+paramChunkSize, len(ids))
		chunk := ids[start:end]

		placeholders := make([]string, len(chunk))
		params := make([]any, 0, len(chunk)+1)
		params = append(params, definition)
		for i, id := range chunk {
			placeholders[i] = "?"
			params = append(params, id)
		}

		chunkMatches, err := s.scanRows(ctx, queryVec, threshold, fmt.Sprintf(
			`SELECT object_id, vector FROM embeddings WHERE definition = ? AND object_id IN (%s)`,
			strings.Join(placeholders, ",")), params)
		if err != nil {
			return nil, err
		}
		matches = append(matches, chunkMatches...)
	}
	return matches, nil
}

func (s *Store) scanRows(ctx context.Context, queryVec []float32, threshold float64, querySQL string, params []any) ([]scored, error) {
	rows, err := s.db.QueryContext(ctx, querySQL, params...)
	if err != nil {
		return nil, fmt.Errorf("scan embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []scored
	for rows.Next() {
		var (
			id   string
			blob []byte
		)
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scan embedding row: %w", err)
		}
		vec, err := encoding.DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("embedding %q: %w", id, err)
		}
		if len(vec) != len(queryVec) {
			// Stale row from a redefined space; skip rather than fail the
			// whole search.
			continue
		}
		score := CosineSimilarity(queryVec, vec)
		if threshold > 0 && score < threshold {
			continue
		}
		matches = append(matches, scored{id: id, score: score})
	}
	return matches, rows.Err()
}
