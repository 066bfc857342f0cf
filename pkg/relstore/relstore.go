// Package relstore is the SQLite relational store adapter: objects with
// typed properties, filtered by predicate lists compiled to json_extract
// WHERE clauses.
package relstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/triadstore/triad/internal/encoding"
	"github.com/triadstore/triad/pkg/query"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("object not found")

// maxWeight bounds the application-assigned object weight.
const maxWeight = 10.0

// SQLite caps bound parameters per statement; restrict-to sets are chunked
// below that cap.
const paramChunkSize = 500

// Store provides relational access to objects in SQLite. It shares one
// *sql.DB with the other adapters; database/sql handles connection pooling
// and concurrent use.
type Store struct {
	db *sql.DB
}

// New creates a relational store over an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Init creates the objects table and its indexes.
func (s *Store) Init(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS objects (
		id TEXT NOT NULL,
		object_type TEXT NOT NULL,
		weight REAL NOT NULL DEFAULT 0,
		properties TEXT,
		upserted_at DATETIME NOT NULL,
		PRIMARY KEY (object_type, id)
	);

	CREATE INDEX IF NOT EXISTS idx_objects_type ON objects(object_type);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create objects table: %w", err)
	}
	return nil
}

// UpsertObject inserts or replaces an object, stamping its upsert time.
func (s *Store) UpsertObject(ctx context.Context, obj *query.Object) error {
	if obj == nil || obj.ID == "" {
		return fmt.Errorf("object requires an id")
	}
	if obj.ObjectType == "" {
		return fmt.Errorf("object %q requires an object type", obj.ID)
	}
	if obj.Weight < 0 || obj.Weight > maxWeight {
		return fmt.Errorf("object %q: weight %v outside [0, %v]", obj.ID, obj.Weight, maxWeight)
	}

	propsJSON, err := encoding.EncodeProperties(obj.Properties)
	if err != nil {
		return fmt.Errorf("object %q: %w", obj.ID, err)
	}

	obj.UpsertedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO objects (id, object_type, weight, properties, upserted_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(object_type, id) DO UPDATE SET
			weight = excluded.weight,
			properties = excluded.properties,
			upserted_at = excluded.upserted_at
	`, obj.ID, obj.ObjectType, obj.Weight, propsJSON, obj.UpsertedAt)
	if err != nil {
		return fmt.Errorf("upsert object %q: %w", obj.ID, err)
	}
	return nil
}

// GetObject fetches a single object by type and id.
func (s *Store) GetObject(ctx context.Context, objectType, id string) (*query.Object, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, object_type, weight, properties, upserted_at
		FROM objects WHERE object_type = ? AND id = ?
	`, objectType, id)

	obj, err := scanObject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("object %s/%s: %w", objectType, id, ErrNotFound)
	}
	return obj, err
}

// DeleteObject removes an object. Relations referencing it cascade in the
// graph store's table.
func (s *Store) DeleteObject(ctx context.Context, objectType, id string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM objects WHERE object_type = ? AND id = ?`, objectType, id)
	if err != nil {
		return fmt.Errorf("delete object %q: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("object %s/%s: %w", objectType, id, ErrNotFound)
	}
	return nil
}

// AllIDs returns the full extent of an object type.
func (s *Store) AllIDs(ctx context.Context, objectType string) (query.IDSet, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM objects WHERE object_type = ?`, objectType)
	if err != nil {
		return nil, fmt.Errorf("query extent of %q: %w", objectType, err)
	}
	defer func() { _ = rows.Close() }()

	ids := query.IDSet{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids.Add(id)
	}
	return ids, rows.Err()
}

// FilterIDs returns the ids of objects of the given type matching every
// filter, bounded by restrictTo when non-nil. The result is always a subset
// of restrictTo, preserving the engine's narrowing contract.
func (s *Store) FilterIDs(ctx context.Context, objectType string, filters []query.RelationalFilter, restrictTo query.IDSet) (query.IDSet, error) {
	whereClause, params, err := BuildWhere(filters)
	if err != nil {
		return nil, err
	}

	baseSQL := `SELECT id FROM objects WHERE object_type = ?`
	baseParams := append([]any{objectType}, params...)
	if whereClause != "" {
		baseSQL += " AND " + whereClause
	}

	if restrictTo == nil {
		return s.queryIDs(ctx, baseSQL, baseParams)
	}

	out := query.IDSet{}
	ids := restrictTo.Sorted()
	for start := 0; start < len(ids); start += paramChunkSize {
		end := min(start+paramChunkSize, len(ids))
		chunk := ids[start:end]

		placeholders := make([]string, len(chunk))
		chunkParams := append([]any{}, baseParams...)
		for i, id := range chunk {
			placeholders[i] = "?"
			chunkParams = append(chunkParams, id)
		}
		chunkSQL := fmt.Sprintf("%s AND id IN (%s)", baseSQL, strings.Join(placeholders, ","))

		chunkIDs, err := s.queryIDs(ctx, chunkSQL, chunkParams)
		if err != nil {
			return nil, err
		}
		for id := range chunkIDs {
			out.Add(id)
		}
	}
	return out, nil
}

// GetObjectsByIDs bulk-fetches full objects of one type, chunking the id
// list below the SQLite parameter cap.
func (s *Store) GetObjectsByIDs(ctx context.Context, objectType string, ids query.IDSet) ([]*query.Object, error) {
	if len(ids) == 0 {
		return []*query.Object{}, nil
	}

	var objects []*query.Object
	sorted := ids.Sorted()
	for start := 0; start < len(sorted); start += paramChunkSize {
		end := min(start+paramChunkSize, len(sorted))
		chunk := sorted[start:end]

		placeholders := make([]string, len(chunk))
		params := make([]any, 0, len(chunk)+1)
		params = append(params, objectType)
		for i, id := range chunk {
			placeholders[i] = "?"
			params = append(params, id)
		}

		rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
			SELECT id, object_type, weight, properties, upserted_at
			FROM objects WHERE object_type = ? AND id IN (%s)
		`, strings.Join(placeholders, ",")), params...)
		if err != nil {
			return nil, fmt.Errorf("fetch objects: %w", err)
		}

		for rows.Next() {
			obj, err := scanObject(rows)
			if err != nil {
				_ = rows.Close()
				return nil, err
			}
			objects = append(objects, obj)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, err
		}
		_ = rows.Close()
	}
	return objects, nil
}

func (s *Store) queryIDs(ctx context.Context, querySQL string, params []any) (query.IDSet, error) {
	rows, err := s.db.QueryContext(ctx, querySQL, params...)
	if err != nil {
		return nil, fmt.Errorf("filter ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := query.IDSet{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids.Add(id)
	}
	return ids, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanObject(row scanner) (*query.Object, error) {
	var (
		obj       query.Object
		propsJSON sql.NullString
	)
	if err := row.Scan(&obj.ID, &obj.ObjectType, &obj.Weight, &propsJSON, &obj.UpsertedAt); err != nil {
		return nil, err
	}
	if propsJSON.Valid {
		props, err := encoding.DecodeProperties(propsJSON.String)
		if err != nil {
			return nil, fmt.Errorf("object %q: %w", obj.ID, err)
		}
		obj.Properties = props
	}
	return &obj, nil
}
