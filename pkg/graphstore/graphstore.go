// Package graphstore is the SQLite graph store adapter: typed, directed
// relations between objects, with traversal filtering done as a join against
// the objects table so target-side predicates run in one query.
package graphstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/triadstore/triad/internal/encoding"
	"github.com/triadstore/triad/pkg/query"
	"github.com/triadstore/triad/pkg/relstore"
)

// ErrNotFound is returned when a relation does not exist.
var ErrNotFound = errors.New("relation not found")

const paramChunkSize = 500

// Relation is a directed, typed edge between two objects.
type Relation struct {
	ID           string         `json:"id"`
	RelationType string         `json:"relation_type"`
	FromType     string         `json:"from_type"`
	FromID       string         `json:"from_id"`
	ToType       string         `json:"to_type"`
	ToID         string         `json:"to_id"`
	Properties   map[string]any `json:"properties,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Store provides graph access over a shared database handle.
type Store struct {
	db *sql.DB
}

// New creates a graph store over an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Init creates the relations table and its indexes.
func (s *Store) Init(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS relations (
		id TEXT PRIMARY KEY,
		relation_type TEXT NOT NULL,
		from_type TEXT NOT NULL,
		from_id TEXT NOT NULL,
		to_type TEXT NOT NULL,
		to_id TEXT NOT NULL,
		properties TEXT,
		created_at DATETIME NOT NULL,
		UNIQUE (relation_type, from_type, from_id, to_type, to_id)
	);

	CREATE INDEX IF NOT EXISTS idx_relations_from ON relations(relation_type, from_type, from_id);
	CREATE INDEX IF NOT EXISTS idx_relations_to ON relations(relation_type, to_type, to_id);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create relations table: %w", err)
	}
	return nil
}

// AddRelation inserts an edge, assigning an id when the caller left it empty.
// Re-adding an existing edge refreshes its properties.
func (s *Store) AddRelation(ctx context.Context, rel *Relation) error {
	if rel == nil || rel.RelationType == "" {
		return fmt.Errorf("relation requires a relation type")
	}
	if rel.FromType == "" || rel.FromID == "" || rel.ToType == "" || rel.ToID == "" {
		return fmt.Errorf("relation %q requires both endpoints", rel.RelationType)
	}
	if rel.ID == "" {
		rel.ID = uuid.New().String()
	}

	propsJSON, err := encoding.EncodeProperties(rel.Properties)
	if err != nil {
		return fmt.Errorf("relation %q: %w", rel.ID, err)
	}

	rel.CreatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO relations (id, relation_type, from_type, from_id, to_type, to_id, properties, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(relation_type, from_type, from_id, to_type, to_id) DO UPDATE SET
			properties = excluded.properties
	`, rel.ID, rel.RelationType, rel.FromType, rel.FromID, rel.ToType, rel.ToID, propsJSON, rel.CreatedAt)
	if err != nil {
		return fmt.Errorf("add relation %q: %w", rel.RelationType, err)
	}
	return nil
}

// DeleteRelation removes an edge by id.
func (s *Store) DeleteRelation(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM relations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete relation %q: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("relation %q: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteObjectRelations removes every edge touching an object.
func (s *Store) DeleteObjectRelations(ctx context.Context, objectType, objectID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM relations
		WHERE (from_type = ? AND from_id = ?) OR (to_type = ? AND to_id = ?)
	`, objectType, objectID, objectType, objectID)
	if err != nil {
		return fmt.Errorf("delete relations of %s/%s: %w", objectType, objectID, err)
	}
	return nil
}

// Relations lists the edges of one relation type touching an object in the
// given direction.
func (s *Store) Relations(ctx context.Context, relationType string, direction query.Direction, objectType, objectID string) ([]*Relation, error) {
	endpoint := "from"
	if direction == query.DirectionIncoming {
		endpoint = "to"
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, relation_type, from_type, from_id, to_type, to_id, properties, created_at
		FROM relations
		WHERE relation_type = ? AND %s_type = ? AND %s_id = ?
	`, endpoint, endpoint), relationType, objectType, objectID)
	if err != nil {
		return nil, fmt.Errorf("list relations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var relations []*Relation
	for rows.Next() {
		var (
			rel       Relation
			propsJSON sql.NullString
		)
		if err := rows.Scan(&rel.ID, &rel.RelationType, &rel.FromType, &rel.FromID,
			&rel.ToType, &rel.ToID, &propsJSON, &rel.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		if propsJSON.Valid {
			props, err := encoding.DecodeProperties(propsJSON.String)
			if err != nil {
				return nil, fmt.Errorf("relation %q: %w", rel.ID, err)
			}
			rel.Properties = props
		}
		relations = append(relations, &rel)
	}
	return relations, rows.Err()
}

// FilterByTraversal returns the candidate ids that have a matching edge to a
// target object satisfying the traversal's target-side filters. Outgoing
// traversals read candidates from the edge's from side and targets from the
// to side; incoming reverses the edge.
func (s *Store) FilterByTraversal(ctx context.Context, sourceType string, traversal *query.GraphTraversalClause, restrictTo query.IDSet) (query.IDSet, error) {
	if restrictTo != nil && len(restrictTo) == 0 {
		return query.IDSet{}, nil
	}

	candidateCol, targetCol := "from", "to"
	if traversal.Direction == query.DirectionIncoming {
		candidateCol, targetCol = "to", "from"
	}

	targetWhere, targetParams, err := relstore.BuildWhereOn(traversal.TargetFilters, "o")
	if err != nil {
		return nil, err
	}

	baseSQL := fmt.Sprintf(`
		SELECT DISTINCT r.%[1]s_id
		FROM relations r
		JOIN objects o ON o.object_type = r.%[2]s_type AND o.id = r.%[2]s_id
		WHERE r.relation_type = ? AND r.%[1]s_type = ? AND r.%[2]s_type = ?
	`, candidateCol, targetCol)
	baseParams := []any{traversal.RelationType, sourceType, traversal.TargetType}
	if targetWhere != "" {
		baseSQL += " AND " + targetWhere
		baseParams = append(baseParams, targetParams...)
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
		params := append([]any{}, baseParams...)
		for i, id := range chunk {
			placeholders[i] = "?"
			params = append(params, id)
		}
		chunkSQL := fmt.Sprintf("%s AND r.%s_id IN (%s)",
			baseSQL, candidateCol, strings.Join(placeholders, ","))

		chunkIDs, err := s.queryIDs(ctx, chunkSQL, params)
		if err != nil {
			return nil, err
		}
		for id := range chunkIDs {
			out.Add(id)
		}
	}
	return out, nil
}

func (s *Store) queryIDs(ctx context.Context, querySQL string, params []any) (query.IDSet, error) {
	rows, err := s.db.QueryContext(ctx, querySQL, params...)
	if err != nil {
		return nil, fmt.Errorf("traverse relations: %w", err)
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
