package triad

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/triadstore/triad/pkg/graphstore"
	"github.com/triadstore/triad/pkg/query"
	"github.com/triadstore/triad/pkg/relstore"
	"github.com/triadstore/triad/pkg/schema"
	"github.com/triadstore/triad/pkg/vecstore"
)

// Persisted definition kinds in the schema_defs table.
const (
	kindObjectType   = "object_type"
	kindRelationType = "relation_type"
	kindEmbedding    = "embedding"
)

// Config holds database settings.
type Config struct {
	// Path is the SQLite file path, or ":memory:".
	Path string

	// MaxConns caps the connection pool. Zero keeps database/sql's default.
	MaxConns int
}

// DefaultConfig returns a config with sensible defaults for the given path.
func DefaultConfig(path string) Config {
	return Config{Path: path}
}

// Option configures a DB.
type Option func(*DB)

// WithEmbedder sets the embedder used to resolve text searches against the
// vector store.
func WithEmbedder(e vecstore.Embedder) Option {
	return func(db *DB) { db.embedder = e }
}

// WithLogger sets the logger used by the planner and executor.
func WithLogger(l query.Logger) Option {
	return func(db *DB) { db.logger = l }
}

// DB is an open triad database: one SQLite file behind the relational, vector
// and graph store adapters, a schema catalog persisted alongside the data,
// and the query engine wired over all of it.
type DB struct {
	mu     sync.Mutex
	db     *sql.DB
	closed bool

	catalog  *schema.Catalog
	rel      *relstore.Store
	vec      *vecstore.Store
	graph    *graphstore.Store
	executor *query.Executor

	embedder vecstore.Embedder
	logger   query.Logger
}

// Open opens or creates the database at cfg.Path, initializes the store
// tables and loads the persisted schema catalog.
func Open(cfg Config, opts ...Option) (*DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("config requires a database path")
	}

	// _journal_mode=WAL: Better concurrency
	// _busy_timeout=5000: Wait up to 5s for lock instead of failing immediately
	// _cache_size=-2000: Use 2MB of memory for cache (negative value = kb)
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_cache_size=-2000", cfg.Path)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConns)
	}

	db := &DB{
		db:      sqlDB,
		catalog: schema.NewCatalog(),
		logger:  query.NopLogger(),
	}
	for _, opt := range opts {
		opt(db)
	}

	db.rel = relstore.New(sqlDB)
	db.vec = vecstore.New(sqlDB, vecstore.WithEmbedder(db.embedder))
	db.graph = graphstore.New(sqlDB)

	ctx := context.Background()
	for _, init := range []func(context.Context) error{db.rel.Init, db.vec.Init, db.graph.Init, db.initSchemaTable} {
		if err := init(ctx); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}
	if err := db.loadSchema(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	db.executor = query.NewExecutor(db.catalog, db.rel, db.vec, db.graph, query.WithLogger(db.logger))
	return db, nil
}

// Close closes the underlying database. Further calls fail.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.db.Close()
}

// Catalog exposes the schema catalog for read access.
func (d *DB) Catalog() *schema.Catalog {
	return d.catalog
}

func (d *DB) initSchemaTable(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_defs (
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			spec TEXT NOT NULL,
			PRIMARY KEY (kind, name)
		);
	`)
	if err != nil {
		return fmt.Errorf("create schema table: %w", err)
	}
	return nil
}

// loadSchema replays persisted definitions into the in-memory catalog.
// Object types load first so relation and embedding definitions can resolve
// their references.
func (d *DB) loadSchema(ctx context.Context) error {
	for _, kind := range []string{kindObjectType, kindRelationType, kindEmbedding} {
		rows, err := d.db.QueryContext(ctx,
			`SELECT name, spec FROM schema_defs WHERE kind = ? ORDER BY name`, kind)
		if err != nil {
			return fmt.Errorf("load schema: %w", err)
		}
		for rows.Next() {
			var name, spec string
			if err := rows.Scan(&name, &spec); err != nil {
				_ = rows.Close()
				return fmt.Errorf("load schema: %w", err)
			}
			if err := d.replayDefinition(kind, spec); err != nil {
				_ = rows.Close()
				return fmt.Errorf("load schema: %s %q: %w", kind, name, err)
			}
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return fmt.Errorf("load schema: %w", err)
		}
		_ = rows.Close()
	}
	return nil
}

func (d *DB) replayDefinition(kind, spec string) error {
	switch kind {
	case kindObjectType:
		var def schema.ObjectTypeDefinition
		if err := json.Unmarshal([]byte(spec), &def); err != nil {
			return err
		}
		return d.catalog.CreateObjectType(&def)
	case kindRelationType:
		var def schema.RelationTypeDefinition
		if err := json.Unmarshal([]byte(spec), &def); err != nil {
			return err
		}
		return d.catalog.CreateRelationType(&def)
	case kindEmbedding:
		var def schema.EmbeddingDefinition
		if err := json.Unmarshal([]byte(spec), &def); err != nil {
			return err
		}
		return d.catalog.CreateEmbeddingDefinition(&def)
	}
	return fmt.Errorf("unknown definition kind %q", kind)
}

// persistDefinition writes one definition through to the schema table after
// the catalog has accepted it.
func (d *DB) persistDefinition(ctx context.Context, kind, name string, def any) error {
	spec, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("persist %s %q: %w", kind, name, err)
	}
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO schema_defs (kind, name, spec) VALUES (?, ?, ?)
		ON CONFLICT(kind, name) DO UPDATE SET spec = excluded.spec
	`, kind, name, string(spec))
	if err != nil {
		return fmt.Errorf("persist %s %q: %w", kind, name, err)
	}
	return nil
}

func (d *DB) removeDefinition(ctx context.Context, kind, name string) error {
	if _, err := d.db.ExecContext(ctx,
		`DELETE FROM schema_defs WHERE kind = ? AND name = ?`, kind, name); err != nil {
		return fmt.Errorf("remove %s %q: %w", kind, name, err)
	}
	return nil
}

// CreateObjectType registers and persists an object type definition.
func (d *DB) CreateObjectType(ctx context.Context, def *schema.ObjectTypeDefinition) error {
	if err := d.catalog.CreateObjectType(def); err != nil {
		return err
	}
	return d.persistDefinition(ctx, kindObjectType, def.Name, def)
}

// DeleteObjectType removes an object type definition from the catalog and the
// schema table. Stored objects of that type are untouched.
func (d *DB) DeleteObjectType(ctx context.Context, name string) error {
	if err := d.catalog.DeleteObjectType(name); err != nil {
		return err
	}
	return d.removeDefinition(ctx, kindObjectType, name)
}

// CreateRelationType registers and persists a relation type definition.
func (d *DB) CreateRelationType(ctx context.Context, def *schema.RelationTypeDefinition) error {
	if err := d.catalog.CreateRelationType(def); err != nil {
		return err
	}
	return d.persistDefinition(ctx, kindRelationType, def.Name, def)
}

// DeleteRelationType removes a relation type definition.
func (d *DB) DeleteRelationType(ctx context.Context, name string) error {
	if err := d.catalog.DeleteRelationType(name); err != nil {
		return err
	}
	return d.removeDefinition(ctx, kindRelationType, name)
}

// CreateEmbeddingDefinition registers and persists an embedding definition.
func (d *DB) CreateEmbeddingDefinition(ctx context.Context, def *schema.EmbeddingDefinition) error {
	if err := d.catalog.CreateEmbeddingDefinition(def); err != nil {
		return err
	}
	return d.persistDefinition(ctx, kindEmbedding, def.Name, def)
}

// DeleteEmbeddingDefinition removes an embedding definition.
func (d *DB) DeleteEmbeddingDefinition(ctx context.Context, name string) error {
	if err := d.catalog.DeleteEmbeddingDefinition(name); err != nil {
		return err
	}
	return d.removeDefinition(ctx, kindEmbedding, name)
}

// ApplySchema registers every definition in a parsed schema file, skipping
// names that already exist, and persists the new ones.
func (d *DB) ApplySchema(ctx context.Context, file *schema.File) error {
	if err := file.Apply(d.catalog); err != nil {
		return err
	}
	for _, def := range d.catalog.ListObjectTypes() {
		if err := d.persistDefinition(ctx, kindObjectType, def.Name, def); err != nil {
			return err
		}
	}
	for _, def := range d.catalog.ListRelationTypes() {
		if err := d.persistDefinition(ctx, kindRelationType, def.Name, def); err != nil {
			return err
		}
	}
	for _, def := range d.catalog.ListEmbeddingDefinitions() {
		if err := d.persistDefinition(ctx, kindEmbedding, def.Name, def); err != nil {
			return err
		}
	}
	return nil
}

// PutObject validates the object's type against the catalog and upserts it.
func (d *DB) PutObject(ctx context.Context, obj *query.Object) error {
	if obj == nil {
		return fmt.Errorf("object is nil")
	}
	if _, err := d.catalog.GetObjectType(obj.ObjectType); err != nil {
		return err
	}
	return d.rel.UpsertObject(ctx, obj)
}

// GetObject fetches a single object by type and id.
func (d *DB) GetObject(ctx context.Context, objectType, id string) (*query.Object, error) {
	return d.rel.GetObject(ctx, objectType, id)
}

// DeleteObject removes an object together with its embeddings and relations.
func (d *DB) DeleteObject(ctx context.Context, objectType, id string) error {
	if err := d.rel.DeleteObject(ctx, objectType, id); err != nil {
		return err
	}
	if err := d.vec.DeleteObjectEmbeddings(ctx, id); err != nil {
		return err
	}
	return d.graph.DeleteObjectRelations(ctx, objectType, id)
}

// Relate adds a typed edge between two objects, validating the relation type
// and both endpoints against the catalog and the relational store.
func (d *DB) Relate(ctx context.Context, rel *graphstore.Relation) error {
	if rel == nil {
		return fmt.Errorf("relation is nil")
	}
	def, err := d.catalog.GetRelationType(rel.RelationType)
	if err != nil {
		return err
	}
	if !def.AllowsSource(rel.FromType) {
		return fmt.Errorf("relation type %q does not allow source object type %q", rel.RelationType, rel.FromType)
	}
	if !def.AllowsTarget(rel.ToType) {
		return fmt.Errorf("relation type %q does not allow target object type %q", rel.RelationType, rel.ToType)
	}
	if _, err := d.rel.GetObject(ctx, rel.FromType, rel.FromID); err != nil {
		return fmt.Errorf("relation source: %w", err)
	}
	if _, err := d.rel.GetObject(ctx, rel.ToType, rel.ToID); err != nil {
		return fmt.Errorf("relation target: %w", err)
	}
	return d.graph.AddRelation(ctx, rel)
}

// Unrelate removes an edge by id.
func (d *DB) Unrelate(ctx context.Context, relationID string) error {
	return d.graph.DeleteRelation(ctx, relationID)
}

// AddEmbedding stores an object's vector in a named embedding space,
// validating the definition and the vector's dimensionality.
func (d *DB) AddEmbedding(ctx context.Context, definition, objectID string, vector []float32) error {
	def, err := d.catalog.GetEmbeddingDefinition(definition)
	if err != nil {
		return err
	}
	if def.Dimensions > 0 && len(vector) != def.Dimensions {
		return fmt.Errorf("embedding %q: vector has %d dimensions, definition expects %d",
			definition, len(vector), def.Dimensions)
	}
	if _, err := d.rel.GetObject(ctx, def.ObjectType, objectID); err != nil {
		return fmt.Errorf("embedding target: %w", err)
	}
	return d.vec.UpsertEmbedding(ctx, definition, objectID, vector)
}

// EmbedAndAdd embeds the object's source property text through the configured
// embedder and stores the result. The object must carry the definition's
// source property as a string.
func (d *DB) EmbedAndAdd(ctx context.Context, definition, objectID string) error {
	if d.embedder == nil {
		return vecstore.ErrNoEmbedder
	}
	def, err := d.catalog.GetEmbeddingDefinition(definition)
	if err != nil {
		return err
	}
	if def.SourceProperty == "" {
		return fmt.Errorf("embedding definition %q has no source property", definition)
	}
	obj, err := d.rel.GetObject(ctx, def.ObjectType, objectID)
	if err != nil {
		return err
	}
	text, ok := obj.Properties[def.SourceProperty].(string)
	if !ok || text == "" {
		return fmt.Errorf("object %q has no text in property %q", objectID, def.SourceProperty)
	}
	vector, err := d.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed object %q: %w", objectID, err)
	}
	return d.AddEmbedding(ctx, definition, objectID, vector)
}

// Plan validates a query against the catalog and returns its execution plan
// without touching the stores.
func (d *DB) Plan(q *query.ComplexQuery) (*query.PlannedQuery, error) {
	return d.executor.Plan(q)
}

// Execute plans and runs a query. Planning failures are returned as the
// error; store failures during execution are reported through the result's
// error list.
func (d *DB) Execute(ctx context.Context, q *query.ComplexQuery) (*query.QueryResult, error) {
	return d.executor.Execute(ctx, q)
}
