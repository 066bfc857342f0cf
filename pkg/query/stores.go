package query

import (
	"context"

	"github.com/triadstore/triad/pkg/schema"
)

// Store collaborator contracts. The engine owns no connections and holds no
// native handles; adapters manage their own pooling and, where their
// underlying connection is not safe for concurrent use, their own
// serialization. Sibling clauses may be evaluated concurrently, so every
// method here must tolerate concurrent read calls.
//
// Restrict-to contract: whenever a non-nil restrictTo set is passed, the
// returned set must be a subset of it. Violating this breaks short-circuit
// and intersection correctness.

// RelationalStore filters and fetches objects by their structured properties.
type RelationalStore interface {
	// FilterIDs returns the ids of objects of the given type matching every
	// filter in the list, bounded by restrictTo when non-nil.
	FilterIDs(ctx context.Context, objectType string, filters []RelationalFilter, restrictTo IDSet) (IDSet, error)

	// AllIDs returns the full extent of an object type.
	AllIDs(ctx context.Context, objectType string) (IDSet, error)

	// GetObjectsByIDs bulk-fetches full objects of one type.
	GetObjectsByIDs(ctx context.Context, objectType string, ids IDSet) ([]*Object, error)
}

// VectorStore answers nearest-neighbour searches over named embedding spaces.
type VectorStore interface {
	// SearchIDs returns the ids of the top-K objects nearest to the search's
	// query vector (or embedded text), bounded by restrictTo when non-nil
	// and by the search's threshold when positive.
	SearchIDs(ctx context.Context, search *EmbeddingSearchClause, restrictTo IDSet) (IDSet, error)
}

// GraphStore filters candidates by edge traversal.
type GraphStore interface {
	// FilterByTraversal returns the ids from restrictTo (or the whole source
	// type when restrictTo is nil) that have a matching edge of the
	// traversal's relation type, in its direction, to a target object of the
	// traversal's target type satisfying the target-side filters.
	FilterByTraversal(ctx context.Context, sourceType string, traversal *GraphTraversalClause, restrictTo IDSet) (IDSet, error)
}

// SchemaLookup is the read-only schema snapshot the planner validates
// against. *schema.Catalog satisfies it.
type SchemaLookup interface {
	GetObjectType(name string) (*schema.ObjectTypeDefinition, error)
	GetRelationType(name string) (*schema.RelationTypeDefinition, error)
	GetEmbeddingDefinition(name string) (*schema.EmbeddingDefinition, error)
}
