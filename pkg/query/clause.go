// Package query implements the complex query engine: the logical clause
// tree, the planner that validates it against the schema catalog, and the
// executor that narrows candidate id sets through the relational, vector and
// graph stores and combines them with set algebra.
package query

// Direction is the direction of a graph traversal relative to the leaf's
// object type.
type Direction string

const (
	// DirectionOutgoing follows edges from the leaf's objects to the target.
	DirectionOutgoing Direction = "outgoing"
	// DirectionIncoming follows edges from the target to the leaf's objects.
	DirectionIncoming Direction = "incoming"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionOutgoing || d == DirectionIncoming
}

// LogicalOperator combines the children of a LogicalGroup.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "AND"
	LogicalOr  LogicalOperator = "OR"
)

// Valid reports whether op is a known logical operator.
func (op LogicalOperator) Valid() bool {
	return op == LogicalAnd || op == LogicalOr
}

// RelationalFilter is a single property predicate evaluated by the
// relational store.
type RelationalFilter struct {
	Property string   `json:"property"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// EmbeddingSearchClause requests a nearest-neighbour search in one embedding
// space. Either Vector or Text must be set; Text is resolved to a vector by
// the vector store's configured embedder.
type EmbeddingSearchClause struct {
	Definition string    `json:"definition"`
	Vector     []float32 `json:"vector,omitempty"`
	Text       string    `json:"text,omitempty"`
	Limit      int       `json:"limit"`
	Threshold  float64   `json:"threshold,omitempty"`
}

// GraphTraversalClause keeps only those candidates that have a matching edge
// of the given relation type to a target object satisfying the target-side
// filters (ANDed).
type GraphTraversalClause struct {
	RelationType  string             `json:"relation_type"`
	Direction     Direction          `json:"direction"`
	TargetType    string             `json:"target_type"`
	TargetFilters []RelationalFilter `json:"target_filters,omitempty"`
}

// QueryClause is the closed variant over QueryComponent, LogicalGroup and
// NotClause. Implementations live in this package only.
type QueryClause interface {
	isQueryClause()
}

// QueryComponent is a leaf clause: one object type plus relational filters,
// embedding searches and graph traversals, all ANDed. It evaluates to an id
// set within its object type.
type QueryComponent struct {
	ObjectType        string                  `json:"object_type"`
	Filters           []RelationalFilter      `json:"filters,omitempty"`
	EmbeddingSearches []EmbeddingSearchClause `json:"embedding_searches,omitempty"`
	Traversals        []GraphTraversalClause  `json:"traversals,omitempty"`
}

func (*QueryComponent) isQueryClause() {}

// LogicalGroup combines one or more child clauses with AND or OR. A group
// with zero children is a schema error; with one child it passes through.
type LogicalGroup struct {
	Operator LogicalOperator `json:"operator"`
	Children []QueryClause   `json:"children"`
}

func (*LogicalGroup) isQueryClause() {}

// NotClause evaluates to the complement of its child within the child's
// object type extent. Nesting is preserved; NOT(NOT(c)) evaluates the inner
// clause twice rather than simplifying.
type NotClause struct {
	Child QueryClause `json:"child"`
}

func (*NotClause) isQueryClause() {}

// ComplexQuery is the engine's input: a description plus a clause tree.
//
// Components is the deprecated flat form; when Root is nil it desugars into
// an implicit AND group before planning and is never special-cased deeper in
// the pipeline.
type ComplexQuery struct {
	Description string      `json:"description,omitempty"`
	Root        QueryClause `json:"query_root,omitempty"`

	// Deprecated: use Root.
	Components []*QueryComponent `json:"components,omitempty"`
}

// normalizedRoot returns the effective clause tree, desugaring the legacy
// component list when no explicit root is set.
func (q *ComplexQuery) normalizedRoot() (QueryClause, error) {
	if q == nil {
		return nil, ErrNilQuery
	}
	if q.Root != nil {
		return q.Root, nil
	}
	if len(q.Components) == 0 {
		return nil, ErrEmptyQuery
	}
	children := make([]QueryClause, len(q.Components))
	for i, c := range q.Components {
		children[i] = c
	}
	return &LogicalGroup{Operator: LogicalAnd, Children: children}, nil
}
