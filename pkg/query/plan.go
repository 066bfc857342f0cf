package query

// StepKind identifies which store a planned step calls.
type StepKind string

const (
	StepRelationalFilter StepKind = "relational_filter"
	StepEmbeddingSearch  StepKind = "embedding_search"
	StepGraphTraversal   StepKind = "graph_traversal"
)

// PlannedStep is one store call with bound parameters. Exactly one of the
// parameter fields is set, matching Kind.
type PlannedStep struct {
	Kind      StepKind               `json:"kind"`
	Filters   []RelationalFilter     `json:"filters,omitempty"`
	Embedding *EmbeddingSearchClause `json:"embedding,omitempty"`
	Traversal *GraphTraversalClause  `json:"traversal,omitempty"`
}

// PlannedClause is the closed variant over the planned tree nodes. The tree
// is isomorphic to the input clause tree, with leaves replaced by
// PlannedComponentExecution.
type PlannedClause interface {
	isPlannedClause()

	// ResultType is the object type the node's id set belongs to.
	ResultType() string
}

// PlannedComponentExecution is a planned leaf: an object type and its
// ordered step list. Step order is fixed: the single relational filter step
// first (when any filters exist), then embedding searches and graph
// traversals in declaration order.
type PlannedComponentExecution struct {
	ObjectType string        `json:"object_type"`
	Steps      []PlannedStep `json:"steps"`
}

func (*PlannedComponentExecution) isPlannedClause() {}

// ResultType implements PlannedClause.
func (p *PlannedComponentExecution) ResultType() string { return p.ObjectType }

// PlannedGroup mirrors a LogicalGroup. All children share one object type,
// enforced at planning time.
type PlannedGroup struct {
	Operator   LogicalOperator `json:"operator"`
	ObjectType string          `json:"object_type"`
	Children   []PlannedClause `json:"children"`
}

func (*PlannedGroup) isPlannedClause() {}

// ResultType implements PlannedClause.
func (p *PlannedGroup) ResultType() string { return p.ObjectType }

// PlannedNot mirrors a NotClause; its result is the complement of the child
// within the object type's full extent.
type PlannedNot struct {
	ObjectType string        `json:"object_type"`
	Child      PlannedClause `json:"child"`
}

func (*PlannedNot) isPlannedClause() {}

// ResultType implements PlannedClause.
func (p *PlannedNot) ResultType() string { return p.ObjectType }

// PlannedQuery is a complete, validated execution plan. It is built fresh
// per Plan call and never cached.
type PlannedQuery struct {
	Description string        `json:"description,omitempty"`
	ObjectType  string        `json:"object_type"`
	Root        PlannedClause `json:"root"`
}
