package query

import (
	"fmt"
)

// defaultSearchLimit bounds embedding searches whose clause leaves Limit
// unset.
const defaultSearchLimit = 10

// Planner validates a ComplexQuery against a schema snapshot and produces an
// execution plan isomorphic to the clause tree. It collects every problem it
// finds and fails with one aggregated SchemaError; it never touches a store.
type Planner struct {
	schema SchemaLookup
	logger Logger
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithPlannerLogger sets the planner's logger.
func WithPlannerLogger(l Logger) PlannerOption {
	return func(p *Planner) { p.logger = l }
}

// NewPlanner creates a planner over the given schema snapshot.
func NewPlanner(schema SchemaLookup, opts ...PlannerOption) *Planner {
	p := &Planner{schema: schema, logger: NopLogger()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan validates the query and returns a complete plan, or an error: the
// ErrNilQuery/ErrEmptyQuery sentinels for a missing tree, a *SchemaError
// aggregating every schema and validation problem otherwise. No partial
// plans are returned.
func (p *Planner) Plan(q *ComplexQuery) (*PlannedQuery, error) {
	root, err := q.normalizedRoot()
	if err != nil {
		return nil, err
	}

	v := &validation{schema: p.schema}
	planned, objectType := v.planClause(root, "query_root")
	if len(v.problems) > 0 {
		p.logger.Debug("planning failed", "problems", len(v.problems))
		return nil, &SchemaError{Problems: v.problems}
	}

	p.logger.Debug("query planned", "object_type", objectType)
	return &PlannedQuery{
		Description: q.Description,
		ObjectType:  objectType,
		Root:        planned,
	}, nil
}

// validation accumulates problems across one planning pass.
type validation struct {
	schema   SchemaLookup
	problems []error
}

func (v *validation) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Errorf(format, args...))
}

// planClause recursively validates a clause and builds its planned mirror.
// It returns the planned node and the object type the node resolves to; the
// type is empty when it could not be determined. Problems accumulate in v
// instead of aborting the walk, so one pass reports everything.
func (v *validation) planClause(c QueryClause, path string) (PlannedClause, string) {
	switch n := c.(type) {
	case *QueryComponent:
		return v.planComponent(n, path)

	case *LogicalGroup:
		if !n.Operator.Valid() {
			v.addProblem("%s: unknown logical operator %q", path, n.Operator)
		}
		if len(n.Children) == 0 {
			v.addProblem("%s: logical group has no children", path)
			return nil, ""
		}
		group := &PlannedGroup{Operator: n.Operator, Children: make([]PlannedClause, 0, len(n.Children))}
		groupType := ""
		for i, child := range n.Children {
			childPath := fmt.Sprintf("%s.children[%d]", path, i)
			planned, childType := v.planClause(child, childPath)
			if planned != nil {
				group.Children = append(group.Children, planned)
			}
			if childType == "" {
				continue
			}
			if groupType == "" {
				groupType = childType
			} else if childType != groupType {
				v.addProblem("%s: object type %q does not match sibling type %q; clauses under one logical node must share an object type",
					childPath, childType, groupType)
			}
		}
		group.ObjectType = groupType
		return group, groupType

	case *NotClause:
		if n.Child == nil {
			v.addProblem("%s: not clause has no child", path)
			return nil, ""
		}
		planned, childType := v.planClause(n.Child, path+".child")
		if planned == nil {
			return nil, childType
		}
		return &PlannedNot{ObjectType: childType, Child: planned}, childType

	case nil:
		v.addProblem("%s: clause is nil", path)
		return nil, ""

	default:
		v.addProblem("%s: unknown clause type %T", path, c)
		return nil, ""
	}
}

// planComponent validates a leaf and decomposes it into its ordered steps:
// one relational_filter step carrying all filters, then one embedding_search
// step per search and one graph_traversal step per traversal, in declaration
// order.
func (v *validation) planComponent(c *QueryComponent, path string) (PlannedClause, string) {
	if c.ObjectType == "" {
		v.addProblem("%s: component has no object type", path)
		return nil, ""
	}

	if _, err := v.schema.GetObjectType(c.ObjectType); err != nil {
		v.addProblem("%s: unknown object type %q", path, c.ObjectType)
		return nil, ""
	}

	exec := &PlannedComponentExecution{ObjectType: c.ObjectType}

	if len(c.Filters) > 0 {
		v.checkFilters(c.Filters, c.ObjectType, path)
		exec.Steps = append(exec.Steps, PlannedStep{
			Kind:    StepRelationalFilter,
			Filters: c.Filters,
		})
	}

	for i := range c.EmbeddingSearches {
		search := c.EmbeddingSearches[i]
		searchPath := fmt.Sprintf("%s.embedding_searches[%d]", path, i)
		v.checkEmbeddingSearch(&search, c.ObjectType, searchPath)
		if search.Limit <= 0 {
			search.Limit = defaultSearchLimit
		}
		exec.Steps = append(exec.Steps, PlannedStep{
			Kind:      StepEmbeddingSearch,
			Embedding: &search,
		})
	}

	for i := range c.Traversals {
		traversal := c.Traversals[i]
		traversalPath := fmt.Sprintf("%s.traversals[%d]", path, i)
		v.checkTraversal(&traversal, c.ObjectType, traversalPath)
		exec.Steps = append(exec.Steps, PlannedStep{
			Kind:      StepGraphTraversal,
			Traversal: &traversal,
		})
	}

	return exec, c.ObjectType
}

// checkFilters validates every filter against the object type's properties:
// the property must exist, the operator must be compatible with its data
// type, and the value must fit both.
func (v *validation) checkFilters(filters []RelationalFilter, objectTypeName, path string) {
	objectType, err := v.schema.GetObjectType(objectTypeName)
	if err != nil {
		// The unknown-type problem is reported by the caller.
		return
	}
	for i, f := range filters {
		filterPath := fmt.Sprintf("%s.filters[%d]", path, i)
		prop := objectType.Property(f.Property)
		if prop == nil {
			v.addProblem("%s: unknown property %q on object type %q", filterPath, f.Property, objectTypeName)
			continue
		}
		if !f.Operator.Valid() {
			v.addProblem("%s: unknown operator %q", filterPath, f.Operator)
			continue
		}
		if !f.Operator.CompatibleWith(prop.DataType) {
			v.addProblem("%s: operator %s is not applicable to %s property %q",
				filterPath, f.Operator, prop.DataType, f.Property)
			continue
		}
		if verr := ValidateValue(f.Property, prop.DataType, f.Operator, f.Value); verr != nil {
			v.problems = append(v.problems, fmt.Errorf("%s: %w", filterPath, verr))
		}
	}
}

func (v *validation) checkEmbeddingSearch(search *EmbeddingSearchClause, objectTypeName, path string) {
	def, err := v.schema.GetEmbeddingDefinition(search.Definition)
	if err != nil {
		v.addProblem("%s: unknown embedding definition %q", path, search.Definition)
		return
	}
	if def.ObjectType != objectTypeName {
		v.addProblem("%s: embedding definition %q targets object type %q, not %q",
			path, search.Definition, def.ObjectType, objectTypeName)
	}
	if len(search.Vector) == 0 && search.Text == "" {
		v.addProblem("%s: embedding search needs a query vector or text", path)
	}
	if len(search.Vector) > 0 && def.Dimensions > 0 && len(search.Vector) != def.Dimensions {
		v.problems = append(v.problems, fmt.Errorf("%s: %w", path, &ValidationError{
			Property: search.Definition,
			Detail:   fmt.Sprintf("query vector has %d dimensions, definition expects %d", len(search.Vector), def.Dimensions),
		}))
	}
	if search.Limit < 0 {
		v.problems = append(v.problems, fmt.Errorf("%s: %w", path, &ValidationError{
			Property: search.Definition,
			Detail:   "limit cannot be negative",
		}))
	}
}

func (v *validation) checkTraversal(traversal *GraphTraversalClause, objectTypeName, path string) {
	relation, err := v.schema.GetRelationType(traversal.RelationType)
	if err != nil {
		v.addProblem("%s: unknown relation type %q", path, traversal.RelationType)
		return
	}
	if !traversal.Direction.Valid() {
		v.addProblem("%s: unknown traversal direction %q", path, traversal.Direction)
		return
	}
	targetType, err := v.schema.GetObjectType(traversal.TargetType)
	if err != nil {
		v.addProblem("%s: unknown target object type %q", path, traversal.TargetType)
		return
	}

	// Outgoing: leaf objects are sources, targets at the far end. Incoming
	// reverses the edge relative to the leaf.
	switch traversal.Direction {
	case DirectionOutgoing:
		if !relation.AllowsSource(objectTypeName) {
			v.addProblem("%s: relation type %q does not allow source object type %q",
				path, traversal.RelationType, objectTypeName)
		}
		if !relation.AllowsTarget(traversal.TargetType) {
			v.addProblem("%s: relation type %q does not allow target object type %q",
				path, traversal.RelationType, traversal.TargetType)
		}
	case DirectionIncoming:
		if !relation.AllowsSource(traversal.TargetType) {
			v.addProblem("%s: relation type %q does not allow source object type %q",
				path, traversal.RelationType, traversal.TargetType)
		}
		if !relation.AllowsTarget(objectTypeName) {
			v.addProblem("%s: relation type %q does not allow target object type %q",
				path, traversal.RelationType, objectTypeName)
		}
	}

	for i, f := range traversal.TargetFilters {
		filterPath := fmt.Sprintf("%s.target_filters[%d]", path, i)
		prop := targetType.Property(f.Property)
		if prop == nil {
			v.addProblem("%s: unknown property %q on object type %q", filterPath, f.Property, traversal.TargetType)
			continue
		}
		if !f.Operator.Valid() {
			v.addProblem("%s: unknown operator %q", filterPath, f.Operator)
			continue
		}
		if !f.Operator.CompatibleWith(prop.DataType) {
			v.addProblem("%s: operator %s is not applicable to %s property %q",
				filterPath, f.Operator, prop.DataType, f.Property)
			continue
		}
		if verr := ValidateValue(f.Property, prop.DataType, f.Operator, f.Value); verr != nil {
			v.problems = append(v.problems, fmt.Errorf("%s: %w", filterPath, verr))
		}
	}
}
