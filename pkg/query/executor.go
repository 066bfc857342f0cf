package query

import (
	"context"
	"sort"
	"sync"
)

// Executor evaluates planned queries against the three stores. The engine is
// read-only: every store call narrows or preserves a candidate id set, never
// writes. Sibling clauses under a logical group evaluate concurrently; each
// sibling's failure is recorded and that sibling treated as empty, without
// cancelling the others.
type Executor struct {
	planner *Planner
	rel     RelationalStore
	vec     VectorStore
	graph   GraphStore
	logger  Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the executor's logger.
func WithLogger(l Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// NewExecutor creates an executor over the given schema snapshot and stores.
func NewExecutor(schema SchemaLookup, rel RelationalStore, vec VectorStore, graph GraphStore, opts ...ExecutorOption) *Executor {
	e := &Executor{
		rel:    rel,
		vec:    vec,
		graph:  graph,
		logger: NopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.planner = NewPlanner(schema, WithPlannerLogger(e.logger))
	return e
}

// Plan exposes the planner, for inspection and testing.
func (e *Executor) Plan(q *ComplexQuery) (*PlannedQuery, error) {
	return e.planner.Plan(q)
}

// Execute plans and evaluates the query. Planning failures abort the call
// before any store access and are returned as the error. Once planning
// succeeds, Execute always returns a QueryResult: store failures are
// recovered per branch and reported through the result's error list, so a
// non-empty object list can legitimately arrive alongside errors.
func (e *Executor) Execute(ctx context.Context, q *ComplexQuery) (*QueryResult, error) {
	plan, err := e.planner.Plan(q)
	if err != nil {
		return nil, err
	}
	return e.ExecutePlanned(ctx, plan), nil
}

// ExecutePlanned evaluates an already validated plan.
func (e *Executor) ExecutePlanned(ctx context.Context, plan *PlannedQuery) *QueryResult {
	result := &QueryResult{}

	set := e.evalClause(ctx, plan.Root, result)
	e.logger.Debug("clause tree evaluated", "object_type", plan.ObjectType, "matches", len(set))

	if err := ctx.Err(); err != nil {
		result.addError(wrapStoreError("query", err))
		return result
	}

	if len(set) == 0 {
		return result
	}

	objects, err := e.rel.GetObjectsByIDs(ctx, plan.ObjectType, set)
	if err != nil {
		result.addError(wrapStoreError("fetch_objects", err))
		return result
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].ID < objects[j].ID })
	result.Objects = objects
	return result
}

// evalClause recursively evaluates a planned node to an id set. Failures are
// recorded on the result and the failing branch contributes an empty set, so
// no branch ever claims matches it did not evaluate.
func (e *Executor) evalClause(ctx context.Context, c PlannedClause, result *QueryResult) IDSet {
	if err := ctx.Err(); err != nil {
		result.addError(wrapStoreError("query", err))
		return IDSet{}
	}

	switch n := c.(type) {
	case *PlannedComponentExecution:
		return e.evalComponent(ctx, n, result)
	case *PlannedGroup:
		return e.evalGroup(ctx, n, result)
	case *PlannedNot:
		return e.evalNot(ctx, n, result)
	default:
		result.addError(wrapStoreError("query", errUnknownPlannedClause(c)))
		return IDSet{}
	}
}

// evalComponent runs a leaf's steps in order against a running candidate
// set. The set starts unconstrained (nil); each store call replaces it with
// a subset. An empty set short-circuits the remaining steps of this leaf
// only. A leaf with zero steps is the type's full extent.
func (e *Executor) evalComponent(ctx context.Context, exec *PlannedComponentExecution, result *QueryResult) IDSet {
	if len(exec.Steps) == 0 {
		extent, err := e.rel.AllIDs(ctx, exec.ObjectType)
		if err != nil {
			result.addError(wrapStoreError("all_ids", err))
			return IDSet{}
		}
		return extent
	}

	var running IDSet
	for i := range exec.Steps {
		step := &exec.Steps[i]

		var (
			next IDSet
			err  error
		)
		switch step.Kind {
		case StepRelationalFilter:
			next, err = e.rel.FilterIDs(ctx, exec.ObjectType, step.Filters, running)
		case StepEmbeddingSearch:
			next, err = e.vec.SearchIDs(ctx, step.Embedding, running)
		case StepGraphTraversal:
			next, err = e.graph.FilterByTraversal(ctx, exec.ObjectType, step.Traversal, running)
		default:
			err = errUnknownStepKind(step.Kind)
		}
		if err != nil {
			result.addError(wrapStoreError(string(step.Kind), err))
			return IDSet{}
		}
		if next == nil {
			next = IDSet{}
		}
		running = next

		e.logger.Debug("step evaluated",
			"object_type", exec.ObjectType, "step", step.Kind, "candidates", len(running))

		if len(running) == 0 {
			break
		}
	}
	return running
}

// evalGroup evaluates every child concurrently, then combines: AND is the
// intersection of all child sets, OR the union. All children run to
// completion before the parent combines; one child's failure never cancels
// its siblings.
func (e *Executor) evalGroup(ctx context.Context, group *PlannedGroup, result *QueryResult) IDSet {
	sets := make([]IDSet, len(group.Children))
	results := make([]*QueryResult, len(group.Children))

	var wg sync.WaitGroup
	for i, child := range group.Children {
		wg.Add(1)
		go func(i int, child PlannedClause) {
			defer wg.Done()
			childResult := &QueryResult{}
			sets[i] = e.evalClause(ctx, child, childResult)
			results[i] = childResult
		}(i, child)
	}
	wg.Wait()

	for _, childResult := range results {
		result.Errors = append(result.Errors, childResult.Errors...)
	}

	combined := sets[0]
	for _, s := range sets[1:] {
		if group.Operator == LogicalOr {
			combined = combined.Union(s)
		} else {
			combined = combined.Intersect(s)
		}
	}
	if combined == nil {
		combined = IDSet{}
	}
	return combined
}

// evalNot evaluates the child, then returns the type's full extent minus the
// child's set. A failed child contributes an empty set, so the complement
// degrades to the full extent with the failure still recorded; callers learn
// about it through the error list even though the result looks populated.
func (e *Executor) evalNot(ctx context.Context, not *PlannedNot, result *QueryResult) IDSet {
	childSet := e.evalClause(ctx, not.Child, result)

	extent, err := e.rel.AllIDs(ctx, not.ObjectType)
	if err != nil {
		result.addError(wrapStoreError("all_ids", err))
		return IDSet{}
	}
	return extent.Diff(childSet)
}
