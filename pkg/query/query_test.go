package query

import (
	"context"
	"sync"

	"github.com/triadstore/triad/pkg/schema"
)

// testCatalog builds the schema fixture shared across planner and executor
// tests: cars related to cities, with one embedding space over descriptions.
func testCatalog() *schema.Catalog {
	c := schema.NewCatalog()
	mustCreate := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	mustCreate(c.CreateObjectType(&schema.ObjectTypeDefinition{
		Name: "Car",
		Properties: []schema.PropertyDefinition{
			{Name: "color", DataType: schema.TypeText},
			{Name: "year", DataType: schema.TypeInteger},
			{Name: "price", DataType: schema.TypeFloat},
			{Name: "description", DataType: schema.TypeText},
			{Name: "electric", DataType: schema.TypeBoolean},
		},
	}))
	mustCreate(c.CreateObjectType(&schema.ObjectTypeDefinition{
		Name: "City",
		Properties: []schema.PropertyDefinition{
			{Name: "name", DataType: schema.TypeText},
			{Name: "population", DataType: schema.TypeInteger},
		},
	}))
	mustCreate(c.CreateRelationType(&schema.RelationTypeDefinition{
		Name:        "LocatedIn",
		SourceTypes: []string{"Car"},
		TargetTypes: []string{"City"},
	}))
	mustCreate(c.CreateEmbeddingDefinition(&schema.EmbeddingDefinition{
		Name:       "car_description",
		ObjectType: "Car",
		Dimensions: 3,
	}))
	return c
}

// fakeRel is a scripted relational store. The extent map holds every id per
// object type; filterFn, when set, scripts FilterIDs responses before the
// restrict-to bound is applied.
type fakeRel struct {
	mu          sync.Mutex
	extent      map[string]IDSet
	filterFn    func(objectType string, filters []RelationalFilter) (IDSet, error)
	filterCalls int
	allIDsCalls int
	fetchCalls  int
}

func (f *fakeRel) FilterIDs(ctx context.Context, objectType string, filters []RelationalFilter, restrictTo IDSet) (IDSet, error) {
	f.mu.Lock()
	f.filterCalls++
	f.mu.Unlock()

	var out IDSet
	if f.filterFn != nil {
		var err error
		out, err = f.filterFn(objectType, filters)
		if err != nil {
			return nil, err
		}
	} else {
		out = f.extent[objectType]
	}
	if restrictTo != nil {
		out = out.Intersect(restrictTo)
	}
	if out == nil {
		out = IDSet{}
	}
	return out, nil
}

func (f *fakeRel) AllIDs(ctx context.Context, objectType string) (IDSet, error) {
	f.mu.Lock()
	f.allIDsCalls++
	f.mu.Unlock()
	out := IDSet{}
	for id := range f.extent[objectType] {
		out.Add(id)
	}
	return out, nil
}

func (f *fakeRel) GetObjectsByIDs(ctx context.Context, objectType string, ids IDSet) ([]*Object, error) {
	f.mu.Lock()
	f.fetchCalls++
	f.mu.Unlock()
	objects := make([]*Object, 0, len(ids))
	for _, id := range ids.Sorted() {
		objects = append(objects, &Object{ID: id, ObjectType: objectType})
	}
	return objects, nil
}

// fakeVec scripts SearchIDs responses.
type fakeVec struct {
	mu          sync.Mutex
	searchFn    func(search *EmbeddingSearchClause, restrictTo IDSet) (IDSet, error)
	searchCalls int
}

func (f *fakeVec) SearchIDs(ctx context.Context, search *EmbeddingSearchClause, restrictTo IDSet) (IDSet, error) {
	f.mu.Lock()
	f.searchCalls++
	f.mu.Unlock()
	if f.searchFn == nil {
		return IDSet{}, nil
	}
	return f.searchFn(search, restrictTo)
}

// fakeGraph scripts FilterByTraversal responses.
type fakeGraph struct {
	mu            sync.Mutex
	traverseFn    func(sourceType string, traversal *GraphTraversalClause, restrictTo IDSet) (IDSet, error)
	traverseCalls int
}

func (f *fakeGraph) FilterByTraversal(ctx context.Context, sourceType string, traversal *GraphTraversalClause, restrictTo IDSet) (IDSet, error) {
	f.mu.Lock()
	f.traverseCalls++
	f.mu.Unlock()
	if f.traverseFn == nil {
		return IDSet{}, nil
	}
	return f.traverseFn(sourceType, traversal, restrictTo)
}
