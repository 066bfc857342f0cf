package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanNilAndEmptyQuery(t *testing.T) {
	p := NewPlanner(testCatalog())

	_, err := p.Plan(nil)
	assert.ErrorIs(t, err, ErrNilQuery)

	_, err = p.Plan(&ComplexQuery{})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestPlanSimpleComponent(t *testing.T) {
	p := NewPlanner(testCatalog())

	plan, err := p.Plan(&ComplexQuery{
		Root: &QueryComponent{
			ObjectType: "Car",
			Filters: []RelationalFilter{
				{Property: "color", Operator: OpEqual, Value: "red"},
			},
			EmbeddingSearches: []EmbeddingSearchClause{
				{Definition: "car_description", Vector: []float32{1, 0, 0}},
			},
			Traversals: []GraphTraversalClause{
				{RelationType: "LocatedIn", Direction: DirectionOutgoing, TargetType: "City"},
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Car", plan.ObjectType)

	leaf, ok := plan.Root.(*PlannedComponentExecution)
	require.True(t, ok)
	require.Len(t, leaf.Steps, 3)
	assert.Equal(t, StepRelationalFilter, leaf.Steps[0].Kind)
	assert.Equal(t, StepEmbeddingSearch, leaf.Steps[1].Kind)
	assert.Equal(t, StepGraphTraversal, leaf.Steps[2].Kind)
}

func TestPlanAppliesDefaultSearchLimit(t *testing.T) {
	p := NewPlanner(testCatalog())

	plan, err := p.Plan(&ComplexQuery{
		Root: &QueryComponent{
			ObjectType: "Car",
			EmbeddingSearches: []EmbeddingSearchClause{
				{Definition: "car_description", Vector: []float32{1, 0, 0}},
			},
		},
	})
	require.NoError(t, err)

	leaf := plan.Root.(*PlannedComponentExecution)
	require.Len(t, leaf.Steps, 1)
	assert.Equal(t, defaultSearchLimit, leaf.Steps[0].Embedding.Limit)
}

func TestPlanUnknownObjectType(t *testing.T) {
	p := NewPlanner(testCatalog())

	_, err := p.Plan(&ComplexQuery{
		Root: &QueryComponent{ObjectType: "Spaceship"},
	})

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.Len(t, schemaErr.Problems, 1)
	assert.Contains(t, schemaErr.Problems[0].Error(), "Spaceship")
}

func TestPlanCollectsAllProblems(t *testing.T) {
	p := NewPlanner(testCatalog())

	_, err := p.Plan(&ComplexQuery{
		Root: &LogicalGroup{
			Operator: LogicalAnd,
			Children: []QueryClause{
				&QueryComponent{
					ObjectType: "Car",
					Filters: []RelationalFilter{
						{Property: "mileage", Operator: OpEqual, Value: 1},
						{Property: "year", Operator: OpContains, Value: "20"},
						{Property: "color", Operator: OpEqual, Value: 7},
					},
				},
				&QueryComponent{ObjectType: "Spaceship"},
			},
		},
	})

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Len(t, schemaErr.Problems, 4)
}

func TestPlanMixedTypeGroupRejected(t *testing.T) {
	p := NewPlanner(testCatalog())

	_, err := p.Plan(&ComplexQuery{
		Root: &LogicalGroup{
			Operator: LogicalOr,
			Children: []QueryClause{
				&QueryComponent{ObjectType: "Car"},
				&QueryComponent{ObjectType: "City"},
			},
		},
	})

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Contains(t, schemaErr.Error(), "share an object type")
}

func TestPlanEmptyGroupRejected(t *testing.T) {
	p := NewPlanner(testCatalog())

	_, err := p.Plan(&ComplexQuery{
		Root: &LogicalGroup{Operator: LogicalAnd},
	})

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Contains(t, schemaErr.Error(), "no children")
}

func TestPlanNotWithoutChildRejected(t *testing.T) {
	p := NewPlanner(testCatalog())

	_, err := p.Plan(&ComplexQuery{Root: &NotClause{}})

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Contains(t, schemaErr.Error(), "no child")
}

func TestPlanFilterValidation(t *testing.T) {
	tests := []struct {
		name   string
		filter RelationalFilter
		detail string
	}{
		{
			name:   "pattern operator on integer property",
			filter: RelationalFilter{Property: "year", Operator: OpStartsWith, Value: "20"},
			detail: "not applicable",
		},
		{
			name:   "ordering operator on boolean property",
			filter: RelationalFilter{Property: "electric", Operator: OpGreater, Value: true},
			detail: "not applicable",
		},
		{
			name:   "text value on integer property",
			filter: RelationalFilter{Property: "year", Operator: OpEqual, Value: "recent"},
			detail: "expected INTEGER",
		},
		{
			name:   "fractional value on integer property",
			filter: RelationalFilter{Property: "year", Operator: OpEqual, Value: 2020.5},
			detail: "expected integer",
		},
		{
			name:   "IN with scalar value",
			filter: RelationalFilter{Property: "color", Operator: OpIn, Value: "red"},
			detail: "list of values",
		},
		{
			name:   "IN with empty list",
			filter: RelationalFilter{Property: "color", Operator: OpIn, Value: []any{}},
			detail: "at least one",
		},
		{
			name:   "unknown operator",
			filter: RelationalFilter{Property: "color", Operator: "~=", Value: "red"},
			detail: "unknown operator",
		},
	}

	p := NewPlanner(testCatalog())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Plan(&ComplexQuery{
				Root: &QueryComponent{ObjectType: "Car", Filters: []RelationalFilter{tt.filter}},
			})
			var schemaErr *SchemaError
			require.ErrorAs(t, err, &schemaErr)
			assert.Contains(t, schemaErr.Error(), tt.detail)
		})
	}
}

func TestPlanOrderingOnTextAllowed(t *testing.T) {
	p := NewPlanner(testCatalog())

	_, err := p.Plan(&ComplexQuery{
		Root: &QueryComponent{
			ObjectType: "Car",
			Filters: []RelationalFilter{
				{Property: "color", Operator: OpGreater, Value: "blue"},
			},
		},
	})
	assert.NoError(t, err)
}

func TestPlanEmbeddingSearchValidation(t *testing.T) {
	p := NewPlanner(testCatalog())

	tests := []struct {
		name   string
		search EmbeddingSearchClause
		detail string
	}{
		{
			name:   "unknown definition",
			search: EmbeddingSearchClause{Definition: "nope", Vector: []float32{1, 0, 0}},
			detail: "unknown embedding definition",
		},
		{
			name:   "no vector and no text",
			search: EmbeddingSearchClause{Definition: "car_description"},
			detail: "query vector or text",
		},
		{
			name:   "dimension mismatch",
			search: EmbeddingSearchClause{Definition: "car_description", Vector: []float32{1, 0}},
			detail: "dimensions",
		},
		{
			name:   "negative limit",
			search: EmbeddingSearchClause{Definition: "car_description", Vector: []float32{1, 0, 0}, Limit: -1},
			detail: "negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Plan(&ComplexQuery{
				Root: &QueryComponent{
					ObjectType:        "Car",
					EmbeddingSearches: []EmbeddingSearchClause{tt.search},
				},
			})
			var schemaErr *SchemaError
			require.ErrorAs(t, err, &schemaErr)
			assert.Contains(t, schemaErr.Error(), tt.detail)
		})
	}
}

func TestPlanEmbeddingDefinitionTypeMismatch(t *testing.T) {
	p := NewPlanner(testCatalog())

	_, err := p.Plan(&ComplexQuery{
		Root: &QueryComponent{
			ObjectType: "City",
			EmbeddingSearches: []EmbeddingSearchClause{
				{Definition: "car_description", Vector: []float32{1, 0, 0}},
			},
		},
	})

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Contains(t, schemaErr.Error(), `targets object type "Car"`)
}

func TestPlanTraversalValidation(t *testing.T) {
	p := NewPlanner(testCatalog())

	tests := []struct {
		name       string
		objectType string
		traversal  GraphTraversalClause
		detail     string
	}{
		{
			name:       "unknown relation type",
			objectType: "Car",
			traversal:  GraphTraversalClause{RelationType: "Owns", Direction: DirectionOutgoing, TargetType: "City"},
			detail:     "unknown relation type",
		},
		{
			name:       "unknown direction",
			objectType: "Car",
			traversal:  GraphTraversalClause{RelationType: "LocatedIn", Direction: "sideways", TargetType: "City"},
			detail:     "unknown traversal direction",
		},
		{
			name:       "unknown target type",
			objectType: "Car",
			traversal:  GraphTraversalClause{RelationType: "LocatedIn", Direction: DirectionOutgoing, TargetType: "Country"},
			detail:     "unknown target object type",
		},
		{
			name:       "source type not allowed",
			objectType: "City",
			traversal:  GraphTraversalClause{RelationType: "LocatedIn", Direction: DirectionOutgoing, TargetType: "City"},
			detail:     "does not allow source",
		},
		{
			name:       "target filter on unknown property",
			objectType: "Car",
			traversal: GraphTraversalClause{
				RelationType: "LocatedIn", Direction: DirectionOutgoing, TargetType: "City",
				TargetFilters: []RelationalFilter{
					{Property: "climate", Operator: OpEqual, Value: "mild"},
				},
			},
			detail: "unknown property",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Plan(&ComplexQuery{
				Root: &QueryComponent{
					ObjectType: tt.objectType,
					Traversals: []GraphTraversalClause{tt.traversal},
				},
			})
			var schemaErr *SchemaError
			require.ErrorAs(t, err, &schemaErr)
			assert.Contains(t, schemaErr.Error(), tt.detail)
		})
	}
}

func TestPlanIncomingTraversalSwapsEndpoints(t *testing.T) {
	p := NewPlanner(testCatalog())

	// Cities receive LocatedIn edges from cars, so the incoming traversal
	// from City to Car is schema-valid.
	_, err := p.Plan(&ComplexQuery{
		Root: &QueryComponent{
			ObjectType: "City",
			Traversals: []GraphTraversalClause{
				{RelationType: "LocatedIn", Direction: DirectionIncoming, TargetType: "Car"},
			},
		},
	})
	assert.NoError(t, err)
}

func TestPlanLegacyComponentsDesugarToAnd(t *testing.T) {
	p := NewPlanner(testCatalog())

	plan, err := p.Plan(&ComplexQuery{
		Components: []*QueryComponent{
			{ObjectType: "Car", Filters: []RelationalFilter{{Property: "color", Operator: OpEqual, Value: "red"}}},
			{ObjectType: "Car", Filters: []RelationalFilter{{Property: "year", Operator: OpGreaterEq, Value: 2020}}},
		},
	})
	require.NoError(t, err)

	group, ok := plan.Root.(*PlannedGroup)
	require.True(t, ok)
	assert.Equal(t, LogicalAnd, group.Operator)
	assert.Len(t, group.Children, 2)
}

func TestSchemaErrorUnwrap(t *testing.T) {
	inner := &ValidationError{Property: "year", Detail: "bad"}
	err := &SchemaError{Problems: []error{inner}}

	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.Equal(t, "year", verr.Property)
}
