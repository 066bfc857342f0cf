package graphstore

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/triadstore/triad/pkg/query"
	"github.com/triadstore/triad/pkg/relstore"
)

func newTestStores(t *testing.T) (*Store, *relstore.Store) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	rel := relstore.New(db)
	if err := rel.Init(ctx); err != nil {
		t.Fatalf("failed to init relational store: %v", err)
	}
	g := New(db)
	if err := g.Init(ctx); err != nil {
		t.Fatalf("failed to init graph store: %v", err)
	}
	return g, rel
}

// seedGraph builds three cars located in two cities: c1 and c2 in Berlin
// (population 3.7M), c3 in Tulle (population 15k).
func seedGraph(t *testing.T, g *Store, rel *relstore.Store) {
	t.Helper()
	ctx := context.Background()

	objects := []*query.Object{
		{ID: "c1", ObjectType: "Car", Properties: map[string]any{"color": "red"}},
		{ID: "c2", ObjectType: "Car", Properties: map[string]any{"color": "blue"}},
		{ID: "c3", ObjectType: "Car", Properties: map[string]any{"color": "red"}},
		{ID: "berlin", ObjectType: "City", Properties: map[string]any{"name": "Berlin", "population": 3700000}},
		{ID: "tulle", ObjectType: "City", Properties: map[string]any{"name": "Tulle", "population": 15000}},
	}
	for _, obj := range objects {
		if err := rel.UpsertObject(ctx, obj); err != nil {
			t.Fatalf("failed to seed %s: %v", obj.ID, err)
		}
	}

	edges := []*Relation{
		{RelationType: "LocatedIn", FromType: "Car", FromID: "c1", ToType: "City", ToID: "berlin"},
		{RelationType: "LocatedIn", FromType: "Car", FromID: "c2", ToType: "City", ToID: "berlin"},
		{RelationType: "LocatedIn", FromType: "Car", FromID: "c3", ToType: "City", ToID: "tulle"},
	}
	for _, edge := range edges {
		if err := g.AddRelation(ctx, edge); err != nil {
			t.Fatalf("failed to add edge: %v", err)
		}
	}
}

func TestAddRelationAssignsID(t *testing.T) {
	g, rel := newTestStores(t)
	seedGraph(t, g, rel)

	edge := &Relation{RelationType: "LocatedIn", FromType: "Car", FromID: "c1", ToType: "City", ToID: "tulle"}
	if err := g.AddRelation(context.Background(), edge); err != nil {
		t.Fatalf("AddRelation failed: %v", err)
	}
	if edge.ID == "" {
		t.Error("relation id not assigned")
	}
	if edge.CreatedAt.IsZero() {
		t.Error("CreatedAt not stamped")
	}
}

func TestAddRelationValidation(t *testing.T) {
	g, _ := newTestStores(t)
	ctx := context.Background()

	if err := g.AddRelation(ctx, nil); err == nil {
		t.Error("nil relation accepted")
	}
	if err := g.AddRelation(ctx, &Relation{FromType: "Car", FromID: "c1", ToType: "City", ToID: "x"}); err == nil {
		t.Error("missing relation type accepted")
	}
	if err := g.AddRelation(ctx, &Relation{RelationType: "LocatedIn", FromID: "c1"}); err == nil {
		t.Error("missing endpoints accepted")
	}
}

func TestAddRelationIdempotentPerEdge(t *testing.T) {
	g, rel := newTestStores(t)
	seedGraph(t, g, rel)
	ctx := context.Background()

	// Re-adding the same edge must not duplicate it.
	edge := &Relation{RelationType: "LocatedIn", FromType: "Car", FromID: "c1", ToType: "City", ToID: "berlin"}
	if err := g.AddRelation(ctx, edge); err != nil {
		t.Fatalf("AddRelation failed: %v", err)
	}

	relations, err := g.Relations(ctx, "LocatedIn", query.DirectionOutgoing, "Car", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(relations) != 1 {
		t.Errorf("got %d edges, want 1", len(relations))
	}
}

func TestRelationsByDirection(t *testing.T) {
	g, rel := newTestStores(t)
	seedGraph(t, g, rel)
	ctx := context.Background()

	outgoing, err := g.Relations(ctx, "LocatedIn", query.DirectionOutgoing, "Car", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(outgoing) != 1 || outgoing[0].ToID != "berlin" {
		t.Errorf("outgoing = %+v", outgoing)
	}

	incoming, err := g.Relations(ctx, "LocatedIn", query.DirectionIncoming, "City", "berlin")
	if err != nil {
		t.Fatal(err)
	}
	if len(incoming) != 2 {
		t.Errorf("got %d incoming edges, want 2", len(incoming))
	}
}

func TestFilterByTraversalOutgoing(t *testing.T) {
	g, rel := newTestStores(t)
	seedGraph(t, g, rel)

	ids, err := g.FilterByTraversal(context.Background(), "Car", &query.GraphTraversalClause{
		RelationType: "LocatedIn",
		Direction:    query.DirectionOutgoing,
		TargetType:   "City",
		TargetFilters: []query.RelationalFilter{
			{Property: "population", Operator: query.OpGreater, Value: 1000000},
		},
	}, nil)
	if err != nil {
		t.Fatalf("FilterByTraversal failed: %v", err)
	}
	if got := ids.Sorted(); !reflect.DeepEqual(got, []string{"c1", "c2"}) {
		t.Errorf("FilterByTraversal = %v, want [c1 c2]", got)
	}
}

func TestFilterByTraversalIncoming(t *testing.T) {
	g, rel := newTestStores(t)
	seedGraph(t, g, rel)

	// Which cities have a red car in them?
	ids, err := g.FilterByTraversal(context.Background(), "City", &query.GraphTraversalClause{
		RelationType: "LocatedIn",
		Direction:    query.DirectionIncoming,
		TargetType:   "Car",
		TargetFilters: []query.RelationalFilter{
			{Property: "color", Operator: query.OpEqual, Value: "red"},
		},
	}, nil)
	if err != nil {
		t.Fatalf("FilterByTraversal failed: %v", err)
	}
	if got := ids.Sorted(); !reflect.DeepEqual(got, []string{"berlin", "tulle"}) {
		t.Errorf("FilterByTraversal = %v, want [berlin tulle]", got)
	}
}

func TestFilterByTraversalRestrictTo(t *testing.T) {
	g, rel := newTestStores(t)
	seedGraph(t, g, rel)
	ctx := context.Background()

	traversal := &query.GraphTraversalClause{
		RelationType: "LocatedIn",
		Direction:    query.DirectionOutgoing,
		TargetType:   "City",
	}

	ids, err := g.FilterByTraversal(ctx, "Car", traversal, query.NewIDSet("c2", "c3"))
	if err != nil {
		t.Fatalf("FilterByTraversal failed: %v", err)
	}
	if got := ids.Sorted(); !reflect.DeepEqual(got, []string{"c2", "c3"}) {
		t.Errorf("FilterByTraversal = %v, want [c2 c3]", got)
	}

	ids, err = g.FilterByTraversal(ctx, "Car", traversal, query.IDSet{})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("FilterByTraversal with empty restrict = %v, want empty", ids)
	}
}

func TestFilterByTraversalNoMatches(t *testing.T) {
	g, rel := newTestStores(t)
	seedGraph(t, g, rel)

	ids, err := g.FilterByTraversal(context.Background(), "Car", &query.GraphTraversalClause{
		RelationType: "ParkedAt",
		Direction:    query.DirectionOutgoing,
		TargetType:   "City",
	}, nil)
	if err != nil {
		t.Fatalf("FilterByTraversal failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("FilterByTraversal = %v, want empty", ids)
	}
}

func TestDeleteRelation(t *testing.T) {
	g, rel := newTestStores(t)
	seedGraph(t, g, rel)
	ctx := context.Background()

	relations, err := g.Relations(ctx, "LocatedIn", query.DirectionOutgoing, "Car", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if err := g.DeleteRelation(ctx, relations[0].ID); err != nil {
		t.Fatalf("DeleteRelation failed: %v", err)
	}
	if err := g.DeleteRelation(ctx, relations[0].ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete error = %v, want ErrNotFound", err)
	}
}

func TestDeleteObjectRelations(t *testing.T) {
	g, rel := newTestStores(t)
	seedGraph(t, g, rel)
	ctx := context.Background()

	if err := g.DeleteObjectRelations(ctx, "City", "berlin"); err != nil {
		t.Fatalf("DeleteObjectRelations failed: %v", err)
	}

	ids, err := g.FilterByTraversal(ctx, "Car", &query.GraphTraversalClause{
		RelationType: "LocatedIn",
		Direction:    query.DirectionOutgoing,
		TargetType:   "City",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids.Sorted(); !reflect.DeepEqual(got, []string{"c3"}) {
		t.Errorf("remaining sources = %v, want [c3]", got)
	}
}
