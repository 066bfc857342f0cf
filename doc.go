// Package triad is an embedded multi-model query engine for Go. It unifies a
// relational property store, a vector similarity store and a graph relation
// store, all backed by a single SQLite file, behind one logical query
// interface.
//
// A query is a tree of clauses: leaf components (per-object-type conjunctions
// of relational filters, embedding searches and graph traversals) combined
// with AND, OR and NOT. The planner validates the tree against the schema
// catalog and produces an execution plan; the executor narrows candidate id
// sets through the three stores and combines them with set algebra.
//
// Basic usage:
//
//	db, err := triad.Open(triad.DefaultConfig("app.db"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	result, err := db.Execute(ctx, query)
//
// The engine core lives in pkg/query and depends only on the collaborator
// interfaces defined there; pkg/relstore, pkg/vecstore and pkg/graphstore are
// the bundled SQLite adapters, and pkg/schema holds the definition catalog.
package triad
