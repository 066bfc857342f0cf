package relstore

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/triadstore/triad/pkg/query"
)

// BuildWhere compiles a predicate list into an ANDed SQL WHERE fragment over
// the objects table's properties column, returning the fragment and its bind
// parameters. An empty filter list yields an empty fragment.
func BuildWhere(filters []query.RelationalFilter) (string, []any, error) {
	return BuildWhereOn(filters, "")
}

// BuildWhereOn is BuildWhere with a table alias, for joined queries (the
// graph store filters traversal targets through the same table).
func BuildWhereOn(filters []query.RelationalFilter, alias string) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	col := "properties"
	if alias != "" {
		col = alias + ".properties"
	}

	clauses := make([]string, 0, len(filters))
	params := make([]any, 0, len(filters))
	for _, f := range filters {
		clause, clauseParams, err := buildPredicate(col, f)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, clause)
		params = append(params, clauseParams...)
	}
	return strings.Join(clauses, " AND "), params, nil
}

// buildPredicate compiles one predicate. Property values live in a JSON
// column, so comparisons go through json_extract; numeric comparands are
// CAST to REAL so JSON numbers order numerically rather than textually.
func buildPredicate(col string, f query.RelationalFilter) (string, []any, error) {
	extract := fmt.Sprintf("json_extract(%s, '$.%s')", col, f.Property)

	switch f.Operator {
	case query.OpEqual:
		return extract + " = ?", []any{bindValue(f.Value)}, nil
	case query.OpNotEqual:
		return extract + " != ?", []any{bindValue(f.Value)}, nil

	case query.OpGreater, query.OpGreaterEq, query.OpLess, query.OpLessEq:
		op := map[query.Operator]string{
			query.OpGreater:   ">",
			query.OpGreaterEq: ">=",
			query.OpLess:      "<",
			query.OpLessEq:    "<=",
		}[f.Operator]
		if isNumeric(f.Value) {
			return fmt.Sprintf("CAST(%s AS REAL) %s ?", extract, op), []any{bindValue(f.Value)}, nil
		}
		return fmt.Sprintf("%s %s ?", extract, op), []any{bindValue(f.Value)}, nil

	case query.OpContains:
		return extract + " LIKE ?", []any{"%" + likeEscape(f.Value) + "%"}, nil
	case query.OpStartsWith:
		return extract + " LIKE ?", []any{likeEscape(f.Value) + "%"}, nil
	case query.OpEndsWith:
		return extract + " LIKE ?", []any{"%" + likeEscape(f.Value)}, nil
	case query.OpLike:
		return extract + " LIKE ?", []any{fmt.Sprintf("%v", f.Value)}, nil

	case query.OpIn:
		rv := reflect.ValueOf(f.Value)
		if f.Value == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
			return "", nil, fmt.Errorf("property %q: IN requires a list of values", f.Property)
		}
		placeholders := make([]string, rv.Len())
		params := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			placeholders[i] = "?"
			params[i] = bindValue(rv.Index(i).Interface())
		}
		return fmt.Sprintf("%s IN (%s)", extract, strings.Join(placeholders, ",")), params, nil

	default:
		return "", nil, fmt.Errorf("property %q: unknown operator %q", f.Property, f.Operator)
	}
}

// bindValue normalizes Go values to forms SQLite compares correctly against
// json_extract output: booleans become JSON's 0/1, times become RFC 3339
// strings.
func bindValue(v any) any {
	switch val := v.(type) {
	case bool:
		if val {
			return 1
		}
		return 0
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	default:
		return v
	}
}

func isNumeric(v any) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return true
	}
	return false
}

// likeEscape renders a value for use inside a LIKE pattern. SQLite treats %
// and _ as wildcards; literal occurrences in the value keep their wildcard
// meaning here, matching the permissive behavior of CONTAINS.
func likeEscape(v any) string {
	return fmt.Sprintf("%v", v)
}
