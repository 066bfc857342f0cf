package query

import "time"

// Object is a fully hydrated object instance returned by a query. Weight is
// an application-assigned importance in [0, 10]; it is data carried through
// from the store, not a relevance score.
type Object struct {
	ID         string         `json:"id"`
	ObjectType string         `json:"object_type"`
	Weight     float64        `json:"weight"`
	UpsertedAt time.Time      `json:"upserted_at"`
	Properties map[string]any `json:"properties,omitempty"`
}

// QueryResult is the fully materialized output of an execution: the matching
// objects plus every error recovered along the way. A non-empty object list
// with a non-empty error list is a valid partial-success outcome; callers
// must inspect Errors either way.
type QueryResult struct {
	Objects []*Object `json:"object_instances"`
	Errors  []string  `json:"errors"`
}

// addError records a recovered execution error.
func (r *QueryResult) addError(err error) {
	if err != nil {
		r.Errors = append(r.Errors, err.Error())
	}
}
