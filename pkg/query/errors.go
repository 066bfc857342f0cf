package query

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for top-level query failures.
var (
	// ErrEmptyQuery is returned when a query has no root clause and no
	// legacy components.
	ErrEmptyQuery = errors.New("query has no clauses")

	// ErrNilQuery is returned when a nil query is planned or executed.
	ErrNilQuery = errors.New("query is nil")
)

// SchemaError aggregates every validation problem found while planning a
// query. Planning either succeeds completely or fails with one SchemaError;
// no store is touched either way.
type SchemaError struct {
	Problems []error
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	if len(e.Problems) == 1 {
		return fmt.Sprintf("schema error: %v", e.Problems[0])
	}
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return fmt.Sprintf("schema error (%d problems): %s", len(e.Problems), strings.Join(msgs, "; "))
}

// Unwrap exposes the individual problems to errors.Is and errors.As.
func (e *SchemaError) Unwrap() []error {
	return e.Problems
}

// ValidationError reports a filter value or operator that is incompatible
// with the declared data type of its property. It is collected alongside
// schema problems during planning.
type ValidationError struct {
	Property string
	Detail   string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid filter on property %q: %s", e.Property, e.Detail)
}

// StoreError wraps a collaborator failure with the operation that caused it.
// Store errors are never propagated out of execution; they are recorded in
// the result's error list and the affected branch is treated as empty.
type StoreError struct {
	Op  string // operation name, e.g. "relational_filter"
	Err error  // underlying error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("store: %v", e.Err)
	}
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target.
func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// wrapStoreError wraps an error with operation context.
func wrapStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

func errUnknownPlannedClause(c PlannedClause) error {
	return fmt.Errorf("unknown planned clause type %T", c)
}

func errUnknownStepKind(kind StepKind) error {
	return fmt.Errorf("unknown step kind %q", kind)
}
