package query

import (
	"fmt"
	"reflect"
	"time"

	"github.com/triadstore/triad/pkg/schema"
)

// Operator is a relational filter comparison operator.
type Operator string

const (
	OpEqual      Operator = "=="
	OpNotEqual   Operator = "!="
	OpGreater    Operator = ">"
	OpGreaterEq  Operator = ">="
	OpLess       Operator = "<"
	OpLessEq     Operator = "<="
	OpContains   Operator = "CONTAINS"
	OpLike       Operator = "LIKE"
	OpStartsWith Operator = "STARTSWITH"
	OpEndsWith   Operator = "ENDSWITH"
	OpIn         Operator = "IN"
)

// Valid reports whether op is a known operator.
func (op Operator) Valid() bool {
	switch op {
	case OpEqual, OpNotEqual, OpGreater, OpGreaterEq, OpLess, OpLessEq,
		OpContains, OpLike, OpStartsWith, OpEndsWith, OpIn:
		return true
	}
	return false
}

// Ordering reports whether op compares by order.
func (op Operator) Ordering() bool {
	switch op {
	case OpGreater, OpGreaterEq, OpLess, OpLessEq:
		return true
	}
	return false
}

// Pattern reports whether op matches by text pattern.
func (op Operator) Pattern() bool {
	switch op {
	case OpContains, OpLike, OpStartsWith, OpEndsWith:
		return true
	}
	return false
}

// CompatibleWith reports whether op may be applied to a property of the given
// data type. Equality, inequality and IN work on every type; ordering
// operators need an ordered type; pattern operators need a text-like type.
func (op Operator) CompatibleWith(dt schema.DataType) bool {
	switch {
	case op.Ordering():
		return dt.Ordered()
	case op.Pattern():
		return dt.TextLike()
	default:
		return true
	}
}

// ValidateValue checks that value fits the property's declared data type
// under the given operator. IN expects a slice of element values; every
// other operator expects a single value.
func ValidateValue(property string, dt schema.DataType, op Operator, value any) *ValidationError {
	if op == OpIn {
		rv := reflect.ValueOf(value)
		if value == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
			return &ValidationError{Property: property, Detail: "IN requires a list of values"}
		}
		if rv.Len() == 0 {
			return &ValidationError{Property: property, Detail: "IN requires at least one value"}
		}
		for i := 0; i < rv.Len(); i++ {
			if err := checkScalar(property, dt, rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		return nil
	}
	return checkScalar(property, dt, value)
}

// checkScalar verifies a single value against a data type. JSON-decoded
// input arrives with numbers as float64, so integer properties accept whole
// float64 values too.
func checkScalar(property string, dt schema.DataType, value any) *ValidationError {
	if value == nil {
		return &ValidationError{Property: property, Detail: "value cannot be nil"}
	}
	switch dt {
	case schema.TypeText, schema.TypeUUID:
		if _, ok := value.(string); !ok {
			return typeMismatch(property, dt, value)
		}
	case schema.TypeInteger:
		switch v := value.(type) {
		case int, int32, int64:
		case float64:
			if v != float64(int64(v)) {
				return &ValidationError{Property: property, Detail: fmt.Sprintf("expected integer, got %v", v)}
			}
		default:
			return typeMismatch(property, dt, value)
		}
	case schema.TypeFloat:
		switch value.(type) {
		case float32, float64, int, int32, int64:
		default:
			return typeMismatch(property, dt, value)
		}
	case schema.TypeBoolean:
		if _, ok := value.(bool); !ok {
			return typeMismatch(property, dt, value)
		}
	case schema.TypeDatetime:
		switch v := value.(type) {
		case time.Time:
		case string:
			if _, err := time.Parse(time.RFC3339, v); err != nil {
				return &ValidationError{Property: property, Detail: fmt.Sprintf("expected RFC 3339 datetime, got %q", v)}
			}
		default:
			return typeMismatch(property, dt, value)
		}
	case schema.TypeBlob:
		switch value.(type) {
		case []byte, string:
		default:
			return typeMismatch(property, dt, value)
		}
	case schema.TypeJSON:
		// Any JSON-representable value is acceptable.
	}
	return nil
}

func typeMismatch(property string, dt schema.DataType, value any) *ValidationError {
	return &ValidationError{
		Property: property,
		Detail:   fmt.Sprintf("expected %s value, got %T", dt, value),
	}
}
