package query

import (
	"encoding/json"
	"fmt"
)

// Clause kinds used in the tagged JSON form.
const (
	kindComponent = "component"
	kindGroup     = "group"
	kindNot       = "not"
)

// clauseEnvelope is the tagged wire form of a QueryClause.
type clauseEnvelope struct {
	Kind string `json:"kind"`

	// component fields
	ObjectType        string                  `json:"object_type,omitempty"`
	Filters           []RelationalFilter      `json:"filters,omitempty"`
	EmbeddingSearches []EmbeddingSearchClause `json:"embedding_searches,omitempty"`
	Traversals        []GraphTraversalClause  `json:"traversals,omitempty"`

	// group fields
	Operator LogicalOperator   `json:"operator,omitempty"`
	Children []json.RawMessage `json:"children,omitempty"`

	// not fields
	Child json.RawMessage `json:"child,omitempty"`
}

// MarshalClause encodes a clause tree into its tagged JSON form.
func MarshalClause(c QueryClause) ([]byte, error) {
	env, err := toEnvelope(c)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

func toEnvelope(c QueryClause) (*clauseEnvelope, error) {
	switch n := c.(type) {
	case *QueryComponent:
		return &clauseEnvelope{
			Kind:              kindComponent,
			ObjectType:        n.ObjectType,
			Filters:           n.Filters,
			EmbeddingSearches: n.EmbeddingSearches,
			Traversals:        n.Traversals,
		}, nil
	case *LogicalGroup:
		children := make([]json.RawMessage, len(n.Children))
		for i, child := range n.Children {
			data, err := MarshalClause(child)
			if err != nil {
				return nil, err
			}
			children[i] = data
		}
		return &clauseEnvelope{Kind: kindGroup, Operator: n.Operator, Children: children}, nil
	case *NotClause:
		child, err := MarshalClause(n.Child)
		if err != nil {
			return nil, err
		}
		return &clauseEnvelope{Kind: kindNot, Child: child}, nil
	case nil:
		return nil, fmt.Errorf("cannot marshal nil clause")
	default:
		return nil, fmt.Errorf("unknown clause type %T", c)
	}
}

// UnmarshalClause decodes a clause tree from its tagged JSON form.
func UnmarshalClause(data []byte) (QueryClause, error) {
	var env clauseEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode clause: %w", err)
	}
	switch env.Kind {
	case kindComponent:
		return &QueryComponent{
			ObjectType:        env.ObjectType,
			Filters:           env.Filters,
			EmbeddingSearches: env.EmbeddingSearches,
			Traversals:        env.Traversals,
		}, nil
	case kindGroup:
		children := make([]QueryClause, len(env.Children))
		for i, raw := range env.Children {
			child, err := UnmarshalClause(raw)
			if err != nil {
				return nil, err
			}
			children[i] = child
		}
		return &LogicalGroup{Operator: env.Operator, Children: children}, nil
	case kindNot:
		if len(env.Child) == 0 {
			return nil, fmt.Errorf("not clause requires a child")
		}
		child, err := UnmarshalClause(env.Child)
		if err != nil {
			return nil, err
		}
		return &NotClause{Child: child}, nil
	default:
		return nil, fmt.Errorf("unknown clause kind %q", env.Kind)
	}
}

// queryEnvelope is the wire form of a ComplexQuery.
type queryEnvelope struct {
	Description string            `json:"description,omitempty"`
	Root        json.RawMessage   `json:"query_root,omitempty"`
	Components  []*QueryComponent `json:"components,omitempty"`
}

// MarshalJSON implements json.Marshaler for ComplexQuery.
func (q *ComplexQuery) MarshalJSON() ([]byte, error) {
	env := queryEnvelope{Description: q.Description, Components: q.Components}
	if q.Root != nil {
		root, err := MarshalClause(q.Root)
		if err != nil {
			return nil, err
		}
		env.Root = root
	}
	return json.Marshal(env)
}

// UnmarshalJSON implements json.Unmarshaler for ComplexQuery, accepting both
// the tree form and the deprecated flat component list.
func (q *ComplexQuery) UnmarshalJSON(data []byte) error {
	var env queryEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode query: %w", err)
	}
	q.Description = env.Description
	q.Components = env.Components
	q.Root = nil
	if len(env.Root) > 0 {
		root, err := UnmarshalClause(env.Root)
		if err != nil {
			return err
		}
		q.Root = root
	}
	return nil
}
