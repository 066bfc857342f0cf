// Package schema defines the object, relation and embedding definitions that
// describe what the stores hold, and the catalog that manages them.
package schema

import (
	"fmt"
	"strings"
)

// DataType is the declared type of an object property.
type DataType string

const (
	TypeText     DataType = "TEXT"
	TypeInteger  DataType = "INTEGER"
	TypeFloat    DataType = "FLOAT"
	TypeBoolean  DataType = "BOOLEAN"
	TypeDatetime DataType = "DATETIME"
	TypeBlob     DataType = "BLOB"
	TypeJSON     DataType = "JSON"
	TypeUUID     DataType = "UUID"
)

// Valid reports whether dt is one of the known data types.
func (dt DataType) Valid() bool {
	switch dt {
	case TypeText, TypeInteger, TypeFloat, TypeBoolean, TypeDatetime, TypeBlob, TypeJSON, TypeUUID:
		return true
	}
	return false
}

// Ordered reports whether values of this type have a defined ordering, making
// them eligible for >, >=, < and <= comparisons. TEXT orders by collation.
func (dt DataType) Ordered() bool {
	switch dt {
	case TypeInteger, TypeFloat, TypeDatetime, TypeText:
		return true
	}
	return false
}

// TextLike reports whether pattern operators (CONTAINS, LIKE, STARTSWITH,
// ENDSWITH) apply to this type.
func (dt DataType) TextLike() bool {
	return dt == TypeText
}

// PropertyDefinition describes a single property of an object type.
type PropertyDefinition struct {
	Name       string   `json:"name" yaml:"name"`
	DataType   DataType `json:"data_type" yaml:"data_type"`
	PrimaryKey bool     `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
	Nullable   bool     `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Unique     bool     `json:"unique,omitempty" yaml:"unique,omitempty"`
	Indexed    bool     `json:"indexed,omitempty" yaml:"indexed,omitempty"`
}

// ObjectTypeDefinition names an object type and its ordered property list.
type ObjectTypeDefinition struct {
	Name       string               `json:"name" yaml:"name"`
	Properties []PropertyDefinition `json:"properties" yaml:"properties"`
}

// Property returns the definition of the named property, or nil.
func (o *ObjectTypeDefinition) Property(name string) *PropertyDefinition {
	for i := range o.Properties {
		if o.Properties[i].Name == name {
			return &o.Properties[i]
		}
	}
	return nil
}

// Validate checks the definition for internal consistency.
func (o *ObjectTypeDefinition) Validate() error {
	if strings.TrimSpace(o.Name) == "" {
		return fmt.Errorf("object type name cannot be empty")
	}
	seen := make(map[string]bool, len(o.Properties))
	for _, p := range o.Properties {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("object type %q: property name cannot be empty", o.Name)
		}
		if !p.DataType.Valid() {
			return fmt.Errorf("object type %q: property %q has unknown data type %q", o.Name, p.Name, p.DataType)
		}
		if seen[p.Name] {
			return fmt.Errorf("object type %q: duplicate property %q", o.Name, p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// RelationTypeDefinition names a relation type, the object types allowed at
// its source and target ends, and the relation's own properties.
type RelationTypeDefinition struct {
	Name        string               `json:"name" yaml:"name"`
	SourceTypes []string             `json:"source_types" yaml:"source_types"`
	TargetTypes []string             `json:"target_types" yaml:"target_types"`
	Properties  []PropertyDefinition `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// AllowsSource reports whether objectType may appear on the source side.
// An empty allow list admits any type.
func (r *RelationTypeDefinition) AllowsSource(objectType string) bool {
	return allowsType(r.SourceTypes, objectType)
}

// AllowsTarget reports whether objectType may appear on the target side.
func (r *RelationTypeDefinition) AllowsTarget(objectType string) bool {
	return allowsType(r.TargetTypes, objectType)
}

func allowsType(allowed []string, objectType string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, t := range allowed {
		if t == objectType {
			return true
		}
	}
	return false
}

// Validate checks the definition for internal consistency.
func (r *RelationTypeDefinition) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("relation type name cannot be empty")
	}
	for _, p := range r.Properties {
		if !p.DataType.Valid() {
			return fmt.Errorf("relation type %q: property %q has unknown data type %q", r.Name, p.Name, p.DataType)
		}
	}
	return nil
}

// EmbeddingDefinition describes one embedding space over an object type:
// which property the vectors were generated from, with which model, and at
// what dimensionality.
type EmbeddingDefinition struct {
	Name           string `json:"name" yaml:"name"`
	ObjectType     string `json:"object_type" yaml:"object_type"`
	SourceProperty string `json:"source_property" yaml:"source_property"`
	Model          string `json:"model" yaml:"model"`
	Dimensions     int    `json:"dimensions" yaml:"dimensions"`
}

// Validate checks the definition for internal consistency.
func (e *EmbeddingDefinition) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("embedding definition name cannot be empty")
	}
	if strings.TrimSpace(e.ObjectType) == "" {
		return fmt.Errorf("embedding definition %q: object type cannot be empty", e.Name)
	}
	if e.Dimensions <= 0 {
		return fmt.Errorf("embedding definition %q: dimensions must be positive", e.Name)
	}
	return nil
}
