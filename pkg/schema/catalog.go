package schema

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Catalog errors.
var (
	// ErrNotFound is returned when a definition does not exist.
	ErrNotFound = errors.New("definition not found")

	// ErrExists is returned when creating a definition whose name is taken.
	ErrExists = errors.New("definition already exists")
)

// Catalog is a thread-safe registry of schema definitions. It is the schema
// snapshot the query planner validates against.
type Catalog struct {
	mu          sync.RWMutex
	objectTypes map[string]*ObjectTypeDefinition
	relations   map[string]*RelationTypeDefinition
	embeddings  map[string]*EmbeddingDefinition
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		objectTypes: make(map[string]*ObjectTypeDefinition),
		relations:   make(map[string]*RelationTypeDefinition),
		embeddings:  make(map[string]*EmbeddingDefinition),
	}
}

// CreateObjectType registers a new object type definition.
func (c *Catalog) CreateObjectType(def *ObjectTypeDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.objectTypes[def.Name]; ok {
		return fmt.Errorf("object type %q: %w", def.Name, ErrExists)
	}
	c.objectTypes[def.Name] = def
	return nil
}

// GetObjectType returns the named object type definition.
func (c *Catalog) GetObjectType(name string) (*ObjectTypeDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.objectTypes[name]
	if !ok {
		return nil, fmt.Errorf("object type %q: %w", name, ErrNotFound)
	}
	return def, nil
}

// ListObjectTypes returns all object type definitions sorted by name.
func (c *Catalog) ListObjectTypes() []*ObjectTypeDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	defs := make([]*ObjectTypeDefinition, 0, len(c.objectTypes))
	for _, def := range c.objectTypes {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// DeleteObjectType removes an object type definition. Embedding and relation
// definitions referencing it must be deleted first.
func (c *Catalog) DeleteObjectType(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.objectTypes[name]; !ok {
		return fmt.Errorf("object type %q: %w", name, ErrNotFound)
	}
	for _, e := range c.embeddings {
		if e.ObjectType == name {
			return fmt.Errorf("object type %q is referenced by embedding definition %q", name, e.Name)
		}
	}
	for _, r := range c.relations {
		if !allowsAnyOther(r.SourceTypes, name) || !allowsAnyOther(r.TargetTypes, name) {
			return fmt.Errorf("object type %q is referenced by relation type %q", name, r.Name)
		}
	}
	delete(c.objectTypes, name)
	return nil
}

// allowsAnyOther reports whether the allow list remains meaningful without
// the given type. An empty list allows everything and is never blocking.
func allowsAnyOther(allowed []string, name string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, t := range allowed {
		if t != name {
			return true
		}
	}
	return false
}

// CreateRelationType registers a new relation type definition. Its source and
// target type lists must reference known object types.
func (c *Catalog) CreateRelationType(def *RelationTypeDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.relations[def.Name]; ok {
		return fmt.Errorf("relation type %q: %w", def.Name, ErrExists)
	}
	for _, t := range append(append([]string{}, def.SourceTypes...), def.TargetTypes...) {
		if _, ok := c.objectTypes[t]; !ok {
			return fmt.Errorf("relation type %q references unknown object type %q", def.Name, t)
		}
	}
	c.relations[def.Name] = def
	return nil
}

// GetRelationType returns the named relation type definition.
func (c *Catalog) GetRelationType(name string) (*RelationTypeDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.relations[name]
	if !ok {
		return nil, fmt.Errorf("relation type %q: %w", name, ErrNotFound)
	}
	return def, nil
}

// ListRelationTypes returns all relation type definitions sorted by name.
func (c *Catalog) ListRelationTypes() []*RelationTypeDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	defs := make([]*RelationTypeDefinition, 0, len(c.relations))
	for _, def := range c.relations {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// DeleteRelationType removes a relation type definition.
func (c *Catalog) DeleteRelationType(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.relations[name]; !ok {
		return fmt.Errorf("relation type %q: %w", name, ErrNotFound)
	}
	delete(c.relations, name)
	return nil
}

// CreateEmbeddingDefinition registers a new embedding definition. Its object
// type and source property must exist.
func (c *Catalog) CreateEmbeddingDefinition(def *EmbeddingDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.embeddings[def.Name]; ok {
		return fmt.Errorf("embedding definition %q: %w", def.Name, ErrExists)
	}
	ot, ok := c.objectTypes[def.ObjectType]
	if !ok {
		return fmt.Errorf("embedding definition %q references unknown object type %q", def.Name, def.ObjectType)
	}
	if def.SourceProperty != "" && ot.Property(def.SourceProperty) == nil {
		return fmt.Errorf("embedding definition %q references unknown property %q on %q",
			def.Name, def.SourceProperty, def.ObjectType)
	}
	c.embeddings[def.Name] = def
	return nil
}

// GetEmbeddingDefinition returns the named embedding definition.
func (c *Catalog) GetEmbeddingDefinition(name string) (*EmbeddingDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.embeddings[name]
	if !ok {
		return nil, fmt.Errorf("embedding definition %q: %w", name, ErrNotFound)
	}
	return def, nil
}

// ListEmbeddingDefinitions returns all embedding definitions sorted by name.
func (c *Catalog) ListEmbeddingDefinitions() []*EmbeddingDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	defs := make([]*EmbeddingDefinition, 0, len(c.embeddings))
	for _, def := range c.embeddings {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// DeleteEmbeddingDefinition removes an embedding definition.
func (c *Catalog) DeleteEmbeddingDefinition(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.embeddings[name]; !ok {
		return fmt.Errorf("embedding definition %q: %w", name, ErrNotFound)
	}
	delete(c.embeddings, name)
	return nil
}
