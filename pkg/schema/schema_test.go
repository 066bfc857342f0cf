package schema

import (
	"errors"
	"strings"
	"testing"
)

func carType() *ObjectTypeDefinition {
	return &ObjectTypeDefinition{
		Name: "Car",
		Properties: []PropertyDefinition{
			{Name: "color", DataType: TypeText},
			{Name: "year", DataType: TypeInteger},
		},
	}
}

func TestCatalogObjectTypeLifecycle(t *testing.T) {
	c := NewCatalog()

	if err := c.CreateObjectType(carType()); err != nil {
		t.Fatalf("CreateObjectType failed: %v", err)
	}
	if err := c.CreateObjectType(carType()); !errors.Is(err, ErrExists) {
		t.Errorf("duplicate create error = %v, want ErrExists", err)
	}

	def, err := c.GetObjectType("Car")
	if err != nil {
		t.Fatalf("GetObjectType failed: %v", err)
	}
	if def.Property("color") == nil {
		t.Error("Property(color) = nil, want definition")
	}
	if def.Property("missing") != nil {
		t.Error("Property(missing) != nil")
	}

	if err := c.DeleteObjectType("Car"); err != nil {
		t.Fatalf("DeleteObjectType failed: %v", err)
	}
	if _, err := c.GetObjectType("Car"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after delete error = %v, want ErrNotFound", err)
	}
}

func TestCatalogValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		def     *ObjectTypeDefinition
		wantMsg string
	}{
		{
			name:    "empty name",
			def:     &ObjectTypeDefinition{Name: "  "},
			wantMsg: "name cannot be empty",
		},
		{
			name: "unknown data type",
			def: &ObjectTypeDefinition{
				Name:       "Thing",
				Properties: []PropertyDefinition{{Name: "x", DataType: "VARCHAR"}},
			},
			wantMsg: "unknown data type",
		},
		{
			name: "duplicate property",
			def: &ObjectTypeDefinition{
				Name: "Thing",
				Properties: []PropertyDefinition{
					{Name: "x", DataType: TypeText},
					{Name: "x", DataType: TypeInteger},
				},
			},
			wantMsg: "duplicate property",
		},
	}

	c := NewCatalog()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.CreateObjectType(tt.def)
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %v, want containing %q", err, tt.wantMsg)
			}
		})
	}
}

func TestCatalogRelationReferences(t *testing.T) {
	c := NewCatalog()
	if err := c.CreateObjectType(carType()); err != nil {
		t.Fatal(err)
	}

	err := c.CreateRelationType(&RelationTypeDefinition{
		Name:        "LocatedIn",
		SourceTypes: []string{"Car"},
		TargetTypes: []string{"City"},
	})
	if err == nil || !strings.Contains(err.Error(), "unknown object type") {
		t.Fatalf("error = %v, want unknown object type", err)
	}

	if err := c.CreateObjectType(&ObjectTypeDefinition{Name: "City"}); err != nil {
		t.Fatal(err)
	}
	if err := c.CreateRelationType(&RelationTypeDefinition{
		Name:        "LocatedIn",
		SourceTypes: []string{"Car"},
		TargetTypes: []string{"City"},
	}); err != nil {
		t.Fatalf("CreateRelationType failed: %v", err)
	}

	// Car is the relation's only allowed source, so it cannot be deleted.
	if err := c.DeleteObjectType("Car"); err == nil {
		t.Error("DeleteObjectType(Car) succeeded, want referenced error")
	}

	if err := c.DeleteRelationType("LocatedIn"); err != nil {
		t.Fatal(err)
	}
	if err := c.DeleteObjectType("Car"); err != nil {
		t.Errorf("DeleteObjectType after relation removal failed: %v", err)
	}
}

func TestCatalogEmbeddingReferences(t *testing.T) {
	c := NewCatalog()
	if err := c.CreateObjectType(carType()); err != nil {
		t.Fatal(err)
	}

	err := c.CreateEmbeddingDefinition(&EmbeddingDefinition{
		Name:           "car_desc",
		ObjectType:     "Car",
		SourceProperty: "description",
		Dimensions:     3,
	})
	if err == nil || !strings.Contains(err.Error(), "unknown property") {
		t.Fatalf("error = %v, want unknown property", err)
	}

	if err := c.CreateEmbeddingDefinition(&EmbeddingDefinition{
		Name:       "car_desc",
		ObjectType: "Car",
		Dimensions: 3,
	}); err != nil {
		t.Fatalf("CreateEmbeddingDefinition failed: %v", err)
	}

	if err := c.DeleteObjectType("Car"); err == nil {
		t.Error("DeleteObjectType(Car) succeeded, want referenced error")
	}
}

func TestRelationTypeAllowLists(t *testing.T) {
	r := &RelationTypeDefinition{
		Name:        "Owns",
		SourceTypes: []string{"Person"},
	}
	if !r.AllowsSource("Person") {
		t.Error("AllowsSource(Person) = false")
	}
	if r.AllowsSource("Robot") {
		t.Error("AllowsSource(Robot) = true")
	}
	// An empty target list admits any type.
	if !r.AllowsTarget("Anything") {
		t.Error("AllowsTarget with empty list = false")
	}
}

func TestDataTypePredicates(t *testing.T) {
	tests := []struct {
		dt       DataType
		ordered  bool
		textLike bool
	}{
		{TypeText, true, true},
		{TypeInteger, true, false},
		{TypeFloat, true, false},
		{TypeDatetime, true, false},
		{TypeBoolean, false, false},
		{TypeBlob, false, false},
		{TypeJSON, false, false},
		{TypeUUID, false, false},
	}
	for _, tt := range tests {
		if got := tt.dt.Ordered(); got != tt.ordered {
			t.Errorf("%s.Ordered() = %v, want %v", tt.dt, got, tt.ordered)
		}
		if got := tt.dt.TextLike(); got != tt.textLike {
			t.Errorf("%s.TextLike() = %v, want %v", tt.dt, got, tt.textLike)
		}
	}
	if DataType("VARCHAR").Valid() {
		t.Error("VARCHAR reported valid")
	}
}

func TestParseAndApplyYAML(t *testing.T) {
	doc := `
object_types:
  - name: Car
    properties:
      - {name: color, data_type: TEXT}
      - {name: description, data_type: TEXT}
  - name: City
    properties:
      - {name: name, data_type: TEXT}
relation_types:
  - name: LocatedIn
    source_types: [Car]
    target_types: [City]
embeddings:
  - name: car_description
    object_type: Car
    source_property: description
    model: all-MiniLM-L6-v2
    dimensions: 384
`
	f, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(f.ObjectTypes) != 2 || len(f.RelationTypes) != 1 || len(f.Embeddings) != 1 {
		t.Fatalf("parsed %d/%d/%d definitions, want 2/1/1",
			len(f.ObjectTypes), len(f.RelationTypes), len(f.Embeddings))
	}

	c := NewCatalog()
	if err := f.Apply(c); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if _, err := c.GetEmbeddingDefinition("car_description"); err != nil {
		t.Errorf("embedding not applied: %v", err)
	}

	// Applying the same file twice is a no-op for existing names.
	if err := f.Apply(c); err != nil {
		t.Errorf("second Apply failed: %v", err)
	}
}
