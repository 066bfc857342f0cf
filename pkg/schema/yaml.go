package schema

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the YAML document format for declaring a schema in one file:
//
//	object_types:
//	  - name: Car
//	    properties:
//	      - {name: color, data_type: TEXT, indexed: true}
//	relation_types:
//	  - name: LocatedIn
//	    source_types: [Car]
//	    target_types: [City]
//	embeddings:
//	  - name: car_description
//	    object_type: Car
//	    source_property: description
//	    model: all-MiniLM-L6-v2
//	    dimensions: 384
type File struct {
	ObjectTypes   []*ObjectTypeDefinition   `yaml:"object_types"`
	RelationTypes []*RelationTypeDefinition `yaml:"relation_types"`
	Embeddings    []*EmbeddingDefinition    `yaml:"embeddings"`
}

// Parse reads a schema file from r.
func Parse(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse schema file: %w", err)
	}
	return &f, nil
}

// ParseFile reads a schema file from disk.
func ParseFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schema file: %w", err)
	}
	defer fh.Close()
	return Parse(fh)
}

// Apply registers every definition in the file into the catalog. Object types
// first, then relation types and embeddings, so forward references within one
// file resolve. Definitions that already exist are left untouched.
func (f *File) Apply(c *Catalog) error {
	for _, def := range f.ObjectTypes {
		if err := c.CreateObjectType(def); err != nil && !isExists(err) {
			return err
		}
	}
	for _, def := range f.RelationTypes {
		if err := c.CreateRelationType(def); err != nil && !isExists(err) {
			return err
		}
	}
	for _, def := range f.Embeddings {
		if err := c.CreateEmbeddingDefinition(def); err != nil && !isExists(err) {
			return err
		}
	}
	return nil
}

func isExists(err error) bool {
	return errors.Is(err, ErrExists)
}
