package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// EntityKinds is the closed set of content kinds the store recognises.
var EntityKinds = []string{"story", "character", "pantheon", "theme", "motif", "tag", "collection"}

// Statuses is the entity lifecycle. New entities default to draft.
var Statuses = []string{"draft", "review", "published", "archived"}

type Schema struct {
	Version           int                `yaml:"version"`
	Kinds             []KindSpec         `yaml:"kinds"`
	RelationshipTypes []RelationshipType `yaml:"relationship_types"`
	TagCategories     []string           `yaml:"tag_categories"`

	kindIndex map[string]*KindSpec
	relIndex  map[string]*RelationshipType
}

type KindSpec struct {
	Name       string     `yaml:"name"`
	NaturalKey []string   `yaml:"natural_key"`
	Required   []string   `yaml:"required"`
	Taggable   bool       `yaml:"taggable"`
	Properties []Property `yaml:"properties"`
}

type Property struct {
	Name   string   `yaml:"name"`
	Type   string   `yaml:"type"`
	Values []string `yaml:"values"`
	Min    *float64 `yaml:"min"`
	Max    *float64 `yaml:"max"`
}

type RelationshipType struct {
	Name      string `yaml:"name"`
	Inverse   string `yaml:"inverse"`
	Symmetric bool   `yaml:"symmetric"`
}

func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}

	var schema Schema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}

	if err := validateSchema(&schema); err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}

	schema.buildIndexes()
	return &schema, nil
}

// DefaultSchema returns the built-in mythology schema used by init and by
// callers that run without a schema.yaml.
func DefaultSchema() *Schema {
	schema := &Schema{
		Version: 1,
		Kinds: []KindSpec{
			{
				Name:       "story",
				NaturalKey: []string{"title", "culture"},
				Required:   []string{"title", "culture"},
				Taggable:   true,
				Properties: []Property{
					{Name: "narrative_type", Type: "enum", Values: []string{"myth", "legend", "epic", "folktale", "hymn"}},
					{Name: "rating", Type: "number", Min: floatPtr(1), Max: floatPtr(5)},
					{Name: "word_count", Type: "number", Min: floatPtr(0)},
				},
			},
			{
				Name:       "character",
				NaturalKey: []string{"title", "pantheon"},
				Required:   []string{"title"},
				Taggable:   true,
				Properties: []Property{
					{Name: "character_type", Type: "enum", Values: []string{"deity", "hero", "monster", "mortal", "spirit"}},
				},
			},
			{Name: "pantheon", NaturalKey: []string{"title"}, Required: []string{"title"}, Taggable: true},
			{Name: "theme", NaturalKey: []string{"title"}, Required: []string{"title"}},
			{Name: "motif", NaturalKey: []string{"title"}, Required: []string{"title"}},
			{Name: "tag", NaturalKey: []string{"title"}, Required: []string{"title"}},
			{Name: "collection", NaturalKey: []string{"title"}, Required: []string{"title"}},
		},
		RelationshipTypes: []RelationshipType{
			{Name: "mentorship"},
			{Name: "rivalry", Symmetric: true},
			{Name: "family", Symmetric: true},
			{Name: "member_of", Inverse: "has_member"},
			{Name: "appears_in", Inverse: "features"},
			{Name: "derived_from", Inverse: "inspired"},
			{Name: "related_to", Symmetric: true},
		},
		TagCategories: []string{"general", "content-type", "culture", "theme", "archetype"},
	}
	schema.buildIndexes()
	return schema
}

func validateSchema(s *Schema) error {
	if s.Version != 1 {
		return fmt.Errorf("unsupported version: %d", s.Version)
	}
	if len(s.Kinds) == 0 {
		return fmt.Errorf("at least one kind is required")
	}

	known := make(map[string]struct{}, len(EntityKinds))
	for _, kind := range EntityKinds {
		known[kind] = struct{}{}
	}

	seen := make(map[string]struct{})
	for i, kind := range s.Kinds {
		name := strings.ToLower(strings.TrimSpace(kind.Name))
		if name == "" {
			return fmt.Errorf("kind %d name is required", i)
		}
		if _, ok := known[name]; !ok {
			return fmt.Errorf("unknown kind: %s", kind.Name)
		}
		if _, exists := seen[name]; exists {
			return fmt.Errorf("duplicate kind: %s", kind.Name)
		}
		seen[name] = struct{}{}

		if len(kind.NaturalKey) == 0 {
			return fmt.Errorf("kind %s has no natural key", kind.Name)
		}

		propNames := make(map[string]struct{})
		for _, prop := range kind.Properties {
			propName := strings.ToLower(strings.TrimSpace(prop.Name))
			if propName == "" {
				return fmt.Errorf("kind %s has property with empty name", kind.Name)
			}
			if _, exists := propNames[propName]; exists {
				return fmt.Errorf("kind %s has duplicate property: %s", kind.Name, prop.Name)
			}
			propNames[propName] = struct{}{}
			if strings.EqualFold(prop.Type, "enum") && len(prop.Values) == 0 {
				return fmt.Errorf("kind %s property %s enum has no values", kind.Name, prop.Name)
			}
			if prop.Min != nil && prop.Max != nil && *prop.Min > *prop.Max {
				return fmt.Errorf("kind %s property %s has min greater than max", kind.Name, prop.Name)
			}
		}
	}

	relNames := make(map[string]struct{})
	for i, rel := range s.RelationshipTypes {
		name := strings.ToLower(strings.TrimSpace(rel.Name))
		if name == "" {
			return fmt.Errorf("relationship type %d name is required", i)
		}
		if _, exists := relNames[name]; exists {
			return fmt.Errorf("duplicate relationship type: %s", rel.Name)
		}
		relNames[name] = struct{}{}
	}

	return nil
}

func (s *Schema) buildIndexes() {
	s.kindIndex = make(map[string]*KindSpec)
	for i := range s.Kinds {
		kind := &s.Kinds[i]
		s.kindIndex[strings.ToLower(kind.Name)] = kind
	}
	s.relIndex = make(map[string]*RelationshipType)
	for i := range s.RelationshipTypes {
		rel := &s.RelationshipTypes[i]
		s.relIndex[strings.ToLower(rel.Name)] = rel
	}
}

func (s *Schema) KindByName(name string) (*KindSpec, bool) {
	if s == nil {
		return nil, false
	}
	kind, ok := s.kindIndex[strings.ToLower(name)]
	return kind, ok
}

func (s *Schema) RelationshipTypeByName(name string) (*RelationshipType, bool) {
	if s == nil {
		return nil, false
	}
	rel, ok := s.relIndex[strings.ToLower(name)]
	return rel, ok
}

func (s *Schema) IsValidKind(name string) bool {
	_, ok := s.KindByName(name)
	return ok
}

func (s *Schema) IsValidTagCategory(name string) bool {
	if s == nil {
		return false
	}
	if len(s.TagCategories) == 0 {
		return true
	}
	for _, category := range s.TagCategories {
		if strings.EqualFold(category, name) {
			return true
		}
	}
	return false
}

// IsRecognizedKind reports whether name is one of the closed kind set,
// independent of whether the loaded schema declares a spec for it.
func IsRecognizedKind(name string) bool {
	for _, kind := range EntityKinds {
		if strings.EqualFold(kind, name) {
			return true
		}
	}
	return false
}

func IsValidStatus(status string) bool {
	for _, s := range Statuses {
		if s == status {
			return true
		}
	}
	return false
}

func floatPtr(v float64) *float64 { return &v }
