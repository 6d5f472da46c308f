package validate

import (
	"fmt"
	"strings"

	"mythforge/internal/config"
	"mythforge/internal/store"
)

// Entity checks an input against the kind spec before it touches storage.
// All failures wrap store.ErrValidation.
func Entity(schema *config.Schema, e store.EntityInput) error {
	kind, ok := schema.KindByName(e.Kind)
	if !ok {
		return fmt.Errorf("%w: unknown kind %q", store.ErrValidation, e.Kind)
	}
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("%w: title is required", store.ErrValidation)
	}
	if !config.IsValidStatus(e.Status) {
		return fmt.Errorf("%w: invalid status %q", store.ErrValidation, e.Status)
	}

	for _, field := range kind.Required {
		if strings.EqualFold(field, "title") {
			continue
		}
		value, ok := e.Attrs[field]
		if !ok || value == nil {
			return fmt.Errorf("%w: missing required field %q", store.ErrValidation, field)
		}
		if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: missing required field %q", store.ErrValidation, field)
		}
	}

	for _, prop := range kind.Properties {
		value, ok := e.Attrs[prop.Name]
		if !ok || value == nil {
			continue
		}
		if err := checkProperty(prop, value); err != nil {
			return err
		}
	}

	return nil
}

func checkProperty(prop config.Property, value any) error {
	switch strings.ToLower(prop.Type) {
	case "enum":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: field %q must be a string", store.ErrValidation, prop.Name)
		}
		for _, allowed := range prop.Values {
			if allowed == s {
				return nil
			}
		}
		return fmt.Errorf("%w: field %q has invalid value %q", store.ErrValidation, prop.Name, s)
	case "number":
		n, ok := toFloat(value)
		if !ok {
			return fmt.Errorf("%w: field %q must be a number", store.ErrValidation, prop.Name)
		}
		if prop.Min != nil && n < *prop.Min {
			return fmt.Errorf("%w: field %q below minimum %g", store.ErrValidation, prop.Name, *prop.Min)
		}
		if prop.Max != nil && n > *prop.Max {
			return fmt.Errorf("%w: field %q above maximum %g", store.ErrValidation, prop.Name, *prop.Max)
		}
	}
	return nil
}

// Relationship checks endpoint kinds and the strength range. Self-reference
// and duplicate detection stay in the store, where they can be enforced
// atomically.
func Relationship(r store.RelationshipInput) error {
	if strings.TrimSpace(r.Type) == "" {
		return fmt.Errorf("%w: relationship type is required", store.ErrValidation)
	}
	if !config.IsRecognizedKind(r.SourceKind) {
		return fmt.Errorf("%w: unknown source kind %q", store.ErrValidation, r.SourceKind)
	}
	if !config.IsRecognizedKind(r.TargetKind) {
		return fmt.Errorf("%w: unknown target kind %q", store.ErrValidation, r.TargetKind)
	}
	if r.Strength < 1 || r.Strength > 10 {
		return fmt.Errorf("%w: strength must be between 1 and 10", store.ErrValidation)
	}
	return nil
}

// TagAssignment checks a tag name, category, and relevance score.
func TagAssignment(schema *config.Schema, name, category string, relevance float64) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: tag name is required", store.ErrValidation)
	}
	if category != "" && !schema.IsValidTagCategory(category) {
		return fmt.Errorf("%w: unknown tag category %q", store.ErrValidation, category)
	}
	if relevance < 0 || relevance > 1 {
		return fmt.Errorf("%w: relevance must be between 0 and 1", store.ErrValidation)
	}
	return nil
}

// NaturalKey computes the normalized natural-key string for an entity, e.g.
// "perseus and medusa|greek" for a story keyed on title+culture. Missing
// components collapse to the empty string; required-field validation catches
// those before a key is ever stored.
func NaturalKey(schema *config.Schema, kindName, title string, attrs map[string]any) string {
	parts := []string{normalize(title)}
	if kind, ok := schema.KindByName(kindName); ok {
		parts = parts[:0]
		for _, field := range kind.NaturalKey {
			if strings.EqualFold(field, "title") {
				parts = append(parts, normalize(title))
				continue
			}
			if value, ok := attrs[field]; ok && value != nil {
				parts = append(parts, normalize(fmt.Sprint(value)))
			} else {
				parts = append(parts, "")
			}
		}
	}
	return strings.Join(parts, "|")
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func toFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}
