package parser

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is one parsed content file: YAML frontmatter plus narrative body.
type Document struct {
	Frontmatter   map[string]any
	Title         string
	Kind          string
	Status        string
	Tags          []TagRef
	Relationships []RelationshipRef
	Body          string
	SourceFile    string
}

type TagRef struct {
	Name      string
	Category  string
	Relevance float64
}

// RelationshipRef names its target by title because content files are
// written before target ids exist.
type RelationshipRef struct {
	Target   string
	Kind     string
	Type     string
	Subtype  string
	Strength int
}

var (
	ErrNoFrontmatter = errors.New("no frontmatter found")
	ErrInvalidYAML   = errors.New("invalid YAML in frontmatter")
	ErrMissingTitle  = errors.New("frontmatter missing required 'title' field")
	ErrMissingKind   = errors.New("frontmatter missing required 'kind' field")
)

func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	doc.SourceFile = path
	return doc, nil
}

func Parse(content []byte) (*Document, error) {
	trimmed := bytes.TrimLeft(content, "\ufeff\n\r\t ")
	if !bytes.HasPrefix(trimmed, []byte("---\n")) {
		return nil, ErrNoFrontmatter
	}

	rest := trimmed[len("---\n"):]
	end := bytes.Index(rest, []byte("---\n"))
	bodyStart := end + len("---\n")
	if end == -1 {
		// The closing delimiter may sit on the file's last line without a
		// trailing newline.
		if !bytes.HasSuffix(rest, []byte("\n---")) {
			return nil, ErrNoFrontmatter
		}
		end = len(rest) - len("---")
		bodyStart = len(rest)
	}

	yamlBytes := rest[:end]
	body := strings.TrimSpace(string(rest[bodyStart:]))

	var frontmatter map[string]any
	if err := yaml.Unmarshal(yamlBytes, &frontmatter); err != nil {
		return nil, ErrInvalidYAML
	}

	title, ok := frontmatter["title"].(string)
	if !ok || strings.TrimSpace(title) == "" {
		return nil, ErrMissingTitle
	}

	kind := stringField(frontmatter, "kind")
	if kind == "" {
		// Older content files use "type".
		kind = stringField(frontmatter, "type")
	}
	if kind == "" {
		return nil, ErrMissingKind
	}

	tags, err := parseTags(frontmatter["tags"])
	if err != nil {
		return nil, err
	}

	relationships, err := parseRelationships(frontmatter["relationships"])
	if err != nil {
		return nil, err
	}

	return &Document{
		Frontmatter:   frontmatter,
		Title:         title,
		Kind:          strings.ToLower(kind),
		Status:        stringField(frontmatter, "status"),
		Tags:          tags,
		Relationships: relationships,
		Body:          body,
	}, nil
}

func parseTags(value any) ([]TagRef, error) {
	if value == nil {
		return nil, nil
	}
	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		return []TagRef{{Name: v, Relevance: 1.0}}, nil
	case []any:
		tags := make([]TagRef, 0, len(v))
		for i, item := range v {
			switch entry := item.(type) {
			case string:
				if strings.TrimSpace(entry) == "" {
					continue
				}
				tags = append(tags, TagRef{Name: entry, Relevance: 1.0})
			case map[string]any:
				name := stringField(entry, "name")
				if name == "" {
					return nil, fmt.Errorf("tag %d missing name", i)
				}
				relevance := 1.0
				if raw, ok := entry["relevance"]; ok {
					n, ok := numberField(raw)
					if !ok {
						return nil, fmt.Errorf("tag %d relevance must be a number", i)
					}
					relevance = n
				}
				tags = append(tags, TagRef{
					Name:      name,
					Category:  stringField(entry, "category"),
					Relevance: relevance,
				})
			default:
				return nil, fmt.Errorf("tags must be strings or maps")
			}
		}
		if len(tags) == 0 {
			return nil, nil
		}
		return tags, nil
	default:
		return nil, fmt.Errorf("tags must be string or list")
	}
}

func parseRelationships(value any) ([]RelationshipRef, error) {
	if value == nil {
		return nil, nil
	}

	var items []any
	switch v := value.(type) {
	case []any:
		items = v
	case map[string]any:
		items = []any{v}
	default:
		return nil, fmt.Errorf("relationships must be a list")
	}

	relationships := make([]RelationshipRef, 0, len(items))
	for i, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("relationship %d must be a map", i)
		}
		target := stringField(entry, "target")
		relType := stringField(entry, "type")
		if target == "" || relType == "" {
			return nil, fmt.Errorf("relationship %d missing target or type", i)
		}
		strength := 1
		if raw, ok := entry["strength"]; ok {
			n, ok := numberField(raw)
			if !ok {
				return nil, fmt.Errorf("relationship %d strength must be a number", i)
			}
			strength = int(n)
		}
		relationships = append(relationships, RelationshipRef{
			Target:   target,
			Kind:     strings.ToLower(stringField(entry, "kind")),
			Type:     strings.ToLower(relType),
			Subtype:  stringField(entry, "subtype"),
			Strength: strength,
		})
	}

	return relationships, nil
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func numberField(value any) (float64, bool) {
	switch n := value.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
