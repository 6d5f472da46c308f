package store

import (
	"strings"
	"time"
)

const publishedBoost = 1.5

// BuildIndexEntry recomputes the denormalized search document for an entity
// from source-of-truth fields. Both backends call this inside the same
// transaction as the mutation that triggered the refresh, so the index can
// never drift from the entity and tag rows it was derived from.
func BuildIndexEntry(e *Entity, tags []TagAssignment, now time.Time) IndexEntry {
	tagNames := make([]string, 0, len(tags))
	var themes []string
	for _, tag := range tags {
		tagNames = append(tagNames, tag.Name)
		if strings.EqualFold(tag.Category, "theme") {
			themes = append(themes, tag.Name)
		}
	}

	parts := []string{e.Title}
	if summary := attrString(e.Attrs, "summary"); summary != "" {
		parts = append(parts, summary)
	}
	if description := attrString(e.Attrs, "description"); description != "" {
		parts = append(parts, description)
	}
	if e.Body != "" {
		parts = append(parts, e.Body)
	}
	parts = append(parts, tagNames...)

	facets := map[string]any{
		"kind":   e.Kind,
		"status": e.Status,
	}
	if culture := attrString(e.Attrs, "culture"); culture != "" {
		facets["culture"] = culture
	}
	if pantheon := attrString(e.Attrs, "pantheon"); pantheon != "" {
		facets["pantheon"] = pantheon
	}
	if len(themes) > 0 {
		facets["themes"] = themes
	}

	boost := 1.0
	if e.Status == "published" {
		boost = publishedBoost
	}

	return IndexEntry{
		ContentID:      e.ID,
		ContentKind:    e.Kind,
		Title:          e.Title,
		SearchableText: strings.Join(parts, " "),
		TagText:        strings.Join(tagNames, " "),
		Facets:         facets,
		BoostScore:     boost,
		UpdatedAt:      now,
	}
}

func attrString(attrs map[string]any, key string) string {
	if attrs == nil {
		return ""
	}
	if s, ok := attrs[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
