package sqlite

import (
	"context"
	"errors"
	"testing"

	"mythforge/internal/store"
)

func TestImportEntity(t *testing.T) {
	ctx := context.Background()

	t.Run("creates entity with tags and relationships", func(t *testing.T) {
		c := newTestClient(t)

		mustCreate(t, c, characterInput("Athena", "Greek"))

		result, err := c.ImportEntity(ctx, store.ImportInput{
			Entity: store.EntityInput{
				Kind: "character", Title: "Perseus",
				Attrs: map[string]any{"pantheon": "Greek", "character_type": "hero"},
				Body:  "The slayer of Medusa.",
			},
			Tags: []store.ImportTag{
				{Name: "medusa", Category: "general", Relevance: 0.9},
				{Name: "hero-journey", Category: "general"},
			},
			Relationships: []store.ImportRelationship{
				{TargetTitle: "Athena", TargetKind: "character", Type: "mentorship", Strength: 8},
			},
		})
		if err != nil {
			t.Fatalf("importing: %v", err)
		}
		if !result.Created {
			t.Fatalf("expected created")
		}
		if result.Tags != 2 || result.Edges != 1 {
			t.Fatalf("unexpected result: %#v", result)
		}

		tags, err := c.TagsFor(ctx, result.EntityID, "character")
		if err != nil {
			t.Fatalf("tags for: %v", err)
		}
		if len(tags) != 2 {
			t.Fatalf("expected 2 tags, got %#v", tags)
		}
		// Zero relevance defaults to 1.0.
		for _, tag := range tags {
			if tag.Name == "hero-journey" && tag.Relevance != 1.0 {
				t.Fatalf("expected default relevance, got %#v", tag)
			}
		}

		rels, err := c.RelationshipsOf(ctx, result.EntityID, "character")
		if err != nil {
			t.Fatalf("relationships: %v", err)
		}
		if len(rels) != 1 || rels[0].TargetName != "Athena" {
			t.Fatalf("unexpected relationships: %#v", rels)
		}

		if _, err := c.GetIndexEntry(ctx, result.EntityID, "character"); err != nil {
			t.Fatalf("expected index entry, got %v", err)
		}
	})

	t.Run("re-import updates in place", func(t *testing.T) {
		c := newTestClient(t)

		input := store.ImportInput{
			Entity: store.EntityInput{
				Kind: "character", Title: "Perseus",
				Attrs: map[string]any{"pantheon": "Greek"},
			},
			Tags: []store.ImportTag{{Name: "medusa", Category: "general", Relevance: 0.9}},
		}

		first, err := c.ImportEntity(ctx, input)
		if err != nil {
			t.Fatalf("first import: %v", err)
		}

		input.Entity.Body = "Updated body."
		second, err := c.ImportEntity(ctx, input)
		if err != nil {
			t.Fatalf("second import: %v", err)
		}
		if second.Created {
			t.Fatalf("expected update, not create")
		}
		if second.EntityID != first.EntityID {
			t.Fatalf("expected same entity id, got %d and %d", first.EntityID, second.EntityID)
		}

		// Usage count stays exact across re-imports.
		count, err := c.UsageCount(ctx, "medusa")
		if err != nil {
			t.Fatalf("usage count: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected usage count 1 after re-import, got %d", count)
		}

		entity, err := c.GetEntity(ctx, first.EntityID, "character")
		if err != nil {
			t.Fatalf("getting entity: %v", err)
		}
		if entity.Body != "Updated body." {
			t.Fatalf("expected body updated, got %q", entity.Body)
		}
	})

	t.Run("re-import replaces declared tag set", func(t *testing.T) {
		c := newTestClient(t)

		input := store.ImportInput{
			Entity: store.EntityInput{Kind: "character", Title: "Perseus", Attrs: map[string]any{"pantheon": "Greek"}},
			Tags:   []store.ImportTag{{Name: "medusa", Category: "general"}},
		}
		if _, err := c.ImportEntity(ctx, input); err != nil {
			t.Fatalf("first import: %v", err)
		}

		input.Tags = []store.ImportTag{{Name: "gorgon", Category: "general"}}
		result, err := c.ImportEntity(ctx, input)
		if err != nil {
			t.Fatalf("second import: %v", err)
		}

		tags, err := c.TagsFor(ctx, result.EntityID, "character")
		if err != nil {
			t.Fatalf("tags for: %v", err)
		}
		if len(tags) != 1 || tags[0].Name != "gorgon" {
			t.Fatalf("expected replaced tag set, got %#v", tags)
		}

		count, err := c.UsageCount(ctx, "medusa")
		if err != nil {
			t.Fatalf("usage count: %v", err)
		}
		if count != 0 {
			t.Fatalf("expected old tag count 0, got %d", count)
		}
	})

	t.Run("missing relationship target aborts atomically", func(t *testing.T) {
		c := newTestClient(t)

		_, err := c.ImportEntity(ctx, store.ImportInput{
			Entity: store.EntityInput{Kind: "character", Title: "Perseus", Attrs: map[string]any{"pantheon": "Greek"}},
			Tags:   []store.ImportTag{{Name: "medusa", Category: "general"}},
			Relationships: []store.ImportRelationship{
				{TargetTitle: "Nobody", Type: "mentorship", Strength: 1},
			},
		})
		if !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}

		// Nothing from the failed import is visible.
		if _, err := c.FindEntity(ctx, "character", "Perseus"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected no entity, got %v", err)
		}
		if _, err := c.UsageCount(ctx, "medusa"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected no tag, got %v", err)
		}
	})

	t.Run("duplicate declared edges collapse", func(t *testing.T) {
		c := newTestClient(t)

		mustCreate(t, c, characterInput("Athena", "Greek"))

		result, err := c.ImportEntity(ctx, store.ImportInput{
			Entity: store.EntityInput{Kind: "character", Title: "Perseus", Attrs: map[string]any{"pantheon": "Greek"}},
			Relationships: []store.ImportRelationship{
				{TargetTitle: "Athena", TargetKind: "character", Type: "mentorship", Strength: 8},
				{TargetTitle: "Athena", TargetKind: "character", Type: "mentorship", Strength: 3},
			},
		})
		if err != nil {
			t.Fatalf("importing: %v", err)
		}
		if result.Edges != 1 {
			t.Fatalf("expected duplicate edges collapsed, got %d", result.Edges)
		}
	})

	t.Run("invalid entity rejected", func(t *testing.T) {
		c := newTestClient(t)

		_, err := c.ImportEntity(ctx, store.ImportInput{
			Entity: store.EntityInput{Kind: "story", Title: "No Culture"},
		})
		if !errors.Is(err, store.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})
}
