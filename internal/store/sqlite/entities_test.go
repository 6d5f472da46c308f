package sqlite

import (
	"context"
	"errors"
	"testing"

	"mythforge/internal/store"
)

func TestCreateEntity(t *testing.T) {
	ctx := context.Background()

	t.Run("create and fetch", func(t *testing.T) {
		c := newTestClient(t)

		id := mustCreate(t, c, storyInput("Perseus and Medusa", "Greek"))

		entity, err := c.GetEntity(ctx, id, "story")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if entity.Title != "Perseus and Medusa" {
			t.Fatalf("unexpected title: %q", entity.Title)
		}
		if entity.Status != "draft" {
			t.Fatalf("expected default draft status, got %q", entity.Status)
		}
		if entity.Attrs["culture"] != "Greek" {
			t.Fatalf("unexpected attrs: %#v", entity.Attrs)
		}
	})

	t.Run("duplicate natural key rejected", func(t *testing.T) {
		c := newTestClient(t)

		mustCreate(t, c, storyInput("Perseus and Medusa", "Greek"))
		_, err := c.CreateEntity(ctx, storyInput("PERSEUS AND MEDUSA", "greek"))
		if !errors.Is(err, store.ErrDuplicateKey) {
			t.Fatalf("expected ErrDuplicateKey, got %v", err)
		}
	})

	t.Run("same title different culture allowed", func(t *testing.T) {
		c := newTestClient(t)

		mustCreate(t, c, storyInput("The Flood", "Greek"))
		if _, err := c.CreateEntity(ctx, storyInput("The Flood", "Norse")); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("invalid input rejected", func(t *testing.T) {
		c := newTestClient(t)

		_, err := c.CreateEntity(ctx, store.EntityInput{Kind: "story", Title: "No Culture"})
		if !errors.Is(err, store.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("index entry created", func(t *testing.T) {
		c := newTestClient(t)

		id := mustCreate(t, c, characterInput("Perseus", "Greek"))
		entry, err := c.GetIndexEntry(ctx, id, "character")
		if err != nil {
			t.Fatalf("expected index entry, got %v", err)
		}
		if entry.Title != "Perseus" {
			t.Fatalf("unexpected index title: %q", entry.Title)
		}
	})
}

func TestGetEntity_NotFound(t *testing.T) {
	c := newTestClient(t)

	_, err := c.GetEntity(context.Background(), 999, "character")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateEntity(t *testing.T) {
	ctx := context.Background()

	t.Run("patch fields", func(t *testing.T) {
		c := newTestClient(t)

		id := mustCreate(t, c, characterInput("Perseus", "Greek"))

		status := "published"
		body := "The slayer of Medusa."
		err := c.UpdateEntity(ctx, id, "character", store.EntityPatch{
			Status: &status,
			Body:   &body,
			Attrs:  map[string]any{"character_type": "hero"},
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		entity, err := c.GetEntity(ctx, id, "character")
		if err != nil {
			t.Fatalf("getting entity: %v", err)
		}
		if entity.Status != "published" {
			t.Fatalf("unexpected status: %q", entity.Status)
		}
		if entity.Body != body {
			t.Fatalf("unexpected body: %q", entity.Body)
		}
		if entity.Attrs["character_type"] != "hero" {
			t.Fatalf("unexpected attrs: %#v", entity.Attrs)
		}
		if entity.Attrs["pantheon"] != "Greek" {
			t.Fatalf("expected pantheon preserved, got %#v", entity.Attrs)
		}
	})

	t.Run("nil attr value deletes key", func(t *testing.T) {
		c := newTestClient(t)

		id := mustCreate(t, c, store.EntityInput{
			Kind: "character", Title: "Perseus",
			Attrs: map[string]any{"pantheon": "Greek", "epithet": "Gorgon-slayer"},
		})

		err := c.UpdateEntity(ctx, id, "character", store.EntityPatch{
			Attrs: map[string]any{"epithet": nil},
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		entity, err := c.GetEntity(ctx, id, "character")
		if err != nil {
			t.Fatalf("getting entity: %v", err)
		}
		if _, ok := entity.Attrs["epithet"]; ok {
			t.Fatalf("expected epithet removed, got %#v", entity.Attrs)
		}
	})

	t.Run("rename onto existing natural key rejected", func(t *testing.T) {
		c := newTestClient(t)

		mustCreate(t, c, characterInput("Perseus", "Greek"))
		id := mustCreate(t, c, characterInput("Theseus", "Greek"))

		title := "Perseus"
		err := c.UpdateEntity(ctx, id, "character", store.EntityPatch{Title: &title})
		if !errors.Is(err, store.ErrDuplicateKey) {
			t.Fatalf("expected ErrDuplicateKey, got %v", err)
		}
	})

	t.Run("invalid status rejected", func(t *testing.T) {
		c := newTestClient(t)

		id := mustCreate(t, c, characterInput("Perseus", "Greek"))
		status := "deleted"
		err := c.UpdateEntity(ctx, id, "character", store.EntityPatch{Status: &status})
		if !errors.Is(err, store.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("unknown entity", func(t *testing.T) {
		c := newTestClient(t)

		status := "review"
		err := c.UpdateEntity(ctx, 999, "character", store.EntityPatch{Status: &status})
		if !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestFindEntity(t *testing.T) {
	ctx := context.Background()

	t.Run("case-insensitive title", func(t *testing.T) {
		c := newTestClient(t)

		id := mustCreate(t, c, characterInput("Perseus", "Greek"))
		entity, err := c.FindEntity(ctx, "character", "perseus")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if entity.ID != id {
			t.Fatalf("unexpected id: %d", entity.ID)
		}
	})

	t.Run("ambiguous title", func(t *testing.T) {
		c := newTestClient(t)

		mustCreate(t, c, characterInput("Hermes", "Greek"))
		mustCreate(t, c, characterInput("Hermes", "Roman"))

		if _, err := c.FindEntity(ctx, "character", "Hermes"); err == nil {
			t.Fatalf("expected ambiguity error")
		}
	})

	t.Run("not found", func(t *testing.T) {
		c := newTestClient(t)

		_, err := c.FindEntity(ctx, "character", "Nobody")
		if !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestDeleteEntity(t *testing.T) {
	ctx := context.Background()

	t.Run("cascades clean up dependents", func(t *testing.T) {
		c := newTestClient(t)

		perseus := mustCreate(t, c, characterInput("Perseus", "Greek"))
		athena := mustCreate(t, c, characterInput("Athena", "Greek"))

		if _, err := c.Link(ctx, store.RelationshipInput{
			SourceID: perseus, SourceKind: "character",
			TargetID: athena, TargetKind: "character",
			Type: "mentorship", Strength: 8,
		}); err != nil {
			t.Fatalf("linking: %v", err)
		}
		if err := c.Tag(ctx, perseus, "character", "hero-journey", "general", 1.0); err != nil {
			t.Fatalf("tagging: %v", err)
		}
		if err := c.Tag(ctx, athena, "character", "hero-journey", "general", 1.0); err != nil {
			t.Fatalf("tagging: %v", err)
		}

		if err := c.DeleteEntity(ctx, perseus, "character"); err != nil {
			t.Fatalf("deleting: %v", err)
		}

		if _, err := c.GetEntity(ctx, perseus, "character"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected entity gone, got %v", err)
		}

		rels, err := c.RelationshipsOf(ctx, athena, "character")
		if err != nil {
			t.Fatalf("listing relationships: %v", err)
		}
		if len(rels) != 0 {
			t.Fatalf("expected relationships removed, got %d", len(rels))
		}

		count, err := c.UsageCount(ctx, "hero-journey")
		if err != nil {
			t.Fatalf("usage count: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected usage count 1 after cascade, got %d", count)
		}

		if _, err := c.GetIndexEntry(ctx, perseus, "character"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected index entry gone, got %v", err)
		}
	})

	t.Run("unknown entity", func(t *testing.T) {
		c := newTestClient(t)

		if err := c.DeleteEntity(ctx, 999, "character"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestListEntities(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	perseus := mustCreate(t, c, characterInput("Perseus", "Greek"))
	mustCreate(t, c, characterInput("Athena", "Greek"))
	mustCreate(t, c, storyInput("The Flood", "Greek"))

	status := "published"
	if err := c.UpdateEntity(ctx, perseus, "character", store.EntityPatch{Status: &status}); err != nil {
		t.Fatalf("updating: %v", err)
	}
	if err := c.Tag(ctx, perseus, "character", "hero-journey", "general", 1.0); err != nil {
		t.Fatalf("tagging: %v", err)
	}

	t.Run("by kind", func(t *testing.T) {
		items, err := c.ListEntities(ctx, "character", "", "")
		if err != nil {
			t.Fatalf("listing: %v", err)
		}
		if len(items) != 2 {
			t.Fatalf("expected 2 characters, got %d", len(items))
		}
	})

	t.Run("by status", func(t *testing.T) {
		items, err := c.ListEntities(ctx, "", "published", "")
		if err != nil {
			t.Fatalf("listing: %v", err)
		}
		if len(items) != 1 || items[0].Title != "Perseus" {
			t.Fatalf("unexpected items: %#v", items)
		}
	})

	t.Run("by tag", func(t *testing.T) {
		items, err := c.ListEntities(ctx, "", "", "hero-journey")
		if err != nil {
			t.Fatalf("listing: %v", err)
		}
		if len(items) != 1 || items[0].Title != "Perseus" {
			t.Fatalf("unexpected items: %#v", items)
		}
	})

	t.Run("no filters returns all", func(t *testing.T) {
		items, err := c.ListEntities(ctx, "", "", "")
		if err != nil {
			t.Fatalf("listing: %v", err)
		}
		if len(items) != 3 {
			t.Fatalf("expected 3 entities, got %d", len(items))
		}
	})
}
