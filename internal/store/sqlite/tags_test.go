package sqlite

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"mythforge/internal/store"
)

func TestTag(t *testing.T) {
	ctx := context.Background()

	t.Run("tag creates and counts", func(t *testing.T) {
		c := newTestClient(t)

		perseus := mustCreate(t, c, characterInput("Perseus", "Greek"))
		if err := c.Tag(ctx, perseus, "character", "hero-journey", "general", 0.9); err != nil {
			t.Fatalf("tagging: %v", err)
		}

		count, err := c.UsageCount(ctx, "hero-journey")
		if err != nil {
			t.Fatalf("usage count: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected usage count 1, got %d", count)
		}
	})

	t.Run("retag is idempotent", func(t *testing.T) {
		c := newTestClient(t)

		perseus := mustCreate(t, c, characterInput("Perseus", "Greek"))
		if err := c.Tag(ctx, perseus, "character", "hero-journey", "general", 0.5); err != nil {
			t.Fatalf("tagging: %v", err)
		}
		if err := c.Tag(ctx, perseus, "character", "hero-journey", "general", 0.9); err != nil {
			t.Fatalf("retagging: %v", err)
		}

		count, err := c.UsageCount(ctx, "hero-journey")
		if err != nil {
			t.Fatalf("usage count: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected usage count 1 after retag, got %d", count)
		}

		tags, err := c.TagsFor(ctx, perseus, "character")
		if err != nil {
			t.Fatalf("tags for: %v", err)
		}
		if len(tags) != 1 || tags[0].Relevance != 0.9 {
			t.Fatalf("expected relevance updated to 0.9, got %#v", tags)
		}
	})

	t.Run("shared tag counts each entity once", func(t *testing.T) {
		c := newTestClient(t)

		perseus := mustCreate(t, c, characterInput("Perseus", "Greek"))
		athena := mustCreate(t, c, characterInput("Athena", "Greek"))

		if err := c.Tag(ctx, perseus, "character", "greek", "culture", 1.0); err != nil {
			t.Fatalf("tagging: %v", err)
		}
		if err := c.Tag(ctx, athena, "character", "greek", "culture", 1.0); err != nil {
			t.Fatalf("tagging: %v", err)
		}

		count, err := c.UsageCount(ctx, "greek")
		if err != nil {
			t.Fatalf("usage count: %v", err)
		}
		if count != 2 {
			t.Fatalf("expected usage count 2, got %d", count)
		}
	})

	t.Run("unknown entity rejected", func(t *testing.T) {
		c := newTestClient(t)

		err := c.Tag(ctx, 999, "character", "hero-journey", "general", 1.0)
		if !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("invalid relevance rejected", func(t *testing.T) {
		c := newTestClient(t)

		perseus := mustCreate(t, c, characterInput("Perseus", "Greek"))
		err := c.Tag(ctx, perseus, "character", "hero-journey", "general", 1.5)
		if !errors.Is(err, store.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("unknown category rejected", func(t *testing.T) {
		c := newTestClient(t)

		perseus := mustCreate(t, c, characterInput("Perseus", "Greek"))
		err := c.Tag(ctx, perseus, "character", "hero-journey", "mood", 1.0)
		if !errors.Is(err, store.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})
}

func TestUntag(t *testing.T) {
	ctx := context.Background()

	t.Run("untag decrements count", func(t *testing.T) {
		c := newTestClient(t)

		perseus := mustCreate(t, c, characterInput("Perseus", "Greek"))
		athena := mustCreate(t, c, characterInput("Athena", "Greek"))

		if err := c.Tag(ctx, perseus, "character", "greek", "culture", 1.0); err != nil {
			t.Fatalf("tagging: %v", err)
		}
		if err := c.Tag(ctx, athena, "character", "greek", "culture", 1.0); err != nil {
			t.Fatalf("tagging: %v", err)
		}

		if err := c.Untag(ctx, perseus, "character", "greek"); err != nil {
			t.Fatalf("untagging: %v", err)
		}

		count, err := c.UsageCount(ctx, "greek")
		if err != nil {
			t.Fatalf("usage count: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected usage count 1, got %d", count)
		}
	})

	t.Run("untag absent association is a no-op", func(t *testing.T) {
		c := newTestClient(t)

		perseus := mustCreate(t, c, characterInput("Perseus", "Greek"))
		if err := c.Untag(ctx, perseus, "character", "nonexistent"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("tag untag sequences keep counter exact", func(t *testing.T) {
		c := newTestClient(t)

		perseus := mustCreate(t, c, characterInput("Perseus", "Greek"))
		athena := mustCreate(t, c, characterInput("Athena", "Greek"))

		steps := []struct {
			entity int64
			untag  bool
			want   int64
		}{
			{perseus, false, 1},
			{athena, false, 2},
			{perseus, false, 2},
			{perseus, true, 1},
			{perseus, true, 1},
			{athena, true, 0},
		}
		for i, step := range steps {
			var err error
			if step.untag {
				err = c.Untag(ctx, step.entity, "character", "medusa")
			} else {
				err = c.Tag(ctx, step.entity, "character", "medusa", "general", 1.0)
			}
			if err != nil {
				t.Fatalf("step %d: %v", i, err)
			}
			count, err := c.UsageCount(ctx, "medusa")
			if err != nil {
				t.Fatalf("step %d usage count: %v", i, err)
			}
			if count != step.want {
				t.Fatalf("step %d: expected count %d, got %d", i, step.want, count)
			}
		}
	})
}

func TestUsageCount_RandomSequences(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	entities := []int64{
		mustCreate(t, c, characterInput("Perseus", "Greek")),
		mustCreate(t, c, characterInput("Athena", "Greek")),
		mustCreate(t, c, characterInput("Medusa", "Greek")),
		mustCreate(t, c, characterInput("Theseus", "Greek")),
	}
	tagNames := []string{"hero-journey", "gorgon", "bravery"}

	// The counter must track the live association set through any
	// interleaving of tag and untag, so drive it with a seeded random
	// sequence and compare against an in-memory model after every step.
	rng := rand.New(rand.NewSource(42))
	model := make(map[string]map[int64]bool, len(tagNames))
	for _, name := range tagNames {
		model[name] = make(map[int64]bool)
	}

	for i := 0; i < 300; i++ {
		entity := entities[rng.Intn(len(entities))]
		name := tagNames[rng.Intn(len(tagNames))]

		if rng.Intn(2) == 0 {
			if err := c.Tag(ctx, entity, "character", name, "general", 1.0); err != nil {
				t.Fatalf("step %d: tagging %s: %v", i, name, err)
			}
			model[name][entity] = true
		} else {
			if err := c.Untag(ctx, entity, "character", name); err != nil {
				t.Fatalf("step %d: untagging %s: %v", i, name, err)
			}
			delete(model[name], entity)
		}

		for _, check := range tagNames {
			want := int64(len(model[check]))
			count, err := c.UsageCount(ctx, check)
			if errors.Is(err, store.ErrNotFound) {
				// The tag row does not exist until the first Tag call.
				count = 0
			} else if err != nil {
				t.Fatalf("step %d: usage count %s: %v", i, check, err)
			}
			if count != want {
				t.Fatalf("step %d: tag %s: expected count %d, got %d", i, check, want, count)
			}
		}
	}
}

func TestTag_ConcurrentSharedTag(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	const workers = 8
	entities := make([]int64, workers)
	for i := range entities {
		entities[i] = mustCreate(t, c, characterInput(fmt.Sprintf("Hero %d", i), "Greek"))
	}

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for _, entity := range entities {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Tag(ctx, entity, "character", "greek", "culture", 1.0); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent tag: %v", err)
	}

	count, err := c.UsageCount(ctx, "greek")
	if err != nil {
		t.Fatalf("usage count: %v", err)
	}
	if count != workers {
		t.Fatalf("expected count %d after concurrent tags, got %d", workers, count)
	}

	// The count equals the live association set, not the number of writes.
	for _, entity := range entities {
		tags, err := c.TagsFor(ctx, entity, "character")
		if err != nil {
			t.Fatalf("tags for %d: %v", entity, err)
		}
		if len(tags) != 1 || tags[0].Name != "greek" {
			t.Fatalf("unexpected tags for %d: %#v", entity, tags)
		}
	}
}

func TestTagsFor_Order(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	perseus := mustCreate(t, c, characterInput("Perseus", "Greek"))
	if err := c.Tag(ctx, perseus, "character", "medusa", "general", 0.5); err != nil {
		t.Fatalf("tagging: %v", err)
	}
	if err := c.Tag(ctx, perseus, "character", "hero-journey", "general", 0.9); err != nil {
		t.Fatalf("tagging: %v", err)
	}
	if err := c.Tag(ctx, perseus, "character", "bravery", "general", 0.5); err != nil {
		t.Fatalf("tagging: %v", err)
	}

	tags, err := c.TagsFor(ctx, perseus, "character")
	if err != nil {
		t.Fatalf("tags for: %v", err)
	}
	if len(tags) != 3 {
		t.Fatalf("expected 3 tags, got %d", len(tags))
	}
	if tags[0].Name != "hero-journey" {
		t.Fatalf("expected relevance order, got %#v", tags)
	}
	if tags[1].Name != "bravery" || tags[2].Name != "medusa" {
		t.Fatalf("expected name tiebreak, got %#v", tags)
	}
}

func TestUsageCount_UnknownTag(t *testing.T) {
	c := newTestClient(t)

	_, err := c.UsageCount(context.Background(), "nonexistent")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListTags(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	perseus := mustCreate(t, c, characterInput("Perseus", "Greek"))
	if err := c.Tag(ctx, perseus, "character", "greek", "culture", 1.0); err != nil {
		t.Fatalf("tagging: %v", err)
	}
	if err := c.Tag(ctx, perseus, "character", "hero-journey", "general", 1.0); err != nil {
		t.Fatalf("tagging: %v", err)
	}

	all, err := c.ListTags(ctx, "")
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 tags, got %d", len(all))
	}

	cultural, err := c.ListTags(ctx, "culture")
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(cultural) != 1 || cultural[0].Name != "greek" {
		t.Fatalf("unexpected tags: %#v", cultural)
	}
}
