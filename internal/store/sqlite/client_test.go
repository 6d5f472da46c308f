package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"mythforge/internal/config"
	"mythforge/internal/store"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	dsn := "sqlite://" + filepath.Join(t.TempDir(), "test.db")
	client, err := New(context.Background(), dsn, config.DefaultSchema())
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { client.Close(context.Background()) })

	if err := client.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensuring schema: %v", err)
	}
	return client
}

func mustCreate(t *testing.T, c *Client, e store.EntityInput) int64 {
	t.Helper()
	id, err := c.CreateEntity(context.Background(), e)
	if err != nil {
		t.Fatalf("creating %s %q: %v", e.Kind, e.Title, err)
	}
	return id
}

func characterInput(title, pantheon string) store.EntityInput {
	return store.EntityInput{
		Kind:  "character",
		Title: title,
		Attrs: map[string]any{"pantheon": pantheon},
	}
}

func storyInput(title, culture string) store.EntityInput {
	return store.EntityInput{
		Kind:  "story",
		Title: title,
		Attrs: map[string]any{"culture": culture},
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestParseDSN(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		got, err := parseDSN("sqlite://:memory:")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got != ":memory:" {
			t.Fatalf("unexpected dsn: %q", got)
		}
	})

	t.Run("relative path gets prefix", func(t *testing.T) {
		got, err := parseDSN("sqlite://data/test.db")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got != "./data/test.db" {
			t.Fatalf("unexpected dsn: %q", got)
		}
	})

	t.Run("query preserved", func(t *testing.T) {
		got, err := parseDSN("sqlite://test.db?mode=ro")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got != "./test.db?mode=ro" {
			t.Fatalf("unexpected dsn: %q", got)
		}
	})

	t.Run("wrong scheme rejected", func(t *testing.T) {
		if _, err := parseDSN("postgres://localhost/db"); err == nil {
			t.Fatalf("expected error")
		}
	})
}
