package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"mythforge/internal/config"
	"mythforge/internal/parser"
	"mythforge/internal/store"
	"mythforge/internal/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Client {
	t.Helper()

	dsn := "sqlite://" + filepath.Join(t.TempDir(), "test.db")
	client, err := sqlite.New(context.Background(), dsn, config.DefaultSchema())
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { client.Close(context.Background()) })

	if err := client.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensuring schema: %v", err)
	}
	return client
}

func writeContentFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func contentConfig(dir string) *config.ProjectConfig {
	return &config.ProjectConfig{
		Project: "test",
		Version: 1,
		Content: config.ContentConfig{Paths: []string{dir}},
	}
}

const perseusFile = `---
title: Perseus
kind: character
pantheon: Greek
character_type: hero
tags:
  - name: medusa
    category: general
    relevance: 0.9
  - hero-journey
relationships:
  - target: Athena
    kind: character
    type: mentorship
    strength: 8
---

Perseus was the slayer of Medusa and a founder-hero of Mycenae.

He carried a mirrored shield given to him by Athena.
`

func TestScan(t *testing.T) {
	ctx := context.Background()

	t.Run("queues markdown files", func(t *testing.T) {
		db := newTestStore(t)
		dir := t.TempDir()
		writeContentFile(t, dir, "perseus.md", perseusFile)
		writeContentFile(t, dir, "notes.txt", "not markdown")

		result, err := Scan(ctx, contentConfig(dir), db, ScanOptions{})
		if err != nil {
			t.Fatalf("scanning: %v", err)
		}
		if result.Queued != 1 || result.Skipped != 0 {
			t.Fatalf("unexpected result: %#v", result)
		}

		items, err := db.PendingItems(ctx, 0)
		if err != nil {
			t.Fatalf("pending items: %v", err)
		}
		if len(items) != 1 || items[0].SourceHash == "" {
			t.Fatalf("unexpected items: %#v", items)
		}
	})

	t.Run("unchanged files skipped on rescan", func(t *testing.T) {
		db := newTestStore(t)
		dir := t.TempDir()
		writeContentFile(t, dir, "perseus.md", perseusFile)
		cfg := contentConfig(dir)

		if _, err := Scan(ctx, cfg, db, ScanOptions{}); err != nil {
			t.Fatalf("first scan: %v", err)
		}
		result, err := Scan(ctx, cfg, db, ScanOptions{})
		if err != nil {
			t.Fatalf("second scan: %v", err)
		}
		if result.Queued != 0 || result.Skipped != 1 {
			t.Fatalf("expected skip, got %#v", result)
		}
	})

	t.Run("changed files requeued", func(t *testing.T) {
		db := newTestStore(t)
		dir := t.TempDir()
		path := writeContentFile(t, dir, "perseus.md", perseusFile)
		cfg := contentConfig(dir)

		if _, err := Scan(ctx, cfg, db, ScanOptions{}); err != nil {
			t.Fatalf("first scan: %v", err)
		}
		writeContentFile(t, dir, "perseus.md", perseusFile+"\nAn addendum.\n")

		result, err := Scan(ctx, cfg, db, ScanOptions{})
		if err != nil {
			t.Fatalf("second scan: %v", err)
		}
		if result.Queued != 1 {
			t.Fatalf("expected changed file queued, got %#v", result)
		}

		items, err := db.ListQueueItems(ctx, "")
		if err != nil {
			t.Fatalf("listing queue: %v", err)
		}
		if len(items) != 2 || items[0].FilePath != path {
			t.Fatalf("unexpected queue: %#v", items)
		}
	})

	t.Run("full scan ignores hashes", func(t *testing.T) {
		db := newTestStore(t)
		dir := t.TempDir()
		writeContentFile(t, dir, "perseus.md", perseusFile)
		cfg := contentConfig(dir)

		if _, err := Scan(ctx, cfg, db, ScanOptions{}); err != nil {
			t.Fatalf("first scan: %v", err)
		}
		result, err := Scan(ctx, cfg, db, ScanOptions{Full: true})
		if err != nil {
			t.Fatalf("full scan: %v", err)
		}
		if result.Queued != 1 {
			t.Fatalf("expected requeue on full scan, got %#v", result)
		}
	})

	t.Run("excluded paths skipped", func(t *testing.T) {
		db := newTestStore(t)
		dir := t.TempDir()
		assets := filepath.Join(dir, "assets")
		if err := os.Mkdir(assets, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		writeContentFile(t, dir, "perseus.md", perseusFile)
		writeContentFile(t, assets, "draft.md", perseusFile)

		cfg := contentConfig(dir)
		cfg.Content.Exclude = []string{assets}

		result, err := Scan(ctx, cfg, db, ScanOptions{})
		if err != nil {
			t.Fatalf("scanning: %v", err)
		}
		if result.Queued != 1 {
			t.Fatalf("expected excluded dir skipped, got %#v", result)
		}
	})
}

func TestProcess(t *testing.T) {
	ctx := context.Background()
	schema := config.DefaultSchema()

	t.Run("imports valid file end to end", func(t *testing.T) {
		db := newTestStore(t)
		dir := t.TempDir()
		writeContentFile(t, dir, "perseus.md", perseusFile)

		if _, err := db.CreateEntity(ctx, store.EntityInput{
			Kind: "character", Title: "Athena",
			Attrs: map[string]any{"pantheon": "Greek"},
		}); err != nil {
			t.Fatalf("creating target: %v", err)
		}

		if _, err := Scan(ctx, contentConfig(dir), db, ScanOptions{}); err != nil {
			t.Fatalf("scanning: %v", err)
		}

		result, err := Process(ctx, schema, db, 2)
		if err != nil {
			t.Fatalf("processing: %v", err)
		}
		if result.Imported != 1 || result.Failed != 0 {
			t.Fatalf("unexpected result: %+v", result)
		}

		perseus, err := db.FindEntity(ctx, "character", "Perseus")
		if err != nil {
			t.Fatalf("finding entity: %v", err)
		}
		if perseus.Status != "draft" {
			t.Fatalf("expected draft default, got %q", perseus.Status)
		}
		if summary, ok := perseus.Attrs["summary"].(string); !ok || !strings.Contains(summary, "slayer of Medusa") {
			t.Fatalf("expected derived summary, got %#v", perseus.Attrs["summary"])
		}

		tags, err := db.TagsFor(ctx, perseus.ID, "character")
		if err != nil {
			t.Fatalf("tags for: %v", err)
		}
		if len(tags) != 2 {
			t.Fatalf("expected 2 tags, got %#v", tags)
		}

		rels, err := db.RelationshipsOf(ctx, perseus.ID, "character")
		if err != nil {
			t.Fatalf("relationships: %v", err)
		}
		if len(rels) != 1 || rels[0].Type != "mentorship" {
			t.Fatalf("unexpected relationships: %#v", rels)
		}

		items, err := db.ListQueueItems(ctx, store.QueueCompleted)
		if err != nil {
			t.Fatalf("listing queue: %v", err)
		}
		if len(items) != 1 {
			t.Fatalf("expected completed item, got %#v", items)
		}
	})

	t.Run("reprocessing the same file is idempotent", func(t *testing.T) {
		db := newTestStore(t)
		dir := t.TempDir()
		writeContentFile(t, dir, "perseus.md", perseusFile)
		cfg := contentConfig(dir)

		if _, err := db.CreateEntity(ctx, store.EntityInput{
			Kind: "character", Title: "Athena",
			Attrs: map[string]any{"pantheon": "Greek"},
		}); err != nil {
			t.Fatalf("creating target: %v", err)
		}

		for pass := 0; pass < 2; pass++ {
			if _, err := Scan(ctx, cfg, db, ScanOptions{Full: true}); err != nil {
				t.Fatalf("pass %d scan: %v", pass, err)
			}
			if _, err := Process(ctx, schema, db, 1); err != nil {
				t.Fatalf("pass %d process: %v", pass, err)
			}
		}

		entities, err := db.ListEntities(ctx, "character", "", "")
		if err != nil {
			t.Fatalf("listing: %v", err)
		}
		if len(entities) != 2 {
			t.Fatalf("expected Perseus and Athena only, got %#v", entities)
		}

		count, err := db.UsageCount(ctx, "medusa")
		if err != nil {
			t.Fatalf("usage count: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected usage count 1 after reprocess, got %d", count)
		}
	})

	t.Run("invalid file fails with no partial state", func(t *testing.T) {
		db := newTestStore(t)
		dir := t.TempDir()
		writeContentFile(t, dir, "broken.md", "---\nkind: character\ntags: [orphan]\n---\n\nNo title here.\n")

		if _, err := Scan(ctx, contentConfig(dir), db, ScanOptions{}); err != nil {
			t.Fatalf("scanning: %v", err)
		}

		result, err := Process(ctx, schema, db, 1)
		if err != nil {
			t.Fatalf("processing: %v", err)
		}
		if result.Failed != 1 || result.Imported != 0 {
			t.Fatalf("unexpected result: %+v", result)
		}

		items, err := db.ListQueueItems(ctx, store.QueueFailed)
		if err != nil {
			t.Fatalf("listing queue: %v", err)
		}
		if len(items) != 1 || items[0].ErrorMessage == "" {
			t.Fatalf("expected failed item with message, got %#v", items)
		}

		entities, err := db.ListEntities(ctx, "", "", "")
		if err != nil {
			t.Fatalf("listing: %v", err)
		}
		if len(entities) != 0 {
			t.Fatalf("expected no entities, got %#v", entities)
		}
		tags, err := db.ListTags(ctx, "")
		if err != nil {
			t.Fatalf("listing tags: %v", err)
		}
		if len(tags) != 0 {
			t.Fatalf("expected no tags, got %#v", tags)
		}
	})

	t.Run("missing relationship target fails the item", func(t *testing.T) {
		db := newTestStore(t)
		dir := t.TempDir()
		writeContentFile(t, dir, "perseus.md", perseusFile)

		if _, err := Scan(ctx, contentConfig(dir), db, ScanOptions{}); err != nil {
			t.Fatalf("scanning: %v", err)
		}

		// Athena was never created, so the edge cannot resolve.
		result, err := Process(ctx, schema, db, 1)
		if err != nil {
			t.Fatalf("processing: %v", err)
		}
		if result.Failed != 1 {
			t.Fatalf("unexpected result: %+v", result)
		}

		if _, err := db.FindEntity(ctx, "character", "Perseus"); err == nil {
			t.Fatalf("expected import rolled back")
		}
	})

	t.Run("empty queue is a no-op", func(t *testing.T) {
		db := newTestStore(t)

		result, err := Process(ctx, schema, db, 4)
		if err != nil {
			t.Fatalf("processing: %v", err)
		}
		if result.Imported != 0 || result.Failed != 0 || result.Skipped != 0 {
			t.Fatalf("unexpected result: %+v", result)
		}
	})
}

func TestBuildImportInput(t *testing.T) {
	schema := config.DefaultSchema()

	t.Run("reserved keys excluded from attrs", func(t *testing.T) {
		doc, err := parser.Parse([]byte(perseusFile))
		if err != nil {
			t.Fatalf("parsing: %v", err)
		}

		input := BuildImportInput(schema, doc)
		for _, key := range []string{"title", "kind", "status", "tags", "relationships"} {
			if _, ok := input.Entity.Attrs[key]; ok {
				t.Fatalf("expected %q excluded from attrs", key)
			}
		}
		if input.Entity.Attrs["pantheon"] != "Greek" {
			t.Fatalf("expected pantheon kept, got %#v", input.Entity.Attrs)
		}
	})

	t.Run("status defaults to draft", func(t *testing.T) {
		doc, err := parser.Parse([]byte("---\ntitle: Perseus\nkind: character\n---\n\nBody.\n"))
		if err != nil {
			t.Fatalf("parsing: %v", err)
		}
		input := BuildImportInput(schema, doc)
		if input.Entity.Status != "draft" {
			t.Fatalf("expected draft, got %q", input.Entity.Status)
		}
	})

	t.Run("declared summary wins", func(t *testing.T) {
		doc, err := parser.Parse([]byte("---\ntitle: Perseus\nkind: character\nsummary: Hand-written.\n---\n\nBody text.\n"))
		if err != nil {
			t.Fatalf("parsing: %v", err)
		}
		input := BuildImportInput(schema, doc)
		if input.Entity.Attrs["summary"] != "Hand-written." {
			t.Fatalf("expected declared summary kept, got %#v", input.Entity.Attrs["summary"])
		}
	})
}

func TestDeriveSummary(t *testing.T) {
	t.Run("first paragraph", func(t *testing.T) {
		got := deriveSummary("First paragraph here.\n\nSecond paragraph.")
		if got != "First paragraph here." {
			t.Fatalf("unexpected summary: %q", got)
		}
	})

	t.Run("headings skipped", func(t *testing.T) {
		got := deriveSummary("# Title\n\nActual prose.\n")
		if got != "Actual prose." {
			t.Fatalf("unexpected summary: %q", got)
		}
	})

	t.Run("whitespace collapsed", func(t *testing.T) {
		got := deriveSummary("Line one\ncontinues  here.")
		if got != "Line one continues here." {
			t.Fatalf("unexpected summary: %q", got)
		}
	})

	t.Run("long paragraph clipped", func(t *testing.T) {
		got := deriveSummary(strings.Repeat("a", 600))
		if len(got) != maxSummaryLength {
			t.Fatalf("expected clipped to %d, got %d", maxSummaryLength, len(got))
		}
	})

	t.Run("clip lands on a rune boundary", func(t *testing.T) {
		// Three-byte runes never align with the byte cap.
		got := deriveSummary(strings.Repeat("龍", 200))
		if len(got) > maxSummaryLength {
			t.Fatalf("expected at most %d bytes, got %d", maxSummaryLength, len(got))
		}
		if !utf8.ValidString(got) {
			t.Fatalf("expected valid UTF-8, got %q", got)
		}
	})

	t.Run("empty body", func(t *testing.T) {
		if got := deriveSummary(""); got != "" {
			t.Fatalf("expected empty, got %q", got)
		}
	})
}
