package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"mythforge/internal/config"
	"mythforge/internal/parser"
	"mythforge/internal/store"
)

// maxSummaryLength caps derived summaries.
const maxSummaryLength = 500

// ProcessResult reports one processing pass over the pending queue.
type ProcessResult struct {
	mu sync.Mutex

	Imported int
	Failed   int
	Skipped  int
	Errors   []error
}

// Process drains the pending queue with a pool of workers. Every item ends
// the pass in a terminal state: completed on a successful import, failed
// with the error message otherwise. An item another worker claimed first is
// counted as skipped.
func Process(ctx context.Context, schema *config.Schema, db store.Store, workers int) (*ProcessResult, error) {
	if workers < 1 {
		workers = 1
	}

	items, err := db.PendingItems(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("loading pending items: %w", err)
	}

	result := &ProcessResult{}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, item := range items {
		g.Go(func() error {
			return processItem(ctx, schema, db, item, result)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}

func processItem(ctx context.Context, schema *config.Schema, db store.Store, item store.QueueItem, result *ProcessResult) error {
	if err := db.Claim(ctx, item.ID); err != nil {
		if errors.Is(err, store.ErrInvalidState) {
			result.record(func(r *ProcessResult) { r.Skipped++ })
			return nil
		}
		return err
	}

	importErr := importFile(ctx, schema, db, item)
	if importErr != nil {
		if err := db.Fail(ctx, item.ID, importErr.Error()); err != nil {
			return err
		}
		result.record(func(r *ProcessResult) {
			r.Failed++
			r.Errors = append(r.Errors, fmt.Errorf("%s: %w", item.FilePath, importErr))
		})
		return nil
	}

	if err := db.Complete(ctx, item.ID); err != nil {
		return err
	}
	result.record(func(r *ProcessResult) { r.Imported++ })
	return nil
}

func importFile(ctx context.Context, schema *config.Schema, db store.Store, item store.QueueItem) error {
	doc, err := parser.ParseFile(item.FilePath)
	if err != nil {
		return err
	}

	input := BuildImportInput(schema, doc)
	if _, err := db.ImportEntity(ctx, input); err != nil {
		return err
	}
	return nil
}

// BuildImportInput converts a parsed document into the store's import shape,
// applying the ingest defaults: status draft when the file declares none,
// and a summary derived from the first body paragraph when absent.
func BuildImportInput(schema *config.Schema, doc *parser.Document) store.ImportInput {
	status := doc.Status
	if status == "" {
		status = "draft"
	}

	attrs := make(map[string]any)
	for key, value := range doc.Frontmatter {
		switch key {
		case "title", "kind", "type", "status", "tags", "relationships":
			continue
		}
		attrs[key] = value
	}
	if _, ok := attrs["summary"]; !ok {
		if summary := deriveSummary(doc.Body); summary != "" {
			attrs["summary"] = summary
		}
	}

	input := store.ImportInput{
		Entity: store.EntityInput{
			Kind:   doc.Kind,
			Title:  doc.Title,
			Status: status,
			Attrs:  attrs,
			Body:   doc.Body,
		},
	}

	for _, tag := range doc.Tags {
		input.Tags = append(input.Tags, store.ImportTag{
			Name:      tag.Name,
			Category:  tag.Category,
			Relevance: tag.Relevance,
		})
	}
	for _, rel := range doc.Relationships {
		input.Relationships = append(input.Relationships, store.ImportRelationship{
			TargetTitle: rel.Target,
			TargetKind:  rel.Kind,
			Type:        rel.Type,
			Subtype:     rel.Subtype,
			Strength:    rel.Strength,
		})
	}

	return input
}

// deriveSummary takes the first non-heading paragraph of the body, clipped
// to the summary cap on a rune boundary.
func deriveSummary(body string) string {
	for _, paragraph := range strings.Split(body, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" || strings.HasPrefix(paragraph, "#") {
			continue
		}
		paragraph = strings.Join(strings.Fields(paragraph), " ")
		if len(paragraph) > maxSummaryLength {
			cut := maxSummaryLength
			for cut > 0 && !utf8.RuneStart(paragraph[cut]) {
				cut--
			}
			paragraph = paragraph[:cut]
		}
		return paragraph
	}
	return ""
}

func (r *ProcessResult) record(update func(*ProcessResult)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	update(r)
}
