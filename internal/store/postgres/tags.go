package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"mythforge/internal/store"
	"mythforge/internal/validate"
)

func (c *Client) Tag(ctx context.Context, contentID int64, contentKind, tagName, category string, relevance float64) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	contentKind = strings.ToLower(contentKind)
	if err := c.tagTx(ctx, tx, contentID, contentKind, tagName, category, relevance); err != nil {
		return err
	}

	if err := c.refreshIndexTx(ctx, tx, contentID, contentKind); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (c *Client) tagTx(ctx context.Context, tx pgx.Tx, contentID int64, contentKind, tagName, category string, relevance float64) error {
	if err := validate.TagAssignment(c.schema, tagName, category, relevance); err != nil {
		return err
	}
	if _, err := getEntity(ctx, tx, contentID, contentKind); err != nil {
		return err
	}

	if category == "" {
		category = "general"
	}

	// Create-if-absent by exact name; an existing tag keeps its category.
	var tagID int64
	err := tx.QueryRow(ctx, `
INSERT INTO tags (name, category, usage_count, created_at)
VALUES ($1, $2, 0, $3)
ON CONFLICT (name) DO UPDATE SET name = tags.name
RETURNING id`,
		tagName, category, c.now().UTC(),
	).Scan(&tagID)
	if err != nil {
		return fmt.Errorf("upserting tag: %w", err)
	}

	// Re-tagging the same pair is a no-op, not a duplicate.
	_, err = tx.Exec(ctx, `
INSERT INTO content_tags (content_id, content_kind, tag_id, relevance, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (content_id, tag_id) DO UPDATE SET relevance = excluded.relevance`,
		contentID, contentKind, tagID, relevance, c.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting content tag: %w", err)
	}

	return recountTagUsage(ctx, tx, tagID)
}

func (c *Client) Untag(ctx context.Context, contentID int64, contentKind, tagName string) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	contentKind = strings.ToLower(contentKind)

	var tagID int64
	err = tx.QueryRow(ctx, "SELECT id FROM tags WHERE name = $1", tagName).Scan(&tagID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("finding tag: %w", err)
	}

	result, err := tx.Exec(ctx,
		"DELETE FROM content_tags WHERE content_id = $1 AND tag_id = $2",
		contentID, tagID,
	)
	if err != nil {
		return fmt.Errorf("deleting content tag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil
	}

	if err := recountTagUsage(ctx, tx, tagID); err != nil {
		return err
	}

	if err := c.refreshIndexTx(ctx, tx, contentID, contentKind); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (c *Client) TagsFor(ctx context.Context, contentID int64, contentKind string) ([]store.TagAssignment, error) {
	return tagsFor(ctx, c.pool, contentID, strings.ToLower(contentKind))
}

func tagsFor(ctx context.Context, q querier, contentID int64, contentKind string) ([]store.TagAssignment, error) {
	rows, err := q.Query(ctx, `
SELECT t.name, t.category, ct.relevance
FROM content_tags ct
JOIN tags t ON t.id = ct.tag_id
WHERE ct.content_id = $1 AND ct.content_kind = $2
ORDER BY ct.relevance DESC, t.name ASC`, contentID, contentKind)
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	defer rows.Close()

	assignments := make([]store.TagAssignment, 0)
	for rows.Next() {
		var a store.TagAssignment
		if err := rows.Scan(&a.Name, &a.Category, &a.Relevance); err != nil {
			return nil, fmt.Errorf("scanning tag assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tag rows: %w", err)
	}

	return assignments, nil
}

func (c *Client) UsageCount(ctx context.Context, tagName string) (int64, error) {
	var count int64
	err := c.pool.QueryRow(ctx, "SELECT usage_count FROM tags WHERE name = $1", tagName).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: tag %q", store.ErrNotFound, tagName)
	}
	if err != nil {
		return 0, fmt.Errorf("getting usage count: %w", err)
	}
	return count, nil
}

func (c *Client) ListTags(ctx context.Context, category string) ([]store.Tag, error) {
	rows, err := c.pool.Query(ctx, `
SELECT id, name, category, usage_count
FROM tags
WHERE ($1 = '' OR category = $1)
ORDER BY name`, category)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	defer rows.Close()

	tags := make([]store.Tag, 0)
	for rows.Next() {
		var t store.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Category, &t.UsageCount); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tags: %w", err)
	}

	return tags, nil
}

// recountTagUsage recomputes usage_count from the live association count in
// the same transaction as the mutation, so the counter can never drift.
func recountTagUsage(ctx context.Context, tx pgx.Tx, tagID int64) error {
	_, err := tx.Exec(ctx, `
UPDATE tags
SET usage_count = (SELECT COUNT(*) FROM content_tags WHERE tag_id = $1)
WHERE id = $1`, tagID)
	if err != nil {
		return fmt.Errorf("recounting tag usage: %w", err)
	}
	return nil
}

func contentTagIDs(ctx context.Context, tx pgx.Tx, contentID int64) ([]int64, error) {
	rows, err := tx.Query(ctx, "SELECT tag_id FROM content_tags WHERE content_id = $1", contentID)
	if err != nil {
		return nil, fmt.Errorf("querying content tags: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning tag id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tag ids: %w", err)
	}
	return ids, nil
}
