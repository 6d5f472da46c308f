package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"mythforge/internal/store"
	"mythforge/internal/validate"
)

func (c *Client) CreateEntity(ctx context.Context, e store.EntityInput) (int64, error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	id, err := c.createEntityTx(ctx, tx, e)
	if err != nil {
		return 0, err
	}

	if err := c.refreshIndexTx(ctx, tx, id, strings.ToLower(e.Kind)); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return id, nil
}

func (c *Client) createEntityTx(ctx context.Context, tx pgx.Tx, e store.EntityInput) (int64, error) {
	e.Kind = strings.ToLower(e.Kind)
	if e.Status == "" {
		e.Status = "draft"
	}

	if err := validate.Entity(c.schema, e); err != nil {
		return 0, err
	}

	attrsJSON, err := json.Marshal(orEmptyMap(e.Attrs))
	if err != nil {
		return 0, fmt.Errorf("marshaling attrs: %w", err)
	}

	naturalKey := validate.NaturalKey(c.schema, e.Kind, e.Title, e.Attrs)
	now := c.now().UTC()

	var id int64
	err = tx.QueryRow(ctx, `
INSERT INTO entities (kind, title, natural_key, status, attrs, body, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
RETURNING id`,
		e.Kind, e.Title, naturalKey, e.Status, attrsJSON, e.Body, now,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err, "entities") {
			return 0, fmt.Errorf("%w: %s %q", store.ErrDuplicateKey, e.Kind, e.Title)
		}
		return 0, fmt.Errorf("creating entity: %w", err)
	}

	return id, nil
}

func (c *Client) UpdateEntity(ctx context.Context, id int64, kind string, patch store.EntityPatch) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	kind = strings.ToLower(kind)
	existing, err := getEntity(ctx, tx, id, kind)
	if err != nil {
		return err
	}

	merged := store.EntityInput{
		Kind:   existing.Kind,
		Title:  existing.Title,
		Status: existing.Status,
		Attrs:  existing.Attrs,
		Body:   existing.Body,
	}
	if patch.Title != nil {
		merged.Title = *patch.Title
	}
	if patch.Status != nil {
		merged.Status = *patch.Status
	}
	if patch.Body != nil {
		merged.Body = *patch.Body
	}
	if len(patch.Attrs) > 0 {
		if merged.Attrs == nil {
			merged.Attrs = map[string]any{}
		}
		for key, value := range patch.Attrs {
			if value == nil {
				delete(merged.Attrs, key)
				continue
			}
			merged.Attrs[key] = value
		}
	}

	if err := validate.Entity(c.schema, merged); err != nil {
		return err
	}

	attrsJSON, err := json.Marshal(orEmptyMap(merged.Attrs))
	if err != nil {
		return fmt.Errorf("marshaling attrs: %w", err)
	}

	naturalKey := validate.NaturalKey(c.schema, merged.Kind, merged.Title, merged.Attrs)

	_, err = tx.Exec(ctx, `
UPDATE entities SET title = $1, natural_key = $2, status = $3, attrs = $4, body = $5, updated_at = $6
WHERE id = $7 AND kind = $8`,
		merged.Title, naturalKey, merged.Status, attrsJSON, merged.Body, c.now().UTC(), id, kind,
	)
	if err != nil {
		if isUniqueViolation(err, "entities") {
			return fmt.Errorf("%w: %s %q", store.ErrDuplicateKey, merged.Kind, merged.Title)
		}
		return fmt.Errorf("updating entity: %w", err)
	}

	if err := c.refreshIndexTx(ctx, tx, id, kind); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (c *Client) GetEntity(ctx context.Context, id int64, kind string) (*store.Entity, error) {
	return getEntity(ctx, c.pool, id, strings.ToLower(kind))
}

func getEntity(ctx context.Context, q querier, id int64, kind string) (*store.Entity, error) {
	row := q.QueryRow(ctx, `
SELECT id, kind, title, status, attrs, body, created_at, updated_at
FROM entities
WHERE id = $1 AND kind = $2`, id, kind)

	entity, err := scanEntity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %d", store.ErrNotFound, kind, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting entity: %w", err)
	}
	return entity, nil
}

func (c *Client) FindEntity(ctx context.Context, kind, title string) (*store.Entity, error) {
	return findEntityByTitle(ctx, c.pool, strings.ToLower(kind), title)
}

func findEntityByTitle(ctx context.Context, q querier, kind, title string) (*store.Entity, error) {
	rows, err := q.Query(ctx, `
SELECT id, kind, title, status, attrs, body, created_at, updated_at
FROM entities
WHERE kind = $1 AND lower(title) = lower($2)
ORDER BY id
LIMIT 2`, kind, title)
	if err != nil {
		return nil, fmt.Errorf("finding entity: %w", err)
	}
	defer rows.Close()

	var entities []*store.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entity rows: %w", err)
	}

	if len(entities) == 0 {
		return nil, fmt.Errorf("%w: %s %q", store.ErrNotFound, kind, title)
	}
	if len(entities) > 1 {
		return nil, fmt.Errorf("ambiguous title %q for kind %s", title, kind)
	}
	return entities[0], nil
}

func (c *Client) DeleteEntity(ctx context.Context, id int64, kind string) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	kind = strings.ToLower(kind)
	if _, err := getEntity(ctx, tx, id, kind); err != nil {
		return err
	}

	// Cascades remove relationships, content_tags, and the search_index row,
	// but the usage counters of the affected tags must be recomputed here.
	tagIDs, err := contentTagIDs(ctx, tx, id)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, "DELETE FROM entities WHERE id = $1 AND kind = $2", id, kind); err != nil {
		return fmt.Errorf("deleting entity: %w", err)
	}

	for _, tagID := range tagIDs {
		if err := recountTagUsage(ctx, tx, tagID); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (c *Client) ListEntities(ctx context.Context, kind, status, tag string) ([]store.EntitySummary, error) {
	query := `
SELECT e.id, e.kind, e.title, e.status
FROM entities e
WHERE ($1 = '' OR e.kind = $1)
  AND ($2 = '' OR e.status = $2)
ORDER BY e.title`
	args := []any{kind, status}

	if tag != "" {
		query = `
SELECT e.id, e.kind, e.title, e.status
FROM entities e
JOIN content_tags ct ON ct.content_id = e.id
JOIN tags t ON t.id = ct.tag_id
WHERE ($1 = '' OR e.kind = $1)
  AND ($2 = '' OR e.status = $2)
  AND t.name = $3
ORDER BY e.title`
		args = append(args, tag)
	}

	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	defer rows.Close()

	summaries := make([]store.EntitySummary, 0)
	for rows.Next() {
		var s store.EntitySummary
		if err := rows.Scan(&s.ID, &s.Kind, &s.Title, &s.Status); err != nil {
			return nil, fmt.Errorf("scanning entity summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entity summaries: %w", err)
	}

	return summaries, nil
}

func scanEntity(row pgx.Row) (*store.Entity, error) {
	var e store.Entity
	var attrsBytes []byte

	err := row.Scan(&e.ID, &e.Kind, &e.Title, &e.Status, &attrsBytes, &e.Body, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if len(attrsBytes) > 0 {
		if err := json.Unmarshal(attrsBytes, &e.Attrs); err != nil {
			return nil, fmt.Errorf("unmarshaling attrs: %w", err)
		}
	}
	if e.Attrs == nil {
		e.Attrs = map[string]any{}
	}

	return &e, nil
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
