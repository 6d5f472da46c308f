package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"mythforge/internal/store"
	"mythforge/internal/validate"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so row helpers can run
// inside or outside an explicit transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (c *Client) CreateEntity(ctx context.Context, e store.EntityInput) (int64, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := c.createEntityTx(ctx, tx, e)
	if err != nil {
		return 0, err
	}

	if err := c.refreshIndexTx(ctx, tx, id, strings.ToLower(e.Kind)); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return id, nil
}

func (c *Client) createEntityTx(ctx context.Context, tx *sql.Tx, e store.EntityInput) (int64, error) {
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
	now := c.timestamp()

	var id int64
	err = tx.QueryRowContext(ctx, `
	INSERT INTO entities (kind, title, natural_key, status, attrs, body, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	RETURNING id`,
		e.Kind, e.Title, naturalKey, e.Status, attrsJSON, e.Body, now, now,
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
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

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

	_, err = tx.ExecContext(ctx, `
	UPDATE entities SET title = ?, natural_key = ?, status = ?, attrs = ?, body = ?, updated_at = ?
	WHERE id = ? AND kind = ?`,
		merged.Title, naturalKey, merged.Status, attrsJSON, merged.Body, c.timestamp(), id, kind,
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

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (c *Client) GetEntity(ctx context.Context, id int64, kind string) (*store.Entity, error) {
	return getEntity(ctx, c.db, id, strings.ToLower(kind))
}

func getEntity(ctx context.Context, q dbtx, id int64, kind string) (*store.Entity, error) {
	row := q.QueryRowContext(ctx, `
	SELECT id, kind, title, status, attrs, body, created_at, updated_at
	FROM entities
	WHERE id = ? AND kind = ?`, id, kind)

	entity, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %d", store.ErrNotFound, kind, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting entity: %w", err)
	}
	return entity, nil
}

func (c *Client) FindEntity(ctx context.Context, kind, title string) (*store.Entity, error) {
	return findEntityByTitle(ctx, c.db, strings.ToLower(kind), title)
}

func findEntityByTitle(ctx context.Context, q dbtx, kind, title string) (*store.Entity, error) {
	rows, err := q.QueryContext(ctx, `
	SELECT id, kind, title, status, attrs, body, created_at, updated_at
	FROM entities
	WHERE kind = ? AND lower(title) = lower(?)
	ORDER BY id
	LIMIT 2`, kind, title)
	if err != nil {
		return nil, fmt.Errorf("finding entity: %w", err)
	}
	defer rows.Close()

	var entities []*store.Entity
	for rows.Next() {
		entity, err := scanEntityRows(rows)
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
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

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

	if _, err := tx.ExecContext(ctx, "DELETE FROM entities WHERE id = ? AND kind = ?", id, kind); err != nil {
		return fmt.Errorf("deleting entity: %w", err)
	}

	for _, tagID := range tagIDs {
		if err := recountTagUsage(ctx, tx, tagID); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (c *Client) ListEntities(ctx context.Context, kind, status, tag string) ([]store.EntitySummary, error) {
	query := `
	SELECT e.id, e.kind, e.title, e.status
	FROM entities e
	WHERE (? = '' OR e.kind = ?)
	  AND (? = '' OR e.status = ?)
	ORDER BY e.title`
	args := []any{kind, kind, status, status}

	if tag != "" {
		query = `
	SELECT e.id, e.kind, e.title, e.status
	FROM entities e
	JOIN content_tags ct ON ct.content_id = e.id
	JOIN tags t ON t.id = ct.tag_id
	WHERE (? = '' OR e.kind = ?)
	  AND (? = '' OR e.status = ?)
	  AND t.name = ?
	ORDER BY e.title`
		args = append(args, tag)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row *sql.Row) (*store.Entity, error) {
	return scanEntityFrom(row)
}

func scanEntityRows(rows *sql.Rows) (*store.Entity, error) {
	return scanEntityFrom(rows)
}

func scanEntityFrom(row rowScanner) (*store.Entity, error) {
	var e store.Entity
	var attrsBytes []byte
	var createdAt, updatedAt string

	err := row.Scan(&e.ID, &e.Kind, &e.Title, &e.Status, &attrsBytes, &e.Body, &createdAt, &updatedAt)
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

	if e.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, err
	}

	return &e, nil
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
