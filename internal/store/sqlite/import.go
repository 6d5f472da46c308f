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

// ImportEntity is the pipeline's atomic core. The entity upsert, tag and
// relationship replacement, and search index refresh either all commit or
// none of them do; a failed item leaves no partial state behind.
func (c *Client) ImportEntity(ctx context.Context, in store.ImportInput) (*store.ImportResult, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	e := in.Entity
	e.Kind = strings.ToLower(e.Kind)
	if e.Status == "" {
		e.Status = "draft"
	}
	if err := validate.Entity(c.schema, e); err != nil {
		return nil, err
	}

	result := &store.ImportResult{}

	// Re-importing the same logical item updates in place rather than
	// erroring: at most one record per natural key.
	naturalKey := validate.NaturalKey(c.schema, e.Kind, e.Title, e.Attrs)

	var existingID int64
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM entities WHERE kind = ? AND natural_key = ?",
		e.Kind, naturalKey,
	).Scan(&existingID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		id, err := c.createEntityTx(ctx, tx, e)
		if err != nil {
			return nil, err
		}
		result.EntityID = id
		result.Created = true
	case err != nil:
		return nil, fmt.Errorf("finding entity by natural key: %w", err)
	default:
		attrsJSON, err := json.Marshal(orEmptyMap(e.Attrs))
		if err != nil {
			return nil, fmt.Errorf("marshaling attrs: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
	UPDATE entities SET title = ?, status = ?, attrs = ?, body = ?, updated_at = ?
	WHERE id = ?`,
			e.Title, e.Status, attrsJSON, e.Body, c.timestamp(), existingID,
		)
		if err != nil {
			return nil, fmt.Errorf("updating entity: %w", err)
		}
		result.EntityID = existingID
	}

	if err := c.replaceTagsTx(ctx, tx, result.EntityID, e.Kind, in.Tags); err != nil {
		return nil, err
	}
	result.Tags = len(in.Tags)

	edges, err := c.replaceRelationshipsTx(ctx, tx, result.EntityID, e.Kind, in.Relationships)
	if err != nil {
		return nil, err
	}
	result.Edges = edges

	if err := c.refreshIndexTx(ctx, tx, result.EntityID, e.Kind); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return result, nil
}

// replaceTagsTx makes the entity's tag set match the declared set, so a
// re-imported file does not inflate usage counters.
func (c *Client) replaceTagsTx(ctx context.Context, tx *sql.Tx, contentID int64, contentKind string, tags []store.ImportTag) error {
	existing, err := contentTagIDs(ctx, tx, contentID)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM content_tags WHERE content_id = ?", contentID); err != nil {
		return fmt.Errorf("clearing content tags: %w", err)
	}
	for _, tagID := range existing {
		if err := recountTagUsage(ctx, tx, tagID); err != nil {
			return err
		}
	}

	for _, tag := range tags {
		relevance := tag.Relevance
		if relevance == 0 {
			relevance = 1.0
		}
		if err := c.tagTx(ctx, tx, contentID, contentKind, tag.Name, tag.Category, relevance); err != nil {
			return err
		}
	}

	return nil
}

// replaceRelationshipsTx rewrites the edges sourced at the imported entity
// to match the file's declarations. Targets are resolved by title; a
// missing target aborts the import.
func (c *Client) replaceRelationshipsTx(ctx context.Context, tx *sql.Tx, sourceID int64, sourceKind string, relationships []store.ImportRelationship) (int, error) {
	if _, err := tx.ExecContext(ctx, "DELETE FROM relationships WHERE src_id = ?", sourceID); err != nil {
		return 0, fmt.Errorf("clearing relationships: %w", err)
	}

	created := 0
	for _, rel := range relationships {
		targetKind := rel.TargetKind
		if targetKind == "" {
			targetKind = "character"
		}

		target, err := findEntityByTitle(ctx, tx, strings.ToLower(targetKind), rel.TargetTitle)
		if err != nil {
			return 0, fmt.Errorf("resolving relationship target %q: %w", rel.TargetTitle, err)
		}

		_, err = c.linkTx(ctx, tx, store.RelationshipInput{
			SourceID:   sourceID,
			SourceKind: sourceKind,
			TargetID:   target.ID,
			TargetKind: target.Kind,
			Type:       rel.Type,
			Subtype:    rel.Subtype,
			Strength:   rel.Strength,
		})
		if err != nil {
			// Two declarations of the same edge in one file collapse to one.
			if errors.Is(err, store.ErrDuplicateRelationship) {
				continue
			}
			return 0, err
		}
		created++
	}

	return created, nil
}
