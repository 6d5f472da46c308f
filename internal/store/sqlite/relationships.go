package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"mythforge/internal/store"
	"mythforge/internal/validate"
)

func (c *Client) Link(ctx context.Context, r store.RelationshipInput) (int64, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := c.linkTx(ctx, tx, r)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return id, nil
}

func (c *Client) linkTx(ctx context.Context, tx *sql.Tx, r store.RelationshipInput) (int64, error) {
	r.SourceKind = strings.ToLower(r.SourceKind)
	r.TargetKind = strings.ToLower(r.TargetKind)
	r.Type = strings.ToLower(r.Type)
	if r.Strength == 0 {
		r.Strength = 1
	}

	if err := validate.Relationship(r); err != nil {
		return 0, err
	}
	if r.SourceID == r.TargetID {
		return 0, fmt.Errorf("%w: entity %d", store.ErrSelfReference, r.SourceID)
	}

	if _, err := getEntity(ctx, tx, r.SourceID, r.SourceKind); err != nil {
		return 0, err
	}
	if _, err := getEntity(ctx, tx, r.TargetID, r.TargetKind); err != nil {
		return 0, err
	}

	metadataJSON, err := json.Marshal(orEmptyMap(r.Metadata))
	if err != nil {
		return 0, fmt.Errorf("marshaling metadata: %w", err)
	}

	var id int64
	err = tx.QueryRowContext(ctx, `
	INSERT INTO relationships (src_id, src_kind, dst_id, dst_kind, rel_type, rel_subtype, strength, metadata, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	RETURNING id`,
		r.SourceID, r.SourceKind, r.TargetID, r.TargetKind, r.Type, r.Subtype, r.Strength, metadataJSON, c.timestamp(),
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err, "relationships") {
			return 0, fmt.Errorf("%w: %d -%s-> %d", store.ErrDuplicateRelationship, r.SourceID, r.Type, r.TargetID)
		}
		return 0, fmt.Errorf("creating relationship: %w", err)
	}

	return id, nil
}

// Unlink is idempotent: removing an edge that is already gone is success,
// because cascaded entity deletion may race with explicit unlink calls.
func (c *Client) Unlink(ctx context.Context, relationshipID int64) error {
	_, err := c.db.ExecContext(ctx, "DELETE FROM relationships WHERE id = ?", relationshipID)
	if err != nil {
		return fmt.Errorf("deleting relationship: %w", err)
	}
	return nil
}

func (c *Client) RelationshipsOf(ctx context.Context, id int64, kind string) ([]store.Relationship, error) {
	kind = strings.ToLower(kind)

	rows, err := c.db.QueryContext(ctx, `
	SELECT r.id, r.src_id, r.src_kind, s.title, r.dst_id, r.dst_kind, d.title,
	       r.rel_type, r.rel_subtype, r.strength, r.metadata
	FROM relationships r
	JOIN entities s ON r.src_id = s.id
	JOIN entities d ON r.dst_id = d.id
	WHERE (r.src_id = ? AND r.src_kind = ?) OR (r.dst_id = ? AND r.dst_kind = ?)
	ORDER BY r.id`, id, kind, id, kind)
	if err != nil {
		return nil, fmt.Errorf("querying relationships: %w", err)
	}
	defer rows.Close()

	results := make([]store.Relationship, 0)
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating relationship rows: %w", err)
	}

	return results, nil
}

// Neighbors walks the graph breadth-first in both edge directions,
// deduplicating by entity id so cyclic graphs terminate. Depth 0 returns
// the entity itself.
func (c *Client) Neighbors(ctx context.Context, id int64, kind string, depth int) ([]store.EntityRef, error) {
	kind = strings.ToLower(kind)
	if depth < 0 {
		return nil, fmt.Errorf("%w: depth must not be negative", store.ErrValidation)
	}

	start, err := getEntity(ctx, c.db, id, kind)
	if err != nil {
		return nil, err
	}

	results := []store.EntityRef{{ID: start.ID, Kind: start.Kind, Title: start.Title, Depth: 0}}
	visited := map[int64]bool{start.ID: true}
	frontier := []int64{start.ID}

	for currentDepth := 1; currentDepth <= depth; currentDepth++ {
		if len(frontier) == 0 {
			break
		}

		placeholders := strings.Repeat("?,", len(frontier))
		placeholders = placeholders[:len(placeholders)-1]

		query := fmt.Sprintf(`
	SELECT r.src_id, s.kind, s.title, r.dst_id, d.kind, d.title
	FROM relationships r
	JOIN entities s ON r.src_id = s.id
	JOIN entities d ON r.dst_id = d.id
	WHERE r.src_id IN (%s) OR r.dst_id IN (%s)`, placeholders, placeholders)

		args := make([]any, 0, len(frontier)*2)
		for _, fid := range frontier {
			args = append(args, fid)
		}
		for _, fid := range frontier {
			args = append(args, fid)
		}

		rows, err := c.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("querying neighbors: %w", err)
		}

		inFrontier := make(map[int64]bool, len(frontier))
		for _, fid := range frontier {
			inFrontier[fid] = true
		}

		var newFrontier []int64
		for rows.Next() {
			var srcID, dstID int64
			var srcKind, srcTitle, dstKind, dstTitle string
			if err := rows.Scan(&srcID, &srcKind, &srcTitle, &dstID, &dstKind, &dstTitle); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning neighbor row: %w", err)
			}

			otherID, otherKind, otherTitle := dstID, dstKind, dstTitle
			if !inFrontier[srcID] {
				otherID, otherKind, otherTitle = srcID, srcKind, srcTitle
			}

			if visited[otherID] {
				continue
			}
			visited[otherID] = true
			results = append(results, store.EntityRef{ID: otherID, Kind: otherKind, Title: otherTitle, Depth: currentDepth})
			newFrontier = append(newFrontier, otherID)
		}
		rows.Close()

		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterating neighbor rows: %w", err)
		}

		frontier = newFrontier
	}

	return results, nil
}

func scanRelationship(rows *sql.Rows) (*store.Relationship, error) {
	var rel store.Relationship
	var metadataBytes []byte

	err := rows.Scan(&rel.ID, &rel.SourceID, &rel.SourceKind, &rel.SourceName,
		&rel.TargetID, &rel.TargetKind, &rel.TargetName,
		&rel.Type, &rel.Subtype, &rel.Strength, &metadataBytes)
	if err != nil {
		return nil, fmt.Errorf("scanning relationship: %w", err)
	}

	if len(metadataBytes) > 0 {
		if err := json.Unmarshal(metadataBytes, &rel.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}
	if rel.Metadata == nil {
		rel.Metadata = map[string]any{}
	}

	return &rel, nil
}
