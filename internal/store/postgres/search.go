package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"mythforge/internal/store"
)

func (c *Client) RefreshIndex(ctx context.Context, contentID int64, contentKind string) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := c.refreshIndexTx(ctx, tx, contentID, strings.ToLower(contentKind)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// refreshIndexTx rebuilds the search document from the entity and tag rows
// visible inside tx. Idempotent; calling it twice is a plain recomputation.
func (c *Client) refreshIndexTx(ctx context.Context, tx pgx.Tx, contentID int64, contentKind string) error {
	entity, err := getEntity(ctx, tx, contentID, contentKind)
	if err != nil {
		return err
	}

	tags, err := tagsFor(ctx, tx, contentID, contentKind)
	if err != nil {
		return err
	}

	entry := store.BuildIndexEntry(entity, tags, c.now().UTC())

	facetsJSON, err := json.Marshal(entry.Facets)
	if err != nil {
		return fmt.Errorf("marshaling facets: %w", err)
	}

	_, err = tx.Exec(ctx, `
INSERT INTO search_index (content_id, content_kind, title, searchable_text, tag_text, facets, boost_score, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (content_id, content_kind) DO UPDATE SET
    title = excluded.title,
    searchable_text = excluded.searchable_text,
    tag_text = excluded.tag_text,
    facets = excluded.facets,
    boost_score = excluded.boost_score,
    updated_at = excluded.updated_at`,
		entry.ContentID, entry.ContentKind, entry.Title, entry.SearchableText,
		entry.TagText, facetsJSON, entry.BoostScore, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting index entry: %w", err)
	}
	return nil
}

func (c *Client) GetIndexEntry(ctx context.Context, contentID int64, contentKind string) (*store.IndexEntry, error) {
	row := c.pool.QueryRow(ctx, `
SELECT content_id, content_kind, title, searchable_text, tag_text, facets, boost_score, updated_at
FROM search_index
WHERE content_id = $1 AND content_kind = $2`, contentID, strings.ToLower(contentKind))

	var entry store.IndexEntry
	var facetsBytes []byte
	err := row.Scan(&entry.ContentID, &entry.ContentKind, &entry.Title, &entry.SearchableText,
		&entry.TagText, &facetsBytes, &entry.BoostScore, &entry.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: index entry %s %d", store.ErrNotFound, contentKind, contentID)
	}
	if err != nil {
		return nil, fmt.Errorf("getting index entry: %w", err)
	}

	if len(facetsBytes) > 0 {
		if err := json.Unmarshal(facetsBytes, &entry.Facets); err != nil {
			return nil, fmt.Errorf("unmarshaling facets: %w", err)
		}
	}
	if entry.Facets == nil {
		entry.Facets = map[string]any{}
	}

	return &entry, nil
}

// Search ranks substring matches with title weight 3, tags weight 2, and
// body text weight 1, breaking ties by boost score then recency.
func (c *Client) Search(ctx context.Context, query string, facets map[string]string) ([]store.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query must not be empty", store.ErrValidation)
	}

	sqlQuery := `
SELECT content_id, content_kind, title, boost_score, updated_at,
    (CASE WHEN position(lower($1) IN lower(title)) > 0 THEN 3.0 ELSE 0.0 END) +
    (CASE WHEN position(lower($1) IN lower(tag_text)) > 0 THEN 2.0 ELSE 0.0 END) +
    (CASE WHEN position(lower($1) IN lower(searchable_text)) > 0 THEN 1.0 ELSE 0.0 END) AS score
FROM search_index
WHERE position(lower($1) IN lower(searchable_text)) > 0
   OR position(lower($1) IN lower(title)) > 0
   OR position(lower($1) IN lower(tag_text)) > 0`
	args := []any{query}

	keys := make([]string, 0, len(facets))
	for key := range facets {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	// Scalar facets match by equality; list facets (themes) by membership.
	paramIndex := 2
	for _, key := range keys {
		sqlQuery += fmt.Sprintf(`
  AND (facets->>$%d = $%d OR facets->$%d ? $%d)`,
			paramIndex, paramIndex+1, paramIndex, paramIndex+1)
		args = append(args, key, facets[key])
		paramIndex += 2
	}

	sqlQuery += `
ORDER BY score DESC, boost_score DESC, updated_at DESC, title ASC
LIMIT 50`

	rows, err := c.pool.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}
	defer rows.Close()

	results := make([]store.SearchResult, 0)
	for rows.Next() {
		var r store.SearchResult
		var updatedAt time.Time
		if err := rows.Scan(&r.ContentID, &r.ContentKind, &r.Title, &r.BoostScore, &updatedAt, &r.Score); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}

	return results, nil
}
