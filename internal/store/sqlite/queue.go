package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"mythforge/internal/store"
)

func (c *Client) Enqueue(ctx context.Context, item store.QueueInput) (int64, error) {
	if strings.TrimSpace(item.FilePath) == "" {
		return 0, fmt.Errorf("%w: file path is required", store.ErrValidation)
	}

	metadataJSON, err := json.Marshal(orEmptyMap(item.Metadata))
	if err != nil {
		return 0, fmt.Errorf("marshaling metadata: %w", err)
	}

	var id int64
	err = c.db.QueryRowContext(ctx, `
	INSERT INTO import_queue (file_path, file_type, source_type, source_hash, status, metadata, created_at)
	VALUES (?, ?, ?, ?, 'pending', ?, ?)
	RETURNING id`,
		item.FilePath, item.FileType, item.SourceType, item.SourceHash, metadataJSON, c.timestamp(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("enqueueing item: %w", err)
	}
	return id, nil
}

// Claim transitions pending -> processing with a conditional update. The
// single affected-row check is what keeps two workers from processing the
// same item.
func (c *Client) Claim(ctx context.Context, itemID int64) error {
	result, err := c.db.ExecContext(ctx, `
	UPDATE import_queue SET status = 'processing', processed_at = ?
	WHERE id = ? AND status = 'pending'`,
		c.timestamp(), itemID,
	)
	if err != nil {
		return fmt.Errorf("claiming item: %w", err)
	}
	return c.checkTransition(ctx, result, itemID, "claim")
}

func (c *Client) Complete(ctx context.Context, itemID int64) error {
	result, err := c.db.ExecContext(ctx, `
	UPDATE import_queue SET status = 'completed', completed_at = ?
	WHERE id = ? AND status = 'processing'`,
		c.timestamp(), itemID,
	)
	if err != nil {
		return fmt.Errorf("completing item: %w", err)
	}
	return c.checkTransition(ctx, result, itemID, "complete")
}

// Fail is terminal: failed items keep their error message for operator
// inspection and are never retried automatically.
func (c *Client) Fail(ctx context.Context, itemID int64, errorMessage string) error {
	result, err := c.db.ExecContext(ctx, `
	UPDATE import_queue SET status = 'failed', error_message = ?, completed_at = ?
	WHERE id = ? AND status = 'processing'`,
		errorMessage, c.timestamp(), itemID,
	)
	if err != nil {
		return fmt.Errorf("failing item: %w", err)
	}
	return c.checkTransition(ctx, result, itemID, "fail")
}

// Archive is an operator-only transition, allowed from terminal states.
func (c *Client) Archive(ctx context.Context, itemID int64) error {
	result, err := c.db.ExecContext(ctx, `
	UPDATE import_queue SET status = 'archived'
	WHERE id = ? AND status IN ('completed', 'failed')`,
		itemID,
	)
	if err != nil {
		return fmt.Errorf("archiving item: %w", err)
	}
	return c.checkTransition(ctx, result, itemID, "archive")
}

func (c *Client) checkTransition(ctx context.Context, result sql.Result, itemID int64, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	item, err := c.GetQueueItem(ctx, itemID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: cannot %s item %d in status %s", store.ErrInvalidState, op, itemID, item.Status)
}

func (c *Client) PendingItems(ctx context.Context, limit int) ([]store.QueueItem, error) {
	query := `
	SELECT id, file_path, file_type, source_type, source_hash, status, error_message, metadata, created_at, processed_at, completed_at
	FROM import_queue
	WHERE status = 'pending'
	ORDER BY created_at, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return c.queryQueueItems(ctx, query, args...)
}

func (c *Client) ListQueueItems(ctx context.Context, status string) ([]store.QueueItem, error) {
	return c.queryQueueItems(ctx, `
	SELECT id, file_path, file_type, source_type, source_hash, status, error_message, metadata, created_at, processed_at, completed_at
	FROM import_queue
	WHERE (? = '' OR status = ?)
	ORDER BY created_at, id`, status, status)
}

func (c *Client) GetQueueItem(ctx context.Context, itemID int64) (*store.QueueItem, error) {
	items, err := c.queryQueueItems(ctx, `
	SELECT id, file_path, file_type, source_type, source_hash, status, error_message, metadata, created_at, processed_at, completed_at
	FROM import_queue
	WHERE id = ?`, itemID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: queue item %d", store.ErrNotFound, itemID)
	}
	return &items[0], nil
}

// CompletedHashes maps file paths to the source hash of their most recent
// completed import, used by ingest to skip unchanged files.
func (c *Client) CompletedHashes(ctx context.Context) (map[string]string, error) {
	rows, err := c.db.QueryContext(ctx, `
	SELECT file_path, source_hash FROM import_queue
	WHERE status = 'completed' AND source_hash <> ''
	ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("querying completed hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, fmt.Errorf("scanning completed hash: %w", err)
		}
		hashes[path] = hash
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating completed hashes: %w", err)
	}

	return hashes, nil
}

func (c *Client) queryQueueItems(ctx context.Context, query string, args ...any) ([]store.QueueItem, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying queue items: %w", err)
	}
	defer rows.Close()

	items := make([]store.QueueItem, 0)
	for rows.Next() {
		var item store.QueueItem
		var metadataBytes []byte
		var createdAt string
		var processedAt, completedAt sql.NullString

		err := rows.Scan(&item.ID, &item.FilePath, &item.FileType, &item.SourceType, &item.SourceHash,
			&item.Status, &item.ErrorMessage, &metadataBytes, &createdAt, &processedAt, &completedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning queue item: %w", err)
		}

		if len(metadataBytes) > 0 {
			if err := json.Unmarshal(metadataBytes, &item.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshaling metadata: %w", err)
			}
		}
		if item.Metadata == nil {
			item.Metadata = map[string]any{}
		}

		if item.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		if processedAt.Valid {
			t, err := parseTimestamp(processedAt.String)
			if err != nil {
				return nil, err
			}
			item.ProcessedAt = &t
		}
		if completedAt.Valid {
			t, err := parseTimestamp(completedAt.String)
			if err != nil {
				return nil, err
			}
			item.CompletedAt = &t
		}

		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating queue items: %w", err)
	}

	return items, nil
}
