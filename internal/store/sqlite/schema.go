package sqlite

import (
	"context"
	"fmt"
	"strings"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS entities (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		kind        TEXT NOT NULL,
		title       TEXT NOT NULL,
		natural_key TEXT NOT NULL,
		status      TEXT NOT NULL DEFAULT 'draft',
		attrs       TEXT NOT NULL DEFAULT '{}',
		body        TEXT NOT NULL DEFAULT '',
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL,
		CONSTRAINT uq_entity_natural_key UNIQUE (kind, natural_key),
		CONSTRAINT ck_entity_status CHECK (status IN ('draft', 'review', 'published', 'archived'))
	);

	CREATE TABLE IF NOT EXISTS relationships (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		src_id      INTEGER NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
		src_kind    TEXT NOT NULL,
		dst_id      INTEGER NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
		dst_kind    TEXT NOT NULL,
		rel_type    TEXT NOT NULL,
		rel_subtype TEXT NOT NULL DEFAULT '',
		strength    INTEGER NOT NULL DEFAULT 1,
		metadata    TEXT NOT NULL DEFAULT '{}',
		created_at  TEXT NOT NULL,
		CONSTRAINT uq_relationship UNIQUE (src_id, dst_id, rel_type),
		CONSTRAINT ck_no_self_loop CHECK (src_id <> dst_id),
		CONSTRAINT ck_strength CHECK (strength BETWEEN 1 AND 10)
	);

	CREATE TABLE IF NOT EXISTS tags (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT NOT NULL UNIQUE,
		category    TEXT NOT NULL DEFAULT 'general',
		usage_count INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS content_tags (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		content_id   INTEGER NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
		content_kind TEXT NOT NULL,
		tag_id       INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
		relevance    REAL NOT NULL DEFAULT 1.0,
		created_at   TEXT NOT NULL,
		CONSTRAINT uq_content_tag UNIQUE (content_id, tag_id),
		CONSTRAINT ck_relevance CHECK (relevance BETWEEN 0.0 AND 1.0)
	);

	CREATE TABLE IF NOT EXISTS import_queue (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		file_path     TEXT NOT NULL,
		file_type     TEXT NOT NULL DEFAULT '',
		source_type   TEXT NOT NULL DEFAULT '',
		source_hash   TEXT NOT NULL DEFAULT '',
		status        TEXT NOT NULL DEFAULT 'pending',
		error_message TEXT NOT NULL DEFAULT '',
		metadata      TEXT NOT NULL DEFAULT '{}',
		created_at    TEXT NOT NULL,
		processed_at  TEXT,
		completed_at  TEXT,
		CONSTRAINT ck_queue_status CHECK (status IN ('pending', 'processing', 'completed', 'failed', 'archived'))
	);

	CREATE TABLE IF NOT EXISTS search_index (
		content_id      INTEGER NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
		content_kind    TEXT NOT NULL,
		title           TEXT NOT NULL,
		searchable_text TEXT NOT NULL DEFAULT '',
		tag_text        TEXT NOT NULL DEFAULT '',
		facets          TEXT NOT NULL DEFAULT '{}',
		boost_score     REAL NOT NULL DEFAULT 1.0,
		updated_at      TEXT NOT NULL,
		PRIMARY KEY (content_id, content_kind)
	);

	CREATE INDEX IF NOT EXISTS idx_entities_kind ON entities (kind);
	CREATE INDEX IF NOT EXISTS idx_entities_status ON entities (status);
	CREATE INDEX IF NOT EXISTS idx_entities_kind_title ON entities (kind, title);
	CREATE INDEX IF NOT EXISTS idx_relationships_src ON relationships (src_id);
	CREATE INDEX IF NOT EXISTS idx_relationships_dst ON relationships (dst_id);
	CREATE INDEX IF NOT EXISTS idx_relationships_type ON relationships (rel_type);
	CREATE INDEX IF NOT EXISTS idx_content_tags_content ON content_tags (content_id);
	CREATE INDEX IF NOT EXISTS idx_content_tags_tag ON content_tags (tag_id);
	CREATE INDEX IF NOT EXISTS idx_tags_category ON tags (category);
	CREATE INDEX IF NOT EXISTS idx_queue_status ON import_queue (status);
	CREATE INDEX IF NOT EXISTS idx_queue_status_created ON import_queue (status, created_at);
	CREATE INDEX IF NOT EXISTS idx_queue_path ON import_queue (file_path);
	`

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(ddl) {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema transaction: %w", err)
	}

	return nil
}

func splitStatements(ddl string) []string {
	var statements []string
	var current strings.Builder

	for _, line := range strings.Split(ddl, "\n") {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")

		if strings.HasSuffix(stripped, ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}

	if current.Len() > 0 {
		statements = append(statements, current.String())
	}

	return statements
}
