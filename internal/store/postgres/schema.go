package postgres

import (
	"context"
	"fmt"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	// All DDL is idempotent via IF NOT EXISTS and runs in one implicit
	// transaction.
	ddl := `
CREATE TABLE IF NOT EXISTS entities (
    id          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    kind        TEXT NOT NULL,
    title       TEXT NOT NULL,
    natural_key TEXT NOT NULL,
    status      TEXT NOT NULL DEFAULT 'draft',
    attrs       JSONB NOT NULL DEFAULT '{}',
    body        TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL,
    CONSTRAINT uq_entity_natural_key UNIQUE (kind, natural_key),
    CONSTRAINT ck_entity_status CHECK (status IN ('draft', 'review', 'published', 'archived'))
);

CREATE TABLE IF NOT EXISTS relationships (
    id          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    src_id      BIGINT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    src_kind    TEXT NOT NULL,
    dst_id      BIGINT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    dst_kind    TEXT NOT NULL,
    rel_type    TEXT NOT NULL,
    rel_subtype TEXT NOT NULL DEFAULT '',
    strength    INTEGER NOT NULL DEFAULT 1,
    metadata    JSONB NOT NULL DEFAULT '{}',
    created_at  TIMESTAMPTZ NOT NULL,
    CONSTRAINT uq_relationship UNIQUE (src_id, dst_id, rel_type),
    CONSTRAINT ck_no_self_loop CHECK (src_id <> dst_id),
    CONSTRAINT ck_strength CHECK (strength BETWEEN 1 AND 10)
);

CREATE TABLE IF NOT EXISTS tags (
    id          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    name        TEXT NOT NULL UNIQUE,
    category    TEXT NOT NULL DEFAULT 'general',
    usage_count BIGINT NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS content_tags (
    id           BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    content_id   BIGINT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    content_kind TEXT NOT NULL,
    tag_id       BIGINT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
    relevance    DOUBLE PRECISION NOT NULL DEFAULT 1.0,
    created_at   TIMESTAMPTZ NOT NULL,
    CONSTRAINT uq_content_tag UNIQUE (content_id, tag_id),
    CONSTRAINT ck_relevance CHECK (relevance BETWEEN 0.0 AND 1.0)
);

CREATE TABLE IF NOT EXISTS import_queue (
    id            BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    file_path     TEXT NOT NULL,
    file_type     TEXT NOT NULL DEFAULT '',
    source_type   TEXT NOT NULL DEFAULT '',
    source_hash   TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL DEFAULT 'pending',
    error_message TEXT NOT NULL DEFAULT '',
    metadata      JSONB NOT NULL DEFAULT '{}',
    created_at    TIMESTAMPTZ NOT NULL,
    processed_at  TIMESTAMPTZ,
    completed_at  TIMESTAMPTZ,
    CONSTRAINT ck_queue_status CHECK (status IN ('pending', 'processing', 'completed', 'failed', 'archived'))
);

CREATE TABLE IF NOT EXISTS search_index (
    content_id      BIGINT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    content_kind    TEXT NOT NULL,
    title           TEXT NOT NULL,
    searchable_text TEXT NOT NULL DEFAULT '',
    tag_text        TEXT NOT NULL DEFAULT '',
    facets          JSONB NOT NULL DEFAULT '{}',
    boost_score     DOUBLE PRECISION NOT NULL DEFAULT 1.0,
    updated_at      TIMESTAMPTZ NOT NULL,
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
CREATE INDEX IF NOT EXISTS idx_search_facets ON search_index USING GIN (facets);
`
	if _, err := c.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}
