package store

import "context"

// Store is the combined entity/relationship/tag/queue/search persistence
// layer. Both backends enforce the same invariants: natural-key uniqueness
// per kind, no self-loop edges, unique (source, target, type) edges,
// transactionally maintained tag usage counts, and compare-and-swap queue
// claims.
type Store interface {
	Close(ctx context.Context) error
	EnsureSchema(ctx context.Context) error

	// Entities.
	CreateEntity(ctx context.Context, e EntityInput) (int64, error)
	UpdateEntity(ctx context.Context, id int64, kind string, patch EntityPatch) error
	GetEntity(ctx context.Context, id int64, kind string) (*Entity, error)
	FindEntity(ctx context.Context, kind, title string) (*Entity, error)
	DeleteEntity(ctx context.Context, id int64, kind string) error
	ListEntities(ctx context.Context, kind, status, tag string) ([]EntitySummary, error)

	// Relationships.
	Link(ctx context.Context, r RelationshipInput) (int64, error)
	Unlink(ctx context.Context, relationshipID int64) error
	RelationshipsOf(ctx context.Context, id int64, kind string) ([]Relationship, error)
	Neighbors(ctx context.Context, id int64, kind string, depth int) ([]EntityRef, error)

	// Tags.
	Tag(ctx context.Context, contentID int64, contentKind, tagName, category string, relevance float64) error
	Untag(ctx context.Context, contentID int64, contentKind, tagName string) error
	TagsFor(ctx context.Context, contentID int64, contentKind string) ([]TagAssignment, error)
	UsageCount(ctx context.Context, tagName string) (int64, error)
	ListTags(ctx context.Context, category string) ([]Tag, error)

	// Import queue.
	Enqueue(ctx context.Context, item QueueInput) (int64, error)
	Claim(ctx context.Context, itemID int64) error
	Complete(ctx context.Context, itemID int64) error
	Fail(ctx context.Context, itemID int64, errorMessage string) error
	Archive(ctx context.Context, itemID int64) error
	PendingItems(ctx context.Context, limit int) ([]QueueItem, error)
	ListQueueItems(ctx context.Context, status string) ([]QueueItem, error)
	GetQueueItem(ctx context.Context, itemID int64) (*QueueItem, error)
	CompletedHashes(ctx context.Context) (map[string]string, error)

	// Search index.
	RefreshIndex(ctx context.Context, contentID int64, contentKind string) error
	GetIndexEntry(ctx context.Context, contentID int64, contentKind string) (*IndexEntry, error)
	Search(ctx context.Context, query string, facets map[string]string) ([]SearchResult, error)

	// ImportEntity runs the pipeline's atomic core: upsert the entity by
	// natural key, replace its declared tags and relationships, and refresh
	// its search index entry, all in one transaction.
	ImportEntity(ctx context.Context, in ImportInput) (*ImportResult, error)
}
