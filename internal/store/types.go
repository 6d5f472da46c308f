package store

import "time"

type EntityInput struct {
	Kind   string
	Title  string
	Status string
	Attrs  map[string]any
	Body   string
}

// EntityPatch applies a partial update. Nil fields are left untouched;
// Attrs entries are merged key by key, with nil values removing the key.
type EntityPatch struct {
	Title  *string
	Status *string
	Attrs  map[string]any
	Body   *string
}

type Entity struct {
	ID        int64
	Kind      string
	Title     string
	Status    string
	Attrs     map[string]any
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type EntitySummary struct {
	ID     int64
	Kind   string
	Title  string
	Status string
}

type EntityRef struct {
	ID    int64
	Kind  string
	Title string
	Depth int
}

type RelationshipInput struct {
	SourceID   int64
	SourceKind string
	TargetID   int64
	TargetKind string
	Type       string
	Subtype    string
	Strength   int
	Metadata   map[string]any
}

type Relationship struct {
	ID         int64
	SourceID   int64
	SourceKind string
	SourceName string
	TargetID   int64
	TargetKind string
	TargetName string
	Type       string
	Subtype    string
	Strength   int
	Metadata   map[string]any
}

type Tag struct {
	ID         int64
	Name       string
	Category   string
	UsageCount int64
}

type TagAssignment struct {
	Name      string
	Category  string
	Relevance float64
}

type QueueInput struct {
	FilePath   string
	FileType   string
	SourceType string
	SourceHash string
	Metadata   map[string]any
}

type QueueItem struct {
	ID           int64
	FilePath     string
	FileType     string
	SourceType   string
	SourceHash   string
	Status       string
	ErrorMessage string
	Metadata     map[string]any
	CreatedAt    time.Time
	ProcessedAt  *time.Time
	CompletedAt  *time.Time
}

// Queue item statuses.
const (
	QueuePending    = "pending"
	QueueProcessing = "processing"
	QueueCompleted  = "completed"
	QueueFailed     = "failed"
	QueueArchived   = "archived"
)

type IndexEntry struct {
	ContentID      int64
	ContentKind    string
	Title          string
	SearchableText string
	TagText        string
	Facets         map[string]any
	BoostScore     float64
	UpdatedAt      time.Time
}

type SearchResult struct {
	ContentID   int64
	ContentKind string
	Title       string
	Score       float64
	BoostScore  float64
}

// ImportInput is the pipeline's atomic unit of work: one entity plus its
// declared tags and relationships, applied in a single transaction together
// with the search index refresh.
type ImportInput struct {
	Entity        EntityInput
	Tags          []ImportTag
	Relationships []ImportRelationship
}

type ImportTag struct {
	Name      string
	Category  string
	Relevance float64
}

// ImportRelationship names its target by title and kind because imported
// files reference entities that may have been created by earlier items.
type ImportRelationship struct {
	TargetTitle string
	TargetKind  string
	Type        string
	Subtype     string
	Strength    int
}

type ImportResult struct {
	EntityID int64
	Created  bool
	Edges    int
	Tags     int
}
