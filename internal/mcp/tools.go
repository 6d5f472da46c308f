package mcp

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"mythforge/internal/config"
)

type SearchContentInput struct {
	Query    string `json:"query" jsonschema:"search terms"`
	Kind     string `json:"kind,omitempty" jsonschema:"restrict to a specific entity kind"`
	Status   string `json:"status,omitempty" jsonschema:"restrict to a lifecycle status"`
	Culture  string `json:"culture,omitempty" jsonschema:"restrict to a culture"`
	Pantheon string `json:"pantheon,omitempty" jsonschema:"restrict to a pantheon"`
}

type GetEntityInput struct {
	Title string `json:"title" jsonschema:"entity title"`
	Kind  string `json:"kind" jsonschema:"entity kind"`
}

type GetRelationshipsInput struct {
	Title string `json:"title" jsonschema:"starting entity title"`
	Kind  string `json:"kind" jsonschema:"starting entity kind"`
	Depth int    `json:"depth,omitempty" jsonschema:"maximum traversal depth"`
}

type ListEntitiesInput struct {
	Kind   string `json:"kind,omitempty" jsonschema:"entity kind filter"`
	Status string `json:"status,omitempty" jsonschema:"status filter"`
	Tag    string `json:"tag,omitempty" jsonschema:"tag filter"`
}

type GetTagsInput struct {
	Category string `json:"category,omitempty" jsonschema:"tag category filter"`
}

type QueueStatusInput struct {
	Status string `json:"status,omitempty" jsonschema:"queue status filter"`
}

type GetSchemaInput struct{}

type EntityOutput struct {
	ID     int64          `json:"id"`
	Kind   string         `json:"kind"`
	Title  string         `json:"title"`
	Status string         `json:"status"`
	Attrs  map[string]any `json:"attrs"`
	Body   string         `json:"body"`
	Tags   []TagOutput    `json:"tags"`
}

type TagOutput struct {
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Relevance float64 `json:"relevance"`
}

type EntitySummaryOutput struct {
	ID     int64  `json:"id"`
	Kind   string `json:"kind"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

type NeighborOutput struct {
	ID    int64  `json:"id"`
	Kind  string `json:"kind"`
	Title string `json:"title"`
	Depth int    `json:"depth"`
}

type RelationshipOutput struct {
	Type     string `json:"type"`
	Subtype  string `json:"subtype,omitempty"`
	Strength int    `json:"strength"`
	Source   string `json:"source"`
	Target   string `json:"target"`
}

type SearchResultOutput struct {
	ID    int64   `json:"id"`
	Kind  string  `json:"kind"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

type SearchContentOutput struct {
	Results []SearchResultOutput `json:"results"`
}

type GetRelationshipsOutput struct {
	Relationships []RelationshipOutput `json:"relationships"`
	Neighbors     []NeighborOutput     `json:"neighbors"`
}

type ListEntitiesOutput struct {
	Entities []EntitySummaryOutput `json:"entities"`
}

type GetTagsOutput struct {
	Tags []TagUsageOutput `json:"tags"`
}

type TagUsageOutput struct {
	Name       string `json:"name"`
	Category   string `json:"category"`
	UsageCount int64  `json:"usage_count"`
}

type QueueStatusOutput struct {
	Items []QueueItemOutput `json:"items"`
}

type QueueItemOutput struct {
	ID           int64  `json:"id"`
	FilePath     string `json:"file_path"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type SchemaOutput struct {
	Version           int                      `json:"version"`
	Kinds             []KindOutput             `json:"kinds"`
	RelationshipTypes []RelationshipTypeOutput `json:"relationship_types"`
	TagCategories     []string                 `json:"tag_categories"`
}

type KindOutput struct {
	Name       string           `json:"name"`
	NaturalKey []string         `json:"natural_key"`
	Required   []string         `json:"required"`
	Taggable   bool             `json:"taggable"`
	Properties []PropertyOutput `json:"properties"`
}

type PropertyOutput struct {
	Name   string   `json:"name"`
	Type   string   `json:"type"`
	Values []string `json:"values,omitempty"`
}

type RelationshipTypeOutput struct {
	Name      string `json:"name"`
	Inverse   string `json:"inverse,omitempty"`
	Symmetric bool   `json:"symmetric,omitempty"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "search_content",
		Description: "Search indexed content by title, tags, and body text",
	}, s.handleSearchContent)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_entity",
		Description: "Retrieve an entity with its attributes and tags",
	}, s.handleGetEntity)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_relationships",
		Description: "Traverse relationships outward from an entity",
	}, s.handleGetRelationships)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_entities",
		Description: "List entities with optional kind, status, and tag filters",
	}, s.handleListEntities)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_tags",
		Description: "List tags with usage counts",
	}, s.handleGetTags)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "queue_status",
		Description: "Inspect the import queue",
	}, s.handleQueueStatus)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_schema",
		Description: "Return the current content schema",
	}, s.handleGetSchema)
}

func (s *Server) handleSearchContent(ctx context.Context, req *sdk.CallToolRequest, input SearchContentInput) (*sdk.CallToolResult, SearchContentOutput, error) {
	if input.Query == "" {
		return nil, SearchContentOutput{}, fmt.Errorf("query is required")
	}

	facets := map[string]string{}
	if input.Kind != "" {
		facets["kind"] = strings.ToLower(input.Kind)
	}
	if input.Status != "" {
		facets["status"] = strings.ToLower(input.Status)
	}
	if input.Culture != "" {
		facets["culture"] = input.Culture
	}
	if input.Pantheon != "" {
		facets["pantheon"] = input.Pantheon
	}

	results, err := s.db.Search(ctx, input.Query, facets)
	if err != nil {
		return nil, SearchContentOutput{}, err
	}

	output := make([]SearchResultOutput, 0, len(results))
	for _, result := range results {
		output = append(output, SearchResultOutput{
			ID:    result.ContentID,
			Kind:  result.ContentKind,
			Title: result.Title,
			Score: result.Score,
		})
	}
	return nil, SearchContentOutput{Results: output}, nil
}

func (s *Server) handleGetEntity(ctx context.Context, req *sdk.CallToolRequest, input GetEntityInput) (*sdk.CallToolResult, EntityOutput, error) {
	if input.Title == "" || input.Kind == "" {
		return nil, EntityOutput{}, fmt.Errorf("title and kind are required")
	}

	entity, err := s.db.FindEntity(ctx, input.Kind, input.Title)
	if err != nil {
		return nil, EntityOutput{}, err
	}

	tags, err := s.db.TagsFor(ctx, entity.ID, entity.Kind)
	if err != nil {
		return nil, EntityOutput{}, err
	}

	out := EntityOutput{
		ID:     entity.ID,
		Kind:   entity.Kind,
		Title:  entity.Title,
		Status: entity.Status,
		Attrs:  entity.Attrs,
		Body:   entity.Body,
		Tags:   make([]TagOutput, 0, len(tags)),
	}
	for _, tag := range tags {
		out.Tags = append(out.Tags, TagOutput{Name: tag.Name, Category: tag.Category, Relevance: tag.Relevance})
	}
	return nil, out, nil
}

func (s *Server) handleGetRelationships(ctx context.Context, req *sdk.CallToolRequest, input GetRelationshipsInput) (*sdk.CallToolResult, GetRelationshipsOutput, error) {
	if input.Title == "" || input.Kind == "" {
		return nil, GetRelationshipsOutput{}, fmt.Errorf("title and kind are required")
	}
	depth := input.Depth
	if depth == 0 {
		depth = 1
	}

	entity, err := s.db.FindEntity(ctx, input.Kind, input.Title)
	if err != nil {
		return nil, GetRelationshipsOutput{}, err
	}

	rels, err := s.db.RelationshipsOf(ctx, entity.ID, entity.Kind)
	if err != nil {
		return nil, GetRelationshipsOutput{}, err
	}
	neighbors, err := s.db.Neighbors(ctx, entity.ID, entity.Kind, depth)
	if err != nil {
		return nil, GetRelationshipsOutput{}, err
	}

	out := GetRelationshipsOutput{
		Relationships: make([]RelationshipOutput, 0, len(rels)),
		Neighbors:     make([]NeighborOutput, 0, len(neighbors)),
	}
	for _, rel := range rels {
		out.Relationships = append(out.Relationships, RelationshipOutput{
			Type:     rel.Type,
			Subtype:  rel.Subtype,
			Strength: rel.Strength,
			Source:   rel.SourceName,
			Target:   rel.TargetName,
		})
	}
	for _, ref := range neighbors {
		out.Neighbors = append(out.Neighbors, NeighborOutput{ID: ref.ID, Kind: ref.Kind, Title: ref.Title, Depth: ref.Depth})
	}
	return nil, out, nil
}

func (s *Server) handleListEntities(ctx context.Context, req *sdk.CallToolRequest, input ListEntitiesInput) (*sdk.CallToolResult, ListEntitiesOutput, error) {
	items, err := s.db.ListEntities(ctx, strings.ToLower(input.Kind), strings.ToLower(input.Status), input.Tag)
	if err != nil {
		return nil, ListEntitiesOutput{}, err
	}

	output := make([]EntitySummaryOutput, 0, len(items))
	for _, item := range items {
		output = append(output, EntitySummaryOutput{ID: item.ID, Kind: item.Kind, Title: item.Title, Status: item.Status})
	}
	return nil, ListEntitiesOutput{Entities: output}, nil
}

func (s *Server) handleGetTags(ctx context.Context, req *sdk.CallToolRequest, input GetTagsInput) (*sdk.CallToolResult, GetTagsOutput, error) {
	tags, err := s.db.ListTags(ctx, input.Category)
	if err != nil {
		return nil, GetTagsOutput{}, err
	}

	output := make([]TagUsageOutput, 0, len(tags))
	for _, tag := range tags {
		output = append(output, TagUsageOutput{Name: tag.Name, Category: tag.Category, UsageCount: tag.UsageCount})
	}
	return nil, GetTagsOutput{Tags: output}, nil
}

func (s *Server) handleQueueStatus(ctx context.Context, req *sdk.CallToolRequest, input QueueStatusInput) (*sdk.CallToolResult, QueueStatusOutput, error) {
	items, err := s.db.ListQueueItems(ctx, strings.ToLower(input.Status))
	if err != nil {
		return nil, QueueStatusOutput{}, err
	}

	output := make([]QueueItemOutput, 0, len(items))
	for _, item := range items {
		output = append(output, QueueItemOutput{
			ID:           item.ID,
			FilePath:     item.FilePath,
			Status:       item.Status,
			ErrorMessage: item.ErrorMessage,
		})
	}
	return nil, QueueStatusOutput{Items: output}, nil
}

func (s *Server) handleGetSchema(ctx context.Context, req *sdk.CallToolRequest, input GetSchemaInput) (*sdk.CallToolResult, SchemaOutput, error) {
	return nil, schemaOutputFromConfig(s.schema), nil
}

func schemaOutputFromConfig(schema *config.Schema) SchemaOutput {
	if schema == nil {
		return SchemaOutput{}
	}

	out := SchemaOutput{
		Version:           schema.Version,
		Kinds:             make([]KindOutput, 0, len(schema.Kinds)),
		RelationshipTypes: make([]RelationshipTypeOutput, 0, len(schema.RelationshipTypes)),
		TagCategories:     append([]string{}, schema.TagCategories...),
	}

	for _, kind := range schema.Kinds {
		kindOut := KindOutput{
			Name:       kind.Name,
			NaturalKey: append([]string{}, kind.NaturalKey...),
			Required:   append([]string{}, kind.Required...),
			Taggable:   kind.Taggable,
			Properties: make([]PropertyOutput, 0, len(kind.Properties)),
		}
		for _, prop := range kind.Properties {
			kindOut.Properties = append(kindOut.Properties, PropertyOutput{
				Name:   prop.Name,
				Type:   prop.Type,
				Values: prop.Values,
			})
		}
		out.Kinds = append(out.Kinds, kindOut)
	}

	for _, rel := range schema.RelationshipTypes {
		out.RelationshipTypes = append(out.RelationshipTypes, RelationshipTypeOutput{
			Name:      rel.Name,
			Inverse:   rel.Inverse,
			Symmetric: rel.Symmetric,
		})
	}

	return out
}
