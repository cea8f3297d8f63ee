package domain

import (
	"context"

	"github.com/google/uuid"
)

// SearchResult represents a chunk returned by vector search, including its
// similarity score. The orchestrator's only invariant on it is uniqueness by
// ChunkID after merging.
type SearchResult struct {
	DocumentID string
	ChunkID    uuid.UUID
	Content    string
	Score      float32
	Metadata   map[string]any
}

// SearchParams are the per-strategy knobs passed to the search collaborator.
type SearchParams struct {
	ResultCount         int
	SimilarityThreshold float32
}

// MetadataFilter scopes a vector search. DataroomID and DocumentIDs are
// always set; Pages is set only when the query carried explicit page numbers.
type MetadataFilter struct {
	DataroomID  string
	DocumentIDs []string
	Pages       []int
}

// VectorSearcher defines the vector-similarity search collaborator.
type VectorSearcher interface {
	// Search returns ranked chunks for a single query string within the
	// given scope. Results are sorted by similarity descending.
	Search(ctx context.Context, query string, filter MetadataFilter, params SearchParams) ([]SearchResult, error)
}
