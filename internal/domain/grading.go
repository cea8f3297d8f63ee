package domain

import (
	"context"

	"github.com/google/uuid"
)

// GradedDocument is a chunk after relevance grading. On fast and degraded
// paths the orchestrator synthesizes these directly from search results with
// fixed placeholder confidence values.
type GradedDocument struct {
	DocumentID      string
	ChunkID         uuid.UUID
	RelevanceScore  float32
	Confidence      float32
	Reasoning       string
	IsRelevant      bool
	SuggestedWeight float32
	Content         string
	Metadata        map[string]any
}

// GradeResult is the output of a grading pass.
type GradeResult struct {
	RelevantDocuments []GradedDocument
}

// DocumentGrader classifies chunks as relevant or irrelevant via a secondary
// judgment pass. Failures should be treated as non-fatal by callers: the
// degraded behavior is to treat every candidate as relevant.
type DocumentGrader interface {
	GradeAndFilter(ctx context.Context, query string, results []SearchResult, complexity *ComplexityAnalysis) (*GradeResult, error)
}
