package usecase

import (
	"dataroom-rag/internal/domain"

	"github.com/google/uuid"
)

const sourceExcerptLimit = 300

type sourceBuilder struct{}

// NewSourceBuilder creates the citation mapper. Pure mapping, no side effects.
func NewSourceBuilder() domain.SourceBuilder {
	return &sourceBuilder{}
}

// BuildSources maps graded documents plus the matching raw search results
// and document display metadata into citation records. Graded entries whose
// chunk has no matching raw result still produce a citation from the graded
// content alone.
func (b *sourceBuilder) BuildSources(graded []domain.GradedDocument, raw []domain.SearchResult, documents []domain.IndexedDocument) []domain.Source {
	rawByChunk := make(map[uuid.UUID]domain.SearchResult, len(raw))
	for _, res := range raw {
		if _, exists := rawByChunk[res.ChunkID]; !exists {
			rawByChunk[res.ChunkID] = res
		}
	}
	titleByDoc := make(map[string]string, len(documents))
	for _, doc := range documents {
		titleByDoc[doc.ID] = doc.Title
	}

	sources := make([]domain.Source, 0, len(graded))
	for _, g := range graded {
		if !g.IsRelevant {
			continue
		}
		content := g.Content
		metadata := g.Metadata
		if res, ok := rawByChunk[g.ChunkID]; ok {
			if content == "" {
				content = res.Content
			}
			if metadata == nil {
				metadata = res.Metadata
			}
		}
		sources = append(sources, domain.Source{
			ChunkID:    g.ChunkID,
			DocumentID: g.DocumentID,
			Title:      titleByDoc[g.DocumentID],
			Page:       pageFromMetadata(metadata),
			Excerpt:    truncateExcerpt(content, sourceExcerptLimit),
			Score:      g.RelevanceScore,
		})
	}
	return sources
}

func pageFromMetadata(metadata map[string]any) int {
	if metadata == nil {
		return 0
	}
	switch v := metadata["page"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func truncateExcerpt(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
