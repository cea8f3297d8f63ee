package domain

import "github.com/google/uuid"

// IndexedDocument is the allow-listed document metadata a query is scoped to.
type IndexedDocument struct {
	ID        string
	Title     string
	PageCount int
}

// Source is a citation record consumed by answer generation.
type Source struct {
	ChunkID    uuid.UUID
	DocumentID string
	Title      string
	Page       int
	Excerpt    string
	Score      float32
}

// SourceBuilder maps graded documents plus the raw search results and the
// owning documents' display metadata into citation records. Pure mapping, no
// side effects.
type SourceBuilder interface {
	BuildSources(graded []GradedDocument, raw []SearchResult, documents []IndexedDocument) []Source
}
