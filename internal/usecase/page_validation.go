package usecase

import (
	"fmt"
	"strings"

	"dataroom-rag/internal/domain"
)

// validatePageRequest checks explicit page numbers against the maximum page
// count across the allow-listed documents. It must run, and must
// short-circuit retrieval entirely when it fails, before any search call.
// Returns nil when no pages were requested or all are in range.
func validatePageRequest(documents []domain.IndexedDocument, extraction *domain.QueryExtraction) *PipelineError {
	if extraction == nil || len(extraction.PageNumbers) == 0 {
		return nil
	}

	maxPages := 0
	titles := make([]string, 0, len(documents))
	for _, doc := range documents {
		if doc.PageCount > maxPages {
			maxPages = doc.PageCount
		}
		titles = append(titles, doc.Title)
	}

	var invalid []int
	for _, page := range extraction.PageNumbers {
		if page < 1 || page > maxPages {
			invalid = append(invalid, page)
		}
	}
	if len(invalid) == 0 {
		return nil
	}

	pages := make([]string, len(invalid))
	for i, p := range invalid {
		pages[i] = fmt.Sprintf("%d", p)
	}
	return &PipelineError{
		Kind: ErrorKindInvalidPage,
		Message: fmt.Sprintf(
			"requested page %s is out of range; valid pages are 1 to %d for: %s",
			strings.Join(pages, ", "), maxPages, strings.Join(titles, ", ")),
		Retryable: false,
	}
}
