package retrieval

import (
	"context"
	"log/slog"
	"time"

	"dataroom-rag/internal/domain"

	"github.com/google/uuid"
)

// FanOutConfig holds the per-strategy retrieval parameters.
type FanOutConfig struct {
	Params domain.SearchParams
	// Timeout is the per-variant ceiling each search call is raced against.
	Timeout time.Duration
}

// BuildMetadataFilter scopes a search by dataroom id and the allow-listed
// document ids. The page restriction is applied only when the extraction
// step found explicit page numbers, so generic queries are never
// accidentally page-restricted.
func BuildMetadataFilter(dataroomID string, documents []domain.IndexedDocument, extraction *domain.QueryExtraction) domain.MetadataFilter {
	filter := domain.MetadataFilter{
		DataroomID:  dataroomID,
		DocumentIDs: make([]string, 0, len(documents)),
	}
	for _, doc := range documents {
		filter.DocumentIDs = append(filter.DocumentIDs, doc.ID)
	}
	if extraction != nil && len(extraction.PageNumbers) > 0 {
		filter.Pages = extraction.PageNumbers
	}
	return filter
}

// FanOutSearch issues one concurrent search call per query variant, each
// raced independently against cfg.Timeout, and merges the results in variant
// order with first-occurrence-wins deduplication by chunk id. A single
// variant's failure or timeout yields an empty list for that variant only;
// partial retrieval failure never aborts the batch.
func FanOutSearch(
	ctx context.Context,
	searcher domain.VectorSearcher,
	variants []string,
	filter domain.MetadataFilter,
	cfg FanOutConfig,
	logger *slog.Logger,
	correlationID string,
) []domain.SearchResult {
	searchStart := time.Now()
	batches := make([][]domain.SearchResult, len(variants))

	done := make(chan int, len(variants))
	for i, variant := range variants {
		go func(idx int, query string) {
			defer func() { done <- idx }()

			variantCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			results, err := searcher.Search(variantCtx, query, filter, cfg.Params)
			if err != nil {
				logger.Warn("variant_search_failed",
					slog.String("correlation_id", correlationID),
					slog.Int("variant_index", idx),
					slog.String("error", err.Error()))
				return
			}
			batches[idx] = results
		}(i, variant)
	}
	for range variants {
		<-done
	}

	merged := MergeResults(batches)

	logger.Info("variant_search_completed",
		slog.String("correlation_id", correlationID),
		slog.Int("variant_count", len(variants)),
		slog.Int("merged_count", len(merged)),
		slog.Int64("duration_ms", time.Since(searchStart).Milliseconds()))

	return merged
}

// MergeResults concatenates variant batches in variant-issue order and
// deduplicates by chunk id, keeping the first occurrence encountered.
func MergeResults(batches [][]domain.SearchResult) []domain.SearchResult {
	seen := make(map[uuid.UUID]bool)
	var merged []domain.SearchResult
	for _, batch := range batches {
		for _, res := range batch {
			if seen[res.ChunkID] {
				continue
			}
			seen[res.ChunkID] = true
			merged = append(merged, res)
		}
	}
	return merged
}
