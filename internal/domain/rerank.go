package domain

import "context"

// Reranker reorders retrieved chunks by a secondary cross-encoder relevance
// signal. If an error occurs, callers should fall back to the original order.
type Reranker interface {
	// Rerank returns the input results reordered by relevance descending.
	Rerank(ctx context.Context, query string, results []SearchResult) ([]SearchResult, error)

	// ModelName returns the model identifier for logging.
	ModelName() string
}
