package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"dataroom-rag/internal/domain"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// CachedSearcher decorates a VectorSearcher with a bounded LRU result cache
// and an optional rate limit on outbound searches. Multi-variant fan-out
// repeatedly issues near-identical scoped searches, so a small cache absorbs
// a large share of the load.
type CachedSearcher struct {
	inner   domain.VectorSearcher
	cache   *lru.Cache[string, []domain.SearchResult]
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewCachedSearcher wraps inner. ratePerSec <= 0 disables rate limiting.
func NewCachedSearcher(inner domain.VectorSearcher, size int, ratePerSec float64, logger *slog.Logger) (*CachedSearcher, error) {
	cache, err := lru.New[string, []domain.SearchResult](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create search cache: %w", err)
	}

	var limiter *rate.Limiter
	if ratePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), 1)
	}

	return &CachedSearcher{
		inner:   inner,
		cache:   cache,
		limiter: limiter,
		logger:  logger,
	}, nil
}

func (s *CachedSearcher) Search(ctx context.Context, query string, filter domain.MetadataFilter, params domain.SearchParams) ([]domain.SearchResult, error) {
	key := cacheKey(query, filter, params)
	if cached, ok := s.cache.Get(key); ok {
		s.logger.Debug("search_cache_hit", slog.String("query", query))
		out := make([]domain.SearchResult, len(cached))
		copy(out, cached)
		return out, nil
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait interrupted: %w", err)
		}
	}

	results, err := s.inner.Search(ctx, query, filter, params)
	if err != nil {
		return nil, err
	}

	stored := make([]domain.SearchResult, len(results))
	copy(stored, results)
	s.cache.Add(key, stored)

	return results, nil
}

func cacheKey(query string, filter domain.MetadataFilter, params domain.SearchParams) string {
	var sb strings.Builder
	sb.WriteString(query)
	sb.WriteString("|")
	sb.WriteString(filter.DataroomID)
	sb.WriteString("|")
	sb.WriteString(strings.Join(filter.DocumentIDs, ","))
	sb.WriteString("|")
	for _, p := range filter.Pages {
		fmt.Fprintf(&sb, "%d,", p)
	}
	fmt.Fprintf(&sb, "|%d|%.3f", params.ResultCount, params.SimilarityThreshold)
	return sb.String()
}
