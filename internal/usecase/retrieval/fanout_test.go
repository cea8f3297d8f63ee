package retrieval_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"dataroom-rag/internal/domain"
	"dataroom-rag/internal/usecase/retrieval"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// stubSearcher routes each query to a canned response. Safe for concurrent use.
type stubSearcher struct {
	mu        sync.Mutex
	responses map[string][]domain.SearchResult
	errs      map[string]error
	calls     []string
}

func (s *stubSearcher) Search(ctx context.Context, query string, filter domain.MetadataFilter, params domain.SearchParams) ([]domain.SearchResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, query)
	s.mu.Unlock()
	if err := s.errs[query]; err != nil {
		return nil, err
	}
	return s.responses[query], nil
}

func result(id uuid.UUID, content string, score float32) domain.SearchResult {
	return domain.SearchResult{DocumentID: "doc-1", ChunkID: id, Content: content, Score: score}
}

func fanOutConfig() retrieval.FanOutConfig {
	return retrieval.FanOutConfig{
		Params:  domain.SearchParams{ResultCount: 10, SimilarityThreshold: 0.4},
		Timeout: time.Second,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestFanOutSearch_MergesInVariantOrder(t *testing.T) {
	shared := uuid.New()
	only2 := uuid.New()

	searcher := &stubSearcher{
		responses: map[string][]domain.SearchResult{
			"variant a": {result(shared, "from a", 0.9)},
			"variant b": {result(shared, "from b", 0.8), result(only2, "unique to b", 0.7)},
		},
	}

	merged := retrieval.FanOutSearch(context.Background(), searcher,
		[]string{"variant a", "variant b"}, domain.MetadataFilter{}, fanOutConfig(),
		discardLogger(), "corr-1")

	// The shared chunk keeps its first occurrence, from variant a.
	assert.Len(t, merged, 2)
	assert.Equal(t, "from a", merged[0].Content)
	assert.Equal(t, only2, merged[1].ChunkID)
}

func TestFanOutSearch_VariantFailureIsIsolated(t *testing.T) {
	good := uuid.New()
	searcher := &stubSearcher{
		responses: map[string][]domain.SearchResult{
			"healthy": {result(good, "survivor", 0.9)},
		},
		errs: map[string]error{
			"broken": errors.New("search backend down"),
		},
	}

	merged := retrieval.FanOutSearch(context.Background(), searcher,
		[]string{"broken", "healthy"}, domain.MetadataFilter{}, fanOutConfig(),
		discardLogger(), "corr-2")

	assert.Len(t, merged, 1)
	assert.Equal(t, good, merged[0].ChunkID)
}

// blockingSearcher blocks the named variant until its per-variant context
// expires; every other variant answers immediately.
type blockingSearcher struct {
	slowQuery string
	results   []domain.SearchResult
}

func (s *blockingSearcher) Search(ctx context.Context, query string, filter domain.MetadataFilter, params domain.SearchParams) ([]domain.SearchResult, error) {
	if query == s.slowQuery {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.results, nil
}

func TestFanOutSearch_SlowVariantTimesOut_SiblingsUnaffected(t *testing.T) {
	fast := uuid.New()
	searcher := &blockingSearcher{
		slowQuery: "slow variant",
		results:   []domain.SearchResult{result(fast, "survivor", 0.9)},
	}

	cfg := retrieval.FanOutConfig{
		Params:  domain.SearchParams{ResultCount: 10, SimilarityThreshold: 0.4},
		Timeout: 100 * time.Millisecond,
	}

	start := time.Now()
	merged := retrieval.FanOutSearch(context.Background(), searcher,
		[]string{"slow variant", "fast variant"}, domain.MetadataFilter{}, cfg,
		discardLogger(), "corr-timeout")
	elapsed := time.Since(start)

	// The slow variant's timeout drops only its own batch.
	assert.Len(t, merged, 1)
	assert.Equal(t, fast, merged[0].ChunkID)
	// The call returns once the per-variant ceiling fires, not later.
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestFanOutSearch_AllVariantsFail_ReturnsEmpty(t *testing.T) {
	searcher := &stubSearcher{
		errs: map[string]error{
			"a": errors.New("down"),
			"b": errors.New("down"),
		},
	}

	merged := retrieval.FanOutSearch(context.Background(), searcher,
		[]string{"a", "b"}, domain.MetadataFilter{}, fanOutConfig(),
		discardLogger(), "corr-3")

	assert.Empty(t, merged)
}

func TestMergeResults_FirstOccurrenceWins(t *testing.T) {
	dup := uuid.New()
	batches := [][]domain.SearchResult{
		{result(dup, "first", 0.5)},
		{result(dup, "second", 0.99)},
	}

	merged := retrieval.MergeResults(batches)

	assert.Len(t, merged, 1)
	assert.Equal(t, "first", merged[0].Content)
	assert.Equal(t, float32(0.5), merged[0].Score)
}

func TestBuildMetadataFilter_PagesOnlyWhenExtracted(t *testing.T) {
	documents := []domain.IndexedDocument{{ID: "doc-1"}, {ID: "doc-2"}}

	noPages := retrieval.BuildMetadataFilter("dr-1", documents, &domain.QueryExtraction{})
	assert.Equal(t, []string{"doc-1", "doc-2"}, noPages.DocumentIDs)
	assert.Nil(t, noPages.Pages)

	withPages := retrieval.BuildMetadataFilter("dr-1", documents, &domain.QueryExtraction{PageNumbers: []int{2, 5}})
	assert.Equal(t, []int{2, 5}, withPages.Pages)

	nilExtraction := retrieval.BuildMetadataFilter("dr-1", documents, nil)
	assert.Nil(t, nilExtraction.Pages)
}
