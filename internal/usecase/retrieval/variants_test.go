package retrieval_test

import (
	"fmt"
	"testing"

	"dataroom-rag/internal/domain"
	"dataroom-rag/internal/usecase/retrieval"

	"github.com/stretchr/testify/assert"
)

func manyRewrites(n int) []string {
	rewrites := make([]string, n)
	for i := range rewrites {
		rewrites[i] = fmt.Sprintf("rewrite %d", i)
	}
	return rewrites
}

func TestBuildQueryVariants_RawQueryAlwaysFirst(t *testing.T) {
	extraction := &domain.QueryExtraction{RewrittenQueries: []string{"alt one", "alt two"}}

	variants := retrieval.BuildQueryVariants("original", extraction, domain.StandardVectorSearch)

	assert.Equal(t, []string{"original", "alt one", "alt two"}, variants)
}

func TestBuildQueryVariants_StrategyBudgets(t *testing.T) {
	extraction := &domain.QueryExtraction{RewrittenQueries: manyRewrites(30)}

	tests := []struct {
		strategy domain.SearchStrategy
		max      int
	}{
		{domain.FastVectorSearch, 3},
		{domain.StandardVectorSearch, 15},
		{domain.ExpandedSearch, 20},
		{domain.PageQueryStrategy, 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			variants := retrieval.BuildQueryVariants("q", extraction, tt.strategy)
			assert.LessOrEqual(t, len(variants), tt.max)
			assert.Equal(t, "q", variants[0])
		})
	}
}

func TestBuildQueryVariants_PageQueryIgnoresRewrites(t *testing.T) {
	extraction := &domain.QueryExtraction{RewrittenQueries: []string{"alt"}}

	variants := retrieval.BuildQueryVariants("page 3 contents", extraction, domain.PageQueryStrategy)

	assert.Equal(t, []string{"page 3 contents"}, variants)
}

func TestBuildQueryVariants_ExpandedAppendsHypothetical(t *testing.T) {
	extraction := &domain.QueryExtraction{
		RewrittenQueries:     []string{"alt"},
		HypotheticalAnswer:   "the revenue grew by 10% in 2025",
		RequiresHypothetical: true,
	}

	variants := retrieval.BuildQueryVariants("revenue growth", extraction, domain.ExpandedSearch)

	assert.Contains(t, variants, "the revenue grew by 10% in 2025")
}

func TestBuildQueryVariants_HypotheticalNotRequired(t *testing.T) {
	extraction := &domain.QueryExtraction{
		HypotheticalAnswer:   "synthetic",
		RequiresHypothetical: false,
	}

	variants := retrieval.BuildQueryVariants("q", extraction, domain.ExpandedSearch)

	assert.NotContains(t, variants, "synthetic")
}

func TestBuildQueryVariants_HypotheticalOnlyOnExpanded(t *testing.T) {
	extraction := &domain.QueryExtraction{
		HypotheticalAnswer:   "synthetic",
		RequiresHypothetical: true,
	}

	variants := retrieval.BuildQueryVariants("q", extraction, domain.StandardVectorSearch)

	assert.NotContains(t, variants, "synthetic")
}

func TestBuildQueryVariants_DropsEmptyAndDuplicates(t *testing.T) {
	extraction := &domain.QueryExtraction{
		RewrittenQueries: []string{"  ", "q", "alt", "alt"},
	}

	variants := retrieval.BuildQueryVariants("q", extraction, domain.StandardVectorSearch)

	assert.Equal(t, []string{"q", "alt"}, variants)
}
