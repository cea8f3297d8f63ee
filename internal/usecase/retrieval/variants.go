package retrieval

import (
	"strings"

	"dataroom-rag/internal/domain"
)

// BuildQueryVariants constructs the search query fan-out set for a strategy.
// The raw query always comes first; rewritten queries fill the remaining
// per-strategy budget in order. ExpandedSearch additionally appends the
// hypothetical answer when the upstream analysis flags it as required.
// Variants are trimmed, empties dropped, exact duplicates removed.
func BuildQueryVariants(query string, extraction *domain.QueryExtraction, strategy domain.SearchStrategy) []string {
	maxVariants := strategy.MaxQueryVariants()

	candidates := []string{query}
	if extraction != nil && strategy != domain.PageQueryStrategy {
		remaining := maxVariants - 1
		rewrites := extraction.RewrittenQueries
		if len(rewrites) > remaining {
			rewrites = rewrites[:remaining]
		}
		candidates = append(candidates, rewrites...)

		if strategy == domain.ExpandedSearch && extraction.RequiresHypothetical && extraction.HypotheticalAnswer != "" {
			candidates = append(candidates, extraction.HypotheticalAnswer)
		}
	}

	seen := make(map[string]bool, len(candidates))
	variants := make([]string, 0, len(candidates))
	for _, c := range candidates {
		trimmed := strings.TrimSpace(c)
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		variants = append(variants, trimmed)
	}

	if len(variants) > maxVariants {
		variants = variants[:maxVariants]
	}
	return variants
}
