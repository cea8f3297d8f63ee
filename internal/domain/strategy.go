package domain

// SearchStrategy selects the processing depth for a query pipeline run.
type SearchStrategy string

const (
	// FastVectorSearch skips reranking, compression, and grading for latency.
	FastVectorSearch SearchStrategy = "fast_vector_search"
	// StandardVectorSearch runs the full refinement pipeline.
	StandardVectorSearch SearchStrategy = "standard_vector_search"
	// ExpandedSearch adds hypothetical-answer recall on top of standard refinement.
	ExpandedSearch SearchStrategy = "expanded_search"
	// PageQueryStrategy retrieves against explicitly requested pages only.
	PageQueryStrategy SearchStrategy = "page_query"
)

// ParseSearchStrategy maps a raw tag to a known strategy.
// Unrecognized values fall back to StandardVectorSearch.
func ParseSearchStrategy(raw string) SearchStrategy {
	switch SearchStrategy(raw) {
	case FastVectorSearch, StandardVectorSearch, ExpandedSearch, PageQueryStrategy:
		return SearchStrategy(raw)
	default:
		return StandardVectorSearch
	}
}

// MaxQueryVariants returns the upper bound on search query variants for the strategy.
// PageQueryStrategy always issues exactly one variant: the raw query.
func (s SearchStrategy) MaxQueryVariants() int {
	switch s {
	case FastVectorSearch:
		return 3
	case ExpandedSearch:
		return 20
	case PageQueryStrategy:
		return 1
	default:
		return 15
	}
}

// QueryIntent is the upstream-classified intent of the user query.
type QueryIntent string

const (
	IntentDocumentQuestion QueryIntent = "document_question"
	IntentPageLookup       QueryIntent = "page_lookup"
	IntentSummary          QueryIntent = "summary"
	IntentGeneral          QueryIntent = "general"
)

// ComplexityAnalysis carries the upstream complexity classification of a query.
type ComplexityAnalysis struct {
	Level     string
	Score     float32
	Reasoning string
}

// QueryExtraction is the result of the upstream query-extraction step.
type QueryExtraction struct {
	// PageNumbers are explicit page references found in the query (1-indexed).
	PageNumbers []int
	// Keywords are salient terms extracted from the query.
	Keywords []string
	// RewrittenQueries are alternative phrasings used for multi-query fan-out.
	RewrittenQueries []string
	// HypotheticalAnswer is a HyDE-style synthetic answer used as an
	// additional search query on the expanded path.
	HypotheticalAnswer string
	// RequiresHypothetical flags whether the hypothetical answer should be issued.
	RequiresHypothetical bool
}
