package usecase

import (
	"time"

	"dataroom-rag/internal/domain"
)

// StrategyConfig holds the search parameters for one processing strategy.
type StrategyConfig struct {
	ResultCount         int
	SimilarityThreshold float32
	// TimeoutMs is the per-variant ceiling each search call is raced against.
	TimeoutMs int
}

// Timeout returns the per-variant search ceiling as a duration.
func (c StrategyConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// PipelineConfig carries the per-strategy search parameters. Read-only after
// initialization; constructed once at process start and passed by reference
// into the orchestrator.
type PipelineConfig struct {
	Fast      StrategyConfig
	Standard  StrategyConfig
	Expanded  StrategyConfig
	PageQuery StrategyConfig
}

// DefaultPipelineConfig returns the production defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Fast:      StrategyConfig{ResultCount: 10, SimilarityThreshold: 0.5, TimeoutMs: 45000},
		Standard:  StrategyConfig{ResultCount: 20, SimilarityThreshold: 0.4, TimeoutMs: 50000},
		Expanded:  StrategyConfig{ResultCount: 30, SimilarityThreshold: 0.3, TimeoutMs: 55000},
		PageQuery: StrategyConfig{ResultCount: 20, SimilarityThreshold: 0.0, TimeoutMs: 50000},
	}
}

// ForStrategy resolves the parameters for a strategy tag.
func (c PipelineConfig) ForStrategy(strategy domain.SearchStrategy) StrategyConfig {
	switch strategy {
	case domain.FastVectorSearch:
		return c.Fast
	case domain.ExpandedSearch:
		return c.Expanded
	case domain.PageQueryStrategy:
		return c.PageQuery
	default:
		return c.Standard
	}
}
