package retrieval

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"dataroom-rag/internal/domain"

	"golang.org/x/sync/errgroup"
)

const (
	fastPathConfidence  = 0.8
	pageMatchConfidence = 0.9
	pageMatchScore      = 0.9
)

// RefineOutcome carries the refined chunk set into source building and
// generation.
type RefineOutcome struct {
	Graded []domain.GradedDocument
	// ContextText is the compressed blob, or the concatenation of the
	// reranked chunk contents when compression was skipped or failed.
	ContextText     string
	CompressionUsed bool
}

// Refine runs reranking and context compression concurrently, then grading
// on the reranked set. Each stage's failure is isolated and logged, never
// fatal: compression failure falls back to the raw concatenation of the
// reranked contents, grading failure treats every reranked result as
// relevant.
func Refine(
	ctx context.Context,
	query string,
	results []domain.SearchResult,
	complexity *domain.ComplexityAnalysis,
	reranker domain.Reranker,
	compressor domain.ContextCompressor,
	grader domain.DocumentGrader,
	logger *slog.Logger,
	correlationID string,
) *RefineOutcome {
	reranked := results
	var compressed *domain.CompressedContext

	refineStart := time.Now()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		out, err := reranker.Rerank(gctx, query, results)
		if err != nil {
			logger.Warn("reranking_failed_keeping_original_order",
				slog.String("correlation_id", correlationID),
				slog.String("error", err.Error()))
			return nil // non-fatal
		}
		reranked = out
		return nil
	})

	g.Go(func() error {
		out, err := compressor.Compress(gctx, query, results, complexity)
		if err != nil {
			logger.Warn("compression_failed_using_raw_content",
				slog.String("correlation_id", correlationID),
				slog.String("error", err.Error()))
			return nil // non-fatal
		}
		compressed = out
		return nil
	})

	_ = g.Wait()

	outcome := &RefineOutcome{}
	if compressed != nil && compressed.Content != "" {
		outcome.ContextText = compressed.Content
		outcome.CompressionUsed = true
	} else {
		outcome.ContextText = ConcatContents(reranked)
	}

	graded, err := grader.GradeAndFilter(ctx, query, reranked, complexity)
	if err != nil {
		logger.Warn("grading_failed_treating_all_relevant",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()))
		outcome.Graded = gradeAllRelevant(reranked)
	} else {
		outcome.Graded = graded.RelevantDocuments
	}

	logger.Info("refinement_completed",
		slog.String("correlation_id", correlationID),
		slog.Int("reranked_count", len(reranked)),
		slog.Int("graded_count", len(outcome.Graded)),
		slog.Bool("compression_used", outcome.CompressionUsed),
		slog.Int64("duration_ms", time.Since(refineStart).Milliseconds()))

	return outcome
}

// SynthesizeFast turns raw search results into graded documents without
// calling the grading collaborator, to minimize latency on the fast path.
func SynthesizeFast(results []domain.SearchResult) []domain.GradedDocument {
	graded := make([]domain.GradedDocument, 0, len(results))
	for _, res := range results {
		graded = append(graded, domain.GradedDocument{
			DocumentID:      res.DocumentID,
			ChunkID:         res.ChunkID,
			RelevanceScore:  res.Score,
			Confidence:      fastPathConfidence,
			Reasoning:       "fast path",
			IsRelevant:      true,
			SuggestedWeight: res.Score,
			Content:         res.Content,
			Metadata:        res.Metadata,
		})
	}
	return graded
}

// SynthesizePageMatch turns page-scoped raw results into graded documents
// for the page-query path. The similarity score falls back to a fixed value
// when the search engine did not report one.
func SynthesizePageMatch(results []domain.SearchResult) []domain.GradedDocument {
	graded := make([]domain.GradedDocument, 0, len(results))
	for _, res := range results {
		score := res.Score
		if score == 0 {
			score = pageMatchScore
		}
		graded = append(graded, domain.GradedDocument{
			DocumentID:      res.DocumentID,
			ChunkID:         res.ChunkID,
			RelevanceScore:  score,
			Confidence:      pageMatchConfidence,
			Reasoning:       "direct page match",
			IsRelevant:      true,
			SuggestedWeight: score,
			Content:         res.Content,
			Metadata:        res.Metadata,
		})
	}
	return graded
}

// ConcatContents joins chunk contents in their current order.
func ConcatContents(results []domain.SearchResult) string {
	var sb strings.Builder
	for i, res := range results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(res.Content)
	}
	return sb.String()
}

func gradeAllRelevant(results []domain.SearchResult) []domain.GradedDocument {
	graded := make([]domain.GradedDocument, 0, len(results))
	for _, res := range results {
		graded = append(graded, domain.GradedDocument{
			DocumentID:      res.DocumentID,
			ChunkID:         res.ChunkID,
			RelevanceScore:  res.Score,
			Confidence:      0.5,
			Reasoning:       "grading unavailable",
			IsRelevant:      true,
			SuggestedWeight: res.Score,
			Content:         res.Content,
			Metadata:        res.Metadata,
		})
	}
	return graded
}
