package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"dataroom-rag/internal/domain"
	"dataroom-rag/internal/usecase/retrieval"

	"github.com/google/uuid"
)

const timeoutFallbackReason = "the request took too long to process"

type processQueryUsecase struct {
	searcher      domain.VectorSearcher
	reranker      domain.Reranker
	compressor    domain.ContextCompressor
	grader        domain.DocumentGrader
	sourceBuilder domain.SourceBuilder
	generator     domain.AnswerGenerator
	cfg           PipelineConfig
	logger        *slog.Logger
	disposed      atomic.Bool
}

// NewProcessQueryUsecase wires together the collaborators of the query
// pipeline. cfg is read-only for the lifetime of the orchestrator.
func NewProcessQueryUsecase(
	searcher domain.VectorSearcher,
	reranker domain.Reranker,
	compressor domain.ContextCompressor,
	grader domain.DocumentGrader,
	sourceBuilder domain.SourceBuilder,
	generator domain.AnswerGenerator,
	cfg PipelineConfig,
	logger *slog.Logger,
) ProcessQueryUsecase {
	return &processQueryUsecase{
		searcher:      searcher,
		reranker:      reranker,
		compressor:    compressor,
		grader:        grader,
		sourceBuilder: sourceBuilder,
		generator:     generator,
		cfg:           cfg,
		logger:        logger,
	}
}

// Dispose marks the orchestrator shut down. In-flight runs finish; new calls
// are rejected with ErrOrchestratorDisposed.
func (u *processQueryUsecase) Dispose() {
	u.disposed.Store(true)
}

func (u *processQueryUsecase) ProcessQuery(ctx context.Context, input ProcessQueryInput) (<-chan StreamEvent, error) {
	if u.disposed.Load() {
		return nil, ErrOrchestratorDisposed
	}
	if err := ctx.Err(); err != nil {
		return nil, &PipelineError{Kind: ErrorKindCancelled, Message: "cancelled by caller", Err: err}
	}
	if strings.TrimSpace(input.Query) == "" {
		return nil, &PipelineError{Kind: ErrorKindGeneric, Message: "query is required"}
	}

	// Correlation id is for tracing only; it has no semantic effect.
	correlationID := uuid.NewString()

	timeoutMs := input.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = DefaultTimeoutMs
	}

	strategy := domain.ParseSearchStrategy(string(input.Strategy))

	events := make(chan StreamEvent, 8)
	go func() {
		defer close(events)

		// Effective cancellation: caller signal OR the internal timer,
		// whichever fires first.
		runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
		defer cancel()

		if input.Tracker != nil {
			input.Tracker.StartTotal()
			input.Tracker.SetSearchStrategy(string(strategy))
			complexityLevel := ""
			if input.Complexity != nil {
				complexityLevel = input.Complexity.Level
			}
			input.Tracker.SetQueryAnalysis(string(input.Intent), complexityLevel)
			defer func() {
				input.Tracker.EndTotal()
				input.Tracker.Finalize()
			}()
		}

		u.logger.Info("query_pipeline_started",
			slog.String("correlation_id", correlationID),
			slog.String("strategy", string(strategy)),
			slog.String("dataroom_id", input.DataroomID),
			slog.Int("document_count", len(input.Documents)))

		err := u.run(runCtx, input, strategy, correlationID, events)
		if err == nil {
			return
		}

		perr := classifyError(ctx, runCtx, err)
		if input.Tracker != nil {
			input.Tracker.SetError(string(perr.Kind), perr.Message, perr.Retryable)
		}

		switch perr.Kind {
		case ErrorKindCancelled:
			// Caller cancellation is never masked as a fallback.
			u.logger.Info("query_pipeline_cancelled",
				slog.String("correlation_id", correlationID))
			// The caller context is already done, so the usual ctx-guarded
			// send would race. The channel is buffered and closed right
			// after, a non-blocking send is enough.
			select {
			case events <- StreamEvent{Kind: StreamEventKindError, Payload: perr}:
			default:
			}
			return
		case ErrorKindTimeout:
			u.streamFallback(ctx, events, timeoutFallbackReason, correlationID)
		case ErrorKindInvalidPage:
			u.streamFallback(ctx, events, perr.Message, correlationID)
		default:
			u.logger.Warn("query_pipeline_degraded",
				slog.String("correlation_id", correlationID),
				slog.String("kind", string(perr.Kind)),
				slog.String("error", perr.Error()))
			u.streamFallback(ctx, events, input.Query, correlationID)
		}
	}()

	return events, nil
}

func (u *processQueryUsecase) run(
	ctx context.Context,
	input ProcessQueryInput,
	strategy domain.SearchStrategy,
	correlationID string,
	events chan<- StreamEvent,
) error {
	// Page validation short-circuits retrieval entirely: the search
	// collaborator is never contacted with an out-of-range request.
	if perr := validatePageRequest(input.Documents, input.Extraction); perr != nil {
		return perr
	}

	variants := retrieval.BuildQueryVariants(input.Query, input.Extraction, strategy)
	filter := retrieval.BuildMetadataFilter(input.DataroomID, input.Documents, input.Extraction)
	params := u.cfg.ForStrategy(strategy)

	startStage(input.Tracker, "retrieval")
	merged := retrieval.FanOutSearch(ctx, u.searcher, variants, filter, retrieval.FanOutConfig{
		Params:  domain.SearchParams{ResultCount: params.ResultCount, SimilarityThreshold: params.SimilarityThreshold},
		Timeout: params.Timeout(),
	}, u.logger, correlationID)
	endStage(input.Tracker, "retrieval")

	if err := ctx.Err(); err != nil {
		return err
	}
	if len(merged) == 0 {
		return &PipelineError{
			Kind:      ErrorKindRetrieval,
			Message:   fmt.Sprintf("no content retrieved for query %q", input.Query),
			Retryable: true,
		}
	}

	var graded []domain.GradedDocument
	var contextText string
	var pages []int

	switch strategy {
	case domain.FastVectorSearch:
		graded = retrieval.SynthesizeFast(merged)
		contextText = retrieval.ConcatContents(merged)
	case domain.PageQueryStrategy:
		graded = retrieval.SynthesizePageMatch(merged)
		contextText = retrieval.ConcatContents(merged)
		if input.Extraction != nil {
			pages = input.Extraction.PageNumbers
		}
	default:
		startStage(input.Tracker, "refinement")
		outcome := retrieval.Refine(ctx, input.Query, merged, input.Complexity,
			u.reranker, u.compressor, u.grader, u.logger, correlationID)
		endStage(input.Tracker, "refinement")
		graded = outcome.Graded
		contextText = outcome.ContextText
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	sources := u.sourceBuilder.BuildSources(graded, merged, input.Documents)

	if !u.sendEvent(ctx, events, StreamEvent{Kind: StreamEventKindMeta, Payload: StreamMeta{
		CorrelationID: correlationID,
		Strategy:      strategy,
		Sources:       sources,
	}}) {
		return ctx.Err()
	}

	startStage(input.Tracker, "generation")
	defer endStage(input.Tracker, "generation")

	chunks, errs, err := u.generator.GenerateAnswer(ctx, domain.AnswerRequest{
		Query:         input.Query,
		ContextText:   contextText,
		History:       input.History,
		Sources:       sources,
		ChatSessionID: input.ChatSessionID,
		PageNumbers:   pages,
		Tracker:       input.Tracker,
	})
	if err != nil {
		return fmt.Errorf("generation setup failed: %w", err)
	}

	return u.pump(ctx, events, chunks, errs, correlationID, sources, false, "")
}

// pump forwards generation chunks to the event stream and emits the terminal
// done event once the stream completes.
func (u *processQueryUsecase) pump(
	ctx context.Context,
	events chan<- StreamEvent,
	chunks <-chan domain.AnswerChunk,
	errs <-chan error,
	correlationID string,
	sources []domain.Source,
	fallback bool,
	reason string,
) error {
	var sb strings.Builder
	var usage domain.TokenUsage

	for chunks != nil || errs != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			if chunk.Delta != "" {
				sb.WriteString(chunk.Delta)
				if !u.sendEvent(ctx, events, StreamEvent{Kind: StreamEventKindDelta, Payload: chunk.Delta}) {
					return ctx.Err()
				}
			}
			if chunk.Done {
				if chunk.Usage != nil {
					usage = *chunk.Usage
				}
				chunks = nil
			}
		case streamErr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			return fmt.Errorf("generation stream failed: %w", streamErr)
		}
	}

	// Both channels can close while ctx is already done, in which case the
	// select above may drain them without ever hitting the ctx case. Surface
	// the cancellation instead of closing the stream without a terminal event.
	if err := ctx.Err(); err != nil {
		return err
	}

	u.sendEvent(ctx, events, StreamEvent{Kind: StreamEventKindDone, Payload: &AnswerResult{
		Answer:        sb.String(),
		Sources:       sources,
		Fallback:      fallback,
		Reason:        reason,
		Usage:         usage,
		CorrelationID: correlationID,
	}})
	return nil
}

// streamFallback degrades the run into a successful, human-readable answer.
// The availability requirement outweighs precision under partial failure.
func (u *processQueryUsecase) streamFallback(ctx context.Context, events chan<- StreamEvent, reason, correlationID string) {
	if !u.sendEvent(ctx, events, StreamEvent{Kind: StreamEventKindFallback, Payload: reason}) {
		return
	}

	fallbackCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	chunks, errs, err := u.generator.GenerateFallback(fallbackCtx, reason)
	if err != nil {
		u.logger.Error("fallback_generation_failed",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()))
		u.sendEvent(ctx, events, StreamEvent{Kind: StreamEventKindError, Payload: &PipelineError{
			Kind:    ErrorKindGeneric,
			Message: "fallback generation failed",
			Err:     err,
		}})
		return
	}

	if err := u.pump(fallbackCtx, events, chunks, errs, correlationID, nil, true, reason); err != nil {
		u.logger.Warn("fallback_stream_interrupted",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()))
	}
}

func (u *processQueryUsecase) sendEvent(ctx context.Context, events chan<- StreamEvent, event StreamEvent) bool {
	select {
	case <-ctx.Done():
		return false
	case events <- event:
		return true
	}
}

func startStage(tracker domain.MetadataTracker, stage string) {
	if tracker != nil {
		tracker.StartStage(stage)
	}
}

func endStage(tracker domain.MetadataTracker, stage string) {
	if tracker != nil {
		tracker.EndStage(stage)
	}
}
