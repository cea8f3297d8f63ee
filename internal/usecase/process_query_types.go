package usecase

import (
	"context"

	"dataroom-rag/internal/domain"
)

// DefaultTimeoutMs is applied when the caller does not set a deadline.
const DefaultTimeoutMs = 50000

// ProcessQueryInput encapsulates one query pipeline run. Immutable after
// construction; owned exclusively by that run.
type ProcessQueryInput struct {
	Query         string
	DataroomID    string
	Documents     []domain.IndexedDocument
	History       []domain.ChatMessage
	Strategy      domain.SearchStrategy
	Intent        domain.QueryIntent
	Complexity    *domain.ComplexityAnalysis
	Extraction    *domain.QueryExtraction
	TimeoutMs     int
	ChatSessionID string
	Tracker       domain.MetadataTracker
}

// ProcessQueryUsecase is the sole entry point of the orchestrator.
type ProcessQueryUsecase interface {
	// ProcessQuery returns a streaming answer on every reachable path except
	// two fatal conditions: the orchestrator has been disposed, or the caller
	// cancelled before any event was produced. All other failures degrade
	// into a streamed fallback answer.
	ProcessQuery(ctx context.Context, input ProcessQueryInput) (<-chan StreamEvent, error)

	// Dispose shuts the orchestrator down; subsequent calls are rejected.
	Dispose()
}

type StreamEventKind string

const (
	StreamEventKindMeta     StreamEventKind = "meta"
	StreamEventKindDelta    StreamEventKind = "delta"
	StreamEventKindDone     StreamEventKind = "done"
	StreamEventKindFallback StreamEventKind = "fallback"
	StreamEventKindError    StreamEventKind = "error"
)

type StreamEvent struct {
	Kind    StreamEventKind
	Payload interface{}
}

// StreamMeta is emitted once before the first delta of a grounded answer.
type StreamMeta struct {
	CorrelationID string
	Strategy      domain.SearchStrategy
	Sources       []domain.Source
}

// AnswerResult is the terminal payload of a completed stream.
type AnswerResult struct {
	Answer        string
	Sources       []domain.Source
	Fallback      bool
	Reason        string
	Usage         domain.TokenUsage
	CorrelationID string
}
