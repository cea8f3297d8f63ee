package tracker

import (
	"log/slog"
	"sync"
	"time"

	"dataroom-rag/internal/domain"
)

// QueryTracker accumulates per-stage timings, strategy choice, token usage,
// and the terminal error of one pipeline run, and flushes the record as a
// single structured log event on Finalize.
type QueryTracker struct {
	mu sync.Mutex

	logger *slog.Logger

	totalStart time.Time
	totalMs    int64
	stageStart map[string]time.Time
	stageMs    map[string]int64

	intent     string
	complexity string
	strategy   string

	usage domain.TokenUsage

	errKind      string
	errMessage   string
	errRetryable bool

	finalized bool
}

// NewQueryTracker creates a tracker for a single request lifetime.
func NewQueryTracker(logger *slog.Logger) *QueryTracker {
	return &QueryTracker{
		logger:     logger,
		stageStart: make(map[string]time.Time),
		stageMs:    make(map[string]int64),
	}
}

func (t *QueryTracker) StartTotal() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalStart = time.Now()
}

func (t *QueryTracker) EndTotal() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.totalStart.IsZero() {
		t.totalMs = time.Since(t.totalStart).Milliseconds()
	}
}

func (t *QueryTracker) StartStage(stage string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stageStart[stage] = time.Now()
}

func (t *QueryTracker) EndStage(stage string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if start, ok := t.stageStart[stage]; ok {
		t.stageMs[stage] = time.Since(start).Milliseconds()
	}
}

func (t *QueryTracker) SetQueryAnalysis(intent string, complexity string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.intent = intent
	t.complexity = complexity
}

func (t *QueryTracker) SetSearchStrategy(strategy string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.strategy = strategy
}

func (t *QueryTracker) SetTokenUsage(usage domain.TokenUsage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usage = usage
}

func (t *QueryTracker) SetError(kind, message string, retryable bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errKind = kind
	t.errMessage = message
	t.errRetryable = retryable
}

// Finalize flushes the accumulated record. Subsequent calls are no-ops.
func (t *QueryTracker) Finalize() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finalized {
		return
	}
	t.finalized = true

	attrs := []any{
		slog.Int64("total_ms", t.totalMs),
		slog.String("strategy", t.strategy),
		slog.String("intent", t.intent),
		slog.String("complexity", t.complexity),
		slog.Int("prompt_tokens", t.usage.PromptTokens),
		slog.Int("completion_tokens", t.usage.CompletionTokens),
	}
	for stage, ms := range t.stageMs {
		attrs = append(attrs, slog.Int64(stage+"_ms", ms))
	}
	if t.errKind != "" {
		attrs = append(attrs,
			slog.String("error_kind", t.errKind),
			slog.String("error_message", t.errMessage),
			slog.Bool("error_retryable", t.errRetryable))
	}

	t.logger.Info("query_metadata", attrs...)
}

// Snapshot returns the stage timings recorded so far. Intended for tests.
func (t *QueryTracker) Snapshot() (totalMs int64, stages map[string]int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	stages = make(map[string]int64, len(t.stageMs))
	for k, v := range t.stageMs {
		stages[k] = v
	}
	return t.totalMs, stages
}

var _ domain.MetadataTracker = (*QueryTracker)(nil)
