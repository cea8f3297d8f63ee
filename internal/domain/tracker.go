package domain

// MetadataTracker is the observability sink for one pipeline run. Created by
// the caller, started at pipeline entry, finalized on every exit path.
// Implementations must tolerate out-of-order stage calls.
type MetadataTracker interface {
	StartTotal()
	EndTotal()

	StartStage(stage string)
	EndStage(stage string)

	SetQueryAnalysis(intent string, complexity string)
	SetSearchStrategy(strategy string)
	SetTokenUsage(usage TokenUsage)
	SetError(kind, message string, retryable bool)

	// Finalize flushes the accumulated record. Safe to call exactly once.
	Finalize()
}
