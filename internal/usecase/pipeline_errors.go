package usecase

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a terminal pipeline failure.
type ErrorKind string

const (
	ErrorKindDisposed    ErrorKind = "disposed"
	ErrorKindCancelled   ErrorKind = "cancelled"
	ErrorKindTimeout     ErrorKind = "timeout"
	ErrorKindInvalidPage ErrorKind = "invalid_page"
	ErrorKindRetrieval   ErrorKind = "retrieval"
	ErrorKindGeneric     ErrorKind = "generic"
)

// ErrOrchestratorDisposed rejects calls made after Dispose.
var ErrOrchestratorDisposed = errors.New("orchestrator has been disposed")

// PipelineError is a classified terminal error. Only cancelled and disposed
// kinds cross the pipeline boundary as errors; every other kind is converted
// into a streamed fallback answer.
type PipelineError struct {
	Kind      ErrorKind
	Message   string
	Retryable bool
	Err       error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// classifyError decides how a pipeline failure crosses the boundary.
// callerCtx distinguishes a user cancel from the internal timeout timer:
// the caller must be able to tell the two apart.
func classifyError(callerCtx, runCtx context.Context, err error) *PipelineError {
	var perr *PipelineError
	if errors.As(err, &perr) {
		return perr
	}
	if callerCtx.Err() != nil {
		return &PipelineError{Kind: ErrorKindCancelled, Message: "cancelled by caller", Err: err}
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &PipelineError{Kind: ErrorKindTimeout, Message: "query processing took too long", Retryable: true, Err: err}
	}
	return &PipelineError{Kind: ErrorKindGeneric, Message: err.Error(), Retryable: false, Err: err}
}
