package domain

import (
	"context"
	"time"
)

// ChatRecord is one completed answer persisted against a chat session.
type ChatRecord struct {
	SessionID string
	Query     string
	Answer    string
	Sources   []Source
	Usage     TokenUsage
	Fallback  bool
	CreatedAt time.Time
}

// ChatStore persists completed answers. Persistence is best-effort: callers
// log and swallow failures, they never surface through the response.
type ChatStore interface {
	Append(ctx context.Context, record ChatRecord) error
	History(ctx context.Context, sessionID string, limit int) ([]ChatRecord, error)
}
