package domain

import "context"

// ChatMessage is a single turn of conversation history.
type ChatMessage struct {
	Role    string
	Content string
}

// TokenUsage reports token consumption for one generation call.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
}

// LLMStreamChunk is one incremental piece of a streaming LLM response.
// Usage fields are populated only on the final chunk (Done = true).
type LLMStreamChunk struct {
	Response string
	Done     bool
	Usage    *TokenUsage
}

// LLMClient defines the low-level streaming inference transport.
type LLMClient interface {
	// ChatStream sends the messages and streams the assistant response.
	// The chunk channel is closed after the final (Done) chunk; a single
	// terminal error may be delivered on the error channel instead.
	ChatStream(ctx context.Context, messages []ChatMessage, maxTokens int) (<-chan LLMStreamChunk, <-chan error, error)

	Version() string
}

// AnswerRequest carries everything a grounded generation call needs.
type AnswerRequest struct {
	Query         string
	ContextText   string
	History       []ChatMessage
	Sources       []Source
	ChatSessionID string
	// PageNumbers, when set, restricts the answer to the validated pages.
	PageNumbers []int
	Tracker     MetadataTracker
}

// AnswerChunk is one increment of a streaming answer. Usage is populated on
// the final chunk only.
type AnswerChunk struct {
	Delta string
	Done  bool
	Usage *TokenUsage
}

// AnswerGenerator is the answer-generation collaborator. All three entry
// points stream the answer immediately; persistence of the final text is
// best-effort and never surfaces through the stream.
type AnswerGenerator interface {
	// GenerateAnswer streams a grounded answer with citations.
	GenerateAnswer(ctx context.Context, req AnswerRequest) (<-chan AnswerChunk, <-chan error, error)

	// GenerateFallback streams an ungrounded degraded answer for the given
	// reason or raw query text.
	GenerateFallback(ctx context.Context, reasonOrQuery string) (<-chan AnswerChunk, <-chan error, error)

	// GenerateSimple streams an answer driven by an arbitrary system prompt.
	GenerateSimple(ctx context.Context, systemPrompt, prompt string) (<-chan AnswerChunk, <-chan error, error)
}
