package usecase_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"dataroom-rag/internal/domain"
	"dataroom-rag/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockLLMClient
type mockLLMClient struct {
	mock.Mock
}

func (m *mockLLMClient) ChatStream(ctx context.Context, messages []domain.ChatMessage, maxTokens int) (<-chan domain.LLMStreamChunk, <-chan error, error) {
	args := m.Called(ctx, messages, maxTokens)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(<-chan domain.LLMStreamChunk), args.Get(1).(<-chan error), args.Error(2)
}

func (m *mockLLMClient) Version() string {
	return "mock-llm"
}

// recordingPersister captures enqueued records for assertions.
type recordingPersister struct {
	mu      sync.Mutex
	records []domain.ChatRecord
}

func (p *recordingPersister) Enqueue(record domain.ChatRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, record)
}

func (p *recordingPersister) snapshot() []domain.ChatRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.ChatRecord(nil), p.records...)
}

func llmStream(usage *domain.TokenUsage, parts ...string) (<-chan domain.LLMStreamChunk, <-chan error) {
	chunks := make(chan domain.LLMStreamChunk, len(parts)+1)
	for _, p := range parts {
		chunks <- domain.LLMStreamChunk{Response: p}
	}
	chunks <- domain.LLMStreamChunk{Done: true, Usage: usage}
	close(chunks)
	errs := make(chan error)
	close(errs)
	return chunks, errs
}

func drainAnswer(t *testing.T, chunks <-chan domain.AnswerChunk, errs <-chan error) (string, *domain.TokenUsage, error) {
	t.Helper()
	var sb strings.Builder
	var usage *domain.TokenUsage
	deadline := time.After(5 * time.Second)
	for chunks != nil || errs != nil {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			sb.WriteString(chunk.Delta)
			if chunk.Done {
				usage = chunk.Usage
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			return sb.String(), usage, err
		case <-deadline:
			t.Fatal("timed out draining answer stream")
		}
	}
	return sb.String(), usage, nil
}

func TestGenerateAnswer_StreamsAndPersists(t *testing.T) {
	llm := new(mockLLMClient)
	persister := &recordingPersister{}

	streamChunks, streamErrs := llmStream(&domain.TokenUsage{PromptTokens: 50, CompletionTokens: 20}, "Revenue ", "grew 10%.")
	llm.On("ChatStream", mock.Anything, mock.MatchedBy(func(messages []domain.ChatMessage) bool {
		// System message carries instructions and the context blob;
		// the user query comes last.
		return len(messages) >= 2 &&
			messages[0].Role == "system" &&
			strings.Contains(messages[0].Content, "<context>") &&
			strings.Contains(messages[0].Content, "revenue table") &&
			messages[len(messages)-1].Content == "how did revenue develop"
	}), 1024).Return(streamChunks, streamErrs, nil)

	uc := usecase.NewGenerateAnswerUsecase(llm, persister, 1024, testLogger())

	chunkID := uuid.New()
	chunks, errs, err := uc.GenerateAnswer(context.Background(), domain.AnswerRequest{
		Query:         "how did revenue develop",
		ContextText:   "revenue table",
		ChatSessionID: "session-1",
		Sources:       []domain.Source{{ChunkID: chunkID, DocumentID: "doc-1"}},
	})
	require.NoError(t, err)

	answer, usage, streamErr := drainAnswer(t, chunks, errs)
	require.NoError(t, streamErr)
	assert.Equal(t, "Revenue grew 10%.", answer)
	require.NotNil(t, usage)
	assert.Equal(t, 50, usage.PromptTokens)

	// Persistence happens after the stream completes.
	assert.Eventually(t, func() bool {
		return len(persister.snapshot()) == 1
	}, time.Second, 10*time.Millisecond)
	record := persister.snapshot()[0]
	assert.Equal(t, "session-1", record.SessionID)
	assert.Equal(t, "Revenue grew 10%.", record.Answer)
	assert.False(t, record.Fallback)
}

func TestGenerateAnswer_HistoryBetweenSystemAndQuery(t *testing.T) {
	llm := new(mockLLMClient)

	streamChunks, streamErrs := llmStream(nil, "ok")
	llm.On("ChatStream", mock.Anything, mock.MatchedBy(func(messages []domain.ChatMessage) bool {
		return len(messages) == 4 &&
			messages[1].Role == "user" && messages[1].Content == "earlier question" &&
			messages[2].Role == "assistant"
	}), 1024).Return(streamChunks, streamErrs, nil)

	uc := usecase.NewGenerateAnswerUsecase(llm, nil, 1024, testLogger())

	chunks, errs, err := uc.GenerateAnswer(context.Background(), domain.AnswerRequest{
		Query:       "follow-up",
		ContextText: "ctx",
		History: []domain.ChatMessage{
			{Role: "user", Content: "earlier question"},
			{Role: "assistant", Content: "earlier answer"},
		},
	})
	require.NoError(t, err)
	_, _, streamErr := drainAnswer(t, chunks, errs)
	require.NoError(t, streamErr)
	llm.AssertExpectations(t)
}

func TestGenerateAnswer_PageRestrictionInSystemPrompt(t *testing.T) {
	llm := new(mockLLMClient)

	streamChunks, streamErrs := llmStream(nil, "ok")
	llm.On("ChatStream", mock.Anything, mock.MatchedBy(func(messages []domain.ChatMessage) bool {
		return strings.Contains(messages[0].Content, "page(s) 3, 4")
	}), 1024).Return(streamChunks, streamErrs, nil)

	uc := usecase.NewGenerateAnswerUsecase(llm, nil, 1024, testLogger())

	chunks, errs, err := uc.GenerateAnswer(context.Background(), domain.AnswerRequest{
		Query:       "what do pages 3 and 4 say",
		ContextText: "ctx",
		PageNumbers: []int{3, 4},
	})
	require.NoError(t, err)
	_, _, streamErr := drainAnswer(t, chunks, errs)
	require.NoError(t, streamErr)
	llm.AssertExpectations(t)
}

func TestGenerateAnswer_OpenStreamError(t *testing.T) {
	llm := new(mockLLMClient)
	llm.On("ChatStream", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, nil, errors.New("inference down"))

	uc := usecase.NewGenerateAnswerUsecase(llm, nil, 1024, testLogger())

	_, _, err := uc.GenerateAnswer(context.Background(), domain.AnswerRequest{Query: "q", ContextText: "ctx"})
	require.Error(t, err)
}

func TestGenerateAnswer_StreamErrorSurfaces(t *testing.T) {
	llm := new(mockLLMClient)

	chunksIn := make(chan domain.LLMStreamChunk)
	close(chunksIn)
	errsIn := make(chan error, 1)
	errsIn <- errors.New("stream broke")
	close(errsIn)
	llm.On("ChatStream", mock.Anything, mock.Anything, mock.Anything).
		Return((<-chan domain.LLMStreamChunk)(chunksIn), (<-chan error)(errsIn), nil)

	uc := usecase.NewGenerateAnswerUsecase(llm, nil, 1024, testLogger())

	chunks, errs, err := uc.GenerateAnswer(context.Background(), domain.AnswerRequest{Query: "q", ContextText: "ctx"})
	require.NoError(t, err)

	_, _, streamErr := drainAnswer(t, chunks, errs)
	assert.Error(t, streamErr)
}

func TestGenerateFallback_NoLLMDependency(t *testing.T) {
	persister := &recordingPersister{}
	// nil LLM: the fallback path must work with the inference service down.
	uc := usecase.NewGenerateAnswerUsecase(nil, persister, 1024, testLogger())

	chunks, errs, err := uc.GenerateFallback(context.Background(), "the request took too long to process")
	require.NoError(t, err)

	answer, _, streamErr := drainAnswer(t, chunks, errs)
	require.NoError(t, streamErr)
	assert.Contains(t, answer, "took too long")

	assert.Eventually(t, func() bool {
		records := persister.snapshot()
		return len(records) == 1 && records[0].Fallback
	}, time.Second, 10*time.Millisecond)
}

func TestGenerateFallback_QueryKeyedText(t *testing.T) {
	uc := usecase.NewGenerateAnswerUsecase(nil, nil, 1024, testLogger())

	chunks, errs, err := uc.GenerateFallback(context.Background(), "obscure question")
	require.NoError(t, err)

	answer, _, streamErr := drainAnswer(t, chunks, errs)
	require.NoError(t, streamErr)
	assert.Contains(t, answer, `"obscure question"`)
}

func TestGenerateSimple_StreamsWithoutPersisting(t *testing.T) {
	llm := new(mockLLMClient)
	persister := &recordingPersister{}

	streamChunks, streamErrs := llmStream(nil, "simple answer")
	llm.On("ChatStream", mock.Anything, mock.MatchedBy(func(messages []domain.ChatMessage) bool {
		return len(messages) == 2 && messages[0].Content == "be terse"
	}), 1024).Return(streamChunks, streamErrs, nil)

	uc := usecase.NewGenerateAnswerUsecase(llm, persister, 1024, testLogger())

	chunks, errs, err := uc.GenerateSimple(context.Background(), "be terse", "hello")
	require.NoError(t, err)

	answer, _, streamErr := drainAnswer(t, chunks, errs)
	require.NoError(t, streamErr)
	assert.Equal(t, "simple answer", answer)
	assert.Empty(t, persister.snapshot())
}
