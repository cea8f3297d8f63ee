package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dataroom-rag/internal/domain"
)

// AnswerPersister accepts completed answers for best-effort persistence.
// Implementations must never block the caller.
type AnswerPersister interface {
	Enqueue(record domain.ChatRecord)
}

type generateAnswerUsecase struct {
	llm       domain.LLMClient
	persister AnswerPersister
	maxTokens int
	logger    *slog.Logger
}

// NewGenerateAnswerUsecase creates the answer-generation collaborator.
// persister may be nil, in which case completed answers are not stored.
func NewGenerateAnswerUsecase(llm domain.LLMClient, persister AnswerPersister, maxTokens int, logger *slog.Logger) domain.AnswerGenerator {
	return &generateAnswerUsecase{
		llm:       llm,
		persister: persister,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// GenerateAnswer streams a grounded answer and, only after the stream
// completes, hands the final text plus token usage to the persister.
// Persistence failure never surfaces through the response.
func (u *generateAnswerUsecase) GenerateAnswer(ctx context.Context, req domain.AnswerRequest) (<-chan domain.AnswerChunk, <-chan error, error) {
	messages := buildGroundedMessages(req)

	chunks, errs, err := u.llm.ChatStream(ctx, messages, u.maxTokens)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open generation stream: %w", err)
	}

	out := make(chan domain.AnswerChunk, 16)
	errOut := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errOut)

		var sb strings.Builder
		var usage domain.TokenUsage

		for chunks != nil || errs != nil {
			select {
			case <-ctx.Done():
				return
			case chunk, ok := <-chunks:
				if !ok {
					chunks = nil
					continue
				}
				if chunk.Response != "" {
					sb.WriteString(chunk.Response)
					select {
					case <-ctx.Done():
						return
					case out <- domain.AnswerChunk{Delta: chunk.Response}:
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
				errOut <- streamErr
				return
			}
		}

		if req.Tracker != nil {
			req.Tracker.SetTokenUsage(usage)
		}

		select {
		case <-ctx.Done():
			return
		case out <- domain.AnswerChunk{Done: true, Usage: &usage}:
		}

		u.persist(domain.ChatRecord{
			SessionID: req.ChatSessionID,
			Query:     req.Query,
			Answer:    sb.String(),
			Sources:   req.Sources,
			Usage:     usage,
			CreatedAt: time.Now(),
		})
	}()

	return out, errOut, nil
}

// GenerateFallback streams a canned degraded answer. It is deliberately
// local: the fallback path must not depend on the inference service being
// healthy.
func (u *generateAnswerUsecase) GenerateFallback(ctx context.Context, reasonOrQuery string) (<-chan domain.AnswerChunk, <-chan error, error) {
	text := buildFallbackText(reasonOrQuery)

	out := make(chan domain.AnswerChunk, 2)
	errOut := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errOut)

		select {
		case <-ctx.Done():
			return
		case out <- domain.AnswerChunk{Delta: text}:
		}
		select {
		case <-ctx.Done():
			return
		case out <- domain.AnswerChunk{Done: true, Usage: &domain.TokenUsage{}}:
		}

		u.persist(domain.ChatRecord{
			Query:     reasonOrQuery,
			Answer:    text,
			Fallback:  true,
			CreatedAt: time.Now(),
		})
	}()

	return out, errOut, nil
}

// GenerateSimple streams an answer driven by an arbitrary system prompt,
// outside the retrieval pipeline.
func (u *generateAnswerUsecase) GenerateSimple(ctx context.Context, systemPrompt, prompt string) (<-chan domain.AnswerChunk, <-chan error, error) {
	messages := []domain.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	}

	chunks, errs, err := u.llm.ChatStream(ctx, messages, u.maxTokens)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open generation stream: %w", err)
	}

	out := make(chan domain.AnswerChunk, 16)
	errOut := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errOut)

		for chunks != nil || errs != nil {
			select {
			case <-ctx.Done():
				return
			case chunk, ok := <-chunks:
				if !ok {
					chunks = nil
					continue
				}
				if chunk.Response != "" {
					select {
					case <-ctx.Done():
						return
					case out <- domain.AnswerChunk{Delta: chunk.Response}:
					}
				}
				if chunk.Done {
					select {
					case <-ctx.Done():
						return
					case out <- domain.AnswerChunk{Done: true, Usage: chunk.Usage}:
					}
					chunks = nil
				}
			case streamErr, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				errOut <- streamErr
				return
			}
		}
	}()

	return out, errOut, nil
}

func (u *generateAnswerUsecase) persist(record domain.ChatRecord) {
	if u.persister == nil {
		return
	}
	u.persister.Enqueue(record)
}
