package raghttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"dataroom-rag/internal/domain"
	"dataroom-rag/internal/infra/tracker"
	"dataroom-rag/internal/usecase"

	"github.com/labstack/echo/v4"
)

// QueryRequest is the JSON payload of POST /v1/query.
type QueryRequest struct {
	Query         string              `json:"query"`
	DataroomID    string              `json:"dataroom_id"`
	DocumentIDs   []string            `json:"document_ids,omitempty"`
	Strategy      string              `json:"strategy,omitempty"`
	Intent        string              `json:"intent,omitempty"`
	ChatSessionID string              `json:"chat_session_id,omitempty"`
	TimeoutMs     int                 `json:"timeout_ms,omitempty"`
	History       []MessagePayload    `json:"history,omitempty"`
	Complexity    *ComplexityPayload  `json:"complexity,omitempty"`
	Extraction    *ExtractionPayload  `json:"extraction,omitempty"`
}

type MessagePayload struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ComplexityPayload struct {
	Level     string  `json:"level"`
	Score     float32 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

type ExtractionPayload struct {
	PageNumbers          []int    `json:"page_numbers,omitempty"`
	Keywords             []string `json:"keywords,omitempty"`
	RewrittenQueries     []string `json:"rewritten_queries,omitempty"`
	HypotheticalAnswer   string   `json:"hypothetical_answer,omitempty"`
	RequiresHypothetical bool     `json:"requires_hypothetical,omitempty"`
}

type sourcePayload struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Page       int     `json:"page,omitempty"`
	Excerpt    string  `json:"excerpt,omitempty"`
	Score      float32 `json:"score"`
}

type Handler struct {
	processUsecase usecase.ProcessQueryUsecase
	docClient      domain.DocumentClient
	chatStore      domain.ChatStore
	validator      *requestValidator
	logger         *slog.Logger
}

func NewHandler(
	processUsecase usecase.ProcessQueryUsecase,
	docClient domain.DocumentClient,
	chatStore domain.ChatStore,
	logger *slog.Logger,
) (*Handler, error) {
	validator, err := newRequestValidator()
	if err != nil {
		return nil, err
	}
	return &Handler{
		processUsecase: processUsecase,
		docClient:      docClient,
		chatStore:      chatStore,
		validator:      validator,
		logger:         logger,
	}, nil
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/query", h.Query)
	e.GET("/v1/health", h.Health)
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Query answers a question over a dataroom as a Server-Sent-Event stream.
func (h *Handler) Query(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "failed to read request body"})
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
	}
	if err := h.validator.validate(raw); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid request: %v", err)})
	}

	var req QueryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	documents, err := h.docClient.ListIndexedDocuments(ctx, req.DataroomID)
	if err != nil {
		h.logger.Error("document_lookup_failed",
			slog.String("dataroom_id", req.DataroomID),
			slog.String("error", err.Error()))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to resolve dataroom documents"})
	}
	if len(req.DocumentIDs) > 0 {
		documents = filterDocuments(documents, req.DocumentIDs)
	}
	if len(documents) == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no indexed documents in dataroom"})
	}

	input := usecase.ProcessQueryInput{
		Query:         req.Query,
		DataroomID:    req.DataroomID,
		Documents:     documents,
		History:       h.resolveHistory(c, req),
		Strategy:      domain.ParseSearchStrategy(req.Strategy),
		Intent:        domain.QueryIntent(req.Intent),
		TimeoutMs:     req.TimeoutMs,
		ChatSessionID: req.ChatSessionID,
		Tracker:       tracker.NewQueryTracker(h.logger),
	}
	if req.Complexity != nil {
		input.Complexity = &domain.ComplexityAnalysis{
			Level:     req.Complexity.Level,
			Score:     req.Complexity.Score,
			Reasoning: req.Complexity.Reasoning,
		}
	}
	if req.Extraction != nil {
		input.Extraction = &domain.QueryExtraction{
			PageNumbers:          req.Extraction.PageNumbers,
			Keywords:             req.Extraction.Keywords,
			RewrittenQueries:     req.Extraction.RewrittenQueries,
			HypotheticalAnswer:   req.Extraction.HypotheticalAnswer,
			RequiresHypothetical: req.Extraction.RequiresHypothetical,
		}
	}

	events, err := h.processUsecase.ProcessQuery(ctx, input)
	if err != nil {
		if errors.Is(err, usecase.ErrOrchestratorDisposed) {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "service is shutting down"})
		}
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	for event := range events {
		if err := h.writeSSE(c, event); err != nil {
			h.logger.Info("sse_client_disconnected", slog.String("error", err.Error()))
			return nil
		}
	}
	return nil
}

func (h *Handler) writeSSE(c echo.Context, event usecase.StreamEvent) error {
	var payload any
	switch event.Kind {
	case usecase.StreamEventKindMeta:
		meta, ok := event.Payload.(usecase.StreamMeta)
		if !ok {
			return nil
		}
		sources := make([]sourcePayload, 0, len(meta.Sources))
		for _, src := range meta.Sources {
			sources = append(sources, sourcePayload{
				ChunkID:    src.ChunkID.String(),
				DocumentID: src.DocumentID,
				Title:      src.Title,
				Page:       src.Page,
				Excerpt:    src.Excerpt,
				Score:      src.Score,
			})
		}
		payload = map[string]any{
			"correlation_id": meta.CorrelationID,
			"strategy":       string(meta.Strategy),
			"sources":        sources,
		}
	case usecase.StreamEventKindDelta:
		text, _ := event.Payload.(string)
		payload = map[string]string{"text": text}
	case usecase.StreamEventKindFallback:
		reason, _ := event.Payload.(string)
		payload = map[string]string{"reason": reason}
	case usecase.StreamEventKindDone:
		result, ok := event.Payload.(*usecase.AnswerResult)
		if !ok {
			return nil
		}
		payload = map[string]any{
			"answer":            result.Answer,
			"fallback":          result.Fallback,
			"reason":            result.Reason,
			"correlation_id":    result.CorrelationID,
			"prompt_tokens":     result.Usage.PromptTokens,
			"completion_tokens": result.Usage.CompletionTokens,
		}
	case usecase.StreamEventKindError:
		if perr, ok := event.Payload.(*usecase.PipelineError); ok {
			payload = map[string]string{"kind": string(perr.Kind), "message": perr.Message}
		} else {
			payload = map[string]string{"kind": "error", "message": fmt.Sprintf("%v", event.Payload)}
		}
	default:
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Response(), "event: %s\ndata: %s\n\n", event.Kind, data); err != nil {
		return err
	}
	c.Response().Flush()
	return nil
}

// resolveHistory prefers the history the caller supplied; otherwise it
// reconstructs recent turns from the session store.
func (h *Handler) resolveHistory(c echo.Context, req QueryRequest) []domain.ChatMessage {
	if len(req.History) > 0 {
		history := make([]domain.ChatMessage, len(req.History))
		for i, m := range req.History {
			history[i] = domain.ChatMessage{Role: m.Role, Content: m.Content}
		}
		return history
	}
	if req.ChatSessionID == "" || h.chatStore == nil {
		return nil
	}

	records, err := h.chatStore.History(c.Request().Context(), req.ChatSessionID, 5)
	if err != nil {
		h.logger.Warn("history_lookup_failed",
			slog.String("session_id", req.ChatSessionID),
			slog.String("error", err.Error()))
		return nil
	}
	history := make([]domain.ChatMessage, 0, len(records)*2)
	for _, rec := range records {
		history = append(history,
			domain.ChatMessage{Role: "user", Content: rec.Query},
			domain.ChatMessage{Role: "assistant", Content: rec.Answer})
	}
	return history
}

func filterDocuments(documents []domain.IndexedDocument, allowed []string) []domain.IndexedDocument {
	allowedSet := make(map[string]bool, len(allowed))
	for _, id := range allowed {
		allowedSet[id] = true
	}
	filtered := make([]domain.IndexedDocument, 0, len(documents))
	for _, doc := range documents {
		if allowedSet[doc.ID] {
			filtered = append(filtered, doc)
		}
	}
	return filtered
}
