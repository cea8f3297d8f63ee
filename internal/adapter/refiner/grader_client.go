package refiner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"dataroom-rag/internal/domain"

	"github.com/google/uuid"
)

// GradeRequest is the request payload for the grading endpoint.
type GradeRequest struct {
	Query      string           `json:"query"`
	Candidates []GradeCandidate `json:"candidates"`
	Complexity string           `json:"complexity,omitempty"`
}

// GradeCandidate is one chunk submitted for grading.
type GradeCandidate struct {
	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	Content    string `json:"content"`
}

// GradeResponseResult is one graded chunk in the response.
type GradeResponseResult struct {
	ChunkID         string  `json:"chunk_id"`
	RelevanceScore  float32 `json:"relevance_score"`
	Confidence      float32 `json:"confidence"`
	Reasoning       string  `json:"reasoning"`
	IsRelevant      bool    `json:"is_relevant"`
	SuggestedWeight float32 `json:"suggested_weight"`
}

// GradeResponse is the response from the grading endpoint.
type GradeResponse struct {
	Results []GradeResponseResult `json:"results"`
}

// GraderClient implements domain.DocumentGrader via HTTP calls to the
// refiner service.
type GraderClient struct {
	BaseURL string
	Client  *http.Client
	logger  *slog.Logger
}

// NewGraderClient constructs a new GraderClient. If client is nil, a default
// http.Client is created with the given timeout.
func NewGraderClient(baseURL string, timeout time.Duration, logger *slog.Logger, client ...*http.Client) *GraderClient {
	var c *http.Client
	if len(client) > 0 && client[0] != nil {
		c = client[0]
	} else {
		c = &http.Client{Timeout: timeout}
	}
	return &GraderClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  c,
		logger:  logger,
	}
}

// GradeAndFilter classifies the chunks and returns only those graded
// relevant.
func (c *GraderClient) GradeAndFilter(ctx context.Context, query string, results []domain.SearchResult, complexity *domain.ComplexityAnalysis) (*domain.GradeResult, error) {
	if len(results) == 0 {
		return &domain.GradeResult{}, nil
	}

	startTime := time.Now()

	byChunk := make(map[string]domain.SearchResult, len(results))
	candidates := make([]GradeCandidate, len(results))
	for i, res := range results {
		candidates[i] = GradeCandidate{
			ChunkID:    res.ChunkID.String(),
			DocumentID: res.DocumentID,
			Content:    res.Content,
		}
		byChunk[res.ChunkID.String()] = res
	}

	reqBody := GradeRequest{
		Query:      query,
		Candidates: candidates,
	}
	if complexity != nil {
		reqBody.Complexity = complexity.Level
	}

	jsonPayload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal grade request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/grade", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to create grade request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		c.logger.Warn("grading_failed",
			slog.String("error", err.Error()),
			slog.Int64("elapsed_ms", time.Since(startTime).Milliseconds()))
		return nil, fmt.Errorf("failed to call grade endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("grade endpoint returned %d: %s", resp.StatusCode, truncateString(string(body), 500))
	}

	var gradeResp GradeResponse
	if err := json.NewDecoder(resp.Body).Decode(&gradeResp); err != nil {
		return nil, fmt.Errorf("failed to decode grade response: %w", err)
	}

	relevant := make([]domain.GradedDocument, 0, len(gradeResp.Results))
	for _, r := range gradeResp.Results {
		if !r.IsRelevant {
			continue
		}
		res, ok := byChunk[r.ChunkID]
		if !ok {
			continue
		}
		chunkID, err := uuid.Parse(r.ChunkID)
		if err != nil {
			continue
		}
		relevant = append(relevant, domain.GradedDocument{
			DocumentID:      res.DocumentID,
			ChunkID:         chunkID,
			RelevanceScore:  r.RelevanceScore,
			Confidence:      r.Confidence,
			Reasoning:       r.Reasoning,
			IsRelevant:      true,
			SuggestedWeight: r.SuggestedWeight,
			Content:         res.Content,
			Metadata:        res.Metadata,
		})
	}

	c.logger.Info("grading_completed",
		slog.Int("candidate_count", len(results)),
		slog.Int("relevant_count", len(relevant)),
		slog.Int64("elapsed_ms", time.Since(startTime).Milliseconds()))

	return &domain.GradeResult{RelevantDocuments: relevant}, nil
}
