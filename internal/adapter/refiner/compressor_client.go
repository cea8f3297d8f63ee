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
)

// CompressRequest is the request payload for the compression endpoint.
type CompressRequest struct {
	Query      string   `json:"query"`
	Candidates []string `json:"candidates"`
	Complexity string   `json:"complexity,omitempty"`
}

// CompressResponse is the response from the compression endpoint.
type CompressResponse struct {
	Content    string `json:"content"`
	TokenCount int    `json:"token_count"`
}

// CompressorClient implements domain.ContextCompressor via HTTP calls to the
// refiner service.
type CompressorClient struct {
	BaseURL string
	Client  *http.Client
	logger  *slog.Logger
}

// NewCompressorClient constructs a new CompressorClient. If client is nil, a
// default http.Client is created with the given timeout.
func NewCompressorClient(baseURL string, timeout time.Duration, logger *slog.Logger, client ...*http.Client) *CompressorClient {
	var c *http.Client
	if len(client) > 0 && client[0] != nil {
		c = client[0]
	} else {
		c = &http.Client{Timeout: timeout}
	}
	return &CompressorClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  c,
		logger:  logger,
	}
}

// Compress reduces the chunk set to a token-bounded context blob.
func (c *CompressorClient) Compress(ctx context.Context, query string, results []domain.SearchResult, complexity *domain.ComplexityAnalysis) (*domain.CompressedContext, error) {
	if len(results) == 0 {
		return &domain.CompressedContext{}, nil
	}

	startTime := time.Now()

	contents := make([]string, len(results))
	for i, res := range results {
		contents[i] = res.Content
	}

	reqBody := CompressRequest{
		Query:      query,
		Candidates: contents,
	}
	if complexity != nil {
		reqBody.Complexity = complexity.Level
	}

	jsonPayload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal compress request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/compress", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to create compress request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		c.logger.Warn("compression_failed",
			slog.String("error", err.Error()),
			slog.Int64("elapsed_ms", time.Since(startTime).Milliseconds()))
		return nil, fmt.Errorf("failed to call compress endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("compress endpoint returned %d: %s", resp.StatusCode, truncateString(string(body), 500))
	}

	var compressResp CompressResponse
	if err := json.NewDecoder(resp.Body).Decode(&compressResp); err != nil {
		return nil, fmt.Errorf("failed to decode compress response: %w", err)
	}

	c.logger.Info("compression_completed",
		slog.Int("candidate_count", len(results)),
		slog.Int("token_count", compressResp.TokenCount),
		slog.Int64("elapsed_ms", time.Since(startTime).Milliseconds()))

	return &domain.CompressedContext{
		Content:    compressResp.Content,
		TokenCount: compressResp.TokenCount,
	}, nil
}
