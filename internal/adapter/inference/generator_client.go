package inference

import (
	"bufio"
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

const keepAliveSeconds = 600

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string         `json:"model"`
	Messages  []chatMessage  `json:"messages"`
	Stream    bool           `json:"stream"`
	KeepAlive int            `json:"keep_alive"`
	Options   map[string]any `json:"options,omitempty"`
}

type chatStreamResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done            bool `json:"done"`
	PromptEvalCount int  `json:"prompt_eval_count"`
	EvalCount       int  `json:"eval_count"`
}

// GeneratorClient streams chat completions from the inference service.
type GeneratorClient struct {
	BaseURL string
	Model   string
	Client  *http.Client
	logger  *slog.Logger
}

// NewGeneratorClient constructs a generator using the provided endpoint and
// model name. If client is nil, a default http.Client is created with the
// given timeout.
func NewGeneratorClient(baseURL, model string, timeout time.Duration, logger *slog.Logger, client ...*http.Client) *GeneratorClient {
	var c *http.Client
	if len(client) > 0 && client[0] != nil {
		c = client[0]
	} else {
		c = &http.Client{Timeout: timeout}
	}
	return &GeneratorClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  c,
		logger:  logger,
	}
}

// ChatStream sends the messages and streams the assistant response as it is
// generated. The chunk channel is closed after the final chunk; a terminal
// error is delivered on the error channel instead.
func (g *GeneratorClient) ChatStream(ctx context.Context, messages []domain.ChatMessage, maxTokens int) (<-chan domain.LLMStreamChunk, <-chan error, error) {
	reqMessages := make([]chatMessage, len(messages))
	for i, m := range messages {
		reqMessages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}

	reqBody := chatRequest{
		Model:     g.Model,
		Messages:  reqMessages,
		Stream:    true,
		KeepAlive: keepAliveSeconds,
		Options: map[string]any{
			"temperature": 0.2,
		},
	}
	if maxTokens > 0 {
		reqBody.Options["num_predict"] = maxTokens
	}

	jsonPayload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", g.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to call generation endpoint: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, nil, fmt.Errorf("generation endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	chunks := make(chan domain.LLMStreamChunk, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)
		defer func() { _ = resp.Body.Close() }()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var streamResp chatStreamResponse
			if err := json.Unmarshal(line, &streamResp); err != nil {
				g.logger.Warn("generation_stream_bad_line",
					slog.String("error", err.Error()))
				continue
			}

			chunk := domain.LLMStreamChunk{
				Response: streamResp.Message.Content,
				Done:     streamResp.Done,
			}
			if streamResp.Done {
				chunk.Usage = &domain.TokenUsage{
					PromptTokens:     streamResp.PromptEvalCount,
					CompletionTokens: streamResp.EvalCount,
				}
			}

			select {
			case <-ctx.Done():
				return
			case chunks <- chunk:
			}

			if streamResp.Done {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			select {
			case <-ctx.Done():
			case errs <- fmt.Errorf("generation stream read failed: %w", err):
			}
		}
	}()

	return chunks, errs, nil
}

// Version returns the model identifier for logging.
func (g *GeneratorClient) Version() string {
	return g.Model
}
