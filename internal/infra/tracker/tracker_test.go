package tracker_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"dataroom-rag/internal/domain"
	"dataroom-rag/internal/infra/tracker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryTracker_StageTimings(t *testing.T) {
	trk := tracker.NewQueryTracker(slog.New(slog.NewJSONHandler(io.Discard, nil)))

	trk.StartTotal()
	trk.StartStage("retrieval")
	time.Sleep(5 * time.Millisecond)
	trk.EndStage("retrieval")
	trk.EndTotal()

	totalMs, stages := trk.Snapshot()
	assert.GreaterOrEqual(t, totalMs, int64(5))
	assert.GreaterOrEqual(t, stages["retrieval"], int64(5))
}

func TestQueryTracker_EndStageWithoutStartIsIgnored(t *testing.T) {
	trk := tracker.NewQueryTracker(slog.New(slog.NewJSONHandler(io.Discard, nil)))

	trk.EndStage("never_started")

	_, stages := trk.Snapshot()
	assert.NotContains(t, stages, "never_started")
}

func TestQueryTracker_FinalizeLogsOnce(t *testing.T) {
	var buf bytes.Buffer
	trk := tracker.NewQueryTracker(slog.New(slog.NewJSONHandler(&buf, nil)))

	trk.StartTotal()
	trk.SetSearchStrategy("standard_vector_search")
	trk.SetQueryAnalysis("document_question", "medium")
	trk.SetTokenUsage(domain.TokenUsage{PromptTokens: 120, CompletionTokens: 30})
	trk.SetError("timeout", "query processing took too long", true)
	trk.EndTotal()

	trk.Finalize()
	trk.Finalize()

	lines := bytes.Count(bytes.TrimSpace(buf.Bytes()), []byte("\n")) + 1
	assert.Equal(t, 1, lines)

	var logged map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &logged))
	assert.Equal(t, "query_metadata", logged["msg"])
	assert.Equal(t, "standard_vector_search", logged["strategy"])
	assert.Equal(t, "document_question", logged["intent"])
	assert.Equal(t, float64(120), logged["prompt_tokens"])
	assert.Equal(t, "timeout", logged["error_kind"])
	assert.Equal(t, true, logged["error_retryable"])
}
