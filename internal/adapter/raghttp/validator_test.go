package raghttp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestValidator_LoadsEmbeddedSpec(t *testing.T) {
	validator, err := newRequestValidator()
	require.NoError(t, err)
	require.NotNil(t, validator)
}

func TestRequestValidator_AcceptsMinimalRequest(t *testing.T) {
	validator, err := newRequestValidator()
	require.NoError(t, err)

	assert.NoError(t, validator.validate(map[string]any{
		"query":       "what is the revenue",
		"dataroom_id": "dr-1",
	}))
}

func TestRequestValidator_AcceptsFullRequest(t *testing.T) {
	validator, err := newRequestValidator()
	require.NoError(t, err)

	assert.NoError(t, validator.validate(map[string]any{
		"query":           "what is on page 3",
		"dataroom_id":     "dr-1",
		"document_ids":    []any{"doc-1", "doc-2"},
		"strategy":        "page_query",
		"intent":          "page_lookup",
		"chat_session_id": "session-1",
		"timeout_ms":      30000,
		"history": []any{
			map[string]any{"role": "user", "content": "earlier question"},
		},
		"complexity": map[string]any{
			"level":     "medium",
			"score":     0.5,
			"reasoning": "multi-hop",
		},
		"extraction": map[string]any{
			"page_numbers":          []any{3},
			"keywords":              []any{"revenue"},
			"rewritten_queries":     []any{"page 3 contents"},
			"hypothetical_answer":   "the page shows revenue",
			"requires_hypothetical": true,
		},
	}))
}

func TestRequestValidator_RejectsMissingRequiredFields(t *testing.T) {
	validator, err := newRequestValidator()
	require.NoError(t, err)

	assert.Error(t, validator.validate(map[string]any{"dataroom_id": "dr-1"}))
	assert.Error(t, validator.validate(map[string]any{"query": "hello"}))
}

func TestRequestValidator_RejectsWrongTypes(t *testing.T) {
	validator, err := newRequestValidator()
	require.NoError(t, err)

	assert.Error(t, validator.validate(map[string]any{
		"query":       "q",
		"dataroom_id": "dr-1",
		"timeout_ms":  "fifty thousand",
	}))
	assert.Error(t, validator.validate(map[string]any{
		"query":       "q",
		"dataroom_id": "dr-1",
		"extraction":  map[string]any{"page_numbers": []any{"three"}},
	}))
}
