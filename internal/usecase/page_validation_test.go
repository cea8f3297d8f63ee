package usecase

import (
	"testing"

	"dataroom-rag/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePageRequest_NoPagesRequested(t *testing.T) {
	documents := []domain.IndexedDocument{{ID: "doc-1", Title: "Report", PageCount: 10}}

	assert.Nil(t, validatePageRequest(documents, nil))
	assert.Nil(t, validatePageRequest(documents, &domain.QueryExtraction{}))
}

func TestValidatePageRequest_InRange(t *testing.T) {
	documents := []domain.IndexedDocument{{ID: "doc-1", Title: "Report", PageCount: 10}}

	assert.Nil(t, validatePageRequest(documents, &domain.QueryExtraction{PageNumbers: []int{1, 10}}))
}

func TestValidatePageRequest_OutOfRange(t *testing.T) {
	documents := []domain.IndexedDocument{{ID: "doc-1", Title: "Annual Report", PageCount: 10}}

	perr := validatePageRequest(documents, &domain.QueryExtraction{PageNumbers: []int{15}})

	require.NotNil(t, perr)
	assert.Equal(t, ErrorKindInvalidPage, perr.Kind)
	assert.False(t, perr.Retryable)
	// The message names the offending page, the valid range, and the document.
	assert.Contains(t, perr.Message, "15")
	assert.Contains(t, perr.Message, "1 to 10")
	assert.Contains(t, perr.Message, "Annual Report")
}

func TestValidatePageRequest_MaxAcrossDocuments(t *testing.T) {
	documents := []domain.IndexedDocument{
		{ID: "doc-1", Title: "Short", PageCount: 5},
		{ID: "doc-2", Title: "Long", PageCount: 40},
	}

	// Page 30 exceeds the short document but fits the long one.
	assert.Nil(t, validatePageRequest(documents, &domain.QueryExtraction{PageNumbers: []int{30}}))

	perr := validatePageRequest(documents, &domain.QueryExtraction{PageNumbers: []int{41}})
	require.NotNil(t, perr)
	assert.Contains(t, perr.Message, "1 to 40")
}

func TestValidatePageRequest_PageZeroAndNegative(t *testing.T) {
	documents := []domain.IndexedDocument{{ID: "doc-1", Title: "Report", PageCount: 10}}

	assert.NotNil(t, validatePageRequest(documents, &domain.QueryExtraction{PageNumbers: []int{0}}))
	assert.NotNil(t, validatePageRequest(documents, &domain.QueryExtraction{PageNumbers: []int{-3}}))
}
