package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsType_DirectAndWrapped(t *testing.T) {
	err := NewStoreError("failed to create procedure", errors.New("connection reset"))

	assert.True(t, IsType(err, ErrorTypeStore))
	assert.False(t, IsType(err, ErrorTypeExtraction))

	wrapped := fmt.Errorf("resolve: %w", err)
	assert.True(t, IsType(wrapped, ErrorTypeStore))
}

func TestIsType_NestedAppErrors(t *testing.T) {
	inner := NewExtractionError("classification call failed", errors.New("timeout"))
	outer := NewInternalError("classify referral", inner)

	assert.True(t, IsType(outer, ErrorTypeInternal))
	assert.True(t, IsType(outer, ErrorTypeExtraction))
	assert.False(t, IsType(outer, ErrorTypeStore))
}

func TestIsType_PlainError(t *testing.T) {
	assert.False(t, IsType(errors.New("boom"), ErrorTypeInternal))
	assert.False(t, IsType(nil, ErrorTypeInternal))
}

func TestAppError_Message(t *testing.T) {
	err := NewTaxonomyIntegrityError("treatment type tt-1 references unknown specialty sp-9")
	assert.Equal(t, "TAXONOMY_INTEGRITY: treatment type tt-1 references unknown specialty sp-9", err.Error())

	withCause := NewExtractionError("rule evaluation failed", errors.New("status 500"))
	assert.Equal(t, "EXTRACTION: rule evaluation failed: status 500", withCause.Error())
	assert.Equal(t, "status 500", errors.Unwrap(withCause).Error())
}
