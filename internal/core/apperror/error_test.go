package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindsSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("pay payment: %w", NewInvalidTransition("payment", "CANCELLED", "pay"))

	assert.True(t, IsInvalidTransition(err))
	assert.False(t, IsInvalidValue(err))

	appErr, ok := AsAppError(err)
	assert.True(t, ok)
	assert.Equal(t, "CANCELLED", appErr.Details["state"])
}

func TestLimitExceededDetails(t *testing.T) {
	err := NewLimitExceeded("money", 1)
	assert.True(t, IsLimitExceeded(err))
	assert.Equal(t, 1, err.Details["max_installments"])
	assert.Contains(t, err.Error(), "LIMIT_EXCEEDED")
}

func TestWithCauseUnwraps(t *testing.T) {
	cause := errors.New("boom")
	err := NewInconsistentLedger("too many payments").WithCause(cause)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsInconsistentLedger(err))
}
