package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"validation", WrapValidation("amount must be positive"), ErrCodeValidation},
		{"not found", WrapNotFound("obligation", "abc"), ErrCodeNotFound},
		{"wrapped invalid state", fmt.Errorf("refund: %w", WrapInvalidState("payment is pending")), ErrCodeInvalidState},
		{"consistency", WrapConsistency("outstanding negative"), ErrCodeConsistency},
		{"unverified", WrapUnverifiedEvent("bad signature"), ErrCodeUnverifiedEvent},
		{"plain error", fmt.Errorf("boom"), ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CodeOf(tt.err))
		})
	}
}

func TestSentinelsSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("ingest: %w", WrapConsistency("amount_paid exceeds total"))
	assert.True(t, Is(err, ErrConsistency))
	assert.False(t, Is(err, ErrValidation))

	dbErr := WrapDatabaseError(fmt.Errorf("connection refused"))
	assert.True(t, Is(dbErr, ErrDatabase))
	assert.Contains(t, dbErr.Error(), "connection refused")
}

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify(nil))

	nf := WrapNotFound("payment", "p-1")
	assert.Same(t, nf, Classify(nf))

	assert.Equal(t, ErrCodeDatabaseError, CodeOf(Classify(fmt.Errorf("driver: bad conn"))))
}
