package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/segyhp/rent-ledger/pkg/errors"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedCode int
		expectedBody string
	}{
		{"validation", apperrors.WrapValidation("amount must be positive"), http.StatusBadRequest, apperrors.ErrCodeValidation},
		{"not found", apperrors.WrapNotFound("obligation", "abc"), http.StatusNotFound, apperrors.ErrCodeNotFound},
		{"invalid state", apperrors.WrapInvalidState("payment is pending"), http.StatusConflict, apperrors.ErrCodeInvalidState},
		{"consistency", apperrors.WrapConsistency("negative outstanding"), http.StatusInternalServerError, apperrors.ErrCodeConsistency},
		{"unverified", apperrors.WrapUnverifiedEvent("bad signature"), http.StatusUnauthorized, apperrors.ErrCodeUnverifiedEvent},
		{"processor", apperrors.WrapProcessorError(errors.New("timeout")), http.StatusBadGateway, apperrors.ErrCodeProcessorError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, apperrors.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			FromError(w, tt.err)

			assert.Equal(t, tt.expectedCode, w.Code)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.expectedBody, body.Code)
		})
	}
}

func TestFromErrorHidesInternalCause(t *testing.T) {
	w := httptest.NewRecorder()
	FromError(w, apperrors.WrapDatabaseError(errors.New("password authentication failed")))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, body.Error)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestSuccessEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	Created(w, map[string]int{"created": 3})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
}
