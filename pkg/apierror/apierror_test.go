package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealroom/api/pkg/domain/permission"
	"github.com/dealroom/api/pkg/domain/shared"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   Code
	}{
		{"not found", fmt.Errorf("lookup: %w", shared.ErrNotFound), http.StatusNotFound, CodeNotFound},
		{"already exists", shared.ErrAlreadyExists, http.StatusConflict, CodeConflict},
		{"conflict", shared.ErrConflict, http.StatusConflict, CodeConflict},
		{"unknown preset", fmt.Errorf("%w: %q", permission.ErrUnknownPreset, "ghost"), http.StatusBadRequest, CodeBadRequest},
		{"forbidden", shared.ErrForbidden, http.StatusForbidden, CodeForbidden},
		{"other", errors.New("db down"), http.StatusInternalServerError, CodeInternalError},
		{"api error", NotFound("Participant"), http.StatusNotFound, CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.code, got.Code)
		})
	}

	assert.Nil(t, FromError(nil))
}

func TestFromError_HidesInternalCause(t *testing.T) {
	got := FromError(errors.New("password=hunter2"))
	assert.Equal(t, "An internal error occurred", got.Message)
	assert.ErrorContains(t, got, "hunter2")
}

func TestWriteJSONWithRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	ValidationFailed("Validation failed", ValidationErrors{{Field: "key", Message: "is required"}}).
		WriteJSONWithRequestID(rec, "req-42")

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))

	var body Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, CodeValidationFailed, body.Code)
	assert.Equal(t, "VALIDATION_FAILED", body.Error)
	assert.Equal(t, "req-42", body.RequestID)
}

func TestValidationErrors(t *testing.T) {
	var v ValidationErrors
	assert.False(t, v.HasErrors())
	v.Add("scope", "must be a valid visibility scope")
	assert.True(t, v.HasErrors())
	assert.Equal(t, http.StatusUnprocessableEntity, v.ToAPIError().Status)
}
