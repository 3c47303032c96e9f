package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(http.StatusNotFound, "NOT_FOUND", "Resource not found")

	assert.Equal(t, http.StatusNotFound, err.StatusCode)
	assert.Equal(t, "NOT_FOUND", err.ErrorCode)
	assert.Equal(t, "Resource not found", err.Message)
	assert.Nil(t, err.Details)
	assert.Equal(t, "Resource not found", err.Error())
}

func TestNewWithDetails(t *testing.T) {
	err := NewWithDetails(http.StatusBadRequest, "INVALID_PARAMETER", "Invalid value for days", "must be positive")

	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Equal(t, "must be positive", err.Details)
}

func TestUnknownCategoryError(t *testing.T) {
	err := UnknownCategoryError("top_movers")

	assert.Equal(t, http.StatusNotFound, err.StatusCode)
	assert.Equal(t, "UNKNOWN_CATEGORY", err.ErrorCode)
	assert.Equal(t, "top_movers", err.Details)
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        *APIError
		wantStatus int
		wantCode   string
	}{
		{
			name:       "not found",
			err:        ErrNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "storage error with details",
			err:        StorageError("append", assert.AnError),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "STORAGE_ERROR",
		},
		{
			name:       "invalid parameter",
			err:        InvalidParameterError("days", "must be a positive integer"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_PARAMETER",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.ErrorCode)
		})
	}
}
