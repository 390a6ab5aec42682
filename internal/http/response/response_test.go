package response

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharedalbum/album-server/internal/errors"
	"github.com/sharedalbum/album-server/internal/store"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestJSON_Success(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusOK, map[string]string{"message": "test"}, discard())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	env := decode(t, w)
	assert.True(t, env.Success)
	assert.Equal(t, map[string]any{"message": "test"}, env.Data)
	assert.Empty(t, env.Error)
}

func TestError_Statuses(t *testing.T) {
	tests := []struct {
		name     string
		write    func(http.ResponseWriter)
		status   int
		wantCode string
	}{
		{"not found", func(w http.ResponseWriter) { NotFound(w, "gone", nil) }, http.StatusNotFound, "NOT_FOUND"},
		{"internal", func(w http.ResponseWriter) { InternalError(w, "boom", nil) }, http.StatusInternalServerError, "INTERNAL"},
		{"rate limited", func(w http.ResponseWriter) { TooManyRequests(w, "slow down", nil) }, http.StatusTooManyRequests, "RATE_LIMITED"},
		{"bad request", func(w http.ResponseWriter) { Error(w, http.StatusBadRequest, "bad", nil) }, http.StatusBadRequest, "VALIDATION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.status, w.Code)
			env := decode(t, w)
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantCode, env.Code)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestTooManyRequests_RetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	TooManyRequests(w, "slow down", nil)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"domain not found", errors.NotFound("thumbnail not found"), http.StatusNotFound, "thumbnail not found"},
		{"wrapped domain", fmt.Errorf("serve: %w", errors.Validation("bad key")), http.StatusBadRequest, "bad key"},
		{"store error", store.ErrNotFound.WithMessage("no such label"), http.StatusNotFound, "no such label"},
		{"unknown", fmt.Errorf("disk on fire"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleError(w, tt.err, discard())

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.message, decode(t, w).Error)
		})
	}
}
