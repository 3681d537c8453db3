package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kakeibo/internal/core"
)

func TestJSONResponseBuilder(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/entries/1").
		Body(map[string]int{"id": 1}).
		Write(w)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "/api/entries/1", w.Header().Get("Location"))
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id":1}`, w.Body.String())
}

func TestJSONResponseBuilder_NoBody(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Empty(t, w.Header().Get("Content-Type"))
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		class  string
	}{
		{"validation", core.NewValidationError("amount", core.ErrInvalidAmount), http.StatusUnprocessableEntity, "validation"},
		{"not found", fmt.Errorf("get entry: %w", core.ErrNotFound), http.StatusNotFound, ""},
		{"duplicate", core.ErrDuplicate, http.StatusConflict, ""},
		{"permission", fmt.Errorf("%w: denied", core.ErrPermissionDenied), http.StatusForbidden, "permanent"},
		{"unavailable", fmt.Errorf("%w: dial", core.ErrStoreUnavailable), http.StatusServiceUnavailable, "transient"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "transient"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			FromError(tt.err).Write(w)
			assert.Equal(t, tt.status, w.Code)

			var body ErrorBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, tt.class, body.Class)
		})
	}
}

func TestFromError_ValidationField(t *testing.T) {
	w := httptest.NewRecorder()
	FromError(core.NewValidationError("day_of_month", core.ErrInvalidDay)).Write(w)

	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "day_of_month", body.Field)
	assert.Equal(t, core.ErrInvalidDay.Error(), body.Error)
}

func TestFromError_UnavailableSetsRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	FromError(core.ErrStoreUnavailable).Write(w)
	assert.Equal(t, "5", w.Header().Get("Retry-After"))
}
