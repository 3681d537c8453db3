package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLast(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &rec))
	return rec
}

func TestMiddlewareAttachesRequestAndOwner(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Handler: NewHandler(&buf, "info", "json")})

	mw := Middleware(logger,
		func(*http.Request) string { return "req_1" },
		func(r *http.Request) string { return r.Header.Get("X-Owner-ID") })
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("inside")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Owner-ID", "alice")
	h.ServeHTTP(httptest.NewRecorder(), req)

	rec := decodeLast(t, &buf)
	assert.Equal(t, "req_1", rec[FieldRequestID])
	assert.Equal(t, "alice", rec[FieldOwnerID])
}

func TestMiddlewareSkipsEmptyValues(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Handler: NewHandler(&buf, "info", "json")})

	h := Middleware(logger, nil, func(*http.Request) string { return "" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).Info("inside")
		}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	rec := decodeLast(t, &buf)
	assert.NotContains(t, rec, FieldRequestID)
	assert.NotContains(t, rec, FieldOwnerID)
}

func TestFromContextFallback(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	assert.Equal(t, ComponentApp, l.component)
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Handler: NewHandler(&buf, "debug", "json")}))
	ctx := context.Background()

	sl.LogMaterialized(ctx, "alice", "2025-02", 1, 0, 2)
	rec := decodeLast(t, &buf)
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, float64(2), rec[FieldFailures])
	assert.Equal(t, ComponentRecurring, rec[FieldComponent])

	sl.LogError(ctx, "Request failed", errors.New("boom"), ComponentHTTP, OpSummarize,
		NewFields().WithFailureClass("transient"))
	rec = decodeLast(t, &buf)
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, "boom", rec[FieldError])
	assert.Equal(t, "transient", rec[FieldFailureClass])
	assert.Equal(t, OpSummarize, rec[FieldOperation])

	req := httptest.NewRequest(http.MethodDelete, "/api/entries/1", nil)
	sl.LogHTTPEnd(ctx, req, http.StatusServiceUnavailable, 3, "10.0.0.1")
	rec = decodeLast(t, &buf)
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, false, rec[FieldSuccess])
}
