package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestLoggerComponentJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: ComponentRecurring, Handler: NewHandler(&buf, "info", "json")})

	fields := NewFields().WithOwnerMonth("u1", "2024-02").WithApplyCounts(2, 1, 0)
	logger.Info("Month materialized", fields.ToSlice()...)
	logger.Debug("hidden")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, ComponentRecurring, rec[FieldComponent])
	assert.Equal(t, "u1", rec[FieldOwnerID])
	assert.Equal(t, "2024-02", rec[FieldMonth])
	assert.EqualValues(t, 2, rec[FieldApplied])
	assert.EqualValues(t, 1, rec[FieldDuplicates])
}

func TestLogFieldsWithError(t *testing.T) {
	f := NewFields().WithError(nil)
	_, ok := f[FieldError]
	assert.False(t, ok)
	f = f.WithError(assert.AnError).WithEntry(3, "expense", 9800, "家賃")
	assert.Equal(t, assert.AnError.Error(), f[FieldError])
	assert.Equal(t, int64(9800), f[FieldAmount])
}
