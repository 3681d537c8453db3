package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kakeibo/internal/config"
)

func TestSetupLoggerTo(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := SetupLoggerTo(&buf, &config.Config{LogLevel: "warn", LogFormat: "json"})

	logger.Info("hidden")
	slog.Warn("shown", "owner_id", "u1")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "u1", rec["owner_id"])
}

func TestSetupLoggerToDefaults(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	SetupLoggerTo(&buf, nil).Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestInitBackend_Memory(t *testing.T) {
	cfg := &config.Config{DataBackend: config.BackendMemory}
	res, err := InitBackend(context.Background(), slog.Default(), cfg)
	require.NoError(t, err)
	assert.NoError(t, res.Cleanup())

	_, err = InitBackend(context.Background(), slog.Default(), &config.Config{DataBackend: "bogus"})
	assert.Error(t, err)
}
