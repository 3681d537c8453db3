package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kakeibo/internal/config"
	"kakeibo/internal/core"
)

// run executes one command line against dbPath and returns stdout.
func run(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	full := append([]string{"--backend", "sqlite", "--sqlite-db-path", dbPath, "--log-level", "error"}, args...)
	err := execute(context.Background(), full, &out, &errOut)
	return out.String(), err
}

func isolateEnv(t *testing.T) string {
	t.Helper()
	t.Setenv(config.ConfigFileEnv, "")
	t.Setenv("AMQP_URL", "")
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")
	return filepath.Join(t.TempDir(), "kakeibo.db")
}

func TestCLI_MaterializeIsIdempotent(t *testing.T) {
	db := isolateEnv(t)

	out, err := run(t, db, "rules", "add", "--owner", "alice", "--kind", "expense",
		"--amount", "98,000", "--category", "Rent", "--day", "27")
	require.NoError(t, err)
	assert.Contains(t, out, "Created rule")

	_, err = run(t, db, "rules", "add", "--owner", "alice", "--kind", "income",
		"--amount", "300000", "--category", "Salary", "--day", "25")
	require.NoError(t, err)

	out, err = run(t, db, "rules", "list", "--owner", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Rent")
	assert.Contains(t, out, "Salary")

	out, err = run(t, db, "materialize", "--owner", "alice", "--month", "2025-02")
	require.NoError(t, err)
	assert.Regexp(t, `alice\s+2025-02\s+2\s+0\s+0`, out)

	out, err = run(t, db, "materialize", "--owner", "alice", "--month", "2025-02")
	require.NoError(t, err)
	assert.Regexp(t, `alice\s+2025-02\s+0\s+2\s+0`, out)

	out, err = run(t, db, "entries", "list", "--owner", "alice", "--month", "2025-02")
	require.NoError(t, err)
	assert.Contains(t, out, "2025-02-25")
	assert.Contains(t, out, "2025-02-27")

	out, err = run(t, db, "summarize", "--owner", "alice", "--month", "2025-02", "--json")
	require.NoError(t, err)
	var summary core.MonthSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, int64(98000), summary.Total.Expense)
	assert.Equal(t, int64(300000), summary.Total.Income)
	assert.Equal(t, int64(202000), summary.Total.Net)
}

func TestCLI_MaterializeAll(t *testing.T) {
	db := isolateEnv(t)

	for _, owner := range []string{"alice", "bob"} {
		_, err := run(t, db, "rules", "add", "--owner", owner, "--kind", "expense",
			"--amount", "1200", "--category", "Phone", "--day", "5")
		require.NoError(t, err)
	}

	out, err := run(t, db, "materialize", "--all", "--month", "2025-03")
	require.NoError(t, err)
	assert.Regexp(t, `alice\s+2025-03\s+1\s+0\s+0`, out)
	assert.Regexp(t, `bob\s+2025-03\s+1\s+0\s+0`, out)
}

func TestCLI_Summarize(t *testing.T) {
	db := isolateEnv(t)

	_, err := run(t, db, "entries", "add", "--owner", "alice", "--kind", "expense",
		"--amount", "1,500", "--category", "Food", "--date", "2025-04-02")
	require.NoError(t, err)
	_, err = run(t, db, "entries", "add", "--owner", "alice", "--kind", "expense",
		"--amount", "500", "--category", "Transport", "--date", "2025-04-02")
	require.NoError(t, err)

	out, err := run(t, db, "summarize", "--owner", "alice", "--month", "2025-04")
	require.NoError(t, err)
	assert.Contains(t, out, "2,000")
	assert.Contains(t, out, "2025-04-02")
	assert.Contains(t, out, "expense by category")
	assert.Contains(t, out, "75%")
	assert.NotContains(t, out, "income by category")
}

func TestCLI_DeleteFreesRecurringSlot(t *testing.T) {
	db := isolateEnv(t)

	_, err := run(t, db, "rules", "add", "--owner", "alice", "--kind", "expense",
		"--amount", "980", "--category", "Streaming", "--day", "1")
	require.NoError(t, err)
	_, err = run(t, db, "materialize", "--owner", "alice", "--month", "2025-05")
	require.NoError(t, err)

	out, err := run(t, db, "entries", "list", "--owner", "alice", "--month", "2025-05")
	require.NoError(t, err)
	require.Contains(t, out, "Streaming")

	_, err = run(t, db, "entries", "delete", "1", "--owner", "alice")
	require.NoError(t, err)

	got, err := run(t, db, "materialize", "--owner", "alice", "--month", "2025-05")
	require.NoError(t, err)
	assert.Regexp(t, `alice\s+2025-05\s+1\s+0\s+0`, got)
}

func TestCLI_Errors(t *testing.T) {
	db := isolateEnv(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"owner and all", []string{"materialize", "--owner", "alice", "--all"}, "mutually exclusive"},
		{"no owner", []string{"materialize"}, "--owner or --all"},
		{"bad month", []string{"materialize", "--owner", "alice", "--month", "2025-13"}, "month"},
		{"day out of range", []string{"rules", "add", "--owner", "alice", "--kind", "expense",
			"--amount", "10", "--category", "X", "--day", "31"}, "day"},
		{"bad kind", []string{"entries", "add", "--owner", "alice", "--kind", "gift",
			"--amount", "10", "--category", "X"}, "kind"},
		{"missing required flag", []string{"summarize"}, "owner"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, db, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCLI_Migrate(t *testing.T) {
	db := isolateEnv(t)

	out, err := run(t, db, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 1 (dirty=false)")

	out, err = run(t, db, "migrate", "--status")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 1")
}

func TestCLI_MigrateMemoryBackend(t *testing.T) {
	isolateEnv(t)

	var out, errOut bytes.Buffer
	err := execute(context.Background(), []string{"--backend", "memory", "migrate"}, &out, &errOut)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memory backend")
}

func TestCLI_InvalidBackend(t *testing.T) {
	isolateEnv(t)

	var out, errOut bytes.Buffer
	err := execute(context.Background(), []string{"--backend", "mongo", "rules", "list", "--owner", "a"}, &out, &errOut)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid data backend")
}
