//go:build integration

package google

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kakeibo/internal/core"
	ports "kakeibo/internal/sheets"
)

// Integration tests require real Google Sheets credentials
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_MirrorFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	if os.Getenv("GOOGLE_SPREADSHEET_ID") == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}
	if os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON") == "" &&
		os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE") == "" &&
		os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		t.Skip("service account credentials not configured, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client, err := NewFromEnv(ctx)
	require.NoError(t, err)

	now := time.Now()
	entry := core.LedgerEntry{
		ID:        now.UnixNano(),
		OwnerID:   "integration",
		Kind:      core.KindExpense,
		Amount:    core.Money{Amount: 1234},
		Category:  "test",
		Memo:      "integration test entry",
		Date:      core.NewDate(now.Year(), now.Month(), 1),
		CreatedAt: now,
	}

	ref, err := client.UpsertEntry(ctx, entry)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, yearPrefixedName(client.ledgerBase, now.Year())))

	// a redelivered message overwrites the same row
	entry.Memo = "updated"
	again, err := client.UpsertEntry(ctx, entry)
	require.NoError(t, err)
	assert.Equal(t, ref, again)

	require.NoError(t, client.DeleteEntry(ctx, entry.OwnerID, entry.ID))
	require.NoError(t, client.DeleteEntry(ctx, entry.OwnerID, entry.ID), "deleting twice is a no-op")

	err = client.RecordRun(ctx, ports.Run{
		OwnerID: "integration",
		Month:   entry.Date.YearMonth(),
		Applied: 1,
		At:      now,
	})
	require.NoError(t, err)
}
