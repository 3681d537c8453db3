package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"kakeibo/internal/core"
	ports "kakeibo/internal/sheets"
)

func sheetsRun() ports.Run {
	return ports.Run{
		OwnerID: "u1",
		Month:   core.YearMonth{Year: 2024, Month: time.February},
		Applied: 2,
		At:      time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{})
	require.Error(t, err)
	assert.Equal(t, "missing GOOGLE_SPREADSHEET_ID", err.Error())
}

func TestNewFromEnv_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "sheet-id")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := NewFromEnv(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")
}

func TestNew_InvalidCredentialsJSON(t *testing.T) {
	_, err := New(context.Background(), Options{
		SpreadsheetID:      "sheet-id",
		ServiceAccountJSON: "not-json",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse service account credentials")
}

func TestLoadCredentials(t *testing.T) {
	ctx := context.Background()
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	b, err := loadCredentials(ctx, Options{ServiceAccountJSON: ` {"type":"service_account"} `})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"service_account"}`, string(b))

	file := filepath.Join(t.TempDir(), "sa.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"from":"file"}`), 0600))
	b, err = loadCredentials(ctx, Options{ServiceAccountFile: file})
	require.NoError(t, err)
	assert.Equal(t, `{"from":"file"}`, string(b))

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", file)
	b, err = loadCredentials(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, `{"from":"file"}`, string(b))

	_, err = loadCredentials(ctx, Options{ServiceAccountFile: filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, err)
}

func TestUpsertEntry_Guards(t *testing.T) {
	c := &Client{spreadsheetID: "test"}

	_, err := c.UpsertEntry(context.Background(), core.LedgerEntry{})
	assert.ErrorIs(t, err, core.ErrMalformedRow)

	_, err = c.UpsertEntry(context.Background(), core.LedgerEntry{ID: 1})
	assert.EqualError(t, err, "sheets service not initialized")
	assert.Error(t, c.DeleteEntry(context.Background(), "u1", 1))
	assert.Error(t, c.RecordRun(context.Background(), sheetsRun()))
}

func TestRowFromEntry(t *testing.T) {
	ruleID := int64(9)
	e := core.LedgerEntry{
		ID:           42,
		OwnerID:      "u1",
		Kind:         core.KindIncome,
		Amount:       core.Money{Amount: 250000},
		Category:     "給与",
		Memo:         "monthly",
		Date:         core.NewDate(2024, 2, 25),
		SourceRuleID: &ruleID,
	}
	assert.Equal(t, []any{"42", "2024-02-25", "income", "給与", int64(250000), "monthly", "u1", "9"}, rowFromEntry(e))

	e.SourceRuleID = nil
	assert.Equal(t, "", rowFromEntry(e)[7])
	assert.Len(t, ledgerHeader, len(rowFromEntry(e)))
}

func TestFindRow(t *testing.T) {
	ids := []string{"ID", "3", "", "42", "7"}
	assert.Equal(t, 4, findRow(ids, 42))
	assert.Equal(t, 2, findRow(ids, 3))
	assert.Equal(t, 0, findRow(ids, 99))
	assert.Equal(t, 0, findRow(nil, 1))
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Ledger", 2024, "2024 Ledger"},
		{"  Ledger  ", 2025, "2025 Ledger"},
		{"2023 Ledger", 2025, "2023 Ledger"},
		{"1800 Ledger", 2025, "2025 1800 Ledger"},
		{"", 2025, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, yearPrefixedName(tt.base, tt.year), tt.base)
	}
}

func TestIsLedgerSheet(t *testing.T) {
	assert.True(t, isLedgerSheet("2024 Ledger", "Ledger"))
	assert.False(t, isLedgerSheet("Runs", "Ledger"))
	assert.False(t, isLedgerSheet("2024 Ledger old", "Ledger"))
	assert.False(t, isLedgerSheet("abcd Ledger", "Ledger"))
	assert.False(t, isLedgerSheet("2024-Ledger", "Ledger"))
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"forbidden", &googleapi.Error{Code: http.StatusForbidden}, core.ErrPermissionDenied},
		{"unauthorized", &googleapi.Error{Code: http.StatusUnauthorized}, core.ErrPermissionDenied},
		{"bad request", &googleapi.Error{Code: http.StatusBadRequest}, core.ErrMalformedRow},
		{"rate limited", &googleapi.Error{Code: http.StatusTooManyRequests}, core.ErrStoreUnavailable},
		{"server error", &googleapi.Error{Code: http.StatusServiceUnavailable}, core.ErrStoreUnavailable},
		{"deadline", context.DeadlineExceeded, core.ErrStoreUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyError(fmt.Errorf("update: %w", tt.err))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	plain := errors.New("plain")
	assert.Same(t, plain, classifyError(plain))
}

func TestNewHTTPClientWithPooling(t *testing.T) {
	c := newHTTPClientWithPooling()
	assert.Equal(t, 60*time.Second, c.Timeout)
	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 10, tr.MaxIdleConnsPerHost)
}
