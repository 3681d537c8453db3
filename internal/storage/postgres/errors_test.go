package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"kakeibo/internal/core"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"recurring month key", &pgconn.PgError{Code: "23505", ConstraintName: "ledger_entries_recurring_month_key"}, core.ErrDuplicate},
		{"other unique key", &pgconn.PgError{Code: "23505", ConstraintName: "ledger_entries_pkey"}, core.ErrMalformedRow},
		{"check violation", &pgconn.PgError{Code: "23514"}, core.ErrMalformedRow},
		{"bad date", &pgconn.PgError{Code: "22008"}, core.ErrMalformedRow},
		{"insufficient privilege", &pgconn.PgError{Code: "42501"}, core.ErrPermissionDenied},
		{"bad password", &pgconn.PgError{Code: "28P01"}, core.ErrPermissionDenied},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, core.ErrStoreUnavailable},
		{"serialization", &pgconn.PgError{Code: "40001"}, core.ErrStoreUnavailable},
		{"connection failure", &pgconn.PgError{Code: "08006"}, core.ErrStoreUnavailable},
		{"deadline", context.DeadlineExceeded, core.ErrStoreUnavailable},
		{"wrapped", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23505", ConstraintName: "ledger_entries_recurring_month_key"}), core.ErrDuplicate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyError(tc.err)
			assert.ErrorIs(t, got, tc.want)
			assert.ErrorIs(t, got, tc.err)
		})
	}

	plain := errors.New("syntax")
	assert.Equal(t, plain, classifyError(plain))
	assert.NoError(t, classifyError(nil))
}

func TestClassifyErrorFailureClass(t *testing.T) {
	assert.Equal(t, core.FailurePermanent, core.ClassifyFailure(classifyError(&pgconn.PgError{Code: "42501"})))
	assert.Equal(t, core.FailureTransient, core.ClassifyFailure(classifyError(&pgconn.PgError{Code: "53300"})))
}
