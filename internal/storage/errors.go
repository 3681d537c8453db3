package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"kakeibo/internal/core"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// classifySQLiteError wraps a driver error with the matching core sentinel.
// Unique violations on the recurring month key come back as core.ErrDuplicate.
func classifySQLiteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) ||
		strings.Contains(err.Error(), "database is closed") {
		return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}

	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}

	code := se.Code()
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		if isRecurringMonthViolation(se.Error()) {
			return fmt.Errorf("%w: %w", core.ErrDuplicate, err)
		}
		return fmt.Errorf("%w: %w", core.ErrMalformedRow, err)
	}

	switch code & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_IOERR,
		sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_FULL, sqlite3.SQLITE_PROTOCOL:
		return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	case sqlite3.SQLITE_READONLY, sqlite3.SQLITE_PERM, sqlite3.SQLITE_AUTH:
		return fmt.Errorf("%w: %w", core.ErrPermissionDenied, err)
	case sqlite3.SQLITE_CONSTRAINT, sqlite3.SQLITE_MISMATCH, sqlite3.SQLITE_TOOBIG, sqlite3.SQLITE_RANGE:
		return fmt.Errorf("%w: %w", core.ErrMalformedRow, err)
	}
	return err
}

// isRecurringMonthViolation matches both the index name and the column list
// SQLite reports for a unique index violation.
func isRecurringMonthViolation(msg string) bool {
	return strings.Contains(msg, RecurringMonthKey) ||
		strings.Contains(msg, "ledger_entries.source_rule_id")
}
