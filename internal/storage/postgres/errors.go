package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"kakeibo/internal/core"
	"kakeibo/internal/storage"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// classifyError wraps a pgx error with the matching core sentinel, by
// SQLSTATE. A unique violation of the recurring month key becomes
// core.ErrDuplicate.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyPgError(pgErr, err)
	}

	var connectErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connectErr) || errors.As(err, &netErr) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}
	return err
}

func classifyPgError(pgErr *pgconn.PgError, err error) error {
	switch {
	case pgErr.Code == uniqueViolation && pgErr.ConstraintName == storage.RecurringMonthKey:
		return fmt.Errorf("%w: %w", core.ErrDuplicate, err)
	case pgErr.Code == "42501", strings.HasPrefix(pgErr.Code, "28"):
		// insufficient_privilege, invalid_authorization_specification
		return fmt.Errorf("%w: %w", core.ErrPermissionDenied, err)
	case strings.HasPrefix(pgErr.Code, "23"), strings.HasPrefix(pgErr.Code, "22"):
		return fmt.Errorf("%w: %w", core.ErrMalformedRow, err)
	case strings.HasPrefix(pgErr.Code, "08"), // connection exception
		strings.HasPrefix(pgErr.Code, "53"), // insufficient resources
		strings.HasPrefix(pgErr.Code, "57"), // operator intervention
		pgErr.Code == "40001", pgErr.Code == "40P01":
		return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}
	return err
}
