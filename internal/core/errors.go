package core

import (
	"context"
	"errors"
)

// Validation errors. They are reported before any store call.
var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidKind     = errors.New("invalid kind")
	ErrEmptyCategory   = errors.New("empty category")
	ErrCategoryTooLong = errors.New("category too long")
	ErrMemoTooLong     = errors.New("memo too long")
	ErrInvalidDay      = errors.New("invalid day of month")
	ErrInvalidMonth    = errors.New("invalid month")
	ErrInvalidDate     = errors.New("invalid date")
	ErrEmptyOwner      = errors.New("empty owner id")
	ErrMixedOwners     = errors.New("rules belong to more than one owner")
)

// Store errors. Implementations of the storage ports wrap driver errors with
// one of these so callers can classify them with errors.Is.
var (
	ErrDuplicate        = errors.New("recurring entry already materialized for month")
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrPermissionDenied = errors.New("permission denied")
	ErrMalformedRow     = errors.New("malformed row")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError wraps err with the name of the offending field.
func NewValidationError(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// FailureClass tells a caller what to do with a failed row.
type FailureClass string

const (
	// FailureTransient rows may succeed if the whole materialization is retried.
	FailureTransient FailureClass = "transient"
	// FailurePermanent rows will fail again until something outside changes.
	FailurePermanent FailureClass = "permanent"
	// FailureValidation rows were rejected before reaching the store.
	FailureValidation FailureClass = "validation"
)

// ClassifyFailure maps an insertion error to its class. Errors the stores did
// not recognise are treated as transient: retrying a materialization is
// always safe.
func ClassifyFailure(err error) FailureClass {
	switch {
	case IsValidationError(err):
		return FailureValidation
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrMalformedRow):
		return FailurePermanent
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return FailureTransient
	default:
		return FailureTransient
	}
}

// IsRetryable reports whether retrying the operation could succeed.
func IsRetryable(err error) bool {
	return err != nil && ClassifyFailure(err) == FailureTransient
}
