package services

import (
	"context"
	"fmt"
	"log/slog"

	"kakeibo/internal/core"
	"kakeibo/internal/storage"
)

// LedgerWriter inserts candidates and sorts every row into applied,
// duplicate or failed. It never checks for existing rows first: the store's
// uniqueness constraint decides.
type LedgerWriter struct {
	store storage.LedgerStore
}

func NewLedgerWriter(store storage.LedgerStore) *LedgerWriter {
	return &LedgerWriter{store: store}
}

// Apply inserts candidates and reports the outcome of each. Rows applied
// before a failure stay committed; calling Apply again with the same
// candidates only fills in what is missing.
//
// The returned error is reserved for a store that breaks its contract. Row
// failures, including a store that cannot be reached at all, are reported in
// ApplyResult.Failures.
func (w *LedgerWriter) Apply(ctx context.Context, candidates []core.LedgerEntryCandidate) (core.ApplyResult, error) {
	result := core.ApplyResult{
		Failures:       []core.Failure{},
		AppliedEntries: []core.LedgerEntry{},
	}
	if len(candidates) == 0 {
		return result, nil
	}

	valid := make([]core.LedgerEntryCandidate, 0, len(candidates))
	for _, c := range candidates {
		if err := c.Validate(); err != nil {
			result.Failures = append(result.Failures, core.NewFailure(c, err))
			continue
		}
		valid = append(valid, c)
	}
	if len(valid) == 0 {
		return result, nil
	}

	outcomes, err := w.store.InsertMany(ctx, valid)
	if err != nil {
		slog.ErrorContext(ctx, "Ledger store rejected batch",
			"rows", len(valid),
			"error", err)
		for _, c := range valid {
			result.Failures = append(result.Failures, core.NewFailure(c, err))
		}
		return result, nil
	}
	if len(outcomes) != len(valid) {
		return result, fmt.Errorf("ledger store returned %d outcomes for %d rows", len(outcomes), len(valid))
	}

	for i, o := range outcomes {
		switch o.Status {
		case core.InsertApplied:
			result.Applied++
			result.AppliedEntries = append(result.AppliedEntries, o.Entry)
		case core.InsertDuplicate:
			result.Duplicates++
		default:
			cause := o.Err
			if cause == nil {
				cause = fmt.Errorf("insert failed without a cause")
			}
			result.Failures = append(result.Failures, core.NewFailure(valid[i], cause))
		}
	}

	for _, f := range result.Failures {
		slog.WarnContext(ctx, "Ledger entry not inserted",
			"date", f.Candidate.Date.String(),
			"category", f.Candidate.Category,
			"failure_class", string(f.Class),
			"error", f.Err)
	}

	return result, nil
}
