package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"kakeibo/internal/core"
	"kakeibo/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// faultyLedger fails chosen rows, or the whole batch, and delegates the rest.
type faultyLedger struct {
	*memory.Store
	batchErr error
	rowErrs  map[string]error // keyed by category
	calls    int
}

func (f *faultyLedger) InsertMany(ctx context.Context, rows []core.LedgerEntryCandidate) ([]core.InsertOutcome, error) {
	f.calls++
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make([]core.InsertOutcome, len(rows))
	for i, row := range rows {
		if err, ok := f.rowErrs[row.Category]; ok {
			out[i] = core.InsertOutcome{Status: core.InsertFailed, Err: err}
			continue
		}
		res, err := f.Store.InsertMany(ctx, []core.LedgerEntryCandidate{row})
		if err != nil {
			return nil, err
		}
		out[i] = res[0]
	}
	return out, nil
}

func candidates(t *testing.T, month core.YearMonth, rules ...core.RecurringRule) []core.LedgerEntryCandidate {
	t.Helper()
	c, err := ComputeCandidates(rules, month)
	require.NoError(t, err)
	return c
}

func TestLedgerWriterApplyTwice(t *testing.T) {
	feb := core.YearMonth{Year: 2024, Month: time.February}
	w := NewLedgerWriter(memory.New())
	c := candidates(t, feb, rule(1, "u1", core.KindExpense, 9800, "家賃", 27))

	first, err := w.Apply(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Applied)
	assert.Equal(t, 0, first.Duplicates)
	require.Len(t, first.AppliedEntries, 1)
	assert.Equal(t, "2024-02-27", first.AppliedEntries[0].Date.String())

	second, err := w.Apply(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Applied)
	assert.Equal(t, 1, second.Duplicates)
	assert.False(t, second.HasFailures())
	assert.NoError(t, second.Err())
}

func TestLedgerWriterEmpty(t *testing.T) {
	store := &faultyLedger{Store: memory.New()}
	res, err := NewLedgerWriter(store).Apply(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, res.Applied)
	assert.Empty(t, res.Failures)
	assert.Zero(t, store.calls, "no store call for no candidates")
}

func TestLedgerWriterPartialFailure(t *testing.T) {
	feb := core.YearMonth{Year: 2024, Month: time.February}
	store := &faultyLedger{
		Store: memory.New(),
		rowErrs: map[string]error{
			"通信費": core.ErrStoreUnavailable,
			"保険":  core.ErrPermissionDenied,
		},
	}
	w := NewLedgerWriter(store)
	c := candidates(t, feb,
		rule(1, "u1", core.KindExpense, 9800, "家賃", 27),
		rule(2, "u1", core.KindExpense, 3000, "通信費", 10),
		rule(3, "u1", core.KindExpense, 2000, "保険", 5),
	)

	res, err := w.Apply(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	require.Len(t, res.Failures, 2)
	assert.Equal(t, core.FailureTransient, res.Failures[0].Class)
	assert.Equal(t, int64(2), *res.Failures[0].Candidate.SourceRuleID)
	assert.Equal(t, core.FailurePermanent, res.Failures[1].Class)
	assert.ErrorIs(t, res.Err(), core.ErrPermissionDenied)
	assert.ErrorIs(t, res.Err(), core.ErrStoreUnavailable)

	// retry after the outage: only the missing rows are added
	store.rowErrs = nil
	res, err = w.Apply(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)
	assert.Equal(t, 1, res.Duplicates)
	assert.Empty(t, res.Failures)
}

func TestLedgerWriterBatchError(t *testing.T) {
	feb := core.YearMonth{Year: 2024, Month: time.February}
	store := &faultyLedger{Store: memory.New(), batchErr: errors.Join(core.ErrStoreUnavailable, errors.New("connection refused"))}
	c := candidates(t, feb,
		rule(1, "u1", core.KindExpense, 1, "a", 1),
		rule(2, "u1", core.KindExpense, 1, "b", 2),
	)

	res, err := NewLedgerWriter(store).Apply(context.Background(), c)
	require.NoError(t, err)
	assert.Zero(t, res.Applied)
	require.Len(t, res.Failures, 2, "one failure per row")
	for _, f := range res.Failures {
		assert.ErrorIs(t, f, core.ErrStoreUnavailable)
		assert.Equal(t, core.FailureTransient, f.Class)
	}
	assert.True(t, res.Retryable())
}

func TestLedgerWriterValidationFailure(t *testing.T) {
	store := &faultyLedger{Store: memory.New()}
	bad := core.LedgerEntryCandidate{OwnerID: "u1", Kind: core.KindExpense, Category: "x", Date: core.NewDate(2024, 2, 1)}
	res, err := NewLedgerWriter(store).Apply(context.Background(), []core.LedgerEntryCandidate{bad})
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, core.FailureValidation, res.Failures[0].Class)
	assert.Zero(t, store.calls, "invalid rows never reach the store")
}

type shortLedger struct{ *memory.Store }

func (shortLedger) InsertMany(context.Context, []core.LedgerEntryCandidate) ([]core.InsertOutcome, error) {
	return []core.InsertOutcome{}, nil
}

func TestLedgerWriterOutcomeMismatch(t *testing.T) {
	c := candidates(t, core.YearMonth{Year: 2024, Month: time.February}, rule(1, "u1", core.KindExpense, 1, "a", 1))
	_, err := NewLedgerWriter(shortLedger{memory.New()}).Apply(context.Background(), c)
	assert.Error(t, err)
}
