package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok {
			assert.NoError(t, err, "case %d", i)
		} else {
			assert.Error(t, err, "case %d", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-27")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-27", d.String())
	assert.Equal(t, YearMonth{Year: 2024, Month: time.February}, d.YearMonth())

	for _, in := range []string{"", "2024-02-30", "2024/02/01", "27-02-2024"} {
		_, err := ParseDate(in)
		assert.ErrorIs(t, err, ErrInvalidDate, in)
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2024, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, `"2024-02-01"`, string(b))

	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"2024-03-09"`), &d))
	assert.True(t, d.Equal(NewDate(2024, 3, 9).Time))
	assert.Error(t, json.Unmarshal([]byte(`"2024-13-09"`), &d))
}

func TestMoneyValidate(t *testing.T) {
	assert.NoError(t, Money{Amount: 1}.Validate())
	assert.ErrorIs(t, Money{Amount: 0}.Validate(), ErrInvalidAmount)
	assert.ErrorIs(t, Money{Amount: -5}.Validate(), ErrInvalidAmount)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Income ")
	require.NoError(t, err)
	assert.Equal(t, KindIncome, k)

	_, err = ParseKind("transfer")
	assert.ErrorIs(t, err, ErrInvalidKind)
	assert.True(t, IsValidationError(err))
}

func TestRecurringRuleValidate(t *testing.T) {
	good := RecurringRule{
		OwnerID:    "u1",
		Kind:       KindExpense,
		Amount:     Money{Amount: 9800},
		Category:   "家賃",
		DayOfMonth: 27,
	}
	require.NoError(t, good.Validate())

	// The memo limit counts characters, not bytes.
	multibyte := good
	multibyte.Memo = strings.Repeat("家", MaxMemoLength)
	require.NoError(t, multibyte.Validate())

	cases := []struct {
		name   string
		mutate func(r *RecurringRule)
		want   error
	}{
		{"empty owner", func(r *RecurringRule) { r.OwnerID = " " }, ErrEmptyOwner},
		{"bad kind", func(r *RecurringRule) { r.Kind = "other" }, ErrInvalidKind},
		{"zero amount", func(r *RecurringRule) { r.Amount = Money{} }, ErrInvalidAmount},
		{"blank category", func(r *RecurringRule) { r.Category = "   " }, ErrEmptyCategory},
		{"long category", func(r *RecurringRule) { r.Category = strings.Repeat("x", MaxCategoryLength+1) }, ErrCategoryTooLong},
		{"long memo", func(r *RecurringRule) { r.Memo = strings.Repeat("m", MaxMemoLength+1) }, ErrMemoTooLong},
		{"long multibyte memo", func(r *RecurringRule) { r.Memo = strings.Repeat("家", MaxMemoLength+1) }, ErrMemoTooLong},
		{"day zero", func(r *RecurringRule) { r.DayOfMonth = 0 }, ErrInvalidDay},
		{"day 29", func(r *RecurringRule) { r.DayOfMonth = 29 }, ErrInvalidDay},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := good
			tc.mutate(&r)
			err := r.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestCandidateValidate(t *testing.T) {
	id := int64(3)
	c := LedgerEntryCandidate{
		OwnerID:      "u1",
		Kind:         KindIncome,
		Amount:       Money{Amount: 250000},
		Category:     "給与",
		Date:         NewDate(2024, 2, 25),
		SourceRuleID: &id,
	}
	require.NoError(t, c.Validate())
	assert.Equal(t, YearMonth{Year: 2024, Month: time.February}, c.Month())

	c.Memo = strings.Repeat("家", 67)
	require.NoError(t, c.Validate())
	c.Memo = strings.Repeat("家", MaxMemoLength)
	require.NoError(t, c.Validate())
	c.Memo = strings.Repeat("家", MaxMemoLength+1)
	assert.ErrorIs(t, c.Validate(), ErrMemoTooLong)
	c.Memo = ""

	c.Date = Date{}
	assert.ErrorIs(t, c.Validate(), ErrInvalidDate)
}

func TestClassifyFailure(t *testing.T) {
	cases := []struct {
		err  error
		want FailureClass
	}{
		{NewValidationError("amount", ErrInvalidAmount), FailureValidation},
		{ErrPermissionDenied, FailurePermanent},
		{ErrMalformedRow, FailurePermanent},
		{ErrStoreUnavailable, FailureTransient},
		{errors.Join(errors.New("dial tcp"), ErrStoreUnavailable), FailureTransient},
		{errors.New("unknown"), FailureTransient},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyFailure(tc.err), tc.err.Error())
	}
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(ErrPermissionDenied))
	assert.True(t, IsRetryable(ErrStoreUnavailable))
}

func TestApplyResultErr(t *testing.T) {
	var r ApplyResult
	assert.NoError(t, r.Err())
	assert.False(t, r.HasFailures())
	assert.False(t, r.Retryable())

	id := int64(7)
	r.Duplicates = 2
	assert.NoError(t, r.Err(), "duplicates are not failures")

	r.Failures = []Failure{
		NewFailure(LedgerEntryCandidate{Date: NewDate(2024, 2, 5), SourceRuleID: &id}, ErrStoreUnavailable),
	}
	require.Error(t, r.Err())
	assert.ErrorIs(t, r.Err(), ErrStoreUnavailable)
	assert.Contains(t, r.Err().Error(), "rule 7 on 2024-02-05")
	assert.True(t, r.Retryable())

	r.Failures = append(r.Failures, NewFailure(LedgerEntryCandidate{Date: NewDate(2024, 2, 6)}, ErrPermissionDenied))
	assert.ErrorIs(t, r.Err(), ErrPermissionDenied)
	assert.False(t, r.Retryable())
}

func TestFailureJSON(t *testing.T) {
	id := int64(4)
	f := NewFailure(LedgerEntryCandidate{Date: NewDate(2024, 2, 5), Category: "光熱費", SourceRuleID: &id}, ErrPermissionDenied)
	b, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"source_rule_id":4,"date":"2024-02-05","category":"光熱費","class":"permanent","error":"permission denied"}`, string(b))
}
