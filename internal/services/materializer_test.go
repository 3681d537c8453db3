package services

import (
	"testing"
	"time"

	"kakeibo/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rule(id int64, owner string, kind core.Kind, amount int64, category string, day int) core.RecurringRule {
	return core.RecurringRule{
		ID: id, OwnerID: owner, Kind: kind, Amount: core.Money{Amount: amount},
		Category: category, DayOfMonth: day,
	}
}

func TestComputeCandidates(t *testing.T) {
	feb := core.YearMonth{Year: 2024, Month: time.February}
	rent := rule(1, "u1", core.KindExpense, 9800, "家賃", 27)
	rent.Memo = "管理費込み"
	salary := rule(2, "u1", core.KindIncome, 250000, "給与", 25)

	got, err := ComputeCandidates([]core.RecurringRule{rent, salary}, feb)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "2024-02-27", got[0].Date.String())
	assert.Equal(t, core.KindExpense, got[0].Kind)
	assert.Equal(t, int64(9800), got[0].Amount.Amount)
	assert.Equal(t, "家賃", got[0].Category)
	assert.Equal(t, "管理費込み", got[0].Memo)
	assert.Equal(t, "u1", got[0].OwnerID)
	require.NotNil(t, got[0].SourceRuleID)
	assert.Equal(t, int64(1), *got[0].SourceRuleID)

	assert.Equal(t, "2024-02-25", got[1].Date.String())
	assert.Equal(t, int64(2), *got[1].SourceRuleID)

	again, err := ComputeCandidates([]core.RecurringRule{rent, salary}, feb)
	require.NoError(t, err)
	assert.Equal(t, got, again, "deterministic")
}

func TestComputeCandidatesEmpty(t *testing.T) {
	got, err := ComputeCandidates(nil, core.YearMonth{Year: 2024, Month: time.May})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestComputeCandidatesErrors(t *testing.T) {
	feb := core.YearMonth{Year: 2024, Month: time.February}
	cases := []struct {
		name  string
		rules []core.RecurringRule
		month core.YearMonth
		want  error
	}{
		{"month 13", nil, core.YearMonth{Year: 2024, Month: 13}, core.ErrInvalidMonth},
		{"zero month", nil, core.YearMonth{}, core.ErrInvalidMonth},
		{"day 29", []core.RecurringRule{rule(1, "u1", core.KindExpense, 1, "a", 29)}, feb, core.ErrInvalidDay},
		{"day 0", []core.RecurringRule{rule(1, "u1", core.KindExpense, 1, "a", 0)}, feb, core.ErrInvalidDay},
		{"mixed owners", []core.RecurringRule{
			rule(1, "u1", core.KindExpense, 1, "a", 1),
			rule(2, "u2", core.KindExpense, 1, "a", 1),
		}, feb, core.ErrMixedOwners},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ComputeCandidates(tc.rules, tc.month)
			assert.Nil(t, got)
			assert.ErrorIs(t, err, tc.want)
			assert.True(t, core.IsValidationError(err))
		})
	}
}

func TestComputeCandidatesDateAlwaysValid(t *testing.T) {
	for year := 2023; year <= 2024; year++ {
		for m := time.January; m <= time.December; m++ {
			ym := core.YearMonth{Year: year, Month: m}
			for day := core.MinDayOfMonth; day <= core.MaxDayOfMonth; day++ {
				got, err := ComputeCandidates([]core.RecurringRule{rule(1, "u1", core.KindExpense, 1, "a", day)}, ym)
				require.NoError(t, err)
				d := got[0].Date
				assert.Equal(t, year, d.Year())
				assert.Equal(t, m, d.Month())
				assert.Equal(t, day, d.Day())
			}
		}
	}
}
