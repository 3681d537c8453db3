package services

import (
	"math"
	"math/bits"
	"sort"

	"kakeibo/internal/core"
)

// Aggregate sums entries into per-day and month totals. Entries outside
// month are ignored. Days only holds dates with at least one entry.
func Aggregate(entries []core.LedgerEntry, month core.YearMonth) core.MonthSummary {
	summary := core.MonthSummary{
		Month: month,
		Days:  map[string]core.DaySum{},
	}

	inMonth := make([]core.LedgerEntry, 0, len(entries))
	for _, e := range entries {
		if !month.Contains(e.Date) {
			continue
		}
		inMonth = append(inMonth, e)

		key := e.Date.String()
		day := summary.Days[key]
		switch e.Kind {
		case core.KindExpense:
			day.Expense += e.Amount.Amount
			summary.Total.Expense += e.Amount.Amount
		case core.KindIncome:
			day.Income += e.Amount.Amount
			summary.Total.Income += e.Amount.Amount
		default:
			continue
		}
		summary.Days[key] = day
	}
	summary.Total.Net = summary.Total.Income - summary.Total.Expense
	summary.Breakdown = core.Breakdown{
		Expense: CategoryBreakdown(inMonth, core.KindExpense),
		Income:  CategoryBreakdown(inMonth, core.KindIncome),
	}
	return summary
}

// CategoryBreakdown sums entries of kind per category, largest first. Equal
// values keep the order in which their category first appeared.
func CategoryBreakdown(entries []core.LedgerEntry, kind core.Kind) []core.CategoryShare {
	shares := []core.CategoryShare{}
	index := map[string]int{}
	var total int64
	for _, e := range entries {
		if e.Kind != kind {
			continue
		}
		total += e.Amount.Amount
		i, ok := index[e.Category]
		if !ok {
			i = len(shares)
			index[e.Category] = i
			shares = append(shares, core.CategoryShare{Category: e.Category})
		}
		shares[i].Value += e.Amount.Amount
	}

	sort.SliceStable(shares, func(i, j int) bool {
		return shares[i].Value > shares[j].Value
	})
	for i := range shares {
		shares[i].Percent = Percentage(shares[i].Value, total)
	}
	return shares
}

// Percentage returns value/total as a whole percent, rounding halves up.
// A zero total gives 0. Amounts are positive, so negative inputs also give 0.
// value*100 is computed in 128 bits; results beyond math.MaxInt saturate.
func Percentage(value, total int64) int {
	if total <= 0 || value <= 0 {
		return 0
	}
	t := uint64(total)
	hi, lo := bits.Mul64(uint64(value), 100)
	if hi >= t {
		return math.MaxInt
	}
	q, r := bits.Div64(hi, lo, t)
	if 2*r >= t {
		q++
	}
	if q > math.MaxInt {
		return math.MaxInt
	}
	return int(q)
}

// EntriesOn returns the entries dated d, oldest first.
func EntriesOn(entries []core.LedgerEntry, d core.Date) []core.LedgerEntry {
	out := []core.LedgerEntry{}
	for _, e := range entries {
		if e.Date.Equal(d.Time) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
