package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseYearMonth(t *testing.T) {
	cases := []struct {
		in   string
		want YearMonth
		ok   bool
	}{
		{"2024-02", YearMonth{2024, time.February}, true},
		{"0001-01", YearMonth{1, time.January}, true},
		{"9999-12", YearMonth{9999, time.December}, true},
		{"2024-13", YearMonth{}, false},
		{"2024-00", YearMonth{}, false},
		{"2024-2", YearMonth{}, false},
		{"0000-05", YearMonth{}, false},
		{"24-02-01", YearMonth{}, false},
		{"", YearMonth{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseYearMonth(tc.in)
			if !tc.ok {
				assert.ErrorIs(t, err, ErrInvalidMonth)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.in, got.String())
		})
	}
}

func TestYearMonthBounds(t *testing.T) {
	feb := YearMonth{Year: 2024, Month: time.February}
	assert.Equal(t, "2024-02-01", feb.FirstDay().String())
	assert.Equal(t, "2024-02-29", feb.LastDay().String())
	assert.Equal(t, "2023-02-28", YearMonth{2023, time.February}.LastDay().String())
	assert.Equal(t, "2024-03", feb.Next().String())
	assert.Equal(t, "2024-01", feb.Prev().String())
	assert.Equal(t, "2025-01", YearMonth{2024, time.December}.Next().String())
	assert.Equal(t, "2023-12", YearMonth{2024, time.January}.Prev().String())

	assert.True(t, feb.Contains(NewDate(2024, 2, 29)))
	assert.False(t, feb.Contains(NewDate(2024, 3, 1)))
	assert.False(t, feb.Contains(NewDate(2023, 2, 1)))
}

func TestYearMonthDateAlwaysValid(t *testing.T) {
	for year := 2023; year <= 2024; year++ {
		for m := time.January; m <= time.December; m++ {
			ym := YearMonth{Year: year, Month: m}
			for day := MinDayOfMonth; day <= MaxDayOfMonth; day++ {
				d := ym.Date(day)
				assert.True(t, ym.Contains(d), "%s day %d overflowed to %s", ym, day, d)
				parsed, err := ParseDate(d.String())
				require.NoError(t, err)
				assert.Equal(t, day, parsed.Day())
			}
		}
	}
}

func TestYearMonthText(t *testing.T) {
	var ym YearMonth
	require.NoError(t, ym.UnmarshalText([]byte("2024-11")))
	b, err := ym.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2024-11", string(b))
	assert.Error(t, ym.UnmarshalText([]byte("2024-11-01")))
}
