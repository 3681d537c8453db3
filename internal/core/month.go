package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// YearMonth identifies a calendar month.
type YearMonth struct {
	Year  int
	Month time.Month
}

// NewYearMonth builds a validated YearMonth.
func NewYearMonth(year, month int) (YearMonth, error) {
	ym := YearMonth{Year: year, Month: time.Month(month)}
	if err := ym.Validate(); err != nil {
		return YearMonth{}, err
	}
	return ym, nil
}

// YearMonthOf returns the month containing t, in t's location.
func YearMonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// ParseYearMonth parses the strict YYYY-MM form.
func ParseYearMonth(s string) (YearMonth, error) {
	s = strings.TrimSpace(s)
	if len(s) != 7 || s[4] != '-' {
		return YearMonth{}, NewValidationError("month", fmt.Errorf("%w: %q", ErrInvalidMonth, s))
	}
	year, err := strconv.Atoi(s[:4])
	if err != nil {
		return YearMonth{}, NewValidationError("month", fmt.Errorf("%w: %q", ErrInvalidMonth, s))
	}
	month, err := strconv.Atoi(s[5:])
	if err != nil {
		return YearMonth{}, NewValidationError("month", fmt.Errorf("%w: %q", ErrInvalidMonth, s))
	}
	return NewYearMonth(year, month)
}

func (ym YearMonth) Validate() error {
	if ym.Year < 1 || ym.Year > 9999 {
		return NewValidationError("month", fmt.Errorf("%w: year %d", ErrInvalidMonth, ym.Year))
	}
	if ym.Month < time.January || ym.Month > time.December {
		return NewValidationError("month", fmt.Errorf("%w: month %d", ErrInvalidMonth, int(ym.Month)))
	}
	return nil
}

func (ym YearMonth) IsZero() bool {
	return ym.Year == 0 && ym.Month == 0
}

// String renders YYYY-MM, zero-padded.
func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// Date returns the given day of this month. Callers pass days in [1, 28] or
// days checked against LastDay.
func (ym YearMonth) Date(day int) Date {
	return NewDate(ym.Year, int(ym.Month), day)
}

func (ym YearMonth) FirstDay() Date {
	return ym.Date(1)
}

func (ym YearMonth) LastDay() Date {
	return Date{Time: time.Date(ym.Year, ym.Month+1, 0, 0, 0, 0, 0, time.UTC)}
}

func (ym YearMonth) Next() YearMonth {
	return YearMonthOf(time.Date(ym.Year, ym.Month+1, 1, 0, 0, 0, 0, time.UTC))
}

func (ym YearMonth) Prev() YearMonth {
	return YearMonthOf(time.Date(ym.Year, ym.Month-1, 1, 0, 0, 0, 0, time.UTC))
}

// Contains reports whether d falls inside the month.
func (ym YearMonth) Contains(d Date) bool {
	return d.Year() == ym.Year && d.Month() == ym.Month
}

func (ym YearMonth) MarshalText() ([]byte, error) {
	return []byte(ym.String()), nil
}

func (ym *YearMonth) UnmarshalText(b []byte) error {
	parsed, err := ParseYearMonth(string(b))
	if err != nil {
		return err
	}
	*ym = parsed
	return nil
}
