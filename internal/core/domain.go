package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	KindExpense Kind = "expense"
	KindIncome  Kind = "income"
)

const (
	// MinDayOfMonth and MaxDayOfMonth bound RecurringRule.DayOfMonth. 28 is the
	// last day that exists in every month, February included.
	MinDayOfMonth = 1
	MaxDayOfMonth = 28

	MaxCategoryLength = 50
	MaxMemoLength     = 200
)

const dateLayout = "2006-01-02"

type (
	Kind string

	Date struct {
		time.Time
	}

	Money struct {
		Amount int64 // whole minor currency units
	}

	// RecurringRule is a monthly template. Rules are immutable: there is no
	// update operation, only create and delete.
	RecurringRule struct {
		ID         int64     `json:"id"`
		OwnerID    string    `json:"owner_id"`
		Kind       Kind      `json:"kind"`
		Amount     Money     `json:"amount"`
		Category   string    `json:"category"`
		Memo       string    `json:"memo,omitempty"`
		DayOfMonth int       `json:"day_of_month"`
		CreatedAt  time.Time `json:"created_at"`
	}

	// LedgerEntry is a dated income or expense row. SourceRuleID is a weak
	// lookup key: the entry outlives the rule that produced it.
	LedgerEntry struct {
		ID           int64     `json:"id"`
		OwnerID      string    `json:"owner_id"`
		Kind         Kind      `json:"kind"`
		Amount       Money     `json:"amount"`
		Category     string    `json:"category"`
		Memo         string    `json:"memo,omitempty"`
		Date         Date      `json:"date"`
		CreatedAt    time.Time `json:"created_at"`
		SourceRuleID *int64    `json:"source_rule_id,omitempty"`
	}

	// LedgerEntryCandidate is a row not yet inserted into the ledger.
	LedgerEntryCandidate struct {
		OwnerID      string `json:"owner_id"`
		Kind         Kind   `json:"kind"`
		Amount       Money  `json:"amount"`
		Category     string `json:"category"`
		Memo         string `json:"memo,omitempty"`
		Date         Date   `json:"date"`
		SourceRuleID *int64 `json:"source_rule_id,omitempty"`
	}
)

func (k Kind) Valid() bool {
	return k == KindExpense || k == KindIncome
}

// ParseKind accepts "expense" or "income", case-insensitive.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", NewValidationError("kind", ErrInvalidKind)
	}
	return k, nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string. Overflowing dates such as 2024-02-30
// are rejected rather than normalized.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, NewValidationError("date", ErrInvalidDate)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return NewValidationError("date", ErrInvalidDate)
	}
	return nil
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(dateLayout)
}

// YearMonth returns the calendar month the date falls in.
func (d Date) YearMonth() YearMonth {
	return YearMonth{Year: d.Year(), Month: d.Month()}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Amount <= 0 {
		return NewValidationError("amount", ErrInvalidAmount)
	}
	return nil
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Amount)
}

func (m *Money) UnmarshalJSON(b []byte) error {
	return json.Unmarshal(b, &m.Amount)
}

func (r RecurringRule) Validate() error {
	if strings.TrimSpace(r.OwnerID) == "" {
		return NewValidationError("owner_id", ErrEmptyOwner)
	}
	if !r.Kind.Valid() {
		return NewValidationError("kind", ErrInvalidKind)
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if err := validateCategory(r.Category); err != nil {
		return err
	}
	if utf8.RuneCountInString(r.Memo) > MaxMemoLength {
		return NewValidationError("memo", ErrMemoTooLong)
	}
	if r.DayOfMonth < MinDayOfMonth || r.DayOfMonth > MaxDayOfMonth {
		return NewValidationError("day_of_month", fmt.Errorf("%w: %d not in [%d, %d]",
			ErrInvalidDay, r.DayOfMonth, MinDayOfMonth, MaxDayOfMonth))
	}
	return nil
}

func (c LedgerEntryCandidate) Validate() error {
	if strings.TrimSpace(c.OwnerID) == "" {
		return NewValidationError("owner_id", ErrEmptyOwner)
	}
	if !c.Kind.Valid() {
		return NewValidationError("kind", ErrInvalidKind)
	}
	if err := c.Amount.Validate(); err != nil {
		return err
	}
	if err := validateCategory(c.Category); err != nil {
		return err
	}
	if utf8.RuneCountInString(c.Memo) > MaxMemoLength {
		return NewValidationError("memo", ErrMemoTooLong)
	}
	return c.Date.Validate()
}

// Month is the uniqueness bucket of the candidate.
func (c LedgerEntryCandidate) Month() YearMonth {
	return c.Date.YearMonth()
}

func validateCategory(category string) error {
	category = strings.TrimSpace(category)
	if category == "" {
		return NewValidationError("category", ErrEmptyCategory)
	}
	if utf8.RuneCountInString(category) > MaxCategoryLength {
		return NewValidationError("category", ErrCategoryTooLong)
	}
	return nil
}
