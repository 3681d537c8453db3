package core

// DaySum holds the per-kind totals of a single calendar day.
type DaySum struct {
	Expense int64 `json:"expense"`
	Income  int64 `json:"income"`
}

// Net is income minus expense.
func (d DaySum) Net() int64 {
	return d.Income - d.Expense
}

// MonthTotal is the month-wide sum. Net = Income - Expense.
type MonthTotal struct {
	Expense int64 `json:"expense"`
	Income  int64 `json:"income"`
	Net     int64 `json:"net"`
}

// CategoryShare is one row of a category breakdown.
type CategoryShare struct {
	Category string `json:"category"`
	Value    int64  `json:"value"`
	Percent  int    `json:"percent"`
}

// Breakdown groups the category breakdowns of both kinds.
type Breakdown struct {
	Expense []CategoryShare `json:"expense"`
	Income  []CategoryShare `json:"income"`
}

// MonthSummary is the derived view of one owner's month. Days only holds
// dates that have at least one entry, keyed YYYY-MM-DD.
type MonthSummary struct {
	OwnerID   string            `json:"owner_id,omitempty"`
	Month     YearMonth         `json:"month"`
	Days      map[string]DaySum `json:"days"`
	Total     MonthTotal        `json:"total"`
	Breakdown Breakdown         `json:"breakdown"`
}
