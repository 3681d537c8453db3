package storage

import (
	"context"

	"kakeibo/internal/core"
)

// Ports implemented by every backend. All reads and writes are scoped by
// owner id.
type (
	// RuleStore holds recurring rules. Rules are created and deleted, never
	// updated.
	RuleStore interface {
		// ListRules returns the owner's rules, newest first.
		ListRules(ctx context.Context, ownerID string) ([]core.RecurringRule, error)
		CreateRule(ctx context.Context, rule core.RecurringRule) (core.RecurringRule, error)
		// DeleteRule removes the rule only. Entries it produced stay.
		DeleteRule(ctx context.Context, ownerID string, id int64) error
		// ListOwners returns every owner that has at least one rule.
		ListOwners(ctx context.Context) ([]string, error)
	}

	// LedgerStore holds ledger entries and enforces one entry per
	// (owner, source rule, month).
	LedgerStore interface {
		// InsertMany inserts each row independently and reports one outcome
		// per row, in input order. Rows that conflict with the uniqueness key
		// are reported as InsertDuplicate. A non-nil error means no row was
		// attempted.
		InsertMany(ctx context.Context, rows []core.LedgerEntryCandidate) ([]core.InsertOutcome, error)
		// QueryByDateRange returns entries with from <= date <= to, ordered by
		// date then creation time.
		QueryByDateRange(ctx context.Context, ownerID string, from, to core.Date) ([]core.LedgerEntry, error)
		GetEntry(ctx context.Context, ownerID string, id int64) (core.LedgerEntry, error)
		// ListEntryOwners returns every owner with at least one entry dated
		// from <= date <= to, sorted.
		ListEntryOwners(ctx context.Context, from, to core.Date) ([]string, error)
		DeleteEntry(ctx context.Context, ownerID string, id int64) error
	}

	// Store is a complete backend.
	Store interface {
		RuleStore
		LedgerStore
		Close() error
	}
)

// RecurringMonthKey is the name of the uniqueness constraint on ledger
// entries. Both SQL backends create it with this name.
const RecurringMonthKey = "ledger_entries_recurring_month_key"
