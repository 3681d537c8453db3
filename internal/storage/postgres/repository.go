// Package postgres implements the storage ports on PostgreSQL through the
// pgx database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kakeibo/internal/core"
	"kakeibo/internal/storage"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type Repository struct {
	db *sql.DB
}

var _ storage.Store = (*Repository)(nil)

// NewRepository connects to connStr, applies migrations and returns a ready
// repository.
func NewRepository(ctx context.Context, connStr string) (*Repository, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", classifyError(err))
	}

	if err := RunMigrations(connStr); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return classifyError(r.db.PingContext(ctx))
}

func (r *Repository) ListRules(ctx context.Context, ownerID string) ([]core.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, kind, amount, category, memo, day_of_month, created_at
		FROM recurring_rules
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", classifyError(err))
	}
	defer rows.Close()

	rules := []core.RecurringRule{}
	for rows.Next() {
		var (
			rule core.RecurringRule
			kind string
			memo sql.NullString
		)
		if err := rows.Scan(&rule.ID, &rule.OwnerID, &kind, &rule.Amount.Amount,
			&rule.Category, &memo, &rule.DayOfMonth, &rule.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rule: %w", classifyError(err))
		}
		rule.Kind = core.Kind(kind)
		rule.Memo = memo.String
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", classifyError(err))
	}
	return rules, nil
}

func (r *Repository) CreateRule(ctx context.Context, rule core.RecurringRule) (core.RecurringRule, error) {
	rule.Category = strings.TrimSpace(rule.Category)
	if err := rule.Validate(); err != nil {
		return core.RecurringRule{}, err
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO recurring_rules (owner_id, kind, amount, category, memo, day_of_month)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		rule.OwnerID, string(rule.Kind), rule.Amount.Amount, rule.Category,
		nullString(rule.Memo), rule.DayOfMonth).Scan(&rule.ID, &rule.CreatedAt)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("create rule: %w", classifyError(err))
	}

	slog.InfoContext(ctx, "Recurring rule saved to Postgres",
		"id", rule.ID,
		"owner_id", rule.OwnerID,
		"category", rule.Category,
		"day_of_month", rule.DayOfMonth)

	return rule, nil
}

func (r *Repository) DeleteRule(ctx context.Context, ownerID string, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recurring_rules WHERE owner_id = $1 AND id = $2`, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", classifyError(err))
	}
	return requireAffected(res, "rule", id)
}

func (r *Repository) ListOwners(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT owner_id FROM recurring_rules ORDER BY owner_id`)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", classifyError(err))
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("scan owner: %w", classifyError(err))
		}
		owners = append(owners, owner)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate owners: %w", classifyError(err))
	}
	return owners, nil
}

// InsertMany issues one autocommit INSERT per row. A unique violation aborts
// only its own statement, so the remaining rows are still attempted.
func (r *Repository) InsertMany(ctx context.Context, rows []core.LedgerEntryCandidate) ([]core.InsertOutcome, error) {
	if len(rows) == 0 {
		return []core.InsertOutcome{}, nil
	}
	if err := r.db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("insert entries: %w", classifyError(err))
	}

	outcomes := make([]core.InsertOutcome, len(rows))
	for i, row := range rows {
		outcomes[i] = r.insertOne(ctx, row)
	}
	return outcomes, nil
}

func (r *Repository) insertOne(ctx context.Context, row core.LedgerEntryCandidate) core.InsertOutcome {
	if err := row.Validate(); err != nil {
		return core.InsertOutcome{Status: core.InsertFailed, Err: err}
	}

	var (
		id        int64
		createdAt time.Time
	)
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO ledger_entries
			(owner_id, kind, amount, category, memo, entry_date, entry_month, source_rule_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		row.OwnerID, string(row.Kind), row.Amount.Amount, strings.TrimSpace(row.Category),
		nullString(row.Memo), row.Date.Time, row.Month().String(),
		nullInt64(row.SourceRuleID)).Scan(&id, &createdAt)
	if err != nil {
		err = classifyError(err)
		if errors.Is(err, core.ErrDuplicate) {
			return core.InsertOutcome{Status: core.InsertDuplicate}
		}
		return core.InsertOutcome{Status: core.InsertFailed, Err: err}
	}
	return core.InsertOutcome{
		Status: core.InsertApplied,
		Entry:  storage.EntryFromCandidate(id, createdAt.UTC(), row),
	}
}

func (r *Repository) ListEntryOwners(ctx context.Context, from, to core.Date) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT owner_id FROM ledger_entries
		WHERE entry_date BETWEEN $1 AND $2
		ORDER BY owner_id`, from.Time, to.Time)
	if err != nil {
		return nil, fmt.Errorf("list entry owners: %w", classifyError(err))
	}
	defer rows.Close()

	owners := []string{}
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("scan owner: %w", classifyError(err))
		}
		owners = append(owners, owner)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entry owners: %w", classifyError(err))
	}
	return owners, nil
}

func (r *Repository) QueryByDateRange(ctx context.Context, ownerID string, from, to core.Date) ([]core.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, kind, amount, category, memo, entry_date, created_at, source_rule_id
		FROM ledger_entries
		WHERE owner_id = $1 AND entry_date BETWEEN $2 AND $3
		ORDER BY entry_date, created_at, id`, ownerID, from.Time, to.Time)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", classifyError(err))
	}
	defer rows.Close()

	entries := []core.LedgerEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", classifyError(err))
	}
	return entries, nil
}

func (r *Repository) GetEntry(ctx context.Context, ownerID string, id int64) (core.LedgerEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, kind, amount, category, memo, entry_date, created_at, source_rule_id
		FROM ledger_entries
		WHERE owner_id = $1 AND id = $2`, ownerID, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.LedgerEntry{}, fmt.Errorf("entry %d: %w", id, core.ErrNotFound)
	}
	return e, err
}

func (r *Repository) DeleteEntry(ctx context.Context, ownerID string, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM ledger_entries WHERE owner_id = $1 AND id = $2`, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", classifyError(err))
	}
	return requireAffected(res, "entry", id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (core.LedgerEntry, error) {
	var (
		e      core.LedgerEntry
		kind   string
		memo   sql.NullString
		date   time.Time
		ruleID sql.NullInt64
	)
	if err := s.Scan(&e.ID, &e.OwnerID, &kind, &e.Amount.Amount, &e.Category,
		&memo, &date, &e.CreatedAt, &ruleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.LedgerEntry{}, err
		}
		return core.LedgerEntry{}, fmt.Errorf("scan entry: %w", classifyError(err))
	}
	e.Kind = core.Kind(kind)
	e.Memo = memo.String
	e.Date = core.NewDate(date.Year(), int(date.Month()), date.Day())
	e.CreatedAt = e.CreatedAt.UTC()
	if ruleID.Valid {
		id := ruleID.Int64
		e.SourceRuleID = &id
	}
	return e, nil
}

func requireAffected(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %d rows affected: %w", what, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, core.ErrNotFound)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}
