package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kakeibo/internal/core"

	_ "modernc.org/sqlite"
)

// timestampLayout is fixed width so created_at sorts lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteRepository)(nil)

func sqliteDSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return classifySQLiteError(r.db.PingContext(ctx))
}

func (r *SQLiteRepository) ListRules(ctx context.Context, ownerID string) ([]core.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, kind, amount, category, memo, day_of_month, created_at
		FROM recurring_rules
		WHERE owner_id = ?
		ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", classifySQLiteError(err))
	}
	defer rows.Close()

	rules := []core.RecurringRule{}
	for rows.Next() {
		var (
			rule      core.RecurringRule
			kind      string
			memo      sql.NullString
			createdAt string
		)
		if err := rows.Scan(&rule.ID, &rule.OwnerID, &kind, &rule.Amount.Amount,
			&rule.Category, &memo, &rule.DayOfMonth, &createdAt); err != nil {
			return nil, fmt.Errorf("scan rule: %w", classifySQLiteError(err))
		}
		rule.Kind = core.Kind(kind)
		rule.Memo = memo.String
		if rule.CreatedAt, err = time.Parse(timestampLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parse rule created_at: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", classifySQLiteError(err))
	}
	return rules, nil
}

func (r *SQLiteRepository) CreateRule(ctx context.Context, rule core.RecurringRule) (core.RecurringRule, error) {
	rule.Category = strings.TrimSpace(rule.Category)
	if err := rule.Validate(); err != nil {
		return core.RecurringRule{}, err
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = r.now()
	}
	rule.CreatedAt = rule.CreatedAt.UTC()

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_rules (owner_id, kind, amount, category, memo, day_of_month, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rule.OwnerID, string(rule.Kind), rule.Amount.Amount, rule.Category,
		nullString(rule.Memo), rule.DayOfMonth, rule.CreatedAt.Format(timestampLayout))
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("create rule: %w", classifySQLiteError(err))
	}
	if rule.ID, err = res.LastInsertId(); err != nil {
		return core.RecurringRule{}, fmt.Errorf("create rule id: %w", err)
	}

	slog.InfoContext(ctx, "Recurring rule saved to SQLite",
		"id", rule.ID,
		"owner_id", rule.OwnerID,
		"category", rule.Category,
		"day_of_month", rule.DayOfMonth)

	return rule, nil
}

func (r *SQLiteRepository) DeleteRule(ctx context.Context, ownerID string, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recurring_rules WHERE owner_id = ? AND id = ?`, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", classifySQLiteError(err))
	}
	return requireAffected(res, "rule", id)
}

func (r *SQLiteRepository) ListOwners(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT owner_id FROM recurring_rules ORDER BY owner_id`)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", classifySQLiteError(err))
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("scan owner: %w", classifySQLiteError(err))
		}
		owners = append(owners, owner)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate owners: %w", classifySQLiteError(err))
	}
	return owners, nil
}

// InsertMany runs one autocommit INSERT per row, so rows applied before a
// failure stay committed.
func (r *SQLiteRepository) InsertMany(ctx context.Context, rows []core.LedgerEntryCandidate) ([]core.InsertOutcome, error) {
	if len(rows) == 0 {
		return []core.InsertOutcome{}, nil
	}
	if err := r.db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("insert entries: %w", classifySQLiteError(err))
	}

	outcomes := make([]core.InsertOutcome, len(rows))
	for i, row := range rows {
		outcomes[i] = r.insertOne(ctx, row)
	}
	return outcomes, nil
}

func (r *SQLiteRepository) insertOne(ctx context.Context, row core.LedgerEntryCandidate) core.InsertOutcome {
	if err := row.Validate(); err != nil {
		return core.InsertOutcome{Status: core.InsertFailed, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return core.InsertOutcome{Status: core.InsertFailed, Err: classifySQLiteError(err)}
	}

	createdAt := r.now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO ledger_entries
			(owner_id, kind, amount, category, memo, entry_date, entry_month, created_at, source_rule_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.OwnerID, string(row.Kind), row.Amount.Amount, strings.TrimSpace(row.Category),
		nullString(row.Memo), row.Date.String(), row.Month().String(),
		createdAt.Format(timestampLayout), nullInt64(row.SourceRuleID))
	if err != nil {
		err = classifySQLiteError(err)
		if errors.Is(err, core.ErrDuplicate) {
			return core.InsertOutcome{Status: core.InsertDuplicate}
		}
		return core.InsertOutcome{Status: core.InsertFailed, Err: err}
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.InsertOutcome{Status: core.InsertFailed, Err: fmt.Errorf("entry id: %w", err)}
	}
	return core.InsertOutcome{Status: core.InsertApplied, Entry: EntryFromCandidate(id, createdAt, row)}
}

func (r *SQLiteRepository) ListEntryOwners(ctx context.Context, from, to core.Date) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT owner_id FROM ledger_entries
		WHERE entry_date BETWEEN ? AND ?
		ORDER BY owner_id`, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list entry owners: %w", classifySQLiteError(err))
	}
	defer rows.Close()

	owners := []string{}
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("scan owner: %w", classifySQLiteError(err))
		}
		owners = append(owners, owner)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entry owners: %w", classifySQLiteError(err))
	}
	return owners, nil
}

func (r *SQLiteRepository) QueryByDateRange(ctx context.Context, ownerID string, from, to core.Date) ([]core.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, kind, amount, category, memo, entry_date, created_at, source_rule_id
		FROM ledger_entries
		WHERE owner_id = ? AND entry_date BETWEEN ? AND ?
		ORDER BY entry_date, created_at, id`, ownerID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", classifySQLiteError(err))
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
		return nil, fmt.Errorf("iterate entries: %w", classifySQLiteError(err))
	}
	return entries, nil
}

// GetEntry retrieves a single entry by ID
func (r *SQLiteRepository) GetEntry(ctx context.Context, ownerID string, id int64) (core.LedgerEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, kind, amount, category, memo, entry_date, created_at, source_rule_id
		FROM ledger_entries
		WHERE owner_id = ? AND id = ?`, ownerID, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.LedgerEntry{}, fmt.Errorf("entry %d: %w", id, core.ErrNotFound)
	}
	return e, err
}

func (r *SQLiteRepository) DeleteEntry(ctx context.Context, ownerID string, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM ledger_entries WHERE owner_id = ? AND id = ?`, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", classifySQLiteError(err))
	}
	return requireAffected(res, "entry", id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (core.LedgerEntry, error) {
	var (
		e         core.LedgerEntry
		kind      string
		memo      sql.NullString
		date      string
		createdAt string
		ruleID    sql.NullInt64
	)
	if err := s.Scan(&e.ID, &e.OwnerID, &kind, &e.Amount.Amount, &e.Category,
		&memo, &date, &createdAt, &ruleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.LedgerEntry{}, err
		}
		return core.LedgerEntry{}, fmt.Errorf("scan entry: %w", classifySQLiteError(err))
	}
	e.Kind = core.Kind(kind)
	e.Memo = memo.String
	d, err := core.ParseDate(date)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("entry %d date %q: %w", e.ID, date, core.ErrMalformedRow)
	}
	e.Date = d
	if e.CreatedAt, err = time.Parse(timestampLayout, createdAt); err != nil {
		return core.LedgerEntry{}, fmt.Errorf("entry %d created_at %q: %w", e.ID, createdAt, core.ErrMalformedRow)
	}
	if ruleID.Valid {
		id := ruleID.Int64
		e.SourceRuleID = &id
	}
	return e, nil
}

// EntryFromCandidate builds the stored form of an applied candidate.
func EntryFromCandidate(id int64, createdAt time.Time, c core.LedgerEntryCandidate) core.LedgerEntry {
	e := core.LedgerEntry{
		ID:        id,
		OwnerID:   c.OwnerID,
		Kind:      c.Kind,
		Amount:    c.Amount,
		Category:  strings.TrimSpace(c.Category),
		Memo:      c.Memo,
		Date:      c.Date,
		CreatedAt: createdAt,
	}
	if c.SourceRuleID != nil {
		ruleID := *c.SourceRuleID
		e.SourceRuleID = &ruleID
	}
	return e
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
