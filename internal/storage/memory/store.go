// Package memory is an in-process backend used for development and tests.
// It enforces the same per-month uniqueness as the SQL backends.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"kakeibo/internal/core"
	"kakeibo/internal/storage"
)

type monthKey struct {
	owner  string
	ruleID int64
	month  core.YearMonth
}

type Store struct {
	mu      sync.Mutex
	now     func() time.Time
	nextID  int64
	rules   []core.RecurringRule
	entries []core.LedgerEntry
	keys    map[monthKey]int64
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{now: time.Now, keys: map[monthKey]int64{}}
}

// NewWithClock is New with a custom time source for created_at.
func NewWithClock(now func() time.Time) *Store {
	s := New()
	s.now = now
	return s
}

func (s *Store) Close() error { return nil }

func (s *Store) ListRules(ctx context.Context, ownerID string) ([]core.RecurringRule, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.RecurringRule{}
	for _, r := range s.rules {
		if r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) CreateRule(ctx context.Context, rule core.RecurringRule) (core.RecurringRule, error) {
	rule.Category = strings.TrimSpace(rule.Category)
	if err := rule.Validate(); err != nil {
		return core.RecurringRule{}, err
	}
	if err := ctx.Err(); err != nil {
		return core.RecurringRule{}, fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rule.ID = s.nextID
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = s.now().UTC()
	}
	s.rules = append(s.rules, rule)
	return rule, nil
}

func (s *Store) DeleteRule(_ context.Context, ownerID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rules {
		if r.OwnerID == ownerID && r.ID == id {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("rule %d: %w", id, core.ErrNotFound)
}

func (s *Store) ListOwners(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]struct{}{}
	var owners []string
	for _, r := range s.rules {
		if _, ok := seen[r.OwnerID]; ok {
			continue
		}
		seen[r.OwnerID] = struct{}{}
		owners = append(owners, r.OwnerID)
	}
	sort.Strings(owners)
	return owners, nil
}

func (s *Store) InsertMany(ctx context.Context, rows []core.LedgerEntryCandidate) ([]core.InsertOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	outcomes := make([]core.InsertOutcome, len(rows))
	for i, row := range rows {
		if err := row.Validate(); err != nil {
			outcomes[i] = core.InsertOutcome{Status: core.InsertFailed, Err: err}
			continue
		}
		var key monthKey
		if row.SourceRuleID != nil {
			key = monthKey{owner: row.OwnerID, ruleID: *row.SourceRuleID, month: row.Month()}
			if _, dup := s.keys[key]; dup {
				outcomes[i] = core.InsertOutcome{Status: core.InsertDuplicate}
				continue
			}
		}
		s.nextID++
		e := storage.EntryFromCandidate(s.nextID, s.now().UTC(), row)
		s.entries = append(s.entries, e)
		if row.SourceRuleID != nil {
			s.keys[key] = e.ID
		}
		outcomes[i] = core.InsertOutcome{Status: core.InsertApplied, Entry: e}
	}
	return outcomes, nil
}

func (s *Store) ListEntryOwners(ctx context.Context, from, to core.Date) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]struct{}{}
	owners := []string{}
	for _, e := range s.entries {
		if e.Date.Before(from.Time) || e.Date.After(to.Time) {
			continue
		}
		if _, ok := seen[e.OwnerID]; ok {
			continue
		}
		seen[e.OwnerID] = struct{}{}
		owners = append(owners, e.OwnerID)
	}
	sort.Strings(owners)
	return owners, nil
}

func (s *Store) QueryByDateRange(ctx context.Context, ownerID string, from, to core.Date) ([]core.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.LedgerEntry{}
	for _, e := range s.entries {
		if e.OwnerID != ownerID || e.Date.Before(from.Time) || e.Date.After(to.Time) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) GetEntry(_ context.Context, ownerID string, id int64) (core.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.OwnerID == ownerID && e.ID == id {
			return e, nil
		}
	}
	return core.LedgerEntry{}, fmt.Errorf("entry %d: %w", id, core.ErrNotFound)
}

func (s *Store) DeleteEntry(_ context.Context, ownerID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.OwnerID != ownerID || e.ID != id {
			continue
		}
		if e.SourceRuleID != nil {
			delete(s.keys, monthKey{owner: e.OwnerID, ruleID: *e.SourceRuleID, month: e.Date.YearMonth()})
		}
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
		return nil
	}
	return fmt.Errorf("entry %d: %w", id, core.ErrNotFound)
}
