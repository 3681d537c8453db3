// Package services wires the recurrence materializer, the idempotent ledger
// writer and the monthly aggregator behind one processor.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"kakeibo/internal/core"
	"kakeibo/internal/storage"

	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// RecurringProcessor is the entry point for recurring rules: it materializes
// rules into ledger entries and summarizes months. It does not schedule
// itself; callers trigger it.
type RecurringProcessor struct {
	*EntryService

	rules       storage.RuleStore
	writer      *LedgerWriter
	concurrency int
}

type ProcessorOption func(*RecurringProcessor)

// WithConcurrency bounds how many owners MaterializeAll processes at once.
func WithConcurrency(n int) ProcessorOption {
	return func(p *RecurringProcessor) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// NewRecurringProcessor wires the processor to its stores. publisher may be
// nil when no sync queue is configured.
func NewRecurringProcessor(rules storage.RuleStore, ledger storage.LedgerStore, publisher EventPublisher, opts ...ProcessorOption) *RecurringProcessor {
	p := &RecurringProcessor{
		EntryService: NewEntryService(ledger, publisher),
		rules:        rules,
		writer:       NewLedgerWriter(ledger),
		concurrency:  defaultConcurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MaterializeMonth creates the owner's recurring entries for month. It is
// idempotent and safe to call concurrently from any number of processes:
// rows that already exist are counted as duplicates. Rows that could not be
// written are listed in the result; the returned error is only set when the
// rules could not be loaded or the input is invalid.
func (p *RecurringProcessor) MaterializeMonth(ctx context.Context, ownerID string, month core.YearMonth) (core.ApplyResult, error) {
	if strings.TrimSpace(ownerID) == "" {
		return core.ApplyResult{}, core.NewValidationError("owner_id", core.ErrEmptyOwner)
	}
	if err := month.Validate(); err != nil {
		return core.ApplyResult{}, err
	}

	rules, err := p.rules.ListRules(ctx, ownerID)
	if err != nil {
		return core.ApplyResult{}, fmt.Errorf("list rules: %w", err)
	}

	candidates, err := ComputeCandidates(rules, month)
	if err != nil {
		return core.ApplyResult{}, fmt.Errorf("compute candidates: %w", err)
	}

	result, err := p.writer.Apply(ctx, candidates)
	result.OwnerID = ownerID
	result.Month = month
	if err != nil {
		return result, fmt.Errorf("apply candidates: %w", err)
	}

	slog.InfoContext(ctx, "Recurring rules materialized",
		"owner_id", ownerID,
		"month", month.String(),
		"rules", len(rules),
		"applied", result.Applied,
		"duplicates", result.Duplicates,
		"failures", len(result.Failures))

	for _, e := range result.AppliedEntries {
		p.publishEntry(ctx, e)
	}
	if p.publisher != nil && result.Applied > 0 {
		if err := p.publisher.PublishMonthMaterialized(ctx, result); err != nil {
			slog.ErrorContext(ctx, "Failed to publish month materialized message",
				"owner_id", ownerID, "month", month.String(), "error", err)
		}
	}

	return result, nil
}

// SummarizeMonth aggregates the owner's entries for month.
func (p *RecurringProcessor) SummarizeMonth(ctx context.Context, ownerID string, month core.YearMonth) (core.MonthSummary, error) {
	entries, err := p.ListEntries(ctx, ownerID, month)
	if err != nil {
		return core.MonthSummary{}, err
	}
	summary := Aggregate(entries, month)
	summary.OwnerID = ownerID
	return summary, nil
}

// MaterializeAll materializes month for every owner that has rules. One
// owner's error does not stop the others; all errors are joined.
func (p *RecurringProcessor) MaterializeAll(ctx context.Context, month core.YearMonth) ([]core.ApplyResult, error) {
	if err := month.Validate(); err != nil {
		return nil, err
	}
	owners, err := p.rules.ListOwners(ctx)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}

	results := make([]core.ApplyResult, len(owners))
	var (
		mu   sync.Mutex
		errs []error
	)

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, owner := range owners {
		g.Go(func() error {
			res, err := p.MaterializeMonth(ctx, owner, month)
			results[i] = res
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("owner %s: %w", owner, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	slog.InfoContext(ctx, "Recurring materialization run complete",
		"month", month.String(),
		"owners", len(owners),
		"errors", len(errs))

	return results, errors.Join(errs...)
}

func (p *RecurringProcessor) ListRules(ctx context.Context, ownerID string) ([]core.RecurringRule, error) {
	rules, err := p.rules.ListRules(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return rules, nil
}

// CreateRule stores a new rule. It does not materialize anything; the next
// MaterializeMonth picks it up.
func (p *RecurringProcessor) CreateRule(ctx context.Context, rule core.RecurringRule) (core.RecurringRule, error) {
	rule.Category = strings.TrimSpace(rule.Category)
	if err := rule.Validate(); err != nil {
		return core.RecurringRule{}, err
	}
	created, err := p.rules.CreateRule(ctx, rule)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("create rule: %w", err)
	}
	slog.InfoContext(ctx, "Recurring rule created",
		"rule_id", created.ID,
		"owner_id", created.OwnerID,
		"kind", string(created.Kind),
		"amount", created.Amount.Amount,
		"day_of_month", created.DayOfMonth)
	return created, nil
}

// DeleteRule removes a rule. Entries it already produced are kept.
func (p *RecurringProcessor) DeleteRule(ctx context.Context, ownerID string, id int64) error {
	if err := p.rules.DeleteRule(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	slog.InfoContext(ctx, "Recurring rule deleted", "rule_id", id, "owner_id", ownerID)
	return nil
}
