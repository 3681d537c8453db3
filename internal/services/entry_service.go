package services

import (
	"context"
	"fmt"
	"log/slog"

	"kakeibo/internal/core"
	"kakeibo/internal/storage"
)

// EventPublisher announces ledger changes to downstream mirrors. amqp.Client
// implements it.
type EventPublisher interface {
	PublishEntrySync(ctx context.Context, entry core.LedgerEntry) error
	PublishEntryDelete(ctx context.Context, ownerID string, id int64) error
	PublishMonthMaterialized(ctx context.Context, result core.ApplyResult) error
}

// EntryService records and removes manual ledger entries. Writes go to the
// store first; the sync message that follows is best effort.
type EntryService struct {
	ledger    storage.LedgerStore
	publisher EventPublisher
}

// NewEntryService creates an entry service. publisher may be nil.
func NewEntryService(ledger storage.LedgerStore, publisher EventPublisher) *EntryService {
	return &EntryService{ledger: ledger, publisher: publisher}
}

// RecordEntry stores a manual entry. Manual entries never carry a source
// rule, so they are never deduplicated.
func (s *EntryService) RecordEntry(ctx context.Context, c core.LedgerEntryCandidate) (core.LedgerEntry, error) {
	c.SourceRuleID = nil
	if err := c.Validate(); err != nil {
		return core.LedgerEntry{}, err
	}

	outcomes, err := s.ledger.InsertMany(ctx, []core.LedgerEntryCandidate{c})
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("record entry: %w", err)
	}
	if len(outcomes) != 1 {
		return core.LedgerEntry{}, fmt.Errorf("record entry: store returned %d outcomes", len(outcomes))
	}
	if outcomes[0].Status != core.InsertApplied {
		return core.LedgerEntry{}, fmt.Errorf("record entry: %w", outcomes[0].Err)
	}

	entry := outcomes[0].Entry
	slog.InfoContext(ctx, "Ledger entry recorded",
		"entry_id", entry.ID,
		"owner_id", entry.OwnerID,
		"kind", string(entry.Kind),
		"amount", entry.Amount.Amount,
		"category", entry.Category,
		"date", entry.Date.String())

	s.publishEntry(ctx, entry)
	return entry, nil
}

func (s *EntryService) GetEntry(ctx context.Context, ownerID string, id int64) (core.LedgerEntry, error) {
	e, err := s.ledger.GetEntry(ctx, ownerID, id)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// ListEntries returns the owner's entries in month ordered by date, then
// creation time.
func (s *EntryService) ListEntries(ctx context.Context, ownerID string, month core.YearMonth) ([]core.LedgerEntry, error) {
	if err := month.Validate(); err != nil {
		return nil, err
	}
	entries, err := s.ledger.QueryByDateRange(ctx, ownerID, month.FirstDay(), month.LastDay())
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// DeleteEntry removes an entry. Deleting a materialized entry frees its
// month slot, so the next materialization recreates it.
func (s *EntryService) DeleteEntry(ctx context.Context, ownerID string, id int64) error {
	if err := s.ledger.DeleteEntry(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}

	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping delete message")
		return nil
	}
	if err := s.publisher.PublishEntryDelete(ctx, ownerID, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delete message",
			"entry_id", id, "error", err)
	}
	return nil
}

func (s *EntryService) publishEntry(ctx context.Context, e core.LedgerEntry) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping sync message")
		return
	}
	if err := s.publisher.PublishEntrySync(ctx, e); err != nil {
		// Don't fail the request - entry is saved locally
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"entry_id", e.ID, "error", err)
	}
}
