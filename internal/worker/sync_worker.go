package worker

import (
	"context"
	"fmt"
	"log/slog"

	"kakeibo/internal/amqp"
	"kakeibo/internal/core"
	"kakeibo/internal/sheets"
	"kakeibo/internal/storage"
)

// SyncWorker mirrors ledger messages from AMQP into a spreadsheet.
type SyncWorker struct {
	mirror    sheets.EntryMirror
	runs      sheets.RunRecorder
	batchSize int
}

var _ amqp.Handler = (*SyncWorker)(nil)

// NewSyncWorker creates a worker. runs may be nil.
func NewSyncWorker(mirror sheets.EntryMirror, runs sheets.RunRecorder, batchSize int) *SyncWorker {
	if batchSize < 1 {
		batchSize = 1
	}
	return &SyncWorker{
		mirror:    mirror,
		runs:      runs,
		batchSize: batchSize,
	}
}

// HandleEntrySync writes the entry snapshot carried by the message.
func (w *SyncWorker) HandleEntrySync(ctx context.Context, msg *amqp.EntrySyncMessage) error {
	e := msg.Entry
	ref, err := w.mirror.UpsertEntry(ctx, e)
	if err != nil {
		return fmt.Errorf("mirror entry %d: %w", e.ID, err)
	}

	slog.InfoContext(ctx, "Synced ledger entry",
		"entry_id", e.ID,
		"owner_id", e.OwnerID,
		"sheets_ref", ref,
		"amount", e.Amount.Amount,
		"category", e.Category)
	return nil
}

func (w *SyncWorker) HandleEntryDelete(ctx context.Context, msg *amqp.EntryDeleteMessage) error {
	if err := w.mirror.DeleteEntry(ctx, msg.OwnerID, msg.ID); err != nil {
		return fmt.Errorf("delete mirrored entry %d: %w", msg.ID, err)
	}
	slog.InfoContext(ctx, "Deleted mirrored entry", "entry_id", msg.ID, "owner_id", msg.OwnerID)
	return nil
}

func (w *SyncWorker) HandleMonthMaterialized(ctx context.Context, msg *amqp.MonthMaterializedMessage) error {
	if w.runs == nil {
		slog.DebugContext(ctx, "No run recorder configured, skipping run log",
			"owner_id", msg.OwnerID, "month", msg.Month.String())
		return nil
	}
	run := sheets.Run{
		OwnerID:    msg.OwnerID,
		Month:      msg.Month,
		Applied:    msg.Applied,
		Duplicates: msg.Duplicates,
		Failures:   msg.Failures,
		At:         msg.Timestamp,
	}
	if err := w.runs.RecordRun(ctx, run); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Backfill mirrors every entry of month, manual or recurring, for every
// owner that has one. It recovers from lost messages or worker downtime;
// upserts make it safe to repeat.
func (w *SyncWorker) Backfill(ctx context.Context, store storage.LedgerStore, month core.YearMonth) (int, error) {
	owners, err := store.ListEntryOwners(ctx, month.FirstDay(), month.LastDay())
	if err != nil {
		return 0, fmt.Errorf("list entry owners: %w", err)
	}

	synced, failed := 0, 0
	for _, owner := range owners {
		entries, err := store.QueryByDateRange(ctx, owner, month.FirstDay(), month.LastDay())
		if err != nil {
			return synced, fmt.Errorf("query entries for %s: %w", owner, err)
		}

		for start := 0; start < len(entries); start += w.batchSize {
			if err := ctx.Err(); err != nil {
				return synced, err
			}
			end := min(start+w.batchSize, len(entries))
			for _, e := range entries[start:end] {
				if _, err := w.mirror.UpsertEntry(ctx, e); err != nil {
					slog.ErrorContext(ctx, "Failed to backfill entry",
						"entry_id", e.ID, "owner_id", owner, "error", err)
					failed++
					continue
				}
				synced++
			}
			slog.DebugContext(ctx, "Backfill batch complete",
				"owner_id", owner, "batch_end", end, "total", len(entries))
		}
	}

	slog.InfoContext(ctx, "Backfill completed",
		"month", month.String(),
		"owners", len(owners),
		"synced", synced,
		"errors", failed)
	return synced, nil
}
