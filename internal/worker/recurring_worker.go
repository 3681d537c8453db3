package worker

import (
	"context"
	"log/slog"
	"time"

	"kakeibo/internal/core"
)

// Materializer is the part of services.RecurringProcessor the scheduler
// needs.
type Materializer interface {
	MaterializeAll(ctx context.Context, month core.YearMonth) ([]core.ApplyResult, error)
}

// RecurringWorker triggers materialization of the current month on a fixed
// interval. Materialization is idempotent, so overlapping schedulers in
// several processes are harmless.
type RecurringWorker struct {
	processor Materializer
	interval  time.Duration
	now       func() time.Time
}

func NewRecurringWorker(processor Materializer, interval time.Duration) *RecurringWorker {
	return &RecurringWorker{
		processor: processor,
		interval:  interval,
		now:       time.Now,
	}
}

// RunOnce materializes the month containing now and reports how many
// entries were created.
func (w *RecurringWorker) RunOnce(ctx context.Context) (applied int, err error) {
	month := core.YearMonthOf(w.now())
	results, err := w.processor.MaterializeAll(ctx, month)

	failures := 0
	for _, r := range results {
		applied += r.Applied
		failures += len(r.Failures)
	}
	if failures > 0 {
		slog.WarnContext(ctx, "Some recurring entries were not written; they are retried next run",
			"month", month.String(), "failures", failures)
	}
	return applied, err
}

// Run processes immediately, then on every tick until ctx is done.
func (w *RecurringWorker) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "Recurring worker started", "interval", w.interval)

	w.tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Recurring worker stopped")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *RecurringWorker) tick(ctx context.Context) {
	applied, err := w.RunOnce(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Recurring processing failed", "error", err, "applied", applied)
		return
	}
	slog.InfoContext(ctx, "Recurring processing complete",
		"applied", applied,
		"next_check", w.now().Add(w.interval).Format("15:04:05"))
}
