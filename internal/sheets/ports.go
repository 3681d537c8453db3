package sheets

import (
	"context"
	"time"

	"kakeibo/internal/core"
)

// Ports for outbound adapters.
type (
	// EntryMirror keeps a copy of ledger entries outside the database.
	// UpsertEntry is keyed by entry id so redelivered messages do not add
	// rows twice.
	EntryMirror interface {
		UpsertEntry(ctx context.Context, e core.LedgerEntry) (rowRef string, err error)
		DeleteEntry(ctx context.Context, ownerID string, id int64) error
	}

	// RunRecorder keeps a log of materialization runs.
	RunRecorder interface {
		RecordRun(ctx context.Context, run Run) error
	}
)

// Run is one materialization run as reported on the message bus.
type Run struct {
	OwnerID    string
	Month      core.YearMonth
	Applied    int
	Duplicates int
	Failures   int
	At         time.Time
}
