package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kakeibo/internal/core"
)

// Message types carried in the AMQP Type property.
const (
	TypeEntrySync         = "entry.sync"
	TypeEntryDelete       = "entry.delete"
	TypeMonthMaterialized = "month.materialized"
)

var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrMalformedMessage   = errors.New("malformed message")
)

// EntrySyncMessage carries a full snapshot of a stored ledger entry, so the
// consumer can mirror it without reading the database.
type EntrySyncMessage struct {
	Entry     core.LedgerEntry `json:"entry"`
	Timestamp time.Time        `json:"timestamp"`
}

func NewEntrySyncMessage(e core.LedgerEntry) *EntrySyncMessage {
	return &EntrySyncMessage{Entry: e, Timestamp: time.Now().UTC()}
}

// EntryDeleteMessage announces that an entry is gone.
type EntryDeleteMessage struct {
	OwnerID   string    `json:"owner_id"`
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEntryDeleteMessage(ownerID string, id int64) *EntryDeleteMessage {
	return &EntryDeleteMessage{OwnerID: ownerID, ID: id, Timestamp: time.Now().UTC()}
}

// MonthMaterializedMessage summarizes one materialization run.
type MonthMaterializedMessage struct {
	OwnerID    string         `json:"owner_id"`
	Month      core.YearMonth `json:"month"`
	Applied    int            `json:"applied"`
	Duplicates int            `json:"duplicates"`
	Failures   int            `json:"failures"`
	Timestamp  time.Time      `json:"timestamp"`
}

func NewMonthMaterializedMessage(r core.ApplyResult) *MonthMaterializedMessage {
	return &MonthMaterializedMessage{
		OwnerID:    r.OwnerID,
		Month:      r.Month,
		Applied:    r.Applied,
		Duplicates: r.Duplicates,
		Failures:   len(r.Failures),
		Timestamp:  time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *EntrySyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func (m *EntryDeleteMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func (m *MonthMaterializedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EntrySyncMessageFromJSON decodes a sync message and checks that the entry
// snapshot is usable.
func EntrySyncMessageFromJSON(data []byte) (*EntrySyncMessage, error) {
	var msg EntrySyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if msg.Entry.ID <= 0 || msg.Entry.OwnerID == "" {
		return nil, fmt.Errorf("%w: entry id and owner are required", ErrMalformedMessage)
	}
	return &msg, nil
}

func EntryDeleteMessageFromJSON(data []byte) (*EntryDeleteMessage, error) {
	var msg EntryDeleteMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if msg.ID <= 0 {
		return nil, fmt.Errorf("%w: entry id is required", ErrMalformedMessage)
	}
	return &msg, nil
}

func MonthMaterializedMessageFromJSON(data []byte) (*MonthMaterializedMessage, error) {
	var msg MonthMaterializedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	return &msg, nil
}

// Handler receives decoded messages from Dispatch.
type Handler interface {
	HandleEntrySync(ctx context.Context, msg *EntrySyncMessage) error
	HandleEntryDelete(ctx context.Context, msg *EntryDeleteMessage) error
	HandleMonthMaterialized(ctx context.Context, msg *MonthMaterializedMessage) error
}

// Dispatch decodes body according to msgType and hands it to h. Decoding
// errors wrap ErrMalformedMessage or ErrUnknownMessageType.
func Dispatch(ctx context.Context, msgType string, body []byte, h Handler) error {
	switch msgType {
	case TypeEntrySync:
		msg, err := EntrySyncMessageFromJSON(body)
		if err != nil {
			return err
		}
		return h.HandleEntrySync(ctx, msg)
	case TypeEntryDelete:
		msg, err := EntryDeleteMessageFromJSON(body)
		if err != nil {
			return err
		}
		return h.HandleEntryDelete(ctx, msg)
	case TypeMonthMaterialized:
		msg, err := MonthMaterializedMessageFromJSON(body)
		if err != nil {
			return err
		}
		return h.HandleMonthMaterialized(ctx, msg)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessageType, msgType)
	}
}

// shouldRequeue reports whether a failed delivery is worth another attempt.
// Undecodable messages and permanent handler failures are dropped.
func shouldRequeue(err error) bool {
	if errors.Is(err, ErrMalformedMessage) || errors.Is(err, ErrUnknownMessageType) {
		return false
	}
	return core.IsRetryable(err)
}
