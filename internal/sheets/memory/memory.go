package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"kakeibo/internal/core"
	ports "kakeibo/internal/sheets"
)

// Mirror is an in-process EntryMirror and RunRecorder for local runs and
// tests.
type Mirror struct {
	mu      sync.Mutex
	entries map[int64]core.LedgerEntry
	order   []int64
	runs    []ports.Run
}

var (
	_ ports.EntryMirror = (*Mirror)(nil)
	_ ports.RunRecorder = (*Mirror)(nil)
)

func New() *Mirror {
	return &Mirror{entries: make(map[int64]core.LedgerEntry)}
}

// UpsertEntry stores the entry and returns a synthetic row reference.
func (m *Mirror) UpsertEntry(_ context.Context, e core.LedgerEntry) (string, error) {
	if e.ID <= 0 {
		return "", fmt.Errorf("%w: entry id is required", core.ErrMalformedRow)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[e.ID]; !ok {
		m.order = append(m.order, e.ID)
	}
	m.entries[e.ID] = e
	return fmt.Sprintf("mem:%d", e.ID), nil
}

func (m *Mirror) DeleteEntry(_ context.Context, _ string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[id]; !ok {
		return nil
	}
	delete(m.entries, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Mirror) RecordRun(_ context.Context, run ports.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

// Entries returns mirrored entries in first-write order.
func (m *Mirror) Entries() []core.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.LedgerEntry, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.entries[id])
	}
	return out
}

// EntriesByDate returns mirrored entries for ownerID sorted by date.
func (m *Mirror) EntriesByDate(ownerID string) []core.LedgerEntry {
	all := m.Entries()
	out := all[:0]
	for _, e := range all {
		if e.OwnerID == ownerID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out
}

func (m *Mirror) Runs() []ports.Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.Run(nil), m.runs...)
}
