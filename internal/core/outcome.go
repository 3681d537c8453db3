package core

import (
	"encoding/json"
	"errors"
	"fmt"
)

type InsertStatus int

const (
	InsertApplied InsertStatus = iota
	InsertDuplicate
	InsertFailed
)

func (s InsertStatus) String() string {
	switch s {
	case InsertApplied:
		return "applied"
	case InsertDuplicate:
		return "duplicate"
	case InsertFailed:
		return "failed"
	default:
		return fmt.Sprintf("InsertStatus(%d)", int(s))
	}
}

// InsertOutcome is the per-row result reported by LedgerStore.InsertMany.
// Entry is only set for InsertApplied, Err only for InsertFailed.
type InsertOutcome struct {
	Status InsertStatus
	Entry  LedgerEntry
	Err    error
}

// Failure is a candidate that was neither inserted nor recognised as a
// duplicate.
type Failure struct {
	Candidate LedgerEntryCandidate
	Class     FailureClass
	Err       error
}

func NewFailure(c LedgerEntryCandidate, err error) Failure {
	return Failure{Candidate: c, Class: ClassifyFailure(err), Err: err}
}

func (f Failure) Error() string {
	if f.Candidate.SourceRuleID != nil {
		return fmt.Sprintf("rule %d on %s: %v", *f.Candidate.SourceRuleID, f.Candidate.Date, f.Err)
	}
	return fmt.Sprintf("entry on %s: %v", f.Candidate.Date, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

func (f Failure) MarshalJSON() ([]byte, error) {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return json.Marshal(struct {
		SourceRuleID *int64       `json:"source_rule_id,omitempty"`
		Date         Date         `json:"date"`
		Category     string       `json:"category"`
		Class        FailureClass `json:"class"`
		Error        string       `json:"error"`
	}{
		SourceRuleID: f.Candidate.SourceRuleID,
		Date:         f.Candidate.Date,
		Category:     f.Candidate.Category,
		Class:        f.Class,
		Error:        msg,
	})
}

// ApplyResult summarises one materialization. Duplicates are an expected
// outcome and never count as failures.
type ApplyResult struct {
	OwnerID        string        `json:"owner_id"`
	Month          YearMonth     `json:"month"`
	Applied        int           `json:"applied"`
	Duplicates     int           `json:"duplicates"`
	Failures       []Failure     `json:"failures"`
	AppliedEntries []LedgerEntry `json:"applied_entries"`
}

func (r ApplyResult) HasFailures() bool {
	return len(r.Failures) > 0
}

// Err joins every failure into one error, or nil when all rows were applied
// or already present.
func (r ApplyResult) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Retryable reports whether every failure is transient, in which case the
// whole materialization can simply be called again.
func (r ApplyResult) Retryable() bool {
	if len(r.Failures) == 0 {
		return false
	}
	for _, f := range r.Failures {
		if f.Class != FailureTransient {
			return false
		}
	}
	return true
}
