// Package http provides the JSON API server and its handlers.
//
// This file implements utilities for parsing and validating HTTP request
// data: the owner header, path parameters and JSON bodies.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kakeibo/internal/core"
)

const (
	// HeaderOwnerID carries the authenticated owner. Authentication itself
	// happens in front of this service.
	HeaderOwnerID = "X-Owner-ID"

	maxOwnerIDLength = 128
	maxBodyBytes     = 64 << 10
)

var errMissingOwner = errors.New("missing " + HeaderOwnerID + " header")

// OwnerFromRequest returns the sanitized owner id of r.
func OwnerFromRequest(r *http.Request) (string, error) {
	owner := sanitizeInput(r.Header.Get(HeaderOwnerID))
	if owner == "" {
		return "", errMissingOwner
	}
	if len(owner) > maxOwnerIDLength {
		return "", fmt.Errorf("%s header too long", HeaderOwnerID)
	}
	return owner, nil
}

// ParseMonthPath parses the {month} path value as YYYY-MM.
func ParseMonthPath(r *http.Request) (core.YearMonth, error) {
	return core.ParseYearMonth(strings.TrimSpace(r.PathValue("month")))
}

// ParseIDPath parses the {id} path value as a positive integer.
func ParseIDPath(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

// DecodeJSON reads a single JSON object from r into dst. Unknown fields and
// trailing data are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if dec.More() {
		return errors.New("decode body: trailing data")
	}
	return nil
}

// Amount accepts a JSON number or a user-entered string such as "9,800".
type Amount int64

func (a *Amount) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	v, err := core.ParseAmount(stringValue(raw))
	if err != nil {
		return err
	}
	*a = Amount(v)
	return nil
}

// EntryRequest is the body of POST /api/entries.
type EntryRequest struct {
	Kind     string `json:"kind"`
	Amount   Amount `json:"amount"`
	Category string `json:"category"`
	Memo     string `json:"memo"`
	Date     string `json:"date"`
}

// Candidate converts the request into a ledger candidate for ownerID. An
// empty date means today.
func (e EntryRequest) Candidate(ownerID string, now time.Time) (core.LedgerEntryCandidate, error) {
	kind, err := core.ParseKind(e.Kind)
	if err != nil {
		return core.LedgerEntryCandidate{}, err
	}
	date := core.NewDate(now.Year(), int(now.Month()), now.Day())
	if s := strings.TrimSpace(e.Date); s != "" {
		date, err = core.ParseDate(s)
		if err != nil {
			return core.LedgerEntryCandidate{}, err
		}
	}
	return core.LedgerEntryCandidate{
		OwnerID:  ownerID,
		Kind:     kind,
		Amount:   core.Money{Amount: int64(e.Amount)},
		Category: sanitizeInput(e.Category),
		Memo:     sanitizeInput(e.Memo),
		Date:     date,
	}, nil
}

// RuleRequest is the body of POST /api/rules.
type RuleRequest struct {
	Kind       string `json:"kind"`
	Amount     Amount `json:"amount"`
	Category   string `json:"category"`
	Memo       string `json:"memo"`
	DayOfMonth int    `json:"day_of_month"`
}

// Rule converts the request into a rule for ownerID.
func (rr RuleRequest) Rule(ownerID string, now time.Time) (core.RecurringRule, error) {
	kind, err := core.ParseKind(rr.Kind)
	if err != nil {
		return core.RecurringRule{}, err
	}
	return core.RecurringRule{
		OwnerID:    ownerID,
		Kind:       kind,
		Amount:     core.Money{Amount: int64(rr.Amount)},
		Category:   sanitizeInput(rr.Category),
		Memo:       sanitizeInput(rr.Memo),
		DayOfMonth: rr.DayOfMonth,
		CreatedAt:  now,
	}, nil
}

// stringValue converts a decoded JSON scalar to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
