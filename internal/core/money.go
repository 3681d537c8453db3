// Package core holds the ledger domain: entries, recurring rules, months
// and the failure taxonomy shared by every backend.
//
// This file contains functions for parsing user-entered amounts and
// rendering them with thousands separators.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseAmount converts a user-entered amount to whole minor units.
//
// Thousands separators (comma) are accepted and a fractional part is
// truncated, never rounded. The result is always positive.
//
// Examples:
//
//	ParseAmount("9800")    -> 9800, nil
//	ParseAmount("9,800")   -> 9800, nil
//	ParseAmount("9800.7")  -> 9800, nil (truncated)
//	ParseAmount("0.5")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, NewValidationError("amount", ErrInvalidAmount)
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, NewValidationError("amount", ErrInvalidAmount)
	}
	s = strings.ReplaceAll(s, ",", "")

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, NewValidationError("amount", ErrInvalidAmount)
	}
	intPart := parts[0]
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return 0, NewValidationError("amount", ErrInvalidAmount)
		}
	}
	if len(parts) == 2 {
		for _, r := range parts[1] {
			if !unicode.IsDigit(r) || r > unicode.MaxASCII {
				return 0, NewValidationError("amount", ErrInvalidAmount)
			}
		}
	}

	v, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil || v <= 0 {
		return 0, NewValidationError("amount", ErrInvalidAmount)
	}
	return v, nil
}

// String renders the amount with comma thousands separators, e.g. "9,800".
func (m Money) String() string {
	n := m.Amount
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	digits := strconv.FormatInt(n, 10)
	if len(digits) <= 3 {
		return sign + digits
	}
	var b strings.Builder
	b.WriteString(sign)
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > len(sign) {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
