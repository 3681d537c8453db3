package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 1, true},
		{"9800", 9800, true},
		{"9,800", 9800, true},
		{"1,000,000", 1000000, true},
		{"9800.7", 9800, true}, // truncated
		{" 250 ", 250, true},
		{"0.9", 0, false},
		{"-1", 0, false},
		{"+1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"１２", 0, false},
		{"", 0, false},
		{"99999999999999999999", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if assert.NoError(t, err, tc.in) {
				assert.Equal(t, tc.out, got, tc.in)
			}
		} else {
			assert.ErrorIs(t, err, ErrInvalidAmount, tc.in)
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := map[int64]string{
		0:       "0",
		980:     "980",
		9800:    "9,800",
		250000:  "250,000",
		1234567: "1,234,567",
		-1200:   "-1,200",
	}
	for in, want := range cases {
		assert.Equal(t, want, Money{Amount: in}.String())
	}
}
