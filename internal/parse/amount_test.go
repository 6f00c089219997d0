package parse_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"medbill/internal/parse"
)

func TestAmount(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
		ok    bool
	}{
		{name: "pass_plain_number", input: "150.00", want: 150.00, ok: true},
		{name: "pass_currency_and_commas", input: "$1,234.56", want: 1234.56, ok: true},
		{name: "pass_parenthesized_negative", input: "(50.00)", want: -50.00, ok: true},
		{name: "pass_currency_parenthesized", input: "($2,000.00)", want: -2000.00, ok: true},
		{name: "pass_integer", input: "45", want: 45, ok: true},
		{name: "pass_surrounding_whitespace", input: "  90.00  ", want: 90.00, ok: true},
		{name: "fail_empty", input: "", ok: false},
		{name: "fail_whitespace_only", input: "   ", ok: false},
		{name: "fail_non_numeric", input: "N/A", ok: false},
		{name: "fail_mixed_garbage", input: "12.3.4", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parse.Amount(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-9)
			} else {
				assert.Zero(t, got)
			}
		})
	}
}

func TestAmount_IdempotentOnCleanOutput(t *testing.T) {
	first, ok := parse.Amount("$1,234.56")
	assert.True(t, ok)

	second, ok := parse.Amount("1234.56")
	assert.True(t, ok)
	assert.InDelta(t, first, second, 1e-9)
}
