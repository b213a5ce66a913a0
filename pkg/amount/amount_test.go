package amount_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"giveflow/pkg/amount"
)

func TestIsPositiveDecimal(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"100", true},
		{"0.5", true},
		{"1.000001", true},
		{"0", false},
		{"0.0", false},
		{"00.00", false},
		{"-5", false},
		{"abc", false},
		{"1.2.3", false},
		{"1e5", false},
		{".5", false},
		{"5.", false},
		{"", false},
		{" 100", false},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, amount.IsPositiveDecimal(tt.input), "input %q", tt.input)
	}
}

func TestIsPositiveInteger(t *testing.T) {
	require.True(t, amount.IsPositiveInteger("100000000"))
	require.True(t, amount.IsPositiveInteger("1"))
	require.False(t, amount.IsPositiveInteger("0"))
	require.False(t, amount.IsPositiveInteger("1.5"))
	require.False(t, amount.IsPositiveInteger("-1"))
	require.False(t, amount.IsPositiveInteger(""))
}

func TestToSmallestUnit(t *testing.T) {
	tests := []struct {
		human    string
		decimals int
		want     string
	}{
		{"100", 6, "100000000"},
		{"0.5", 6, "500000"},
		{"1.000001", 6, "1000001"},
		// Excess precision truncates, never rounds
		{"1.0000019", 6, "1000001"},
		{"1", 18, "1000000000000000000"},
		{"0.000001", 6, "1"},
	}

	for _, tt := range tests {
		got, err := amount.ToSmallestUnit(tt.human, tt.decimals)
		require.NoError(t, err, "input %q", tt.human)
		require.Equal(t, tt.want, got.String(), "input %q", tt.human)
	}
}

func TestToSmallestUnitRejectsMalformed(t *testing.T) {
	for _, input := range []string{"", "abc", "1.2.3", "-5", "1e5"} {
		_, err := amount.ToSmallestUnit(input, 6)
		require.Error(t, err, "input %q", input)
	}
}

func TestFromSmallestUnit(t *testing.T) {
	require.Equal(t, "100", amount.FromSmallestUnit("100000000", 6))
	require.Equal(t, "0.5", amount.FromSmallestUnit("500000", 6))
	require.Equal(t, "1.000001", amount.FromSmallestUnit("1000001", 6))
	require.Equal(t, "0.000001", amount.FromSmallestUnit("1", 6))
	require.Equal(t, "0", amount.FromSmallestUnit("0", 6))

	// Round-trips through the integer form
	units, err := amount.ToSmallestUnit("38.580246", 6)
	require.NoError(t, err)
	require.Equal(t, "38.580246", amount.FromSmallestUnit(units.String(), 6))

	// Malformed input comes back unchanged
	require.Equal(t, "not-a-number", amount.FromSmallestUnit("not-a-number", 6))
}
