// Package amount converts between human-readable decimal amounts and
// smallest-unit integer amounts without going through floating point.
package amount

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

var decimalPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)

// IsPositiveDecimal reports whether s parses as a decimal greater than zero
func IsPositiveDecimal(s string) bool {
	if !decimalPattern.MatchString(s) {
		return false
	}
	// All-zero digits ("0", "0.00") are not positive
	return strings.ContainsFunc(s, func(r rune) bool { return r >= '1' && r <= '9' })
}

// IsPositiveInteger reports whether s is a base-10 integer string greater than zero
func IsPositiveInteger(s string) bool {
	if s == "" {
		return false
	}
	nonZero := false
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
		if r != '0' {
			nonZero = true
		}
	}
	return nonZero
}

// ToSmallestUnit converts a decimal amount string to an integer in the token's
// smallest unit. Fractional digits beyond the token's precision are truncated
// towards zero. The amount must be a non-negative decimal.
func ToSmallestUnit(amount string, decimals int) (*big.Int, error) {
	if !decimalPattern.MatchString(amount) {
		return nil, fmt.Errorf("invalid decimal amount: %q", amount)
	}

	whole, frac, _ := strings.Cut(amount, ".")

	// Pad or truncate the fractional part to exactly `decimals` digits
	if len(frac) > decimals {
		frac = frac[:decimals]
	}
	frac += strings.Repeat("0", decimals-len(frac))

	result, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal amount: %q", amount)
	}

	return result, nil
}

// FromSmallestUnit formats an integer smallest-unit string as a human-readable
// decimal, trimming trailing zeros. Invalid input is returned unchanged so
// display code never crashes on a malformed provider amount.
func FromSmallestUnit(units string, decimals int) string {
	n, ok := new(big.Int).SetString(units, 10)
	if !ok || n.Sign() < 0 {
		return units
	}

	s := n.String()
	if decimals == 0 {
		return s
	}

	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}

	cut := len(s) - decimals
	whole, frac := s[:cut], s[cut:]
	frac = strings.TrimRight(frac, "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}
