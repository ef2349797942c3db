// Package token converts between human-readable decimal amounts and the
// RAGE token's fixed-point integer representation (18 decimals).
//
// Every balance, allowance, and stake comparison in the betting flow happens
// in the integer domain; decimals only appear at the display boundary.
package token

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimals is the token's fixed-point precision.
const Decimals = 18

// MaxApproval is the unbounded approval amount (2^256 - 1).
var MaxApproval = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Parse converts a decimal amount string (e.g. "50.00") to base units.
// Precision below the smallest representable unit is truncated.
func Parse(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", s, err)
	}

	return d.Shift(Decimals).Truncate(0).BigInt(), nil
}

// Format converts base units back to a decimal string, trimming trailing
// zeros ("50.00" round-trips as "50").
func Format(units *big.Int) string {
	if units == nil {
		return "0"
	}
	return decimal.NewFromBigInt(units, -Decimals).String()
}

// IsPositive reports whether the amount is strictly greater than zero.
func IsPositive(units *big.Int) bool {
	return units != nil && units.Sign() > 0
}

// Covers reports whether have is at least need. Nil is treated as zero.
func Covers(have, need *big.Int) bool {
	if need == nil || need.Sign() <= 0 {
		return true
	}
	if have == nil {
		return false
	}
	return have.Cmp(need) >= 0
}
