// Package amount does exact arithmetic on raw integer token amounts. Every conversion
// between assets of different precision goes through human units so that rates apply to
// comparable quantities.
package amount

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseRaw parses a non-negative raw integer amount
func ParseRaw(raw string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, fmt.Errorf("invalid raw amount: %q", raw)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative raw amount: %s", raw)
	}
	return v, nil
}

// ToBaseUnits converts a human-readable amount into the smallest unit.
// "1.5" with 18 decimals gives 1500000000000000000. Extra fractional digits are truncated.
func ToBaseUnits(human string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(human))
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %s", human)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount cannot be negative: %s", human)
	}
	return d.Shift(decimals).Truncate(0).BigInt(), nil
}

// FromBaseUnits converts a raw amount into its human-readable form without trailing zeros
func FromBaseUnits(raw *big.Int, decimals int32) string {
	if raw == nil {
		return "0"
	}
	return decimal.NewFromBigInt(raw, -decimals).String()
}

// Human returns a raw amount as a decimal in human units
func Human(raw *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(raw, -decimals)
}

// Rescale moves a raw amount from one precision to another, truncating lost digits
func Rescale(raw *big.Int, fromDecimals, toDecimals int32) *big.Int {
	return decimal.NewFromBigInt(raw, toDecimals-fromDecimals).Truncate(0).BigInt()
}

// ConvertWithRate prices rawIn (fromDecimals) at rate and returns the raw amount in
// toDecimals units.
func ConvertWithRate(rawIn *big.Int, fromDecimals int32, rate decimal.Decimal, toDecimals int32) *big.Int {
	out := Human(rawIn, fromDecimals).Mul(rate).Shift(toDecimals)
	return out.Floor().BigInt()
}

// ExchangeRate returns how many human units of the output asset one human unit of the
// input asset buys.
func ExchangeRate(rawIn *big.Int, fromDecimals int32, rawOut *big.Int, toDecimals int32) (decimal.Decimal, error) {
	in := Human(rawIn, fromDecimals)
	if in.IsZero() {
		return decimal.Zero, fmt.Errorf("input amount is zero")
	}
	return Human(rawOut, toDecimals).Div(in), nil
}

// ApplySlippage returns floor(output * (1 - slippagePercent/100))
func ApplySlippage(output *big.Int, slippagePercent decimal.Decimal) *big.Int {
	if output == nil || output.Sign() <= 0 {
		return new(big.Int)
	}
	factor := decimal.NewFromInt(1).Sub(slippagePercent.Div(hundred))
	if factor.IsNegative() {
		return new(big.Int)
	}
	return decimal.NewFromBigInt(output, 0).Mul(factor).Floor().BigInt()
}

// SlippageBps converts a percentage into basis points
func SlippageBps(slippagePercent decimal.Decimal) int64 {
	return slippagePercent.Mul(hundred).Round(0).IntPart()
}

// Compare compares two raw integer strings exactly
func Compare(a, b string) (int, error) {
	x, err := ParseRaw(a)
	if err != nil {
		return 0, err
	}
	y, err := ParseRaw(b)
	if err != nil {
		return 0, err
	}
	return x.Cmp(y), nil
}
