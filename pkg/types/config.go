package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Process-wide swap settings.
var (
	DefaultSlippage = decimal.RequireFromString("0.5")
	MaxSlippage     = decimal.RequireFromString("50")

	MinimumTradeUSD = decimal.RequireFromString("0.01")

	PriceImpactHigh     = decimal.RequireFromString("5")
	PriceImpactVeryHigh = decimal.RequireFromString("15")
)

const (
	QuoteValidity       = 60 * time.Second
	AutoRefreshInterval = 15 * time.Second
)

// PriceImpactLevel buckets a price impact percentage
type PriceImpactLevel int

const (
	PriceImpactUnknown PriceImpactLevel = iota
	PriceImpactNormal
	PriceImpactHighLevel
	PriceImpactVeryHighLevel
)

// ClassifyPriceImpact compares an impact percentage against the configured thresholds
func ClassifyPriceImpact(impact decimal.Decimal) PriceImpactLevel {
	switch {
	case impact.GreaterThanOrEqual(PriceImpactVeryHigh):
		return PriceImpactVeryHighLevel
	case impact.GreaterThanOrEqual(PriceImpactHigh):
		return PriceImpactHighLevel
	default:
		return PriceImpactNormal
	}
}
