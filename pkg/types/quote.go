package types

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionData carries the chain-specific payload hints a provider returns with its quote
type TransactionData struct {
	To       string   `json:"to,omitempty"`
	Value    *big.Int `json:"value,omitempty"`
	Calldata []byte   `json:"calldata,omitempty"`
	GasLimit uint64   `json:"gas_limit,omitempty"`

	// Bridge fields
	Memo         string `json:"memo,omitempty"`
	VaultAddress string `json:"vault_address,omitempty"`
	Router       string `json:"router,omitempty"`
	Expiry       int64  `json:"expiry,omitempty"`
	// DepositOnly marks intent-style bridges where the deposit address alone identifies the
	// swap, so a memo is optional and tokens are sent with a plain transfer.
	DepositOnly bool `json:"deposit_only,omitempty"`
}

// SwapQuote is a priced offer from one provider
type SwapQuote struct {
	ID        string `json:"id"`
	FromAsset Asset  `json:"from_asset"`
	ToAsset   Asset  `json:"to_asset"`

	// Raw integer amounts in the smallest unit of the respective asset
	InputAmount         string `json:"input_amount"`
	OutputAmount        string `json:"output_amount"`
	MinimumOutputAmount string `json:"minimum_output_amount"`

	ExchangeRate      decimal.Decimal  `json:"exchange_rate"`
	PriceImpact       *decimal.Decimal `json:"price_impact,omitempty"`
	SlippageTolerance decimal.Decimal  `json:"slippage_tolerance"`

	NetworkFee    string           `json:"network_fee"`
	NetworkFeeUSD *decimal.Decimal `json:"network_fee_usd,omitempty"`

	Provider  string    `json:"provider"`
	RouteType RouteType `json:"route_type"`

	FetchedAt time.Time `json:"fetched_at"`
	ExpiresAt time.Time `json:"expires_at"`

	TransactionData *TransactionData `json:"transaction_data,omitempty"`
	RoutePath       []string         `json:"route_path"`
}

// IsExpired reports whether the quote can no longer be used at the given instant
func (q *SwapQuote) IsExpired(now time.Time) bool {
	return !now.Before(q.ExpiresAt)
}

// TimeRemaining returns how long the quote stays valid, clamped at zero
func (q *SwapQuote) TimeRemaining(now time.Time) time.Duration {
	d := q.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// PriceImpactLevel classifies the quote's price impact
func (q *SwapQuote) PriceImpactLevel() PriceImpactLevel {
	if q.PriceImpact == nil {
		return PriceImpactUnknown
	}
	return ClassifyPriceImpact(*q.PriceImpact)
}

// ProviderFailure records a provider that did not produce a quote
type ProviderFailure struct {
	Provider string `json:"provider"`
	Err      error  `json:"-"`
}

// QuoteComparisonResult is the outcome of one aggregation call
type QuoteComparisonResult struct {
	BestQuote       *SwapQuote        `json:"best_quote"`
	AllQuotes       []*SwapQuote      `json:"all_quotes"`
	FailedProviders []ProviderFailure `json:"failed_providers"`
}
