package types

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	eth  = NativeAsset(Ethereum)
	weth = Asset{Chain: Ethereum, Symbol: "WETH", Decimals: 18, ContractAddress: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Type: AssetWrapped}
	usdc = Asset{Chain: Ethereum, Symbol: "USDC", Decimals: 6, ContractAddress: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Type: AssetStablecoin}
	btc  = NativeAsset(Bitcoin)
)

func TestDeriveRouteType(t *testing.T) {
	tests := []struct {
		name     string
		from, to Asset
		expected RouteType
	}{
		{name: "different chains", from: eth, to: btc, expected: RouteCrossChain},
		{name: "native to wrapped", from: eth, to: weth, expected: RouteWrap},
		{name: "wrapped to native", from: weth, to: eth, expected: RouteUnwrap},
		{name: "native to token", from: eth, to: usdc, expected: RouteSameChain},
		{name: "token to token", from: usdc, to: weth, expected: RouteSameChain},
		{name: "wrapped cross chain", from: weth, to: btc, expected: RouteCrossChain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := DeriveRouteType(tt.from, tt.to)
			assert.Equal(t, tt.expected, first)
			for i := 0; i < 10; i++ {
				assert.Equal(t, first, DeriveRouteType(tt.from, tt.to))
			}
		})
	}
}

func TestAssetID(t *testing.T) {
	assert.Equal(t, "ethereum:native", eth.ID())
	assert.Equal(t, "ethereum:0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", usdc.ID())

	upper := usdc
	upper.ContractAddress = "0xA0B86991C6218B36C1D19D4A2E9EB0CE3606EB48"
	assert.True(t, usdc.Equal(upper))
	assert.False(t, usdc.Equal(weth))
}

func TestSwapRequestValidate(t *testing.T) {
	valid := SwapRequest{FromAsset: eth, ToAsset: usdc, Amount: "1000", SlippageTolerance: DefaultSlippage}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(r *SwapRequest)
	}{
		{name: "empty amount", mutate: func(r *SwapRequest) { r.Amount = "" }},
		{name: "zero amount", mutate: func(r *SwapRequest) { r.Amount = "0" }},
		{name: "fractional amount", mutate: func(r *SwapRequest) { r.Amount = "1.5" }},
		{name: "same asset", mutate: func(r *SwapRequest) { r.ToAsset = eth }},
		{name: "missing asset", mutate: func(r *SwapRequest) { r.ToAsset = Asset{} }},
		{name: "slippage too high", mutate: func(r *SwapRequest) { r.SlippageTolerance = decimal.NewFromInt(51) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := req.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidParameters))
		})
	}
}

func TestCacheKey(t *testing.T) {
	a := SwapRequest{FromAsset: eth, ToAsset: usdc, Amount: "1000", SlippageTolerance: decimal.RequireFromString("0.5")}
	b := a
	b.SenderAddress = "0xabc"
	assert.Equal(t, a.CacheKey(), b.CacheKey())

	c := a
	c.SlippageTolerance = decimal.NewFromInt(1)
	assert.NotEqual(t, a.CacheKey(), c.CacheKey())
}

func TestQuoteIsExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	q := &SwapQuote{FetchedAt: now, ExpiresAt: now.Add(QuoteValidity)}

	assert.False(t, q.IsExpired(now))
	assert.False(t, q.IsExpired(now.Add(59*time.Second)))
	assert.True(t, q.IsExpired(now.Add(60*time.Second)))
	assert.True(t, q.IsExpired(now.Add(2*time.Minute)))
	assert.Equal(t, time.Duration(0), q.TimeRemaining(now.Add(time.Hour)))
}

func TestPriceImpactLevel(t *testing.T) {
	level := func(s string) PriceImpactLevel {
		d := decimal.RequireFromString(s)
		return (&SwapQuote{PriceImpact: &d}).PriceImpactLevel()
	}
	assert.Equal(t, PriceImpactNormal, level("1.2"))
	assert.Equal(t, PriceImpactHighLevel, level("5"))
	assert.Equal(t, PriceImpactVeryHighLevel, level("15.1"))
	assert.Equal(t, PriceImpactUnknown, (&SwapQuote{}).PriceImpactLevel())
}

func TestSwapErrorKinds(t *testing.T) {
	err := fmt.Errorf("simulate: %w", NewSimulationFailed("execution reverted"))
	assert.True(t, errors.Is(err, ErrSimulationFailed))
	assert.False(t, errors.Is(err, ErrQuoteExpired))
	assert.Equal(t, KindSimulationFailed, KindOf(err))
	assert.Contains(t, err.Error(), "execution reverted")

	route := NewUnsupportedRoute(btc, eth)
	assert.Equal(t, "unsupported route: BTC.bitcoin -> ETH.ethereum", route.Error())

	provider := NewProviderError("thorchain", "halted")
	assert.Equal(t, "provider error: thorchain: halted", provider.Error())

	underlying := errors.New("connection refused")
	network := NewNetworkError(underlying)
	assert.True(t, errors.Is(network, underlying))
	assert.True(t, errors.Is(network, ErrNetworkError))

	assert.Equal(t, ErrorKind(0), KindOf(underlying))
}

func TestParseChain(t *testing.T) {
	c, err := ParseChain("ETH")
	require.NoError(t, err)
	assert.Equal(t, Ethereum, c)
	assert.Equal(t, FamilyEVM, c.Family())
	assert.Equal(t, int64(1), c.EVMChainID())

	c, err = ParseChain("btc")
	require.NoError(t, err)
	assert.Equal(t, FamilyUTXO, c.Family())

	_, err = ParseChain("dogechain")
	assert.Error(t, err)
}
