// Package provider adapts external liquidity sources to a single quote interface.
// The set of provider kinds is closed; the aggregator routes requests to them through a
// static table built from Supports.
package provider

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"swap-engine/pkg/amount"
	"swap-engine/pkg/types"
)

// Kind identifies a provider
type Kind string

const (
	KindThorchain Kind = "thorchain"
	KindOneClick  Kind = "oneclick"
	KindUniswapV2 Kind = "uniswap-v2"
	KindOneInch   Kind = "oneinch"
	KindJupiter   Kind = "jupiter"
)

// IsBridge reports whether the provider moves value across chains
func (k Kind) IsBridge() bool {
	return k == KindThorchain || k == KindOneClick
}

func (k Kind) String() string {
	return string(k)
}

// Provider fetches a quote for one request
type Provider interface {
	Kind() Kind
	// Supports reports whether the provider serves a route starting on chain
	Supports(route types.RouteType, chain types.Chain) bool
	FetchQuote(ctx context.Context, req types.SwapRequest) (*types.SwapQuote, error)
}

const defaultHTTPTimeout = 10 * time.Second

type options struct {
	now        func() time.Time
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures a provider
type Option func(*options)

// WithClock overrides the time source used for quote timestamps
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithRateLimit caps outgoing requests per second
func WithRateLimit(rps float64, burst int) Option {
	return func(o *options) {
		if rps > 0 {
			if burst < 1 {
				burst = 1
			}
			o.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		now:        time.Now,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// buildQuote fills the fields every provider computes the same way
func buildQuote(kind Kind, req types.SwapRequest, in, out *big.Int, now time.Time) (*types.SwapQuote, error) {
	if out == nil || out.Sign() <= 0 {
		return nil, types.NewProviderError(kind.String(), "quote has no output")
	}
	exchangeRate, err := amount.ExchangeRate(in, req.FromAsset.Decimals, out, req.ToAsset.Decimals)
	if err != nil {
		return nil, types.NewProviderError(kind.String(), err.Error())
	}
	return &types.SwapQuote{
		ID:                  uuid.New().String(),
		FromAsset:           req.FromAsset,
		ToAsset:             req.ToAsset,
		InputAmount:         in.String(),
		OutputAmount:        out.String(),
		MinimumOutputAmount: amount.ApplySlippage(out, req.SlippageTolerance).String(),
		ExchangeRate:        exchangeRate,
		SlippageTolerance:   req.SlippageTolerance,
		NetworkFee:          "0",
		Provider:            kind.String(),
		RouteType:           req.RouteType(),
		FetchedAt:           now,
		ExpiresAt:           now.Add(types.QuoteValidity),
		RoutePath:           []string{req.FromAsset.Symbol, req.ToAsset.Symbol},
	}, nil
}

// wrapQuote prices a native/wrapped conversion at 1:1 without a network call
func wrapQuote(kind Kind, req types.SwapRequest, now time.Time) (*types.SwapQuote, error) {
	in, err := amount.ParseRaw(req.Amount)
	if err != nil {
		return nil, types.NewInvalidParameters(err.Error())
	}
	out := amount.Rescale(in, req.FromAsset.Decimals, req.ToAsset.Decimals)
	q, err := buildQuote(kind, req, in, out, now)
	if err != nil {
		return nil, err
	}
	zero := decimal.Zero
	q.PriceImpact = &zero
	return q, nil
}

// parseInput validates and parses the raw request amount
func parseInput(kind Kind, req types.SwapRequest) (*big.Int, error) {
	in, err := amount.ParseRaw(req.Amount)
	if err != nil {
		return nil, types.NewInvalidParameters(fmt.Sprintf("%s: %v", kind, err))
	}
	if in.Sign() <= 0 {
		return nil, types.NewInvalidParameters("amount must be greater than 0")
	}
	return in, nil
}
