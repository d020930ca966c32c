package types

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// RouteType is the structural category of a swap
type RouteType string

const (
	RouteSameChain  RouteType = "sameChain"
	RouteCrossChain RouteType = "crossChain"
	RouteWrap       RouteType = "wrap"
	RouteUnwrap     RouteType = "unwrap"
)

// DeriveRouteType classifies an asset pair. It only looks at the chains and asset types,
// so the same pair always yields the same route.
func DeriveRouteType(from, to Asset) RouteType {
	switch {
	case from.Chain != to.Chain:
		return RouteCrossChain
	case from.Type == AssetNative && to.Type == AssetWrapped:
		return RouteWrap
	case from.Type == AssetWrapped && to.Type == AssetNative:
		return RouteUnwrap
	default:
		return RouteSameChain
	}
}

// SwapRequest is what a caller asks the aggregator to price
type SwapRequest struct {
	FromAsset Asset
	ToAsset   Asset
	// Amount is a raw integer in the smallest unit of FromAsset
	Amount string
	// SlippageTolerance is a percentage, e.g. 0.5 for half a percent
	SlippageTolerance  decimal.Decimal
	SenderAddress      string
	DestinationAddress string
}

// RouteType derives the route type of the request's asset pair
func (r SwapRequest) RouteType() RouteType {
	return DeriveRouteType(r.FromAsset, r.ToAsset)
}

// Validate checks the structural preconditions of a request
func (r SwapRequest) Validate() error {
	if r.FromAsset.Chain == "" || r.ToAsset.Chain == "" {
		return NewInvalidParameters("both assets must be selected")
	}
	if r.FromAsset.Equal(r.ToAsset) {
		return NewInvalidParameters("source and destination assets are the same")
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(r.Amount), 10)
	if !ok {
		return NewInvalidParameters(fmt.Sprintf("invalid amount %q", r.Amount))
	}
	if amount.Sign() <= 0 {
		return NewInvalidParameters("amount must be greater than 0")
	}
	if r.SlippageTolerance.IsNegative() || r.SlippageTolerance.GreaterThan(MaxSlippage) {
		return NewInvalidParameters(fmt.Sprintf("slippage must be between 0 and %s%%", MaxSlippage))
	}
	return nil
}

// CacheKey identifies requests that would produce the same quote
func (r SwapRequest) CacheKey() string {
	return strings.Join([]string{
		r.FromAsset.ID(),
		r.ToAsset.ID(),
		r.Amount,
		r.SlippageTolerance.String(),
	}, "|")
}

// DestinationOrSender returns where the output should be delivered
func (r SwapRequest) DestinationOrSender() string {
	if r.DestinationAddress != "" {
		return r.DestinationAddress
	}
	return r.SenderAddress
}
