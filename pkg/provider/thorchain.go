package provider

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"swap-engine/pkg/amount"
	"swap-engine/pkg/types"
)

// DefaultThornodeURL is the public thornode API
const DefaultThornodeURL = "https://thornode.ninerealms.com"

// thorDecimals is the fixed precision of every THORChain amount
const thorDecimals = 8

const (
	defaultStreamingInterval = "1"
	defaultStreamingQuantity = "0"
)

var thorNetworks = map[types.Chain]string{
	types.Ethereum:  "ETH",
	types.Avalanche: "AVAX",
	types.BSC:       "BSC",
	types.Base:      "BASE",
	types.Bitcoin:   "BTC",
	types.Solana:    "SOL",
}

type thorQuoteResponse struct {
	InboundAddress         string        `json:"inbound_address"`
	Router                 string        `json:"router"`
	Expiry                 int64         `json:"expiry"`
	Warning                string        `json:"warning"`
	DustThreshold          string        `json:"dust_threshold"`
	RecommendedMinAmountIn string        `json:"recommended_min_amount_in"`
	Memo                   string        `json:"memo"`
	ExpectedAmountOut      string        `json:"expected_amount_out"`
	TotalSwapSeconds       int64         `json:"total_swap_seconds"`
	Fees                   thorQuoteFees `json:"fees"`
}

type thorQuoteFees struct {
	Asset       string `json:"asset"`
	Outbound    string `json:"outbound"`
	Liquidity   string `json:"liquidity"`
	Total       string `json:"total"`
	SlippageBps int64  `json:"slippage_bps"`
	TotalBps    int64  `json:"total_bps"`
}

// Thorchain quotes cross-chain swaps through thornode's quote endpoint
type Thorchain struct {
	baseURL string
	http    *httpCaller
	opts    options
}

// NewThorchain creates the THORChain bridge provider
func NewThorchain(baseURL string, opts ...Option) *Thorchain {
	if baseURL == "" {
		baseURL = DefaultThornodeURL
	}
	o := newOptions(opts)
	return &Thorchain{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newHTTPCaller(KindThorchain, o, nil),
		opts:    o,
	}
}

func (p *Thorchain) Kind() Kind {
	return KindThorchain
}

func (p *Thorchain) Supports(route types.RouteType, chain types.Chain) bool {
	_, ok := thorNetworks[chain]
	return ok && route == types.RouteCrossChain
}

// thorAsset renders an asset in THORChain notation, e.g. ETH.ETH or
// ETH.USDC-0XA0B86991C6218B36C1D19D4A2E9EB0CE3606EB48
func thorAsset(a types.Asset) (string, error) {
	network, ok := thorNetworks[a.Chain]
	if !ok {
		return "", fmt.Errorf("chain %s is not supported by thorchain", a.Chain)
	}
	if a.IsNative() {
		return network + "." + a.Chain.NativeSymbol(), nil
	}
	if a.ContractAddress == "" {
		return "", fmt.Errorf("asset %s has no contract address", a)
	}
	return fmt.Sprintf("%s.%s-%s", network, strings.ToUpper(a.Symbol), strings.ToUpper(a.ContractAddress)), nil
}

func (p *Thorchain) FetchQuote(ctx context.Context, req types.SwapRequest) (*types.SwapQuote, error) {
	in, err := parseInput(KindThorchain, req)
	if err != nil {
		return nil, err
	}
	fromAsset, err := thorAsset(req.FromAsset)
	if err != nil {
		return nil, types.NewProviderError(KindThorchain.String(), err.Error())
	}
	toAsset, err := thorAsset(req.ToAsset)
	if err != nil {
		return nil, types.NewProviderError(KindThorchain.String(), err.Error())
	}

	// thornode works in 8 decimals; exact is the amount that is actually deposited
	thorAmount := amount.Rescale(in, req.FromAsset.Decimals, thorDecimals)
	exact := amount.Rescale(thorAmount, thorDecimals, req.FromAsset.Decimals)
	if thorAmount.Sign() <= 0 {
		return nil, types.NewProviderError(KindThorchain.String(), "amount too small")
	}

	params := map[string]string{
		"from_asset":         fromAsset,
		"to_asset":           toAsset,
		"amount":             thorAmount.String(),
		"streaming_interval": defaultStreamingInterval,
		"streaming_quantity": defaultStreamingQuantity,
		"tolerance_bps":      strconv.FormatInt(amount.SlippageBps(req.SlippageTolerance), 10),
	}
	if req.DestinationAddress != "" {
		params["destination"] = req.DestinationAddress
	}
	if req.SenderAddress != "" {
		params["refund_address"] = req.SenderAddress
	}

	resp, err := call[thorQuoteResponse](ctx, p.http, http.MethodGet, p.baseURL+"/thorchain/quote/swap", params, nil)
	if err != nil {
		return nil, err
	}
	// thornode omits the memo when no destination was given; such quotes price but cannot be prepared
	if resp.InboundAddress == "" {
		return nil, types.NewProviderError(KindThorchain.String(), "quote is missing inbound address")
	}
	if resp.DustThreshold != "" {
		if dust, ok := new(big.Int).SetString(resp.DustThreshold, 10); ok && thorAmount.Cmp(dust) < 0 {
			return nil, types.NewProviderError(KindThorchain.String(), fmt.Sprintf("amount below dust threshold %s", dust))
		}
	}

	thorOut, err := amount.ParseRaw(resp.ExpectedAmountOut)
	if err != nil {
		return nil, types.NewProviderError(KindThorchain.String(), fmt.Sprintf("invalid expected_amount_out: %v", err))
	}
	out := amount.Rescale(thorOut, thorDecimals, req.ToAsset.Decimals)

	q, err := buildQuote(KindThorchain, req, exact, out, p.opts.now())
	if err != nil {
		return nil, err
	}

	impact := decimal.NewFromInt(resp.Fees.SlippageBps).Div(decimal.NewFromInt(100))
	q.PriceImpact = &impact
	if fee, ok := new(big.Int).SetString(resp.Fees.Outbound, 10); ok {
		q.NetworkFee = amount.Rescale(fee, thorDecimals, req.ToAsset.Decimals).String()
	}
	q.TransactionData = &types.TransactionData{
		Memo:         resp.Memo,
		VaultAddress: resp.InboundAddress,
		Router:       resp.Router,
		Expiry:       resp.Expiry,
	}
	q.RoutePath = []string{fromAsset, toAsset}

	if resp.Warning != "" {
		logrus.WithFields(logrus.Fields{
			"provider": KindThorchain,
			"from":     fromAsset,
			"to":       toAsset,
		}).Debug(resp.Warning)
	}
	return q, nil
}
