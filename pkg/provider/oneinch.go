package provider

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"swap-engine/pkg/amount"
	"swap-engine/pkg/types"
)

const (
	// DefaultOneInchURL is the 1inch developer portal API
	DefaultOneInchURL = "https://api.1inch.dev"

	oneInchAPIVersion   = "v6.0"
	oneInchNativeToken  = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"
	oneInchDefaultGas   = 300000
	oneInchDefaultLimit = 1
)

type oneInchQuoteResponse struct {
	DstAmount string `json:"dstAmount"`
}

type oneInchSwapResponse struct {
	DstAmount string        `json:"dstAmount"`
	Tx        oneInchTxData `json:"tx"`
}

type oneInchTxData struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Data     string `json:"data"`
	Value    string `json:"value"`
	Gas      uint64 `json:"gas"`
	GasPrice string `json:"gasPrice"`
}

// OneInch quotes same-chain EVM swaps through the 1inch aggregation API
type OneInch struct {
	baseURL string
	http    *httpCaller
	opts    options
}

// NewOneInch creates the 1inch provider. Requests are rate limited to one per second
// unless WithRateLimit says otherwise.
func NewOneInch(apiKey, baseURL string, opts ...Option) *OneInch {
	if baseURL == "" {
		baseURL = DefaultOneInchURL
	}
	o := newOptions(append([]Option{WithRateLimit(oneInchDefaultLimit, 1)}, opts...))

	var headers map[string]string
	if apiKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + apiKey}
	}
	return &OneInch{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newHTTPCaller(KindOneInch, o, headers),
		opts:    o,
	}
}

func (p *OneInch) Kind() Kind {
	return KindOneInch
}

func (p *OneInch) Supports(route types.RouteType, chain types.Chain) bool {
	if !chain.IsEVM() {
		return false
	}
	return route == types.RouteSameChain || route == types.RouteWrap || route == types.RouteUnwrap
}

func oneInchToken(a types.Asset) string {
	if a.IsNative() {
		return oneInchNativeToken
	}
	return a.ContractAddress
}

func (p *OneInch) FetchQuote(ctx context.Context, req types.SwapRequest) (*types.SwapQuote, error) {
	route := req.RouteType()
	if route == types.RouteWrap || route == types.RouteUnwrap {
		return wrapQuote(KindOneInch, req, p.opts.now())
	}

	in, err := parseInput(KindOneInch, req)
	if err != nil {
		return nil, err
	}
	chainID := req.FromAsset.Chain.EVMChainID()
	if chainID == 0 {
		return nil, types.NewUnsupportedRoute(req.FromAsset, req.ToAsset)
	}

	params := map[string]string{
		"src":    oneInchToken(req.FromAsset),
		"dst":    oneInchToken(req.ToAsset),
		"amount": in.String(),
	}

	// Without a sender only the price endpoint can be used
	if req.SenderAddress == "" {
		endpoint := fmt.Sprintf("%s/swap/%s/%d/quote", p.baseURL, oneInchAPIVersion, chainID)
		resp, err := call[oneInchQuoteResponse](ctx, p.http, http.MethodGet, endpoint, params, nil)
		if err != nil {
			return nil, err
		}
		out, err := amount.ParseRaw(resp.DstAmount)
		if err != nil {
			return nil, types.NewProviderError(KindOneInch.String(), fmt.Sprintf("invalid dstAmount: %v", err))
		}
		return buildQuote(KindOneInch, req, in, out, p.opts.now())
	}

	params["from"] = req.SenderAddress
	params["slippage"] = req.SlippageTolerance.String()
	params["disableEstimate"] = "true"
	params["allowPartialFill"] = "false"
	if req.DestinationAddress != "" {
		params["receiver"] = req.DestinationAddress
	}

	endpoint := fmt.Sprintf("%s/swap/%s/%d/swap", p.baseURL, oneInchAPIVersion, chainID)
	resp, err := call[oneInchSwapResponse](ctx, p.http, http.MethodGet, endpoint, params, nil)
	if err != nil {
		return nil, err
	}

	out, err := amount.ParseRaw(resp.DstAmount)
	if err != nil {
		return nil, types.NewProviderError(KindOneInch.String(), fmt.Sprintf("invalid dstAmount: %v", err))
	}
	value := new(big.Int)
	if resp.Tx.Value != "" {
		if _, ok := value.SetString(resp.Tx.Value, 10); !ok {
			return nil, types.NewProviderError(KindOneInch.String(), fmt.Sprintf("invalid tx value: %s", resp.Tx.Value))
		}
	}
	data, err := hexutil.Decode(resp.Tx.Data)
	if err != nil {
		return nil, types.NewProviderError(KindOneInch.String(), fmt.Sprintf("failed to decode tx data: %v", err))
	}

	q, err := buildQuote(KindOneInch, req, in, out, p.opts.now())
	if err != nil {
		return nil, err
	}
	gas := resp.Tx.Gas
	if gas == 0 {
		gas = oneInchDefaultGas
	}
	q.TransactionData = &types.TransactionData{
		To:       resp.Tx.To,
		Value:    value,
		Calldata: data,
		GasLimit: gas,
	}
	return q, nil
}
