package provider

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"swap-engine/pkg/amount"
	"swap-engine/pkg/assets"
	"swap-engine/pkg/types"
)

const (
	uniswapTxDeadline = 20 * time.Minute
	uniswapGasLimit   = 250000
)

const uniswapV2RouterABI = `[
	{"name":"getAmountsOut","type":"function","stateMutability":"view","inputs":[
		{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],
		"outputs":[{"name":"amounts","type":"uint256[]"}]},
	{"name":"swapExactETHForTokens","type":"function","stateMutability":"payable","inputs":[
		{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},
		{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],
		"outputs":[{"name":"amounts","type":"uint256[]"}]},
	{"name":"swapExactTokensForETH","type":"function","stateMutability":"nonpayable","inputs":[
		{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},
		{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],
		"outputs":[{"name":"amounts","type":"uint256[]"}]},
	{"name":"swapExactTokensForTokens","type":"function","stateMutability":"nonpayable","inputs":[
		{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},
		{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],
		"outputs":[{"name":"amounts","type":"uint256[]"}]}
]`

var parsedUniswapV2ABI = mustParseABI(uniswapV2RouterABI)

// DefaultUniswapV2Routers are the canonical V2 router deployments
var DefaultUniswapV2Routers = map[types.Chain]string{
	types.Ethereum: "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D",
	types.BSC:      "0x10ED43C718714eb63d5aA57B78B54704E256024E",
	types.Base:     "0x4752ba5DBc23f44D87826276BF6Fd6b1C372aD24",
	types.Arbitrum: "0x4752ba5DBc23f44D87826276BF6Fd6b1C372aD24",
}

// ContractCaller is the read-only subset of ethclient.Client
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type uniswapDeployment struct {
	caller ContractCaller
	router common.Address
}

// UniswapV2 prices same-chain swaps with getAmountsOut on a V2 router and encodes the
// matching swapExact* call.
type UniswapV2 struct {
	deployments map[types.Chain]uniswapDeployment
	opts        options
}

// NewUniswapV2 creates the provider for every chain that has both a caller and a router
func NewUniswapV2(callers map[types.Chain]ContractCaller, routers map[types.Chain]string, opts ...Option) *UniswapV2 {
	deployments := make(map[types.Chain]uniswapDeployment)
	for chain, caller := range callers {
		router, ok := routers[chain]
		if !ok || !common.IsHexAddress(router) || caller == nil {
			continue
		}
		deployments[chain] = uniswapDeployment{caller: caller, router: common.HexToAddress(router)}
	}
	return &UniswapV2{
		deployments: deployments,
		opts:        newOptions(opts),
	}
}

func (p *UniswapV2) Kind() Kind {
	return KindUniswapV2
}

func (p *UniswapV2) Supports(route types.RouteType, chain types.Chain) bool {
	if _, ok := p.deployments[chain]; !ok {
		return false
	}
	return route == types.RouteSameChain || route == types.RouteWrap || route == types.RouteUnwrap
}

// pathAddress substitutes the wrapped native token for native legs
func pathAddress(a types.Asset) (common.Address, error) {
	if a.IsNative() {
		wrapped, err := assets.WrappedNative(a.Chain)
		if err != nil {
			return common.Address{}, err
		}
		return common.HexToAddress(wrapped.ContractAddress), nil
	}
	if !common.IsHexAddress(a.ContractAddress) {
		return common.Address{}, fmt.Errorf("asset %s has no valid contract address", a)
	}
	return common.HexToAddress(a.ContractAddress), nil
}

func (p *UniswapV2) FetchQuote(ctx context.Context, req types.SwapRequest) (*types.SwapQuote, error) {
	route := req.RouteType()
	if route == types.RouteWrap || route == types.RouteUnwrap {
		return wrapQuote(KindUniswapV2, req, p.opts.now())
	}

	in, err := parseInput(KindUniswapV2, req)
	if err != nil {
		return nil, err
	}
	deployment, ok := p.deployments[req.FromAsset.Chain]
	if !ok {
		return nil, types.NewUnsupportedRoute(req.FromAsset, req.ToAsset)
	}

	fromAddr, err := pathAddress(req.FromAsset)
	if err != nil {
		return nil, types.NewProviderError(KindUniswapV2.String(), err.Error())
	}
	toAddr, err := pathAddress(req.ToAsset)
	if err != nil {
		return nil, types.NewProviderError(KindUniswapV2.String(), err.Error())
	}
	path := []common.Address{fromAddr, toAddr}

	data, err := parsedUniswapV2ABI.Pack("getAmountsOut", in, path)
	if err != nil {
		return nil, types.NewProviderError(KindUniswapV2.String(), fmt.Sprintf("failed to pack getAmountsOut: %v", err))
	}
	res, err := deployment.caller.CallContract(ctx, ethereum.CallMsg{To: &deployment.router, Data: data}, nil)
	if err != nil {
		return nil, types.NewProviderError(KindUniswapV2.String(), fmt.Sprintf("failed to compute amount out: %v", err))
	}
	unpacked, err := parsedUniswapV2ABI.Unpack("getAmountsOut", res)
	if err != nil || len(unpacked) == 0 {
		return nil, types.NewProviderError(KindUniswapV2.String(), fmt.Sprintf("failed to unpack getAmountsOut: %v", err))
	}
	amountsOut, ok := unpacked[0].([]*big.Int)
	if !ok || len(amountsOut) == 0 {
		return nil, types.NewProviderError(KindUniswapV2.String(), "unexpected empty amountsOut")
	}
	out := amountsOut[len(amountsOut)-1]

	q, err := buildQuote(KindUniswapV2, req, in, out, p.opts.now())
	if err != nil {
		return nil, err
	}

	recipient := req.DestinationOrSender()
	if common.IsHexAddress(recipient) {
		minOut := amount.ApplySlippage(out, req.SlippageTolerance)
		td, err := p.swapCall(req, deployment.router, in, minOut, path, common.HexToAddress(recipient))
		if err != nil {
			return nil, err
		}
		q.TransactionData = td
	}
	return q, nil
}

func (p *UniswapV2) swapCall(req types.SwapRequest, router common.Address, in, minOut *big.Int, path []common.Address, to common.Address) (*types.TransactionData, error) {
	deadline := big.NewInt(p.opts.now().Add(uniswapTxDeadline).Unix())

	var (
		data  []byte
		value = new(big.Int)
		err   error
	)
	switch {
	case req.FromAsset.IsNative():
		data, err = parsedUniswapV2ABI.Pack("swapExactETHForTokens", minOut, path, to, deadline)
		value = new(big.Int).Set(in)
	case req.ToAsset.IsNative():
		data, err = parsedUniswapV2ABI.Pack("swapExactTokensForETH", in, minOut, path, to, deadline)
	default:
		data, err = parsedUniswapV2ABI.Pack("swapExactTokensForTokens", in, minOut, path, to, deadline)
	}
	if err != nil {
		return nil, types.NewProviderError(KindUniswapV2.String(), fmt.Sprintf("failed to pack swap: %v", err))
	}
	return &types.TransactionData{
		To:       router.Hex(),
		Value:    value,
		Calldata: data,
		GasLimit: uniswapGasLimit,
	}, nil
}

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid ABI: %v", err))
	}
	return parsed
}
