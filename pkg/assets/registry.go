package assets

import (
	"fmt"
	"sort"
	"strings"

	"swap-engine/pkg/types"
)

// Registry holds the assets the engine knows how to quote
type Registry struct {
	assets []types.Asset
}

var builtin = []types.Asset{
	types.NativeAsset(types.Ethereum),
	{Chain: types.Ethereum, Symbol: "WETH", Decimals: 18, ContractAddress: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Type: types.AssetWrapped},
	{Chain: types.Ethereum, Symbol: "USDC", Decimals: 6, ContractAddress: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Type: types.AssetStablecoin},
	{Chain: types.Ethereum, Symbol: "USDT", Decimals: 6, ContractAddress: "0xdAC17F958D2ee523a2206206994597C13D831ec7", Type: types.AssetStablecoin},
	{Chain: types.Ethereum, Symbol: "WBTC", Decimals: 8, ContractAddress: "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599", Type: types.AssetToken},

	types.NativeAsset(types.Avalanche),
	{Chain: types.Avalanche, Symbol: "WAVAX", Decimals: 18, ContractAddress: "0xB31f66AA3C1e785363F0875A1B74E27b85FD66c7", Type: types.AssetWrapped},
	{Chain: types.Avalanche, Symbol: "USDC", Decimals: 6, ContractAddress: "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E", Type: types.AssetStablecoin},

	types.NativeAsset(types.BSC),
	{Chain: types.BSC, Symbol: "WBNB", Decimals: 18, ContractAddress: "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c", Type: types.AssetWrapped},
	{Chain: types.BSC, Symbol: "USDC", Decimals: 18, ContractAddress: "0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d", Type: types.AssetStablecoin},

	types.NativeAsset(types.Base),
	{Chain: types.Base, Symbol: "WETH", Decimals: 18, ContractAddress: "0x4200000000000000000000000000000000000006", Type: types.AssetWrapped},
	{Chain: types.Base, Symbol: "USDC", Decimals: 6, ContractAddress: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Type: types.AssetStablecoin},

	types.NativeAsset(types.Arbitrum),
	{Chain: types.Arbitrum, Symbol: "WETH", Decimals: 18, ContractAddress: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1", Type: types.AssetWrapped},
	{Chain: types.Arbitrum, Symbol: "USDC", Decimals: 6, ContractAddress: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831", Type: types.AssetStablecoin},

	types.NativeAsset(types.Bitcoin),

	types.NativeAsset(types.Solana),
	{Chain: types.Solana, Symbol: "WSOL", Decimals: 9, ContractAddress: "So11111111111111111111111111111111111111112", Type: types.AssetWrapped},
	{Chain: types.Solana, Symbol: "USDC", Decimals: 6, ContractAddress: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Type: types.AssetStablecoin},
}

// NewRegistry returns a registry with the built-in assets plus any extras
func NewRegistry(extra ...types.Asset) *Registry {
	all := make([]types.Asset, 0, len(builtin)+len(extra))
	all = append(all, builtin...)
	all = append(all, extra...)
	return &Registry{assets: all}
}

// All returns every known asset sorted by chain then symbol
func (r *Registry) All() []types.Asset {
	out := make([]types.Asset, len(r.assets))
	copy(out, r.assets)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Chain != out[j].Chain {
			return out[i].Chain < out[j].Chain
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// Find looks up an asset by symbol on a chain
func (r *Registry) Find(symbol string, chain types.Chain) (types.Asset, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, a := range r.assets {
		if a.Chain == chain && strings.ToUpper(a.Symbol) == symbol {
			return a, nil
		}
	}
	return types.Asset{}, fmt.Errorf("token '%s' not found on chain '%s'", symbol, chain)
}

// FindAnyChain looks up an asset by symbol, preferring the chain where it is native
func (r *Registry) FindAnyChain(symbol string) (types.Asset, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	var fallback *types.Asset
	for i, a := range r.assets {
		if strings.ToUpper(a.Symbol) != symbol {
			continue
		}
		if a.IsNative() {
			return a, nil
		}
		if fallback == nil {
			fallback = &r.assets[i]
		}
	}
	if fallback == nil {
		return types.Asset{}, fmt.Errorf("token '%s' not found", symbol)
	}
	return *fallback, nil
}

// WrappedNative returns the canonical wrapped form of a chain's native currency
func (r *Registry) WrappedNative(chain types.Chain) (types.Asset, error) {
	return WrappedNative(chain)
}

// WrappedNative returns the canonical wrapped-asset contract for a chain
func WrappedNative(chain types.Chain) (types.Asset, error) {
	for _, a := range builtin {
		if a.Chain == chain && a.Type == types.AssetWrapped {
			return a, nil
		}
	}
	return types.Asset{}, fmt.Errorf("no wrapped native asset for chain %s", chain)
}
