package types

import (
	"strings"
)

// AssetType classifies a tradeable asset
type AssetType string

const (
	AssetNative     AssetType = "native"
	AssetToken      AssetType = "token"
	AssetWrapped    AssetType = "wrapped"
	AssetStablecoin AssetType = "stablecoin"
	AssetNFT        AssetType = "nft"
)

// nativeMarker stands in for the contract address of a chain's native currency
const nativeMarker = "native"

// Asset describes something that can be swapped. Assets are values and are never mutated
// after construction.
type Asset struct {
	Chain           Chain     `json:"chain"`
	Symbol          string    `json:"symbol"`
	Decimals        int32     `json:"decimals"`
	ContractAddress string    `json:"contract_address,omitempty"`
	Type            AssetType `json:"type"`
}

// NativeAsset returns the native currency of a chain
func NativeAsset(chain Chain) Asset {
	return Asset{
		Chain:    chain,
		Symbol:   chain.NativeSymbol(),
		Decimals: chain.NativeDecimals(),
		Type:     AssetNative,
	}
}

// ID returns the identity key (chain, contract-or-native)
func (a Asset) ID() string {
	if a.IsNative() || a.ContractAddress == "" {
		return string(a.Chain) + ":" + nativeMarker
	}
	return string(a.Chain) + ":" + strings.ToLower(a.ContractAddress)
}

// IsNative reports whether the asset is the chain's native currency
func (a Asset) IsNative() bool {
	return a.Type == AssetNative
}

// Equal compares assets by identity key
func (a Asset) Equal(b Asset) bool {
	return a.ID() == b.ID()
}

func (a Asset) String() string {
	return a.Symbol + "." + string(a.Chain)
}
