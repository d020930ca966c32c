package types

import (
	"fmt"
	"strings"
)

// Chain identifies a blockchain network
type Chain string

const (
	Ethereum  Chain = "ethereum"
	Avalanche Chain = "avalanche"
	BSC       Chain = "bsc"
	Base      Chain = "base"
	Arbitrum  Chain = "arbitrum"
	Bitcoin   Chain = "bitcoin"
	Solana    Chain = "solana"
)

// ChainFamily groups chains by how transactions and memos are carried
type ChainFamily int

const (
	FamilyUnknown ChainFamily = iota
	FamilyEVM                 // account-based, ABI calldata
	FamilyUTXO                // memo in an OP_RETURN output
	FamilySolana              // memo as program instruction data
)

func (f ChainFamily) String() string {
	switch f {
	case FamilyEVM:
		return "evm"
	case FamilyUTXO:
		return "utxo"
	case FamilySolana:
		return "solana"
	default:
		return "unknown"
	}
}

type chainInfo struct {
	family         ChainFamily
	nativeSymbol   string
	nativeDecimals int32
	evmChainID     int64
}

var chains = map[Chain]chainInfo{
	Ethereum:  {family: FamilyEVM, nativeSymbol: "ETH", nativeDecimals: 18, evmChainID: 1},
	Avalanche: {family: FamilyEVM, nativeSymbol: "AVAX", nativeDecimals: 18, evmChainID: 43114},
	BSC:       {family: FamilyEVM, nativeSymbol: "BNB", nativeDecimals: 18, evmChainID: 56},
	Base:      {family: FamilyEVM, nativeSymbol: "ETH", nativeDecimals: 18, evmChainID: 8453},
	Arbitrum:  {family: FamilyEVM, nativeSymbol: "ETH", nativeDecimals: 18, evmChainID: 42161},
	Bitcoin:   {family: FamilyUTXO, nativeSymbol: "BTC", nativeDecimals: 8},
	Solana:    {family: FamilySolana, nativeSymbol: "SOL", nativeDecimals: 9},
}

// ParseChain resolves a chain name or common alias
func ParseChain(s string) (Chain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "eth", "ethereum":
		return Ethereum, nil
	case "avax", "avalanche":
		return Avalanche, nil
	case "bsc", "bnb", "binance":
		return BSC, nil
	case "base":
		return Base, nil
	case "arb", "arbitrum":
		return Arbitrum, nil
	case "btc", "bitcoin":
		return Bitcoin, nil
	case "sol", "solana":
		return Solana, nil
	default:
		return "", fmt.Errorf("unknown chain: %s", s)
	}
}

// Chains returns every supported chain
func Chains() []Chain {
	return []Chain{Ethereum, Avalanche, BSC, Base, Arbitrum, Bitcoin, Solana}
}

func (c Chain) String() string {
	return string(c)
}

// Family returns the transaction family of the chain
func (c Chain) Family() ChainFamily {
	return chains[c].family
}

// IsEVM reports whether the chain uses ABI-encoded calldata
func (c Chain) IsEVM() bool {
	return c.Family() == FamilyEVM
}

// NativeSymbol returns the symbol of the chain's native currency
func (c Chain) NativeSymbol() string {
	return chains[c].nativeSymbol
}

// NativeDecimals returns the decimals of the chain's native currency
func (c Chain) NativeDecimals() int32 {
	return chains[c].nativeDecimals
}

// EVMChainID returns the EIP-155 chain id, or 0 for non-EVM chains
func (c Chain) EVMChainID() int64 {
	return chains[c].evmChainID
}
