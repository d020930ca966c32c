package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"swap-engine/pkg/amount"
	"swap-engine/pkg/types"
)

// Pattern: <amount> <source_token> TO <dest_token>
// Matches: "1 SOL TO USDC", "1.5 ETH TO BTC", "100.25 USDC TO SOL"
var commandPattern = regexp.MustCompile(`^(\d+\.?\d*)\s+([A-Z0-9]+)\s+TO\s+([A-Z0-9]+)$`)

// Command is a parsed swap command before the symbols are resolved to assets
type Command struct {
	Amount      string
	SourceToken string
	DestToken   string
}

// AssetLookup resolves a symbol to an asset, optionally pinned to a chain
type AssetLookup interface {
	Find(symbol string, chain types.Chain) (types.Asset, error)
	FindAnyChain(symbol string) (types.Asset, error)
}

// ParseSwapCommand parses a natural language swap command
// Examples:
//   - "swap 1 SOL to USDC"
//   - "1.5 ETH to BTC"
//   - "100 USDC to SOL"
func ParseSwapCommand(command string) (*Command, error) {
	command = strings.TrimSpace(strings.ToUpper(command))
	command = strings.TrimPrefix(command, "SWAP ")

	matches := commandPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid swap command format. Expected: 'swap <amount> <token> to <token>' (e.g., 'swap 1 SOL to USDC')")
	}

	return &Command{
		Amount:      matches[1],
		SourceToken: matches[2],
		DestToken:   matches[3],
	}, nil
}

// ValidateCommand validates that a command has all required fields
func ValidateCommand(cmd *Command) error {
	if cmd.Amount == "" {
		return fmt.Errorf("amount is required")
	}
	if cmd.SourceToken == "" {
		return fmt.Errorf("source token is required")
	}
	if cmd.DestToken == "" {
		return fmt.Errorf("destination token is required")
	}
	if cmd.SourceToken == cmd.DestToken {
		return fmt.Errorf("source and destination tokens must differ")
	}
	return nil
}

// ResolveAsset finds a token, on the given chain when one is named
func ResolveAsset(lookup AssetLookup, symbol, chain string) (types.Asset, error) {
	symbol = NormalizeTokenSymbol(symbol)
	if chain == "" {
		return lookup.FindAnyChain(symbol)
	}
	c, err := types.ParseChain(chain)
	if err != nil {
		return types.Asset{}, err
	}
	return lookup.Find(symbol, c)
}

// ToRequest resolves both legs and converts the human amount to base units
func (c *Command) ToRequest(lookup AssetLookup, fromChain, toChain string, slippage decimal.Decimal) (types.SwapRequest, error) {
	if err := ValidateCommand(c); err != nil {
		return types.SwapRequest{}, err
	}
	from, err := ResolveAsset(lookup, c.SourceToken, fromChain)
	if err != nil {
		return types.SwapRequest{}, fmt.Errorf("failed to resolve source token: %w", err)
	}
	to, err := ResolveAsset(lookup, c.DestToken, toChain)
	if err != nil {
		return types.SwapRequest{}, fmt.Errorf("failed to resolve destination token: %w", err)
	}
	raw, err := amount.ToBaseUnits(c.Amount, from.Decimals)
	if err != nil {
		return types.SwapRequest{}, err
	}
	return types.SwapRequest{
		FromAsset:         from,
		ToAsset:           to,
		Amount:            raw.String(),
		SlippageTolerance: slippage,
	}, nil
}

// NormalizeTokenSymbol normalizes token symbols to standard format
func NormalizeTokenSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	aliases := map[string]string{
		"XBT":     "BTC",
		"ETHER":   "ETH",
		"USDC.E":  "USDC",
		"BITCOIN": "BTC",
		"SOLANA":  "SOL",
	}

	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}

	return symbol
}
