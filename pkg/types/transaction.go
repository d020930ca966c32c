package types

import (
	"math/big"
)

// PreparedSwapTransaction is a chain-specific payload ready for simulation and signing.
// It is built from exactly one quote and is not modified afterwards.
type PreparedSwapTransaction struct {
	From     string   `json:"from"`
	To       string   `json:"to"`
	Value    *big.Int `json:"value"`
	Calldata []byte   `json:"calldata,omitempty"`
	Chain    Chain    `json:"chain"`
	GasLimit uint64   `json:"gas_limit"`

	// Quote is nil for approval transactions
	Quote *SwapQuote `json:"quote,omitempty"`

	RequiresApproval bool   `json:"requires_approval"`
	ApprovalToken    string `json:"approval_token,omitempty"`
	ApprovalSpender  string `json:"approval_spender,omitempty"`

	BitcoinMemo string `json:"bitcoin_memo,omitempty"`

	IsApprovalTransaction bool `json:"is_approval_transaction"`
}

// ValueOrZero returns Value, treating nil as zero
func (t *PreparedSwapTransaction) ValueOrZero() *big.Int {
	if t.Value == nil {
		return new(big.Int)
	}
	return t.Value
}
