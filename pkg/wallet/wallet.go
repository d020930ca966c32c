// Package wallet turns prepared swap transactions into signed bytes and reports the
// addresses that own them.
package wallet

import (
	"context"
	"fmt"

	"swap-engine/pkg/types"
)

// Wallet dispatches to the signer for the transaction's chain family
type Wallet struct {
	evm    *EVMSigner
	solana *SolanaSigner
}

// New creates a wallet. Either signer may be nil.
func New(evm *EVMSigner, sol *SolanaSigner) *Wallet {
	return &Wallet{evm: evm, solana: sol}
}

// Address returns the account that signs for chain
func (w *Wallet) Address(chain types.Chain) (string, error) {
	switch chain.Family() {
	case types.FamilyEVM:
		if w.evm != nil {
			return w.evm.Address(), nil
		}
	case types.FamilySolana:
		if w.solana != nil {
			return w.solana.Address(), nil
		}
	}
	return "", fmt.Errorf("no signer configured for %s", chain)
}

// Sign signs tx with the matching signer
func (w *Wallet) Sign(ctx context.Context, tx *types.PreparedSwapTransaction) ([]byte, error) {
	switch tx.Chain.Family() {
	case types.FamilyEVM:
		if w.evm != nil {
			return w.evm.Sign(ctx, tx)
		}
	case types.FamilySolana:
		if w.solana != nil {
			return w.solana.Sign(ctx, tx)
		}
	}
	return nil, fmt.Errorf("no signer configured for %s", tx.Chain)
}
