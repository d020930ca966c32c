// Package simulation dry-runs prepared transactions and issues short-lived receipts that
// prove a specific transaction was checked. A receipt is the only thing that allows a
// transaction to be broadcast.
package simulation

import (
	"context"
	"encoding/hex"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"swap-engine/pkg/types"
)

// DefaultReceiptTTL is how long a receipt stays valid after issue
const DefaultReceiptTTL = 30 * time.Second

// Simulator is the contract the preparer and the lifecycle controller depend on
type Simulator interface {
	Simulate(ctx context.Context, req Request) (*Receipt, error)
	VerifyReceipt(receipt *Receipt, req Request) bool
}

// Request is the exact payload that was simulated
type Request struct {
	Chain    types.Chain
	From     string
	To       string
	Value    *big.Int
	Calldata []byte
	GasLimit uint64
	Memo     string
}

// RequestFromTransaction builds the simulation request for a prepared transaction
func RequestFromTransaction(tx *types.PreparedSwapTransaction) Request {
	return Request{
		Chain:    tx.Chain,
		From:     tx.From,
		To:       tx.To,
		Value:    new(big.Int).Set(tx.ValueOrZero()),
		Calldata: append([]byte(nil), tx.Calldata...),
		GasLimit: tx.GasLimit,
		Memo:     tx.BitcoinMemo,
	}
}

// Digest commits to every field of the request. Any mutation of the transaction after
// simulation changes the digest.
func (r Request) Digest() string {
	value := "0"
	if r.Value != nil {
		value = r.Value.String()
	}
	parts := []string{
		string(r.Chain),
		strings.ToLower(r.From),
		strings.ToLower(r.To),
		value,
		hex.EncodeToString(r.Calldata),
		strconv.FormatUint(r.GasLimit, 10),
		r.Memo,
	}
	return crypto.Keccak256Hash([]byte(strings.Join(parts, "\x1f"))).Hex()
}

// Receipt proves a request was simulated successfully
type Receipt struct {
	ID            string      `json:"id"`
	Chain         types.Chain `json:"chain"`
	RequestDigest string      `json:"request_digest"`
	GasUsed       uint64      `json:"gas_used"`
	IssuedAt      time.Time   `json:"issued_at"`
	ExpiresAt     time.Time   `json:"expires_at"`
	Signature     string      `json:"signature"`
}

// IsExpired reports whether the receipt can no longer authorise a broadcast
func (r *Receipt) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
