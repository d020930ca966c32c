package wallet

import (
	"context"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"swap-engine/pkg/types"
)

// BlockhashSource is the subset of the Solana rpc.Client needed to sign
type BlockhashSource interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
}

// SolanaSigner signs prepared Solana messages with a fresh blockhash
type SolanaSigner struct {
	client     BlockhashSource
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
}

// NewSolanaSigner creates a signer from a base58 private key
func NewSolanaSigner(privateKeyBase58 string, client BlockhashSource) (*SolanaSigner, error) {
	if privateKeyBase58 == "" {
		return nil, fmt.Errorf("private key not configured for Solana")
	}
	privateKey, err := solana.PrivateKeyFromBase58(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return &SolanaSigner{
		client:     client,
		privateKey: privateKey,
		publicKey:  privateKey.PublicKey(),
	}, nil
}

// Address returns the signer's public key in base58
func (s *SolanaSigner) Address() string {
	return s.publicKey.String()
}

// Sign decodes the serialized message in tx.Calldata, refreshes its blockhash and returns
// the signed wire transaction
func (s *SolanaSigner) Sign(ctx context.Context, tx *types.PreparedSwapTransaction) ([]byte, error) {
	if tx.Chain.Family() != types.FamilySolana {
		return nil, fmt.Errorf("chain %s is not solana", tx.Chain)
	}
	if len(tx.Calldata) == 0 {
		return nil, fmt.Errorf("transaction has no message")
	}

	var message solana.Message
	if err := message.UnmarshalWithDecoder(bin.NewBinDecoder(tx.Calldata)); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	if len(message.AccountKeys) == 0 || !message.AccountKeys[0].Equals(s.publicKey) {
		return nil, fmt.Errorf("message fee payer does not match signer %s", s.publicKey)
	}

	recent, err := s.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent blockhash: %w", err)
	}
	message.RecentBlockhash = recent.Value.Blockhash

	signed := &solana.Transaction{Message: message}
	_, err = signed.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(s.publicKey) {
			return &s.privateKey
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction: %w", err)
	}
	return raw, nil
}
