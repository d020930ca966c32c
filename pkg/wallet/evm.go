package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"swap-engine/pkg/types"
)

// EVMBackend is the subset of ethclient.Client needed to sign
type EVMBackend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// EVMSigner signs prepared transactions for EVM-compatible chains
type EVMSigner struct {
	backends   map[types.Chain]EVMBackend
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewEVMSigner creates a signer from a hex private key
func NewEVMSigner(privateKeyHex string, backends map[types.Chain]EVMBackend) (*EVMSigner, error) {
	if privateKeyHex == "" {
		return nil, fmt.Errorf("private key not configured")
	}
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return &EVMSigner{
		backends:   backends,
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}, nil
}

// Address returns the signer's account address
func (e *EVMSigner) Address() string {
	return e.address.Hex()
}

// Sign builds a legacy EIP-155 transaction from tx and returns its RLP encoding
func (e *EVMSigner) Sign(ctx context.Context, tx *types.PreparedSwapTransaction) ([]byte, error) {
	if !tx.Chain.IsEVM() {
		return nil, fmt.Errorf("chain %s is not an EVM chain", tx.Chain)
	}
	if !strings.EqualFold(tx.From, e.address.Hex()) {
		return nil, fmt.Errorf("transaction sender %s does not match signer %s", tx.From, e.address.Hex())
	}
	if !common.IsHexAddress(tx.To) {
		return nil, fmt.Errorf("invalid recipient address: %s", tx.To)
	}
	backend, ok := e.backends[tx.Chain]
	if !ok {
		return nil, fmt.Errorf("no RPC backend configured for %s", tx.Chain)
	}

	nonce, err := backend.PendingNonceAt(ctx, e.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice, err := backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}

	unsigned := ethtypes.NewTransaction(
		nonce,
		common.HexToAddress(tx.To),
		tx.ValueOrZero(),
		tx.GasLimit,
		gasPrice,
		tx.Calldata,
	)

	chainID := big.NewInt(tx.Chain.EVMChainID())
	signed, err := ethtypes.SignTx(unsigned, ethtypes.NewEIP155Signer(chainID), e.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction: %w", err)
	}
	return raw, nil
}
