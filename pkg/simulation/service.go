package simulation

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"swap-engine/pkg/types"
)

const defaultBalanceTTL = 15 * time.Second

// EVMBackend is the subset of ethclient.Client the simulator needs
type EVMBackend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Service simulates EVM transactions with eth_call and eth_estimateGas and structurally
// checks UTXO and Solana payloads. Receipts are bound to the request digest with an HMAC.
type Service struct {
	backends   map[types.Chain]EVMBackend
	balances   *BalanceCache
	key        []byte
	receiptTTL time.Duration
	now        func() time.Time
	log        *logrus.Entry
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithReceiptTTL overrides how long receipts stay valid
func WithReceiptTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.receiptTTL = ttl
		}
	}
}

// WithKey sets the receipt signing key. A random key is generated when none is given.
func WithKey(key []byte) Option {
	return func(s *Service) { s.key = append([]byte(nil), key...) }
}

// NewService creates a simulator over the given EVM backends
func NewService(backends map[types.Chain]EVMBackend, opts ...Option) (*Service, error) {
	s := &Service{
		backends:   backends,
		receiptTTL: DefaultReceiptTTL,
		now:        time.Now,
		log:        logrus.WithField("component", "simulator"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.key) == 0 {
		s.key = make([]byte, 32)
		if _, err := rand.Read(s.key); err != nil {
			return nil, fmt.Errorf("failed to generate receipt key: %w", err)
		}
	}
	s.balances = NewBalanceCache(defaultBalanceTTL, s.now)
	return s, nil
}

// Balances exposes the balance cache so callers can invalidate after a broadcast
func (s *Service) Balances() *BalanceCache {
	return s.balances
}

// Simulate dry-runs the request and returns a receipt on success
func (s *Service) Simulate(ctx context.Context, req Request) (*Receipt, error) {
	if req.To == "" {
		return nil, types.NewInvalidParameters("simulation request has no destination")
	}

	var (
		gasUsed uint64
		err     error
	)
	switch req.Chain.Family() {
	case types.FamilyEVM:
		gasUsed, err = s.simulateEVM(ctx, req)
	case types.FamilyUTXO:
		err = checkUTXO(req)
	case types.FamilySolana:
		err = checkSolana(req)
	default:
		err = types.NewInvalidParameters(fmt.Sprintf("unsupported chain %q", req.Chain))
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"chain": req.Chain,
			"to":    req.To,
		}).WithError(err).Warn("Simulation failed")
		return nil, err
	}

	now := s.now()
	receipt := &Receipt{
		ID:            uuid.New().String(),
		Chain:         req.Chain,
		RequestDigest: req.Digest(),
		GasUsed:       gasUsed,
		IssuedAt:      now,
		ExpiresAt:     now.Add(s.receiptTTL),
	}
	receipt.Signature = hex.EncodeToString(s.sign(receipt))

	s.log.WithFields(logrus.Fields{
		"chain":      req.Chain,
		"receipt_id": receipt.ID,
		"gas_used":   gasUsed,
	}).Debug("Simulation succeeded")
	return receipt, nil
}

// VerifyReceipt checks that the receipt was issued by this simulator for exactly this
// request. Expiry is checked separately by the caller.
func (s *Service) VerifyReceipt(receipt *Receipt, req Request) bool {
	if receipt == nil || receipt.Chain != req.Chain {
		return false
	}
	if receipt.RequestDigest != req.Digest() {
		return false
	}
	sig, err := hex.DecodeString(receipt.Signature)
	if err != nil {
		return false
	}
	return hmac.Equal(sig, s.sign(receipt))
}

func (s *Service) sign(r *Receipt) []byte {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(r.ID))
	mac.Write([]byte(r.Chain))
	mac.Write([]byte(r.RequestDigest))
	mac.Write([]byte(strconv.FormatUint(r.GasUsed, 10)))
	mac.Write([]byte(strconv.FormatInt(r.IssuedAt.UnixNano(), 10)))
	mac.Write([]byte(strconv.FormatInt(r.ExpiresAt.UnixNano(), 10)))
	return mac.Sum(nil)
}

func (s *Service) simulateEVM(ctx context.Context, req Request) (uint64, error) {
	backend, ok := s.backends[req.Chain]
	if !ok {
		return 0, types.NewNetworkError(fmt.Errorf("no rpc backend for chain %s", req.Chain))
	}
	if !common.IsHexAddress(req.From) || !common.IsHexAddress(req.To) {
		return 0, types.NewInvalidParameters("invalid sender or destination address")
	}
	from := common.HexToAddress(req.From)
	to := common.HexToAddress(req.To)

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	if value.Sign() > 0 {
		balance, err := s.nativeBalance(ctx, backend, req.Chain, from)
		if err != nil {
			return 0, err
		}
		if balance.Cmp(value) < 0 {
			return 0, types.NewInsufficientBalance(fmt.Sprintf("have %s, need %s", balance, value))
		}
	}

	msg := ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: value,
		Data:  req.Calldata,
		Gas:   req.GasLimit,
	}
	if _, err := backend.CallContract(ctx, msg, nil); err != nil {
		return 0, types.NewSimulationFailed(revertReason(err))
	}

	msg.Gas = 0
	gas, err := backend.EstimateGas(ctx, msg)
	if err != nil {
		return 0, types.NewSimulationFailed(revertReason(err))
	}
	if req.GasLimit > 0 && gas > req.GasLimit {
		return 0, types.NewSimulationFailed(fmt.Sprintf("estimated gas %d exceeds limit %d", gas, req.GasLimit))
	}
	return gas, nil
}

func (s *Service) nativeBalance(ctx context.Context, backend EVMBackend, chain types.Chain, account common.Address) (*big.Int, error) {
	if cached, ok := s.balances.Get(chain, account.Hex()); ok {
		return cached, nil
	}
	balance, err := backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, types.NewNetworkError(fmt.Errorf("failed to get balance: %w", err))
	}
	s.balances.Put(chain, account.Hex(), balance)
	return balance, nil
}

// revertReason extracts a readable reason from an eth_call error, decoding
// Error(string) revert data when the node returns it.
func revertReason(err error) string {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if encoded, ok := dataErr.ErrorData().(string); ok {
			if data, decErr := hexutil.Decode(encoded); decErr == nil {
				if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return reason
				}
			}
		}
	}
	return err.Error()
}

func checkUTXO(req Request) error {
	if _, err := btcutil.DecodeAddress(req.To, &chaincfg.MainNetParams); err != nil {
		return types.NewSimulationFailed(fmt.Sprintf("invalid vault address: %v", err))
	}
	if len(req.Calldata) > 0 && txscript.GetScriptClass(req.Calldata) != txscript.NullDataTy {
		return types.NewSimulationFailed("memo output is not an OP_RETURN script")
	}
	if req.Value == nil || req.Value.Sign() <= 0 {
		return types.NewSimulationFailed("vault output has no value")
	}
	return nil
}

func checkSolana(req Request) error {
	if _, err := solana.PublicKeyFromBase58(req.To); err != nil {
		return types.NewSimulationFailed(fmt.Sprintf("invalid destination: %v", err))
	}
	if len(req.Calldata) == 0 {
		return nil
	}
	var msg solana.Message
	if err := msg.UnmarshalWithDecoder(bin.NewBinDecoder(req.Calldata)); err != nil {
		return types.NewSimulationFailed(fmt.Sprintf("failed to decode message: %v", err))
	}
	if len(msg.Instructions) == 0 {
		return types.NewSimulationFailed("message has no instructions")
	}
	return nil
}
