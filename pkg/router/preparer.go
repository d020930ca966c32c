// Package router turns a selected quote into a chain-specific transaction, checks token
// approvals and broadcasts signed transactions that carry a valid simulation receipt.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/sirupsen/logrus"

	"swap-engine/pkg/amount"
	"swap-engine/pkg/simulation"
	"swap-engine/pkg/types"
)

// Gas limits for transactions the preparer encodes itself
const (
	gasNativeTransfer = 21000
	gasMemoTransfer   = 80000
	gasTokenTransfer  = 65000
	gasRouterDeposit  = 120000
	gasApprove        = 60000
	gasWrap           = 50000
	gasDexSwap        = 300000

	depositExpiry = time.Hour
)

var memoProgramID = solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")

// RPC is the broadcast and read-only call collaborator
type RPC interface {
	SendRequest(ctx context.Context, method string, params []interface{}, chain types.Chain) (json.RawMessage, error)
	SendRawTransaction(ctx context.Context, signed []byte, chain types.Chain) (json.RawMessage, error)
}

// Preparer builds and broadcasts swap transactions
type Preparer struct {
	rpc       RPC
	simulator simulation.Simulator
	now       func() time.Time
	log       *logrus.Entry
}

// NewPreparer creates a preparer
func NewPreparer(rpc RPC, simulator simulation.Simulator) *Preparer {
	return &Preparer{
		rpc:       rpc,
		simulator: simulator,
		now:       time.Now,
		log:       logrus.WithField("component", "preparer"),
	}
}

// SetClock overrides the time source
func (p *Preparer) SetClock(now func() time.Time) {
	p.now = now
}

// PrepareSwapTransaction builds the transaction for a quote. Expired quotes are rejected.
func (p *Preparer) PrepareSwapTransaction(ctx context.Context, quote *types.SwapQuote, sender string) (*types.PreparedSwapTransaction, error) {
	if quote == nil {
		return nil, types.NewInvalidParameters("no quote selected")
	}
	if quote.IsExpired(p.now()) {
		return nil, types.NewQuoteExpired()
	}
	if sender == "" {
		return nil, types.NewInvalidParameters("missing sender address")
	}
	in, err := amount.ParseRaw(quote.InputAmount)
	if err != nil {
		return nil, types.NewInvalidParameters(err.Error())
	}

	var tx *types.PreparedSwapTransaction
	switch quote.RouteType {
	case types.RouteCrossChain:
		tx, err = p.prepareCrossChain(quote, sender, in)
	case types.RouteSameChain:
		tx, err = prepareSameChain(quote, sender)
	case types.RouteWrap:
		tx, err = prepareWrap(quote, sender, in)
	case types.RouteUnwrap:
		tx, err = prepareUnwrap(quote, sender, in)
	default:
		err = types.NewUnsupportedRoute(quote.FromAsset, quote.ToAsset)
	}
	if err != nil {
		return nil, err
	}

	tx.Quote = quote
	p.log.WithFields(logrus.Fields{
		"quote_id":          quote.ID,
		"route":             quote.RouteType,
		"chain":             tx.Chain,
		"to":                tx.To,
		"requires_approval": tx.RequiresApproval,
	}).Debug("Prepared swap transaction")
	return tx, nil
}

func (p *Preparer) prepareCrossChain(quote *types.SwapQuote, sender string, in *big.Int) (*types.PreparedSwapTransaction, error) {
	td := quote.TransactionData
	if td == nil {
		return nil, types.NewInvalidParameters("quote has no transaction data")
	}
	if td.VaultAddress == "" {
		return nil, types.NewInvalidParameters("missing vault address")
	}
	if td.Memo == "" && !td.DepositOnly {
		return nil, types.NewInvalidParameters("missing memo")
	}

	from := quote.FromAsset
	switch from.Chain.Family() {
	case types.FamilyEVM:
		if from.IsNative() {
			return evmNativeDeposit(from.Chain, sender, td, in), nil
		}
		if from.ContractAddress == "" {
			return nil, types.NewInvalidParameters("missing contract address")
		}
		if td.DepositOnly {
			return evmTokenTransfer(from, sender, td.VaultAddress, in)
		}
		return p.evmRouterDeposit(from, sender, td, in)
	case types.FamilyUTXO:
		return utxoDeposit(from.Chain, sender, td, in)
	case types.FamilySolana:
		if !from.IsNative() {
			return nil, types.NewUnsupportedRoute(quote.FromAsset, quote.ToAsset)
		}
		return solanaDeposit(from.Chain, sender, td, in)
	default:
		return nil, types.NewUnsupportedRoute(quote.FromAsset, quote.ToAsset)
	}
}

// evmNativeDeposit sends the native amount to the vault with the memo as data
func evmNativeDeposit(chain types.Chain, sender string, td *types.TransactionData, in *big.Int) *types.PreparedSwapTransaction {
	tx := &types.PreparedSwapTransaction{
		From:     sender,
		To:       td.VaultAddress,
		Value:    new(big.Int).Set(in),
		Chain:    chain,
		GasLimit: gasNativeTransfer,
	}
	if td.Memo != "" {
		tx.Calldata = []byte(td.Memo)
		tx.GasLimit = gasMemoTransfer
	}
	return tx
}

func evmTokenTransfer(from types.Asset, sender, depositAddress string, in *big.Int) (*types.PreparedSwapTransaction, error) {
	data, err := packAddressUint("transfer", depositAddress, in)
	if err != nil {
		return nil, types.NewInvalidParameters(fmt.Sprintf("failed to encode transfer: %v", err))
	}
	return &types.PreparedSwapTransaction{
		From:     sender,
		To:       from.ContractAddress,
		Value:    new(big.Int),
		Calldata: data,
		Chain:    from.Chain,
		GasLimit: gasTokenTransfer,
	}, nil
}

func (p *Preparer) evmRouterDeposit(from types.Asset, sender string, td *types.TransactionData, in *big.Int) (*types.PreparedSwapTransaction, error) {
	if td.Router == "" {
		return nil, types.NewInvalidParameters("missing router address")
	}
	// always an hour from build time; a provider expiry in the quote is ignored
	expiry := p.now().Add(depositExpiry).Unix()
	data, err := packDepositWithExpiry(td.VaultAddress, from.ContractAddress, in, td.Memo, big.NewInt(expiry))
	if err != nil {
		return nil, types.NewInvalidParameters(fmt.Sprintf("failed to encode deposit: %v", err))
	}
	return &types.PreparedSwapTransaction{
		From:             sender,
		To:               td.Router,
		Value:            new(big.Int),
		Calldata:         data,
		Chain:            from.Chain,
		GasLimit:         gasRouterDeposit,
		RequiresApproval: true,
		ApprovalToken:    from.ContractAddress,
		ApprovalSpender:  td.Router,
	}, nil
}

// utxoDeposit pays the vault and carries the memo in an OP_RETURN output script
func utxoDeposit(chain types.Chain, sender string, td *types.TransactionData, in *big.Int) (*types.PreparedSwapTransaction, error) {
	if _, err := btcutil.DecodeAddress(td.VaultAddress, &chaincfg.MainNetParams); err != nil {
		return nil, types.NewInvalidParameters(fmt.Sprintf("invalid vault address: %v", err))
	}
	if len(td.Memo) > txscript.MaxDataCarrierSize {
		return nil, types.NewInvalidParameters(fmt.Sprintf("memo exceeds %d bytes", txscript.MaxDataCarrierSize))
	}
	script, err := txscript.NullDataScript([]byte(td.Memo))
	if err != nil {
		return nil, types.NewInvalidParameters(fmt.Sprintf("failed to build memo script: %v", err))
	}
	return &types.PreparedSwapTransaction{
		From:        sender,
		To:          td.VaultAddress,
		Value:       new(big.Int).Set(in),
		Calldata:    script,
		Chain:       chain,
		BitcoinMemo: td.Memo,
	}, nil
}

// solanaDeposit builds an unsigned message with a system transfer and a memo instruction.
// The blockhash is left empty for the signer to fill in.
func solanaDeposit(chain types.Chain, sender string, td *types.TransactionData, in *big.Int) (*types.PreparedSwapTransaction, error) {
	fromKey, err := solana.PublicKeyFromBase58(sender)
	if err != nil {
		return nil, types.NewInvalidParameters(fmt.Sprintf("invalid sender address: %v", err))
	}
	vaultKey, err := solana.PublicKeyFromBase58(td.VaultAddress)
	if err != nil {
		return nil, types.NewInvalidParameters(fmt.Sprintf("invalid vault address: %v", err))
	}
	if !in.IsUint64() {
		return nil, types.NewInvalidParameters("amount exceeds lamport range")
	}

	instructions := []solana.Instruction{
		system.NewTransferInstruction(in.Uint64(), fromKey, vaultKey).Build(),
	}
	if td.Memo != "" {
		instructions = append(instructions, solana.NewInstruction(
			memoProgramID,
			[]*solana.AccountMeta{{PublicKey: fromKey, IsSigner: true, IsWritable: false}},
			[]byte(td.Memo),
		))
	}

	stx, err := solana.NewTransaction(instructions, solana.Hash{}, solana.TransactionPayer(fromKey))
	if err != nil {
		return nil, types.NewInvalidParameters(fmt.Sprintf("failed to build transaction: %v", err))
	}
	message, err := stx.Message.MarshalBinary()
	if err != nil {
		return nil, types.NewInvalidParameters(fmt.Sprintf("failed to serialize message: %v", err))
	}

	return &types.PreparedSwapTransaction{
		From:     sender,
		To:       td.VaultAddress,
		Value:    new(big.Int).Set(in),
		Calldata: message,
		Chain:    chain,
	}, nil
}

func prepareSameChain(quote *types.SwapQuote, sender string) (*types.PreparedSwapTransaction, error) {
	td := quote.TransactionData
	if td == nil || td.To == "" {
		return nil, types.NewInvalidParameters("quote has no provider transaction")
	}
	value := new(big.Int)
	if td.Value != nil {
		value.Set(td.Value)
	}
	gasLimit := td.GasLimit
	if gasLimit == 0 && quote.FromAsset.Chain.IsEVM() {
		gasLimit = gasDexSwap
	}

	tx := &types.PreparedSwapTransaction{
		From:     sender,
		To:       td.To,
		Value:    value,
		Calldata: append([]byte(nil), td.Calldata...),
		Chain:    quote.FromAsset.Chain,
		GasLimit: gasLimit,
	}
	if !quote.FromAsset.IsNative() && quote.FromAsset.Chain.IsEVM() {
		if quote.FromAsset.ContractAddress == "" {
			return nil, types.NewInvalidParameters("missing contract address")
		}
		tx.RequiresApproval = true
		tx.ApprovalToken = quote.FromAsset.ContractAddress
		tx.ApprovalSpender = td.To
	}
	return tx, nil
}

func prepareWrap(quote *types.SwapQuote, sender string, in *big.Int) (*types.PreparedSwapTransaction, error) {
	wrapped := quote.ToAsset
	if !wrapped.Chain.IsEVM() {
		return nil, types.NewUnsupportedRoute(quote.FromAsset, quote.ToAsset)
	}
	if wrapped.ContractAddress == "" {
		return nil, types.NewInvalidParameters("missing wrapped contract address")
	}
	data, err := packDeposit()
	if err != nil {
		return nil, types.NewInvalidParameters(fmt.Sprintf("failed to encode deposit: %v", err))
	}
	return &types.PreparedSwapTransaction{
		From:     sender,
		To:       wrapped.ContractAddress,
		Value:    new(big.Int).Set(in),
		Calldata: data,
		Chain:    wrapped.Chain,
		GasLimit: gasWrap,
	}, nil
}

func prepareUnwrap(quote *types.SwapQuote, sender string, in *big.Int) (*types.PreparedSwapTransaction, error) {
	wrapped := quote.FromAsset
	if !wrapped.Chain.IsEVM() {
		return nil, types.NewUnsupportedRoute(quote.FromAsset, quote.ToAsset)
	}
	if wrapped.ContractAddress == "" {
		return nil, types.NewInvalidParameters("missing wrapped contract address")
	}
	data, err := packWithdraw(in)
	if err != nil {
		return nil, types.NewInvalidParameters(fmt.Sprintf("failed to encode withdraw: %v", err))
	}
	return &types.PreparedSwapTransaction{
		From:     sender,
		To:       wrapped.ContractAddress,
		Value:    new(big.Int),
		Calldata: data,
		Chain:    wrapped.Chain,
		GasLimit: gasWrap,
	}, nil
}

// CheckApproval reports whether owner must approve spender before the swap. Any failure
// to read the allowance is treated as "approval needed".
func (p *Preparer) CheckApproval(ctx context.Context, token, owner, spender string, need *big.Int, chain types.Chain) bool {
	if !chain.IsEVM() {
		return false
	}
	logger := p.log.WithFields(logrus.Fields{
		"token":   token,
		"owner":   owner,
		"spender": spender,
		"chain":   chain,
	})

	data, err := packAllowance(owner, spender)
	if err != nil {
		logger.WithError(err).Warn("Failed to encode allowance call, assuming approval needed")
		return true
	}
	params := []interface{}{
		map[string]string{"to": token, "data": hexutil.Encode(data)},
		"latest",
	}
	raw, err := p.rpc.SendRequest(ctx, "eth_call", params, chain)
	if err != nil {
		logger.WithError(err).Warn("Failed to read allowance, assuming approval needed")
		return true
	}

	var result string
	if err := json.Unmarshal(raw, &result); err != nil {
		logger.WithError(err).Warn("Unexpected allowance response, assuming approval needed")
		return true
	}
	decoded, err := hexutil.Decode(result)
	if err != nil {
		logger.WithError(err).Warn("Malformed allowance response, assuming approval needed")
		return true
	}
	allowance, err := unpackAllowance(decoded)
	if err != nil {
		logger.WithError(err).Warn("Malformed allowance response, assuming approval needed")
		return true
	}
	if need == nil {
		need = new(big.Int)
	}
	return allowance.Cmp(need) < 0
}

// BuildApprovalTransaction approves spender for the maximum amount of token
func (p *Preparer) BuildApprovalTransaction(token, spender, owner string, chain types.Chain) (*types.PreparedSwapTransaction, error) {
	if !chain.IsEVM() {
		return nil, types.NewInvalidParameters(fmt.Sprintf("approvals are not used on %s", chain))
	}
	if token == "" || spender == "" {
		return nil, types.NewInvalidParameters("missing token or spender address")
	}
	data, err := packAddressUint("approve", spender, math.MaxBig256)
	if err != nil {
		return nil, types.NewInvalidParameters(fmt.Sprintf("failed to encode approve: %v", err))
	}
	return &types.PreparedSwapTransaction{
		From:                  owner,
		To:                    token,
		Value:                 new(big.Int),
		Calldata:              data,
		Chain:                 chain,
		GasLimit:              gasApprove,
		IsApprovalTransaction: true,
	}, nil
}

// ExecuteSwap broadcasts signed bytes once the receipt proves this exact transaction was
// simulated and neither the quote nor the receipt has expired.
func (p *Preparer) ExecuteSwap(ctx context.Context, tx *types.PreparedSwapTransaction, receipt *simulation.Receipt, signed []byte) (string, error) {
	if tx == nil {
		return "", types.NewInvalidParameters("no transaction")
	}
	now := p.now()
	if tx.Quote != nil && tx.Quote.IsExpired(now) {
		return "", types.NewQuoteExpired()
	}
	if receipt == nil {
		return "", types.NewSimulationRequired()
	}
	if receipt.IsExpired(now) {
		return "", types.NewQuoteExpired()
	}
	if !p.simulator.VerifyReceipt(receipt, simulation.RequestFromTransaction(tx)) {
		return "", types.NewSimulationFailed("receipt does not match transaction")
	}
	if len(signed) == 0 {
		return "", types.NewInvalidParameters("no signed transaction")
	}

	raw, err := p.rpc.SendRawTransaction(ctx, signed, tx.Chain)
	if err != nil {
		return "", &types.SwapError{Kind: types.KindTransactionFailed, Message: "broadcast failed", Err: err}
	}
	hash, err := parseTxHash(raw, tx.Chain)
	if err != nil {
		return "", types.NewTransactionFailed(err.Error())
	}

	p.log.WithFields(logrus.Fields{
		"chain":    tx.Chain,
		"tx_hash":  hash,
		"approval": tx.IsApprovalTransaction,
	}).Info("Transaction broadcast")
	return hash, nil
}

// parseTxHash extracts the transaction id from a broadcast response
func parseTxHash(raw json.RawMessage, chain types.Chain) (string, error) {
	var hash string
	if err := json.Unmarshal(raw, &hash); err != nil {
		return "", fmt.Errorf("unparsable transaction hash: %s", string(raw))
	}
	hash = strings.TrimSpace(hash)

	switch chain.Family() {
	case types.FamilyEVM:
		b, err := hexutil.Decode(hash)
		if err != nil || len(b) != common.HashLength {
			return "", fmt.Errorf("unparsable transaction hash: %q", hash)
		}
		return strings.ToLower(hash), nil
	case types.FamilyUTXO:
		b, err := hexutil.Decode("0x" + hash)
		if err != nil || len(b) != common.HashLength {
			return "", fmt.Errorf("unparsable transaction hash: %q", hash)
		}
		return strings.ToLower(hash), nil
	case types.FamilySolana:
		if _, err := solana.SignatureFromBase58(hash); err != nil {
			return "", fmt.Errorf("unparsable transaction signature: %q", hash)
		}
		return hash, nil
	default:
		return "", fmt.Errorf("unsupported chain %q", chain)
	}
}
