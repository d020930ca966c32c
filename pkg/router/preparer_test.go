package router

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/txscript"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swap-engine/pkg/simulation"
	"swap-engine/pkg/types"
)

var (
	testNow = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	eth  = types.NativeAsset(types.Ethereum)
	weth = types.Asset{Chain: types.Ethereum, Symbol: "WETH", Decimals: 18, ContractAddress: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Type: types.AssetWrapped}
	usdc = types.Asset{Chain: types.Ethereum, Symbol: "USDC", Decimals: 6, ContractAddress: tokenAddr, Type: types.AssetStablecoin}
	btc  = types.NativeAsset(types.Bitcoin)
	sol  = types.NativeAsset(types.Solana)
)

type fakeRPC struct {
	response  json.RawMessage
	err       error
	broadcast int
	requests  []string
}

func (f *fakeRPC) SendRequest(ctx context.Context, method string, params []interface{}, chain types.Chain) (json.RawMessage, error) {
	f.requests = append(f.requests, method)
	return f.response, f.err
}

func (f *fakeRPC) SendRawTransaction(ctx context.Context, signed []byte, chain types.Chain) (json.RawMessage, error) {
	f.broadcast++
	return f.response, f.err
}

type fakeSimulator struct {
	valid bool
}

func (f *fakeSimulator) Simulate(ctx context.Context, req simulation.Request) (*simulation.Receipt, error) {
	return &simulation.Receipt{ID: "r", ExpiresAt: testNow.Add(time.Minute)}, nil
}

func (f *fakeSimulator) VerifyReceipt(receipt *simulation.Receipt, req simulation.Request) bool {
	return f.valid
}

func newTestPreparer(rpc *fakeRPC, sim simulation.Simulator) *Preparer {
	p := NewPreparer(rpc, sim)
	p.SetClock(func() time.Time { return testNow })
	return p
}

func quoteFor(from, to types.Asset, td *types.TransactionData) *types.SwapQuote {
	return &types.SwapQuote{
		ID:                "q-1",
		FromAsset:         from,
		ToAsset:           to,
		InputAmount:       "1500000",
		OutputAmount:      "3000000",
		SlippageTolerance: decimal.RequireFromString("0.5"),
		RouteType:         types.DeriveRouteType(from, to),
		FetchedAt:         testNow,
		ExpiresAt:         testNow.Add(types.QuoteValidity),
		TransactionData:   td,
	}
}

func TestPrepare_RejectsExpiredQuote(t *testing.T) {
	p := newTestPreparer(&fakeRPC{}, &fakeSimulator{})
	q := quoteFor(eth, weth, nil)
	q.ExpiresAt = testNow

	_, err := p.PrepareSwapTransaction(context.Background(), q, ownerAddr)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrQuoteExpired))
}

func TestPrepare_CrossChainEVMToken(t *testing.T) {
	p := newTestPreparer(&fakeRPC{}, &fakeSimulator{})
	q := quoteFor(usdc, btc, &types.TransactionData{
		Memo:         "=:BTC.BTC:bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq",
		VaultAddress: vaultAddr,
		Router:       routerAddr,
	})

	tx, err := p.PrepareSwapTransaction(context.Background(), q, ownerAddr)
	require.NoError(t, err)
	assert.Equal(t, routerAddr, tx.To)
	assert.Equal(t, int64(0), tx.Value.Int64())
	assert.True(t, tx.RequiresApproval)
	assert.Equal(t, tokenAddr, tx.ApprovalToken)
	assert.Equal(t, routerAddr, tx.ApprovalSpender)
	assert.Equal(t, Selector("depositWithExpiry(address,address,uint256,string,uint256)"), tx.Calldata[:4])
	assert.Same(t, q, tx.Quote)

	expected, err := packDepositWithExpiry(vaultAddr, tokenAddr, big.NewInt(1500000), q.TransactionData.Memo, big.NewInt(testNow.Add(time.Hour).Unix()))
	require.NoError(t, err)
	assert.Equal(t, expected, tx.Calldata)
}

func TestPrepare_RouterDepositIgnoresProviderExpiry(t *testing.T) {
	p := newTestPreparer(&fakeRPC{}, &fakeSimulator{})
	q := quoteFor(usdc, btc, &types.TransactionData{
		Memo:         "=:BTC.BTC:bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq",
		VaultAddress: vaultAddr,
		Router:       routerAddr,
		Expiry:       testNow.Add(15 * time.Minute).Unix(),
	})

	tx, err := p.PrepareSwapTransaction(context.Background(), q, ownerAddr)
	require.NoError(t, err)

	// expiration is the fifth head word
	expiry, err := DecodeUint256(tx.Calldata[4+4*32 : 4+5*32])
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(time.Hour).Unix(), expiry.Int64())
}

func TestPrepare_CrossChainEVMNative(t *testing.T) {
	p := newTestPreparer(&fakeRPC{}, &fakeSimulator{})
	memo := "=:BTC.BTC:bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"
	q := quoteFor(eth, btc, &types.TransactionData{Memo: memo, VaultAddress: vaultAddr})

	tx, err := p.PrepareSwapTransaction(context.Background(), q, ownerAddr)
	require.NoError(t, err)
	assert.Equal(t, vaultAddr, tx.To)
	assert.Equal(t, int64(1500000), tx.Value.Int64())
	assert.Equal(t, []byte(memo), tx.Calldata)
	assert.False(t, tx.RequiresApproval)
}

func TestPrepare_CrossChainDepositOnlyToken(t *testing.T) {
	p := newTestPreparer(&fakeRPC{}, &fakeSimulator{})
	q := quoteFor(usdc, sol, &types.TransactionData{VaultAddress: vaultAddr, DepositOnly: true})

	tx, err := p.PrepareSwapTransaction(context.Background(), q, ownerAddr)
	require.NoError(t, err)
	assert.Equal(t, tokenAddr, tx.To)
	assert.Equal(t, Selector("transfer(address,uint256)"), tx.Calldata[:4])
	assert.False(t, tx.RequiresApproval)
}

func TestPrepare_CrossChainMissingFields(t *testing.T) {
	p := newTestPreparer(&fakeRPC{}, &fakeSimulator{})

	tests := []struct {
		name string
		td   *types.TransactionData
	}{
		{name: "no transaction data", td: nil},
		{name: "no vault", td: &types.TransactionData{Memo: "=:BTC.BTC:x"}},
		{name: "no memo", td: &types.TransactionData{VaultAddress: vaultAddr}},
		{name: "no router", td: &types.TransactionData{Memo: "=:BTC.BTC:x", VaultAddress: vaultAddr}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.PrepareSwapTransaction(context.Background(), quoteFor(usdc, btc, tt.td), ownerAddr)
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrInvalidParameters))
		})
	}
}

func TestPrepare_CrossChainUTXO(t *testing.T) {
	p := newTestPreparer(&fakeRPC{}, &fakeSimulator{})
	memo := "=:ETH.ETH:" + ownerAddr
	q := quoteFor(btc, eth, &types.TransactionData{Memo: memo, VaultAddress: "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"})

	tx, err := p.PrepareSwapTransaction(context.Background(), q, "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq")
	require.NoError(t, err)
	assert.Equal(t, memo, tx.BitcoinMemo)
	assert.Equal(t, txscript.NullDataTy, txscript.GetScriptClass(tx.Calldata))

	long := quoteFor(btc, eth, &types.TransactionData{Memo: strings.Repeat("m", 81), VaultAddress: "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"})
	_, err = p.PrepareSwapTransaction(context.Background(), long, "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq")
	assert.True(t, errors.Is(err, types.ErrInvalidParameters))

	bad := quoteFor(btc, eth, &types.TransactionData{Memo: memo, VaultAddress: "nope"})
	_, err = p.PrepareSwapTransaction(context.Background(), bad, "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq")
	assert.True(t, errors.Is(err, types.ErrInvalidParameters))
}

func TestPrepare_CrossChainSolana(t *testing.T) {
	p := newTestPreparer(&fakeRPC{}, &fakeSimulator{})
	sender := solana.NewWallet().PublicKey().String()
	vault := solana.NewWallet().PublicKey().String()
	q := quoteFor(sol, eth, &types.TransactionData{Memo: "=:ETH.ETH:" + ownerAddr, VaultAddress: vault})

	tx, err := p.PrepareSwapTransaction(context.Background(), q, sender)
	require.NoError(t, err)

	var msg solana.Message
	require.NoError(t, msg.UnmarshalWithDecoder(bin.NewBinDecoder(tx.Calldata)))
	require.Len(t, msg.Instructions, 2)
	assert.Equal(t, memoProgramID, msg.AccountKeys[msg.Instructions[1].ProgramIDIndex])
	assert.Equal(t, "=:ETH.ETH:"+ownerAddr, string(msg.Instructions[1].Data))
}

func TestPrepare_SameChainPassThrough(t *testing.T) {
	p := newTestPreparer(&fakeRPC{}, &fakeSimulator{})
	td := &types.TransactionData{To: routerAddr, Value: big.NewInt(0), Calldata: []byte{1, 2, 3}, GasLimit: 250000}

	tx, err := p.PrepareSwapTransaction(context.Background(), quoteFor(usdc, weth, td), ownerAddr)
	require.NoError(t, err)
	assert.Equal(t, routerAddr, tx.To)
	assert.Equal(t, []byte{1, 2, 3}, tx.Calldata)
	assert.Equal(t, uint64(250000), tx.GasLimit)
	assert.True(t, tx.RequiresApproval)
	assert.Equal(t, routerAddr, tx.ApprovalSpender)

	native, err := p.PrepareSwapTransaction(context.Background(), quoteFor(eth, usdc, td), ownerAddr)
	require.NoError(t, err)
	assert.False(t, native.RequiresApproval)

	_, err = p.PrepareSwapTransaction(context.Background(), quoteFor(eth, usdc, nil), ownerAddr)
	assert.True(t, errors.Is(err, types.ErrInvalidParameters))
}

func TestPrepare_WrapUnwrap(t *testing.T) {
	p := newTestPreparer(&fakeRPC{}, &fakeSimulator{})

	wrap, err := p.PrepareSwapTransaction(context.Background(), quoteFor(eth, weth, nil), ownerAddr)
	require.NoError(t, err)
	assert.Equal(t, weth.ContractAddress, wrap.To)
	assert.Equal(t, int64(1500000), wrap.Value.Int64())
	assert.Equal(t, Selector("deposit()"), wrap.Calldata)

	unwrap, err := p.PrepareSwapTransaction(context.Background(), quoteFor(weth, eth, nil), ownerAddr)
	require.NoError(t, err)
	assert.Equal(t, weth.ContractAddress, unwrap.To)
	assert.Equal(t, int64(0), unwrap.Value.Int64())
	amount, err := DecodeUint256(unwrap.Calldata[4:36])
	require.NoError(t, err)
	assert.Equal(t, int64(1500000), amount.Int64())

	noContract := weth
	noContract.ContractAddress = ""
	_, err = p.PrepareSwapTransaction(context.Background(), quoteFor(eth, noContract, nil), ownerAddr)
	assert.True(t, errors.Is(err, types.ErrInvalidParameters))
}

func TestCheckApproval(t *testing.T) {
	allowance := func(v int64) json.RawMessage {
		word, _ := EncodeUint256(big.NewInt(v))
		raw, _ := json.Marshal(hexutil.Encode(word))
		return raw
	}

	tests := []struct {
		name     string
		rpc      *fakeRPC
		expected bool
	}{
		{name: "sufficient", rpc: &fakeRPC{response: allowance(2000000)}, expected: false},
		{name: "insufficient", rpc: &fakeRPC{response: allowance(10)}, expected: true},
		{name: "rpc error", rpc: &fakeRPC{err: errors.New("timeout")}, expected: true},
		{name: "garbage", rpc: &fakeRPC{response: json.RawMessage(`{"x":1}`)}, expected: true},
		{name: "short", rpc: &fakeRPC{response: json.RawMessage(`"0x01"`)}, expected: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPreparer(tt.rpc, &fakeSimulator{})
			got := p.CheckApproval(context.Background(), tokenAddr, ownerAddr, routerAddr, big.NewInt(1500000), types.Ethereum)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, []string{"eth_call"}, tt.rpc.requests)
		})
	}
}

func TestBuildApprovalTransaction(t *testing.T) {
	p := newTestPreparer(&fakeRPC{}, &fakeSimulator{})
	tx, err := p.BuildApprovalTransaction(tokenAddr, routerAddr, ownerAddr, types.Ethereum)
	require.NoError(t, err)
	assert.True(t, tx.IsApprovalTransaction)
	assert.Nil(t, tx.Quote)
	assert.Equal(t, tokenAddr, tx.To)
	amount, err := DecodeUint256(tx.Calldata[36:68])
	require.NoError(t, err)
	assert.Equal(t, 0, amount.Cmp(math.MaxBig256))

	_, err = p.BuildApprovalTransaction(tokenAddr, routerAddr, ownerAddr, types.Bitcoin)
	assert.Error(t, err)
}

func TestExecuteSwap(t *testing.T) {
	hash := "0x" + strings.Repeat("ab", 32)
	okResponse, _ := json.Marshal(hash)
	tx := &types.PreparedSwapTransaction{Chain: types.Ethereum, To: vaultAddr, Quote: quoteFor(eth, btc, nil)}
	validReceipt := &simulation.Receipt{ExpiresAt: testNow.Add(time.Second)}

	t.Run("broadcasts", func(t *testing.T) {
		rpc := &fakeRPC{response: okResponse}
		p := newTestPreparer(rpc, &fakeSimulator{valid: true})
		got, err := p.ExecuteSwap(context.Background(), tx, validReceipt, []byte{1})
		require.NoError(t, err)
		assert.Equal(t, hash, got)
		assert.Equal(t, 1, rpc.broadcast)
	})

	t.Run("expired receipt never broadcasts", func(t *testing.T) {
		rpc := &fakeRPC{response: okResponse}
		p := newTestPreparer(rpc, &fakeSimulator{valid: true})
		_, err := p.ExecuteSwap(context.Background(), tx, &simulation.Receipt{ExpiresAt: testNow}, []byte{1})
		assert.True(t, errors.Is(err, types.ErrQuoteExpired))
		assert.Equal(t, 0, rpc.broadcast)
	})

	t.Run("expired quote never broadcasts", func(t *testing.T) {
		rpc := &fakeRPC{response: okResponse}
		p := newTestPreparer(rpc, &fakeSimulator{valid: true})
		stale := *tx
		stale.Quote = quoteFor(eth, btc, nil)
		stale.Quote.ExpiresAt = testNow.Add(-time.Second)
		_, err := p.ExecuteSwap(context.Background(), &stale, validReceipt, []byte{1})
		assert.True(t, errors.Is(err, types.ErrQuoteExpired))
		assert.Equal(t, 0, rpc.broadcast)
	})

	t.Run("receipt for another transaction", func(t *testing.T) {
		rpc := &fakeRPC{response: okResponse}
		p := newTestPreparer(rpc, &fakeSimulator{valid: false})
		_, err := p.ExecuteSwap(context.Background(), tx, validReceipt, []byte{1})
		assert.True(t, errors.Is(err, types.ErrSimulationFailed))
		assert.Equal(t, 0, rpc.broadcast)
	})

	t.Run("missing receipt", func(t *testing.T) {
		p := newTestPreparer(&fakeRPC{}, &fakeSimulator{valid: true})
		_, err := p.ExecuteSwap(context.Background(), tx, nil, []byte{1})
		assert.True(t, errors.Is(err, types.ErrSimulationRequired))
	})

	t.Run("unparsable hash", func(t *testing.T) {
		p := newTestPreparer(&fakeRPC{response: json.RawMessage(`"0x1234"`)}, &fakeSimulator{valid: true})
		_, err := p.ExecuteSwap(context.Background(), tx, validReceipt, []byte{1})
		assert.True(t, errors.Is(err, types.ErrTransactionFailed))
	})

	t.Run("broadcast error", func(t *testing.T) {
		p := newTestPreparer(&fakeRPC{err: errors.New("nonce too low")}, &fakeSimulator{valid: true})
		_, err := p.ExecuteSwap(context.Background(), tx, validReceipt, []byte{1})
		assert.True(t, errors.Is(err, types.ErrTransactionFailed))
		assert.Contains(t, err.Error(), "broadcast failed")
	})
}

func TestParseTxHash(t *testing.T) {
	sig := solana.Signature{1, 2, 3}.String()
	raw, _ := json.Marshal(sig)
	got, err := parseTxHash(raw, types.Solana)
	require.NoError(t, err)
	assert.Equal(t, sig, got)

	raw, _ = json.Marshal(strings.Repeat("0f", 32))
	_, err = parseTxHash(raw, types.Bitcoin)
	assert.NoError(t, err)

	_, err = parseTxHash(json.RawMessage(`null`), types.Ethereum)
	assert.Error(t, err)
}
