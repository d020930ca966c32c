package simulation

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/btcsuite/btcd/txscript"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swap-engine/pkg/types"
)

type fakeBackend struct {
	balance     *big.Int
	callErr     error
	estimate    uint64
	balanceHits int
}

func (f *fakeBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return nil, f.callErr
}

func (f *fakeBackend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return f.estimate, nil
}

func (f *fakeBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	f.balanceHits++
	return f.balance, nil
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newTestService(t *testing.T, backend *fakeBackend, clock *testClock) *Service {
	t.Helper()
	s, err := NewService(
		map[types.Chain]EVMBackend{types.Ethereum: backend},
		WithClock(clock.Now),
		WithKey([]byte("test-key")),
	)
	require.NoError(t, err)
	return s
}

func evmRequest() Request {
	return Request{
		Chain:    types.Ethereum,
		From:     "0x1111111111111111111111111111111111111111",
		To:       "0x2222222222222222222222222222222222222222",
		Value:    big.NewInt(1000),
		Calldata: []byte{0xd0, 0xe3, 0x0d, 0xb0},
		GasLimit: 50000,
	}
}

func TestSimulateEVM_IssuesVerifiableReceipt(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	s := newTestService(t, &fakeBackend{balance: big.NewInt(5000), estimate: 30000}, clock)

	req := evmRequest()
	receipt, err := s.Simulate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, uint64(30000), receipt.GasUsed)
	assert.Equal(t, clock.now.Add(DefaultReceiptTTL), receipt.ExpiresAt)
	assert.True(t, s.VerifyReceipt(receipt, req))

	mutated := req
	mutated.Value = big.NewInt(1001)
	assert.False(t, s.VerifyReceipt(receipt, mutated))

	forged := *receipt
	forged.ExpiresAt = forged.ExpiresAt.Add(time.Hour)
	assert.False(t, s.VerifyReceipt(&forged, req))
}

func TestSimulateEVM_InsufficientBalance(t *testing.T) {
	clock := &testClock{now: time.Now()}
	s := newTestService(t, &fakeBackend{balance: big.NewInt(10), estimate: 21000}, clock)

	_, err := s.Simulate(context.Background(), evmRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrInsufficientBalance))
}

func TestSimulateEVM_Revert(t *testing.T) {
	clock := &testClock{now: time.Now()}
	s := newTestService(t, &fakeBackend{balance: big.NewInt(5000), callErr: errors.New("execution reverted")}, clock)

	_, err := s.Simulate(context.Background(), evmRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrSimulationFailed))
	assert.Contains(t, err.Error(), "execution reverted")
}

func TestSimulateEVM_BalanceIsCached(t *testing.T) {
	clock := &testClock{now: time.Now()}
	backend := &fakeBackend{balance: big.NewInt(5000), estimate: 21000}
	s := newTestService(t, backend, clock)

	_, err := s.Simulate(context.Background(), evmRequest())
	require.NoError(t, err)
	_, err = s.Simulate(context.Background(), evmRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, backend.balanceHits)

	clock.now = clock.now.Add(defaultBalanceTTL)
	_, err = s.Simulate(context.Background(), evmRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, backend.balanceHits)
}

func TestSimulateEVM_MissingBackend(t *testing.T) {
	clock := &testClock{now: time.Now()}
	s := newTestService(t, &fakeBackend{}, clock)

	req := evmRequest()
	req.Chain = types.Base
	_, err := s.Simulate(context.Background(), req)
	assert.True(t, errors.Is(err, types.ErrNetworkError))
}

func TestSimulateUTXO(t *testing.T) {
	clock := &testClock{now: time.Now()}
	s := newTestService(t, &fakeBackend{}, clock)

	script, err := txscript.NullDataScript([]byte("=:ETH.ETH:0x2222222222222222222222222222222222222222"))
	require.NoError(t, err)

	req := Request{
		Chain:    types.Bitcoin,
		From:     "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq",
		To:       "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq",
		Value:    big.NewInt(100000),
		Calldata: script,
	}
	receipt, err := s.Simulate(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, s.VerifyReceipt(receipt, req))

	req.To = "not-an-address"
	_, err = s.Simulate(context.Background(), req)
	assert.True(t, errors.Is(err, types.ErrSimulationFailed))
}

func TestReceiptExpiry(t *testing.T) {
	issued := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	r := &Receipt{IssuedAt: issued, ExpiresAt: issued.Add(DefaultReceiptTTL)}
	assert.False(t, r.IsExpired(issued))
	assert.True(t, r.IsExpired(issued.Add(DefaultReceiptTTL)))
}

func TestBalanceCache_LastWriterWins(t *testing.T) {
	now := time.Now()
	c := NewBalanceCache(time.Minute, func() time.Time { return now })

	c.Put(types.Ethereum, "0xABC", big.NewInt(1))
	c.Put(types.Ethereum, "0xabc", big.NewInt(2))
	got, ok := c.Get(types.Ethereum, "0xAbC")
	require.True(t, ok)
	assert.Equal(t, int64(2), got.Int64())
	assert.Equal(t, 1, c.Len())

	c.Invalidate(types.Ethereum, "0xabc")
	_, ok = c.Get(types.Ethereum, "0xabc")
	assert.False(t, ok)
}
