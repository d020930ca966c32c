package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swap-engine/pkg/types"
)

func TestFind(t *testing.T) {
	r := NewRegistry()

	usdc, err := r.Find("usdc", types.Base)
	require.NoError(t, err)
	assert.Equal(t, int32(6), usdc.Decimals)
	assert.Equal(t, types.AssetStablecoin, usdc.Type)

	_, err = r.Find("USDC", types.Bitcoin)
	assert.Error(t, err)
}

func TestFindAnyChain_PrefersNative(t *testing.T) {
	r := NewRegistry()

	eth, err := r.FindAnyChain("ETH")
	require.NoError(t, err)
	assert.True(t, eth.IsNative())

	sol, err := r.FindAnyChain("sol")
	require.NoError(t, err)
	assert.Equal(t, types.Solana, sol.Chain)

	_, err = r.FindAnyChain("DOGE")
	assert.Error(t, err)
}

func TestWrappedNative(t *testing.T) {
	weth, err := WrappedNative(types.Ethereum)
	require.NoError(t, err)
	assert.Equal(t, "WETH", weth.Symbol)
	assert.Equal(t, types.RouteWrap, types.DeriveRouteType(types.NativeAsset(types.Ethereum), weth))

	_, err = WrappedNative(types.Bitcoin)
	assert.Error(t, err)
}

func TestAllSorted(t *testing.T) {
	r := NewRegistry(types.Asset{Chain: types.Arbitrum, Symbol: "ARB", Decimals: 18, ContractAddress: "0x912CE59144191C1204E64559FE8253a0e49E6548", Type: types.AssetToken})
	all := r.All()
	require.NotEmpty(t, all)
	assert.Equal(t, types.Arbitrum, all[0].Chain)
	assert.Equal(t, "ARB", all[0].Symbol)
}
