package parser

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swap-engine/pkg/assets"
	"swap-engine/pkg/types"
)

func TestParseSwapCommand(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    *Command
		wantErr bool
	}{
		{"with swap prefix", "swap 1 SOL to USDC", &Command{Amount: "1", SourceToken: "SOL", DestToken: "USDC"}, false},
		{"lowercase", "1.5 eth to btc", &Command{Amount: "1.5", SourceToken: "ETH", DestToken: "BTC"}, false},
		{"extra whitespace", "  100.25   USDC  to   SOL ", &Command{Amount: "100.25", SourceToken: "USDC", DestToken: "SOL"}, false},
		{"missing amount", "SOL to USDC", nil, true},
		{"missing destination", "1 SOL to", nil, true},
		{"negative amount", "-1 SOL to USDC", nil, true},
		{"garbage", "hello world", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSwapCommand(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateCommand(t *testing.T) {
	assert.NoError(t, ValidateCommand(&Command{Amount: "1", SourceToken: "ETH", DestToken: "USDC"}))
	assert.Error(t, ValidateCommand(&Command{SourceToken: "ETH", DestToken: "USDC"}))
	assert.Error(t, ValidateCommand(&Command{Amount: "1", DestToken: "USDC"}))
	assert.Error(t, ValidateCommand(&Command{Amount: "1", SourceToken: "ETH"}))
	assert.Error(t, ValidateCommand(&Command{Amount: "1", SourceToken: "ETH", DestToken: "ETH"}))
}

func TestToRequest(t *testing.T) {
	registry := assets.NewRegistry()

	cmd, err := ParseSwapCommand("swap 1.5 ETH to USDC")
	require.NoError(t, err)

	req, err := cmd.ToRequest(registry, "base", "base", decimal.RequireFromString("0.5"))
	require.NoError(t, err)
	assert.Equal(t, types.Base, req.FromAsset.Chain)
	assert.True(t, req.FromAsset.IsNative())
	assert.Equal(t, "USDC", req.ToAsset.Symbol)
	assert.Equal(t, types.Base, req.ToAsset.Chain)
	assert.Equal(t, "1500000000000000000", req.Amount)
	assert.Equal(t, types.RouteSameChain, req.RouteType())
}

func TestToRequest_AnyChain(t *testing.T) {
	registry := assets.NewRegistry()

	cmd, err := ParseSwapCommand("0.01 xbt to eth")
	require.NoError(t, err)

	req, err := cmd.ToRequest(registry, "", "", decimal.RequireFromString("1"))
	require.NoError(t, err)
	assert.Equal(t, types.Bitcoin, req.FromAsset.Chain)
	assert.Equal(t, "1000000", req.Amount)
	assert.Equal(t, types.Ethereum, req.ToAsset.Chain)
	assert.Equal(t, types.RouteCrossChain, req.RouteType())
}

func TestToRequest_Errors(t *testing.T) {
	registry := assets.NewRegistry()

	_, err := (&Command{Amount: "1", SourceToken: "DOGE", DestToken: "ETH"}).ToRequest(registry, "", "", decimal.Zero)
	assert.Error(t, err)

	_, err = (&Command{Amount: "1", SourceToken: "ETH", DestToken: "USDC"}).ToRequest(registry, "near", "", decimal.Zero)
	assert.Error(t, err)

	_, err = (&Command{Amount: "1", SourceToken: "USDC", DestToken: "WSOL"}).ToRequest(registry, "ethereum", "base", decimal.Zero)
	assert.Error(t, err)
}
