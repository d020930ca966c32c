package amount

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		name     string
		human    string
		decimals int32
		expected string
	}{
		{name: "eth", human: "1.5", decimals: 18, expected: "1500000000000000000"},
		{name: "usdc", human: "10", decimals: 6, expected: "10000000"},
		{name: "truncates extra digits", human: "0.1234567", decimals: 6, expected: "123456"},
		{name: "zero", human: "0", decimals: 8, expected: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToBaseUnits(tt.human, tt.decimals)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got.String())
		})
	}
}

func TestToBaseUnits_Invalid(t *testing.T) {
	_, err := ToBaseUnits("abc", 6)
	assert.Error(t, err)

	_, err = ToBaseUnits("-1", 6)
	assert.Error(t, err)
}

func TestFromBaseUnits(t *testing.T) {
	assert.Equal(t, "1.5", FromBaseUnits(big.NewInt(1500000), 6))
	assert.Equal(t, "10", FromBaseUnits(big.NewInt(10000000), 6))
	assert.Equal(t, "0.00000001", FromBaseUnits(big.NewInt(1), 8))
	assert.Equal(t, "0", FromBaseUnits(nil, 8))
}

func TestRescale(t *testing.T) {
	// 18 -> 8 drops the last ten digits
	got := Rescale(big.NewInt(1234567890123456789), 18, 8)
	assert.Equal(t, "123456789", got.String())

	// 6 -> 8 multiplies by 100
	got = Rescale(big.NewInt(2500000), 6, 8)
	assert.Equal(t, "250000000", got.String())
}

func TestConvertWithRate_DifferentDecimals(t *testing.T) {
	in, err := ToBaseUnits("1.5", 18)
	require.NoError(t, err)

	// 1.5 ETH at 2000 USDC/ETH on a 6-decimal asset
	out := ConvertWithRate(in, 18, decimal.NewFromInt(2000), 6)
	assert.Equal(t, "3000000000", out.String())
}

func TestExchangeRate(t *testing.T) {
	in, _ := ToBaseUnits("1.5", 18)
	rate, err := ExchangeRate(in, 18, big.NewInt(3000000000), 6)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(2000)), rate.String())

	_, err = ExchangeRate(big.NewInt(0), 18, big.NewInt(1), 6)
	assert.Error(t, err)
}

func TestApplySlippage(t *testing.T) {
	tests := []struct {
		name     string
		output   int64
		slippage string
		expected string
	}{
		{name: "half percent", output: 3000000, slippage: "0.5", expected: "2985000"},
		{name: "truncates", output: 999, slippage: "1", expected: "989"},
		{name: "zero slippage", output: 100, slippage: "0", expected: "100"},
		{name: "max slippage", output: 100, slippage: "50", expected: "50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplySlippage(big.NewInt(tt.output), decimal.RequireFromString(tt.slippage))
			assert.Equal(t, tt.expected, got.String())
		})
	}
}

func TestSlippageBps(t *testing.T) {
	assert.Equal(t, int64(50), SlippageBps(decimal.RequireFromString("0.5")))
	assert.Equal(t, int64(300), SlippageBps(decimal.NewFromInt(3)))
}

func TestCompare(t *testing.T) {
	c, err := Compare("105", "100")
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	// larger than uint64
	c, err = Compare("100000000000000000000000", "99999999999999999999999")
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	_, err = Compare("1.5", "1")
	assert.Error(t, err)
}
