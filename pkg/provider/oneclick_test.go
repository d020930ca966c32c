package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swap-engine/pkg/types"
)

const oneClickTokensJSON = `[
	{"assetId": "nep141:eth-0xdeadbeef.omft.near", "decimals": 6, "blockchain": "eth", "symbol": "USDC",
	 "price": 1, "priceUpdatedAt": "2026-02-01T08:59:00Z", "contractAddress": "0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"},
	{"assetId": "nep141:eth-0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48.omft.near", "decimals": 6, "blockchain": "eth", "symbol": "USDC",
	 "price": 1, "priceUpdatedAt": "2026-02-01T08:59:00Z", "contractAddress": "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"},
	{"assetId": "nep141:sol-5ce3bf3a31af18be40ba30f721101b4341690186.omft.near", "decimals": 6, "blockchain": "sol", "symbol": "USDC",
	 "price": 1, "priceUpdatedAt": "2026-02-01T08:59:00Z", "contractAddress": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"},
	{"assetId": "nep141:btc.omft.near", "decimals": 8, "blockchain": "btc", "symbol": "BTC",
	 "price": 100000, "priceUpdatedAt": "2026-02-01T08:59:00Z"}
]`

// oneClickServer serves the token list and answers quotes with quoteBody. The decoded quote
// requests are recorded in order.
type oneClickServer struct {
	*httptest.Server

	mu          sync.Mutex
	tokenCalls  int
	requests    []map[string]interface{}
	quoteStatus int
	quoteBody   string
}

func newOneClickServer(t *testing.T, quoteStatus int, quoteBody string) *oneClickServer {
	s := &oneClickServer{quoteStatus: quoteStatus, quoteBody: quoteBody}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		s.mu.Lock()
		defer s.mu.Unlock()

		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/tokens"):
			s.tokenCalls++
			_, _ = w.Write([]byte(oneClickTokensJSON))
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/quote"):
			assert.Equal(t, "Bearer test-jwt", r.Header.Get("Authorization"))
			var body map[string]interface{}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			s.requests = append(s.requests, body)
			w.WriteHeader(s.quoteStatus)
			_, _ = w.Write([]byte(s.quoteBody))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func oneClickQuoteJSON(quote string) string {
	return `{
		"timestamp": "2026-02-01T09:00:00Z",
		"signature": "ed25519:sig",
		"quoteRequest": {
			"dry": false,
			"swapType": "EXACT_INPUT",
			"slippageTolerance": 50,
			"originAsset": "nep141:eth-0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48.omft.near",
			"depositType": "ORIGIN_CHAIN",
			"destinationAsset": "nep141:btc.omft.near",
			"amount": "150000000",
			"refundTo": "0x1111111111111111111111111111111111111111",
			"refundType": "ORIGIN_CHAIN",
			"recipient": "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq",
			"recipientType": "DESTINATION_CHAIN",
			"deadline": "2026-02-01T10:00:00Z"
		},
		"quote": ` + quote + `
	}`
}

func TestOneClick_FetchQuote(t *testing.T) {
	srv := newOneClickServer(t, http.StatusCreated, oneClickQuoteJSON(`{
		"depositAddress": "0x76b4c56085ED136a8744D52bE956396624a730E8",
		"depositMemo": "4242",
		"amountIn": "150000000",
		"amountInFormatted": "150.0",
		"amountInUsd": "150.0",
		"minAmountIn": "150000000",
		"amountOut": "149999",
		"amountOutFormatted": "0.0015",
		"amountOutUsd": "149.99",
		"minAmountOut": "149249",
		"deadline": "2026-02-01T10:00:00Z",
		"timeWhenInactive": "2026-02-01T10:00:00Z",
		"timeEstimate": 120
	}`))

	p := NewOneClick("test-jwt", srv.URL, WithClock(clock))
	req := request(usdc, btc, "150000000")
	req.DestinationAddress = "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"

	q, err := p.FetchQuote(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, srv.requests, 1)
	body := srv.requests[0]
	assert.Equal(t, false, body["dry"])
	assert.Equal(t, "nep141:eth-0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48.omft.near", body["originAsset"], "matched by contract address")
	assert.Equal(t, "nep141:btc.omft.near", body["destinationAsset"])
	assert.Equal(t, "150000000", body["amount"])
	assert.Equal(t, float64(50), body["slippageTolerance"])
	assert.Equal(t, req.DestinationAddress, body["recipient"])
	assert.Equal(t, sender, body["refundTo"])

	// the raw amount is used, not the rounded display value
	assert.Equal(t, "149999", q.OutputAmount)
	assert.Equal(t, "150000000", q.InputAmount)
	assert.Equal(t, types.RouteCrossChain, q.RouteType)
	assert.Equal(t, KindOneClick.String(), q.Provider)
	require.NotNil(t, q.TransactionData)
	assert.Equal(t, "0x76b4c56085ED136a8744D52bE956396624a730E8", q.TransactionData.VaultAddress)
	assert.Equal(t, "4242", q.TransactionData.Memo)
	assert.True(t, q.TransactionData.DepositOnly)

	// the token list is cached between quotes
	_, err = p.FetchQuote(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, srv.tokenCalls)
}

func TestOneClick_DryQuoteWithoutDestination(t *testing.T) {
	srv := newOneClickServer(t, http.StatusCreated, oneClickQuoteJSON(`{
		"amountIn": "150000000",
		"amountInFormatted": "150.0",
		"amountInUsd": "150.0",
		"minAmountIn": "150000000",
		"amountOut": "150000",
		"amountOutFormatted": "0.0015",
		"amountOutUsd": "150.0",
		"minAmountOut": "149250",
		"timeEstimate": 120
	}`))

	p := NewOneClick("test-jwt", srv.URL, WithClock(clock))
	q, err := p.FetchQuote(context.Background(), request(usdc, btc, "150000000"))
	require.NoError(t, err)

	require.Len(t, srv.requests, 1)
	assert.Equal(t, true, srv.requests[0]["dry"])
	assert.Equal(t, sender, srv.requests[0]["recipient"])
	assert.Equal(t, "150000", q.OutputAmount)
	assert.Nil(t, q.TransactionData, "indicative quotes carry no deposit address")
}

func TestOneClick_QuoteErrorMessage(t *testing.T) {
	srv := newOneClickServer(t, http.StatusBadRequest, `{"message":"Amount is too low for bridge, try at least 1000000"}`)

	p := NewOneClick("test-jwt", srv.URL, WithClock(clock))
	req := request(usdc, btc, "10")
	req.DestinationAddress = "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"

	_, err := p.FetchQuote(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrProviderError))
	assert.Contains(t, err.Error(), "Amount is too low for bridge")
	assert.Contains(t, err.Error(), "400")
}

func TestOneClick_UnknownToken(t *testing.T) {
	srv := newOneClickServer(t, http.StatusCreated, `{}`)

	p := NewOneClick("test-jwt", srv.URL, WithClock(clock))
	bsc := types.NativeAsset(types.BSC)
	_, err := p.FetchQuote(context.Background(), request(usdc, bsc, "150000000"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrProviderError))
	assert.Contains(t, err.Error(), "destination token")
	assert.Empty(t, srv.requests, "no quote is requested for an unknown token")
}
