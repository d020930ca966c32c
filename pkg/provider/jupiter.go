package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"swap-engine/pkg/amount"
	"swap-engine/pkg/types"
)

const (
	// DefaultJupiterURL is the public Jupiter swap API
	DefaultJupiterURL = "https://lite-api.jup.ag"

	jupiterProgramID = "JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4"
)

type jupiterQuote struct {
	InputMint      string `json:"inputMint"`
	InAmount       string `json:"inAmount"`
	OutputMint     string `json:"outputMint"`
	OutAmount      string `json:"outAmount"`
	SlippageBps    int    `json:"slippageBps"`
	PriceImpactPct string `json:"priceImpactPct"`
	RoutePlan      []struct {
		SwapInfo struct {
			Label string `json:"label"`
		} `json:"swapInfo"`
	} `json:"routePlan"`
}

type jupiterSwapRequest struct {
	UserPublicKey    string          `json:"userPublicKey"`
	QuoteResponse    json.RawMessage `json:"quoteResponse"`
	WrapAndUnwrapSol bool            `json:"wrapAndUnwrapSol"`
}

type jupiterSwapResponse struct {
	SwapTransaction      string `json:"swapTransaction"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// Jupiter quotes Solana swaps. The swap transaction returned by the API is decoded and
// its message is carried as calldata so the signer can refresh the blockhash.
type Jupiter struct {
	baseURL string
	http    *httpCaller
	opts    options
}

// NewJupiter creates the Jupiter provider
func NewJupiter(baseURL string, opts ...Option) *Jupiter {
	if baseURL == "" {
		baseURL = DefaultJupiterURL
	}
	o := newOptions(opts)
	return &Jupiter{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newHTTPCaller(KindJupiter, o, nil),
		opts:    o,
	}
}

func (p *Jupiter) Kind() Kind {
	return KindJupiter
}

func (p *Jupiter) Supports(route types.RouteType, chain types.Chain) bool {
	return chain == types.Solana && route == types.RouteSameChain
}

func jupiterMint(a types.Asset) string {
	if a.IsNative() || a.ContractAddress == "" {
		return solana.SolMint.String()
	}
	return a.ContractAddress
}

func (p *Jupiter) FetchQuote(ctx context.Context, req types.SwapRequest) (*types.SwapQuote, error) {
	in, err := parseInput(KindJupiter, req)
	if err != nil {
		return nil, err
	}

	params := map[string]string{
		"inputMint":   jupiterMint(req.FromAsset),
		"outputMint":  jupiterMint(req.ToAsset),
		"amount":      in.String(),
		"slippageBps": strconv.FormatInt(amount.SlippageBps(req.SlippageTolerance), 10),
	}
	raw, err := call[json.RawMessage](ctx, p.http, http.MethodGet, p.baseURL+"/swap/v1/quote", params, nil)
	if err != nil {
		return nil, err
	}
	var quote jupiterQuote
	if err := json.Unmarshal(raw, &quote); err != nil {
		return nil, types.NewProviderError(KindJupiter.String(), fmt.Sprintf("failed to decode quote: %v", err))
	}

	out, err := amount.ParseRaw(quote.OutAmount)
	if err != nil {
		return nil, types.NewProviderError(KindJupiter.String(), fmt.Sprintf("invalid outAmount: %v", err))
	}
	q, err := buildQuote(KindJupiter, req, in, out, p.opts.now())
	if err != nil {
		return nil, err
	}
	if impact, err := decimal.NewFromString(quote.PriceImpactPct); err == nil {
		pct := impact.Mul(decimal.NewFromInt(100))
		q.PriceImpact = &pct
	}
	path := []string{req.FromAsset.Symbol}
	for _, hop := range quote.RoutePlan {
		path = append(path, hop.SwapInfo.Label)
	}
	q.RoutePath = append(path, req.ToAsset.Symbol)

	if req.SenderAddress == "" {
		return q, nil
	}
	if _, err := solana.PublicKeyFromBase58(req.SenderAddress); err != nil {
		return nil, types.NewInvalidParameters(fmt.Sprintf("invalid solana address: %v", err))
	}

	swap, err := call[jupiterSwapResponse](ctx, p.http, http.MethodPost, p.baseURL+"/swap/v1/swap", nil, jupiterSwapRequest{
		UserPublicKey:    req.SenderAddress,
		QuoteResponse:    raw,
		WrapAndUnwrapSol: true,
	})
	if err != nil {
		return nil, err
	}
	message, err := decodeSwapMessage(swap.SwapTransaction)
	if err != nil {
		return nil, types.NewProviderError(KindJupiter.String(), err.Error())
	}

	q.TransactionData = &types.TransactionData{
		To:       jupiterProgramID,
		Calldata: message,
	}
	return q, nil
}

// decodeSwapMessage parses a base64 transaction and returns its serialized message
func decodeSwapMessage(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode swap transaction: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse swap transaction: %w", err)
	}
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize message: %w", err)
	}
	return message, nil
}
