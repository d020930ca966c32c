package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/sirupsen/logrus"

	"swap-engine/pkg/amount"
	"swap-engine/pkg/types"
)

const (
	oneClickTokensTTL = 5 * time.Minute
	oneClickDeadline  = time.Hour
)

// oneClickBlockchains maps chains to the 1Click blockchain identifiers
var oneClickBlockchains = map[types.Chain]string{
	types.Ethereum:  "eth",
	types.Avalanche: "avax",
	types.BSC:       "bsc",
	types.Base:      "base",
	types.Arbitrum:  "arb",
	types.Bitcoin:   "btc",
	types.Solana:    "sol",
}

// OneClick quotes cross-chain intents through the NEAR Intents 1Click API. Quotes carry
// a unique deposit address, so no memo is needed to identify the swap.
type OneClick struct {
	client   *oneclick.APIClient
	jwtToken string
	opts     options

	mu        sync.Mutex
	tokens    []oneclick.TokenResponse
	fetchedAt time.Time
}

// NewOneClick creates the 1Click bridge provider. An empty baseURL keeps the SDK default.
func NewOneClick(jwtToken, baseURL string, opts ...Option) *OneClick {
	o := newOptions(opts)

	config := oneclick.NewConfiguration()
	config.HTTPClient = o.httpClient
	if baseURL != "" {
		config.Servers = oneclick.ServerConfigurations{{URL: strings.TrimRight(baseURL, "/")}}
	}

	return &OneClick{
		client:   oneclick.NewAPIClient(config),
		jwtToken: jwtToken,
		opts:     o,
	}
}

func (p *OneClick) Kind() Kind {
	return KindOneClick
}

func (p *OneClick) Supports(route types.RouteType, chain types.Chain) bool {
	_, ok := oneClickBlockchains[chain]
	return ok && route == types.RouteCrossChain
}

func (p *OneClick) authContext(ctx context.Context) context.Context {
	if p.jwtToken == "" {
		return ctx
	}
	return context.WithValue(ctx, oneclick.ContextAccessToken, p.jwtToken)
}

// SupportedTokens returns the 1Click token list, cached for a few minutes
func (p *OneClick) SupportedTokens(ctx context.Context) ([]oneclick.TokenResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tokens != nil && p.opts.now().Sub(p.fetchedAt) < oneClickTokensTTL {
		return p.tokens, nil
	}

	resp, httpResp, err := p.client.OneClickAPI.GetTokens(p.authContext(ctx)).Execute()
	if err != nil {
		return nil, types.NewNetworkError(fmt.Errorf("failed to get tokens: %w", err))
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, types.NewProviderError(KindOneClick.String(), fmt.Sprintf("tokens endpoint returned status %d", httpResp.StatusCode))
	}

	p.tokens = resp
	p.fetchedAt = p.opts.now()
	return resp, nil
}

func (p *OneClick) findToken(ctx context.Context, asset types.Asset) (*oneclick.TokenResponse, error) {
	blockchain, ok := oneClickBlockchains[asset.Chain]
	if !ok {
		return nil, fmt.Errorf("chain %s is not supported by 1click", asset.Chain)
	}
	tokens, err := p.SupportedTokens(ctx)
	if err != nil {
		return nil, err
	}

	symbol := strings.ToUpper(asset.Symbol)
	for i := range tokens {
		token := tokens[i]
		if !strings.EqualFold(token.GetBlockchain(), blockchain) || strings.ToUpper(token.GetSymbol()) != symbol {
			continue
		}
		if asset.ContractAddress != "" && token.GetContractAddress() != "" &&
			!strings.EqualFold(token.GetContractAddress(), asset.ContractAddress) {
			continue
		}
		return &token, nil
	}
	return nil, fmt.Errorf("token '%s' not found on chain '%s'", symbol, blockchain)
}

func (p *OneClick) FetchQuote(ctx context.Context, req types.SwapRequest) (*types.SwapQuote, error) {
	in, err := parseInput(KindOneClick, req)
	if err != nil {
		return nil, err
	}

	origin, err := p.findToken(ctx, req.FromAsset)
	if err != nil {
		return nil, wrapProviderErr(KindOneClick, "source token", err)
	}
	destination, err := p.findToken(ctx, req.ToAsset)
	if err != nil {
		return nil, wrapProviderErr(KindOneClick, "destination token", err)
	}

	// Without a recipient only an indicative quote is possible
	dry := req.DestinationAddress == ""
	recipient := req.DestinationOrSender()
	refundTo := req.SenderAddress
	if refundTo == "" {
		refundTo = recipient
	}

	quoteReq := oneclick.NewQuoteRequest(
		dry,
		"EXACT_INPUT",
		float32(amount.SlippageBps(req.SlippageTolerance)),
		origin.GetAssetId(),
		"ORIGIN_CHAIN",
		destination.GetAssetId(),
		in.String(),
		refundTo,
		"ORIGIN_CHAIN",
		recipient,
		"DESTINATION_CHAIN",
		p.opts.now().Add(oneClickDeadline),
	)

	resp, httpResp, err := p.client.OneClickAPI.GetQuote(p.authContext(ctx)).QuoteRequest(*quoteReq).Execute()
	if err != nil {
		return nil, quoteError(httpResp, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, types.NewProviderError(KindOneClick.String(), fmt.Sprintf("quote endpoint returned status %d", httpResp.StatusCode))
	}
	if resp == nil {
		return nil, types.NewProviderError(KindOneClick.String(), "empty quote response")
	}

	details := resp.GetQuote()
	out, err := amount.ParseRaw(details.GetAmountOut())
	if err != nil {
		return nil, types.NewProviderError(KindOneClick.String(), fmt.Sprintf("invalid amount out: %v", err))
	}

	q, err := buildQuote(KindOneClick, req, in, out, p.opts.now())
	if err != nil {
		return nil, err
	}
	if !dry {
		td := &types.TransactionData{
			VaultAddress: details.GetDepositAddress(),
			DepositOnly:  true,
		}
		if details.HasDepositMemo() {
			td.Memo = details.GetDepositMemo()
		}
		q.TransactionData = td
	}

	logrus.WithFields(logrus.Fields{
		"provider":      KindOneClick,
		"origin":        origin.GetAssetId(),
		"destination":   destination.GetAssetId(),
		"time_estimate": details.GetTimeEstimate(),
		"dry":           dry,
	}).Debug("1Click quote received")
	return q, nil
}

// ExecutionStatus returns the status of a swap by its deposit address
func (p *OneClick) ExecutionStatus(ctx context.Context, depositAddress string) (*oneclick.GetExecutionStatusResponse, error) {
	resp, httpResp, err := p.client.OneClickAPI.GetExecutionStatus(p.authContext(ctx)).DepositAddress(depositAddress).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}
	return resp, nil
}

// SubmitDepositTx tells 1Click about a broadcast deposit so it can be picked up sooner
func (p *OneClick) SubmitDepositTx(ctx context.Context, depositAddress, txHash string) error {
	req := oneclick.NewSubmitDepositTxRequest(depositAddress, txHash)

	_, httpResp, err := p.client.OneClickAPI.SubmitDepositTx(p.authContext(ctx)).SubmitDepositTxRequest(*req).Execute()
	if err != nil {
		return fmt.Errorf("failed to submit deposit: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusCreated {
		return fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}
	return nil
}

// quoteError extracts the API's message from a failed quote response
func quoteError(httpResp *http.Response, err error) error {
	if httpResp == nil {
		return types.NewNetworkError(err)
	}
	defer httpResp.Body.Close()

	body, readErr := io.ReadAll(httpResp.Body)
	if readErr == nil && len(body) > 0 {
		var errorResp map[string]interface{}
		if jsonErr := json.Unmarshal(body, &errorResp); jsonErr == nil {
			if message, ok := errorResp["message"].(string); ok {
				return types.NewProviderError(KindOneClick.String(), fmt.Sprintf("status %d: %s", httpResp.StatusCode, message))
			}
		}
		return types.NewProviderError(KindOneClick.String(), fmt.Sprintf("status %d: %s", httpResp.StatusCode, string(body)))
	}
	return types.NewProviderError(KindOneClick.String(), fmt.Sprintf("status %d: %v", httpResp.StatusCode, err))
}

// wrapProviderErr keeps typed errors and turns anything else into a provider error
func wrapProviderErr(kind Kind, what string, err error) error {
	if types.KindOf(err) != 0 {
		return err
	}
	return types.NewProviderError(kind.String(), fmt.Sprintf("%s: %v", what, err))
}
