// Package rpc is a multi-chain JSON-RPC client used for read-only calls and broadcasts
package rpc

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"

	"swap-engine/pkg/types"
)

// Client routes JSON-RPC calls to the endpoint configured for each chain. Connections are
// dialed lazily on first use.
type Client struct {
	endpoints map[types.Chain]string

	mu      sync.Mutex
	clients map[types.Chain]*gethrpc.Client
}

// NewClient creates a client over chain -> URL endpoints
func NewClient(endpoints map[types.Chain]string) *Client {
	copied := make(map[types.Chain]string, len(endpoints))
	for chain, url := range endpoints {
		if url != "" {
			copied[chain] = url
		}
	}
	return &Client{
		endpoints: copied,
		clients:   make(map[types.Chain]*gethrpc.Client),
	}
}

// Endpoint returns the configured URL for a chain
func (c *Client) Endpoint(chain types.Chain) (string, bool) {
	url, ok := c.endpoints[chain]
	return url, ok
}

func (c *Client) dial(ctx context.Context, chain types.Chain) (*gethrpc.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[chain]; ok {
		return client, nil
	}
	url, ok := c.endpoints[chain]
	if !ok {
		return nil, fmt.Errorf("no rpc endpoint configured for chain %s", chain)
	}
	client, err := gethrpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s rpc: %w", chain, err)
	}
	c.clients[chain] = client
	return client, nil
}

// SendRequest performs a raw JSON-RPC call and returns the result field
func (c *Client) SendRequest(ctx context.Context, method string, params []interface{}, chain types.Chain) (json.RawMessage, error) {
	client, err := c.dial(ctx, chain)
	if err != nil {
		return nil, types.NewNetworkError(err)
	}

	var result json.RawMessage
	if err := client.CallContext(ctx, &result, method, params...); err != nil {
		logrus.WithFields(logrus.Fields{
			"chain":  chain,
			"method": method,
		}).WithError(err).Debug("RPC call failed")
		return nil, types.NewNetworkError(fmt.Errorf("%s: %w", method, err))
	}
	return result, nil
}

// SendRawTransaction submits signed bytes with the chain's broadcast method
func (c *Client) SendRawTransaction(ctx context.Context, signed []byte, chain types.Chain) (json.RawMessage, error) {
	switch chain.Family() {
	case types.FamilyEVM:
		return c.SendRequest(ctx, "eth_sendRawTransaction", []interface{}{hexutil.Encode(signed)}, chain)
	case types.FamilyUTXO:
		return c.SendRequest(ctx, "sendrawtransaction", []interface{}{hex.EncodeToString(signed)}, chain)
	case types.FamilySolana:
		opts := map[string]string{"encoding": "base64"}
		return c.SendRequest(ctx, "sendTransaction", []interface{}{base64.StdEncoding.EncodeToString(signed), opts}, chain)
	default:
		return nil, types.NewInvalidParameters(fmt.Sprintf("unsupported chain %q", chain))
	}
}

// Close shuts down every dialed connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for chain, client := range c.clients {
		client.Close()
		delete(c.clients, chain)
	}
}
