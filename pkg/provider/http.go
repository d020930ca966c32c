package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"

	"swap-engine/pkg/types"
)

const maxErrorBody = 512

// httpCaller issues JSON requests for one provider
type httpCaller struct {
	kind    Kind
	client  *http.Client
	limiter *rate.Limiter
	headers map[string]string
}

func newHTTPCaller(kind Kind, o options, headers map[string]string) *httpCaller {
	h := map[string]string{"Accept": "application/json"}
	for k, v := range headers {
		h[k] = v
	}
	return &httpCaller{
		kind:    kind,
		client:  o.httpClient,
		limiter: o.limiter,
		headers: h,
	}
}

// call performs the request and decodes a JSON response into T. Transport failures are
// network errors; non-2xx statuses are provider errors.
func call[T any](ctx context.Context, c *httpCaller, method, endpoint string, query map[string]string, body interface{}) (T, error) {
	var zero T

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return zero, types.NewNetworkError(fmt.Errorf("rate limiter: %w", err))
		}
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return zero, fmt.Errorf("failed to parse URL: %w", err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return zero, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return zero, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.client.Do(req)
	if err != nil {
		return zero, types.NewNetworkError(err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return zero, types.NewNetworkError(fmt.Errorf("failed to read response body: %w", err))
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		if len(raw) > maxErrorBody {
			raw = raw[:maxErrorBody]
		}
		return zero, types.NewProviderError(c.kind.String(), fmt.Sprintf("status %d: %s", res.StatusCode, bytes.TrimSpace(raw)))
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, types.NewProviderError(c.kind.String(), fmt.Sprintf("failed to decode response: %v", err))
	}
	return out, nil
}
