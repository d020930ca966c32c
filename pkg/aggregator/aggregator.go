// Package aggregator fans a swap request out to every eligible provider and keeps the best
// quote per request.
package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"swap-engine/pkg/amount"
	"swap-engine/pkg/metrics"
	"swap-engine/pkg/provider"
	"swap-engine/pkg/types"
)

// DefaultProviderTimeout bounds a single provider call
const DefaultProviderTimeout = 15 * time.Second

var routeTypes = []types.RouteType{
	types.RouteSameChain,
	types.RouteCrossChain,
	types.RouteWrap,
	types.RouteUnwrap,
}

// CacheStore persists the quote cache between runs
type CacheStore interface {
	Load() (map[string]*types.SwapQuote, error)
	Save(quotes map[string]*types.SwapQuote) error
}

type routeKey struct {
	route types.RouteType
	chain types.Chain
}

type result struct {
	quote *types.SwapQuote
	err   error
}

// Aggregator queries providers in parallel and selects the largest output
type Aggregator struct {
	providers []provider.Provider
	routes    map[routeKey][]int
	timeout   time.Duration
	now       func() time.Time
	store     CacheStore
	log       *logrus.Entry

	// saveMu orders cache writes with their persistence so the store never goes back in time
	saveMu sync.Mutex

	mu     sync.Mutex
	cache  map[string]*types.SwapQuote
	health map[provider.Kind]bool
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithProviderTimeout overrides the per-provider timeout
func WithProviderTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithClock overrides the time source used for cache expiry
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithCacheStore persists the quote cache
func WithCacheStore(store CacheStore) Option {
	return func(a *Aggregator) { a.store = store }
}

// New creates an aggregator. Provider order is significant: it breaks ties.
func New(providers []provider.Provider, opts ...Option) *Aggregator {
	a := &Aggregator{
		providers: providers,
		routes:    make(map[routeKey][]int),
		timeout:   DefaultProviderTimeout,
		now:       time.Now,
		log:       logrus.WithField("component", "aggregator"),
		cache:     make(map[string]*types.SwapQuote),
		health:    make(map[provider.Kind]bool),
	}
	for _, opt := range opts {
		opt(a)
	}

	for _, chain := range types.Chains() {
		for _, route := range routeTypes {
			key := routeKey{route: route, chain: chain}
			for i, p := range providers {
				// bridges only serve crossChain and DEXes never do
				if p.Kind().IsBridge() != (route == types.RouteCrossChain) {
					continue
				}
				if p.Supports(route, chain) {
					a.routes[key] = append(a.routes[key], i)
				}
			}
		}
	}
	for _, p := range providers {
		a.health[p.Kind()] = true
	}

	a.loadCache()
	return a
}

// Providers returns the providers eligible for a route starting on chain, in registration order
func (a *Aggregator) Providers(route types.RouteType, chain types.Chain) []provider.Kind {
	idx := a.routes[routeKey{route: route, chain: chain}]
	kinds := make([]provider.Kind, 0, len(idx))
	for _, i := range idx {
		kinds = append(kinds, a.providers[i].Kind())
	}
	return kinds
}

// FetchBestQuote queries every eligible provider and returns all quotes plus the best one
func (a *Aggregator) FetchBestQuote(ctx context.Context, req types.SwapRequest) (*types.QuoteComparisonResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	route := req.RouteType()
	eligible := a.routes[routeKey{route: route, chain: req.FromAsset.Chain}]
	if len(eligible) == 0 {
		return nil, types.NewUnsupportedRoute(req.FromAsset, req.ToAsset)
	}

	log := a.log.WithFields(logrus.Fields{
		"from":   req.FromAsset.String(),
		"to":     req.ToAsset.String(),
		"amount": req.Amount,
		"route":  route,
	})

	results := make([]result, len(eligible))
	var g errgroup.Group
	for slot, idx := range eligible {
		slot, p := slot, a.providers[idx]
		g.Go(func() error {
			results[slot] = a.query(ctx, p, req)
			return nil
		})
	}
	_ = g.Wait()

	res := &types.QuoteComparisonResult{}
	var bestOut string
	for slot, r := range results {
		kind := a.providers[eligible[slot]].Kind()
		if r.err != nil {
			res.FailedProviders = append(res.FailedProviders, types.ProviderFailure{Provider: kind.String(), Err: r.err})
			log.WithError(r.err).WithField("provider", kind).Warn("Provider quote failed")
			continue
		}
		// a quote only competes once its output parses
		if _, err := amount.ParseRaw(r.quote.OutputAmount); err != nil {
			failure := types.NewProviderError(kind.String(), fmt.Sprintf("invalid output amount: %v", err))
			res.FailedProviders = append(res.FailedProviders, types.ProviderFailure{Provider: kind.String(), Err: failure})
			log.WithError(err).WithField("provider", kind).Warn("Skipping quote with unparseable output")
			continue
		}
		res.AllQuotes = append(res.AllQuotes, r.quote)
		if res.BestQuote == nil {
			res.BestQuote, bestOut = r.quote, r.quote.OutputAmount
			continue
		}
		if cmp, _ := amount.Compare(r.quote.OutputAmount, bestOut); cmp > 0 {
			res.BestQuote, bestOut = r.quote, r.quote.OutputAmount
		}
	}

	if res.BestQuote == nil {
		if len(res.FailedProviders) > 0 {
			return nil, res.FailedProviders[0].Err
		}
		return nil, types.NewNetworkError(fmt.Errorf("no quotes available"))
	}

	a.storeQuote(req.CacheKey(), res.BestQuote)

	log.WithFields(logrus.Fields{
		"provider": res.BestQuote.Provider,
		"output":   res.BestQuote.OutputAmount,
		"quotes":   len(res.AllQuotes),
		"failed":   len(res.FailedProviders),
	}).Info("Best quote selected")
	return res, nil
}

// query runs one provider under its own timeout and records its health
func (a *Aggregator) query(ctx context.Context, p provider.Provider, req types.SwapRequest) result {
	cctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	quote, err := p.FetchQuote(cctx, req)
	if err == nil && quote == nil {
		err = types.NewProviderError(p.Kind().String(), "empty quote")
	}
	if err != nil && cctx.Err() != nil && types.KindOf(err) == 0 {
		err = types.NewNetworkError(fmt.Errorf("%s: %w", p.Kind(), cctx.Err()))
	}
	metrics.ObserveProvider(p.Kind().String(), time.Since(start), err)

	a.mu.Lock()
	a.health[p.Kind()] = err == nil
	a.mu.Unlock()

	return result{quote: quote, err: err}
}

// BestQuote returns an unexpired cached quote or fetches a fresh one
func (a *Aggregator) BestQuote(ctx context.Context, req types.SwapRequest) (*types.SwapQuote, error) {
	if q := a.CachedQuote(req); q != nil {
		return q, nil
	}
	res, err := a.FetchBestQuote(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.BestQuote, nil
}

// CachedQuote returns the cached best quote for req. Expired entries are evicted.
func (a *Aggregator) CachedQuote(req types.SwapRequest) *types.SwapQuote {
	key := req.CacheKey()

	a.mu.Lock()
	q, ok := a.cache[key]
	expired := ok && q.IsExpired(a.now())
	if expired {
		delete(a.cache, key)
	}
	a.mu.Unlock()

	switch {
	case !ok:
		metrics.QuoteCacheLookups.WithLabelValues("miss").Inc()
		return nil
	case expired:
		metrics.QuoteCacheLookups.WithLabelValues("expired").Inc()
		return nil
	default:
		metrics.QuoteCacheLookups.WithLabelValues("hit").Inc()
		return q
	}
}

// ClearCache drops every cached quote
func (a *Aggregator) ClearCache() {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	a.mu.Lock()
	a.cache = make(map[string]*types.SwapQuote)
	a.mu.Unlock()
	a.persist(map[string]*types.SwapQuote{})
}

// ProviderHealth returns a snapshot of the health flags
func (a *Aggregator) ProviderHealth() map[provider.Kind]bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[provider.Kind]bool, len(a.health))
	for k, v := range a.health {
		out[k] = v
	}
	return out
}

func (a *Aggregator) storeQuote(key string, q *types.SwapQuote) {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	a.mu.Lock()
	a.cache[key] = q
	snapshot := make(map[string]*types.SwapQuote, len(a.cache))
	for k, v := range a.cache {
		snapshot[k] = v
	}
	a.mu.Unlock()

	a.persist(snapshot)
}

func (a *Aggregator) persist(quotes map[string]*types.SwapQuote) {
	if a.store == nil {
		return
	}
	if err := a.store.Save(quotes); err != nil {
		a.log.WithError(err).Warn("Failed to persist quote cache")
	}
}

func (a *Aggregator) loadCache() {
	if a.store == nil {
		return
	}
	quotes, err := a.store.Load()
	if err != nil {
		a.log.WithError(err).Warn("Failed to load quote cache")
		return
	}
	now := a.now()
	for k, q := range quotes {
		if q != nil && !q.IsExpired(now) {
			a.cache[k] = q
		}
	}
}
