package simulation

import (
	"math/big"
	"strings"
	"sync"
	"time"

	"swap-engine/pkg/types"
)

type balanceEntry struct {
	balance   *big.Int
	expiresAt time.Time
}

// BalanceCache keeps recently read balances. Concurrent writers to the same key are
// last-writer-wins; expired entries are evicted on read.
type BalanceCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]balanceEntry
}

// NewBalanceCache creates a cache whose entries live for ttl
func NewBalanceCache(ttl time.Duration, now func() time.Time) *BalanceCache {
	if now == nil {
		now = time.Now
	}
	return &BalanceCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]balanceEntry),
	}
}

func balanceKey(chain types.Chain, address string) string {
	return string(chain) + ":" + strings.ToLower(address)
}

// Get returns a cached balance that has not expired
func (c *BalanceCache) Get(chain types.Chain, address string) (*big.Int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := balanceKey(chain, address)
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return new(big.Int).Set(entry.balance), true
}

// Put stores a balance
func (c *BalanceCache) Put(chain types.Chain, address string, balance *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[balanceKey(chain, address)] = balanceEntry{
		balance:   new(big.Int).Set(balance),
		expiresAt: c.now().Add(c.ttl),
	}
}

// Invalidate drops a cached balance, e.g. after a broadcast
func (c *BalanceCache) Invalidate(chain types.Chain, address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, balanceKey(chain, address))
}

// Len returns the number of entries, expired or not
func (c *BalanceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
