// Package market holds the in-memory TTL cache for token-to-USD prices
// and the indexer that periodically refills it from an external JSON-RPC
// feed.
package market

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"
)

const (
	priceCacheSize = 500
	priceCacheTTL  = 12 * time.Hour
	priceCacheTTI  = 2 * time.Hour
)

// PriceCache is a (token_addr -> price) map with a 2h time-to-idle, a 12h
// hard time-to-live, and an LRU bound of 500 entries. Misses return absent
// and never block on I/O; concurrent reads and writes are safe.
//
// expirable.LRU natively enforces the hard TTL and the size bound; it has
// no notion of time-to-idle, so a small lastTouched map layered on top
// evicts entries that have gone 2h without a Get.
type PriceCache struct {
	lru *expirable.LRU[string, decimal.Decimal]

	mu          sync.Mutex
	lastTouched map[string]time.Time
}

// NewPriceCache builds an empty cache.
func NewPriceCache() *PriceCache {
	return &PriceCache{
		lru:         expirable.NewLRU[string, decimal.Decimal](priceCacheSize, nil, priceCacheTTL),
		lastTouched: make(map[string]time.Time),
	}
}

// Get returns (price, true) if tokenAddr has a live entry, else
// (zero, false). A hit refreshes the idle timer.
func (c *PriceCache) Get(tokenAddr string) (decimal.Decimal, bool) {
	c.mu.Lock()
	touched, seen := c.lastTouched[tokenAddr]
	idle := seen && time.Since(touched) > priceCacheTTI
	if idle {
		delete(c.lastTouched, tokenAddr)
	}
	c.mu.Unlock()

	if idle {
		c.lru.Remove(tokenAddr)
		return decimal.Zero, false
	}

	price, ok := c.lru.Get(tokenAddr)
	if !ok {
		c.mu.Lock()
		delete(c.lastTouched, tokenAddr)
		c.mu.Unlock()
		return decimal.Zero, false
	}

	c.mu.Lock()
	c.lastTouched[tokenAddr] = time.Now()
	c.mu.Unlock()
	return price, true
}

// Set stores or refreshes the price for tokenAddr, resetting both the
// hard TTL and the idle timer.
func (c *PriceCache) Set(tokenAddr string, price decimal.Decimal) {
	c.lru.Add(tokenAddr, price)
	c.mu.Lock()
	c.lastTouched[tokenAddr] = time.Now()
	c.mu.Unlock()
}

// Len reports the number of live entries, for status/metrics reporting.
func (c *PriceCache) Len() int {
	return c.lru.Len()
}
