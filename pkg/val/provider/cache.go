package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/komsit37/val/pkg/val/types"
)

// Cache decorates a Provider with a TTL+LRU cache. Errors are not cached.
type Cache struct {
	next Provider
	ttl  time.Duration
	size int
	now  func() time.Time

	mu    sync.Mutex
	items map[string]cacheEntry
	order []string // LRU order, oldest at index 0
}

type cacheEntry struct {
	at  time.Time
	val any
}

func NewCache(next Provider, ttl time.Duration, size int) *Cache {
	if size <= 0 {
		size = 256
	}
	return &Cache{next: next, ttl: ttl, size: size, now: time.Now, items: make(map[string]cacheEntry)}
}

func (c *Cache) key(kind, sym string, extra int) string {
	return fmt.Sprintf("%s|%s|%d", kind, strings.ToUpper(sym), extra)
}

func (c *Cache) lookup(k string) (any, bool) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	ent, ok := c.items[k]
	if !ok {
		return nil, false
	}
	if now.Sub(ent.at) > c.ttl {
		delete(c.items, k)
		c.removeFromOrderLocked(k)
		return nil, false
	}
	c.touchLocked(k)
	return ent.val, true
}

func (c *Cache) store(k string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[k]; ok {
		c.removeFromOrderLocked(k)
	}
	c.items[k] = cacheEntry{at: c.now(), val: v}
	c.order = append(c.order, k)
	for len(c.items) > c.size && len(c.order) > 0 {
		old := c.order[0]
		c.order = c.order[1:]
		delete(c.items, old)
	}
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache) touchLocked(k string) {
	c.removeFromOrderLocked(k)
	c.order = append(c.order, k)
}

func (c *Cache) removeFromOrderLocked(k string) {
	for i, v := range c.order {
		if v == k {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func (c *Cache) Profile(ctx context.Context, symbol string) (types.CompanyProfile, error) {
	k := c.key("profile", symbol, 0)
	if v, ok := c.lookup(k); ok {
		return v.(types.CompanyProfile), nil
	}
	p, err := c.next.Profile(ctx, symbol)
	if err != nil {
		return p, err
	}
	c.store(k, p)
	return p, nil
}

func (c *Cache) CashFlowHistory(ctx context.Context, symbol string, years int) ([]types.CashFlowRecord, error) {
	k := c.key("cashflow", symbol, years)
	if v, ok := c.lookup(k); ok {
		return append([]types.CashFlowRecord(nil), v.([]types.CashFlowRecord)...), nil
	}
	recs, err := c.next.CashFlowHistory(ctx, symbol, years)
	if err != nil {
		return recs, err
	}
	c.store(k, append([]types.CashFlowRecord(nil), recs...))
	return recs, nil
}

func (c *Cache) Peers(ctx context.Context, symbol string) ([]string, error) {
	k := c.key("peers", symbol, 0)
	if v, ok := c.lookup(k); ok {
		return append([]string(nil), v.([]string)...), nil
	}
	peers, err := c.next.Peers(ctx, symbol)
	if err != nil {
		return peers, err
	}
	c.store(k, append([]string(nil), peers...))
	return peers, nil
}

func (c *Cache) Ratios(ctx context.Context, symbol string) (types.RatioRecord, error) {
	k := c.key("ratios", symbol, 0)
	if v, ok := c.lookup(k); ok {
		return v.(types.RatioRecord), nil
	}
	r, err := c.next.Ratios(ctx, symbol)
	if err != nil {
		return r, err
	}
	c.store(k, r)
	return r, nil
}
