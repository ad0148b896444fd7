// Package cache provides per-id customer caches: in-process, Redis and a
// tiered combination kept coherent over Redis pub/sub.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/erp/customer/internal/domain/customer"
	"go.uber.org/zap"
)

const (
	defaultCleanupInterval = 30 * time.Second
	defaultMemoryTTL       = 30 * time.Second
)

// InMemoryCustomerCache keeps customer snapshots in process with a TTL
type InMemoryCustomerCache struct {
	entries sync.Map // map[string]*cacheEntry
	ttl     time.Duration
	logger  *zap.Logger
	stopCh  chan struct{}
	stopped int32

	hits   int64
	misses int64
}

type cacheEntry struct {
	value     customer.Customer
	expiresAt time.Time
}

func (e *cacheEntry) isExpired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// InMemoryOption configures an InMemoryCustomerCache
type InMemoryOption func(*InMemoryCustomerCache)

// WithMemoryTTL sets the entry lifetime
func WithMemoryTTL(ttl time.Duration) InMemoryOption {
	return func(c *InMemoryCustomerCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithMemoryLogger sets the logger
func WithMemoryLogger(logger *zap.Logger) InMemoryOption {
	return func(c *InMemoryCustomerCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewInMemoryCustomerCache creates the cache and starts its cleanup goroutine.
// Close stops it.
func NewInMemoryCustomerCache(opts ...InMemoryOption) *InMemoryCustomerCache {
	c := &InMemoryCustomerCache{
		ttl:    defaultMemoryTTL,
		logger: zap.NewNop(),
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.cleanupExpired()
	return c
}

var _ customer.Cache = (*InMemoryCustomerCache)(nil)

// Get returns a copy of the cached customer, or nil on a miss
func (c *InMemoryCustomerCache) Get(_ context.Context, id string) (*customer.Customer, error) {
	if value, ok := c.entries.Load(id); ok {
		entry := value.(*cacheEntry)
		if !entry.isExpired(time.Now()) {
			atomic.AddInt64(&c.hits, 1)
			cp := entry.value.Clone()
			return &cp, nil
		}
		c.entries.CompareAndDelete(id, value)
	}
	atomic.AddInt64(&c.misses, 1)
	return nil, nil
}

// Put stores a copy of cust under id
func (c *InMemoryCustomerCache) Put(_ context.Context, id string, cust *customer.Customer) error {
	if cust == nil {
		return nil
	}
	c.entries.Store(id, &cacheEntry{value: cust.Clone(), expiresAt: time.Now().Add(c.ttl)})
	return nil
}

// Evict removes id
func (c *InMemoryCustomerCache) Evict(_ context.Context, id string) error {
	c.entries.Delete(id)
	return nil
}

// InvalidateAll removes every entry
func (c *InMemoryCustomerCache) InvalidateAll() {
	c.entries.Range(func(key, _ any) bool {
		c.entries.Delete(key)
		return true
	})
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (c *InMemoryCustomerCache) Close() error {
	if atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		close(c.stopCh)
	}
	return nil
}

// Stats returns the hit and miss counters
func (c *InMemoryCustomerCache) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// Len returns the number of entries, expired ones included until cleanup
func (c *InMemoryCustomerCache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (c *InMemoryCustomerCache) cleanupExpired() {
	ticker := time.NewTicker(defaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case now := <-ticker.C:
			c.removeExpired(now)
		}
	}
}

func (c *InMemoryCustomerCache) removeExpired(now time.Time) int {
	removed := 0
	c.entries.Range(func(key, value any) bool {
		if value.(*cacheEntry).isExpired(now) {
			c.entries.CompareAndDelete(key, value)
			removed++
		}
		return true
	})
	if removed > 0 {
		c.logger.Debug("Removed expired customer cache entries", zap.Int("removed", removed))
	}
	return removed
}
