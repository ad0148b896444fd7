package cache

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/erp/customer/internal/domain/customer"
	"go.uber.org/zap"
)

// Broadcaster publishes evictions to peer instances
type Broadcaster interface {
	Publish(ctx context.Context, id string) error
	Subscribe(ctx context.Context, onEvict func(id string)) error
	Close() error
}

// TieredCustomerCache reads through an in-process L1 into a shared Redis L2.
// Evictions clear both tiers and are broadcast so peers drop their L1 copy.
type TieredCustomerCache struct {
	l1          *InMemoryCustomerCache
	l2          customer.Cache
	broadcaster Broadcaster
	logger      *zap.Logger

	l1Hits int64
	l2Hits int64
	misses int64
}

// NewTieredCustomerCache combines l1 and l2. broadcaster may be nil for a
// single instance.
func NewTieredCustomerCache(l1 *InMemoryCustomerCache, l2 customer.Cache, broadcaster Broadcaster, logger *zap.Logger) *TieredCustomerCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TieredCustomerCache{l1: l1, l2: l2, broadcaster: broadcaster, logger: logger}
}

var _ customer.Cache = (*TieredCustomerCache)(nil)

// StartEvictionSubscription blocks applying peer evictions to L1
func (c *TieredCustomerCache) StartEvictionSubscription(ctx context.Context) error {
	if c.broadcaster == nil {
		return nil
	}
	return c.broadcaster.Subscribe(ctx, func(id string) {
		_ = c.l1.Evict(ctx, id)
		c.logger.Debug("Applied peer customer eviction", zap.String("customer_id", id))
	})
}

// Get tries L1, then L2. An L2 hit is copied into L1.
func (c *TieredCustomerCache) Get(ctx context.Context, id string) (*customer.Customer, error) {
	if cached, _ := c.l1.Get(ctx, id); cached != nil {
		atomic.AddInt64(&c.l1Hits, 1)
		return cached, nil
	}

	cached, err := c.l2.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cached == nil {
		atomic.AddInt64(&c.misses, 1)
		return nil, nil
	}
	atomic.AddInt64(&c.l2Hits, 1)
	_ = c.l1.Put(ctx, id, cached)
	return cached, nil
}

// Put writes L2 first so L1 never holds what L2 rejected
func (c *TieredCustomerCache) Put(ctx context.Context, id string, cust *customer.Customer) error {
	if err := c.l2.Put(ctx, id, cust); err != nil {
		return err
	}
	return c.l1.Put(ctx, id, cust)
}

// Evict clears both tiers and notifies peers. Every step runs even if an
// earlier one failed.
func (c *TieredCustomerCache) Evict(ctx context.Context, id string) error {
	_ = c.l1.Evict(ctx, id)
	errs := []error{c.l2.Evict(ctx, id)}
	if c.broadcaster != nil {
		errs = append(errs, c.broadcaster.Publish(ctx, id))
	}
	return errors.Join(errs...)
}

// Stats returns L1 hits, L2 hits and full misses
func (c *TieredCustomerCache) Stats() (l1Hits, l2Hits, misses int64) {
	return atomic.LoadInt64(&c.l1Hits), atomic.LoadInt64(&c.l2Hits), atomic.LoadInt64(&c.misses)
}

// Close stops the subscription and the L1 cleanup
func (c *TieredCustomerCache) Close() error {
	var err error
	if c.broadcaster != nil {
		err = c.broadcaster.Close()
	}
	return errors.Join(err, c.l1.Close())
}
