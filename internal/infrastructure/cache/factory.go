package cache

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/erp/customer/internal/domain/customer"
	"github.com/erp/customer/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NopCache never stores anything
type NopCache struct{}

func (NopCache) Get(context.Context, string) (*customer.Customer, error) { return nil, nil }
func (NopCache) Put(context.Context, string, *customer.Customer) error   { return nil }
func (NopCache) Evict(context.Context, string) error                     { return nil }

// Dialer opens the Redis client used by the redis and tiered modes
type Dialer func(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error)

// Built is the cache selected by the factory and the resources to release
type Built struct {
	Cache customer.Cache
	// Mode is the mode actually in use, memory after a fallback
	Mode    string
	closers []io.Closer
}

// Close releases the cache, its subscription and the Redis client it opened
func (b *Built) Close() error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Factory builds the customer cache selected by configuration
type Factory struct {
	cacheCfg config.CacheConfig
	redisCfg config.RedisConfig
	dial     Dialer
	logger   *zap.Logger
}

// FactoryOption configures a Factory
type FactoryOption func(*Factory)

// WithDialer replaces NewRedisClient
func WithDialer(dial Dialer) FactoryOption {
	return func(f *Factory) {
		f.dial = dial
	}
}

// WithFactoryLogger sets the logger handed to every built cache
func WithFactoryLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFactory creates a cache factory
func NewFactory(cacheCfg config.CacheConfig, redisCfg config.RedisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{cacheCfg: cacheCfg, redisCfg: redisCfg, dial: NewRedisClient, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Build creates the cache. In tiered mode the eviction subscription runs in
// the background until Close. When Redis is unreachable and fallback is
// allowed, redis and tiered modes degrade to memory.
func (f *Factory) Build(ctx context.Context) (*Built, error) {
	switch f.cacheCfg.Mode {
	case config.CacheNone:
		return &Built{Cache: NopCache{}, Mode: config.CacheNone}, nil
	case config.CacheMemory, "":
		return f.memory(), nil
	case config.CacheRedis, config.CacheTiered:
	default:
		return nil, fmt.Errorf("unknown cache mode %q", f.cacheCfg.Mode)
	}

	client, err := f.dial(ctx, f.redisCfg)
	if err != nil {
		if !f.cacheCfg.Fallback {
			return nil, fmt.Errorf("redis required for %s cache but unavailable: %w", f.cacheCfg.Mode, err)
		}
		f.logger.Warn("Redis unavailable, falling back to in-memory customer cache. "+
			"Instances will not share cached customers.",
			zap.String("mode", f.cacheCfg.Mode),
			zap.Error(err))
		return f.memory(), nil
	}

	l2 := NewRedisCustomerCache(client,
		WithRedisTTL(f.cacheCfg.TTL),
		WithKeyPrefix(f.cacheCfg.KeyPrefix),
		WithRedisLogger(f.logger))
	if f.cacheCfg.Mode == config.CacheRedis {
		f.logger.Info("Using Redis customer cache", zap.String("addr", f.redisCfg.Addr()))
		return &Built{Cache: l2, Mode: config.CacheRedis, closers: []io.Closer{client}}, nil
	}

	l1 := NewInMemoryCustomerCache(WithMemoryTTL(f.cacheCfg.L1TTL), WithMemoryLogger(f.logger))
	broadcaster := NewRedisEvictionBroadcaster(client,
		WithChannel(f.cacheCfg.Channel),
		WithBroadcasterLogger(f.logger))
	tiered := NewTieredCustomerCache(l1, l2, broadcaster, f.logger)

	go func() {
		err := tiered.StartEvictionSubscription(context.WithoutCancel(ctx))
		if err != nil && !errors.Is(err, context.Canceled) {
			f.logger.Warn("Customer eviction subscription ended", zap.Error(err))
		}
	}()

	f.logger.Info("Using tiered customer cache",
		zap.String("addr", f.redisCfg.Addr()),
		zap.Duration("l1_ttl", f.cacheCfg.L1TTL),
		zap.String("channel", f.cacheCfg.Channel))
	return &Built{Cache: tiered, Mode: config.CacheTiered, closers: []io.Closer{client, tiered}}, nil
}

func (f *Factory) memory() *Built {
	c := NewInMemoryCustomerCache(WithMemoryTTL(f.cacheCfg.L1TTL), WithMemoryLogger(f.logger))
	return &Built{Cache: c, Mode: config.CacheMemory, closers: []io.Closer{c}}
}

// NewCustomerCache builds the configured cache with the default Redis dialer
func NewCustomerCache(ctx context.Context, cacheCfg config.CacheConfig, redisCfg config.RedisConfig, logger *zap.Logger) (*Built, error) {
	return NewFactory(cacheCfg, redisCfg, WithFactoryLogger(logger)).Build(ctx)
}
