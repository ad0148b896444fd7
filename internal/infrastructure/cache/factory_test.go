package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/customer/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func unreachable(context.Context, config.RedisConfig) (*redis.Client, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func lazyClient(_ context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	return redis.NewClient(&redis.Options{Addr: cfg.Addr(), MaxRetries: -1}), nil
}

func TestFactory_Build(t *testing.T) {
	ctx := context.Background()
	redisCfg := config.RedisConfig{Host: "127.0.0.1", Port: 1}

	tests := []struct {
		name     string
		cfg      config.CacheConfig
		dial     Dialer
		wantMode string
		wantType any
	}{
		{"none", config.CacheConfig{Mode: config.CacheNone}, unreachable, config.CacheNone, NopCache{}},
		{"memory", config.CacheConfig{Mode: config.CacheMemory}, unreachable, config.CacheMemory, &InMemoryCustomerCache{}},
		{"empty mode defaults to memory", config.CacheConfig{}, unreachable, config.CacheMemory, &InMemoryCustomerCache{}},
		{"redis", config.CacheConfig{Mode: config.CacheRedis}, lazyClient, config.CacheRedis, &RedisCustomerCache{}},
		{"tiered", config.CacheConfig{Mode: config.CacheTiered}, lazyClient, config.CacheTiered, &TieredCustomerCache{}},
		{"redis falls back", config.CacheConfig{Mode: config.CacheRedis, Fallback: true}, unreachable, config.CacheMemory, &InMemoryCustomerCache{}},
		{"tiered falls back", config.CacheConfig{Mode: config.CacheTiered, Fallback: true}, unreachable, config.CacheMemory, &InMemoryCustomerCache{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			built, err := NewFactory(tt.cfg, redisCfg, WithDialer(tt.dial)).Build(ctx)
			require.NoError(t, err)
			defer built.Close()

			assert.Equal(t, tt.wantMode, built.Mode)
			assert.IsType(t, tt.wantType, built.Cache)
		})
	}
}

func TestFactory_BuildErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("redis required without fallback", func(t *testing.T) {
		_, err := NewFactory(config.CacheConfig{Mode: config.CacheRedis}, config.RedisConfig{}, WithDialer(unreachable)).Build(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := NewFactory(config.CacheConfig{Mode: "memcached"}, config.RedisConfig{}).Build(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "memcached")
	})
}

func TestFactory_FallbackIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	cfg := config.CacheConfig{Mode: config.CacheTiered, Fallback: true}

	built, err := NewFactory(cfg, config.RedisConfig{}, WithDialer(unreachable), WithFactoryLogger(zap.New(core))).Build(context.Background())
	require.NoError(t, err)
	defer built.Close()

	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "falling back")
}

func TestNopCache(t *testing.T) {
	ctx := context.Background()
	var c NopCache
	require.NoError(t, c.Put(ctx, "c-1", testCustomer("c-1")))
	got, err := c.Get(ctx, "c-1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, c.Evict(ctx, "c-1"))
}
