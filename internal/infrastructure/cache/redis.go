package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erp/customer/internal/domain/customer"
	"github.com/erp/customer/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultRedisTTL     = 10 * time.Minute
	defaultKeyPrefix    = "customer:"
	redisConnectTimeout = 5 * time.Second
)

// NewRedisClient creates a pooled client and verifies the server answers
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   1,
		DialTimeout:  redisConnectTimeout,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, redisConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisCustomerCache stores customers as JSON under <prefix><id>
type RedisCustomerCache struct {
	client    redis.Cmdable
	ttl       time.Duration
	keyPrefix string
	logger    *zap.Logger
}

// RedisOption configures a RedisCustomerCache
type RedisOption func(*RedisCustomerCache)

// WithRedisTTL sets the entry lifetime
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(c *RedisCustomerCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithKeyPrefix sets the key namespace
func WithKeyPrefix(prefix string) RedisOption {
	return func(c *RedisCustomerCache) {
		if prefix != "" {
			c.keyPrefix = prefix
		}
	}
}

// WithRedisLogger sets the logger
func WithRedisLogger(logger *zap.Logger) RedisOption {
	return func(c *RedisCustomerCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewRedisCustomerCache creates a cache on client. The caller owns the client.
func NewRedisCustomerCache(client redis.Cmdable, opts ...RedisOption) *RedisCustomerCache {
	c := &RedisCustomerCache{
		client:    client,
		ttl:       defaultRedisTTL,
		keyPrefix: defaultKeyPrefix,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ customer.Cache = (*RedisCustomerCache)(nil)

func (c *RedisCustomerCache) key(id string) string {
	return c.keyPrefix + id
}

// Get returns the cached customer, or nil on a miss. An entry that no longer
// decodes is deleted and reported as a miss.
func (c *RedisCustomerCache) Get(ctx context.Context, id string) (*customer.Customer, error) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer %s from cache: %w", id, err)
	}

	var cust customer.Customer
	if err := json.Unmarshal(data, &cust); err != nil {
		c.logger.Warn("Dropping undecodable customer cache entry",
			zap.String("customer_id", id),
			zap.Error(err))
		if delErr := c.client.Del(ctx, c.key(id)).Err(); delErr != nil {
			c.logger.Warn("Failed to delete customer cache entry", zap.String("customer_id", id), zap.Error(delErr))
		}
		return nil, nil
	}
	return &cust, nil
}

// Put stores cust under id with the configured TTL
func (c *RedisCustomerCache) Put(ctx context.Context, id string, cust *customer.Customer) error {
	if cust == nil {
		return nil
	}
	data, err := json.Marshal(cust)
	if err != nil {
		return fmt.Errorf("failed to marshal customer %s: %w", id, err)
	}
	if err := c.client.Set(ctx, c.key(id), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache customer %s: %w", id, err)
	}
	return nil
}

// Evict deletes id
func (c *RedisCustomerCache) Evict(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to evict customer %s: %w", id, err)
	}
	return nil
}
