package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultEvictionChannel = "customer:evictions"
	defaultCloseTimeout    = 5 * time.Second
)

// EvictionMessage announces that a customer entry must be dropped from every L1
type EvictionMessage struct {
	CustomerID string `json:"customer_id"`
	Origin     string `json:"origin"`
	Timestamp  int64  `json:"timestamp"`
}

// PubSubClient is the subset of *redis.Client used for eviction broadcast
type PubSubClient interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// RedisEvictionBroadcaster fans customer evictions out to peer instances
type RedisEvictionBroadcaster struct {
	client   PubSubClient
	channel  string
	origin   string
	logger   *zap.Logger
	cancelFn context.CancelFunc
	doneCh   chan struct{}
	doneOnce sync.Once
	mu       sync.Mutex
	running  bool
}

// BroadcasterOption configures a RedisEvictionBroadcaster
type BroadcasterOption func(*RedisEvictionBroadcaster)

// WithChannel sets the pub/sub channel
func WithChannel(channel string) BroadcasterOption {
	return func(b *RedisEvictionBroadcaster) {
		if channel != "" {
			b.channel = channel
		}
	}
}

// WithBroadcasterLogger sets the logger
func WithBroadcasterLogger(logger *zap.Logger) BroadcasterOption {
	return func(b *RedisEvictionBroadcaster) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewRedisEvictionBroadcaster creates a broadcaster with a random origin id.
// The caller owns client.
func NewRedisEvictionBroadcaster(client PubSubClient, opts ...BroadcasterOption) *RedisEvictionBroadcaster {
	b := &RedisEvictionBroadcaster{
		client:  client,
		channel: defaultEvictionChannel,
		origin:  uuid.NewString(),
		logger:  zap.NewNop(),
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Origin identifies this instance in published messages
func (b *RedisEvictionBroadcaster) Origin() string {
	return b.origin
}

// Publish announces the eviction of id
func (b *RedisEvictionBroadcaster) Publish(ctx context.Context, id string) error {
	data, err := json.Marshal(EvictionMessage{CustomerID: id, Origin: b.origin, Timestamp: time.Now().UnixNano()})
	if err != nil {
		return fmt.Errorf("failed to marshal eviction message: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish eviction of %s: %w", id, err)
	}
	return nil
}

// Subscribe blocks, calling onEvict for every eviction published by a peer,
// until ctx is cancelled or Close is called.
func (b *RedisEvictionBroadcaster) Subscribe(ctx context.Context, onEvict func(id string)) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return errors.New("eviction subscription already running")
	}
	subCtx, cancel := context.WithCancel(ctx)
	b.running = true
	b.cancelFn = cancel
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
		b.doneOnce.Do(func() { close(b.doneCh) })
	}()

	pubsub := b.client.Subscribe(subCtx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(subCtx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}
	b.logger.Info("Subscribed to customer eviction channel", zap.String("channel", b.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			return subCtx.Err()
		case msg, ok := <-ch:
			if !ok {
				b.logger.Warn("Customer eviction channel closed")
				return nil
			}
			b.dispatch(msg.Payload, onEvict)
		}
	}
}

// dispatch decodes payload and forwards peer evictions
func (b *RedisEvictionBroadcaster) dispatch(payload string, onEvict func(id string)) {
	var msg EvictionMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		b.logger.Error("Failed to unmarshal eviction message",
			zap.String("payload", payload),
			zap.Error(err))
		return
	}
	if msg.Origin == b.origin || msg.CustomerID == "" {
		return
	}
	onEvict(msg.CustomerID)
}

// Close stops a running subscription and waits for it to return
func (b *RedisEvictionBroadcaster) Close() error {
	b.mu.Lock()
	cancel := b.cancelFn
	b.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	select {
	case <-b.doneCh:
	case <-time.After(defaultCloseTimeout):
		b.logger.Warn("Timeout waiting for eviction subscription to stop")
	}
	return nil
}
