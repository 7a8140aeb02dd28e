package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisNotifier publishes change signals on one Redis channel per user, so
// every server process sharing the store sees every write.
type RedisNotifier struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisNotifier creates a notifier publishing on prefix+userID.
func NewRedisNotifier(client *redis.Client, prefix string, logger *slog.Logger) *RedisNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisNotifier{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

// Channel returns the Redis channel used for userID.
func (n *RedisNotifier) Channel(userID string) string {
	return n.prefix + userID
}

// Notify publishes a change signal for userID.
func (n *RedisNotifier) Notify(ctx context.Context, userID string) error {
	if err := n.client.Publish(ctx, n.Channel(userID), "changed").Err(); err != nil {
		return fmt.Errorf("redis publish error: %w", err)
	}
	return nil
}

// Listen subscribes to the user's channel and waits for the subscription to
// be confirmed before returning.
func (n *RedisNotifier) Listen(ctx context.Context, userID string) (<-chan struct{}, func(), error) {
	pubsub := n.client.Subscribe(ctx, n.Channel(userID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("redis subscribe error: %w", err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for range pubsub.Channel() {
			signal(out)
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			if err := pubsub.Close(); err != nil {
				n.logger.Warn("redis unsubscribe failed", "channel", n.Channel(userID), "error", err)
			}
		})
	}

	return out, stop, nil
}
