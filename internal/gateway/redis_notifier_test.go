package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requires Redis running on localhost:6379.
const testRedisAddr = "localhost:6379"

func setupRedisNotifier(t *testing.T) *RedisNotifier {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}
	t.Cleanup(func() { client.Close() })

	return NewRedisNotifier(client, "test:tasks:changed:", nil)
}

func TestRedisNotifier_Channel(t *testing.T) {
	n := NewRedisNotifier(nil, "tasks:changed:", nil)
	assert.Equal(t, "tasks:changed:42", n.Channel("42"))
}

func TestRedisNotifier_NotifyReachesListener(t *testing.T) {
	n := setupRedisNotifier(t)
	ctx := context.Background()

	ch, stop, err := n.Listen(ctx, "redis-user")
	require.NoError(t, err)
	defer stop()

	require.NoError(t, n.Notify(ctx, "redis-user"))

	select {
	case _, ok := <-ch:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for signal")
	}
}

func TestRedisNotifier_StopClosesChannel(t *testing.T) {
	n := setupRedisNotifier(t)

	ch, stop, err := n.Listen(context.Background(), "redis-stop")
	require.NoError(t, err)

	stop()
	stop()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after stop")
	}
}
