package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/task-sync/internal/gateway"
	"github.com/yukikurage/task-sync/internal/repository"
	"github.com/yukikurage/task-sync/internal/tasksync"
)

type evictionEnv struct {
	notifier *gateway.LocalNotifier
	sync     *SyncService
	elapsed  *atomic.Int64
}

func (env evictionEnv) advance(d time.Duration) {
	env.elapsed.Add(int64(d))
}

func setupEvictionEnv(t *testing.T) evictionEnv {
	t.Helper()

	db := newTestDB(t)
	notifier := gateway.NewLocalNotifier()
	gw := gateway.NewStoreGateway(repository.NewTaskRepository(db), notifier, nil)

	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	elapsed := new(atomic.Int64)
	syncService := NewSyncService(gw, tasksync.Config{
		Now: func() time.Time { return start.Add(time.Duration(elapsed.Load())) },
	})
	t.Cleanup(syncService.Close)

	return evictionEnv{notifier: notifier, sync: syncService, elapsed: elapsed}
}

func TestSyncService_EvictIdle(t *testing.T) {
	env := setupEvictionEnv(t)
	ctx := context.Background()

	_, err := env.sync.EngineFor(ctx, 1)
	require.NoError(t, err)
	env.advance(20 * time.Minute)
	_, err = env.sync.EngineFor(ctx, 2)
	require.NoError(t, err)
	env.advance(15 * time.Minute)

	assert.Equal(t, 1, env.sync.EvictIdle(ctx, 30*time.Minute))
	assert.Equal(t, 1, env.sync.ActiveCount())
	assert.Eventually(t, func() bool {
		return env.notifier.ListenerCount("1") == 0
	}, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return env.notifier.ListenerCount("2") == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSyncService_UseKeepsEngineAlive(t *testing.T) {
	env := setupEvictionEnv(t)
	ctx := context.Background()

	first, err := env.sync.EngineFor(ctx, 1)
	require.NoError(t, err)
	env.advance(25 * time.Minute)
	_, err = env.sync.EngineFor(ctx, 1)
	require.NoError(t, err)
	env.advance(25 * time.Minute)

	assert.Zero(t, env.sync.EvictIdle(ctx, 30*time.Minute))

	again, err := env.sync.EngineFor(ctx, 1)
	require.NoError(t, err)
	assert.Same(t, first, again)
}

func TestSyncService_OpenStreamIsNeverIdle(t *testing.T) {
	env := setupEvictionEnv(t)
	ctx := context.Background()

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	_, err := env.sync.Watch(streamCtx, 1)
	require.NoError(t, err)

	env.advance(time.Hour)
	assert.Zero(t, env.sync.EvictIdle(ctx, 30*time.Minute))

	// closing the stream counts as a use, so idle time starts afterwards
	cancel()
	assert.Eventually(t, func() bool {
		env.advance(time.Hour)
		return env.sync.EvictIdle(ctx, 30*time.Minute) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Zero(t, env.sync.ActiveCount())
}

func TestSyncService_RunEvictionStopsWithContext(t *testing.T) {
	env := setupEvictionEnv(t)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := env.sync.EngineFor(ctx, 1)
	require.NoError(t, err)
	env.advance(time.Hour)

	done := make(chan struct{})
	go func() {
		env.sync.RunEviction(ctx, 5*time.Millisecond, 30*time.Minute)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return env.sync.ActiveCount() == 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("eviction loop did not stop")
	}
}
