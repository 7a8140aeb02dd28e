package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yukikurage/task-sync/internal/gateway"
	"github.com/yukikurage/task-sync/internal/models"
	"github.com/yukikurage/task-sync/internal/tasksync"
)

var ErrSyncServiceClosed = errors.New("sync service is closed")

// SyncService keeps one synchronization engine per signed-in user. Engines
// nobody has used for a while are evicted by EvictIdle.
type SyncService struct {
	gateway gateway.TaskGateway
	config  tasksync.Config
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	engines map[uint64]*activeEngine
	closed  bool
}

type activeEngine struct {
	engine   *tasksync.Engine
	lastUsed time.Time
	// open Watch streams; an engine with streams is never idle
	streams int
}

// NewSyncService creates an empty registry. Engines share gw and cfg.
func NewSyncService(gw gateway.TaskGateway, cfg tasksync.Config) *SyncService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &SyncService{
		gateway: gw,
		config:  cfg,
		logger:  logger.With("component", "sync_service"),
		now:     now,
		engines: make(map[uint64]*activeEngine),
	}
}

// EngineFor returns the engine of userID, starting and binding one if needed.
func (s *SyncService) EngineFor(ctx context.Context, userID uint64) (*tasksync.Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active, err := s.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	return active.engine, nil
}

// acquire must be called with s.mu held.
func (s *SyncService) acquire(ctx context.Context, userID uint64) (*activeEngine, error) {
	if s.closed {
		return nil, ErrSyncServiceClosed
	}
	if active, ok := s.engines[userID]; ok {
		active.lastUsed = s.now()
		return active, nil
	}

	engine := tasksync.NewEngine(s.gateway, s.config)
	if err := engine.SetUser(ctx, models.OwnerKey(userID)); err != nil {
		engine.Close()
		return nil, fmt.Errorf("failed to start sync: %w", err)
	}

	active := &activeEngine{engine: engine, lastUsed: s.now()}
	s.engines[userID] = active
	s.logger.Info("engine started", "user_id", userID)
	return active, nil
}

// Watch streams the views of userID's engine until ctx ends. The engine is
// kept alive while the stream is open.
func (s *SyncService) Watch(ctx context.Context, userID uint64) (<-chan tasksync.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active, err := s.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	views, err := active.engine.Watch(ctx)
	if err != nil {
		return nil, err
	}
	active.streams++

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		active.streams--
		active.lastUsed = s.now()
	}()
	return views, nil
}

// Release signs the user's engine out and stops it.
func (s *SyncService) Release(ctx context.Context, userID uint64) {
	s.mu.Lock()
	active, ok := s.engines[userID]
	delete(s.engines, userID)
	s.mu.Unlock()

	if !ok {
		return
	}
	s.stop(ctx, userID, active.engine)
	s.logger.Info("engine released", "user_id", userID)
}

// EvictIdle stops every engine without open streams that has not been used
// for maxIdle, and returns how many were stopped.
func (s *SyncService) EvictIdle(ctx context.Context, maxIdle time.Duration) int {
	now := s.now()
	idle := make(map[uint64]*tasksync.Engine)

	s.mu.Lock()
	for userID, active := range s.engines {
		if active.streams == 0 && now.Sub(active.lastUsed) >= maxIdle {
			idle[userID] = active.engine
			delete(s.engines, userID)
		}
	}
	s.mu.Unlock()

	for userID, engine := range idle {
		s.stop(ctx, userID, engine)
		s.logger.Info("idle engine evicted", "user_id", userID)
	}
	return len(idle)
}

// RunEviction calls EvictIdle every interval until ctx ends.
func (s *SyncService) RunEviction(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.EvictIdle(ctx, maxIdle)
		}
	}
}

func (s *SyncService) stop(ctx context.Context, userID uint64, engine *tasksync.Engine) {
	if err := engine.SetUser(context.WithoutCancel(ctx), ""); err != nil {
		s.logger.Warn("sign out failed", "user_id", userID, "error", err)
	}
	engine.Close()
}

// ActiveCount returns the number of running engines.
func (s *SyncService) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.engines)
}

// Close stops every engine. Later EngineFor calls fail.
func (s *SyncService) Close() {
	s.mu.Lock()
	engines := s.engines
	s.engines = make(map[uint64]*activeEngine)
	s.closed = true
	s.mu.Unlock()

	for _, active := range engines {
		active.engine.Close()
	}
}
