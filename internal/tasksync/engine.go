// Package tasksync owns the in-memory task collection of one signed-in user
// and keeps it in step with the remote store. All state lives in a single
// actor goroutine fed by two queues: local intents and remote snapshots.
package tasksync

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yukikurage/task-sync/internal/gateway"
	"github.com/yukikurage/task-sync/internal/models"
)

var (
	ErrNotAuthenticated = errors.New("no user is signed in")
	ErrTaskNotFound     = errors.New("task not found")
	ErrEngineClosed     = errors.New("sync engine is closed")
	// ErrSyncFailed wraps every error returned by the store for a change.
	ErrSyncFailed       = errors.New("store rejected change")
)

// State is the lifecycle position of the engine.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateSyncing       State = "syncing"
	StateLive          State = "live"
)

// View is an immutable picture of the engine. Tasks must not be modified.
type View struct {
	UserID    string        `json:"user_id,omitempty"`
	State     State         `json:"state"`
	Tasks     []models.Task `json:"tasks"`
	IsLoading bool          `json:"is_loading"`
}

// Config carries the engine's injected dependencies.
type Config struct {
	Logger *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type snapshot struct {
	generation uint64
	tasks      []models.Task
}

type intent struct {
	apply  func(*state) error
	result chan error
}

type state struct {
	userID      string
	generation  uint64
	status      State
	tasks       []models.Task
	unsubscribe gateway.Unsubscribe
	watchers    map[chan View]struct{}
}

func (st *state) index(id string) int {
	return slices.IndexFunc(st.tasks, func(t models.Task) bool { return t.ID == id })
}

// Engine is the synchronization engine for one session.
type Engine struct {
	gateway gateway.TaskGateway
	logger  *slog.Logger
	now     func() time.Time

	intents   chan intent
	snapshots chan snapshot
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	view atomic.Pointer[View]

	// set by the actor on exit, read after stopped is closed
	finalUnsubscribe gateway.Unsubscribe
}

// NewEngine starts an engine with no user. Call SetUser to begin syncing and
// Close to stop it.
func NewEngine(gw gateway.TaskGateway, cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	e := &Engine{
		gateway:   gw,
		logger:    logger.With("component", "tasksync"),
		now:       now,
		intents:   make(chan intent),
		snapshots: make(chan snapshot),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}

	st := &state{
		status:   StateUninitialized,
		watchers: make(map[chan View]struct{}),
	}
	e.publish(st)

	go e.run(st)
	return e
}

func (e *Engine) run(st *state) {
	defer close(e.stopped)
	defer func() {
		for ch := range st.watchers {
			close(ch)
		}
		e.finalUnsubscribe = st.unsubscribe
	}()

	for {
		select {
		case <-e.done:
			return
		case in := <-e.intents:
			in.result <- in.apply(st)
			e.publish(st)
		case snap := <-e.snapshots:
			if snap.generation != st.generation {
				e.logger.Debug("dropping snapshot from previous session", "generation", snap.generation)
				continue
			}
			st.tasks = snap.tasks
			st.status = StateLive
			e.publish(st)
		}
	}
}

// do runs fn on the actor and returns its result. Once fn is queued it runs
// to completion even if ctx is cancelled.
func (e *Engine) do(ctx context.Context, fn func(*state) error) error {
	in := intent{apply: fn, result: make(chan error, 1)}

	select {
	case e.intents <- in:
	case <-e.stopped:
		return ErrEngineClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-in.result:
		return err
	case <-e.stopped:
		select {
		case err := <-in.result:
			return err
		default:
			return ErrEngineClosed
		}
	}
}

func (e *Engine) publish(st *state) {
	v := View{
		UserID:    st.userID,
		State:     st.status,
		Tasks:     slices.Clone(st.tasks),
		IsLoading: st.status == StateSyncing,
	}
	if v.Tasks == nil {
		v.Tasks = []models.Task{}
	}
	e.view.Store(&v)

	for ch := range st.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

func (e *Engine) deliver(generation uint64) func([]models.Task) {
	return func(tasks []models.Task) {
		select {
		case e.snapshots <- snapshot{generation: generation, tasks: slices.Clone(tasks)}:
		case <-e.stopped:
		}
	}
}

// View returns the latest published view.
func (e *Engine) View() View {
	return *e.view.Load()
}

// Tasks returns a copy of the current collection.
func (e *Engine) Tasks() []models.Task {
	return slices.Clone(e.view.Load().Tasks)
}

// IsLoading reports whether the first snapshot for the current user is still
// outstanding.
func (e *Engine) IsLoading() bool {
	return e.view.Load().IsLoading
}

// Watch streams views, starting with the current one. Slow readers only see
// the latest view. The channel is closed when ctx ends or the engine closes.
func (e *Engine) Watch(ctx context.Context) (<-chan View, error) {
	ch := make(chan View, 1)

	err := e.do(ctx, func(st *state) error {
		st.watchers[ch] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}

	go func() {
		select {
		case <-ctx.Done():
			_ = e.do(context.Background(), func(st *state) error {
				delete(st.watchers, ch)
				close(ch)
				return nil
			})
		case <-e.stopped:
		}
	}()

	return ch, nil
}

// AwaitLive blocks until the engine has merged its first snapshot for the
// current user or ctx ends. It fails with ErrNotAuthenticated when signed out.
func (e *Engine) AwaitLive(ctx context.Context) (View, error) {
	if v := e.View(); v.State == StateLive {
		return v, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	views, err := e.Watch(ctx)
	if err != nil {
		return View{}, err
	}
	for {
		select {
		case v, ok := <-views:
			if !ok {
				return View{}, ErrEngineClosed
			}
			switch v.State {
			case StateLive:
				return v, nil
			case StateUninitialized:
				return View{}, ErrNotAuthenticated
			}
		case <-ctx.Done():
			return View{}, ctx.Err()
		}
	}
}

// SetUser switches the session to userID, or signs out when userID is empty.
// Local state is cleared before the new subscription starts, so no task of
// the previous user is ever visible to the next one.
func (e *Engine) SetUser(ctx context.Context, userID string) error {
	var (
		generation uint64
		previous   gateway.Unsubscribe
	)

	err := e.do(ctx, func(st *state) error {
		st.generation++
		generation = st.generation
		previous = st.unsubscribe

		st.userID = userID
		st.tasks = nil
		st.unsubscribe = nil
		st.status = StateUninitialized
		if userID != "" {
			st.status = StateSyncing
		}
		return nil
	})
	if err != nil {
		return err
	}

	if previous != nil {
		previous()
	}
	if userID == "" {
		e.logger.Info("signed out")
		return nil
	}

	unsubscribe := e.gateway.Subscribe(userID, e.deliver(generation))

	stale := false
	err = e.do(context.WithoutCancel(ctx), func(st *state) error {
		if st.generation != generation {
			stale = true
			return nil
		}
		st.unsubscribe = unsubscribe
		return nil
	})
	if err != nil || stale {
		unsubscribe()
		return err
	}

	e.logger.Info("subscribed", "user_id", userID)
	return nil
}

// Close stops the actor and the active subscription. Later calls return
// ErrEngineClosed.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.done)
		<-e.stopped
		if e.finalUnsubscribe != nil {
			e.finalUnsubscribe()
		}
	})
}
