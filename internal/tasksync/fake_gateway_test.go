package tasksync

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"sync"

	"github.com/yukikurage/task-sync/internal/gateway"
	"github.com/yukikurage/task-sync/internal/models"
)

var errStoreDown = errors.New("store unavailable")

// fakeGateway is an in-memory store. Snapshots are pushed by the test through
// push rather than automatically, so races can be staged precisely.
type fakeGateway struct {
	mu     sync.Mutex
	tasks  map[string]models.Task
	nextID int

	failCreate   error
	failUpdate   error
	failDelete   map[string]error
	failFetchAll error
	updateGate   chan struct{}

	subscribers map[string][]func([]models.Task)
	subscribed  []string
	unsubscribe int
	updates     []string
	deletes     []string
}

var _ gateway.TaskGateway = (*fakeGateway)(nil)

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		tasks:       make(map[string]models.Task),
		failDelete:  make(map[string]error),
		subscribers: make(map[string][]func([]models.Task)),
	}
}

func (g *fakeGateway) seed(tasks ...models.Task) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, t := range tasks {
		g.tasks[t.ID] = t
	}
}

func (g *fakeGateway) stored(userID string) []models.Task {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.storedLocked(userID)
}

func (g *fakeGateway) storedLocked(userID string) []models.Task {
	out := []models.Task{}
	for _, t := range g.tasks {
		if t.UserID == userID {
			out = append(out, t.Clone())
		}
	}
	slices.SortFunc(out, func(a, b models.Task) int {
		if a.Order != b.Order {
			return a.Order - b.Order
		}
		if a.ID < b.ID {
			return -1
		}
		return 1
	})
	return out
}

// push delivers the stored collection of userID to its subscribers.
func (g *fakeGateway) push(userID string) {
	g.pushTasks(userID, g.stored(userID))
}

func (g *fakeGateway) pushTasks(userID string, tasks []models.Task) {
	g.mu.Lock()
	subs := slices.Clone(g.subscribers[userID])
	g.mu.Unlock()
	for _, fn := range subs {
		fn(tasks)
	}
}

func (g *fakeGateway) FetchAll(_ context.Context, userID string) ([]models.Task, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failFetchAll != nil {
		return nil, g.failFetchAll
	}
	return g.storedLocked(userID), nil
}

func (g *fakeGateway) Create(_ context.Context, task models.Task) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failCreate != nil {
		return "", g.failCreate
	}
	g.nextID++
	task.ID = "task-" + strconv.Itoa(g.nextID)
	g.tasks[task.ID] = task.Clone()
	return task.ID, nil
}

func (g *fakeGateway) Update(ctx context.Context, id string, fields models.TaskFields) error {
	g.mu.Lock()
	g.updates = append(g.updates, id)
	gate := g.updateGate
	g.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failUpdate != nil {
		return g.failUpdate
	}
	t, ok := g.tasks[id]
	if !ok {
		return gateway.ErrNotFound
	}
	g.tasks[id] = t.Apply(fields)
	return nil
}

func (g *fakeGateway) Delete(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deletes = append(g.deletes, id)
	if err := g.failDelete[id]; err != nil {
		return err
	}
	delete(g.tasks, id)
	return nil
}

func (g *fakeGateway) Subscribe(userID string, onSnapshot func([]models.Task)) gateway.Unsubscribe {
	g.mu.Lock()
	g.subscribers[userID] = append(g.subscribers[userID], onSnapshot)
	g.subscribed = append(g.subscribed, userID)
	index := len(g.subscribers[userID]) - 1
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			g.unsubscribe++
			subs := g.subscribers[userID]
			if index < len(subs) {
				subs[index] = func([]models.Task) {}
			}
		})
	}
}

func (g *fakeGateway) updateCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.updates)
}

func (g *fakeGateway) unsubscribeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unsubscribe
}
