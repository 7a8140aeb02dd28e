package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yukikurage/task-sync/internal/models"
	"github.com/yukikurage/task-sync/internal/repository"
	"gorm.io/gorm"
)

// StoreGateway implements TaskGateway on top of a task repository and a
// change notifier. It holds no task state of its own.
type StoreGateway struct {
	repo     repository.TaskRepository
	notifier Notifier
	logger   *slog.Logger
}

var _ TaskGateway = (*StoreGateway)(nil)

// NewStoreGateway creates a gateway writing through repo and signalling
// changes through notifier.
func NewStoreGateway(repo repository.TaskRepository, notifier Notifier, logger *slog.Logger) *StoreGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreGateway{
		repo:     repo,
		notifier: notifier,
		logger:   logger.With("component", "gateway"),
	}
}

// FetchAll returns every task owned by userID sorted by Order.
func (g *StoreGateway) FetchAll(ctx context.Context, userID string) ([]models.Task, error) {
	records, err := g.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tasks: %w", err)
	}

	tasks := make([]models.Task, len(records))
	for i, r := range records {
		tasks[i] = recordToTask(r)
	}
	return tasks, nil
}

// Create persists task under a store-assigned id.
func (g *StoreGateway) Create(ctx context.Context, task models.Task) (string, error) {
	record := taskToRecord(task)
	record.ID = ""

	if err := g.repo.Create(ctx, &record); err != nil {
		return "", fmt.Errorf("failed to create task: %w", err)
	}

	g.notify(ctx, record.UserID)
	return record.ID, nil
}

// Update applies fields to the task atomically.
func (g *StoreGateway) Update(ctx context.Context, id string, fields models.TaskFields) error {
	owner, err := g.repo.UpdateColumns(ctx, id, updateColumns(fields))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update task: %w", err)
	}

	g.notify(ctx, owner)
	return nil
}

// Delete removes exactly one task; a missing task is not an error.
func (g *StoreGateway) Delete(ctx context.Context, id string) error {
	owner, found, err := g.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	if found {
		g.notify(ctx, owner)
	}
	return nil
}

// Subscribe starts a delivery goroutine for userID. Listening starts before
// the first fetch so no change between the two is missed.
func (g *StoreGateway) Subscribe(userID string, onSnapshot func([]models.Task)) Unsubscribe {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		signals, stop, err := g.notifier.Listen(ctx, userID)
		if err != nil {
			if ctx.Err() == nil {
				g.logger.Error("subscription failed, delivering empty snapshot", "user_id", userID, "error", err)
				onSnapshot([]models.Task{})
			}
			return
		}
		defer stop()

		g.deliver(ctx, userID, onSnapshot)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-signals:
				if !ok {
					if ctx.Err() == nil {
						g.logger.Error("subscription closed by transport, delivering empty snapshot", "user_id", userID)
						onSnapshot([]models.Task{})
					}
					return
				}
				g.deliver(ctx, userID, onSnapshot)
			}
		}
	}()

	return Unsubscribe(cancel)
}

func (g *StoreGateway) deliver(ctx context.Context, userID string, onSnapshot func([]models.Task)) {
	tasks, err := g.FetchAll(ctx, userID)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		g.logger.Error("snapshot fetch failed, delivering empty snapshot", "user_id", userID, "error", err)
		onSnapshot([]models.Task{})
		return
	}
	onSnapshot(tasks)
}

// notify never fails the write it follows; the data is already committed.
func (g *StoreGateway) notify(ctx context.Context, userID string) {
	if userID == "" {
		return
	}
	if err := g.notifier.Notify(ctx, userID); err != nil {
		g.logger.Warn("change notification failed", "user_id", userID, "error", err)
	}
}
