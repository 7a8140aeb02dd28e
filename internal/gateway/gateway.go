// Package gateway is the stateless bridge between the task entity model and
// the persistent store. It translates tasks to records and back, and turns
// store change notifications into full per-user snapshots.
package gateway

import (
	"context"
	"errors"

	"github.com/yukikurage/task-sync/internal/models"
)

// ErrNotFound is returned by Update when the task does not exist.
var ErrNotFound = errors.New("task not found in store")

// Unsubscribe tears down a subscription. It is safe to call more than once.
type Unsubscribe func()

// TaskGateway is the CRUD and subscribe surface of the remote task store.
type TaskGateway interface {
	// FetchAll returns every task owned by userID sorted by Order.
	FetchAll(ctx context.Context, userID string) ([]models.Task, error)

	// Create persists task and returns the identifier assigned by the store.
	// Any ID already set on task is ignored.
	Create(ctx context.Context, task models.Task) (string, error)

	// Update applies fields to one task; either all of them persist or none.
	Update(ctx context.Context, id string, fields models.TaskFields) error

	// Delete removes exactly one task. Children are not touched and deleting
	// a missing task succeeds.
	Delete(ctx context.Context, id string) error

	// Subscribe calls onSnapshot with the user's full collection once right
	// away and again after every change. Transport failures are reported as
	// an empty snapshot. A delivery already in progress may still land after
	// Unsubscribe returns.
	Subscribe(userID string, onSnapshot func([]models.Task)) Unsubscribe
}
