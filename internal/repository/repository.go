package repository

import (
	"context"

	"github.com/yukikurage/task-sync/internal/models"
)

// TaskRepository defines the interface for task record access
type TaskRepository interface {
	// ListByUser returns every task record owned by userID in display order
	ListByUser(ctx context.Context, userID string) ([]models.TaskRecord, error)

	// Create inserts a record, assigning a new ID when none is set
	Create(ctx context.Context, record *models.TaskRecord) error

	// UpdateColumns applies all columns to one record atomically and returns its owner
	UpdateColumns(ctx context.Context, id string, columns map[string]any) (string, error)

	// Delete removes exactly one record and returns its owner; found is false
	// when the record did not exist
	Delete(ctx context.Context, id string) (owner string, found bool, err error)
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(user *models.User) error

	// FindByID finds a user by ID
	FindByID(id uint64) (*models.User, error)

	// FindByUsername finds a user by username
	FindByUsername(username string) (*models.User, error)
}
