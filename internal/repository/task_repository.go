package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/yukikurage/task-sync/internal/database"
	"github.com/yukikurage/task-sync/internal/models"
	"gorm.io/gorm"
)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

// ListByUser returns every task record owned by userID in display order
func (r *GormTaskRepository) ListByUser(ctx context.Context, userID string) ([]models.TaskRecord, error) {
	var records []models.TaskRecord

	err := r.db.WithContext(ctx).
		Scopes(database.OwnedBy(userID), database.InDisplayOrder).
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	return records, nil
}

// Create inserts a record, assigning a new ID when none is set
func (r *GormTaskRepository) Create(ctx context.Context, record *models.TaskRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(record).Error
}

// UpdateColumns applies all columns to one record inside a transaction, so
// either every column is written or none is.
func (r *GormTaskRepository) UpdateColumns(ctx context.Context, id string, columns map[string]any) (string, error) {
	var owner string

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record models.TaskRecord
		if err := tx.Select("id", "user_id").Where("id = ?", id).First(&record).Error; err != nil {
			return err
		}
		owner = record.UserID

		if len(columns) == 0 {
			return nil
		}

		return tx.Model(&models.TaskRecord{}).Where("id = ?", id).Updates(columns).Error
	})
	if err != nil {
		return "", err
	}

	return owner, nil
}

// Delete removes exactly one record; children are left to the caller
func (r *GormTaskRepository) Delete(ctx context.Context, id string) (string, bool, error) {
	var owner string
	found := true

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record models.TaskRecord
		if err := tx.Select("id", "user_id").Where("id = ?", id).First(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				found = false
				return nil
			}
			return err
		}
		owner = record.UserID

		return tx.Where("id = ?", id).Delete(&models.TaskRecord{}).Error
	})
	if err != nil {
		return "", false, err
	}

	return owner, found, nil
}
