package gateway

import (
	"time"

	"github.com/yukikurage/task-sync/internal/models"
)

// taskToRecord converts a task into its stored form. Empty optional fields
// become NULL columns and timestamps are kept at millisecond precision.
func taskToRecord(t models.Task) models.TaskRecord {
	return models.TaskRecord{
		ID:          t.ID,
		UserID:      t.UserID,
		ParentID:    optionalString(t.ParentID),
		Title:       t.Title,
		Description: optionalString(t.Description),
		Status:      string(t.Status),
		Priority:    optionalString(string(t.Priority)),
		Group:       t.Group,
		SortOrder:   t.Order,
		DueDate:     storedTimePtr(t.DueDate),
		CompletedAt: storedTimePtr(t.CompletedAt),
		CreatedAt:   storedTime(t.CreatedAt),
		UpdatedAt:   storedTime(t.UpdatedAt),
	}
}

// recordToTask converts a stored record back into a task.
func recordToTask(r models.TaskRecord) models.Task {
	return models.Task{
		ID:          r.ID,
		Title:       r.Title,
		Description: deref(r.Description),
		Status:      models.TaskStatus(r.Status),
		Priority:    models.TaskPriority(deref(r.Priority)),
		Group:       r.Group,
		ParentID:    deref(r.ParentID),
		Order:       r.SortOrder,
		CreatedAt:   storedTime(r.CreatedAt),
		UpdatedAt:   storedTime(r.UpdatedAt),
		CompletedAt: storedTimePtr(r.CompletedAt),
		DueDate:     storedTimePtr(r.DueDate),
		UserID:      r.UserID,
	}
}

// updateColumns maps a partial update onto column assignments. Cleared
// fields are written as an explicit NULL; leaving them out would keep the
// stale value in the store.
func updateColumns(f models.TaskFields) map[string]any {
	columns := make(map[string]any)

	if f.Title != nil {
		columns["title"] = *f.Title
	}
	if f.ClearDescription || (f.Description != nil && *f.Description == "") {
		columns["description"] = nil
	} else if f.Description != nil {
		columns["description"] = *f.Description
	}
	if f.Status != nil {
		columns["status"] = string(*f.Status)
	}
	if f.ClearPriority || (f.Priority != nil && *f.Priority == "") {
		columns["priority"] = nil
	} else if f.Priority != nil {
		columns["priority"] = string(*f.Priority)
	}
	if f.Group != nil {
		columns["task_group"] = *f.Group
	}
	if f.Order != nil {
		columns["sort_order"] = *f.Order
	}
	if f.ClearDueDate {
		columns["due_date"] = nil
	} else if f.DueDate != nil {
		columns["due_date"] = storedTime(*f.DueDate)
	}
	if f.ClearCompletedAt {
		columns["completed_at"] = nil
	} else if f.CompletedAt != nil {
		columns["completed_at"] = storedTime(*f.CompletedAt)
	}
	if f.UpdatedAt != nil {
		columns["updated_at"] = storedTime(*f.UpdatedAt)
	}

	return columns
}

func storedTime(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(time.Millisecond)
}

func storedTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := storedTime(*t)
	return &v
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
