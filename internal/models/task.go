package models

import (
	"time"
)

type TaskStatus string

const (
	TaskStatusOpen       TaskStatus = "open"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusOpen, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// Valid reports whether p is one of the known priorities. The empty priority
// is valid and means "not set".
func (p TaskPriority) Valid() bool {
	switch p {
	case "", TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}

// Task is the domain representation of a task owned by a single user.
// An empty ParentID marks a root task; Order is only meaningful among roots.
type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority,omitempty"`
	Group       string       `json:"group"`
	ParentID    string       `json:"parent_id,omitempty"`
	Order       int          `json:"order"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	DueDate     *time.Time   `json:"due_date,omitempty"`
	UserID      string       `json:"user_id"`
}

// IsRoot reports whether the task has no parent.
func (t Task) IsRoot() bool {
	return t.ParentID == ""
}

// IsDone reports whether the task is completed.
func (t Task) IsDone() bool {
	return t.Status == TaskStatusDone
}

// Clone returns a copy of t that shares no pointers with it.
func (t Task) Clone() Task {
	c := t
	c.CompletedAt = cloneTime(t.CompletedAt)
	c.DueDate = cloneTime(t.DueDate)
	return c
}

// NewTask holds everything needed to create a task. Only Title and Group are
// required; ParentID makes the new task a subtask.
type NewTask struct {
	Title       string
	Group       string
	ParentID    string
	Description string
	Priority    TaskPriority
	DueDate     *time.Time
}

// TaskFields is a partial update. Nil pointers leave the field untouched; the
// Clear flags reset nullable fields and win over a value set in the same update.
type TaskFields struct {
	Title       *string
	Description *string
	Status      *TaskStatus
	Priority    *TaskPriority
	Group       *string
	Order       *int
	DueDate     *time.Time
	CompletedAt *time.Time
	UpdatedAt   *time.Time

	ClearDescription bool
	ClearPriority    bool
	ClearDueDate     bool
	ClearCompletedAt bool
}

// IsEmpty reports whether the update changes nothing.
func (f TaskFields) IsEmpty() bool {
	return f.Title == nil && f.Description == nil && f.Status == nil &&
		f.Priority == nil && f.Group == nil && f.Order == nil &&
		f.DueDate == nil && f.CompletedAt == nil && f.UpdatedAt == nil &&
		!f.ClearDescription && !f.ClearPriority && !f.ClearDueDate && !f.ClearCompletedAt
}

// Apply returns a copy of t with the given fields applied.
func (t Task) Apply(f TaskFields) Task {
	out := t.Clone()

	if f.Title != nil {
		out.Title = *f.Title
	}
	if f.ClearDescription {
		out.Description = ""
	} else if f.Description != nil {
		out.Description = *f.Description
	}
	if f.Status != nil {
		out.Status = *f.Status
	}
	if f.ClearPriority {
		out.Priority = ""
	} else if f.Priority != nil {
		out.Priority = *f.Priority
	}
	if f.Group != nil {
		out.Group = *f.Group
	}
	if f.Order != nil {
		out.Order = *f.Order
	}
	if f.ClearDueDate {
		out.DueDate = nil
	} else if f.DueDate != nil {
		out.DueDate = cloneTime(f.DueDate)
	}
	if f.ClearCompletedAt {
		out.CompletedAt = nil
	} else if f.CompletedAt != nil {
		out.CompletedAt = cloneTime(f.CompletedAt)
	}
	if f.UpdatedAt != nil {
		out.UpdatedAt = *f.UpdatedAt
	}

	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
