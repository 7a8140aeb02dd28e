package dto

import (
	"time"

	"github.com/yukikurage/task-sync/internal/models"
	"github.com/yukikurage/task-sync/internal/tasksync"
)

// UserDTO represents a user in API responses
type UserDTO struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
}

// TaskDTO represents a task in API responses
type TaskDTO struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Status      models.TaskStatus   `json:"status"`
	Priority    models.TaskPriority `json:"priority,omitempty"`
	Group       string              `json:"group"`
	ParentID    *string             `json:"parent_id"`
	Order       int                 `json:"order"`
	DueDate     *time.Time          `json:"due_date"`
	CompletedAt *time.Time          `json:"completed_at"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// TaskListResponse represents the current view of the user's tasks
type TaskListResponse struct {
	Tasks     []TaskDTO      `json:"tasks"`
	IsLoading bool           `json:"is_loading"`
	State     tasksync.State `json:"state"`
}

// Conversion functions

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:       user.ID,
		Username: user.Username,
	}
}

// ToTaskDTO converts a Task model to TaskDTO
func ToTaskDTO(task models.Task) TaskDTO {
	dto := TaskDTO{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		Priority:    task.Priority,
		Group:       task.Group,
		Order:       task.Order,
		DueDate:     task.DueDate,
		CompletedAt: task.CompletedAt,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}

	// Root tasks serialize parent_id as null
	if !task.IsRoot() {
		parentID := task.ParentID
		dto.ParentID = &parentID
	}

	return dto
}

// ToTaskDTOs converts a slice of tasks
func ToTaskDTOs(tasks []models.Task) []TaskDTO {
	items := make([]TaskDTO, len(tasks))
	for i, task := range tasks {
		items[i] = ToTaskDTO(task)
	}
	return items
}

// ToTaskListResponse wraps tasks with the engine's loading state
func ToTaskListResponse(tasks []models.Task, isLoading bool, state tasksync.State) TaskListResponse {
	return TaskListResponse{
		Tasks:     ToTaskDTOs(tasks),
		IsLoading: isLoading,
		State:     state,
	}
}

// ToViewResponse converts an engine view for streaming
func ToViewResponse(view tasksync.View) TaskListResponse {
	return ToTaskListResponse(view.Tasks, view.IsLoading, view.State)
}
