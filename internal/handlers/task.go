package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/task-sync/internal/dto"
	apierrors "github.com/yukikurage/task-sync/internal/errors"
	"github.com/yukikurage/task-sync/internal/middleware"
	"github.com/yukikurage/task-sync/internal/models"
	"github.com/yukikurage/task-sync/internal/services"
	"github.com/yukikurage/task-sync/internal/tasksync"
	"github.com/yukikurage/task-sync/internal/validation"
)

type TaskHandler struct {
	taskService *services.TaskService
}

func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
	}
}

// ListTasks returns the current user's tasks
// Can filter by group, status, parent_id and view (roots, orphans)
func (h *TaskHandler) ListTasks(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	input := services.ListTasksInput{
		UserID:   userID,
		Group:    c.Query("group"),
		ParentID: c.Query("parent_id"),
		View:     c.Query("view"),
	}
	if status := c.Query("status"); status != "" {
		s := models.TaskStatus(status)
		input.Status = &s
	}

	list, err := h.taskService.ListTasks(c.Request.Context(), input)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskListResponse(list.Tasks, list.IsLoading, list.State))
}

// GetTask returns a specific task by ID
// Task is already loaded by RequireTaskAccess middleware
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(task))
}

// CreateTask creates a new task, or a subtask when parent_id is set
func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	type CreateTaskRequest struct {
		Title       string              `json:"title" binding:"required"`
		Group       string              `json:"group" binding:"required"`
		ParentID    string              `json:"parent_id"`
		Description string              `json:"description"`
		Priority    models.TaskPriority `json:"priority"`
		DueDate     *time.Time          `json:"due_date"`
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), userID, models.NewTask{
		Title:       req.Title,
		Group:       req.Group,
		ParentID:    req.ParentID,
		Description: req.Description,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
	})
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTaskDTO(task))
}

// UpdateTask updates the fields present in the body; null clears
// description, priority and due_date
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	// Parse raw JSON to detect which fields were sent
	var rawReq map[string]any
	if err := c.ShouldBindJSON(&rawReq); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	fields, err := parseTaskFields(rawReq)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	updated, err := h.taskService.UpdateTask(c.Request.Context(), userID, task.ID, fields)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(updated))
}

// ChangeStatus moves a task to another status
func (h *TaskHandler) ChangeStatus(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	type ChangeStatusRequest struct {
		Status models.TaskStatus `json:"status" binding:"required"`
	}

	var req ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	updated, err := h.taskService.ChangeStatus(c.Request.Context(), userID, task.ID, req.Status)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(updated))
}

// DeleteTask deletes a task together with its subtasks
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	if err := h.taskService.DeleteTask(c.Request.Context(), userID, task.ID); err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Task deleted successfully",
	})
}

// ReorderTasks moves a root task to the position of another root task
func (h *TaskHandler) ReorderTasks(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	type ReorderRequest struct {
		ActiveID string `json:"active_id" binding:"required"`
		OverID   string `json:"over_id" binding:"required"`
	}

	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	roots, err := h.taskService.ReorderTasks(c.Request.Context(), userID, req.ActiveID, req.OverID)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": dto.ToTaskDTOs(roots),
	})
}

// StreamTasks pushes the user's task view as server-sent events until the
// client disconnects
func (h *TaskHandler) StreamTasks(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	ctx := c.Request.Context()
	views, err := h.taskService.Watch(ctx, userID)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case view, ok := <-views:
			if !ok {
				return false
			}
			c.SSEvent("tasks", dto.ToViewResponse(view))
			return true
		case <-ctx.Done():
			return false
		}
	})
}

// GenerateTasks generates task suggestions from text using AI
func (h *TaskHandler) GenerateTasks(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	type GenerateTasksRequest struct {
		Text string `json:"text" binding:"required"`
	}

	var req GenerateTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	generatedTasks, err := h.taskService.GenerateTasks(c.Request.Context(), userID, req.Text)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": generatedTasks,
	})
}

// parseTaskFields turns a PATCH body into a partial update.
func parseTaskFields(raw map[string]any) (models.TaskFields, error) {
	var fields models.TaskFields

	for key, value := range raw {
		switch key {
		case "title", "group":
			s, ok := value.(string)
			if !ok {
				return fields, &validation.Error{Field: key, Reason: key + " must be a string"}
			}
			if key == "title" {
				fields.Title = &s
			} else {
				fields.Group = &s
			}
		case "description":
			if value == nil {
				fields.ClearDescription = true
				continue
			}
			s, ok := value.(string)
			if !ok {
				return fields, &validation.Error{Field: key, Reason: "description must be a string or null"}
			}
			fields.Description = &s
		case "priority":
			if value == nil {
				fields.ClearPriority = true
				continue
			}
			s, ok := value.(string)
			if !ok {
				return fields, &validation.Error{Field: key, Reason: "priority must be a string or null"}
			}
			p := models.TaskPriority(s)
			fields.Priority = &p
		case "due_date":
			if value == nil {
				fields.ClearDueDate = true
				continue
			}
			s, ok := value.(string)
			if !ok {
				return fields, &validation.Error{Field: key, Reason: "due_date must be an RFC 3339 timestamp or null"}
			}
			due, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return fields, &validation.Error{Field: key, Reason: "due_date must be an RFC 3339 timestamp or null"}
			}
			fields.DueDate = &due
		}
	}

	return fields, nil
}

func respondTaskError(c *gin.Context, err error) {
	var vErr *validation.Error
	switch {
	case errors.As(err, &vErr):
		apierrors.InvalidField(c, vErr.Field, vErr.Reason)
	case errors.Is(err, services.ErrTaskNotFound):
		apierrors.NotFound(c, "Task not found")
	case errors.Is(err, services.ErrInvalidView):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, tasksync.ErrNotAuthenticated):
		apierrors.Unauthorized(c, "Not authenticated")
	case errors.Is(err, services.ErrSyncNotReady):
		apierrors.ServiceUnavailable(c, "Tasks are still loading")
	case errors.Is(err, tasksync.ErrEngineClosed),
		errors.Is(err, services.ErrSyncServiceClosed):
		apierrors.ServiceUnavailable(c, "")
	case errors.Is(err, tasksync.ErrSyncFailed):
		slog.Warn("task change rejected by store", "error", err)
		apierrors.SyncFailed(c, "")
	case errors.Is(err, services.ErrAIServiceNotConfigured):
		apierrors.ServiceUnavailable(c, "AI service is not configured. Please set OPENAI_API_KEY environment variable.")
	case errors.Is(err, services.ErrAINoTasksGenerated),
		errors.Is(err, services.ErrAINoValidTasks):
		apierrors.BadRequest(c, err.Error())
	default:
		slog.Error("task request failed", "error", err)
		apierrors.InternalError(c, "")
	}
}
