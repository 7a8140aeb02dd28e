package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/yukikurage/task-sync/internal/constants"
	"github.com/yukikurage/task-sync/internal/hierarchy"
	"github.com/yukikurage/task-sync/internal/models"
	"github.com/yukikurage/task-sync/internal/tasksync"
	"github.com/yukikurage/task-sync/internal/validation"
)

var (
	ErrTaskNotFound           = tasksync.ErrTaskNotFound
	ErrInvalidView            = errors.New("view must be one of: roots, orphans")
	ErrSyncNotReady           = errors.New("initial sync has not completed")
	ErrAIServiceNotConfigured = errors.New("AI service is not configured")
	ErrAINoTasksGenerated     = errors.New("AI did not generate any tasks")
	ErrAINoValidTasks         = errors.New("no valid tasks could be created from AI output")
)

// List views
const (
	ViewAll     = ""
	ViewRoots   = "roots"
	ViewOrphans = "orphans"
)

// TaskService exposes the signed-in user's engine to the HTTP layer.
type TaskService struct {
	sync        *SyncService
	generator   TaskGenerator
	syncTimeout time.Duration
}

// NewTaskService creates a new TaskService. generator may be nil.
func NewTaskService(syncService *SyncService, generator TaskGenerator) *TaskService {
	return &TaskService{
		sync:        syncService,
		generator:   generator,
		syncTimeout: constants.InitialSyncTimeout,
	}
}

// ListTasksInput represents filters for listing tasks
type ListTasksInput struct {
	UserID   uint64
	Group    string
	Status   *models.TaskStatus
	ParentID string
	View     string
}

// TaskList is a filtered view of the user's collection.
type TaskList struct {
	Tasks     []models.Task
	IsLoading bool
	State     tasksync.State
}

// live returns the user's engine once its first snapshot is in. When that
// takes longer than syncTimeout the engine is returned with ErrSyncNotReady.
func (s *TaskService) live(ctx context.Context, userID uint64) (*tasksync.Engine, tasksync.View, error) {
	engine, err := s.sync.EngineFor(ctx, userID)
	if err != nil {
		return nil, tasksync.View{}, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.syncTimeout)
	defer cancel()

	view, err := engine.AwaitLive(waitCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return engine, engine.View(), ErrSyncNotReady
		}
		return nil, tasksync.View{}, err
	}
	return engine, view, nil
}

// ListTasks returns the user's tasks filtered by input. Roots come back in
// display order and subtasks with unfinished ones first.
func (s *TaskService) ListTasks(ctx context.Context, input ListTasksInput) (TaskList, error) {
	if input.View != ViewAll && input.View != ViewRoots && input.View != ViewOrphans {
		return TaskList{}, ErrInvalidView
	}
	if input.Status != nil {
		if err := validation.Status(*input.Status); err != nil {
			return TaskList{}, err
		}
	}

	_, view, err := s.live(ctx, input.UserID)
	if err != nil && !errors.Is(err, ErrSyncNotReady) {
		return TaskList{}, err
	}

	tasks := view.Tasks
	switch {
	case input.ParentID != "":
		tasks = hierarchy.Subtasks(tasks, input.ParentID)
	case input.View == ViewRoots:
		tasks = hierarchy.RootTasks(tasks)
	case input.View == ViewOrphans:
		tasks = hierarchy.Orphans(tasks)
	}
	if input.Group != "" {
		tasks = hierarchy.ByGroup(tasks, input.Group)
	}
	if input.Status != nil {
		tasks = hierarchy.ByStatus(tasks, *input.Status)
	}
	if tasks == nil {
		tasks = []models.Task{}
	}

	return TaskList{
		Tasks:     tasks,
		IsLoading: view.IsLoading,
		State:     view.State,
	}, nil
}

// GetTask returns one task of the user.
func (s *TaskService) GetTask(ctx context.Context, userID uint64, taskID string) (models.Task, error) {
	_, view, err := s.live(ctx, userID)
	if err != nil {
		return models.Task{}, err
	}

	task, ok := hierarchy.Find(view.Tasks, taskID)
	if !ok {
		return models.Task{}, ErrTaskNotFound
	}
	return task, nil
}

// CreateTask creates a root task, or a subtask when input.ParentID is set.
func (s *TaskService) CreateTask(ctx context.Context, userID uint64, input models.NewTask) (models.Task, error) {
	engine, _, err := s.live(ctx, userID)
	if err != nil {
		return models.Task{}, err
	}
	return engine.AddTask(ctx, input)
}

// UpdateTask applies a partial update and returns the task as it now stands.
func (s *TaskService) UpdateTask(ctx context.Context, userID uint64, taskID string, fields models.TaskFields) (models.Task, error) {
	engine, _, err := s.live(ctx, userID)
	if err != nil {
		return models.Task{}, err
	}
	if err := engine.UpdateTask(ctx, taskID, fields); err != nil {
		return models.Task{}, err
	}
	return current(engine, taskID)
}

// ChangeStatus moves a task to status and returns it.
func (s *TaskService) ChangeStatus(ctx context.Context, userID uint64, taskID string, status models.TaskStatus) (models.Task, error) {
	engine, _, err := s.live(ctx, userID)
	if err != nil {
		return models.Task{}, err
	}
	if err := engine.ChangeStatus(ctx, taskID, status); err != nil {
		return models.Task{}, err
	}
	return current(engine, taskID)
}

// DeleteTask deletes a task and all of its subtasks.
func (s *TaskService) DeleteTask(ctx context.Context, userID uint64, taskID string) error {
	engine, _, err := s.live(ctx, userID)
	if err != nil {
		return err
	}
	return engine.DeleteTask(ctx, taskID)
}

// ReorderTasks moves activeID to overID's position and returns the root
// sequence afterwards.
func (s *TaskService) ReorderTasks(ctx context.Context, userID uint64, activeID, overID string) ([]models.Task, error) {
	engine, _, err := s.live(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := engine.ReorderTasks(ctx, activeID, overID); err != nil {
		return nil, err
	}
	return hierarchy.RootTasks(engine.Tasks()), nil
}

// Watch streams the user's engine views until ctx ends.
func (s *TaskService) Watch(ctx context.Context, userID uint64) (<-chan tasksync.View, error) {
	return s.sync.Watch(ctx, userID)
}

// GenerateTasks asks the generator for task suggestions. Nothing is saved;
// suggestions are cleaned up so each one is a valid create request.
func (s *TaskService) GenerateTasks(ctx context.Context, userID uint64, text string) ([]GeneratedTask, error) {
	if s.generator == nil {
		return nil, ErrAIServiceNotConfigured
	}

	groups := constants.DefaultGroups
	if _, view, err := s.live(ctx, userID); err == nil {
		groups = knownGroups(view.Tasks)
	}

	aiTasks, err := s.generator.GenerateTasksFromText(ctx, text, groups)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tasks: %w", err)
	}

	if len(aiTasks) == 0 {
		return nil, ErrAINoTasksGenerated
	}
	if len(aiTasks) > constants.MaxAIGeneratedTasks {
		return nil, fmt.Errorf("AI generated too many tasks (max %d)", constants.MaxAIGeneratedTasks)
	}

	validTasks := make([]GeneratedTask, 0, len(aiTasks))
	cutoff := time.Now().Add(-24 * time.Hour)
	for _, aiTask := range aiTasks {
		if !slices.Contains(groups, aiTask.Group) {
			aiTask.Group = constants.DefaultGroup
		}
		if !aiTask.Priority.Valid() {
			aiTask.Priority = ""
		}
		if aiTask.DueDate != nil && aiTask.DueDate.Before(cutoff) {
			aiTask.DueDate = nil
		}

		clean, err := validation.NewTask(models.NewTask{
			Title:       aiTask.Title,
			Group:       aiTask.Group,
			Description: aiTask.Description,
			Priority:    aiTask.Priority,
		})
		if err != nil {
			continue
		}
		aiTask.Title = clean.Title
		aiTask.Description = clean.Description

		validTasks = append(validTasks, aiTask)
	}

	if len(validTasks) == 0 {
		return nil, ErrAINoValidTasks
	}

	return validTasks, nil
}

func current(engine *tasksync.Engine, taskID string) (models.Task, error) {
	task, ok := hierarchy.Find(engine.Tasks(), taskID)
	if !ok {
		return models.Task{}, ErrTaskNotFound
	}
	return task, nil
}

// knownGroups returns the default groups followed by any other group in use.
func knownGroups(tasks []models.Task) []string {
	groups := slices.Clone(constants.DefaultGroups)
	for _, t := range tasks {
		if t.Group != "" && !slices.Contains(groups, t.Group) {
			groups = append(groups, t.Group)
		}
	}
	return groups
}
