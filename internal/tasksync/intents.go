package tasksync

import (
	"context"
	"errors"
	"fmt"

	"github.com/yukikurage/task-sync/internal/hierarchy"
	"github.com/yukikurage/task-sync/internal/models"
	"github.com/yukikurage/task-sync/internal/validation"
	"golang.org/x/sync/errgroup"
)

// errNothingToDo ends an intent early without touching state or the store.
var errNothingToDo = errors.New("nothing to do")

// syncFailure marks err as a store failure while keeping it inspectable.
func syncFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrSyncFailed, op, err)
}

// session identifies the user and generation an intent was applied under.
type session struct {
	userID     string
	generation uint64
}

func capture(st *state) (session, error) {
	if st.userID == "" {
		return session{}, ErrNotAuthenticated
	}
	return session{userID: st.userID, generation: st.generation}, nil
}

// AddTask validates in, creates it in the store and returns the stored task.
// Nothing changes locally unless the store accepts it.
func (e *Engine) AddTask(ctx context.Context, in models.NewTask) (models.Task, error) {
	in, err := validation.NewTask(in)
	if err != nil {
		return models.Task{}, err
	}

	var (
		sess session
		task models.Task
	)
	err = e.do(ctx, func(st *state) error {
		var err error
		if sess, err = capture(st); err != nil {
			return err
		}
		if in.ParentID != "" && st.index(in.ParentID) < 0 {
			return ErrTaskNotFound
		}

		now := e.now()
		task = models.Task{
			Title:       in.Title,
			Description: in.Description,
			Status:      models.TaskStatusOpen,
			Priority:    in.Priority,
			Group:       in.Group,
			ParentID:    in.ParentID,
			CreatedAt:   now,
			UpdatedAt:   now,
			DueDate:     in.DueDate,
			UserID:      st.userID,
		}
		if task.IsRoot() {
			task.Order = hierarchy.NextRootOrder(st.tasks)
		}
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}

	id, err := e.gateway.Create(context.WithoutCancel(ctx), task)
	if err != nil {
		return models.Task{}, syncFailure("create task", err)
	}
	task.ID = id

	err = e.do(context.WithoutCancel(ctx), func(st *state) error {
		if st.generation == sess.generation && st.index(id) < 0 {
			st.tasks = append(st.tasks, task.Clone())
		}
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}

	e.logger.Debug("task created", "user_id", sess.userID, "task_id", id)
	return task, nil
}

// UpdateTask applies fields locally, stamps UpdatedAt and writes them to the
// store. A status change carries the matching CompletedAt transition. A
// rejected write reloads the whole collection before returning.
func (e *Engine) UpdateTask(ctx context.Context, id string, fields models.TaskFields) error {
	fields, err := validation.Fields(fields)
	if err != nil {
		return err
	}

	return e.update(ctx, id, func(current models.Task) models.TaskFields {
		if fields.IsEmpty() {
			return fields
		}
		stamped := fields
		now := e.now()
		if fields.Status != nil {
			transition := hierarchy.StatusFields(current, *fields.Status, now)
			stamped.CompletedAt = transition.CompletedAt
			stamped.ClearCompletedAt = transition.ClearCompletedAt
		}
		stamped.UpdatedAt = &now
		return stamped
	})
}

// ChangeStatus moves a task to status. CompletedAt is stamped only when the
// task enters done and cleared when it leaves.
func (e *Engine) ChangeStatus(ctx context.Context, id string, status models.TaskStatus) error {
	if err := validation.Status(status); err != nil {
		return err
	}

	return e.update(ctx, id, func(current models.Task) models.TaskFields {
		if current.Status == status && (!current.IsDone() || current.CompletedAt != nil) {
			return models.TaskFields{}
		}
		return hierarchy.StatusFields(current, status, e.now())
	})
}

// update resolves the fields against the current task on the actor, applies
// them optimistically and persists them.
func (e *Engine) update(ctx context.Context, id string, resolve func(models.Task) models.TaskFields) error {
	var (
		sess   session
		fields models.TaskFields
	)
	err := e.do(ctx, func(st *state) error {
		var err error
		if sess, err = capture(st); err != nil {
			return err
		}
		i := st.index(id)
		if i < 0 {
			return ErrTaskNotFound
		}

		fields = resolve(st.tasks[i])
		if fields.IsEmpty() {
			return errNothingToDo
		}
		st.tasks[i] = st.tasks[i].Apply(fields)
		return nil
	})
	if errors.Is(err, errNothingToDo) {
		return nil
	}
	if err != nil {
		return err
	}

	rctx := context.WithoutCancel(ctx)
	if err := e.gateway.Update(rctx, id, fields); err != nil {
		return e.rollback(rctx, sess, syncFailure("update task", err))
	}
	return nil
}

// DeleteTask removes a task together with every descendant. Each removal is
// sent to the store in parallel.
func (e *Engine) DeleteTask(ctx context.Context, id string) error {
	var (
		sess    session
		closure []string
	)
	err := e.do(ctx, func(st *state) error {
		var err error
		if sess, err = capture(st); err != nil {
			return err
		}
		closure = hierarchy.DeletionClosure(st.tasks, id)
		if closure == nil {
			return ErrTaskNotFound
		}
		st.tasks = hierarchy.Without(st.tasks, closure)
		return nil
	})
	if err != nil {
		return err
	}

	rctx := context.WithoutCancel(ctx)
	var g errgroup.Group
	for _, taskID := range closure {
		taskID := taskID
		g.Go(func() error {
			return e.gateway.Delete(rctx, taskID)
		})
	}
	if err := g.Wait(); err != nil {
		return e.rollback(rctx, sess, syncFailure("delete task", err))
	}

	e.logger.Debug("tasks deleted", "user_id", sess.userID, "count", len(closure))
	return nil
}

// ReorderTasks moves root task activeID to the position of root task overID
// and persists the Order of every root that moved. It does nothing when either
// task is a subtask.
func (e *Engine) ReorderTasks(ctx context.Context, activeID, overID string) error {
	var (
		sess    session
		changes map[string]int
	)
	err := e.do(ctx, func(st *state) error {
		var err error
		if sess, err = capture(st); err != nil {
			return err
		}
		if st.index(activeID) < 0 || st.index(overID) < 0 {
			return ErrTaskNotFound
		}

		var ok bool
		changes, ok = hierarchy.MoveRoot(st.tasks, activeID, overID)
		if !ok || len(changes) == 0 {
			return errNothingToDo
		}
		st.tasks = hierarchy.ApplyOrders(st.tasks, changes)
		return nil
	})
	if errors.Is(err, errNothingToDo) {
		return nil
	}
	if err != nil {
		return err
	}

	rctx := context.WithoutCancel(ctx)
	var g errgroup.Group
	for taskID, order := range changes {
		taskID, order := taskID, order
		g.Go(func() error {
			return e.gateway.Update(rctx, taskID, models.TaskFields{Order: &order})
		})
	}
	if err := g.Wait(); err != nil {
		return e.rollback(rctx, sess, syncFailure("reorder tasks", err))
	}
	return nil
}

// rollback replaces local state with the store's collection and returns
// cause. A reload that fails or arrives after a user switch is dropped.
func (e *Engine) rollback(ctx context.Context, sess session, cause error) error {
	e.logger.Warn("store rejected change, reloading", "user_id", sess.userID, "error", cause)

	tasks, err := e.gateway.FetchAll(ctx, sess.userID)
	if err != nil {
		e.logger.Error("reload after failed change", "user_id", sess.userID, "error", err)
		return cause
	}

	_ = e.do(ctx, func(st *state) error {
		if st.generation == sess.generation {
			st.tasks = tasks
		}
		return nil
	})
	return cause
}
