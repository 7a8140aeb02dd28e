// Package hierarchy derives views over a flat task collection: roots,
// subtasks, filters, deletion closures and root reordering. Every function is
// pure; malformed input (dangling parents, duplicate ids, cycles) yields empty
// or partial results, never a panic.
package hierarchy

import (
	"sort"
	"time"

	"github.com/yukikurage/task-sync/internal/models"
)

// RootTasks returns the tasks without a parent sorted by Order ascending.
// Ties keep their relative position in tasks.
func RootTasks(tasks []models.Task) []models.Task {
	roots := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.IsRoot() {
			roots = append(roots, t)
		}
	}

	sort.SliceStable(roots, func(i, j int) bool {
		return roots[i].Order < roots[j].Order
	})
	return roots
}

// Subtasks returns the direct children of parentID. Unfinished subtasks come
// before finished ones; each partition is ordered oldest first. A parent that
// is not in tasks has no subtasks; its children are Orphans.
func Subtasks(tasks []models.Task, parentID string) []models.Task {
	if _, ok := Find(tasks, parentID); parentID == "" || !ok {
		return []models.Task{}
	}

	children := make([]models.Task, 0)
	for _, t := range tasks {
		if t.ParentID == parentID {
			children = append(children, t)
		}
	}

	sort.SliceStable(children, func(i, j int) bool {
		a, b := children[i], children[j]
		if a.IsDone() != b.IsDone() {
			return !a.IsDone()
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return children
}

// ByStatus keeps the tasks with the given status, preserving order.
func ByStatus(tasks []models.Task, status models.TaskStatus) []models.Task {
	return filter(tasks, func(t models.Task) bool { return t.Status == status })
}

// ByGroup keeps the tasks in the given group, preserving order.
func ByGroup(tasks []models.Task, group string) []models.Task {
	return filter(tasks, func(t models.Task) bool { return t.Group == group })
}

// Orphans returns subtasks whose parent is not in the collection. They are
// left out of both the root and the subtask views.
func Orphans(tasks []models.Task) []models.Task {
	ids := indexIDs(tasks)
	return filter(tasks, func(t models.Task) bool {
		if t.IsRoot() {
			return false
		}
		_, ok := ids[t.ParentID]
		return !ok
	})
}

// Find returns the task with the given id.
func Find(tasks []models.Task, id string) (models.Task, bool) {
	for _, t := range tasks {
		if t.ID == id {
			return t, true
		}
	}
	return models.Task{}, false
}

// WithStatus returns a copy of task moved to status at now. CompletedAt is set
// only on the transition into done and cleared on any transition out of it, so
// marking a finished task done again keeps its original completion time.
func WithStatus(task models.Task, status models.TaskStatus, now time.Time) models.Task {
	out := task.Clone()
	wasDone := task.IsDone()

	out.Status = status
	out.UpdatedAt = now

	switch {
	case status == models.TaskStatusDone && !wasDone:
		completed := now
		out.CompletedAt = &completed
	case status == models.TaskStatusDone && out.CompletedAt == nil:
		completed := now
		out.CompletedAt = &completed
	case status != models.TaskStatusDone:
		out.CompletedAt = nil
	}

	return out
}

// StatusFields expresses the transition from task to status at now as a
// partial update.
func StatusFields(task models.Task, status models.TaskStatus, now time.Time) models.TaskFields {
	next := WithStatus(task, status, now)

	fields := models.TaskFields{
		Status:    &next.Status,
		UpdatedAt: &next.UpdatedAt,
	}
	if next.CompletedAt == nil {
		fields.ClearCompletedAt = true
	} else if task.CompletedAt == nil || !task.CompletedAt.Equal(*next.CompletedAt) {
		fields.CompletedAt = next.CompletedAt
	}
	return fields
}

// DeletionClosure returns id followed by every task whose parent chain leads
// to it, breadth first. It returns nil when id is not in the collection.
func DeletionClosure(tasks []models.Task, id string) []string {
	if _, ok := Find(tasks, id); !ok {
		return nil
	}

	children := make(map[string][]string)
	for _, t := range tasks {
		if !t.IsRoot() {
			children[t.ParentID] = append(children[t.ParentID], t.ID)
		}
	}

	closure := []string{id}
	seen := map[string]struct{}{id: {}}
	for i := 0; i < len(closure); i++ {
		for _, child := range children[closure[i]] {
			if _, dup := seen[child]; dup {
				continue
			}
			seen[child] = struct{}{}
			closure = append(closure, child)
		}
	}
	return closure
}

// NextRootOrder returns the Order for a new root task: one past the highest
// existing root Order, or 0 when there are no roots.
func NextRootOrder(tasks []models.Task) int {
	highest := -1
	for _, t := range tasks {
		if t.IsRoot() && t.Order > highest {
			highest = t.Order
		}
	}
	return highest + 1
}

// MoveRoot moves the root task activeID to the position currently held by
// overID and renumbers the root sequence by index. It returns the new Order
// of every root whose Order changed. ok is false when either id is missing or
// not a root task, in which case nothing should change.
func MoveRoot(tasks []models.Task, activeID, overID string) (map[string]int, bool) {
	roots := RootTasks(tasks)

	activeIndex, overIndex := -1, -1
	for i, t := range roots {
		if t.ID == activeID {
			activeIndex = i
		}
		if t.ID == overID {
			overIndex = i
		}
	}
	if activeIndex < 0 || overIndex < 0 {
		return nil, false
	}

	moved := roots[activeIndex]
	seq := make([]models.Task, 0, len(roots))
	seq = append(seq, roots[:activeIndex]...)
	seq = append(seq, roots[activeIndex+1:]...)
	seq = append(seq[:overIndex], append([]models.Task{moved}, seq[overIndex:]...)...)

	changes := make(map[string]int)
	for i, t := range seq {
		if t.Order != i {
			changes[t.ID] = i
		}
	}
	return changes, true
}

// ApplyOrders returns a copy of tasks with the given Order overrides applied.
func ApplyOrders(tasks []models.Task, orders map[string]int) []models.Task {
	out := make([]models.Task, len(tasks))
	for i, t := range tasks {
		out[i] = t
		if order, ok := orders[t.ID]; ok {
			out[i].Order = order
		}
	}
	return out
}

// Without returns a copy of tasks minus the given ids.
func Without(tasks []models.Task, ids []string) []models.Task {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	return filter(tasks, func(t models.Task) bool {
		_, ok := drop[t.ID]
		return !ok
	})
}

func filter(tasks []models.Task, keep func(models.Task) bool) []models.Task {
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func indexIDs(tasks []models.Task) map[string]struct{} {
	ids := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		ids[t.ID] = struct{}{}
	}
	return ids
}
