package validation

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/task-sync/internal/models"
)

func TestNewTask_Sanitizes(t *testing.T) {
	in := models.NewTask{
		Title:       "  Buy\x00 milk\n ",
		Group:       " Personal ",
		ParentID:    " p1 ",
		Description: "line one\r\nline two\x07  ",
	}

	out, err := NewTask(in)

	require.NoError(t, err)
	assert.Equal(t, "Buy milk", out.Title)
	assert.Equal(t, "Personal", out.Group)
	assert.Equal(t, "p1", out.ParentID)
	assert.Equal(t, "line one\nline two", out.Description)
}

func TestNewTask_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		input  models.NewTask
		field  string
		reason string
	}{
		{"empty title", models.NewTask{Title: "   ", Group: "Work"}, "title", "title is required"},
		{"long title", models.NewTask{Title: strings.Repeat("a", 201), Group: "Work"}, "title", "title must be at most 200 characters"},
		{"empty group", models.NewTask{Title: "x", Group: ""}, "group", "group is required"},
		{"long group", models.NewTask{Title: "x", Group: strings.Repeat("g", 51)}, "group", "group must be at most 50 characters"},
		{"long description", models.NewTask{Title: "x", Group: "Work", Description: strings.Repeat("d", 2001)}, "description", "description must be at most 2000 characters"},
		{"bad priority", models.NewTask{Title: "x", Group: "Work", Priority: "urgent"}, "priority", "priority must be one of: low, medium, high"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTask(tt.input)

			var vErr *Error
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
			assert.Equal(t, tt.reason, vErr.Error())
			assert.True(t, IsValidationError(fmt.Errorf("wrapped: %w", err)))
		})
	}
}

func TestNewTask_CountsRunesNotBytes(t *testing.T) {
	_, err := NewTask(models.NewTask{Title: strings.Repeat("牛", 200), Group: "買い物"})

	assert.NoError(t, err)
}

func TestFields(t *testing.T) {
	title := "  New title "
	desc := "   "
	prio := models.TaskPriority("")

	out, err := Fields(models.TaskFields{Title: &title, Description: &desc, Priority: &prio})

	require.NoError(t, err)
	require.NotNil(t, out.Title)
	assert.Equal(t, "New title", *out.Title)
	assert.Nil(t, out.Description)
	assert.True(t, out.ClearDescription)
	assert.Nil(t, out.Priority)
	assert.True(t, out.ClearPriority)
}

func TestFields_Rejects(t *testing.T) {
	empty := ""
	status := models.TaskStatus("archived")
	prio := models.TaskPriority("urgent")
	order := -1

	_, err := Fields(models.TaskFields{Title: &empty})
	assert.EqualError(t, err, "title is required")

	_, err = Fields(models.TaskFields{Group: &empty})
	assert.EqualError(t, err, "group is required")

	_, err = Fields(models.TaskFields{Status: &status})
	assert.EqualError(t, err, "status must be one of: open, in_progress, done")

	_, err = Fields(models.TaskFields{Priority: &prio})
	assert.EqualError(t, err, "priority must be one of: low, medium, high")

	_, err = Fields(models.TaskFields{Order: &order})
	assert.EqualError(t, err, "order cannot be negative")

	now := time.Now()
	_, err = Fields(models.TaskFields{CompletedAt: &now})
	assert.EqualError(t, err, "completed_at follows status and cannot be set directly")

	_, err = Fields(models.TaskFields{ClearCompletedAt: true})
	assert.EqualError(t, err, "completed_at follows status and cannot be set directly")
}

func TestStatus(t *testing.T) {
	assert.NoError(t, Status(models.TaskStatusDone))
	assert.Error(t, Status(""))
}
