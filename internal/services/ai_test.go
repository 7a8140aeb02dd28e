package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/task-sync/internal/models"
)

// newChatServer answers every chat completion with content.
func newChatServer(t *testing.T, content string, prompts *[]string) *AIService {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if prompts != nil && len(req.Messages) > 0 {
			*prompts = append(*prompts, req.Messages[0].Content)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:     "chatcmpl-test",
			Object: "chat.completion",
			Model:  req.Model,
			Choices: []openai.ChatCompletionChoice{{
				Index:        0,
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
				FinishReason: openai.FinishReasonStop,
			}},
		})
	}))
	t.Cleanup(server.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = server.URL + "/v1"
	svc := NewAIServiceWithConfig(cfg)
	svc.now = func() time.Time { return time.Date(2025, 10, 27, 9, 0, 0, 0, time.UTC) }
	return svc
}

func TestAIService_GenerateTasksFromText(t *testing.T) {
	var prompts []string
	svc := newChatServer(t, `[{"title":"Submit report","description":"","group":"Work","priority":"high","due_date":"2025-10-28T23:59:59Z"}]`, &prompts)

	tasks, err := svc.GenerateTasksFromText(context.Background(), "report due tomorrow", []string{"Work", "Home"})

	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Submit report", tasks[0].Title)
	assert.Equal(t, "Work", tasks[0].Group)
	assert.Equal(t, models.TaskPriorityHigh, tasks[0].Priority)
	require.NotNil(t, tasks[0].DueDate)
	assert.Equal(t, 28, tasks[0].DueDate.Day())

	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Allowed groups: Work, Home")
	assert.Contains(t, prompts[0], "2025-10-27T09:00:00Z")
}

func TestAIService_AcceptsFencedJSON(t *testing.T) {
	svc := newChatServer(t, "```json\n[{\"title\":\"Call mom\",\"group\":\"Personal\"}]\n```", nil)

	tasks, err := svc.GenerateTasksFromText(context.Background(), "call mom", nil)

	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Call mom", tasks[0].Title)
	assert.Nil(t, tasks[0].DueDate)
}

func TestAIService_InvalidJSON(t *testing.T) {
	svc := newChatServer(t, "Sure! Here are your tasks.", nil)

	_, err := svc.GenerateTasksFromText(context.Background(), "anything", nil)

	assert.ErrorContains(t, err, "failed to parse AI response")
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, "[]", stripCodeFence("  []  "))
	assert.Equal(t, "[]", stripCodeFence("```json\n[]\n```"))
	assert.Equal(t, "[]", stripCodeFence("```\n[]\n```"))
}
