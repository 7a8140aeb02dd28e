package constants

import "time"

// Session and context keys
const (
	ContextKeyUserID  = "user_id"
	ContextKeyTask    = "task"
	SessionCookieName = "task_session"
	SessionMaxAge     = 86400 * 7
)

// Authentication
const (
	MinPasswordLength = 8
	MinUsernameLength = 3
	MaxUsernameLength = 50
)

// Task field limits
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
	MaxGroupLength       = 50
)

// Sync
const (
	InitialSyncTimeout     = 5 * time.Second
	EngineIdleTimeout      = 30 * time.Minute
	EngineEvictionInterval = time.Minute
)

// AI task generation
const (
	MaxAIGeneratedTasks = 20
	AIRequestTimeout    = 30 * time.Second
)

// DefaultGroups is the conventional set of task groups offered to new users.
var DefaultGroups = []string{"Personal", "Work", "Shopping", "Health", "Other"}

// DefaultGroup is used when a generated task has no group.
const DefaultGroup = "Personal"
