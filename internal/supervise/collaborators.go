package supervise

import (
	"context"

	"github.com/bytemill/overseer/internal/store"
)

//go:generate mockgen -destination=mocks/mock_collaborators.go -package=mocks github.com/bytemill/overseer/internal/supervise TaskStore,AgentStore,SessionStore,BudgetTracker,BuildHealthGate,NotificationSink

// TaskStore is the slice of task persistence the supervisor consumes.
type TaskStore interface {
	GetTask(ctx context.Context, id string) (*store.Task, error)
	UpdateTaskStatus(ctx context.Context, id, status string, assignedAgent *string) error
	FailTask(ctx context.Context, id, reason string) error
}

// AgentStore tracks agent status, liveness, and counters.
type AgentStore interface {
	UpdateAgentStatus(ctx context.Context, id, status string) error
	UpdateHeartbeat(ctx context.Context, id string) error
	IncrementTasksCompleted(ctx context.Context, id string) error
	IncrementTasksFailed(ctx context.Context, id string) error
}

// SessionStore persists session records and the per-attempt execution log.
type SessionStore interface {
	CreateSession(ctx context.Context, sess store.Session) error
	UpdateSessionStatus(ctx context.Context, id, status string, lastError *string) error
	AppendExecution(ctx context.Context, rec store.ExecutionRecord) error
	FindByStatus(ctx context.Context, status string) ([]*store.Session, error)
}

// BudgetTracker enforces the daily token budget.
type BudgetTracker interface {
	GetDailyUsage(ctx context.Context) (int, error)
	RecordUsage(ctx context.Context, tokens int) error
}

// BuildHealthGate decides whether spawning is allowed for a task's
// category and priority.
type BuildHealthGate interface {
	ShouldAllowSpawn(ctx context.Context, category, priority string) (bool, string, error)
}

// NotificationSink receives lifecycle notifications. Implementations must
// not block.
type NotificationSink interface {
	AgentSpawned(agentID, taskID, model string)
	TaskCompleted(taskID, agentID string, filesModified []string)
	TaskFailed(taskID, agentID, reason string)
}
