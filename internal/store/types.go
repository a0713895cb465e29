package store

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("record not found")

// Task is a unit of work an agent executes.
type Task struct {
	ID            string
	Title         string
	Category      string
	Priority      string
	Status        string
	AssignedAgent *string
	LastError     *string
	CreatedAt     time.Time
	UpdatedAt     *time.Time
}

// Agent is a registered worker identity.
type Agent struct {
	ID             string
	Status         string
	LastHeartbeat  *time.Time
	TasksCompleted int
	TasksFailed    int
}

// Session is one spawn attempt of the agent executable.
type Session struct {
	ID          string
	TaskID      string
	AgentID     string
	Model       string
	Status      string
	StartedAt   time.Time
	CompletedAt *time.Time
	LastError   *string
}

// ExecutionRecord is the persisted outcome of one spawn attempt, feeding the
// build-health gate and operator reporting.
type ExecutionRecord struct {
	ID           string
	SessionID    string
	TaskID       string
	AgentID      string
	Model        string
	Category     string
	Status       string
	ExitCode     *int
	InputTokens  int
	OutputTokens int
	Duration     time.Duration
	LastError    *string
	CreatedAt    time.Time
}
