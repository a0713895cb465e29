package supervise

import "time"

// Session statuses. Every spawn reaches exactly one terminal status.
const (
	SessionRunning    = "running"
	SessionCompleted  = "completed"
	SessionFailed     = "failed"
	SessionTimeout    = "timeout"
	SessionTerminated = "terminated"
)

// Execution statuses recorded per attempt. Rate-limited attempts are not
// terminal for the task while fallback models remain.
const (
	execCompleted   = "completed"
	execFailed      = "failed"
	execTimeout     = "timeout"
	execTerminated  = "terminated"
	execRateLimited = "rate_limited"
)

// SpawnOptions parameterize one agent spawn request.
type SpawnOptions struct {
	TaskID  string
	AgentID string
	// Model optionally overrides the start of the configured fallback chain.
	Model string
	// Timeout overrides the configured per-session timeout when positive.
	Timeout time.Duration
	// ExpectedOutputTokens tunes the admission estimate; defaults to 4000.
	ExpectedOutputTokens int
	// PromptContext is appended to the prompt after the task content. Callers
	// use it to pass work-specific context the task record does not carry.
	PromptContext string
}

// SpawnResult is the outcome of a spawn request after the fallback chain has
// been exhausted or a terminal attempt concluded.
type SpawnResult struct {
	Success       bool
	SessionID     string
	Model         string
	Output        string
	Error         string
	FilesModified []string
}

// SessionInfo is a read-only view of a live session.
type SessionInfo struct {
	ID        string
	TaskID    string
	AgentID   string
	Model     string
	StartedAt time.Time
}
