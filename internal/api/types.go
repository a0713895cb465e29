package api

import "time"

// SpawnRequest is the JSON body for POST /sessions.
type SpawnRequest struct {
	TaskID               string `json:"task_id"`
	AgentID              string `json:"agent_id"`
	Model                string `json:"model,omitempty"`
	TimeoutSeconds       int    `json:"timeout_seconds,omitempty"`
	ExpectedOutputTokens int    `json:"expected_output_tokens,omitempty"`
}

// SpawnResponse is returned when a spawn request is accepted. The session
// runs asynchronously; progress is observable via /sessions and /events.
type SpawnResponse struct {
	TaskID  string `json:"task_id"`
	AgentID string `json:"agent_id"`
	Status  string `json:"status"`
}

// SessionResponse is one live session in GET /sessions.
type SessionResponse struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	AgentID   string    `json:"agent_id"`
	Model     string    `json:"model"`
	StartedAt time.Time `json:"started_at"`
}

// OrchestrateResponse is returned when a pipeline run is accepted. The run
// executes asynchronously; run.started on /events carries the run id.
type OrchestrateResponse struct {
	Feature string `json:"feature"`
	Status  string `json:"status"`
}

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status            string `json:"status"`
	UptimeSeconds     int64  `json:"uptime_seconds"`
	RunningSessions   int    `json:"running_sessions"`
	ConfigFingerprint string `json:"config_fingerprint,omitempty"`
}
