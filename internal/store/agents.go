package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Agents persists agent status and counters in sqlite.
type Agents struct {
	db *sql.DB
}

func NewAgents(db *sql.DB) *Agents {
	return &Agents{db: db}
}

// UpdateAgentStatus upserts the agent row with the given status.
func (a *Agents) UpdateAgentStatus(ctx context.Context, id, status string) error {
	if id == "" {
		return fmt.Errorf("agent id is empty")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := a.db.ExecContext(ctx, `
INSERT INTO agents(id, status, updated_at) VALUES(?, ?, ?)
ON CONFLICT(id) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at;
`, id, status, now)
	if err != nil {
		return fmt.Errorf("update agent status: %w", err)
	}
	return nil
}

// UpdateHeartbeat refreshes the agent's liveness timestamp.
func (a *Agents) UpdateHeartbeat(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := a.db.ExecContext(ctx, `
INSERT INTO agents(id, status, last_heartbeat, updated_at) VALUES(?, 'working', ?, ?)
ON CONFLICT(id) DO UPDATE SET last_heartbeat = excluded.last_heartbeat, updated_at = excluded.updated_at;
`, id, now, now)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// IncrementTasksCompleted bumps the agent's completion counter.
func (a *Agents) IncrementTasksCompleted(ctx context.Context, id string) error {
	return a.increment(ctx, id, "tasks_completed")
}

// IncrementTasksFailed bumps the agent's failure counter.
func (a *Agents) IncrementTasksFailed(ctx context.Context, id string) error {
	return a.increment(ctx, id, "tasks_failed")
}

func (a *Agents) increment(ctx context.Context, id, column string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	// column is one of two compile-time constants, never user input.
	stmt := fmt.Sprintf(`
INSERT INTO agents(id, status, %s, updated_at) VALUES(?, 'idle', 1, ?)
ON CONFLICT(id) DO UPDATE SET %s = %s + 1, updated_at = excluded.updated_at;
`, column, column, column)
	if _, err := a.db.ExecContext(ctx, stmt, id, now); err != nil {
		return fmt.Errorf("increment %s: %w", column, err)
	}
	return nil
}

// Get loads an agent by id.
func (a *Agents) Get(ctx context.Context, id string) (*Agent, error) {
	row := a.db.QueryRowContext(ctx, `
SELECT id, status, last_heartbeat, tasks_completed, tasks_failed
FROM agents WHERE id = ?;
`, id)

	var (
		agent      Agent
		heartbeatS sql.NullString
	)
	err := row.Scan(&agent.ID, &agent.Status, &heartbeatS, &agent.TasksCompleted, &agent.TasksFailed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	if heartbeatS.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, heartbeatS.String); err == nil {
			agent.LastHeartbeat = &ts
		}
	}
	return &agent, nil
}
