package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Tasks persists task records in sqlite.
type Tasks struct {
	db *sql.DB
}

func NewTasks(db *sql.DB) *Tasks {
	return &Tasks{db: db}
}

// Create inserts a new pending task.
func (t *Tasks) Create(ctx context.Context, task Task) error {
	if task.ID == "" {
		return fmt.Errorf("task id is empty")
	}
	if task.Status == "" {
		task.Status = "pending"
	}
	if task.Category == "" {
		task.Category = "feature"
	}
	if task.Priority == "" {
		task.Priority = "normal"
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := t.db.ExecContext(ctx, `
INSERT INTO tasks(id, title, category, priority, status, assigned_agent, last_error, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?);
`, task.ID, task.Title, task.Category, task.Priority, task.Status, task.AssignedAgent, task.LastError, now)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetTask loads a task by id.
func (t *Tasks) GetTask(ctx context.Context, id string) (*Task, error) {
	row := t.db.QueryRowContext(ctx, `
SELECT id, title, category, priority, status, assigned_agent, last_error, created_at, updated_at
FROM tasks WHERE id = ?;
`, id)

	var (
		task       Task
		assigned   sql.NullString
		lastError  sql.NullString
		createdAtS string
		updatedAtS sql.NullString
	)
	err := row.Scan(&task.ID, &task.Title, &task.Category, &task.Priority, &task.Status,
		&assigned, &lastError, &createdAtS, &updatedAtS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	if assigned.Valid {
		task.AssignedAgent = &assigned.String
	}
	if lastError.Valid {
		task.LastError = &lastError.String
	}
	if ts, err := time.Parse(time.RFC3339Nano, createdAtS); err == nil {
		task.CreatedAt = ts
	}
	if updatedAtS.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, updatedAtS.String); err == nil {
			task.UpdatedAt = &ts
		}
	}
	return &task, nil
}

// UpdateTaskStatus sets the task status and optionally the assigned agent.
func (t *Tasks) UpdateTaskStatus(ctx context.Context, id, status string, assignedAgent *string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := t.db.ExecContext(ctx, `
UPDATE tasks SET status = ?, assigned_agent = COALESCE(?, assigned_agent), updated_at = ?
WHERE id = ?;
`, status, assignedAgent, now, id)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	return requireRow(res)
}

// FailTask marks a task failed with a human-readable reason.
func (t *Tasks) FailTask(ctx context.Context, id, reason string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := t.db.ExecContext(ctx, `
UPDATE tasks SET status = 'failed', last_error = ?, updated_at = ?
WHERE id = ?;
`, reason, now, id)
	if err != nil {
		return fmt.Errorf("fail task: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
