package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Sessions persists spawn sessions and their execution log.
type Sessions struct {
	db *sql.DB
}

func NewSessions(db *sql.DB) *Sessions {
	return &Sessions{db: db}
}

// CreateSession inserts a running session record.
func (s *Sessions) CreateSession(ctx context.Context, sess Session) error {
	if sess.ID == "" {
		return fmt.Errorf("session id is empty")
	}
	if sess.Status == "" {
		sess.Status = "running"
	}
	startedAt := sess.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO sessions(id, task_id, agent_id, model, status, started_at)
VALUES(?, ?, ?, ?, ?, ?);
`, sess.ID, sess.TaskID, sess.AgentID, sess.Model, sess.Status, startedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// UpdateSessionStatus marks a session with a terminal or intermediate status.
func (s *Sessions) UpdateSessionStatus(ctx context.Context, id, status string, lastError *string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `
UPDATE sessions SET status = ?, completed_at = ?, last_error = ?
WHERE id = ?;
`, status, now, lastError, id)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	return requireRow(res)
}

// Get loads a session by id.
func (s *Sessions) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, task_id, agent_id, model, status, started_at, completed_at, last_error
FROM sessions WHERE id = ?;
`, id)

	var (
		sess        Session
		startedAtS  string
		completedAt sql.NullString
		lastError   sql.NullString
	)
	err := row.Scan(&sess.ID, &sess.TaskID, &sess.AgentID, &sess.Model, &sess.Status,
		&startedAtS, &completedAt, &lastError)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if ts, err := time.Parse(time.RFC3339Nano, startedAtS); err == nil {
		sess.StartedAt = ts
	}
	if completedAt.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, completedAt.String); err == nil {
			sess.CompletedAt = &ts
		}
	}
	if lastError.Valid {
		sess.LastError = &lastError.String
	}
	return &sess, nil
}

// FindByStatus returns sessions matching a status, oldest first.
func (s *Sessions) FindByStatus(ctx context.Context, status string) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id FROM sessions WHERE status = ? ORDER BY started_at ASC;
`, status)
	if err != nil {
		return nil, fmt.Errorf("find sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		sess, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// AppendExecution records one spawn attempt's outcome.
func (s *Sessions) AppendExecution(ctx context.Context, rec ExecutionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(ctx, `
INSERT INTO execution_log(
  id, session_id, task_id, agent_id, model, category, status, exit_code,
  input_tokens, output_tokens, duration_ms, last_error, created_at
)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, rec.ID, rec.SessionID, rec.TaskID, rec.AgentID, rec.Model, rec.Category, rec.Status,
		rec.ExitCode, rec.InputTokens, rec.OutputTokens, rec.Duration.Milliseconds(), rec.LastError, now)
	if err != nil {
		return fmt.Errorf("insert execution record: %w", err)
	}
	return nil
}

// CountRecentFailures returns failed/timeout executions for a category since
// the cutoff. Feeds the build-health gate.
func (s *Sessions) CountRecentFailures(ctx context.Context, category string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM execution_log
WHERE category = ? AND status IN ('failed', 'timeout') AND created_at >= ?;
`, category, since.UTC().Format(time.RFC3339Nano)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count recent failures: %w", err)
	}
	return n, nil
}

// LatestExecution returns the most recent execution record for a category,
// or nil when none exist.
func (s *Sessions) LatestExecution(ctx context.Context, category string) (*ExecutionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, session_id, task_id, agent_id, model, category, status, exit_code,
       input_tokens, output_tokens, duration_ms, last_error, created_at
FROM execution_log WHERE category = ?
ORDER BY created_at DESC LIMIT 1;
`, category)

	var (
		rec        ExecutionRecord
		exitCode   sql.NullInt64
		durationMS int64
		lastError  sql.NullString
		createdAtS string
	)
	err := row.Scan(&rec.ID, &rec.SessionID, &rec.TaskID, &rec.AgentID, &rec.Model, &rec.Category,
		&rec.Status, &exitCode, &rec.InputTokens, &rec.OutputTokens, &durationMS, &lastError, &createdAtS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest execution: %w", err)
	}

	if exitCode.Valid {
		code := int(exitCode.Int64)
		rec.ExitCode = &code
	}
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	if lastError.Valid {
		rec.LastError = &lastError.String
	}
	if ts, err := time.Parse(time.RFC3339Nano, createdAtS); err == nil {
		rec.CreatedAt = ts
	}
	return &rec, nil
}
