package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures required tables exist.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Basic health check + apply a few safe pragmas.
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign_keys: %w", err)
	}
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables/indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
  id             TEXT PRIMARY KEY,
  title          TEXT NOT NULL,
  category       TEXT NOT NULL DEFAULT 'feature',
  priority       TEXT NOT NULL DEFAULT 'normal',
  status         TEXT NOT NULL DEFAULT 'pending',
  assigned_agent TEXT,
  last_error     TEXT,
  created_at     TEXT NOT NULL,
  updated_at     TEXT
);`,
		`CREATE TABLE IF NOT EXISTS agents (
  id              TEXT PRIMARY KEY,
  status          TEXT NOT NULL DEFAULT 'idle',
  last_heartbeat  TEXT,
  tasks_completed INTEGER NOT NULL DEFAULT 0,
  tasks_failed    INTEGER NOT NULL DEFAULT 0,
  updated_at      TEXT
);`,
		`CREATE TABLE IF NOT EXISTS sessions (
  id           TEXT PRIMARY KEY,
  task_id      TEXT NOT NULL,
  agent_id     TEXT NOT NULL,
  model        TEXT NOT NULL,
  status       TEXT NOT NULL,
  started_at   TEXT NOT NULL,
  completed_at TEXT,
  last_error   TEXT
);`,
		`CREATE TABLE IF NOT EXISTS execution_log (
  id            TEXT PRIMARY KEY,
  session_id    TEXT NOT NULL,
  task_id       TEXT NOT NULL,
  agent_id      TEXT NOT NULL,
  model         TEXT NOT NULL,
  category      TEXT NOT NULL DEFAULT 'feature',
  status        TEXT NOT NULL,
  exit_code     INTEGER,
  input_tokens  INTEGER NOT NULL DEFAULT 0,
  output_tokens INTEGER NOT NULL DEFAULT 0,
  duration_ms   INTEGER NOT NULL DEFAULT 0,
  last_error    TEXT,
  created_at    TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS usage_log (
  day    TEXT PRIMARY KEY,
  tokens INTEGER NOT NULL DEFAULT 0
);`,
		`CREATE TABLE IF NOT EXISTS orchestration_runs (
  id            TEXT PRIMARY KEY,
  feature       TEXT NOT NULL,
  status        TEXT NOT NULL,
  last_error    TEXT,
  validation    TEXT,
  layer_results JSON NOT NULL DEFAULT '{}',
  started_at    TEXT NOT NULL,
  completed_at  TEXT
);`,
		`CREATE TABLE IF NOT EXISTS generated_files (
  id         TEXT PRIMARY KEY,
  run_id     TEXT NOT NULL,
  layer      TEXT NOT NULL,
  path       TEXT NOT NULL,
  created_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS sessions_status_idx ON sessions(status);`,
		`CREATE INDEX IF NOT EXISTS execution_log_category_created_idx ON execution_log(category, created_at);`,
		`CREATE INDEX IF NOT EXISTS generated_files_run_idx ON generated_files(run_id);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
