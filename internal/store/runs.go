package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bytemill/overseer/internal/pipeline"
)

// Runs persists orchestration runs and generated file records. Implements
// pipeline.RunStore.
type Runs struct {
	db *sql.DB
}

func NewRuns(db *sql.DB) *Runs {
	return &Runs{db: db}
}

// SaveRun upserts a run with its layer results serialized as JSON.
func (r *Runs) SaveRun(ctx context.Context, run *pipeline.Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("run is nil or has no id")
	}

	layerJSON, err := json.Marshal(run.LayerResults)
	if err != nil {
		return fmt.Errorf("marshal layer results: %w", err)
	}

	var validation any
	if run.Validation != nil {
		b, err := json.Marshal(run.Validation)
		if err != nil {
			return fmt.Errorf("marshal validation: %w", err)
		}
		validation = string(b)
	}

	var completedAt any
	if !run.CompletedAt.IsZero() {
		completedAt = run.CompletedAt.UTC().Format(time.RFC3339Nano)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO orchestration_runs(id, feature, status, last_error, validation, layer_results, started_at, completed_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  status = excluded.status,
  last_error = excluded.last_error,
  validation = excluded.validation,
  layer_results = excluded.layer_results,
  completed_at = excluded.completed_at;
`, run.ID, run.Feature, string(run.Status), nullIfEmpty(run.Error), validation, string(layerJSON),
		run.StartedAt.UTC().Format(time.RFC3339Nano), completedAt)
	if err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}
	return nil
}

// GetRun loads a persisted run by id.
func (r *Runs) GetRun(ctx context.Context, id string) (*pipeline.Run, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, feature, status, last_error, validation, layer_results, started_at, completed_at
FROM orchestration_runs WHERE id = ?;
`, id)

	var (
		run         pipeline.Run
		statusS     string
		lastError   sql.NullString
		validationS sql.NullString
		layerJSON   string
		startedAtS  string
		completedAt sql.NullString
	)
	err := row.Scan(&run.ID, &run.Feature, &statusS, &lastError, &validationS, &layerJSON, &startedAtS, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	run.Status = pipeline.RunStatus(statusS)
	if lastError.Valid {
		run.Error = lastError.String
	}
	if validationS.Valid {
		var v pipeline.ValidationResult
		if err := json.Unmarshal([]byte(validationS.String), &v); err == nil {
			run.Validation = &v
		}
	}
	if err := json.Unmarshal([]byte(layerJSON), &run.LayerResults); err != nil {
		return nil, fmt.Errorf("decode layer results: %w", err)
	}
	if ts, err := time.Parse(time.RFC3339Nano, startedAtS); err == nil {
		run.StartedAt = ts
	}
	if completedAt.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, completedAt.String); err == nil {
			run.CompletedAt = ts
		}
	}
	return &run, nil
}

// SaveGeneratedFiles records the files one layer produced.
func (r *Runs) SaveGeneratedFiles(ctx context.Context, runID string, layer pipeline.LayerKind, files []string) error {
	if runID == "" {
		return fmt.Errorf("run id is empty")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, path := range files {
		_, err := tx.ExecContext(ctx, `
INSERT INTO generated_files(id, run_id, layer, path, created_at)
VALUES(?, ?, ?, ?, ?);
`, uuid.NewString(), runID, string(layer), path, now)
		if err != nil {
			return fmt.Errorf("insert generated file: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetGeneratedFiles lists file records for a run, oldest first.
func (r *Runs) GetGeneratedFiles(ctx context.Context, runID string) ([]pipeline.GeneratedFile, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT run_id, layer, path FROM generated_files
WHERE run_id = ? ORDER BY created_at ASC, rowid ASC;
`, runID)
	if err != nil {
		return nil, fmt.Errorf("query generated files: %w", err)
	}
	defer rows.Close()

	var out []pipeline.GeneratedFile
	for rows.Next() {
		var f pipeline.GeneratedFile
		var layerS string
		if err := rows.Scan(&f.RunID, &layerS, &f.Path); err != nil {
			return nil, fmt.Errorf("scan generated file: %w", err)
		}
		f.Layer = pipeline.LayerKind(layerS)
		out = append(out, f)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
