package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bytemill/overseer/internal/pipeline"
)

func TestRunUpsertRoundTrip(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	runs := NewRuns(db)
	ctx := context.Background()

	started := time.Now().UTC().Truncate(time.Millisecond)
	run := &pipeline.Run{
		ID:      "run-1",
		Feature: "user-profiles",
		Status:  pipeline.RunRunning,
		LayerResults: map[pipeline.LayerKind]pipeline.LayerResult{
			pipeline.LayerDatabase: {
				Layer:  pipeline.LayerDatabase,
				Status: pipeline.LayerCompleted,
				Files:  []string{"db/schema.sql"},
			},
		},
		StartedAt: started,
	}
	if err := runs.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	// Second save with a terminal status must update in place.
	run.Status = pipeline.RunCompleted
	run.Validation = &pipeline.ValidationResult{Valid: true}
	run.CompletedAt = started.Add(time.Minute)
	if err := runs.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun update: %v", err)
	}

	got, err := runs.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != pipeline.RunCompleted || got.Feature != "user-profiles" {
		t.Fatalf("unexpected run: %#v", got)
	}
	if got.Validation == nil || !got.Validation.Valid {
		t.Fatalf("validation lost: %#v", got.Validation)
	}
	dbResult, ok := got.LayerResults[pipeline.LayerDatabase]
	if !ok || dbResult.Status != pipeline.LayerCompleted || len(dbResult.Files) != 1 {
		t.Fatalf("layer results lost: %#v", got.LayerResults)
	}
	if got.CompletedAt.IsZero() {
		t.Fatal("completed_at lost")
	}
}

func TestGetRunNotFound(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	runs := NewRuns(db)

	if _, err := runs.GetRun(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGeneratedFilesOrderedByInsertion(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	runs := NewRuns(db)
	ctx := context.Background()

	if err := runs.SaveGeneratedFiles(ctx, "run-1", pipeline.LayerDatabase, []string{"db/schema.sql", "db/seed.sql"}); err != nil {
		t.Fatalf("SaveGeneratedFiles: %v", err)
	}
	if err := runs.SaveGeneratedFiles(ctx, "run-1", pipeline.LayerAPI, []string{"api/handlers.go"}); err != nil {
		t.Fatalf("SaveGeneratedFiles api: %v", err)
	}
	if err := runs.SaveGeneratedFiles(ctx, "run-2", pipeline.LayerUI, []string{"ui/page.tsx"}); err != nil {
		t.Fatalf("SaveGeneratedFiles other run: %v", err)
	}

	files, err := runs.GetGeneratedFiles(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetGeneratedFiles: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("expected 3 files, got %d: %#v", len(files), files)
	}
	if files[0].Path != "db/schema.sql" || files[2].Path != "api/handlers.go" {
		t.Fatalf("unexpected order: %#v", files)
	}
	if files[2].Layer != pipeline.LayerAPI {
		t.Fatalf("layer lost: %#v", files[2])
	}
}
