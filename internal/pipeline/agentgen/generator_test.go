package agentgen

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bytemill/overseer/internal/log"
	"github.com/bytemill/overseer/internal/pipeline"
	"github.com/bytemill/overseer/internal/store"
	"github.com/bytemill/overseer/internal/supervise"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR") // Suppress logs in tests
	os.Exit(m.Run())
}

type fakeSpawner struct {
	opts    []supervise.SpawnOptions
	results []supervise.SpawnResult
}

func (f *fakeSpawner) SpawnAgentSession(_ context.Context, opts supervise.SpawnOptions) supervise.SpawnResult {
	f.opts = append(f.opts, opts)
	if len(f.results) == 0 {
		return supervise.SpawnResult{Success: true, SessionID: "sess-1"}
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r
}

type fakeTaskCreator struct {
	created []store.Task
	err     error
}

func (f *fakeTaskCreator) Create(_ context.Context, task store.Task) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, task)
	return nil
}

func newGenerator(t *testing.T, kind pipeline.LayerKind) (*Generator, *fakeSpawner, *fakeTaskCreator) {
	t.Helper()
	spawner := &fakeSpawner{}
	tasks := &fakeTaskCreator{}
	gen, err := New(kind, spawner, tasks, "pipeline")
	require.NoError(t, err)
	return gen, spawner, tasks
}

func TestNewValidation(t *testing.T) {
	spawner := &fakeSpawner{}
	tasks := &fakeTaskCreator{}

	_, err := New("mainframe", spawner, tasks, "pipeline")
	assert.ErrorContains(t, err, "unknown layer kind")

	_, err = New(pipeline.LayerAPI, nil, tasks, "pipeline")
	assert.ErrorContains(t, err, "spawner is nil")

	_, err = New(pipeline.LayerAPI, spawner, nil, "pipeline")
	assert.ErrorContains(t, err, "task creator is nil")

	_, err = New(pipeline.LayerAPI, spawner, tasks, "")
	assert.ErrorContains(t, err, "agent id is empty")
}

func TestGenerateCreatesTaskAndSpawns(t *testing.T) {
	gen, spawner, tasks := newGenerator(t, pipeline.LayerAPI)
	spawner.results = []supervise.SpawnResult{{
		Success:       true,
		SessionID:     "sess-api",
		FilesModified: []string{"internal/api/handlers.go"},
	}}

	spec := pipeline.FeatureSpec{
		Feature: "user-profiles",
		Layers: []pipeline.LayerSpec{
			{Kind: pipeline.LayerAPI, Requirements: "expose GET /profiles"},
		},
	}

	result, err := gen.Generate(context.Background(), spec, pipeline.NewContext(nil))
	require.NoError(t, err)

	assert.Equal(t, pipeline.LayerCompleted, result.Status)
	assert.Equal(t, []string{"internal/api/handlers.go"}, result.Files)

	require.Len(t, tasks.created, 1)
	task := tasks.created[0]
	assert.Equal(t, "api", task.Category)
	assert.Contains(t, task.Title, "user-profiles")

	require.Len(t, spawner.opts, 1)
	assert.Equal(t, task.ID, spawner.opts[0].TaskID)
	assert.Equal(t, "pipeline", spawner.opts[0].AgentID)
	assert.Contains(t, spawner.opts[0].PromptContext, "expose GET /profiles")
}

func TestGeneratePassesPriorLayerFiles(t *testing.T) {
	gen, spawner, _ := newGenerator(t, pipeline.LayerAPI)

	layerCtx := pipeline.NewContext(map[pipeline.LayerKind]pipeline.LayerResult{
		pipeline.LayerDatabase: {
			Layer:  pipeline.LayerDatabase,
			Status: pipeline.LayerCompleted,
			Files:  []string{"migrations/001_users.sql"},
		},
	})

	_, err := gen.Generate(context.Background(), pipeline.FeatureSpec{
		Feature: "user-profiles",
		Layers:  []pipeline.LayerSpec{{Kind: pipeline.LayerAPI}},
	}, layerCtx)
	require.NoError(t, err)

	require.Len(t, spawner.opts, 1)
	promptCtx := spawner.opts[0].PromptContext
	assert.Contains(t, promptCtx, "migrations/001_users.sql")
	assert.True(t, strings.Contains(promptCtx, "database:"), "prior files are attributed to their layer")
}

func TestGenerateSpawnFailureIsLayerFailure(t *testing.T) {
	gen, spawner, _ := newGenerator(t, pipeline.LayerModel)
	spawner.results = []supervise.SpawnResult{{Error: "All models in fallback chain rate limited"}}

	result, err := gen.Generate(context.Background(), pipeline.FeatureSpec{
		Feature: "billing",
		Layers:  []pipeline.LayerSpec{{Kind: pipeline.LayerModel}},
	}, pipeline.NewContext(nil))
	require.NoError(t, err, "spawn failure is a layer result, not a generator error")

	assert.Equal(t, pipeline.LayerFailed, result.Status)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "rate limited")

	v := gen.Validate(result)
	assert.False(t, v.Valid)
}

func TestGenerateTaskCreationError(t *testing.T) {
	gen, spawner, tasks := newGenerator(t, pipeline.LayerDatabase)
	tasks.err = errors.New("disk full")

	_, err := gen.Generate(context.Background(), pipeline.FeatureSpec{
		Feature: "billing",
		Layers:  []pipeline.LayerSpec{{Kind: pipeline.LayerDatabase}},
	}, pipeline.NewContext(nil))
	assert.ErrorContains(t, err, "create layer task")
	assert.Empty(t, spawner.opts)
}

func TestRollbackSpawnsRevertSession(t *testing.T) {
	gen, spawner, tasks := newGenerator(t, pipeline.LayerUI)

	err := gen.Rollback(context.Background(), pipeline.LayerResult{
		Layer:  pipeline.LayerUI,
		Status: pipeline.LayerCompleted,
		Files:  []string{"web/profile.tsx", "web/profile.css"},
	})
	require.NoError(t, err)

	require.Len(t, tasks.created, 1)
	assert.Equal(t, "high", tasks.created[0].Priority)

	require.Len(t, spawner.opts, 1)
	assert.Contains(t, spawner.opts[0].PromptContext, "web/profile.tsx")
	assert.Contains(t, spawner.opts[0].PromptContext, "Revert")
}

func TestRollbackNoFilesIsNoOp(t *testing.T) {
	gen, spawner, tasks := newGenerator(t, pipeline.LayerDocs)

	err := gen.Rollback(context.Background(), pipeline.LayerResult{Layer: pipeline.LayerDocs, Status: pipeline.LayerCompleted})
	require.NoError(t, err)
	assert.Empty(t, tasks.created)
	assert.Empty(t, spawner.opts)
}

func TestRollbackSpawnFailure(t *testing.T) {
	gen, spawner, _ := newGenerator(t, pipeline.LayerUI)
	spawner.results = []supervise.SpawnResult{{Error: "agent reported failure (exit 1)"}}

	err := gen.Rollback(context.Background(), pipeline.LayerResult{
		Layer:  pipeline.LayerUI,
		Status: pipeline.LayerCompleted,
		Files:  []string{"web/profile.tsx"},
	})
	assert.ErrorContains(t, err, "rollback session failed")
}
