// Package agentgen implements pipeline.Generator by delegating layer work to
// supervised agent sessions. Every generation and rollback attempt gets its
// own task record, so pipeline work flows through admission, the budget, the
// execution log, and the build-health gate like any other spawn.
package agentgen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/bytemill/overseer/internal/log"
	"github.com/bytemill/overseer/internal/pipeline"
	"github.com/bytemill/overseer/internal/store"
	"github.com/bytemill/overseer/internal/supervise"
)

// SessionSpawner is the slice of the process supervisor the generator
// consumes.
type SessionSpawner interface {
	SpawnAgentSession(ctx context.Context, opts supervise.SpawnOptions) supervise.SpawnResult
}

// TaskCreator creates the backing task record for one layer attempt.
type TaskCreator interface {
	Create(ctx context.Context, task store.Task) error
}

// Generator produces one pipeline layer via agent sessions.
type Generator struct {
	kind    pipeline.LayerKind
	spawner SessionSpawner
	tasks   TaskCreator
	agentID string
	logger  *slog.Logger
}

// New builds a generator for kind whose work is performed by agent sessions
// spawned under agentID.
func New(kind pipeline.LayerKind, spawner SessionSpawner, tasks TaskCreator, agentID string) (*Generator, error) {
	if !pipeline.KnownLayer(kind) {
		return nil, fmt.Errorf("unknown layer kind %q", kind)
	}
	if spawner == nil {
		return nil, fmt.Errorf("spawner is nil")
	}
	if tasks == nil {
		return nil, fmt.Errorf("task creator is nil")
	}
	if agentID == "" {
		return nil, fmt.Errorf("agent id is empty")
	}
	return &Generator{
		kind:    kind,
		spawner: spawner,
		tasks:   tasks,
		agentID: agentID,
		logger:  log.WithComponent("agentgen").With("layer", kind),
	}, nil
}

func (g *Generator) Kind() pipeline.LayerKind { return g.kind }

// Generate spawns one agent session for this layer. The session prompt
// carries the layer's declared requirements plus the files every completed
// layer produced, so the agent can reference earlier output.
func (g *Generator) Generate(ctx context.Context, spec pipeline.FeatureSpec, layerCtx pipeline.Context) (pipeline.LayerResult, error) {
	result := pipeline.LayerResult{Layer: g.kind}

	task := store.Task{
		ID:       uuid.NewString(),
		Title:    fmt.Sprintf("Generate %s layer for feature %q", g.kind, spec.Feature),
		Category: string(g.kind),
		Priority: "normal",
	}
	if err := g.tasks.Create(ctx, task); err != nil {
		return result, fmt.Errorf("create layer task: %w", err)
	}

	spawn := g.spawner.SpawnAgentSession(ctx, supervise.SpawnOptions{
		TaskID:        task.ID,
		AgentID:       g.agentID,
		PromptContext: g.promptContext(spec, layerCtx),
	})
	if !spawn.Success {
		result.Status = pipeline.LayerFailed
		result.Errors = append(result.Errors, spawn.Error)
		return result, nil
	}

	result.Status = pipeline.LayerCompleted
	result.Files = spawn.FilesModified
	g.logger.Info("layer generated", "task_id", task.ID, "session_id", spawn.SessionID, "files", len(result.Files))
	return result, nil
}

// Validate accepts any result the agent completed without errors.
func (g *Generator) Validate(result pipeline.LayerResult) pipeline.ValidationResult {
	if len(result.Errors) > 0 {
		return pipeline.ValidationResult{Valid: false, Errors: result.Errors}
	}
	return pipeline.ValidationResult{Valid: true}
}

// Rollback spawns a revert session over the files the layer produced. A
// layer that produced no files has nothing to reverse.
func (g *Generator) Rollback(ctx context.Context, result pipeline.LayerResult) error {
	if len(result.Files) == 0 {
		return nil
	}

	task := store.Task{
		ID:       uuid.NewString(),
		Title:    fmt.Sprintf("Revert %s layer changes", g.kind),
		Category: string(g.kind),
		Priority: "high",
	}
	if err := g.tasks.Create(ctx, task); err != nil {
		return fmt.Errorf("create rollback task: %w", err)
	}

	spawn := g.spawner.SpawnAgentSession(ctx, supervise.SpawnOptions{
		TaskID:        task.ID,
		AgentID:       g.agentID,
		PromptContext: "Revert all changes to these files:\n" + strings.Join(result.Files, "\n"),
	})
	if !spawn.Success {
		return fmt.Errorf("rollback session failed: %s", spawn.Error)
	}
	return nil
}

// promptContext renders the layer's requirements and the prior layers'
// output into the session prompt.
func (g *Generator) promptContext(spec pipeline.FeatureSpec, layerCtx pipeline.Context) string {
	var b strings.Builder

	for _, l := range spec.Layers {
		if l.Kind == g.kind && l.Requirements != "" {
			b.WriteString("Requirements:\n")
			b.WriteString(l.Requirements)
			b.WriteString("\n")
			break
		}
	}

	completed := layerCtx.Completed()
	if len(completed) > 0 {
		b.WriteString("Files produced by earlier layers:\n")
		for _, kind := range completed {
			r, _ := layerCtx.Result(kind)
			for _, f := range r.Files {
				fmt.Fprintf(&b, "%s: %s\n", kind, f)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
