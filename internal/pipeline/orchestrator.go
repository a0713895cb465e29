package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bytemill/overseer/internal/events"
	"github.com/bytemill/overseer/internal/log"
)

// Orchestrator runs ordered generation layers with cross-layer context
// passing and reverse-order rollback on failure. Layers execute strictly one
// at a time because later layers depend on earlier layers' output.
type Orchestrator struct {
	mu         sync.Mutex
	generators map[LayerKind]Generator

	runs   RunStore
	hub    *events.Hub
	logger *slog.Logger
}

// New creates an Orchestrator. hub may be nil.
func New(runs RunStore, hub *events.Hub) *Orchestrator {
	return &Orchestrator{
		generators: make(map[LayerKind]Generator),
		runs:       runs,
		hub:        hub,
		logger:     log.WithComponent("pipeline"),
	}
}

// RegisterGenerator associates a layer kind with its implementation. The
// last registration for a kind wins.
func (o *Orchestrator) RegisterGenerator(g Generator) error {
	if g == nil {
		return fmt.Errorf("generator is nil")
	}
	if !KnownLayer(g.Kind()) {
		return fmt.Errorf("unknown layer kind %q", g.Kind())
	}

	o.mu.Lock()
	o.generators[g.Kind()] = g
	o.mu.Unlock()
	return nil
}

// Orchestrate executes every declared layer in fixed priority order. On a
// layer failure, previously completed layers are rolled back in strict
// reverse completion order and layers not yet started are never attempted.
func (o *Orchestrator) Orchestrate(ctx context.Context, spec FeatureSpec) (*Run, error) {
	order, err := o.planLayers(spec)
	if err != nil {
		return nil, err
	}

	run := &Run{
		ID:           uuid.NewString(),
		Feature:      spec.Feature,
		Status:       RunRunning,
		LayerResults: make(map[LayerKind]LayerResult),
		StartedAt:    time.Now().UTC(),
	}
	runLogger := o.logger.With("run_id", run.ID, "feature", spec.Feature)
	runLogger.Info("orchestration started", "layers", len(order))
	o.publish(events.TypeRunStarted, map[string]any{"run_id": run.ID, "feature": spec.Feature})

	// Completion order for rollback. Map iteration order would not do.
	var completed []LayerKind

	for _, kind := range order {
		gen := o.generator(kind)
		layerCtx := NewContext(run.LayerResults)

		runLogger.Info("layer started", "layer", kind)
		o.publish(events.TypeRunLayer, map[string]any{"run_id": run.ID, "layer": kind, "status": LayerRunning})

		result, genErr := gen.Generate(ctx, spec, layerCtx)
		result.Layer = kind
		if result.StartedAt.IsZero() {
			result.StartedAt = time.Now().UTC()
		}
		result.CompletedAt = time.Now().UTC()

		if genErr != nil || result.Status == LayerFailed {
			if genErr != nil {
				result.Errors = append(result.Errors, genErr.Error())
			}
			result.Status = LayerFailed
			run.LayerResults[kind] = result

			o.rollback(ctx, run, completed, runLogger)
			return o.finishFailed(ctx, run, fmt.Sprintf("layer %q failed: %s", kind, joinErrors(result.Errors)), runLogger)
		}

		if v := gen.Validate(result); !v.Valid {
			result.Status = LayerFailed
			result.Errors = append(result.Errors, v.Errors...)
			run.LayerResults[kind] = result

			o.rollback(ctx, run, completed, runLogger)
			return o.finishFailed(ctx, run, fmt.Sprintf("layer %q failed validation: %s", kind, joinErrors(v.Errors)), runLogger)
		}

		result.Status = LayerCompleted
		run.LayerResults[kind] = result
		completed = append(completed, kind)

		runLogger.Info("layer completed", "layer", kind, "files", len(result.Files))
		o.publish(events.TypeRunLayer, map[string]any{"run_id": run.ID, "layer": kind, "status": LayerCompleted})
	}

	// All layers completed: aggregate cross-layer validation.
	if v := o.crossValidate(run); !v.Valid {
		run.Validation = &v
		o.rollback(ctx, run, completed, runLogger)
		return o.finishFailed(ctx, run, fmt.Sprintf("cross-layer validation failed: %s", joinErrors(v.Errors)), runLogger)
	}
	run.Validation = &ValidationResult{Valid: true}

	run.Status = RunCompleted
	run.CompletedAt = time.Now().UTC()
	if err := o.persist(ctx, run); err != nil {
		runLogger.Error("failed to persist completed run", "error", err)
	}

	runLogger.Info("orchestration completed", "layers", len(completed))
	o.publish(events.TypeRunCompleted, map[string]any{"run_id": run.ID, "layers": len(completed)})
	return run, nil
}

// planLayers validates the spec and returns the declared layers sorted into
// fixed priority order.
func (o *Orchestrator) planLayers(spec FeatureSpec) ([]LayerKind, error) {
	if len(spec.Layers) == 0 {
		return nil, fmt.Errorf("feature %q has no layers defined", spec.Feature)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	seen := make(map[LayerKind]bool, len(spec.Layers))
	var order []LayerKind
	var missing []string
	for _, l := range spec.Layers {
		if !KnownLayer(l.Kind) {
			return nil, fmt.Errorf("feature %q declares unknown layer kind %q", spec.Feature, l.Kind)
		}
		if seen[l.Kind] {
			return nil, fmt.Errorf("feature %q declares layer %q twice", spec.Feature, l.Kind)
		}
		seen[l.Kind] = true
		if _, ok := o.generators[l.Kind]; !ok {
			missing = append(missing, string(l.Kind))
			continue
		}
		order = append(order, l.Kind)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing generators for layers: %s", strings.Join(missing, ", "))
	}

	sortLayers(order)
	return order, nil
}

func (o *Orchestrator) generator(kind LayerKind) Generator {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.generators[kind]
}

// rollback reverses completed layers in strict reverse completion order.
// Rollback errors are logged and never mask the original failure.
func (o *Orchestrator) rollback(ctx context.Context, run *Run, completed []LayerKind, logger *slog.Logger) {
	for i := len(completed) - 1; i >= 0; i-- {
		kind := completed[i]
		result := run.LayerResults[kind]

		logger.Warn("rolling back layer", "layer", kind)
		if err := o.generator(kind).Rollback(ctx, result); err != nil {
			logger.Error("rollback failed", "layer", kind, "error", err)
		}

		result.Status = LayerRolledBack
		run.LayerResults[kind] = result
		o.publish(events.TypeRunLayer, map[string]any{"run_id": run.ID, "layer": kind, "status": LayerRolledBack})
	}
}

// crossValidate re-runs each generator's Validate over the final result set
// as an aggregate consistency check.
func (o *Orchestrator) crossValidate(run *Run) ValidationResult {
	agg := ValidationResult{Valid: true}
	kinds := make([]LayerKind, 0, len(run.LayerResults))
	for k := range run.LayerResults {
		kinds = append(kinds, k)
	}
	sortLayers(kinds)

	for _, kind := range kinds {
		if v := o.generator(kind).Validate(run.LayerResults[kind]); !v.Valid {
			agg.Valid = false
			agg.Errors = append(agg.Errors, v.Errors...)
		}
	}
	return agg
}

func (o *Orchestrator) finishFailed(ctx context.Context, run *Run, reason string, logger *slog.Logger) (*Run, error) {
	run.Status = RunFailed
	run.Error = reason
	run.CompletedAt = time.Now().UTC()
	if run.Validation == nil {
		run.Validation = &ValidationResult{Valid: false, Errors: []string{reason}}
	}
	if err := o.persist(ctx, run); err != nil {
		logger.Error("failed to persist failed run", "error", err)
	}

	logger.Warn("orchestration failed", "reason", reason)
	o.publish(events.TypeRunFailed, map[string]any{"run_id": run.ID, "reason": reason})
	return run, nil
}

func (o *Orchestrator) persist(ctx context.Context, run *Run) error {
	if o.runs == nil {
		return nil
	}
	if err := o.runs.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	if run.Status != RunCompleted {
		return nil
	}
	for kind, result := range run.LayerResults {
		if len(result.Files) == 0 {
			continue
		}
		if err := o.runs.SaveGeneratedFiles(ctx, run.ID, kind, result.Files); err != nil {
			return fmt.Errorf("save generated files for %s: %w", kind, err)
		}
	}
	return nil
}

// GetRun loads a persisted run.
func (o *Orchestrator) GetRun(ctx context.Context, id string) (*Run, error) {
	if o.runs == nil {
		return nil, fmt.Errorf("no run store configured")
	}
	return o.runs.GetRun(ctx, id)
}

// GetGeneratedFiles loads the file records a completed run produced.
func (o *Orchestrator) GetGeneratedFiles(ctx context.Context, runID string) ([]GeneratedFile, error) {
	if o.runs == nil {
		return nil, fmt.Errorf("no run store configured")
	}
	return o.runs.GetGeneratedFiles(ctx, runID)
}

func (o *Orchestrator) publish(eventType string, data any) {
	if o.hub != nil {
		o.hub.Publish(eventType, data)
	}
}

func joinErrors(errs []string) string {
	if len(errs) == 0 {
		return "unknown error"
	}
	return strings.Join(errs, "; ")
}
