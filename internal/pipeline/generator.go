package pipeline

import "context"

//go:generate mockgen -destination=mocks/mock_generator.go -package=mocks github.com/bytemill/overseer/internal/pipeline Generator,RunStore

// Generator produces, validates, and reverses one layer of a feature.
// Implementations are registered per LayerKind; orchestration fails fast at
// spec-validation time if a declared kind has no registered implementation.
type Generator interface {
	Kind() LayerKind

	// Generate produces the layer. layerCtx exposes every previously
	// completed layer's result for cross-layer referencing.
	Generate(ctx context.Context, spec FeatureSpec, layerCtx Context) (LayerResult, error)

	// Validate checks a single completed layer's result.
	Validate(result LayerResult) ValidationResult

	// Rollback reverses a completed layer's effects. Best-effort: errors are
	// logged by the orchestrator and never mask the original failure.
	Rollback(ctx context.Context, result LayerResult) error
}

// RunStore persists orchestration runs and their generated file records.
type RunStore interface {
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	SaveGeneratedFiles(ctx context.Context, runID string, layer LayerKind, files []string) error
	GetGeneratedFiles(ctx context.Context, runID string) ([]GeneratedFile, error)
}
