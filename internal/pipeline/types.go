package pipeline

import "time"

// LayerKind is the closed set of generation layers. Execution always follows
// the priority order below (foundational layers first), never the order a
// feature spec happens to declare.
type LayerKind string

const (
	LayerDatabase  LayerKind = "database"
	LayerMigration LayerKind = "migration"
	LayerModel     LayerKind = "model"
	LayerAPI       LayerKind = "api"
	LayerService   LayerKind = "service"
	LayerUI        LayerKind = "ui"
	LayerTest      LayerKind = "test"
	LayerDocs      LayerKind = "docs"
)

var layerPriority = map[LayerKind]int{
	LayerDatabase:  0,
	LayerMigration: 1,
	LayerModel:     2,
	LayerAPI:       3,
	LayerService:   4,
	LayerUI:        5,
	LayerTest:      6,
	LayerDocs:      7,
}

// KnownLayer reports whether kind is a member of the closed layer set.
func KnownLayer(kind LayerKind) bool {
	_, ok := layerPriority[kind]
	return ok
}

// Layers lists every layer kind in priority order.
func Layers() []LayerKind {
	kinds := make([]LayerKind, 0, len(layerPriority))
	for k := range layerPriority {
		kinds = append(kinds, k)
	}
	sortLayers(kinds)
	return kinds
}

// LayerStatus tracks one layer through its lifecycle.
type LayerStatus string

const (
	LayerPending    LayerStatus = "pending"
	LayerRunning    LayerStatus = "running"
	LayerCompleted  LayerStatus = "completed"
	LayerFailed     LayerStatus = "failed"
	LayerRolledBack LayerStatus = "rolled_back"
)

// RunStatus tracks a whole orchestration run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// LayerResult is the outcome of one layer's generation.
type LayerResult struct {
	Layer       LayerKind   `json:"layer"`
	Status      LayerStatus `json:"status"`
	Files       []string    `json:"files,omitempty"`
	Errors      []string    `json:"errors,omitempty"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt time.Time   `json:"completed_at,omitempty"`
}

// ValidationResult is the outcome of per-layer or cross-layer validation.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// LayerSpec declares one layer of a feature.
type LayerSpec struct {
	Kind         LayerKind `json:"kind" yaml:"kind"`
	Requirements string    `json:"requirements,omitempty" yaml:"requirements,omitempty"`
}

// FeatureSpec declares the layers a feature needs, in any order.
type FeatureSpec struct {
	Feature string      `json:"feature" yaml:"feature"`
	Layers  []LayerSpec `json:"layers" yaml:"layers"`
}

// Run is one orchestration attempt over a feature spec. LayerResults only
// ever contains layers that were actually attempted.
type Run struct {
	ID           string                    `json:"id"`
	Feature      string                    `json:"feature"`
	Status       RunStatus                 `json:"status"`
	LayerResults map[LayerKind]LayerResult `json:"layer_results"`
	Validation   *ValidationResult         `json:"validation,omitempty"`
	Error        string                    `json:"error,omitempty"`
	StartedAt    time.Time                 `json:"started_at"`
	CompletedAt  time.Time                 `json:"completed_at,omitempty"`
}

// GeneratedFile is one persisted file record from a completed run.
type GeneratedFile struct {
	RunID string    `json:"run_id"`
	Layer LayerKind `json:"layer"`
	Path  string    `json:"path"`
}

// Context carries the results of previously completed layers into a
// generator. The snapshot is copied at construction; generators cannot
// mutate orchestrator state through it.
type Context struct {
	completed map[LayerKind]LayerResult
}

// NewContext builds an immutable snapshot of completed layer results.
func NewContext(completed map[LayerKind]LayerResult) Context {
	snap := make(map[LayerKind]LayerResult, len(completed))
	for k, v := range completed {
		files := make([]string, len(v.Files))
		copy(files, v.Files)
		v.Files = files
		snap[k] = v
	}
	return Context{completed: snap}
}

// Result returns the completed result for a prior layer, if any.
func (c Context) Result(kind LayerKind) (LayerResult, bool) {
	r, ok := c.completed[kind]
	return r, ok
}

// Completed lists the layer kinds already completed, in priority order.
func (c Context) Completed() []LayerKind {
	kinds := make([]LayerKind, 0, len(c.completed))
	for k := range c.completed {
		kinds = append(kinds, k)
	}
	sortLayers(kinds)
	return kinds
}

func sortLayers(kinds []LayerKind) {
	for i := 1; i < len(kinds); i++ {
		for j := i; j > 0 && layerPriority[kinds[j]] < layerPriority[kinds[j-1]]; j-- {
			kinds[j], kinds[j-1] = kinds[j-1], kinds[j]
		}
	}
}
