package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bytemill/overseer/internal/log"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR") // Suppress logs in tests
	os.Exit(m.Run())
}

// scriptedGenerator is a test generator with programmable behavior.
type scriptedGenerator struct {
	kind         LayerKind
	failGenerate bool
	failValidate bool
	rollbackErr  error
	files        []string

	calls      *[]string // shared across generators to observe ordering
	rollbacks  *[]string
	validCalls int
}

func (g *scriptedGenerator) Kind() LayerKind { return g.kind }

func (g *scriptedGenerator) Generate(_ context.Context, _ FeatureSpec, layerCtx Context) (LayerResult, error) {
	*g.calls = append(*g.calls, "generate:"+string(g.kind))
	if g.failGenerate {
		return LayerResult{}, fmt.Errorf("%s generator blew up", g.kind)
	}
	return LayerResult{Status: LayerCompleted, Files: g.files}, nil
}

func (g *scriptedGenerator) Validate(result LayerResult) ValidationResult {
	g.validCalls++
	if g.failValidate && result.Status == LayerCompleted && g.validCalls > 1 {
		// Pass per-layer validation, fail the aggregate pass.
		return ValidationResult{Valid: false, Errors: []string{string(g.kind) + " inconsistent with schema"}}
	}
	return ValidationResult{Valid: true}
}

func (g *scriptedGenerator) Rollback(_ context.Context, result LayerResult) error {
	*g.rollbacks = append(*g.rollbacks, "rollback:"+string(g.kind))
	return g.rollbackErr
}

type harness struct {
	orch      *Orchestrator
	calls     []string
	rollbacks []string
	gens      map[LayerKind]*scriptedGenerator
}

func newHarness(t *testing.T, kinds ...LayerKind) *harness {
	t.Helper()
	h := &harness{
		orch: New(nil, nil),
		gens: make(map[LayerKind]*scriptedGenerator),
	}
	for _, k := range kinds {
		g := &scriptedGenerator{
			kind:      k,
			files:     []string{fmt.Sprintf("gen/%s.go", k)},
			calls:     &h.calls,
			rollbacks: &h.rollbacks,
		}
		h.gens[k] = g
		require.NoError(t, h.orch.RegisterGenerator(g))
	}
	return h
}

func threeLayerSpec() FeatureSpec {
	// Declared deliberately out of priority order.
	return FeatureSpec{
		Feature: "user-profiles",
		Layers: []LayerSpec{
			{Kind: LayerUI},
			{Kind: LayerDatabase},
			{Kind: LayerAPI},
		},
	}
}

func TestOrchestrateHappyPath(t *testing.T) {
	h := newHarness(t, LayerDatabase, LayerAPI, LayerUI)

	run, err := h.orch.Orchestrate(context.Background(), threeLayerSpec())
	require.NoError(t, err)

	assert.Equal(t, RunCompleted, run.Status)
	require.NotNil(t, run.Validation)
	assert.True(t, run.Validation.Valid)

	// Layers executed in priority order, not declaration order.
	assert.Equal(t, []string{
		"generate:database",
		"generate:api",
		"generate:ui",
	}, h.calls)

	for _, kind := range []LayerKind{LayerDatabase, LayerAPI, LayerUI} {
		result, ok := run.LayerResults[kind]
		require.True(t, ok, "missing result for %s", kind)
		assert.Equal(t, LayerCompleted, result.Status)
		assert.NotEmpty(t, result.Files)
	}
	assert.Empty(t, h.rollbacks)
}

func TestOrchestrateMidLayerFailureRollsBack(t *testing.T) {
	h := newHarness(t, LayerDatabase, LayerAPI, LayerUI)
	h.gens[LayerAPI].failGenerate = true

	run, err := h.orch.Orchestrate(context.Background(), threeLayerSpec())
	require.NoError(t, err)

	assert.Equal(t, RunFailed, run.Status)
	assert.Contains(t, run.Error, "api")

	// Database completed first, so it rolls back.
	assert.Equal(t, LayerRolledBack, run.LayerResults[LayerDatabase].Status)
	assert.Equal(t, LayerFailed, run.LayerResults[LayerAPI].Status)

	// UI was never attempted and never appears in results.
	_, uiPresent := run.LayerResults[LayerUI]
	assert.False(t, uiPresent)

	assert.Equal(t, []string{"generate:database", "generate:api"}, h.calls)
	assert.Equal(t, []string{"rollback:database"}, h.rollbacks)
}

func TestOrchestrateAggregateValidationFailureRollsBackAll(t *testing.T) {
	h := newHarness(t, LayerDatabase, LayerAPI, LayerUI)
	h.gens[LayerUI].failValidate = true

	run, err := h.orch.Orchestrate(context.Background(), threeLayerSpec())
	require.NoError(t, err)

	assert.Equal(t, RunFailed, run.Status)
	assert.Contains(t, run.Error, "validation failed")
	require.NotNil(t, run.Validation)
	assert.False(t, run.Validation.Valid)

	for _, kind := range []LayerKind{LayerDatabase, LayerAPI, LayerUI} {
		assert.Equal(t, LayerRolledBack, run.LayerResults[kind].Status, "layer %s", kind)
	}

	// Rollback in strict reverse completion order.
	assert.Equal(t, []string{"rollback:ui", "rollback:api", "rollback:database"}, h.rollbacks)
}

func TestOrchestrateRollbackErrorDoesNotMaskOriginal(t *testing.T) {
	h := newHarness(t, LayerDatabase, LayerAPI)
	h.gens[LayerAPI].failGenerate = true
	h.gens[LayerDatabase].rollbackErr = errors.New("drop table refused")

	run, err := h.orch.Orchestrate(context.Background(), FeatureSpec{
		Feature: "orders",
		Layers:  []LayerSpec{{Kind: LayerDatabase}, {Kind: LayerAPI}},
	})
	require.NoError(t, err)

	assert.Equal(t, RunFailed, run.Status)
	assert.Contains(t, run.Error, "api")
	assert.NotContains(t, run.Error, "drop table refused")
	// The layer is still marked rolled back; the failure was logged only.
	assert.Equal(t, LayerRolledBack, run.LayerResults[LayerDatabase].Status)
}

func TestOrchestrateMissingGenerators(t *testing.T) {
	h := newHarness(t, LayerDatabase)

	_, err := h.orch.Orchestrate(context.Background(), FeatureSpec{
		Feature: "billing",
		Layers:  []LayerSpec{{Kind: LayerDatabase}, {Kind: LayerAPI}, {Kind: LayerUI}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing generators")
	assert.Contains(t, err.Error(), "api")
	assert.Contains(t, err.Error(), "ui")
	assert.Empty(t, h.calls)
}

func TestOrchestrateNoLayers(t *testing.T) {
	h := newHarness(t, LayerDatabase)

	_, err := h.orch.Orchestrate(context.Background(), FeatureSpec{Feature: "empty"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no layers defined")
}

func TestOrchestrateRejectsUnknownAndDuplicateLayers(t *testing.T) {
	h := newHarness(t, LayerDatabase)

	_, err := h.orch.Orchestrate(context.Background(), FeatureSpec{
		Feature: "bad",
		Layers:  []LayerSpec{{Kind: "blockchain"}},
	})
	assert.ErrorContains(t, err, "unknown layer kind")

	_, err = h.orch.Orchestrate(context.Background(), FeatureSpec{
		Feature: "dup",
		Layers:  []LayerSpec{{Kind: LayerDatabase}, {Kind: LayerDatabase}},
	})
	assert.ErrorContains(t, err, "twice")
}

func TestRegisterGeneratorValidation(t *testing.T) {
	o := New(nil, nil)
	assert.Error(t, o.RegisterGenerator(nil))

	calls, rollbacks := []string{}, []string{}
	bad := &scriptedGenerator{kind: "mainframe", calls: &calls, rollbacks: &rollbacks}
	assert.ErrorContains(t, o.RegisterGenerator(bad), "unknown layer kind")
}

func TestContextExposesCompletedLayers(t *testing.T) {
	h := newHarness(t, LayerDatabase, LayerAPI)

	var apiSawDatabase bool
	h.gens[LayerAPI].files = []string{"api/handlers.go"}

	// Wrap the API generator to inspect its context.
	inspect := &contextInspector{inner: h.gens[LayerAPI], saw: &apiSawDatabase}
	require.NoError(t, h.orch.RegisterGenerator(inspect))

	run, err := h.orch.Orchestrate(context.Background(), FeatureSpec{
		Feature: "inventory",
		Layers:  []LayerSpec{{Kind: LayerAPI}, {Kind: LayerDatabase}},
	})
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, run.Status)
	assert.True(t, apiSawDatabase, "api layer should see the database layer's result")
}

type contextInspector struct {
	inner Generator
	saw   *bool
}

func (c *contextInspector) Kind() LayerKind { return c.inner.Kind() }

func (c *contextInspector) Generate(ctx context.Context, spec FeatureSpec, layerCtx Context) (LayerResult, error) {
	if r, ok := layerCtx.Result(LayerDatabase); ok && r.Status == LayerCompleted && len(r.Files) > 0 {
		*c.saw = true
	}
	return c.inner.Generate(ctx, spec, layerCtx)
}

func (c *contextInspector) Validate(result LayerResult) ValidationResult {
	return c.inner.Validate(result)
}

func (c *contextInspector) Rollback(ctx context.Context, result LayerResult) error {
	return c.inner.Rollback(ctx, result)
}
