package gate

import (
	"context"
	"testing"
	"time"

	"github.com/bytemill/overseer/internal/config"
	"github.com/bytemill/overseer/internal/store"
)

type fakeExecutions struct {
	failures int
	latest   *store.ExecutionRecord
}

func (f *fakeExecutions) CountRecentFailures(context.Context, string, time.Time) (int, error) {
	return f.failures, nil
}

func (f *fakeExecutions) LatestExecution(context.Context, string) (*store.ExecutionRecord, error) {
	return f.latest, nil
}

func testGateConfig() config.GateConfig {
	return config.GateConfig{
		Enabled:          true,
		FailureThreshold: 3,
		Cooldown:         30 * time.Minute,
		Lookback:         2 * time.Hour,
	}
}

func newGate(cfg config.GateConfig, execs Executions, now time.Time) *BuildHealth {
	g := New(cfg, execs)
	g.now = func() time.Time { return now }
	return g
}

func TestGateAllowsBelowThreshold(t *testing.T) {
	g := newGate(testGateConfig(), &fakeExecutions{failures: 2}, time.Now())

	allowed, reason, err := g.ShouldAllowSpawn(context.Background(), "api", "medium")
	if err != nil {
		t.Fatalf("ShouldAllowSpawn: %v", err)
	}
	if !allowed || reason != "" {
		t.Fatalf("expected allow, got allowed=%v reason=%q", allowed, reason)
	}
}

func TestGateBlocksAtThresholdWithinCooldown(t *testing.T) {
	now := time.Now()
	execs := &fakeExecutions{
		failures: 3,
		latest:   &store.ExecutionRecord{Category: "api", Status: "failed", CreatedAt: now.Add(-5 * time.Minute)},
	}
	g := newGate(testGateConfig(), execs, now)

	allowed, reason, err := g.ShouldAllowSpawn(context.Background(), "api", "medium")
	if err != nil {
		t.Fatalf("ShouldAllowSpawn: %v", err)
	}
	if allowed {
		t.Fatal("expected block at failure threshold inside cooldown")
	}
	if reason == "" {
		t.Fatal("expected a human-readable reason")
	}
}

func TestGateAllowsProbeAfterCooldown(t *testing.T) {
	now := time.Now()
	execs := &fakeExecutions{
		failures: 5,
		latest:   &store.ExecutionRecord{Category: "api", Status: "failed", CreatedAt: now.Add(-45 * time.Minute)},
	}
	g := newGate(testGateConfig(), execs, now)

	allowed, _, err := g.ShouldAllowSpawn(context.Background(), "api", "medium")
	if err != nil {
		t.Fatalf("ShouldAllowSpawn: %v", err)
	}
	if !allowed {
		t.Fatal("expected probe spawn after cooldown elapsed")
	}
}

func TestGateCriticalPriorityBypasses(t *testing.T) {
	now := time.Now()
	execs := &fakeExecutions{
		failures: 10,
		latest:   &store.ExecutionRecord{Category: "api", Status: "failed", CreatedAt: now},
	}
	g := newGate(testGateConfig(), execs, now)

	allowed, _, err := g.ShouldAllowSpawn(context.Background(), "api", "critical")
	if err != nil {
		t.Fatalf("ShouldAllowSpawn: %v", err)
	}
	if !allowed {
		t.Fatal("critical priority must bypass the gate")
	}
}

func TestGateDisabled(t *testing.T) {
	cfg := testGateConfig()
	cfg.Enabled = false
	g := newGate(cfg, &fakeExecutions{failures: 100}, time.Now())

	allowed, _, err := g.ShouldAllowSpawn(context.Background(), "api", "low")
	if err != nil {
		t.Fatalf("ShouldAllowSpawn: %v", err)
	}
	if !allowed {
		t.Fatal("disabled gate must always allow")
	}
}
