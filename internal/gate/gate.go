// Package gate decides whether new agent spawns are allowed for a task
// category based on recent execution health. A category that keeps failing
// is cooled down instead of burning budget on doomed spawns.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bytemill/overseer/internal/config"
	"github.com/bytemill/overseer/internal/log"
	"github.com/bytemill/overseer/internal/store"
)

// Executions is the slice of the session store the gate consumes.
type Executions interface {
	CountRecentFailures(ctx context.Context, category string, since time.Time) (int, error)
	LatestExecution(ctx context.Context, category string) (*store.ExecutionRecord, error)
}

// BuildHealth gates spawns per category with a failure threshold and cooldown.
type BuildHealth struct {
	cfg    config.GateConfig
	execs  Executions
	logger *slog.Logger
	now    func() time.Time
}

func New(cfg config.GateConfig, execs Executions) *BuildHealth {
	return &BuildHealth{
		cfg:    cfg,
		execs:  execs,
		logger: log.WithComponent("gate"),
		now:    time.Now,
	}
}

// ShouldAllowSpawn reports whether a spawn for the given category/priority
// may proceed. Critical-priority work bypasses the gate: it is usually the
// fix for whatever is failing.
func (g *BuildHealth) ShouldAllowSpawn(ctx context.Context, category, priority string) (bool, string, error) {
	if !g.cfg.Enabled {
		return true, "", nil
	}
	if priority == "critical" {
		return true, "", nil
	}

	since := g.now().Add(-g.cfg.Lookback)
	failures, err := g.execs.CountRecentFailures(ctx, category, since)
	if err != nil {
		return false, "", fmt.Errorf("count recent failures: %w", err)
	}
	if failures < g.cfg.FailureThreshold {
		return true, "", nil
	}

	latest, err := g.execs.LatestExecution(ctx, category)
	if err != nil {
		return false, "", fmt.Errorf("latest execution: %w", err)
	}
	if latest != nil && g.now().Sub(latest.CreatedAt) >= g.cfg.Cooldown {
		// Cooldown elapsed: let one spawn probe whether the category recovered.
		g.logger.Info("gate cooldown elapsed, allowing probe spawn", "category", category)
		return true, "", nil
	}

	reason := fmt.Sprintf("build health gate: %d recent failures for category %q (threshold %d), cooling down",
		failures, category, g.cfg.FailureThreshold)
	g.logger.Warn("spawn blocked by build health gate",
		"category", category,
		"priority", priority,
		"failures", failures,
	)
	return false, reason, nil
}
