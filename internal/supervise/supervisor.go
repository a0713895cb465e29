package supervise

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bytemill/overseer/internal/admission"
	"github.com/bytemill/overseer/internal/classify"
	"github.com/bytemill/overseer/internal/config"
	"github.com/bytemill/overseer/internal/events"
	"github.com/bytemill/overseer/internal/log"
	"github.com/bytemill/overseer/internal/store"
)

const defaultExpectedOutputTokens = 4000

// liveSession is one running agent process in the supervisor's registry.
type liveSession struct {
	id        string
	taskID    string
	agentID   string
	model     string
	startedAt time.Time

	// cancel tears down the session context: process termination plus the
	// heartbeat and timeout tasks, all together.
	cancel context.CancelFunc
	killed atomic.Bool
}

// Supervisor launches, times out, heartbeats, classifies, and retries agent
// executions across the model fallback chain. The running-session map is the
// single shared structure; every mutation is serialized by mu.
type Supervisor struct {
	mu      sync.Mutex
	running map[string]*liveSession

	cfg        *config.Config
	adm        *admission.Controller
	runner     AgentRunner
	classifier classify.Classifier

	tasks    TaskStore
	agents   AgentStore
	sessions SessionStore
	budget   BudgetTracker
	gate     BuildHealthGate
	notify   NotificationSink
	hub      *events.Hub

	logger *slog.Logger
}

// Deps bundles the supervisor's collaborators.
type Deps struct {
	Admission  *admission.Controller
	Runner     AgentRunner
	Classifier classify.Classifier
	Tasks      TaskStore
	Agents     AgentStore
	Sessions   SessionStore
	Budget     BudgetTracker
	Gate       BuildHealthGate
	Notify     NotificationSink
	Hub        *events.Hub
}

// New creates a Supervisor. Runner and Classifier default to the production
// implementations when nil.
func New(cfg *config.Config, deps Deps) *Supervisor {
	logger := log.WithComponent("supervise")
	if deps.Runner == nil {
		deps.Runner = NewExecRunner(logger)
	}
	if deps.Classifier == nil {
		deps.Classifier = classify.NewRuleSet()
	}
	return &Supervisor{
		running:    make(map[string]*liveSession),
		cfg:        cfg,
		adm:        deps.Admission,
		runner:     deps.Runner,
		classifier: deps.Classifier,
		tasks:      deps.Tasks,
		agents:     deps.Agents,
		sessions:   deps.Sessions,
		budget:     deps.Budget,
		gate:       deps.Gate,
		notify:     deps.Notify,
		hub:        deps.Hub,
		logger:     logger,
	}
}

// SpawnAgentSession runs one task through the model fallback chain. It
// blocks until a terminal outcome: success, a non-transient failure, or
// chain exhaustion.
func (s *Supervisor) SpawnAgentSession(ctx context.Context, opts SpawnOptions) SpawnResult {
	taskLogger := s.logger.With("task_id", opts.TaskID, "agent_id", opts.AgentID)

	// Pre-checks, in order. Each failure is a hard deny with no launch.
	if !s.CanSpawnMore() {
		return SpawnResult{Error: fmt.Sprintf(
			"Concurrent session limit reached (%d)", s.cfg.Agent.MaxConcurrentSessions)}
	}

	if denied, reason := s.budgetExceeded(ctx); denied {
		s.publish(events.TypeBudgetExceeded, map[string]any{"task_id": opts.TaskID, "reason": reason})
		return SpawnResult{Error: reason}
	}

	task, err := s.tasks.GetTask(ctx, opts.TaskID)
	if err != nil {
		return SpawnResult{Error: fmt.Sprintf("task lookup failed: %v", err)}
	}

	allowed, reason, err := s.gate.ShouldAllowSpawn(ctx, task.Category, task.Priority)
	if err != nil {
		return SpawnResult{Error: fmt.Sprintf("build health check failed: %v", err)}
	}
	if !allowed {
		s.publish(events.TypeGateBlocked, map[string]any{"task_id": opts.TaskID, "reason": reason})
		return SpawnResult{Error: reason}
	}

	if !s.runner.Available(s.cfg.Agent.Executable) {
		return SpawnResult{Error: fmt.Sprintf("agent executable %q not available", s.cfg.Agent.Executable)}
	}

	// Model fallback loop: only rate-limit-classified failures advance the
	// chain; anything else is terminal immediately.
	chain := s.chainFrom(opts.Model)
	for i, model := range chain {
		result, outcome := s.executeOnce(ctx, opts, task, model, taskLogger)
		if outcome.Kind != classify.RateLimited {
			return result
		}

		taskLogger.Warn("model rate limited",
			"model", model,
			"marker", outcome.Marker,
			"remaining_fallbacks", len(chain)-i-1,
		)
		if i < len(chain)-1 {
			s.publish(events.TypeSessionFallback, map[string]any{
				"task_id": opts.TaskID,
				"from":    model,
				"to":      chain[i+1],
			})
		}
	}

	reason = "All models in fallback chain rate limited"
	if err := s.tasks.FailTask(ctx, opts.TaskID, reason); err != nil {
		taskLogger.Error("failed to mark task failed", "error", err)
	}
	s.notify.TaskFailed(opts.TaskID, opts.AgentID, reason)
	return SpawnResult{Error: reason}
}

// chainFrom returns the fallback chain starting at model, or the whole chain
// when model is empty or not configured.
func (s *Supervisor) chainFrom(model string) []string {
	chain := s.cfg.Agent.ModelFallbackChain
	if model == "" {
		return chain
	}
	for i, m := range chain {
		if m == model {
			return chain[i:]
		}
	}
	// Unlisted model: try it once, then fall back through the whole chain.
	return append([]string{model}, chain...)
}

func (s *Supervisor) budgetExceeded(ctx context.Context) (bool, string) {
	if s.cfg.Budget.DailyTokenBudget <= 0 || !s.cfg.Budget.PauseAtLimit {
		return false, ""
	}
	usage, err := s.budget.GetDailyUsage(ctx)
	if err != nil {
		s.logger.Error("failed to read daily usage", "error", err)
		return false, ""
	}
	if usage >= s.cfg.Budget.DailyTokenBudget {
		return true, fmt.Sprintf("Daily token budget exceeded: %d/%d", usage, s.cfg.Budget.DailyTokenBudget)
	}
	return false, ""
}

// executeOnce performs one single-shot execution against one model. The
// returned outcome kind is RateLimited only for transient failures that
// should advance the fallback chain.
func (s *Supervisor) executeOnce(
	ctx context.Context,
	opts SpawnOptions,
	task *store.Task,
	model string,
	taskLogger *slog.Logger,
) (SpawnResult, classify.Outcome) {
	sessionID := uuid.NewString()
	sessLogger := taskLogger.With("session_id", sessionID, "model", model)
	startedAt := time.Now().UTC()

	prompt := buildPrompt(task, opts.PromptContext)
	expected := opts.ExpectedOutputTokens
	if expected <= 0 {
		expected = defaultExpectedOutputTokens
	}
	estimate := admission.EstimateTokens(prompt, "", expected)

	decision := s.adm.CanSpawnAndReserve(estimate)
	if !decision.Allowed {
		sessLogger.Warn("admission denied", "reason", decision.Reason)
		s.publish(events.TypeAdmissionDenied, map[string]any{
			"task_id": opts.TaskID,
			"model":   model,
			"reason":  decision.Reason,
		})
		return SpawnResult{SessionID: sessionID, Model: model, Error: decision.Reason},
			classify.Outcome{Kind: classify.Failed}
	}
	reservationID := decision.ReservationID

	if err := s.sessions.CreateSession(ctx, store.Session{
		ID:        sessionID,
		TaskID:    opts.TaskID,
		AgentID:   opts.AgentID,
		Model:     model,
		Status:    SessionRunning,
		StartedAt: startedAt,
	}); err != nil {
		s.adm.ReleaseReservation(reservationID)
		return SpawnResult{SessionID: sessionID, Model: model, Error: fmt.Sprintf("create session: %v", err)},
			classify.Outcome{Kind: classify.Failed}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.cfg.Agent.PerSessionTimeout
	}

	// One context owns the process, the timeout, and the heartbeat. Any
	// terminal transition cancels all three together.
	sessCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	live := &liveSession{
		id:        sessionID,
		taskID:    opts.TaskID,
		agentID:   opts.AgentID,
		model:     model,
		startedAt: startedAt,
		cancel:    cancel,
	}
	s.mu.Lock()
	s.running[sessionID] = live
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, sessionID)
		s.mu.Unlock()
	}()

	started := false
	onStart := func() {
		started = true
		if err := s.adm.ConfirmSpawnStart(reservationID); err != nil {
			sessLogger.Error("failed to confirm spawn start", "error", err)
		}
		go s.heartbeatLoop(sessCtx, opts.AgentID, sessLogger)

		if err := s.agents.UpdateAgentStatus(ctx, opts.AgentID, "working"); err != nil {
			sessLogger.Error("failed to update agent status", "error", err)
		}
		if err := s.tasks.UpdateTaskStatus(ctx, opts.TaskID, "in_progress", &opts.AgentID); err != nil {
			sessLogger.Error("failed to update task status", "error", err)
		}
		s.notify.AgentSpawned(opts.AgentID, opts.TaskID, model)
		s.publish(events.TypeSessionSpawned, map[string]any{
			"session_id": sessionID,
			"task_id":    opts.TaskID,
			"agent_id":   opts.AgentID,
			"model":      model,
		})
		sessLogger.Info("agent session started", "timeout", timeout, "estimated_tokens", estimate)
	}

	runResult, runErr := s.runner.Run(sessCtx, RunRequest{
		Executable: s.cfg.Agent.Executable,
		Model:      model,
		Prompt:     prompt,
	}, onStart)

	if !started {
		// The process never launched; the reservation was never activated.
		s.adm.ReleaseReservation(reservationID)
		reason := fmt.Sprintf("process launch failed: %v", runErr)
		s.finalizeSession(ctx, live, SessionFailed, &reason)
		s.failTerminal(ctx, opts, reason, sessLogger)
		return SpawnResult{SessionID: sessionID, Model: model, Error: reason},
			classify.Outcome{Kind: classify.Failed}
	}

	// Report actual usage: prompt plus whatever the agent wrote back.
	actualTokens := admission.EstimateTokens(prompt, "", 0) +
		admission.EstimateTokens(runResult.Output, "", 0)
	s.adm.RecordSpawnEnd(reservationID, actualTokens)
	if err := s.budget.RecordUsage(ctx, actualTokens); err != nil {
		sessLogger.Error("failed to record budget usage", "error", err)
	}

	duration := time.Since(startedAt)

	// A kill counts only when it actually interrupted the run. KillSession
	// can land after the process already exited naturally (the entry stays
	// in the running map until the deferred delete); that outcome belongs
	// to the process, not the operator.
	if live.killed.Load() && errors.Is(runErr, context.Canceled) {
		reason := "session terminated by operator"
		s.finalizeSession(ctx, live, SessionTerminated, &reason)
		s.appendExecution(ctx, opts, sessionID, task, model, execTerminated, nil, prompt, runResult.Output, duration, &reason)
		s.failTerminal(ctx, opts, reason, sessLogger)
		s.publish(events.TypeSessionTerminated, map[string]any{"session_id": sessionID})
		return SpawnResult{SessionID: sessionID, Model: model, Output: runResult.Output, Error: reason},
			classify.Outcome{Kind: classify.Failed}
	}

	if runResult.TimedOut {
		reason := fmt.Sprintf("session timed out after %s", timeout)
		sessLogger.Warn("session timeout", "timeout", timeout)
		s.finalizeSession(ctx, live, SessionTimeout, &reason)
		s.appendExecution(ctx, opts, sessionID, task, model, execTimeout, nil, prompt, runResult.Output, duration, &reason)
		s.failTerminal(ctx, opts, reason, sessLogger)
		s.publish(events.TypeSessionTimeout, map[string]any{"session_id": sessionID, "timeout": timeout.String()})
		return SpawnResult{SessionID: sessionID, Model: model, Output: runResult.Output, Error: reason},
			classify.Outcome{Kind: classify.Failed}
	}

	if runErr != nil {
		reason := fmt.Sprintf("process error: %v", runErr)
		s.finalizeSession(ctx, live, SessionFailed, &reason)
		s.appendExecution(ctx, opts, sessionID, task, model, execFailed, nil, prompt, runResult.Output, duration, &reason)
		s.failTerminal(ctx, opts, reason, sessLogger)
		return SpawnResult{SessionID: sessionID, Model: model, Output: runResult.Output, Error: reason},
			classify.Outcome{Kind: classify.Failed}
	}

	outcome := s.classifier.Classify(runResult.Output, runResult.ExitCode)
	exitCode := runResult.ExitCode

	switch outcome.Kind {
	case classify.RateLimited:
		// Transient: the attempt's session record closes, the task stays
		// alive for the next model in the chain.
		reason := fmt.Sprintf("rate limited on %s (%s)", model, outcome.Marker)
		s.finalizeSession(ctx, live, SessionFailed, &reason)
		s.appendExecution(ctx, opts, sessionID, task, model, execRateLimited, &exitCode, prompt, runResult.Output, duration, &reason)
		return SpawnResult{SessionID: sessionID, Model: model, Output: runResult.Output, Error: reason}, outcome

	case classify.Completed:
		files := s.classifier.FilesModified(runResult.Output)
		s.finalizeSession(ctx, live, SessionCompleted, nil)
		s.appendExecution(ctx, opts, sessionID, task, model, execCompleted, &exitCode, prompt, runResult.Output, duration, nil)

		if err := s.tasks.UpdateTaskStatus(ctx, opts.TaskID, "completed", nil); err != nil {
			sessLogger.Error("failed to mark task completed", "error", err)
		}
		if err := s.agents.IncrementTasksCompleted(ctx, opts.AgentID); err != nil {
			sessLogger.Error("failed to increment completion counter", "error", err)
		}
		if err := s.agents.UpdateAgentStatus(ctx, opts.AgentID, "idle"); err != nil {
			sessLogger.Error("failed to update agent status", "error", err)
		}
		s.notify.TaskCompleted(opts.TaskID, opts.AgentID, files)
		s.publish(events.TypeSessionCompleted, map[string]any{
			"session_id": sessionID,
			"task_id":    opts.TaskID,
			"files":      len(files),
		})
		if len(files) > 0 {
			s.publish(events.TypeSessionAutoCommit, map[string]any{
				"session_id": sessionID,
				"task_id":    opts.TaskID,
				"files":      files,
			})
		}

		sessLogger.Info("agent session completed", "files_modified", len(files), "duration", duration)
		return SpawnResult{
			Success:       true,
			SessionID:     sessionID,
			Model:         model,
			Output:        runResult.Output,
			FilesModified: files,
		}, outcome

	default:
		reason := fmt.Sprintf("agent reported failure (exit %d)", exitCode)
		if outcome.Marker != "" {
			reason = fmt.Sprintf("agent reported failure (%s, exit %d)", outcome.Marker, exitCode)
		}
		s.finalizeSession(ctx, live, SessionFailed, &reason)
		s.appendExecution(ctx, opts, sessionID, task, model, execFailed, &exitCode, prompt, runResult.Output, duration, &reason)
		s.failTerminal(ctx, opts, reason, sessLogger)
		return SpawnResult{SessionID: sessionID, Model: model, Output: runResult.Output, Error: reason}, outcome
	}
}

// finalizeSession persists the session's terminal status. The live-map entry
// is removed by executeOnce's deferred cleanup; the session context was
// already cancelled or is about to be by the deferred cancel.
func (s *Supervisor) finalizeSession(ctx context.Context, live *liveSession, status string, reason *string) {
	if err := s.sessions.UpdateSessionStatus(ctx, live.id, status, reason); err != nil {
		s.logger.Error("failed to update session status",
			"session_id", live.id, "status", status, "error", err)
	}
}

func (s *Supervisor) failTerminal(ctx context.Context, opts SpawnOptions, reason string, logger *slog.Logger) {
	if err := s.tasks.FailTask(ctx, opts.TaskID, reason); err != nil {
		logger.Error("failed to mark task failed", "error", err)
	}
	if err := s.agents.IncrementTasksFailed(ctx, opts.AgentID); err != nil {
		logger.Error("failed to increment failure counter", "error", err)
	}
	if err := s.agents.UpdateAgentStatus(ctx, opts.AgentID, "idle"); err != nil {
		logger.Error("failed to update agent status", "error", err)
	}
	s.notify.TaskFailed(opts.TaskID, opts.AgentID, reason)
	s.publish(events.TypeSessionFailed, map[string]any{"task_id": opts.TaskID, "reason": reason})
}

func (s *Supervisor) appendExecution(
	ctx context.Context,
	opts SpawnOptions,
	sessionID string,
	task *store.Task,
	model, status string,
	exitCode *int,
	prompt, output string,
	duration time.Duration,
	lastError *string,
) {
	rec := store.ExecutionRecord{
		SessionID:    sessionID,
		TaskID:       opts.TaskID,
		AgentID:      opts.AgentID,
		Model:        model,
		Category:     task.Category,
		Status:       status,
		ExitCode:     exitCode,
		InputTokens:  admission.EstimateTokens(prompt, "", 0),
		OutputTokens: admission.EstimateTokens(output, "", 0),
		Duration:     duration,
		LastError:    lastError,
	}
	if err := s.sessions.AppendExecution(ctx, rec); err != nil {
		s.logger.Error("failed to append execution record", "session_id", sessionID, "error", err)
	}
}

// heartbeatLoop refreshes the owning agent's liveness signal while the
// session runs. Exits when the session context is done.
func (s *Supervisor) heartbeatLoop(ctx context.Context, agentID string, logger *slog.Logger) {
	interval := s.cfg.Agent.HeartbeatInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Heartbeats outlive ctx's deadline semantics deliberately: the
			// write uses a short independent timeout.
			hbCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.agents.UpdateHeartbeat(hbCtx, agentID); err != nil {
				logger.Error("heartbeat update failed", "error", err)
			}
			cancel()
		}
	}
}

// KillSession signals termination for a live session. Returns false when no
// such session is running. Safe to race with natural completion: whichever
// finishes first wins and the loser is a no-op.
func (s *Supervisor) KillSession(id string) bool {
	s.mu.Lock()
	live, ok := s.running[id]
	s.mu.Unlock()
	if !ok {
		return false
	}

	live.killed.Store(true)
	live.cancel()
	s.logger.Info("kill requested", "session_id", id)
	return true
}

// RunningSessions returns a snapshot of live sessions.
func (s *Supervisor) RunningSessions() []SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SessionInfo, 0, len(s.running))
	for _, live := range s.running {
		out = append(out, SessionInfo{
			ID:        live.id,
			TaskID:    live.taskID,
			AgentID:   live.agentID,
			Model:     live.model,
			StartedAt: live.startedAt,
		})
	}
	return out
}

// RunningCount returns the number of live sessions.
func (s *Supervisor) RunningCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

// CanSpawnMore reports whether the concurrency pre-check would pass.
func (s *Supervisor) CanSpawnMore() bool {
	return s.RunningCount() < s.cfg.Agent.MaxConcurrentSessions
}

// RecoverOrphanedSessions marks sessions left running by a previous process
// as failed. Called once at daemon startup, before any new spawns.
func (s *Supervisor) RecoverOrphanedSessions(ctx context.Context) error {
	orphans, err := s.sessions.FindByStatus(ctx, SessionRunning)
	if err != nil {
		return fmt.Errorf("find orphaned sessions: %w", err)
	}
	for _, sess := range orphans {
		reason := "orphaned at startup"
		s.logger.Warn("recovering orphaned session", "session_id", sess.ID, "task_id", sess.TaskID)
		if err := s.sessions.UpdateSessionStatus(ctx, sess.ID, SessionFailed, &reason); err != nil {
			s.logger.Error("failed to recover orphaned session", "session_id", sess.ID, "error", err)
		}
	}
	return nil
}

func (s *Supervisor) publish(eventType string, data any) {
	if s.hub != nil {
		s.hub.Publish(eventType, data)
	}
}

const rolePreamble = `You are an autonomous coding agent. Work on exactly one task.
Make the smallest change that satisfies the task. When finished, print
TASK_COMPLETE on its own line, or TASK_FAILED with a short reason if you
could not finish. List every file you changed as "Modified: <path>".`

// buildPrompt assembles the full prompt from the role template, the task
// content, and any caller-supplied context.
func buildPrompt(task *store.Task, extra string) string {
	var b strings.Builder
	b.WriteString(rolePreamble)
	b.WriteString("\n\n## Task\n")
	b.WriteString(task.Title)
	b.WriteString("\n")
	fmt.Fprintf(&b, "\nCategory: %s\nPriority: %s\n", task.Category, task.Priority)
	if extra != "" {
		b.WriteString("\n## Context\n")
		b.WriteString(extra)
		b.WriteString("\n")
	}
	return b.String()
}
