package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bytemill/overseer/internal/pipeline"
	"github.com/bytemill/overseer/internal/store"
	"github.com/bytemill/overseer/internal/supervise"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:            "ok",
		UptimeSeconds:     int64(time.Since(s.startedAt).Seconds()),
		RunningSessions:   len(s.supervisor.RunningSessions()),
		ConfigFingerprint: s.config.ConfigFingerprint,
	})
}

func (s *Server) handleSpawnSession(w http.ResponseWriter, r *http.Request) {
	var req SpawnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.TaskID == "" {
		s.writeError(w, http.StatusBadRequest, "task_id is required")
		return
	}
	if req.AgentID == "" {
		s.writeError(w, http.StatusBadRequest, "agent_id is required")
		return
	}

	opts := supervise.SpawnOptions{
		TaskID:               req.TaskID,
		AgentID:              req.AgentID,
		Model:                req.Model,
		Timeout:              time.Duration(req.TimeoutSeconds) * time.Second,
		ExpectedOutputTokens: req.ExpectedOutputTokens,
	}

	// A spawn blocks through the whole fallback chain; run it detached and
	// let clients follow /events or /sessions.
	go func() {
		result := s.supervisor.SpawnAgentSession(context.Background(), opts)
		if !result.Success {
			s.logger.Warn("spawn finished with error",
				"task_id", req.TaskID, "error", result.Error)
		}
	}()

	respondJSON(w, http.StatusAccepted, SpawnResponse{
		TaskID:  req.TaskID,
		AgentID: req.AgentID,
		Status:  "accepted",
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	live := s.supervisor.RunningSessions()
	out := make([]SessionResponse, 0, len(live))
	for _, sess := range live {
		out = append(out, SessionResponse{
			ID:        sess.ID,
			TaskID:    sess.TaskID,
			AgentID:   sess.AgentID,
			Model:     sess.Model,
			StartedAt: sess.StartedAt,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleKillSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if !s.supervisor.KillSession(id) {
		s.writeError(w, http.StatusNotFound, "no running session with that id")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"session_id": id,
		"status":     "terminating",
	})
}

func (s *Server) handleAdmissionStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.adm.GetStats())
}

func (s *Server) handleAdmissionDebug(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.adm.GetDebugInfo())
}

// handleReportLimits lets an integration that sees upstream rate-limit
// response headers feed them into the admission controller. Detection is
// write-once; reporting again is harmless.
func (s *Server) handleReportLimits(w http.ResponseWriter, r *http.Request) {
	var headers map[string]string
	if err := json.NewDecoder(r.Body).Decode(&headers); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(headers) == 0 {
		s.writeError(w, http.StatusBadRequest, "no headers provided")
		return
	}
	s.adm.DetectLimitsFromHeaders(headers)
	respondJSON(w, http.StatusOK, s.adm.GetStats())
}

func (s *Server) handleOrchestrate(w http.ResponseWriter, r *http.Request) {
	if s.orch == nil {
		s.writeError(w, http.StatusServiceUnavailable, "pipeline is not configured")
		return
	}

	var spec pipeline.FeatureSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if spec.Feature == "" {
		s.writeError(w, http.StatusBadRequest, "feature is required")
		return
	}
	if len(spec.Layers) == 0 {
		s.writeError(w, http.StatusBadRequest, "at least one layer is required")
		return
	}

	// A run spawns one agent session per layer and can take many minutes;
	// run it detached and let clients follow /events and /runs/{id}.
	go func() {
		run, err := s.orch.Orchestrate(context.Background(), spec)
		if err != nil {
			s.logger.Warn("orchestration rejected", "feature", spec.Feature, "error", err)
			return
		}
		if run.Status != pipeline.RunCompleted {
			s.logger.Warn("orchestration failed", "feature", spec.Feature, "run_id", run.ID, "error", run.Error)
		}
	}()

	respondJSON(w, http.StatusAccepted, OrchestrateResponse{
		Feature: spec.Feature,
		Status:  "accepted",
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "runID")
	run, err := s.runs.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("get run failed", "run_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	respondJSON(w, http.StatusOK, run)
}

func (s *Server) handleGetRunFiles(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "runID")
	files, err := s.runs.GetGeneratedFiles(r.Context(), id)
	if err != nil {
		s.logger.Error("get run files failed", "run_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load run files")
		return
	}
	respondJSON(w, http.StatusOK, files)
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
