package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
service:
  name: overseer-test
state:
  path: ./data/test.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Service.Name != "overseer-test" {
		t.Fatalf("service.name = %q, want overseer-test", cfg.Service.Name)
	}
	if cfg.Agent.Executable != "claude" {
		t.Fatalf("agent.executable = %q, want default claude", cfg.Agent.Executable)
	}
	if len(cfg.Agent.ModelFallbackChain) != 3 {
		t.Fatalf("fallback chain = %v, want 3 defaults", cfg.Agent.ModelFallbackChain)
	}
	if cfg.Admission.MaxRequestsPerMinute != 50 || cfg.Admission.MaxTokensPerMinute != 40000 {
		t.Fatalf("admission defaults not applied: %+v", cfg.Admission)
	}
	if cfg.Admission.SlidingWindow != 60*time.Second {
		t.Fatalf("sliding window = %v, want 60s", cfg.Admission.SlidingWindow)
	}
}

func TestLoadExplicitValuesWin(t *testing.T) {
	path := writeConfig(t, `
service:
  name: overseer
state:
  path: ./data/test.db
agent:
  executable: claude
  model_fallback_chain: [big, small]
  max_concurrent_sessions: 2
  per_session_timeout: 30s
admission:
  max_requests_per_minute: 10
  safety_margin: 0.5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Agent.MaxConcurrentSessions != 2 {
		t.Fatalf("max_concurrent_sessions = %d, want 2", cfg.Agent.MaxConcurrentSessions)
	}
	if cfg.Agent.PerSessionTimeout != 30*time.Second {
		t.Fatalf("per_session_timeout = %v, want 30s", cfg.Agent.PerSessionTimeout)
	}
	if cfg.Admission.MaxRequestsPerMinute != 10 {
		t.Fatalf("max_requests_per_minute = %d, want 10", cfg.Admission.MaxRequestsPerMinute)
	}
	if cfg.Admission.SafetyMargin != 0.5 {
		t.Fatalf("safety_margin = %v, want 0.5", cfg.Admission.SafetyMargin)
	}
	if len(cfg.Agent.ModelFallbackChain) != 2 || cfg.Agent.ModelFallbackChain[0] != "big" {
		t.Fatalf("fallback chain = %v", cfg.Agent.ModelFallbackChain)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateRejectsDuplicateModels(t *testing.T) {
	cfg := Defaults()
	cfg.Agent.ModelFallbackChain = []string{"opus", "sonnet", "opus"}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected duplicate model error")
	}
}

func TestValidateRejectsEmptyModel(t *testing.T) {
	cfg := Defaults()
	cfg.Agent.ModelFallbackChain = []string{"opus", ""}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected empty model error")
	}
}

func TestValidateRejectsBadSafetyMargin(t *testing.T) {
	for _, margin := range []float64{-0.1, 0, 1.5} {
		cfg := Defaults()
		cfg.Admission.SafetyMargin = margin
		if err := Validate(cfg); err == nil {
			t.Fatalf("expected error for safety margin %v", margin)
		}
	}
}

func TestValidateRejectsAPIEnabledWithoutListen(t *testing.T) {
	cfg := Defaults()
	cfg.API.Enabled = true
	cfg.API.Listen = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for enabled API without listen address")
	}
}
