package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads and parses configuration from a file, applies defaults for
// unset fields, and validates the result.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg = applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills zero-valued fields that yaml may have blanked out.
func applyDefaults(cfg *Config) *Config {
	def := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = def.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = def.Service.LogLevel
	}
	if cfg.Service.LockPath == "" {
		cfg.Service.LockPath = def.Service.LockPath
	}
	if cfg.State.Path == "" {
		cfg.State.Path = def.State.Path
	}
	if cfg.Agent.Executable == "" {
		cfg.Agent.Executable = def.Agent.Executable
	}
	if len(cfg.Agent.ModelFallbackChain) == 0 {
		cfg.Agent.ModelFallbackChain = def.Agent.ModelFallbackChain
	}
	if cfg.Agent.MaxConcurrentSessions <= 0 {
		cfg.Agent.MaxConcurrentSessions = def.Agent.MaxConcurrentSessions
	}
	if cfg.Agent.PerSessionTimeout <= 0 {
		cfg.Agent.PerSessionTimeout = def.Agent.PerSessionTimeout
	}
	if cfg.Agent.HeartbeatInterval <= 0 {
		cfg.Agent.HeartbeatInterval = def.Agent.HeartbeatInterval
	}
	if cfg.Admission.MaxRequestsPerMinute <= 0 {
		cfg.Admission.MaxRequestsPerMinute = def.Admission.MaxRequestsPerMinute
	}
	if cfg.Admission.MaxTokensPerMinute <= 0 {
		cfg.Admission.MaxTokensPerMinute = def.Admission.MaxTokensPerMinute
	}
	if cfg.Admission.SlidingWindow <= 0 {
		cfg.Admission.SlidingWindow = def.Admission.SlidingWindow
	}
	if cfg.Admission.StaleRecordRetention <= 0 {
		cfg.Admission.StaleRecordRetention = def.Admission.StaleRecordRetention
	}
	if cfg.Admission.SafetyMargin <= 0 {
		cfg.Admission.SafetyMargin = def.Admission.SafetyMargin
	}
	if cfg.Gate.FailureThreshold <= 0 {
		cfg.Gate.FailureThreshold = def.Gate.FailureThreshold
	}
	if cfg.Gate.Cooldown <= 0 {
		cfg.Gate.Cooldown = def.Gate.Cooldown
	}
	if cfg.Gate.Lookback <= 0 {
		cfg.Gate.Lookback = def.Gate.Lookback
	}

	return cfg
}

// Validate checks configuration invariants that defaults cannot repair.
func Validate(cfg *Config) error {
	if cfg.Service.Name == "" {
		return fmt.Errorf("service.name is empty")
	}
	if cfg.State.Path == "" {
		return fmt.Errorf("state.path is empty")
	}
	if cfg.Agent.Executable == "" {
		return fmt.Errorf("agent.executable is empty")
	}
	if len(cfg.Agent.ModelFallbackChain) == 0 {
		return fmt.Errorf("agent.model_fallback_chain is empty")
	}
	seen := make(map[string]bool, len(cfg.Agent.ModelFallbackChain))
	for _, m := range cfg.Agent.ModelFallbackChain {
		if m == "" {
			return fmt.Errorf("agent.model_fallback_chain contains an empty model id")
		}
		if seen[m] {
			return fmt.Errorf("agent.model_fallback_chain contains duplicate model %q", m)
		}
		seen[m] = true
	}
	if cfg.Admission.SafetyMargin <= 0 || cfg.Admission.SafetyMargin > 1 {
		return fmt.Errorf("admission.safety_margin must be in (0, 1], got %v", cfg.Admission.SafetyMargin)
	}
	if cfg.API.Enabled && cfg.API.Listen == "" {
		return fmt.Errorf("api.listen is empty but api.enabled is true")
	}
	if cfg.Budget.DailyTokenBudget < 0 {
		return fmt.Errorf("budget.daily_token_budget must be >= 0")
	}
	return nil
}
