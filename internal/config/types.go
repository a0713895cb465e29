package config

import "time"

// Config represents the complete overseer configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	State     StateConfig     `yaml:"state"`
	API       APIConfig       `yaml:"api,omitempty"`
	Agent     AgentConfig     `yaml:"agent"`
	Admission AdmissionConfig `yaml:"admission"`
	Budget    BudgetConfig    `yaml:"budget,omitempty"`
	Gate      GateConfig      `yaml:"gate,omitempty"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	LockPath  string `yaml:"lock_path"`
}

// StateConfig defines state storage settings.
type StateConfig struct {
	Path string `yaml:"path"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	APIKey  string `yaml:"api_key"`
}

// AgentConfig defines how external agent processes are launched and supervised.
type AgentConfig struct {
	Executable            string        `yaml:"executable"`
	ModelFallbackChain    []string      `yaml:"model_fallback_chain"`
	MaxConcurrentSessions int           `yaml:"max_concurrent_sessions"`
	PerSessionTimeout     time.Duration `yaml:"per_session_timeout"`
	HeartbeatInterval     time.Duration `yaml:"heartbeat_interval"`
}

// AdmissionConfig defines sliding-window rate limiting settings.
type AdmissionConfig struct {
	MaxRequestsPerMinute int           `yaml:"max_requests_per_minute"`
	MaxTokensPerMinute   int           `yaml:"max_tokens_per_minute"`
	SlidingWindow        time.Duration `yaml:"sliding_window"`
	StaleRecordRetention time.Duration `yaml:"stale_record_retention"`
	SafetyMargin         float64       `yaml:"safety_margin"`
}

// BudgetConfig defines the daily token budget.
type BudgetConfig struct {
	DailyTokenBudget int  `yaml:"daily_token_budget"`
	PauseAtLimit     bool `yaml:"pause_at_limit"`
}

// GateConfig defines the build-health spawn gate.
type GateConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
	Lookback         time.Duration `yaml:"lookback"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "overseer",
			LogLevel:  "info",
			LogFormat: "json",
			LockPath:  "./data/overseer.lock",
		},
		State: StateConfig{
			Path: "./data/state.db",
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8090",
		},
		Agent: AgentConfig{
			Executable:            "claude",
			ModelFallbackChain:    []string{"claude-opus-4", "claude-sonnet-4", "claude-haiku-4"},
			MaxConcurrentSessions: 8,
			PerSessionTimeout:     300 * time.Second,
			HeartbeatInterval:     10 * time.Second,
		},
		Admission: AdmissionConfig{
			MaxRequestsPerMinute: 50,
			MaxTokensPerMinute:   40000,
			SlidingWindow:        60 * time.Second,
			StaleRecordRetention: 300 * time.Second,
			SafetyMargin:         0.7,
		},
		Budget: BudgetConfig{
			DailyTokenBudget: 0, // 0 disables enforcement
			PauseAtLimit:     false,
		},
		Gate: GateConfig{
			Enabled:          true,
			FailureThreshold: 3,
			Cooldown:         30 * time.Minute,
			Lookback:         2 * time.Hour,
		},
	}
}
