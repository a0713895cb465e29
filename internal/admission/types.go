package admission

import "time"

// ReservationState tracks a reservation through its lifecycle. Transitions
// are strictly ordered: reserved -> active -> completed, or reserved -> released.
type ReservationState string

const (
	StateReserved  ReservationState = "reserved"
	StateActive    ReservationState = "active"
	StateReleased  ReservationState = "released"
	StateCompleted ReservationState = "completed"
)

// Reservation is a provisional grant of execution capacity, exclusively
// owned by the controller's ledger until it reaches a terminal state.
type Reservation struct {
	ID              string
	EstimatedTokens int
	State           ReservationState
	CreatedAt       time.Time
}

// SpawnRecord is one entry in the sliding usage window. Provisional records
// carry the token estimate until RecordSpawnEnd replaces it with actual usage.
type SpawnRecord struct {
	Timestamp       time.Time
	TokenCount      int
	CountsAsRequest bool
	ReservationID   string
	Provisional     bool
}

// Decision is the synchronous result of an admission check. Denials are
// values, never errors.
type Decision struct {
	Allowed       bool
	ReservationID string
	Reason        string
}

// DetectedLimits records upstream-advertised rate limits. Write-once per
// controller lifetime.
type DetectedLimits struct {
	Detected          bool
	RequestsPerMinute int
	TokensPerMinute   int
}

// Stats is a read-only snapshot of controller state.
type Stats struct {
	ActiveSessions     int     `json:"active_sessions"`
	ReservedSessions   int     `json:"reserved_sessions"`
	MaxConcurrent      int     `json:"max_concurrent"`
	RequestsInWindow   int     `json:"requests_in_window"`
	MaxRequestsPerMin  int     `json:"max_requests_per_minute"`
	TokensInWindow     int     `json:"tokens_in_window"`
	MaxTokensPerMin    int     `json:"max_tokens_per_minute"`
	RequestUtilization float64 `json:"request_utilization"`
	TokenUtilization   float64 `json:"token_utilization"`
	LimitsDetected     bool    `json:"limits_detected"`
}

// DebugInfo exposes the raw ledger for diagnostics.
type DebugInfo struct {
	Stats        Stats         `json:"stats"`
	Window       []SpawnRecord `json:"window"`
	Reservations []Reservation `json:"reservations"`
}

// Config holds the controller's limits. Request/token limits may later be
// tightened by DetectLimitsFromHeaders.
type Config struct {
	MaxConcurrent        int
	MaxRequestsPerMinute int
	MaxTokensPerMinute   int
	SlidingWindow        time.Duration
	StaleRecordRetention time.Duration
	SafetyMargin         float64
}

// DefaultConfig returns conservative defaults used before tier detection.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:        8,
		MaxRequestsPerMinute: 50,
		MaxTokensPerMinute:   40000,
		SlidingWindow:        60 * time.Second,
		StaleRecordRetention: 300 * time.Second,
		SafetyMargin:         0.7,
	}
}
