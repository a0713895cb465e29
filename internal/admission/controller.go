package admission

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bytemill/overseer/internal/events"
	"github.com/bytemill/overseer/internal/log"
)

// Upstream response headers advertising the account's rate limit tier.
const (
	headerRequestsLimit = "anthropic-ratelimit-requests-limit"
	headerTokensLimit   = "anthropic-ratelimit-tokens-limit"
)

// Controller enforces sliding-window request/token limits and a concurrency
// cap with two-phase reservations. All ledger mutations happen under one
// mutex so a concurrent caller can never observe capacity between the check
// and the reserve.
type Controller struct {
	mu sync.Mutex

	cfg      Config
	detected DetectedLimits

	reservations map[string]*Reservation
	window       []SpawnRecord
	active       int
	reserved     int

	hub    *events.Hub
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Controller. hub may be nil when event publication is not
// wanted (tests, embedded use).
func New(cfg Config, hub *events.Hub) *Controller {
	def := DefaultConfig()
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.MaxRequestsPerMinute <= 0 {
		cfg.MaxRequestsPerMinute = def.MaxRequestsPerMinute
	}
	if cfg.MaxTokensPerMinute <= 0 {
		cfg.MaxTokensPerMinute = def.MaxTokensPerMinute
	}
	if cfg.SlidingWindow <= 0 {
		cfg.SlidingWindow = def.SlidingWindow
	}
	if cfg.StaleRecordRetention <= 0 {
		cfg.StaleRecordRetention = def.StaleRecordRetention
	}
	if cfg.SafetyMargin <= 0 || cfg.SafetyMargin > 1 {
		cfg.SafetyMargin = def.SafetyMargin
	}

	return &Controller{
		cfg:          cfg,
		reservations: make(map[string]*Reservation),
		hub:          hub,
		logger:       log.WithComponent("admission"),
		now:          time.Now,
	}
}

// CanSpawnAndReserve atomically checks all limits and, if they allow, creates
// a reservation and a provisional window entry tagged with the estimate.
func (c *Controller) CanSpawnAndReserve(estimatedTokens int) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.pruneLocked(now)

	concurrent := c.active + c.reserved
	if concurrent >= c.cfg.MaxConcurrent {
		return c.denyLocked(fmt.Sprintf(
			"Concurrent limit reached: %d/%d sessions in flight", concurrent, c.cfg.MaxConcurrent))
	}

	requests := 0
	tokens := 0
	for _, rec := range c.window {
		if rec.CountsAsRequest {
			requests++
		}
		tokens += rec.TokenCount
	}

	if requests >= c.cfg.MaxRequestsPerMinute {
		return c.denyLocked(fmt.Sprintf(
			"Sliding-window request limit reached: %d/%d requests in the last %s",
			requests, c.cfg.MaxRequestsPerMinute, c.cfg.SlidingWindow))
	}

	if tokens+estimatedTokens > c.cfg.MaxTokensPerMinute {
		return c.denyLocked(fmt.Sprintf(
			"Sliding-window token limit would be exceeded: %d in window + %d estimated > %d",
			tokens, estimatedTokens, c.cfg.MaxTokensPerMinute))
	}

	res := &Reservation{
		ID:              uuid.NewString(),
		EstimatedTokens: estimatedTokens,
		State:           StateReserved,
		CreatedAt:       now,
	}
	c.reservations[res.ID] = res
	c.reserved++
	c.window = append(c.window, SpawnRecord{
		Timestamp:       now,
		TokenCount:      estimatedTokens,
		CountsAsRequest: true,
		ReservationID:   res.ID,
		Provisional:     true,
	})

	c.logger.Debug("reservation granted",
		"reservation_id", res.ID,
		"estimated_tokens", estimatedTokens,
		"concurrent", concurrent+1,
	)
	return Decision{Allowed: true, ReservationID: res.ID}
}

func (c *Controller) denyLocked(reason string) Decision {
	c.logger.Debug("admission denied", "reason", reason)
	if c.hub != nil {
		c.hub.Publish(events.TypeAdmissionDenied, map[string]any{"reason": reason})
	}
	return Decision{Allowed: false, Reason: reason}
}

// ConfirmSpawnStart transitions a reservation from reserved to active once
// the process is known to be running.
func (c *Controller) ConfirmSpawnStart(reservationID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, ok := c.reservations[reservationID]
	if !ok {
		return fmt.Errorf("unknown reservation %q", reservationID)
	}
	if res.State != StateReserved {
		return fmt.Errorf("reservation %q is %s, expected %s", reservationID, res.State, StateReserved)
	}

	res.State = StateActive
	if c.reserved > 0 {
		c.reserved--
	}
	c.active++
	return nil
}

// RecordSpawnEnd records actual token usage for a finished spawn. The first
// call replaces the provisional window entry with actual tokens and
// decrements the active counter; repeated calls for the same reservation are
// complete no-ops.
func (c *Controller) RecordSpawnEnd(reservationID string, actualTokens int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, ok := c.reservations[reservationID]
	if !ok || res.State == StateCompleted || res.State == StateReleased {
		return
	}

	switch res.State {
	case StateActive:
		if c.active > 0 {
			c.active--
		}
	case StateReserved:
		// Spawn ended without a confirmed start; resolve the reserved slot.
		if c.reserved > 0 {
			c.reserved--
		}
	}
	res.State = StateCompleted

	for i := range c.window {
		if c.window[i].ReservationID == reservationID && c.window[i].Provisional {
			c.window[i].TokenCount = actualTokens
			c.window[i].Provisional = false
			break
		}
	}

	c.logger.Debug("spawn end recorded",
		"reservation_id", reservationID,
		"actual_tokens", actualTokens,
	)
}

// ReleaseReservation resolves a reservation whose spawn never started,
// removing its provisional window entry so the estimate does not count
// against the token window.
func (c *Controller) ReleaseReservation(reservationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, ok := c.reservations[reservationID]
	if !ok || res.State != StateReserved {
		return
	}

	res.State = StateReleased
	if c.reserved > 0 {
		c.reserved--
	}

	for i := range c.window {
		if c.window[i].ReservationID == reservationID {
			c.window = append(c.window[:i], c.window[i+1:]...)
			break
		}
	}
}

// DetectLimitsFromHeaders derives operating limits from upstream response
// headers, scaled down by the safety margin. The first call that carries
// both limit headers wins; all later calls are ignored.
func (c *Controller) DetectLimitsFromHeaders(headers map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.detected.Detected {
		return
	}

	requests, okReq := headerInt(headers, headerRequestsLimit, "requests")
	tokens, okTok := headerInt(headers, headerTokensLimit, "tokens")
	if !okReq || !okTok {
		return
	}

	c.cfg.MaxRequestsPerMinute = int(math.Floor(float64(requests) * c.cfg.SafetyMargin))
	c.cfg.MaxTokensPerMinute = int(math.Floor(float64(tokens) * c.cfg.SafetyMargin))
	c.detected = DetectedLimits{
		Detected:          true,
		RequestsPerMinute: c.cfg.MaxRequestsPerMinute,
		TokensPerMinute:   c.cfg.MaxTokensPerMinute,
	}

	c.logger.Info("rate limit tier detected",
		"requests_per_minute", c.cfg.MaxRequestsPerMinute,
		"tokens_per_minute", c.cfg.MaxTokensPerMinute,
		"safety_margin", c.cfg.SafetyMargin,
	)
	if c.hub != nil {
		c.hub.Publish(events.TypeLimitsDetected, c.detected)
	}
}

// headerInt finds a header by canonical name or short alias, case-insensitively.
func headerInt(headers map[string]string, canonical, alias string) (int, bool) {
	for k, v := range headers {
		lk := strings.ToLower(strings.TrimSpace(k))
		if lk == canonical || lk == alias {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil || n <= 0 {
				return 0, false
			}
			return n, true
		}
	}
	return 0, false
}

// GetStats returns a read-only snapshot of current usage.
func (c *Controller) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked(c.now())
	return c.statsLocked()
}

func (c *Controller) statsLocked() Stats {
	requests := 0
	tokens := 0
	for _, rec := range c.window {
		if rec.CountsAsRequest {
			requests++
		}
		tokens += rec.TokenCount
	}

	s := Stats{
		ActiveSessions:    c.active,
		ReservedSessions:  c.reserved,
		MaxConcurrent:     c.cfg.MaxConcurrent,
		RequestsInWindow:  requests,
		MaxRequestsPerMin: c.cfg.MaxRequestsPerMinute,
		TokensInWindow:    tokens,
		MaxTokensPerMin:   c.cfg.MaxTokensPerMinute,
		LimitsDetected:    c.detected.Detected,
	}
	if s.MaxRequestsPerMin > 0 {
		s.RequestUtilization = float64(requests) / float64(s.MaxRequestsPerMin)
	}
	if s.MaxTokensPerMin > 0 {
		s.TokenUtilization = float64(tokens) / float64(s.MaxTokensPerMin)
	}
	return s
}

// GetDebugInfo returns the raw window and reservation ledger.
func (c *Controller) GetDebugInfo() DebugInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	info := DebugInfo{
		Stats:  c.statsLocked(),
		Window: make([]SpawnRecord, len(c.window)),
	}
	copy(info.Window, c.window)
	for _, res := range c.reservations {
		info.Reservations = append(info.Reservations, *res)
	}
	return info
}

// Reset clears all ledger state. Detected limits are cleared too; the next
// upstream response re-detects them.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reservations = make(map[string]*Reservation)
	c.window = nil
	c.active = 0
	c.reserved = 0
	c.detected = DetectedLimits{}
}

// StartSweeper launches a background retention sweep so window memory stays
// bounded even when no admission checks arrive. Returns immediately; the
// sweep goroutine exits when ctx is done.
func (c *Controller) StartSweeper(ctx context.Context) {
	go c.sweepLoop(ctx)
}

func (c *Controller) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.StaleRecordRetention)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			before := len(c.window)
			c.pruneLocked(c.now())
			c.sweepReservationsLocked()
			pruned := before - len(c.window)
			c.mu.Unlock()
			if pruned > 0 {
				c.logger.Debug("retention sweep pruned window records", "pruned", pruned)
			}
		}
	}
}

// pruneLocked drops window entries older than the sliding window, judged by
// elapsed wall-clock time from each record's timestamp. No calendar-minute
// alignment: a burst just before and just after a minute boundary still
// shares one window.
func (c *Controller) pruneLocked(now time.Time) {
	cutoff := now.Add(-c.cfg.SlidingWindow)
	keep := c.window[:0]
	for _, rec := range c.window {
		if rec.Timestamp.After(cutoff) {
			keep = append(keep, rec)
		}
	}
	c.window = keep
}

// sweepReservationsLocked drops terminal reservations older than the
// retention horizon so the ledger map stays bounded.
func (c *Controller) sweepReservationsLocked() {
	cutoff := c.now().Add(-c.cfg.StaleRecordRetention)
	for id, res := range c.reservations {
		if (res.State == StateCompleted || res.State == StateReleased) && res.CreatedAt.Before(cutoff) {
			delete(c.reservations, id)
		}
	}
}
