package admission

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bytemill/overseer/internal/log"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR") // Suppress logs in tests
	os.Exit(m.Run())
}

// fakeClock lets tests move wall-clock time explicitly.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestController(cfg Config) (*Controller, *fakeClock) {
	c := New(cfg, nil)
	clock := newFakeClock()
	c.now = clock.Now
	return c, clock
}

func TestConcurrentLimitDenial(t *testing.T) {
	c, _ := newTestController(Config{MaxConcurrent: 2})

	d1 := c.CanSpawnAndReserve(100)
	d2 := c.CanSpawnAndReserve(100)
	require.True(t, d1.Allowed)
	require.True(t, d2.Allowed)

	d3 := c.CanSpawnAndReserve(100)
	assert.False(t, d3.Allowed)
	assert.Contains(t, d3.Reason, "Concurrent limit")
	assert.Empty(t, d3.ReservationID)

	// Releasing a never-started reservation frees the slot.
	c.ReleaseReservation(d1.ReservationID)
	d4 := c.CanSpawnAndReserve(100)
	assert.True(t, d4.Allowed)
}

func TestRequestLimitSlidingWindow(t *testing.T) {
	c, clock := newTestController(Config{
		MaxConcurrent:        1000,
		MaxRequestsPerMinute: 35,
		MaxTokensPerMinute:   1 << 30,
		SlidingWindow:        60 * time.Second,
	})

	// 35 requests admitted at t=3s.
	clock.Advance(3 * time.Second)
	for i := 0; i < 35; i++ {
		d := c.CanSpawnAndReserve(10)
		require.True(t, d.Allowed, "request %d should be admitted", i)
	}

	// 36th request at t=59s is denied.
	clock.Advance(56 * time.Second)
	d := c.CanSpawnAndReserve(10)
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "request limit")

	// Re-issued at t=61s: still within 60s of the admitted burst, still denied.
	// Calendar-minute boundary gaming does not help.
	clock.Advance(2 * time.Second)
	d = c.CanSpawnAndReserve(10)
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "request limit")

	// Re-issued at t=122s the whole burst has aged out.
	clock.Advance(61 * time.Second)
	d = c.CanSpawnAndReserve(10)
	assert.True(t, d.Allowed)
}

func TestTokenLimitDenial(t *testing.T) {
	c, _ := newTestController(Config{
		MaxConcurrent:        100,
		MaxRequestsPerMinute: 100,
		MaxTokensPerMinute:   28000,
	})

	d := c.CanSpawnAndReserve(20000)
	require.True(t, d.Allowed)

	// 20000 + 9000 > 28000: denied.
	d2 := c.CanSpawnAndReserve(9000)
	assert.False(t, d2.Allowed)
	assert.Contains(t, d2.Reason, "token limit")

	// 20000 + 7000 <= 28000: allowed.
	d3 := c.CanSpawnAndReserve(7000)
	assert.True(t, d3.Allowed)
}

func TestReservationLifecycle(t *testing.T) {
	c, _ := newTestController(Config{MaxConcurrent: 4})

	d := c.CanSpawnAndReserve(500)
	require.True(t, d.Allowed)

	stats := c.GetStats()
	assert.Equal(t, 0, stats.ActiveSessions)
	assert.Equal(t, 1, stats.ReservedSessions)

	require.NoError(t, c.ConfirmSpawnStart(d.ReservationID))
	stats = c.GetStats()
	assert.Equal(t, 1, stats.ActiveSessions)
	assert.Equal(t, 0, stats.ReservedSessions)

	// Confirming twice is an error: the transition already happened.
	assert.Error(t, c.ConfirmSpawnStart(d.ReservationID))

	c.RecordSpawnEnd(d.ReservationID, 450)
	stats = c.GetStats()
	assert.Equal(t, 0, stats.ActiveSessions)
	assert.Equal(t, 450, stats.TokensInWindow)
}

func TestRecordSpawnEndIdempotent(t *testing.T) {
	c, _ := newTestController(Config{MaxConcurrent: 4})

	d := c.CanSpawnAndReserve(500)
	require.True(t, d.Allowed)
	require.NoError(t, c.ConfirmSpawnStart(d.ReservationID))

	c.RecordSpawnEnd(d.ReservationID, 600)
	c.RecordSpawnEnd(d.ReservationID, 600)
	c.RecordSpawnEnd(d.ReservationID, 9999)

	stats := c.GetStats()
	// Active decremented exactly once, floored at zero.
	assert.Equal(t, 0, stats.ActiveSessions)
	assert.Equal(t, 0, stats.ReservedSessions)
	// Window tokens recorded exactly once: at-most-once accounting.
	assert.Equal(t, 600, stats.TokensInWindow)
}

func TestRecordSpawnEndUnknownReservation(t *testing.T) {
	c, _ := newTestController(Config{MaxConcurrent: 4})

	// Must not underflow counters.
	c.RecordSpawnEnd("nonexistent", 100)
	stats := c.GetStats()
	assert.Equal(t, 0, stats.ActiveSessions)
	assert.Equal(t, 0, stats.ReservedSessions)
}

func TestReleaseRemovesWindowEntry(t *testing.T) {
	c, _ := newTestController(Config{
		MaxConcurrent:      10,
		MaxTokensPerMinute: 1000,
	})

	d := c.CanSpawnAndReserve(900)
	require.True(t, d.Allowed)
	assert.Equal(t, 900, c.GetStats().TokensInWindow)

	c.ReleaseReservation(d.ReservationID)
	stats := c.GetStats()
	assert.Equal(t, 0, stats.TokensInWindow)
	assert.Equal(t, 0, stats.RequestsInWindow)
	assert.Equal(t, 0, stats.ReservedSessions)

	// Releasing twice is a no-op.
	c.ReleaseReservation(d.ReservationID)
	assert.Equal(t, 0, c.GetStats().ReservedSessions)
}

func TestDetectLimitsFromHeadersWriteOnce(t *testing.T) {
	c, _ := newTestController(Config{SafetyMargin: 0.7})

	c.DetectLimitsFromHeaders(map[string]string{
		"anthropic-ratelimit-requests-limit": "50",
		"anthropic-ratelimit-tokens-limit":   "40000",
	})

	stats := c.GetStats()
	assert.True(t, stats.LimitsDetected)
	assert.Equal(t, 35, stats.MaxRequestsPerMin)
	assert.Equal(t, 28000, stats.MaxTokensPerMin)

	// A later call with different values is ignored.
	c.DetectLimitsFromHeaders(map[string]string{
		"anthropic-ratelimit-requests-limit": "100",
		"anthropic-ratelimit-tokens-limit":   "80000",
	})
	stats = c.GetStats()
	assert.Equal(t, 35, stats.MaxRequestsPerMin)
	assert.Equal(t, 28000, stats.MaxTokensPerMin)
}

func TestDetectLimitsMissingFieldIgnored(t *testing.T) {
	c, _ := newTestController(Config{SafetyMargin: 0.7})

	c.DetectLimitsFromHeaders(map[string]string{
		"anthropic-ratelimit-requests-limit": "50",
	})

	stats := c.GetStats()
	assert.False(t, stats.LimitsDetected)
	assert.Equal(t, DefaultConfig().MaxRequestsPerMinute, stats.MaxRequestsPerMin)
	assert.Equal(t, DefaultConfig().MaxTokensPerMinute, stats.MaxTokensPerMin)

	// Short-form header names are recognized too; detection still requires both.
	c.DetectLimitsFromHeaders(map[string]string{
		"requests": "50",
		"tokens":   "40000",
	})
	assert.True(t, c.GetStats().LimitsDetected)
}

func TestConcurrencyInvariantUnderContention(t *testing.T) {
	const maxConcurrent = 5
	c, _ := newTestController(Config{
		MaxConcurrent:        maxConcurrent,
		MaxRequestsPerMinute: 1 << 20,
		MaxTokensPerMinute:   1 << 30,
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			d := c.CanSpawnAndReserve(10)
			if !d.Allowed {
				return
			}

			// Invariant: active + reserved never exceeds the cap.
			stats := c.GetStats()
			assert.LessOrEqual(t, stats.ActiveSessions+stats.ReservedSessions, maxConcurrent)

			switch n % 3 {
			case 0:
				c.ReleaseReservation(d.ReservationID)
			case 1:
				_ = c.ConfirmSpawnStart(d.ReservationID)
				c.RecordSpawnEnd(d.ReservationID, 10)
			default:
				_ = c.ConfirmSpawnStart(d.ReservationID)
				c.RecordSpawnEnd(d.ReservationID, 10)
				c.RecordSpawnEnd(d.ReservationID, 10)
			}
		}(i)
	}
	wg.Wait()

	stats := c.GetStats()
	assert.Equal(t, 0, stats.ActiveSessions)
	assert.Equal(t, 0, stats.ReservedSessions)
	assert.GreaterOrEqual(t, stats.ActiveSessions, 0)
	assert.GreaterOrEqual(t, stats.ReservedSessions, 0)
}

func TestWindowPruneBoundsMemory(t *testing.T) {
	c, clock := newTestController(Config{
		MaxConcurrent:        1000,
		MaxRequestsPerMinute: 1000,
		MaxTokensPerMinute:   1 << 30,
		SlidingWindow:        60 * time.Second,
	})

	for i := 0; i < 10; i++ {
		d := c.CanSpawnAndReserve(10)
		require.True(t, d.Allowed)
		c.RecordSpawnEnd(d.ReservationID, 10)
	}
	assert.Len(t, c.GetDebugInfo().Window, 10)

	clock.Advance(2 * time.Minute)
	c.GetStats() // stats path prunes expired records
	assert.Empty(t, c.GetDebugInfo().Window)
}

func TestStartSweeperRunsInBackground(t *testing.T) {
	c, clock := newTestController(Config{
		MaxConcurrent:        4,
		SlidingWindow:        time.Second,
		StaleRecordRetention: 10 * time.Millisecond,
	})

	d := c.CanSpawnAndReserve(100)
	require.True(t, d.Allowed)
	require.NoError(t, c.ConfirmSpawnStart(d.ReservationID))
	c.RecordSpawnEnd(d.ReservationID, 80)

	// Everything is now stale relative to both retention cutoffs.
	clock.Advance(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	returned := make(chan struct{})
	go func() {
		c.StartSweeper(ctx)
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("StartSweeper did not return with a live context")
	}

	// GetDebugInfo never prunes, so an empty ledger can only come from the
	// background sweep.
	require.Eventually(t, func() bool {
		info := c.GetDebugInfo()
		return len(info.Window) == 0 && len(info.Reservations) == 0
	}, 2*time.Second, 10*time.Millisecond, "background sweep never pruned the ledger")
}

func TestReset(t *testing.T) {
	c, _ := newTestController(Config{MaxConcurrent: 4})

	d := c.CanSpawnAndReserve(100)
	require.True(t, d.Allowed)
	require.NoError(t, c.ConfirmSpawnStart(d.ReservationID))

	c.Reset()

	stats := c.GetStats()
	assert.Equal(t, 0, stats.ActiveSessions)
	assert.Equal(t, 0, stats.ReservedSessions)
	assert.Equal(t, 0, stats.TokensInWindow)
	assert.Empty(t, c.GetDebugInfo().Reservations)
}

func TestGetDebugInfoSnapshot(t *testing.T) {
	c, _ := newTestController(Config{MaxConcurrent: 4})

	d := c.CanSpawnAndReserve(250)
	require.True(t, d.Allowed)

	info := c.GetDebugInfo()
	require.Len(t, info.Window, 1)
	assert.True(t, info.Window[0].Provisional)
	assert.Equal(t, 250, info.Window[0].TokenCount)
	require.Len(t, info.Reservations, 1)
	assert.Equal(t, StateReserved, info.Reservations[0].State)

	// Mutating the snapshot must not leak into the ledger.
	info.Window[0].TokenCount = 0
	assert.Equal(t, 250, c.GetDebugInfo().Window[0].TokenCount)
}

func TestUtilizationStats(t *testing.T) {
	c, _ := newTestController(Config{
		MaxConcurrent:        10,
		MaxRequestsPerMinute: 10,
		MaxTokensPerMinute:   1000,
	})

	for i := 0; i < 5; i++ {
		d := c.CanSpawnAndReserve(100)
		require.True(t, d.Allowed, fmt.Sprintf("reserve %d", i))
	}

	stats := c.GetStats()
	assert.InDelta(t, 0.5, stats.RequestUtilization, 1e-9)
	assert.InDelta(t, 0.5, stats.TokenUtilization, 1e-9)
}
