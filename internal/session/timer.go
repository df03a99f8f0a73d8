package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Timer counts down to a fixed absolute deadline and fires an expiry
// callback at most once per activation. Remaining time is recomputed from
// the deadline on every tick rather than decremented, so time lost to a
// throttled or suspended host self-corrects instead of accumulating drift.
type Timer struct {
	mu sync.Mutex

	log      zerolog.Logger
	interval time.Duration
	// lead fires expiry slightly before true zero so the auto-submit call
	// has a head start against the hard deadline.
	lead time.Duration

	// generation invalidates callbacks from a superseded activation, e.g.
	// when the attempt window is refreshed from the server mid-countdown.
	generation int
	deadline   time.Time
	active     bool
	fired      bool
	cancel     context.CancelFunc
}

// NewTimer creates a Timer. interval controls tick cadence; lead is the
// fixed head start before the true deadline at which expiry fires.
func NewTimer(interval, lead time.Duration, log zerolog.Logger) *Timer {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &Timer{
		log:      log.With().Str("component", "timer").Logger(),
		interval: interval,
		lead:     lead,
	}
}

// Start activates the timer against deadline, invalidating any previous
// activation. onExpired is invoked exactly once, on the first tick at
// which the remaining time is within the configured lead of zero — which
// is the first tick if the deadline is already in the past.
func (t *Timer) Start(deadline time.Time, onExpired func()) {
	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
	}
	t.generation++
	gen := t.generation
	t.deadline = deadline
	t.active = true
	t.fired = false

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.mu.Unlock()

	t.log.Debug().Time("deadline", deadline).Int("generation", gen).Msg("Timer activated")

	go t.run(ctx, gen, deadline, onExpired)
}

func (t *Timer) run(ctx context.Context, gen int, deadline time.Time, onExpired func()) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		if t.expire(gen, deadline) {
			onExpired()
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// expire checks the deadline and claims the single expiry slot for this
// generation. It returns true once the caller should fire the callback;
// a stale generation or a stopped timer never fires.
func (t *Timer) expire(gen int, deadline time.Time) bool {
	if time.Until(deadline) > t.lead {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.generation || !t.active || t.fired {
		return false
	}
	t.fired = true
	t.active = false
	t.log.Info().Int("generation", gen).Msg("Deadline reached")
	return true
}

// Stop deactivates the timer. No expiry callback fires after Stop returns,
// other than one already in flight on another goroutine.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = false
	t.generation++
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// Remaining returns the time left until the deadline, never negative.
// An inactive timer reports zero.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return 0
	}
	if r := time.Until(t.deadline); r > 0 {
		return r
	}
	return 0
}

// FormatRemaining renders a duration as MM:SS, floored, never negative.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
