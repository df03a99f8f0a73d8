package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestTimerFiresExactlyOnce(t *testing.T) {
	timer := NewTimer(10*time.Millisecond, 0, zerolog.Nop())
	var fired int32
	timer.Start(time.Now().Add(60*time.Millisecond), func() {
		atomic.AddInt32(&fired, 1)
	})

	// Well past expiry, across many ticks.
	time.Sleep(300 * time.Millisecond)
	if n := atomic.LoadInt32(&fired); n != 1 {
		t.Fatalf("expected exactly one expiry, got %d", n)
	}
}

func TestTimerFiresOnFirstTickForPastDeadline(t *testing.T) {
	timer := NewTimer(10*time.Millisecond, 0, zerolog.Nop())
	var fired int32
	timer.Start(time.Now().Add(-time.Second), func() {
		atomic.AddInt32(&fired, 1)
	})

	time.Sleep(50 * time.Millisecond)
	if n := atomic.LoadInt32(&fired); n != 1 {
		t.Fatalf("expected immediate expiry, got %d fires", n)
	}
}

func TestTimerStopSuppressesExpiry(t *testing.T) {
	timer := NewTimer(10*time.Millisecond, 0, zerolog.Nop())
	var fired int32
	timer.Start(time.Now().Add(100*time.Millisecond), func() {
		atomic.AddInt32(&fired, 1)
	})

	time.Sleep(20 * time.Millisecond)
	timer.Stop()
	time.Sleep(200 * time.Millisecond)

	if n := atomic.LoadInt32(&fired); n != 0 {
		t.Fatalf("expiry fired %d times after Stop", n)
	}
	if r := timer.Remaining(); r != 0 {
		t.Fatalf("stopped timer reports remaining %v", r)
	}
}

func TestTimerRestartCancelsStaleDeadline(t *testing.T) {
	timer := NewTimer(10*time.Millisecond, 0, zerolog.Nop())
	var staleFired, freshFired int32

	timer.Start(time.Now().Add(50*time.Millisecond), func() {
		atomic.AddInt32(&staleFired, 1)
	})
	// The attempt window was refreshed from the server mid-countdown.
	timer.Start(time.Now().Add(300*time.Millisecond), func() {
		atomic.AddInt32(&freshFired, 1)
	})

	time.Sleep(150 * time.Millisecond)
	if n := atomic.LoadInt32(&staleFired); n != 0 {
		t.Fatalf("stale activation fired %d times", n)
	}
	if n := atomic.LoadInt32(&freshFired); n != 0 {
		t.Fatalf("fresh activation fired %d times before its deadline", n)
	}

	time.Sleep(300 * time.Millisecond)
	if n := atomic.LoadInt32(&staleFired); n != 0 {
		t.Fatalf("stale activation fired %d times", n)
	}
	if n := atomic.LoadInt32(&freshFired); n != 1 {
		t.Fatalf("fresh activation fired %d times, want 1", n)
	}
}

func TestTimerLeadFiresBeforeTrueDeadline(t *testing.T) {
	timer := NewTimer(10*time.Millisecond, 400*time.Millisecond, zerolog.Nop())
	var fired int32
	timer.Start(time.Now().Add(500*time.Millisecond), func() {
		atomic.AddInt32(&fired, 1)
	})

	// With a 400ms lead the callback lands around the 100ms mark.
	time.Sleep(300 * time.Millisecond)
	if n := atomic.LoadInt32(&fired); n != 1 {
		t.Fatalf("expected lead expiry before the deadline, got %d fires", n)
	}
}

func TestTimerRemainingNeverNegative(t *testing.T) {
	timer := NewTimer(10*time.Millisecond, 0, zerolog.Nop())
	timer.Start(time.Now().Add(time.Minute), func() {})
	defer timer.Stop()

	r := timer.Remaining()
	if r <= 0 || r > time.Minute {
		t.Fatalf("remaining %v out of range", r)
	}
}

func TestFormatRemaining(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00"},
		{-5 * time.Second, "00:00"},
		{900 * time.Millisecond, "00:00"},
		{59*time.Second + 900*time.Millisecond, "00:59"},
		{65 * time.Second, "01:05"},
		{10 * time.Minute, "10:00"},
		{99 * time.Minute, "99:00"},
	}
	for _, tc := range cases {
		if got := FormatRemaining(tc.in); got != tc.want {
			t.Errorf("FormatRemaining(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
