package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/assessly/proctor/internal/api"
	"github.com/assessly/proctor/internal/model"
)

// PolicyState tracks the violation policy's own small state machine.
type PolicyState string

const (
	PolicyIdle      PolicyState = "idle"
	PolicyReporting PolicyState = "reporting"
	// PolicyHalted is terminal: the session ended through a terminate
	// verdict or a server-side close, and no further violations are
	// accepted.
	PolicyHalted PolicyState = "halted"
)

// reportFunc registers one violation with the backend. The controller
// supplies it, attaching the attempt ID and the current answer snapshot.
type reportFunc func(ctx context.Context, typ model.ViolationType) (*api.EventResult, error)

// ViolationPolicy converts raw environment signals into a de-duplicated,
// rate-limited stream of registered events and enforces the server's
// warn/terminate verdicts. The escalation threshold is server policy; the
// client only reacts to the returned action.
type ViolationPolicy struct {
	mu sync.Mutex

	log      zerolog.Logger
	report   reportFunc
	dedupe   time.Duration
	cooldown time.Duration

	state        PolicyState
	lastAccepted time.Time
	// processing latches while a report is in flight and for the cooldown
	// after it completes, so a burst of signal firings cannot fan out into
	// a burst of duplicate server calls.
	processing bool

	onWarn      func(typ model.ViolationType, violationCount int)
	onTerminate func()
	// onClosed fires when the backend answers 409: the attempt is no
	// longer active server-side and the session must adopt that verdict.
	onClosed func()
}

// NewViolationPolicy creates a policy in the idle state. dedupe is the
// refractory window between accepted violations; cooldown is how long the
// processing latch stays held after a report completes.
func NewViolationPolicy(dedupe, cooldown time.Duration, report reportFunc, log zerolog.Logger) *ViolationPolicy {
	return &ViolationPolicy{
		log:      log.With().Str("component", "violation_policy").Logger(),
		report:   report,
		dedupe:   dedupe,
		cooldown: cooldown,
		state:    PolicyIdle,
	}
}

// SetHandlers wires the outcome callbacks. Must be called before Offer.
func (p *ViolationPolicy) SetHandlers(onWarn func(model.ViolationType, int), onTerminate, onClosed func()) {
	p.onWarn = onWarn
	p.onTerminate = onTerminate
	p.onClosed = onClosed
}

// State returns the policy's current state.
func (p *ViolationPolicy) State() PolicyState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Halt moves the policy to its terminal state, dropping all further
// signals. Called when the session leaves running for any reason.
func (p *ViolationPolicy) Halt() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = PolicyHalted
}

// Offer feeds one raw signal into the policy. It returns true if the
// signal was accepted and reported. Signals are dropped while halted,
// while a report is in flight or cooling down, and within the refractory
// window of the previous accepted violation (a single user action can
// fire several browser events near-simultaneously; they count as one).
func (p *ViolationPolicy) Offer(ctx context.Context, typ model.ViolationType) bool {
	p.mu.Lock()
	if p.state == PolicyHalted || p.processing {
		p.mu.Unlock()
		return false
	}
	now := time.Now()
	if !p.lastAccepted.IsZero() && now.Sub(p.lastAccepted) < p.dedupe {
		p.mu.Unlock()
		return false
	}
	p.lastAccepted = now
	p.processing = true
	p.state = PolicyReporting
	p.mu.Unlock()

	res, err := p.report(ctx, typ)
	p.resolve(typ, res, err)

	// Release the latch after the cooldown so a subsequent genuine
	// violation can be attempted, whether or not this one reported.
	time.AfterFunc(p.cooldown, func() {
		p.mu.Lock()
		p.processing = false
		if p.state == PolicyReporting {
			p.state = PolicyIdle
		}
		p.mu.Unlock()
	})

	return true
}

func (p *ViolationPolicy) resolve(typ model.ViolationType, res *api.EventResult, err error) {
	if err != nil {
		if errors.Is(err, api.ErrConflict) {
			p.log.Warn().Str("type", string(typ)).Msg("Attempt closed server-side during violation report")
			p.Halt()
			if p.onClosed != nil {
				p.onClosed()
			}
			return
		}
		// Best-effort reporting: a failed report is dropped from the
		// server's perspective. No escalation, no automatic retry.
		p.log.Error().Err(err).Str("type", string(typ)).Msg("Violation report failed")
		return
	}

	p.log.Info().
		Str("type", string(typ)).
		Str("action", string(res.Action)).
		Int("violation_count", res.ViolationCount).
		Msg("Violation registered")

	switch res.Action {
	case model.ActionTerminate:
		p.Halt()
		if p.onTerminate != nil {
			p.onTerminate()
		}
	default:
		if p.onWarn != nil {
			p.onWarn(typ, res.ViolationCount)
		}
	}
}
