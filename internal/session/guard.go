package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/assessly/proctor/internal/model"
)

// Signal is one raw integrity event observed in the candidate's
// environment (focus loss, fullscreen exit, devtools shortcut, clipboard
// use). Signals carry no state of their own; they only feed the policy.
type Signal struct {
	Type model.ViolationType
	At   time.Time
}

// SignalSource streams environment signals while a session is active.
// The host (browser bridge, terminal harness, test fake) owns detection;
// the guard set owns subscription lifetime.
type SignalSource interface {
	Signals() <-chan Signal
}

// Countermeasure is a best-effort environment countermeasure (suppress
// clipboard, block shortcut keys, re-enter fullscreen). Install returns a
// restore function that must undo everything the countermeasure changed.
// Countermeasures hold no session state.
type Countermeasure interface {
	Name() string
	Install() (restore func(), err error)
}

// GuardSet installs countermeasures and forwards environment signals into
// a handler for as long as the session is active. Activation and teardown
// are strictly scoped: Deactivate restores every installed countermeasure
// and stops the forwarding loop, leaving no process-wide state behind.
type GuardSet struct {
	mu sync.Mutex

	log      zerolog.Logger
	source   SignalSource
	measures []Countermeasure

	cancel   context.CancelFunc
	restores []func()
}

// NewGuardSet creates an inactive guard set. source may be nil when the
// host provides no signal stream.
func NewGuardSet(source SignalSource, measures []Countermeasure, log zerolog.Logger) *GuardSet {
	return &GuardSet{
		log:      log.With().Str("component", "guards").Logger(),
		source:   source,
		measures: measures,
	}
}

// Activate installs all countermeasures and starts forwarding signals to
// handle. A countermeasure that fails to install (e.g. fullscreen denied
// without a user gesture) is logged and skipped; the attempt proceeds.
// Activating an already-active set is a no-op.
func (g *GuardSet) Activate(handle func(Signal)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		return
	}

	for _, m := range g.measures {
		restore, err := m.Install()
		if err != nil {
			g.log.Warn().Err(err).Str("countermeasure", m.Name()).Msg("Install failed, continuing without it")
			continue
		}
		g.restores = append(g.restores, restore)
	}

	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel

	if g.source == nil {
		return
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-g.source.Signals():
				if !ok {
					return
				}
				handle(sig)
			}
		}
	}()
}

// Deactivate stops signal forwarding and restores every installed
// countermeasure, in reverse install order. Safe to call repeatedly,
// including from within the forwarding loop itself (a terminate verdict
// arrives through a signal).
func (g *GuardSet) Deactivate() {
	g.mu.Lock()
	if g.cancel == nil {
		g.mu.Unlock()
		return
	}
	g.cancel()
	g.cancel = nil
	restores := g.restores
	g.restores = nil
	g.mu.Unlock()

	for i := len(restores) - 1; i >= 0; i-- {
		restores[i]()
	}
}
