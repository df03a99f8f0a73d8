package stubserver

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper periodically flips running attempts past their deadline to
// auto_submitted, so expiry is observed even when no request touches the
// attempt. Lazy expiry on the read path remains the correctness backstop;
// the sweeper just bounds the staleness window.
type Sweeper struct {
	store    *Store
	interval time.Duration
	log      zerolog.Logger
}

// NewSweeper creates a sweeper over the store.
func NewSweeper(store *Store, interval time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		log:      log.With().Str("component", "expiry_sweeper").Logger(),
	}
}

// Start begins the sweep loop. Call in a goroutine; it exits when ctx is
// cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	s.log.Info().Dur("interval", s.interval).Msg("Sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Sweeper stopped")
			return
		case <-ticker.C:
			if expired := s.store.ExpireOverdue(); expired > 0 {
				s.log.Info().Int("count", expired).Msg("Expired overdue attempts")
			}
		}
	}
}
