package auth

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

type expirer interface {
	SweepExpired(ctx context.Context) (int, error)
}

// Sweeper runs SweepExpired on a fixed interval until its context ends.
type Sweeper struct {
	target     expirer
	interval   time.Duration
	retryAfter time.Duration
}

func NewSweeper(target expirer, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{target: target, interval: interval, retryAfter: 5 * time.Minute}
}

func (s *Sweeper) Run(ctx context.Context) {
	log.Info().Dur("interval", s.interval).Msg("[auth] session sweeper started")
	for {
		wait := s.interval
		n, err := s.target.SweepExpired(ctx)
		if err != nil {
			log.Error().Err(err).Dur("retry_in", s.retryAfter).Msg("[auth] session sweep failed")
			wait = s.retryAfter
		} else if n > 0 {
			log.Info().Int("deactivated", n).Msg("[auth] expired sessions swept")
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("[auth] session sweeper stopped")
			return
		case <-time.After(wait):
		}
	}
}
