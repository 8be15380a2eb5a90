package pending

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/openfabric/pipeliner/internal/models"
)

// GroupQuerier answers whether the backend already installed a group.
// Reconciliation only; the primary success path is the event stream.
type GroupQuerier interface {
	GetGroup(ctx context.Context, key models.GroupKey) (*models.GroupRecord, error)
}

// Sweeper periodically checks pending keys against the backend and
// resolves the ones whose group already exists. The backend's creation
// events carry no delivery guarantee, so the sweep is the correctness
// backstop that keeps a missed event from turning into a spurious lease
// failure.
type Sweeper struct {
	tracker  *Tracker
	groups   GroupQuerier
	interval time.Duration
	limiter  *rate.Limiter
}

// sweepBurst bounds how many backend queries one sweep may issue without
// waiting on the limiter.
const sweepBurst = 16

func NewSweeper(tracker *Tracker, groups GroupQuerier, interval time.Duration, queryRate rate.Limit) *Sweeper {
	return &Sweeper{
		tracker:  tracker,
		groups:   groups,
		interval: interval,
		limiter:  rate.NewLimiter(queryRate, sweepBurst),
	}
}

func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		s.sweep(ctx)
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	for _, key := range s.tracker.PendingKeys() {
		err := s.limiter.Wait(ctx)
		if errors.Is(err, context.Canceled) {
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("unexpected limiter error during sweep")
			return
		}
		record, err := s.groups.GetGroup(ctx, key)
		if err != nil {
			log.Warn().Err(err).Msgf("sweep failed to query group %s", key)
			continue
		}
		if record == nil {
			continue
		}
		log.Debug().Msgf("sweep observed group %s before its event", key)
		s.tracker.NotifyCreated(ctx, key)
	}
}
