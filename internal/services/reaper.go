package services

import (
	"context"
	"errors"
	"time"

	"ticketing-checkout/internal/models"

	"github.com/rs/zerolog"
)

const reaperBatchSize = 500

// ReaperService cancels pending orders whose hold window has passed
type ReaperService struct {
	orders OrderRepository
	now    func() time.Time
	log    zerolog.Logger
}

// NewReaperService creates a new reaper
func NewReaperService(orders OrderRepository, log zerolog.Logger) *ReaperService {
	return &ReaperService{
		orders: orders,
		now:    time.Now,
		log:    log.With().Str("component", "reaper").Logger(),
	}
}

// CleanupAllExpiredOrders cancels every expired pending order and returns how
// many were cancelled. An order confirmed or extended since it was listed is
// skipped; other per-order failures are logged and do not stop the sweep.
func (s *ReaperService) CleanupAllExpiredOrders(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "reaper.cleanup")
	now := s.now()

	cancelled := 0
	var err error
	defer func() { endSpan(span, err) }()

	for {
		var ids []int
		ids, err = s.orders.ListExpiredPending(ctx, now, reaperBatchSize)
		if err != nil {
			return cancelled, err
		}

		progressed := 0
		for _, id := range ids {
			if ctx.Err() != nil {
				err = ctx.Err()
				return cancelled, err
			}
			cerr := s.orders.CancelIfExpired(ctx, id, now)
			switch {
			case cerr == nil:
				cancelled++
				progressed++
			case errors.Is(cerr, models.ErrInvalidTransition), errors.Is(cerr, models.ErrOrderNotFound):
				s.log.Debug().Int("order_id", id).Msg("order no longer expired, skipped")
			default:
				s.log.Error().Err(cerr).Int("order_id", id).Msg("failed to cancel expired order")
			}
		}

		// A short or stuck batch means nothing more can be swept this run.
		if len(ids) < reaperBatchSize || progressed == 0 {
			break
		}
	}

	if cancelled > 0 {
		s.log.Info().Int("cancelled", cancelled).Msg("expired orders cancelled")
	}
	return cancelled, nil
}

// Run sweeps on every tick until ctx is done. A non-positive interval
// disables the loop.
func (s *ReaperService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", interval).Msg("reaper started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("reaper stopped")
			return
		case <-ticker.C:
			if _, err := s.CleanupAllExpiredOrders(ctx); err != nil && ctx.Err() == nil {
				s.log.Error().Err(err).Msg("reaper sweep failed")
			}
		}
	}
}
