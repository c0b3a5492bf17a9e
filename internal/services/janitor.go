package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-changingroom-backend/internal/repo"
)

// Janitor runs periodic housekeeping: it removes transferred baskets after
// their display grace period, drops expired idempotency records, and
// reports sessions that have stayed open longer than StaleAfter.
type Janitor struct {
	DB      *gorm.DB
	Baskets *BasketService
	Now     Clock

	Interval    time.Duration
	BasketGrace time.Duration
	StaleAfter  time.Duration
}

// Run sweeps once immediately and then every Interval until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	interval := j.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	log.Info().Dur("interval", interval).Msg("janitor started")

	j.Sweep(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			j.Sweep(ctx)
		case <-ctx.Done():
			log.Info().Msg("janitor stopped")
			return
		}
	}
}

// SweepReport summarizes one sweep.
type SweepReport struct {
	BasketsPurged      int
	IdempotencyPurged  int64
	StaleSessionsFound int
}

// Sweep performs one housekeeping pass. Errors are logged and the remaining
// steps still run.
func (j *Janitor) Sweep(ctx context.Context) SweepReport {
	var rep SweepReport
	now := j.Now.now()

	if j.Baskets != nil && j.BasketGrace > 0 {
		n, err := j.Baskets.PurgeTransferred(ctx, j.BasketGrace)
		if err != nil {
			log.Error().Err(err).Msg("janitor: purge transferred baskets")
		}
		rep.BasketsPurged = n
	}

	n, err := repo.PurgeExpiredReplays(ctx, j.DB, now)
	if err != nil {
		log.Error().Err(err).Msg("janitor: purge idempotency records")
	}
	rep.IdempotencyPurged = n

	if j.StaleAfter > 0 {
		stale, err := repo.ListOpenSessionsBefore(ctx, j.DB, now.Add(-j.StaleAfter), 100)
		if err != nil {
			log.Error().Err(err).Msg("janitor: list stale sessions")
		}
		for _, s := range stale {
			log.Warn().
				Str("session_id", s.ID).
				Str("store_id", s.StoreID).
				Str("tag", s.Tag).
				Str("status", string(s.Status)).
				Dur("open_for", now.Sub(s.EntryTime)).
				Msg("stale open session")
		}
		rep.StaleSessionsFound = len(stale)
	}

	if rep.BasketsPurged > 0 || rep.IdempotencyPurged > 0 {
		log.Info().
			Int("baskets_purged", rep.BasketsPurged).
			Int64("idempotency_purged", rep.IdempotencyPurged).
			Msg("janitor sweep")
	}
	return rep
}
