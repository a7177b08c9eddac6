package jobs

import (
	"context"
	"time"

	"github.com/scentmatch/scentmatch-backend/internal/logger"
	"github.com/scentmatch/scentmatch-backend/internal/repos"
	"github.com/scentmatch/scentmatch-backend/internal/services"
)

const sweepLockKey = "sweep:recommendation_entries"

// Sweeper is the scheduled lifecycle job: expired recommendation entries
// flip to inactive, and entries inactive past the retention window are
// garbage-collected. Every step is idempotent, so overlapping runs across
// deployments are harmless; the lease just avoids duplicate work.
type Sweeper struct {
	recRepo   repos.RecommendationEntryRepo
	locker    services.LeaseLocker
	log       *logger.Logger
	interval  time.Duration
	retention time.Duration
}

func NewSweeper(recRepo repos.RecommendationEntryRepo, locker services.LeaseLocker, baseLog *logger.Logger, interval, retention time.Duration) *Sweeper {
	return &Sweeper{
		recRepo:   recRepo,
		locker:    locker,
		log:       baseLog.With("component", "Sweeper"),
		interval:  interval,
		retention: retention,
	}
}

func (w *Sweeper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.RunOnce(ctx); err != nil {
					w.log.Warn("Sweep run failed", "error", err)
				}
			}
		}
	}()
}

// RunOnce performs one sweep. Exposed for the one-shot binary and tests.
func (w *Sweeper) RunOnce(ctx context.Context) error {
	token, ok, err := w.locker.Acquire(ctx, sweepLockKey, w.interval)
	if err != nil {
		return err
	}
	if !ok {
		// Another instance holds the sweep; nothing to do.
		return nil
	}
	defer func() {
		if err := w.locker.Release(context.WithoutCancel(ctx), sweepLockKey, token); err != nil {
			w.log.Warn("Failed to release sweep lock", "error", err)
		}
	}()

	now := time.Now().UTC()
	expired, err := w.recRepo.MarkExpiredInactive(ctx, now)
	if err != nil {
		return err
	}
	purged, err := w.recRepo.DeleteInactiveBefore(ctx, now.Add(-w.retention))
	if err != nil {
		return err
	}
	if expired > 0 || purged > 0 {
		w.log.Info("Sweep completed", "expired", expired, "purged", purged)
	}
	return nil
}
