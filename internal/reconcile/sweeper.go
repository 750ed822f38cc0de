// Package reconcile settles payments whose STK callback never arrived.
package reconcile

import (
	"context"
	"time"

	"quickpay/config"

	"go.uber.org/zap"
)

// Reconciler resolves pending payments created before cutoff and reports how many it resolved.
type Reconciler interface {
	ReconcileStale(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

type Sweeper struct {
	rec    Reconciler
	cfg    config.ReconcileConfig
	logger *zap.Logger
	now    func() time.Time
}

func NewSweeper(rec Reconciler, cfg config.ReconcileConfig, logger *zap.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Sweeper{
		rec:    rec,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "reconcile")),
		now:    time.Now,
	}
}

// Run sweeps every Interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	s.logger.Info("reconciliation sweep started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Duration("pending_after", s.cfg.PendingAfter))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reconciliation sweep stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

func (s *Sweeper) SweepOnce(ctx context.Context) int {
	cutoff := s.now().Add(-s.cfg.PendingAfter)
	n, err := s.rec.ReconcileStale(ctx, cutoff, s.cfg.BatchSize)
	if err != nil {
		s.logger.Error("reconciliation sweep failed", zap.Error(err))
		return 0
	}
	if n > 0 {
		s.logger.Info("stale payments resolved", zap.Int("count", n))
	}
	return n
}
