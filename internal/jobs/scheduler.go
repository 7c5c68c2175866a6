// Package jobs runs the background maintenance tasks of the store.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/safar/storefront/internal/config"
	"github.com/safar/storefront/internal/service"
	"go.uber.org/zap"
)

type Reconciler interface {
	Reconcile(ctx context.Context, cutoff time.Time) (service.ReconcileReport, error)
}

// Scheduler periodically resolves orders that stayed pending longer than the
// configured TTL.
type Scheduler struct {
	spec       string
	ttl        time.Duration
	reconciler Reconciler
	logger     *zap.Logger
	now        func() time.Time
}

func New(cfg config.JobsConfig, reconciler Reconciler, logger *zap.Logger) (*Scheduler, error) {
	if cfg.ReconcileInterval <= 0 {
		return nil, errors.New("reconcile interval must be positive")
	}
	if cfg.PendingOrderTTL <= 0 {
		return nil, errors.New("pending order ttl must be positive")
	}
	return &Scheduler{
		spec:       "@every " + cfg.ReconcileInterval.String(),
		ttl:        cfg.PendingOrderTTL,
		reconciler: reconciler,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Run blocks until ctx is cancelled, then waits for a running job to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	cronLogger := cron.PrintfLogger(zap.NewStdLog(s.logger))
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger),
		cron.SkipIfStillRunning(cronLogger),
	))

	if _, err := c.AddFunc(s.spec, func() { s.ReconcileOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule reconcile job: %w", err)
	}

	s.logger.Info("scheduler started", zap.String("reconcile", s.spec), zap.Duration("pending_ttl", s.ttl))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) ReconcileOnce(ctx context.Context) {
	cutoff := s.now().Add(-s.ttl)
	if _, err := s.reconciler.Reconcile(ctx, cutoff); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("reconcile pending orders", zap.Time("cutoff", cutoff), zap.Error(err))
	}
}
