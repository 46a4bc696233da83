package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bookwell/scheduling-core/internal/service"
	"github.com/bookwell/scheduling-core/pkg/logger"
)

// Scheduler runs the periodic jobs the core needs outside the request
// path. Only job today is the hold sweep (spec §4.2 "Expiration").
type Scheduler struct {
	cron        *cron.Cron
	holdService *service.HoldService
	interval    time.Duration
	logger      *logger.Logger
}

// New creates a Scheduler. interval is spec's HOLD_SWEEP_INTERVAL
// (config default 20s); cron's "@every" spec is used rather than a
// fixed minute/hour expression so the interval is configurable down to
// the second.
func New(holdService *service.HoldService, interval time.Duration, log *logger.Logger) *Scheduler {
	if interval == 0 {
		interval = 20 * time.Second
	}
	return &Scheduler{
		cron:        cron.New(),
		holdService: holdService,
		interval:    interval,
		logger:      log,
	}
}

// Start registers and starts the sweep job.
func (s *Scheduler) Start() error {
	s.logger.Info("starting background scheduler", "sweep_interval", s.interval)

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		count, err := s.holdService.SweepExpired(ctx)
		if err != nil {
			s.logger.Error("hold sweep failed", "error", err)
			return
		}
		if count > 0 {
			s.logger.Info("hold sweep expired holds", "count", count)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to register sweep job: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and blocks until the running job (if any)
// completes, per the graceful shutdown supplement in SPEC_FULL.md.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping background scheduler")
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}
