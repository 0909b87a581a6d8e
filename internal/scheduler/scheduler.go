package scheduler

import (
	"context"
	"log/slog"
	"time"

	"macropulse/internal/domain"
)

// Runner is one publication cycle.
type Runner interface {
	Run(ctx context.Context, force bool) (*domain.CycleReport, error)
}

// Scheduler is the host poll loop: run a cycle immediately, then on every
// tick. The lookback window inside the cycle tolerates the imprecise
// cadence, so the interval only needs to stay below the lookback.
type Scheduler struct {
	runner       Runner
	interval     time.Duration
	cycleTimeout time.Duration
	logger       *slog.Logger
}

func NewScheduler(runner Runner, interval, cycleTimeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:       runner,
		interval:     interval,
		cycleTimeout: cycleTimeout,
		logger:       logger.With("component", "scheduler"),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.runCycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	cycleCtx, cancel := context.WithTimeout(ctx, s.cycleTimeout)
	defer cancel()

	if _, err := s.runner.Run(cycleCtx, false); err != nil {
		s.logger.Error("cycle failed", "error", err)
	}
}
