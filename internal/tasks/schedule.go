package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crate/internal/shared"
)

// Runner is the part of [PipelineEngine] the scheduler drives.
type Runner interface {
	Trigger(ctx context.Context, trigger string) (string, error)
}

// Scheduler triggers a run every interval until its context is cancelled.
// A tick that lands while a run is active is skipped.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   *log.Logger
}

// NewScheduler creates a scheduler. A zero interval disables it.
func NewScheduler(runner Runner, interval time.Duration, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Scheduler{runner: runner, interval: interval, logger: logger}
}

// Enabled reports whether the scheduler has a positive interval.
func (s *Scheduler) Enabled() bool {
	return s.interval > 0
}

// Start ticks until ctx is done. It returns immediately when disabled.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.Enabled() {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	runID, err := s.runner.Trigger(ctx, TriggerSchedule)
	switch {
	case errors.Is(err, shared.ErrRunActive):
		s.logger.Info("skipping scheduled run", "reason", err)
	case err != nil:
		s.logger.Error("scheduled run could not start", "error", err)
	default:
		s.logger.Info("scheduled run started", "run", runID)
	}
}
