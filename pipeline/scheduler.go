package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/poiesic/semsearch/core"
	"github.com/robfig/cron/v3"
)

// DefaultSchedule refreshes outdated embeddings every six hours.
const DefaultSchedule = "0 0 */6 * * *"

// DefaultRunTimeout bounds a single scheduled run.
const DefaultRunTimeout = 30 * time.Minute

// Scheduler periodically runs UpdateOutdated on a pipeline.
type Scheduler struct {
	pipeline *Pipeline
	cron     *cron.Cron
	timeout  time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a scheduler for p. Schedules use the six-field cron
// format with seconds.
func NewScheduler(p *Pipeline, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		pipeline: p,
		cron:     cron.New(cron.WithSeconds()),
		timeout:  timeout,
		logger:   logger.With("component", "scheduler"),
	}
}

// Start registers schedule and starts the cron loop.
func (s *Scheduler) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	if _, err := s.cron.AddFunc(schedule, s.runOutdated); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("embedding refresh scheduler started", "schedule", schedule)
	return nil
}

// Stop stops the scheduler and waits for a running refresh to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("embedding refresh scheduler stopped")
}

// RunNow triggers an immediate refresh in the background.
func (s *Scheduler) RunNow() {
	s.logger.Info("triggering immediate embedding refresh")
	go s.runOutdated()
}

func (s *Scheduler) runOutdated() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	progress, err := s.pipeline.UpdateOutdated(ctx)
	if errors.Is(err, core.ErrAlreadyRunning) {
		s.logger.Info("skipping scheduled refresh, pipeline busy")
		return
	}
	if err != nil {
		s.logger.Error("scheduled refresh failed", "err", err)
		return
	}

	s.logger.Info("scheduled refresh completed",
		"total", progress.Total,
		"successful", progress.Successful,
		"failed", progress.Failed,
		"skipped", progress.Skipped)
}
