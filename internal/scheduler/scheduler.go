// Package scheduler triggers ingestion cycles on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/couchcryptid/storm-advisory-ingest/internal/pipeline"
)

// CycleRunner runs one ingestion cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (pipeline.CycleReport, error)
}

// Scheduler invokes the runner on a standard five-field cron schedule.
// Cycles never overlap: a tick that fires while the previous cycle is still
// running is skipped, not queued.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	runner CycleRunner
	logger *slog.Logger
}

// New validates the cron expression and builds a scheduler.
func New(spec string, runner CycleRunner, logger *slog.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}
	return &Scheduler{
		cron:   cron.New(),
		spec:   spec,
		runner: runner,
		logger: logger,
	}, nil
}

// Start begins scheduling cycles. ctx bounds every triggered cycle; Stop
// must still be called to halt the timer.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.runner.RunCycle(ctx); err != nil {
			if errors.Is(err, pipeline.ErrCycleInProgress) {
				s.logger.Warn("skipping scheduled cycle, previous cycle still running")
				return
			}
			s.logger.Error("scheduled cycle failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "schedule", s.spec)
	return nil
}

// Stop halts scheduling and waits for a running job callback to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}
