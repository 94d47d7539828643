package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Velocity-Developer/newads/internal/domain"
	"github.com/Velocity-Developer/newads/internal/ports"
)

// PipelineLockName is the overlap-lock key of the orchestrated pipeline.
const PipelineLockName = "negative-keywords:pipeline"

// WithLock runs fn only when the named lock is free. ran=false means another
// invocation holds the lock and fn was skipped.
func WithLock(ctx context.Context, locker ports.Locker, name string, fn func(context.Context) error) (ran bool, err error) {
	if locker == nil {
		return true, fn(ctx)
	}
	unlock, ok, err := locker.TryLock(ctx, name)
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return false, nil
	}
	defer unlock()
	return true, fn(ctx)
}

// Scheduler wires the interval driver with the pipeline use case.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	locker   ports.Locker
	opts     PipelineOptions
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring pipeline runs.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, locker ports.Locker, opts PipelineOptions, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, pipeline: pipeline, locker: locker, opts: opts, logger: orDiscard(logger)}
}

// RunOnce executes one guarded pipeline run. skipped=true means a run was already in progress.
func (s *Scheduler) RunOnce(ctx context.Context) (run domain.PipelineRun, skipped bool, err error) {
	ran, err := WithLock(ctx, s.locker, PipelineLockName, func(ctx context.Context) error {
		run = s.pipeline.Run(ctx, s.opts)
		return nil
	})
	if err != nil {
		return run, false, err
	}
	if !ran {
		s.logger.Info("previous pipeline run still in progress, skipping")
		return run, true, nil
	}
	return run, false, nil
}

// Start registers the pipeline with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(ctx context.Context) {
		if _, _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("scheduled pipeline run", "error", err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
