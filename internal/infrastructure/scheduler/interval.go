package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Velocity-Developer/newads/internal/ports"
)

// IntervalScheduler runs a job immediately and then on every tick. A tick that fires
// while the previous job is still running is dropped.
type IntervalScheduler struct {
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

var _ ports.Scheduler = (*IntervalScheduler)(nil)

// NewIntervalScheduler builds a scheduler ticking every interval.
func NewIntervalScheduler(interval time.Duration, logger *slog.Logger) *IntervalScheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &IntervalScheduler{interval: interval, logger: logger}
}

// Start launches the ticking goroutine. Calling Start on a running scheduler is a no-op.
func (s *IntervalScheduler) Start(ctx context.Context, job func(context.Context)) error {
	if job == nil {
		return nil
	}
	if s.interval <= 0 {
		return errors.New("scheduler interval must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(runCtx, job, s.done)
	return nil
}

func (s *IntervalScheduler) loop(ctx context.Context, job func(context.Context), done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	busy := make(chan struct{}, 1)
	var wg sync.WaitGroup
	defer wg.Wait()

	fire := func() {
		select {
		case busy <- struct{}{}:
		default:
			s.logger.Info("previous scheduled run still in progress, tick skipped")
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-busy }()
			job(ctx)
		}()
	}

	fire()
	for {
		select {
		case <-ticker.C:
			fire()
		case <-ctx.Done():
			return
		}
	}
}

// Stop cancels the running job's context and waits for it to return or for ctx to expire.
func (s *IntervalScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
