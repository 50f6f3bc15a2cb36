package scheduler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nomadsam6/bls2/internal/config"
	"github.com/nomadsam6/bls2/internal/domain"
	"github.com/nomadsam6/bls2/internal/eventlog"
	"github.com/nomadsam6/bls2/internal/notifier"
	"github.com/nomadsam6/bls2/internal/repository"
)

// CycleRunner runs one complete check cycle. The boolean reports whether the
// cycle completed; an incomplete cycle carries no slots. Abort force-releases
// the browser session of an in-flight cycle.
type CycleRunner interface {
	RunFullCheck(ctx context.Context) (bool, []domain.AppointmentSlot)
	Abort()
}

// Scheduler drives the periodic monitoring loop. It owns the system status
// transitions and the run statistics bookkeeping: completed cycles advance
// the check counter, failed cycles advance the error counter, and a
// bookkeeping failure moves the system to the error state and stops the
// loop.
type Scheduler struct {
	runner   CycleRunner
	stats    repository.StatsRepository
	notify   notifier.Notifier
	recorder *eventlog.Recorder
	backoff  time.Duration

	// loopGuard ensures at most one monitoring loop runs at a time.
	loopGuard *semaphore.Weighted

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a scheduler
func New(runner CycleRunner, stats repository.StatsRepository, notify notifier.Notifier, recorder *eventlog.Recorder, cfg config.MonitorConfig) *Scheduler {
	return &Scheduler{
		runner:    runner,
		stats:     stats,
		notify:    notify,
		recorder:  recorder,
		backoff:   cfg.ErrorBackoff,
		loopGuard: semaphore.NewWeighted(1),
	}
}

// Start launches the monitoring loop. A second start while the loop is
// running returns ErrCycleInProgress.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.loopGuard.TryAcquire(1) {
		return domain.ErrCycleInProgress
	}

	if err := s.stats.SetStatus(ctx, domain.SystemStatusRunning); err != nil {
		s.loopGuard.Release(1)
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	s.recorder.Info(ctx, "scheduler", "monitoring started")

	go func() {
		defer s.loopGuard.Release(1)
		defer close(done)
		s.loop(loopCtx)
	}()
	return nil
}

// Stop terminates the monitoring loop and waits for it to exit. A cycle
// already in flight has its browser session force-released, so page calls
// fail instead of riding out their timeouts.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel == nil {
		return s.stats.SetStatus(ctx, domain.SystemStatusStopped)
	}
	cancel()
	s.runner.Abort()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.recorder.Info(ctx, "scheduler", "monitoring stopped")
	return s.stats.SetStatus(ctx, domain.SystemStatusStopped)
}

// Pause suspends cycle execution without terminating the loop
func (s *Scheduler) Pause(ctx context.Context) error {
	s.recorder.Info(ctx, "scheduler", "monitoring paused")
	return s.stats.SetStatus(ctx, domain.SystemStatusPaused)
}

// Resume reactivates a paused loop
func (s *Scheduler) Resume(ctx context.Context) error {
	s.recorder.Info(ctx, "scheduler", "monitoring resumed")
	return s.stats.SetStatus(ctx, domain.SystemStatusRunning)
}

// loop runs until cancelled. Status and interval are re-read every iteration
// so external updates take effect without a restart.
func (s *Scheduler) loop(ctx context.Context) {
	for {
		stats, err := s.stats.Get(ctx)
		if err != nil {
			s.fail(ctx, "failed to read run statistics", err)
			return
		}

		switch stats.Status {
		case domain.SystemStatusRunning:
			if err := s.runCycle(ctx); err != nil {
				s.fail(ctx, "statistics bookkeeping failed", err)
				return
			}
		case domain.SystemStatusPaused:
			// Keep looping so a resume takes effect within one interval.
		default:
			return
		}

		if !s.sleep(ctx, stats.CheckInterval) {
			return
		}
	}
}

// runCycle executes one guarded cycle and updates the statistics record.
// The returned error reflects bookkeeping failures only; cycle failures are
// absorbed into the error counter and a backoff sleep.
func (s *Scheduler) runCycle(ctx context.Context) error {
	completed, slots := s.protectedRun(ctx)

	if !completed {
		if err := s.stats.IncrErrorCount(ctx, 1); err != nil {
			return err
		}
		s.sleep(ctx, s.backoff)
		return nil
	}

	if err := s.stats.IncrTotalChecks(ctx, 1); err != nil {
		return err
	}
	if len(slots) > 0 {
		if err := s.stats.IncrSlotsFound(ctx, int64(len(slots))); err != nil {
			return err
		}
		if err := s.notify.SlotsFound(ctx, slots); err != nil {
			s.recorder.Record(ctx, domain.LogLevelWarning, "scheduler",
				"slot notification failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return s.stats.SetLastCheck(ctx, time.Now().UTC())
}

// protectedRun shields the loop from a panicking cycle; a panic counts as a
// failed cycle.
func (s *Scheduler) protectedRun(ctx context.Context) (completed bool, slots []domain.AppointmentSlot) {
	defer func() {
		if r := recover(); r != nil {
			s.recorder.Error(ctx, "scheduler", "check cycle panicked",
				map[string]interface{}{"panic": r})
			completed = false
			slots = nil
		}
	}()
	return s.runner.RunFullCheck(ctx)
}

// fail records a terminal loop failure and moves the system to the error
// state.
func (s *Scheduler) fail(ctx context.Context, message string, err error) {
	s.recorder.Error(ctx, "scheduler", message,
		map[string]interface{}{"error": err.Error()})
	if setErr := s.stats.SetStatus(ctx, domain.SystemStatusError); setErr != nil {
		s.recorder.Error(ctx, "scheduler", "failed to record error status",
			map[string]interface{}{"error": setErr.Error()})
	}
	if notifyErr := s.notify.SystemError(ctx, message); notifyErr != nil {
		s.recorder.Record(ctx, domain.LogLevelWarning, "scheduler",
			"error notification failed", map[string]interface{}{"error": notifyErr.Error()})
	}
}

// sleep waits for the given duration, returning false when cancelled
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
