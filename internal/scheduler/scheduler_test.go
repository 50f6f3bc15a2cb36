package scheduler

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nomadsam6/bls2/internal/config"
	"github.com/nomadsam6/bls2/internal/domain"
	"github.com/nomadsam6/bls2/internal/eventlog"
	"github.com/nomadsam6/bls2/internal/notifier"
	"github.com/nomadsam6/bls2/internal/repository"
)

type cycleOutcome struct {
	completed bool
	slots     []domain.AppointmentSlot
	panics    bool
}

// fakeRunner plays back scripted cycle outcomes and signals every run
type fakeRunner struct {
	mu       sync.Mutex
	outcomes []cycleOutcome
	runs     int
	aborts   int
	ran      chan struct{}
	aborted  chan struct{}
	// blockUntilAbort makes RunFullCheck hang the way a page call riding
	// out its timeout would, until Abort is invoked.
	blockUntilAbort bool
}

func newFakeRunner(outcomes ...cycleOutcome) *fakeRunner {
	return &fakeRunner{
		outcomes: outcomes,
		ran:      make(chan struct{}, 64),
		aborted:  make(chan struct{}),
	}
}

func (f *fakeRunner) RunFullCheck(ctx context.Context) (bool, []domain.AppointmentSlot) {
	f.mu.Lock()
	outcome := cycleOutcome{completed: true}
	if f.runs < len(f.outcomes) {
		outcome = f.outcomes[f.runs]
	}
	f.runs++
	block := f.blockUntilAbort
	f.mu.Unlock()

	select {
	case f.ran <- struct{}{}:
	default:
	}

	if block {
		<-f.aborted
	}
	if outcome.panics {
		panic("scripted cycle panic")
	}
	return outcome.completed, outcome.slots
}

func (f *fakeRunner) Abort() {
	f.mu.Lock()
	f.aborts++
	if f.aborts == 1 {
		close(f.aborted)
	}
	f.mu.Unlock()
}

func (f *fakeRunner) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

func (f *fakeRunner) abortCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.aborts
}

func testScheduler(runner CycleRunner, stats repository.StatsRepository) *Scheduler {
	log := logrus.New()
	log.SetOutput(io.Discard)
	recorder := eventlog.NewRecorder(nil, nil, log)
	return New(runner, stats, notifier.Noop{}, recorder, config.MonitorConfig{
		CheckInterval: 10 * time.Millisecond,
		ErrorBackoff:  time.Millisecond,
	})
}

func waitForRun(t *testing.T, runner *fakeRunner) {
	t.Helper()
	select {
	case <-runner.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a cycle")
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestScheduler_CompletedCycleAdvancesCounters(t *testing.T) {
	ctx := context.Background()
	stats := repository.NewInMemoryStatsRepository(10 * time.Millisecond)
	slots := []domain.AppointmentSlot{
		*domain.NewAppointmentSlot("TBD", "TBD", "Spain Visa", "Tourism", "Algeria", 1),
		*domain.NewAppointmentSlot("TBD", "TBD", "Spain Visa", "Tourism", "Algeria", 1),
	}
	runner := newFakeRunner(cycleOutcome{completed: true, slots: slots})

	sched := testScheduler(runner, stats)
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer sched.Stop(ctx)

	waitForRun(t, runner)
	waitFor(t, func() bool {
		current, err := stats.Get(ctx)
		return err == nil && current.TotalChecks >= 1
	}, "total checks never advanced")

	current, err := stats.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if current.SlotsFound < 2 {
		t.Errorf("expected slots found >= 2, got %d", current.SlotsFound)
	}
	if current.LastCheck == nil {
		t.Error("last check not recorded")
	}
	if current.ErrorCount != 0 {
		t.Errorf("completed cycles must not advance the error counter, got %d", current.ErrorCount)
	}
}

func TestScheduler_FailedCycleAdvancesErrorCountOnly(t *testing.T) {
	ctx := context.Background()
	stats := repository.NewInMemoryStatsRepository(10 * time.Millisecond)
	runner := newFakeRunner(cycleOutcome{completed: false})

	sched := testScheduler(runner, stats)
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitForRun(t, runner)
	waitFor(t, func() bool {
		current, err := stats.Get(ctx)
		return err == nil && current.ErrorCount >= 1
	}, "error count never advanced")

	if err := sched.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	current, err := stats.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if current.ErrorCount < 1 {
		t.Errorf("expected error count >= 1, got %d", current.ErrorCount)
	}
	// The first scripted outcome failed, so the check counter must lag
	// the total number of runs.
	if current.TotalChecks >= int64(runner.runCount()) {
		t.Errorf("failed cycles must not count as checks: %d checks for %d runs",
			current.TotalChecks, runner.runCount())
	}
}

func TestScheduler_PanickingCycleCountsAsFailure(t *testing.T) {
	ctx := context.Background()
	stats := repository.NewInMemoryStatsRepository(10 * time.Millisecond)
	runner := newFakeRunner(cycleOutcome{panics: true}, cycleOutcome{completed: true})

	sched := testScheduler(runner, stats)
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer sched.Stop(ctx)

	// The loop must survive the panic and run again.
	waitForRun(t, runner)
	waitForRun(t, runner)

	waitFor(t, func() bool {
		current, err := stats.Get(ctx)
		return err == nil && current.ErrorCount >= 1
	}, "panicked cycle not recorded as error")
}

func TestScheduler_StopTerminatesPromptly(t *testing.T) {
	ctx := context.Background()
	stats := repository.NewInMemoryStatsRepository(time.Hour)
	runner := newFakeRunner()

	sched := testScheduler(runner, stats)
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitForRun(t, runner)

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		t.Fatalf("Stop did not finish within the deadline: %v", err)
	}

	current, err := stats.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if current.Status != domain.SystemStatusStopped {
		t.Errorf("expected stopped status, got %s", current.Status)
	}
}

func TestScheduler_StopAbortsInFlightCycle(t *testing.T) {
	ctx := context.Background()
	stats := repository.NewInMemoryStatsRepository(time.Hour)
	runner := newFakeRunner()
	runner.blockUntilAbort = true

	sched := testScheduler(runner, stats)
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitForRun(t, runner)

	// The cycle is stuck inside the runner. Stop must abort it rather
	// than wait for it to come back on its own.
	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		t.Fatalf("Stop did not break the stuck cycle: %v", err)
	}
	if runner.abortCount() == 0 {
		t.Error("Stop never aborted the in-flight cycle")
	}
}

func TestScheduler_StopTwiceIsSafe(t *testing.T) {
	ctx := context.Background()
	stats := repository.NewInMemoryStatsRepository(10 * time.Millisecond)
	sched := testScheduler(newFakeRunner(), stats)

	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := sched.Stop(ctx); err != nil {
		t.Fatalf("first Stop failed: %v", err)
	}
	if err := sched.Stop(ctx); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
}

func TestScheduler_DoubleStartRejected(t *testing.T) {
	ctx := context.Background()
	stats := repository.NewInMemoryStatsRepository(10 * time.Millisecond)
	sched := testScheduler(newFakeRunner(), stats)

	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer sched.Stop(ctx)

	if err := sched.Start(ctx); err != domain.ErrCycleInProgress {
		t.Errorf("expected ErrCycleInProgress, got %v", err)
	}
}

func TestScheduler_PauseSuspendsCycles(t *testing.T) {
	ctx := context.Background()
	stats := repository.NewInMemoryStatsRepository(5 * time.Millisecond)
	runner := newFakeRunner()

	sched := testScheduler(runner, stats)
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer sched.Stop(ctx)

	waitForRun(t, runner)
	if err := sched.Pause(ctx); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}

	// Drain any cycle that was already in flight, then verify no new
	// ones start.
	time.Sleep(30 * time.Millisecond)
	for len(runner.ran) > 0 {
		<-runner.ran
	}
	pausedRuns := runner.runCount()
	time.Sleep(50 * time.Millisecond)
	if runner.runCount() != pausedRuns {
		t.Errorf("cycles ran while paused: %d -> %d", pausedRuns, runner.runCount())
	}

	if err := sched.Resume(ctx); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	waitForRun(t, runner)
}
