package automation

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/nomadsam6/bls2/internal/config"
	"github.com/nomadsam6/bls2/internal/domain"
	"github.com/nomadsam6/bls2/internal/eventlog"
	"github.com/nomadsam6/bls2/internal/repository"
)

// Automation orchestrates a full check cycle: login, scan, persist. At most
// one browser session is active at a time; concurrent cycle requests
// short-circuit instead of queueing.
type Automation struct {
	factory  SessionFactory
	site     *SiteProfile
	auth     config.AuthConfig
	booking  config.BookingConfig
	solver   SolverClient
	slots    repository.SlotRepository
	recorder *eventlog.Recorder
	active   *semaphore.Weighted

	mu      sync.Mutex
	session Session
}

// NewAutomation creates the automation orchestrator
func NewAutomation(
	factory SessionFactory,
	site *SiteProfile,
	auth config.AuthConfig,
	booking config.BookingConfig,
	solver SolverClient,
	slots repository.SlotRepository,
	recorder *eventlog.Recorder,
) *Automation {
	return &Automation{
		factory:  factory,
		site:     site,
		auth:     auth,
		booking:  booking,
		solver:   solver,
		slots:    slots,
		recorder: recorder,
		active:   semaphore.NewWeighted(1),
	}
}

// RunFullCheck executes one complete check cycle. The boolean reports cycle
// completion: a completed cycle that found nothing returns (true, empty),
// while any failure before scan completion returns (false, nil). When a
// cycle is already in flight the call returns (false, nil) immediately.
func (a *Automation) RunFullCheck(ctx context.Context) (bool, []domain.AppointmentSlot) {
	if !a.active.TryAcquire(1) {
		a.recorder.Warning(ctx, "cycle", "check cycle already in progress, skipping")
		return false, nil
	}
	defer a.active.Release(1)

	a.recorder.Info(ctx, "cycle", "starting full appointment check cycle")

	session, err := a.factory.NewSession(ctx)
	if err != nil {
		a.recorder.Error(ctx, "cycle", "browser session failed to start",
			map[string]interface{}{"error": err.Error()})
		return false, nil
	}
	a.trackSession(session)
	defer a.releaseSession(session)

	page := session.Page()
	captcha := NewCaptchaResolver(a.site, a.solver, a.recorder)

	login := NewLoginFlow(a.site, a.auth, NewFormResolver(a.site, a.recorder), captcha, a.recorder)
	if err := login.Run(ctx, page); err != nil {
		a.recorder.Error(ctx, "cycle", "login failed",
			map[string]interface{}{"error": err.Error()})
		return false, nil
	}

	scanner := NewSlotScanner(a.site, captcha, a.recorder)
	slots, ok := scanner.Scan(ctx, page)
	if !ok {
		return false, nil
	}

	for i := range slots {
		if err := a.slots.Save(ctx, &slots[i]); err != nil {
			a.recorder.Error(ctx, "cycle", "failed to persist discovered slot",
				map[string]interface{}{"slot_id": slots[i].ID, "error": err.Error()})
		}
	}

	a.recorder.Record(ctx, domain.LogLevelSuccess, "cycle",
		"full check completed", map[string]interface{}{"slots_found": len(slots)})
	return true, slots
}

// BookSlot runs the booking flow for a previously discovered slot. It fails
// fast when a check cycle holds the browser, and persists the slot's final
// state whether the booking confirmed or not.
func (a *Automation) BookSlot(ctx context.Context, slotID string, profile domain.Profile) (*domain.AppointmentSlot, error) {
	if !a.active.TryAcquire(1) {
		return nil, domain.ErrCycleInProgress
	}
	defer a.active.Release(1)

	slot, err := a.slots.Get(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if slot.Status != domain.AppointmentStatusAvailable {
		return nil, fmt.Errorf("slot %s is not available for booking (status %s)", slot.ID, slot.Status)
	}

	session, err := a.factory.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	a.trackSession(session)
	defer a.releaseSession(session)

	page := session.Page()
	captcha := NewCaptchaResolver(a.site, a.solver, a.recorder)

	login := NewLoginFlow(a.site, a.auth, NewFormResolver(a.site, a.recorder), captcha, a.recorder)
	if err := login.Run(ctx, page); err != nil {
		return nil, err
	}

	visa := NewVisaSelector(a.site, a.recorder)
	if err := visa.Select(ctx, page, a.booking.VisaType); err != nil {
		return nil, err
	}

	executor := NewBookingExecutor(a.site, a.recorder)
	bookErr := executor.Book(ctx, page, slot, profile)

	if err := a.slots.Update(ctx, slot); err != nil {
		a.recorder.Error(ctx, "booking", "failed to persist booking outcome",
			map[string]interface{}{"slot_id": slot.ID, "error": err.Error()})
	}
	if bookErr != nil {
		return slot, bookErr
	}
	return slot, nil
}

// Abort force-releases the session held by an in-flight run so page calls
// fail fast instead of riding out their timeouts. Release is idempotent, so
// racing with the run's own teardown is safe. A call with no active session
// is a no-op.
func (a *Automation) Abort() {
	a.mu.Lock()
	session := a.session
	a.mu.Unlock()

	if session != nil {
		session.Release()
	}
}

func (a *Automation) trackSession(session Session) {
	a.mu.Lock()
	a.session = session
	a.mu.Unlock()
}

func (a *Automation) releaseSession(session Session) {
	a.mu.Lock()
	if a.session == session {
		a.session = nil
	}
	a.mu.Unlock()
	session.Release()
}
