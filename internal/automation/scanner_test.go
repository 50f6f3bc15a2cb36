package automation

import (
	"context"
	"testing"

	"github.com/nomadsam6/bls2/internal/domain"
)

func newTestScanner(solver SolverClient) *SlotScanner {
	site := testSite()
	recorder := testRecorder()
	return NewSlotScanner(site, NewCaptchaResolver(site, solver, recorder), recorder)
}

func TestScan_FindsAvailableSlots(t *testing.T) {
	scanner := newTestScanner(&fakeSolver{})

	page := newFakePage()
	page.exists[formSubmitSelector] = true
	page.texts[slotElementSelector] = []string{
		"Date Time Status",
		"2026-09-15 10:00 Available",
		"2026-09-15 11:00 booked out",
		"Slots AVAILABLE here",
	}

	slots, ok := scanner.Scan(context.Background(), page)
	if !ok {
		t.Fatal("expected completed scan")
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	for _, slot := range slots {
		if slot.Status != domain.AppointmentStatusAvailable {
			t.Errorf("expected available status, got %s", slot.Status)
		}
		if slot.VisaType != "Spain Visa" || slot.VisaCategory != "Tourism" || slot.Location != "Algeria" {
			t.Errorf("defaults not applied: %+v", slot)
		}
		if slot.AppointmentDate != "TBD" || slot.AppointmentTime != "TBD" {
			t.Errorf("expected placeholder date and time, got %+v", slot)
		}
		if slot.ID == "" {
			t.Error("slot missing ID")
		}
	}
	if slots[0].ID == slots[1].ID {
		t.Error("slots must carry distinct IDs")
	}
}

func TestScan_NoAvailabilityIsStillCompleted(t *testing.T) {
	scanner := newTestScanner(&fakeSolver{})

	page := newFakePage()
	page.texts[slotElementSelector] = []string{"fully booked", "come back later"}

	slots, ok := scanner.Scan(context.Background(), page)
	if !ok {
		t.Fatal("a scan that finds nothing still completed")
	}
	if len(slots) != 0 {
		t.Errorf("expected no slots, got %d", len(slots))
	}
}

func TestScan_NavigatesToAppointmentPage(t *testing.T) {
	scanner := newTestScanner(&fakeSolver{})

	page := newFakePage()
	page.url = "https://visa.example.com/Appointment/Dashboard"

	_, ok := scanner.Scan(context.Background(), page)
	if !ok {
		t.Fatal("expected completed scan")
	}
	if len(page.navigated) != 1 || page.navigated[0] != scanner.site.AppointmentCaptchaURL {
		t.Errorf("expected navigation to appointment page, got %v", page.navigated)
	}
}

func TestScan_SkipsNavigationWhenAlreadyThere(t *testing.T) {
	scanner := newTestScanner(&fakeSolver{})

	page := newFakePage()
	page.url = scanner.site.AppointmentCaptchaURL

	_, ok := scanner.Scan(context.Background(), page)
	if !ok {
		t.Fatal("expected completed scan")
	}
	if len(page.navigated) != 0 {
		t.Errorf("expected no navigation, got %v", page.navigated)
	}
}

func TestScan_CaptchaFailureIsNotCompleted(t *testing.T) {
	scanner := newTestScanner(&fakeSolver{err: domain.ErrCaptchaSolverUnavailable})

	page := newFakePage()
	page.exists[captchaImageSelector] = true
	page.attrs[captchaImageSelector+"|src"] = "data:image/png;base64,QUJD"
	page.body = "select 5"
	page.texts[slotElementSelector] = []string{"Available"}

	slots, ok := scanner.Scan(context.Background(), page)
	if ok {
		t.Fatal("expected failed scan")
	}
	if slots != nil {
		t.Errorf("failed scan must carry no slots, got %v", slots)
	}
}
