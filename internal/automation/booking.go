package automation

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/nomadsam6/bls2/internal/domain"
	"github.com/nomadsam6/bls2/internal/eventlog"
)

// unknownConfirmationID marks a booking the site confirmed without printing
// a recognizable reference number.
const unknownConfirmationID = "UNKNOWN"

// confirmationPattern pulls the reference number out of the confirmation
// page text.
var confirmationPattern = regexp.MustCompile(`(?i)confirmation.*?([A-Z0-9]{6,})`)

// profileFieldSelectors maps profile fields to their booking-form selectors
var profileFieldSelectors = []struct {
	value    func(p domain.Profile) string
	selector string
	name     string
}{
	{func(p domain.Profile) string { return p.FirstName }, `input[name*="firstname"], input[name*="FirstName"]`, "first_name"},
	{func(p domain.Profile) string { return p.LastName }, `input[name*="lastname"], input[name*="LastName"]`, "last_name"},
	{func(p domain.Profile) string { return p.Passport }, `input[name*="passport"], input[name*="Passport"]`, "passport"},
	{func(p domain.Profile) string { return p.Phone }, `input[name*="phone"], input[name*="Phone"]`, "phone"},
	{func(p domain.Profile) string { return p.Email }, `input[name*="email"], input[name*="Email"]`, "email"},
}

// BookingExecutor fills the booking form and submits it. It is the only
// component allowed to move a slot out of the available state.
type BookingExecutor struct {
	site     *SiteProfile
	recorder *eventlog.Recorder
	now      func() time.Time
}

// NewBookingExecutor creates a booking executor
func NewBookingExecutor(site *SiteProfile, recorder *eventlog.Recorder) *BookingExecutor {
	return &BookingExecutor{
		site:     site,
		recorder: recorder,
		now:      time.Now,
	}
}

// Book attempts to book the slot with the given profile and mutates the slot
// in place: booked with confirmation evidence on success, failed otherwise.
// Empty profile fields and fields absent from the page are skipped.
func (b *BookingExecutor) Book(ctx context.Context, page PageDriver, slot *domain.AppointmentSlot, profile domain.Profile) error {
	b.recorder.Record(ctx, domain.LogLevelInfo, "booking",
		"starting booking attempt", map[string]interface{}{"slot_id": slot.ID})

	if !strings.Contains(page.URL(), b.site.BookingStageMarker) {
		if err := page.Navigate(b.site.NewAppointmentURL); err != nil {
			slot.Status = domain.AppointmentStatusFailed
			return err
		}
		if err := page.WaitIdle(); err != nil {
			slot.Status = domain.AppointmentStatusFailed
			return err
		}
	}

	for _, field := range profileFieldSelectors {
		value := field.value(profile)
		if value == "" || !page.Exists(field.selector) {
			continue
		}
		if err := page.Fill(field.selector, value); err != nil {
			slot.Status = domain.AppointmentStatusFailed
			return err
		}
		b.recorder.Record(ctx, domain.LogLevelInfo, "booking",
			"filled form field", map[string]interface{}{"field": field.name})
	}

	if page.Exists(b.site.FormSubmitSelector) {
		if err := page.Click(b.site.FormSubmitSelector); err != nil {
			slot.Status = domain.AppointmentStatusFailed
			return err
		}
		if err := page.WaitIdle(); err != nil {
			slot.Status = domain.AppointmentStatusFailed
			return err
		}
	}

	body, err := page.BodyText()
	if err != nil {
		slot.Status = domain.AppointmentStatusFailed
		return err
	}

	lower := strings.ToLower(body)
	if !strings.Contains(lower, "confirm") && !strings.Contains(lower, "success") {
		slot.Status = domain.AppointmentStatusFailed
		b.recorder.Error(ctx, "booking", "no confirmation received", nil)
		return domain.ErrBookingNotConfirmed
	}

	confirmationID := unknownConfirmationID
	if match := confirmationPattern.FindStringSubmatch(body); match != nil {
		confirmationID = match[1]
	}

	profileCopy := profile
	slot.Status = domain.AppointmentStatusBooked
	slot.BookingDetails = &domain.BookingDetails{
		ConfirmationID: confirmationID,
		BookedAt:       b.now().UTC(),
		Profile:        &profileCopy,
	}

	b.recorder.Record(ctx, domain.LogLevelSuccess, "booking",
		"appointment booked", map[string]interface{}{"confirmation_id": confirmationID})
	return nil
}
