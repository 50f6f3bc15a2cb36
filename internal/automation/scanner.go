package automation

import (
	"context"
	"strings"

	"github.com/nomadsam6/bls2/internal/domain"
	"github.com/nomadsam6/bls2/internal/eventlog"
)

// SlotScanner checks the appointment page for available slots. The results
// page does not expose structured slot data, so discovered slots carry the
// configured default metadata with placeholder date and time.
type SlotScanner struct {
	site     *SiteProfile
	captcha  *CaptchaResolver
	recorder *eventlog.Recorder
}

// NewSlotScanner creates a slot scanner
func NewSlotScanner(site *SiteProfile, captcha *CaptchaResolver, recorder *eventlog.Recorder) *SlotScanner {
	return &SlotScanner{
		site:     site,
		captcha:  captcha,
		recorder: recorder,
	}
}

// Scan navigates to the appointment page, clears its captcha and parses the
// result listing. The boolean distinguishes a completed scan from a failed
// one: a completed scan with no availability returns (true, empty).
func (s *SlotScanner) Scan(ctx context.Context, page PageDriver) ([]domain.AppointmentSlot, bool) {
	s.recorder.Info(ctx, "scan", "starting appointment check")

	if !strings.Contains(page.URL(), s.site.AppointmentStageMarker) {
		if err := page.Navigate(s.site.AppointmentCaptchaURL); err != nil {
			s.recorder.Error(ctx, "scan", "failed to open appointment page",
				map[string]interface{}{"error": err.Error()})
			return nil, false
		}
		if err := page.WaitIdle(); err != nil {
			return nil, false
		}
	}

	solved, err := s.captcha.Resolve(ctx, page)
	if err != nil || !solved {
		s.recorder.Error(ctx, "scan", "appointment captcha not cleared", nil)
		return nil, false
	}

	if page.Exists(s.site.FormSubmitSelector) {
		if err := page.Click(s.site.FormSubmitSelector); err != nil {
			return nil, false
		}
		if err := page.WaitIdle(); err != nil {
			return nil, false
		}
	}

	slots, err := s.parseSlots(page)
	if err != nil {
		s.recorder.Error(ctx, "scan", "failed to parse slot listing",
			map[string]interface{}{"error": err.Error()})
		return nil, false
	}

	if len(slots) > 0 {
		s.recorder.Record(ctx, domain.LogLevelSuccess, "scan",
			"found available slots", map[string]interface{}{"slots_count": len(slots)})
	} else {
		s.recorder.Info(ctx, "scan", "no available slots found")
	}
	return slots, true
}

// parseSlots walks the candidate slot elements and keeps the ones whose text
// mentions availability. The page does not publish the slot date or time, so
// those stay as placeholders until the site exposes them.
func (s *SlotScanner) parseSlots(page PageDriver) ([]domain.AppointmentSlot, error) {
	texts, err := page.TextContents(s.site.SlotSelector)
	if err != nil {
		return nil, err
	}

	defaults := s.site.Defaults
	var slots []domain.AppointmentSlot
	for _, text := range texts {
		if !strings.Contains(strings.ToLower(text), s.site.AvailabilityMarker) {
			continue
		}
		slot := domain.NewAppointmentSlot(
			"TBD", "TBD",
			defaults.VisaType, defaults.VisaCategory, defaults.Location,
			1,
		)
		slots = append(slots, *slot)
	}
	return slots, nil
}
