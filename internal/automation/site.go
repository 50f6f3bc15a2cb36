package automation

import (
	"time"

	"github.com/nomadsam6/bls2/internal/config"
)

// SiteProfile bundles everything site-specific the automation flows consult:
// the URL set, the stage markers, and the obfuscated-form probing data. All
// flows go through this adapter so that pointing the bot at a different
// deployment is a configuration change, not a code change.
type SiteProfile struct {
	LoginURL              string
	LoginCaptchaURL       string
	AppointmentCaptchaURL string
	VisaTypeURL           string
	NewAppointmentURL     string

	// CaptchaStageMarker is the URL substring that indicates the login
	// flow has advanced to the password-and-captcha stage.
	CaptchaStageMarker string
	// LoginStageMarker is the URL substring whose absence indicates the
	// login flow has left the login pages entirely.
	LoginStageMarker string
	// AppointmentStageMarker, VisaStageMarker and BookingStageMarker
	// identify pages the flows skip re-navigating to when already there.
	AppointmentStageMarker string
	VisaStageMarker        string
	BookingStageMarker     string

	// Form and widget selectors for the site's current markup revision.
	LoginSubmitSelector   string
	PasswordSelector      string
	FormSubmitSelector    string
	CaptchaImageSelector  string
	CaptchaAnswerSelector string
	VisaTypeSelector      string
	SlotSelector          string
	// AvailabilityMarker is the lowercased text fragment that marks a slot
	// element as bookable.
	AvailabilityMarker string

	// FieldCandidates are the obfuscated input names probed for the real
	// email field, in priority order.
	FieldCandidates []string
	// RevealTriggers are the page function names invoked to force the
	// real form fields visible.
	RevealTriggers []string
	// SettleDelay is how long to wait after firing the reveal triggers
	// before scanning candidate visibility.
	SettleDelay time.Duration

	// Defaults are the slot metadata values used when the results page
	// does not expose them in a scrapeable form.
	Defaults config.SlotDefaults
}

// NewSiteProfile builds a site profile from configuration
func NewSiteProfile(cfg config.SiteConfig) *SiteProfile {
	return &SiteProfile{
		LoginURL:               cfg.LoginURL,
		LoginCaptchaURL:        cfg.LoginCaptchaURL,
		AppointmentCaptchaURL:  cfg.AppointmentCaptchaURL,
		VisaTypeURL:            cfg.VisaTypeURL,
		NewAppointmentURL:      cfg.NewAppointmentURL,
		CaptchaStageMarker:     cfg.CaptchaStageMarker,
		LoginStageMarker:       cfg.LoginStageMarker,
		AppointmentStageMarker: cfg.AppointmentStageMarker,
		VisaStageMarker:        cfg.VisaStageMarker,
		BookingStageMarker:     cfg.BookingStageMarker,
		LoginSubmitSelector:    cfg.LoginSubmitSelector,
		PasswordSelector:       cfg.PasswordSelector,
		FormSubmitSelector:     cfg.FormSubmitSelector,
		CaptchaImageSelector:   cfg.CaptchaImageSelector,
		CaptchaAnswerSelector:  cfg.CaptchaAnswerSelector,
		VisaTypeSelector:       cfg.VisaTypeSelector,
		SlotSelector:           cfg.SlotSelector,
		AvailabilityMarker:     cfg.AvailabilityMarker,
		FieldCandidates:        cfg.FieldCandidates,
		RevealTriggers:         cfg.RevealTriggers,
		SettleDelay:            cfg.SettleDelay,
		Defaults:               cfg.Defaults,
	}
}
