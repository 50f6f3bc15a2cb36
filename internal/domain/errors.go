package domain

import "errors"

// Failure taxonomy for the automation pipeline. Each error is caught at its
// component's boundary, logged with a step tag, and converted into a result
// signal; none of them crosses the orchestrator as a panic.
var (
	// ErrBrowserInit means the scripted browser could not be launched.
	// Fatal to the current cycle only.
	ErrBrowserInit = errors.New("browser initialization failed")

	// ErrFieldNotResolved means the dynamic form resolver was given an
	// empty candidate list and had nothing to fall back to.
	ErrFieldNotResolved = errors.New("form field not resolved")

	// ErrCaptchaTargetNotFound means a captcha image is present but the
	// textual target instruction could not be extracted from the page.
	ErrCaptchaTargetNotFound = errors.New("captcha target not found")

	// ErrCaptchaSolverUnavailable means the external solver call failed or
	// returned a non-200 status.
	ErrCaptchaSolverUnavailable = errors.New("captcha solver unavailable")

	// ErrLoginTransitionFailed means a login step did not land on the
	// expected stage; the login attempt is over.
	ErrLoginTransitionFailed = errors.New("login transition failed")

	// ErrBookingNotConfirmed means the booking submission produced no
	// success marker. The slot is left unbooked.
	ErrBookingNotConfirmed = errors.New("booking not confirmed")

	// ErrCycleInProgress means a cycle was requested while another one
	// holds the session. Cycles are never run concurrently.
	ErrCycleInProgress = errors.New("check cycle already in progress")
)
