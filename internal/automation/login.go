package automation

import (
	"context"
	"fmt"
	"strings"

	"github.com/nomadsam6/bls2/internal/config"
	"github.com/nomadsam6/bls2/internal/domain"
	"github.com/nomadsam6/bls2/internal/eventlog"
)

// LoginState tracks progress through the two-stage login flow.
type LoginState string

const (
	LoginStateInit             LoginState = "init"
	LoginStateAwaitingPassword LoginState = "awaiting_password_captcha"
	LoginStateAuthenticated    LoginState = "authenticated"
	LoginStateFailed           LoginState = "failed"
)

// LoginFlow drives the site's two-stage login: an email-only form behind
// obfuscated decoy fields, then a password-and-captcha form. Stage
// transitions are detected from URL markers, not page content.
type LoginFlow struct {
	site     *SiteProfile
	auth     config.AuthConfig
	resolver *FormResolver
	captcha  *CaptchaResolver
	recorder *eventlog.Recorder

	state LoginState
}

// NewLoginFlow creates a login flow in its initial state
func NewLoginFlow(site *SiteProfile, auth config.AuthConfig, resolver *FormResolver, captcha *CaptchaResolver, recorder *eventlog.Recorder) *LoginFlow {
	return &LoginFlow{
		site:     site,
		auth:     auth,
		resolver: resolver,
		captcha:  captcha,
		recorder: recorder,
		state:    LoginStateInit,
	}
}

// State returns the current login state
func (l *LoginFlow) State() LoginState {
	return l.state
}

// Run executes both login stages in order. It returns nil only when the flow
// reaches the authenticated state.
func (l *LoginFlow) Run(ctx context.Context, page PageDriver) error {
	l.state = LoginStateInit

	if err := l.submitEmail(ctx, page); err != nil {
		l.state = LoginStateFailed
		return err
	}
	l.state = LoginStateAwaitingPassword

	if err := l.submitPasswordCaptcha(ctx, page); err != nil {
		l.state = LoginStateFailed
		return err
	}
	l.state = LoginStateAuthenticated
	return nil
}

// submitEmail handles the first stage: resolve the real email field among
// the decoys, fill it and submit. Success means the site redirected to the
// password-and-captcha stage.
func (l *LoginFlow) submitEmail(ctx context.Context, page PageDriver) error {
	l.recorder.Info(ctx, "login", "starting email stage")

	if err := page.Navigate(l.site.LoginURL); err != nil {
		return err
	}
	if err := page.WaitIdle(); err != nil {
		return err
	}

	field, err := l.resolver.ResolveField(ctx, page)
	if err != nil {
		return err
	}
	if err := page.Fill(field, l.auth.Email); err != nil {
		return err
	}
	l.recorder.Record(ctx, domain.LogLevelInfo, "login",
		"filled email field", map[string]interface{}{"selector": field})

	if err := page.Click(l.site.LoginSubmitSelector); err != nil {
		return err
	}
	if err := page.WaitIdle(); err != nil {
		return err
	}

	current := page.URL()
	if !strings.Contains(current, l.site.CaptchaStageMarker) {
		l.recorder.Record(ctx, domain.LogLevelWarning, "login",
			"unexpected URL after email submission", map[string]interface{}{"url": current})
		return fmt.Errorf("%w: email stage did not advance", domain.ErrLoginTransitionFailed)
	}

	l.recorder.Success(ctx, "login", "email stage completed")
	return nil
}

// submitPasswordCaptcha handles the second stage: fill the password, solve
// the captcha and submit. Success means the URL no longer carries the login
// marker.
func (l *LoginFlow) submitPasswordCaptcha(ctx context.Context, page PageDriver) error {
	l.recorder.Info(ctx, "login", "starting password and captcha stage")

	if err := page.WaitIdle(); err != nil {
		return err
	}

	if !page.Exists(l.site.PasswordSelector) {
		return fmt.Errorf("%w: password field not found", domain.ErrLoginTransitionFailed)
	}
	if err := page.Fill(l.site.PasswordSelector, l.auth.Password); err != nil {
		return err
	}

	solved, err := l.captcha.Resolve(ctx, page)
	if err != nil {
		return err
	}
	if !solved {
		return fmt.Errorf("%w: captcha unsolved", domain.ErrLoginTransitionFailed)
	}

	if !page.Exists(l.site.FormSubmitSelector) {
		return fmt.Errorf("%w: submit button not found", domain.ErrLoginTransitionFailed)
	}
	if err := page.Click(l.site.FormSubmitSelector); err != nil {
		return err
	}
	if err := page.WaitIdle(); err != nil {
		return err
	}

	current := page.URL()
	if strings.Contains(strings.ToLower(current), l.site.LoginStageMarker) {
		l.recorder.Record(ctx, domain.LogLevelError, "login",
			"still on login pages after password submission", map[string]interface{}{"url": current})
		return fmt.Errorf("%w: password stage did not advance", domain.ErrLoginTransitionFailed)
	}

	l.recorder.Success(ctx, "login", "login completed")
	return nil
}
