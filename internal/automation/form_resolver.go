package automation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nomadsam6/bls2/internal/domain"
	"github.com/nomadsam6/bls2/internal/eventlog"
)

// FormResolver locates the real input among the obfuscated decoy fields the
// site renders. It fires the site's reveal triggers, waits for the DOM to
// settle, then scans the candidate names for the one left visible.
type FormResolver struct {
	site     *SiteProfile
	recorder *eventlog.Recorder
	sleep    func(time.Duration)
}

// NewFormResolver creates a form resolver for the given site profile
func NewFormResolver(site *SiteProfile, recorder *eventlog.Recorder) *FormResolver {
	return &FormResolver{
		site:     site,
		recorder: recorder,
		sleep:    time.Sleep,
	}
}

// ResolveField returns the selector of the visible candidate field. When no
// candidate is visible it falls back to the first candidate and records a
// single warning; an empty candidate list is a hard error.
func (f *FormResolver) ResolveField(ctx context.Context, page PageDriver) (string, error) {
	if len(f.site.FieldCandidates) == 0 {
		return "", domain.ErrFieldNotResolved
	}

	f.fireRevealTriggers(page)
	f.sleep(f.site.SettleDelay)

	for _, id := range f.site.FieldCandidates {
		selector := "#" + id
		if page.Exists(selector) && page.IsVisible(selector) {
			return selector, nil
		}
	}

	fallback := "#" + f.site.FieldCandidates[0]
	f.recorder.Record(ctx, domain.LogLevelWarning, "login",
		"no visible form field candidate, falling back to first candidate",
		map[string]interface{}{"selector": fallback})
	return fallback, nil
}

// fireRevealTriggers invokes every configured page function in one script.
// Individual triggers are allowed to fail; many exist only on some page
// revisions.
func (f *FormResolver) fireRevealTriggers(page PageDriver) {
	if len(f.site.RevealTriggers) == 0 {
		return
	}

	var b strings.Builder
	b.WriteString("(() => {\n")
	for _, trigger := range f.site.RevealTriggers {
		fmt.Fprintf(&b, "  try { if (typeof window[%q] === 'function') { window[%q](); } } catch (e) {}\n", trigger, trigger)
	}
	b.WriteString("})()")

	// A page without any of the trigger functions is not an error either.
	_, _ = page.Evaluate(b.String())
}
