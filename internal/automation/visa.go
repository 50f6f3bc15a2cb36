package automation

import (
	"context"
	"strings"

	"github.com/nomadsam6/bls2/internal/domain"
	"github.com/nomadsam6/bls2/internal/eventlog"
)

// VisaSelector applies the configured visa preference on the visa selection
// page. A missing selection control is tolerated; some site revisions skip
// the page entirely.
type VisaSelector struct {
	site     *SiteProfile
	recorder *eventlog.Recorder
}

// NewVisaSelector creates a visa selector
func NewVisaSelector(site *SiteProfile, recorder *eventlog.Recorder) *VisaSelector {
	return &VisaSelector{
		site:     site,
		recorder: recorder,
	}
}

// Select navigates to the visa selection page if needed, applies the given
// visa type and advances to the next page.
func (v *VisaSelector) Select(ctx context.Context, page PageDriver, visaType string) error {
	v.recorder.Info(ctx, "visa", "starting visa selection")

	if visaType == "" {
		visaType = "tourism"
	}

	if !strings.Contains(page.URL(), v.site.VisaStageMarker) {
		if err := page.Navigate(v.site.VisaTypeURL); err != nil {
			return err
		}
		if err := page.WaitIdle(); err != nil {
			return err
		}
	}

	if page.Exists(v.site.VisaTypeSelector) {
		if err := page.SelectOption(v.site.VisaTypeSelector, visaType); err != nil {
			return err
		}
		v.recorder.Record(ctx, domain.LogLevelInfo, "visa",
			"selected visa type", map[string]interface{}{"visa_type": visaType})
	}

	if page.Exists(v.site.FormSubmitSelector) {
		if err := page.Click(v.site.FormSubmitSelector); err != nil {
			return err
		}
		if err := page.WaitIdle(); err != nil {
			return err
		}
	}

	v.recorder.Success(ctx, "visa", "visa selection completed")
	return nil
}
