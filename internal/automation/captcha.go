package automation

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nomadsam6/bls2/internal/domain"
	"github.com/nomadsam6/bls2/internal/eventlog"
)

// targetPattern pulls the instruction number ("select all boxes with 42")
// out of the page body.
var targetPattern = regexp.MustCompile(`(?i)select.*?(\d+)`)

// CaptchaResolver detects and solves a tile captcha on the current page. A
// page without a captcha image resolves successfully without contacting the
// solver at all.
type CaptchaResolver struct {
	site     *SiteProfile
	solver   SolverClient
	recorder *eventlog.Recorder
}

// NewCaptchaResolver creates a captcha resolver using the given solver
func NewCaptchaResolver(site *SiteProfile, solver SolverClient, recorder *eventlog.Recorder) *CaptchaResolver {
	return &CaptchaResolver{
		site:     site,
		solver:   solver,
		recorder: recorder,
	}
}

// Resolve handles whatever captcha is on the page. It returns true when the
// page is ready to submit, false when the captcha could not be solved.
func (c *CaptchaResolver) Resolve(ctx context.Context, page PageDriver) (bool, error) {
	if !page.Exists(c.site.CaptchaImageSelector) {
		c.recorder.Record(ctx, domain.LogLevelWarning, "captcha",
			"no captcha image found, assuming none required", nil)
		return true, nil
	}

	tile, err := c.extractImage(page)
	if err != nil {
		return false, err
	}

	target, err := c.extractTarget(page)
	if err != nil {
		return false, err
	}

	c.recorder.Record(ctx, domain.LogLevelInfo, "captcha",
		"solving captcha", map[string]interface{}{"target": target})

	indices, err := c.solver.Match(ctx, target, [][]byte{tile})
	if err != nil {
		c.recorder.Record(ctx, domain.LogLevelError, "captcha",
			"captcha solver request failed", map[string]interface{}{"error": err.Error()})
		return false, err
	}
	if len(indices) == 0 {
		c.recorder.Record(ctx, domain.LogLevelError, "captcha",
			"solver returned no matching tiles", nil)
		return false, nil
	}

	if page.Exists(c.site.CaptchaAnswerSelector) {
		if err := page.Fill(c.site.CaptchaAnswerSelector, strconv.Itoa(indices[0])); err != nil {
			return false, err
		}
	}

	c.recorder.Success(ctx, "captcha", "captcha solved")
	return true, nil
}

// extractImage returns the raw bytes of the captcha image, decoding inline
// data URIs and downloading remote sources within the page session.
func (c *CaptchaResolver) extractImage(page PageDriver) ([]byte, error) {
	src, err := page.Attribute(c.site.CaptchaImageSelector, "src")
	if err != nil {
		return nil, err
	}

	if strings.HasPrefix(src, "data:image") {
		parts := strings.SplitN(src, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed captcha data URI")
		}
		return base64.StdEncoding.DecodeString(parts[1])
	}
	return page.FetchBytes(src)
}

// extractTarget finds the instruction number in the page body
func (c *CaptchaResolver) extractTarget(page PageDriver) (string, error) {
	body, err := page.BodyText()
	if err != nil {
		return "", err
	}

	match := targetPattern.FindStringSubmatch(body)
	if match == nil {
		return "", domain.ErrCaptchaTargetNotFound
	}
	return match[1], nil
}
