package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/nomadsam6/bls2/internal/automation"
	"github.com/nomadsam6/bls2/internal/config"
	"github.com/nomadsam6/bls2/internal/domain"
)

// startPlaywright is swapped out in tests
var startPlaywright = playwright.Run

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// initScript hides the most common automation fingerprints before any page
// script runs.
const initScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
`

// Launcher creates Chromium-backed browser sessions. Browsers must be
// installed beforehand with:
// go run github.com/playwright-community/playwright-go/cmd/playwright@latest install chromium
type Launcher struct {
	headless bool
}

// NewLauncher creates a session factory
func NewLauncher(cfg config.MonitorConfig) *Launcher {
	return &Launcher{headless: cfg.Headless}
}

// NewSession starts playwright, launches a browser and opens a prepared page
func (l *Launcher) NewSession(ctx context.Context) (automation.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := startPlaywright()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to start playwright: %v", domain.ErrBrowserInit, err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
		},
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("%w: failed to launch browser: %v", domain.ErrBrowserInit, err)
	}

	browserCtx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(userAgent),
		Viewport: &playwright.Size{
			Width:  1920,
			Height: 1080,
		},
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("%w: failed to create browser context: %v", domain.ErrBrowserInit, err)
	}

	if err := browserCtx.AddInitScript(playwright.Script{
		Content: playwright.String(initScript),
	}); err != nil {
		browserCtx.Close()
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("%w: failed to install init script: %v", domain.ErrBrowserInit, err)
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		browserCtx.Close()
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("%w: failed to create page: %v", domain.ErrBrowserInit, err)
	}
	page.SetDefaultTimeout(60000)
	page.SetDefaultNavigationTimeout(60000)

	return &session{
		pw:         pw,
		browser:    browser,
		browserCtx: browserCtx,
		page:       page,
		driver:     &pageDriver{page: page, browserCtx: browserCtx},
	}, nil
}

// session owns one live browser and releases it exactly once, page first,
// then context, browser and the playwright driver.
type session struct {
	pw         *playwright.Playwright
	browser    playwright.Browser
	browserCtx playwright.BrowserContext
	page       playwright.Page
	driver     *pageDriver
	release    sync.Once
}

func (s *session) Page() automation.PageDriver {
	return s.driver
}

func (s *session) Release() {
	s.release.Do(func() {
		s.page.Close()
		s.browserCtx.Close()
		s.browser.Close()
		s.pw.Stop()
	})
}

// pageDriver adapts a playwright page to the automation driver surface
type pageDriver struct {
	page       playwright.Page
	browserCtx playwright.BrowserContext
}

func (d *pageDriver) Navigate(url string) error {
	_, err := d.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
	})
	return err
}

func (d *pageDriver) WaitIdle() error {
	return d.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: playwright.LoadStateNetworkidle,
	})
}

func (d *pageDriver) URL() string {
	return d.page.URL()
}

func (d *pageDriver) BodyText() (string, error) {
	return d.page.Locator("body").TextContent()
}

func (d *pageDriver) Fill(selector, value string) error {
	return d.page.Locator(selector).First().Fill(value)
}

func (d *pageDriver) Click(selector string) error {
	return d.page.Locator(selector).First().Click()
}

func (d *pageDriver) Exists(selector string) bool {
	count, err := d.page.Locator(selector).Count()
	return err == nil && count > 0
}

func (d *pageDriver) IsVisible(selector string) bool {
	visible, err := d.page.Locator(selector).First().IsVisible()
	return err == nil && visible
}

func (d *pageDriver) Attribute(selector, name string) (string, error) {
	value, err := d.page.Locator(selector).First().GetAttribute(name)
	if err != nil {
		return "", err
	}
	return value, nil
}

func (d *pageDriver) TextContents(selector string) ([]string, error) {
	return d.page.Locator(selector).AllTextContents()
}

func (d *pageDriver) SelectOption(selector, value string) error {
	_, err := d.page.Locator(selector).First().SelectOption(playwright.SelectOptionValues{
		Values: &[]string{value},
	})
	return err
}

func (d *pageDriver) Evaluate(script string) (interface{}, error) {
	return d.page.Evaluate(script)
}

// FetchBytes downloads a resource through the browser context so the request
// carries the session cookies.
func (d *pageDriver) FetchBytes(url string) ([]byte, error) {
	resp, err := d.browserCtx.Request().Get(url)
	if err != nil {
		return nil, err
	}
	return resp.Body()
}
