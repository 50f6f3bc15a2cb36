package automation

import "context"

// PageDriver is the minimal browser surface the automation flows need. The
// production implementation drives a real Chromium page; tests supply fakes.
type PageDriver interface {
	// Navigate loads the given URL and waits for the load event.
	Navigate(url string) error
	// WaitIdle waits until the page reaches network idle or times out.
	WaitIdle() error
	// URL returns the current page URL.
	URL() string
	// BodyText returns the visible text content of the page body.
	BodyText() (string, error)
	// Fill types a value into the first element matching selector.
	Fill(selector, value string) error
	// Click clicks the first element matching selector.
	Click(selector string) error
	// Exists reports whether at least one element matches selector.
	Exists(selector string) bool
	// IsVisible reports whether the first match for selector is visible.
	IsVisible(selector string) bool
	// Attribute returns the named attribute of the first match, or an
	// empty string when absent.
	Attribute(selector, name string) (string, error)
	// TextContents returns the text content of every element matching
	// selector, in document order.
	TextContents(selector string) ([]string, error)
	// SelectOption selects the option with the given value on the first
	// matching select element.
	SelectOption(selector, value string) error
	// Evaluate runs a JavaScript expression in the page context.
	Evaluate(script string) (interface{}, error)
	// FetchBytes downloads the resource at url within the page session,
	// carrying its cookies.
	FetchBytes(url string) ([]byte, error)
}

// Session is one live browser session. Release is idempotent and must tear
// down the page, context and browser in that order.
type Session interface {
	Page() PageDriver
	Release()
}

// SessionFactory creates browser sessions. The playwright-backed launcher is
// the production implementation.
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}
