package editing

import (
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/formbot-io/formbot/browser"
)

// PageDriver abstracts the live page an editing session manipulates, so
// session logic is testable without a browser.
type PageDriver interface {
	URL() string
	// Navigate loads a URL with the resilient wait policy.
	Navigate(url string) (browser.WaitResult, error)
	// Evaluate runs a script expression in the page and returns its result.
	Evaluate(expression string, args ...interface{}) (interface{}, error)
	// ExposeBinding publishes a host function callable from page scripts.
	ExposeBinding(name string, fn func(payload string)) error
	// OnNavigated registers a handler invoked after every full-page
	// navigation or load.
	OnNavigated(handler func())
	// WaitForNavigation blocks until the main frame navigates or the
	// timeout elapses; reports whether a navigation happened.
	WaitForNavigation(timeout time.Duration) bool
	Fill(selector, value string) error
	// Click clicks with a bounded timeout.
	Click(selector string, timeout time.Duration) error
	// ForceClick clicks bypassing actionability checks.
	ForceClick(selector string) error
	// PressEnter sends Enter to the focused element.
	PressEnter() error
	// SelectorPresent reports whether the selector matches an element on
	// the current page.
	SelectorPresent(selector string) bool
	// CookieNames lists the names of cookies visible to the page's
	// context. Values are intentionally not exposed.
	CookieNames() ([]string, error)
	Close()
}

// playwrightDriver implements PageDriver over a live playwright instance.
type playwrightDriver struct {
	instance *browser.Instance
	page     playwright.Page
}

// NewPlaywrightDriver wraps a launched browser instance.
func NewPlaywrightDriver(instance *browser.Instance) PageDriver {
	return &playwrightDriver{instance: instance, page: instance.Page}
}

func (d *playwrightDriver) URL() string {
	return d.page.URL()
}

func (d *playwrightDriver) Navigate(url string) (browser.WaitResult, error) {
	return browser.Navigate(d.page, url)
}

func (d *playwrightDriver) Evaluate(expression string, args ...interface{}) (interface{}, error) {
	if len(args) > 0 {
		return d.page.Evaluate(expression, args[0])
	}
	return d.page.Evaluate(expression)
}

func (d *playwrightDriver) ExposeBinding(name string, fn func(payload string)) error {
	return d.page.ExposeFunction(name, func(args ...interface{}) interface{} {
		if len(args) > 0 {
			if payload, ok := args[0].(string); ok {
				fn(payload)
			}
		}
		return nil
	})
}

func (d *playwrightDriver) OnNavigated(handler func()) {
	d.page.On("load", func(...interface{}) { handler() })
	d.page.On("framenavigated", func(args ...interface{}) {
		if len(args) > 0 {
			if frame, ok := args[0].(playwright.Frame); ok {
				if frame != d.page.MainFrame() {
					return
				}
			}
		}
		handler()
	})
}

func (d *playwrightDriver) WaitForNavigation(timeout time.Duration) bool {
	err := d.page.WaitForURL("**", playwright.PageWaitForURLOptions{
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	return err == nil
}

func (d *playwrightDriver) Fill(selector, value string) error {
	return d.page.Fill(selector, value)
}

func (d *playwrightDriver) Click(selector string, timeout time.Duration) error {
	return d.page.Click(selector, playwright.PageClickOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (d *playwrightDriver) ForceClick(selector string) error {
	return d.page.Click(selector, playwright.PageClickOptions{
		Force:   playwright.Bool(true),
		Timeout: playwright.Float(3000),
	})
}

func (d *playwrightDriver) PressEnter() error {
	return d.page.Keyboard().Press("Enter")
}

func (d *playwrightDriver) SelectorPresent(selector string) bool {
	el, err := d.page.QuerySelector(selector)
	return err == nil && el != nil
}

func (d *playwrightDriver) CookieNames() ([]string, error) {
	cookies, err := d.page.Context().Cookies()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(cookies))
	for _, c := range cookies {
		names = append(names, c.Name)
	}
	return names, nil
}

func (d *playwrightDriver) Close() {
	d.instance.Close()
}
