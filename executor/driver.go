package executor

import (
	"context"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/formbot-io/formbot/analyzer"
	"github.com/formbot-io/formbot/browser"
)

// Page abstracts the browser operations the engine performs, so runs can
// be tested without a real browser.
type Page interface {
	// Navigate loads a URL with the resilient wait policy and reports
	// whether the page fully settled.
	Navigate(url string) (browser.WaitResult, error)
	// WaitForSelector waits for an element to appear.
	WaitForSelector(selector string, timeout time.Duration) (browser.WaitResult, error)
	// SetHiddenValue assigns an input's value directly in the DOM.
	SetHiddenValue(selector, value string) error
	// SetFiles attaches files to a file input.
	SetFiles(selector string, paths ...string) error
	// SelectValue picks a select option by value.
	SelectValue(selector, value string) error
	Check(selector string) error
	Uncheck(selector string) error
	Fill(selector, value string) error
	Click(selector string) error
	// SelectorPresent reports whether a selector matches on the page,
	// feeding the captcha and one-time-code heuristics.
	SelectorPresent(selector string) bool
	// Settle waits out a post-submit load, best effort.
	Settle() browser.WaitResult
	Screenshot(path string) error
	Pause(delay time.Duration)
}

// BrowserSession is one live browser with a single page.
type BrowserSession interface {
	Page() Page
	Close()
}

// BrowserLauncher starts browser sessions.
type BrowserLauncher interface {
	Launch(ctx context.Context, opts browser.LaunchOptions) (BrowserSession, error)
}

// PlaywrightLauncher adapts the shared browser runtime to the engine's
// launcher contract.
type PlaywrightLauncher struct {
	runtime *browser.Runtime
}

func NewPlaywrightLauncher(runtime *browser.Runtime) *PlaywrightLauncher {
	return &PlaywrightLauncher{runtime: runtime}
}

func (l *PlaywrightLauncher) Launch(ctx context.Context, opts browser.LaunchOptions) (BrowserSession, error) {
	instance, err := l.runtime.Launch(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &playwrightSession{instance: instance}, nil
}

type playwrightSession struct {
	instance *browser.Instance
}

func (s *playwrightSession) Page() Page {
	return &playwrightPage{page: s.instance.Page}
}

func (s *playwrightSession) Close() {
	s.instance.Close()
}

type playwrightPage struct {
	page playwright.Page
}

func (p *playwrightPage) Navigate(url string) (browser.WaitResult, error) {
	return browser.Navigate(p.page, url)
}

func (p *playwrightPage) WaitForSelector(selector string, timeout time.Duration) (browser.WaitResult, error) {
	return browser.WaitForSelector(p.page, selector, timeout)
}

func (p *playwrightPage) SetHiddenValue(selector, value string) error {
	_, err := p.page.EvalOnSelector(selector, "(el, val) => el.value = val", value)
	return err
}

func (p *playwrightPage) SetFiles(selector string, paths ...string) error {
	return p.page.SetInputFiles(selector, paths)
}

func (p *playwrightPage) SelectValue(selector, value string) error {
	_, err := p.page.SelectOption(selector, playwright.SelectOptionValues{
		Values: &[]string{value},
	})
	return err
}

func (p *playwrightPage) Check(selector string) error {
	return p.page.Check(selector)
}

func (p *playwrightPage) Uncheck(selector string) error {
	return p.page.Uncheck(selector)
}

func (p *playwrightPage) Fill(selector, value string) error {
	return p.page.Fill(selector, value)
}

func (p *playwrightPage) Click(selector string) error {
	return p.page.Click(selector)
}

func (p *playwrightPage) SelectorPresent(selector string) bool {
	return analyzer.PlaywrightPage{Page: p.page}.SelectorPresent(selector)
}

func (p *playwrightPage) Settle() browser.WaitResult {
	return browser.Settle(p.page)
}

func (p *playwrightPage) Screenshot(path string) error {
	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	return err
}

func (p *playwrightPage) Pause(delay time.Duration) {
	p.page.WaitForTimeout(float64(delay.Milliseconds()))
}
