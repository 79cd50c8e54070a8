package browser

import (
	"errors"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

// WaitResult distinguishes a satisfied wait from a tolerated timeout.
// Callers decide per call site whether a timeout is fatal.
type WaitResult int

const (
	WaitOK WaitResult = iota
	WaitTimedOut
)

func (r WaitResult) TimedOut() bool { return r == WaitTimedOut }

const (
	navigationTimeout = 30 * time.Second
	loadTimeout       = 15 * time.Second
	settleDelay       = time.Second
)

// isTimeout reports whether an error is a wait timeout rather than a hard
// failure.
func isTimeout(err error) bool {
	if errors.Is(err, playwright.ErrTimeout) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

func millis(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

// Navigate loads a URL and waits for the DOM to be ready, then makes a
// best-effort wait for subresources and a short settle delay. A timeout
// on the best-effort phase is reported, not fatal; only a navigation that
// never reaches DOM readiness returns an error.
func Navigate(page playwright.Page, url string) (WaitResult, error) {
	_, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   millis(navigationTimeout),
	})
	if err != nil {
		return WaitTimedOut, err
	}
	return Settle(page), nil
}

// Settle waits for the load event with a bounded timeout and then gives
// late scripts a moment to run. Timeouts are tolerated; slow third-party
// resources must not wedge automation.
func Settle(page playwright.Page) WaitResult {
	result := WaitOK
	err := page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateLoad,
		Timeout: millis(loadTimeout),
	})
	if err != nil && isTimeout(err) {
		result = WaitTimedOut
	}
	page.WaitForTimeout(float64(settleDelay.Milliseconds()))
	return result
}

// WaitForSelector waits for an element to appear. Returns WaitTimedOut
// with a nil error when the element never shows up, so callers choose
// whether that is fatal.
func WaitForSelector(page playwright.Page, selector string, timeout time.Duration) (WaitResult, error) {
	_, err := page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		Timeout: millis(timeout),
	})
	if err != nil {
		if isTimeout(err) {
			return WaitTimedOut, nil
		}
		return WaitTimedOut, err
	}
	return WaitOK, nil
}
