package analyzer

import "github.com/playwright-community/playwright-go"

// CaptchaSelectors match the common captcha widget embeddings.
var CaptchaSelectors = []string{
	"iframe[src*='recaptcha']",
	"iframe[src*='hcaptcha']",
	".g-recaptcha",
	".h-captcha",
	"[data-sitekey]",
	"iframe[src*='turnstile']",
	".cf-turnstile",
}

// TwoFactorSelectors match inputs that typically take a one-time code.
var TwoFactorSelectors = []string{
	"input[name*='otp']",
	"input[name*='2fa']",
	"input[name*='totp']",
	"input[name*='verification']",
	"input[name*='code']",
	"input[autocomplete='one-time-code']",
}

// PageInspector is the minimal page surface the challenge heuristics
// need. Live playwright pages satisfy it through PlaywrightPage; the
// editing session's page driver satisfies it directly.
type PageInspector interface {
	SelectorPresent(selector string) bool
}

func anyPresent(p PageInspector, selectors []string) bool {
	for _, selector := range selectors {
		if p.SelectorPresent(selector) {
			return true
		}
	}
	return false
}

// DetectCaptcha reports whether the live page shows a captcha widget.
func DetectCaptcha(p PageInspector) bool {
	return anyPresent(p, CaptchaSelectors)
}

// DetectTwoFactor reports whether the live page shows a one-time-code
// prompt.
func DetectTwoFactor(p PageInspector) bool {
	return anyPresent(p, TwoFactorSelectors)
}

// StillOnLoginPage reports whether the login form is still present, which
// after a submit means the login did not go through.
func StillOnLoginPage(p PageInspector, loginFormSelector string) bool {
	if loginFormSelector == "" {
		return false
	}
	return p.SelectorPresent(loginFormSelector)
}

// PlaywrightPage adapts a playwright page to PageInspector.
type PlaywrightPage struct {
	Page playwright.Page
}

func (p PlaywrightPage) SelectorPresent(selector string) bool {
	el, err := p.Page.QuerySelector(selector)
	return err == nil && el != nil
}
