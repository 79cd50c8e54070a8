package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakePage map[string]bool

func (f fakePage) SelectorPresent(selector string) bool {
	return f[selector]
}

func TestDetectCaptcha(t *testing.T) {
	assert.False(t, DetectCaptcha(fakePage{}))
	assert.True(t, DetectCaptcha(fakePage{".g-recaptcha": true}))
	assert.True(t, DetectCaptcha(fakePage{"iframe[src*='turnstile']": true}))
}

func TestDetectTwoFactor(t *testing.T) {
	assert.False(t, DetectTwoFactor(fakePage{}))
	assert.True(t, DetectTwoFactor(fakePage{"input[autocomplete='one-time-code']": true}))
}

func TestStillOnLoginPage(t *testing.T) {
	page := fakePage{"#login-form": true}

	assert.True(t, StillOnLoginPage(page, "#login-form"))
	assert.False(t, StillOnLoginPage(page, "#other-form"))
	// Without a selector the check has no verdict.
	assert.False(t, StillOnLoginPage(page, ""))
}
