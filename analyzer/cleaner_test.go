package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
  <title>Login</title>
  <style>body { color: red; }</style>
  <script>console.log("tracking");</script>
</head>
<body>
  <!-- layout comment -->
  <form id="login-form" action="/login" method="post" style="margin:0">
    <label for="user">Username</label>
    <input id="user" name="username" type="text" placeholder="Username" required onfocus="track()">
    <input id="pass" name="password" type="password" autocomplete="current-password">
    <div class="g-recaptcha" data-sitekey="abc123"></div>
    <iframe src="https://www.google.com/recaptcha/api2/anchor"></iframe>
    <button type="submit">Sign in</button>
  </form>
  <svg><path d="M0 0"/></svg>
</body>
</html>`

func TestCleanHTML_StripsNoise(t *testing.T) {
	cleaned, err := CleanHTML(samplePage, 50000)
	require.NoError(t, err)

	assert.NotContains(t, cleaned, "console.log")
	assert.NotContains(t, cleaned, "color: red")
	assert.NotContains(t, cleaned, "layout comment")
	assert.NotContains(t, cleaned, "<svg")
	assert.NotContains(t, cleaned, "onfocus")
	assert.NotContains(t, cleaned, "style=")
}

func TestCleanHTML_KeepsTargetingMarkup(t *testing.T) {
	cleaned, err := CleanHTML(samplePage, 50000)
	require.NoError(t, err)

	assert.Contains(t, cleaned, `id="login-form"`)
	assert.Contains(t, cleaned, `action="/login"`)
	assert.Contains(t, cleaned, `name="username"`)
	assert.Contains(t, cleaned, `type="password"`)
	assert.Contains(t, cleaned, `autocomplete="current-password"`)
	assert.Contains(t, cleaned, `placeholder="Username"`)
	assert.Contains(t, cleaned, `for="user"`)
	assert.Contains(t, cleaned, "Sign in")
	// Captcha markers survive so the classifier can flag them.
	assert.Contains(t, cleaned, `data-sitekey="abc123"`)
	assert.Contains(t, cleaned, "recaptcha")
}

func TestCleanHTML_ByteBudget(t *testing.T) {
	big := "<html><body>" + strings.Repeat("<p>lorem ipsum dolor</p>", 10000) + "</body></html>"
	cleaned, err := CleanHTML(big, 5000)
	require.NoError(t, err)
	// The budget bounds content, with slack for closing tags in flight.
	assert.Less(t, len(cleaned), 6000)
}

func TestCleanHTML_Malformed(t *testing.T) {
	cleaned, err := CleanHTML("<form><input name=broken", 1000)
	require.NoError(t, err)
	assert.Contains(t, cleaned, `name="broken"`)
}
