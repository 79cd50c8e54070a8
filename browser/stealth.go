package browser

import "github.com/playwright-community/playwright-go"

// stealthScript masks the most common automation fingerprints. Runs before
// any page script on every page of the context.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });

window.chrome = { runtime: {} };

const originalQuery = window.navigator.permissions.query;
window.navigator.permissions.query = (parameters) =>
    parameters.name === 'notifications'
        ? Promise.resolve({ state: Notification.permission })
        : originalQuery(parameters);

Object.defineProperty(navigator, 'plugins', {
    get: () => [1, 2, 3, 4, 5],
});

Object.defineProperty(navigator, 'languages', {
    get: () => ['en-US', 'en'],
});
`

// ApplyStealth registers the stealth init script on a browser context.
func ApplyStealth(ctx playwright.BrowserContext) error {
	return ctx.AddInitScript(playwright.Script{Content: playwright.String(stealthScript)})
}
