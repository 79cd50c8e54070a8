package browser

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/formbot-io/formbot/logger"
)

// Runtime owns the shared Playwright driver process. One Runtime serves
// every browser launched by the service.
type Runtime struct {
	mu          sync.Mutex
	pw          *playwright.Playwright
	logger      logger.Logger
	initialized bool
}

func NewRuntime(log logger.Logger) *Runtime {
	return &Runtime{logger: log}
}

// Initialize installs browsers if needed and starts the driver. Safe to
// call more than once.
func (r *Runtime) Initialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return nil
	}

	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	r.pw = pw
	r.initialized = true
	return nil
}

// Shutdown stops the driver process.
func (r *Runtime) Shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized || r.pw == nil {
		return nil
	}
	if err := r.pw.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	r.pw = nil
	r.initialized = false
	return nil
}

// LaunchOptions controls how a browser instance comes up.
type LaunchOptions struct {
	// Headless runs the browser without any display. When false, Display
	// must name the X display to render into.
	Headless bool
	// Display is the DISPLAY value for headed launches, e.g. ":99".
	Display string
	// UserAgent overrides the context user agent when non-empty.
	UserAgent string
	// StealthEnabled injects anti-automation-detection scripts into
	// every page of the context.
	StealthEnabled bool
}

// Instance is one launched browser with a single context and page.
type Instance struct {
	Browser playwright.Browser
	Context playwright.BrowserContext
	Page    playwright.Page
}

// Close tears the instance down. Errors are swallowed; the browser
// process dying first is not a failure.
func (i *Instance) Close() {
	if i.Page != nil {
		_ = i.Page.Close()
	}
	if i.Context != nil {
		_ = i.Context.Close()
	}
	if i.Browser != nil {
		_ = i.Browser.Close()
	}
}

// Launch starts a Chromium instance. Headed launches render into the
// given X display so a human can watch through the framebuffer viewer.
func (r *Runtime) Launch(ctx context.Context, opts LaunchOptions) (*Instance, error) {
	r.mu.Lock()
	pw := r.pw
	initialized := r.initialized
	r.mu.Unlock()
	if !initialized {
		return nil, fmt.Errorf("browser runtime not initialized")
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     []string{"--no-sandbox", "--disable-setuid-sandbox"},
	}
	if !opts.Headless && opts.Display != "" {
		// DISPLAY goes to this browser process only, so concurrent
		// runs on different slots cannot race on a shared env var.
		launchOpts.Env = map[string]string{"DISPLAY": opts.Display}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: 1280, Height: 720},
	}
	if opts.UserAgent != "" {
		contextOpts.UserAgent = playwright.String(opts.UserAgent)
	}
	browserCtx, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	if opts.StealthEnabled {
		if err := ApplyStealth(browserCtx); err != nil {
			r.logger.Warn(ctx, "failed to apply stealth scripts", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		browserCtx.Close()
		browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	r.logger.Debug(ctx, "browser launched", map[string]interface{}{
		"headless": opts.Headless,
		"display":  opts.Display,
	})
	return &Instance{Browser: browser, Context: browserCtx, Page: page}, nil
}
