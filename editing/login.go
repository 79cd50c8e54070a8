package editing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/formbot-io/formbot/analyzer"
)

// LoginField is one field of a login form as submitted by the client.
type LoginField struct {
	Selector string `json:"selector"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Value    string `json:"value"`
	Required bool   `json:"required"`
}

// LoginRequest drives ExecuteLogin.
type LoginRequest struct {
	Fields         []LoginField
	TargetURL      string
	SubmitSelector string
	// HumanBreakpoint pauses after submit for manual intervention
	// (captcha, 2FA) until ResumeLogin fires or the timeout elapses.
	HumanBreakpoint bool
	ResumeTimeout   time.Duration
}

const (
	submitClickTimeout = 5 * time.Second
	postSubmitWait     = 3 * time.Second
	defaultResumeWait  = time.Hour
)

// pageSnapshot is a cheap fingerprint of the page used to detect
// script-driven content swaps that never change the URL.
type pageSnapshot struct {
	TextPrefix   string `json:"textPrefix"`
	MarkupLength int    `json:"markupLength"`
	Title        string `json:"title"`
	Path         string `json:"path"`
}

const snapshotScript = `(() => ({
	textPrefix: (document.body ? document.body.innerText : '').slice(0, 500),
	markupLength: document.documentElement.outerHTML.length,
	title: document.title,
	path: location.pathname + location.search
}))()`

// ExecuteLogin runs the guarded login sub-flow: fill the login fields,
// find and activate the submit control with escalating fallbacks, verify
// that submission had an observable effect, optionally pause for a human,
// then move the page to the target URL with a fresh empty field set.
//
// This runs in the background; every failure is reported as a structured
// event on the task's editing channel rather than returned to an HTTP
// caller. The returned error exists for logging and tests.
func (s *Session) ExecuteLogin(ctx context.Context, req LoginRequest) error {
	if !s.guard.Acquire(StateExecuting) {
		return ErrSessionBusy
	}
	defer s.guard.Release()

	s.bc.TriggerTaskEditing(ctx, s.TaskID, "LoginExecutionStarted", map[string]interface{}{
		"target_url":  req.TargetURL,
		"field_count": len(req.Fields),
	})

	cookieNames, err := s.runLogin(ctx, req)
	if err != nil {
		s.bc.TriggerTaskEditing(ctx, s.TaskID, "LoginExecutionFailed", map[string]interface{}{
			"error": err.Error(),
		})
		s.logger.Warn(ctx, "login execution failed", map[string]interface{}{
			"task_id": s.TaskID,
			"error":   err.Error(),
		})
		return err
	}

	s.bc.TriggerTaskEditing(ctx, s.TaskID, "LoginExecutionCompleted", map[string]interface{}{
		"target_url":      req.TargetURL,
		"session_cookies": cookieNames,
	})
	return nil
}

func (s *Session) runLogin(ctx context.Context, req LoginRequest) ([]string, error) {
	submitField, err := s.fillLoginFields(ctx, req.Fields)
	if err != nil {
		return nil, err
	}

	submitSelector := req.SubmitSelector
	if submitSelector == "" {
		submitSelector = submitField
	}

	before := s.takeSnapshot()
	beforeURL := s.driver.URL()

	if err := s.submitAndVerify(ctx, submitSelector, beforeURL, before); err != nil {
		return nil, err
	}

	// The breakpoint flag gates the pause; the challenge selectors decide
	// whether a human is genuinely needed on this page.
	if req.HumanBreakpoint {
		if challenge := s.detectChallenge(); challenge != "" {
			if !s.pauseForHuman(ctx, req.ResumeTimeout, challenge) {
				return nil, fmt.Errorf("manual intervention timed out")
			}
		} else {
			s.logger.Debug(ctx, "no challenge on page, breakpoint skipped", map[string]interface{}{
				"task_id": s.TaskID,
			})
		}
	}

	if analyzer.StillOnLoginPage(s.driver, loginFormMarker(req.Fields)) {
		return nil, fmt.Errorf("login form still present after submit")
	}

	// Session cookies are read before leaving the login host. Only names
	// are surfaced; values never appear in events or logs.
	cookieNames, err := s.driver.CookieNames()
	if err != nil {
		s.logger.Debug(ctx, "cookie read after login skipped", map[string]interface{}{
			"task_id": s.TaskID,
			"error":   err.Error(),
		})
	}

	if _, err := s.driver.Navigate(req.TargetURL); err != nil {
		return nil, fmt.Errorf("navigate to target %s: %w", req.TargetURL, err)
	}

	// The human selects fields fresh on the new page.
	if err := s.overlay.UpdateFields(nil); err != nil {
		s.logger.Debug(ctx, "field reset after login skipped", map[string]interface{}{
			"task_id": s.TaskID,
			"error":   err.Error(),
		})
	}
	if err := s.overlay.Inject(); err != nil {
		s.logger.Debug(ctx, "overlay re-inject after login skipped", map[string]interface{}{
			"task_id": s.TaskID,
			"error":   err.Error(),
		})
	}
	return cookieNames, nil
}

// fillLoginFields fills every non-submit field. Fill failures on required
// fields or fields carrying a value accumulate and abort before submit;
// optional empty fields that fail are ignored. Returns the selector of a
// submit-typed field seen during the pass, if any.
func (s *Session) fillLoginFields(ctx context.Context, fields []LoginField) (string, error) {
	var submitSelector string
	var failures []string

	for _, field := range fields {
		kind := strings.ToLower(field.Type)
		if kind == "submit" || kind == "button" {
			if submitSelector == "" {
				submitSelector = field.Selector
			}
			continue
		}

		if err := s.driver.Fill(field.Selector, field.Value); err != nil {
			if field.Required || field.Value != "" {
				failures = append(failures, fmt.Sprintf("%s (%s)", field.Name, field.Selector))
			}
			continue
		}
		s.logger.Debug(ctx, "login field filled", map[string]interface{}{
			"task_id":  s.TaskID,
			"selector": field.Selector,
		})
	}

	if len(failures) > 0 {
		return "", fmt.Errorf("could not fill login fields: %s", strings.Join(failures, ", "))
	}
	return submitSelector, nil
}

// submitAndVerify tries each submit strategy in turn until one produces an
// observable post-submit effect.
func (s *Session) submitAndVerify(ctx context.Context, submitSelector, beforeURL string, before pageSnapshot) error {
	attempts := []struct {
		name string
		run  func() error
	}{
		{"click", func() error {
			if submitSelector == "" {
				return fmt.Errorf("no submit selector")
			}
			return s.driver.Click(submitSelector, submitClickTimeout)
		}},
		{"force click", func() error {
			if submitSelector == "" {
				return fmt.Errorf("no submit selector")
			}
			return s.driver.ForceClick(submitSelector)
		}},
		{"scripted submit", func() error {
			if submitSelector == "" {
				return fmt.Errorf("no submit selector")
			}
			return s.scriptedSubmit(submitSelector)
		}},
		{"press enter", func() error {
			return s.driver.PressEnter()
		}},
	}

	var lastErr error
	for _, attempt := range attempts {
		if err := attempt.run(); err != nil {
			lastErr = fmt.Errorf("%s: %w", attempt.name, err)
			continue
		}
		if s.submitTookEffect(beforeURL, before) {
			s.logger.Info(ctx, "login submit registered", map[string]interface{}{
				"task_id":  s.TaskID,
				"strategy": attempt.name,
			})
			return nil
		}
		lastErr = fmt.Errorf("%s produced no page change", attempt.name)
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no submit strategy available")
	}
	return fmt.Errorf("submit not registered: %w", lastErr)
}

// scriptedSubmit submits the enclosing form from inside the page, or
// clicks the element directly when it has no form.
func (s *Session) scriptedSubmit(selector string) error {
	script := `(sel) => {
		const el = document.querySelector(sel);
		if (!el) return false;
		const form = el.form || el.closest('form');
		if (form) {
			if (typeof form.requestSubmit === 'function') { form.requestSubmit(); } else { form.submit(); }
			return true;
		}
		el.click();
		return true;
	}`
	result, err := s.driver.Evaluate(script, selector)
	if err != nil {
		return err
	}
	if ok, _ := result.(bool); !ok {
		return fmt.Errorf("submit element %s not found", selector)
	}
	return nil
}

// submitTookEffect decides whether a submit attempt did anything, in three
// tiers: URL change, then a main-frame navigation event, then a DOM
// snapshot diff. Script-driven forms often swap content without ever
// changing the URL, and network-idle waits are unreliable on modern pages.
func (s *Session) submitTookEffect(beforeURL string, before pageSnapshot) bool {
	deadline := time.Now().Add(s.submitWait)
	for time.Now().Before(deadline) {
		if s.driver.URL() != beforeURL {
			return true
		}
		time.Sleep(250 * time.Millisecond)
	}

	if s.driver.WaitForNavigation(2 * time.Second) {
		if s.driver.URL() != beforeURL {
			return true
		}
	}

	after := s.takeSnapshot()
	return after != before
}

func (s *Session) takeSnapshot() pageSnapshot {
	raw, err := s.driver.Evaluate(snapshotScript)
	if err != nil {
		return pageSnapshot{}
	}
	snap := pageSnapshot{}
	if m, ok := raw.(map[string]interface{}); ok {
		if v, ok := m["textPrefix"].(string); ok {
			snap.TextPrefix = v
		}
		switch v := m["markupLength"].(type) {
		case float64:
			snap.MarkupLength = int(v)
		case int:
			snap.MarkupLength = v
		}
		if v, ok := m["title"].(string); ok {
			snap.Title = v
		}
		if v, ok := m["path"].(string); ok {
			snap.Path = v
		}
	}
	return snap
}

// detectChallenge checks the post-submit page for a captcha widget or a
// one-time-code prompt.
func (s *Session) detectChallenge() string {
	switch {
	case analyzer.DetectCaptcha(s.driver):
		return "captcha"
	case analyzer.DetectTwoFactor(s.driver):
		return "two_factor"
	default:
		return ""
	}
}

// loginFormMarker picks the selector used to verify the login form is
// gone after submit. A password field is the strongest login-form marker.
func loginFormMarker(fields []LoginField) string {
	for _, field := range fields {
		if strings.ToLower(field.Type) == "password" {
			return field.Selector
		}
	}
	return ""
}

// pauseForHuman waits for the session's resume signal, broadcasting the
// pause and resumption so observers can surface the viewer. Returns false
// when the wait timed out instead of resuming; a timed-out pause is fatal
// to the login flow.
func (s *Session) pauseForHuman(ctx context.Context, timeout time.Duration, challenge string) bool {
	if timeout <= 0 {
		timeout = defaultResumeWait
	}

	data := map[string]interface{}{
		"timeout_seconds": int(timeout.Seconds()),
		"challenge":       challenge,
	}
	if s.DisplaySessionID != nil {
		data["display_session_id"] = *s.DisplaySessionID
	}
	s.bc.TriggerTaskEditing(ctx, s.TaskID, "LoginWaitingManual", data)

	resumed := s.resume.Wait(ctx, timeout)
	s.bc.TriggerTaskEditing(ctx, s.TaskID, "LoginResumed", map[string]interface{}{
		"resumed":   resumed,
		"timed_out": !resumed,
	})
	return resumed
}
