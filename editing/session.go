package editing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/formbot-io/formbot/broadcast"
	"github.com/formbot-io/formbot/logger"
)

var (
	// ErrSessionNotFound marks operations against an unknown session id.
	ErrSessionNotFound = errors.New("editing session not found")
	// ErrSessionBusy marks mutating commands issued while a login
	// execution or navigation is in flight.
	ErrSessionBusy = errors.New("editing session is busy")
)

// Session is one live interactive-editing session: a browser page kept
// open for human-driven field correction, plus the overlay injected into
// it. All mutating commands are rejected while the session is executing a
// login or navigating; reading a field value stays permitted.
type Session struct {
	TaskID string
	// DisplaySessionID is set when the session runs headed on a pooled
	// display, so cleanup can release the slot.
	DisplaySessionID *string

	driver  PageDriver
	overlay *Overlay
	guard   *stateGuard
	bc      broadcast.Broadcaster
	logger  logger.Logger

	confirm *signal
	cancel  *signal
	resume  *signal

	createdAt time.Time

	// submitWait bounds how long the login flow watches for a post-submit
	// URL change before falling back to snapshot comparison.
	submitWait time.Duration
}

// NewSession wraps a live page driver. The caller injects the overlay via
// Setup before handing the session to users.
func NewSession(taskID string, driver PageDriver, bc broadcast.Broadcaster, lgr logger.Logger) *Session {
	return &Session{
		TaskID:     taskID,
		driver:     driver,
		overlay:    NewOverlay(driver, taskID, bc, lgr),
		guard:      newStateGuard(),
		bc:         bc,
		logger:     lgr,
		confirm:    newSignal(),
		cancel:     newSignal(),
		resume:     newSignal(),
		createdAt:  time.Now(),
		submitWait: postSubmitWait,
	}
}

// Setup registers the overlay bridge and injects it with the initial
// field set.
func (s *Session) Setup(ctx context.Context, fields []Field) error {
	if err := s.overlay.Setup(ctx, fields); err != nil {
		return err
	}
	return s.overlay.Inject()
}

func (s *Session) State() State { return s.guard.Current() }

func (s *Session) CreatedAt() time.Time { return s.createdAt }

func (s *Session) Fields() []Field { return s.overlay.Fields() }

// Confirm fires the confirmation signal. Idempotent.
func (s *Session) Confirm() { s.confirm.Fire() }

// Cancel fires the cancellation signal. Idempotent.
func (s *Session) Cancel() { s.cancel.Fire() }

// ResumeLogin unblocks a login flow paused at a human breakpoint.
// Idempotent; firing before the wait starts still unblocks it.
func (s *Session) ResumeLogin() { s.resume.Fire() }

// Confirmed reports whether the user confirmed the session's field set.
func (s *Session) Confirmed() bool { return s.confirm.Fired() }

// Cancelled reports whether the user cancelled the session.
func (s *Session) Cancelled() bool { return s.cancel.Fired() }

// WaitForDecision blocks until the user confirms or cancels, the timeout
// elapses, or ctx is done. Returns "confirmed", "cancelled" or "timeout".
func (s *Session) WaitForDecision(ctx context.Context, timeout time.Duration) string {
	select {
	case <-s.confirm.ch:
		return "confirmed"
	case <-s.cancel.ch:
		return "cancelled"
	case <-time.After(timeout):
		return "timeout"
	case <-ctx.Done():
		return "cancelled"
	}
}

// SetMode switches the overlay interaction mode.
func (s *Session) SetMode(mode string) error {
	if s.guard.Busy() {
		return ErrSessionBusy
	}
	return s.overlay.SetMode(mode)
}

// UpdateFields replaces the highlighted field set.
func (s *Session) UpdateFields(fields []Field) error {
	if s.guard.Busy() {
		return ErrSessionBusy
	}
	return s.overlay.UpdateFields(fields)
}

// FocusField scrolls a field into view and flashes it.
func (s *Session) FocusField(index int) error {
	if s.guard.Busy() {
		return ErrSessionBusy
	}
	return s.overlay.FocusField(index)
}

// TestSelector checks a selector against the live page.
func (s *Session) TestSelector(selector string) (SelectorTestResult, error) {
	if s.guard.Busy() {
		return SelectorTestResult{}, ErrSessionBusy
	}
	return s.overlay.TestSelector(selector)
}

// FillField writes a value into a tracked field on the live page.
func (s *Session) FillField(index int, value string) error {
	if s.guard.Busy() {
		return ErrSessionBusy
	}
	return s.overlay.FillField(index, value)
}

// ReadFieldValue reads a field's current value. Permitted even while the
// session is busy.
func (s *Session) ReadFieldValue(index int) (string, error) {
	return s.overlay.ReadFieldValue(index)
}

// Navigate moves the live page to a new URL for multi-step flows. Progress
// is broadcast as NavigationStarted/Completed/Failed keyed by requestID so
// callers can correlate events with the request that triggered them.
func (s *Session) Navigate(ctx context.Context, url string, step int, requestID string) error {
	if !s.guard.Acquire(StateNavigating) {
		return ErrSessionBusy
	}
	defer s.guard.Release()

	data := map[string]interface{}{
		"url":        url,
		"step":       step,
		"request_id": requestID,
	}
	s.bc.TriggerTaskEditing(ctx, s.TaskID, "NavigationStarted", data)

	if _, err := s.driver.Navigate(url); err != nil {
		failed := map[string]interface{}{
			"url":        url,
			"step":       step,
			"request_id": requestID,
			"error":      fmt.Sprintf("navigation to %s failed", url),
		}
		s.bc.TriggerTaskEditing(ctx, s.TaskID, "NavigationFailed", failed)
		s.logger.Warn(ctx, "editing navigation failed", map[string]interface{}{
			"task_id": s.TaskID,
			"url":     url,
			"error":   err.Error(),
		})
		return fmt.Errorf("navigate to %s: %w", url, err)
	}

	// Overlay re-injection rides the page load handler registered in Setup.
	s.bc.TriggerTaskEditing(ctx, s.TaskID, "NavigationCompleted", data)
	return nil
}

// Close removes the overlay and closes the browser. Best-effort on each
// sub-step.
func (s *Session) Close() {
	s.overlay.Cleanup()
	s.driver.Close()
}
