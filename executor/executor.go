package executor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/formbot-io/formbot/analyzer"
	"github.com/formbot-io/formbot/broadcast"
	"github.com/formbot-io/formbot/browser"
	"github.com/formbot-io/formbot/display"
	"github.com/formbot-io/formbot/execution"
	"github.com/formbot-io/formbot/formfield"
	"github.com/formbot-io/formbot/formstep"
	"github.com/formbot-io/formbot/logger"
	"github.com/formbot-io/formbot/secrets"
	"github.com/formbot-io/formbot/task"
)

var (
	// ErrFormNotFound means a step's form selector never appeared.
	ErrFormNotFound = errors.New("form not found")

	// ErrManualTimeout means a human breakpoint was never resumed.
	ErrManualTimeout = errors.New("timed out waiting for manual intervention")

	// ErrCancelled means the run was externally cancelled.
	ErrCancelled = errors.New("execution cancelled")
)

// DisplaySessions is the slice of the display pool the engine needs.
type DisplaySessions interface {
	Reserve(ctx context.Context, ownerID uint) (*display.Session, error)
	Activate(ctx context.Context, sessionID string) (viewerURL string, wsPort int, err error)
	Deactivate(ctx context.Context, sessionID string) error
	WaitForResume(ctx context.Context, sessionID string, timeout time.Duration) bool
	Stop(ctx context.Context, sessionID string) bool
}

// ScreenshotUploader persists an end-of-run screenshot to object storage.
type ScreenshotUploader interface {
	Upload(ctx context.Context, localPath string, ownerID uint, executionID, kind string) (key string, size int64, err error)
}

// Config holds the engine's tunables.
type Config struct {
	// UploadDir is where file-upload preset values are resolved.
	UploadDir string
	// ScreenshotDir is where screenshots are written before upload.
	ScreenshotDir string
	// ResumeTimeout bounds how long a human breakpoint may stay open.
	ResumeTimeout time.Duration
	// FormWaitTimeout bounds the wait for a step's form selector.
	FormWaitTimeout time.Duration
	// EncryptionKey decrypts sensitive preset values.
	EncryptionKey []byte
}

func (c *Config) applyDefaults() {
	if c.ResumeTimeout <= 0 {
		c.ResumeTimeout = time.Hour
	}
	if c.FormWaitTimeout <= 0 {
		c.FormWaitTimeout = 10 * time.Second
	}
	if c.ScreenshotDir == "" {
		c.ScreenshotDir = "/tmp"
	}
}

// Engine runs tasks end to end: resolve steps, drive the browser, pause
// for humans, persist the outcome.
type Engine struct {
	cfg         Config
	tasks       task.Store
	steps       formstep.Store
	fields      formfield.Store
	executions  execution.Store
	displays    DisplaySessions
	browsers    BrowserLauncher
	broadcaster broadcast.Broadcaster
	screenshots ScreenshotUploader
	logger      logger.Logger
}

func NewEngine(
	cfg Config,
	tasks task.Store,
	steps formstep.Store,
	fields formfield.Store,
	executions execution.Store,
	displays DisplaySessions,
	browsers BrowserLauncher,
	bc broadcast.Broadcaster,
	screenshots ScreenshotUploader,
	log logger.Logger,
) *Engine {
	cfg.applyDefaults()
	return &Engine{
		cfg:         cfg,
		tasks:       tasks,
		steps:       steps,
		fields:      fields,
		executions:  executions,
		displays:    displays,
		browsers:    browsers,
		broadcaster: bc,
		screenshots: screenshots,
		logger:      log,
	}
}

// Result summarizes a finished run.
type Result struct {
	ExecutionID uuid.UUID        `json:"execution_id"`
	Status      execution.Status `json:"status"`
	Screenshot  string           `json:"screenshot,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// run carries the mutable state of one execution.
type run struct {
	task      *task.Task
	exec      *execution.ExecutionLog
	steps     []*formstep.FormStep
	stepsLog  []execution.StepRecord
	sessionID string
	isDryRun  bool
}

func (e *Engine) broadcastRun(ctx context.Context, r *run, event string, data map[string]interface{}) {
	e.broadcaster.TriggerExecution(ctx, r.task.OwnerID, r.exec.ID.String(), event, data)
}

// Execute runs a task. When executionID is non-nil an existing pending
// row (created by an upstream orchestrator) is transitioned in place;
// otherwise a fresh one is created. The returned error mirrors the
// persisted failure, so callers may ignore it when they only observe
// events.
func (e *Engine) Execute(ctx context.Context, taskID uuid.UUID, executionID *uuid.UUID, isDryRun bool) (*Result, error) {
	t, err := e.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	var exec *execution.ExecutionLog
	if executionID != nil {
		exec, err = e.executions.Update(ctx, *executionID, execution.SetStarted())
		if err != nil {
			return nil, err
		}
	} else {
		exec = &execution.ExecutionLog{TaskID: t.ID, IsDryRun: isDryRun}
		exec.Start()
		if err := e.executions.Create(ctx, exec); err != nil {
			return nil, err
		}
	}

	r := &run{task: t, exec: exec, isDryRun: isDryRun || exec.IsDryRun}

	e.broadcastRun(ctx, r, "execution.started", map[string]interface{}{
		"task_id":    t.ID.String(),
		"status":     string(execution.StatusRunning),
		"is_dry_run": r.isDryRun,
		"started_at": time.Now().UTC().Format(time.RFC3339),
	})

	steps, err := e.steps.ListByTask(ctx, t.ID)
	if err != nil {
		return e.finish(ctx, r, execution.StatusFailed, err)
	}
	if len(steps) == 0 {
		return e.finish(ctx, r, execution.StatusFailed, errors.New("task has no steps"))
	}
	r.steps = formstep.ResolveOrder(steps)

	// Stop is idempotent on an unknown session, so the deferred call is
	// safe even when the happy path already tore the session down.
	defer func() {
		if r.sessionID != "" {
			e.displays.Stop(context.WithoutCancel(ctx), r.sessionID)
		}
	}()

	needsDisplay := false
	for _, step := range r.steps {
		if step.HumanBreakpoint {
			needsDisplay = true
			break
		}
	}
	if needsDisplay {
		session, err := e.displays.Reserve(ctx, t.OwnerID)
		if err != nil {
			return e.finish(ctx, r, execution.StatusFailed, fmt.Errorf("reserve display: %w", err))
		}
		r.sessionID = session.ID

		launchOpts := e.launchOptions(t, session.Display())
		return e.runSteps(ctx, r, launchOpts)
	}

	return e.runSteps(ctx, r, e.launchOptions(t, ""))
}

func (e *Engine) launchOptions(t *task.Task, displayHandle string) browser.LaunchOptions {
	return browser.LaunchOptions{
		Headless:       displayHandle == "",
		Display:        displayHandle,
		UserAgent:      t.CustomUserAgent,
		StealthEnabled: t.StealthEnabled,
	}
}

func (e *Engine) runSteps(ctx context.Context, r *run, launchOpts browser.LaunchOptions) (*Result, error) {
	session, err := e.browsers.Launch(ctx, launchOpts)
	if err != nil {
		return e.finish(ctx, r, execution.StatusFailed, fmt.Errorf("launch browser: %w", err))
	}
	defer session.Close()

	page := session.Page()
	actionDelay := time.Duration(r.task.ActionDelayMs) * time.Millisecond

	for i, step := range r.steps {
		if ctx.Err() != nil {
			return e.finish(ctx, r, execution.StatusFailed, ErrCancelled)
		}

		rec := execution.StepRecord{
			Step:      step.StepOrder,
			PageURL:   step.PageURL,
			FormType:  step.FormType,
			Status:    execution.StepStarted,
			Timestamp: time.Now().UTC(),
		}

		e.broadcastRun(ctx, r, "execution.step_started", map[string]interface{}{
			"task_id":     r.task.ID.String(),
			"step":        step.StepOrder,
			"total_steps": len(r.steps),
			"page_url":    step.PageURL,
			"form_type":   step.FormType,
		})

		if _, err := page.Navigate(step.PageURL); err != nil {
			rec.Error = err.Error()
			r.stepsLog = append(r.stepsLog, rec)
			return e.finish(ctx, r, execution.StatusFailed, fmt.Errorf("navigate to %s: %w", step.PageURL, err))
		}
		rec.Navigated = true

		if step.FormSelector != "" {
			result, err := page.WaitForSelector(step.FormSelector, e.cfg.FormWaitTimeout)
			if err != nil || result.TimedOut() {
				rec.Status = execution.StepFormNotFound
				rec.Error = fmt.Sprintf("form selector %q not found", step.FormSelector)
				r.stepsLog = append(r.stepsLog, rec)
				return e.finish(ctx, r, execution.StatusFailed,
					fmt.Errorf("%w: %s", ErrFormNotFound, rec.Error))
			}
		}

		if err := e.fillFields(ctx, r, page, step, &rec, actionDelay); err != nil {
			r.stepsLog = append(r.stepsLog, rec)
			return e.finish(ctx, r, execution.StatusFailed, err)
		}

		if step.HumanBreakpoint {
			if err := e.pauseForHuman(ctx, r, page, &rec); err != nil {
				r.stepsLog = append(r.stepsLog, rec)
				return e.finish(ctx, r, execution.StatusFailed, err)
			}
		}

		isLastStep := i == len(r.steps)-1

		if r.isDryRun && isLastStep {
			rec.Status = execution.StepDryRunComplete
			r.stepsLog = append(r.stepsLog, rec)
			screenshot := e.captureScreenshot(ctx, r, page, "dryrun")
			return e.finishWithScreenshot(ctx, r, execution.StatusDryRunOK, screenshot)
		}

		e.submitStep(page, step, &rec)
		r.stepsLog = append(r.stepsLog, rec)

		e.broadcastRun(ctx, r, "execution.step_completed", map[string]interface{}{
			"task_id":     r.task.ID.String(),
			"step":        step.StepOrder,
			"total_steps": len(r.steps),
			"status":      rec.Status,
		})
	}

	screenshot := e.captureScreenshot(ctx, r, page, "final")
	return e.finishWithScreenshot(ctx, r, execution.StatusSuccess, screenshot)
}

// fillFields fills every field with a preset value, in sort order. A
// single broken selector is recorded and skipped.
func (e *Engine) fillFields(ctx context.Context, r *run, page Page, step *formstep.FormStep, rec *execution.StepRecord, actionDelay time.Duration) error {
	fields, err := e.fields.ListByStep(ctx, step.ID)
	if err != nil {
		return fmt.Errorf("load fields for step %d: %w", step.StepOrder, err)
	}

	for _, field := range fields {
		if field.PresetValue == nil {
			continue
		}
		value := *field.PresetValue

		if field.IsSensitive && len(e.cfg.EncryptionKey) > 0 {
			decrypted, err := secrets.DecryptValue(e.cfg.EncryptionKey, value)
			if err != nil {
				e.logger.Warn(ctx, "failed to decrypt field value", map[string]interface{}{
					"field": field.Name,
					"step":  step.StepOrder,
				})
			} else {
				value = decrypted
			}
		}

		if err := e.fillOne(page, field, value); err != nil {
			if rec.FieldErrors == nil {
				rec.FieldErrors = make(map[string]string)
			}
			rec.FieldErrors[field.Name] = err.Error()
			e.logger.Warn(ctx, "field fill failed", map[string]interface{}{
				"field": field.Name,
				"step":  step.StepOrder,
				"error": err.Error(),
			})
			continue
		}

		if actionDelay > 0 {
			page.Pause(actionDelay)
		}

		e.broadcastRun(ctx, r, "execution.field_filled", map[string]interface{}{
			"task_id":    r.task.ID.String(),
			"step":       step.StepOrder,
			"field_name": field.Name,
			"field_type": string(field.Kind),
		})
	}
	return nil
}

// fillOne dispatches a single fill on the field's kind.
func (e *Engine) fillOne(page Page, field *formfield.FormField, value string) error {
	switch {
	case field.Kind == formfield.KindHidden:
		return page.SetHiddenValue(field.Selector, value)
	case field.IsFileUpload || field.Kind == formfield.KindFile:
		return page.SetFiles(field.Selector, filepath.Join(e.cfg.UploadDir, value))
	case field.Kind == formfield.KindSelect:
		return page.SelectValue(field.Selector, value)
	case field.Kind == formfield.KindCheckbox:
		if formfield.Truthy(value) {
			return page.Check(field.Selector)
		}
		return page.Uncheck(field.Selector)
	case field.Kind == formfield.KindRadio:
		return page.Check(fmt.Sprintf(`%s[value="%s"]`, field.Selector, value))
	default:
		return page.Fill(field.Selector, value)
	}
}

// pauseForHuman opens the viewer and blocks until resume or timeout. The
// pending step record mutates in place; it is never duplicated in the log.
func (e *Engine) pauseForHuman(ctx context.Context, r *run, page Page, rec *execution.StepRecord) error {
	viewerURL, wsPort, err := e.displays.Activate(ctx, r.sessionID)
	if err != nil {
		return fmt.Errorf("activate display session: %w", err)
	}

	rec.Status = execution.StepWaitingManual
	rec.WaitingReason = waitingReason(page)
	rec.ViewerURL = viewerURL

	pending := append(append([]execution.StepRecord{}, r.stepsLog...), *rec)
	if _, err := e.executions.Update(ctx, r.exec.ID,
		execution.SetStatus(execution.StatusWaitingManual),
		execution.SetDisplaySession(r.sessionID),
		execution.SetStepsLog(pending),
	); err != nil {
		e.logger.Error(ctx, "failed to persist waiting state", map[string]interface{}{
			"error":        err.Error(),
			"execution_id": r.exec.ID,
		})
	}

	e.broadcastRun(ctx, r, "execution.waiting_manual", map[string]interface{}{
		"task_id":        r.task.ID.String(),
		"status":         string(execution.StatusWaitingManual),
		"reason":         rec.WaitingReason,
		"vnc_session_id": r.sessionID,
		"vnc_url":        viewerURL,
		"ws_port":        wsPort,
	})

	resumed := e.displays.WaitForResume(ctx, r.sessionID, e.cfg.ResumeTimeout)
	if !resumed {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		return ErrManualTimeout
	}

	if err := e.displays.Deactivate(ctx, r.sessionID); err != nil {
		e.logger.Warn(ctx, "failed to deactivate display session", map[string]interface{}{
			"error":      err.Error(),
			"session_id": r.sessionID,
		})
	}

	rec.Status = execution.StepManualResolved
	if _, err := e.executions.Update(ctx, r.exec.ID,
		execution.SetStatus(execution.StatusRunning),
	); err != nil {
		e.logger.Error(ctx, "failed to persist resumed state", map[string]interface{}{
			"error":        err.Error(),
			"execution_id": r.exec.ID,
		})
	}

	e.broadcastRun(ctx, r, "execution.resumed", map[string]interface{}{
		"task_id": r.task.ID.String(),
		"status":  string(execution.StatusRunning),
		"reason":  rec.WaitingReason,
	})
	return nil
}

// waitingReason names what the human is being asked to resolve, so the
// viewer can say "solve the captcha" instead of a generic pause.
func waitingReason(page Page) string {
	switch {
	case analyzer.DetectCaptcha(page):
		return "captcha"
	case analyzer.DetectTwoFactor(page):
		return "two_factor"
	default:
		return "human_breakpoint"
	}
}

// submitStep clicks the submit control. Submit failures are recorded on
// the step and tolerated.
func (e *Engine) submitStep(page Page, step *formstep.FormStep, rec *execution.StepRecord) {
	if err := page.Click(step.SubmitSelector); err != nil {
		rec.Status = execution.StepSubmitError
		rec.Error = err.Error()
		return
	}
	page.Settle()
	rec.Status = execution.StepSubmitted
}

// captureScreenshot writes a full-page screenshot locally and uploads it,
// best effort on both ends.
func (e *Engine) captureScreenshot(ctx context.Context, r *run, page Page, suffix string) string {
	name := fmt.Sprintf("%s_%s.png", r.exec.ID, suffix)
	localPath := filepath.Join(e.cfg.ScreenshotDir, name)
	if err := page.Screenshot(localPath); err != nil {
		e.logger.Warn(ctx, "failed to capture screenshot", map[string]interface{}{
			"error": err.Error(),
		})
		return ""
	}

	key, size, err := e.screenshots.Upload(ctx, localPath, r.task.OwnerID, r.exec.ID.String(), suffix)
	if err != nil {
		e.logger.Warn(ctx, "failed to upload screenshot", map[string]interface{}{
			"error": err.Error(),
		})
		_, _ = e.executions.Update(ctx, r.exec.ID, execution.SetScreenshot(localPath, "", 0))
		return name
	}

	if _, err := e.executions.Update(ctx, r.exec.ID, execution.SetScreenshot(localPath, key, size)); err != nil {
		e.logger.Error(ctx, "failed to persist screenshot reference", map[string]interface{}{
			"error":        err.Error(),
			"execution_id": r.exec.ID,
		})
	}
	return name
}

func (e *Engine) finishWithScreenshot(ctx context.Context, r *run, status execution.Status, screenshot string) (*Result, error) {
	result, err := e.finish(ctx, r, status, nil)
	if result != nil {
		result.Screenshot = screenshot
	}
	return result, err
}

// finish commits the terminal state, broadcasts the outcome, and shapes
// the result. The caller's deferred display stop still runs after this.
func (e *Engine) finish(ctx context.Context, r *run, status execution.Status, cause error) (*Result, error) {
	errorMessage := ""
	if cause != nil {
		errorMessage = cause.Error()
		e.logger.Error(ctx, "execution failed", map[string]interface{}{
			"error":        errorMessage,
			"execution_id": r.exec.ID,
			"task_id":      r.task.ID,
		})
	}

	persistCtx := context.WithoutCancel(ctx)
	if _, err := e.executions.Update(persistCtx, r.exec.ID,
		execution.SetStepsLog(r.stepsLog),
		execution.ClearDisplaySession(),
		execution.SetCompleted(status, errorMessage),
	); err != nil {
		e.logger.Error(persistCtx, "failed to persist final execution state", map[string]interface{}{
			"error":        err.Error(),
			"execution_id": r.exec.ID,
		})
	}

	if status == execution.StatusFailed {
		e.broadcastRun(ctx, r, "execution.failed", map[string]interface{}{
			"task_id": r.task.ID.String(),
			"status":  string(status),
			"error":   publicError(cause),
		})
	} else {
		e.broadcastRun(ctx, r, "execution.completed", map[string]interface{}{
			"task_id": r.task.ID.String(),
			"status":  string(status),
		})
	}

	result := &Result{
		ExecutionID: r.exec.ID,
		Status:      status,
		Error:       errorMessage,
	}
	return result, cause
}

// publicError maps an internal failure to a message safe to show humans.
// Actionable failures keep their text; infrastructure detail stays in the
// logs and the execution record.
func publicError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFormNotFound), errors.Is(err, ErrManualTimeout), errors.Is(err, ErrCancelled):
		return err.Error()
	default:
		return "execution failed due to an internal error"
	}
}
