package executor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbot-io/formbot/broadcast"
	"github.com/formbot-io/formbot/browser"
	"github.com/formbot-io/formbot/display"
	"github.com/formbot-io/formbot/execution"
	"github.com/formbot-io/formbot/formfield"
	"github.com/formbot-io/formbot/formstep"
	"github.com/formbot-io/formbot/logger"
	"github.com/formbot-io/formbot/secrets"
	"github.com/formbot-io/formbot/task"
	"github.com/formbot-io/formbot/testutil"
)

type fillOp struct {
	op       string
	selector string
	value    string
}

type fakePage struct {
	mu               sync.Mutex
	ops              []fillOp
	missingSelectors map[string]bool
	failSelectors    map[string]error
	present          map[string]bool
	screenshots      []string
}

func newFakePage() *fakePage {
	return &fakePage{
		missingSelectors: map[string]bool{},
		failSelectors:    map[string]error{},
		present:          map[string]bool{},
	}
}

func (p *fakePage) record(op, selector, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ops = append(p.ops, fillOp{op: op, selector: selector, value: value})
}

func (p *fakePage) opsOf(kind string) []fillOp {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []fillOp
	for _, o := range p.ops {
		if o.op == kind {
			out = append(out, o)
		}
	}
	return out
}

func (p *fakePage) Navigate(url string) (browser.WaitResult, error) {
	p.record("navigate", url, "")
	return browser.WaitOK, nil
}

func (p *fakePage) WaitForSelector(selector string, timeout time.Duration) (browser.WaitResult, error) {
	if p.missingSelectors[selector] {
		return browser.WaitTimedOut, nil
	}
	return browser.WaitOK, nil
}

func (p *fakePage) maybeFail(selector string) error {
	if err, ok := p.failSelectors[selector]; ok {
		return err
	}
	return nil
}

func (p *fakePage) SetHiddenValue(selector, value string) error {
	if err := p.maybeFail(selector); err != nil {
		return err
	}
	p.record("hidden", selector, value)
	return nil
}

func (p *fakePage) SetFiles(selector string, paths ...string) error {
	if err := p.maybeFail(selector); err != nil {
		return err
	}
	p.record("files", selector, paths[0])
	return nil
}

func (p *fakePage) SelectValue(selector, value string) error {
	if err := p.maybeFail(selector); err != nil {
		return err
	}
	p.record("select", selector, value)
	return nil
}

func (p *fakePage) Check(selector string) error {
	if err := p.maybeFail(selector); err != nil {
		return err
	}
	p.record("check", selector, "")
	return nil
}

func (p *fakePage) Uncheck(selector string) error {
	if err := p.maybeFail(selector); err != nil {
		return err
	}
	p.record("uncheck", selector, "")
	return nil
}

func (p *fakePage) Fill(selector, value string) error {
	if err := p.maybeFail(selector); err != nil {
		return err
	}
	p.record("fill", selector, value)
	return nil
}

func (p *fakePage) Click(selector string) error {
	if err := p.maybeFail(selector); err != nil {
		return err
	}
	p.record("click", selector, "")
	return nil
}

func (p *fakePage) SelectorPresent(selector string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.present[selector]
}

func (p *fakePage) Settle() browser.WaitResult { return browser.WaitOK }

func (p *fakePage) Screenshot(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.screenshots = append(p.screenshots, path)
	return nil
}

func (p *fakePage) Pause(delay time.Duration) {}

type fakeBrowserSession struct {
	page   *fakePage
	closed bool
}

func (s *fakeBrowserSession) Page() Page { return s.page }
func (s *fakeBrowserSession) Close()     { s.closed = true }

type fakeBrowserLauncher struct {
	page      *fakePage
	session   *fakeBrowserSession
	lastOpts  browser.LaunchOptions
	launchErr error
}

func (l *fakeBrowserLauncher) Launch(ctx context.Context, opts browser.LaunchOptions) (BrowserSession, error) {
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	l.lastOpts = opts
	l.session = &fakeBrowserSession{page: l.page}
	return l.session, nil
}

type fakeDisplays struct {
	mu            sync.Mutex
	reserveErr    error
	resumeResult  bool
	reserveCount  int
	activateCount int
	stopCount     int
	sessionID     string
}

func (d *fakeDisplays) Reserve(ctx context.Context, ownerID uint) (*display.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reserveErr != nil {
		return nil, d.reserveErr
	}
	d.reserveCount++
	d.sessionID = fmt.Sprintf("fake-session-%d", d.reserveCount)
	return &display.Session{ID: d.sessionID, DisplayHandle: ":99"}, nil
}

func (d *fakeDisplays) Activate(ctx context.Context, sessionID string) (string, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.activateCount++
	return "http://localhost:6080/vnc_lite.html?token=abc", 6080, nil
}

func (d *fakeDisplays) Deactivate(ctx context.Context, sessionID string) error { return nil }

func (d *fakeDisplays) WaitForResume(ctx context.Context, sessionID string, timeout time.Duration) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resumeResult
}

func (d *fakeDisplays) Stop(ctx context.Context, sessionID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopCount++
	return true
}

type fakeUploader struct {
	mu   sync.Mutex
	keys []string
}

func (u *fakeUploader) Upload(ctx context.Context, localPath string, ownerID uint, executionID, kind string) (string, int64, error) {
	key := fmt.Sprintf("%d/%s_%s.png", ownerID, executionID, kind)
	u.mu.Lock()
	u.keys = append(u.keys, key)
	u.mu.Unlock()
	return key, 1024, nil
}

type testEnv struct {
	engine     *Engine
	tasks      task.Store
	steps      formstep.Store
	fields     formfield.Store
	executions execution.Store
	page       *fakePage
	launcher   *fakeBrowserLauncher
	displays   *fakeDisplays
	events     *broadcast.Recorder
	key        []byte
}

func newTestEnv(t *testing.T) *testEnv {
	db := testutil.SetupTestDB(t)
	testutil.AutoMigrate(t, db,
		&task.Task{}, &formstep.FormStep{}, &formfield.FormField{}, &execution.ExecutionLog{})

	log := logger.NewTestLogger()
	page := newFakePage()
	env := &testEnv{
		tasks:      task.NewMySQLStore(db, log),
		steps:      formstep.NewMySQLStore(db, log),
		fields:     formfield.NewMySQLStore(db, log),
		executions: execution.NewMySQLStore(db, log),
		page:       page,
		launcher:   &fakeBrowserLauncher{page: page},
		displays:   &fakeDisplays{resumeResult: true},
		events:     broadcast.NewRecorder(),
		key:        secrets.DeriveKey("test-passphrase"),
	}
	env.engine = NewEngine(
		Config{
			UploadDir:       "/uploads",
			ScreenshotDir:   t.TempDir(),
			ResumeTimeout:   time.Second,
			FormWaitTimeout: time.Second,
			EncryptionKey:   env.key,
		},
		env.tasks, env.steps, env.fields, env.executions,
		env.displays, env.launcher, env.events, &fakeUploader{}, log,
	)
	return env
}

func (env *testEnv) createTask(t *testing.T) *task.Task {
	tk := &task.Task{
		OwnerID:   42,
		Name:      "login flow",
		TargetURL: "https://example.com",
	}
	require.NoError(t, env.tasks.Create(context.Background(), tk))
	return tk
}

func (env *testEnv) addStep(t *testing.T, taskID uuid.UUID, order int, breakpoint bool) *formstep.FormStep {
	step := &formstep.FormStep{
		TaskID:          taskID,
		StepOrder:       order,
		PageURL:         fmt.Sprintf("https://example.com/step%d", order),
		FormType:        "login",
		FormSelector:    fmt.Sprintf("#form-%d", order),
		SubmitSelector:  fmt.Sprintf("#submit-%d", order),
		HumanBreakpoint: breakpoint,
	}
	require.NoError(t, env.steps.Create(context.Background(), step))
	return step
}

func (env *testEnv) addField(t *testing.T, stepID uuid.UUID, name, selector string, kind formfield.Kind, value string, sortOrder int) *formfield.FormField {
	f := &formfield.FormField{
		FormStepID:  stepID,
		Name:        name,
		Kind:        kind,
		Selector:    selector,
		PresetValue: &value,
		SortOrder:   sortOrder,
	}
	require.NoError(t, env.fields.Create(context.Background(), f))
	return f
}

func TestEngine_TwoFieldLoginSuccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tk := env.createTask(t)
	step := env.addStep(t, tk.ID, 1, false)
	env.addField(t, step.ID, "username", "#username", formfield.KindText, "testuser", 1)
	env.addField(t, step.ID, "password", "#password", formfield.KindPassword, "secret", 2)

	result, err := env.engine.Execute(ctx, tk.ID, nil, false)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusSuccess, result.Status)

	fills := env.page.opsOf("fill")
	require.Len(t, fills, 2)
	assert.Equal(t, "#username", fills[0].selector)
	assert.Equal(t, "testuser", fills[0].value)
	assert.Equal(t, "#password", fills[1].selector)
	assert.Equal(t, "secret", fills[1].value)

	clicks := env.page.opsOf("click")
	require.Len(t, clicks, 1)
	assert.Equal(t, "#submit-1", clicks[0].selector)

	got, err := env.executions.GetByID(ctx, result.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusSuccess, got.Status)
	require.Len(t, got.StepsLog, 1)
	assert.Equal(t, execution.StepSubmitted, got.StepsLog[0].Status)
	assert.Contains(t, got.ScreenshotKey, "_final.png")

	// Headless run, no display involved.
	assert.True(t, env.launcher.lastOpts.Headless)
	assert.Equal(t, 0, env.displays.reserveCount)
	assert.True(t, env.launcher.session.closed)

	require.NotEmpty(t, env.events.Named("execution.started"))
	require.NotEmpty(t, env.events.Named("execution.completed"))
}

func TestEngine_DryRunSkipsOnlyFinalSubmit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tk := env.createTask(t)
	step1 := env.addStep(t, tk.ID, 1, false)
	env.addStep(t, tk.ID, 2, false)
	env.addField(t, step1.ID, "q", "#q", formfield.KindText, "hello", 1)

	result, err := env.engine.Execute(ctx, tk.ID, nil, true)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusDryRunOK, result.Status)
	assert.Contains(t, result.Screenshot, "_dryrun.png")

	// Submit clicked on step 1 but never on the final step.
	clicks := env.page.opsOf("click")
	require.Len(t, clicks, 1)
	assert.Equal(t, "#submit-1", clicks[0].selector)

	got, err := env.executions.GetByID(ctx, result.ExecutionID)
	require.NoError(t, err)
	require.Len(t, got.StepsLog, 2)
	assert.Equal(t, execution.StepSubmitted, got.StepsLog[0].Status)
	assert.Equal(t, execution.StepDryRunComplete, got.StepsLog[1].Status)
	// Dry-run shots keep their own key suffix in storage.
	assert.Contains(t, got.ScreenshotKey, "_dryrun.png")
}

func TestEngine_FormNotFoundIsFatal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tk := env.createTask(t)
	env.addStep(t, tk.ID, 1, false)
	env.page.missingSelectors["#form-1"] = true

	result, err := env.engine.Execute(ctx, tk.ID, nil, false)
	require.ErrorIs(t, err, ErrFormNotFound)
	assert.Equal(t, execution.StatusFailed, result.Status)

	got, gerr := env.executions.GetByID(ctx, result.ExecutionID)
	require.NoError(t, gerr)
	assert.Equal(t, execution.StatusFailed, got.Status)
	require.Len(t, got.StepsLog, 1)
	assert.Equal(t, execution.StepFormNotFound, got.StepsLog[0].Status)
	assert.Contains(t, got.ErrorMessage, "#form-1")

	// Selector failures are actionable, so the event keeps the detail.
	failed := env.events.Named("execution.failed")
	require.NotEmpty(t, failed)
	assert.Contains(t, failed[0].Data["error"], "#form-1")
}

func TestEngine_FieldFillFailureIsNonFatal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tk := env.createTask(t)
	step := env.addStep(t, tk.ID, 1, false)
	env.addField(t, step.ID, "broken", "#broken", formfield.KindText, "x", 1)
	env.addField(t, step.ID, "works", "#works", formfield.KindText, "y", 2)
	env.page.failSelectors["#broken"] = fmt.Errorf("element not interactable")

	result, err := env.engine.Execute(ctx, tk.ID, nil, false)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusSuccess, result.Status)

	got, gerr := env.executions.GetByID(ctx, result.ExecutionID)
	require.NoError(t, gerr)
	require.Len(t, got.StepsLog, 1)
	assert.Contains(t, got.StepsLog[0].FieldErrors, "broken")

	fills := env.page.opsOf("fill")
	require.Len(t, fills, 1)
	assert.Equal(t, "#works", fills[0].selector)
}

func TestEngine_BreakpointPauseResumeKeepsOneRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tk := env.createTask(t)
	step := env.addStep(t, tk.ID, 1, true)
	env.addField(t, step.ID, "username", "#username", formfield.KindText, "u", 1)
	env.displays.resumeResult = true

	result, err := env.engine.Execute(ctx, tk.ID, nil, false)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusSuccess, result.Status)

	// A breakpoint run pre-reserves the display and launches headed.
	assert.Equal(t, 1, env.displays.reserveCount)
	assert.Equal(t, 1, env.displays.activateCount)
	assert.False(t, env.launcher.lastOpts.Headless)
	assert.Equal(t, ":99", env.launcher.lastOpts.Display)

	got, gerr := env.executions.GetByID(ctx, result.ExecutionID)
	require.NoError(t, gerr)
	require.Len(t, got.StepsLog, 1)
	// Post-resume: the single record reflects the submitted outcome, not
	// a waiting state, and is never duplicated.
	assert.Equal(t, execution.StepSubmitted, got.StepsLog[0].Status)
	assert.Nil(t, got.DisplaySessionID)

	require.NotEmpty(t, env.events.Named("execution.waiting_manual"))
	require.NotEmpty(t, env.events.Named("execution.resumed"))
	assert.Equal(t, 1, env.displays.stopCount)
}

func TestEngine_BreakpointReasonNamesChallenge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tk := env.createTask(t)
	step := env.addStep(t, tk.ID, 1, true)
	env.addField(t, step.ID, "username", "#username", formfield.KindText, "u", 1)
	env.page.present[".g-recaptcha"] = true
	env.displays.resumeResult = true

	result, err := env.engine.Execute(ctx, tk.ID, nil, false)
	require.NoError(t, err)

	waiting := env.events.Named("execution.waiting_manual")
	require.NotEmpty(t, waiting)
	assert.Equal(t, "captcha", waiting[0].Data["reason"])

	got, gerr := env.executions.GetByID(ctx, result.ExecutionID)
	require.NoError(t, gerr)
	require.Len(t, got.StepsLog, 1)
	assert.Equal(t, "captcha", got.StepsLog[0].WaitingReason)
}

func TestEngine_ManualTimeoutFailsAndStopsDisplay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tk := env.createTask(t)
	env.addStep(t, tk.ID, 1, true)
	env.displays.resumeResult = false

	result, err := env.engine.Execute(ctx, tk.ID, nil, false)
	require.ErrorIs(t, err, ErrManualTimeout)
	assert.Equal(t, execution.StatusFailed, result.Status)
	assert.Equal(t, 1, env.displays.stopCount)

	got, gerr := env.executions.GetByID(ctx, result.ExecutionID)
	require.NoError(t, gerr)
	assert.Equal(t, execution.StatusFailed, got.Status)
	require.Len(t, got.StepsLog, 1)
	assert.Equal(t, execution.StepWaitingManual, got.StepsLog[0].Status)
}

func TestEngine_DisplayStoppedOnEveryOutcome(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		env := newTestEnv(t)
		tk := env.createTask(t)
		env.addStep(t, tk.ID, 1, true)
		_, err := env.engine.Execute(context.Background(), tk.ID, nil, false)
		require.NoError(t, err)
		assert.Equal(t, 1, env.displays.stopCount)
	})

	t.Run("form not found", func(t *testing.T) {
		env := newTestEnv(t)
		tk := env.createTask(t)
		env.addStep(t, tk.ID, 1, true)
		env.page.missingSelectors["#form-1"] = true
		_, err := env.engine.Execute(context.Background(), tk.ID, nil, false)
		require.Error(t, err)
		assert.Equal(t, 1, env.displays.stopCount)
	})

	t.Run("browser launch failure", func(t *testing.T) {
		env := newTestEnv(t)
		tk := env.createTask(t)
		env.addStep(t, tk.ID, 1, true)
		env.launcher.launchErr = fmt.Errorf("no usable browser")
		_, err := env.engine.Execute(context.Background(), tk.ID, nil, false)
		require.Error(t, err)
		assert.Equal(t, 1, env.displays.stopCount)
	})
}

func TestEngine_ReserveFailureAbortsBeforeBrowser(t *testing.T) {
	env := newTestEnv(t)
	tk := env.createTask(t)
	env.addStep(t, tk.ID, 1, true)
	env.displays.reserveErr = display.ErrNoFreeSlot

	result, err := env.engine.Execute(context.Background(), tk.ID, nil, false)
	require.ErrorIs(t, err, display.ErrNoFreeSlot)
	assert.Equal(t, execution.StatusFailed, result.Status)
	assert.Nil(t, env.launcher.session)
}

func TestEngine_FieldKindDispatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tk := env.createTask(t)
	step := env.addStep(t, tk.ID, 1, false)
	env.addField(t, step.ID, "token", "#token", formfield.KindHidden, "tok-1", 1)
	env.addField(t, step.ID, "country", "#country", formfield.KindSelect, "DE", 2)
	env.addField(t, step.ID, "subscribe", "#subscribe", formfield.KindCheckbox, "yes", 3)
	env.addField(t, step.ID, "unsubscribe", "#unsubscribe", formfield.KindCheckbox, "no", 4)
	env.addField(t, step.ID, "plan", "input[name=plan]", formfield.KindRadio, "pro", 5)
	doc := env.addField(t, step.ID, "doc", "#doc", formfield.KindFile, "cv.pdf", 6)
	err := env.fields.Update(ctx, doc.ID, func(f *formfield.FormField) error {
		f.IsFileUpload = true
		return nil
	})
	require.NoError(t, err)

	_, err = env.engine.Execute(ctx, tk.ID, nil, false)
	require.NoError(t, err)

	assert.Equal(t, []fillOp{{op: "hidden", selector: "#token", value: "tok-1"}}, env.page.opsOf("hidden"))
	assert.Equal(t, []fillOp{{op: "select", selector: "#country", value: "DE"}}, env.page.opsOf("select"))
	assert.Equal(t, []fillOp{{op: "files", selector: "#doc", value: "/uploads/cv.pdf"}}, env.page.opsOf("files"))

	checks := env.page.opsOf("check")
	require.Len(t, checks, 2)
	assert.Equal(t, "#subscribe", checks[0].selector)
	assert.Equal(t, `input[name=plan][value="pro"]`, checks[1].selector)
	assert.Equal(t, []fillOp{{op: "uncheck", selector: "#unsubscribe", value: ""}}, env.page.opsOf("uncheck"))
}

func TestEngine_SensitiveValueDecryptedBeforeFill(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tk := env.createTask(t)
	step := env.addStep(t, tk.ID, 1, false)

	ciphertext, err := secrets.EncryptValue(env.key, "hunter2")
	require.NoError(t, err)
	f := &formfield.FormField{
		FormStepID:  step.ID,
		Name:        "password",
		Kind:        formfield.KindPassword,
		Selector:    "#password",
		PresetValue: &ciphertext,
		IsSensitive: true,
		SortOrder:   1,
	}
	require.NoError(t, env.fields.Create(ctx, f))

	_, err = env.engine.Execute(ctx, tk.ID, nil, false)
	require.NoError(t, err)

	fills := env.page.opsOf("fill")
	require.Len(t, fills, 1)
	assert.Equal(t, "hunter2", fills[0].value)
}

func TestEngine_TransitionsExistingPendingRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tk := env.createTask(t)
	step := env.addStep(t, tk.ID, 1, false)
	env.addField(t, step.ID, "q", "#q", formfield.KindText, "x", 1)

	pending := &execution.ExecutionLog{TaskID: tk.ID}
	require.NoError(t, env.executions.Create(ctx, pending))

	result, err := env.engine.Execute(ctx, tk.ID, &pending.ID, false)
	require.NoError(t, err)
	assert.Equal(t, pending.ID, result.ExecutionID)

	got, gerr := env.executions.GetByID(ctx, pending.ID)
	require.NoError(t, gerr)
	assert.Equal(t, execution.StatusSuccess, got.Status)
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.CompletedAt)
}

func TestEngine_SubmitErrorIsRecordedNotFatal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tk := env.createTask(t)
	env.addStep(t, tk.ID, 1, false)
	env.page.failSelectors["#submit-1"] = fmt.Errorf("element detached")

	result, err := env.engine.Execute(ctx, tk.ID, nil, false)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusSuccess, result.Status)

	got, gerr := env.executions.GetByID(ctx, result.ExecutionID)
	require.NoError(t, gerr)
	require.Len(t, got.StepsLog, 1)
	assert.Equal(t, execution.StepSubmitError, got.StepsLog[0].Status)
	assert.Contains(t, got.StepsLog[0].Error, "detached")
}

func TestEngine_InfrastructureErrorIsGenericInEvents(t *testing.T) {
	env := newTestEnv(t)
	tk := env.createTask(t)
	env.addStep(t, tk.ID, 1, false)
	env.launcher.launchErr = fmt.Errorf("driver socket at /var/run/secret.sock refused connection")

	_, err := env.engine.Execute(context.Background(), tk.ID, nil, false)
	require.Error(t, err)

	failed := env.events.Named("execution.failed")
	require.NotEmpty(t, failed)
	assert.NotContains(t, failed[0].Data["error"], "secret.sock")
}
