package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/formbot-io/formbot/broadcast"
	"github.com/formbot-io/formbot/browser"
	"github.com/formbot-io/formbot/display"
	"github.com/formbot-io/formbot/editing"
	"github.com/formbot-io/formbot/logger"
)

// EditingHandler exposes the interactive field-editing session API. Every
// command except start targets an existing session by task id.
type EditingHandler struct {
	registry      *editing.Registry
	runtime       *browser.Runtime
	pool          *display.Pool
	broadcaster   broadcast.Broadcaster
	resumeTimeout time.Duration
	logger        logger.Logger
}

func NewEditingHandler(registry *editing.Registry, runtime *browser.Runtime, pool *display.Pool, bc broadcast.Broadcaster, resumeTimeout time.Duration, log logger.Logger) *EditingHandler {
	return &EditingHandler{
		registry:      registry,
		runtime:       runtime,
		pool:          pool,
		broadcaster:   bc,
		resumeTimeout: resumeTimeout,
		logger:        log,
	}
}

// session resolves the task's session or writes the error response.
func (h *EditingHandler) session(w http.ResponseWriter, taskID string) (*editing.Session, bool) {
	if taskID == "" {
		respondError(w, http.StatusBadRequest, "task_id is required")
		return nil, false
	}
	session, err := h.registry.Get(taskID)
	if err != nil {
		respondError(w, http.StatusNotFound, "editing session not found")
		return nil, false
	}
	return session, true
}

// respondCommandError maps session errors onto HTTP statuses: busy
// sessions conflict, everything else is an internal failure.
func (h *EditingHandler) respondCommandError(w http.ResponseWriter, r *http.Request, err error, command string) {
	if errors.Is(err, editing.ErrSessionBusy) {
		respondError(w, http.StatusConflict, "session is busy with a login or navigation")
		return
	}
	h.logger.Error(r.Context(), "editing command failed", map[string]interface{}{
		"command": command,
		"error":   err.Error(),
	})
	respondError(w, http.StatusInternalServerError, "editing command failed")
}

// StartRequest opens a new editing session on a live page.
type StartRequest struct {
	TaskID  string          `json:"task_id"`
	URL     string          `json:"url"`
	OwnerID uint            `json:"owner_id"`
	Headed  bool            `json:"headed"`
	Stealth bool            `json:"stealth"`
	Fields  []editing.Field `json:"fields"`
}

// StartResponse acknowledges an opened session.
type StartResponse struct {
	TaskID    string `json:"task_id"`
	ViewerURL string `json:"viewer_url,omitempty"`
}

// Start launches a browser, opens the requested page, injects the field
// overlay and registers the session. Headed sessions additionally claim a
// display slot so a human can watch and interact through the viewer.
func (h *EditingHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TaskID == "" || req.URL == "" {
		respondError(w, http.StatusBadRequest, "task_id and url are required")
		return
	}

	opts := browser.LaunchOptions{Headless: true, StealthEnabled: req.Stealth}
	var displaySessionID string
	var viewerURL string

	if req.Headed {
		displaySession, err := h.pool.Reserve(r.Context(), req.OwnerID)
		if err != nil {
			if errors.Is(err, display.ErrNoFreeSlot) {
				respondError(w, http.StatusServiceUnavailable, "no free display slot")
				return
			}
			respondError(w, http.StatusInternalServerError, "failed to reserve display")
			return
		}
		displaySessionID = displaySession.ID

		viewerURL, _, err = h.pool.Activate(r.Context(), displaySession.ID)
		if err != nil {
			h.pool.Stop(r.Context(), displaySession.ID)
			respondError(w, http.StatusInternalServerError, "failed to activate display")
			return
		}
		opts.Headless = false
		opts.Display = displaySession.Display()
	}

	instance, err := h.runtime.Launch(r.Context(), opts)
	if err != nil {
		if displaySessionID != "" {
			h.pool.Stop(r.Context(), displaySessionID)
		}
		h.logger.Error(r.Context(), "failed to launch editing browser", map[string]interface{}{
			"task_id": req.TaskID,
			"error":   err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "failed to launch browser")
		return
	}

	driver := editing.NewPlaywrightDriver(instance)
	session := editing.NewSession(req.TaskID, driver, h.broadcaster, h.logger)
	if displaySessionID != "" {
		session.DisplaySessionID = &displaySessionID
	}

	if _, err := driver.Navigate(req.URL); err != nil {
		session.Close()
		if displaySessionID != "" {
			h.pool.Stop(r.Context(), displaySessionID)
		}
		respondError(w, http.StatusBadGateway, "failed to open page")
		return
	}
	if err := session.Setup(r.Context(), req.Fields); err != nil {
		session.Close()
		if displaySessionID != "" {
			h.pool.Stop(r.Context(), displaySessionID)
		}
		respondError(w, http.StatusInternalServerError, "failed to inject field overlay")
		return
	}

	h.registry.Register(session)
	respondJSON(w, http.StatusCreated, StartResponse{TaskID: req.TaskID, ViewerURL: viewerURL})
}

// SessionCommandRequest is the shared shape of per-session commands.
type SessionCommandRequest struct {
	TaskID     string          `json:"task_id"`
	Mode       string          `json:"mode,omitempty"`
	Fields     []editing.Field `json:"fields,omitempty"`
	FieldIndex int             `json:"field_index,omitempty"`
	Selector   string          `json:"selector,omitempty"`
	Value      string          `json:"value,omitempty"`
}

// SetMode switches the overlay interaction mode.
func (h *EditingHandler) SetMode(w http.ResponseWriter, r *http.Request) {
	var req SessionCommandRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	session, ok := h.session(w, req.TaskID)
	if !ok {
		return
	}
	if req.Mode != "select" && req.Mode != "add" && req.Mode != "remove" {
		respondError(w, http.StatusBadRequest, "mode must be select, add or remove")
		return
	}
	if err := session.SetMode(req.Mode); err != nil {
		h.respondCommandError(w, r, err, "set_mode")
		return
	}
	respondSuccess(w, "mode updated")
}

// UpdateFields replaces the highlighted field set.
func (h *EditingHandler) UpdateFields(w http.ResponseWriter, r *http.Request) {
	var req SessionCommandRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	session, ok := h.session(w, req.TaskID)
	if !ok {
		return
	}
	if err := session.UpdateFields(req.Fields); err != nil {
		h.respondCommandError(w, r, err, "update_fields")
		return
	}
	respondSuccess(w, "fields updated")
}

// FocusField scrolls one field into view.
func (h *EditingHandler) FocusField(w http.ResponseWriter, r *http.Request) {
	var req SessionCommandRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	session, ok := h.session(w, req.TaskID)
	if !ok {
		return
	}
	if err := session.FocusField(req.FieldIndex); err != nil {
		h.respondCommandError(w, r, err, "focus_field")
		return
	}
	respondSuccess(w, "field focused")
}

// TestSelector checks a candidate selector on the live page.
func (h *EditingHandler) TestSelector(w http.ResponseWriter, r *http.Request) {
	var req SessionCommandRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	session, ok := h.session(w, req.TaskID)
	if !ok {
		return
	}
	result, err := session.TestSelector(req.Selector)
	if err != nil {
		h.respondCommandError(w, r, err, "test_selector")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// FillField writes a value into a tracked field.
func (h *EditingHandler) FillField(w http.ResponseWriter, r *http.Request) {
	var req SessionCommandRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	session, ok := h.session(w, req.TaskID)
	if !ok {
		return
	}
	if err := session.FillField(req.FieldIndex, req.Value); err != nil {
		h.respondCommandError(w, r, err, "fill_field")
		return
	}
	respondSuccess(w, "field filled")
}

// FieldValueResponse carries a field's live value.
type FieldValueResponse struct {
	Value string `json:"value"`
}

// ReadFieldValue reads a field's current value from the live page. Allowed
// even while the session is busy.
func (h *EditingHandler) ReadFieldValue(w http.ResponseWriter, r *http.Request) {
	var req SessionCommandRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	session, ok := h.session(w, req.TaskID)
	if !ok {
		return
	}
	value, err := session.ReadFieldValue(req.FieldIndex)
	if err != nil {
		h.respondCommandError(w, r, err, "read_field_value")
		return
	}
	respondJSON(w, http.StatusOK, FieldValueResponse{Value: value})
}

// NavigateRequest moves the session's page to a new URL.
type NavigateRequest struct {
	TaskID    string `json:"task_id"`
	URL       string `json:"url"`
	Step      int    `json:"step"`
	RequestID string `json:"request_id"`
}

// Navigate moves the live page to a new step URL. The work happens in the
// background; outcome events carry the caller-supplied request id.
func (h *EditingHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	var req NavigateRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	session, ok := h.session(w, req.TaskID)
	if !ok {
		return
	}
	if req.URL == "" {
		respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	if session.State() != editing.StateIdle {
		respondError(w, http.StatusConflict, "session is busy with a login or navigation")
		return
	}

	go func() {
		if err := session.Navigate(context.Background(), req.URL, req.Step, req.RequestID); err != nil {
			h.logger.Warn(context.Background(), "editing navigation failed", map[string]interface{}{
				"task_id": req.TaskID,
				"error":   err.Error(),
			})
		}
	}()
	respondJSON(w, http.StatusAccepted, SuccessResponse{Message: "navigation started"})
}

// ExecuteLoginRequest drives the guarded login sub-flow.
type ExecuteLoginRequest struct {
	TaskID          string               `json:"task_id"`
	Fields          []editing.LoginField `json:"fields"`
	TargetURL       string               `json:"target_url"`
	SubmitSelector  string               `json:"submit_selector"`
	HumanBreakpoint bool                 `json:"human_breakpoint"`
}

// ExecuteLogin starts the login flow in the background; progress and
// failures arrive as events on the task's editing channel.
func (h *EditingHandler) ExecuteLogin(w http.ResponseWriter, r *http.Request) {
	var req ExecuteLoginRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	session, ok := h.session(w, req.TaskID)
	if !ok {
		return
	}
	if req.TargetURL == "" {
		respondError(w, http.StatusBadRequest, "target_url is required")
		return
	}

	if session.State() != editing.StateIdle {
		respondError(w, http.StatusConflict, "session is busy with a login or navigation")
		return
	}

	go func() {
		err := session.ExecuteLogin(context.Background(), editing.LoginRequest{
			Fields:          req.Fields,
			TargetURL:       req.TargetURL,
			SubmitSelector:  req.SubmitSelector,
			HumanBreakpoint: req.HumanBreakpoint,
			ResumeTimeout:   h.resumeTimeout,
		})
		if err != nil && !errors.Is(err, editing.ErrSessionBusy) {
			h.logger.Warn(context.Background(), "login execution failed", map[string]interface{}{
				"task_id": req.TaskID,
				"error":   err.Error(),
			})
		}
	}()
	respondJSON(w, http.StatusAccepted, SuccessResponse{Message: "login execution started"})
}

// SessionRequest targets an existing session.
type SessionRequest struct {
	TaskID string `json:"task_id"`
}

// ResumeLogin unblocks a login flow paused at a human breakpoint.
func (h *EditingHandler) ResumeLogin(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	session, ok := h.session(w, req.TaskID)
	if !ok {
		return
	}
	session.ResumeLogin()
	respondSuccess(w, "login resumed")
}

// Confirm fires the session's confirmation signal.
func (h *EditingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	session, ok := h.session(w, req.TaskID)
	if !ok {
		return
	}
	session.Confirm()
	respondSuccess(w, "editing confirmed")
}

// Cancel fires the session's cancellation signal.
func (h *EditingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	session, ok := h.session(w, req.TaskID)
	if !ok {
		return
	}
	session.Cancel()
	respondSuccess(w, "editing cancelled")
}

// Cleanup tears the session down and frees its resources.
func (h *EditingHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TaskID == "" {
		respondError(w, http.StatusBadRequest, "task_id is required")
		return
	}
	h.registry.CleanupSession(req.TaskID)
	respondSuccess(w, "session cleaned up")
}
