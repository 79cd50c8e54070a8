package handlers

import (
	"errors"
	"net/http"

	"github.com/formbot-io/formbot/display"
	"github.com/formbot-io/formbot/logger"
)

// DisplayHandler manages virtual display sessions for manual intervention.
type DisplayHandler struct {
	pool   *display.Pool
	logger logger.Logger
}

func NewDisplayHandler(pool *display.Pool, log logger.Logger) *DisplayHandler {
	return &DisplayHandler{pool: pool, logger: log}
}

// DisplaySessionRequest targets one display session.
type DisplaySessionRequest struct {
	SessionID string `json:"session_id"`
	OwnerID   uint   `json:"owner_id"`
}

// ActivateResponse carries the viewer access details of an active session.
type ActivateResponse struct {
	SessionID string `json:"session_id"`
	ViewerURL string `json:"viewer_url"`
	WSPort    int    `json:"ws_port"`
}

// Activate starts the framebuffer server for a reserved session and
// returns the browser-facing viewer URL.
func (h *DisplayHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req DisplaySessionRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		respondError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	viewerURL, wsPort, err := h.pool.Activate(r.Context(), req.SessionID)
	if err != nil {
		if errors.Is(err, display.ErrSessionNotFound) {
			respondError(w, http.StatusNotFound, "display session not found")
			return
		}
		h.logger.Error(r.Context(), "failed to activate display session", map[string]interface{}{
			"session_id": req.SessionID,
			"error":      err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "failed to activate display session")
		return
	}

	respondJSON(w, http.StatusOK, ActivateResponse{
		SessionID: req.SessionID,
		ViewerURL: viewerURL,
		WSPort:    wsPort,
	})
}

// Resume fires a session's resume signal, unblocking a paused execution.
func (h *DisplayHandler) Resume(w http.ResponseWriter, r *http.Request) {
	var req DisplaySessionRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		respondError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	if err := h.pool.Resume(r.Context(), req.SessionID, req.OwnerID); err != nil {
		if errors.Is(err, display.ErrSessionNotFound) {
			respondError(w, http.StatusNotFound, "display session not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to resume display session")
		return
	}
	respondSuccess(w, "session resumed")
}

// Stop tears a session down and frees its slot. Unknown sessions are
// reported as not found; stopping is otherwise idempotent.
func (h *DisplayHandler) Stop(w http.ResponseWriter, r *http.Request) {
	var req DisplaySessionRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		respondError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	if !h.pool.Stop(r.Context(), req.SessionID) {
		respondError(w, http.StatusNotFound, "display session not found")
		return
	}
	respondSuccess(w, "session stopped")
}

// SessionsResponse reports pool utilization.
type SessionsResponse struct {
	Active int `json:"active"`
}

// Sessions returns the number of live display sessions.
func (h *DisplayHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, SessionsResponse{Active: h.pool.ActiveCount()})
}
