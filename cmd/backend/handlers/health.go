package handlers

import (
	"net/http"
)

// ActiveCounter reports how many live resources a component holds.
type ActiveCounter interface {
	ActiveCount() int
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status          string `json:"status"`
	DisplaySessions int    `json:"display_sessions"`
	EditingSessions int    `json:"editing_sessions"`
}

// HealthHandler reports service liveness and session counts.
type HealthHandler struct {
	displays ActiveCounter
	editing  ActiveCounter
}

func NewHealthHandler(displays, editing ActiveCounter) *HealthHandler {
	return &HealthHandler{displays: displays, editing: editing}
}

// Health handles health check requests.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:          "healthy",
		DisplaySessions: h.displays.ActiveCount(),
		EditingSessions: h.editing.ActiveCount(),
	})
}
