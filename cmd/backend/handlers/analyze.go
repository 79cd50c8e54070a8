package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/formbot-io/formbot/analyzer"
	"github.com/formbot-io/formbot/logger"
)

// AnalyzeHandler runs AI form analysis on a URL.
type AnalyzeHandler struct {
	service *analyzer.Service
	logger  logger.Logger
}

func NewAnalyzeHandler(service *analyzer.Service, log logger.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{service: service, logger: log}
}

// AnalyzeRequest asks for a page's forms to be classified.
type AnalyzeRequest struct {
	URL        string `json:"url"`
	AnalysisID string `json:"analysis_id"`
	Stealth    bool   `json:"stealth"`
}

// AnalyzeResponse acknowledges a started analysis.
type AnalyzeResponse struct {
	AnalysisID string `json:"analysis_id"`
}

// Analyze starts form analysis in the background. Progress, streamed
// classifier tokens and the final document arrive as events on the
// analysis channel.
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		respondError(w, http.StatusBadRequest, "url is required")
		return
	}
	if req.AnalysisID == "" {
		req.AnalysisID = uuid.New().String()
	}

	analysisID := req.AnalysisID
	go func() {
		if _, err := h.service.AnalyzeURL(context.Background(), analysisID, req.URL, req.Stealth); err != nil {
			h.logger.Warn(context.Background(), "form analysis failed", map[string]interface{}{
				"analysis_id": analysisID,
				"error":       err.Error(),
			})
		}
	}()

	respondJSON(w, http.StatusAccepted, AnalyzeResponse{AnalysisID: analysisID})
}
