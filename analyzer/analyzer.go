package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/formbot-io/formbot/broadcast"
	"github.com/formbot-io/formbot/browser"
	"github.com/formbot-io/formbot/logger"
)

// FieldInfo is one detected form field.
type FieldInfo struct {
	FieldSelector string   `json:"field_selector"`
	FieldName     string   `json:"field_name"`
	FieldType     string   `json:"field_type"`
	FieldPurpose  string   `json:"field_purpose"`
	Required      bool     `json:"required"`
	Options       []string `json:"options,omitempty"`
}

// FormInfo is one detected form.
type FormInfo struct {
	FormSelector    string      `json:"form_selector"`
	FormType        string      `json:"form_type"`
	Confidence      float64     `json:"confidence"`
	SubmitSelector  string      `json:"submit_selector"`
	CaptchaDetected bool        `json:"captcha_detected"`
	CaptchaType     string      `json:"captcha_type"`
	Fields          []FieldInfo `json:"fields"`
}

// FormAnalysis is the classifier's verdict on a page.
type FormAnalysis struct {
	Forms             []FormInfo `json:"forms"`
	PageRequiresLogin bool       `json:"page_requires_login"`
	TwoFactorDetected bool       `json:"two_factor_detected"`
	SuggestedFlow     string     `json:"suggested_flow"`
}

// Classifier turns cleaned page markup into a structured form analysis.
type Classifier interface {
	Classify(ctx context.Context, html string) (*FormAnalysis, error)

	// ClassifyStream behaves like Classify but reports raw model tokens
	// through onToken as they arrive, for live progress display.
	ClassifyStream(ctx context.Context, html string, onToken func(token string)) (*FormAnalysis, error)
}

// parseAnalysis decodes a model response, tolerating markdown code fences
// around the JSON.
func parseAnalysis(raw string) (*FormAnalysis, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		if idx := strings.Index(raw, "\n"); idx != -1 {
			raw = raw[idx+1:]
		}
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
		raw = strings.TrimSpace(raw)
	}

	var analysis FormAnalysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return nil, fmt.Errorf("failed to parse analysis response: %w", err)
	}
	return &analysis, nil
}

// applyLoginHeuristic downgrades a page_requires_login verdict when no
// form on the page carries a password input. Models flag marketing pages
// with "Sign in" links too eagerly; an actual login form has a password
// field.
func applyLoginHeuristic(analysis *FormAnalysis) {
	if !analysis.PageRequiresLogin {
		return
	}
	for _, form := range analysis.Forms {
		for _, field := range form.Fields {
			if field.FieldType == "password" {
				return
			}
		}
	}
	analysis.PageRequiresLogin = false
}

// Service runs full page analyses: navigate, capture markup, classify.
type Service struct {
	runtime     *browser.Runtime
	classifier  Classifier
	broadcaster broadcast.Broadcaster
	logger      logger.Logger
	maxHTML     int
}

func NewService(runtime *browser.Runtime, classifier Classifier, bc broadcast.Broadcaster, log logger.Logger) *Service {
	return &Service{
		runtime:     runtime,
		classifier:  classifier,
		broadcaster: bc,
		logger:      log,
		maxHTML:     50000,
	}
}

// AnalyzeURL loads a page headlessly and classifies its forms. Model
// tokens stream out as analysis events so observers can watch the
// classifier think.
func (s *Service) AnalyzeURL(ctx context.Context, analysisID, url string, stealth bool) (*FormAnalysis, error) {
	s.broadcaster.TriggerAnalysis(ctx, analysisID, "analysis.started", map[string]interface{}{
		"analysis_id": analysisID,
		"url":         url,
	})

	instance, err := s.runtime.Launch(ctx, browser.LaunchOptions{
		Headless:       true,
		StealthEnabled: stealth,
	})
	if err != nil {
		s.failAnalysis(ctx, analysisID, "could not start browser")
		return nil, err
	}
	defer instance.Close()

	if _, err := browser.Navigate(instance.Page, url); err != nil {
		s.failAnalysis(ctx, analysisID, "page did not load")
		return nil, fmt.Errorf("navigate to %s: %w", url, err)
	}

	rawHTML, err := instance.Page.Content()
	if err != nil {
		s.failAnalysis(ctx, analysisID, "could not capture page content")
		return nil, fmt.Errorf("capture page content: %w", err)
	}

	cleaned, err := CleanHTML(rawHTML, s.maxHTML)
	if err != nil {
		s.failAnalysis(ctx, analysisID, "could not process page content")
		return nil, err
	}

	analysis, err := s.classifier.ClassifyStream(ctx, cleaned, func(token string) {
		s.broadcaster.TriggerAnalysis(ctx, analysisID, "analysis.thinking", map[string]interface{}{
			"token": token,
			"done":  false,
		})
	})
	if err != nil {
		s.logger.Error(ctx, "classification failed", map[string]interface{}{
			"error":       err.Error(),
			"analysis_id": analysisID,
		})
		s.failAnalysis(ctx, analysisID, "classification failed")
		return nil, err
	}
	s.broadcaster.TriggerAnalysis(ctx, analysisID, "analysis.thinking", map[string]interface{}{
		"token": "",
		"done":  true,
	})

	applyLoginHeuristic(analysis)

	s.broadcaster.TriggerAnalysis(ctx, analysisID, "analysis.completed", map[string]interface{}{
		"analysis_id":         analysisID,
		"form_count":          len(analysis.Forms),
		"page_requires_login": analysis.PageRequiresLogin,
		"two_factor_detected": analysis.TwoFactorDetected,
	})
	return analysis, nil
}

func (s *Service) failAnalysis(ctx context.Context, analysisID, reason string) {
	s.broadcaster.TriggerAnalysis(ctx, analysisID, "analysis.failed", map[string]interface{}{
		"analysis_id": analysisID,
		"error":       reason,
	})
}
