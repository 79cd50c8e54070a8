package editing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/formbot-io/formbot/broadcast"
	"github.com/formbot-io/formbot/logger"
)

// Field is one highlighted form field as the overlay script knows it.
type Field struct {
	Selector string `json:"selector"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Value    string `json:"value"`
	Required bool   `json:"required"`
}

// SelectorTestResult reports how many elements a candidate selector matched.
type SelectorTestResult struct {
	Found      bool `json:"found"`
	MatchCount int  `json:"matchCount"`
}

// Overlay injects the highlight script into a live page and relays its
// callbacks out over the per-task editing channel. Commands issued while a
// navigation is in flight fail; callers gate on the session state first.
type Overlay struct {
	driver PageDriver
	taskID string
	bc     broadcast.Broadcaster
	logger logger.Logger

	fields  []Field
	mode    string
	exposed bool
}

func NewOverlay(driver PageDriver, taskID string, bc broadcast.Broadcaster, lgr logger.Logger) *Overlay {
	return &Overlay{
		driver: driver,
		taskID: taskID,
		bc:     bc,
		logger: lgr,
		mode:   "select",
	}
}

// Setup registers the browser-to-host bridge functions once and arranges
// re-injection after every navigation. Bindings survive navigations, so
// registration happens exactly once per page.
func (o *Overlay) Setup(ctx context.Context, fields []Field) error {
	o.fields = fields

	if !o.exposed {
		bindings := map[string]string{
			"__formbot_onFieldSelected":     "FieldSelected",
			"__formbot_onFieldAdded":        "FieldAdded",
			"__formbot_onFieldRemoved":      "FieldRemoved",
			"__formbot_onFieldValueChanged": "FieldValueChanged",
		}
		for name, event := range bindings {
			event := event
			if err := o.driver.ExposeBinding(name, func(payload string) {
				o.relay(event, payload)
			}); err != nil {
				return fmt.Errorf("expose %s: %w", name, err)
			}
		}
		o.exposed = true
	}

	o.driver.OnNavigated(func() {
		if err := o.Inject(); err != nil {
			o.logger.Debug(context.Background(), "overlay re-inject skipped", map[string]interface{}{
				"task_id": o.taskID,
				"error":   err.Error(),
			})
		}
	})
	return nil
}

// Inject loads the overlay script and initializes it with the current
// fields and mode. Safe to call repeatedly; the script replaces any prior
// instance of itself.
func (o *Overlay) Inject() error {
	if _, err := o.driver.Evaluate(overlayScript); err != nil {
		return fmt.Errorf("inject overlay: %w", err)
	}
	fieldsJSON, err := json.Marshal(o.fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	if _, err := o.driver.Evaluate(fmt.Sprintf("window.__FORMBOT_HIGHLIGHT.init(%s)", fieldsJSON)); err != nil {
		return fmt.Errorf("init overlay: %w", err)
	}
	modeJSON, _ := json.Marshal(o.mode)
	if _, err := o.driver.Evaluate(fmt.Sprintf("window.__FORMBOT_HIGHLIGHT.command_setMode(%s)", modeJSON)); err != nil {
		return fmt.Errorf("set overlay mode: %w", err)
	}
	return nil
}

// Cleanup removes overlays and listeners from the page. Errors are
// swallowed: the page may already be gone.
func (o *Overlay) Cleanup() {
	_, _ = o.driver.Evaluate("if(window.__FORMBOT_HIGHLIGHT) window.__FORMBOT_HIGHLIGHT.command_cleanup()")
}

// SetMode switches interaction mode: select, add or remove.
func (o *Overlay) SetMode(mode string) error {
	o.mode = mode
	modeJSON, _ := json.Marshal(mode)
	_, err := o.driver.Evaluate(fmt.Sprintf("window.__FORMBOT_HIGHLIGHT.command_setMode(%s)", modeJSON))
	return err
}

// UpdateFields replaces the highlighted field set.
func (o *Overlay) UpdateFields(fields []Field) error {
	o.fields = fields
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	_, err = o.driver.Evaluate(fmt.Sprintf("window.__FORMBOT_HIGHLIGHT.command_updateFields(%s)", fieldsJSON))
	return err
}

// Fields returns the overlay's current field set.
func (o *Overlay) Fields() []Field {
	return o.fields
}

// FocusField scrolls to and flash-highlights one field.
func (o *Overlay) FocusField(index int) error {
	_, err := o.driver.Evaluate(fmt.Sprintf("window.__FORMBOT_HIGHLIGHT.command_focusField(%d)", index))
	return err
}

// TestSelector flashes the elements a selector matches and reports the count.
func (o *Overlay) TestSelector(selector string) (SelectorTestResult, error) {
	selectorJSON, _ := json.Marshal(selector)
	raw, err := o.driver.Evaluate(fmt.Sprintf("window.__FORMBOT_HIGHLIGHT.command_testSelector(%s)", selectorJSON))
	if err != nil {
		return SelectorTestResult{}, err
	}
	result := SelectorTestResult{}
	if m, ok := raw.(map[string]interface{}); ok {
		if found, ok := m["found"].(bool); ok {
			result.Found = found
		}
		switch count := m["matchCount"].(type) {
		case float64:
			result.MatchCount = int(count)
		case int:
			result.MatchCount = count
		}
	}
	return result, nil
}

// FillField writes a value into a field on the live page.
func (o *Overlay) FillField(index int, value string) error {
	valueJSON, _ := json.Marshal(value)
	_, err := o.driver.Evaluate(fmt.Sprintf("window.__FORMBOT_HIGHLIGHT.command_fillField(%d, %s)", index, valueJSON))
	return err
}

// ReadFieldValue reads a field's current value from the live page.
func (o *Overlay) ReadFieldValue(index int) (string, error) {
	raw, err := o.driver.Evaluate(fmt.Sprintf("window.__FORMBOT_HIGHLIGHT.command_readFieldValue(%d)", index))
	if err != nil {
		return "", err
	}
	if s, ok := raw.(string); ok {
		return s, nil
	}
	return "", nil
}

// relay forwards one browser callback out on the editing channel.
func (o *Overlay) relay(event, payload string) {
	data := map[string]interface{}{}
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		o.logger.Warn(context.Background(), "overlay callback payload not decodable", map[string]interface{}{
			"task_id": o.taskID,
			"event":   event,
			"error":   err.Error(),
		})
		return
	}
	o.bc.TriggerTaskEditing(context.Background(), o.taskID, event, data)
}
