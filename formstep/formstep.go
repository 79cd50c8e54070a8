package formstep

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrFormStepNotFound is returned when a form step is not found.
	ErrFormStepNotFound = errors.New("form step not found")

	// ErrInvalidTaskID is returned when task_id is not set.
	ErrInvalidTaskID = errors.New("task_id is required")

	// ErrInvalidPageURL is returned when page_url is not set.
	ErrInvalidPageURL = errors.New("page_url is required")

	// ErrInvalidFormSelector is returned when form_selector is not set.
	ErrInvalidFormSelector = errors.New("form_selector is required")
)

// FormStep represents one page+form within a task's flow. Steps carry an
// ordering index and an optional dependency on another step's order; the
// resolver in this package turns those into an execution order.
type FormStep struct {
	ID              uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	TaskID          uuid.UUID `json:"task_id" gorm:"type:char(36);not null;index:idx_form_steps_task_id"`
	StepOrder       int       `json:"step_order" gorm:"not null;default:1"`
	DependsOnStep   *int      `json:"depends_on_step"`
	PageURL         string    `json:"page_url" gorm:"type:text;not null"`
	FormType        string    `json:"form_type" gorm:"type:varchar(50)"`
	FormSelector    string    `json:"form_selector" gorm:"type:text;not null"`
	SubmitSelector  string    `json:"submit_selector" gorm:"type:text"`
	AIConfidence    float64   `json:"ai_confidence"`
	HumanBreakpoint bool      `json:"human_breakpoint" gorm:"default:false"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// BeforeCreate hook to generate UUID before creating a new form step
func (f *FormStep) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// Validate checks if the form step has valid required fields.
func (f *FormStep) Validate() error {
	if f.TaskID == uuid.Nil {
		return ErrInvalidTaskID
	}
	if f.PageURL == "" {
		return ErrInvalidPageURL
	}
	if f.FormSelector == "" {
		return ErrInvalidFormSelector
	}
	return nil
}
