package execution

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrExecutionNotFound is returned when an execution log is not found.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrInvalidTaskID is returned when task_id is not set.
	ErrInvalidTaskID = errors.New("task_id is required")

	// ErrInvalidStatus is returned when status is invalid.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrExecutionNotRunning is returned when trying to complete an
	// execution that is not in a live state.
	ErrExecutionNotRunning = errors.New("execution is not running")
)

// Status represents the status of a task execution.
type Status string

const (
	StatusPending       Status = "pending"
	StatusRunning       Status = "running"
	StatusWaitingManual Status = "waiting_manual"
	StatusDryRunOK      Status = "dry_run_ok"
	StatusSuccess       Status = "success"
	StatusFailed        Status = "failed"
)

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusWaitingManual,
		StatusDryRunOK, StatusSuccess, StatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal checks if the status is a final status.
func (s Status) IsTerminal() bool {
	return s == StatusDryRunOK || s == StatusSuccess || s == StatusFailed
}

// IsLive checks if the execution is still progressing.
func (s Status) IsLive() bool {
	return s == StatusRunning || s == StatusWaitingManual
}

// Step record statuses. A step gets exactly one record; pause transitions
// mutate the record in place rather than appending a second one.
const (
	StepStarted        = "started"
	StepFormNotFound   = "form_not_found"
	StepWaitingManual  = "waiting_manual"
	StepManualResolved = "manual_resolved"
	StepSubmitted      = "submitted"
	StepSubmitError    = "submit_error"
	StepDryRunComplete = "dry_run_complete"
)

// StepRecord is one entry in an execution's step log.
type StepRecord struct {
	Step          int               `json:"step"`
	PageURL       string            `json:"page_url"`
	FormType      string            `json:"form_type"`
	Status        string            `json:"status"`
	Error         string            `json:"error,omitempty"`
	Navigated     bool              `json:"navigated,omitempty"`
	WaitingReason string            `json:"waiting_reason,omitempty"`
	ViewerURL     string            `json:"viewer_url,omitempty"`
	FieldErrors   map[string]string `json:"field_errors,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

// ExecutionLog represents one run of a task.
type ExecutionLog struct {
	ID               uuid.UUID    `json:"id" gorm:"type:char(36);primaryKey"`
	TaskID           uuid.UUID    `json:"task_id" gorm:"type:char(36);not null;index:idx_executions_task_id"`
	Status           Status       `json:"status" gorm:"type:varchar(20);not null;default:'pending';index:idx_executions_status"`
	IsDryRun         bool         `json:"is_dry_run" gorm:"default:false"`
	RetryCount       int          `json:"retry_count" gorm:"default:0"`
	ErrorMessage     string       `json:"error_message" gorm:"type:text"`
	ScreenshotPath   string       `json:"screenshot_path" gorm:"type:text"`
	ScreenshotKey    string       `json:"screenshot_key" gorm:"type:text"`
	ScreenshotSize   int64        `json:"screenshot_size" gorm:"default:0"`
	StepsLog         []StepRecord `json:"steps_log" gorm:"serializer:json;type:text"`
	DisplaySessionID *string      `json:"display_session_id" gorm:"type:varchar(100)"`
	StartedAt        *time.Time   `json:"started_at,omitempty"`
	CompletedAt      *time.Time   `json:"completed_at,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// BeforeCreate hook to generate UUID before creating a new execution log
func (e *ExecutionLog) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Validate checks if the execution log has valid required fields.
func (e *ExecutionLog) Validate() error {
	if e.TaskID == uuid.Nil {
		return ErrInvalidTaskID
	}
	if !e.Status.IsValid() {
		return ErrInvalidStatus
	}
	return nil
}

// Start transitions the execution to running and stamps started_at.
// Re-starting resets the step log; an upstream orchestrator may hand us a
// pre-created pending row.
func (e *ExecutionLog) Start() {
	now := time.Now().UTC()
	e.StartedAt = &now
	e.Status = StatusRunning
	e.StepsLog = nil
	e.ErrorMessage = ""
}

// Complete transitions the execution to a terminal status.
func (e *ExecutionLog) Complete(status Status, errorMessage string) error {
	if !e.Status.IsLive() {
		return ErrExecutionNotRunning
	}
	if !status.IsTerminal() {
		return ErrInvalidStatus
	}
	now := time.Now().UTC()
	e.CompletedAt = &now
	e.Status = status
	e.ErrorMessage = errorMessage
	return nil
}
