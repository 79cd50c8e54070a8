package task

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrTaskNotFound is returned when a task is not found.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidOwnerID is returned when owner_id is not set.
	ErrInvalidOwnerID = errors.New("owner_id is required")

	// ErrInvalidName is returned when name is not set.
	ErrInvalidName = errors.New("name is required")

	// ErrInvalidTargetURL is returned when target_url is not set.
	ErrInvalidTargetURL = errors.New("target_url is required")
)

// Task represents a form automation task. Tasks are created by the
// upstream orchestrator; this service reads them together with their
// form steps and fields and executes them.
type Task struct {
	ID              uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	OwnerID         uint      `json:"owner_id" gorm:"not null;index:idx_tasks_owner_id"`
	Name            string    `json:"name" gorm:"type:varchar(255);not null"`
	TargetURL       string    `json:"target_url" gorm:"type:text;not null"`
	Status          string    `json:"status" gorm:"type:varchar(20);default:'draft'"`
	IsDryRun        bool      `json:"is_dry_run" gorm:"default:false"`
	MaxRetries      int       `json:"max_retries" gorm:"default:3"`
	StealthEnabled  bool      `json:"stealth_enabled" gorm:"default:true"`
	CustomUserAgent string    `json:"custom_user_agent" gorm:"type:text"`
	ActionDelayMs   int       `json:"action_delay_ms" gorm:"default:500"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// BeforeCreate hook to generate UUID before creating a new task
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Validate checks if the task has valid required fields.
func (t *Task) Validate() error {
	if t.OwnerID == 0 {
		return ErrInvalidOwnerID
	}
	if t.Name == "" {
		return ErrInvalidName
	}
	if t.TargetURL == "" {
		return ErrInvalidTargetURL
	}
	return nil
}
