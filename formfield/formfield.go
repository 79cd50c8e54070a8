package formfield

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrFormFieldNotFound is returned when a form field is not found.
	ErrFormFieldNotFound = errors.New("form field not found")

	// ErrInvalidFormStepID is returned when form_step_id is not set.
	ErrInvalidFormStepID = errors.New("form_step_id is required")

	// ErrInvalidName is returned when field_name is not set.
	ErrInvalidName = errors.New("field_name is required")

	// ErrInvalidSelector is returned when field_selector is not set.
	ErrInvalidSelector = errors.New("field_selector is required")
)

// Kind is the closed set of field kinds the fill dispatch understands.
// Unknown kinds from the classifier normalize to KindText.
type Kind string

const (
	KindText     Kind = "text"
	KindPassword Kind = "password"
	KindEmail    Kind = "email"
	KindNumber   Kind = "number"
	KindTel      Kind = "tel"
	KindURL      Kind = "url"
	KindDate     Kind = "date"
	KindTextarea Kind = "textarea"
	KindSelect   Kind = "select"
	KindCheckbox Kind = "checkbox"
	KindRadio    Kind = "radio"
	KindFile     Kind = "file"
	KindHidden   Kind = "hidden"
	KindSubmit   Kind = "submit"
	KindButton   Kind = "button"
)

// IsValid checks if the kind is one of the known variants.
func (k Kind) IsValid() bool {
	switch k {
	case KindText, KindPassword, KindEmail, KindNumber, KindTel, KindURL,
		KindDate, KindTextarea, KindSelect, KindCheckbox, KindRadio,
		KindFile, KindHidden, KindSubmit, KindButton:
		return true
	default:
		return false
	}
}

// ParseKind normalizes a raw type string to a Kind, mapping anything
// unrecognized to KindText.
func ParseKind(raw string) Kind {
	k := Kind(strings.ToLower(strings.TrimSpace(raw)))
	if k.IsValid() {
		return k
	}
	return KindText
}

// Truthy reports whether a checkbox preset value means "checked".
// Accepted spellings are true/1/yes/on, case-insensitive; anything else
// unchecks the box.
func Truthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

// FormField represents one input within a form step. A nil PresetValue
// means the field is skipped during autofill.
type FormField struct {
	ID           uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	FormStepID   uuid.UUID `json:"form_step_id" gorm:"type:char(36);not null;index:idx_form_fields_step_id"`
	Name         string    `json:"field_name" gorm:"column:field_name;type:varchar(255);not null"`
	Kind         Kind      `json:"field_type" gorm:"column:field_type;type:varchar(50);not null;default:'text'"`
	Selector     string    `json:"field_selector" gorm:"column:field_selector;type:text;not null"`
	Purpose      string    `json:"field_purpose" gorm:"column:field_purpose;type:varchar(100)"`
	PresetValue  *string   `json:"preset_value" gorm:"type:text"`
	IsSensitive  bool      `json:"is_sensitive" gorm:"default:false"`
	IsFileUpload bool      `json:"is_file_upload" gorm:"default:false"`
	IsRequired   bool      `json:"is_required" gorm:"default:false"`
	Options      string    `json:"options" gorm:"type:text"`
	SortOrder    int       `json:"sort_order" gorm:"default:0"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BeforeCreate hook to generate UUID before creating a new form field
func (f *FormField) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// Validate checks if the form field has valid required fields.
func (f *FormField) Validate() error {
	if f.FormStepID == uuid.Nil {
		return ErrInvalidFormStepID
	}
	if f.Name == "" {
		return ErrInvalidName
	}
	if f.Selector == "" {
		return ErrInvalidSelector
	}
	return nil
}
