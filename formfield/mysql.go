package formfield

import (
	"context"
	"errors"

	"github.com/formbot-io/formbot/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MySQLStore implements the Store interface using GORM and MySQL.
type MySQLStore struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewMySQLStore creates a new MySQL-backed form field store.
func NewMySQLStore(db *gorm.DB, log logger.Logger) *MySQLStore {
	return &MySQLStore{
		db:     db,
		logger: log,
	}
}

// Create creates a new form field in the database.
func (s *MySQLStore) Create(ctx context.Context, field *FormField) error {
	if field.Kind == "" {
		field.Kind = KindText
	}

	if err := field.Validate(); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Create(field).Error; err != nil {
		s.logger.Error(ctx, "failed to create form field", map[string]interface{}{
			"error":        err.Error(),
			"form_step_id": field.FormStepID,
		})
		return err
	}

	return nil
}

// ListByStep retrieves all fields of a form step ordered by sort_order.
func (s *MySQLStore) ListByStep(ctx context.Context, stepID uuid.UUID) ([]*FormField, error) {
	var fields []*FormField
	err := s.db.WithContext(ctx).
		Where("form_step_id = ?", stepID).
		Order("sort_order ASC, id ASC").
		Find(&fields).Error

	if err != nil {
		s.logger.Error(ctx, "failed to list form fields", map[string]interface{}{
			"error":        err.Error(),
			"form_step_id": stepID,
		})
		return nil, err
	}

	return fields, nil
}

// Update updates a form field with the given setters.
func (s *MySQLStore) Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) error {
	var field FormField
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&field).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrFormFieldNotFound
		}
		return err
	}

	for _, setter := range setters {
		if err := setter(&field); err != nil {
			return err
		}
	}

	if err := s.db.WithContext(ctx).Save(&field).Error; err != nil {
		s.logger.Error(ctx, "failed to update form field", map[string]interface{}{
			"error":    err.Error(),
			"field_id": id,
		})
		return err
	}

	return nil
}
