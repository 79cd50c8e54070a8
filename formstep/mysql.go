package formstep

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

// NewMySQLStore creates a new MySQL-backed form step store.
func NewMySQLStore(db *gorm.DB, log logger.Logger) *MySQLStore {
	return &MySQLStore{
		db:     db,
		logger: log,
	}
}

// Create creates a new form step in the database.
func (s *MySQLStore) Create(ctx context.Context, step *FormStep) error {
	if err := step.Validate(); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Create(step).Error; err != nil {
		s.logger.Error(ctx, "failed to create form step", map[string]interface{}{
			"error":   err.Error(),
			"task_id": step.TaskID,
		})
		return err
	}

	return nil
}

// GetByID retrieves a form step by its ID.
func (s *MySQLStore) GetByID(ctx context.Context, id uuid.UUID) (*FormStep, error) {
	var step FormStep
	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&step).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFormStepNotFound
		}
		s.logger.Error(ctx, "failed to get form step by ID", map[string]interface{}{
			"error":   err.Error(),
			"step_id": id,
		})
		return nil, err
	}

	return &step, nil
}

// ListByTask retrieves all form steps of a task ordered by step_order.
func (s *MySQLStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*FormStep, error) {
	var steps []*FormStep
	err := s.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("step_order ASC, id ASC").
		Find(&steps).Error

	if err != nil {
		s.logger.Error(ctx, "failed to list form steps", map[string]interface{}{
			"error":   err.Error(),
			"task_id": taskID,
		})
		return nil, err
	}

	return steps, nil
}

// Update updates a form step with the given setters.
func (s *MySQLStore) Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) error {
	step, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	for _, setter := range setters {
		if err := setter(step); err != nil {
			return err
		}
	}

	if err := s.db.WithContext(ctx).Save(step).Error; err != nil {
		s.logger.Error(ctx, "failed to update form step", map[string]interface{}{
			"error":   err.Error(),
			"step_id": id,
		})
		return err
	}

	return nil
}
