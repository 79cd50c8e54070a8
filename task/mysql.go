package task

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

// NewMySQLStore creates a new MySQL-backed task store.
func NewMySQLStore(db *gorm.DB, log logger.Logger) *MySQLStore {
	return &MySQLStore{
		db:     db,
		logger: log,
	}
}

// Create creates a new task in the database.
func (s *MySQLStore) Create(ctx context.Context, t *Task) error {
	if t.Status == "" {
		t.Status = "draft"
	}

	if err := t.Validate(); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		s.logger.Error(ctx, "failed to create task", map[string]interface{}{
			"error":    err.Error(),
			"owner_id": t.OwnerID,
		})
		return err
	}

	return nil
}

// GetByID retrieves a task by its ID.
func (s *MySQLStore) GetByID(ctx context.Context, id uuid.UUID) (*Task, error) {
	var t Task
	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&t).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		s.logger.Error(ctx, "failed to get task by ID", map[string]interface{}{
			"error":   err.Error(),
			"task_id": id,
		})
		return nil, err
	}

	return &t, nil
}

// Update updates a task with the given setters.
func (s *MySQLStore) Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) error {
	t, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	for _, setter := range setters {
		if err := setter(t); err != nil {
			return err
		}
	}

	if err := s.db.WithContext(ctx).Save(t).Error; err != nil {
		s.logger.Error(ctx, "failed to update task", map[string]interface{}{
			"error":   err.Error(),
			"task_id": id,
		})
		return err
	}

	return nil
}
