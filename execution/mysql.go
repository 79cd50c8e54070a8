package execution

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

// NewMySQLStore creates a new MySQL-backed execution log store.
func NewMySQLStore(db *gorm.DB, log logger.Logger) *MySQLStore {
	return &MySQLStore{
		db:     db,
		logger: log,
	}
}

// Create creates a new execution log in the database.
func (s *MySQLStore) Create(ctx context.Context, e *ExecutionLog) error {
	if e.Status == "" {
		e.Status = StatusPending
	}

	if err := e.Validate(); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		s.logger.Error(ctx, "failed to create execution log", map[string]interface{}{
			"error":   err.Error(),
			"task_id": e.TaskID,
		})
		return err
	}

	return nil
}

// GetByID retrieves an execution log by its ID.
func (s *MySQLStore) GetByID(ctx context.Context, id uuid.UUID) (*ExecutionLog, error) {
	var e ExecutionLog
	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&e).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExecutionNotFound
		}
		s.logger.Error(ctx, "failed to get execution log by ID", map[string]interface{}{
			"error":        err.Error(),
			"execution_id": id,
		})
		return nil, err
	}

	return &e, nil
}

// ListByTask retrieves all execution logs for a task, newest first.
func (s *MySQLStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*ExecutionLog, error) {
	var executions []*ExecutionLog
	err := s.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at DESC, id DESC").
		Find(&executions).Error

	if err != nil {
		s.logger.Error(ctx, "failed to list execution logs by task", map[string]interface{}{
			"error":   err.Error(),
			"task_id": taskID,
		})
		return nil, err
	}

	return executions, nil
}

// Update updates an execution log with the given setters and returns the
// updated row.
func (s *MySQLStore) Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) (*ExecutionLog, error) {
	e, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	for _, setter := range setters {
		if err := setter(e); err != nil {
			return nil, err
		}
	}

	if err := s.db.WithContext(ctx).Save(e).Error; err != nil {
		s.logger.Error(ctx, "failed to update execution log", map[string]interface{}{
			"error":        err.Error(),
			"execution_id": id,
		})
		return nil, err
	}

	return e, nil
}
