package execution

import (
	"context"

	"github.com/google/uuid"
)

// UpdateSetter is a functional option for updating execution fields
type UpdateSetter func(*ExecutionLog) error

// Store defines the interface for execution log storage operations
type Store interface {
	Create(ctx context.Context, e *ExecutionLog) error
	GetByID(ctx context.Context, id uuid.UUID) (*ExecutionLog, error)
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*ExecutionLog, error)
	Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) (*ExecutionLog, error)
}
