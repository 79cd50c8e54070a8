package task

import (
	"context"

	"github.com/google/uuid"
)

// Store defines the interface for task persistence operations.
type Store interface {
	// Create creates a new task in the store.
	Create(ctx context.Context, task *Task) error

	// GetByID retrieves a task by its ID.
	GetByID(ctx context.Context, id uuid.UUID) (*Task, error)

	// Update updates a task with the given setters.
	Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) error
}

// UpdateSetter is a function that updates a task field.
type UpdateSetter func(*Task) error
