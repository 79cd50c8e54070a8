package formstep

import (
	"context"

	"github.com/google/uuid"
)

// Store defines the interface for form step persistence operations.
type Store interface {
	// Create creates a new form step in the store.
	Create(ctx context.Context, step *FormStep) error

	// GetByID retrieves a form step by its ID.
	GetByID(ctx context.Context, id uuid.UUID) (*FormStep, error)

	// ListByTask retrieves all form steps of a task ordered by step_order.
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*FormStep, error)

	// Update updates a form step with the given setters.
	Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) error
}

// UpdateSetter is a function that updates a form step field.
type UpdateSetter func(*FormStep) error
