package formfield

import (
	"context"

	"github.com/google/uuid"
)

// Store defines the interface for form field persistence operations.
type Store interface {
	// Create creates a new form field in the store.
	Create(ctx context.Context, field *FormField) error

	// ListByStep retrieves all fields of a form step ordered by sort_order.
	ListByStep(ctx context.Context, stepID uuid.UUID) ([]*FormField, error)

	// Update updates a form field with the given setters.
	Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) error
}

// UpdateSetter is a function that updates a form field.
type UpdateSetter func(*FormField) error
