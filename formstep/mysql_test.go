package formstep

import (
	"context"
	"testing"

	"github.com/formbot-io/formbot/logger"
	"github.com/formbot-io/formbot/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) Store {
	db := testutil.SetupTestDB(t)
	testutil.AutoMigrate(t, db, &FormStep{})
	return NewMySQLStore(db, logger.NewTestLogger())
}

func TestMySQLStore_CreateAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	fs := &FormStep{
		TaskID:       uuid.New(),
		StepOrder:    1,
		PageURL:      "https://example.com/login",
		FormType:     "login",
		FormSelector: "#login-form",
	}
	require.NoError(t, store.Create(ctx, fs))
	assert.NotEqual(t, uuid.Nil, fs.ID)

	got, err := store.GetByID(ctx, fs.ID)
	require.NoError(t, err)
	assert.Equal(t, fs.FormSelector, got.FormSelector)

	_, err = store.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrFormStepNotFound)
}

func TestMySQLStore_CreateValidation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.Create(ctx, &FormStep{PageURL: "https://x", FormSelector: "#f"})
	assert.ErrorIs(t, err, ErrInvalidTaskID)

	err = store.Create(ctx, &FormStep{TaskID: uuid.New(), FormSelector: "#f"})
	assert.ErrorIs(t, err, ErrInvalidPageURL)

	err = store.Create(ctx, &FormStep{TaskID: uuid.New(), PageURL: "https://x"})
	assert.ErrorIs(t, err, ErrInvalidFormSelector)
}

func TestMySQLStore_ListByTaskOrdered(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	taskID := uuid.New()

	for _, order := range []int{3, 1, 2} {
		require.NoError(t, store.Create(ctx, &FormStep{
			TaskID:       taskID,
			StepOrder:    order,
			PageURL:      "https://example.com",
			FormSelector: "#form",
		}))
	}
	// Another task's step must not appear.
	require.NoError(t, store.Create(ctx, &FormStep{
		TaskID:       uuid.New(),
		StepOrder:    1,
		PageURL:      "https://other.example.com",
		FormSelector: "#form",
	}))

	steps, err := store.ListByTask(ctx, taskID)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, []int{1, 2, 3}, orders(steps))
}

func TestMySQLStore_Update(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	fs := &FormStep{
		TaskID:       uuid.New(),
		StepOrder:    1,
		PageURL:      "https://example.com",
		FormSelector: "#form",
	}
	require.NoError(t, store.Create(ctx, fs))

	require.NoError(t, store.Update(ctx, fs.ID,
		SetHumanBreakpoint(true), SetSubmitSelector("#go")))

	got, err := store.GetByID(ctx, fs.ID)
	require.NoError(t, err)
	assert.True(t, got.HumanBreakpoint)
	assert.Equal(t, "#go", got.SubmitSelector)
}
