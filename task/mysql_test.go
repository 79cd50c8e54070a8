package task

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
	testutil.AutoMigrate(t, db, &Task{})
	return NewMySQLStore(db, logger.NewTestLogger())
}

func validTask() *Task {
	return &Task{
		OwnerID:       7,
		Name:          "newsletter signup",
		TargetURL:     "https://example.com/signup",
		ActionDelayMs: 500,
	}
}

func TestMySQLStore_Create(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	t.Run("successfully create task", func(t *testing.T) {
		tk := validTask()
		err := store.Create(ctx, tk)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, tk.ID)
		assert.Equal(t, "draft", tk.Status)
	})

	t.Run("missing owner returns error", func(t *testing.T) {
		tk := validTask()
		tk.OwnerID = 0
		err := store.Create(ctx, tk)
		assert.ErrorIs(t, err, ErrInvalidOwnerID)
	})

	t.Run("missing target url returns error", func(t *testing.T) {
		tk := validTask()
		tk.TargetURL = ""
		err := store.Create(ctx, tk)
		assert.ErrorIs(t, err, ErrInvalidTargetURL)
	})
}

func TestMySQLStore_GetByID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	t.Run("retrieve existing task", func(t *testing.T) {
		tk := validTask()
		require.NoError(t, store.Create(ctx, tk))

		got, err := store.GetByID(ctx, tk.ID)
		require.NoError(t, err)
		assert.Equal(t, tk.ID, got.ID)
		assert.Equal(t, tk.TargetURL, got.TargetURL)
	})

	t.Run("non-existent task returns error", func(t *testing.T) {
		_, err := store.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})
}

func TestMySQLStore_Update(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tk := validTask()
	require.NoError(t, store.Create(ctx, tk))

	require.NoError(t, store.Update(ctx, tk.ID, SetStatus("active"), SetName("renamed")))

	got, err := store.GetByID(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, "active", got.Status)
	assert.Equal(t, "renamed", got.Name)

	err = store.Update(ctx, tk.ID, SetName(""))
	assert.ErrorIs(t, err, ErrInvalidName)
}
