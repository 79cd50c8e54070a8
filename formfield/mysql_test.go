package formfield

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
	testutil.AutoMigrate(t, db, &FormField{})
	return NewMySQLStore(db, logger.NewTestLogger())
}

func strptr(s string) *string { return &s }

func TestMySQLStore_CreateDefaultsKind(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	f := &FormField{
		FormStepID: uuid.New(),
		Name:       "username",
		Selector:   "#username",
	}
	require.NoError(t, store.Create(ctx, f))
	assert.Equal(t, KindText, f.Kind)
	assert.NotEqual(t, uuid.Nil, f.ID)
}

func TestMySQLStore_ListByStepSorted(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	stepID := uuid.New()

	names := map[int]string{2: "password", 0: "username", 1: "remember"}
	for order, name := range names {
		require.NoError(t, store.Create(ctx, &FormField{
			FormStepID:  stepID,
			Name:        name,
			Selector:    "#" + name,
			SortOrder:   order,
			PresetValue: strptr("x"),
		}))
	}

	fields, err := store.ListByStep(ctx, stepID)
	require.NoError(t, err)
	require.Len(t, fields, 3)
	assert.Equal(t, "username", fields[0].Name)
	assert.Equal(t, "remember", fields[1].Name)
	assert.Equal(t, "password", fields[2].Name)
}

func TestMySQLStore_Update(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	f := &FormField{
		FormStepID: uuid.New(),
		Name:       "otp",
		Selector:   "#otp",
	}
	require.NoError(t, store.Create(ctx, f))

	require.NoError(t, store.Update(ctx, f.ID,
		SetPresetValue(strptr("123456")), SetKind("number")))

	fields, err := store.ListByStep(ctx, f.FormStepID)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	require.NotNil(t, fields[0].PresetValue)
	assert.Equal(t, "123456", *fields[0].PresetValue)
	assert.Equal(t, KindNumber, fields[0].Kind)

	err = store.Update(ctx, uuid.New(), SetSortOrder(5))
	assert.ErrorIs(t, err, ErrFormFieldNotFound)
}
