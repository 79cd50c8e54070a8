package executor

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndRelease(t *testing.T) {
	reg := NewRegistry(2)
	ctx := context.Background()

	id1, id2, id3 := uuid.New(), uuid.New(), uuid.New()

	_, err := reg.Register(ctx, id1)
	require.NoError(t, err)
	_, err = reg.Register(ctx, id2)
	require.NoError(t, err)

	_, err = reg.Register(ctx, id3)
	assert.ErrorIs(t, err, ErrTooManyRuns)

	reg.Release(id1)
	_, err = reg.Register(ctx, id3)
	assert.NoError(t, err)

	assert.True(t, reg.IsRunning(id2))
	assert.False(t, reg.IsRunning(id1))
}

func TestRegistry_CancelPropagatesToContext(t *testing.T) {
	reg := NewRegistry(1)
	id := uuid.New()

	runCtx, err := reg.Register(context.Background(), id)
	require.NoError(t, err)

	assert.True(t, reg.Cancel(id))
	<-runCtx.Done()
	assert.Error(t, runCtx.Err())

	// Cancelling a finished run is not an error.
	reg.Release(id)
	assert.False(t, reg.Cancel(id))
}

func TestRegistry_ReleaseIsIdempotent(t *testing.T) {
	reg := NewRegistry(1)
	id := uuid.New()

	_, err := reg.Register(context.Background(), id)
	require.NoError(t, err)

	reg.Release(id)
	reg.Release(id)

	// The slot is actually free again.
	_, err = reg.Register(context.Background(), uuid.New())
	assert.NoError(t, err)
}
