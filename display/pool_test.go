package display

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbot-io/formbot/logger"
)

type fakeProcess struct {
	mu      sync.Mutex
	running bool
	stopped bool
}

func (p *fakeProcess) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *fakeProcess) Stop(grace time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
	p.stopped = true
}

type fakeLauncher struct {
	mu        sync.Mutex
	started   []string
	processes []*fakeProcess
	// failuresLeft makes the next N starts produce dead processes.
	failuresLeft int
}

func (l *fakeLauncher) Start(ctx context.Context, name string, args ...string) (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = append(l.started, name+" "+strings.Join(args, " "))
	p := &fakeProcess{running: true}
	if l.failuresLeft > 0 {
		l.failuresLeft--
		p.running = false
	}
	l.processes = append(l.processes, p)
	return p, nil
}

func (l *fakeLauncher) startCount(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, s := range l.started {
		if strings.HasPrefix(s, name+" ") {
			n++
		}
	}
	return n
}

func newTestPool(t *testing.T, maxSessions int) (*Pool, *fakeLauncher) {
	launcher := &fakeLauncher{}
	pool := NewPool(Config{
		MaxSessions: maxSessions,
		StartupWait: time.Millisecond,
		GatewayPort: 0,
	}, launcher, logger.NewTestLogger())
	t.Cleanup(func() { pool.Cleanup(context.Background()) })
	return pool, launcher
}

func TestPool_ReserveAssignsDistinctSlots(t *testing.T) {
	pool, launcher := newTestPool(t, 3)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		s, err := pool.Reserve(ctx, 42)
		require.NoError(t, err)
		assert.False(t, seen[s.DisplayHandle], "display %s reused", s.DisplayHandle)
		seen[s.DisplayHandle] = true
	}
	assert.Equal(t, 3, launcher.startCount("Xvfb"))
}

func TestPool_SlotExhaustion(t *testing.T) {
	pool, _ := newTestPool(t, 2)
	ctx := context.Background()

	first, err := pool.Reserve(ctx, 1)
	require.NoError(t, err)
	_, err = pool.Reserve(ctx, 1)
	require.NoError(t, err)

	_, err = pool.Reserve(ctx, 1)
	assert.ErrorIs(t, err, ErrNoFreeSlot)

	// Freeing a slot makes the next reservation succeed.
	assert.True(t, pool.Stop(ctx, first.ID))
	s, err := pool.Reserve(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first.Slot, s.Slot)
}

func TestPool_DisplayStartupRetriesOnceThenFails(t *testing.T) {
	pool, launcher := newTestPool(t, 1)
	ctx := context.Background()

	launcher.failuresLeft = 1
	s, err := pool.Reserve(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, launcher.startCount("Xvfb"))
	require.True(t, pool.Stop(ctx, s.ID))

	launcher.failuresLeft = 2
	_, err = pool.Reserve(ctx, 1)
	assert.ErrorIs(t, err, ErrDisplayStartFailed)
	// The failed reservation must not leak the slot.
	launcher.failuresLeft = 0
	_, err = pool.Reserve(ctx, 1)
	assert.NoError(t, err)
}

func TestPool_ActivateAndDeactivate(t *testing.T) {
	pool, launcher := newTestPool(t, 1)
	ctx := context.Background()

	s, err := pool.Reserve(ctx, 7)
	require.NoError(t, err)

	viewerURL, wsPort, err := pool.Activate(ctx, s.ID)
	require.NoError(t, err)
	assert.NotZero(t, wsPort)
	assert.Contains(t, viewerURL, "token")
	assert.Equal(t, 1, launcher.startCount("x11vnc"))

	got, err := pool.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)
	firstToken := got.Token
	assert.NotEmpty(t, firstToken)

	// Re-activation mints a fresh token.
	_, _, err = pool.Activate(ctx, s.ID)
	require.NoError(t, err)
	got, err = pool.Get(s.ID)
	require.NoError(t, err)
	assert.NotEqual(t, firstToken, got.Token)

	require.NoError(t, pool.Deactivate(ctx, s.ID))
	got, err = pool.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReserved, got.Status)
	assert.Empty(t, got.Token)

	_, _, err = pool.Activate(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestPool_ConcurrentActivateStartsOneFramebuffer(t *testing.T) {
	pool, launcher := newTestPool(t, 1)
	ctx := context.Background()

	s, err := pool.Reserve(ctx, 7)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := pool.Activate(ctx, s.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, launcher.startCount("x11vnc"))
}

func TestPool_ResumeUnblocksWaiter(t *testing.T) {
	pool, _ := newTestPool(t, 1)
	ctx := context.Background()

	s, err := pool.Reserve(ctx, 7)
	require.NoError(t, err)

	done := make(chan bool, 1)
	go func() {
		done <- pool.WaitForResume(ctx, s.ID, 5*time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, pool.Resume(ctx, s.ID, 7))

	select {
	case resumed := <-done:
		assert.True(t, resumed)
	case <-time.After(time.Second):
		t.Fatal("waiter did not unblock")
	}

	// Resume is idempotent.
	assert.NoError(t, pool.Resume(ctx, s.ID, 7))
}

func TestPool_ResumeBeforeWaitStillUnblocks(t *testing.T) {
	pool, _ := newTestPool(t, 1)
	ctx := context.Background()

	s, err := pool.Reserve(ctx, 7)
	require.NoError(t, err)

	require.NoError(t, pool.Resume(ctx, s.ID, 7))
	assert.True(t, pool.WaitForResume(ctx, s.ID, 50*time.Millisecond))
}

func TestPool_WaitForResumeTimesOut(t *testing.T) {
	pool, _ := newTestPool(t, 1)
	ctx := context.Background()

	s, err := pool.Reserve(ctx, 7)
	require.NoError(t, err)

	assert.False(t, pool.WaitForResume(ctx, s.ID, 20*time.Millisecond))
	assert.False(t, pool.WaitForResume(ctx, "missing", 20*time.Millisecond))
}

func TestPool_StopUnblocksWaiterAndIsIdempotent(t *testing.T) {
	pool, launcher := newTestPool(t, 1)
	ctx := context.Background()

	s, err := pool.Reserve(ctx, 7)
	require.NoError(t, err)
	_, _, err = pool.Activate(ctx, s.ID)
	require.NoError(t, err)

	done := make(chan bool, 1)
	go func() {
		done <- pool.WaitForResume(ctx, s.ID, 5*time.Second)
	}()
	time.Sleep(10 * time.Millisecond)

	assert.True(t, pool.Stop(ctx, s.ID))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter did not unblock on stop")
	}

	// Second stop reports not found instead of erroring.
	assert.False(t, pool.Stop(ctx, s.ID))
	assert.Equal(t, 0, pool.ActiveCount())

	for _, p := range launcher.processes {
		assert.False(t, p.Running())
	}
}

func TestPool_CleanupStopsEverything(t *testing.T) {
	pool, launcher := newTestPool(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s, err := pool.Reserve(ctx, 1)
		require.NoError(t, err)
		_, _, err = pool.Activate(ctx, s.ID)
		require.NoError(t, err)
	}

	pool.Cleanup(ctx)
	assert.Equal(t, 0, pool.ActiveCount())
	for _, p := range launcher.processes {
		assert.False(t, p.Running())
	}
}
