package executor

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// ErrTooManyRuns is returned when the concurrent run limit is reached.
var ErrTooManyRuns = errors.New("too many concurrent executions")

// Registry tracks in-flight runs so they can be externally cancelled, and
// bounds how many run at once.
type Registry struct {
	mu      sync.Mutex
	running map[uuid.UUID]context.CancelFunc
	sem     *semaphore.Weighted
}

func NewRegistry(maxConcurrent int64) *Registry {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	return &Registry{
		running: make(map[uuid.UUID]context.CancelFunc),
		sem:     semaphore.NewWeighted(maxConcurrent),
	}
}

// Register claims a run slot and returns a cancellable context for the
// run. Release must be called when the run finishes.
func (r *Registry) Register(ctx context.Context, executionID uuid.UUID) (context.Context, error) {
	if !r.sem.TryAcquire(1) {
		return nil, ErrTooManyRuns
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.running[executionID] = cancel
	r.mu.Unlock()
	return runCtx, nil
}

// Release frees the run's slot. Safe to call once per Register.
func (r *Registry) Release(executionID uuid.UUID) {
	r.mu.Lock()
	cancel, ok := r.running[executionID]
	delete(r.running, executionID)
	r.mu.Unlock()

	if ok {
		cancel()
		r.sem.Release(1)
	}
}

// Cancel aborts a run. Returns false when the run already finished, which
// is not an error for callers racing a natural completion.
func (r *Registry) Cancel(executionID uuid.UUID) bool {
	r.mu.Lock()
	cancel, ok := r.running[executionID]
	r.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// IsRunning reports whether a run is still in flight.
func (r *Registry) IsRunning(executionID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[executionID]
	return ok
}
