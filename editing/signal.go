package editing

import (
	"context"
	"sync"
	"time"
)

// signal is a one-shot, idempotent, level-triggered wait primitive. A
// waiter that starts waiting after the signal fired still observes it as
// fired.
type signal struct {
	once sync.Once
	ch   chan struct{}
}

func newSignal() *signal {
	return &signal{ch: make(chan struct{})}
}

// Fire marks the signal. Firing an already-fired signal is a no-op.
func (s *signal) Fire() {
	s.once.Do(func() { close(s.ch) })
}

// Fired reports whether the signal has been fired.
func (s *signal) Fired() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Wait blocks until the signal fires, the timeout elapses, or the context
// is cancelled. Returns true only on a real fire.
func (s *signal) Wait(ctx context.Context, timeout time.Duration) bool {
	select {
	case <-s.ch:
		return true
	case <-time.After(timeout):
		return false
	case <-ctx.Done():
		return false
	}
}
