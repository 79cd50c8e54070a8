package editing

import "sync"

// State is an editing session's busy state. Mutating commands run only
// from StateIdle; at most one of executing/navigating can hold the session
// at a time.
type State string

const (
	StateIdle       State = "idle"
	StateExecuting  State = "executing"
	StateNavigating State = "navigating"
)

// stateGuard serializes transitions between session states.
type stateGuard struct {
	mu    sync.Mutex
	state State
}

func newStateGuard() *stateGuard {
	return &stateGuard{state: StateIdle}
}

func (g *stateGuard) Current() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Acquire moves idle -> to. Reports false when the session is already busy.
func (g *stateGuard) Acquire(to State) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateIdle {
		return false
	}
	g.state = to
	return true
}

// Release returns the session to idle. Only the holder that acquired the
// state calls this, so no ownership check is needed.
func (g *stateGuard) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = StateIdle
}

// Busy reports whether a login execution or navigation is in flight.
func (g *stateGuard) Busy() bool {
	return g.Current() != StateIdle
}
