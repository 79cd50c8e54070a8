package editing

import (
	"context"
	"sync"
	"time"

	"github.com/formbot-io/formbot/logger"
)

const (
	sweepInterval  = 60 * time.Second
	staleThreshold = 30 * time.Minute
)

// DisplayReleaser releases the pooled display a headed session was using.
// Satisfied by *display.Pool.
type DisplayReleaser interface {
	Stop(ctx context.Context, sessionID string) bool
}

// Registry holds all live editing sessions, keyed by task id, and sweeps
// abandoned ones in the background so leaked browsers stay bounded.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	displays DisplayReleaser
	logger   logger.Logger

	staleAfter time.Duration
	stopSweep  chan struct{}
	sweepOnce  sync.Once
	stopOnce   sync.Once
}

// NewRegistry builds an empty registry. displays may be nil when sessions
// never run headed.
func NewRegistry(displays DisplayReleaser, lgr logger.Logger) *Registry {
	return &Registry{
		sessions:   map[string]*Session{},
		displays:   displays,
		logger:     lgr,
		staleAfter: staleThreshold,
		stopSweep:  make(chan struct{}),
	}
}

// Register stores a session, replacing and cleaning up any previous
// session for the same task.
func (r *Registry) Register(session *Session) {
	r.mu.Lock()
	previous := r.sessions[session.TaskID]
	r.sessions[session.TaskID] = session
	r.mu.Unlock()

	if previous != nil {
		r.teardown(previous)
	}
}

// Get returns the session for a task, or ErrSessionNotFound.
func (r *Registry) Get(taskID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[taskID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Remove drops a session from the registry without cleaning it up.
func (r *Registry) Remove(taskID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	session := r.sessions[taskID]
	delete(r.sessions, taskID)
	return session
}

// CleanupSession removes the session and tears down its overlay, browser
// and display slot. Best-effort on each sub-step; unknown ids are a no-op.
func (r *Registry) CleanupSession(taskID string) {
	session := r.Remove(taskID)
	if session == nil {
		return
	}
	r.teardown(session)
}

func (r *Registry) teardown(session *Session) {
	session.Close()
	if session.DisplaySessionID != nil && r.displays != nil {
		r.displays.Stop(context.Background(), *session.DisplaySessionID)
	}
	r.logger.Info(context.Background(), "editing session cleaned up", map[string]interface{}{
		"task_id": session.TaskID,
	})
}

// ActiveCount returns the number of live sessions.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// StartSweep launches the background staleness sweep. Safe to call once;
// later calls are no-ops.
func (r *Registry) StartSweep() {
	r.sweepOnce.Do(func() {
		go r.sweepLoop()
	})
}

// StopSweep halts the background sweep. Live sessions are left in place.
func (r *Registry) StopSweep() {
	r.stopOnce.Do(func() { close(r.stopSweep) })
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopSweep:
			return
		case <-ticker.C:
			r.sweepStale()
		}
	}
}

func (r *Registry) sweepStale() {
	cutoff := time.Now().Add(-r.staleAfter)

	r.mu.Lock()
	var stale []string
	for taskID, session := range r.sessions {
		if session.CreatedAt().Before(cutoff) {
			stale = append(stale, taskID)
		}
	}
	r.mu.Unlock()

	for _, taskID := range stale {
		r.logger.Warn(context.Background(), "cleaning up stale editing session", map[string]interface{}{
			"task_id": taskID,
		})
		r.CleanupSession(taskID)
	}
}

// CleanupAll force-cleans every session, for process shutdown.
func (r *Registry) CleanupAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for taskID := range r.sessions {
		ids = append(ids, taskID)
	}
	r.mu.Unlock()

	for _, taskID := range ids {
		r.CleanupSession(taskID)
	}
}
