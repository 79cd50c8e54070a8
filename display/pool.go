package display

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"

	"github.com/formbot-io/formbot/logger"
)

var (
	// ErrNoFreeSlot is returned when every display slot is occupied.
	ErrNoFreeSlot = errors.New("no free display slot")

	// ErrSessionNotFound is returned for operations on an unknown session.
	ErrSessionNotFound = errors.New("display session not found")

	// ErrDisplayStartFailed is returned when the virtual display will not
	// come up even after a retry.
	ErrDisplayStartFailed = errors.New("virtual display failed to start")
)

// SessionStatus is the lifecycle status of a display session.
type SessionStatus string

const (
	StatusReserved SessionStatus = "reserved"
	StatusActive   SessionStatus = "active"
	StatusResumed  SessionStatus = "resumed"
	StatusStopped  SessionStatus = "stopped"
)

// Session is one allocated virtual-display slot.
type Session struct {
	ID            string
	OwnerID       uint
	Slot          int
	DisplayHandle string
	VNCPort       int
	Token         string
	Status        SessionStatus

	resumeCh   chan struct{}
	resumeOnce sync.Once

	xvfb   Process
	x11vnc Process
}

// Display returns the DISPLAY environment value for the session's slot.
func (s *Session) Display() string {
	return s.DisplayHandle
}

func (s *Session) fireResume() {
	s.resumeOnce.Do(func() { close(s.resumeCh) })
}

// Config holds the pool's tunables.
type Config struct {
	MaxSessions int
	// DisplayBase is the first X display number; slot i uses DisplayBase+i.
	DisplayBase int
	// VNCPortBase is the first framebuffer port; slot i uses VNCPortBase+i.
	VNCPortBase int
	// GatewayPort is the single public websocket port. Zero lets the
	// kernel pick one.
	GatewayPort int
	// PublicHost is the host embedded in viewer URLs.
	PublicHost string
	// Resolution is the virtual display geometry, e.g. "1280x720x24".
	Resolution string
	// StartupWait is how long to give Xvfb before checking it is alive.
	StartupWait time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxSessions <= 0 {
		c.MaxSessions = 20
	}
	if c.DisplayBase <= 0 {
		c.DisplayBase = 99
	}
	if c.VNCPortBase <= 0 {
		c.VNCPortBase = 5900
	}
	if c.PublicHost == "" {
		c.PublicHost = "localhost"
	}
	if c.Resolution == "" {
		c.Resolution = "1280x720x24"
	}
	if c.StartupWait <= 0 {
		c.StartupWait = time.Second
	}
}

// Pool allocates isolated virtual displays out of a fixed set of slots.
// Each session gets its own Xvfb, its own loopback-bound x11vnc, and a
// revocable token routed through one shared websocket gateway.
type Pool struct {
	cfg      Config
	launcher Launcher
	gateway  *Gateway
	logger   logger.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	slots    []bool
}

// NewPool creates a display session pool. Stale X lock files from earlier
// crashed processes are cleared for every slot up front.
func NewPool(cfg Config, launcher Launcher, log logger.Logger) *Pool {
	cfg.applyDefaults()
	p := &Pool{
		cfg:      cfg,
		launcher: launcher,
		gateway:  NewGateway(cfg.GatewayPort, log),
		logger:   log,
		sessions: make(map[string]*Session),
		slots:    make([]bool, cfg.MaxSessions),
	}
	for i := 0; i < cfg.MaxSessions; i++ {
		p.clearStaleLocks(cfg.DisplayBase + i)
	}
	return p
}

// clearStaleLocks removes leftover X server artifacts for a display number.
// Best effort; a missing file is the normal case.
func (p *Pool) clearStaleLocks(displayNum int) {
	_ = os.Remove(fmt.Sprintf("/tmp/.X%d-lock", displayNum))
	_ = os.Remove(fmt.Sprintf("/tmp/.X11-unix/X%d", displayNum))
}

// Reserve allocates a free slot and starts a virtual display on it. The
// framebuffer server is not started; call Activate when a human needs to
// see the display.
func (p *Pool) Reserve(ctx context.Context, ownerID uint) (*Session, error) {
	p.mu.Lock()
	slot := -1
	for i, taken := range p.slots {
		if !taken {
			slot = i
			break
		}
	}
	if slot == -1 {
		p.mu.Unlock()
		return nil, ErrNoFreeSlot
	}
	p.slots[slot] = true
	p.mu.Unlock()

	displayNum := p.cfg.DisplayBase + slot
	xvfb, err := p.startDisplay(ctx, displayNum)
	if err != nil {
		p.mu.Lock()
		p.slots[slot] = false
		p.mu.Unlock()
		return nil, err
	}

	session := &Session{
		ID:            uuid.New().String(),
		OwnerID:       ownerID,
		Slot:          slot,
		DisplayHandle: fmt.Sprintf(":%d", displayNum),
		VNCPort:       p.cfg.VNCPortBase + slot,
		Status:        StatusReserved,
		resumeCh:      make(chan struct{}),
		xvfb:          xvfb,
	}

	p.mu.Lock()
	p.sessions[session.ID] = session
	p.mu.Unlock()

	p.logger.Info(ctx, "display session reserved", map[string]interface{}{
		"session_id": session.ID,
		"slot":       slot,
		"display":    session.DisplayHandle,
	})
	return session, nil
}

// startDisplay launches Xvfb on the given display number, retrying once
// after clearing stale lock files.
func (p *Pool) startDisplay(ctx context.Context, displayNum int) (Process, error) {
	for attempt := 0; attempt < 2; attempt++ {
		p.clearStaleLocks(displayNum)

		proc, err := p.launcher.Start(ctx, "Xvfb",
			fmt.Sprintf(":%d", displayNum), "-screen", "0", p.cfg.Resolution)
		if err == nil {
			// Xvfb exits almost immediately when the display is
			// unusable, so a short wait catches startup failures.
			time.Sleep(p.cfg.StartupWait)
			if proc.Running() {
				return proc, nil
			}
			proc.Stop(0)
		}

		p.logger.Warn(ctx, "virtual display failed to start", map[string]interface{}{
			"display": displayNum,
			"attempt": attempt + 1,
		})
	}
	return nil, ErrDisplayStartFailed
}

// Activate starts the loopback framebuffer server for a reserved session,
// mints a fresh access token, and routes it through the shared gateway.
// Re-activating an already active session revokes the old token and mints
// a new one.
func (p *Pool) Activate(ctx context.Context, sessionID string) (viewerURL string, wsPort int, err error) {
	if err := p.gateway.EnsureStarted(); err != nil {
		return "", 0, err
	}

	// The check-and-start on the framebuffer process must be atomic, or
	// two concurrent activations of the same session each start one.
	p.mu.Lock()
	session, ok := p.sessions[sessionID]
	if !ok {
		p.mu.Unlock()
		return "", 0, ErrSessionNotFound
	}

	if session.x11vnc == nil || !session.x11vnc.Running() {
		proc, err := p.launcher.Start(ctx, "x11vnc",
			"-display", session.DisplayHandle,
			"-nopw",
			"-listen", "127.0.0.1",
			"-xkb",
			"-forever",
			"-rfbport", fmt.Sprintf("%d", session.VNCPort))
		if err != nil {
			p.mu.Unlock()
			return "", 0, fmt.Errorf("start framebuffer server: %w", err)
		}
		session.x11vnc = proc
	}

	oldToken := session.Token
	token := hex.EncodeToString(securecookie.GenerateRandomKey(32))
	session.Token = token
	session.Status = StatusActive
	vncPort := session.VNCPort
	p.mu.Unlock()

	if oldToken != "" {
		p.gateway.RemoveRoute(oldToken)
	}
	p.gateway.AddRoute(token, vncPort)

	wsPort = p.gateway.Port()
	viewerURL = fmt.Sprintf(
		"http://%s:%d/vnc_lite.html?autoconnect=true&path=websockify%%3Ftoken%%3D%s",
		p.cfg.PublicHost, wsPort, token)

	p.logger.Info(ctx, "display session activated", map[string]interface{}{
		"session_id": sessionID,
		"ws_port":    wsPort,
	})
	return viewerURL, wsPort, nil
}

// Deactivate kills the framebuffer server and revokes the token while
// leaving the virtual display untouched, so automation attached to it
// keeps running.
func (p *Pool) Deactivate(ctx context.Context, sessionID string) error {
	p.mu.Lock()
	session, ok := p.sessions[sessionID]
	if !ok {
		p.mu.Unlock()
		return ErrSessionNotFound
	}
	token := session.Token
	x11vnc := session.x11vnc
	session.Token = ""
	session.x11vnc = nil
	session.Status = StatusReserved
	p.mu.Unlock()

	if token != "" {
		p.gateway.RemoveRoute(token)
	}
	if x11vnc != nil {
		x11vnc.Stop(5 * time.Second)
	}

	p.logger.Info(ctx, "display session deactivated", map[string]interface{}{
		"session_id": sessionID,
	})
	return nil
}

// WaitForResume blocks until the session's resume signal fires or the
// timeout elapses. Returns true on a real resume, false on timeout or an
// unknown session.
func (p *Pool) WaitForResume(ctx context.Context, sessionID string, timeout time.Duration) bool {
	p.mu.Lock()
	session, ok := p.sessions[sessionID]
	p.mu.Unlock()
	if !ok {
		return false
	}

	select {
	case <-session.resumeCh:
		return true
	case <-time.After(timeout):
		return false
	case <-ctx.Done():
		return false
	}
}

// Resume fires the session's resume signal. Idempotent.
func (p *Pool) Resume(ctx context.Context, sessionID string, ownerID uint) error {
	p.mu.Lock()
	session, ok := p.sessions[sessionID]
	if !ok {
		p.mu.Unlock()
		return ErrSessionNotFound
	}
	session.Status = StatusResumed
	p.mu.Unlock()

	session.fireResume()

	p.logger.Info(ctx, "display session resumed", map[string]interface{}{
		"session_id": sessionID,
		"owner_id":   ownerID,
	})
	return nil
}

// Stop tears the session fully down and frees its slot. Idempotent on an
// unknown session: returns false instead of an error so every error path
// can call it unconditionally. The resume signal fires so any waiter
// unblocks instead of hanging.
func (p *Pool) Stop(ctx context.Context, sessionID string) bool {
	p.mu.Lock()
	session, ok := p.sessions[sessionID]
	if !ok {
		p.mu.Unlock()
		return false
	}
	delete(p.sessions, sessionID)
	session.Status = StatusStopped
	p.mu.Unlock()

	session.fireResume()

	if session.Token != "" {
		p.gateway.RemoveRoute(session.Token)
	}
	if session.x11vnc != nil {
		session.x11vnc.Stop(5 * time.Second)
	}
	if session.xvfb != nil {
		session.xvfb.Stop(5 * time.Second)
	}
	p.clearStaleLocks(p.cfg.DisplayBase + session.Slot)

	p.mu.Lock()
	p.slots[session.Slot] = false
	p.mu.Unlock()

	p.logger.Info(ctx, "display session stopped", map[string]interface{}{
		"session_id": sessionID,
		"slot":       session.Slot,
	})
	return true
}

// Get returns a session by ID.
func (p *Pool) Get(sessionID string) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	session, ok := p.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// ActiveCount returns the number of occupied slots.
func (p *Pool) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// Cleanup tears down every session and the shared gateway. Used at
// service shutdown.
func (p *Pool) Cleanup(ctx context.Context) {
	p.mu.Lock()
	ids := make([]string, 0, len(p.sessions))
	for id := range p.sessions {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		p.Stop(ctx, id)
	}
	p.gateway.Close()
}
