package display

import (
	"context"
	"os/exec"
	"syscall"
	"time"
)

// Process is a handle to a started helper process.
type Process interface {
	// Running reports whether the process is still alive.
	Running() bool
	// Stop terminates the process, escalating to a kill if it does not
	// exit within the grace period. Errors are swallowed; teardown must
	// never fail the caller.
	Stop(grace time.Duration)
}

// Launcher starts display helper processes. An interface so tests can run
// without Xvfb or x11vnc installed.
type Launcher interface {
	Start(ctx context.Context, name string, args ...string) (Process, error)
}

// ExecLauncher starts real OS processes.
type ExecLauncher struct{}

func NewExecLauncher() *ExecLauncher {
	return &ExecLauncher{}
}

func (l *ExecLauncher) Start(ctx context.Context, name string, args ...string) (Process, error) {
	cmd := exec.Command(name, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &execProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
}

func (p *execProcess) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *execProcess) Stop(grace time.Duration) {
	if !p.Running() {
		return
	}
	_ = p.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-p.done:
	case <-time.After(grace):
		_ = p.cmd.Process.Kill()
		<-p.done
	}
}
