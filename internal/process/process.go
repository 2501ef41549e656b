package process

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Process is one launched child. The launcher reaps it in the background so an early
// exit is observable through Done while the launcher lives; a detached child keeps
// running after the launcher exits.
type Process struct {
	spec   Spec
	mu     sync.Mutex
	status Status
	done   chan struct{}
}

func New(spec Spec) *Process { return &Process{spec: spec} }

// Start launches the process with stdio bound to the null device.
func (r *Process) Start() error {
	null, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", os.DevNull, err)
	}
	cmd := r.spec.BuildCommand()
	cmd.Stdin = null
	cmd.Stdout = null
	cmd.Stderr = null
	if err := cmd.Start(); err != nil {
		_ = null.Close()
		return fmt.Errorf("start %s: %w", r.spec.Path, err)
	}
	// the child holds its own copies of the descriptor
	_ = null.Close()

	done := make(chan struct{})
	r.mu.Lock()
	r.done = done
	r.status = Status{Name: r.spec.Name, Running: true, PID: cmd.Process.Pid, StartedAt: time.Now()}
	r.mu.Unlock()

	go func() {
		err := cmd.Wait()
		r.mu.Lock()
		r.status.Running = false
		r.status.StoppedAt = time.Now()
		r.status.ExitErr = err
		r.mu.Unlock()
		close(done)
	}()
	return nil
}

// PID returns the pid of the started process, or 0 before Start.
func (r *Process) PID() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status.PID
}

// Done is closed once the process has exited. It is nil before Start.
func (r *Process) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

func (r *Process) Snapshot() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}
