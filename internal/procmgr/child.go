package procmgr

import (
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
)

// Child is the handle of a running child process. It is safe for concurrent
// use: the lifecycle controller waits on it while the signal coordinator may
// stop or kill it at any time.
type Child struct {
	cmd   *exec.Cmd
	pid   int
	group bool

	stdin  *os.File
	stdout *os.File
	stderr *os.File

	mu      sync.Mutex
	exited  bool
	state   *os.ProcessState
	waitErr error
	done    chan struct{}
}

func newChild(cmd *exec.Cmd, group bool, stdin, stdout, stderr *os.File) *Child {
	c := &Child{
		cmd:    cmd,
		pid:    cmd.Process.Pid,
		group:  group,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		done:   make(chan struct{}),
	}
	go c.reap()
	return c
}

// reap is the only caller of cmd.Wait, so the exit status is observed once.
func (c *Child) reap() {
	err := c.cmd.Wait()

	c.mu.Lock()
	c.exited = true
	c.state = c.cmd.ProcessState
	if _, ok := err.(*exec.ExitError); !ok {
		c.waitErr = err
	}
	c.mu.Unlock()

	close(c.done)
}

// Pid returns the process identifier.
func (c *Child) Pid() int { return c.pid }

// Stdin returns the write end of the child's standard input.
func (c *Child) Stdin() io.WriteCloser { return c.stdin }

// Stdout returns the read end of the child's standard output.
func (c *Child) Stdout() io.Reader { return c.stdout }

// Stderr returns the read end of the child's standard error.
func (c *Child) Stderr() io.Reader { return c.stderr }

// Done is closed once the exit status has been recorded.
func (c *Child) Done() <-chan struct{} { return c.done }

// Alive reports whether the child has not been reaped yet.
func (c *Child) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.exited
}

// ExitCode returns the child's exit code. ok is false while the child is
// running, or when no code exists (e.g. it was terminated by a signal).
func (c *Child) ExitCode() (code int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.exited || c.state == nil {
		return 0, false
	}
	code = c.state.ExitCode()
	return code, code >= 0
}

// WaitErr returns the error from reaping that was not a plain non-zero exit.
func (c *Child) WaitErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waitErr
}

// Wait blocks until the child exits or ctx is done.
func (c *Child) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Terminate asks the child to stop voluntarily. It is a no-op for a child
// that has already exited.
func (c *Child) Terminate() error {
	return c.signal("terminate", terminateProcess)
}

// Kill stops the child immediately. It is a no-op for a child that has
// already exited.
func (c *Child) Kill() error {
	return c.signal("kill", killProcess)
}

func (c *Child) signal(op string, fn func(*Child) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Holding mu keeps reap from recording the exit in between, but the
	// process may still be gone already; treat that as success.
	if c.exited {
		return nil
	}
	if err := fn(c); err != nil {
		if isProcessGone(err) {
			return nil
		}
		return &TerminationError{Pid: c.pid, Op: op, Err: err}
	}
	return nil
}

// Close releases the supervisor's pipe ends.
func (c *Child) Close() {
	closeFiles(c.stdin, c.stdout, c.stderr)
}
