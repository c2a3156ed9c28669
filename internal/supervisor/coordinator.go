package supervisor

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// State is the coordinator's position in the shutdown sequence.
type State int32

const (
	StateRunning State = iota
	StateTerminating
	StateDone
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateTerminating:
		return "terminating"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// killWait bounds how long we wait for the kernel to reap a killed child.
const killWait = time.Second

// Stoppable is the part of the child handle the coordinator needs.
type Stoppable interface {
	Alive() bool
	Done() <-chan struct{}
	Terminate() error
	Kill() error
}

// Coordinator turns termination requests into exactly one
// graceful-then-forced stop of the child.
type Coordinator struct {
	child Stoppable
	grace time.Duration
	log   *zerolog.Logger

	state       atomic.Int32
	terminating chan struct{}
	done        chan struct{}
	doneOnce    sync.Once
	forced      atomic.Bool
}

// NewCoordinator creates a coordinator in StateRunning.
func NewCoordinator(child Stoppable, grace time.Duration, log *zerolog.Logger) *Coordinator {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Coordinator{
		child:       child,
		grace:       grace,
		log:         log,
		terminating: make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// State returns the current state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Terminating is closed when a termination request has been accepted.
func (c *Coordinator) Terminating() <-chan struct{} {
	return c.terminating
}

// Done is closed when the coordinator reaches StateDone, either after a
// shutdown sequence or through Finish.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Forced reports whether the child had to be killed after the grace period.
func (c *Coordinator) Forced() bool {
	return c.forced.Load()
}

// Watch feeds signals into Request until ctx is done or signals is closed.
func (c *Coordinator) Watch(ctx context.Context, signals <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			c.Request(sig.String())
		}
	}
}

// Request starts the shutdown sequence. It returns false when a sequence is
// already running or finished; such requests are coalesced.
func (c *Coordinator) Request(reason string) bool {
	if !c.state.CompareAndSwap(int32(StateRunning), int32(StateTerminating)) {
		c.log.Debug().Str("reason", reason).Str("state", c.State().String()).
			Msg("shutdown already in progress, ignoring request")
		return false
	}
	close(c.terminating)
	c.log.Info().Str("reason", reason).Msg("shutdown requested")

	go c.terminate()
	return true
}

// Finish moves a still-running coordinator straight to StateDone, after the
// child exited on its own. It returns false if a shutdown sequence won the race.
func (c *Coordinator) Finish() bool {
	if !c.state.CompareAndSwap(int32(StateRunning), int32(StateDone)) {
		return false
	}
	c.markDone()
	return true
}

func (c *Coordinator) terminate() {
	defer func() {
		c.state.Store(int32(StateDone))
		c.markDone()
	}()

	if c.child.Alive() {
		if err := c.child.Terminate(); err != nil {
			c.log.Debug().Err(err).Msg("graceful stop failed")
		}
	}

	timer := time.NewTimer(c.grace)
	defer timer.Stop()

	select {
	case <-c.child.Done():
		c.log.Info().Msg("child stopped")
		return
	case <-timer.C:
	}

	c.forced.Store(true)
	c.log.Warn().Dur("grace_period", c.grace).Msg("child did not stop in time, killing")
	if err := c.child.Kill(); err != nil {
		c.log.Debug().Err(err).Msg("kill failed")
	}

	select {
	case <-c.child.Done():
	case <-time.After(killWait):
		c.log.Warn().Msg("killed child not reaped yet")
	}
}

func (c *Coordinator) markDone() {
	c.doneOnce.Do(func() { close(c.done) })
}
