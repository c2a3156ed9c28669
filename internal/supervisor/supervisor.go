// Package supervisor runs one child process behind the supervisor's own
// stdio and decides the supervisor's exit code.
package supervisor

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"stdiobridge/internal/forward"
	"stdiobridge/internal/procmgr"
	"stdiobridge/pkg/logger"
)

// Exit codes that do not come from the child.
const (
	ExitSignaled      = 0
	ExitSpawnFailure  = 1
	ExitIndeterminate = 1
)

// Defaults applied when Config leaves a duration unset.
const (
	DefaultGracePeriod  = time.Second
	DefaultDrainTimeout = 2 * time.Second
)

// Config describes one supervised run.
type Config struct {
	Launch  *procmgr.LaunchConfig
	Forward forward.Options

	// GracePeriod is how long a stopped child may take before it is killed.
	GracePeriod time.Duration

	// DrainTimeout bounds how long output is still relayed after the child
	// exits on its own. Negative disables waiting.
	DrainTimeout time.Duration
}

// Supervisor owns the child for the duration of Run.
type Supervisor struct {
	cfg Config

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	signals <-chan os.Signal
	log     *zerolog.Logger
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithStdio replaces the supervisor's real standard streams.
func WithStdio(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(s *Supervisor) {
		s.stdin = stdin
		s.stdout = stdout
		s.stderr = stderr
	}
}

// WithSignals supplies the termination notifications instead of
// subscribing to SIGINT and SIGTERM.
func WithSignals(ch <-chan os.Signal) Option {
	return func(s *Supervisor) {
		s.signals = ch
	}
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l *zerolog.Logger) Option {
	return func(s *Supervisor) {
		s.log = l
	}
}

// New creates a supervisor. Unset durations get their defaults.
func New(cfg Config, opts ...Option) *Supervisor {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}

	s := &Supervisor{
		cfg:    cfg,
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get()
	}
	return s
}

// Run launches the child, relays its stdio and blocks until it is gone.
// The returned value is the supervisor's exit code. Cancelling ctx is
// handled like a termination signal.
func (s *Supervisor) Run(ctx context.Context) int {
	child, err := procmgr.Launch(s.cfg.Launch)
	if err != nil {
		fmt.Fprintf(s.stderr, "Error: %v\n", err)
		s.log.Debug().Err(err).Msg("spawn failed")
		return ExitSpawnFailure
	}
	defer child.Close()

	s.log.Info().Int("pid", child.Pid()).Msg("child started")

	signals := s.signals
	if signals == nil {
		ch := make(chan os.Signal, 2)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(ch)
		ignoreBrokenPipe()
		signals = ch
	}

	coord := NewCoordinator(child, s.cfg.GracePeriod, s.log)
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	go coord.Watch(watchCtx, signals)

	engine := forward.NewStdioEngine(forward.Streams{
		Stdin:       s.stdin,
		Stdout:      s.stdout,
		Stderr:      s.stderr,
		ChildStdin:  child.Stdin(),
		ChildStdout: child.Stdout(),
		ChildStderr: child.Stderr(),
	}, s.cfg.Forward)
	engine.Start()

	return s.wait(ctx, child, engine, coord)
}

func (s *Supervisor) wait(ctx context.Context, child *procmgr.Child, engine *forward.Engine, coord *Coordinator) int {
	select {
	case <-child.Done():
	case <-coord.Terminating():
		return s.signaled(coord)
	case <-ctx.Done():
		coord.Request("context cancelled")
		return s.signaled(coord)
	}

	s.drain(engine, coord)

	if !coord.Finish() {
		return s.signaled(coord)
	}

	if err := child.WaitErr(); err != nil {
		s.log.Warn().Err(err).Msg("waiting for child failed")
	}
	code, ok := child.ExitCode()
	if !ok {
		s.log.Warn().Msg("child exit code unavailable")
		return ExitIndeterminate
	}
	s.log.Info().Int("exit_code", code).Msg("child exited")
	return code
}

// drain lets the output pumps deliver what the child wrote before exiting.
func (s *Supervisor) drain(engine *forward.Engine, coord *Coordinator) {
	if s.cfg.DrainTimeout < 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DrainTimeout)
	defer cancel()

	go func() {
		select {
		case <-coord.Terminating():
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := engine.WaitOutputs(ctx); err != nil {
		s.log.Debug().Err(err).Msg("child output not fully drained")
	}
}

func (s *Supervisor) signaled(coord *Coordinator) int {
	<-coord.Done()
	s.log.Info().Bool("forced", coord.Forced()).Msg("shutdown complete")
	return ExitSignaled
}
