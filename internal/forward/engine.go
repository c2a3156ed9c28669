package forward

import (
	"context"
	"io"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"stdiobridge/pkg/logger"
)

// Engine runs forwarding tasks concurrently. Tasks share nothing but the
// results channel and are never restarted.
type Engine struct {
	tasks   []*Task
	outputs conc.WaitGroup
	results chan Result
}

// NewEngine creates an engine for the given tasks.
func NewEngine(tasks ...*Task) *Engine {
	return &Engine{
		tasks:   tasks,
		results: make(chan Result, len(tasks)),
	}
}

// Streams are the three parent-side and child-side endpoints.
type Streams struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	ChildStdin  io.WriteCloser
	ChildStdout io.Reader
	ChildStderr io.Reader
}

// NewStdioEngine wires the standard three directions.
func NewStdioEngine(s Streams, opts Options) *Engine {
	return NewEngine(
		&Task{Direction: StdinIn, Src: s.Stdin, Dst: s.ChildStdin, CloseDst: true, Options: opts},
		&Task{Direction: StdoutOut, Src: s.ChildStdout, Dst: s.Stdout, Options: opts},
		&Task{Direction: StderrOut, Src: s.ChildStderr, Dst: s.Stderr, Options: opts},
	)
}

// Start launches one goroutine per task.
func (e *Engine) Start() {
	for _, t := range e.tasks {
		t := t
		if t.Direction == StdinIn {
			// Reading the real stdin cannot be interrupted, so nobody waits
			// on this one.
			go e.run(t)
			continue
		}
		e.outputs.Go(func() { e.run(t) })
	}
}

// Results delivers one Result per task as tasks finish.
func (e *Engine) Results() <-chan Result {
	return e.results
}

// WaitOutputs blocks until every task except stdin-in has finished, or ctx
// is done.
func (e *Engine) WaitOutputs(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.outputs.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) run(t *Task) {
	var res Result
	var pc panics.Catcher
	pc.Try(func() { res = t.Run() })
	if r := pc.Recovered(); r != nil {
		res = Result{
			Direction: t.Direction,
			Reason:    ReasonPanic,
			Err:       &ForwardingError{Direction: t.Direction, Op: "pump", Err: r.AsError()},
		}
	}

	ev := logger.Debug()
	if res.Err != nil {
		ev = logger.Warn().Err(res.Err)
	}
	ev.Str("direction", string(res.Direction)).
		Str("reason", string(res.Reason)).
		Int64("bytes", res.Bytes).
		Msg("forwarding task finished")

	e.results <- res
}
