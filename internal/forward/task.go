// Package forward relays bytes between the supervisor's stdio and the
// child's pipes. Bytes are never interpreted, added or dropped.
package forward

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// Direction identifies one forwarding path.
type Direction string

const (
	// StdinIn relays the supervisor's stdin to the child's stdin.
	StdinIn Direction = "stdin-in"
	// StdoutOut relays the child's stdout to the supervisor's stdout.
	StdoutOut Direction = "stdout-out"
	// StderrOut relays the child's stderr to the supervisor's stderr.
	StderrOut Direction = "stderr-out"
)

// Reason describes why a task stopped.
type Reason string

const (
	ReasonSourceClosed Reason = "source-closed"
	ReasonWriteFailed  Reason = "write-failed"
	ReasonReadFailed   Reason = "read-failed"
	ReasonCancelled    Reason = "cancelled"
	ReasonPanic        Reason = "panic"
)

// Mode selects the unit a task writes per iteration.
type Mode string

const (
	// ModeRaw writes every chunk as soon as it is read.
	ModeRaw Mode = "raw"
	// ModeLine writes one complete line per write. A line longer than the
	// buffer and a trailing partial line at EOF are still delivered.
	ModeLine Mode = "line"
)

// DefaultBufferSize is used when Options.BufferSize is not positive.
const DefaultBufferSize = 32 * 1024

// Options tunes a task.
type Options struct {
	Mode       Mode
	BufferSize int
}

func (o Options) bufferSize() int {
	if o.BufferSize <= 0 {
		return DefaultBufferSize
	}
	return o.BufferSize
}

// ParseMode converts a configuration string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeRaw:
		return ModeRaw, nil
	case ModeLine:
		return ModeLine, nil
	default:
		return "", fmt.Errorf("unknown forward mode %q (want raw or line)", s)
	}
}

// ForwardingError is a failure confined to a single direction.
type ForwardingError struct {
	Direction Direction
	Op        string
	Err       error
}

func (e *ForwardingError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Direction, e.Op, e.Err)
}

func (e *ForwardingError) Unwrap() error { return e.Err }

// Result is reported once by every task.
type Result struct {
	Direction Direction
	Reason    Reason
	Bytes     int64
	Err       error
}

// Task is a one-directional pump from Src to Dst.
type Task struct {
	Direction Direction
	Src       io.Reader
	Dst       io.Writer

	// CloseDst closes Dst when the task ends, so the child sees end of input.
	CloseDst bool

	Options Options
}

type flusher interface {
	Flush() error
}

// Run pumps until the source ends or a write fails.
func (t *Task) Run() Result {
	res := Result{Direction: t.Direction}
	defer func() {
		if t.CloseDst {
			if c, ok := t.Dst.(io.Closer); ok {
				_ = c.Close()
			}
		}
	}()

	var err error
	if t.Options.Mode == ModeLine {
		res.Bytes, err = t.pumpLines()
	} else {
		res.Bytes, err = t.pumpRaw()
	}
	res.Reason, res.Err = t.classify(err)
	return res
}

func (t *Task) pumpRaw() (int64, error) {
	var total int64
	buf := make([]byte, t.Options.bufferSize())
	for {
		n, rerr := t.Src.Read(buf)
		if n > 0 {
			if err := t.write(buf[:n]); err != nil {
				return total, err
			}
			total += int64(n)
		}
		if rerr != nil {
			return total, readErr(rerr)
		}
	}
}

func (t *Task) pumpLines() (int64, error) {
	var total int64
	r := bufio.NewReaderSize(t.Src, t.Options.bufferSize())
	for {
		line, rerr := r.ReadSlice('\n')
		if len(line) > 0 {
			if err := t.write(line); err != nil {
				return total, err
			}
			total += int64(len(line))
		}
		if rerr != nil {
			if errors.Is(rerr, bufio.ErrBufferFull) {
				continue
			}
			return total, readErr(rerr)
		}
	}
}

func (t *Task) write(p []byte) error {
	if _, err := t.Dst.Write(p); err != nil {
		return &ForwardingError{Direction: t.Direction, Op: "write", Err: err}
	}
	if f, ok := t.Dst.(flusher); ok {
		if err := f.Flush(); err != nil {
			return &ForwardingError{Direction: t.Direction, Op: "flush", Err: err}
		}
	}
	return nil
}

type sourceError struct{ err error }

func (e sourceError) Error() string { return e.err.Error() }
func (e sourceError) Unwrap() error { return e.err }

func readErr(err error) error {
	if err == io.EOF {
		return nil
	}
	return sourceError{err}
}

func (t *Task) classify(err error) (Reason, error) {
	if err == nil {
		return ReasonSourceClosed, nil
	}
	var se sourceError
	if errors.As(err, &se) {
		// Our own end of the pipe was closed during shutdown.
		if errors.Is(se.err, os.ErrClosed) {
			return ReasonCancelled, nil
		}
		return ReasonReadFailed, &ForwardingError{Direction: t.Direction, Op: "read", Err: se.err}
	}
	return ReasonWriteFailed, err
}
