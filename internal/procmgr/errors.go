package procmgr

import (
	"errors"
	"fmt"
)

// ErrNoCommand is returned by Launch when the configuration names no executable.
var ErrNoCommand = errors.New("no command configured")

// SpawnError reports that the child process could not be created.
// It is the only error kind that is fatal to the supervisor.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start process %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// TerminationError reports a failed graceful-stop or kill request.
// Callers are expected to log and drop it: the desired end state is
// "child not running" either way.
type TerminationError struct {
	Pid int
	Op  string
	Err error
}

func (e *TerminationError) Error() string {
	return fmt.Sprintf("%s process %d: %v", e.Op, e.Pid, e.Err)
}

func (e *TerminationError) Unwrap() error { return e.Err }
