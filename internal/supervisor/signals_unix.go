//go:build !windows

package supervisor

import (
	"os/signal"
	"syscall"
)

// ignoreBrokenPipe makes a closed stdout or stderr a write error for the
// affected pump instead of a fatal SIGPIPE for the whole supervisor.
func ignoreBrokenPipe() {
	signal.Ignore(syscall.SIGPIPE)
}
