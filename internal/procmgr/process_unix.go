//go:build !windows
// +build !windows

package procmgr

import (
	"errors"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// configurePlatformProcess configures platform-specific process settings
func configurePlatformProcess(cmd *exec.Cmd, cfg *LaunchConfig) {
	// A separate process group lets the stop signal reach grandchildren,
	// e.g. the real server behind a `sh -c` wrapper.
	if cfg.ProcessGroup {
		cmd.SysProcAttr = &syscall.SysProcAttr{
			Setpgid: true,
		}
	}
}

func terminateProcess(c *Child) error {
	return signalChild(c, unix.SIGTERM)
}

func killProcess(c *Child) error {
	return signalChild(c, unix.SIGKILL)
}

func signalChild(c *Child, sig unix.Signal) error {
	if c.group {
		return unix.Kill(-c.pid, sig)
	}
	return c.cmd.Process.Signal(sig)
}

func isProcessGone(err error) bool {
	return errors.Is(err, os.ErrProcessDone) || errors.Is(err, unix.ESRCH)
}

func shellCommand(line string) (string, []string) {
	return "/bin/sh", []string{"-c", line}
}

// quoteArg wraps arguments containing shell metacharacters in single quotes.
func quoteArg(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`&|;<>()*?[]#~!{}") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
