//go:build windows
// +build windows

package procmgr

import (
	"errors"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"golang.org/x/sys/windows"
)

// configurePlatformProcess configures platform-specific process settings
func configurePlatformProcess(cmd *exec.Cmd, cfg *LaunchConfig) {
	attr := &syscall.SysProcAttr{}
	if cfg.Hidden {
		attr.HideWindow = true
		attr.CreationFlags |= windows.CREATE_NO_WINDOW
	}
	if cfg.ProcessGroup {
		attr.CreationFlags |= windows.CREATE_NEW_PROCESS_GROUP
	}
	cmd.SysProcAttr = attr
}

// Windows has no graceful stop signal for a console-less child, so
// terminate maps to TerminateProcess just like kill.
func terminateProcess(c *Child) error {
	return c.cmd.Process.Kill()
}

func killProcess(c *Child) error {
	return c.cmd.Process.Kill()
}

func isProcessGone(err error) bool {
	return errors.Is(err, os.ErrProcessDone) || errors.Is(err, windows.ERROR_ACCESS_DENIED)
}

func shellCommand(line string) (string, []string) {
	comspec := os.Getenv("COMSPEC")
	if comspec == "" {
		comspec = "cmd.exe"
	}
	return comspec, []string{"/C", line}
}

func quoteArg(s string) string {
	if s == "" {
		return `""`
	}
	if !strings.ContainsAny(s, " \t\"&|<>^") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
