// Package procmgr launches the supervised child process and owns its handle.
package procmgr

import (
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"stdiobridge/pkg/logger"
)

// Environment variables exported to every child.
const (
	EnvRunID     = "STDIOBRIDGE_RUN_ID"
	EnvParentPID = "STDIOBRIDGE_PARENT_PID"
)

// LaunchConfig defines how the child process is started.
type LaunchConfig struct {
	// Command is the executable path or name looked up in PATH
	Command string

	// Args are command line arguments
	Args []string

	// Env overlays (or, without InheritEnv, replaces) the supervisor's environment
	Env map[string]string

	// InheritEnv starts the child from the supervisor's own environment
	InheritEnv bool

	// Dir is the working directory, empty means the supervisor's
	Dir string

	// Shell runs Command and Args through the platform shell
	Shell bool

	// Hidden suppresses the console window on Windows
	Hidden bool

	// ProcessGroup places the child in its own process group on Unix so
	// stop signals reach the whole tree
	ProcessGroup bool

	// RunID is exported to the child as STDIOBRIDGE_RUN_ID
	RunID string
}

// Launch starts the child with three dedicated pipes.
// Any failure is returned as a *SpawnError and leaves no pipe open.
func Launch(cfg *LaunchConfig) (*Child, error) {
	if cfg == nil || strings.TrimSpace(cfg.Command) == "" {
		return nil, &SpawnError{Err: ErrNoCommand}
	}

	name, args := cfg.Command, cfg.Args
	if cfg.Shell {
		name, args = shellCommand(joinCommandLine(cfg.Command, cfg.Args))
	}

	cmd := exec.Command(name, args...) // #nosec G204 -- the command is the operator's configuration
	cmd.Env = buildEnv(cfg)
	if cfg.Dir != "" {
		cmd.Dir = cfg.Dir
	}

	configurePlatformProcess(cmd, cfg)

	p, err := newPipes()
	if err != nil {
		return nil, &SpawnError{Command: cfg.Command, Err: err}
	}
	cmd.Stdin = p.stdinR
	cmd.Stdout = p.stdoutW
	cmd.Stderr = p.stderrW

	if err := cmd.Start(); err != nil {
		p.closeAll()
		return nil, &SpawnError{Command: cfg.Command, Err: err}
	}

	// The child holds its own copies now.
	p.closeChildEnds()

	c := newChild(cmd, cfg.ProcessGroup, p.stdinW, p.stdoutR, p.stderrR)
	logger.Debug().
		Str("command", cfg.Command).
		Strs("args", cfg.Args).
		Int("pid", c.Pid()).
		Msg("started child process")

	return c, nil
}

// buildEnv merges the inherited environment with the configured overlay.
// The result is sorted so the child sees a stable ordering.
func buildEnv(cfg *LaunchConfig) []string {
	env := make(map[string]string)
	if cfg.InheritEnv {
		for _, kv := range os.Environ() {
			if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
				env[k] = v
			}
		}
	}
	for k, v := range cfg.Env {
		env[k] = v
	}
	if cfg.RunID != "" {
		env[EnvRunID] = cfg.RunID
	}
	env[EnvParentPID] = strconv.Itoa(os.Getpid())

	out := lo.MapToSlice(env, func(k, v string) string { return k + "=" + v })
	sort.Strings(out)
	return out
}

// joinCommandLine builds a single shell line, quoting arguments that need it.
func joinCommandLine(command string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, command)
	for _, a := range args {
		parts = append(parts, quoteArg(a))
	}
	return strings.Join(parts, " ")
}

type pipes struct {
	stdinR, stdinW   *os.File
	stdoutR, stdoutW *os.File
	stderrR, stderrW *os.File
}

func newPipes() (*pipes, error) {
	p := &pipes{}
	var err error
	if p.stdinR, p.stdinW, err = os.Pipe(); err != nil {
		return nil, err
	}
	if p.stdoutR, p.stdoutW, err = os.Pipe(); err != nil {
		p.closeAll()
		return nil, err
	}
	if p.stderrR, p.stderrW, err = os.Pipe(); err != nil {
		p.closeAll()
		return nil, err
	}
	return p, nil
}

func (p *pipes) closeChildEnds() {
	closeFiles(p.stdinR, p.stdoutW, p.stderrW)
}

func (p *pipes) closeAll() {
	closeFiles(p.stdinR, p.stdinW, p.stdoutR, p.stdoutW, p.stderrR, p.stderrW)
}

func closeFiles(files ...*os.File) {
	for _, f := range files {
		if f != nil {
			_ = f.Close()
		}
	}
}
