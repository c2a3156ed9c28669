package cli

import (
	"fmt"
	"strings"
	"time"

	"stdiobridge/internal/config"
	"stdiobridge/internal/forward"
	"stdiobridge/internal/procmgr"
	"stdiobridge/internal/supervisor"
	"stdiobridge/pkg/logger"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// RunFlags 覆盖配置文件的运行参数
type RunFlags struct {
	GracePeriod  time.Duration
	DrainTimeout time.Duration
	Mode         string
	Env          []string
	Dir          string
	Shell        bool
	NoInheritEnv bool
	LogFile      string
}

func (f *RunFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.DurationVar(&f.GracePeriod, "grace-period", 0, "time the child gets to exit after a stop request (default from config, 1s)")
	fs.DurationVar(&f.DrainTimeout, "drain-timeout", 0, "time to keep relaying output after the child exits (default from config, 2s)")
	fs.StringVar(&f.Mode, "mode", "", "forwarding unit: raw or line")
	fs.StringArrayVarP(&f.Env, "env", "e", nil, "extra child environment variable KEY=VALUE (repeatable)")
	fs.StringVar(&f.Dir, "dir", "", "child working directory")
	fs.BoolVar(&f.Shell, "shell", false, "run the command through the platform shell")
	fs.BoolVar(&f.NoInheritEnv, "no-inherit-env", false, "start the child with only the configured environment")
	fs.StringVar(&f.LogFile, "log-file", "", "write bridge logs to this file instead of stderr")
}

// apply 将命令行参数合并进配置；位置参数替换 child.command 和 child.args
func (f *RunFlags) apply(cmd *cobra.Command, cfg *config.Config, args []string) {
	fs := cmd.Flags()
	if len(args) > 0 {
		cfg.Child.Command = args[0]
		cfg.Child.Args = append([]string(nil), args[1:]...)
	}
	if fs.Changed("grace-period") {
		cfg.Shutdown.GracePeriod = f.GracePeriod.String()
	}
	if fs.Changed("drain-timeout") {
		cfg.Shutdown.DrainTimeout = f.DrainTimeout.String()
	}
	if fs.Changed("mode") {
		cfg.Forward.Mode = f.Mode
	}
	if len(f.Env) > 0 {
		cfg.Child.Env = append(append([]string(nil), cfg.Child.Env...), f.Env...)
	}
	if fs.Changed("dir") {
		cfg.Child.Dir = f.Dir
	}
	if fs.Changed("shell") {
		cfg.Child.Shell = f.Shell
	}
	if fs.Changed("no-inherit-env") {
		cfg.Child.InheritEnv = !f.NoInheritEnv
	}
}

// buildSupervisorConfig 生成一次运行所需的全部参数
func buildSupervisorConfig(cfg *config.Config, configPath, runID string) (supervisor.Config, error) {
	if err := cfg.Validate(); err != nil {
		return supervisor.Config{}, err
	}
	if strings.TrimSpace(cfg.Child.Command) == "" {
		return supervisor.Config{}, fmt.Errorf("no command: pass one after the flags or set child.command")
	}

	child, err := cfg.Child.Render(config.NewTemplateVars(configPath))
	if err != nil {
		return supervisor.Config{}, err
	}
	env, err := child.EnvMap()
	if err != nil {
		return supervisor.Config{}, err
	}
	mode, err := forward.ParseMode(cfg.Forward.Mode)
	if err != nil {
		return supervisor.Config{}, err
	}

	return supervisor.Config{
		Launch: &procmgr.LaunchConfig{
			Command:      child.Command,
			Args:         child.Args,
			Env:          env,
			InheritEnv:   child.InheritEnv,
			Dir:          child.Dir,
			Shell:        child.Shell,
			Hidden:       child.Hidden,
			ProcessGroup: child.ProcessGroup,
			RunID:        runID,
		},
		Forward: forward.Options{
			Mode:       mode,
			BufferSize: cfg.Forward.BufferSize,
		},
		GracePeriod:  cfg.Shutdown.GetGracePeriod(),
		DrainTimeout: cfg.Shutdown.GetDrainTimeout(),
	}, nil
}

func runBridge(cmd *cobra.Command, args []string, flags *RunFlags) error {
	cliCtx := GetCLIContext(cmd)
	if cliCtx == nil {
		return fmt.Errorf("cli context not initialized")
	}

	// 在副本上合并命令行参数
	cfg := *cliCtx.Config
	cfg.Child.Args = append([]string(nil), cfg.Child.Args...)
	flags.apply(cmd, &cfg, args)

	runID := uuid.NewString()
	supCfg, err := buildSupervisorConfig(&cfg, cliCtx.ConfigPath, runID)
	if err != nil {
		return err
	}

	log := logger.With(map[string]any{"run_id": runID})
	log.Debug().
		Str("command", supCfg.Launch.Command).
		Strs("args", supCfg.Launch.Args).
		Dur("grace_period", supCfg.GracePeriod).
		Str("mode", string(supCfg.Forward.Mode)).
		Msg("starting bridge")

	sup := supervisor.New(supCfg,
		supervisor.WithStdio(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr()),
		supervisor.WithLogger(log),
	)
	if code := sup.Run(cmd.Context()); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}
