package cli

import (
	"context"
	"os"

	"stdiobridge/internal/config"
	"stdiobridge/pkg/logger"

	"github.com/spf13/cobra"
)

// GlobalFlags 全局标志
type GlobalFlags struct {
	ConfigPath string
	Verbose    bool
	Quiet      bool
}

// contextKey CLI 上下文键
type contextKey struct{}

// NewRootCmd 创建根命令；根命令本身即运行桥接
func NewRootCmd() *cobra.Command {
	var globalFlags GlobalFlags
	var runFlags RunFlags

	rootCmd := &cobra.Command{
		Use:   "stdiobridge [flags] [--] [command [args...]]",
		Short: "stdiobridge - stdio supervisor for a single child process",
		Long: `stdiobridge launches one long-running child process, relays its
stdin, stdout and stderr byte-for-byte, and stops the child cleanly
when the bridge receives SIGINT or SIGTERM.

Without a command the child configured in the config file is used.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// 跳过 version 和 help 命令的初始化
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}

			// 确定配置路径
			configPath := globalFlags.ConfigPath
			if configPath == "" {
				var err error
				configPath, err = config.DefaultConfigPath()
				if err != nil {
					return err
				}
			}

			// 加载配置
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			// 初始化 Logger
			logLevel := cfg.Log.Level
			if globalFlags.Verbose {
				logLevel = "debug"
			}
			if globalFlags.Quiet {
				logLevel = "off"
			}
			logFile := cfg.Log.File
			if runFlags.LogFile != "" {
				logFile = runFlags.LogFile
			}
			if logFile, err = config.ExpandPath(logFile); err != nil {
				return err
			}

			if err := logger.Init(logger.LogConfig{
				Level:  logLevel,
				Format: cfg.Log.Format,
				File:   logFile,
				Output: cmd.ErrOrStderr(),
			}); err != nil {
				return err
			}

			// 创建 CLI 上下文
			cliCtx := NewCLIContext(cfg, configPath, logger.Get(), globalFlags.Verbose, globalFlags.Quiet)
			cmd.SetContext(context.WithValue(cmd.Context(), contextKey{}, cliCtx))

			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			// 关闭资源
			cliCtx := GetCLIContext(cmd)
			if cliCtx != nil {
				return cliCtx.Close()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBridge(cmd, args, &runFlags)
		},
	}

	// 第一个位置参数之后的内容全部属于子进程
	rootCmd.Flags().SetInterspersed(false)

	// 添加全局标志
	rootCmd.PersistentFlags().StringVarP(&globalFlags.ConfigPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Quiet, "quiet", "q", false, "quiet mode")

	runFlags.register(rootCmd)

	// 添加子命令
	rootCmd.AddCommand(NewVersionCmd())
	rootCmd.AddCommand(NewConfigCmd())

	return rootCmd
}

// GetCLIContext 从命令上下文获取 CLI 上下文
func GetCLIContext(cmd *cobra.Command) *CLIContext {
	ctx := cmd.Context()
	if ctx == nil {
		return nil
	}
	cliCtx, ok := ctx.Value(contextKey{}).(*CLIContext)
	if !ok {
		return nil
	}
	return cliCtx
}

// Execute 运行根命令并返回进程退出码
func Execute() int {
	rootCmd := NewRootCmd()
	err := rootCmd.ExecuteContext(context.Background())
	_ = logger.Close()
	return exitCode(err, os.Stderr)
}
