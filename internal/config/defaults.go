package config

import (
	"github.com/spf13/viper"
)

// 默认子进程与原始桥接脚本一致：运行可执行文件所在目录下的 dist/index.js
const (
	DefaultCommand = "node"
	DefaultScript  = "{{.ExeDir}}/dist/index.js"
)

// SetDefaults 设置所有配置项的默认值
func SetDefaults() {
	// Child 配置
	viper.SetDefault("child.command", DefaultCommand)
	viper.SetDefault("child.args", []string{DefaultScript})
	viper.SetDefault("child.env", []string{})
	viper.SetDefault("child.inherit_env", true)
	viper.SetDefault("child.dir", "")
	viper.SetDefault("child.shell", false)
	viper.SetDefault("child.hidden", true)
	viper.SetDefault("child.process_group", true)

	// Forward 配置
	viper.SetDefault("forward.mode", "raw")
	viper.SetDefault("forward.buffer_size", 32*1024)

	// Shutdown 配置
	viper.SetDefault("shutdown.grace_period", "1s")
	viper.SetDefault("shutdown.drain_timeout", "2s")

	// Log 配置：默认只输出错误，避免混入子进程的 stderr
	viper.SetDefault("log.level", "error")
	viper.SetDefault("log.format", "auto")
	viper.SetDefault("log.file", "")
}

// Default 返回仅包含默认值的配置
func Default() *Config {
	return &Config{
		Child: ChildConfig{
			Command:      DefaultCommand,
			Args:         []string{DefaultScript},
			Env:          []string{},
			InheritEnv:   true,
			Hidden:       true,
			ProcessGroup: true,
		},
		Forward: ForwardConfig{
			Mode:       "raw",
			BufferSize: 32 * 1024,
		},
		Shutdown: ShutdownConfig{
			GracePeriod:  "1s",
			DrainTimeout: "2s",
		},
		Log: LogConfig{
			Level:  "error",
			Format: "auto",
		},
	}
}
