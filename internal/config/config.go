package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix 环境变量前缀，例如 STDIOBRIDGE_SHUTDOWN_GRACE_PERIOD
const EnvPrefix = "STDIOBRIDGE"

// Config 是应用配置的根结构体
type Config struct {
	Child    ChildConfig    `mapstructure:"child" yaml:"child"`
	Forward  ForwardConfig  `mapstructure:"forward" yaml:"forward"`
	Shutdown ShutdownConfig `mapstructure:"shutdown" yaml:"shutdown"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// ChildConfig 子进程配置
type ChildConfig struct {
	Command      string   `mapstructure:"command" yaml:"command"`
	Args         []string `mapstructure:"args" yaml:"args"`
	Env          []string `mapstructure:"env" yaml:"env"` // KEY=VALUE，列表形式以保留大小写
	InheritEnv   bool     `mapstructure:"inherit_env" yaml:"inherit_env"`
	Dir          string   `mapstructure:"dir" yaml:"dir"`
	Shell        bool     `mapstructure:"shell" yaml:"shell"`
	Hidden       bool     `mapstructure:"hidden" yaml:"hidden"`               // Windows: 不创建控制台窗口
	ProcessGroup bool     `mapstructure:"process_group" yaml:"process_group"` // Unix: 独立进程组
}

// EnvMap 解析 KEY=VALUE 列表
func (c *ChildConfig) EnvMap() (map[string]string, error) {
	env := make(map[string]string, len(c.Env))
	for _, kv := range c.Env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid env entry %q, want KEY=VALUE", kv)
		}
		env[k] = v
	}
	return env, nil
}

// ForwardConfig 转发配置
type ForwardConfig struct {
	Mode       string `mapstructure:"mode" yaml:"mode"`               // raw, line
	BufferSize int    `mapstructure:"buffer_size" yaml:"buffer_size"` // 单次读取的缓冲区大小
}

// ShutdownConfig 关闭流程配置
type ShutdownConfig struct {
	GracePeriod  string `mapstructure:"grace_period" yaml:"grace_period"`
	DrainTimeout string `mapstructure:"drain_timeout" yaml:"drain_timeout"`
}

// GetGracePeriod 解析 GracePeriod，默认 1 秒
func (c *ShutdownConfig) GetGracePeriod() time.Duration {
	return parseDuration(c.GracePeriod, time.Second)
}

// GetDrainTimeout 解析 DrainTimeout，默认 2 秒；负值表示不等待
func (c *ShutdownConfig) GetDrainTimeout() time.Duration {
	return parseDuration(c.DrainTimeout, 2*time.Second)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

// Validate 检查配置合法性
func (c *Config) Validate() error {
	var errs []error

	switch c.Forward.Mode {
	case "", "raw", "line":
	default:
		errs = append(errs, fmt.Errorf("forward.mode: unknown mode %q (want raw or line)", c.Forward.Mode))
	}
	if c.Forward.BufferSize < 0 {
		errs = append(errs, fmt.Errorf("forward.buffer_size: must not be negative, got %d", c.Forward.BufferSize))
	}
	if c.Shutdown.GracePeriod != "" {
		if d, err := time.ParseDuration(c.Shutdown.GracePeriod); err != nil {
			errs = append(errs, fmt.Errorf("shutdown.grace_period: %w", err))
		} else if d <= 0 {
			errs = append(errs, fmt.Errorf("shutdown.grace_period: must be positive, got %s", d))
		}
	}
	if c.Shutdown.DrainTimeout != "" {
		if _, err := time.ParseDuration(c.Shutdown.DrainTimeout); err != nil {
			errs = append(errs, fmt.Errorf("shutdown.drain_timeout: %w", err))
		}
	}
	if _, err := c.Child.EnvMap(); err != nil {
		errs = append(errs, fmt.Errorf("child.env: %w", err))
	}

	return errors.Join(errs...)
}

var (
	globalConfig *Config
	configPath   string
	mu           sync.RWMutex
)

// Load 加载配置文件
// 优先级: ENV > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	// 设置默认值
	SetDefaults()

	// 设置环境变量前缀
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 如果提供了配置路径，则加载配置文件
	if path != "" {
		expandedPath, err := ExpandPath(path)
		if err != nil {
			return nil, err
		}
		configPath = expandedPath

		viper.SetConfigFile(expandedPath)
		if err := viper.ReadInConfig(); err != nil {
			// 忽略文件不存在错误
			var pathErr *os.PathError
			if !errors.As(err, &pathErr) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", expandedPath, err)
			}
		}
	}

	// 反序列化到结构体
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// GetConfig 获取当前配置
func GetConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return globalConfig
}

// Path 返回最近一次 Load 使用的配置文件路径
func Path() string {
	mu.RLock()
	defer mu.RUnlock()
	return configPath
}

// Get 获取任意配置键值
func Get(key string) any {
	return viper.Get(key)
}

// AllSettings 返回合并后的全部配置
func AllSettings() map[string]any {
	return viper.AllSettings()
}

// SaveTo 保存配置到指定路径
func SaveTo(cfg *Config, path string) error {
	// 确保目录存在
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// 序列化为 YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// 写入文件
	return os.WriteFile(path, data, 0600) // env 中可能含有 token
}

// Reset 重置配置（主要用于测试）
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	globalConfig = nil
	configPath = ""
	viper.Reset()
}
