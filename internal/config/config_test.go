package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	Reset()
	defer Reset()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// 验证默认值
	if cfg.Child.Command != "node" {
		t.Errorf("child.command = %q, want node", cfg.Child.Command)
	}
	if !reflect.DeepEqual(cfg.Child.Args, []string{DefaultScript}) {
		t.Errorf("child.args = %v, want [%s]", cfg.Child.Args, DefaultScript)
	}
	if !cfg.Child.InheritEnv {
		t.Error("child.inherit_env = false, want true")
	}
	if !cfg.Child.Hidden {
		t.Error("child.hidden = false, want true")
	}
	if !cfg.Child.ProcessGroup {
		t.Error("child.process_group = false, want true")
	}
	if cfg.Forward.Mode != "raw" {
		t.Errorf("forward.mode = %q, want raw", cfg.Forward.Mode)
	}
	if cfg.Shutdown.GetGracePeriod() != time.Second {
		t.Errorf("grace period = %v, want 1s", cfg.Shutdown.GetGracePeriod())
	}
	if cfg.Log.Level != "error" {
		t.Errorf("log.level = %q, want error", cfg.Log.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoad_FromFile(t *testing.T) {
	Reset()
	defer Reset()

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	// 创建配置文件
	content := `
child:
  command: python3
  args: ["-u", "server.py"]
  env:
    - NODE_ENV=production
    - GITHUB_TOKEN=abc=def
forward:
  mode: line
shutdown:
  grace_period: 3s
log:
  level: debug
  format: json
`
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Child.Command != "python3" {
		t.Errorf("child.command = %q, want python3", cfg.Child.Command)
	}
	if !reflect.DeepEqual(cfg.Child.Args, []string{"-u", "server.py"}) {
		t.Errorf("child.args = %v", cfg.Child.Args)
	}
	env, err := cfg.Child.EnvMap()
	if err != nil {
		t.Fatalf("EnvMap failed: %v", err)
	}
	// 列表形式保留键的大小写，值中的 = 不被截断
	if env["NODE_ENV"] != "production" || env["GITHUB_TOKEN"] != "abc=def" {
		t.Errorf("env = %v", env)
	}
	if cfg.Forward.Mode != "line" {
		t.Errorf("forward.mode = %q, want line", cfg.Forward.Mode)
	}
	if cfg.Shutdown.GetGracePeriod() != 3*time.Second {
		t.Errorf("grace period = %v, want 3s", cfg.Shutdown.GetGracePeriod())
	}

	// 验证未在文件中指定的值使用默认值
	if cfg.Shutdown.GetDrainTimeout() != 2*time.Second {
		t.Errorf("drain timeout = %v, want 2s", cfg.Shutdown.GetDrainTimeout())
	}
	if !cfg.Child.InheritEnv {
		t.Error("child.inherit_env should use default value true")
	}
	if Path() != configFile {
		t.Errorf("Path() = %q, want %q", Path(), configFile)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	Reset()
	defer Reset()

	// 设置环境变量
	t.Setenv("STDIOBRIDGE_SHUTDOWN_GRACE_PERIOD", "500ms")
	t.Setenv("STDIOBRIDGE_LOG_LEVEL", "warn")
	t.Setenv("STDIOBRIDGE_CHILD_SHELL", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Shutdown.GetGracePeriod() != 500*time.Millisecond {
		t.Errorf("grace period = %v, want 500ms", cfg.Shutdown.GetGracePeriod())
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log.level = %q, want warn", cfg.Log.Level)
	}
	if !cfg.Child.Shell {
		t.Error("child.shell = false, want true")
	}
}

func TestLoad_Priority(t *testing.T) {
	Reset()
	defer Reset()

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	content := `
child:
  command: from-file
`
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	t.Setenv("STDIOBRIDGE_CHILD_COMMAND", "from-env")

	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// 验证环境变量优先级高于配置文件
	if cfg.Child.Command != "from-env" {
		t.Errorf("ENV should override file: child.command = %q, want from-env", cfg.Child.Command)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	Reset()
	defer Reset()

	configFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configFile, []byte("child: [unclosed"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(configFile); err == nil {
		t.Error("Load should fail for invalid YAML")
	}
}

func TestLoad_NonexistentFile(t *testing.T) {
	Reset()
	defer Reset()

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load should ignore a missing file: %v", err)
	}
	if cfg.Child.Command != DefaultCommand {
		t.Errorf("child.command = %q, want default", cfg.Child.Command)
	}
}

func TestSaveTo_RoundTrip(t *testing.T) {
	Reset()
	defer Reset()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	want := Default()
	want.Child.Command = "uvx"
	want.Child.Args = []string{"mcp-server-git"}
	want.Child.Env = []string{"GIT_DIR=/repo"}
	want.Shutdown.GracePeriod = "5s"

	if err := SaveTo(want, path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file mode = %o, want 600", perm)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "line mode", mutate: func(c *Config) { c.Forward.Mode = "line" }},
		{name: "bad mode", mutate: func(c *Config) { c.Forward.Mode = "jsonrpc" }, wantErr: "forward.mode"},
		{name: "negative buffer", mutate: func(c *Config) { c.Forward.BufferSize = -1 }, wantErr: "forward.buffer_size"},
		{name: "bad grace", mutate: func(c *Config) { c.Shutdown.GracePeriod = "soon" }, wantErr: "shutdown.grace_period"},
		{name: "zero grace", mutate: func(c *Config) { c.Shutdown.GracePeriod = "0s" }, wantErr: "shutdown.grace_period"},
		{name: "negative drain", mutate: func(c *Config) { c.Shutdown.DrainTimeout = "-1s" }},
		{name: "bad drain", mutate: func(c *Config) { c.Shutdown.DrainTimeout = "later" }, wantErr: "shutdown.drain_timeout"},
		{name: "bad env", mutate: func(c *Config) { c.Child.Env = []string{"NOEQUALS"} }, wantErr: "child.env"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.wantErr)
			}
		})
	}
}

func TestShutdownConfig_InvalidFallsBack(t *testing.T) {
	c := ShutdownConfig{GracePeriod: "nonsense", DrainTimeout: ""}
	if c.GetGracePeriod() != time.Second {
		t.Errorf("GetGracePeriod() = %v, want 1s", c.GetGracePeriod())
	}
	if c.GetDrainTimeout() != 2*time.Second {
		t.Errorf("GetDrainTimeout() = %v, want 2s", c.GetDrainTimeout())
	}
}
