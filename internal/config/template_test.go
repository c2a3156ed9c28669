package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	t.Setenv("STDIOBRIDGE_TEST_TOKEN", "s3cret")
	vars := TemplateVars{ExeDir: "/opt/bridge", ConfigDir: "/etc/bridge", WorkDir: "/work"}

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "plain", want: "plain"},
		{in: "{{.ExeDir}}/dist/index.js", want: "/opt/bridge/dist/index.js"},
		{in: "{{.ConfigDir}}:{{.WorkDir}}", want: "/etc/bridge:/work"},
		{in: `TOKEN={{env "STDIOBRIDGE_TEST_TOKEN"}}`, want: "TOKEN=s3cret"},
		{in: "{{.Missing}}", wantErr: true},
		{in: "{{", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Render(tt.in, vars)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChildConfigRender(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	in := ChildConfig{
		Command: "~/bin/node",
		Args:    []string{"{{.ExeDir}}/dist/index.js", "--stdio"},
		Env:     []string{"ROOT={{.ConfigDir}}"},
		Dir:     "{{.WorkDir}}",
	}
	out, err := in.Render(TemplateVars{ExeDir: "/opt/b", ConfigDir: "/etc/b", WorkDir: "/w"})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "bin/node"), out.Command)
	assert.Equal(t, []string{"/opt/b/dist/index.js", "--stdio"}, out.Args)
	assert.Equal(t, []string{"ROOT=/etc/b"}, out.Env)
	assert.Equal(t, "/w", out.Dir)

	// 原配置不被修改
	assert.Equal(t, "{{.ExeDir}}/dist/index.js", in.Args[0])
}

func TestNewTemplateVars(t *testing.T) {
	vars := NewTemplateVars("/etc/bridge/config.yaml")
	assert.Equal(t, "/etc/bridge", vars.ConfigDir)
	assert.NotEmpty(t, vars.ExeDir)
	assert.NotEmpty(t, vars.WorkDir)
}
