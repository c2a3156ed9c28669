package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// TemplateVars 可在 child.command / child.args / child.dir / child.env 中引用的变量
type TemplateVars struct {
	ExeDir    string // 当前可执行文件所在目录
	ConfigDir string // 配置文件所在目录
	WorkDir   string // 当前工作目录
}

// NewTemplateVars 根据配置文件路径收集模板变量
func NewTemplateVars(cfgPath string) TemplateVars {
	vars := TemplateVars{}
	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		vars.ExeDir = filepath.Dir(exe)
	}
	if cfgPath != "" {
		vars.ConfigDir = filepath.Dir(cfgPath)
	}
	if wd, err := os.Getwd(); err == nil {
		vars.WorkDir = wd
	}
	return vars
}

var templateFuncs = template.FuncMap{
	"env": os.Getenv,
}

// Render 展开单个字符串中的模板
func Render(s string, vars TemplateVars) (string, error) {
	if !strings.Contains(s, "{{") {
		return s, nil
	}
	tmpl, err := template.New("value").Funcs(templateFuncs).Option("missingkey=error").Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse template %q: %w", s, err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, vars); err != nil {
		return "", fmt.Errorf("render template %q: %w", s, err)
	}
	return b.String(), nil
}

// Render 返回模板展开后的子进程配置副本，command 与 dir 还会展开 ~ 前缀
func (c ChildConfig) Render(vars TemplateVars) (ChildConfig, error) {
	out := c
	var err error

	if out.Command, err = renderPath(c.Command, vars); err != nil {
		return ChildConfig{}, err
	}
	if out.Dir, err = renderPath(c.Dir, vars); err != nil {
		return ChildConfig{}, err
	}

	out.Args = make([]string, len(c.Args))
	for i, a := range c.Args {
		if out.Args[i], err = Render(a, vars); err != nil {
			return ChildConfig{}, err
		}
	}

	out.Env = make([]string, len(c.Env))
	for i, kv := range c.Env {
		if out.Env[i], err = Render(kv, vars); err != nil {
			return ChildConfig{}, err
		}
	}

	return out, nil
}

func renderPath(s string, vars TemplateVars) (string, error) {
	r, err := Render(s, vars)
	if err != nil {
		return "", err
	}
	return ExpandPath(r)
}
