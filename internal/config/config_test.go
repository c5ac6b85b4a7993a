package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must be valid: %v", err)
	}
	if cfg.Audit.Enabled {
		t.Fatalf("audit must be disabled by default")
	}
	if cfg.InvokeTimeout() != 30*time.Second {
		t.Fatalf("unexpected invoke timeout: %s", cfg.InvokeTimeout())
	}
}

func TestLoadYAMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ventgate.yaml")
	data := []byte(`
runtime:
  command: /usr/local/bin/ventai-tools
  args: ["--quiet"]
web:
  listen_addr: 0.0.0.0:9090
gateway:
  expose: [list_ai_providers]
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := load(path, envMap(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Runtime.Command != "/usr/local/bin/ventai-tools" || len(cfg.Runtime.Args) != 1 {
		t.Fatalf("unexpected runtime: %+v", cfg.Runtime)
	}
	if cfg.Web.ListenAddr != "0.0.0.0:9090" {
		t.Fatalf("unexpected listen addr: %s", cfg.Web.ListenAddr)
	}
	if cfg.Web.MaxBodyBytes != 1<<20 {
		t.Fatalf("defaults must survive partial yaml")
	}
	if len(cfg.Gateway.Expose) != 1 || cfg.Gateway.Expose[0] != "list_ai_providers" {
		t.Fatalf("unexpected expose: %v", cfg.Gateway.Expose)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := load(path, envMap(nil)); err == nil {
		t.Fatalf("expected error for empty config")
	}
}

func TestEnvOverrides(t *testing.T) {
	cfg, err := load("", envMap(map[string]string{
		"PORT":                     "3001",
		"VENTGATE_RUNTIME_COMMAND": "python3 -m ventai_tools",
		"VENTGATE_INVOKE_TIMEOUT":  "45s",
		"VENTGATE_AUDIT_ENABLED":   "true",
		"LOG_LEVEL":                "DEBUG",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Web.ListenAddr != "127.0.0.1:3001" {
		t.Fatalf("unexpected listen addr: %s", cfg.Web.ListenAddr)
	}
	if cfg.Runtime.Command != "python3" || len(cfg.Runtime.Args) != 2 || cfg.Runtime.Args[1] != "ventai_tools" {
		t.Fatalf("unexpected runtime: %+v", cfg.Runtime)
	}
	if cfg.InvokeTimeout() != 45*time.Second {
		t.Fatalf("unexpected invoke timeout: %s", cfg.InvokeTimeout())
	}
	if !cfg.Audit.Enabled || cfg.Log.Level != "debug" {
		t.Fatalf("unexpected audit/log: %+v %+v", cfg.Audit, cfg.Log)
	}
}

func TestEnvInvokeTimeoutMillis(t *testing.T) {
	cfg, err := load("", envMap(map[string]string{"VENTGATE_INVOKE_TIMEOUT": "1500"}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.InvokeTimeout() != 1500*time.Millisecond {
		t.Fatalf("unexpected invoke timeout: %s", cfg.InvokeTimeout())
	}
}

func TestEnvInvalidValues(t *testing.T) {
	if _, err := load("", envMap(map[string]string{"PORT": "http"})); err == nil {
		t.Fatalf("expected error for bad PORT")
	}
	if _, err := load("", envMap(map[string]string{"VENTGATE_INVOKE_TIMEOUT": "soon"})); err == nil {
		t.Fatalf("expected error for bad timeout")
	}
}

func TestValidateRejects(t *testing.T) {
	cfg := Default()
	cfg.Runtime.Command = ""
	cfg.Log.Level = "loud"
	cfg.Audit.Enabled = true
	cfg.Audit.SQLitePath = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestRuntimeEnvHoldsOnlyOverrides(t *testing.T) {
	cfg := Default()
	if env := cfg.RuntimeEnv(); env != nil {
		t.Fatalf("expected no overrides, got %v", env)
	}
	cfg.Runtime.Env = map[string]string{"OPENAI_API_KEY": "sk-test", "ANTHROPIC_API_KEY": "ak-test"}
	env := cfg.RuntimeEnv()
	if len(env) != 2 || env[0] != "ANTHROPIC_API_KEY=ak-test" || env[1] != "OPENAI_API_KEY=sk-test" {
		t.Fatalf("unexpected runtime env: %v", env)
	}
}
