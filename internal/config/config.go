package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

var (
	errEmptyConfig    = errors.New("config file is empty")
	errEmptyRuntime   = errors.New("runtime.command is required")
	errEmptyListen    = errors.New("web.listen_addr is required")
	errBadLogLevel    = errors.New("log.level must be one of debug, info, warn, error")
	errBadLogFormat   = errors.New("log.format must be json or text")
	errBadTimeout     = errors.New("timeouts must be positive")
	errBadBodyLimit   = errors.New("web.max_body_bytes must be positive")
	errBadAuditConfig = errors.New("audit.sqlite_path is required when audit is enabled")
)

// Config описывает параметры шлюза.
type Config struct {
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Runtime struct {
		Command            string            `yaml:"command"`
		Args               []string          `yaml:"args"`
		Env                map[string]string `yaml:"env"`
		Dir                string            `yaml:"dir"`
		HandshakeTimeoutMS int               `yaml:"handshake_timeout_ms"`
		InvokeTimeoutMS    int               `yaml:"invoke_timeout_ms"`
		KillGraceMS        int               `yaml:"kill_grace_ms"`
	} `yaml:"runtime"`
	Web struct {
		ListenAddr       string   `yaml:"listen_addr"`
		ReadTimeoutMS    int      `yaml:"read_timeout_ms"`
		WriteTimeoutMS   int      `yaml:"write_timeout_ms"`
		ShutdownTimeoutS int      `yaml:"shutdown_timeout_s"`
		MaxBodyBytes     int64    `yaml:"max_body_bytes"`
		CORSOrigins      []string `yaml:"cors_origins"`
	} `yaml:"web"`
	Gateway struct {
		Expose []string `yaml:"expose"`
	} `yaml:"gateway"`
	Audit struct {
		Enabled       bool   `yaml:"enabled"`
		SQLitePath    string `yaml:"sqlite_path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"audit"`
	Scheduler struct {
		IntervalSeconds int `yaml:"interval_seconds"`
	} `yaml:"scheduler"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() Config {
	var cfg Config
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.Runtime.Command = "ventai-tools"
	cfg.Runtime.HandshakeTimeoutMS = 10000
	cfg.Runtime.InvokeTimeoutMS = 30000
	cfg.Runtime.KillGraceMS = 3000
	cfg.Web.ListenAddr = "127.0.0.1:8080"
	cfg.Web.ReadTimeoutMS = 5000
	cfg.Web.WriteTimeoutMS = 35000
	cfg.Web.ShutdownTimeoutS = 5
	cfg.Web.MaxBodyBytes = 1 << 20
	cfg.Web.CORSOrigins = []string{"*"}
	cfg.Gateway.Expose = []string{"*"}
	cfg.Audit.SQLitePath = "ventgate.db"
	cfg.Audit.RetentionDays = 30
	cfg.Scheduler.IntervalSeconds = 60
	return cfg
}

// Load читает конфиг из файла YAML поверх значений по умолчанию и применяет переменные окружения.
func Load(path string) (Config, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- путь к конфигу задается доверенным оператором.
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if len(data) == 0 {
			return cfg, errEmptyConfig
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := strings.TrimSpace(getenv("VENTGATE_LISTEN_ADDR")); v != "" {
		cfg.Web.ListenAddr = v
	}
	if v := strings.TrimSpace(getenv("PORT")); v != "" {
		port, err := cast.ToIntE(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("PORT: invalid port %q", v)
		}
		host, _, err := net.SplitHostPort(cfg.Web.ListenAddr)
		if err != nil {
			host = ""
		}
		cfg.Web.ListenAddr = net.JoinHostPort(host, cast.ToString(port))
	}
	if v := strings.TrimSpace(getenv("VENTGATE_RUNTIME_COMMAND")); v != "" {
		fields := strings.Fields(v)
		cfg.Runtime.Command = fields[0]
		cfg.Runtime.Args = fields[1:]
	}
	if v := strings.TrimSpace(getenv("VENTGATE_INVOKE_TIMEOUT")); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("VENTGATE_INVOKE_TIMEOUT: %w", err)
		}
		cfg.Runtime.InvokeTimeoutMS = int(d.Milliseconds())
	}
	if v := strings.TrimSpace(getenv("VENTGATE_AUDIT_ENABLED")); v != "" {
		enabled, err := cast.ToBoolE(v)
		if err != nil {
			return fmt.Errorf("VENTGATE_AUDIT_ENABLED: %w", err)
		}
		cfg.Audit.Enabled = enabled
	}
	if v := strings.TrimSpace(getenv("LOG_LEVEL")); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	return nil
}

// parseDuration принимает "45s"/"1m" или целое число миллисекунд.
func parseDuration(v string) (time.Duration, error) {
	if ms, err := cast.ToInt64E(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return cast.ToDurationE(v)
}

// Validate проверяет, что конфиг пригоден для запуска.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Runtime.Command) == "" {
		errs = append(errs, errEmptyRuntime)
	}
	if strings.TrimSpace(c.Web.ListenAddr) == "" {
		errs = append(errs, errEmptyListen)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, errBadLogLevel)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, errBadLogFormat)
	}
	if c.Runtime.HandshakeTimeoutMS <= 0 || c.Runtime.InvokeTimeoutMS <= 0 || c.Web.ShutdownTimeoutS <= 0 {
		errs = append(errs, errBadTimeout)
	}
	if c.Web.MaxBodyBytes <= 0 {
		errs = append(errs, errBadBodyLimit)
	}
	if c.Audit.Enabled && strings.TrimSpace(c.Audit.SQLitePath) == "" {
		errs = append(errs, errBadAuditConfig)
	}
	return errors.Join(errs...)
}

// InvokeTimeout таймаут одного вызова capability.
func (c Config) InvokeTimeout() time.Duration {
	return time.Duration(c.Runtime.InvokeTimeoutMS) * time.Millisecond
}

// HandshakeTimeout таймаут MCP handshake.
func (c Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.Runtime.HandshakeTimeoutMS) * time.Millisecond
}

// KillGrace время между закрытием stdin рантайма и его принудительным завершением.
func (c Config) KillGrace() time.Duration {
	return time.Duration(c.Runtime.KillGraceMS) * time.Millisecond
}

// SchedulerInterval интервал периодических задач.
func (c Config) SchedulerInterval() time.Duration {
	return time.Duration(c.Scheduler.IntervalSeconds) * time.Second
}

// RuntimeEnv возвращает переменные рантайма из конфига в формате KEY=VALUE,
// отсортированные по ключу. Окружение процесса добавляет CommandDialer.
func (c Config) RuntimeEnv() []string {
	if len(c.Runtime.Env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(c.Runtime.Env))
	for k := range c.Runtime.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+c.Runtime.Env[k])
	}
	return env
}
