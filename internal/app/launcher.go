package app

import (
	"context"
	"io"
	"os"

	"ventgate/internal/config"
	"ventgate/internal/transports/cli"
	"ventgate/pkg/logger"
)

// Launcher связывает CLI с приложением: загружает конфиг, строит логгер и App.
type Launcher struct {
	Version string
	// ServeLog вывод логов для serve. По умолчанию stdout.
	ServeLog io.Writer
	// CommandLog вывод логов для разовых команд. По умолчанию stderr, чтобы не смешивать с результатом.
	CommandLog io.Writer
}

// Serve запускает шлюз до отмены контекста.
func (l *Launcher) Serve(ctx context.Context, configPath string) error {
	a, err := l.build(configPath, l.ServeLog, os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Serve(ctx)
}

// Open запускает рантайм без HTTP-транспорта для разовых команд CLI.
func (l *Launcher) Open(ctx context.Context, configPath string) (cli.Session, error) {
	a, err := l.build(configPath, l.CommandLog, os.Stderr)
	if err != nil {
		return nil, err
	}
	if err := a.Connect(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (l *Launcher) build(configPath string, out, fallback io.Writer) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = fallback
	}
	lg := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: out})
	return NewApp(cfg, lg, l.Version)
}
