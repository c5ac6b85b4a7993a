package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ventgate/internal/app"
	"ventgate/internal/transports/cli"
	"ventgate/pkg/logger"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v := buildVersion()
	root := cli.New(&app.Launcher{Version: v}, v)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.New(logger.Options{Format: "text", Output: os.Stderr}).Error("command failed", "err", err)
		stop()
		os.Exit(1)
	}
}

func buildVersion() string {
	v := version
	if commit != "" {
		v += " (" + commit + ")"
	}
	if date != "" {
		v += " " + date
	}
	return v
}
