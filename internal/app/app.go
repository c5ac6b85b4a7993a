package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ventgate/internal/config"
	"ventgate/internal/connector"
	"ventgate/internal/core"
	"ventgate/internal/gateway"
	"ventgate/internal/modules/runtime"
	"ventgate/internal/storage"
	"ventgate/internal/storage/sqlite"
	"ventgate/internal/transports/web"
)

const (
	stopTimeout   = 5 * time.Second
	sampleTimeout = 3 * time.Second
)

// App агрегирует зависимости шлюза.
type App struct {
	Config     config.Config
	Logger     *slog.Logger
	Connector  *connector.Connector
	Gateway    *gateway.Service
	Transports *core.TransportManager
	Web        *web.Adapter
	Store      storage.Store
	Version    string
}

// NewApp строит приложение: коннектор, хранилище, шлюз и HTTP-транспорт.
// Рантайм не запускается до Serve или Connect.
func NewApp(cfg config.Config, logger *slog.Logger, version string) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	var st storage.Store
	if cfg.Audit.Enabled {
		s, err := sqlite.Open(cfg.Audit.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		st = s
	}

	dialer := &connector.CommandDialer{
		Command:   cfg.Runtime.Command,
		Args:      cfg.Runtime.Args,
		Env:       cfg.RuntimeEnv(),
		Dir:       cfg.Runtime.Dir,
		KillGrace: cfg.KillGrace(),
		Logger:    logger,
	}
	conn := connector.New(dialer, connector.Options{
		ClientName:       "ventgate",
		ClientVersion:    version,
		HandshakeTimeout: cfg.HandshakeTimeout(),
		Logger:           logger,
	})

	svc := &gateway.Service{
		Provider: conn,
		Filter:   core.NewCapabilityFilter(cfg.Gateway.Expose),
		Timeout:  cfg.InvokeTimeout(),
		Logger:   logger.With("component", "gateway"),
	}
	if st != nil {
		svc.Audit = st
	}

	webOpts := []web.Option{web.WithLogger(logger)}
	if st != nil {
		webOpts = append(webOpts, web.WithAudit(st), web.WithSamples(st))
	}
	webAdapter := web.NewAdapter(svc, web.Config{
		ListenAddr:         cfg.Web.ListenAddr,
		ReadTimeout:        time.Duration(cfg.Web.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout:       time.Duration(cfg.Web.WriteTimeoutMS) * time.Millisecond,
		ShutdownTimeout:    time.Duration(cfg.Web.ShutdownTimeoutS) * time.Second,
		MaxRequestBody:     cfg.Web.MaxBodyBytes,
		CORSAllowedOrigins: cfg.Web.CORSOrigins,
	}, webOpts...)

	transports := core.NewTransportManager()
	if err := transports.Register(webAdapter); err != nil {
		if st != nil {
			_ = st.Close()
		}
		return nil, fmt.Errorf("register web transport: %w", err)
	}

	return &App{
		Config:     cfg,
		Logger:     logger,
		Connector:  conn,
		Gateway:    svc,
		Transports: transports,
		Web:        webAdapter,
		Store:      st,
		Version:    version,
	}, nil
}

// Connect запускает рантайм и выполняет handshake.
func (a *App) Connect(ctx context.Context) error {
	if err := a.Connector.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize connector: %w", err)
	}
	snap := a.Connector.Snapshot()
	a.Logger.Info("capability runtime ready", "server", snap.ServerName, "server_version", snap.ServerVersion, "pid", snap.PID)
	return nil
}

// Serve поднимает рантайм, затем HTTP-транспорт и периодические задачи,
// и блокируется до отмены контекста.
func (a *App) Serve(ctx context.Context) error {
	if err := a.Connect(ctx); err != nil {
		return err
	}
	if err := a.Transports.StartAll(ctx); err != nil {
		return fmt.Errorf("start transports: %w", err)
	}
	a.Logger.Info("ventgate started", "version", a.Version, "listen", a.Config.Web.ListenAddr, "audit", a.Store != nil)

	go a.watchRuntime(ctx)

	sched := core.NewScheduler(a.Config.SchedulerInterval(), a.Logger.With("component", "scheduler"))
	sampler := &runtime.Sampler{Target: a.Connector, Logger: a.Logger.With("component", "sampler")}
	if a.Store != nil {
		sampler.Store = a.Store
	}
	sched.Add("runtime-sample", func(jobCtx context.Context) error {
		runCtx, cancel := context.WithTimeout(jobCtx, sampleTimeout)
		defer cancel()
		return sampler.Run(runCtx)
	})
	if a.Store != nil && a.Config.Audit.RetentionDays > 0 {
		sched.Add("audit-retention", a.pruneJob)
	}
	sched.Start(ctx)

	a.Logger.Info("shutting down")
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	stopErr := a.Transports.StopAll(stopCtx)
	if err := a.Close(); err != nil {
		stopErr = errors.Join(stopErr, err)
	}
	return stopErr
}

func (a *App) watchRuntime(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-a.Connector.Done():
		snap := a.Connector.Snapshot()
		if ctx.Err() == nil {
			a.Logger.Error("capability runtime lost, serving degraded", "reason", snap.Failure)
		}
	}
}

func (a *App) pruneJob(ctx context.Context) error {
	before := time.Now().AddDate(0, 0, -a.Config.Audit.RetentionDays)
	n, err := a.Store.Prune(ctx, before)
	if err != nil {
		return fmt.Errorf("prune audit: %w", err)
	}
	if n > 0 {
		a.Logger.Info("audit pruned", "rows", n, "before", before.UTC().Format(time.RFC3339))
	}
	return nil
}

// Capabilities список capability через шлюз.
func (a *App) Capabilities(ctx context.Context) ([]core.Capability, error) {
	return a.Gateway.Capabilities(ctx)
}

// Invoke вызывает capability через шлюз.
func (a *App) Invoke(ctx context.Context, requestID string, req core.CapabilityRequest) (core.CapabilityResult, error) {
	return a.Gateway.Invoke(ctx, requestID, req)
}

// Close останавливает рантайм и закрывает хранилище.
func (a *App) Close() error {
	var errs []error
	if a.Connector != nil {
		if err := a.Connector.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connector: %w", err))
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
		a.Store = nil
	}
	return errors.Join(errs...)
}
