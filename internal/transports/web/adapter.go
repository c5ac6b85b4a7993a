package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"ventgate/internal/connector"
	"ventgate/internal/core"
	"ventgate/internal/gateway"
	"ventgate/internal/modules/runtime"
	"ventgate/internal/storage"
)

var errAlreadyStarted = errors.New("web transport already started")

// Gateway пайплайн вызовов, который обслуживает HTTP-транспорт.
type Gateway interface {
	Invoke(ctx context.Context, requestID string, req core.CapabilityRequest) (core.CapabilityResult, error)
	Capabilities(ctx context.Context) ([]core.Capability, error)
	Health(now time.Time) gateway.Health
	Snapshot() connector.Snapshot
}

// AuditReader источник записей для /audit.
type AuditReader interface {
	QueryInvocations(ctx context.Context, q storage.InvocationQuery) ([]storage.InvocationRecord, error)
}

// SampleReader источник последнего сохраненного замера рантайма для /runtime.
type SampleReader interface {
	LatestSample(ctx context.Context) (storage.RuntimeSample, error)
}

// StatsFunc собирает статистику процесса рантайма по pid.
type StatsFunc func(ctx context.Context, pid int) (runtime.Stats, error)

// Config определяет параметры HTTP-транспорта.
type Config struct {
	ListenAddr         string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBody     int64
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
}

// Adapter реализует web transport поверх net/http.
type Adapter struct {
	gateway Gateway
	audit   AuditReader
	samples SampleReader
	stats   StatsFunc
	logger  *slog.Logger
	cfg     Config

	corsAny     bool
	corsOrigins map[string]struct{}

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// Option настраивает Adapter.
type Option func(*Adapter)

// WithAudit включает /audit.
func WithAudit(r AuditReader) Option {
	return func(a *Adapter) { a.audit = r }
}

// WithSamples добавляет в /runtime последний замер sampler.
func WithSamples(r SampleReader) Option {
	return func(a *Adapter) { a.samples = r }
}

// WithStats подменяет сбор статистики рантайма.
func WithStats(fn StatsFunc) Option {
	return func(a *Adapter) { a.stats = fn }
}

// WithLogger задает логгер транспорта.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// NewAdapter создает web transport.
func NewAdapter(gw Gateway, cfg Config, opts ...Option) *Adapter {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:8080"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 35 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if cfg.MaxRequestBody <= 0 {
		cfg.MaxRequestBody = 1 << 20
	}
	if len(cfg.CORSAllowedMethods) == 0 {
		cfg.CORSAllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.CORSAllowedHeaders) == 0 {
		cfg.CORSAllowedHeaders = []string{"Content-Type", "X-Request-ID"}
	}

	a := &Adapter{
		gateway:     gw,
		stats:       runtime.Collect,
		cfg:         cfg,
		corsOrigins: make(map[string]struct{}, len(cfg.CORSAllowedOrigins)),
	}
	for _, origin := range cfg.CORSAllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		switch trimmed {
		case "":
			continue
		case "*":
			a.corsAny = true
		default:
			a.corsOrigins[trimmed] = struct{}{}
		}
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.logger = a.logger.With("transport", "web")
	return a
}

func (a *Adapter) Name() string { return "web" }

// Start занимает порт синхронно, обслуживает запросы в фоне и останавливается при отмене контекста.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.server != nil {
		a.mu.Unlock()
		return errAlreadyStarted
	}
	ln, err := net.Listen("tcp", a.cfg.ListenAddr)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	srv := &http.Server{
		Handler:           a.routes(),
		ReadTimeout:       a.cfg.ReadTimeout,
		ReadHeaderTimeout: a.cfg.ReadTimeout,
		WriteTimeout:      a.cfg.WriteTimeout,
		ErrorLog:          slog.NewLogLogger(a.logger.Handler(), slog.LevelWarn),
	}
	a.server = srv
	a.listener = ln
	a.mu.Unlock()

	a.logger.Info("listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		_ = a.Stop(stopCtx)
	}()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server stopped", "err", err)
		}
	}()
	return nil
}

// Addr фактический адрес слушателя или пустая строка до Start.
func (a *Adapter) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Stop завершает HTTP server.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	srv := a.server
	a.server = nil
	a.listener = nil
	a.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

type middleware func(http.Handler) http.Handler

func chain(h http.Handler, mws ...middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func (a *Adapter) routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /health", http.HandlerFunc(a.handleHealth))
	mux.Handle("GET /capabilities", http.HandlerFunc(a.handleCapabilities))
	mux.Handle("POST /invoke", chain(http.HandlerFunc(a.handleInvoke), a.maxBodyMiddleware()))
	mux.Handle("GET /runtime", http.HandlerFunc(a.handleRuntime))
	mux.Handle("GET /audit", http.HandlerFunc(a.handleAudit))

	return chain(mux,
		a.requestIDMiddleware(),
		a.requestLoggingMiddleware(),
		a.recoveryMiddleware(),
		a.corsMiddleware(),
	)
}
