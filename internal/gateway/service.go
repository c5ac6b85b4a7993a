package gateway

import (
	"context"
	"log/slog"
	"time"

	"ventgate/internal/connector"
	"ventgate/internal/core"
	"ventgate/internal/storage"
)

// DefaultInvokeTimeout ограничивает время одного вызова, если в конфиге не задано иное.
const DefaultInvokeTimeout = 30 * time.Second

const auditWriteTimeout = 2 * time.Second

// Provider источник capability. Реализуется коннектором и фейками в тестах.
type Provider interface {
	Ready() bool
	Invoke(ctx context.Context, req core.CapabilityRequest) (core.CapabilityResult, error)
	ListCapabilities(ctx context.Context) ([]core.Capability, error)
	Snapshot() connector.Snapshot
}

// Health ответ проверки живости.
type Health struct {
	Status         string    `json:"status"`
	ConnectorReady bool      `json:"connectorReady"`
	Timestamp      time.Time `json:"timestamp"`
	State          string    `json:"state"`
}

// Service общий пайплайн validate->filter->ready->invoke->audit.
type Service struct {
	Provider Provider
	Filter   *core.CapabilityFilter
	Timeout  time.Duration
	Audit    storage.InvocationWriter
	Logger   *slog.Logger
}

// Invoke выполняет вызов capability.
// Отмена ctx не прерывает вызов: результат отключившегося клиента просто отбрасывается.
func (s *Service) Invoke(ctx context.Context, requestID string, req core.CapabilityRequest) (core.CapabilityResult, error) {
	start := time.Now()
	res, err := s.invoke(ctx, req)
	s.record(requestID, req.Name, start, err)
	return res, err
}

func (s *Service) invoke(ctx context.Context, req core.CapabilityRequest) (core.CapabilityResult, error) {
	if err := req.Validate(); err != nil {
		return core.CapabilityResult{}, err
	}
	if s.Provider == nil || !s.Provider.Ready() {
		return core.CapabilityResult{}, core.NewError(core.KindConnectorUnavailable, "capability provider is not ready")
	}
	if err := s.Filter.Check(req.Name); err != nil {
		return core.CapabilityResult{}, err
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout())
	defer cancel()
	res, err := s.Provider.Invoke(callCtx, req)
	if err != nil {
		return core.CapabilityResult{}, core.AsError(err)
	}
	return res, nil
}

// Capabilities возвращает список доступных capability с учетом фильтра.
func (s *Service) Capabilities(ctx context.Context) ([]core.Capability, error) {
	if s.Provider == nil || !s.Provider.Ready() {
		return nil, core.NewError(core.KindConnectorUnavailable, "capability provider is not ready")
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()
	caps, err := s.Provider.ListCapabilities(callCtx)
	if err != nil {
		return nil, core.AsError(err)
	}
	return s.Filter.Apply(caps), nil
}

// Health никогда не возвращает ошибку.
func (s *Service) Health(now time.Time) Health {
	h := Health{Status: "degraded", Timestamp: now.UTC(), State: connector.StateUninitialized.String()}
	if s.Provider == nil {
		return h
	}
	snap := s.Provider.Snapshot()
	h.State = snap.State.String()
	h.ConnectorReady = snap.Ready()
	if h.ConnectorReady {
		h.Status = "ok"
	}
	return h
}

// Snapshot возвращает состояние коннектора.
func (s *Service) Snapshot() connector.Snapshot {
	if s.Provider == nil {
		return connector.Snapshot{}
	}
	return s.Provider.Snapshot()
}

func (s *Service) timeout() time.Duration {
	if s.Timeout <= 0 {
		return DefaultInvokeTimeout
	}
	return s.Timeout
}

func (s *Service) record(requestID, name string, start time.Time, err error) {
	elapsed := time.Since(start)
	rec := storage.InvocationRecord{
		RequestID:  requestID,
		Capability: name,
		Status:     "ok",
		DurationMS: elapsed.Milliseconds(),
		TS:         start.UTC(),
	}
	if err != nil {
		rec.Status = "error"
		rec.ErrorKind = string(core.KindOf(err))
	}

	if logger := s.logger(); err != nil {
		logger.Warn("invoke failed", "request_id", requestID, "capability", name, "kind", rec.ErrorKind, "duration_ms", rec.DurationMS, "err", err)
	} else {
		logger.Info("invoke", "request_id", requestID, "capability", name, "duration_ms", rec.DurationMS)
	}

	if s.Audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
	defer cancel()
	if aerr := s.Audit.SaveInvocation(ctx, rec); aerr != nil {
		s.logger().Warn("audit write failed", "request_id", requestID, "err", aerr)
	}
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
