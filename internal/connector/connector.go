package connector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"ventgate/internal/core"
)

var (
	errChannelClosed = errors.New("capability runtime channel closed")
	errEmptyCommand  = errors.New("runtime command is empty")
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	maxListPages            = 100
	lossGrace               = 500 * time.Millisecond
)

// Options параметры коннектора.
type Options struct {
	ClientName       string
	ClientVersion    string
	HandshakeTimeout time.Duration
	Logger           *slog.Logger
}

// Connector владеет единственным соединением с рантаймом capability.
// Одно MCP-соединение обслуживает все вызовы: транспорт mcp-go
// сопоставляет ответы по JSON-RPC id, запись сериализует Channel.
type Connector struct {
	dialer Dialer
	opts   Options
	logger *slog.Logger

	state atomic.Int32

	mu      sync.Mutex
	client  *client.Client
	channel *Channel
	server  mcp.Implementation
	failure string

	lost     chan struct{}
	lostOnce sync.Once
}

// New создает коннектор в состоянии Uninitialized.
func New(dialer Dialer, opts Options) *Connector {
	if opts.ClientName == "" {
		opts.ClientName = "ventgate"
	}
	if opts.ClientVersion == "" {
		opts.ClientVersion = "dev"
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{
		dialer: dialer,
		opts:   opts,
		logger: logger.With("component", "connector"),
		lost:   make(chan struct{}),
	}
}

// State текущее состояние.
func (c *Connector) State() State { return State(c.state.Load()) }

// Ready сообщает, принимает ли коннектор вызовы.
func (c *Connector) Ready() bool { return c.State() == StateReady }

// Done закрывается при переходе в Failed.
func (c *Connector) Done() <-chan struct{} { return c.lost }

// Snapshot возвращает срез состояния без блокировок на I/O.
func (c *Connector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		State:         c.State(),
		ServerName:    c.server.Name,
		ServerVersion: c.server.Version,
		Failure:       c.failure,
	}
	if c.channel != nil {
		snap.PID = c.channel.PID
	}
	return snap
}

// PID процесса рантайма или 0, если он неизвестен.
func (c *Connector) PID() int { return c.Snapshot().PID }

// Initialize запускает рантайм и выполняет MCP handshake. Одна попытка,
// без повторов; повторный вызов возвращает ConnectorUnavailable.
func (c *Connector) Initialize(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateUninitialized), int32(StateConnecting)) {
		return core.Errorf(core.KindConnectorUnavailable, "connector cannot initialize from state %s", c.State())
	}
	c.logger.Info("connecting to capability runtime")

	ctx, cancel := context.WithTimeout(ctx, c.opts.HandshakeTimeout)
	defer cancel()

	ch, err := c.dialer.Dial(ctx)
	if err != nil {
		return c.fail("dial capability runtime", err)
	}
	c.mu.Lock()
	c.channel = ch
	c.mu.Unlock()
	go c.watch(ch)

	// Транспорт и клиент живут дольше handshake.
	life := context.WithoutCancel(ctx)
	tr := transport.NewIO(ch.Reader, ch.Writer, io.NopCloser(strings.NewReader("")))
	if err := tr.Start(life); err != nil {
		return c.fail("start transport", err)
	}
	cl := client.NewClient(tr)
	c.mu.Lock()
	c.client = cl
	c.mu.Unlock()
	if err := cl.Start(life); err != nil {
		return c.fail("start client", err)
	}

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: c.opts.ClientName, Version: c.opts.ClientVersion}
	req.Params.Capabilities = mcp.ClientCapabilities{}

	var res *mcp.InitializeResult
	err = c.await(ctx, func(ctx context.Context) error {
		r, err := cl.Initialize(ctx, req)
		res = r
		return err
	})
	if err != nil {
		return c.fail("handshake", err)
	}

	c.mu.Lock()
	c.server = res.ServerInfo
	c.mu.Unlock()
	if !c.state.CompareAndSwap(int32(StateConnecting), int32(StateReady)) {
		return c.fail("handshake", errChannelClosed)
	}
	c.logger.Info("connector ready",
		"server", res.ServerInfo.Name,
		"server_version", res.ServerInfo.Version,
		"protocol", res.ProtocolVersion,
		"runtime_pid", ch.PID,
	)
	return nil
}

// Invoke передает вызов рантайму. Без Ready сразу возвращает ConnectorUnavailable.
func (c *Connector) Invoke(ctx context.Context, req core.CapabilityRequest) (core.CapabilityResult, error) {
	cl, err := c.readyClient()
	if err != nil {
		return core.CapabilityResult{}, err
	}

	args := req.Arguments
	if args == nil {
		args = core.Arguments{}
	}
	call := mcp.CallToolRequest{}
	call.Params.Name = req.Name
	call.Params.Arguments = args

	var res *mcp.CallToolResult
	err = c.await(ctx, func(ctx context.Context) error {
		r, err := cl.CallTool(ctx, call)
		res = r
		return err
	})
	if err != nil {
		return core.CapabilityResult{}, c.callError(req.Name, err)
	}
	if res == nil {
		return core.CapabilityResult{}, core.Errorf(core.KindProviderFailure, "capability %q returned no result", req.Name)
	}
	if res.IsError {
		return core.CapabilityResult{}, core.NewError(core.KindProviderFailure, toolErrorMessage(res)).
			WithDetails(map[string]any{"capability": req.Name})
	}
	payload, err := normalizePayload(res)
	if err != nil {
		return core.CapabilityResult{}, core.WrapError(core.KindProviderFailure, "capability result could not be encoded", err)
	}
	return core.CapabilityResult{Payload: payload}, nil
}

// ListCapabilities возвращает объявленные рантаймом capability в его порядке.
func (c *Connector) ListCapabilities(ctx context.Context) ([]core.Capability, error) {
	cl, err := c.readyClient()
	if err != nil {
		return nil, err
	}

	caps := []core.Capability{}
	var cursor mcp.Cursor
	for page := 0; page < maxListPages; page++ {
		req := mcp.ListToolsRequest{}
		req.Params.Cursor = cursor

		var res *mcp.ListToolsResult
		err := c.await(ctx, func(ctx context.Context) error {
			r, err := cl.ListTools(ctx, req)
			res = r
			return err
		})
		if err != nil {
			return nil, c.callError("tools/list", err)
		}
		for _, tool := range res.Tools {
			caps = append(caps, core.Capability{Name: tool.Name, Description: tool.Description})
		}
		if res.NextCursor == "" {
			return caps, nil
		}
		cursor = res.NextCursor
	}
	return nil, core.Errorf(core.KindProviderFailure, "capability listing exceeded %d pages", maxListPages)
}

// Ping проверяет, что рантайм отвечает.
func (c *Connector) Ping(ctx context.Context) error {
	cl, err := c.readyClient()
	if err != nil {
		return err
	}
	if err := c.await(ctx, cl.Ping); err != nil {
		return c.callError("ping", err)
	}
	return nil
}

// Close закрывает канал и останавливает рантайм. Коннектор остается в Failed.
func (c *Connector) Close() error {
	prev := State(c.state.Swap(int32(StateFailed)))
	c.mu.Lock()
	cl, ch := c.client, c.channel
	if c.failure == "" {
		c.failure = "connector closed"
	}
	c.mu.Unlock()
	c.markLost()

	var errs []error
	if cl != nil {
		if err := cl.Close(); err != nil && !isChannelGone(err) {
			errs = append(errs, fmt.Errorf("close client: %w", err))
		}
	}
	if ch != nil {
		if err := ch.Close(); err != nil && !isChannelGone(err) {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if prev != StateFailed && prev != StateUninitialized {
		c.logger.Info("connector closed")
	}
	return errors.Join(errs...)
}

func (c *Connector) readyClient() (*client.Client, error) {
	if st := c.State(); st != StateReady {
		return nil, core.Errorf(core.KindConnectorUnavailable, "capability runtime is not ready (state: %s)", st)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil, core.NewError(core.KindConnectorUnavailable, "capability runtime is not connected")
	}
	return c.client, nil
}

// await выполняет fn и не дает вызову зависнуть после потери канала.
// Поздний ответ отбрасывается.
func (c *Connector) await(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	select {
	case err := <-done:
		return err
	case <-c.lost:
		return errChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Connector) callError(name string, err error) error {
	switch {
	case errors.Is(err, errChannelClosed):
		return core.WrapError(core.KindConnectorUnavailable, "capability runtime is unavailable", err)
	case isChannelGone(err):
		c.channelLost(fmt.Sprintf("write to capability runtime failed: %v", err))
		return core.WrapError(core.KindConnectorUnavailable, "capability runtime is unavailable", err)
	case errors.Is(err, context.DeadlineExceeded):
		return core.WrapError(core.KindProviderFailure, fmt.Sprintf("capability %q timed out", name), err)
	case errors.Is(err, context.Canceled):
		return core.WrapError(core.KindProviderFailure, fmt.Sprintf("capability %q call was canceled", name), err)
	case !c.Ready() || c.lostDuring(err):
		return core.WrapError(core.KindConnectorUnavailable, "capability runtime is unavailable", err)
	default:
		return core.WrapError(core.KindProviderFailure, err.Error(), err).
			WithDetails(map[string]any{"capability": name})
	}
}

// lostDuring сообщает, что ошибку вернул останавливающийся рантайм.
// При штатной остановке сервер сначала отвечает на прерванные вызовы и лишь
// затем закрывает канал, поэтому для таких ответов потеря канала ждется lossGrace.
func (c *Connector) lostDuring(err error) bool {
	select {
	case <-c.lost:
		return true
	default:
	}
	if !interruptedByRuntime(err) {
		return false
	}
	timer := time.NewTimer(lossGrace)
	defer timer.Stop()
	select {
	case <-c.lost:
		return true
	case <-timer.C:
		return false
	}
}

func interruptedByRuntime(err error) bool {
	if errors.Is(err, mcp.ErrRequestInterrupted) {
		return true
	}
	return errors.Is(err, mcp.ErrInternalError) && strings.Contains(err.Error(), context.Canceled.Error())
}

func (c *Connector) watch(ch *Channel) {
	select {
	case <-ch.Done():
	case <-c.lost:
		return
	}
	reason := "capability runtime exited"
	if err := ch.Err(); err != nil {
		reason = fmt.Sprintf("capability runtime exited: %v", err)
	}
	c.channelLost(reason)
}

func (c *Connector) channelLost(reason string) {
	prev := State(c.state.Swap(int32(StateFailed)))
	c.mu.Lock()
	if c.failure == "" {
		c.failure = reason
	}
	c.mu.Unlock()
	c.markLost()
	if prev == StateReady || prev == StateConnecting {
		c.logger.Error("capability runtime channel lost", "reason", reason, "previous_state", prev.String())
	}
}

func (c *Connector) fail(stage string, err error) error {
	c.state.Store(int32(StateFailed))
	c.mu.Lock()
	if c.failure == "" {
		c.failure = fmt.Sprintf("%s: %v", stage, err)
	}
	cl, ch := c.client, c.channel
	c.mu.Unlock()
	c.markLost()

	if cl != nil {
		_ = cl.Close()
	}
	if ch != nil {
		_ = ch.Close()
	}
	c.logger.Error("connector initialization failed", "stage", stage, "err", err)
	return core.WrapError(core.KindConnectorUnavailable, stage+" failed", err)
}

func (c *Connector) markLost() {
	c.lostOnce.Do(func() { close(c.lost) })
}

func isChannelGone(err error) bool {
	return errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, io.EOF)
}
