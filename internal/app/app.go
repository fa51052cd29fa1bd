// Package app 管理 ev-planner 进程的生命周期。
//
// 状态机：Uninitialized -> Running -> ShuttingDown -> Stopped。
// Stopped 是终态，Manager 不可复用。
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/omeyang/evplanner/internal/config"
	"github.com/omeyang/evplanner/internal/routing"
	"github.com/omeyang/evplanner/internal/server"
	"github.com/omeyang/evplanner/internal/telemetry"
	"github.com/omeyang/evplanner/pkg/lifecycle/xrun"
	"github.com/omeyang/evplanner/pkg/observability/xlog"
)

// State 生命周期状态
type State int32

const (
	StateUninitialized State = iota
	StateRunning
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var (
	// ErrInvalidState 在不允许的状态下调用 Run
	ErrInvalidState = errors.New("app: invalid state")
	// ErrNilConfig New 的 cfg 参数为 nil
	ErrNilConfig = errors.New("app: nil config")
	// ErrStartup 启动失败（监听、遥测、路由构造），调用方应以非零码退出
	ErrStartup = errors.New("app: startup failed")
)

// Manager 进程生命周期管理器
type Manager struct {
	cfg    *config.Config
	logger xlog.Logger
	opts   []telemetry.Option
	runOpt []xrun.Option

	mu      sync.Mutex
	state   State
	started bool
	addr    net.Addr
	ready   chan struct{}
	onState func(State)
}

// Option 配置 Manager
type Option func(*Manager)

// WithTelemetryOptions 透传给 telemetry.New，测试中用于替换导出器
func WithTelemetryOptions(opts ...telemetry.Option) Option {
	return func(m *Manager) { m.opts = append(m.opts, opts...) }
}

// WithRunOptions 透传给 xrun.Run，例如 xrun.WithoutSignalHandler()
func WithRunOptions(opts ...xrun.Option) Option {
	return func(m *Manager) { m.runOpt = append(m.runOpt, opts...) }
}

// WithStateHook 每次状态变化后调用 fn
func WithStateHook(fn func(State)) Option {
	return func(m *Manager) { m.onState = fn }
}

// New 创建 Manager，不做任何 I/O
func New(cfg *config.Config, logger xlog.Logger, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if logger == nil {
		logger = xlog.Discard()
	}
	m := &Manager{
		cfg:    cfg,
		logger: logger,
		ready:  make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// State 返回当前状态
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Ready 在进入 Running 后关闭
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// Addr 返回实际监听地址，Running 之前为 nil
func (m *Manager) Addr() net.Addr {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addr
}

func (m *Manager) transition(from, to State) error {
	m.mu.Lock()
	if m.state != from {
		cur := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: %s, want %s", ErrInvalidState, cur, from)
	}
	m.state = to
	m.mu.Unlock()

	m.logger.Debug(context.Background(), "lifecycle state changed",
		xlog.Component("app"), slog.String("from", from.String()), slog.String("to", to.String()))
	if m.onState != nil {
		m.onState(to)
	}
	return nil
}

// Run 启动服务并阻塞到收到终止信号、ctx 取消或服务出错。
//
// 启动顺序：先绑定端口，再构造遥测状态，最后开始服务，绑定失败不会留下遥测组件。
// 关闭顺序：停止接收新请求并等待在途请求（受 ShutdownTimeout 限制），
// 然后关闭遥测（受导出超时加余量限制）。
//
// 信号或 ctx 触发的正常关闭返回 nil，即使遥测导出失败。启动失败返回匹配 ErrStartup 的错误。
func (m *Manager) Run(ctx context.Context) (err error) {
	// 先占住状态，保证 Run 只执行一次
	m.mu.Lock()
	if m.started {
		cur := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: %s, want %s", ErrInvalidState, cur, StateUninitialized)
	}
	m.started = true
	m.mu.Unlock()

	ln, err := net.Listen("tcp", m.cfg.Server.Addr)
	if err != nil {
		m.stopEarly()
		return fmt.Errorf("%w: listen %s: %w", ErrStartup, m.cfg.Server.Addr, err)
	}

	tel, err := telemetry.New(ctx, m.cfg, m.logger, m.opts...)
	if err != nil {
		_ = ln.Close()
		m.stopEarly()
		return fmt.Errorf("%w: %w", ErrStartup, err)
	}

	var routingClient *routing.Client
	if m.cfg.Routing.URL != "" {
		routingClient, err = routing.New(m.cfg.Routing.URL, tel.Factory,
			routing.WithTimeout(m.cfg.Routing.Timeout),
			routing.WithLogger(m.logger.With(xlog.Component("routing"))),
		)
		if err != nil {
			_ = ln.Close()
			m.shutdownTelemetry(tel)
			m.stopEarly()
			return fmt.Errorf("%w: %w", ErrStartup, err)
		}
		defer routingClient.Close()
	}

	handler, err := server.NewHandler(server.Deps{
		Factory:     tel.Factory,
		HTTPMetrics: tel.HTTPMetrics,
		Routing:     routingClient,
		ServiceName: m.cfg.Service.Name,
		Logger:      m.logger,
	})
	if err != nil {
		_ = ln.Close()
		m.shutdownTelemetry(tel)
		m.stopEarly()
		return fmt.Errorf("%w: %w", ErrStartup, err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadTimeout:       m.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: m.cfg.Server.ReadTimeout,
		WriteTimeout:      m.cfg.Server.WriteTimeout,
		ErrorLog:          slog.NewLogLogger(xlog.Slog(m.logger).Handler(), slog.LevelWarn),
	}

	m.mu.Lock()
	m.addr = ln.Addr()
	m.mu.Unlock()
	if err := m.transition(StateUninitialized, StateRunning); err != nil {
		_ = ln.Close()
		m.shutdownTelemetry(tel)
		return err
	}
	close(m.ready)
	m.logger.Info(ctx, "server listening", xlog.Component("app"), xlog.Addr(ln.Addr().String()))

	runOpts := append([]xrun.Option{
		xrun.WithName("evplanner"),
		xrun.WithLogger(xlog.Slog(m.logger)),
	}, m.runOpt...)
	serveErr := xrun.Run(ctx, runOpts,
		m.markShuttingDown(),
		xrun.HTTPServer(srv, ln, m.cfg.Server.ShutdownTimeout),
	)

	// 信号退出视为正常关闭
	var sigErr *xrun.SignalError
	if errors.As(serveErr, &sigErr) {
		m.logger.Info(ctx, "shutdown signal received", xlog.Component("app"), slog.String("signal", sigErr.Signal.String()))
		serveErr = nil
	}
	if serveErr != nil {
		m.logger.Error(ctx, "server stopped with error", xlog.Component("app"), xlog.Err(serveErr))
	}

	// 服务出错退出时没有经过 markShuttingDown
	m.forceShuttingDown()
	// 导出失败只记日志，不影响退出结果
	m.shutdownTelemetry(tel)

	_ = m.transition(StateShuttingDown, StateStopped)
	m.logger.Info(ctx, "server stopped", xlog.Component("app"))

	return serveErr
}

// markShuttingDown 返回的服务函数在 Group 被取消时切到 ShuttingDown
func (m *Manager) markShuttingDown() func(ctx context.Context) error {
	return func(ctx context.Context) error {
		<-ctx.Done()
		m.forceShuttingDown()
		return nil
	}
}

func (m *Manager) forceShuttingDown() {
	_ = m.transition(StateRunning, StateShuttingDown)
}

// stopEarly 启动失败时直接进入终态
func (m *Manager) stopEarly() {
	m.mu.Lock()
	m.state = StateStopped
	m.mu.Unlock()
	if m.onState != nil {
		m.onState(StateStopped)
	}
}

// shutdownTelemetry 用独立于已取消 ctx 的期限关闭遥测，保证缓冲的 span 有机会导出
func (m *Manager) shutdownTelemetry(tel *telemetry.State) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ShutdownBudget())
	defer cancel()
	start := time.Now()
	if err := tel.Shutdown(ctx); err != nil {
		m.logger.Warn(ctx, "telemetry shutdown incomplete", xlog.Component("app"), xlog.Err(err), xlog.Duration(time.Since(start)))
	}
}
