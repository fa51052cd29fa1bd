package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/evplanner/internal/config"
	"github.com/omeyang/evplanner/internal/telemetry"
	"github.com/omeyang/evplanner/pkg/lifecycle/xrun"
	"github.com/omeyang/evplanner/pkg/observability/xlog"
)

type keepExporter struct {
	*tracetest.InMemoryExporter
}

func (keepExporter) Shutdown(context.Context) error { return nil }

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.Batch.ScheduleDelay = time.Hour
	cfg.Metrics.Enabled = false
	return &cfg
}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) record(s State) {
	l.mu.Lock()
	l.states = append(l.states, s)
	l.mu.Unlock()
}

func (l *stateLog) get() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

// start 在后台运行 Manager，等待进入 Running
func start(t *testing.T, m *Manager) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	select {
	case <-m.Ready():
	case err := <-done:
		cancel()
		t.Fatalf("Run 提前返回: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("等待 Running 超时")
	}
	return cancel, done
}

func waitDone(t *testing.T, done <-chan error, within time.Duration) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(within):
		t.Fatal("Run 未在期限内返回")
		return nil
	}
}

func TestNew_NilConfig(t *testing.T) {
	m, err := New(nil, nil)
	assert.ErrorIs(t, err, ErrNilConfig)
	assert.Nil(t, m)
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateUninitialized, "uninitialized"},
		{StateRunning, "running"},
		{StateShuttingDown, "shutting_down"},
		{StateStopped, "stopped"},
		{State(9), "state(9)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}

func TestManager_EndToEndPlan(t *testing.T) {
	exp := keepExporter{tracetest.NewInMemoryExporter()}
	var log stateLog
	m, err := New(testConfig(), nil,
		WithTelemetryOptions(telemetry.WithSpanExporter(exp)),
		WithRunOptions(xrun.WithoutSignalHandler()),
		WithStateHook(log.record),
	)
	require.NoError(t, err)
	assert.Equal(t, StateUninitialized, m.State())
	assert.Nil(t, m.Addr())

	cancel, done := start(t, m)
	defer cancel()
	assert.Equal(t, StateRunning, m.State())

	client := &http.Client{Timeout: 2 * time.Second}
	defer client.CloseIdleConnections()

	req, err := http.NewRequest(http.MethodGet, "http://"+m.Addr().String()+"/plan", nil)
	require.NoError(t, err)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	resp, err := client.Do(req)
	require.NoError(t, err)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ev-planner", body["from"])
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", body["trace_id"])

	cancel()
	require.NoError(t, waitDone(t, done, 5*time.Second))
	assert.Equal(t, StateStopped, m.State())
	assert.Equal(t, []State{StateRunning, StateShuttingDown, StateStopped}, log.get())

	// 关闭时缓冲的 span 已导出
	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "/plan", spans[0].Name)
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind)
	assert.Equal(t, "00f067aa0ba902b7", spans[0].Parent.SpanID().String())
}

func TestManager_RunTwice(t *testing.T) {
	m, err := New(testConfig(), nil,
		WithTelemetryOptions(telemetry.WithSpanExporter(tracetest.NewInMemoryExporter())),
		WithRunOptions(xrun.WithoutSignalHandler()),
	)
	require.NoError(t, err)

	cancel, done := start(t, m)

	// 运行中再次调用
	err = m.Run(context.Background())
	assert.ErrorIs(t, err, ErrInvalidState)

	cancel()
	require.NoError(t, waitDone(t, done, 5*time.Second))

	// 终态后再次调用
	err = m.Run(context.Background())
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, StateStopped, m.State())
}

func TestManager_BindFailure(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()

	cfg := testConfig()
	cfg.Server.Addr = occupied.Addr().String()
	exp := tracetest.NewInMemoryExporter()
	m, err := New(cfg, nil,
		WithTelemetryOptions(telemetry.WithSpanExporter(exp)),
		WithRunOptions(xrun.WithoutSignalHandler()),
	)
	require.NoError(t, err)

	err = m.Run(context.Background())
	assert.ErrorIs(t, err, ErrStartup)
	assert.Equal(t, StateStopped, m.State())
	assert.Nil(t, m.Addr())
}

func TestManager_StartupFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *config.Config)
	}{
		{"非法采集地址", func(c *config.Config) { c.Exporter.Endpoint = "collector:4318" }},
		{"非法路由引擎地址", func(c *config.Config) { c.Routing.URL = "://bad" }},
		{"空服务名", func(c *config.Config) { c.Service.Name = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			m, err := New(cfg, nil, WithRunOptions(xrun.WithoutSignalHandler()))
			require.NoError(t, err)

			err = m.Run(context.Background())
			assert.ErrorIs(t, err, ErrStartup)
			assert.Equal(t, StateStopped, m.State())
		})
	}
}

func TestManager_UnreachableCollectorBoundedShutdown(t *testing.T) {
	cfg := testConfig()
	cfg.Exporter.Endpoint = "http://127.0.0.1:1/v1/traces"
	cfg.Exporter.Timeout = 200 * time.Millisecond
	// 指标也开启：关闭时的最终推送同样失败
	cfg.Metrics.Enabled = true
	cfg.Metrics.Interval = time.Hour

	var logs bytes.Buffer
	logger, cleanup, err := xlog.New().SetOutput(&logs).SetFormat("json").Build()
	require.NoError(t, err)
	defer func() { _ = cleanup() }()

	m, err := New(cfg, logger, WithRunOptions(xrun.WithoutSignalHandler()))
	require.NoError(t, err)

	cancel, done := start(t, m)
	defer cancel()

	client := &http.Client{Timeout: 2 * time.Second}
	defer client.CloseIdleConnections()
	resp, err := client.Get("http://" + m.Addr().String() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	begin := time.Now()
	cancel()
	err = waitDone(t, done, 5*time.Second)
	elapsed := time.Since(begin)

	// 导出失败只记日志，正常关闭仍返回 nil
	assert.NoError(t, err)
	assert.Less(t, elapsed, cfg.Server.ShutdownTimeout+cfg.ShutdownBudget())
	assert.Equal(t, StateStopped, m.State())
	assert.Contains(t, logs.String(), "telemetry shutdown incomplete")
}
