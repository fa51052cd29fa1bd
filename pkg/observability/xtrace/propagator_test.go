package xtrace_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/evplanner/pkg/observability/xtrace"
)

const (
	testTraceID     = "4bf92f3577b34da6a3ce929d0e0e4736"
	testSpanID      = "00f067aa0ba902b7"
	testTraceparent = "00-" + testTraceID + "-" + testSpanID + "-01"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		carrier propagation.TextMapCarrier
		wantOK  bool
	}{
		{"nil carrier", nil, false},
		{"空 carrier", propagation.MapCarrier{}, false},
		{"小写 key", propagation.MapCarrier{"traceparent": testTraceparent}, true},
		{"混合大小写 key", propagation.MapCarrier{"TraceParent": testTraceparent}, true},
		{"全大写 key", propagation.MapCarrier{"TRACEPARENT": testTraceparent}, true},
		{"格式错误", propagation.MapCarrier{"traceparent": "garbage"}, false},
		{"只有 tracestate", propagation.MapCarrier{"tracestate": "congo=t61rcWkgMzE"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, ok := xtrace.Extract(tt.carrier)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, testTraceID, sc.TraceID().String())
				assert.Equal(t, testSpanID, sc.SpanID().String())
				assert.True(t, sc.IsSampled())
			} else {
				assert.False(t, sc.IsValid())
			}
		})
	}
}

func TestExtract_Tracestate(t *testing.T) {
	t.Run("合法 tracestate 被保留", func(t *testing.T) {
		sc, ok := xtrace.Extract(propagation.MapCarrier{
			"traceparent": testTraceparent,
			"Tracestate":  "congo=t61rcWkgMzE,rojo=00f067aa0ba902b7",
		})
		require.True(t, ok)
		assert.Equal(t, "congo=t61rcWkgMzE,rojo=00f067aa0ba902b7", sc.TraceState().String())
	})

	t.Run("非法 tracestate 不影响父上下文", func(t *testing.T) {
		sc, ok := xtrace.Extract(propagation.MapCarrier{
			"traceparent": testTraceparent,
			"tracestate":  "===",
		})
		require.True(t, ok)
		assert.Empty(t, sc.TraceState().String())
	})
}

func TestExtractFromHTTPHeader(t *testing.T) {
	if _, ok := xtrace.ExtractFromHTTPHeader(nil); ok {
		t.Error("nil Header 不应提取出上下文")
	}

	h := http.Header{}
	h.Set("Traceparent", testTraceparent)
	sc, ok := xtrace.ExtractFromHTTPHeader(h)
	if !ok {
		t.Fatal("ExtractFromHTTPHeader() ok = false, want true")
	}
	if got := sc.TraceID().String(); got != testTraceID {
		t.Errorf("TraceID = %q, want %q", got, testTraceID)
	}
}

func TestInject(t *testing.T) {
	sc, ok := xtrace.ParseTraceparent(testTraceparent)
	require.True(t, ok)

	t.Run("有效上下文", func(t *testing.T) {
		carrier := propagation.MapCarrier{}
		xtrace.Inject(sc, carrier)
		assert.Equal(t, testTraceparent, carrier.Get("traceparent"))
		assert.Empty(t, carrier.Get("tracestate"))
	})

	t.Run("携带 tracestate", func(t *testing.T) {
		ts, err := trace.ParseTraceState("congo=t61rcWkgMzE")
		require.NoError(t, err)
		carrier := propagation.MapCarrier{}
		xtrace.Inject(sc.WithTraceState(ts), carrier)
		assert.Equal(t, "congo=t61rcWkgMzE", carrier.Get("tracestate"))
	})

	t.Run("无效上下文不写入", func(t *testing.T) {
		carrier := propagation.MapCarrier{}
		xtrace.Inject(trace.SpanContext{}, carrier)
		assert.Empty(t, carrier.Keys())
	})

	t.Run("nil carrier 不 panic", func(t *testing.T) {
		assert.NotPanics(t, func() { xtrace.Inject(sc, nil) })
	})
}

func TestInjectToRequest(t *testing.T) {
	sc, ok := xtrace.ParseTraceparent(testTraceparent)
	require.True(t, ok)
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://example.invalid/route", nil)
	require.NoError(t, err)
	xtrace.InjectToRequest(ctx, req)
	assert.Equal(t, testTraceparent, req.Header.Get("traceparent"))

	assert.NotPanics(t, func() { xtrace.InjectToRequest(ctx, nil) })

	empty := &http.Request{}
	xtrace.InjectToRequest(context.Background(), empty)
	assert.Empty(t, empty.Header.Get("traceparent"))
}

func TestPropagator(t *testing.T) {
	var p xtrace.Propagator

	assert.ElementsMatch(t, []string{"traceparent", "tracestate"}, p.Fields())

	ctx := p.Extract(context.Background(), propagation.MapCarrier{"TRACEPARENT": testTraceparent})
	sc := trace.SpanContextFromContext(ctx)
	require.True(t, sc.IsValid())
	assert.True(t, sc.IsRemote())
	assert.Equal(t, testTraceID, xtrace.TraceID(ctx))
	assert.Equal(t, testSpanID, xtrace.SpanID(ctx))
	assert.Equal(t, testTraceparent, xtrace.Traceparent(ctx))

	out := propagation.MapCarrier{}
	p.Inject(ctx, out)
	assert.Equal(t, testTraceparent, out.Get("traceparent"))

	// 无上下文时原样返回
	base := context.Background()
	assert.Equal(t, base, p.Extract(base, propagation.MapCarrier{}))
	assert.Empty(t, xtrace.TraceID(base))
	assert.Empty(t, xtrace.SpanID(base))
}
