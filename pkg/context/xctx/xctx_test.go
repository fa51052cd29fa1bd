package xctx

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func testSpanContext(t *testing.T, flags trace.TraceFlags) trace.SpanContext {
	t.Helper()
	tid, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	sid, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	return trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid, SpanID: sid, TraceFlags: flags})
}

func TestRequestID(t *testing.T) {
	ctx, err := WithRequestID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, "req-1", RequestID(ctx))

	got, err := RequireRequestID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "req-1", got)

	_, err = RequireRequestID(context.Background())
	assert.ErrorIs(t, err, ErrMissingRequestID)

	//nolint:staticcheck // 测试 nil ctx
	_, err = WithRequestID(nil, "x")
	assert.ErrorIs(t, err, ErrNilContext)
	//nolint:staticcheck // 测试 nil ctx
	assert.Empty(t, RequestID(nil))
}

func TestEnsureRequestID(t *testing.T) {
	t.Run("已存在时沿用", func(t *testing.T) {
		ctx, _ := WithRequestID(context.Background(), "keep")
		ctx, err := EnsureRequestID(ctx)
		require.NoError(t, err)
		assert.Equal(t, "keep", RequestID(ctx))
	})

	t.Run("缺失时生成UUID", func(t *testing.T) {
		ctx, err := EnsureRequestID(context.Background())
		require.NoError(t, err)
		_, err = uuid.Parse(RequestID(ctx))
		assert.NoError(t, err)
	})
}

func TestNormalizeRequestID(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"去除空白", "  abc  ", "abc"},
		{"超长截断", strings.Repeat("a", 200), strings.Repeat("a", maxRequestIDLen)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeRequestID(tt.raw))
		})
	}

	_, err := uuid.Parse(NormalizeRequestID("   "))
	assert.NoError(t, err, "空值生成新的 UUID")
}

func TestTraceIDFromSpan(t *testing.T) {
	ctx := trace.ContextWithSpanContext(context.Background(), testSpanContext(t, trace.FlagsSampled))
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", TraceID(ctx))
	assert.Equal(t, "00f067aa0ba902b7", SpanID(ctx))

	got, err := RequireTraceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, TraceID(ctx), got)

	assert.Empty(t, TraceID(context.Background()))
	_, err = RequireTraceID(context.Background())
	assert.ErrorIs(t, err, ErrMissingTraceID)
}

func TestAppendTraceAttrs(t *testing.T) {
	tests := []struct {
		name     string
		ctx      func() context.Context
		wantKeys []string
	}{
		{
			name:     "空context",
			ctx:      context.Background,
			wantKeys: nil,
		},
		{
			name: "已采样span与request id",
			ctx: func() context.Context {
				ctx := trace.ContextWithSpanContext(context.Background(), testSpanContext(t, trace.FlagsSampled))
				ctx, _ = WithRequestID(ctx, "r")
				return ctx
			},
			wantKeys: []string{KeyTraceID, KeySpanID, KeyRequestID, KeyTraceFlags},
		},
		{
			name: "未采样span不输出flags",
			ctx: func() context.Context {
				return trace.ContextWithSpanContext(context.Background(), testSpanContext(t, 0))
			},
			wantKeys: []string{KeyTraceID, KeySpanID},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := TraceAttrs(tt.ctx())
			var keys []string
			for _, a := range attrs {
				keys = append(keys, a.Key)
			}
			assert.Equal(t, tt.wantKeys, keys)
		})
	}

	buf := make([]slog.Attr, 0, TraceFieldCount)
	//nolint:staticcheck // 测试 nil ctx
	assert.Empty(t, AppendTraceAttrs(buf, nil))
}
