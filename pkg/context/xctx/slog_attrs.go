package xctx

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// TraceFieldCount AppendTraceAttrs 最多追加的属性数
const TraceFieldCount = 4

// AppendTraceAttrs 将 context 中的追踪信息追加到现有切片。
// 传入预分配的切片，只追加非空字段。
func AppendTraceAttrs(attrs []slog.Attr, ctx context.Context) []slog.Attr {
	if ctx == nil {
		return attrs
	}

	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		attrs = append(attrs, slog.String(KeyTraceID, sc.TraceID().String()))
	}
	if sc.HasSpanID() {
		attrs = append(attrs, slog.String(KeySpanID, sc.SpanID().String()))
	}
	if v := RequestID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyRequestID, v))
	}
	if sc.IsValid() && sc.IsSampled() {
		attrs = append(attrs, slog.String(KeyTraceFlags, sc.TraceFlags().String()))
	}
	return attrs
}

// TraceAttrs 从 context 提取追踪信息，都为空时返回 nil
func TraceAttrs(ctx context.Context) []slog.Attr {
	attrs := AppendTraceAttrs(make([]slog.Attr, 0, TraceFieldCount), ctx)
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}
