package xtrace

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// 以下函数让调用方只需 import xtrace 就能读取当前 span 的标识，
// 无 span 或 span 无效时返回空字符串。

// TraceID 返回 ctx 中当前 span 的 trace ID（32 位小写十六进制）
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// SpanID 返回 ctx 中当前 span 的 span ID（16 位小写十六进制）
func SpanID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasSpanID() {
		return ""
	}
	return sc.SpanID().String()
}

// Traceparent 返回 ctx 中当前 span 对应的 traceparent 值
func Traceparent(ctx context.Context) string {
	return FormatTraceparent(trace.SpanContextFromContext(ctx))
}
