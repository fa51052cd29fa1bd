package xctx

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// TraceID 返回 context 中 span 的 trace id（32 位小写十六进制），没有有效 span 时返回空字符串
func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// SpanID 返回 context 中 span 的 span id（16 位小写十六进制），没有有效 span 时返回空字符串
func SpanID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasSpanID() {
		return ""
	}
	return sc.SpanID().String()
}

// RequireTraceID 返回 trace id，缺失时返回 ErrMissingTraceID
func RequireTraceID(ctx context.Context) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	v := TraceID(ctx)
	if v == "" {
		return "", ErrMissingTraceID
	}
	return v, nil
}
