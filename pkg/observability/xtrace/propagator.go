package xtrace

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// HTTP Header 常量
const (
	HeaderTraceparent = "traceparent"
	HeaderTracestate  = "tracestate"
	HeaderRequestID   = "X-Request-ID"
	HeaderTraceID     = "X-Trace-ID"
)

// =============================================================================
// 提取
// =============================================================================

// Extract 从 carrier 中还原上游的 SpanContext。
//
// key 大小写不敏感。traceparent 缺失或格式错误时返回 false，调用方应开启新 trace。
// tracestate 格式错误时丢弃 tracestate，不影响 traceparent 的结果。
func Extract(carrier propagation.TextMapCarrier) (trace.SpanContext, bool) {
	if carrier == nil {
		return trace.SpanContext{}, false
	}
	sc, ok := ParseTraceparent(lookup(carrier, HeaderTraceparent))
	if !ok {
		return trace.SpanContext{}, false
	}
	if raw := lookup(carrier, HeaderTracestate); raw != "" {
		if ts, err := trace.ParseTraceState(raw); err == nil {
			sc = sc.WithTraceState(ts)
		}
	}
	return sc, true
}

// ExtractFromHTTPHeader 从 HTTP Header 提取上游 SpanContext。
func ExtractFromHTTPHeader(h http.Header) (trace.SpanContext, bool) {
	if h == nil {
		return trace.SpanContext{}, false
	}
	return Extract(propagation.HeaderCarrier(h))
}

// lookup 大小写不敏感地读取 carrier 中的值。
// 先按原 key 查找（HeaderCarrier 会自行规范化），再遍历 Keys 做 EqualFold 匹配。
func lookup(carrier propagation.TextMapCarrier, key string) string {
	if v := carrier.Get(key); v != "" {
		return v
	}
	for _, k := range carrier.Keys() {
		if strings.EqualFold(k, key) {
			return carrier.Get(k)
		}
	}
	return ""
}

// =============================================================================
// 注入
// =============================================================================

// Inject 将 sc 写入 carrier。sc 无效时不写入任何内容。
func Inject(sc trace.SpanContext, carrier propagation.TextMapCarrier) {
	if carrier == nil {
		return
	}
	tp := FormatTraceparent(sc)
	if tp == "" {
		return
	}
	carrier.Set(HeaderTraceparent, tp)
	if ts := sc.TraceState().String(); ts != "" {
		carrier.Set(HeaderTracestate, ts)
	}
}

// InjectToRequest 将 ctx 中当前 span 的上下文注入到出站 HTTP 请求。
func InjectToRequest(ctx context.Context, req *http.Request) {
	if req == nil {
		return
	}
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	Inject(trace.SpanContextFromContext(ctx), propagation.HeaderCarrier(req.Header))
}

// =============================================================================
// Propagator
// =============================================================================

// Propagator 基于本包解析规则的 [propagation.TextMapPropagator] 实现。
//
// 与 propagation.TraceContext 的区别在于 carrier key 大小写不敏感，
// 适用于 key 未经规范化的 map 类 carrier。
type Propagator struct{}

var _ propagation.TextMapPropagator = Propagator{}

// Inject 将 ctx 中的 span 上下文写入 carrier。
func (Propagator) Inject(ctx context.Context, carrier propagation.TextMapCarrier) {
	Inject(trace.SpanContextFromContext(ctx), carrier)
}

// Extract 返回携带远端父上下文的 ctx；carrier 中没有合法上下文时原样返回 ctx。
func (Propagator) Extract(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	sc, ok := Extract(carrier)
	if !ok {
		return ctx
	}
	return trace.ContextWithRemoteSpanContext(ctx, sc)
}

// Fields 返回本传播器读写的 key。
func (Propagator) Fields() []string {
	return []string{HeaderTraceparent, HeaderTracestate}
}
