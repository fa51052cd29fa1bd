// Package pipeline 为每个入站请求创建 server span 并管理其生命周期。
//
// Middleware 包住整个路由器：提取上游 traceparent，创建以之为父的 span，
// 在处理函数执行期间把 span 放入请求 ctx，结束后记录响应属性并关闭 span。
// 关闭的 span 交给 span 工厂上挂载的 Batcher 异步导出，请求路径不等待导出。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/evplanner/pkg/context/xctx"
	"github.com/omeyang/evplanner/pkg/observability/xlog"
	"github.com/omeyang/evplanner/pkg/observability/xmetrics"
	"github.com/omeyang/evplanner/pkg/observability/xspan"
	"github.com/omeyang/evplanner/pkg/observability/xtrace"
)

// ErrNilFactory New 的 factory 参数为 nil
var ErrNilFactory = errors.New("pipeline: nil span factory")

// RouteNamer 返回请求匹配的路由模板，未匹配时返回空字符串
type RouteNamer func(r *http.Request) string

// Pipeline 请求 span 管线，并发安全
type Pipeline struct {
	factory    *xspan.Factory
	metrics    *xmetrics.HTTPMetrics
	logger     xlog.Logger
	routeNamer RouteNamer
}

// Option 配置 Pipeline
type Option func(*Pipeline)

// WithMetrics 记录请求计数和耗时，nil 表示不记录
func WithMetrics(m *xmetrics.HTTPMetrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger 设置访问日志的 logger，nil 忽略
func WithLogger(l xlog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithRouteNamer 设置路由模板解析函数，nil 忽略
func WithRouteNamer(fn RouteNamer) Option {
	return func(p *Pipeline) {
		if fn != nil {
			p.routeNamer = fn
		}
	}
}

// New 创建 Pipeline
func New(factory *xspan.Factory, opts ...Option) (*Pipeline, error) {
	if factory == nil {
		return nil, ErrNilFactory
	}
	p := &Pipeline{
		factory:    factory,
		logger:     xlog.Discard(),
		routeNamer: func(*http.Request) string { return "" },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// requestState 请求内的可变状态，只由处理该请求的 goroutine 访问
type requestState struct {
	failed bool
}

type stateKey struct{}

// SpanName 返回请求 span 的名称：路由模板，未匹配时为 "HTTP <METHOD>"
func SpanName(route, method string) string {
	if route != "" {
		return route
	}
	return "HTTP " + method
}

// Middleware 返回包裹 next 的 http.Handler。
//
// 处理函数 panic 时 span 记录错误并关闭，然后原样重新 panic。
func (p *Pipeline) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		parent, _ := xtrace.ExtractFromHTTPHeader(r.Header)
		route := p.routeNamer(r)
		requestID := xctx.NormalizeRequestID(r.Header.Get(xtrace.HeaderRequestID))

		attrs := []attribute.KeyValue{
			attribute.String(AttrHTTPMethod, r.Method),
			attribute.String(AttrHTTPTarget, r.URL.RequestURI()),
			attribute.String(AttrHTTPRoute, route),
			attribute.String(AttrHTTPHost, r.Host),
			attribute.String(AttrRequestID, requestID),
		}
		if tp := r.Header.Get(xtrace.HeaderTraceparent); tp != "" {
			attrs = append(attrs, attribute.String(AttrHeaderTraceparent, tp))
		}

		ctx, span := p.factory.Start(r.Context(), SpanName(route, r.Method), trace.SpanKindServer, parent,
			trace.WithAttributes(attrs...),
			trace.WithTimestamp(start),
		)
		state := &requestState{}
		ctx = context.WithValue(ctx, stateKey{}, state)
		// requestID 已归一化，不会为空
		ctx, _ = xctx.WithRequestID(ctx, requestID)

		rec := newStatusRecorder(w)
		rec.Header().Set(xtrace.HeaderRequestID, requestID)
		rec.Header().Set(xtrace.HeaderTraceID, span.SpanContext().TraceID().String())

		defer func() {
			rv := recover()
			status := rec.status
			if rv != nil {
				err, ok := rv.(error)
				if !ok {
					err = fmt.Errorf("panic: %v", rv)
				}
				span.RecordError(err, trace.WithStackTrace(true))
				state.failed = true
				if !rec.wroteHeader {
					status = http.StatusInternalServerError
				}
			}
			p.finish(ctx, span, state, r.Method, route, status, start)
			if rv != nil {
				panic(rv)
			}
		}()

		next.ServeHTTP(rec, r.WithContext(ctx))
	})
}

// finish 记录响应属性、设置 span 状态并关闭 span，然后写访问日志和指标。
// 日志中的 trace_id 和 request_id 由 xlog 的 enrich handler 从 ctx 补充。
func (p *Pipeline) finish(ctx context.Context, span trace.Span, state *requestState, method, route string, status int, start time.Time) {
	end := time.Now()
	elapsed := end.Sub(start)

	span.SetAttributes(
		attribute.Int(AttrHTTPStatusCode, status),
		attribute.Float64(AttrServerDuration, float64(elapsed.Microseconds())/1000),
	)
	if status == http.StatusNotFound {
		span.AddEvent(EventNotFound)
	}
	switch {
	case state.failed:
		// 保留 RecordError 写入的错误描述
	case status == http.StatusNotFound, status >= http.StatusInternalServerError:
		span.SetStatus(codes.Error, http.StatusText(status))
	default:
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(end))

	metricRoute := route
	if metricRoute == "" {
		metricRoute = "unmatched"
	}
	p.metrics.Record(ctx, method, metricRoute, status, elapsed)

	p.logger.Info(ctx, "request completed",
		xlog.Method(method),
		xlog.Route(SpanName(route, method)),
		xlog.StatusCode(status),
		xlog.Duration(elapsed),
	)
}
