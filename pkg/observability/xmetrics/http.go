package xmetrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricHTTPRequests = "evplanner.http.server.requests"
	metricHTTPDuration = "evplanner.http.server.duration"
)

// MethodOther 非标准请求方法统一记为该值，与 OTel HTTP 语义约定一致
const MethodOther = "_OTHER"

var knownMethods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodHead:    {},
	http.MethodPost:    {},
	http.MethodPut:     {},
	http.MethodPatch:   {},
	http.MethodDelete:  {},
	http.MethodConnect: {},
	http.MethodOptions: {},
	http.MethodTrace:   {},
}

// NormalizeMethod 标准方法原样返回，其他返回 MethodOther
func NormalizeMethod(method string) string {
	if _, ok := knownMethods[method]; ok {
		return method
	}
	return MethodOther
}

// HTTPMetrics 服务端请求指标。nil 接收者的所有方法都是空操作。
type HTTPMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// NewHTTPMetrics 创建 HTTP 请求指标
func NewHTTPMetrics(opts ...Option) (*HTTPMetrics, error) {
	meter := newMeter(opts)
	requests, err := meter.Int64Counter(metricHTTPRequests,
		metric.WithDescription("handled http requests"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, fmt.Errorf("xmetrics: create counter %s failed: %w", metricHTTPRequests, err)
	}
	duration, err := meter.Float64Histogram(metricHTTPDuration,
		metric.WithDescription("http request handling duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("xmetrics: create histogram %s failed: %w", metricHTTPDuration, err)
	}
	return &HTTPMetrics{requests: requests, duration: duration}, nil
}

// Record 记录一次请求。route 为路由模板，未匹配路由由调用方传入固定值；
// method 经 NormalizeMethod 归一，两者都避免基数膨胀。
func (m *HTTPMetrics) Record(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	attrs := metric.WithAttributes(
		attribute.String("http.method", NormalizeMethod(method)),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	)
	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}
