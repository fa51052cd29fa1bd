// Package routing 调用下游路径规划引擎。
//
// 每次调用创建 client span，并把它的 traceparent 注入出站请求，
// 下游服务的 span 因此挂在 ev-planner 的请求 span 之下。
// 连续失败会打开熔断器，之后的调用直接失败，不再等待超时。
package routing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/evplanner/pkg/context/xctx"
	"github.com/omeyang/evplanner/pkg/observability/xlog"
	"github.com/omeyang/evplanner/pkg/observability/xspan"
	"github.com/omeyang/evplanner/pkg/observability/xtrace"
	"github.com/omeyang/evplanner/pkg/resilience/xbreaker"
)

// BreakerName 下游熔断器名称
const BreakerName = "routing-engine"

var (
	// ErrInvalidURL 下游地址不是合法的 http(s) URL
	ErrInvalidURL = errors.New("routing: invalid url")
	// ErrNilFactory span 工厂为 nil
	ErrNilFactory = errors.New("routing: nil span factory")
	// ErrUnexpectedStatus 下游返回非 2xx
	ErrUnexpectedStatus = errors.New("routing: unexpected status")
)

// Route 下游返回的规划结果
type Route struct {
	From   string `json:"from"`
	Result string `json:"result"`
}

// UpstreamError 下游调用失败，对入站请求映射为 502
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string   { return "routing engine unavailable: " + e.Err.Error() }
func (e *UpstreamError) Unwrap() error   { return e.Err }
func (e *UpstreamError) HTTPStatus() int { return http.StatusBadGateway }

// Client 路径规划引擎客户端，并发安全
type Client struct {
	http    *resty.Client
	url     string
	factory *xspan.Factory
	breaker *xbreaker.Breaker
	logger  xlog.Logger
}

type options struct {
	timeout          time.Duration
	breakerThreshold uint32
	breakerTimeout   time.Duration
	logger           xlog.Logger
	transport        http.RoundTripper
}

// Option 配置 Client
type Option func(*options)

// WithTimeout 单次请求超时
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithBreaker 连续失败 threshold 次后熔断 openTimeout
func WithBreaker(threshold uint32, openTimeout time.Duration) Option {
	return func(o *options) {
		if threshold > 0 {
			o.breakerThreshold = threshold
		}
		if openTimeout > 0 {
			o.breakerTimeout = openTimeout
		}
	}
}

// WithLogger 设置 logger，nil 忽略
func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTransport 替换底层 http.RoundTripper
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		if rt != nil {
			o.transport = rt
		}
	}
}

// New 创建客户端。rawURL 为完整的下游地址，例如 http://valhalla-sim:8002/data。
func New(rawURL string, factory *xspan.Factory, opts ...Option) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	if factory == nil {
		return nil, ErrNilFactory
	}
	o := &options{
		timeout:          5 * time.Second,
		breakerThreshold: 5,
		breakerTimeout:   30 * time.Second,
		logger:           xlog.Discard(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	hc := resty.New().
		SetTimeout(o.timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "ev-planner")
	if o.transport != nil {
		hc.SetTransport(o.transport)
	}

	logger := o.logger
	return &Client{
		http:    hc,
		url:     u.String(),
		factory: factory,
		logger:  logger,
		breaker: xbreaker.NewBreaker(BreakerName,
			xbreaker.WithTripPolicy(xbreaker.NewConsecutiveFailures(o.breakerThreshold)),
			xbreaker.WithTimeout(o.breakerTimeout),
			xbreaker.WithOnStateChange(func(name string, from, to xbreaker.State) {
				logger.Warn(context.Background(), "breaker state changed",
					xlog.Component(name),
					xlog.Reason(from.String()+" -> "+to.String()),
				)
			}),
		),
	}, nil
}

// Fetch 请求一条路径。失败时返回 *UpstreamError。
func (c *Client) Fetch(ctx context.Context) (Route, error) {
	ctx, span := c.factory.StartChild(ctx, "GET routing-engine", trace.SpanKindClient,
		trace.WithAttributes(
			attribute.String("http.method", http.MethodGet),
			attribute.String("http.url", c.url),
		),
	)
	defer span.End()

	var route Route
	status := 0
	err := c.breaker.Do(ctx, func() error {
		req := c.http.R().SetContext(ctx).SetResult(&route)
		xtrace.Inject(span.SpanContext(), propagation.HeaderCarrier(req.Header))
		if id := xctx.RequestID(ctx); id != "" {
			req.SetHeader(xtrace.HeaderRequestID, id)
		}
		resp, err := req.Get(c.url)
		if err != nil {
			return err
		}
		status = resp.StatusCode()
		if resp.IsError() {
			return fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)
		}
		return nil
	})
	if status != 0 {
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn(ctx, "routing engine call failed", xlog.Err(err))
		return Route{}, &UpstreamError{Err: err}
	}
	span.SetStatus(codes.Ok, "")
	return route, nil
}

// BreakerState 返回熔断器状态
func (c *Client) BreakerState() xbreaker.State {
	return c.breaker.State()
}

// Close 关闭空闲连接
func (c *Client) Close() {
	c.http.GetClient().CloseIdleConnections()
}
