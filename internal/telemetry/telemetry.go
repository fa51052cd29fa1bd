// Package telemetry 持有进程内的遥测状态：span 导出管线、span 工厂和指标。
//
// State 由 New 显式构造并按引用传给请求管线和生命周期管理，不安装 OTel 全局
// TracerProvider/MeterProvider。唯一的进程级钩子是 OTel 内部错误处理器。
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/omeyang/evplanner/internal/config"
	"github.com/omeyang/evplanner/pkg/observability/xexport"
	"github.com/omeyang/evplanner/pkg/observability/xlog"
	"github.com/omeyang/evplanner/pkg/observability/xmetrics"
	"github.com/omeyang/evplanner/pkg/observability/xspan"
	"github.com/omeyang/evplanner/pkg/observability/xtrace"
)

// ErrNilConfig New 的 cfg 参数为 nil
var ErrNilConfig = errors.New("telemetry: nil config")

// State 遥测状态。并发安全；Shutdown 之后不可再用。
type State struct {
	Factory     *xspan.Factory
	Batcher     *xexport.Batcher
	Propagator  propagation.TextMapPropagator
	HTTPMetrics *xmetrics.HTTPMetrics

	meterProvider *sdkmetric.MeterProvider
	logger        xlog.Logger

	shutdownOnce sync.Once
	shutdownErr  error
}

type options struct {
	exporter sdktrace.SpanExporter
	reader   sdkmetric.Reader
}

// Option 替换默认的网络组件，主要用于测试
type Option func(*options)

// WithSpanExporter 使用 exp 代替按配置创建的 OTLP 导出器
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) { o.exporter = exp }
}

// WithMetricReader 使用 r 代替按配置创建的 OTLP 周期性读取器。
// 设置后即使配置关闭了指标也会启用。
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(o *options) { o.reader = r }
}

// New 按依赖顺序构造遥测状态：导出器、指标、Batcher、span 工厂。
// 任一步失败时已创建的组件会被逆序关闭。
func New(ctx context.Context, cfg *config.Config, logger xlog.Logger, opts ...Option) (*State, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if logger == nil {
		logger = xlog.Discard()
	}
	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	// 错误处理器是进程级的，走全局 logger，不捕获某个 State 的 logger
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		xlog.Default().Warn(context.Background(), "otel internal error",
			xlog.Component("otel"), xlog.Err(err))
	}))

	exp := o.exporter
	if exp == nil {
		otlp, err := xexport.NewOTLPExporter(ctx, xexport.TransportConfig{
			Protocol: cfg.Exporter.Protocol,
			Endpoint: cfg.Exporter.Endpoint,
			Timeout:  cfg.Exporter.Timeout,
			Headers:  cfg.Exporter.Headers,
		})
		if err != nil {
			return nil, fmt.Errorf("telemetry: create span exporter: %w", err)
		}
		exp = otlp
	}

	serviceOpts := []xspan.Option{
		xspan.WithService(cfg.Service.Name, cfg.Service.Namespace, cfg.Service.Version),
		xspan.WithEnvironment(cfg.Service.Environment),
	}

	mp, err := newMeterProvider(ctx, cfg, o.reader, serviceOpts)
	if err != nil {
		_ = exp.Shutdown(ctx)
		return nil, err
	}
	var provider metric.MeterProvider = noop.NewMeterProvider()
	if mp != nil {
		provider = mp
	}

	s := &State{
		Propagator:    xtrace.Propagator{},
		meterProvider: mp,
		logger:        logger,
	}
	fail := func(err error) (*State, error) {
		_ = exp.Shutdown(ctx)
		if mp != nil {
			_ = mp.Shutdown(ctx)
		}
		return nil, err
	}

	exporterMetrics, err := xmetrics.NewExporterMetrics(xmetrics.WithMeterProvider(provider))
	if err != nil {
		return fail(fmt.Errorf("telemetry: %w", err))
	}
	if s.HTTPMetrics, err = xmetrics.NewHTTPMetrics(xmetrics.WithMeterProvider(provider)); err != nil {
		return fail(fmt.Errorf("telemetry: %w", err))
	}

	sampler, err := xspan.NewSampler(cfg.Sampler.Name, cfg.Sampler.Ratio)
	if err != nil {
		return fail(fmt.Errorf("telemetry: %w", err))
	}

	s.Batcher, err = xexport.NewBatcher(exp,
		xexport.WithMaxQueueSize(cfg.Batch.MaxQueueSize),
		xexport.WithMaxExportBatchSize(cfg.Batch.MaxExportBatchSize),
		xexport.WithBatchTimeout(cfg.Batch.ScheduleDelay),
		xexport.WithExportTimeout(cfg.Exporter.Timeout),
		xexport.WithEnqueueWait(cfg.Batch.EnqueueWait),
		xexport.WithMaxRetries(cfg.Batch.MaxRetries),
		xexport.WithMetrics(exporterMetrics),
		xexport.WithLogger(logger.With(xlog.Component("exporter"))),
	)
	if err != nil {
		return fail(fmt.Errorf("telemetry: create batcher: %w", err))
	}

	s.Factory, err = xspan.New(append(serviceOpts,
		xspan.WithSampler(sampler),
		xspan.WithSpanProcessor(s.Batcher),
		xspan.WithSpanLimits(cfg.Limits.AttributeValueLength, cfg.Limits.AttributeCount),
	)...)
	if err != nil {
		_ = s.Batcher.Shutdown(ctx)
		return fail(fmt.Errorf("telemetry: create span factory: %w", err))
	}

	logger.Info(ctx, "telemetry initialized",
		xlog.Component("telemetry"),
		xlog.Addr(cfg.Exporter.Endpoint),
		slog.String("protocol", cfg.Exporter.Protocol),
		slog.Bool("metrics", mp != nil),
	)
	return s, nil
}

// newMeterProvider 指标关闭且未注入 reader 时返回 nil
func newMeterProvider(ctx context.Context, cfg *config.Config, reader sdkmetric.Reader, serviceOpts []xspan.Option) (*sdkmetric.MeterProvider, error) {
	if reader == nil {
		if !cfg.Metrics.Enabled {
			return nil, nil
		}
		mopts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpointURL(cfg.MetricsEndpoint()),
			otlpmetrichttp.WithTimeout(cfg.Exporter.Timeout),
			otlpmetrichttp.WithRetry(otlpmetrichttp.RetryConfig{Enabled: false}),
		}
		if len(cfg.Exporter.Headers) > 0 {
			mopts = append(mopts, otlpmetrichttp.WithHeaders(cfg.Exporter.Headers))
		}
		exp, err := otlpmetrichttp.New(ctx, mopts...)
		if err != nil {
			return nil, fmt.Errorf("telemetry: create metric exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(cfg.Metrics.Interval))
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(xspan.NewResource(serviceOpts...)),
	), nil
}

// Shutdown 逆序关闭：先关 span 工厂（驱动 Batcher 排空并关闭导出器），再关指标。
//
// 只执行一次，之后的调用返回第一次的结果。ctx 限定总耗时。
func (s *State) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		var errs []error
		if err := s.Factory.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry: shutdown tracer provider: %w", err))
		}
		if s.meterProvider != nil {
			if err := s.meterProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("telemetry: shutdown meter provider: %w", err))
			}
		}
		s.shutdownErr = errors.Join(errs...)

		stats := s.Batcher.Stats()
		s.logger.Info(ctx, "telemetry stopped",
			xlog.Component("telemetry"),
			slog.Uint64("exported", stats.Exported),
			slog.Uint64("dropped", stats.Dropped),
		)
	})
	return s.shutdownErr
}
