package xspan

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Factory 创建 span 的工厂，封装 TracerProvider。
//
// Factory 并发安全。Shutdown 之后创建的 span 不会被导出，但 Start 仍然可用。
type Factory struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	idgen    *IDGenerator
	resource *resource.Resource
}

// New 创建 Factory。
//
// 不会调用 otel.SetTracerProvider，调用方需要显式持有并传递返回值。
func New(opts ...Option) (*Factory, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if strings.TrimSpace(o.serviceName) == "" {
		return nil, ErrEmptyServiceName
	}

	res := buildResource(o)
	idgen := o.idGenerator
	if idgen == nil {
		idgen = NewIDGenerator(nil)
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(o.sampler),
		sdktrace.WithIDGenerator(idgen),
		sdktrace.WithRawSpanLimits(buildLimits(o)),
	}
	for _, p := range o.processors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(p))
	}
	provider := sdktrace.NewTracerProvider(tpOpts...)

	return &Factory{
		provider: provider,
		tracer:   provider.Tracer(o.instrumentationName),
		idgen:    idgen,
		resource: res,
	}, nil
}

// NewResource 按 opts 中的服务标识构造资源，与 New 产生的 span 资源一致。
// 用于让指标等其他信号共享同一组资源属性。
func NewResource(opts ...Option) *resource.Resource {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return buildResource(o)
}

// buildResource 不与 resource.Default() 合并，避免 schema URL 冲突。
func buildResource(o *options) *resource.Resource {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(o.serviceName),
		semconv.ServiceNamespace(o.serviceNamespace),
	}
	if o.serviceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(o.serviceVersion))
	}
	if o.environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(o.environment))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

func buildLimits(o *options) sdktrace.SpanLimits {
	limits := sdktrace.NewSpanLimits()
	limits.AttributeValueLengthLimit = unlimitedIfNonPositive(o.valueLengthLimit)
	limits.AttributeCountLimit = unlimitedIfNonPositive(o.countLimit)
	return limits
}

// unlimitedIfNonPositive SDK 中 0 表示"一个都不保留"，-1 才表示不限制
func unlimitedIfNonPositive(n int) int {
	if n <= 0 {
		return -1
	}
	return n
}

// Start 创建新 span 并返回携带该 span 的 ctx。
//
// parent 有效时新 span 成为 parent 的子 span（parent 为远端上下文时保持远端标记）；
// parent 无效时开启新 trace，ctx 中已有的 span 不参与父子关系。
// 调用方负责调用 span.End()。
func (f *Factory) Start(ctx context.Context, name string, kind trace.SpanKind, parent trace.SpanContext, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	startOpts := make([]trace.SpanStartOption, 0, len(opts)+2)
	startOpts = append(startOpts, trace.WithSpanKind(kind))
	if parent.IsValid() {
		ctx = trace.ContextWithSpanContext(ctx, parent)
	} else {
		startOpts = append(startOpts, trace.WithNewRoot())
	}
	startOpts = append(startOpts, opts...)
	return f.tracer.Start(ctx, name, startOpts...)
}

// StartChild 以 ctx 中当前 span 为父创建 span；ctx 中没有有效 span 时开启新 trace。
func (f *Factory) StartChild(ctx context.Context, name string, kind trace.SpanKind, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return f.Start(ctx, name, kind, trace.SpanContextFromContext(ctx), opts...)
}

// TracerProvider 返回底层 provider，供需要标准接口的第三方库使用
func (f *Factory) TracerProvider() trace.TracerProvider {
	return f.provider
}

// Resource 返回 span 携带的资源属性
func (f *Factory) Resource() *resource.Resource {
	return f.resource
}

// IDGenerator 返回使用中的 ID 生成器
func (f *Factory) IDGenerator() *IDGenerator {
	return f.idgen
}

// ForceFlush 将所有已结束但未导出的 span 推送给处理器
func (f *Factory) ForceFlush(ctx context.Context) error {
	return f.provider.ForceFlush(ctx)
}

// Shutdown 关闭 provider，依次关闭所有处理器。
// 重复调用安全，由 SDK 保证只执行一次。
func (f *Factory) Shutdown(ctx context.Context) error {
	return f.provider.Shutdown(ctx)
}
