package xspan

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// 默认值
const (
	DefaultInstrumentationName = "github.com/omeyang/evplanner"
	DefaultServiceName         = "ev-planner"
	DefaultServiceNamespace    = "valhalla"

	// DefaultAttributeValueLengthLimit 属性值长度上限
	DefaultAttributeValueLengthLimit = 100
	// DefaultAttributeCountLimit 每个 span 的属性个数上限
	DefaultAttributeCountLimit = 10
)

type options struct {
	instrumentationName string
	serviceName         string
	serviceNamespace    string
	serviceVersion      string
	environment         string
	sampler             sdktrace.Sampler
	processors          []sdktrace.SpanProcessor
	idGenerator         *IDGenerator
	valueLengthLimit    int
	countLimit          int
}

// Option 配置 Factory
type Option func(*options)

func defaultOptions() *options {
	return &options{
		instrumentationName: DefaultInstrumentationName,
		serviceName:         DefaultServiceName,
		serviceNamespace:    DefaultServiceNamespace,
		sampler:             sdktrace.AlwaysSample(),
		valueLengthLimit:    DefaultAttributeValueLengthLimit,
		countLimit:          DefaultAttributeCountLimit,
	}
}

// WithService 设置资源属性中的服务名、命名空间和版本。空字符串保持默认值。
func WithService(name, namespace, version string) Option {
	return func(o *options) {
		if name != "" {
			o.serviceName = name
		}
		if namespace != "" {
			o.serviceNamespace = namespace
		}
		if version != "" {
			o.serviceVersion = version
		}
	}
}

// WithEnvironment 设置 deployment.environment 资源属性
func WithEnvironment(env string) Option {
	return func(o *options) {
		o.environment = env
	}
}

// WithInstrumentationName 设置 tracer 的 instrumentation 名称
func WithInstrumentationName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.instrumentationName = name
		}
	}
}

// WithSampler 设置采样器，nil 忽略
func WithSampler(s sdktrace.Sampler) Option {
	return func(o *options) {
		if s != nil {
			o.sampler = s
		}
	}
}

// WithSpanProcessor 追加 span 处理器（通常是 xexport.Batcher），nil 忽略
func WithSpanProcessor(p sdktrace.SpanProcessor) Option {
	return func(o *options) {
		if p != nil {
			o.processors = append(o.processors, p)
		}
	}
}

// WithIDGenerator 设置 ID 生成器，nil 忽略
func WithIDGenerator(g *IDGenerator) Option {
	return func(o *options) {
		if g != nil {
			o.idGenerator = g
		}
	}
}

// WithSpanLimits 设置属性值长度和属性个数上限。小于等于 0 表示不限制。
func WithSpanLimits(valueLength, count int) Option {
	return func(o *options) {
		o.valueLengthLimit = valueLength
		o.countLimit = count
	}
}
