package xmetrics

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// DefaultInstrumentationName 默认 instrumentation 名称
const DefaultInstrumentationName = "github.com/omeyang/evplanner/xmetrics"

// 状态属性取值
const (
	StatusOK    = "ok"
	StatusError = "error"
)

type config struct {
	instrumentationName string
	meterProvider       metric.MeterProvider
}

// Option 指标配置选项
type Option func(*config)

// WithInstrumentationName 设置 instrumentation 名称
func WithInstrumentationName(name string) Option {
	return func(cfg *config) {
		if name != "" {
			cfg.instrumentationName = name
		}
	}
}

// WithMeterProvider 设置 MeterProvider。未设置时使用 noop 实现，不读取全局 provider。
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(cfg *config) {
		if provider != nil {
			cfg.meterProvider = provider
		}
	}
}

func newMeter(opts []Option) metric.Meter {
	cfg := &config{
		instrumentationName: DefaultInstrumentationName,
		meterProvider:       noop.NewMeterProvider(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg.meterProvider.Meter(cfg.instrumentationName)
}
