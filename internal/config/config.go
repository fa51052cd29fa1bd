// Package config 汇总 ev-planner 的运行配置。
//
// 优先级从低到高：内置默认值、可选的 YAML/JSON 配置文件、环境变量、命令行参数。
// 命令行参数由 cmd/evplanner 在 Load 之后直接写入返回的 Config。
package config

import (
	"strings"
	"time"

	"github.com/omeyang/evplanner/pkg/observability/xexport"
	"github.com/omeyang/evplanner/pkg/observability/xspan"
)

// Config 服务配置
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Service  ServiceConfig  `koanf:"service"`
	Exporter ExporterConfig `koanf:"exporter"`
	Batch    BatchConfig    `koanf:"batch"`
	Sampler  SamplerConfig  `koanf:"sampler"`
	Limits   LimitsConfig   `koanf:"limits"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Routing  RoutingConfig  `koanf:"routing"`
	Log      LogConfig      `koanf:"log"`
}

// ServerConfig HTTP 监听配置
type ServerConfig struct {
	Addr            string        `koanf:"addr" envconfig:"PLANNER_ADDR"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" envconfig:"PLANNER_SHUTDOWN_TIMEOUT"`
	ReadTimeout     time.Duration `koanf:"read_timeout" envconfig:"PLANNER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `koanf:"write_timeout" envconfig:"PLANNER_WRITE_TIMEOUT"`
}

// ServiceConfig 写入每个 span 资源属性的服务标识
type ServiceConfig struct {
	Name        string `koanf:"name" envconfig:"OTEL_SERVICE_NAME"`
	Namespace   string `koanf:"namespace" envconfig:"OTEL_SERVICE_NAMESPACE"`
	Version     string `koanf:"version" envconfig:"OTEL_SERVICE_VERSION"`
	Environment string `koanf:"environment" envconfig:"OTEL_DEPLOYMENT_ENVIRONMENT"`
}

// ExporterConfig OTLP 采集端配置
type ExporterConfig struct {
	Endpoint string        `koanf:"endpoint" envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Protocol string        `koanf:"protocol" envconfig:"OTEL_EXPORTER_OTLP_PROTOCOL"`
	Timeout  time.Duration `koanf:"timeout" envconfig:"OTEL_EXPORTER_OTLP_TIMEOUT"`
	Headers  Headers       `koanf:"headers" envconfig:"OTEL_EXPORTER_OTLP_HEADERS"`
}

// BatchConfig Batcher 的队列和批次参数
type BatchConfig struct {
	MaxQueueSize       int           `koanf:"max_queue_size" envconfig:"OTEL_BSP_MAX_QUEUE_SIZE"`
	MaxExportBatchSize int           `koanf:"max_export_batch_size" envconfig:"OTEL_BSP_MAX_EXPORT_BATCH_SIZE"`
	ScheduleDelay      time.Duration `koanf:"schedule_delay" envconfig:"OTEL_BSP_SCHEDULE_DELAY"`
	MaxRetries         int           `koanf:"max_retries" envconfig:"PLANNER_EXPORT_MAX_RETRIES"`
	EnqueueWait        time.Duration `koanf:"enqueue_wait" envconfig:"PLANNER_EXPORT_ENQUEUE_WAIT"`
}

// SamplerConfig 采样器
type SamplerConfig struct {
	Name  string  `koanf:"name" envconfig:"OTEL_TRACES_SAMPLER"`
	Ratio float64 `koanf:"ratio" envconfig:"OTEL_TRACES_SAMPLER_ARG"`
}

// LimitsConfig span 属性上限，小于等于 0 表示不限制
type LimitsConfig struct {
	AttributeValueLength int `koanf:"attribute_value_length" envconfig:"OTEL_ATTRIBUTE_VALUE_LENGTH_LIMIT"`
	AttributeCount       int `koanf:"attribute_count" envconfig:"OTEL_ATTRIBUTE_COUNT_LIMIT"`
}

// MetricsConfig 导出管线自身指标
type MetricsConfig struct {
	Enabled  bool          `koanf:"enabled" envconfig:"OTEL_METRICS_ENABLED"`
	Endpoint string        `koanf:"endpoint" envconfig:"OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"`
	Interval time.Duration `koanf:"interval" envconfig:"OTEL_METRIC_EXPORT_INTERVAL"`
}

// RoutingConfig 下游路径规划引擎，URL 为空时不调用
type RoutingConfig struct {
	URL     string        `koanf:"url" envconfig:"PLANNER_ROUTING_URL"`
	Timeout time.Duration `koanf:"timeout" envconfig:"PLANNER_ROUTING_TIMEOUT"`
}

// LogConfig 日志
type LogConfig struct {
	Level  string `koanf:"level" envconfig:"LOG_LEVEL"`
	Format string `koanf:"format" envconfig:"LOG_FORMAT"`
	File   string `koanf:"file" envconfig:"LOG_FILE"`
}

// 默认值
const (
	DefaultAddr            = "0.0.0.0:3001"
	DefaultEndpoint        = "http://otel-collector:4318/v1/traces"
	DefaultExportTimeout   = 10 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultServiceVersion  = "0.1.0"
	DefaultMetricsInterval = 30 * time.Second
	DefaultRoutingTimeout  = 5 * time.Second
)

// Default 返回全部默认值
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            DefaultAddr,
			ShutdownTimeout: DefaultShutdownTimeout,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
		},
		Service: ServiceConfig{
			Name:      xspan.DefaultServiceName,
			Namespace: xspan.DefaultServiceNamespace,
			Version:   DefaultServiceVersion,
		},
		Exporter: ExporterConfig{
			Endpoint: DefaultEndpoint,
			Protocol: xexport.ProtocolHTTP,
			Timeout:  DefaultExportTimeout,
		},
		Batch: BatchConfig{
			MaxQueueSize:       xexport.DefaultMaxQueueSize,
			MaxExportBatchSize: xexport.DefaultMaxExportBatchSize,
			ScheduleDelay:      xexport.DefaultBatchTimeout,
			MaxRetries:         xexport.DefaultMaxRetries,
		},
		Sampler: SamplerConfig{
			Name:  xspan.SamplerAlways,
			Ratio: 1.0,
		},
		Limits: LimitsConfig{
			AttributeValueLength: xspan.DefaultAttributeValueLengthLimit,
			AttributeCount:       xspan.DefaultAttributeCountLimit,
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Interval: DefaultMetricsInterval,
		},
		Routing: RoutingConfig{
			Timeout: DefaultRoutingTimeout,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// MetricsEndpoint 返回 OTLP/HTTP 指标采集地址。未显式配置时由 trace 地址推导：
// 路径 /v1/traces 换成 /v1/metrics。指标固定走 HTTP，trace 使用 grpc 时需显式配置。
func (c *Config) MetricsEndpoint() string {
	if c.Metrics.Endpoint != "" {
		return c.Metrics.Endpoint
	}
	if base, ok := strings.CutSuffix(c.Exporter.Endpoint, "/v1/traces"); ok {
		return base + "/v1/metrics"
	}
	return c.Exporter.Endpoint
}

// ShutdownBudget 遥测关闭的总期限：导出超时再留一秒余量
func (c *Config) ShutdownBudget() time.Duration {
	return c.Exporter.Timeout + time.Second
}
