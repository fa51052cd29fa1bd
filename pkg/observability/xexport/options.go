package xexport

import (
	"time"

	"github.com/omeyang/evplanner/pkg/observability/xlog"
	"github.com/omeyang/evplanner/pkg/observability/xmetrics"
)

// 默认值
const (
	DefaultMaxQueueSize        = 2048
	DefaultMaxExportBatchSize  = 512
	DefaultMaxExportBatchBytes = 1 << 20
	DefaultBatchTimeout        = 5 * time.Second
	DefaultExportTimeout       = 10 * time.Second
	DefaultMaxRetries          = 2
	DefaultRetryInitialDelay   = 100 * time.Millisecond
	DefaultRetryMaxDelay       = time.Second
	DefaultBreakerThreshold    = 5
	DefaultBreakerOpenTimeout  = 30 * time.Second
)

type options struct {
	maxQueueSize        int
	maxExportBatchSize  int
	maxExportBatchBytes int
	batchTimeout        time.Duration
	exportTimeout       time.Duration
	enqueueWait         time.Duration
	maxRetries          int
	retryInitialDelay   time.Duration
	retryMaxDelay       time.Duration
	breakerThreshold    uint32
	breakerOpenTimeout  time.Duration
	metrics             *xmetrics.ExporterMetrics
	logger              xlog.Logger
}

// Option 配置 Batcher
type Option func(*options)

func defaultOptions() *options {
	return &options{
		maxQueueSize:        DefaultMaxQueueSize,
		maxExportBatchSize:  DefaultMaxExportBatchSize,
		maxExportBatchBytes: DefaultMaxExportBatchBytes,
		batchTimeout:        DefaultBatchTimeout,
		exportTimeout:       DefaultExportTimeout,
		maxRetries:          DefaultMaxRetries,
		retryInitialDelay:   DefaultRetryInitialDelay,
		retryMaxDelay:       DefaultRetryMaxDelay,
		breakerThreshold:    DefaultBreakerThreshold,
		breakerOpenTimeout:  DefaultBreakerOpenTimeout,
		logger:              xlog.Discard(),
	}
}

// normalize 批次大小不能超过队列容量
func (o *options) normalize() {
	if o.maxExportBatchSize > o.maxQueueSize {
		o.maxExportBatchSize = o.maxQueueSize
	}
}

// WithMaxQueueSize 设置队列容量，非正数忽略
func WithMaxQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxQueueSize = n
		}
	}
}

// WithMaxExportBatchSize 设置单批次最大 span 数，非正数忽略
func WithMaxExportBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxExportBatchSize = n
		}
	}
}

// WithMaxExportBatchBytes 设置单批次估算字节上限，非正数忽略
func WithMaxExportBatchBytes(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxExportBatchBytes = n
		}
	}
}

// WithBatchTimeout 设置定时刷新周期，非正数忽略
func WithBatchTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.batchTimeout = d
		}
	}
}

// WithExportTimeout 设置单批次导出预算（包含重试），非正数忽略
func WithExportTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.exportTimeout = d
		}
	}
}

// WithEnqueueWait 设置队列满时 OnEnd 的最长等待时间，默认 0 即立即丢弃
func WithEnqueueWait(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.enqueueWait = d
		}
	}
}

// WithMaxRetries 设置首次失败后的重试次数，负数忽略
func WithMaxRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// WithRetryBackoff 设置指数退避的初始和最大间隔
func WithRetryBackoff(initial, maxDelay time.Duration) Option {
	return func(o *options) {
		if initial > 0 {
			o.retryInitialDelay = initial
		}
		if maxDelay > 0 {
			o.retryMaxDelay = maxDelay
		}
	}
}

// WithBreaker 设置熔断阈值（连续失败批次数）和熔断持续时间
func WithBreaker(threshold uint32, openTimeout time.Duration) Option {
	return func(o *options) {
		if threshold > 0 {
			o.breakerThreshold = threshold
		}
		if openTimeout > 0 {
			o.breakerOpenTimeout = openTimeout
		}
	}
}

// WithMetrics 设置导出器指标，nil 表示不记录
func WithMetrics(m *xmetrics.ExporterMetrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithLogger 设置日志，nil 忽略
func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
