package xmetrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricSpansEnqueued = "evplanner.exporter.spans.enqueued"
	metricSpansDropped  = "evplanner.exporter.spans.dropped"
	metricSpansExported = "evplanner.exporter.spans.exported"
	metricBatches       = "evplanner.exporter.batches"
	metricBatchDuration = "evplanner.exporter.batch.duration"
	metricQueueSize     = "evplanner.exporter.queue.size"
)

// 丢弃原因
const (
	DropQueueFull = "queue_full"
	DropShutdown  = "shutdown"
	DropExport    = "export_failed"
)

var (
	attrReason = attribute.Key("reason")
	attrStatus = attribute.Key("status")
)

// ExporterMetrics 批量导出器的指标。nil 接收者的所有方法都是空操作。
type ExporterMetrics struct {
	enqueued metric.Int64Counter
	dropped  metric.Int64Counter
	exported metric.Int64Counter
	batches  metric.Int64Counter
	duration metric.Float64Histogram
	meter    metric.Meter
}

// NewExporterMetrics 创建导出器指标
func NewExporterMetrics(opts ...Option) (*ExporterMetrics, error) {
	meter := newMeter(opts)
	m := &ExporterMetrics{meter: meter}

	var err error
	if m.enqueued, err = meter.Int64Counter(metricSpansEnqueued,
		metric.WithDescription("spans accepted into the export queue"),
		metric.WithUnit("{span}")); err != nil {
		return nil, fmt.Errorf("xmetrics: create counter %s failed: %w", metricSpansEnqueued, err)
	}
	if m.dropped, err = meter.Int64Counter(metricSpansDropped,
		metric.WithDescription("spans dropped before reaching the collector"),
		metric.WithUnit("{span}")); err != nil {
		return nil, fmt.Errorf("xmetrics: create counter %s failed: %w", metricSpansDropped, err)
	}
	if m.exported, err = meter.Int64Counter(metricSpansExported,
		metric.WithDescription("spans delivered to the collector"),
		metric.WithUnit("{span}")); err != nil {
		return nil, fmt.Errorf("xmetrics: create counter %s failed: %w", metricSpansExported, err)
	}
	if m.batches, err = meter.Int64Counter(metricBatches,
		metric.WithDescription("export attempts per batch"),
		metric.WithUnit("{batch}")); err != nil {
		return nil, fmt.Errorf("xmetrics: create counter %s failed: %w", metricBatches, err)
	}
	if m.duration, err = meter.Float64Histogram(metricBatchDuration,
		metric.WithDescription("batch export duration including retries"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("xmetrics: create histogram %s failed: %w", metricBatchDuration, err)
	}
	return m, nil
}

// ObserveQueueSize 注册队列长度的异步观测，返回的函数用于注销
func (m *ExporterMetrics) ObserveQueueSize(size func() int64) (func() error, error) {
	noopUnregister := func() error { return nil }
	if m == nil || size == nil {
		return noopUnregister, nil
	}
	gauge, err := m.meter.Int64ObservableGauge(metricQueueSize,
		metric.WithDescription("spans waiting in the export queue"),
		metric.WithUnit("{span}"))
	if err != nil {
		return noopUnregister, fmt.Errorf("xmetrics: create gauge %s failed: %w", metricQueueSize, err)
	}
	reg, err := m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(gauge, size())
		return nil
	}, gauge)
	if err != nil {
		return noopUnregister, fmt.Errorf("xmetrics: register callback failed: %w", err)
	}
	return reg.Unregister, nil
}

// SpanEnqueued 记录一个 span 进入队列
func (m *ExporterMetrics) SpanEnqueued(ctx context.Context) {
	if m == nil {
		return
	}
	m.enqueued.Add(context.WithoutCancel(ctx), 1)
}

// SpansDropped 记录被丢弃的 span
func (m *ExporterMetrics) SpansDropped(ctx context.Context, n int, reason string) {
	if m == nil || n <= 0 {
		return
	}
	m.dropped.Add(context.WithoutCancel(ctx), int64(n), metric.WithAttributes(attrReason.String(reason)))
}

// BatchExported 记录一次批次导出的结果。spans 为批次大小，elapsed 包含重试时间。
func (m *ExporterMetrics) BatchExported(ctx context.Context, spans int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	// 请求 ctx 可能已取消，指标仍需记录
	ctx = context.WithoutCancel(ctx)
	status := StatusOK
	if err != nil {
		status = StatusError
	} else {
		m.exported.Add(ctx, int64(spans))
	}
	attrs := metric.WithAttributes(attrStatus.String(status))
	m.batches.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}
