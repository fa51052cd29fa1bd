package xexport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/omeyang/evplanner/pkg/observability/xlog"
	"github.com/omeyang/evplanner/pkg/observability/xmetrics"
	"github.com/omeyang/evplanner/pkg/resilience/xbreaker"
	"github.com/omeyang/evplanner/pkg/resilience/xretry"
)

// BreakerName 导出熔断器名称，出现在日志和错误信息中
const BreakerName = "span-exporter"

var _ sdktrace.SpanProcessor = (*Batcher)(nil)

// Stats 导出统计快照
type Stats struct {
	Queued   int    // 队列中等待的 span
	Exported uint64 // 成功导出的 span
	Dropped  uint64 // 丢弃的 span（队列满、导出失败、关闭后到达）
}

// Batcher 异步批量导出 span 的处理器
//
// OnEnd 可被任意多个 goroutine 并发调用；缓冲区只由内部 worker 访问。
type Batcher struct {
	exporter sdktrace.SpanExporter
	o        *options
	rtb      *xbreaker.RetryThenBreak

	queue   chan sdktrace.ReadOnlySpan
	flushCh chan flushRequest
	stopCh  chan struct{}
	done    chan struct{}
	buf     *batch

	// exportCtx 只在 Shutdown 超时时取消，用于打断 worker 正在进行的导出
	exportCtx    context.Context
	cancelExport context.CancelFunc

	// enqueueMu 读锁覆盖 OnEnd 的检查和入队，写锁覆盖 stopped 置位，
	// 保证置位之后队列不再增长，drain 能看到全部已入队的 span
	enqueueMu    sync.RWMutex
	stopped      atomic.Bool
	shutdownOnce sync.Once
	shutdownErr  error
	unregister   func() error

	exported atomic.Uint64
	dropped  atomic.Uint64
}

type flushRequest struct {
	ctx  context.Context
	resp chan error
}

// NewBatcher 创建 Batcher 并启动后台 worker。
//
// 调用方必须调用 Shutdown 释放 worker。
func NewBatcher(exporter sdktrace.SpanExporter, opts ...Option) (*Batcher, error) {
	if exporter == nil {
		return nil, ErrNilExporter
	}
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	o.normalize()

	rtb, err := newRetryThenBreak(o)
	if err != nil {
		return nil, err
	}

	exportCtx, cancel := context.WithCancel(context.Background())
	b := &Batcher{
		exporter:     exporter,
		o:            o,
		rtb:          rtb,
		queue:        make(chan sdktrace.ReadOnlySpan, o.maxQueueSize),
		flushCh:      make(chan flushRequest),
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
		buf:          newBatch(o.maxExportBatchSize, o.maxExportBatchBytes),
		exportCtx:    exportCtx,
		cancelExport: cancel,
	}

	b.unregister, err = o.metrics.ObserveQueueSize(func() int64 { return int64(len(b.queue)) })
	if err != nil {
		cancel()
		return nil, err
	}

	go b.run()
	return b, nil
}

// newRetryThenBreak 每个批次最多 maxRetries+1 次尝试，结果计入熔断统计一次
func newRetryThenBreak(o *options) (*xbreaker.RetryThenBreak, error) {
	logger := o.logger
	retryer := xretry.NewRetryer(
		xretry.WithRetryPolicy(xretry.NewFixedRetry(o.maxRetries+1)),
		xretry.WithBackoffPolicy(xretry.NewExponentialBackoff(
			xretry.WithInitialDelay(o.retryInitialDelay),
			xretry.WithMaxDelay(o.retryMaxDelay),
		)),
		xretry.WithOnRetry(func(attempt int, err error) {
			logger.Debug(context.Background(), "span export attempt failed",
				slog.Int("attempt", attempt), xlog.Err(err))
		}),
	)
	return xbreaker.NewRetryThenBreak(BreakerName, retryer,
		xbreaker.WithTripPolicy(xbreaker.NewConsecutiveFailures(o.breakerThreshold)),
		xbreaker.WithTimeout(o.breakerOpenTimeout),
		xbreaker.WithOnStateChange(func(name string, from, to xbreaker.State) {
			logger.Warn(context.Background(), "exporter breaker state changed",
				xlog.Component(name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		}),
	)
}

// OnStart 不做任何处理
func (b *Batcher) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

// OnEnd 将已结束的 span 放入队列。队列满时丢弃该 span，不阻塞调用方
// （配置了 WithEnqueueWait 时最多等待该时长）。
func (b *Batcher) OnEnd(s sdktrace.ReadOnlySpan) {
	if s == nil || !s.SpanContext().IsSampled() {
		return
	}
	b.enqueueMu.RLock()
	defer b.enqueueMu.RUnlock()
	if b.stopped.Load() {
		b.drop(1, xmetrics.DropShutdown)
		return
	}

	select {
	case b.queue <- s:
		b.o.metrics.SpanEnqueued(context.Background())
		return
	default:
	}

	if b.o.enqueueWait > 0 {
		timer := time.NewTimer(b.o.enqueueWait)
		defer timer.Stop()
		select {
		case b.queue <- s:
			b.o.metrics.SpanEnqueued(context.Background())
			return
		case <-timer.C:
		case <-b.stopCh:
		}
	}
	b.drop(1, xmetrics.DropQueueFull)
}

// ForceFlush 导出队列和缓冲区中的全部 span，阻塞直到完成或 ctx 到期
func (b *Batcher) ForceFlush(ctx context.Context) error {
	if b.stopped.Load() {
		return nil
	}
	req := flushRequest{ctx: ctx, resp: make(chan error, 1)}
	select {
	case b.flushCh <- req:
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown 停止 worker，在 ctx 期限内导出剩余 span，再关闭底层导出器。
// 只执行一次，之后的调用返回首次结果。
func (b *Batcher) Shutdown(ctx context.Context) error {
	b.shutdownOnce.Do(func() {
		b.shutdownErr = b.shutdown(ctx)
	})
	return b.shutdownErr
}

func (b *Batcher) shutdown(ctx context.Context) error {
	// 先关 stopCh，让等待入队的 OnEnd 尽快释放读锁
	close(b.stopCh)
	b.enqueueMu.Lock()
	b.stopped.Store(true)
	b.enqueueMu.Unlock()
	defer b.cancelExport()

	select {
	case <-b.done:
	case <-ctx.Done():
		b.cancelExport()
		<-b.done
	}

	// worker 已退出，缓冲区归当前 goroutine
	var errs error
	if err := ctx.Err(); err != nil {
		n := b.buf.len()
		b.buf.take()
		n += b.discardQueue()
		b.drop(n, xmetrics.DropShutdown)
		if n > 0 {
			b.o.logger.Warn(ctx, "spans discarded at shutdown", xlog.Count(int64(n)), xlog.Err(err))
		}
		errs = err
	} else {
		errs = b.drain(ctx)
	}

	if err := b.unregister(); err != nil {
		errs = errors.Join(errs, err)
	}
	if err := b.exporter.Shutdown(ctx); err != nil {
		errs = errors.Join(errs, fmt.Errorf("xexport: shutdown exporter: %w", err))
	}
	return errs
}

// Stats 返回统计快照
func (b *Batcher) Stats() Stats {
	return Stats{
		Queued:   len(b.queue),
		Exported: b.exported.Load(),
		Dropped:  b.dropped.Load(),
	}
}

// run worker 主循环：按数量/字节数或定时器刷新
func (b *Batcher) run() {
	defer close(b.done)

	ticker := time.NewTicker(b.o.batchTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			return
		case s := <-b.queue:
			if b.buf.add(s) {
				_ = b.exportBuffered(b.exportCtx)
				ticker.Reset(b.o.batchTimeout)
			}
		case <-ticker.C:
			_ = b.exportBuffered(b.exportCtx)
		case req := <-b.flushCh:
			req.resp <- b.drain(req.ctx)
		}
	}
}

// drain 导出调用时刻队列中的全部 span 以及缓冲区。
// 只处理快照长度，持续写入的生产方不会让 drain 无限进行。
func (b *Batcher) drain(ctx context.Context) error {
	var errs error
	for n := len(b.queue); n > 0; n-- {
		s := <-b.queue
		if b.buf.add(s) {
			errs = errors.Join(errs, b.exportBuffered(ctx))
		}
	}
	return errors.Join(errs, b.exportBuffered(ctx))
}

// discardQueue 清空队列，返回清掉的数量
func (b *Batcher) discardQueue() int {
	n := 0
	for {
		select {
		case <-b.queue:
			n++
		default:
			return n
		}
	}
}

func (b *Batcher) exportBuffered(ctx context.Context) error {
	spans := b.buf.take()
	if len(spans) == 0 {
		return nil
	}
	return b.export(ctx, spans)
}

// export 在导出超时内按重试策略导出一个批次，失败时丢弃
func (b *Batcher) export(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	ctx, cancel := context.WithTimeout(ctx, b.o.exportTimeout)
	defer cancel()

	start := time.Now()
	err := b.rtb.Do(ctx, func(ctx context.Context) error {
		return b.exporter.ExportSpans(ctx, spans)
	})
	b.o.metrics.BatchExported(ctx, len(spans), time.Since(start), err)

	if err != nil {
		b.drop(len(spans), xmetrics.DropExport)
		reason := "export_failed"
		if xbreaker.IsBreakerError(err) {
			reason = "breaker_open"
		}
		b.o.logger.Warn(ctx, "span batch discarded",
			xlog.Count(int64(len(spans))), xlog.Reason(reason), xlog.Err(err))
		return fmt.Errorf("xexport: export %d spans: %w", len(spans), err)
	}
	b.exported.Add(uint64(len(spans)))
	return nil
}

func (b *Batcher) drop(n int, reason string) {
	if n <= 0 {
		return
	}
	b.dropped.Add(uint64(n))
	b.o.metrics.SpansDropped(context.Background(), n, reason)
}
