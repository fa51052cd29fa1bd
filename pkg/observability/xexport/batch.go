package xexport

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// 字节估算使用的固定开销：id、时间戳、kind、status 等定长字段
const (
	spanOverhead  = 64
	eventOverhead = 16
	linkOverhead  = 32
)

// batch 由 worker goroutine 独占的缓冲区
type batch struct {
	spans    []sdktrace.ReadOnlySpan
	bytes    int
	maxSpans int
	maxBytes int
}

func newBatch(maxSpans, maxBytes int) *batch {
	return &batch{
		spans:    make([]sdktrace.ReadOnlySpan, 0, maxSpans),
		maxSpans: maxSpans,
		maxBytes: maxBytes,
	}
}

// add 追加 span，返回缓冲区是否已达到数量或字节上限
func (b *batch) add(s sdktrace.ReadOnlySpan) bool {
	b.spans = append(b.spans, s)
	b.bytes += estimateSize(s)
	return len(b.spans) >= b.maxSpans || b.bytes >= b.maxBytes
}

// take 取出全部 span 并重置缓冲区。返回的切片归调用方所有。
func (b *batch) take() []sdktrace.ReadOnlySpan {
	if len(b.spans) == 0 {
		return nil
	}
	out := b.spans
	b.spans = make([]sdktrace.ReadOnlySpan, 0, b.maxSpans)
	b.bytes = 0
	return out
}

func (b *batch) len() int {
	return len(b.spans)
}

// estimateSize 估算 span 编码后的大小，只用于批次切分，不追求精确
func estimateSize(s sdktrace.ReadOnlySpan) int {
	n := spanOverhead + len(s.Name())
	for _, kv := range s.Attributes() {
		n += len(kv.Key) + len(kv.Value.Emit())
	}
	for _, ev := range s.Events() {
		n += eventOverhead + len(ev.Name)
		for _, kv := range ev.Attributes {
			n += len(kv.Key) + len(kv.Value.Emit())
		}
	}
	n += len(s.Links()) * linkOverhead
	n += len(s.Status().Description)
	return n
}
