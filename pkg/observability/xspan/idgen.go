package xspan

import (
	"context"
	"crypto/rand"
	"sync/atomic"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/evplanner/pkg/util/xid"
)

// IDGenerator 实现 [sdktrace.IDGenerator]。
//
// 正常路径读取 crypto/rand；读取失败时回退到 xid 生成器，
// 回退次数可通过 [IDGenerator.FallbackCount] 观察。
type IDGenerator struct {
	read      func([]byte) (int, error)
	fallback  *xid.Generator
	fallbacks atomic.Uint64
}

var _ sdktrace.IDGenerator = (*IDGenerator)(nil)

// NewIDGenerator 创建 ID 生成器。fallback 为 nil 时使用默认配置的 xid 生成器。
func NewIDGenerator(fallback *xid.Generator) *IDGenerator {
	if fallback == nil {
		fallback = xid.NewGenerator()
	}
	return &IDGenerator{
		read:     rand.Read,
		fallback: fallback,
	}
}

// NewIDs 生成新的 trace-id 和 span-id，用于根 span。
func (g *IDGenerator) NewIDs(ctx context.Context) (trace.TraceID, trace.SpanID) {
	return g.newTraceID(), g.newSpanID()
}

// NewSpanID 为已有 trace 生成新的 span-id。
func (g *IDGenerator) NewSpanID(ctx context.Context, traceID trace.TraceID) trace.SpanID {
	return g.newSpanID()
}

// FallbackCount 返回走回退路径的次数
func (g *IDGenerator) FallbackCount() uint64 {
	return g.fallbacks.Load()
}

func (g *IDGenerator) newTraceID() trace.TraceID {
	var tid trace.TraceID
	if g.fill(tid[:]) {
		return tid
	}
	g.fallbacks.Add(1)
	return g.fallback.TraceID()
}

func (g *IDGenerator) newSpanID() trace.SpanID {
	var sid trace.SpanID
	if g.fill(sid[:]) {
		return sid
	}
	g.fallbacks.Add(1)
	return g.fallback.SpanID()
}

// fill 用随机字节填充 b，读取失败或结果全零时返回 false。
func (g *IDGenerator) fill(b []byte) bool {
	if _, err := g.read(b); err != nil {
		return false
	}
	for _, c := range b {
		if c != 0 {
			return true
		}
	}
	return false
}
