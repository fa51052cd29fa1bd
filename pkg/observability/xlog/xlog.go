package xlog

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Logger 日志接口
//
// 所有方法都需要 context.Context 参数，追踪信息从 ctx 中提取。
// 方法签名只接受 slog.Attr，避免隐式 key-value 转换。
type Logger interface {
	Debug(ctx context.Context, msg string, attrs ...slog.Attr)
	Info(ctx context.Context, msg string, attrs ...slog.Attr)
	Warn(ctx context.Context, msg string, attrs ...slog.Attr)
	Error(ctx context.Context, msg string, attrs ...slog.Attr)

	// Stack 记录带当前 goroutine 调用栈的错误日志
	Stack(ctx context.Context, msg string, attrs ...slog.Attr)

	// With 返回带额外属性的派生 Logger，派生 logger 共享父级的级别
	With(attrs ...slog.Attr) Logger

	// WithGroup 返回带分组的派生 Logger
	WithGroup(name string) Logger
}

// Leveler 级别控制接口
type Leveler interface {
	SetLevel(level Level)
	GetLevel() Level
	Enabled(ctx context.Context, level Level) bool
}

// LoggerWithLevel 组合接口：Logger + Leveler，Build() 返回此接口
type LoggerWithLevel interface {
	Logger
	Leveler
}

// Discard 返回丢弃所有输出的 Logger，用于未注入 logger 的组件和测试
func Discard() LoggerWithLevel {
	return newXLogger(slog.DiscardHandler, new(slog.LevelVar), false, nil)
}

// Slog 返回与 l 共享 handler 的 *slog.Logger。
// l 不是本包创建的实例时返回 slog.Default()。
func Slog(l Logger) *slog.Logger {
	if xl, ok := l.(*xlogger); ok {
		return slog.New(xl.handler)
	}
	return slog.Default()
}

func newXLogger(h slog.Handler, lv *slog.LevelVar, addSource bool, onError func(error)) *xlogger {
	return &xlogger{
		handler:        h,
		levelVar:       lv,
		onError:        onError,
		errorCount:     new(atomic.Uint64),
		addSource:      addSource,
		inErrorHandler: new(atomic.Bool),
	}
}
