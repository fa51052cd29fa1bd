package xlog

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// 全局 Logger，供没有注入 logger 的代码路径使用（如 OTel 内部错误回调）。
// 服务端组件优先显式持有 Logger。
var globalLogger atomic.Pointer[LoggerWithLevel]

// Default 返回全局默认 Logger，未设置时惰性创建（stderr，Info，text）
func Default() LoggerWithLevel {
	if l := globalLogger.Load(); l != nil {
		return *l
	}
	l, _, err := New().Build()
	if err != nil {
		l = Discard()
	}
	// 并发初始化时保留先写入的实例
	if globalLogger.CompareAndSwap(nil, &l) {
		return l
	}
	return *globalLogger.Load()
}

// SetDefault 替换全局默认 Logger，nil 忽略
func SetDefault(l LoggerWithLevel) {
	if l == nil {
		return
	}
	globalLogger.Store(&l)
}

// ResetDefault 重置全局 Logger 为未初始化状态（用于测试）
func ResetDefault() {
	globalLogger.Store(nil)
}

// Info 使用全局 Logger 记录 Info 级别日志
func Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	Default().Info(ctx, msg, attrs...)
}

// Warn 使用全局 Logger 记录 Warn 级别日志
func Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	Default().Warn(ctx, msg, attrs...)
}

// Error 使用全局 Logger 记录 Error 级别日志
func Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	Default().Error(ctx, msg, attrs...)
}
