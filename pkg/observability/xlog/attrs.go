package xlog

import (
	"log/slog"
	"time"

	"github.com/omeyang/evplanner/pkg/context/xctx"
)

// 常用属性 Key
const (
	KeyError      = "error"
	KeyStack      = "stack"
	KeyDuration   = "duration"
	KeyCount      = "count"
	KeyComponent  = "component"
	KeyOperation  = "operation"
	KeyMethod     = "method"
	KeyRoute      = "route"
	KeyStatusCode = "status_code"
	KeyReason     = "reason"
	KeyAddr       = "addr"

	// KeyRequestID 引用 xctx 保证跨包一致
	KeyRequestID = xctx.KeyRequestID
)

// Err 创建错误属性，err 为 nil 时返回空属性（会被 slog 忽略）
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Duration 创建耗时属性，输出形如 "1.5s"
func Duration(d time.Duration) slog.Attr {
	return slog.String(KeyDuration, d.String())
}

// Component 创建组件名属性
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Operation 创建操作名属性
func Operation(name string) slog.Attr {
	return slog.String(KeyOperation, name)
}

// Count 创建计数属性
func Count(n int64) slog.Attr {
	return slog.Int64(KeyCount, n)
}

// Method 创建 HTTP 方法属性
func Method(m string) slog.Attr {
	return slog.String(KeyMethod, m)
}

// Route 创建路由模板属性
func Route(r string) slog.Attr {
	return slog.String(KeyRoute, r)
}

// StatusCode 创建 HTTP 状态码属性
func StatusCode(code int) slog.Attr {
	return slog.Int(KeyStatusCode, code)
}

// Reason 创建原因属性
func Reason(r string) slog.Attr {
	return slog.String(KeyReason, r)
}

// Addr 创建地址属性
func Addr(a string) slog.Attr {
	return slog.String(KeyAddr, a)
}
