package xctx

import "errors"

// contextKey 包私有类型，避免与其他包的 context key 冲突
type contextKey string

const keyRequestID contextKey = "request_id"

// 日志属性键
const (
	KeyTraceID    = "trace_id"
	KeySpanID     = "span_id"
	KeyTraceFlags = "trace_flags"
	KeyRequestID  = "request_id"
)

var (
	// ErrNilContext 表示传入的 context 为 nil。
	ErrNilContext = errors.New("xctx: nil context")

	// ErrMissingRequestID request_id 缺失
	ErrMissingRequestID = errors.New("xctx: missing request_id")

	// ErrMissingTraceID context 中没有有效的 span
	ErrMissingTraceID = errors.New("xctx: missing trace_id")
)
