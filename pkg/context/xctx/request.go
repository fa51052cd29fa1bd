package xctx

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// maxRequestIDLen 外部传入的 request id 超过该长度时截断，防止日志和 span 属性被撑大
const maxRequestIDLen = 128

// WithRequestID 将 request ID 注入 context
//
// 如果 ctx 为 nil，返回 ErrNilContext。
func WithRequestID(ctx context.Context, requestID string) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	return context.WithValue(ctx, keyRequestID, requestID), nil
}

// RequestID 从 context 提取 request ID，不存在返回空字符串
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(keyRequestID).(string); ok {
		return v
	}
	return ""
}

// RequireRequestID 从 context 提取 request ID，不存在返回 ErrMissingRequestID
func RequireRequestID(ctx context.Context) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	v := RequestID(ctx)
	if v == "" {
		return "", ErrMissingRequestID
	}
	return v, nil
}

// GenerateRequestID 生成 UUIDv4 格式的 request ID
func GenerateRequestID() string {
	return uuid.NewString()
}

// NormalizeRequestID 清理外部传入的 request ID：去除首尾空白并限制长度。
// 结果为空时生成新的 ID。
func NormalizeRequestID(raw string) string {
	id := strings.TrimSpace(raw)
	if len(id) > maxRequestIDLen {
		id = id[:maxRequestIDLen]
	}
	if id == "" {
		return GenerateRequestID()
	}
	return id
}

// EnsureRequestID 确保 context 中存在 request ID。
//
// 已存在时原样返回（不验证/不纠正），否则生成新的并注入。
func EnsureRequestID(ctx context.Context) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if RequestID(ctx) != "" {
		return ctx, nil
	}
	return WithRequestID(ctx, GenerateRequestID())
}
