package pipeline

import (
	"context"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// HandlerFunc 可返回错误的处理函数。错误由 Handle 写入响应。
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// StatusCoder 携带 HTTP 状态码的错误
type StatusCoder interface {
	HTTPStatus() int
}

// StatusOf 返回 err 对应的状态码：实现了 StatusCoder 的取其值，否则 500。
func StatusOf(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		if code := sc.HTTPStatus(); code >= 400 && code <= 599 {
			return code
		}
	}
	return http.StatusInternalServerError
}

// Handle 把 HandlerFunc 适配为 http.Handler。
//
// 错误先记录到当前 span（错误事件、error 属性、错误状态），
// 再以 StatusOf(err) 和 err.Error() 写入响应。有没有 span 响应都一样。
func Handle(fn HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}
		RecordError(r.Context(), err)
		http.Error(w, err.Error(), StatusOf(err))
	})
}

// RecordError 在 ctx 当前 span 上记录错误，并标记请求失败，
// 使请求结束时 span 状态保持为错误。
func RecordError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetAttributes(attribute.String(AttrError, err.Error()))
	span.SetStatus(codes.Error, err.Error())
	if st, ok := ctx.Value(stateKey{}).(*requestState); ok {
		st.failed = true
	}
}
