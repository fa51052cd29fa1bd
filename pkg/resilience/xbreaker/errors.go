package xbreaker

import (
	"errors"
	"fmt"

	"github.com/sony/gobreaker/v2"
)

// 参数校验错误
var (
	ErrNilBreaker        = errors.New("xbreaker: breaker cannot be nil")
	ErrNilRetryer        = errors.New("xbreaker: retryer cannot be nil")
	ErrNilRetryThenBreak = errors.New("xbreaker: retry-then-break cannot be nil")
	ErrNilContext        = errors.New("xbreaker: context cannot be nil")
	ErrNilFunc           = errors.New("xbreaker: function cannot be nil")
)

// BreakerError 熔断器错误包装类型
//
// 包装 ErrOpenState、ErrTooManyRequests，Retryable() 返回 false。
type BreakerError struct {
	Err   error  // 原始错误
	Name  string // 熔断器名称
	State State  // 错误发生时的状态
}

// Error 实现 error 接口
func (e *BreakerError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("breaker %s: %v", e.Name, e.Err)
	}
	return e.Err.Error()
}

// Unwrap 实现 errors.Unwrap 接口
func (e *BreakerError) Unwrap() error {
	return e.Err
}

// Retryable 熔断器错误不应重试
func (e *BreakerError) Retryable() bool {
	return false
}

// wrapBreakerError 如果是熔断器错误则包装，否则原样返回。
//
// 状态从错误类型推导，而不是事后查询 State()：Execute 返回后状态可能已被其他 goroutine 改变。
// 只比较直接的 sentinel，不遍历错误链，避免把内层熔断器的错误归到当前熔断器。
func wrapBreakerError(err error, name string) error {
	if err == nil {
		return nil
	}
	var be *BreakerError
	if errors.As(err, &be) {
		return err
	}
	switch err { //nolint:errorlint // 只匹配直接的 sentinel
	case gobreaker.ErrOpenState:
		return &BreakerError{Err: err, Name: name, State: StateOpen}
	case gobreaker.ErrTooManyRequests:
		return &BreakerError{Err: err, Name: name, State: StateHalfOpen}
	}
	return err
}

// IsOpen 检查错误是否是熔断器打开错误
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState)
}

// IsTooManyRequests 检查错误是否是半开状态请求过多错误
func IsTooManyRequests(err error) bool {
	return errors.Is(err, gobreaker.ErrTooManyRequests)
}

// IsBreakerError 检查错误是否是熔断器拦截产生的错误
func IsBreakerError(err error) bool {
	return IsOpen(err) || IsTooManyRequests(err)
}
