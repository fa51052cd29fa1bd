package xbreaker

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Breaker 熔断器执行器
//
// 每次 Do 调用都计入熔断统计。并发安全。
type Breaker struct {
	name          string
	tripPolicy    TripPolicy
	isSuccessful  func(err error) bool
	timeout       time.Duration
	interval      time.Duration
	maxRequests   uint32
	onStateChange func(name string, from, to State)

	cb *gobreaker.CircuitBreaker[any]
}

// BreakerOption 熔断器配置选项
type BreakerOption func(*Breaker)

// WithTripPolicy 设置熔断判定策略，nil 忽略
func WithTripPolicy(p TripPolicy) BreakerOption {
	return func(b *Breaker) {
		if p != nil {
			b.tripPolicy = p
		}
	}
}

// WithIsSuccessful 设置成功判定函数。
// 返回 true 的错误不计入失败，例如调用方主动取消。
func WithIsSuccessful(f func(err error) bool) BreakerOption {
	return func(b *Breaker) {
		b.isSuccessful = f
	}
}

// WithTimeout 设置 Open 状态持续时间，到期后进入 HalfOpen
//
// 默认值：60 秒
func WithTimeout(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithInterval 设置 Closed 状态下清除统计的周期，0 表示持续累积
func WithInterval(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		if d >= 0 {
			b.interval = d
		}
	}
}

// WithMaxRequests 设置 HalfOpen 状态下允许通过的最大请求数
//
// 默认值：1
func WithMaxRequests(n uint32) BreakerOption {
	return func(b *Breaker) {
		if n > 0 {
			b.maxRequests = n
		}
	}
}

// WithOnStateChange 设置状态变化回调
func WithOnStateChange(f func(name string, from, to State)) BreakerOption {
	return func(b *Breaker) {
		b.onStateChange = f
	}
}

// NewBreaker 创建熔断器执行器
//
// 默认配置：
//   - 熔断策略：连续失败 5 次触发熔断
//   - 超时时间：60 秒
//   - HalfOpen 最大请求数：1
func NewBreaker(name string, opts ...BreakerOption) *Breaker {
	b := newConfig(name, opts)
	b.cb = gobreaker.NewCircuitBreaker[any](b.settings())
	return b
}

func newConfig(name string, opts []BreakerOption) *Breaker {
	b := &Breaker{
		name:        name,
		tripPolicy:  NewConsecutiveFailures(5),
		timeout:     60 * time.Second,
		maxRequests: 1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// settings 构建 gobreaker 配置
func (b *Breaker) settings() gobreaker.Settings {
	st := gobreaker.Settings{
		Name:        b.name,
		MaxRequests: b.maxRequests,
		Interval:    b.interval,
		Timeout:     b.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return b.tripPolicy.ReadyToTrip(counts)
		},
	}
	if b.isSuccessful != nil {
		st.IsSuccessful = b.isSuccessful
	}
	if b.onStateChange != nil {
		st.OnStateChange = func(name string, from, to gobreaker.State) {
			b.onStateChange(name, from, to)
		}
	}
	return st
}

// Do 执行受熔断器保护的操作
//
// ctx 已取消时直接返回 ctx 错误，不计入统计。
// 熔断器打开时 fn 不会被执行，返回包装了 ErrOpenState 的 [BreakerError]。
func (b *Breaker) Do(ctx context.Context, fn func() error) error {
	if b == nil {
		return ErrNilBreaker
	}
	if ctx == nil {
		return ErrNilContext
	}
	if fn == nil {
		return ErrNilFunc
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	return wrapBreakerError(err, b.name)
}

// Name 返回熔断器名称
func (b *Breaker) Name() string {
	return b.name
}

// State 返回当前状态
func (b *Breaker) State() State {
	return b.cb.State()
}

// Counts 返回当前统计计数
func (b *Breaker) Counts() Counts {
	return b.cb.Counts()
}
