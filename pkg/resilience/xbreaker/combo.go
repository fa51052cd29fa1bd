package xbreaker

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker/v2"

	"github.com/omeyang/evplanner/pkg/resilience/xretry"
)

// RetryThenBreak 先重试后熔断
//
// 执行前检查熔断状态，打开时立即返回；允许执行时在重试器的预算内重试，
// 只把最终结果记录到熔断器。重试期间的瞬时失败不影响统计。
type RetryThenBreak struct {
	name    string
	retryer *xretry.Retryer
	tscb    *gobreaker.TwoStepCircuitBreaker[any]
}

// NewRetryThenBreak 创建先重试后熔断执行器，opts 与 [NewBreaker] 相同
func NewRetryThenBreak(name string, retryer *xretry.Retryer, opts ...BreakerOption) (*RetryThenBreak, error) {
	if retryer == nil {
		return nil, ErrNilRetryer
	}
	cfg := newConfig(name, opts)
	return &RetryThenBreak{
		name:    name,
		retryer: retryer,
		tscb:    gobreaker.NewTwoStepCircuitBreaker[any](cfg.settings()),
	}, nil
}

// Do 执行操作
//
// 熔断器打开时 fn 不会被调用，返回的错误满足 [IsOpen]。
// fn 发生 panic 时记为失败并重新抛出。
func (rtb *RetryThenBreak) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if rtb == nil {
		return ErrNilRetryThenBreak
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

	done, cbErr := rtb.tscb.Allow()
	if cbErr != nil {
		return wrapBreakerError(cbErr, rtb.name)
	}

	// done 必须被调用，否则半开状态下的请求计数无法归还
	var err error
	defer func() {
		if r := recover(); r != nil {
			done(fmt.Errorf("panic: %v", r))
			panic(r)
		}
		done(err)
	}()

	err = rtb.retryer.Do(ctx, fn)
	return err
}

// Name 返回熔断器名称
func (rtb *RetryThenBreak) Name() string {
	return rtb.name
}

// State 返回熔断器当前状态
func (rtb *RetryThenBreak) State() State {
	return rtb.tscb.State()
}

// Counts 返回熔断器当前统计计数
func (rtb *RetryThenBreak) Counts() Counts {
	return rtb.tscb.Counts()
}
