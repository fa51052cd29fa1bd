// Package xretry 提供重试策略和退避策略，底层使用 [avast/retry-go/v5]。
//
// # 设计理念
//
//   - RetryPolicy：定义是否应该重试
//   - BackoffPolicy：定义重试间隔时间
//
// 导出链路上的重试是"有限次数 + 有限时间"的：调用方通过 ctx 给整次重试
// 设定总预算，ctx 到期后不再发起新的尝试，也不会在退避中继续等待。
//
// # 使用方式
//
//	retryer := xretry.NewRetryer(
//	    xretry.WithRetryPolicy(xretry.NewFixedRetry(3)),
//	    xretry.WithBackoffPolicy(xretry.NewExponentialBackoff()),
//	)
//	err := retryer.Do(ctx, func(ctx context.Context) error {
//	    return export(ctx, batch)
//	})
//
// # 错误分类
//
//   - NewPermanentError(err)：永久性错误，不再重试
//   - NewTemporaryError(err)：临时性错误，应该重试
//   - 实现 Retryable() bool 的错误（如 xbreaker.BreakerError）按其返回值判断
//   - 其他错误默认可重试
//
// [avast/retry-go/v5]: https://github.com/avast/retry-go
package xretry
