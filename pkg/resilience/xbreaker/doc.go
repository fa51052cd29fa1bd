// Package xbreaker 提供熔断器，底层使用 [sony/gobreaker/v2]。
//
// # 熔断器状态
//
//   - StateClosed（关闭）：正常状态，请求正常通过
//   - StateOpen（打开）：熔断状态，请求直接失败，不触达下游
//   - StateHalfOpen（半开）：探测状态，允许部分请求通过
//
// # 两种用法
//
// [Breaker]：每次调用都计入熔断统计。
//
// [RetryThenBreak]：先检查熔断状态，再在 xretry 的预算内重试，
// 只把最终结果计入熔断统计。导出器使用这种模式：一个批次的多次重试
// 只算一次失败，而熔断打开时批次立即丢弃，不再消耗导出超时。
//
// 熔断器错误包装为 [BreakerError]，其 Retryable() 返回 false，
// 与 xretry 组合时不会被重试。
//
// [sony/gobreaker/v2]: https://github.com/sony/gobreaker
package xbreaker
