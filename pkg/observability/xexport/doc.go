// Package xexport 提供 span 的异步批量导出。
//
// [Batcher] 实现 [sdktrace.SpanProcessor]：请求结束时 OnEnd 把 span 放入有界队列，
// 单个后台 goroutine 按数量、字节数或定时器触发批量导出。
//
// # 丢弃策略
//
// 队列满时丢弃新到的 span（drop-newest），生产方永不阻塞，
// 可通过 [WithEnqueueWait] 配置有上限的入队等待。
//
// # 失败处理
//
// 每个批次在导出超时内按 xretry 策略重试，用尽后丢弃并计数；
// 连续失败的批次触发 xbreaker 熔断，熔断期间批次直接丢弃，
// 采集端不可用时不会在每个批次上耗尽超时。
//
// # 关闭
//
// [Batcher.Shutdown] 只执行一次：停止定时刷新，在 ctx 期限内导出缓冲中的全部 span，
// 然后关闭底层导出器。重复调用返回首次结果。
package xexport
