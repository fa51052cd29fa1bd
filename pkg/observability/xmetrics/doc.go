// Package xmetrics 定义服务自身的 OpenTelemetry 指标。
//
// 指标按组件分组，每组一个结构体，方法对 nil 接收者安全：
// 未启用指标时调用方直接持有 nil，无需判空。
//
// # 指标命名
//
// 导出器：
//   - evplanner.exporter.spans.enqueued
//   - evplanner.exporter.spans.dropped（属性 reason）
//   - evplanner.exporter.spans.exported
//   - evplanner.exporter.batches（属性 status）
//   - evplanner.exporter.batch.duration
//   - evplanner.exporter.queue.size
//
// HTTP：
//   - evplanner.http.server.requests（属性 http.route / http.method / http.status_code）
//   - evplanner.http.server.duration
package xmetrics
