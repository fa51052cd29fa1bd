// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xtrace: W3C traceparent 解析、格式化和 HTTP 头注入提取
//   - xspan: span 工厂，封装 TracerProvider、资源属性、采样器和属性上限
//   - xexport: 有界队列的批量 span 导出器，带重试和熔断，以及 OTLP 传输构造
//   - xmetrics: 导出管线和 HTTP 请求的 OTel 指标
//   - xlog: 结构化日志，基于 log/slog 扩展
//
// 设计原则：
//   - 遵循 OpenTelemetry 语义规范
//   - 自动从 context 中提取追踪信息注入日志
//   - 不修改 OTel 全局 provider，依赖显式传递
package observability
