// Package xtrace 负责 W3C Trace Context 在传输层上的提取和注入。
//
// # 设计理念
//
// xtrace 只做 carrier 与 [trace.SpanContext] 之间的转换，不创建 span，
// 也不维护任何进程级状态。span 的创建由 xspan 负责，导出由 xexport 负责。
//
// 支持的头：
//   - traceparent: W3C Trace Context 标准头
//   - tracestate: W3C Trace Context 厂商扩展信息，原样透传
//
// # traceparent 格式
//
// 格式：{version}-{trace-id}-{parent-id}-{trace-flags}
// 示例：00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01
//
// 解析规则：
//   - carrier 中的 key 大小写不敏感
//   - 值先 trim 再统一转小写，大写十六进制输入同样接受
//   - 版本 "ff" 保留，始终无效
//   - 版本 "00" 必须恰好 55 字符
//   - 未知版本（> "00"）按 version-00 格式解析前 4 个字段，第 56 位必须是 '-'
//   - trace-id、parent-id 全零视为无效
//   - trace-flags 只保留 sampled 位
//
// 任何不合法的输入都返回"无上游上下文"，从不返回错误，调用方据此开启新 trace。
//
// # 使用方式
//
//	sc, ok := xtrace.ExtractFromHTTPHeader(r.Header)
//	if ok {
//	    // sc 是远端父上下文
//	}
//
// 客户端注入：
//
//	xtrace.InjectToRequest(ctx, req)
//
// 需要标准 OpenTelemetry 接口时使用 [Propagator]，
// 它实现了 [propagation.TextMapPropagator]。
package xtrace
