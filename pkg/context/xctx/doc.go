// Package xctx 提供请求级 context 字段的存取，并为日志系统提供属性提取。
//
// 追踪信息直接读取 context 中的 OpenTelemetry span，不另存副本：
//   - trace_id    : 追踪标识（W3C 规范，128-bit）
//   - span_id     : 跨度标识（W3C 规范，64-bit）
//   - trace_flags : 追踪标志，仅在已采样时输出
//
// 请求标识由 HTTP 入口写入 context：
//   - request_id  : X-Request-ID 请求头，缺失时生成 UUID
//
// # 命名约定
//
//	WithXxx(ctx, value)    - 注入：将 value 写入 context
//	Xxx(ctx)               - 读取：从 context 读取值，缺失时返回零值
//	RequireXxx(ctx)        - 强制读取：值必须存在，缺失时返回错误
//	EnsureXxx(ctx)         - 确保存在：若已存在则返回，否则自动生成
package xctx
