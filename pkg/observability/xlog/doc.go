// Package xlog 基于 log/slog 的结构化日志库。
//
// # 核心功能
//
//   - Builder 模式配置（输出目标、级别、格式、轮转）
//   - 自动从 context 注入 trace_id、span_id、request_id（EnrichHandler，默认启用）
//   - 动态级别调整
//   - 固定属性（如 service.name）
//   - 全局 Logger 便利函数
//
// # 创建 Logger
//
// Builder 遵循 first-error-wins：第一个配置错误会在 [Builder.Build] 时返回。
//
//	logger, cleanup, err := xlog.New().
//		SetLevelString("debug").
//		SetFormat("json").
//		SetRotation("/var/log/evplanner/app.log").
//		Build()
//	defer cleanup()
//
// # 与 *slog.Logger 互通
//
// 需要 *slog.Logger 的第三方代码使用 [Slog] 获取共享同一 handler 的桥接实例。
//
// # EnrichHandler 注意事项
//
// 对启用了 enrich 的 logger 调用 WithGroup 时，trace_id 等注入字段会被归入 group 下。
package xlog
