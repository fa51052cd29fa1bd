// Package xspan 负责创建 span：给定上游父上下文和请求元数据，
// 生成新的 span 并挂到正确的 trace 上。
//
// # 设计理念
//
// xspan 基于 OpenTelemetry SDK 的 [sdktrace.TracerProvider] 构建，
// 但不安装任何全局 provider。[Factory] 由调用方显式创建并传递，
// 导出链路通过 [WithSpanProcessor] 注入（通常是 xexport.Batcher）。
//
// # 父子关系
//
//   - parent 有效：新 span 的 trace-id 继承 parent，parent-span-id 记录 parent 的 span-id
//   - parent 无效：以 [trace.WithNewRoot] 开启新 trace，忽略 ctx 中已有的 span
//
// 新 span 的 span-id 总是新生成的。
//
// # ID 生成
//
// [IDGenerator] 优先使用 crypto/rand；熵源读取失败时回退到 xid 的
// 本地唯一 ID，保证 span 创建永不失败，且 ID 永不为零。
//
// # 默认配置
//
//   - 采样器：always（全部记录）
//   - 属性值长度上限 100，属性个数上限 10
//   - 资源属性：service.name、service.namespace、service.version、deployment.environment
package xspan
