// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xmetrics: 统一可观测性接口（指标、追踪），提供 OpenTelemetry 实现
//
// 设计原则：
//   - 遵循 OpenTelemetry 语义规范
//   - 默认空实现，未配置时零开销
package observability
