// Package xmetrics 是 xdiskcache 的观测层：操作级的 span 与指标，以及占用 gauge。
//
// 缓存代码只依赖 Observer/Span 两个接口，默认 NoopObserver；
// NewOTelObserver 提供 OpenTelemetry 实现。
//
//	obs, _ := xmetrics.NewOTelObserver(xmetrics.WithMeterProvider(mp))
//	ctx, span := xmetrics.Start(ctx, obs, xmetrics.SpanOptions{
//		Component: "xdiskcache",
//		Operation: "get",
//	})
//	defer span.End(xmetrics.Result{Err: err, Bytes: n})
//
// # 指标
//
// 操作指标带 component / operation / status 三个维度，status 取 ok、error 或 miss：
//
//   - xdiskcache.operations：次数
//   - xdiskcache.operation.duration：耗时（秒）
//   - xdiskcache.bytes：读写字节数
//   - xdiskcache.evictions：操作引起的淘汰和过期清理
//
// RegisterUsage 注册 xdiskcache.usage.* 异步 gauge（weight、capacity、
// entries、pending），带 mode 维度。
package xmetrics
