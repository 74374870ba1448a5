// Package xlru 提供按权重限容、按最近使用顺序淘汰的索引。
//
// xlru 基于 github.com/hashicorp/golang-lru/v2/simplelru 的有序 map，
// 在其上实现权重计量、淘汰驱动和年龄过期。索引只记录 key 与权重，
// 不持有值本身，适合作为磁盘缓存等外部存储的内存元数据。
//
// # 计量模式
//
//   - ModeSize：容量为字节预算，权重为条目字节数，插入后可能连续淘汰多个最旧条目
//   - ModeCount：容量为最大条目数，权重固定为 1
//
// 模式在 New 时确定，之后只能通过 Resize 调整容量。
//
// # 处置回调
//
// WithOnDispose 注册的回调在条目离开索引之前执行（淘汰、过期、Remove），
// 此时条目仍在索引中。Purge 不触发回调；替换已有 key 也不触发。
//
// # 过期
//
// MaxAge 从最近一次 Insert 开始计算，Touch 不会刷新年龄。
// Has 不返回过期条目，Touch 遇到过期条目时将其处置并移除，
// PruneExpired 主动清理全部过期条目。时钟可通过 WithClock 注入。
//
// # 并发
//
// Index 不是并发安全的。调用方应用自己的互斥锁串行化全部调用，
// 以便索引变更与其他元数据在同一临界区内提交。
//
// # 已知限制
//
//   - 条目数上限 16,777,216，字节模式下达到上限时按最旧优先淘汰
//   - PruneExpired 为 O(n)
package xlru
