// Package xdiskcache 提供以目录为后端的 LRU 缓存。
//
// 每个值写入目录下一个独立的文件，文件名是 key 的摘要；
// 内存中只保存 key、权重和最近使用顺序，适合缓存较大的载荷
// （HTTP 响应体、构建产物、转码结果）而不占用进程内存。
//
// # 容量模式
//
// 构造时二选一，之后不可更改：
//   - 字节模式（默认）：容量为字节数，权重为文件长度，默认 10 MiB。
//   - 条目数模式（WithMaxEntries）：容量为条目数，每个条目权重为 1。
//
// 字节模式下单个值超过整个容量时 Set 返回 ErrTooLarge，索引不变，文件被删除。
//
// # 基本用法
//
//	c, err := xdiskcache.New("/var/cache/app", xdiskcache.WithMaxBytes(256<<20))
//	if err != nil { ... }
//	if err := c.Init(); err != nil { ... }
//
//	_, err = c.Set(ctx, "report:42", xdiskcache.Bytes(body))
//	data, err := c.Get(ctx, "report:42")
//
//	// 流式写入和读取
//	_, err = c.Set(ctx, "video:7", xdiskcache.Stream(resp.Body))
//	rc, err := c.GetStream(ctx, "video:7")
//	defer rc.Close()
//
// # 并发语义
//
// 同一 key 的并发 Set 只发起一次写入，所有调用方得到同一个结果。
// Get、GetStream、Wait 会先等待该 key 进行中的写入，因此不会读到半写的文件。
// 写入先落到同目录的临时文件，再 rename 到最终路径。
//
// 淘汰在插入时同步发生。淘汰一个仍有写入进行中的 key 时不删除文件，
// 该文件由进行中的写入负责创建或覆盖。
//
// 写入一旦开始不能取消，ctx 只限制等待。Del 不会中止进行中的写入，
// 但该写入的结果会被丢弃：文件被删除，Set 返回 ErrDiscarded。
//
// 有写入进行中时 Reset 返回 ErrInvalidState。
//
// # 错误
//
// 淘汰时删除文件失败不会影响调用方，错误包装为 ErrDisposalFailed
// 交给 WithOnError 注册的回调，默认写 Error 日志。
// 缓存不做任何自动重试。
//
// # 持久化
//
// 不持久化索引。Init 不清理目录中遗留的文件，也不会把它们纳入索引；
// 需要干净状态时调用 Reset。
package xdiskcache
