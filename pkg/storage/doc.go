// Package storage 提供数据存储相关的子包。
//
// 子包列表：
//   - xdiskcache: 有容量上限的磁盘缓存，LRU 淘汰、写入去重、可选过期
//
// 设计原则：
//   - 索引在内存中，值以文件形式保存在单个目录
//   - 内置可观测性（指标、追踪）
//   - 不做自动重试，错误原样返回给调用方
package storage
