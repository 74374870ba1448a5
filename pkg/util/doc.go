// Package util 提供通用工具相关的子包。
//
// 子包列表：
//   - xfile: 文件操作工具，目录创建与重置、原子写入、磁盘用量
//   - xlru: 带权重的 LRU 索引，字节/条目数两种计量模式、可选过期
//
// 设计原则：
//   - 拒绝路径遍历和空字节
//   - 不持有 I/O 以外的资源，调用方负责并发控制
package util
