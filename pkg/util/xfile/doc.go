// Package xfile 提供磁盘缓存所需的文件系统操作工具。
//
// # 目录
//
//   - EnsureDir：确保目录存在，不清空已有内容
//   - ResetDir：删除并重建目录（拒绝 "." 和根目录）
//   - JoinName：把单个文件名拼到目录下，拒绝分隔符、".."、空字节
//
// # 写入与删除
//
// WriteAtomic 采用“临时文件 + rename”协议：数据写入同目录下的 ".tmp-*" 文件，
// 关闭后 rename 到目标路径。并发读者要么读到旧内容，要么读到完整的新内容。
// 失败时临时文件会被关闭并删除。
//
// Remove 在目标不存在时返回包装了 fs.ErrNotExist 的错误，而不是静默成功：
//
//	if err := xfile.Remove(p); errors.Is(err, fs.ErrNotExist) {
//	    // 文件本来就不存在
//	}
//
// # 空字节防护
//
// 所有接收路径的函数都拒绝空字节（\x00）。Linux 内核在 VFS 层会在空字节处
// 截断路径，导致 Go 代码与操作系统实际操作的路径不一致。
//
// # 磁盘用量
//
// DiskUsage 通过 statfs 返回目录所在文件系统的容量，仅 Linux 和 macOS 可用。
package xfile
