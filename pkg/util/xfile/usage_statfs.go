//go:build linux || darwin

package xfile

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// DiskUsage 返回 dir 所在文件系统的总容量和可用容量（字节）。
func DiskUsage(dir string) (total, free uint64, err error) {
	if dir == "" {
		return 0, 0, fmt.Errorf("directory is required: %w", ErrEmptyPath)
	}
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0, 0, fmt.Errorf("statfs %s: %w", dir, err)
	}
	// Bsize 在不同平台上的类型不同（int64/uint32），统一转为 uint64
	bsize := uint64(st.Bsize) //nolint:gosec // 块大小恒为正
	return st.Blocks * bsize, st.Bavail * bsize, nil
}
