package xfile

import "errors"

var (
	// ErrEmptyPath 表示必需的路径参数为空。
	ErrEmptyPath = errors.New("xfile: path is required")

	// ErrInvalidName 表示文件名不是单个路径段（含分隔符、"." 或 ".."）。
	ErrInvalidName = errors.New("xfile: name must be a single path element")

	// ErrNullByte 表示路径中包含空字节（\x00），Linux 内核会在空字节处截断路径，
	// 导致 Go 代码与操作系统看到的路径不一致。
	ErrNullByte = errors.New("xfile: path contains null byte")

	// ErrInvalidPerm 表示目录权限无效（如缺少所有者执行位，目录无法遍历）。
	ErrInvalidPerm = errors.New("xfile: invalid directory permission")

	// ErrNilReader 表示写入源为 nil。
	ErrNilReader = errors.New("xfile: reader is nil")

	// ErrUnsupported 表示当前平台不支持该操作。
	ErrUnsupported = errors.New("xfile: unsupported on this platform")
)
