package xlru

import "errors"

var (
	// ErrInvalidCapacity 表示容量配置无效。
	ErrInvalidCapacity = errors.New("xlru: capacity must be greater than 0")

	// ErrInvalidMode 表示计量模式未知。
	ErrInvalidMode = errors.New("xlru: unknown weighing mode")

	// ErrInvalidMaxAge 表示 MaxAge 配置无效。
	ErrInvalidMaxAge = errors.New("xlru: max age must not be negative")

	// ErrInvalidWeight 表示条目权重为负数。
	ErrInvalidWeight = errors.New("xlru: weight must not be negative")

	// ErrTooHeavy 表示单个条目的权重超过了总容量（仅字节模式）。
	// 此时 Insert 不修改索引。
	ErrTooHeavy = errors.New("xlru: entry weight exceeds capacity")
)
