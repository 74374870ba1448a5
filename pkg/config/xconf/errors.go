package xconf

import "errors"

var (
	// ErrEmptyPath Load 的路径为空。
	ErrEmptyPath = errors.New("xconf: path is required")

	// ErrUnsupportedFormat 扩展名或显式格式不是 yaml/json。
	ErrUnsupportedFormat = errors.New("xconf: unsupported format")

	// ErrLoadFailed 读取配置文件失败，通常包装 fs 错误。
	ErrLoadFailed = errors.New("xconf: read config")

	// ErrParseFailed 文件内容不是合法的 YAML/JSON。
	ErrParseFailed = errors.New("xconf: parse config")

	// ErrUnmarshalFailed 文档结构与目标类型不匹配。
	ErrUnmarshalFailed = errors.New("xconf: decode config")

	// ErrInvalidConfig 目标类型的 Validate 返回错误。
	ErrInvalidConfig = errors.New("xconf: invalid config")

	// ErrNotReloadable Source 由 FromBytes 创建，没有可重读的文件。
	ErrNotReloadable = errors.New("xconf: source has no backing file")
)
