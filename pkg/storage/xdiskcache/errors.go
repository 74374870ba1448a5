package xdiskcache

import "errors"

// 缓存操作错误。调用方使用 errors.Is 判断。
var (
	// ErrNotFound 表示 key 从未提交、已被淘汰或已删除。
	ErrNotFound = errors.New("xdiskcache: not found")

	// ErrWriteFailed 表示写入文件失败。原始错误被包装在内。
	ErrWriteFailed = errors.New("xdiskcache: write failed")

	// ErrDisposalFailed 表示淘汰时删除文件失败。
	// 该错误只会交给 WithOnError 注册的回调，不会返回给调用方。
	ErrDisposalFailed = errors.New("xdiskcache: disposal failed")

	// ErrInvalidState 表示当前状态不允许该操作，例如有写入进行中时调用 Reset。
	ErrInvalidState = errors.New("xdiskcache: invalid state")

	// ErrTooLarge 表示字节模式下单个值超过了整个缓存容量。
	ErrTooLarge = errors.New("xdiskcache: value exceeds cache capacity")

	// ErrDiscarded 表示写入完成前 key 已被 Del，写入结果被丢弃。
	ErrDiscarded = errors.New("xdiskcache: write discarded by delete")

	// ErrClosed 表示缓存已关闭。
	ErrClosed = errors.New("xdiskcache: cache closed")

	// ErrNilPayload 表示 Set 的载荷为 nil。
	ErrNilPayload = errors.New("xdiskcache: nil payload")

	// ErrEmptyDir 表示缓存目录为空。
	ErrEmptyDir = errors.New("xdiskcache: empty cache directory")

	// ErrInvalidConfig 表示配置无效。
	ErrInvalidConfig = errors.New("xdiskcache: invalid config")
)
