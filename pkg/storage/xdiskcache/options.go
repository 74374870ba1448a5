package xdiskcache

import (
	"log/slog"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/omeyang/xdiskcache/pkg/observability/xmetrics"
	"github.com/omeyang/xdiskcache/pkg/util/xfile"
)

// DefaultMaxBytes 字节模式下的默认容量（10 MiB）。
const DefaultMaxBytes int64 = 10 << 20

// Option 定义 Cache 可选配置函数类型。
type Option func(*options)

type options struct {
	maxBytes   int64
	maxEntries int64
	maxAge     time.Duration
	onError    func(error)
	logger     *slog.Logger
	observer   xmetrics.Observer
	hasher     KeyHasher
	clock      clockwork.Clock
	filePerm   os.FileMode
	dirPerm    os.FileMode
}

func defaultOptions() *options {
	return &options{
		maxBytes: DefaultMaxBytes,
		logger:   slog.Default(),
		observer: xmetrics.NoopObserver{},
		hasher:   SHA256Keys,
		clock:    clockwork.NewRealClock(),
		filePerm: xfile.DefaultFilePerm,
		dirPerm:  xfile.DefaultDirPerm,
	}
}

// WithMaxBytes 设置字节容量，默认 10 MiB。
// 设置了 WithMaxEntries 时此项被忽略。
func WithMaxBytes(n int64) Option {
	return func(o *options) {
		o.maxBytes = n
	}
}

// WithMaxEntries 切换到条目数模式并设置最大条目数。
// n <= 0 表示保持字节模式。
func WithMaxEntries(n int64) Option {
	return func(o *options) {
		o.maxEntries = n
	}
}

// WithMaxAge 设置条目最大存活时间，从最近一次写入开始计算。
// 0 表示永不过期。
func WithMaxAge(d time.Duration) Option {
	return func(o *options) {
		o.maxAge = d
	}
}

// WithOnError 设置错误回调，接收淘汰时删除文件失败等非致命错误。
// 默认以 Error 级别写日志。回调在锁外执行，可以调用 Cache 的方法。
// 传入 nil 将被忽略。
func WithOnError(fn func(error)) Option {
	return func(o *options) {
		if fn != nil {
			o.onError = fn
		}
	}
}

// WithLogger 设置自定义日志记录器。
// 默认使用 slog.Default()。传入 nil 将被忽略，保持使用默认值。
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver 设置观测器，默认不观测。传入 nil 将被忽略。
func WithObserver(observer xmetrics.Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithKeyHasher 设置 key 到文件名的映射，默认 SHA256Keys。传入 nil 将被忽略。
func WithKeyHasher(h KeyHasher) Option {
	return func(o *options) {
		if h != nil {
			o.hasher = h
		}
	}
}

// WithClock 设置时钟，用于过期判断。测试中可传入 clockwork.NewFakeClock()。
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithFilePerm 设置缓存文件权限，默认 0640。
func WithFilePerm(perm os.FileMode) Option {
	return func(o *options) {
		if perm != 0 {
			o.filePerm = perm
		}
	}
}

// WithDirPerm 设置缓存目录权限，默认 0750。
func WithDirPerm(perm os.FileMode) Option {
	return func(o *options) {
		if perm != 0 {
			o.dirPerm = perm
		}
	}
}
