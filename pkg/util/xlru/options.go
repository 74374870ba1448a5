package xlru

import "github.com/jonboulle/clockwork"

// Option 定义索引可选配置函数类型。
type Option[K comparable] func(*options[K])

type options[K comparable] struct {
	onDispose DisposeFunc[K]
	clock     clockwork.Clock
}

// WithOnDispose 设置条目离开索引前的处置回调。
// 回调在调用方持有的锁内同步执行，应保持轻量。
func WithOnDispose[K comparable](fn DisposeFunc[K]) Option[K] {
	return func(o *options[K]) {
		o.onDispose = fn
	}
}

// WithClock 设置用于计算条目年龄的时钟，默认使用系统时钟。
// 测试中可传入 clockwork.NewFakeClock()。传入 nil 将被忽略。
func WithClock[K comparable](clock clockwork.Clock) Option[K] {
	return func(o *options[K]) {
		if clock != nil {
			o.clock = clock
		}
	}
}
