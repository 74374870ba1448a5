package xmetrics

import "context"

// Status 是操作结果的分类，作为指标的 status 维度。
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
	// StatusMiss 读取未命中，不计为错误。
	StatusMiss Status = "miss"
)

// SpanOptions 描述一次被观测的操作。
type SpanOptions struct {
	Component string
	Operation string
	Attrs     []Attr
}

// Result 是操作结束时上报的结果。
type Result struct {
	// Status 为空时由 Err 推导。
	Status Status
	Err    error
	// Bytes 本次读写的字节数，字节模式下也是写入条目的权重。
	Bytes int64
	// Evicted 本次操作淘汰或清理掉的条目数。
	Evicted int
	Attrs   []Attr
}

func (r Result) status() Status {
	switch {
	case r.Status != "":
		return r.Status
	case r.Err != nil:
		return StatusError
	default:
		return StatusOK
	}
}

// Span 是进行中的一次观测，End 只应调用一次。
type Span interface {
	End(result Result)
}

// Observer 为每次缓存操作创建 Span。实现必须并发安全。
type Observer interface {
	Start(ctx context.Context, opts SpanOptions) (context.Context, Span)
}

// NoopObserver 什么也不记录。
type NoopObserver struct{}

// Start 原样返回 ctx。
func (NoopObserver) Start(ctx context.Context, _ SpanOptions) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(Result) {}

// Start 调用 observer.Start。observer 为 nil 或实现返回 nil 值时退化为空实现，
// 因此返回的 context 和 Span 总是可用的。
func Start(ctx context.Context, observer Observer, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	if observer == nil {
		return ctx, noopSpan{}
	}
	next, span := observer.Start(ctx, opts)
	if next == nil {
		next = ctx
	}
	if span == nil {
		span = noopSpan{}
	}
	return next, span
}
