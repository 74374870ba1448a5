package xmetrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// 占用指标名，均为异步 gauge。
const (
	MetricUsageWeight   = "xdiskcache.usage.weight"
	MetricUsageCapacity = "xdiskcache.usage.capacity"
	MetricUsageEntries  = "xdiskcache.usage.entries"
	MetricUsagePending  = "xdiskcache.usage.pending"
)

// Usage 是一次采集时的缓存占用。
type Usage struct {
	// Mode 计量模式，作为 mode 维度："size" 或 "count"。
	Mode     string
	Weight   int64
	Capacity int64
	Entries  int
	Pending  int
}

// UsageFunc 在每次指标采集时调用，必须并发安全且不阻塞。
type UsageFunc func() Usage

// RegisterUsage 注册占用 gauge，返回的函数注销采集回调。
func RegisterUsage(fn UsageFunc, opts ...Option) (unregister func() error, err error) {
	if fn == nil {
		return nil, ErrNilUsageFunc
	}
	cfg := newOTelConfig(opts)
	meter := cfg.meter.Meter(cfg.name)

	weight, err := meter.Int64ObservableGauge(MetricUsageWeight,
		metric.WithDescription("current total weight: bytes in size mode, entries in count mode"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInstrument, MetricUsageWeight, err)
	}
	capacity, err := meter.Int64ObservableGauge(MetricUsageCapacity,
		metric.WithDescription("configured capacity in the unit of the mode"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInstrument, MetricUsageCapacity, err)
	}
	entries, err := meter.Int64ObservableGauge(MetricUsageEntries,
		metric.WithDescription("indexed entries"),
		metric.WithUnit("{entry}"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInstrument, MetricUsageEntries, err)
	}
	pending, err := meter.Int64ObservableGauge(MetricUsagePending,
		metric.WithDescription("writes in flight"),
		metric.WithUnit("{write}"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInstrument, MetricUsagePending, err)
	}

	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		u := fn()
		set := metric.WithAttributes(attribute.String("mode", u.Mode))
		o.ObserveInt64(weight, u.Weight, set)
		o.ObserveInt64(capacity, u.Capacity, set)
		o.ObserveInt64(entries, int64(u.Entries), set)
		o.ObserveInt64(pending, int64(u.Pending), set)
		return nil
	}, weight, capacity, entries, pending)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInstrument, err)
	}
	return reg.Unregister, nil
}
