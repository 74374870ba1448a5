package xmetrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// DefaultInstrumentationName 默认的 instrumentation scope 名称。
const DefaultInstrumentationName = "github.com/omeyang/xdiskcache/pkg/observability/xmetrics"

// 操作指标名。
const (
	MetricOperations = "xdiskcache.operations"
	MetricDuration   = "xdiskcache.operation.duration"
	MetricBytes      = "xdiskcache.bytes"
	MetricEvictions  = "xdiskcache.evictions"
)

// durationBuckets 覆盖页缓存命中（几十微秒）到慢盘写入（秒级）。
var durationBuckets = []float64{
	0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005,
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

type otelConfig struct {
	name   string
	tracer trace.TracerProvider
	meter  metric.MeterProvider
}

// Option 配置 OTel 实现。
type Option func(*otelConfig)

// WithInstrumentationName 设置 instrumentation scope 名称，空串被忽略。
func WithInstrumentationName(name string) Option {
	return func(c *otelConfig) {
		if name != "" {
			c.name = name
		}
	}
}

// WithTracerProvider 设置 TracerProvider，默认使用全局 provider。
func WithTracerProvider(p trace.TracerProvider) Option {
	return func(c *otelConfig) {
		if p != nil {
			c.tracer = p
		}
	}
}

// WithMeterProvider 设置 MeterProvider，默认使用全局 provider。
func WithMeterProvider(p metric.MeterProvider) Option {
	return func(c *otelConfig) {
		if p != nil {
			c.meter = p
		}
	}
}

func newOTelConfig(opts []Option) *otelConfig {
	c := &otelConfig{
		name:   DefaultInstrumentationName,
		tracer: otel.GetTracerProvider(),
		meter:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type instruments struct {
	operations metric.Int64Counter
	bytes      metric.Int64Counter
	evictions  metric.Int64Counter
	duration   metric.Float64Histogram
}

func newInstruments(meter metric.Meter) (*instruments, error) {
	var (
		ins instruments
		err error
	)
	if ins.operations, err = meter.Int64Counter(MetricOperations,
		metric.WithDescription("cache operations by component, operation and status"),
		metric.WithUnit("{operation}"),
	); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInstrument, MetricOperations, err)
	}
	if ins.bytes, err = meter.Int64Counter(MetricBytes,
		metric.WithDescription("bytes read from or written to cache files"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInstrument, MetricBytes, err)
	}
	if ins.evictions, err = meter.Int64Counter(MetricEvictions,
		metric.WithDescription("entries evicted or expired as a result of an operation"),
		metric.WithUnit("{entry}"),
	); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInstrument, MetricEvictions, err)
	}
	if ins.duration, err = meter.Float64Histogram(MetricDuration,
		metric.WithDescription("cache operation latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInstrument, MetricDuration, err)
	}
	return &ins, nil
}

// NewOTelObserver 返回基于 OpenTelemetry 的 Observer：每次操作一个 span，
// 并记录次数、耗时、字节数和淘汰数。
func NewOTelObserver(opts ...Option) (Observer, error) {
	cfg := newOTelConfig(opts)
	ins, err := newInstruments(cfg.meter.Meter(cfg.name))
	if err != nil {
		return nil, err
	}
	return &otelObserver{tracer: cfg.tracer.Tracer(cfg.name), ins: ins}, nil
}

type otelObserver struct {
	tracer trace.Tracer
	ins    *instruments
}

func (o *otelObserver) Start(ctx context.Context, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	component := orUnknown(opts.Component)
	operation := orUnknown(opts.Operation)

	attrs := append([]attribute.KeyValue{
		attribute.String("component", component),
		attribute.String("operation", operation),
	}, toOTel(opts.Attrs)...)

	ctx, span := o.tracer.Start(ctx, component+"."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	return ctx, &otelSpan{
		ins:       o.ins,
		span:      span,
		ctx:       ctx,
		component: component,
		operation: operation,
		start:     time.Now(),
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

type otelSpan struct {
	ins       *instruments
	span      trace.Span
	ctx       context.Context
	component string
	operation string
	start     time.Time
	once      sync.Once
}

// End 多次调用只记录第一次。
func (s *otelSpan) End(r Result) {
	if s == nil {
		return
	}
	s.once.Do(func() { s.end(r) })
}

func (s *otelSpan) end(r Result) {
	elapsed := time.Since(s.start)
	status := r.status()

	if r.Err != nil {
		s.span.RecordError(r.Err)
	}
	if status == StatusError {
		desc := "operation failed"
		if r.Err != nil {
			desc = r.Err.Error()
		}
		s.span.SetStatus(codes.Error, desc)
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	extra := toOTel(r.Attrs)
	if r.Bytes > 0 {
		extra = append(extra, attribute.Int64("bytes", r.Bytes))
	}
	if r.Evicted > 0 {
		extra = append(extra, attribute.Int("evicted", r.Evicted))
	}
	s.span.SetAttributes(extra...)
	s.span.End()

	// 调用方的 ctx 可能已取消，指标照常记录
	ctx := context.WithoutCancel(s.ctx)
	set := metric.WithAttributes(
		attribute.String("component", s.component),
		attribute.String("operation", s.operation),
		attribute.String("status", string(status)),
	)
	s.ins.operations.Add(ctx, 1, set)
	s.ins.duration.Record(ctx, elapsed.Seconds(), set)
	if r.Bytes > 0 {
		s.ins.bytes.Add(ctx, r.Bytes, set)
	}
	if r.Evicted > 0 {
		s.ins.evictions.Add(ctx, int64(r.Evicted), set)
	}
}
