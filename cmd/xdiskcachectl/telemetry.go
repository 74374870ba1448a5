package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/omeyang/xdiskcache/pkg/observability/xmetrics"
	"github.com/omeyang/xdiskcache/pkg/storage/xdiskcache"
)

// telemetry 进程内的 OpenTelemetry 管线，指标由 ManualReader 按需采集。
type telemetry struct {
	observer xmetrics.Observer
	reader   *sdkmetric.ManualReader
	meters   *sdkmetric.MeterProvider
	tracers  *sdktrace.TracerProvider

	unregister func() error
}

func newTelemetry() (*telemetry, error) {
	reader := sdkmetric.NewManualReader()
	meters := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	tracers := sdktrace.NewTracerProvider()

	observer, err := xmetrics.NewOTelObserver(
		xmetrics.WithInstrumentationName("xdiskcachectl"),
		xmetrics.WithMeterProvider(meters),
		xmetrics.WithTracerProvider(tracers),
	)
	if err != nil {
		return nil, errors.Join(err, meters.Shutdown(context.Background()), tracers.Shutdown(context.Background()))
	}
	return &telemetry{observer: observer, reader: reader, meters: meters, tracers: tracers}, nil
}

// observeUsage 把缓存的占用注册为 gauge，每次采集时读取 Stats。
func (t *telemetry) observeUsage(c *xdiskcache.Cache) error {
	unregister, err := xmetrics.RegisterUsage(func() xmetrics.Usage {
		st := c.Stats()
		return xmetrics.Usage{
			Mode:     st.Mode,
			Weight:   st.Size,
			Capacity: st.Capacity,
			Entries:  st.Entries,
			Pending:  st.Pending,
		}
	}, xmetrics.WithInstrumentationName("xdiskcachectl"), xmetrics.WithMeterProvider(t.meters))
	if err != nil {
		return err
	}
	t.unregister = unregister
	return nil
}

func (t *telemetry) shutdown(ctx context.Context) error {
	var errs []error
	if t.unregister != nil {
		errs = append(errs, t.unregister())
	}
	errs = append(errs, t.meters.Shutdown(ctx), t.tracers.Shutdown(ctx))
	return errors.Join(errs...)
}

// dump 采集一次指标并按名称排序输出：计数器和 gauge 输出数值，直方图输出次数和总和。
func (t *telemetry) dump(ctx context.Context, w io.Writer) error {
	var rm metricdata.ResourceMetrics
	if err := t.reader.Collect(ctx, &rm); err != nil {
		return fmt.Errorf("采集指标失败: %w", err)
	}

	var lines []string
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			lines = append(lines, formatMetric(m)...)
		}
	}
	if len(lines) == 0 {
		_, err := fmt.Fprintln(w, "(no metrics)")
		return err
	}
	sort.Strings(lines)
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func formatMetric(m metricdata.Metrics) []string {
	var lines []string
	switch data := m.Data.(type) {
	case metricdata.Sum[int64]:
		for _, dp := range data.DataPoints {
			lines = append(lines, fmt.Sprintf("%s{%s} %d", m.Name, encodeAttrs(dp.Attributes), dp.Value))
		}
	case metricdata.Gauge[int64]:
		for _, dp := range data.DataPoints {
			lines = append(lines, fmt.Sprintf("%s{%s} %d", m.Name, encodeAttrs(dp.Attributes), dp.Value))
		}
	case metricdata.Histogram[float64]:
		for _, dp := range data.DataPoints {
			lines = append(lines, fmt.Sprintf("%s{%s} count=%d sum=%.6f",
				m.Name, encodeAttrs(dp.Attributes), dp.Count, dp.Sum))
		}
	}
	return lines
}

func encodeAttrs(set attribute.Set) string {
	return set.Encoded(attribute.DefaultEncoder())
}
