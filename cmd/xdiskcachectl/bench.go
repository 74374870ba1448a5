package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xdiskcache/pkg/observability/xmetrics"
	"github.com/omeyang/xdiskcache/pkg/storage/xdiskcache"
)

type benchOptions struct {
	writes  int
	keys    int
	size    int
	workers int
}

func parseBenchOptions(writes, keys int, size string, workers int) (benchOptions, error) {
	if writes <= 0 {
		return benchOptions{}, usagef("--writes 必须大于 0")
	}
	if keys <= 0 {
		return benchOptions{}, usagef("--keys 必须大于 0")
	}
	if workers <= 0 {
		return benchOptions{}, usagef("--workers 必须大于 0")
	}
	n, err := humanize.ParseBytes(size)
	if err != nil {
		return benchOptions{}, usagef("无效的 --size %q: %v", size, err)
	}
	if n == 0 || n > 1<<30 {
		return benchOptions{}, usagef("--size %q 超出范围 (1B ~ 1GiB)", size)
	}
	return benchOptions{writes: writes, keys: keys, size: int(n), workers: workers}, nil
}

// cmdBench 清空缓存目录后并发写入，打印吞吐量和淘汰情况。
func cmdBench(ctx context.Context, out io.Writer, set *settings, opts benchOptions) error {
	c, err := openCache(set, xmetrics.NoopObserver{})
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	if err := c.Reset(); err != nil {
		return fmt.Errorf("清空缓存目录失败: %w", err)
	}

	keys := make([]string, opts.keys)
	for i := range keys {
		keys[i] = uuid.NewString()
	}
	payload := bytes.Repeat([]byte{'x'}, opts.size)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers)

	start := time.Now()
	for i := 0; i < opts.writes && gctx.Err() == nil; i++ {
		key := keys[i%len(keys)]
		g.Go(func() error {
			_, err := c.Set(gctx, key, xdiskcache.Bytes(payload))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("写入失败: %w", err)
	}
	elapsed := time.Since(start)

	st := c.Stats()
	rate := float64(opts.writes) / elapsed.Seconds()
	throughput := float64(opts.writes) * float64(opts.size) / elapsed.Seconds()

	_, _ = fmt.Fprintf(out, "writes:     %d (%d keys, %d workers, %s each)\n",
		opts.writes, opts.keys, opts.workers, humanize.IBytes(uint64(opts.size)))
	_, _ = fmt.Fprintf(out, "elapsed:    %s\n", elapsed.Round(time.Microsecond))
	_, _ = fmt.Fprintf(out, "rate:       %.0f writes/s\n", rate)
	_, _ = fmt.Fprintf(out, "throughput: %s/s\n", humanize.IBytes(uint64(throughput)))
	_, _ = fmt.Fprintf(out, "committed:  %d (joined %d)\n", st.Writes, st.Joined)
	_, _ = fmt.Fprintf(out, "evictions:  %d\n", st.Evictions)
	_, _ = fmt.Fprintf(out, "entries:    %d\n", st.Entries)
	_, _ = fmt.Fprintf(out, "size:       %s\n", formatWeight(st.Mode, st.Size))
	return nil
}
