package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/omeyang/xdiskcache/pkg/util/xfile"
)

// cmdInfo 打印合并后的配置和缓存目录所在文件系统的用量。
func cmdInfo(out io.Writer, set *settings) error {
	cfg := set.cfg
	capacity, err := cfg.Capacity()
	if err != nil {
		return usagef("%v", err)
	}

	mode := "size"
	if cfg.MaxEntries > 0 {
		mode = "count"
	}
	source := "(flags)"
	if set.source != nil {
		source = set.source.Path()
	}
	maxAge := "never"
	if cfg.MaxAge > 0 {
		maxAge = cfg.MaxAge.String()
	}

	_, _ = fmt.Fprintf(out, "config:   %s\n", source)
	_, _ = fmt.Fprintf(out, "dir:      %s\n", cfg.Dir)
	_, _ = fmt.Fprintf(out, "mode:     %s\n", mode)
	_, _ = fmt.Fprintf(out, "capacity: %s\n", formatWeight(mode, capacity))
	_, _ = fmt.Fprintf(out, "max_age:  %s\n", maxAge)

	total, free, err := xfile.DiskUsage(cfg.Dir)
	if err != nil {
		_, _ = fmt.Fprintf(out, "disk:     unavailable (%v)\n", err)
		return nil
	}
	_, _ = fmt.Fprintf(out, "disk:     %s free of %s\n", humanize.IBytes(free), humanize.IBytes(total))
	return nil
}
