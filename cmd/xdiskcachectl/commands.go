package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xdiskcache/pkg/config/xconf"
	"github.com/omeyang/xdiskcache/pkg/observability/xmetrics"
	"github.com/omeyang/xdiskcache/pkg/storage/xdiskcache"
)

// configSection 配置文件中缓存配置所在的段。
const configSection = "cache"

// settings 是全局 flag 与配置文件合并后的结果。
type settings struct {
	cfg      xdiskcache.FileConfig
	source   *xconf.Source[xdiskcache.FileConfig]
	flags    overrides
	logger   *slog.Logger
	closeLog io.Closer
}

func (s *settings) Close() error {
	return s.closeLog.Close()
}

// loadSettings 构建日志器并解析配置。命令行参数优先于配置文件。
func loadSettings(cmd *cli.Command, s streams) (*settings, error) {
	logger, closer, err := newLogger(
		cmd.String("log-level"),
		cmd.String("log-format"),
		cmd.String("log-file"),
		s.err,
	)
	if err != nil {
		return nil, err
	}

	set := &settings{flags: captureOverrides(cmd), logger: logger, closeLog: closer}
	if path := cmd.String("config"); path != "" {
		src, err := xconf.Load[xdiskcache.FileConfig](path, xconf.WithPath(configSection))
		if err != nil {
			_ = closer.Close()
			return nil, usagef("加载配置失败: %v", err)
		}
		set.source = src
		set.cfg = src.Value()
	}
	set.flags.apply(&set.cfg)

	if err := set.cfg.Validate(); err != nil {
		_ = closer.Close()
		return nil, usagef("%v", err)
	}
	return set, nil
}

// overrides 是命令行给出的缓存参数。配置文件每次（重新）加载后都要重新应用，
// 显式设置的参数始终优先；未设置的 dir/max 只在配置文件缺省时用 flag 默认值补齐。
type overrides struct {
	dir        string
	max        string
	maxEntries int64
	maxAge     time.Duration
	set        map[string]bool
}

func captureOverrides(cmd *cli.Command) overrides {
	o := overrides{
		dir:        cmd.String("dir"),
		max:        cmd.String("max"),
		maxEntries: cmd.Int64("max-entries"),
		maxAge:     cmd.Duration("max-age"),
		set:        make(map[string]bool),
	}
	for _, name := range []string{"dir", "max", "max-entries", "max-age"} {
		o.set[name] = cmd.IsSet(name)
	}
	return o
}

func (o overrides) apply(cfg *xdiskcache.FileConfig) {
	if o.set["dir"] || (cfg.Dir == "" && o.dir != "") {
		cfg.Dir = o.dir
	}
	if o.set["max"] || (cfg.Max == "" && o.max != "") {
		cfg.Max = o.max
	}
	if o.set["max-entries"] {
		cfg.MaxEntries = o.maxEntries
	}
	if o.set["max-age"] {
		cfg.MaxAge = o.maxAge
	}
}

// openCache 按配置创建缓存并确保目录存在。
func openCache(set *settings, observer xmetrics.Observer) (*xdiskcache.Cache, error) {
	opts, err := set.cfg.Options()
	if err != nil {
		return nil, usagef("%v", err)
	}
	opts = append(opts,
		xdiskcache.WithLogger(set.logger),
		xdiskcache.WithObserver(observer),
	)
	c, err := xdiskcache.New(set.cfg.Dir, opts...)
	if err != nil {
		return nil, usagef("%v", err)
	}
	if err := c.Init(); err != nil {
		return nil, fmt.Errorf("初始化缓存目录失败: %w", err)
	}
	return c, nil
}

// withSettings 包装需要配置的命令 Action，统一关闭日志文件。
func withSettings(s streams, fn func(ctx context.Context, cmd *cli.Command, set *settings) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		set, err := loadSettings(cmd, s)
		if err != nil {
			return err
		}
		return errors.Join(fn(ctx, cmd, set), set.Close())
	}
}

func createReplCommand(s streams) *cli.Command {
	return &cli.Command{
		Name:    "repl",
		Aliases: []string{"i"},
		Usage:   "交互模式",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "prune-every",
				Usage: "定期清理过期条目的 cron 表达式，如 \"@every 1m\"",
			},
			&cli.BoolFlag{
				Name:  "reset",
				Usage: "启动时清空缓存目录",
			},
		},
		Action: withSettings(s, func(ctx context.Context, cmd *cli.Command, set *settings) error {
			return cmdRepl(ctx, s, set, cmd.String("prune-every"), cmd.Bool("reset"))
		}),
	}
}

func createBenchCommand(s streams) *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "并发写入压测（会清空缓存目录）",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "writes",
				Usage: "写入总次数",
				Value: 1000,
			},
			&cli.IntFlag{
				Name:  "keys",
				Usage: "不同 key 的数量",
				Value: 100,
			},
			&cli.StringFlag{
				Name:  "size",
				Usage: "每次写入的大小，如 4KiB",
				Value: "4KiB",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "并发数",
				Value: 4,
			},
		},
		Action: withSettings(s, func(ctx context.Context, cmd *cli.Command, set *settings) error {
			opts, err := parseBenchOptions(
				cmd.Int("writes"),
				cmd.Int("keys"),
				cmd.String("size"),
				cmd.Int("workers"),
			)
			if err != nil {
				return err
			}
			return cmdBench(ctx, s.out, set, opts)
		}),
	}
}

func createInfoCommand(s streams) *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "显示解析后的配置和磁盘用量",
		Action: withSettings(s, func(_ context.Context, _ *cli.Command, set *settings) error {
			return cmdInfo(s.out, set)
		}),
	}
}
