// xdiskcachectl 是 xdiskcache 的命令行工具，用于交互式操作缓存目录和压测。
//
// 用法:
//
//	xdiskcachectl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-d, --dir          缓存目录 (默认: $TMPDIR/xdiskcache)
//	-c, --config       YAML/JSON 配置文件，读取 cache 段
//	--max              字节容量，如 64MiB (默认: 10MiB)
//	--max-entries      大于 0 时切换到条目数模式
//	--max-age          条目最大存活时间，0 表示永不过期
//	--log-level        日志级别 debug/info/warn/error (默认: info)
//	--log-format       日志格式 text/json (默认: text)
//	--log-file         日志写入文件（按大小轮转），默认写 stderr
//
// 命令:
//
//	repl           交互模式
//	bench          并发写入压测
//	info           显示解析后的配置和磁盘用量
//
// 命令行参数优先于配置文件。repl 模式下配置文件变更会实时调整容量。
//
// 退出码:
//
//	0: 成功
//	1: 执行失败
//	2: 参数错误
//
// 示例:
//
//	xdiskcachectl -d /tmp/c --max 1MiB repl
//	xdiskcachectl -c cache.yaml repl --prune-every "@every 30s"
//	xdiskcachectl -d /tmp/c bench --writes 10000 --workers 8 --size 4KiB
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"
)

// 版本信息（可通过 -ldflags 注入）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// 退出码。
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel)

	os.Exit(run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr))
}

// usageError 表示参数错误，对应退出码 2。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// streams 命令的输入输出，测试中替换为缓冲区。
type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

func createApp(s streams) *cli.Command {
	return &cli.Command{
		Name:      "xdiskcachectl",
		Usage:     "xdiskcache 磁盘缓存命令行工具",
		Version:   fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Writer:    s.out,
		ErrWriter: s.err,
		Reader:    s.in,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "缓存目录",
				Value:   filepath.Join(os.TempDir(), "xdiskcache"),
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML/JSON 配置文件",
			},
			&cli.StringFlag{
				Name:  "max",
				Usage: "字节容量，如 64MiB",
				Value: "10MiB",
			},
			&cli.Int64Flag{
				Name:  "max-entries",
				Usage: "最大条目数，大于 0 时切换到条目数模式",
			},
			&cli.DurationFlag{
				Name:  "max-age",
				Usage: "条目最大存活时间",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "日志级别 (debug/info/warn/error)",
				Value: "info",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "日志格式 (text/json)",
				Value: "text",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "日志文件路径，按大小轮转",
			},
		},
		Commands: []*cli.Command{
			createReplCommand(s),
			createBenchCommand(s),
			createInfoCommand(s),
		},
		DefaultCommand: "help",
		// 由 run 统一映射退出码，不让 urfave/cli 直接 os.Exit
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				_, _ = fmt.Fprintln(s.err, err)
			}
		},
	}
}

func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	app := createApp(streams{in: in, out: out, err: errOut})

	if err := app.Run(ctx, args); err != nil {
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			_, _ = fmt.Fprintf(errOut, "参数错误: %v\n", usageErr)
			return exitUsage
		}
		if isCLIUsageError(err) {
			return exitUsage
		}
		_, _ = fmt.Fprintf(errOut, "错误: %v\n", err)
		return exitFailure
	}
	return exitOK
}

// isCLIUsageError 识别 urfave/cli 自身产生的参数错误（未知 flag、缺少参数值等）。
// flag 解析器已经把详情写到 stderr。
func isCLIUsageError(err error) bool {
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) && exitCoder.ExitCode() == exitUsage {
		return true
	}
	msg := err.Error()
	for _, prefix := range []string{
		"flag provided but not defined",
		"invalid value",
		"flag needs an argument",
		"No help topic for",
	} {
		if strings.Contains(msg, prefix) {
			return true
		}
	}
	return false
}

// setupSignalHandler 第一次信号优雅取消，第二次信号强制退出（130 = 128 + SIGINT）。
func setupSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()

		<-sigCh
		signal.Stop(sigCh)
		os.Exit(130)
	}()
}
