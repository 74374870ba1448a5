package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/robfig/cron/v3"

	"github.com/omeyang/xdiskcache/pkg/storage/xdiskcache"
)

// cmdRepl 交互模式（REPL）。
func cmdRepl(ctx context.Context, s streams, set *settings, pruneEvery string, reset bool) error {
	tel, err := newTelemetry()
	if err != nil {
		return err
	}
	defer func() { _ = tel.shutdown(context.Background()) }()

	c, err := openCache(set, tel.observer)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	if err := tel.observeUsage(c); err != nil {
		return err
	}

	if reset {
		if err := c.Reset(); err != nil {
			return fmt.Errorf("清空缓存目录失败: %w", err)
		}
	}

	if pruneEvery != "" {
		stop, err := schedulePrune(c, pruneEvery, set.logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	if set.source != nil {
		stop, err := watchCapacity(set, c)
		if err != nil {
			return err
		}
		defer stop()
	}

	sess := &session{cache: c, tel: tel, out: s.out, errOut: s.err}
	_, _ = fmt.Fprintln(s.out, "xdiskcachectl 交互模式")
	_, _ = fmt.Fprintln(s.out, "输入 'help' 查看可用命令，'quit' 或 'exit' 退出")
	_, _ = fmt.Fprintln(s.out)

	return runREPL(ctx, s.in, s.out, sess)
}

// schedulePrune 按 cron 表达式定期清理过期条目，返回停止函数。
func schedulePrune(c *xdiskcache.Cache, spec string, logger *slog.Logger) (func(), error) {
	sched := cron.New()
	if _, err := sched.AddFunc(spec, func() {
		if n := c.Prune(); n > 0 {
			logger.Info("xdiskcachectl: pruned expired entries", slog.Int("count", n))
		}
	}); err != nil {
		return nil, usagef("无效的 --prune-every %q: %v", spec, err)
	}
	sched.Start()
	return func() { <-sched.Stop().Done() }, nil
}

// watchCapacity 监视配置文件，变更后调整容量。命令行参数仍然优先，
// 计量模式不能在运行时切换。
func watchCapacity(set *settings, c *xdiskcache.Cache) (func(), error) {
	mode := c.Stats().Mode
	w, err := set.source.Watch(func(cfg xdiskcache.FileConfig, err error) {
		if err != nil {
			set.logger.Warn("xdiskcachectl: config reload failed", slog.Any("error", err))
			return
		}
		set.flags.apply(&cfg)
		if (cfg.MaxEntries > 0) != (mode == "count") {
			set.logger.Warn("xdiskcachectl: mode change requires restart",
				slog.String("mode", mode))
			return
		}
		capacity, err := cfg.Capacity()
		if err != nil {
			set.logger.Warn("xdiskcachectl: invalid capacity", slog.Any("error", err))
			return
		}
		if _, err := c.Resize(capacity); err != nil {
			set.logger.Warn("xdiskcachectl: resize failed", slog.Any("error", err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("监视配置文件失败: %w", err)
	}
	w.StartAsync()
	return func() { _ = w.Stop() }, nil
}

// startInputReader 启动输入读取 goroutine。
// inputCh 无缓冲，发送受 select 保护，context 取消后 goroutine 不会阻塞在发送端。
func startInputReader(ctx context.Context, in io.Reader) (<-chan string, <-chan error) {
	inputCh := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case inputCh <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case errCh <- err:
			default:
			}
		}
		close(inputCh)
	}()

	return inputCh, errCh
}

// runREPL 运行 REPL 循环，Ctrl+C 立即退出。
func runREPL(ctx context.Context, in io.Reader, out io.Writer, sess *session) error {
	inputCh, errCh := startInputReader(ctx, in)

	for {
		_, _ = fmt.Fprint(out, "xdiskcache> ")

		select {
		case <-ctx.Done():
			_, _ = fmt.Fprintln(out, "\n再见!")
			return nil
		case err := <-errCh:
			return fmt.Errorf("读取输入错误: %w", err)
		case line, ok := <-inputCh:
			if !ok {
				// EOF
				_, _ = fmt.Fprintln(out)
				return nil
			}
			if sess.processLine(ctx, strings.TrimSpace(line)) {
				return nil
			}
		}
	}
}

// session 持有一次交互会话的缓存和输出。
type session struct {
	cache  *xdiskcache.Cache
	tel    *telemetry
	out    io.Writer
	errOut io.Writer
}

// replCommand 描述一个交互命令。
type replCommand struct {
	usage string
	desc  string
	args  int
	run   func(s *session, ctx context.Context, args []string) error
}

// replCommands 在 init 中赋值，help 命令需要引用这张表。
var replCommands map[string]replCommand

// replOrder 决定 help 的输出顺序。
var replOrder = []string{
	"set", "setfile", "get", "getfile", "has", "wait", "del",
	"size", "len", "keys", "prune", "reset", "resize", "stats", "metrics", "help",
}

func init() {
	replCommands = map[string]replCommand{
		"set":     {usage: "set <key> <value>", desc: "写入字符串", args: 2, run: (*session).set},
		"setfile": {usage: "setfile <key> <path>", desc: "以流的方式写入文件内容", args: 2, run: (*session).setFile},
		"get":     {usage: "get <key>", desc: "读取条目", args: 1, run: (*session).get},
		"getfile": {usage: "getfile <key> <path>", desc: "把条目内容流式写入文件", args: 2, run: (*session).getFile},
		"has":     {usage: "has <key>", desc: "检查条目是否存在（不等待写入）", args: 1, run: (*session).has},
		"wait":    {usage: "wait <key>", desc: "等待写入完成并打印文件路径", args: 1, run: (*session).wait},
		"del":     {usage: "del <key>", desc: "删除条目", args: 1, run: (*session).del},
		"size":    {usage: "size", desc: "当前总权重", run: (*session).size},
		"len":     {usage: "len", desc: "条目数", run: (*session).len},
		"keys":    {usage: "keys", desc: "按最久未使用优先列出 key", run: (*session).keys},
		"prune":   {usage: "prune", desc: "清理过期条目", run: (*session).prune},
		"reset":   {usage: "reset", desc: "清空索引和目录", run: (*session).reset},
		"resize":  {usage: "resize <capacity>", desc: "调整容量，字节模式支持 64MiB 等写法", args: 1, run: (*session).resize},
		"stats":   {usage: "stats", desc: "状态快照", run: (*session).stats},
		"metrics": {usage: "metrics", desc: "OpenTelemetry 指标", run: (*session).metrics},
		"help":    {usage: "help", desc: "显示本帮助", run: (*session).help},
	}
}

// processLine 处理单行输入，返回 true 表示应该退出。
func (s *session) processLine(ctx context.Context, line string) bool {
	if line == "" {
		return false
	}
	if line == "quit" || line == "exit" {
		_, _ = fmt.Fprintln(s.out, "再见!")
		return true
	}

	parts := parseCommandLine(line)
	if len(parts) == 0 {
		return false
	}
	if err := s.execute(ctx, parts[0], parts[1:]); err != nil {
		_, _ = fmt.Fprintf(s.errOut, "错误: %v\n", err)
	}
	return false
}

func (s *session) execute(ctx context.Context, name string, args []string) error {
	cmd, ok := replCommands[name]
	if !ok {
		return fmt.Errorf("未知命令 %q，输入 'help' 查看可用命令", name)
	}
	if len(args) != cmd.args {
		return fmt.Errorf("用法: %s", cmd.usage)
	}
	return cmd.run(s, ctx, args)
}

func (s *session) println(a ...any) {
	_, _ = fmt.Fprintln(s.out, a...)
}

func (s *session) set(ctx context.Context, args []string) error {
	if _, err := s.cache.Set(ctx, args[0], xdiskcache.String(args[1])); err != nil {
		return err
	}
	s.println("OK")
	return nil
}

func (s *session) setFile(ctx context.Context, args []string) error {
	f, err := os.Open(args[1])
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if _, err := s.cache.Set(ctx, args[0], xdiskcache.Stream(f)); err != nil {
		return err
	}
	s.println("OK")
	return nil
}

func (s *session) get(ctx context.Context, args []string) error {
	v, err := s.cache.GetString(ctx, args[0])
	if errors.Is(err, xdiskcache.ErrNotFound) {
		s.println("(nil)")
		return nil
	}
	if err != nil {
		return err
	}
	s.println(v)
	return nil
}

func (s *session) getFile(ctx context.Context, args []string) (err error) {
	rc, err := s.cache.GetStream(ctx, args[0])
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	f, err := os.Create(args[1])
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, f.Close()) }()

	n, err := io.Copy(f, rc)
	if err != nil {
		return err
	}
	s.println(humanize.IBytes(uint64(n)), "->", args[1])
	return nil
}

func (s *session) has(_ context.Context, args []string) error {
	s.println(s.cache.Has(args[0]))
	return nil
}

func (s *session) wait(ctx context.Context, args []string) error {
	key, err := s.cache.Wait(ctx, args[0])
	if err != nil {
		return err
	}
	path, err := s.cache.Path(key)
	if err != nil {
		return err
	}
	s.println(path)
	return nil
}

func (s *session) del(_ context.Context, args []string) error {
	s.cache.Del(args[0])
	s.println("OK")
	return nil
}

func (s *session) size(context.Context, []string) error {
	s.println(formatWeight(s.cache.Stats().Mode, s.cache.Size()))
	return nil
}

func (s *session) len(context.Context, []string) error {
	s.println(s.cache.Len())
	return nil
}

func (s *session) keys(context.Context, []string) error {
	keys := s.cache.Keys()
	if len(keys) == 0 {
		s.println("(empty)")
		return nil
	}
	for _, k := range keys {
		s.println(k)
	}
	return nil
}

func (s *session) prune(context.Context, []string) error {
	_, _ = fmt.Fprintf(s.out, "pruned %d\n", s.cache.Prune())
	return nil
}

func (s *session) reset(context.Context, []string) error {
	if err := s.cache.Reset(); err != nil {
		return err
	}
	s.println("OK")
	return nil
}

func (s *session) resize(_ context.Context, args []string) error {
	capacity, err := parseCapacity(s.cache.Stats().Mode, args[0])
	if err != nil {
		return err
	}
	n, err := s.cache.Resize(capacity)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(s.out, "evicted %d\n", n)
	return nil
}

func (s *session) stats(context.Context, []string) error {
	st := s.cache.Stats()
	w := s.out
	_, _ = fmt.Fprintf(w, "mode:            %s\n", st.Mode)
	_, _ = fmt.Fprintf(w, "capacity:        %s\n", formatWeight(st.Mode, st.Capacity))
	_, _ = fmt.Fprintf(w, "size:            %s\n", formatWeight(st.Mode, st.Size))
	_, _ = fmt.Fprintf(w, "entries:         %d\n", st.Entries)
	_, _ = fmt.Fprintf(w, "pending:         %d\n", st.Pending)
	_, _ = fmt.Fprintf(w, "hits:            %d\n", st.Hits)
	_, _ = fmt.Fprintf(w, "misses:          %d\n", st.Misses)
	_, _ = fmt.Fprintf(w, "writes:          %d\n", st.Writes)
	_, _ = fmt.Fprintf(w, "write_errors:    %d\n", st.WriteErrors)
	_, _ = fmt.Fprintf(w, "joined:          %d\n", st.Joined)
	_, _ = fmt.Fprintf(w, "discarded:       %d\n", st.Discarded)
	_, _ = fmt.Fprintf(w, "rejected:        %d\n", st.Rejected)
	_, _ = fmt.Fprintf(w, "evictions:       %d\n", st.Evictions)
	_, _ = fmt.Fprintf(w, "expired:         %d\n", st.Expired)
	_, _ = fmt.Fprintf(w, "disposals:       %d\n", st.Disposals)
	_, _ = fmt.Fprintf(w, "disposal_errors: %d\n", st.DisposalErrors)
	return nil
}

func (s *session) metrics(ctx context.Context, _ []string) error {
	return s.tel.dump(ctx, s.out)
}

func (s *session) help(context.Context, []string) error {
	for _, name := range replOrder {
		cmd := replCommands[name]
		_, _ = fmt.Fprintf(s.out, "  %-22s %s\n", cmd.usage, cmd.desc)
	}
	_, _ = fmt.Fprintf(s.out, "  %-22s %s\n", "quit | exit", "退出")
	return nil
}

// formatWeight 字节模式附带可读单位，条目数模式原样输出。
func formatWeight(mode string, n int64) string {
	if mode == "count" || n < 0 {
		return strconv.FormatInt(n, 10)
	}
	return fmt.Sprintf("%d (%s)", n, humanize.IBytes(uint64(n)))
}

// parseCapacity 字节模式接受 humanize 写法，条目数模式只接受整数。
func parseCapacity(mode, s string) (int64, error) {
	if mode == "count" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("无效的条目数 %q", s)
		}
		return n, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("无效的容量 %q: %w", s, err)
	}
	if n > uint64(1<<63-1) {
		return 0, fmt.Errorf("容量 %q 超出范围", s)
	}
	return int64(n), nil
}

// parseCommandLine 解析命令行，支持引号和反斜杠转义。
func parseCommandLine(line string) []string {
	var parts []string
	var current strings.Builder
	var inQuote bool
	var quoteChar rune
	var escaped bool
	// 引号包围的空串也是一个参数
	var quoted bool

	for _, r := range line {
		if escaped {
			current.WriteRune(r)
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}

		switch {
		case isQuoteStart(r, inQuote):
			inQuote = true
			quoteChar = r
			quoted = true
		case isQuoteEnd(r, quoteChar, inQuote):
			inQuote = false
			quoteChar = 0
		case isWordSeparator(r, inQuote):
			if current.Len() > 0 || quoted {
				parts = append(parts, current.String())
				current.Reset()
				quoted = false
			}
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 || quoted {
		parts = append(parts, current.String())
	}
	return parts
}

func isQuoteStart(r rune, inQuote bool) bool {
	return (r == '"' || r == '\'') && !inQuote
}

func isQuoteEnd(r, quoteChar rune, inQuote bool) bool {
	return r == quoteChar && inQuote
}

// 仅空格分词，Tab 视为参数的一部分。
func isWordSeparator(r rune, inQuote bool) bool {
	return r == ' ' && !inQuote
}
