package xdiskcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/omeyang/xdiskcache/pkg/observability/xmetrics"
	"github.com/omeyang/xdiskcache/pkg/util/xfile"
	"github.com/omeyang/xdiskcache/pkg/util/xlru"
)

const componentName = "xdiskcache"

// 观测操作名。
const (
	opSet       = "set"
	opGet       = "get"
	opGetStream = "get_stream"
	opWait      = "wait"
	opDel       = "del"
	opPrune     = "prune"
	opReset     = "reset"
	opResize    = "resize"
)

// Cache 是以目录为后端、按字节数或条目数限容的 LRU 缓存。
//
// 每个 key 对应目录下的一个文件，内存中只保存 key、权重和最近使用顺序。
// 所有方法都是并发安全的。一个目录同一时间只能被一个 Cache 实例使用。
type Cache struct {
	dir      string
	store    *fileStore
	dirPerm  os.FileMode
	logger   *slog.Logger
	observer xmetrics.Observer
	onError  func(error)
	stats    counters

	// mu 保护 index、pending、closed 和 deferred。
	// 文件读写在锁外进行；淘汰时的删除在锁内进行，
	// 这样同一 key 的新写入不会与淘汰的删除交错。
	mu       sync.Mutex
	index    *xlru.Index[string]
	pending  pendingTable
	closed   bool
	deferred []error
}

// New 创建缓存。不访问磁盘，使用前需调用 Init 或 Reset。
//
// 默认字节模式、容量 10 MiB、永不过期。
func New(dir string, opts ...Option) (*Cache, error) {
	if dir == "" {
		return nil, ErrEmptyDir
	}

	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	cfg := xlru.Config{Capacity: o.maxBytes, Mode: xlru.ModeSize, MaxAge: o.maxAge}
	if o.maxEntries > 0 {
		cfg = xlru.Config{Capacity: o.maxEntries, Mode: xlru.ModeCount, MaxAge: o.maxAge}
	}

	c := &Cache{
		dir:      dir,
		store:    &fileStore{dir: dir, hasher: o.hasher, perm: o.filePerm},
		dirPerm:  o.dirPerm,
		logger:   o.logger.With(slog.String("dir", dir)),
		observer: o.observer,
		onError:  o.onError,
		pending:  newPendingTable(),
	}
	if c.onError == nil {
		c.onError = c.logError
	}

	index, err := xlru.New[string](cfg,
		xlru.WithOnDispose(c.dispose),
		xlru.WithClock[string](o.clock),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	c.index = index
	return c, nil
}

// Dir 返回缓存目录。
func (c *Cache) Dir() string { return c.dir }

// Path 返回 key 对应的文件路径。文件不一定存在。
func (c *Cache) Path(key string) (string, error) {
	return c.store.path(key)
}

// Init 确保缓存目录存在，不清理已有内容。
//
// 目录中遗留的文件不会被纳入索引；需要干净状态时使用 Reset。
func (c *Cache) Init() error {
	c.mu.Lock()
	defer c.unlock()
	if c.closed {
		return ErrClosed
	}
	return xfile.EnsureDir(c.dir, c.dirPerm)
}

// Reset 清空索引，删除缓存目录后重新创建。
// 有写入进行中时返回 ErrInvalidState，不做任何改动。
func (c *Cache) Reset() (err error) {
	_, span := c.start(context.Background(), opReset)
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	c.mu.Lock()
	defer c.unlock()
	if c.closed {
		return ErrClosed
	}
	if n := c.pending.len(); n > 0 {
		return fmt.Errorf("%w: %d writes pending", ErrInvalidState, n)
	}
	// 目录操作也在锁内，避免与新写入交错
	c.index.Purge()
	return xfile.ResetDir(c.dir, c.dirPerm)
}

// Has 报告索引中是否有该 key，不等待进行中的写入，也不改变最近使用顺序。
func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.unlock()
	if c.closed {
		return false
	}
	return c.index.Has(key)
}

// Wait 等待 key 的进行中写入结束并返回其结果。
// 没有进行中的写入时刷新最近使用顺序并直接返回 key，无论 key 是否存在。
//
// ctx 只限制等待时间，取消 ctx 不会中止写入。
func (c *Cache) Wait(ctx context.Context, key string) (_ string, err error) {
	ctx, span := c.start(ctx, opWait)
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	c.mu.Lock()
	if c.closed {
		c.unlock()
		return "", ErrClosed
	}
	w, ok := c.pending.lookup(key)
	if !ok {
		c.index.Touch(key)
		c.unlock()
		return key, nil
	}
	c.unlock()

	if err := w.wait(ctx); err != nil {
		return "", err
	}
	return key, nil
}

// Get 等待进行中的写入后读取全部内容。
// key 从未提交、已淘汰或已删除时返回 ErrNotFound。
func (c *Cache) Get(ctx context.Context, key string) (_ []byte, err error) {
	ctx, span := c.start(ctx, opGet)
	var n int64
	defer func() { c.endRead(span, n, err) }()

	path, err := c.await(ctx, key)
	if err != nil {
		return nil, err
	}
	data, err := c.store.read(path)
	if err != nil {
		return nil, err
	}
	n = int64(len(data))
	return data, nil
}

// GetString 同 Get，以字符串返回内容。
func (c *Cache) GetString(ctx context.Context, key string) (string, error) {
	data, err := c.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GetStream 等待进行中的写入后打开文件，调用方负责关闭返回的 ReadCloser。
//
// 文件在返回前已打开，之后的淘汰或删除不影响已打开的读取。
// key 不存在时返回 ErrNotFound。
func (c *Cache) GetStream(ctx context.Context, key string) (_ io.ReadCloser, err error) {
	ctx, span := c.start(ctx, opGetStream)
	defer func() { c.endRead(span, 0, err) }()

	path, err := c.await(ctx, key)
	if err != nil {
		return nil, err
	}
	return c.store.readStream(path)
}

// Set 写入 key，成功后返回 key。
//
// 同一 key 已有写入进行中时不会发起第二次写入，而是等待并返回那次写入的结果。
// 写入失败时返回 ErrWriteFailed，并移除该 key 之前提交的值。
// 字节模式下单个值超过容量时返回 ErrTooLarge。
// 写入期间 key 被 Del 时返回 ErrDiscarded，写入的文件被删除。
//
// 写入一旦开始就会执行到结束；ctx 只限制加入他人写入时的等待。
func (c *Cache) Set(ctx context.Context, key string, payload Payload) (_ string, err error) {
	ctx, span := c.start(ctx, opSet)
	var (
		n       int64
		evicted int
	)
	defer func() { span.End(xmetrics.Result{Err: err, Bytes: n, Evicted: evicted}) }()

	if err := checkPayload(payload); err != nil {
		return "", err
	}
	path, err := c.store.path(key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	for {
		c.mu.Lock()
		if c.closed {
			c.unlock()
			return "", ErrClosed
		}
		w, ok := c.pending.lookup(key)
		if !ok {
			break
		}
		discarded := w.discarded
		c.unlock()

		if !discarded {
			c.stats.joined.Add(1)
			if err := w.wait(ctx); err != nil {
				return "", err
			}
			return key, nil
		}
		// 被丢弃的写入结束后再发起新写入，保证同一 key 最多一个写入
		if err := w.settled(ctx); err != nil {
			return "", err
		}
	}

	w := c.pending.begin(key)
	c.unlock()

	n, werr := c.store.write(path, payload)

	c.mu.Lock()
	evicted, err = c.commit(key, path, w, n, werr)
	c.pending.settle(key, w, err)
	c.unlock()

	if err != nil {
		return "", err
	}
	return key, nil
}

// Del 从索引中移除 key 并删除其文件。key 不存在时为空操作。
//
// 进行中的写入不会被中止，但其结果会被丢弃：文件被删除，key 不会重新出现。
func (c *Cache) Del(key string) {
	_, span := c.start(context.Background(), opDel)
	defer span.End(xmetrics.Result{})

	c.mu.Lock()
	defer c.unlock()
	if c.closed {
		return
	}
	c.pending.discard(key)
	c.index.Remove(key)
}

// Size 返回索引的总权重：字节模式下为字节数，条目数模式下为条目数。
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.unlock()
	return c.index.Weight()
}

// Len 返回索引中的条目数。
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.unlock()
	return c.index.Len()
}

// Keys 返回所有 key，按从最久未使用到最近使用排列。
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.unlock()
	return c.index.Keys()
}

// Prune 删除所有已过期的条目，返回删除的数量。未配置 WithMaxAge 时为空操作。
func (c *Cache) Prune() int {
	_, span := c.start(context.Background(), opPrune)

	c.mu.Lock()
	n := c.index.PruneExpired()
	c.unlock()

	c.stats.expired.Add(uint64(n))
	span.End(xmetrics.Result{Evicted: n})
	return n
}

// Resize 在运行时调整容量，超出部分按最久未使用优先淘汰。返回淘汰的条目数。
func (c *Cache) Resize(capacity int64) (n int, err error) {
	_, span := c.start(context.Background(), opResize)
	defer func() { span.End(xmetrics.Result{Err: err, Evicted: n}) }()

	c.mu.Lock()
	defer c.unlock()
	if c.closed {
		return 0, ErrClosed
	}
	n, err = c.index.Resize(capacity)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	c.stats.evictions.Add(uint64(n))
	c.logger.Info("xdiskcache: resized",
		slog.Int64("capacity", capacity),
		slog.Int("evicted", n),
	)
	return n, nil
}

// Stats 返回状态快照。
//
// Size、Len、Keys 和 Stats 是只读快照，Close 之后仍然可用。
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	s := Stats{
		Mode:     c.index.Mode().String(),
		Capacity: c.index.Capacity(),
		Size:     c.index.Weight(),
		Entries:  c.index.Len(),
		Pending:  c.pending.len(),
	}
	c.unlock()
	c.stats.fill(&s)
	return s
}

// Close 关闭缓存，之后的操作返回 ErrClosed（Has 返回 false）。
// Size、Len、Keys 和 Stats 不受影响，继续返回关闭时的状态。
// 进行中的写入照常完成并提交。目录中的文件保留。可重复调用。
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.unlock()
	c.closed = true
	return nil
}

// await 等待进行中的写入，然后刷新最近使用顺序。返回 key 的文件路径。
func (c *Cache) await(ctx context.Context, key string) (string, error) {
	path, err := c.store.path(key)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	if c.closed {
		c.unlock()
		return "", ErrClosed
	}
	if w, ok := c.pending.lookup(key); ok {
		c.unlock()
		if err := w.wait(ctx); err != nil {
			if errors.Is(err, ErrDiscarded) {
				return "", fmt.Errorf("%w: %w", ErrNotFound, err)
			}
			return "", err
		}
		c.mu.Lock()
	}
	present := c.index.Touch(key)
	c.unlock()

	if !present {
		return "", ErrNotFound
	}
	return path, nil
}

// commit 在持有 mu 时根据写入结果更新索引，返回淘汰数和 Set 的最终结果。
func (c *Cache) commit(key, path string, w *pendingWrite, n int64, werr error) (int, error) {
	if w.discarded {
		c.stats.discarded.Add(1)
		c.removeFile(key, path)
		if werr != nil {
			return 0, fmt.Errorf("%w: %w", ErrWriteFailed, werr)
		}
		return 0, ErrDiscarded
	}

	if werr != nil {
		c.stats.writeErrors.Add(1)
		c.evict(key, path)
		c.logger.Warn("xdiskcache: write failed",
			slog.String("key", key),
			slog.Any("error", werr),
		)
		return 0, fmt.Errorf("%w: %w", ErrWriteFailed, werr)
	}

	evicted, err := c.index.Insert(key, n)
	switch {
	case errors.Is(err, xlru.ErrTooHeavy):
		// 新文件已覆盖旧值，旧条目一并移除
		c.stats.rejected.Add(1)
		c.evict(key, path)
		c.logger.Warn("xdiskcache: value exceeds capacity",
			slog.String("key", key),
			slog.Int64("bytes", n),
			slog.Int64("capacity", c.index.Capacity()),
		)
		return 0, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, n, c.index.Capacity())
	case err != nil:
		c.stats.writeErrors.Add(1)
		c.evict(key, path)
		return 0, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	c.stats.writes.Add(1)
	if evicted > 0 {
		c.stats.evictions.Add(uint64(evicted))
		c.logger.Debug("xdiskcache: evicted",
			slog.Int("count", evicted),
			slog.Int64("size", c.index.Weight()),
		)
	}
	return evicted, nil
}

// evict 在写入失败时移除 key 的索引条目和文件。
// key 仍登记为进行中，处置回调会跳过删除，因此这里自己删除。
func (c *Cache) evict(key, path string) {
	c.index.Remove(key)
	c.removeFile(key, path)
}

// dispose 是索引的处置回调，在持有 mu 时执行。
// key 有进行中的写入时跳过删除：文件即将被该写入创建或替换。
func (c *Cache) dispose(key string, _ int64) {
	if _, ok := c.pending.lookup(key); ok {
		return
	}
	c.stats.disposals.Add(1)
	path, err := c.store.path(key)
	if err != nil {
		c.deferError(fmt.Errorf("%w: %s: %w", ErrDisposalFailed, key, err))
		return
	}
	if err := c.store.remove(path); err != nil {
		c.deferError(fmt.Errorf("%w: %s: %w", ErrDisposalFailed, key, err))
	}
}

// removeFile 删除文件，文件本不存在不算错误。
func (c *Cache) removeFile(key, path string) {
	if err := c.store.remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.deferError(fmt.Errorf("%w: %s: %w", ErrDisposalFailed, key, err))
	}
}

// deferError 暂存错误，在 unlock 时交给 onError。
func (c *Cache) deferError(err error) {
	c.stats.disposalErrors.Add(1)
	c.deferred = append(c.deferred, err)
}

// unlock 释放 mu，并在锁外上报期间暂存的错误。
func (c *Cache) unlock() {
	errs := c.deferred
	c.deferred = nil
	c.mu.Unlock()
	for _, err := range errs {
		c.onError(err)
	}
}

func (c *Cache) logError(err error) {
	c.logger.Error("xdiskcache: disposal failed", slog.Any("error", err))
}

func (c *Cache) start(ctx context.Context, op string) (context.Context, xmetrics.Span) {
	return xmetrics.Start(ctx, c.observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: op,
		Attrs:     []xmetrics.Attr{xmetrics.String("mode", c.index.Mode().String())},
	})
}

// endRead 结束读操作的观测，未命中记为 miss 而不是 error。
func (c *Cache) endRead(span xmetrics.Span, n int64, err error) {
	switch {
	case err == nil:
		c.stats.hits.Add(1)
		span.End(xmetrics.Result{Bytes: n})
	case errors.Is(err, ErrNotFound):
		c.stats.misses.Add(1)
		span.End(xmetrics.Result{Status: xmetrics.StatusMiss, Err: err})
	default:
		span.End(xmetrics.Result{Err: err})
	}
}
