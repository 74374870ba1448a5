package xlru

import (
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/jonboulle/clockwork"
)

// maxEntries 底层有序表的条目数上限。
// 字节模式下零字节条目不占权重，条目数仍受此上限约束。
const maxEntries = 1 << 24 // 16,777,216

// Mode 定义条目权重的计量方式，构造后不可更改。
type Mode int

const (
	// ModeSize 容量为字节预算，条目权重为其字节长度。
	ModeSize Mode = iota
	// ModeCount 容量为最大条目数，每个条目权重固定为 1。
	ModeCount
)

// String 返回 Mode 的可读字符串表示。
func (m Mode) String() string {
	switch m {
	case ModeSize:
		return "size"
	case ModeCount:
		return "count"
	default:
		return "Mode(" + strconv.Itoa(int(m)) + ")"
	}
}

// Config 定义索引配置。
type Config struct {
	// Capacity 容量。ModeSize 下为字节数，ModeCount 下为条目数。
	// 必须大于 0；ModeCount 下不超过 16,777,216。
	Capacity int64

	// Mode 计量模式，默认 ModeSize。
	Mode Mode

	// MaxAge 条目最大存活时间，从最近一次 Insert 开始计算。
	// 0 表示永不过期，不允许负值。
	MaxAge time.Duration
}

func (c Config) validate() error {
	switch c.Mode {
	case ModeSize, ModeCount:
	default:
		return fmt.Errorf("%w: %d", ErrInvalidMode, int(c.Mode))
	}
	if c.Capacity <= 0 {
		return ErrInvalidCapacity
	}
	if c.Mode == ModeCount && c.Capacity > maxEntries {
		return fmt.Errorf("%w: count capacity %d exceeds %d", ErrInvalidCapacity, c.Capacity, maxEntries)
	}
	if c.MaxAge < 0 {
		return ErrInvalidMaxAge
	}
	return nil
}

// DisposeFunc 在条目离开索引之前被调用（淘汰、过期、Remove 均会触发）。
//
// 回调执行时条目仍在索引中，回调内严禁调用 Index 自身的方法。
type DisposeFunc[K comparable] func(key K, weight int64)

type entry struct {
	weight   int64
	storedAt time.Time
}

// Index 是按最近使用顺序排列、按权重限容的索引。
//
// Index 不是并发安全的：调用方必须用同一把锁串行化所有方法调用。
// 这样索引变更可以和调用方自己的元数据（如写入中的 key 表）原子地一起提交。
type Index[K comparable] struct {
	lru       *simplelru.LRU[K, entry]
	mode      Mode
	capacity  int64
	maxAge    time.Duration
	weight    int64
	onDispose DisposeFunc[K]
	clock     clockwork.Clock
}

// New 创建索引。
// cfg 无效时返回 ErrInvalidCapacity、ErrInvalidMode 或 ErrInvalidMaxAge。
func New[K comparable](cfg Config, opts ...Option[K]) (*Index[K], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := &options[K]{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	// 淘汰由 Index 自己驱动，底层表只做有序 map，不注册回调。
	lru, err := simplelru.NewLRU[K, entry](maxEntries, nil)
	if err != nil {
		return nil, err
	}

	return &Index[K]{
		lru:       lru,
		mode:      cfg.Mode,
		capacity:  cfg.Capacity,
		maxAge:    cfg.MaxAge,
		onDispose: o.onDispose,
		clock:     o.clock,
	}, nil
}

// Mode 返回计量模式。
func (ix *Index[K]) Mode() Mode { return ix.mode }

// Capacity 返回当前容量。
func (ix *Index[K]) Capacity() int64 { return ix.capacity }

// Has 报告 key 是否存在且未过期，不改变最近使用顺序。
func (ix *Index[K]) Has(key K) bool {
	e, ok := ix.lru.Peek(key)
	return ok && !ix.expired(e)
}

// Touch 刷新 key 的最近使用顺序，返回 key 是否存在。
// 已过期的条目会经过处置回调后被移除，并返回 false。
func (ix *Index[K]) Touch(key K) bool {
	e, ok := ix.lru.Peek(key)
	if !ok {
		return false
	}
	if ix.expired(e) {
		ix.drop(key, e)
		return false
	}
	ix.lru.Get(key)
	return true
}

// Insert 插入或替换条目并刷新其存活时间，然后按最旧优先淘汰直到满足容量。
// 返回被淘汰的条目数。
//
// ModeCount 下 weight 被忽略，固定计为 1。
// ModeSize 下 weight 超过容量时返回 ErrTooHeavy，索引保持不变。
// 替换已有 key 不触发处置回调。
func (ix *Index[K]) Insert(key K, weight int64) (int, error) {
	if ix.mode == ModeCount {
		weight = 1
	}
	if weight < 0 {
		return 0, ErrInvalidWeight
	}
	if ix.mode == ModeSize && weight > ix.capacity {
		return 0, fmt.Errorf("%w: %d > %d", ErrTooHeavy, weight, ix.capacity)
	}

	if old, ok := ix.lru.Peek(key); ok {
		ix.weight -= old.weight
	} else if ix.lru.Len() >= maxEntries {
		// 给新条目腾位置，避免底层表绕过处置回调自行淘汰。
		ix.evictOldest()
	}

	ix.lru.Add(key, entry{weight: weight, storedAt: ix.clock.Now()})
	ix.weight += weight

	return ix.shrink(), nil
}

// Remove 移除条目。条目存在时先调用一次处置回调，返回 true。
func (ix *Index[K]) Remove(key K) bool {
	e, ok := ix.lru.Peek(key)
	if !ok {
		return false
	}
	ix.drop(key, e)
	return true
}

// Resize 调整容量并按最旧优先淘汰直到满足新容量，返回被淘汰的条目数。
func (ix *Index[K]) Resize(capacity int64) (int, error) {
	cfg := Config{Capacity: capacity, Mode: ix.mode, MaxAge: ix.maxAge}
	if err := cfg.validate(); err != nil {
		return 0, err
	}
	ix.capacity = capacity
	return ix.shrink(), nil
}

// PruneExpired 处置并移除所有已过期条目，返回移除的数量。
// 未配置 MaxAge 时为空操作。
func (ix *Index[K]) PruneExpired() int {
	if ix.maxAge <= 0 {
		return 0
	}
	pruned := 0
	for _, key := range ix.lru.Keys() {
		e, ok := ix.lru.Peek(key)
		if ok && ix.expired(e) {
			ix.drop(key, e)
			pruned++
		}
	}
	return pruned
}

// Purge 清空索引，不调用处置回调。
func (ix *Index[K]) Purge() {
	ix.lru.Purge()
	ix.weight = 0
}

// Weight 返回所有条目的权重之和。
func (ix *Index[K]) Weight() int64 { return ix.weight }

// Len 返回条目数（可能包含已过期但尚未清理的条目）。
func (ix *Index[K]) Len() int { return ix.lru.Len() }

// Keys 返回所有 key，按从最旧到最新排列。
func (ix *Index[K]) Keys() []K { return ix.lru.Keys() }

// shrink 按最旧优先淘汰直到满足容量。
func (ix *Index[K]) shrink() int {
	evicted := 0
	for ix.over() && ix.evictOldest() {
		evicted++
	}
	return evicted
}

func (ix *Index[K]) over() bool {
	if ix.mode == ModeCount {
		return int64(ix.lru.Len()) > ix.capacity
	}
	return ix.weight > ix.capacity
}

func (ix *Index[K]) evictOldest() bool {
	key, e, ok := ix.lru.GetOldest()
	if !ok {
		return false
	}
	ix.drop(key, e)
	return true
}

// drop 先回调再移除，回调期间条目仍可被观察到。
func (ix *Index[K]) drop(key K, e entry) {
	if ix.onDispose != nil {
		ix.onDispose(key, e.weight)
	}
	ix.lru.Remove(key)
	ix.weight -= e.weight
}

func (ix *Index[K]) expired(e entry) bool {
	return ix.maxAge > 0 && ix.clock.Since(e.storedAt) > ix.maxAge
}
