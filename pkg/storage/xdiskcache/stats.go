package xdiskcache

import "sync/atomic"

// Stats 是缓存状态快照。
type Stats struct {
	// Mode 计量模式："size" 或 "count"。
	Mode string
	// Capacity 当前容量。
	Capacity int64
	// Size 当前总权重，等同于 Size()。
	Size int64
	// Entries 索引中的条目数。
	Entries int
	// Pending 进行中的写入数。
	Pending int

	Hits           uint64
	Misses         uint64
	Writes         uint64
	WriteErrors    uint64
	Joined         uint64
	Discarded      uint64
	Rejected       uint64
	Evictions      uint64
	Expired        uint64
	Disposals      uint64
	DisposalErrors uint64
}

type counters struct {
	hits           atomic.Uint64
	misses         atomic.Uint64
	writes         atomic.Uint64
	writeErrors    atomic.Uint64
	joined         atomic.Uint64
	discarded      atomic.Uint64
	rejected       atomic.Uint64
	evictions      atomic.Uint64
	expired        atomic.Uint64
	disposals      atomic.Uint64
	disposalErrors atomic.Uint64
}

func (c *counters) fill(s *Stats) {
	s.Hits = c.hits.Load()
	s.Misses = c.misses.Load()
	s.Writes = c.writes.Load()
	s.WriteErrors = c.writeErrors.Load()
	s.Joined = c.joined.Load()
	s.Discarded = c.discarded.Load()
	s.Rejected = c.rejected.Load()
	s.Evictions = c.evictions.Load()
	s.Expired = c.expired.Load()
	s.Disposals = c.disposals.Load()
	s.DisposalErrors = c.disposalErrors.Load()
}
