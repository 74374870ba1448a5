package xdiskcache

import "context"

// pendingWrite 是一次进行中的写入。同一 key 的并发 Set 共享同一个结果。
//
// err 和 discarded 只能在持有 Cache.mu 时读写；
// done 关闭之后 err 不再变化，可以无锁读取。
type pendingWrite struct {
	done      chan struct{}
	err       error
	discarded bool
}

// settled 阻塞直到写入结束或 ctx 结束。ctx 结束不会中止写入。
func (w *pendingWrite) settled(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// wait 阻塞直到写入结束，返回写入结果。
func (w *pendingWrite) wait(ctx context.Context) error {
	if err := w.settled(ctx); err != nil {
		return err
	}
	return w.err
}

// pendingTable 记录每个 key 的进行中写入，同一 key 最多一个。
// 不是并发安全的，由 Cache.mu 保护。
type pendingTable struct {
	writes map[string]*pendingWrite
}

func newPendingTable() pendingTable {
	return pendingTable{writes: make(map[string]*pendingWrite)}
}

func (t *pendingTable) lookup(key string) (*pendingWrite, bool) {
	w, ok := t.writes[key]
	return w, ok
}

// begin 登记一次新写入。调用方须先确认 key 没有进行中的写入。
func (t *pendingTable) begin(key string) *pendingWrite {
	w := &pendingWrite{done: make(chan struct{})}
	t.writes[key] = w
	return w
}

// discard 标记进行中的写入在提交时丢弃，返回是否存在进行中的写入。
func (t *pendingTable) discard(key string) bool {
	w, ok := t.writes[key]
	if ok {
		w.discarded = true
	}
	return ok
}

// settle 记录结果、唤醒所有等待者并清除登记。
func (t *pendingTable) settle(key string, w *pendingWrite, err error) {
	w.err = err
	if t.writes[key] == w {
		delete(t.writes, key)
	}
	close(w.done)
}

func (t *pendingTable) len() int {
	return len(t.writes)
}
