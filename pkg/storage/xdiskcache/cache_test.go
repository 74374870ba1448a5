package xdiskcache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xdiskcache/pkg/observability/xmetrics"
	"github.com/omeyang/xdiskcache/pkg/util/xfile"
)

// =============================================================================
// 构造
// =============================================================================

func TestNew_Validation(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrEmptyDir)

	dir := t.TempDir()
	tests := []struct {
		name string
		opts []Option
	}{
		{"zero max bytes", []Option{WithMaxBytes(0)}},
		{"negative max bytes", []Option{WithMaxBytes(-1)}},
		{"negative max age", []Option{WithMaxAge(-time.Second)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(dir, tt.opts...)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	c, err := New(t.TempDir(), nil, WithLogger(nil), WithObserver(nil), WithKeyHasher(nil), WithClock(nil), WithOnError(nil))
	require.NoError(t, err)

	s := c.Stats()
	assert.Equal(t, "size", s.Mode)
	assert.Equal(t, DefaultMaxBytes, s.Capacity)
	assert.Zero(t, s.Size)
}

func TestNew_CountModeIgnoresMaxBytes(t *testing.T) {
	c, err := New(t.TempDir(), WithMaxBytes(1), WithMaxEntries(5))
	require.NoError(t, err)
	s := c.Stats()
	assert.Equal(t, "count", s.Mode)
	assert.Equal(t, int64(5), s.Capacity)
}

// =============================================================================
// 基本读写
// =============================================================================

func TestCache_SetGet_RoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	payloads := map[string][]byte{
		"plain":  []byte("hello"),
		"empty":  {},
		"nil":    nil,
		"binary": {0x00, 0xff, 0x10, 0x00},
		"large":  bytes.Repeat([]byte("x"), 64<<10),
	}
	for name, v := range payloads {
		t.Run(name, func(t *testing.T) {
			key, err := c.Set(ctx, name, Bytes(v))
			require.NoError(t, err)
			assert.Equal(t, name, key)
			assert.True(t, c.Has(name))

			got, err := c.Get(ctx, name)
			require.NoError(t, err)
			assert.Equal(t, len(v), len(got))
			assert.True(t, bytes.Equal(v, got))
		})
	}
	assertConsistent(t, c)
}

func TestCache_SetStream_GetStream(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_, err := c.Set(ctx, "s", Stream(strings.NewReader("streamed body")))
	require.NoError(t, err)
	assert.Equal(t, int64(len("streamed body")), c.Size())

	rc, err := c.GetStream(ctx, "s")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "streamed body", string(data))

	s, err := c.GetString(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "streamed body", s)
}

func TestCache_Set_OverwriteReplacesWeight(t *testing.T) {
	c := newTestCache(t, WithMaxBytes(100))
	ctx := context.Background()

	_, err := c.Set(ctx, "k", String("0123456789"))
	require.NoError(t, err)
	_, err = c.Set(ctx, "k", String("abc"))
	require.NoError(t, err)

	assert.Equal(t, int64(3), c.Size())
	assert.Equal(t, 1, c.Len())
	got, err := c.GetString(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", got)
}

func TestCache_Set_NilPayload(t *testing.T) {
	c := newTestCache(t)
	_, err := c.Set(context.Background(), "k", nil)
	assert.ErrorIs(t, err, ErrNilPayload)
	_, err = c.Set(context.Background(), "k", Stream(nil))
	assert.ErrorIs(t, err, ErrNilPayload)
	assert.False(t, c.Has("k"))
}

func TestCache_Get_NotFound(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "never")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.GetStream(ctx, "never")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.GetString(ctx, "never")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCache_Get_FileRemovedExternally(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	_, err := c.Set(ctx, "k", String("v"))
	require.NoError(t, err)

	p, err := c.Path("k")
	require.NoError(t, err)
	require.NoError(t, os.Remove(p))

	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

// =============================================================================
// 淘汰
// =============================================================================

func TestCache_SizeMode_Eviction(t *testing.T) {
	c := newTestCache(t, WithMaxBytes(10))
	ctx := context.Background()

	_, err := c.Set(ctx, "a", Bytes(make([]byte, 5)))
	require.NoError(t, err)
	assert.Equal(t, int64(5), c.Size())

	_, err = c.Set(ctx, "b", Bytes(make([]byte, 7)))
	require.NoError(t, err)
	assert.Equal(t, int64(7), c.Size())
	assert.False(t, c.Has("a"))
	assert.True(t, c.Has("b"))
	assert.False(t, fileExists(t, c, "a"))

	_, err = c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, uint64(1), c.Stats().Evictions)
	assertConsistent(t, c)
}

func TestCache_CountMode_Eviction(t *testing.T) {
	c := newTestCache(t, WithMaxEntries(3))
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		_, err := c.Set(ctx, k, String(strings.Repeat(k, 100)))
		require.NoError(t, err)
	}
	assert.Equal(t, int64(3), c.Size())

	_, err := c.Set(ctx, "d", String("d"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), c.Size())
	assert.False(t, c.Has("a"))
	assert.Equal(t, []string{"b", "c", "d"}, c.Keys())
	assertConsistent(t, c)
}

func TestCache_Get_RefreshesRecency(t *testing.T) {
	c := newTestCache(t, WithMaxEntries(3))
	ctx := context.Background()
	for _, k := range []string{"a", "b", "c"} {
		_, err := c.Set(ctx, k, String(k))
		require.NoError(t, err)
	}

	_, err := c.Get(ctx, "a")
	require.NoError(t, err)
	_, err = c.Wait(ctx, "b")
	require.NoError(t, err)
	// Has 不刷新
	assert.True(t, c.Has("c"))

	_, err = c.Set(ctx, "d", String("d"))
	require.NoError(t, err)
	assert.False(t, c.Has("c"))
	assert.True(t, c.Has("a"))
	assert.True(t, c.Has("b"))
}

func TestCache_SizeNeverExceedsCapacity(t *testing.T) {
	const capacity = 64
	c := newTestCache(t, WithMaxBytes(capacity))
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		_, err := c.Set(ctx, fmt.Sprintf("k%d", i%17), Bytes(make([]byte, (i*7)%capacity+1)))
		require.NoError(t, err)
		assert.LessOrEqual(t, c.Size(), int64(capacity))
	}
	assertConsistent(t, c)
}

func TestCache_Set_OversizedEntryRejected(t *testing.T) {
	c := newTestCache(t, WithMaxBytes(10))
	ctx := context.Background()

	_, err := c.Set(ctx, "small", String("12345"))
	require.NoError(t, err)
	_, err = c.Set(ctx, "big", String("0123456789A"))
	assert.ErrorIs(t, err, ErrTooLarge)

	assert.False(t, c.Has("big"))
	assert.False(t, fileExists(t, c, "big"))
	assert.True(t, c.Has("small"), "rejection must not evict others")
	assert.Equal(t, int64(5), c.Size())
	assert.Equal(t, uint64(1), c.Stats().Rejected)

	t.Run("overwrite with oversized drops previous value", func(t *testing.T) {
		_, err := c.Set(ctx, "small", String("0123456789AB"))
		assert.ErrorIs(t, err, ErrTooLarge)
		assert.False(t, c.Has("small"))
		assert.Zero(t, c.Size())
		assertConsistent(t, c)
	})

	t.Run("exactly capacity is accepted", func(t *testing.T) {
		_, err := c.Set(ctx, "exact", String("0123456789"))
		require.NoError(t, err)
		assert.Equal(t, int64(10), c.Size())
	})
}

func TestCache_CountMode_NoSizeLimit(t *testing.T) {
	c := newTestCache(t, WithMaxEntries(1), WithMaxBytes(1))
	_, err := c.Set(context.Background(), "k", Bytes(make([]byte, 1024)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Size())
}

// =============================================================================
// 删除
// =============================================================================

func TestCache_Del(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	t.Run("never set is no-op", func(t *testing.T) {
		c.Del("x")
		assert.False(t, c.Has("x"))
	})

	t.Run("removes entry and file", func(t *testing.T) {
		_, err := c.Set(ctx, "k", String("v"))
		require.NoError(t, err)
		require.True(t, fileExists(t, c, "k"))

		c.Del("k")
		assert.False(t, c.Has("k"))
		assert.False(t, fileExists(t, c, "k"))
		assert.Zero(t, c.Size())

		_, err = c.Get(ctx, "k")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("twice", func(t *testing.T) {
		c.Del("k")
		assert.False(t, c.Has("k"))
	})
}

// =============================================================================
// 写入协调
// =============================================================================

func TestCache_ConcurrentSet_SharesOutcome(t *testing.T) {
	c := newTestCache(t)

	gate, first := startPending(t, c, "k", "from-first", nil)
	second := goSet(c, "k", String("from-second"))

	// 第二个 Set 加入第一个写入
	assert.Eventually(t, func() bool { return c.Stats().Joined == 1 }, time.Second, 5*time.Millisecond)
	gate.open()

	r1, r2 := <-first, <-second
	require.NoError(t, r1.err)
	require.NoError(t, r2.err)
	assert.Equal(t, "k", r1.key)
	assert.Equal(t, "k", r2.key)

	got, err := c.GetString(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "from-first", got)
	assert.Equal(t, uint64(1), c.Stats().Writes)
}

func TestCache_ConcurrentSet_SharesFailure(t *testing.T) {
	c := newTestCache(t)
	boom := errors.New("upstream reset")

	gate, first := startPending(t, c, "k", "partial", boom)
	second := goSet(c, "k", String("never written"))
	assert.Eventually(t, func() bool { return c.Stats().Joined == 1 }, time.Second, 5*time.Millisecond)
	gate.open()

	for _, r := range []setResult{<-first, <-second} {
		assert.ErrorIs(t, r.err, ErrWriteFailed)
		assert.ErrorIs(t, r.err, boom)
	}
	assert.False(t, c.Has("k"))
	assertConsistent(t, c)
}

func TestCache_Set_StreamFailureRemovesPrevious(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_, err := c.Set(ctx, "k", String("previous"))
	require.NoError(t, err)

	boom := errors.New("read failed")
	_, err = c.Set(ctx, "k", Stream(errReader{err: boom}))
	assert.ErrorIs(t, err, ErrWriteFailed)
	assert.ErrorIs(t, err, boom)

	assert.False(t, c.Has("k"))
	assert.False(t, fileExists(t, c, "k"))
	assert.Zero(t, c.Size())
	assert.Equal(t, uint64(1), c.Stats().WriteErrors)
	assertConsistent(t, c)

	// 失败不影响后续写入
	_, err = c.Set(ctx, "k", String("again"))
	require.NoError(t, err)
}

func TestCache_Get_WaitsForPendingWrite(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	_, err := c.Set(ctx, "k", String("old"))
	require.NoError(t, err)

	gate, set := startPending(t, c, "k", "new", nil)

	type getResult struct {
		data string
		err  error
	}
	got := make(chan getResult, 1)
	go func() {
		s, err := c.GetString(ctx, "k")
		got <- getResult{s, err}
	}()

	select {
	case <-got:
		t.Fatal("get must wait for the pending write")
	case <-time.After(50 * time.Millisecond):
	}
	// Has 不等待
	assert.True(t, c.Has("k"))

	gate.open()
	require.NoError(t, (<-set).err)
	r := <-got
	require.NoError(t, r.err)
	assert.Equal(t, "new", r.data)
}

func TestCache_GetStream_WaitsForPendingWrite(t *testing.T) {
	c := newTestCache(t)
	gate, set := startPending(t, c, "k", "streamed", nil)

	done := make(chan io.ReadCloser, 1)
	go func() {
		rc, err := c.GetStream(context.Background(), "k")
		assert.NoError(t, err)
		done <- rc
	}()
	gate.open()
	require.NoError(t, (<-set).err)

	rc := <-done
	require.NotNil(t, rc)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "streamed", string(data))
}

func TestCache_Wait(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	t.Run("no pending write returns key", func(t *testing.T) {
		key, err := c.Wait(ctx, "absent")
		require.NoError(t, err)
		assert.Equal(t, "absent", key)
		assert.False(t, c.Has("absent"), "wait must not create entries")
	})

	t.Run("returns pending outcome", func(t *testing.T) {
		gate, set := startPending(t, c, "k", "v", nil)
		waited := make(chan error, 1)
		go func() {
			_, err := c.Wait(ctx, "k")
			waited <- err
		}()
		gate.open()
		require.NoError(t, (<-set).err)
		require.NoError(t, <-waited)
	})

	t.Run("returns pending failure", func(t *testing.T) {
		boom := errors.New("boom")
		gate, set := startPending(t, c, "f", "", boom)
		waited := make(chan error, 1)
		go func() {
			_, err := c.Wait(ctx, "f")
			waited <- err
		}()
		// 确保 Wait 已在等待
		time.Sleep(20 * time.Millisecond)
		gate.open()
		assert.ErrorIs(t, (<-set).err, boom)
		assert.ErrorIs(t, <-waited, ErrWriteFailed)
	})

	t.Run("context bounds waiting but not the write", func(t *testing.T) {
		gate, set := startPending(t, c, "slow", "done", nil)

		tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		_, err := c.Wait(tctx, "slow")
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		_, err = c.Get(tctx, "slow")
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		gate.open()
		require.NoError(t, (<-set).err)
		got, err := c.GetString(ctx, "slow")
		require.NoError(t, err)
		assert.Equal(t, "done", got)
	})
}

func TestCache_Set_JoinerContextCanceled(t *testing.T) {
	c := newTestCache(t)
	gate, first := startPending(t, c, "k", "v", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Set(ctx, "k", String("other"))
	assert.ErrorIs(t, err, context.Canceled)

	gate.open()
	require.NoError(t, (<-first).err)
	assert.True(t, c.Has("k"))
}

func TestCache_DelDuringPendingWrite_DiscardsCommit(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	_, err := c.Set(ctx, "k", String("old"))
	require.NoError(t, err)

	t.Run("commit is discarded", func(t *testing.T) {
		gate, set := startPending(t, c, "k", "new", nil)
		c.Del("k")
		assert.False(t, c.Has("k"))

		gate.open()
		assert.ErrorIs(t, (<-set).err, ErrDiscarded)
		assert.False(t, c.Has("k"), "deleted key must not reappear")
		assert.False(t, fileExists(t, c, "k"))
		_, err := c.Get(ctx, "k")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, uint64(1), c.Stats().Discarded)
		assertConsistent(t, c)
	})

	t.Run("reader waiting on discarded write sees not found", func(t *testing.T) {
		gate, set := startPending(t, c, "k", "new", nil)
		got := make(chan error, 1)
		go func() {
			_, err := c.Get(ctx, "k")
			got <- err
		}()
		time.Sleep(20 * time.Millisecond)
		c.Del("k")
		gate.open()

		assert.ErrorIs(t, (<-set).err, ErrDiscarded)
		err := <-got
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set after delete starts a fresh write", func(t *testing.T) {
		gate, set := startPending(t, c, "k", "discarded", nil)
		c.Del("k")
		next := goSet(c, "k", String("fresh"))
		gate.open()

		assert.ErrorIs(t, (<-set).err, ErrDiscarded)
		require.NoError(t, (<-next).err)
		got, err := c.GetString(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "fresh", got)
		assertConsistent(t, c)
	})

	t.Run("failed discarded write", func(t *testing.T) {
		boom := errors.New("boom")
		gate, set := startPending(t, c, "k", "", boom)
		c.Del("k")
		gate.open()

		err := (<-set).err
		assert.ErrorIs(t, err, ErrWriteFailed)
		assert.False(t, c.Has("k"))
		assertConsistent(t, c)
	})
}

func TestCache_EvictionSkipsFileOfPendingKey(t *testing.T) {
	c := newTestCache(t, WithMaxBytes(10))
	ctx := context.Background()

	_, err := c.Set(ctx, "a", String("aaaa"))
	require.NoError(t, err)

	gate, set := startPending(t, c, "a", "AAA", nil)

	// b 挤出 a，但 a 正在写入，文件不能删除
	_, err = c.Set(ctx, "b", String("bbbbbbbb"))
	require.NoError(t, err)
	assert.False(t, c.Has("a"))
	assert.True(t, fileExists(t, c, "a"))
	assert.Zero(t, c.Stats().Disposals)

	gate.open()
	require.NoError(t, (<-set).err)

	// a 重新插入后 b 成为最旧条目被淘汰
	assert.True(t, c.Has("a"))
	assert.False(t, c.Has("b"))
	got, err := c.GetString(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "AAA", got)
	assertConsistent(t, c)
}

// =============================================================================
// 过期
// =============================================================================

func TestCache_MaxAge(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newTestCache(t, WithMaxAge(time.Minute), WithClock(clock))
	ctx := context.Background()

	_, err := c.Set(ctx, "old", String("o"))
	require.NoError(t, err)
	clock.Advance(30 * time.Second)
	_, err = c.Set(ctx, "young", String("y"))
	require.NoError(t, err)
	clock.Advance(40 * time.Second)

	assert.False(t, c.Has("old"))
	assert.True(t, c.Has("young"))

	assert.Equal(t, 1, c.Prune())
	assert.False(t, fileExists(t, c, "old"))
	assert.Equal(t, int64(1), c.Size())
	assert.Equal(t, uint64(1), c.Stats().Expired)

	t.Run("get on expired entry", func(t *testing.T) {
		clock.Advance(time.Minute)
		_, err := c.Get(ctx, "young")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.False(t, fileExists(t, c, "young"))
		assert.Zero(t, c.Len())
	})

	t.Run("rewrite refreshes age", func(t *testing.T) {
		_, err := c.Set(ctx, "k", String("1"))
		require.NoError(t, err)
		clock.Advance(50 * time.Second)
		_, err = c.Set(ctx, "k", String("2"))
		require.NoError(t, err)
		clock.Advance(50 * time.Second)
		assert.Zero(t, c.Prune())
		assert.True(t, c.Has("k"))
	})
}

func TestCache_Prune_NoMaxAge(t *testing.T) {
	c := newTestCache(t)
	_, err := c.Set(context.Background(), "k", String("v"))
	require.NoError(t, err)
	assert.Zero(t, c.Prune())
	assert.True(t, c.Has("k"))
}

// =============================================================================
// 处置失败
// =============================================================================

func TestCache_DisposalFailure_ReportedToSink(t *testing.T) {
	var mu sync.Mutex
	var reported []error
	var c *Cache
	c = newTestCache(t, WithMaxEntries(1), WithOnError(func(err error) {
		// 回调在锁外执行，可以调用 Cache
		_ = c.Len()
		mu.Lock()
		reported = append(reported, err)
		mu.Unlock()
	}))
	ctx := context.Background()

	_, err := c.Set(ctx, "a", String("a"))
	require.NoError(t, err)
	p, err := c.Path("a")
	require.NoError(t, err)
	require.NoError(t, os.Remove(p))

	_, err = c.Set(ctx, "b", String("b"))
	require.NoError(t, err, "disposal failure must not fail the write")

	mu.Lock()
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], ErrDisposalFailed)
	assert.ErrorIs(t, reported[0], fs.ErrNotExist)
	mu.Unlock()

	assert.False(t, c.Has("a"))
	assert.True(t, c.Has("b"))
	assert.Equal(t, uint64(1), c.Stats().DisposalErrors)
}

// =============================================================================
// 生命周期
// =============================================================================

func TestCache_Init_KeepsContents(t *testing.T) {
	c := newTestCache(t)
	stray := c.Dir() + "/stray"
	require.NoError(t, os.WriteFile(stray, []byte("x"), 0600))

	require.NoError(t, c.Init())
	_, err := os.Stat(stray)
	assert.NoError(t, err)
	assert.Zero(t, c.Len(), "leftover files are not indexed")
}

func TestCache_Init_CreatesDirectory(t *testing.T) {
	dir := t.TempDir() + "/nested/cache"
	c, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, c.Init())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCache_Reset(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	for _, k := range []string{"a", "b"} {
		_, err := c.Set(ctx, k, String(k))
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(c.Dir()+"/stray", []byte("x"), 0600))

	require.NoError(t, c.Reset())
	assert.Zero(t, c.Len())
	assert.Zero(t, c.Size())
	assert.Empty(t, diskFiles(t, c.Dir()))

	_, err := c.Set(ctx, "a", String("again"))
	require.NoError(t, err)
}

func TestCache_Reset_WithPendingWrites(t *testing.T) {
	c := newTestCache(t)
	gate, set := startPending(t, c, "k", "v", nil)

	err := c.Reset()
	assert.ErrorIs(t, err, ErrInvalidState)

	gate.open()
	require.NoError(t, (<-set).err)
	assert.True(t, c.Has("k"), "rejected reset must not change state")
	assert.Zero(t, c.Stats().Pending)

	require.NoError(t, c.Reset())
	assert.False(t, c.Has("k"))
}

func TestCache_Close(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	_, err := c.Set(ctx, "k", String("v"))
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = c.Set(ctx, "k", String("v"))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = c.Wait(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.Init(), ErrClosed)
	assert.ErrorIs(t, c.Reset(), ErrClosed)
	_, err = c.Resize(10)
	assert.ErrorIs(t, err, ErrClosed)
	assert.False(t, c.Has("k"))
	c.Del("k")

	// 快照方法仍然可用，Del 未生效
	assert.Equal(t, int64(1), c.Size())
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, []string{"k"}, c.Keys())
	s := c.Stats()
	assert.Equal(t, 1, s.Entries)
	assert.Equal(t, uint64(1), s.Writes)

	// 文件保留
	assert.True(t, fileExists(t, c, "k"))
}

func TestCache_Resize(t *testing.T) {
	c := newTestCache(t, WithMaxBytes(100))
	ctx := context.Background()
	for _, k := range []string{"a", "b", "c"} {
		_, err := c.Set(ctx, k, Bytes(make([]byte, 20)))
		require.NoError(t, err)
	}

	n, err := c.Resize(45)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, c.Has("a"))
	assert.False(t, fileExists(t, c, "a"))
	assert.Equal(t, int64(45), c.Stats().Capacity)

	_, err = c.Resize(0)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assertConsistent(t, c)
}

// =============================================================================
// key 映射
// =============================================================================

func TestCache_KeyHasher(t *testing.T) {
	c := newTestCache(t, WithKeyHasher(XXHashKeys))
	_, err := c.Set(context.Background(), "k", String("v"))
	require.NoError(t, err)

	p, err := c.Path("k")
	require.NoError(t, err)
	assert.Equal(t, c.Dir()+"/"+XXHashKeys("k"), p)
	assertConsistent(t, c)
}

func TestCache_KeyHasher_InvalidName(t *testing.T) {
	c := newTestCache(t, WithKeyHasher(func(key string) string { return "../" + key }))
	_, err := c.Set(context.Background(), "k", String("v"))
	assert.ErrorIs(t, err, ErrWriteFailed)
	assert.ErrorIs(t, err, xfile.ErrInvalidName)

	_, err = c.Get(context.Background(), "k")
	assert.ErrorIs(t, err, xfile.ErrInvalidName)
}

func TestCache_ArbitraryKeys(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	keys := []string{"", "/etc/passwd", "../../x", "with\x00null", strings.Repeat("long", 1000), "键"}
	for _, k := range keys {
		_, err := c.Set(ctx, k, String("v:"+k))
		require.NoError(t, err, "key %q", k)
	}
	for _, k := range keys {
		got, err := c.GetString(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, "v:"+k, got)
	}
	assertConsistent(t, c)
}

// =============================================================================
// 并发
// =============================================================================

func TestCache_Concurrent_ConsistentWithDisk(t *testing.T) {
	const capacity = 4 << 10
	c := newTestCache(t, WithMaxBytes(capacity))
	ctx := context.Background()

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		g.Go(func() error {
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (w*31+i)%40)
				switch i % 5 {
				case 0:
					c.Del(key)
				case 1:
					if _, err := c.Get(ctx, key); err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrDiscarded) {
						return err
					}
				default:
					size := (w*i)%512 + 1
					_, err := c.Set(ctx, key, Stream(bytes.NewReader(make([]byte, size))))
					if err != nil && !errors.Is(err, ErrDiscarded) {
						return err
					}
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.LessOrEqual(t, c.Size(), int64(capacity))
	assert.Zero(t, c.Stats().Pending)
	assertConsistent(t, c)
}

func TestCache_Concurrent_SameKeySingleWrite(t *testing.T) {
	c := newTestCache(t)
	gate, first := startPending(t, c, "k", "one", nil)

	const joiners = 10
	var g errgroup.Group
	for i := 0; i < joiners; i++ {
		g.Go(func() error {
			_, err := c.Set(context.Background(), "k", String(fmt.Sprintf("other-%d", i)))
			return err
		})
	}
	assert.Eventually(t, func() bool { return c.Stats().Joined == joiners }, time.Second, 5*time.Millisecond)
	gate.open()

	require.NoError(t, (<-first).err)
	require.NoError(t, g.Wait())
	assert.Equal(t, uint64(1), c.Stats().Writes)
	got, err := c.GetString(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "one", got)
}

// =============================================================================
// 观测
// =============================================================================

func TestCache_Observer(t *testing.T) {
	obs := newRecordingObserver()
	c := newTestCache(t, WithObserver(obs))
	ctx := context.Background()

	_, err := c.Set(ctx, "k", String("12345"))
	require.NoError(t, err)
	_, err = c.Get(ctx, "k")
	require.NoError(t, err)
	_, err = c.Get(ctx, "missing")
	require.Error(t, err)
	c.Del("k")
	c.Prune()

	sets := obs.results(opSet)
	require.Len(t, sets, 1)
	assert.Equal(t, int64(5), sets[0].Bytes)
	assert.NoError(t, sets[0].Err)

	gets := obs.results(opGet)
	require.Len(t, gets, 2)
	assert.Equal(t, int64(5), gets[0].Bytes)
	assert.Equal(t, xmetrics.StatusMiss, gets[1].Status)
	assert.ErrorIs(t, gets[1].Err, ErrNotFound)

	assert.Len(t, obs.results(opDel), 1)
	assert.Len(t, obs.results(opPrune), 1)

	s := c.Stats()
	assert.Equal(t, uint64(1), s.Hits)
	assert.Equal(t, uint64(1), s.Misses)
}

func TestCache_Observer_ReportsEvictions(t *testing.T) {
	obs := newRecordingObserver()
	c := newTestCache(t, WithObserver(obs), WithMaxBytes(10))
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		_, err := c.Set(ctx, k, String("12345"))
		require.NoError(t, err)
	}
	sets := obs.results(opSet)
	require.Len(t, sets, 3)
	assert.Equal(t, 0, sets[1].Evicted)
	assert.Equal(t, 1, sets[2].Evicted)

	n, err := c.Resize(5)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	resizes := obs.results(opResize)
	require.Len(t, resizes, 1)
	assert.Equal(t, 1, resizes[0].Evicted)
}
