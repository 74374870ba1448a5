package xdiskcache

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xdiskcache/pkg/observability/xmetrics"
)

func newTestCache(t *testing.T, opts ...Option) *Cache {
	t.Helper()
	c, err := New(filepath.Join(t.TempDir(), "cache"), opts...)
	require.NoError(t, err)
	require.NoError(t, c.Init())
	return c
}

// diskFiles 列出缓存目录中的正式文件（忽略写入中的临时文件）。
func diskFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			continue
		}
		names = append(names, e.Name())
	}
	return names
}

// assertConsistent 断言索引中的 key 与磁盘上的文件一一对应。
func assertConsistent(t *testing.T, c *Cache) {
	t.Helper()
	want := make([]string, 0)
	for _, k := range c.Keys() {
		p, err := c.Path(k)
		require.NoError(t, err)
		want = append(want, filepath.Base(p))
	}
	assert.ElementsMatch(t, want, diskFiles(t, c.Dir()))
}

func fileExists(t *testing.T, c *Cache, key string) bool {
	t.Helper()
	p, err := c.Path(key)
	require.NoError(t, err)
	_, err = os.Stat(p)
	return err == nil
}

// gatedReader 在 release 关闭前阻塞 Read，用于构造进行中的写入。
type gatedReader struct {
	started chan struct{}
	release chan struct{}
	data    []byte
	err     error
	once    sync.Once
	off     int
}

func newGate(data string, err error) *gatedReader {
	return &gatedReader{
		started: make(chan struct{}),
		release: make(chan struct{}),
		data:    []byte(data),
		err:     err,
	}
}

func (r *gatedReader) Read(p []byte) (int, error) {
	r.once.Do(func() { close(r.started) })
	<-r.release
	if r.off >= len(r.data) {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := copy(p, r.data[r.off:])
	r.off += n
	return n, nil
}

func (r *gatedReader) open() { close(r.release) }

type setResult struct {
	key string
	err error
}

func goSet(c *Cache, key string, p Payload) <-chan setResult {
	ch := make(chan setResult, 1)
	go func() {
		k, err := c.Set(context.Background(), key, p)
		ch <- setResult{key: k, err: err}
	}()
	return ch
}

// startPending 发起一次阻塞中的流式写入，返回时写入已登记并开始读取。
func startPending(t *testing.T, c *Cache, key, data string, err error) (*gatedReader, <-chan setResult) {
	t.Helper()
	gate := newGate(data, err)
	ch := goSet(c, key, Stream(gate))
	<-gate.started
	return gate, ch
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

// recordingObserver 记录每次操作的结果。
type recordingObserver struct {
	mu    sync.Mutex
	spans map[string][]xmetrics.Result
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{spans: make(map[string][]xmetrics.Result)}
}

func (o *recordingObserver) Start(ctx context.Context, opts xmetrics.SpanOptions) (context.Context, xmetrics.Span) {
	return ctx, &recordingSpan{o: o, op: opts.Operation}
}

func (o *recordingObserver) results(op string) []xmetrics.Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]xmetrics.Result(nil), o.spans[op]...)
}

type recordingSpan struct {
	o  *recordingObserver
	op string
}

func (s *recordingSpan) End(r xmetrics.Result) {
	s.o.mu.Lock()
	defer s.o.mu.Unlock()
	s.o.spans[s.op] = append(s.o.spans[s.op], r)
}
