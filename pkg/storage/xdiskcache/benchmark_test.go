package xdiskcache

import (
	"bytes"
	"context"
	"fmt"
	"testing"
)

func BenchmarkCache_SetBytes(b *testing.B) {
	c, err := New(b.TempDir(), WithMaxBytes(64<<20))
	if err != nil {
		b.Fatal(err)
	}
	if err := c.Init(); err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	data := bytes.Repeat([]byte("x"), 4<<10)

	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	i := 0
	for b.Loop() {
		if _, err := c.Set(ctx, fmt.Sprintf("k%d", i%1024), Bytes(data)); err != nil {
			b.Fatal(err)
		}
		i++
	}
}

func BenchmarkCache_Get(b *testing.B) {
	c, err := New(b.TempDir())
	if err != nil {
		b.Fatal(err)
	}
	if err := c.Init(); err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	data := bytes.Repeat([]byte("y"), 4<<10)
	for i := 0; i < 128; i++ {
		if _, err := c.Set(ctx, fmt.Sprintf("k%d", i), Bytes(data)); err != nil {
			b.Fatal(err)
		}
	}

	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	i := 0
	for b.Loop() {
		if _, err := c.Get(ctx, fmt.Sprintf("k%d", i%128)); err != nil {
			b.Fatal(err)
		}
		i++
	}
}

func BenchmarkKeyHashers(b *testing.B) {
	key := "https://example.com/artifacts/build-1234/output.tar.gz"
	b.Run("sha256", func(b *testing.B) {
		for b.Loop() {
			_ = SHA256Keys(key)
		}
	})
	b.Run("xxhash", func(b *testing.B) {
		for b.Loop() {
			_ = XXHashKeys(key)
		}
	})
}
