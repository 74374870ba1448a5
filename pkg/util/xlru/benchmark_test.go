package xlru

import (
	"strconv"
	"testing"
)

func BenchmarkIndex_Insert_Evicting(b *testing.B) {
	ix, err := New[string](Config{Capacity: 1 << 20})
	if err != nil {
		b.Fatal(err)
	}
	keys := make([]string, 4096)
	for i := range keys {
		keys[i] = "key-" + strconv.Itoa(i)
	}

	b.ReportAllocs()
	b.ResetTimer()
	i := 0
	for b.Loop() {
		_, _ = ix.Insert(keys[i%len(keys)], 1024)
		i++
	}
}

func BenchmarkIndex_Touch(b *testing.B) {
	ix, err := New[string](Config{Capacity: 1000, Mode: ModeCount})
	if err != nil {
		b.Fatal(err)
	}
	_, _ = ix.Insert("hot", 1)

	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		ix.Touch("hot")
	}
}
