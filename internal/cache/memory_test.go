package cache

import (
	"testing"
	"time"
)

func TestMemorySetVisibleImmediately(t *testing.T) {
	mem := NewMemory()
	entry := Entry{Records: sampleRecords(), StoredAt: time.Now()}
	mem.Set("k", entry)

	got, ok := mem.Get("k")
	if !ok {
		t.Fatalf("同步写入后应立即可读")
	}
	if len(got.Records) != 2 {
		t.Fatalf("payload mismatch: %+v", got.Records)
	}
}

func TestMemoryDeleteAndClear(t *testing.T) {
	mem := NewMemory()
	mem.Set("a", Entry{})
	mem.Set("b", Entry{})

	mem.Delete("a")
	if _, ok := mem.Get("a"); ok {
		t.Fatalf("删除后不应命中")
	}
	if mem.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", mem.Len())
	}

	mem.Clear()
	if mem.Len() != 0 {
		t.Fatalf("clear 后应为空")
	}
}
