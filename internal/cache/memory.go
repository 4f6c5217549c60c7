package cache

import (
	"sync"
	"time"

	"github.com/naturecache/naturecache/internal/species"
)

// Entry 是一条缓存记录：payload 与写入时间。payload 只会被整条替换，
// 读者不会看到部分写入。
type Entry struct {
	Records  []species.Record
	StoredAt time.Time
}

// Memory 是进程内的易失缓存层，镜像持久存储以获得零延迟读取。
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemory 构造空的内存缓存。
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

// Get 返回键对应条目。TTL 判断由上层 Tiered 负责。
func (m *Memory) Get(key string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[key]
	return entry, ok
}

// Set 同步写入，对同一 tick 内的后续 Get 立即可见。
func (m *Memory) Set(key string, entry Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry
}

// Delete 移除指定键。
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// Clear 清空全部条目。
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]Entry)
}

// Len 返回当前条目数。
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
