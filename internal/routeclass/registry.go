package routeclass

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var globalRegistry = newRegistry()

type registry struct {
	mu      sync.RWMutex
	classes map[string]ClassMetadata
}

func newRegistry() *registry {
	return &registry{classes: make(map[string]ClassMetadata)}
}

// Register 将类别元数据加入全局注册表，重复键会返回错误。
func Register(meta ClassMetadata) error {
	return globalRegistry.register(meta)
}

// MustRegister 在注册失败时 panic，适合类别包 init() 中调用。
func MustRegister(meta ClassMetadata) {
	if err := Register(meta); err != nil {
		panic(err)
	}
}

// Resolve 返回指定键的类别元数据。
func Resolve(key string) (ClassMetadata, bool) {
	return globalRegistry.resolve(key)
}

// List 返回按键排序的类别元数据列表。
func List() []ClassMetadata {
	return globalRegistry.list()
}

// Keys 返回所有已注册类别的键值，供诊断与配置报错提示使用。
func Keys() []string {
	items := List()
	result := make([]string, len(items))
	for i, meta := range items {
		result[i] = meta.Key
	}
	return result
}

func (r *registry) normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func (r *registry) register(meta ClassMetadata) error {
	key := r.normalizeKey(meta.Key)
	if key == "" {
		return fmt.Errorf("route class key is required")
	}
	meta.Key = key

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.classes[key]; exists {
		return fmt.Errorf("route class %s already registered", key)
	}
	r.classes[key] = meta
	return nil
}

func (r *registry) resolve(key string) (ClassMetadata, bool) {
	if key == "" {
		return ClassMetadata{}, false
	}
	normalized := r.normalizeKey(key)

	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, ok := r.classes[normalized]
	return meta, ok
}

func (r *registry) list() []ClassMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.classes) == 0 {
		return nil
	}

	keys := make([]string, 0, len(r.classes))
	for key := range r.classes {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]ClassMetadata, 0, len(keys))
	for _, key := range keys {
		result = append(result, r.classes[key])
	}
	return result
}
