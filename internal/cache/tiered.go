package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/naturecache/naturecache/internal/species"
	"github.com/naturecache/naturecache/internal/store"
)

// Tiered 将 Memory 与持久存储组合在统一的读写契约后面。
// 读路径：内存 → 持久层（命中且新鲜则晋升到内存）；过期条目从两层删除。
// 写路径：内存同步写入，持久层写入失败降级为仅内存并只告警一次。
type Tiered struct {
	mem     *Memory
	durable store.Store
	ttl     time.Duration
	logger  *logrus.Logger
	now     func() time.Time

	degraded atomic.Bool
}

// NewTiered 构造分层缓存，默认使用 time.Now 作为时钟。
func NewTiered(mem *Memory, durable store.Store, ttl time.Duration, logger *logrus.Logger) *Tiered {
	return &Tiered{
		mem:     mem,
		durable: durable,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
	}
}

// TTL 返回缓存条目的时效上限（配置常量，调用点不应另行硬编码）。
func (t *Tiered) TTL() time.Duration {
	return t.ttl
}

// Get 返回键的 payload。内存优先；持久命中且新鲜则晋升；
// 过期条目顺手从两层删除并按缺失处理。
func (t *Tiered) Get(ctx context.Context, key string) ([]species.Record, bool) {
	if entry, ok := t.mem.Get(key); ok {
		if t.fresh(entry.StoredAt) {
			return entry.Records, true
		}
		t.dropBoth(ctx, key)
		return nil, false
	}

	if t.degraded.Load() {
		return nil, false
	}

	rec, err := t.durable.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			t.degrade("get", err)
		}
		return nil, false
	}

	if !t.fresh(rec.StoredAt) {
		t.dropBoth(ctx, key)
		return nil, false
	}

	var records []species.Record
	if err := json.Unmarshal(rec.Payload, &records); err != nil {
		// 损坏的持久记录按缺失处理并删除。
		t.dropBoth(ctx, key)
		return nil, false
	}

	t.mem.Set(key, Entry{Records: records, StoredAt: rec.StoredAt})
	return records, true
}

// Set 整条写入。内存写入同步完成；持久写入失败不向调用方传播。
func (t *Tiered) Set(ctx context.Context, key string, records []species.Record) {
	storedAt := t.now()
	t.mem.Set(key, Entry{Records: records, StoredAt: storedAt})

	if t.degraded.Load() {
		return
	}
	payload, err := json.Marshal(records)
	if err != nil {
		t.degrade("encode", err)
		return
	}
	if err := t.durable.Put(ctx, key, payload, storedAt); err != nil {
		t.degrade("put", err)
	}
}

// Delete 先删内存（对读者即时生效），再删持久层。
func (t *Tiered) Delete(ctx context.Context, key string) {
	t.dropBoth(ctx, key)
}

// Clear 清空两层。内存先清且对读者权威，持久删除在途也不会出现分歧。
func (t *Tiered) Clear(ctx context.Context) {
	t.mem.Clear()
	if t.degraded.Load() {
		return
	}
	if err := t.durable.Clear(ctx); err != nil {
		t.degrade("clear", err)
	}
}

// SweepExpired 批量清除持久层中超龄的记录；内存条目留待下次 Get 惰性清除。
func (t *Tiered) SweepExpired(ctx context.Context) (int64, error) {
	if t.degraded.Load() {
		return 0, nil
	}
	removed, err := t.durable.SweepExpired(ctx, t.now().Add(-t.ttl))
	if err != nil {
		t.degrade("sweep", err)
		return 0, nil
	}
	return removed, nil
}

func (t *Tiered) fresh(storedAt time.Time) bool {
	return t.now().Sub(storedAt) <= t.ttl
}

func (t *Tiered) dropBoth(ctx context.Context, key string) {
	t.mem.Delete(key)
	if t.degraded.Load() {
		return
	}
	if err := t.durable.Delete(ctx, key); err != nil {
		t.degrade("delete", err)
	}
}

// degrade 将缓存收窄为仅内存，本会话内不再访问持久层，且只告警一次。
func (t *Tiered) degrade(op string, err error) {
	if t.degraded.Swap(true) {
		return
	}
	if t.logger != nil {
		t.logger.WithError(err).
			WithField("op", op).
			Warn("store_unavailable")
	}
}
