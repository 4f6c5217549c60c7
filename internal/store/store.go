// Package store 负责管理跨进程重启存活的持久键值存储。底层为 SQLite，
// 单表保存 查询键 → {payload, stored_at}，并以 stored_at 上的二级索引支持
// 批量过期清扫而无需全表扫描；另有一张表记录位置级 prewarm 标记。
package store

import (
	"context"
	"errors"
	"time"
)

// Store 定义数据层与拦截代理共享的持久存储契约。所有按键写入均为
// 整条替换，读者不会观察到半写记录。
type Store interface {
	// Get 返回键对应的记录。不存在时返回 ErrNotFound。
	Get(ctx context.Context, key string) (*Record, error)

	// Put 以 upsert 语义整条写入记录，replace 任何旧条目。
	Put(ctx context.Context, key string, payload []byte, storedAt time.Time) error

	// Delete 删除指定键，键不存在不视为错误。
	Delete(ctx context.Context, key string) error

	// Clear 清空所有记录与 prewarm 标记。
	Clear(ctx context.Context) error

	// SweepExpired 删除 stored_at 早于 olderThan 的全部记录，返回删除数。
	SweepExpired(ctx context.Context, olderThan time.Time) (int64, error)

	// MarkPrewarmed 记录某位置签名已完成全类别预热。
	MarkPrewarmed(ctx context.Context, signature string, at time.Time) error

	// Prewarmed 查询位置签名是否已有预热标记。
	Prewarmed(ctx context.Context, signature string) (bool, error)

	Close() error
}

// Record 是一条持久化缓存记录的磁盘形状。
type Record struct {
	Key      string
	Payload  []byte
	StoredAt time.Time
}

// ErrNotFound 表示键不存在。
var ErrNotFound = errors.New("store record not found")
