package proxy

import (
	"context"
	"errors"
	"io"
	"time"
)

// Store 负责管理拦截代理的磁盘响应缓存。磁盘布局遵循：
//
//	<StoragePath>/<Version>/<Class>/<path>    # 实际正文
//
// 每个条目仅由正文文件组成，文件的 ModTime 记录抓取时间，Size 由文件系统提供。
// 第一层目录是缓存命名空间版本，版本升级后旧命名空间整体删除。
type Store interface {
	// Get 返回一个可流式读取的缓存条目。若不存在则返回 ErrNotFound。
	Get(ctx context.Context, locator Locator) (*ReadResult, error)

	// Put 将上游响应写入缓存，并产出新的 Entry 描述。实现需通过临时文件 + rename
	// 保证写入原子性，并在失败时清理临时文件。opts.ModTime 记录抓取时间，
	// 供 TTL 新鲜度判断使用。
	Put(ctx context.Context, locator Locator, body io.Reader, opts PutOptions) (*Entry, error)

	// Remove 删除正文文件，通常用于上游 404 或策略清理。
	Remove(ctx context.Context, locator Locator) error

	// Namespaces 列出磁盘上现存的全部版本命名空间。
	Namespaces(ctx context.Context) ([]string, error)

	// RemoveNamespace 整体删除一个版本命名空间及其全部条目。
	RemoveNamespace(ctx context.Context, version string) error

	// Clear 删除全部命名空间，用于控制端 clear-caches 指令。
	Clear(ctx context.Context) error
}

// PutOptions 控制写入过程中的可选属性。
type PutOptions struct {
	ModTime time.Time
}

// Locator 唯一定位一个缓存条目（版本 + 类别 + 相对路径），所有路径均为 URL 路径风格。
type Locator struct {
	Version string
	Class   string
	Path    string
}

// Entry 表示一次缓存命中结果，包含绝对文件路径及文件信息。
type Entry struct {
	Locator   Locator `json:"locator"`
	FilePath  string  `json:"file_path"`
	SizeBytes int64   `json:"size_bytes"`
	ModTime   time.Time
}

// ReadResult 组合 Entry 与正文 Reader，便于代理层直接将 Body 流式返回。
type ReadResult struct {
	Entry  Entry
	Reader io.ReadSeekCloser
}

// ErrNotFound 表示缓存不存在。
var ErrNotFound = errors.New("cache entry not found")
