package proxy

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Lifecycle 管理缓存命名空间的版本接管。新版本启动后以自己的版本号读写缓存，
// 但旧版本命名空间保留在磁盘上，直到控制端显式激活（或跳过等待）才被清除，
// 避免打断仍在使用旧缓存副本的会话。
type Lifecycle struct {
	store   Store
	logger  *logrus.Logger
	version string

	mu      sync.Mutex
	pending []string
}

// NewLifecycle 扫描磁盘上现存的命名空间，将与当前版本不符的记为待清理。
func NewLifecycle(ctx context.Context, store Store, version string, logger *logrus.Logger) (*Lifecycle, error) {
	namespaces, err := store.Namespaces(ctx)
	if err != nil {
		return nil, err
	}

	var pending []string
	for _, ns := range namespaces {
		if ns != version {
			pending = append(pending, ns)
		}
	}

	lc := &Lifecycle{
		store:   store,
		logger:  logger,
		version: version,
		pending: pending,
	}

	if logger != nil {
		fields := logrus.Fields{
			"action":  "cache_lifecycle",
			"version": version,
		}
		if len(pending) > 0 {
			fields["stale_namespaces"] = pending
			logger.WithFields(fields).Info("cache_version_staged")
		} else {
			logger.WithFields(fields).Info("cache_version_active")
		}
	}

	return lc, nil
}

// ActiveVersion 返回当前读写使用的命名空间版本。
func (l *Lifecycle) ActiveVersion() string {
	return l.version
}

// Pending 返回仍待清理的旧版本命名空间列表。
func (l *Lifecycle) Pending() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.pending...)
}

// Activate 清除全部旧版本命名空间，返回删除的数量。重复调用安全。
func (l *Lifecycle) Activate(ctx context.Context) (int, error) {
	l.mu.Lock()
	pending := l.pending
	l.pending = nil
	l.mu.Unlock()

	purged := 0
	for i, ns := range pending {
		if err := l.store.RemoveNamespace(ctx, ns); err != nil {
			// 剩余的留到下次 Activate 再试
			l.mu.Lock()
			l.pending = append(l.pending, pending[i:]...)
			l.mu.Unlock()
			return purged, err
		}
		purged++
	}

	if l.logger != nil && purged > 0 {
		l.logger.WithFields(logrus.Fields{
			"action":  "cache_lifecycle",
			"version": l.version,
			"purged":  purged,
		}).Info("cache_version_activated")
	}
	return purged, nil
}
