// Package prewarm 为一个位置批量预热全部过滤类别的缓存，使该位置
// 离线时所有过滤器都可服务。完成后以位置签名在持久存储中落下标记，
// 已标记的位置直接跳过。
package prewarm

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/naturecache/naturecache/internal/cache"
	"github.com/naturecache/naturecache/internal/coordinator"
	"github.com/naturecache/naturecache/internal/query"
	"github.com/naturecache/naturecache/internal/species"
	"github.com/naturecache/naturecache/internal/store"
)

// defaultConcurrency 保持克制：客户端本身还有请求间隔限速，
// 并发只用来与限速等待重叠。
const defaultConcurrency = 2

// Warmer 驱动位置级预热。
type Warmer struct {
	cache       *cache.Tiered
	markers     store.Store
	loader      coordinator.Loader
	logger      *logrus.Logger
	concurrency int
	now         func() time.Time
}

// New 构造 Warmer。concurrency <= 0 时使用默认并发度。
func New(tiered *cache.Tiered, markers store.Store, loader coordinator.Loader, logger *logrus.Logger, concurrency int) *Warmer {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Warmer{
		cache:       tiered,
		markers:     markers,
		loader:      loader,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// WarmLocation 预热一个位置的全部类别（含无过滤的全量查询）。
// 任一类别失败则不落标记，下次调用会续跑未缓存的类别。
func (w *Warmer) WarmLocation(ctx context.Context, lat, lng, radiusKm float64) error {
	base := query.Query{Lat: lat, Lng: lng, RadiusKm: radiusKm}
	sig := base.Signature()

	if done, err := w.markers.Prewarmed(ctx, sig); err == nil && done {
		return nil
	}

	filters := append([]string{""}, species.IconicTaxa()...)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, filter := range filters {
		q := query.Query{Lat: lat, Lng: lng, RadiusKm: radiusKm, Filter: filter}
		g.Go(func() error {
			if _, ok := w.cache.Get(gctx, q.Key()); ok {
				return nil
			}
			records, err := w.loader.Counts(gctx, q)
			if err != nil {
				return fmt.Errorf("warm %q: %w", q.Filter, err)
			}
			w.cache.Set(gctx, q.Key(), records)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if w.logger != nil {
			w.logger.WithError(err).WithField("signature", sig).Warn("prewarm_incomplete")
		}
		return err
	}

	if err := w.markers.MarkPrewarmed(ctx, sig, w.now()); err != nil {
		// 标记失败只是下次重复预热，不影响本次缓存成果。
		if w.logger != nil {
			w.logger.WithError(err).WithField("signature", sig).Warn("prewarm_mark_failed")
		}
	}
	if w.logger != nil {
		w.logger.WithFields(logrus.Fields{
			"signature": sig,
			"filters":   len(filters),
		}).Info("prewarm_complete")
	}
	return nil
}
