package coordinator

import (
	"context"

	"github.com/naturecache/naturecache/internal/faults"
	"github.com/naturecache/naturecache/internal/query"
)

// resolveFailure 是加载失败时的单一决策入口（回退瀑布）：
//  1. 取消：静默。
//  2. 在线 + 数据错误：缓存命中则发布陈旧可用数据。
//  3. 离线或传输失败：缓存命中则发布；未命中发布明确的离线态。
//  4. 其余：发布一般错误态。
func (c *Coordinator) resolveFailure(ctx context.Context, q query.Query, err error) {
	if faults.IsCancelled(err) {
		return
	}

	key := q.Key()
	online := c.isOnline()

	if !online || faults.IsTransport(err) {
		if records, ok := c.cache.Get(ctx, key); ok {
			c.sink.PublishResult(q, records)
			return
		}
		c.sink.PublishOffline(q)
		return
	}

	if faults.IsRemote(err) {
		if records, ok := c.cache.Get(ctx, key); ok {
			c.sink.PublishResult(q, records)
			return
		}
	}

	c.sink.PublishError(q, err)
}

func (c *Coordinator) isOnline() bool {
	if c.online == nil {
		return true
	}
	return c.online.Online()
}
